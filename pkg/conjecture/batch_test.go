package conjecture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBatch(t *testing.T) {
	tests := []struct {
		name  string
		begin uint64
		size  uint64
		want  Batch
	}{
		{"first", 1, 10000, Batch{1, 10001}},
		{"exact fit", math.MaxUint64 - 10, 10, Batch{math.MaxUint64 - 10, math.MaxUint64}},
		{"saturates", math.MaxUint64 - 3, 10, Batch{math.MaxUint64 - 3, math.MaxUint64}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextBatch(tt.begin, tt.size))
		})
	}
}

func TestExhausted(t *testing.T) {
	assert.False(t, Exhausted(0))
	assert.False(t, Exhausted(math.MaxUint64-1))
	assert.True(t, Exhausted(math.MaxUint64))
}

func TestBatch_LenAndString(t *testing.T) {
	b := Batch{Begin: 1, End: 10001}
	assert.Equal(t, uint64(10000), b.Len())
	assert.Equal(t, "1-10001", b.String())
	assert.Equal(t, uint64(0), Batch{Begin: 5, End: 5}.Len())
}

func TestCheckBatch(t *testing.T) {
	res := CheckBatch(Batch{Begin: 1, End: 200})

	assert.Equal(t, uint64(199), res.Checked)
	assert.Nil(t, res.Counterexample)
}

func TestCheckBatch_StopsAtFirstFailure(t *testing.T) {
	var tested []uint64
	res := checkBatch(Batch{Begin: 10, End: 20}, func(n uint64) bool {
		tested = append(tested, n)
		return n != 13
	})

	require.NotNil(t, res.Counterexample)
	assert.Equal(t, uint64(13), *res.Counterexample)
	assert.Equal(t, uint64(4), res.Checked)
	assert.Equal(t, []uint64{10, 11, 12, 13}, tested)
}
