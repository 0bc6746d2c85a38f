package conjecture

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinomial(t *testing.T) {
	tests := []struct {
		n, k uint64
		want int64
	}{
		{0, 0, 1},
		{5, 2, 10},
		{10, 0, 1},
		{10, 10, 1},
		{3, 5, 0},
		{20, 10, 184756},
	}

	for _, tt := range tests {
		if got := Binomial(tt.n, tt.k); got.Cmp(big.NewInt(tt.want)) != 0 {
			t.Errorf("Binomial(%d, %d) = %s, want %d", tt.n, tt.k, got, tt.want)
		}
	}
}

func TestBinomial_BeyondInt64(t *testing.T) {
	n := uint64(math.MaxUint64)
	want := new(big.Int).SetUint64(n)
	want.Mul(want, new(big.Int).SetUint64(n-1))
	want.Quo(want, big.NewInt(2))

	assert.Equal(t, 0, Binomial(n, 2).Cmp(want))
}

func TestBinomial_LargeArguments(t *testing.T) {
	const top = uint64(math.MaxUint64)
	tests := []struct {
		name        string
		n, k        uint64
		want        *big.Int
		wantFactors uint64
	}{
		{"k above n", 10, 20, big.NewInt(0), 0},
		{"k above huge n", top - 1, top, big.NewInt(0), 0},
		{"k equals huge n", top, top, big.NewInt(1), 0},
		{"k is huge n minus one", top, top - 1, new(big.Int).SetUint64(top), 0},
		{"one of huge n", top - 3, 1, new(big.Int).SetUint64(top - 3), 2},
		{"two of huge n", top - 3, 2, new(big.Int).Mul(
			new(big.Int).SetUint64(top/2-1),
			new(big.Int).SetUint64(top-4),
		), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Binomial(tt.n, tt.k)
			assert.Equal(t, 0, got.Cmp(tt.want), "Binomial(%d, %d) = %s, want %s", tt.n, tt.k, got, tt.want)
			assert.Equal(t, tt.wantFactors, FactorsOfTwo(got))
		})
	}
}

func TestCentralBinomial(t *testing.T) {
	assert.Equal(t, int64(1), CentralBinomial(0).Int64())
	assert.Equal(t, int64(2), CentralBinomial(1).Int64())
	assert.Equal(t, int64(20), CentralBinomial(3).Int64())
	assert.Equal(t, int64(184756), CentralBinomial(10).Int64())
}

func TestCountOnes(t *testing.T) {
	tests := map[uint64]uint64{0: 0, 1: 1, 2: 1, 7: 3, 10: 2, math.MaxUint64: 64}
	for n, want := range tests {
		assert.Equal(t, want, CountOnes(n), "CountOnes(%d)", n)
	}
}

func TestFactorsOfTwo(t *testing.T) {
	tests := []struct {
		x    int64
		want uint64
	}{
		{0, 0},
		{1, 0},
		{7, 0},
		{8, 3},
		{12, 2},
		{184756, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FactorsOfTwo(big.NewInt(tt.x)), "FactorsOfTwo(%d)", tt.x)
	}
}

func TestHolds(t *testing.T) {
	for n := uint64(0); n < 2000; n++ {
		if !Holds(n) {
			t.Fatalf("Holds(%d) = false", n)
		}
	}
}
