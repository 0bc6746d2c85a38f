package conjecture

import (
	"fmt"
	"math"
	"time"
)

// Batch is the half-open range [Begin, End) checked by one job.
type Batch struct {
	Begin uint64
	End   uint64
}

func (b Batch) String() string {
	return fmt.Sprintf("%d-%d", b.Begin, b.End)
}

// Len returns the number of values in the batch.
func (b Batch) Len() uint64 {
	if b.End <= b.Begin {
		return 0
	}
	return b.End - b.Begin
}

// NextBatch returns the batch of width size starting at begin. The end
// saturates at math.MaxUint64 instead of wrapping.
func NextBatch(begin, size uint64) Batch {
	if math.MaxUint64-begin < size {
		return Batch{Begin: begin, End: math.MaxUint64}
	}
	return Batch{Begin: begin, End: begin + size}
}

// Exhausted reports whether no batch can start at begin.
func Exhausted(begin uint64) bool {
	return begin == math.MaxUint64
}

// BatchResult is the outcome of checking one batch.
type BatchResult struct {
	Batch
	// Checked counts the values examined, including a failing one.
	Checked uint64
	// Counterexample is the first value for which the property failed.
	Counterexample *uint64
	Duration       time.Duration
}

// CheckBatch tests every value of b in order and stops at the first failure.
func CheckBatch(b Batch) BatchResult {
	return checkBatch(b, Holds)
}

func checkBatch(b Batch, holds func(uint64) bool) BatchResult {
	start := time.Now()
	res := BatchResult{Batch: b}
	for n := b.Begin; n < b.End; n++ {
		res.Checked++
		if !holds(n) {
			failed := n
			res.Counterexample = &failed
			break
		}
	}
	res.Duration = time.Since(start)
	return res
}
