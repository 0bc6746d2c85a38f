package conjecture

import (
	"math"
	"math/big"
	"math/bits"
)

// Binomial returns n choose k, or 0 when k > n.
func Binomial(n, k uint64) *big.Int {
	return binomial(new(big.Int).SetUint64(n), k)
}

// CentralBinomial returns 2n choose n.
func CentralBinomial(n uint64) *big.Int {
	twoN := new(big.Int).SetUint64(n)
	twoN.Lsh(twoN, 1)
	return binomial(twoN, n)
}

func binomial(n *big.Int, k uint64) *big.Int {
	kk := new(big.Int).SetUint64(k)
	if n.Cmp(kk) < 0 {
		return new(big.Int)
	}
	if rest := new(big.Int).Sub(n, kk); rest.Cmp(kk) < 0 {
		// C(n, k) == C(n, n-k); rest < k so it fits a uint64
		k = rest.Uint64()
	}
	if n.IsInt64() && k <= math.MaxInt64 {
		return new(big.Int).Binomial(n.Int64(), int64(k))
	}

	// n no longer fits an int64: multiply one factor at a time, each
	// intermediate res*(n-i)/(i+1) is itself a binomial and divides exactly
	res := big.NewInt(1)
	factor := new(big.Int)
	divisor := new(big.Int)
	for i := uint64(0); i < k; i++ {
		factor.Sub(n, divisor.SetUint64(i))
		res.Mul(res, factor)
		res.Quo(res, divisor.SetUint64(i+1))
	}
	return res
}

// CountOnes returns the number of set bits in the binary form of n.
func CountOnes(n uint64) uint64 {
	return uint64(bits.OnesCount64(n))
}

// FactorsOfTwo returns how many times x is divisible by two. Zero yields 0.
func FactorsOfTwo(x *big.Int) uint64 {
	if x.Sign() == 0 {
		return 0
	}
	return uint64(x.TrailingZeroBits())
}

// Holds reports whether 2n choose n has exactly as many factors of two as n
// has one-bits.
func Holds(n uint64) bool {
	return FactorsOfTwo(CentralBinomial(n)) == CountOnes(n)
}
