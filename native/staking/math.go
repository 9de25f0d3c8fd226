package staking

import (
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ray = mustBigInt("1000000000000000000000000000") // 1e27 precision
	// initialStakeMultiple seeds the phantom supply of an empty pool.
	initialStakeMultiple = big.NewInt(1_000_000)
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// validateAmount rejects nil, non-positive and wider than 256-bit inputs.
func validateAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(amount), nil
}

// checkedAdd returns a+b, failing when the sum leaves the uint256 range.
func checkedAdd(a, b *big.Int) (*big.Int, error) {
	a, b = zeroIfNil(a), zeroIfNil(b)
	if a.Sign() < 0 || b.Sign() < 0 {
		return nil, ErrOverflow
	}
	x, overflowA := uint256.FromBig(a)
	y, overflowB := uint256.FromBig(b)
	if overflowA || overflowB {
		return nil, ErrOverflow
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return sum.ToBig(), nil
}

// checkedSub returns a-b and fails on underflow.
func checkedSub(a, b *big.Int) (*big.Int, error) {
	a, b = zeroIfNil(a), zeroIfNil(b)
	if a.Cmp(b) < 0 {
		return nil, ErrOverflow
	}
	return new(big.Int).Sub(a, b), nil
}

// mulDiv computes floor(a*b/c) with a full-width intermediate. A zero divisor
// yields zero.
func mulDiv(a, b, c *big.Int) *big.Int {
	if a == nil || b == nil || c == nil || c.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, c)
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
