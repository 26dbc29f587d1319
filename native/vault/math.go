package vault

import (
	"math"

	"github.com/holiman/uint256"

	protoerrors "stakevault/core/errors"
)

const (
	// RateScale is the fixed-point unit of exchange rates (9 implied decimals).
	RateScale uint64 = 1_000_000_000
	// BasisPoints is the denominator of every bps parameter.
	BasisPoints uint64 = 10_000
)

// MulDiv returns floor(a*b/d). The product is formed in 256 bits so only a
// quotient that does not fit in 64 bits overflows.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, protoerrors.ErrDivisionByZero
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	product.Div(product, uint256.NewInt(d))
	if !product.IsUint64() {
		return 0, protoerrors.ErrArithmeticOverflow
	}
	return product.Uint64(), nil
}

// MulDivSaturating behaves like MulDiv but clamps results above MaxUint64.
// It is used for ratios, where an oversized value means "unbounded".
func MulDivSaturating(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, protoerrors.ErrDivisionByZero
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	product.Div(product, uint256.NewInt(d))
	if !product.IsUint64() {
		return math.MaxUint64, nil
	}
	return product.Uint64(), nil
}

// Add returns a+b or ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, protoerrors.ErrArithmeticOverflow
	}
	return a + b, nil
}

// Sub returns a-b or ErrArithmeticUnderflow.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, protoerrors.ErrArithmeticUnderflow
	}
	return a - b, nil
}

// ExchangeRate returns total assets per share scaled by RateScale. An empty
// vault trades at exactly one.
func (v *Vault) ExchangeRate() (uint64, error) {
	if v.TotalShares == 0 {
		return RateScale, nil
	}
	return MulDiv(v.TotalAssets, RateScale, v.TotalShares)
}

// CalculateShares returns the shares minted for a deposit of amount. The
// first deposit is 1:1; later deposits round down in the vault's favour.
func (v *Vault) CalculateShares(amount uint64) (uint64, error) {
	if v.TotalShares == 0 {
		return amount, nil
	}
	return MulDiv(amount, v.TotalShares, v.TotalAssets)
}

// SharesToValue returns the base-asset value of shares, rounded down.
func (v *Vault) SharesToValue(shares uint64) (uint64, error) {
	if v.TotalShares == 0 {
		return 0, nil
	}
	return MulDiv(shares, v.TotalAssets, v.TotalShares)
}

// HasCapacity reports whether amount fits under MaxCapacity. Overflow counts
// as no capacity.
func (v *Vault) HasCapacity(amount uint64) bool {
	total, err := Add(v.TotalAssets, amount)
	if err != nil {
		return false
	}
	return total <= v.MaxCapacity
}
