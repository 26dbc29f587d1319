package cdp

import (
	"math"

	"stakevault/native/vault"
)

// Unbounded is the ratio reported for positions without debt.
const Unbounded uint64 = math.MaxUint64

// CollateralValue prices vault shares in the base asset at rate.
func CollateralValue(shares, rate uint64) (uint64, error) {
	return vault.MulDiv(shares, rate, vault.RateScale)
}

// Ratio returns value*10000/debt in basis points, saturating at Unbounded.
// A position without debt is unbounded.
func Ratio(value, debt uint64) (uint64, error) {
	if debt == 0 {
		return Unbounded, nil
	}
	return vault.MulDivSaturating(value, vault.BasisPoints, debt)
}

// PositionRatio returns the collateralisation of p at rate.
func PositionRatio(p *Position, rate uint64) (uint64, error) {
	if p == nil || p.Debt == 0 {
		return Unbounded, nil
	}
	value, err := CollateralValue(p.Collateral, rate)
	if err != nil {
		return 0, err
	}
	return Ratio(value, p.Debt)
}

// Liquidatable reports whether p sits strictly below threshold at rate.
func Liquidatable(p *Position, rate, threshold uint64) (bool, error) {
	if p == nil || p.Debt == 0 {
		return false, nil
	}
	ratio, err := PositionRatio(p, rate)
	if err != nil {
		return false, err
	}
	return ratio < threshold, nil
}

func subClamped(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
