package cdp

import (
	"fmt"

	"stakevault/native/vault"
)

const (
	// DefaultMinCollateralRatioBps requires 110% collateral at mint.
	DefaultMinCollateralRatioBps uint64 = 11_000
	// DefaultLiquidationThresholdBps opens liquidation below 105%.
	DefaultLiquidationThresholdBps uint64 = 10_500
	// DefaultLiquidationBonusBps is the informational liquidator bonus.
	DefaultLiquidationBonusBps uint64 = 500
)

// Params are copied into the controller when it is initialised.
type Params struct {
	MinCollateralRatioBps   uint64
	LiquidationThresholdBps uint64
	LiquidationBonusBps     uint64
}

// DefaultParams returns the production collateral parameters.
func DefaultParams() Params {
	return Params{
		MinCollateralRatioBps:   DefaultMinCollateralRatioBps,
		LiquidationThresholdBps: DefaultLiquidationThresholdBps,
		LiquidationBonusBps:     DefaultLiquidationBonusBps,
	}
}

// Validate keeps the liquidation threshold strictly below the minting floor so
// a freshly minted position is never immediately liquidatable.
func (p Params) Validate() error {
	if p.LiquidationThresholdBps == 0 {
		return fmt.Errorf("liquidation threshold must be positive")
	}
	if p.LiquidationThresholdBps >= p.MinCollateralRatioBps {
		return fmt.Errorf("liquidation threshold %d must be below minimum collateral ratio %d",
			p.LiquidationThresholdBps, p.MinCollateralRatioBps)
	}
	if p.LiquidationBonusBps > vault.BasisPoints {
		return fmt.Errorf("liquidation bonus %d exceeds %d bps", p.LiquidationBonusBps, vault.BasisPoints)
	}
	return nil
}
