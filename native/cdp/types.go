package cdp

// Controller aggregates every collateral position in the protocol. It is the
// serialisation point for mint, burn and liquidation.
type Controller struct {
	// TotalMinted is the outstanding synthetic supply across all positions.
	TotalMinted uint64
	// TotalCollateralValue is the base-asset value of locked collateral,
	// priced at the exchange rate in force when it was locked.
	TotalCollateralValue uint64
	// MinCollateralRatio is the minting floor in basis points.
	MinCollateralRatio uint64
	// LiquidationThreshold is the ratio, in basis points, below which a
	// position may be liquidated.
	LiquidationThreshold uint64
	// LiquidationBonus is reported on liquidation only.
	LiquidationBonus uint64
	// ActivePositions counts positions holding collateral or debt.
	ActivePositions uint64
}

// Position is one user's collateral and debt against one vault.
type Position struct {
	Owner           [20]byte
	VaultID         uint64
	Controller      [20]byte
	Collateral      uint64
	Debt            uint64
	LastUpdateEpoch uint64
}

// Closed reports whether the position holds neither collateral nor debt.
func (p *Position) Closed() bool {
	return p.Collateral == 0 && p.Debt == 0
}
