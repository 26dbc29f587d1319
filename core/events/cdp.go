package events

import "stakevault/core/types"

const (
	// TypeSyntheticMinted is emitted when collateral is locked and synthetic
	// tokens are minted against it.
	TypeSyntheticMinted = "cdp.minted"
	// TypeSyntheticBurned is emitted when debt is repaid and collateral is
	// released.
	TypeSyntheticBurned = "cdp.burned"
	// TypePositionLiquidated is emitted when an undercollateralised position
	// is force-closed.
	TypePositionLiquidated = "cdp.liquidated"
)

// SyntheticMinted captures a mint against vault-share collateral.
type SyntheticMinted struct {
	VaultID         uint64
	User            [20]byte
	Collateral      uint64
	Minted          uint64
	CollateralRatio uint64
}

// EventType satisfies the Event interface.
func (SyntheticMinted) EventType() string { return TypeSyntheticMinted }

// Event converts the structured payload into a broadcastable event.
func (e SyntheticMinted) Event() *types.Event {
	return &types.Event{Type: TypeSyntheticMinted, Attributes: map[string]string{
		"vault":           formatAmount(e.VaultID),
		"user":            formatIdentity(e.User),
		"collateral":      formatAmount(e.Collateral),
		"minted":          formatAmount(e.Minted),
		"collateralRatio": formatAmount(e.CollateralRatio),
	}}
}

// SyntheticBurned captures a repayment.
type SyntheticBurned struct {
	VaultID            uint64
	User               [20]byte
	Burned             uint64
	CollateralReleased uint64
}

// EventType satisfies the Event interface.
func (SyntheticBurned) EventType() string { return TypeSyntheticBurned }

// Event converts the structured payload into a broadcastable event.
func (e SyntheticBurned) Event() *types.Event {
	return &types.Event{Type: TypeSyntheticBurned, Attributes: map[string]string{
		"vault":              formatAmount(e.VaultID),
		"user":               formatIdentity(e.User),
		"burned":             formatAmount(e.Burned),
		"collateralReleased": formatAmount(e.CollateralReleased),
	}}
}

// PositionLiquidated captures a full liquidation. Bonus is informational: the
// liquidator's profit is the gap between seized collateral value and the debt
// repaid.
type PositionLiquidated struct {
	VaultID          uint64
	Liquidator       [20]byte
	Owner            [20]byte
	CollateralSeized uint64
	DebtRepaid       uint64
	Bonus            uint64
}

// EventType satisfies the Event interface.
func (PositionLiquidated) EventType() string { return TypePositionLiquidated }

// Event converts the structured payload into a broadcastable event.
func (e PositionLiquidated) Event() *types.Event {
	return &types.Event{Type: TypePositionLiquidated, Attributes: map[string]string{
		"vault":            formatAmount(e.VaultID),
		"liquidator":       formatIdentity(e.Liquidator),
		"owner":            formatIdentity(e.Owner),
		"collateralSeized": formatAmount(e.CollateralSeized),
		"debtRepaid":       formatAmount(e.DebtRepaid),
		"bonus":            formatAmount(e.Bonus),
	}}
}
