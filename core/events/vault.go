package events

import (
	"strconv"

	"stakevault/core/types"
)

const (
	// TypeRegistryInitialized is emitted once when the protocol registry and
	// collateral controller are created.
	TypeRegistryInitialized = "protocol.initialized"
	// TypeProtocolPauseChanged records authority pause toggles.
	TypeProtocolPauseChanged = "protocol.pauseChanged"
	// TypeVaultCreated is emitted when an operator opens a new staking vault.
	TypeVaultCreated = "vault.created"
	// TypeVaultDepositsToggled records operator changes to deposit acceptance.
	TypeVaultDepositsToggled = "vault.depositsToggled"
	// TypeDepositMade captures a deposit and the shares minted for it.
	TypeDepositMade = "vault.deposit"
	// TypeStakeDelegated captures buffered liquidity marked as delegated.
	TypeStakeDelegated = "vault.stakeDelegated"
	// TypeRewardsDistributed captures a balance report and its fee split.
	TypeRewardsDistributed = "vault.rewardsDistributed"
)

// RegistryInitialized captures protocol bootstrap.
type RegistryInitialized struct {
	Authority      [20]byte
	Treasury       [20]byte
	ProtocolFeeBps uint16
}

// EventType satisfies the Event interface.
func (RegistryInitialized) EventType() string { return TypeRegistryInitialized }

// Event converts the structured payload into a broadcastable event.
func (e RegistryInitialized) Event() *types.Event {
	return &types.Event{Type: TypeRegistryInitialized, Attributes: map[string]string{
		"authority":      formatIdentity(e.Authority),
		"treasury":       formatIdentity(e.Treasury),
		"protocolFeeBps": strconv.FormatUint(uint64(e.ProtocolFeeBps), 10),
	}}
}

// ProtocolPauseChanged captures the global pause flag transition.
type ProtocolPauseChanged struct {
	Authority [20]byte
	Paused    bool
}

// EventType satisfies the Event interface.
func (ProtocolPauseChanged) EventType() string { return TypeProtocolPauseChanged }

// Event converts the structured payload into a broadcastable event.
func (e ProtocolPauseChanged) Event() *types.Event {
	return &types.Event{Type: TypeProtocolPauseChanged, Attributes: map[string]string{
		"authority": formatIdentity(e.Authority),
		"paused":    strconv.FormatBool(e.Paused),
	}}
}

// VaultCreated captures the parameters of a newly opened vault.
type VaultCreated struct {
	VaultID     uint64
	Operator    [20]byte
	ShareMint   [20]byte
	FeeBps      uint16
	MaxCapacity uint64
	Name        string
}

// EventType satisfies the Event interface.
func (VaultCreated) EventType() string { return TypeVaultCreated }

// Event converts the structured payload into a broadcastable event.
func (e VaultCreated) Event() *types.Event {
	return &types.Event{Type: TypeVaultCreated, Attributes: map[string]string{
		"vault":       formatAmount(e.VaultID),
		"operator":    formatIdentity(e.Operator),
		"shareMint":   formatCustody(e.ShareMint),
		"feeBps":      strconv.FormatUint(uint64(e.FeeBps), 10),
		"maxCapacity": formatAmount(e.MaxCapacity),
		"name":        e.Name,
	}}
}

// VaultDepositsToggled captures the accepting-deposits switch.
type VaultDepositsToggled struct {
	VaultID   uint64
	Accepting bool
}

// EventType satisfies the Event interface.
func (VaultDepositsToggled) EventType() string { return TypeVaultDepositsToggled }

// Event converts the structured payload into a broadcastable event.
func (e VaultDepositsToggled) Event() *types.Event {
	return &types.Event{Type: TypeVaultDepositsToggled, Attributes: map[string]string{
		"vault":     formatAmount(e.VaultID),
		"accepting": strconv.FormatBool(e.Accepting),
	}}
}

// DepositMade captures a deposit into a vault.
type DepositMade struct {
	VaultID      uint64
	User         [20]byte
	Amount       uint64
	SharesMinted uint64
	ExchangeRate uint64
}

// EventType satisfies the Event interface.
func (DepositMade) EventType() string { return TypeDepositMade }

// Event converts the structured payload into a broadcastable event.
func (e DepositMade) Event() *types.Event {
	return &types.Event{Type: TypeDepositMade, Attributes: map[string]string{
		"vault":        formatAmount(e.VaultID),
		"user":         formatIdentity(e.User),
		"amount":       formatAmount(e.Amount),
		"sharesMinted": formatAmount(e.SharesMinted),
		"exchangeRate": formatAmount(e.ExchangeRate),
	}}
}

// StakeDelegated captures delegation intent recorded against a vault.
type StakeDelegated struct {
	VaultID          uint64
	Operator         [20]byte
	Amount           uint64
	ActiveValidators uint16
}

// EventType satisfies the Event interface.
func (StakeDelegated) EventType() string { return TypeStakeDelegated }

// Event converts the structured payload into a broadcastable event.
func (e StakeDelegated) Event() *types.Event {
	return &types.Event{Type: TypeStakeDelegated, Attributes: map[string]string{
		"vault":            formatAmount(e.VaultID),
		"operator":         formatIdentity(e.Operator),
		"amount":           formatAmount(e.Amount),
		"activeValidators": strconv.FormatUint(uint64(e.ActiveValidators), 10),
	}}
}

// RewardsDistributed captures the outcome of a balance report.
type RewardsDistributed struct {
	VaultID         uint64
	Epoch           uint64
	TotalRewards    uint64
	ProtocolFee     uint64
	OperatorFee     uint64
	StakerRewards   uint64
	ProtocolShares  uint64
	OperatorShares  uint64
	NewExchangeRate uint64
}

// EventType satisfies the Event interface.
func (RewardsDistributed) EventType() string { return TypeRewardsDistributed }

// Event converts the structured payload into a broadcastable event.
func (e RewardsDistributed) Event() *types.Event {
	return &types.Event{Type: TypeRewardsDistributed, Attributes: map[string]string{
		"vault":           formatAmount(e.VaultID),
		"epoch":           formatAmount(e.Epoch),
		"totalRewards":    formatAmount(e.TotalRewards),
		"protocolFee":     formatAmount(e.ProtocolFee),
		"operatorFee":     formatAmount(e.OperatorFee),
		"stakerRewards":   formatAmount(e.StakerRewards),
		"protocolShares":  formatAmount(e.ProtocolShares),
		"operatorShares":  formatAmount(e.OperatorShares),
		"newExchangeRate": formatAmount(e.NewExchangeRate),
	}}
}
