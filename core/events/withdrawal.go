package events

import (
	"strconv"

	"stakevault/core/types"
)

const (
	// TypeWithdrawalRequested is emitted when shares are burned for a ticket.
	TypeWithdrawalRequested = "withdrawal.requested"
	// TypeWithdrawalCompleted is emitted when a ticket is paid out.
	TypeWithdrawalCompleted = "withdrawal.completed"
)

// WithdrawalRequested captures ticket creation.
type WithdrawalRequested struct {
	VaultID           uint64
	User              [20]byte
	TicketID          uint64
	SharesBurned      uint64
	ExpectedLiquidity uint64
	ReadyToClaim      bool
}

// EventType satisfies the Event interface.
func (WithdrawalRequested) EventType() string { return TypeWithdrawalRequested }

// Event converts the structured payload into a broadcastable event.
func (e WithdrawalRequested) Event() *types.Event {
	return &types.Event{Type: TypeWithdrawalRequested, Attributes: map[string]string{
		"vault":             formatAmount(e.VaultID),
		"user":              formatIdentity(e.User),
		"ticket":            formatAmount(e.TicketID),
		"sharesBurned":      formatAmount(e.SharesBurned),
		"expectedLiquidity": formatAmount(e.ExpectedLiquidity),
		"readyToClaim":      strconv.FormatBool(e.ReadyToClaim),
	}}
}

// WithdrawalCompleted captures a ticket payout.
type WithdrawalCompleted struct {
	VaultID  uint64
	User     [20]byte
	TicketID uint64
	Amount   uint64
}

// EventType satisfies the Event interface.
func (WithdrawalCompleted) EventType() string { return TypeWithdrawalCompleted }

// Event converts the structured payload into a broadcastable event.
func (e WithdrawalCompleted) Event() *types.Event {
	return &types.Event{Type: TypeWithdrawalCompleted, Attributes: map[string]string{
		"vault":  formatAmount(e.VaultID),
		"user":   formatIdentity(e.User),
		"ticket": formatAmount(e.TicketID),
		"amount": formatAmount(e.Amount),
	}}
}
