package vault

// Registry holds the protocol-wide parameters consulted by every engine.
type Registry struct {
	// Authority may pause the protocol and report balances for any vault.
	Authority [20]byte
	// Treasury receives the protocol share of reward fees.
	Treasury [20]byte
	// VaultCount is the number of vaults created so far and the id of the
	// next vault.
	VaultCount uint64
	// ProtocolFeeBps is the share of rewards routed to the treasury.
	ProtocolFeeBps uint16
	// Paused halts every user-facing mutation.
	Paused bool
	// SyntheticMint identifies the synthetic liquidity token.
	SyntheticMint [20]byte
	// Controller identifies the collateral controller.
	Controller [20]byte
}

// IsPaused satisfies common.PauseView. The pause switch is protocol-wide.
func (r *Registry) IsPaused(string) bool {
	return r != nil && r.Paused
}

// Vault owns the principal and share bookkeeping of one staking pool.
// TotalAssets is the sole source of truth for share value; BufferedLiquidity
// and TotalStaked are reconciled by the external staking process and need not
// sum to it.
type Vault struct {
	ID                uint64
	Operator          [20]byte
	ShareMint         [20]byte
	FeeBps            uint16
	MaxCapacity       uint64
	TotalStaked       uint64
	BufferedLiquidity uint64
	TotalShares       uint64
	TotalAssets       uint64
	LastRewardEpoch   uint64
	AcceptingDeposits bool
	Name              string
	ActiveValidators  uint16
	LifetimeRewards   uint64
}

// Clone returns a copy that can be mutated without aliasing the receiver.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

// TicketRef addresses a withdrawal ticket. ID is the per-(vault, user) request
// counter at the time the ticket was issued.
type TicketRef struct {
	VaultID uint64
	User    [20]byte
	ID      uint64
}

// WithdrawalTicket is the settlement promise issued when shares are burned.
// It is terminal once Claimed is set.
type WithdrawalTicket struct {
	VaultID           uint64
	User              [20]byte
	TicketID          uint64
	SharesBurned      uint64
	ExpectedLiquidity uint64
	RequestEpoch      uint64
	ReadyToClaim      bool
	Claimed           bool
}

// Ref returns the key under which the ticket is stored.
func (t *WithdrawalTicket) Ref() TicketRef {
	return TicketRef{VaultID: t.VaultID, User: t.User, ID: t.TicketID}
}
