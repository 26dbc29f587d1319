package vault

import "fmt"

const (
	// DefaultProtocolFeeBps routes 1% of rewards to the treasury.
	DefaultProtocolFeeBps uint16 = 100
	// DefaultMaxOperatorFeeBps caps operator fees at 15%.
	DefaultMaxOperatorFeeBps uint16 = 1500
	// DefaultMinStakeAmount is the smallest accepted deposit (0.1 of the base
	// asset at 9 decimals).
	DefaultMinStakeAmount uint64 = 100_000_000
	// DefaultMaxNameLength bounds vault names in bytes.
	DefaultMaxNameLength = 32
)

// Params captures the configurable limits applied by the vault engine.
type Params struct {
	ProtocolFeeBps    uint16
	MaxOperatorFeeBps uint16
	MinStakeAmount    uint64
	MaxNameLength     int
}

// DefaultParams returns the production limits.
func DefaultParams() Params {
	return Params{
		ProtocolFeeBps:    DefaultProtocolFeeBps,
		MaxOperatorFeeBps: DefaultMaxOperatorFeeBps,
		MinStakeAmount:    DefaultMinStakeAmount,
		MaxNameLength:     DefaultMaxNameLength,
	}
}

// Validate keeps configured limits within the protocol's fixed bounds: the
// operator fee may only be lowered, the minimum stake only raised, and names
// must fit the fixed 32-byte record field.
func (p Params) Validate() error {
	if uint64(p.ProtocolFeeBps) > BasisPoints {
		return fmt.Errorf("protocol fee %d exceeds %d bps", p.ProtocolFeeBps, BasisPoints)
	}
	if p.MaxOperatorFeeBps > DefaultMaxOperatorFeeBps {
		return fmt.Errorf("max operator fee %d exceeds %d bps", p.MaxOperatorFeeBps, DefaultMaxOperatorFeeBps)
	}
	if p.MinStakeAmount < DefaultMinStakeAmount {
		return fmt.Errorf("min stake amount %d below %d", p.MinStakeAmount, DefaultMinStakeAmount)
	}
	if p.MaxNameLength <= 0 || p.MaxNameLength > DefaultMaxNameLength {
		return fmt.Errorf("max name length %d outside 1..%d bytes", p.MaxNameLength, DefaultMaxNameLength)
	}
	return nil
}
