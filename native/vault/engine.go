package vault

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"stakevault/core/epoch"
	protoerrors "stakevault/core/errors"
	"stakevault/core/events"
	nativecommon "stakevault/native/common"
)

var (
	errNilState  = errors.New("vault engine: state not configured")
	errNilLedger = errors.New("vault engine: token ledger not configured")
	errNilClock  = errors.New("vault engine: time source not configured")
)

const moduleName = "vault"

// TokenLedger moves vault shares, the synthetic token and the base asset.
// Every call must be atomic and must authenticate the caller against the
// source identity.
type TokenLedger interface {
	Mint(asset, to [20]byte, amount uint64) error
	Burn(asset, from [20]byte, amount uint64) error
	Transfer(asset, from, to [20]byte, amount uint64) error
}

type engineState interface {
	GetRegistry() (*Registry, error)
	PutRegistry(registry *Registry) error
	GetVault(id uint64) (*Vault, error)
	PutVault(vault *Vault) error
	GetTicket(ref TicketRef) (*WithdrawalTicket, error)
	PutTicket(ticket *WithdrawalTicket) error
	GetTicketNonce(vaultID uint64, user [20]byte) (uint64, error)
	PutTicketNonce(vaultID uint64, user [20]byte, nonce uint64) error
}

// Engine orchestrates the registry, share accounting, fee distribution and
// withdrawal-queue state transitions. The engine never blocks and performs no
// locking; the host serialises operations that touch the same records.
type Engine struct {
	state   engineState
	ledger  TokenLedger
	clock   epoch.Source
	emitter events.Emitter
	params  Params
}

// NewEngine constructs a vault engine with the supplied limits.
func NewEngine(params Params) *Engine {
	return &Engine{params: params, emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the token ledger capability.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetClock wires the epoch source.
func (e *Engine) SetClock(clock epoch.Source) { e.clock = clock }

// SetEmitter configures the sink for successful state transitions.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// Params returns the configured limits.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if e.clock == nil {
		return errNilClock
	}
	return nil
}

// InitializeRegistry creates the protocol registry. It may only run once.
func (e *Engine) InitializeRegistry(authority, treasury [20]byte) (*Registry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	existing, err := e.state.GetRegistry()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, protoerrors.ErrRegistryExists
	}
	registry := &Registry{
		Authority:      authority,
		Treasury:       treasury,
		ProtocolFeeBps: e.params.ProtocolFeeBps,
		SyntheticMint:  SyntheticMint(),
		Controller:     ControllerIdentity(),
	}
	if err := e.state.PutRegistry(registry); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.RegistryInitialized{
		Authority:      authority,
		Treasury:       treasury,
		ProtocolFeeBps: registry.ProtocolFeeBps,
	})
	return registry, nil
}

// SetPaused toggles the protocol-wide pause switch. Only the registry
// authority may call it.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	registry, err := e.loadRegistry()
	if err != nil {
		return err
	}
	if caller != registry.Authority {
		return protoerrors.ErrUnauthorized
	}
	if registry.Paused == paused {
		return nil
	}
	registry.Paused = paused
	if err := e.state.PutRegistry(registry); err != nil {
		return err
	}
	e.emitter.Emit(events.ProtocolPauseChanged{Authority: caller, Paused: paused})
	return nil
}

// CreateVault opens a vault operated by the caller.
func (e *Engine) CreateVault(operator [20]byte, feeBps uint16, maxCapacity uint64, name string) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	registry, err := e.loadRegistry()
	if err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(registry, moduleName); err != nil {
		return nil, err
	}
	if feeBps > e.params.MaxOperatorFeeBps {
		return nil, protoerrors.ErrOperatorFeeTooHigh
	}
	name = normalizeName(name)
	if len(name) > e.params.MaxNameLength {
		return nil, protoerrors.ErrVaultNameTooLong
	}

	id := registry.VaultCount
	nextCount, err := Add(registry.VaultCount, 1)
	if err != nil {
		return nil, err
	}
	vault := &Vault{
		ID:                id,
		Operator:          operator,
		ShareMint:         ShareMintFor(id),
		FeeBps:            feeBps,
		MaxCapacity:       maxCapacity,
		LastRewardEpoch:   e.clock.Epoch(),
		AcceptingDeposits: true,
		Name:              name,
	}
	registry.VaultCount = nextCount

	if err := e.state.PutVault(vault); err != nil {
		return nil, err
	}
	if err := e.state.PutRegistry(registry); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VaultCreated{
		VaultID:     id,
		Operator:    operator,
		ShareMint:   vault.ShareMint,
		FeeBps:      feeBps,
		MaxCapacity: maxCapacity,
		Name:        name,
	})
	return vault.Clone(), nil
}

// normalizeName stores names in NFC so visually identical names compare and
// measure the same.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// SetAcceptingDeposits lets the operator open or close a vault to deposits.
func (e *Engine) SetAcceptingDeposits(caller [20]byte, vaultID uint64, accepting bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	vault, err := e.loadVault(vaultID)
	if err != nil {
		return err
	}
	if caller != vault.Operator {
		return protoerrors.ErrUnauthorized
	}
	if vault.AcceptingDeposits == accepting {
		return nil
	}
	vault.AcceptingDeposits = accepting
	if err := e.state.PutVault(vault); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultDepositsToggled{VaultID: vaultID, Accepting: accepting})
	return nil
}

// DelegateStake records that buffered liquidity has been delegated to a
// validator. Only the delegation intent is tracked; the validator count is
// append-only.
func (e *Engine) DelegateStake(caller [20]byte, vaultID uint64, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	registry, err := e.loadRegistry()
	if err != nil {
		return err
	}
	if err := nativecommon.Guard(registry, moduleName); err != nil {
		return err
	}
	if amount == 0 {
		return protoerrors.ErrInvalidAmount
	}
	vault, err := e.loadVault(vaultID)
	if err != nil {
		return err
	}
	if caller != vault.Operator {
		return protoerrors.ErrUnauthorized
	}
	if vault.BufferedLiquidity < amount {
		return protoerrors.ErrInsufficientVaultBalance
	}

	buffered, err := Sub(vault.BufferedLiquidity, amount)
	if err != nil {
		return err
	}
	staked, err := Add(vault.TotalStaked, amount)
	if err != nil {
		return err
	}
	if vault.ActiveValidators == ^uint16(0) {
		return protoerrors.ErrArithmeticOverflow
	}
	vault.BufferedLiquidity = buffered
	vault.TotalStaked = staked
	vault.ActiveValidators++

	if err := e.state.PutVault(vault); err != nil {
		return err
	}
	e.emitter.Emit(events.StakeDelegated{
		VaultID:          vaultID,
		Operator:         caller,
		Amount:           amount,
		ActiveValidators: vault.ActiveValidators,
	})
	return nil
}

// Registry returns the protocol registry.
func (e *Engine) Registry() (*Registry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadRegistry()
}

// Vault returns a copy of the vault record.
func (e *Engine) Vault(id uint64) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadVault(id)
}

func (e *Engine) loadRegistry() (*Registry, error) {
	registry, err := e.state.GetRegistry()
	if err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, protoerrors.ErrRegistryMissing
	}
	return registry, nil
}

func (e *Engine) loadVault(id uint64) (*Vault, error) {
	vault, err := e.state.GetVault(id)
	if err != nil {
		return nil, err
	}
	if vault == nil {
		return nil, fmt.Errorf("vault %d: %w", id, protoerrors.ErrVaultNotFound)
	}
	return vault, nil
}
