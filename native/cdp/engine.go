package cdp

import (
	"errors"
	"fmt"

	"stakevault/core/epoch"
	protoerrors "stakevault/core/errors"
	"stakevault/core/events"
	nativecommon "stakevault/native/common"
	"stakevault/native/vault"
)

var (
	errNilState  = errors.New("cdp engine: state not configured")
	errNilLedger = errors.New("cdp engine: token ledger not configured")
	errNilClock  = errors.New("cdp engine: time source not configured")
)

const moduleName = "cdp"

type engineState interface {
	GetRegistry() (*vault.Registry, error)
	GetVault(id uint64) (*vault.Vault, error)
	GetController() (*Controller, error)
	PutController(controller *Controller) error
	GetPosition(owner [20]byte, vaultID uint64) (*Position, error)
	PutPosition(position *Position) error
}

// Engine runs the collateralised-debt lifecycle against vault shares. It reads
// vault exchange rates but never changes vault share totals; collateral only
// moves between a user and the position's custody.
type Engine struct {
	state   engineState
	ledger  vault.TokenLedger
	clock   epoch.Source
	emitter events.Emitter
	params  Params
}

// NewEngine constructs a CDP engine. params are applied when the controller is
// initialised.
func NewEngine(params Params) *Engine {
	return &Engine{params: params, emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the token ledger capability.
func (e *Engine) SetLedger(ledger vault.TokenLedger) { e.ledger = ledger }

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

// InitializeController creates the controller singleton.
func (e *Engine) InitializeController() (*Controller, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.params.Validate(); err != nil {
		return nil, err
	}
	existing, err := e.state.GetController()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, protoerrors.ErrRegistryExists
	}
	controller := &Controller{
		MinCollateralRatio:   e.params.MinCollateralRatioBps,
		LiquidationThreshold: e.params.LiquidationThresholdBps,
		LiquidationBonus:     e.params.LiquidationBonusBps,
	}
	if err := e.state.PutController(controller); err != nil {
		return nil, err
	}
	return controller, nil
}

// MintResult summarises a successful mint.
type MintResult struct {
	Position        *Position
	CollateralValue uint64
	CollateralRatio uint64
}

// Mint locks collateral shares from the user's balance into the position and
// mints synthetic tokens against them. The resulting position must meet the
// minimum collateral ratio; the boundary is inclusive.
func (e *Engine) Mint(user [20]byte, vaultID uint64, collateralAmount, synthAmount uint64) (*MintResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if collateralAmount == 0 || synthAmount == 0 {
		return nil, protoerrors.ErrInvalidAmount
	}
	v, err := e.loadVault(vaultID)
	if err != nil {
		return nil, err
	}
	controller, err := e.loadController()
	if err != nil {
		return nil, err
	}
	position, err := e.state.GetPosition(user, vaultID)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &Position{Owner: user, VaultID: vaultID, Controller: vault.ControllerIdentity()}
	}
	opening := position.Closed()

	rate, err := v.ExchangeRate()
	if err != nil {
		return nil, err
	}
	value, err := CollateralValue(collateralAmount, rate)
	if err != nil {
		return nil, err
	}
	newCollateral, err := vault.Add(position.Collateral, collateralAmount)
	if err != nil {
		return nil, err
	}
	newDebt, err := vault.Add(position.Debt, synthAmount)
	if err != nil {
		return nil, err
	}
	newValue, err := CollateralValue(newCollateral, rate)
	if err != nil {
		return nil, err
	}
	ratio, err := Ratio(newValue, newDebt)
	if err != nil {
		return nil, err
	}
	if ratio < controller.MinCollateralRatio {
		return nil, protoerrors.ErrInsufficientCollateral
	}

	totalMinted, err := vault.Add(controller.TotalMinted, synthAmount)
	if err != nil {
		return nil, err
	}
	totalValue, err := vault.Add(controller.TotalCollateralValue, value)
	if err != nil {
		return nil, err
	}
	active := controller.ActivePositions
	if opening {
		if active, err = vault.Add(active, 1); err != nil {
			return nil, err
		}
	}

	if err := e.ledger.Transfer(v.ShareMint, user, PositionCustody(user, vaultID), collateralAmount); err != nil {
		return nil, err
	}
	if err := e.ledger.Mint(vault.SyntheticMint(), user, synthAmount); err != nil {
		return nil, err
	}
	position.Collateral = newCollateral
	position.Debt = newDebt
	position.LastUpdateEpoch = e.clock.Epoch()
	controller.TotalMinted = totalMinted
	controller.TotalCollateralValue = totalValue
	controller.ActivePositions = active
	if err := e.state.PutPosition(position); err != nil {
		return nil, err
	}
	if err := e.state.PutController(controller); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.SyntheticMinted{
		VaultID:         vaultID,
		User:            user,
		Collateral:      collateralAmount,
		Minted:          synthAmount,
		CollateralRatio: ratio,
	})
	return &MintResult{Position: position, CollateralValue: value, CollateralRatio: ratio}, nil
}

// BurnResult summarises a repayment.
type BurnResult struct {
	Position           *Position
	CollateralReleased uint64
	ReleasedValue      uint64
}

// Burn repays burnAmount of the user's debt and releases collateral in
// proportion. Full repayment releases all collateral.
func (e *Engine) Burn(user [20]byte, vaultID uint64, burnAmount uint64) (*BurnResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if burnAmount == 0 {
		return nil, protoerrors.ErrInvalidAmount
	}
	v, err := e.loadVault(vaultID)
	if err != nil {
		return nil, err
	}
	controller, err := e.loadController()
	if err != nil {
		return nil, err
	}
	position, err := e.loadPosition(user, vaultID)
	if err != nil {
		return nil, err
	}
	if position.Debt < burnAmount {
		return nil, protoerrors.ErrRepayExceedsDebt
	}

	release := position.Collateral
	if burnAmount < position.Debt {
		if release, err = vault.MulDiv(position.Collateral, burnAmount, position.Debt); err != nil {
			return nil, err
		}
	}
	rate, err := v.ExchangeRate()
	if err != nil {
		return nil, err
	}
	releasedValue, err := CollateralValue(release, rate)
	if err != nil {
		return nil, err
	}
	newCollateral, err := vault.Sub(position.Collateral, release)
	if err != nil {
		return nil, err
	}
	newDebt, err := vault.Sub(position.Debt, burnAmount)
	if err != nil {
		return nil, err
	}
	totalMinted, err := vault.Sub(controller.TotalMinted, burnAmount)
	if err != nil {
		return nil, err
	}
	active := controller.ActivePositions
	if newCollateral == 0 && newDebt == 0 {
		if active, err = vault.Sub(active, 1); err != nil {
			return nil, err
		}
	}

	if err := e.ledger.Burn(vault.SyntheticMint(), user, burnAmount); err != nil {
		return nil, err
	}
	if release > 0 {
		if err := e.ledger.Transfer(v.ShareMint, PositionCustody(user, vaultID), user, release); err != nil {
			return nil, err
		}
	}
	position.Collateral = newCollateral
	position.Debt = newDebt
	position.LastUpdateEpoch = e.clock.Epoch()
	controller.TotalMinted = totalMinted
	controller.TotalCollateralValue = subClamped(controller.TotalCollateralValue, releasedValue)
	controller.ActivePositions = active
	if err := e.state.PutPosition(position); err != nil {
		return nil, err
	}
	if err := e.state.PutController(controller); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.SyntheticBurned{
		VaultID:            vaultID,
		User:               user,
		Burned:             burnAmount,
		CollateralReleased: release,
	})
	return &BurnResult{Position: position, CollateralReleased: release, ReleasedValue: releasedValue}, nil
}

// LiquidationResult summarises a liquidation. Bonus is informational; the
// liquidator's profit is the seized value above the repaid debt.
type LiquidationResult struct {
	CollateralSeized uint64
	DebtRepaid       uint64
	Bonus            uint64
}

// Liquidate repays the whole debt of an undercollateralised position from the
// liquidator's synthetic balance and hands the liquidator all of its
// collateral.
func (e *Engine) Liquidate(liquidator, owner [20]byte, vaultID uint64) (*LiquidationResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	v, err := e.loadVault(vaultID)
	if err != nil {
		return nil, err
	}
	controller, err := e.loadController()
	if err != nil {
		return nil, err
	}
	position, err := e.loadPosition(owner, vaultID)
	if err != nil {
		return nil, err
	}
	rate, err := v.ExchangeRate()
	if err != nil {
		return nil, err
	}
	liquidatable, err := Liquidatable(position, rate, controller.LiquidationThreshold)
	if err != nil {
		return nil, err
	}
	if !liquidatable {
		return nil, protoerrors.ErrPositionHealthy
	}

	seized := position.Collateral
	debt := position.Debt
	value, err := CollateralValue(seized, rate)
	if err != nil {
		return nil, err
	}
	bonus, err := vault.MulDiv(seized, controller.LiquidationBonus, vault.BasisPoints)
	if err != nil {
		return nil, err
	}
	totalMinted, err := vault.Sub(controller.TotalMinted, debt)
	if err != nil {
		return nil, err
	}
	active, err := vault.Sub(controller.ActivePositions, 1)
	if err != nil {
		return nil, err
	}

	if err := e.ledger.Burn(vault.SyntheticMint(), liquidator, debt); err != nil {
		return nil, err
	}
	if seized > 0 {
		if err := e.ledger.Transfer(v.ShareMint, PositionCustody(owner, vaultID), liquidator, seized); err != nil {
			return nil, err
		}
	}
	position.Collateral = 0
	position.Debt = 0
	position.LastUpdateEpoch = e.clock.Epoch()
	controller.TotalMinted = totalMinted
	controller.TotalCollateralValue = subClamped(controller.TotalCollateralValue, value)
	controller.ActivePositions = active
	if err := e.state.PutPosition(position); err != nil {
		return nil, err
	}
	if err := e.state.PutController(controller); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.PositionLiquidated{
		VaultID:          vaultID,
		Liquidator:       liquidator,
		Owner:            owner,
		CollateralSeized: seized,
		DebtRepaid:       debt,
		Bonus:            bonus,
	})
	return &LiquidationResult{CollateralSeized: seized, DebtRepaid: debt, Bonus: bonus}, nil
}

// Controller returns the controller singleton.
func (e *Engine) Controller() (*Controller, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadController()
}

// Position returns the owner's position against a vault.
func (e *Engine) Position(owner [20]byte, vaultID uint64) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadPosition(owner, vaultID)
}

// PositionRatio returns the position's current collateralisation in basis
// points, or Unbounded when it carries no debt.
func (e *Engine) PositionRatio(owner [20]byte, vaultID uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	position, rate, err := e.positionAndRate(owner, vaultID)
	if err != nil {
		return 0, err
	}
	return PositionRatio(position, rate)
}

// IsLiquidatable reports whether the position is strictly below the
// liquidation threshold.
func (e *Engine) IsLiquidatable(owner [20]byte, vaultID uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	controller, err := e.loadController()
	if err != nil {
		return false, err
	}
	position, rate, err := e.positionAndRate(owner, vaultID)
	if err != nil {
		return false, err
	}
	return Liquidatable(position, rate, controller.LiquidationThreshold)
}

// ControllerRatio returns total collateral value over total minted in basis
// points, or Unbounded when nothing is minted.
func (e *Engine) ControllerRatio() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	controller, err := e.loadController()
	if err != nil {
		return 0, err
	}
	return Ratio(controller.TotalCollateralValue, controller.TotalMinted)
}

func (e *Engine) guard() error {
	registry, err := e.state.GetRegistry()
	if err != nil {
		return err
	}
	if registry == nil {
		return protoerrors.ErrRegistryMissing
	}
	return nativecommon.Guard(registry, moduleName)
}

func (e *Engine) positionAndRate(owner [20]byte, vaultID uint64) (*Position, uint64, error) {
	position, err := e.loadPosition(owner, vaultID)
	if err != nil {
		return nil, 0, err
	}
	v, err := e.loadVault(vaultID)
	if err != nil {
		return nil, 0, err
	}
	rate, err := v.ExchangeRate()
	if err != nil {
		return nil, 0, err
	}
	return position, rate, nil
}

func (e *Engine) loadController() (*Controller, error) {
	controller, err := e.state.GetController()
	if err != nil {
		return nil, err
	}
	if controller == nil {
		return nil, protoerrors.ErrControllerMissing
	}
	return controller, nil
}

func (e *Engine) loadVault(id uint64) (*vault.Vault, error) {
	v, err := e.state.GetVault(id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("vault %d: %w", id, protoerrors.ErrVaultNotFound)
	}
	return v, nil
}

func (e *Engine) loadPosition(owner [20]byte, vaultID uint64) (*Position, error) {
	position, err := e.state.GetPosition(owner, vaultID)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, fmt.Errorf("position in vault %d: %w", vaultID, protoerrors.ErrPositionNotFound)
	}
	return position, nil
}
