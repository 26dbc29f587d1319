package cdp

import (
	"errors"
	"testing"

	protoerrors "stakevault/core/errors"
	"stakevault/core/events"
	"stakevault/native/vault"
)

func TestInitializeControllerOnce(t *testing.T) {
	h := newTestHarness(t)
	controller, err := h.engine.Controller()
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	if controller.MinCollateralRatio != 11_000 || controller.LiquidationThreshold != 10_500 || controller.LiquidationBonus != 500 {
		t.Fatalf("unexpected controller params: %+v", controller)
	}
	if _, err := h.engine.InitializeController(); !errors.Is(err, protoerrors.ErrRegistryExists) {
		t.Fatalf("expected exists error, got %v", err)
	}
}

func TestMintCollateralRatioBoundary(t *testing.T) {
	h := newTestHarness(t)
	user := makeIdentity(0xC1)
	h.giveShares(user, 1_000_000)

	if _, err := h.engine.Mint(user, 0, 10_999, 10_000); !errors.Is(err, protoerrors.ErrInsufficientCollateral) {
		t.Fatalf("expected insufficient collateral at 10999 bps, got %v", err)
	}
	if len(h.state.positions) != 0 {
		t.Fatalf("failed mint must not create a position")
	}

	res, err := h.engine.Mint(user, 0, 11_000, 10_000)
	if err != nil {
		t.Fatalf("mint at 11000 bps: %v", err)
	}
	if res.CollateralRatio != 11_000 || res.CollateralValue != 11_000 {
		t.Fatalf("unexpected mint result: %+v", res)
	}
	if res.Position.Collateral != 11_000 || res.Position.Debt != 10_000 || res.Position.LastUpdateEpoch != 3 {
		t.Fatalf("unexpected position: %+v", res.Position)
	}
	if res.Position.Controller != vault.ControllerIdentity() {
		t.Fatalf("position not bound to controller")
	}

	if got := h.ledger.balance(h.vault.ShareMint, PositionCustody(user, 0)); got != 11_000 {
		t.Fatalf("custody holds %d shares", got)
	}
	if got := h.ledger.balance(vault.SyntheticMint(), user); got != 10_000 {
		t.Fatalf("user holds %d synthetic", got)
	}
	if got := h.ledger.balance(h.vault.ShareMint, user); got != 1_000_000-11_000 {
		t.Fatalf("user share balance %d", got)
	}
	controller, _ := h.engine.Controller()
	if controller.TotalMinted != 10_000 || controller.TotalCollateralValue != 11_000 || controller.ActivePositions != 1 {
		t.Fatalf("unexpected controller: %+v", controller)
	}
	ratio, err := h.engine.ControllerRatio()
	if err != nil || ratio != 11_000 {
		t.Fatalf("unexpected controller ratio %d (%v)", ratio, err)
	}
}

func TestMintAddsToExistingPosition(t *testing.T) {
	h := newTestHarness(t)
	user := makeIdentity(0xC1)
	h.giveShares(user, 1_000_000)

	if _, err := h.engine.Mint(user, 0, 11_000, 10_000); err != nil {
		t.Fatalf("first mint: %v", err)
	}
	// Extra collateral alone cannot carry a second mint below the floor.
	if _, err := h.engine.Mint(user, 0, 1, 1_000); !errors.Is(err, protoerrors.ErrInsufficientCollateral) {
		t.Fatalf("expected insufficient collateral, got %v", err)
	}
	if _, err := h.engine.Mint(user, 0, 1_100, 1_000); err != nil {
		t.Fatalf("second mint: %v", err)
	}
	controller, _ := h.engine.Controller()
	if controller.ActivePositions != 1 || controller.TotalMinted != 11_000 {
		t.Fatalf("unexpected controller: %+v", controller)
	}
}

func TestMintRejectsZeroAmountsAndPause(t *testing.T) {
	h := newTestHarness(t)
	user := makeIdentity(0xC1)
	h.giveShares(user, 1_000_000)

	if _, err := h.engine.Mint(user, 0, 0, 10); !errors.Is(err, protoerrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := h.engine.Mint(user, 0, 10, 0); !errors.Is(err, protoerrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := h.engine.Mint(user, 9, 11_000, 10_000); !errors.Is(err, protoerrors.ErrVaultNotFound) {
		t.Fatalf("expected vault not found, got %v", err)
	}
	h.state.registry.Paused = true
	if _, err := h.engine.Mint(user, 0, 11_000, 10_000); !errors.Is(err, protoerrors.ErrProtocolPaused) {
		t.Fatalf("expected paused, got %v", err)
	}
}

func TestBurnReleasesCollateralProportionally(t *testing.T) {
	h := newTestHarness(t)
	user := makeIdentity(0xC1)
	h.giveShares(user, 1_000_000)
	if _, err := h.engine.Mint(user, 0, 11_000, 10_000); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := h.engine.Burn(user, 0, 10_001); !errors.Is(err, protoerrors.ErrRepayExceedsDebt) {
		t.Fatalf("expected repay exceeds debt, got %v", err)
	}
	if _, err := h.engine.Burn(user, 0, 0); !errors.Is(err, protoerrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}

	res, err := h.engine.Burn(user, 0, 2_500)
	if err != nil {
		t.Fatalf("partial burn: %v", err)
	}
	if res.CollateralReleased != 2_750 || res.Position.Collateral != 8_250 || res.Position.Debt != 7_500 {
		t.Fatalf("unexpected partial burn: %+v %+v", res, res.Position)
	}
	controller, _ := h.engine.Controller()
	if controller.ActivePositions != 1 || controller.TotalMinted != 7_500 || controller.TotalCollateralValue != 8_250 {
		t.Fatalf("unexpected controller after partial burn: %+v", controller)
	}

	res, err = h.engine.Burn(user, 0, 7_500)
	if err != nil {
		t.Fatalf("full burn: %v", err)
	}
	if res.CollateralReleased != 8_250 || !res.Position.Closed() {
		t.Fatalf("full repayment must release all collateral: %+v", res.Position)
	}
	controller, _ = h.engine.Controller()
	if controller.ActivePositions != 0 || controller.TotalMinted != 0 || controller.TotalCollateralValue != 0 {
		t.Fatalf("unexpected controller after close: %+v", controller)
	}
	if got := h.ledger.balance(h.vault.ShareMint, user); got != 1_000_000 {
		t.Fatalf("user should hold all shares again, got %d", got)
	}
	if h.ledger.supply[vault.SyntheticMint()] != 0 {
		t.Fatalf("synthetic supply should be zero")
	}
}

func TestBurnAfterRateIncreaseClampsCollateralValue(t *testing.T) {
	h := newTestHarness(t)
	user := makeIdentity(0xC1)
	h.giveShares(user, 1_000_000)
	if _, err := h.engine.Mint(user, 0, 11_000, 10_000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	h.setRate(2_000_000_000)

	if _, err := h.engine.Burn(user, 0, 10_000); err != nil {
		t.Fatalf("burn: %v", err)
	}
	controller, _ := h.engine.Controller()
	if controller.TotalCollateralValue != 0 {
		t.Fatalf("collateral value should clamp at zero, got %d", controller.TotalCollateralValue)
	}
}

func seedPosition(h *testHarness, owner [20]byte, collateral, debt uint64) {
	h.state.positions[positionKey{owner: owner, vault: 0}] = &Position{
		Owner:      owner,
		VaultID:    0,
		Controller: vault.ControllerIdentity(),
		Collateral: collateral,
		Debt:       debt,
	}
	h.ledger.credit(h.vault.ShareMint, PositionCustody(owner, 0), collateral)
	h.state.controller.TotalMinted += debt
	h.state.controller.TotalCollateralValue += collateral
	h.state.controller.ActivePositions++
}

func TestLiquidationThresholdIsStrict(t *testing.T) {
	h := newTestHarness(t)
	owner := makeIdentity(0xC1)
	liquidator := makeIdentity(0xD1)
	seedPosition(h, owner, 10_500, 10_000)
	h.ledger.credit(vault.SyntheticMint(), liquidator, 10_000)

	ratio, err := h.engine.PositionRatio(owner, 0)
	if err != nil || ratio != 10_500 {
		t.Fatalf("unexpected ratio %d (%v)", ratio, err)
	}
	liquidatable, err := h.engine.IsLiquidatable(owner, 0)
	if err != nil || liquidatable {
		t.Fatalf("position at the threshold must not be liquidatable")
	}
	if _, err := h.engine.Liquidate(liquidator, owner, 0); !errors.Is(err, protoerrors.ErrPositionHealthy) {
		t.Fatalf("expected healthy position, got %v", err)
	}

	// A 0.01% rate drop pushes the position under the threshold.
	h.setRate(999_900_000)
	ratio, _ = h.engine.PositionRatio(owner, 0)
	if ratio != 10_498 {
		t.Fatalf("unexpected ratio after rate drop: %d", ratio)
	}
	liquidatable, err = h.engine.IsLiquidatable(owner, 0)
	if err != nil || !liquidatable {
		t.Fatalf("expected liquidatable position")
	}
}

func TestZeroDebtIsNeverLiquidatable(t *testing.T) {
	h := newTestHarness(t)
	owner := makeIdentity(0xC1)
	seedPosition(h, owner, 1, 0)
	h.setRate(1)

	ratio, err := h.engine.PositionRatio(owner, 0)
	if err != nil || ratio != Unbounded {
		t.Fatalf("expected unbounded ratio, got %d (%v)", ratio, err)
	}
	liquidatable, err := h.engine.IsLiquidatable(owner, 0)
	if err != nil || liquidatable {
		t.Fatalf("debt-free position must not be liquidatable")
	}
	if _, err := h.engine.Liquidate(makeIdentity(0xD1), owner, 0); !errors.Is(err, protoerrors.ErrPositionHealthy) {
		t.Fatalf("expected healthy position, got %v", err)
	}
}

func TestLiquidateSeizesAllCollateral(t *testing.T) {
	h := newTestHarness(t)
	owner := makeIdentity(0xC1)
	liquidator := makeIdentity(0xD1)
	seedPosition(h, owner, 10_499, 10_000)
	h.ledger.credit(vault.SyntheticMint(), liquidator, 10_000)
	h.ledger.supply[vault.SyntheticMint()] = 10_000

	res, err := h.engine.Liquidate(liquidator, owner, 0)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if res.CollateralSeized != 10_499 || res.DebtRepaid != 10_000 || res.Bonus != 524 {
		t.Fatalf("unexpected liquidation result: %+v", res)
	}
	if got := h.ledger.balance(h.vault.ShareMint, liquidator); got != 10_499 {
		t.Fatalf("liquidator holds %d shares", got)
	}
	if got := h.ledger.balance(vault.SyntheticMint(), liquidator); got != 0 {
		t.Fatalf("liquidator should have burned the debt, holds %d", got)
	}
	position, _ := h.engine.Position(owner, 0)
	if !position.Closed() {
		t.Fatalf("position should be zeroed: %+v", position)
	}
	controller, _ := h.engine.Controller()
	if controller.ActivePositions != 0 || controller.TotalMinted != 0 || controller.TotalCollateralValue != 0 {
		t.Fatalf("unexpected controller: %+v", controller)
	}

	evts := h.buffer.Events()
	last := evts[len(evts)-1]
	if last.EventType() != events.TypePositionLiquidated {
		t.Fatalf("unexpected last event %s", last.EventType())
	}
	if got := last.Event().Attribute("bonus"); got != "524" {
		t.Fatalf("unexpected bonus attribute %q", got)
	}

	// Reopening a liquidated position counts it as active again.
	h.giveShares(owner, 11_000)
	if _, err := h.engine.Mint(owner, 0, 11_000, 10_000); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	controller, _ = h.engine.Controller()
	if controller.ActivePositions != 1 {
		t.Fatalf("expected reopened position to be active, got %d", controller.ActivePositions)
	}
}

func TestLiquidateRequiresSyntheticBalance(t *testing.T) {
	h := newTestHarness(t)
	owner := makeIdentity(0xC1)
	liquidator := makeIdentity(0xD1)
	seedPosition(h, owner, 10_000, 10_000)

	if _, err := h.engine.Liquidate(liquidator, owner, 0); !errors.Is(err, errMockInsufficient) {
		t.Fatalf("expected ledger failure, got %v", err)
	}
	position, _ := h.engine.Position(owner, 0)
	if position.Debt != 10_000 {
		t.Fatalf("failed liquidation must not touch the position")
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params: %v", err)
	}
	bad := DefaultParams()
	bad.LiquidationThresholdBps = bad.MinCollateralRatioBps
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected threshold at minimum ratio to be rejected")
	}
}
