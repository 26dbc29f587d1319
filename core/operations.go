package core

import (
	"context"
	"log/slog"

	protoerrors "stakevault/core/errors"
	"stakevault/native/cdp"
	"stakevault/native/vault"
)

// InitializeRegistry creates the protocol registry and the collateral
// controller in a single transaction.
func (p *Protocol) InitializeRegistry(ctx context.Context, authority, treasury [20]byte) (*vault.Registry, error) {
	var registry *vault.Registry
	err := p.execute(ctx, &operation{name: "initialize_registry", caller: authority}, func(e engines) error {
		var err error
		if registry, err = e.vaults.InitializeRegistry(authority, treasury); err != nil {
			return err
		}
		_, err = e.cdps.InitializeController()
		return err
	})
	if err != nil {
		return nil, err
	}
	return registry, nil
}

// SetPaused toggles the global pause flag.
func (p *Protocol) SetPaused(ctx context.Context, caller [20]byte, paused bool) error {
	op := &operation{name: "set_paused", caller: caller, attrs: []slog.Attr{slog.Bool("paused", paused)}}
	return p.execute(ctx, op, func(e engines) error {
		return e.vaults.SetPaused(caller, paused)
	})
}

// CreateVault registers a new vault operated by operator.
func (p *Protocol) CreateVault(ctx context.Context, operator [20]byte, feeBps uint16, maxCapacity uint64, name string) (*vault.Vault, error) {
	var created *vault.Vault
	op := &operation{name: "create_vault", caller: operator, attrs: []slog.Attr{
		slog.String("name", name),
		slog.Uint64("fee_bps", uint64(feeBps)),
	}}
	err := p.execute(ctx, op, func(e engines) error {
		var err error
		created, err = e.vaults.CreateVault(operator, feeBps, maxCapacity, name)
		if err == nil {
			// Record gauges for the new vault on commit.
			op.vaultID, op.scoped = created.ID, true
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SetAcceptingDeposits opens or closes a vault to new deposits.
func (p *Protocol) SetAcceptingDeposits(ctx context.Context, caller [20]byte, vaultID uint64, accepting bool) error {
	op := &operation{name: "set_accepting_deposits", caller: caller, vaultID: vaultID, scoped: true,
		attrs: []slog.Attr{slog.Bool("accepting", accepting)}}
	return p.execute(ctx, op, func(e engines) error {
		return e.vaults.SetAcceptingDeposits(caller, vaultID, accepting)
	})
}

// Deposit stakes amount of the base asset into a vault.
func (p *Protocol) Deposit(ctx context.Context, user [20]byte, vaultID, amount uint64) (*vault.DepositResult, error) {
	var result *vault.DepositResult
	op := &operation{name: "deposit", caller: user, vaultID: vaultID, scoped: true,
		attrs: []slog.Attr{slog.Uint64("amount", amount)}}
	err := p.execute(ctx, op, func(e engines) error {
		var err error
		result, err = e.vaults.Deposit(user, vaultID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReportBalance records staking rewards for a vault.
func (p *Protocol) ReportBalance(ctx context.Context, caller [20]byte, vaultID, newTotalStaked uint64) (vault.RewardSplit, error) {
	var split vault.RewardSplit
	op := &operation{name: "report_balance", caller: caller, vaultID: vaultID, scoped: true,
		attrs: []slog.Attr{slog.Uint64("total_staked", newTotalStaked)}}
	err := p.execute(ctx, op, func(e engines) error {
		var err error
		split, err = e.vaults.ReportBalance(caller, vaultID, newTotalStaked)
		return err
	})
	if err != nil {
		return vault.RewardSplit{}, err
	}
	return split, nil
}

// DelegateStake moves buffered liquidity into the staked bucket.
func (p *Protocol) DelegateStake(ctx context.Context, caller [20]byte, vaultID, amount uint64) error {
	op := &operation{name: "delegate_stake", caller: caller, vaultID: vaultID, scoped: true,
		attrs: []slog.Attr{slog.Uint64("amount", amount)}}
	return p.execute(ctx, op, func(e engines) error {
		return e.vaults.DelegateStake(caller, vaultID, amount)
	})
}

// MintSynthetic locks vault shares and mints synthetic debt against them.
func (p *Protocol) MintSynthetic(ctx context.Context, user [20]byte, vaultID, collateral, amount uint64) (*cdp.MintResult, error) {
	var result *cdp.MintResult
	op := &operation{name: "mint_synthetic", caller: user, vaultID: vaultID, scoped: true, attrs: []slog.Attr{
		slog.Uint64("collateral", collateral),
		slog.Uint64("amount", amount),
	}}
	err := p.execute(ctx, op, func(e engines) error {
		var err error
		result, err = e.cdps.Mint(user, vaultID, collateral, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BurnSynthetic repays debt and releases proportional collateral.
func (p *Protocol) BurnSynthetic(ctx context.Context, user [20]byte, vaultID, amount uint64) (*cdp.BurnResult, error) {
	var result *cdp.BurnResult
	op := &operation{name: "burn_synthetic", caller: user, vaultID: vaultID, scoped: true,
		attrs: []slog.Attr{slog.Uint64("amount", amount)}}
	err := p.execute(ctx, op, func(e engines) error {
		var err error
		result, err = e.cdps.Burn(user, vaultID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Liquidate closes an undercollateralised position on behalf of liquidator.
func (p *Protocol) Liquidate(ctx context.Context, liquidator, owner [20]byte, vaultID uint64) (*cdp.LiquidationResult, error) {
	var result *cdp.LiquidationResult
	op := &operation{name: "liquidate", caller: liquidator, vaultID: vaultID, scoped: true}
	err := p.execute(ctx, op, func(e engines) error {
		var err error
		result, err = e.cdps.Liquidate(liquidator, owner, vaultID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RequestWithdrawal burns shares and queues a withdrawal ticket.
func (p *Protocol) RequestWithdrawal(ctx context.Context, user [20]byte, vaultID, shares uint64) (*vault.WithdrawalTicket, error) {
	var ticket *vault.WithdrawalTicket
	op := &operation{name: "request_withdrawal", caller: user, vaultID: vaultID, scoped: true,
		attrs: []slog.Attr{slog.Uint64("shares", shares)}}
	err := p.execute(ctx, op, func(e engines) error {
		var err error
		ticket, err = e.vaults.RequestWithdrawal(user, vaultID, shares)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// ClaimWithdrawal pays out a ready ticket.
func (p *Protocol) ClaimWithdrawal(ctx context.Context, caller [20]byte, ref vault.TicketRef) (*vault.WithdrawalTicket, error) {
	var ticket *vault.WithdrawalTicket
	op := &operation{name: "claim_withdrawal", caller: caller, vaultID: ref.VaultID, scoped: true,
		attrs: []slog.Attr{slog.Uint64("ticket", ref.ID)}}
	err := p.execute(ctx, op, func(e engines) error {
		var err error
		ticket, err = e.vaults.ClaimWithdrawal(caller, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// CreditBase records base asset bridged in for holder. Only the registry
// authority may credit balances.
func (p *Protocol) CreditBase(ctx context.Context, caller, holder [20]byte, amount uint64) error {
	op := &operation{name: "credit_base", caller: caller, attrs: []slog.Attr{slog.Uint64("amount", amount)}}
	return p.execute(ctx, op, func(e engines) error {
		registry, err := e.txn.GetRegistry()
		if err != nil {
			return err
		}
		if registry == nil {
			return protoerrors.ErrRegistryMissing
		}
		if caller != registry.Authority {
			return protoerrors.ErrUnauthorized
		}
		if amount == 0 {
			return protoerrors.ErrInvalidAmount
		}
		return e.txn.Mint(vault.BaseAsset, holder, amount)
	})
}
