package core

import (
	"context"

	"stakevault/native/cdp"
	"stakevault/native/vault"
)

// Registry returns the protocol registry.
func (p *Protocol) Registry(ctx context.Context) (*vault.Registry, error) {
	var registry *vault.Registry
	err := p.view(ctx, func(e engines) error {
		var err error
		registry, err = e.vaults.Registry()
		return err
	})
	return registry, err
}

// Initialized reports whether the registry exists.
func (p *Protocol) Initialized(ctx context.Context) (bool, error) {
	var ok bool
	err := p.view(ctx, func(e engines) error {
		registry, err := e.txn.GetRegistry()
		ok = registry != nil
		return err
	})
	return ok, err
}

// Vault returns a vault by id.
func (p *Protocol) Vault(ctx context.Context, id uint64) (*vault.Vault, error) {
	var v *vault.Vault
	err := p.view(ctx, func(e engines) error {
		var err error
		v, err = e.vaults.Vault(id)
		return err
	})
	return v, err
}

// Vaults returns every vault in creation order.
func (p *Protocol) Vaults(ctx context.Context) ([]*vault.Vault, error) {
	var out []*vault.Vault
	err := p.view(ctx, func(e engines) error {
		registry, err := e.vaults.Registry()
		if err != nil {
			return err
		}
		out = make([]*vault.Vault, 0, registry.VaultCount)
		for id := uint64(0); id < registry.VaultCount; id++ {
			v, err := e.vaults.Vault(id)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

// ExchangeRate returns the asset value of one share scaled by vault.RateScale.
func (p *Protocol) ExchangeRate(ctx context.Context, vaultID uint64) (uint64, error) {
	var rate uint64
	err := p.view(ctx, func(e engines) error {
		v, err := e.vaults.Vault(vaultID)
		if err != nil {
			return err
		}
		rate, err = v.ExchangeRate()
		return err
	})
	return rate, err
}

// SharesToValue converts shares to base asset at the current rate.
func (p *Protocol) SharesToValue(ctx context.Context, vaultID, shares uint64) (uint64, error) {
	var value uint64
	err := p.view(ctx, func(e engines) error {
		v, err := e.vaults.Vault(vaultID)
		if err != nil {
			return err
		}
		value, err = v.SharesToValue(shares)
		return err
	})
	return value, err
}

// Controller returns the collateral controller.
func (p *Protocol) Controller(ctx context.Context) (*cdp.Controller, error) {
	var controller *cdp.Controller
	err := p.view(ctx, func(e engines) error {
		var err error
		controller, err = e.cdps.Controller()
		return err
	})
	return controller, err
}

// ControllerRatio returns the aggregate collateral ratio in basis points.
func (p *Protocol) ControllerRatio(ctx context.Context) (uint64, error) {
	var ratio uint64
	err := p.view(ctx, func(e engines) error {
		var err error
		ratio, err = e.cdps.ControllerRatio()
		return err
	})
	return ratio, err
}

// Position returns the collateral position of owner in a vault.
func (p *Protocol) Position(ctx context.Context, owner [20]byte, vaultID uint64) (*cdp.Position, error) {
	var position *cdp.Position
	err := p.view(ctx, func(e engines) error {
		var err error
		position, err = e.cdps.Position(owner, vaultID)
		return err
	})
	return position, err
}

// PositionHealth bundles the ratio and liquidation status of a position.
type PositionHealth struct {
	Ratio        uint64
	Liquidatable bool
}

// PositionHealth evaluates a position at the current exchange rate.
func (p *Protocol) PositionHealth(ctx context.Context, owner [20]byte, vaultID uint64) (PositionHealth, error) {
	var health PositionHealth
	err := p.view(ctx, func(e engines) error {
		var err error
		if health.Ratio, err = e.cdps.PositionRatio(owner, vaultID); err != nil {
			return err
		}
		health.Liquidatable, err = e.cdps.IsLiquidatable(owner, vaultID)
		return err
	})
	return health, err
}

// Ticket returns a withdrawal ticket.
func (p *Protocol) Ticket(ctx context.Context, ref vault.TicketRef) (*vault.WithdrawalTicket, error) {
	var ticket *vault.WithdrawalTicket
	err := p.view(ctx, func(e engines) error {
		var err error
		ticket, err = e.vaults.Ticket(ref)
		return err
	})
	return ticket, err
}

// TicketReady reports whether a ticket can be claimed now.
func (p *Protocol) TicketReady(ctx context.Context, ref vault.TicketRef) (bool, error) {
	var ready bool
	err := p.view(ctx, func(e engines) error {
		var err error
		ready, err = e.vaults.TicketReady(ref)
		return err
	})
	return ready, err
}

// TicketsFor lists every ticket user holds across all vaults.
func (p *Protocol) TicketsFor(ctx context.Context, user [20]byte) ([]*vault.WithdrawalTicket, error) {
	var out []*vault.WithdrawalTicket
	err := p.view(ctx, func(e engines) error {
		registry, err := e.vaults.Registry()
		if err != nil {
			return err
		}
		for id := uint64(0); id < registry.VaultCount; id++ {
			tickets, err := e.vaults.Tickets(id, user)
			if err != nil {
				return err
			}
			out = append(out, tickets...)
		}
		return nil
	})
	return out, err
}

// Balance returns holder's balance of asset.
func (p *Protocol) Balance(ctx context.Context, asset, holder [20]byte) (uint64, error) {
	var balance uint64
	err := p.view(ctx, func(e engines) error {
		var err error
		balance, err = e.txn.Balance(asset, holder)
		return err
	})
	return balance, err
}

// TokenSupply returns the outstanding supply of asset.
func (p *Protocol) TokenSupply(ctx context.Context, asset [20]byte) (uint64, error) {
	var supply uint64
	err := p.view(ctx, func(e engines) error {
		var err error
		supply, err = e.txn.TokenSupply(asset)
		return err
	})
	return supply, err
}
