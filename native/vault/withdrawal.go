package vault

import (
	"fmt"

	protoerrors "stakevault/core/errors"
	"stakevault/core/events"
	nativecommon "stakevault/native/common"
)

// RequestWithdrawal burns shares and issues a ticket for their value at the
// pre-burn exchange rate. The liquidity leaves the vault's assets immediately;
// only the payout is deferred.
func (e *Engine) RequestWithdrawal(user [20]byte, vaultID uint64, shares uint64) (*WithdrawalTicket, error) {
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
	if shares == 0 {
		return nil, protoerrors.ErrInvalidAmount
	}
	vault, err := e.loadVault(vaultID)
	if err != nil {
		return nil, err
	}

	expected, err := vault.SharesToValue(shares)
	if err != nil {
		return nil, err
	}
	totalShares, err := Sub(vault.TotalShares, shares)
	if err != nil {
		return nil, err
	}
	totalAssets, err := Sub(vault.TotalAssets, expected)
	if err != nil {
		return nil, err
	}
	nonce, err := e.state.GetTicketNonce(vaultID, user)
	if err != nil {
		return nil, err
	}
	nextNonce, err := Add(nonce, 1)
	if err != nil {
		return nil, err
	}
	vault.TotalShares = totalShares
	vault.TotalAssets = totalAssets
	ticket := &WithdrawalTicket{
		VaultID:           vaultID,
		User:              user,
		TicketID:          nonce,
		SharesBurned:      shares,
		ExpectedLiquidity: expected,
		RequestEpoch:      e.clock.Epoch(),
		ReadyToClaim:      vault.BufferedLiquidity >= expected,
	}

	if err := e.ledger.Burn(vault.ShareMint, user, shares); err != nil {
		return nil, err
	}
	if err := e.state.PutVault(vault); err != nil {
		return nil, err
	}
	if err := e.state.PutTicket(ticket); err != nil {
		return nil, err
	}
	if err := e.state.PutTicketNonce(vaultID, user, nextNonce); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.WithdrawalRequested{
		VaultID:           vaultID,
		User:              user,
		TicketID:          ticket.TicketID,
		SharesBurned:      shares,
		ExpectedLiquidity: expected,
		ReadyToClaim:      ticket.ReadyToClaim,
	})
	return ticket, nil
}

// ClaimWithdrawal pays out a ticket from the vault's buffered liquidity.
// WithdrawalNotReady is transient; the caller may retry once the buffer has
// been replenished.
func (e *Engine) ClaimWithdrawal(caller [20]byte, ref TicketRef) (*WithdrawalTicket, error) {
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
	ticket, err := e.loadTicket(ref)
	if err != nil {
		return nil, err
	}
	if caller != ticket.User {
		return nil, protoerrors.ErrUnauthorized
	}
	if ticket.Claimed {
		return nil, protoerrors.ErrTicketAlreadyClaimed
	}
	vault, err := e.loadVault(ticket.VaultID)
	if err != nil {
		return nil, err
	}
	if vault.BufferedLiquidity < ticket.ExpectedLiquidity {
		return nil, protoerrors.ErrWithdrawalNotReady
	}
	buffered, err := Sub(vault.BufferedLiquidity, ticket.ExpectedLiquidity)
	if err != nil {
		return nil, err
	}
	vault.BufferedLiquidity = buffered
	ticket.Claimed = true
	ticket.ReadyToClaim = true

	if ticket.ExpectedLiquidity > 0 {
		if err := e.ledger.Transfer(BaseAsset, Custody(vault.ID), ticket.User, ticket.ExpectedLiquidity); err != nil {
			return nil, err
		}
	}
	if err := e.state.PutVault(vault); err != nil {
		return nil, err
	}
	if err := e.state.PutTicket(ticket); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.WithdrawalCompleted{
		VaultID:  ticket.VaultID,
		User:     ticket.User,
		TicketID: ticket.TicketID,
		Amount:   ticket.ExpectedLiquidity,
	})
	return ticket, nil
}

// Ticket returns the ticket addressed by ref.
func (e *Engine) Ticket(ref TicketRef) (*WithdrawalTicket, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadTicket(ref)
}

// Tickets lists every ticket the user has been issued for a vault, oldest
// first.
func (e *Engine) Tickets(vaultID uint64, user [20]byte) ([]*WithdrawalTicket, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	nonce, err := e.state.GetTicketNonce(vaultID, user)
	if err != nil {
		return nil, err
	}
	out := make([]*WithdrawalTicket, 0, nonce)
	for id := uint64(0); id < nonce; id++ {
		ticket, err := e.loadTicket(TicketRef{VaultID: vaultID, User: user, ID: id})
		if err != nil {
			return nil, err
		}
		out = append(out, ticket)
	}
	return out, nil
}

// TicketReady reports whether a claim would currently succeed on liquidity
// grounds. Readiness is polled; nothing is scheduled.
func (e *Engine) TicketReady(ref TicketRef) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	ticket, err := e.loadTicket(ref)
	if err != nil {
		return false, err
	}
	if ticket.Claimed {
		return false, nil
	}
	vault, err := e.loadVault(ticket.VaultID)
	if err != nil {
		return false, err
	}
	return vault.BufferedLiquidity >= ticket.ExpectedLiquidity, nil
}

func (e *Engine) loadTicket(ref TicketRef) (*WithdrawalTicket, error) {
	ticket, err := e.state.GetTicket(ref)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, fmt.Errorf("ticket %d in vault %d: %w", ref.ID, ref.VaultID, protoerrors.ErrTicketNotFound)
	}
	return ticket, nil
}
