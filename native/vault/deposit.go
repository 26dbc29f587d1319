package vault

import (
	protoerrors "stakevault/core/errors"
	"stakevault/core/events"
	nativecommon "stakevault/native/common"
)

// DepositResult summarises a successful deposit.
type DepositResult struct {
	SharesMinted uint64
	ExchangeRate uint64
}

// Deposit moves amount of the base asset from the user into the vault's
// custody and mints shares at the current exchange rate.
func (e *Engine) Deposit(user [20]byte, vaultID uint64, amount uint64) (*DepositResult, error) {
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
	vault, err := e.loadVault(vaultID)
	if err != nil {
		return nil, err
	}
	if !vault.AcceptingDeposits {
		return nil, protoerrors.ErrVaultNotAccepting
	}
	if amount < e.params.MinStakeAmount {
		return nil, protoerrors.ErrDepositTooSmall
	}
	if !vault.HasCapacity(amount) {
		return nil, protoerrors.ErrVaultCapacityReached
	}

	shares, err := vault.CalculateShares(amount)
	if err != nil {
		return nil, err
	}
	if shares == 0 {
		return nil, protoerrors.ErrDepositTooSmall
	}
	buffered, err := Add(vault.BufferedLiquidity, amount)
	if err != nil {
		return nil, err
	}
	assets, err := Add(vault.TotalAssets, amount)
	if err != nil {
		return nil, err
	}
	totalShares, err := Add(vault.TotalShares, shares)
	if err != nil {
		return nil, err
	}
	vault.BufferedLiquidity = buffered
	vault.TotalAssets = assets
	vault.TotalShares = totalShares
	rate, err := vault.ExchangeRate()
	if err != nil {
		return nil, err
	}

	if err := e.ledger.Transfer(BaseAsset, user, Custody(vaultID), amount); err != nil {
		return nil, err
	}
	if err := e.ledger.Mint(vault.ShareMint, user, shares); err != nil {
		return nil, err
	}
	if err := e.state.PutVault(vault); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.DepositMade{
		VaultID:      vaultID,
		User:         user,
		Amount:       amount,
		SharesMinted: shares,
		ExchangeRate: rate,
	})
	return &DepositResult{SharesMinted: shares, ExchangeRate: rate}, nil
}
