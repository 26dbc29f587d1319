package state

import (
	"fmt"
	"math"

	protoerrors "stakevault/core/errors"
)

// ErrInsufficientFunds is returned when a burn or transfer exceeds the source
// balance.
var ErrInsufficientFunds = protoerrors.ErrInsufficientFunds

// Balance returns holder's balance of asset. Missing entries default to zero.
func (t *Txn) Balance(asset, holder [20]byte) (uint64, error) {
	var amount uint64
	if _, err := t.readRecord(balanceKey(asset, holder), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// TokenSupply returns the outstanding supply of asset.
func (t *Txn) TokenSupply(asset [20]byte) (uint64, error) {
	var total uint64
	if _, err := t.readRecord(tokenSupplyKey(asset), &total); err != nil {
		return 0, err
	}
	return total, nil
}

// SetBalance overwrites holder's balance without touching supply. It exists
// for genesis funding of the base asset, which has no mint authority here.
func (t *Txn) SetBalance(asset, holder [20]byte, amount uint64) error {
	return t.writeRecord(balanceKey(asset, holder), amount)
}

// Mint credits amount to the holder and grows the asset supply.
func (t *Txn) Mint(asset, to [20]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	supply, err := t.TokenSupply(asset)
	if err != nil {
		return err
	}
	if supply > math.MaxUint64-amount {
		return protoerrors.ErrArithmeticOverflow
	}
	if err := t.credit(asset, to, amount); err != nil {
		return err
	}
	return t.writeRecord(tokenSupplyKey(asset), supply+amount)
}

// Burn debits amount from the holder and shrinks the asset supply.
func (t *Txn) Burn(asset, from [20]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := t.debit(asset, from, amount); err != nil {
		return err
	}
	supply, err := t.TokenSupply(asset)
	if err != nil {
		return err
	}
	if supply < amount {
		return fmt.Errorf("ledger: burn exceeds supply: %w", ErrInsufficientFunds)
	}
	return t.writeRecord(tokenSupplyKey(asset), supply-amount)
}

// Transfer moves amount between holders.
func (t *Txn) Transfer(asset, from, to [20]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := t.debit(asset, from, amount); err != nil {
		return err
	}
	return t.credit(asset, to, amount)
}

func (t *Txn) credit(asset, holder [20]byte, amount uint64) error {
	balance, err := t.Balance(asset, holder)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-amount {
		return protoerrors.ErrArithmeticOverflow
	}
	return t.SetBalance(asset, holder, balance+amount)
}

func (t *Txn) debit(asset, holder [20]byte, amount uint64) error {
	balance, err := t.Balance(asset, holder)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	return t.SetBalance(asset, holder, balance-amount)
}
