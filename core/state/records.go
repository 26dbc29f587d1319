package state

import (
	"stakevault/native/cdp"
	"stakevault/native/vault"
)

// GetRegistry returns the protocol registry, or nil when it has not been
// initialised.
func (t *Txn) GetRegistry() (*vault.Registry, error) {
	registry := new(vault.Registry)
	ok, err := t.readRecord(registryKey(), registry)
	if err != nil || !ok {
		return nil, err
	}
	return registry, nil
}

// PutRegistry stores the protocol registry.
func (t *Txn) PutRegistry(registry *vault.Registry) error {
	return t.writeRecord(registryKey(), registry)
}

// GetVault returns the vault record, or nil when absent.
func (t *Txn) GetVault(id uint64) (*vault.Vault, error) {
	v := new(vault.Vault)
	ok, err := t.readRecord(vaultKey(id), v)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

// PutVault stores the vault record under its id.
func (t *Txn) PutVault(v *vault.Vault) error {
	return t.writeRecord(vaultKey(v.ID), v)
}

// GetTicket returns the withdrawal ticket, or nil when absent.
func (t *Txn) GetTicket(ref vault.TicketRef) (*vault.WithdrawalTicket, error) {
	ticket := new(vault.WithdrawalTicket)
	ok, err := t.readRecord(ticketKey(ref.VaultID, ref.User, ref.ID), ticket)
	if err != nil || !ok {
		return nil, err
	}
	return ticket, nil
}

// PutTicket stores the ticket under (vault, user, id).
func (t *Txn) PutTicket(ticket *vault.WithdrawalTicket) error {
	return t.writeRecord(ticketKey(ticket.VaultID, ticket.User, ticket.TicketID), ticket)
}

// GetTicketNonce returns the number of tickets issued to user for a vault.
func (t *Txn) GetTicketNonce(vaultID uint64, user [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := t.readRecord(ticketNonceKey(vaultID, user), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// PutTicketNonce stores the next ticket id for (vault, user).
func (t *Txn) PutTicketNonce(vaultID uint64, user [20]byte, nonce uint64) error {
	return t.writeRecord(ticketNonceKey(vaultID, user), nonce)
}

// GetController returns the collateral controller, or nil when absent.
func (t *Txn) GetController() (*cdp.Controller, error) {
	controller := new(cdp.Controller)
	ok, err := t.readRecord(controllerKey(), controller)
	if err != nil || !ok {
		return nil, err
	}
	return controller, nil
}

// PutController stores the collateral controller.
func (t *Txn) PutController(controller *cdp.Controller) error {
	return t.writeRecord(controllerKey(), controller)
}

// GetPosition returns the owner's position against a vault, or nil when
// absent.
func (t *Txn) GetPosition(owner [20]byte, vaultID uint64) (*cdp.Position, error) {
	position := new(cdp.Position)
	ok, err := t.readRecord(positionKey(owner, vaultID), position)
	if err != nil || !ok {
		return nil, err
	}
	return position, nil
}

// PutPosition stores the position under (owner, vault).
func (t *Txn) PutPosition(position *cdp.Position) error {
	return t.writeRecord(positionKey(position.Owner, position.VaultID), position)
}
