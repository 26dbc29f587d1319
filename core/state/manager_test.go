package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stakevault/native/cdp"
	"stakevault/native/vault"
	"stakevault/storage"
)

func identity(b byte) [20]byte {
	var id [20]byte
	for i := range id {
		id[i] = b
	}
	return id
}

func TestTxnCommitPersistsRecords(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	txn := manager.Begin()
	registry := &vault.Registry{Authority: identity(1), Treasury: identity(2), VaultCount: 1, ProtocolFeeBps: 100}
	require.NoError(t, txn.PutRegistry(registry))
	v := &vault.Vault{ID: 0, Operator: identity(3), FeeBps: 500, MaxCapacity: 10, Name: "alpha", AcceptingDeposits: true}
	require.NoError(t, txn.PutVault(v))
	require.NoError(t, txn.Commit())

	reader := manager.Begin()
	defer reader.Discard()
	gotRegistry, err := reader.GetRegistry()
	require.NoError(t, err)
	require.Equal(t, registry, gotRegistry)
	gotVault, err := reader.GetVault(0)
	require.NoError(t, err)
	require.Equal(t, v, gotVault)

	missing, err := reader.GetVault(7)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestTxnDiscardLeavesDatabaseUntouched(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	txn := manager.Begin()
	require.NoError(t, txn.PutController(&cdp.Controller{MinCollateralRatio: 11_000}))
	controller, err := txn.GetController()
	require.NoError(t, err)
	require.NotNil(t, controller, "txn must read its own writes")
	txn.Discard()

	reader := manager.Begin()
	defer reader.Discard()
	controller, err = reader.GetController()
	require.NoError(t, err)
	require.Nil(t, controller)

	require.ErrorIs(t, txn.Commit(), errTxnClosed)
}

func TestTicketAndPositionKeys(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	txn := manager.Begin()
	user := identity(9)

	first := &vault.WithdrawalTicket{VaultID: 1, User: user, TicketID: 0, SharesBurned: 10}
	second := &vault.WithdrawalTicket{VaultID: 1, User: user, TicketID: 1, SharesBurned: 20, Claimed: true}
	require.NoError(t, txn.PutTicket(first))
	require.NoError(t, txn.PutTicket(second))
	require.NoError(t, txn.PutTicketNonce(1, user, 2))

	got, err := txn.GetTicket(vault.TicketRef{VaultID: 1, User: user, ID: 1})
	require.NoError(t, err)
	require.Equal(t, second, got)
	nonce, err := txn.GetTicketNonce(1, user)
	require.NoError(t, err)
	require.Equal(t, uint64(2), nonce)
	nonce, err = txn.GetTicketNonce(2, user)
	require.NoError(t, err)
	require.Zero(t, nonce)

	position := &cdp.Position{Owner: user, VaultID: 1, Collateral: 5, Debt: 4}
	require.NoError(t, txn.PutPosition(position))
	other, err := txn.GetPosition(user, 2)
	require.NoError(t, err)
	require.Nil(t, other)
	stored, err := txn.GetPosition(user, 1)
	require.NoError(t, err)
	require.Equal(t, position, stored)
}

func TestCommitOnLevelDBSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	txn := NewManager(db).Begin()
	require.NoError(t, txn.PutVault(&vault.Vault{ID: 4, Name: "persisted", TotalShares: 42}))
	require.NoError(t, txn.Commit())
	db.Close()

	reopened, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer reopened.Close()
	reader := NewManager(reopened).Begin()
	v, err := reader.GetVault(4)
	require.NoError(t, err)
	require.Equal(t, "persisted", v.Name)
	require.Equal(t, uint64(42), v.TotalShares)
}

type countingDB struct {
	storage.Database
	gets int
}

func (c *countingDB) Get(key []byte) ([]byte, error) {
	c.gets++
	return c.Database.Get(key)
}

func TestCommittedRecordsServedFromCache(t *testing.T) {
	db := &countingDB{Database: storage.NewMemDB()}
	manager := NewManagerWithCache(db, 8)

	txn := manager.Begin()
	v := &vault.Vault{ID: 0, Operator: identity(3), FeeBps: 500, MaxCapacity: 10, Name: "alpha"}
	require.NoError(t, txn.PutVault(v))
	require.NoError(t, txn.Commit())
	require.Equal(t, 1, manager.CachedRecords())

	reader := manager.Begin()
	defer reader.Discard()
	got, err := reader.GetVault(0)
	require.NoError(t, err)
	require.Equal(t, v, got)
	require.Zero(t, db.gets)
}

func TestCacheFillsOnReadAndCanBeDisabled(t *testing.T) {
	backing := storage.NewMemDB()
	seed := NewManagerWithCache(backing, 0)
	txn := seed.Begin()
	require.NoError(t, txn.PutVault(&vault.Vault{ID: 4, Name: "delta"}))
	require.NoError(t, txn.Commit())
	require.Zero(t, seed.CachedRecords())

	db := &countingDB{Database: backing}
	manager := NewManagerWithCache(db, 8)
	for i := 0; i < 3; i++ {
		reader := manager.Begin()
		_, err := reader.GetVault(4)
		require.NoError(t, err)
		reader.Discard()
	}
	require.Equal(t, 1, db.gets)
	require.Equal(t, 1, manager.CachedRecords())
}
