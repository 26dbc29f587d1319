package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"

	"stakevault/storage"
)

var errTxnClosed = errors.New("state: transaction already closed")

// DefaultCacheSize is the number of committed records kept in memory.
const DefaultCacheSize = 4096

// Manager owns the keyed record store. Every mutation goes through a Txn so
// that an operation either lands completely or not at all.
//
// Committed records are cached. Readers and Commit must not run concurrently;
// the protocol host serialises them with its lock.
type Manager struct {
	db    storage.Database
	cache *lru.Cache
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return NewManagerWithCache(db, DefaultCacheSize)
}

// NewManagerWithCache creates a state manager whose read cache holds up to
// size records. A non-positive size disables caching.
func NewManagerWithCache(db storage.Database, size int) *Manager {
	m := &Manager{db: db}
	if size > 0 {
		cache, err := lru.New(size)
		if err == nil {
			m.cache = cache
		}
	}
	return m
}

// Begin opens a write-buffering transaction. Reads observe the transaction's
// own pending writes first.
func (m *Manager) Begin() *Txn {
	return &Txn{db: m.db, cache: m.cache, writes: make(map[string][]byte)}
}

// CachedRecords reports how many committed records are held in memory.
func (m *Manager) CachedRecords() int {
	if m.cache == nil {
		return 0
	}
	return m.cache.Len()
}

// Txn buffers writes in memory until Commit. A discarded or failed Txn leaves
// the database untouched. A Txn is not safe for concurrent use.
type Txn struct {
	db     storage.Database
	cache  *lru.Cache
	writes map[string][]byte
	closed bool
}

func (t *Txn) get(key []byte) ([]byte, error) {
	if t.closed {
		return nil, errTxnClosed
	}
	if value, ok := t.writes[string(key)]; ok {
		return value, nil
	}
	if t.cache != nil {
		if cached, ok := t.cache.Get(string(key)); ok {
			return cached.([]byte), nil
		}
	}
	value, err := t.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t.cache != nil {
		t.cache.Add(string(key), value)
	}
	return value, nil
}

func (t *Txn) put(key, value []byte) error {
	if t.closed {
		return errTxnClosed
	}
	t.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

// readRecord decodes the RLP record stored under key into out. It reports
// false when the key is absent.
func (t *Txn) readRecord(key []byte, out interface{}) (bool, error) {
	data, err := t.get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (t *Txn) writeRecord(key []byte, record interface{}) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return t.put(key, encoded)
}

// Pending returns the number of buffered writes.
func (t *Txn) Pending() int {
	return len(t.writes)
}

// Commit applies every buffered write in one atomic batch and closes the
// transaction.
func (t *Txn) Commit() error {
	if t.closed {
		return errTxnClosed
	}
	t.closed = true
	if len(t.writes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(t.writes))
	for key := range t.writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := new(storage.Batch)
	for _, key := range keys {
		batch.Put([]byte(key), t.writes[key])
	}
	writes := t.writes
	t.writes = nil
	if err := t.db.Write(batch); err != nil {
		if t.cache != nil {
			for _, key := range keys {
				t.cache.Remove(key)
			}
		}
		return err
	}
	if t.cache != nil {
		for _, key := range keys {
			t.cache.Add(key, writes[key])
		}
	}
	return nil
}

// Discard drops every buffered write. It is safe to call after Commit.
func (t *Txn) Discard() {
	t.closed = true
	t.writes = nil
}
