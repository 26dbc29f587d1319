package cdp

import (
	"errors"
	"testing"
	"time"

	"stakevault/core/epoch"
	"stakevault/core/events"
	"stakevault/native/vault"
)

var errMockInsufficient = errors.New("mock ledger: insufficient balance")

type positionKey struct {
	owner [20]byte
	vault uint64
}

type mockEngineState struct {
	registry   *vault.Registry
	vaults     map[uint64]*vault.Vault
	controller *Controller
	positions  map[positionKey]*Position
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		registry:  &vault.Registry{},
		vaults:    make(map[uint64]*vault.Vault),
		positions: make(map[positionKey]*Position),
	}
}

func (m *mockEngineState) GetRegistry() (*vault.Registry, error) {
	if m.registry == nil {
		return nil, nil
	}
	clone := *m.registry
	return &clone, nil
}

func (m *mockEngineState) GetVault(id uint64) (*vault.Vault, error) {
	return m.vaults[id].Clone(), nil
}

func (m *mockEngineState) GetController() (*Controller, error) {
	if m.controller == nil {
		return nil, nil
	}
	clone := *m.controller
	return &clone, nil
}

func (m *mockEngineState) PutController(controller *Controller) error {
	clone := *controller
	m.controller = &clone
	return nil
}

func (m *mockEngineState) GetPosition(owner [20]byte, vaultID uint64) (*Position, error) {
	position, ok := m.positions[positionKey{owner: owner, vault: vaultID}]
	if !ok {
		return nil, nil
	}
	clone := *position
	return &clone, nil
}

func (m *mockEngineState) PutPosition(position *Position) error {
	clone := *position
	m.positions[positionKey{owner: position.Owner, vault: position.VaultID}] = &clone
	return nil
}

type mockLedger struct {
	balances map[[20]byte]map[[20]byte]uint64
	supply   map[[20]byte]uint64
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		balances: make(map[[20]byte]map[[20]byte]uint64),
		supply:   make(map[[20]byte]uint64),
	}
}

func (l *mockLedger) balance(asset, holder [20]byte) uint64 {
	return l.balances[asset][holder]
}

func (l *mockLedger) credit(asset, holder [20]byte, amount uint64) {
	if l.balances[asset] == nil {
		l.balances[asset] = make(map[[20]byte]uint64)
	}
	l.balances[asset][holder] += amount
}

func (l *mockLedger) Mint(asset, to [20]byte, amount uint64) error {
	l.credit(asset, to, amount)
	l.supply[asset] += amount
	return nil
}

func (l *mockLedger) Burn(asset, from [20]byte, amount uint64) error {
	if l.balance(asset, from) < amount {
		return errMockInsufficient
	}
	l.balances[asset][from] -= amount
	l.supply[asset] -= amount
	return nil
}

func (l *mockLedger) Transfer(asset, from, to [20]byte, amount uint64) error {
	if l.balance(asset, from) < amount {
		return errMockInsufficient
	}
	l.balances[asset][from] -= amount
	l.credit(asset, to, amount)
	return nil
}

func makeIdentity(b byte) [20]byte {
	var id [20]byte
	for i := range id {
		id[i] = b
	}
	return id
}

type testHarness struct {
	engine *Engine
	state  *mockEngineState
	ledger *mockLedger
	clock  *epoch.Manual
	buffer *events.Buffer
	vault  *vault.Vault
}

// newTestHarness wires an engine around vault 0 trading at exactly one base
// unit per share.
func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		engine: NewEngine(DefaultParams()),
		state:  newMockEngineState(),
		ledger: newMockLedger(),
		clock:  epoch.NewManual(3, time.Unix(0, 0)),
		buffer: &events.Buffer{},
	}
	h.vault = &vault.Vault{
		ID:          0,
		ShareMint:   vault.ShareMintFor(0),
		TotalShares: 1_000_000_000,
		TotalAssets: 1_000_000_000,
	}
	h.state.vaults[0] = h.vault.Clone()
	h.engine.SetState(h.state)
	h.engine.SetLedger(h.ledger)
	h.engine.SetClock(h.clock)
	h.engine.SetEmitter(h.buffer)
	if _, err := h.engine.InitializeController(); err != nil {
		t.Fatalf("initialize controller: %v", err)
	}
	return h
}

func (h *testHarness) giveShares(user [20]byte, amount uint64) {
	h.ledger.credit(h.vault.ShareMint, user, amount)
}

// setRate moves the exchange rate outside the engine. With 1e9 shares
// outstanding the rate equals total assets.
func (h *testHarness) setRate(rate uint64) {
	h.state.vaults[0].TotalAssets = rate
}
