package vault

import (
	"errors"
	"testing"

	"stakevault/core/epoch"
	"stakevault/core/events"
)

var errMockInsufficient = errors.New("mock ledger: insufficient balance")

type ticketNonceKey struct {
	vault uint64
	user  [20]byte
}

type mockEngineState struct {
	registry *Registry
	vaults   map[uint64]*Vault
	tickets  map[TicketRef]*WithdrawalTicket
	nonces   map[ticketNonceKey]uint64
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		vaults:  make(map[uint64]*Vault),
		tickets: make(map[TicketRef]*WithdrawalTicket),
		nonces:  make(map[ticketNonceKey]uint64),
	}
}

func (m *mockEngineState) GetRegistry() (*Registry, error) {
	if m.registry == nil {
		return nil, nil
	}
	clone := *m.registry
	return &clone, nil
}

func (m *mockEngineState) PutRegistry(registry *Registry) error {
	clone := *registry
	m.registry = &clone
	return nil
}

func (m *mockEngineState) GetVault(id uint64) (*Vault, error) {
	return m.vaults[id].Clone(), nil
}

func (m *mockEngineState) PutVault(vault *Vault) error {
	m.vaults[vault.ID] = vault.Clone()
	return nil
}

func (m *mockEngineState) GetTicket(ref TicketRef) (*WithdrawalTicket, error) {
	ticket, ok := m.tickets[ref]
	if !ok {
		return nil, nil
	}
	clone := *ticket
	return &clone, nil
}

func (m *mockEngineState) PutTicket(ticket *WithdrawalTicket) error {
	clone := *ticket
	m.tickets[ticket.Ref()] = &clone
	return nil
}

func (m *mockEngineState) GetTicketNonce(vaultID uint64, user [20]byte) (uint64, error) {
	return m.nonces[ticketNonceKey{vault: vaultID, user: user}], nil
}

func (m *mockEngineState) PutTicketNonce(vaultID uint64, user [20]byte, nonce uint64) error {
	m.nonces[ticketNonceKey{vault: vaultID, user: user}] = nonce
	return nil
}

type ledgerCall struct {
	op     string
	asset  [20]byte
	from   [20]byte
	to     [20]byte
	amount uint64
}

type mockLedger struct {
	balances map[[20]byte]map[[20]byte]uint64
	supply   map[[20]byte]uint64
	calls    []ledgerCall
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
	l.calls = append(l.calls, ledgerCall{op: "mint", asset: asset, to: to, amount: amount})
	l.credit(asset, to, amount)
	l.supply[asset] += amount
	return nil
}

func (l *mockLedger) Burn(asset, from [20]byte, amount uint64) error {
	l.calls = append(l.calls, ledgerCall{op: "burn", asset: asset, from: from, amount: amount})
	if l.balance(asset, from) < amount {
		return errMockInsufficient
	}
	l.balances[asset][from] -= amount
	l.supply[asset] -= amount
	return nil
}

func (l *mockLedger) Transfer(asset, from, to [20]byte, amount uint64) error {
	l.calls = append(l.calls, ledgerCall{op: "transfer", asset: asset, from: from, to: to, amount: amount})
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
	engine    *Engine
	state     *mockEngineState
	ledger    *mockLedger
	clock     *epoch.Manual
	buffer    *events.Buffer
	authority [20]byte
	treasury  [20]byte
	operator  [20]byte
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		engine:    NewEngine(DefaultParams()),
		state:     newMockEngineState(),
		ledger:    newMockLedger(),
		clock:     epoch.NewManual(7, epoch.DefaultConfig().Genesis),
		buffer:    &events.Buffer{},
		authority: makeIdentity(0xA1),
		treasury:  makeIdentity(0xA2),
		operator:  makeIdentity(0xB1),
	}
	h.engine.SetState(h.state)
	h.engine.SetLedger(h.ledger)
	h.engine.SetClock(h.clock)
	h.engine.SetEmitter(h.buffer)
	if _, err := h.engine.InitializeRegistry(h.authority, h.treasury); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	return h
}

func (h *testHarness) createVault(t *testing.T, feeBps uint16) *Vault {
	t.Helper()
	vault, err := h.engine.CreateVault(h.operator, feeBps, 1_000_000_000_000_000, "alpha")
	if err != nil {
		t.Fatalf("create vault: %v", err)
	}
	return vault
}

func (h *testHarness) fund(user [20]byte, amount uint64) {
	h.ledger.credit(BaseAsset, user, amount)
}
