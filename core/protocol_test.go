package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stakevault/core/epoch"
	protoerrors "stakevault/core/errors"
	"stakevault/core/events"
	"stakevault/core/state"
	"stakevault/native/cdp"
	"stakevault/native/vault"
	"stakevault/storage"
)

type recorder struct {
	events []events.Event
}

func (r *recorder) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recorder) types() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

func identity(b byte) [20]byte {
	var id [20]byte
	for i := range id {
		id[i] = b
	}
	return id
}

var (
	testAuthority = identity(0xA1)
	testTreasury  = identity(0xA2)
	testOperator  = identity(0xB1)
	testUser      = identity(0xC1)
)

type fixture struct {
	protocol *Protocol
	events   *recorder
	clock    *epoch.Manual
	db       storage.Database
}

func newFixture(t *testing.T, db storage.Database, cdpParams cdp.Params) *fixture {
	t.Helper()
	rec := &recorder{}
	clock := epoch.NewManual(1, time.Unix(1_700_000_000, 0))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewProtocol(state.NewManager(db), clock, vault.DefaultParams(), cdpParams, WithEmitter(rec), WithLogger(logger))
	return &fixture{protocol: p, events: rec, clock: clock, db: db}
}

func newInitializedFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, storage.NewMemDB(), cdp.DefaultParams())
	_, err := f.protocol.InitializeRegistry(context.Background(), testAuthority, testTreasury)
	require.NoError(t, err)
	return f
}

func (f *fixture) openVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := f.protocol.CreateVault(context.Background(), testOperator, 500, 1_000_000_000_000, "alpha")
	require.NoError(t, err)
	return v
}

func (f *fixture) credit(t *testing.T, holder [20]byte, amount uint64) {
	t.Helper()
	require.NoError(t, f.protocol.CreditBase(context.Background(), testAuthority, holder, amount))
}

func TestInitializeRegistryIsAtomic(t *testing.T) {
	invalid := cdp.DefaultParams()
	invalid.LiquidationThresholdBps = invalid.MinCollateralRatioBps
	f := newFixture(t, storage.NewMemDB(), invalid)
	ctx := context.Background()

	_, err := f.protocol.InitializeRegistry(ctx, testAuthority, testTreasury)
	require.Error(t, err)

	ok, err := f.protocol.Initialized(ctx)
	require.NoError(t, err)
	require.False(t, ok, "registry write must be discarded with the failed controller")
	require.Empty(t, f.events.events)
}

func TestInitializeRegistryOnce(t *testing.T) {
	f := newInitializedFixture(t)
	ctx := context.Background()
	require.Contains(t, f.events.types(), events.TypeRegistryInitialized)

	_, err := f.protocol.InitializeRegistry(ctx, testAuthority, testTreasury)
	require.ErrorIs(t, err, protoerrors.ErrRegistryExists)

	controller, err := f.protocol.Controller(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(11_000), controller.MinCollateralRatio)
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	f := newInitializedFixture(t)
	ctx := context.Background()
	v := f.openVault(t)
	f.credit(t, testUser, 2_000_000_000)

	deposit, err := f.protocol.Deposit(ctx, testUser, v.ID, 1_000_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000_000), deposit.SharesMinted)
	require.Equal(t, vault.RateScale, deposit.ExchangeRate)

	shares, err := f.protocol.Balance(ctx, v.ShareMint, testUser)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000_000), shares)

	ticket, err := f.protocol.RequestWithdrawal(ctx, testUser, v.ID, shares)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000_000), ticket.ExpectedLiquidity)
	require.True(t, ticket.ReadyToClaim)

	tickets, err := f.protocol.TicketsFor(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, tickets, 1)

	claimed, err := f.protocol.ClaimWithdrawal(ctx, testUser, ticket.Ref())
	require.NoError(t, err)
	require.True(t, claimed.Claimed)

	base, err := f.protocol.Balance(ctx, vault.BaseAsset, testUser)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000_000_000), base)

	after, err := f.protocol.Vault(ctx, v.ID)
	require.NoError(t, err)
	supply, err := f.protocol.TokenSupply(ctx, v.ShareMint)
	require.NoError(t, err)
	require.Equal(t, after.TotalShares, supply)
	require.Zero(t, after.TotalAssets)
}

func TestRewardsRaiseExchangeRate(t *testing.T) {
	f := newInitializedFixture(t)
	ctx := context.Background()
	v := f.openVault(t)
	f.credit(t, testUser, 1_000_000_000)

	_, err := f.protocol.Deposit(ctx, testUser, v.ID, 1_000_000_000)
	require.NoError(t, err)
	require.NoError(t, f.protocol.DelegateStake(ctx, testOperator, v.ID, 1_000_000_000))

	split, err := f.protocol.ReportBalance(ctx, testOperator, v.ID, 1_100_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(100_000_000), split.Rewards)

	rate, err := f.protocol.ExchangeRate(ctx, v.ID)
	require.NoError(t, err)
	require.Greater(t, rate, vault.RateScale)

	after, err := f.protocol.Vault(ctx, v.ID)
	require.NoError(t, err)
	supply, err := f.protocol.TokenSupply(ctx, v.ShareMint)
	require.NoError(t, err)
	require.Equal(t, after.TotalShares, supply, "fee shares must land in the ledger")

	value, err := f.protocol.SharesToValue(ctx, v.ID, 1_000_000_000)
	require.NoError(t, err)
	require.Greater(t, value, uint64(1_000_000_000))
	require.Less(t, value, uint64(1_100_000_000))
}

func TestFailedOperationLeavesNoTrace(t *testing.T) {
	f := newInitializedFixture(t)
	ctx := context.Background()
	v := f.openVault(t)
	f.credit(t, testUser, 500_000_000)
	emitted := len(f.events.events)

	_, err := f.protocol.Deposit(ctx, testUser, v.ID, 1_000_000_000)
	require.ErrorIs(t, err, protoerrors.ErrInsufficientFunds)
	require.Equal(t, protoerrors.KindValidation, protoerrors.KindOf(err))

	after, err := f.protocol.Vault(ctx, v.ID)
	require.NoError(t, err)
	require.Zero(t, after.TotalAssets)
	require.Zero(t, after.TotalShares)
	base, err := f.protocol.Balance(ctx, vault.BaseAsset, testUser)
	require.NoError(t, err)
	require.Equal(t, uint64(500_000_000), base)
	require.Len(t, f.events.events, emitted)
}

func TestMintBurnThroughProtocol(t *testing.T) {
	f := newInitializedFixture(t)
	ctx := context.Background()
	v := f.openVault(t)
	f.credit(t, testUser, 1_000_000_000)
	_, err := f.protocol.Deposit(ctx, testUser, v.ID, 1_000_000_000)
	require.NoError(t, err)

	_, err = f.protocol.MintSynthetic(ctx, testUser, v.ID, 1_000_000_000, 950_000_000)
	require.ErrorIs(t, err, protoerrors.ErrInsufficientCollateral)

	minted, err := f.protocol.MintSynthetic(ctx, testUser, v.ID, 1_000_000_000, 900_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(11_111), minted.CollateralRatio)

	health, err := f.protocol.PositionHealth(ctx, testUser, v.ID)
	require.NoError(t, err)
	require.False(t, health.Liquidatable)

	_, err = f.protocol.Liquidate(ctx, testOperator, testUser, v.ID)
	require.ErrorIs(t, err, protoerrors.ErrPositionHealthy)

	synth, err := f.protocol.Balance(ctx, vault.SyntheticMint(), testUser)
	require.NoError(t, err)
	require.Equal(t, uint64(900_000_000), synth)

	burned, err := f.protocol.BurnSynthetic(ctx, testUser, v.ID, 900_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000_000), burned.CollateralReleased)
	require.True(t, burned.Position.Closed())

	controller, err := f.protocol.Controller(ctx)
	require.NoError(t, err)
	require.Zero(t, controller.TotalMinted)
	require.Zero(t, controller.ActivePositions)
	ratio, err := f.protocol.ControllerRatio(ctx)
	require.NoError(t, err)
	require.Equal(t, cdp.Unbounded, ratio)
}

func TestPauseBlocksUserOperations(t *testing.T) {
	f := newInitializedFixture(t)
	ctx := context.Background()
	v := f.openVault(t)
	f.credit(t, testUser, 1_000_000_000)

	require.ErrorIs(t, f.protocol.SetPaused(ctx, testUser, true), protoerrors.ErrUnauthorized)
	require.NoError(t, f.protocol.SetPaused(ctx, testAuthority, true))

	_, err := f.protocol.Deposit(ctx, testUser, v.ID, 1_000_000_000)
	require.ErrorIs(t, err, protoerrors.ErrProtocolPaused)

	require.NoError(t, f.protocol.SetPaused(ctx, testAuthority, false))
	_, err = f.protocol.Deposit(ctx, testUser, v.ID, 1_000_000_000)
	require.NoError(t, err)
}

func TestCreditBaseRequiresAuthority(t *testing.T) {
	f := newInitializedFixture(t)
	ctx := context.Background()
	err := f.protocol.CreditBase(ctx, testUser, testUser, 1)
	require.ErrorIs(t, err, protoerrors.ErrUnauthorized)
	err = f.protocol.CreditBase(ctx, testAuthority, testUser, 0)
	require.ErrorIs(t, err, protoerrors.ErrInvalidAmount)
}

func TestCanceledContextIsRejected(t *testing.T) {
	f := newInitializedFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.protocol.CreateVault(ctx, testOperator, 0, 0, "late")
	require.True(t, errors.Is(err, context.Canceled))

	vaults, err := f.protocol.Vaults(context.Background())
	require.NoError(t, err)
	require.Empty(t, vaults)
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	f := newFixture(t, db, cdp.DefaultParams())
	ctx := context.Background()
	_, err = f.protocol.InitializeRegistry(ctx, testAuthority, testTreasury)
	require.NoError(t, err)
	created := f.openVault(t)
	db.Close()

	reopened, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer reopened.Close()
	g := newFixture(t, reopened, cdp.DefaultParams())
	v, err := g.protocol.Vault(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "alpha", v.Name)
	require.Equal(t, testOperator, v.Operator)
}

func TestCommittedOperationLogsWriteCount(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	clock := epoch.NewManual(1, time.Unix(1_700_000_000, 0))
	p := NewProtocol(state.NewManager(storage.NewMemDB()), clock, vault.DefaultParams(), cdp.DefaultParams(), WithLogger(logger))
	ctx := context.Background()

	_, err := p.InitializeRegistry(ctx, testAuthority, testTreasury)
	require.NoError(t, err)
	_, err = p.InitializeRegistry(ctx, testAuthority, testTreasury)
	require.Error(t, err)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var committed map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &committed))
	require.Equal(t, "protocol operation committed", committed["msg"])
	require.Greater(t, committed["writes"], float64(0))

	var rejected map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &rejected))
	require.Equal(t, "protocol operation rejected", rejected["msg"])
	require.NotContains(t, rejected, "writes")
}
