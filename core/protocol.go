package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stakevault/core/epoch"
	protoerrors "stakevault/core/errors"
	"stakevault/core/events"
	"stakevault/core/state"
	"stakevault/crypto"
	"stakevault/native/cdp"
	"stakevault/native/vault"
	"stakevault/observability"
)

const tracerName = "stakevault/core"

// Protocol hosts the vault and CDP engines over the state store. Mutations are
// serialised; each runs in its own transaction and publishes its events only
// after the transaction commits.
type Protocol struct {
	mu sync.RWMutex

	state       *state.Manager
	clock       epoch.Source
	vaultParams vault.Params
	cdpParams   cdp.Params
	emitter     events.Emitter
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures optional Protocol collaborators.
type Option func(*Protocol)

// WithEmitter forwards committed events to emitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(p *Protocol) {
		if emitter != nil {
			p.emitter = emitter
		}
	}
}

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Protocol) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProtocol wires the engines to manager and clock.
func NewProtocol(manager *state.Manager, clock epoch.Source, vaultParams vault.Params, cdpParams cdp.Params, opts ...Option) *Protocol {
	p := &Protocol{
		state:       manager,
		clock:       clock,
		vaultParams: vaultParams,
		cdpParams:   cdpParams,
		emitter:     events.NoopEmitter{},
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

type engines struct {
	txn    *state.Txn
	vaults *vault.Engine
	cdps   *cdp.Engine
}

func (p *Protocol) newEngines(txn *state.Txn, emitter events.Emitter) engines {
	ve := vault.NewEngine(p.vaultParams)
	ve.SetState(txn)
	ve.SetLedger(txn)
	ve.SetClock(p.clock)
	ve.SetEmitter(emitter)

	ce := cdp.NewEngine(p.cdpParams)
	ce.SetState(txn)
	ce.SetLedger(txn)
	ce.SetClock(p.clock)
	ce.SetEmitter(emitter)
	return engines{txn: txn, vaults: ve, cdps: ce}
}

// operation describes a mutation for logs, traces and metrics.
type operation struct {
	name    string
	caller  [20]byte
	vaultID uint64
	scoped  bool
	attrs   []slog.Attr
}

func (p *Protocol) execute(ctx context.Context, op *operation, fn func(engines) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := p.tracer.Start(ctx, "protocol."+op.name, trace.WithAttributes(
		attribute.String("stakevault.op", op.name),
		attribute.String("stakevault.caller", crypto.FormatIdentity(op.caller)),
	))
	defer span.End()

	start := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	txn := p.state.Begin()
	defer txn.Discard()
	buffer := &events.Buffer{}
	eng := p.newEngines(txn, buffer)

	err := fn(eng)
	writes := 0
	if err == nil {
		var snapshot *observability.VaultSnapshot
		var controller *cdp.Controller
		snapshot, controller, err = p.snapshot(eng, op)
		if err == nil {
			writes = txn.Pending()
			err = txn.Commit()
		}
		if err == nil {
			buffer.Flush(p.emitter)
			p.record(snapshot, controller)
		}
	}

	elapsed := time.Since(start)
	if op.scoped {
		span.SetAttributes(attribute.Int64("stakevault.vault", int64(op.vaultID)))
	}
	attrs := p.logAttrs(op, elapsed)
	if err != nil {
		kind := protoerrors.KindOf(err).String()
		observability.Protocol().ObserveOperation(op.name, kind, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		attrs = append(attrs, slog.String("error", err.Error()), slog.String("kind", kind))
		p.logger.LogAttrs(ctx, slog.LevelWarn, "protocol operation rejected", attrs...)
		return fmt.Errorf("%s: %w", op.name, err)
	}
	observability.Protocol().ObserveOperation(op.name, "", elapsed)
	span.SetAttributes(attribute.Int("stakevault.writes", writes))
	attrs = append(attrs, slog.Int("writes", writes))
	p.logger.LogAttrs(ctx, slog.LevelInfo, "protocol operation committed", attrs...)
	return nil
}

func (p *Protocol) logAttrs(op *operation, elapsed time.Duration) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(op.attrs)+5)
	attrs = append(attrs,
		slog.String("op", op.name),
		slog.String("caller", crypto.FormatIdentity(op.caller)),
		slog.Duration("elapsed", elapsed),
	)
	if op.scoped {
		attrs = append(attrs, slog.Uint64("vault", op.vaultID))
	}
	return append(attrs, op.attrs...)
}

// snapshot reads the committed-to-be figures for metric export.
func (p *Protocol) snapshot(eng engines, op *operation) (*observability.VaultSnapshot, *cdp.Controller, error) {
	var snapshot *observability.VaultSnapshot
	if op.scoped {
		v, err := eng.txn.GetVault(op.vaultID)
		if err != nil {
			return nil, nil, err
		}
		if v != nil {
			rate, err := v.ExchangeRate()
			if err != nil {
				return nil, nil, err
			}
			snapshot = &observability.VaultSnapshot{
				ID:                v.ID,
				TotalAssets:       v.TotalAssets,
				TotalShares:       v.TotalShares,
				BufferedLiquidity: v.BufferedLiquidity,
				TotalStaked:       v.TotalStaked,
				ExchangeRate:      rate,
			}
		}
	}
	controller, err := eng.txn.GetController()
	if err != nil {
		return nil, nil, err
	}
	return snapshot, controller, nil
}

func (p *Protocol) record(snapshot *observability.VaultSnapshot, controller *cdp.Controller) {
	metrics := observability.Protocol()
	if snapshot != nil {
		metrics.RecordVault(*snapshot)
	}
	if controller != nil {
		metrics.RecordController(controller.TotalMinted, controller.TotalCollateralValue, controller.ActivePositions)
	}
}

// view runs fn against a read-only transaction.
func (p *Protocol) view(ctx context.Context, fn func(engines) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	txn := p.state.Begin()
	defer txn.Discard()
	return fn(p.newEngines(txn, events.NoopEmitter{}))
}
