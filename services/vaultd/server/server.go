package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"stakevault/core"
	"stakevault/core/events"
	"stakevault/native/cdp"
	"stakevault/native/vault"
	"stakevault/observability"
)

const module = "vaultd"

// Backend is the protocol surface served over HTTP. *core.Protocol satisfies
// it.
type Backend interface {
	Registry(ctx context.Context) (*vault.Registry, error)
	SetPaused(ctx context.Context, caller [20]byte, paused bool) error
	CreditBase(ctx context.Context, caller, holder [20]byte, amount uint64) error

	Vaults(ctx context.Context) ([]*vault.Vault, error)
	Vault(ctx context.Context, id uint64) (*vault.Vault, error)
	CreateVault(ctx context.Context, operator [20]byte, feeBps uint16, maxCapacity uint64, name string) (*vault.Vault, error)
	SetAcceptingDeposits(ctx context.Context, caller [20]byte, vaultID uint64, accepting bool) error
	Deposit(ctx context.Context, user [20]byte, vaultID, amount uint64) (*vault.DepositResult, error)
	ReportBalance(ctx context.Context, caller [20]byte, vaultID, newTotalStaked uint64) (vault.RewardSplit, error)
	DelegateStake(ctx context.Context, caller [20]byte, vaultID, amount uint64) error

	Controller(ctx context.Context) (*cdp.Controller, error)
	ControllerRatio(ctx context.Context) (uint64, error)
	Position(ctx context.Context, owner [20]byte, vaultID uint64) (*cdp.Position, error)
	PositionHealth(ctx context.Context, owner [20]byte, vaultID uint64) (core.PositionHealth, error)
	MintSynthetic(ctx context.Context, user [20]byte, vaultID, collateral, amount uint64) (*cdp.MintResult, error)
	BurnSynthetic(ctx context.Context, user [20]byte, vaultID, amount uint64) (*cdp.BurnResult, error)
	Liquidate(ctx context.Context, liquidator, owner [20]byte, vaultID uint64) (*cdp.LiquidationResult, error)

	RequestWithdrawal(ctx context.Context, user [20]byte, vaultID, shares uint64) (*vault.WithdrawalTicket, error)
	ClaimWithdrawal(ctx context.Context, caller [20]byte, ref vault.TicketRef) (*vault.WithdrawalTicket, error)
	Ticket(ctx context.Context, ref vault.TicketRef) (*vault.WithdrawalTicket, error)
	TicketReady(ctx context.Context, ref vault.TicketRef) (bool, error)
	TicketsFor(ctx context.Context, user [20]byte) ([]*vault.WithdrawalTicket, error)

	Balance(ctx context.Context, asset, holder [20]byte) (uint64, error)
}

// Config bundles the HTTP-layer settings.
type Config struct {
	Auth      AuthConfig
	RateLimit RateLimit
	// AllowedOrigins enables browser access when non-empty.
	AllowedOrigins []string
	// Events, when set, is served at GET /v1/events as a websocket stream.
	Events *events.Stream
}

// Server exposes the protocol as a JSON API.
type Server struct {
	backend Backend
	auth    *Authenticator
	limiter *RateLimiter
	origins []string
	events  *events.Stream
	logger  *slog.Logger
}

// New constructs a server over backend.
func New(backend Backend, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		backend: backend,
		auth:    NewAuthenticator(cfg.Auth, logger),
		limiter: NewRateLimiter(cfg.RateLimit),
		origins: append([]string(nil), cfg.AllowedOrigins...),
		events:  cfg.Events,
		logger:  logger,
	}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(read chi.Router) {
			read.Use(s.limiter.Middleware("read"))
			read.Get("/registry", s.handleRegistry)
			read.Get("/controller", s.handleController)
			read.Get("/vaults", s.handleVaults)
			read.Get("/vaults/{id}", s.handleVault)
			read.Get("/vaults/{id}/positions/{owner}", s.handlePosition)
			read.Get("/vaults/{id}/withdrawals/{owner}/{ticket}", s.handleTicket)
			read.Get("/tickets/{owner}", s.handleTickets)
			read.Get("/balances/{owner}", s.handleBalances)
			if s.events != nil {
				read.Get("/events", s.handleEvents)
			}
		})
		v1.Group(func(write chi.Router) {
			write.Use(s.auth.Middleware)
			write.Use(s.limiter.Middleware("write"))
			write.Post("/registry/pause", s.handlePause)
			write.Post("/ledger/credit", s.handleCredit)
			write.Post("/vaults", s.handleCreateVault)
			write.Post("/vaults/{id}/accepting", s.handleAccepting)
			write.Post("/vaults/{id}/deposit", s.handleDeposit)
			write.Post("/vaults/{id}/report", s.handleReport)
			write.Post("/vaults/{id}/delegate", s.handleDelegate)
			write.Post("/vaults/{id}/mint", s.handleMint)
			write.Post("/vaults/{id}/burn", s.handleBurn)
			write.Post("/vaults/{id}/liquidate/{owner}", s.handleLiquidate)
			write.Post("/vaults/{id}/withdrawals", s.handleRequestWithdrawal)
			write.Post("/vaults/{id}/withdrawals/{owner}/{ticket}/claim", s.handleClaimWithdrawal)
		})
	})

	var h http.Handler = r
	if len(s.origins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         600,
		}).Handler(h)
	}
	return otelhttp.NewHandler(h, module)
}

// observe records per-route latency and status once the handler returns.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		elapsed := time.Since(start)
		observability.ModuleMetrics().Observe(route, r.Method, recorder.status, elapsed)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", recorder.status),
			slog.Duration("elapsed", elapsed),
			slog.String("request_id", requestIDFrom(r.Context())),
		)
	})
}
