package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	protocolconfig "stakevault/config"
	"stakevault/core"
	"stakevault/core/epoch"
	"stakevault/core/events"
	"stakevault/core/state"
	"stakevault/observability/logging"
	"stakevault/observability/telemetry"
	"stakevault/services/vaultd/config"
	"stakevault/services/vaultd/server"
	"stakevault/storage"
)

// eventLogger writes committed protocol events to the structured log.
type eventLogger struct {
	logger *slog.Logger
}

func (l eventLogger) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	payload := evt.Event()
	attrs := make([]any, 0, len(payload.Attributes)+1)
	attrs = append(attrs, slog.String("type", payload.Type))
	for key, value := range payload.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	l.logger.Info("protocol event", attrs...)
}

// Command builds the daemon command.
func Command() *cobra.Command {
	c := &cobra.Command{
		Use:          "vaultd",
		Short:        "Serve the stakevault protocol over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(c *cobra.Command, _ []string) error {
			cfgPath, err := ParseFlags(c.Flags())
			if err != nil {
				return err
			}
			return run(cfgPath)
		},
	}
	AddFlags(c.Flags())
	return c
}

func main() {
	if err := Command().Execute(); err != nil {
		slog.Error("vaultd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	env := strings.TrimSpace(os.Getenv("STAKEVAULT_ENV"))
	logger := logging.Setup("vaultd", env,
		logging.WithLevel(level),
		logging.WithFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups),
	)
	logger.Info("configuration loaded",
		logging.MaskField("listen", cfg.ListenAddress),
		logging.MaskField("protocol_config", cfg.ProtocolConfig),
		logging.MaskField("hmac_secret", cfg.Auth.HMACSecret),
		logging.MaskField("issuer", cfg.Auth.Issuer),
		logging.MaskField("log_file", cfg.Log.File),
		logging.MaskField("otel_endpoint", cfg.Telemetry.Endpoint),
	)

	endpoint := cfg.Telemetry.Endpoint
	if fromEnv := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); fromEnv != "" {
		endpoint = fromEnv
	}
	headers := cfg.Telemetry.Headers
	if fromEnv := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); len(fromEnv) > 0 {
		headers = fromEnv
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "vaultd",
		Environment: env,
		Endpoint:    endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	protoCfg, err := protocolconfig.Load(cfg.ProtocolConfig)
	if err != nil {
		return fmt.Errorf("load protocol config: %w", err)
	}
	clock, err := epoch.NewWall(protoCfg.EpochConfig(), nil)
	if err != nil {
		return fmt.Errorf("configure epochs: %w", err)
	}
	db, err := storage.Open(protoCfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()
	logger.Info("storage opened", slog.String("backend", protoCfg.Storage.Backend), logging.MaskField("data_dir", protoCfg.Storage.DataDir))

	stream := events.NewStream(cfg.Events.History)
	protocol := core.NewProtocol(state.NewManager(db), clock, protoCfg.VaultParams(), protoCfg.CollateralParams(),
		core.WithLogger(logger),
		core.WithEmitter(events.Fanout{eventLogger{logger: logger}, stream}),
	)
	if err := bootstrap(context.Background(), protocol, protoCfg); err != nil {
		return err
	}

	srv := server.New(protocol, server.Config{
		Auth: server.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew,
		},
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Events:         stream,
	}, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("vaultd listening", slog.String("listen", cfg.ListenAddress))
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", slog.String("error", err.Error()))
			_ = httpServer.Close()
		}
		return nil
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	}
}

// bootstrap creates the registry on first start using the configured
// identities.
func bootstrap(ctx context.Context, protocol *core.Protocol, cfg *protocolconfig.Config) error {
	initialized, err := protocol.Initialized(ctx)
	if err != nil {
		return fmt.Errorf("inspect registry: %w", err)
	}
	if initialized {
		return nil
	}
	authority, err := cfg.AuthorityIdentity()
	if err != nil {
		return fmt.Errorf("bootstrap registry: %w", err)
	}
	treasury, err := cfg.TreasuryIdentity()
	if err != nil {
		return fmt.Errorf("bootstrap registry: %w", err)
	}
	if _, err := protocol.InitializeRegistry(ctx, authority, treasury); err != nil {
		return fmt.Errorf("bootstrap registry: %w", err)
	}
	return nil
}
