package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/projectrag/internal/config"
	"github.com/fyrsmithlabs/projectrag/internal/engine"
	httpserver "github.com/fyrsmithlabs/projectrag/internal/http"
	"github.com/fyrsmithlabs/projectrag/internal/logging"
	"github.com/fyrsmithlabs/projectrag/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Load the persisted vectors and serve the HTTP API until SIGINT or SIGTERM.

Examples:
  # Serve with the default config file
  projectrag serve

  # Override the port and embedding provider
  PROJECTRAG_SERVER_PORT=8080 PROJECTRAG_EMBEDDINGS_PROVIDER=tei \
  PROJECTRAG_EMBEDDINGS_BASE_URL=http://localhost:8081 projectrag serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, configPath)
	},
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	logCfg, err := logging.FromAppConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	return logging.NewLogger(logCfg)
}

func runServe(ctx context.Context, path string) error {
	cfg, err := config.LoadWithFile(path)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zl := logger.Underlying()

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		}
	}()
	if err := tel.Degraded(); err != nil {
		logger.Warn(ctx, "telemetry degraded", zap.Error(err))
	} else if tel.Exporting() {
		logger.Info(ctx, "telemetry exporting", zap.String("endpoint", cfg.Telemetry.Endpoint))
	}

	comps, err := buildStore(ctx, cfg, newGuard(cfg.Ownership), zl.Named("vectorstore"))
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			logger.Error(context.Background(), "closing store", zap.Error(err))
		}
	}()

	eng := engine.New(comps.store,
		engine.WithDefaultTopK(cfg.Store.DefaultTopK),
		engine.WithLogger(zl.Named("engine")),
	)

	srv, err := httpserver.NewServer(eng, logger.Named("http"), &httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout.Duration(),
		RateLimit:      cfg.Server.RateLimit,
		StatsToken:     cfg.Server.StatsToken.Value(),
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "projectrag starting",
		zap.String("version", version),
		zap.String("addr", srv.Addr()),
		zap.String("persistence", cfg.Persistence.Driver),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.String("ownership", cfg.Ownership.Mode),
		zap.Bool("stats_enabled", cfg.Server.StatsToken.IsSet()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info(context.Background(), "projectrag stopped")
	return nil
}
