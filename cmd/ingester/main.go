package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/txingest/service/config"
	"github.com/brojonat/txingest/service/db"
	"github.com/brojonat/txingest/service/feed"
	"github.com/brojonat/txingest/service/ingest"
	"github.com/brojonat/txingest/service/metrics"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "ingester",
		Usage:   "Solana transaction feed ingestion daemon",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Description: `Subscribes to a push-based transaction feed, decodes each update into a
canonical record and persists it idempotently into Postgres. Reconnects
with exponential backoff on any stream failure and runs until terminated.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "endpoint",
				Aliases: []string{"e"},
				Usage:   "Feed service endpoint",
				EnvVars: []string{"FEED_URL"},
				Value:   "nats://127.0.0.1:4222",
			},
			&cli.StringFlag{
				Name:    "x-token",
				Usage:   "Feed access token",
				EnvVars: []string{"FEED_X_TOKEN"},
			},
			&cli.StringSliceFlag{
				Name:    "accounts",
				Aliases: []string{"a"},
				Usage:   "Filter included account in transactions (repeatable)",
			},
			&cli.StringFlag{
				Name:  "commitment",
				Usage: "Commitment level: processed, confirmed or finalized",
				Value: "finalized",
			},
		},
		Action: runIngester,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runIngester(c *cli.Context) error {
	// Load and validate configuration from environment.
	// This fails fast (non-zero exit) if any required config is missing.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	commitment, err := feed.ParseCommitment(c.String("commitment"))
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting ingester",
		"endpoint", c.String("endpoint"),
		"accounts", c.StringSlice("accounts"),
		"commitment", commitment.String(),
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Verify database connection
	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	store := db.NewStore(dbPool)

	// Initialize Prometheus metrics collector and HTTP server
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("starting metrics HTTP server", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	endpoint := c.String("endpoint")
	token := c.String("x-token")

	supervisor := ingest.NewSupervisor(ingest.SupervisorConfig{
		Dial: func(ctx context.Context) (feed.Client, error) {
			return feed.Dial(endpoint, token, logger)
		},
		Request: &feed.SubscribeRequest{
			Accounts:   c.StringSlice("accounts"),
			Commitment: commitment,
		},
		Sink:    ingest.NewStoreSink(store),
		Retry:   ingest.NewRetryState(cfg.InitialBackoff, cfg.MaxBackoff),
		Metrics: metricsCollector,
		Logger:  logger,
	})

	// Run the supervisor in the background and wait for it to stop or for
	// a shutdown signal.
	supervisorErrors := make(chan error, 1)
	go func() {
		supervisorErrors <- supervisor.Run(ctx)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-supervisorErrors:
		logger.Error("supervisor stopped", "error", err)
		return err
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
		<-supervisorErrors
		logger.Info("shutdown complete")
	}
	return nil
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
