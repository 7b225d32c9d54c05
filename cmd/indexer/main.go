package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/screwyprof/stakeflow/indexer"
	"github.com/screwyprof/stakeflow/indexer/config"
	"github.com/screwyprof/stakeflow/indexer/store/pgxstore"
	"github.com/screwyprof/stakeflow/pkg/logger"
	"github.com/screwyprof/stakeflow/pkg/pgxdb"
	"github.com/screwyprof/stakeflow/pkg/starknet"
)

var (
	version = "dev"
	date    = "unknown"
)

func main() {
	// Load configuration
	cfg := config.New()

	// Initialize logger and set as default
	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	// Prepare context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.InfoContext(ctx, "Stakeflow indexer starting",
		slog.String("version", version),
		slog.String("date", date),
	)

	// Database connection; the schema and checkpoint are owned by the migrator
	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL, pgxdb.WithApplicationName("stakeflow-indexer"))
	if err != nil {
		log.ErrorContext(ctx, "Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize store, it owns the pool from here on
	store, storeCloser := pgxstore.New(db)
	defer storeCloser()

	// HTTP client & Starknet JSON-RPC client
	httpClient := &http.Client{Timeout: cfg.HttpClientTimeout}
	rpc := starknet.NewClient(httpClient, cfg.RPCURL,
		starknet.WithMaxTries(cfg.RPCMaxTries),
		starknet.WithRateLimit(cfg.RPCRateLimit, max(1, int(cfg.RPCRateLimit))),
	)

	// Expose metrics
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.InfoContext(ctx, "Metrics server started", slog.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "Metrics server failed", slog.Any("error", err))
		}
	}()

	// Create indexer service
	indexerService := indexer.NewService(
		rpc,
		store,
		indexer.WithBlockRange(cfg.BlockRange),
		indexer.WithPageSize(cfg.PageSize),
		indexer.WithConcurrency(cfg.Concurrency),
		indexer.WithPollInterval(cfg.PollInterval),
	)

	// Start service
	log.InfoContext(ctx, "Starting delegation indexer service",
		slog.Uint64("blockRange", cfg.BlockRange),
		slog.Int("concurrency", cfg.Concurrency),
		slog.String("rpc", cfg.RPCURL),
	)
	events, done := indexerService.Start(ctx)

	// Subscribe to events for logging
	subCloser := setupEventLogging(ctx, events, log)
	defer subCloser()

	// Wait for shutdown
	<-done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(ctx, "Metrics server forced to shutdown", slog.Any("error", err))
	}

	log.InfoContext(ctx, "Indexer service stopped gracefully")
}

// setupEventLogging configures event handlers using slog directly
func setupEventLogging(ctx context.Context, events <-chan indexer.Event, log *slog.Logger) func() {
	return indexer.NewSubscriber(events,
		indexer.OnBackfillStarted(func(event indexer.BackfillStarted) {
			log.InfoContext(ctx, "Backfill started",
				slog.String("startedAt", event.StartedAt.Format(logger.BritishTimeFormat)),
				slog.Uint64("checkpoint", event.Checkpoint),
			)
		}),
		indexer.OnBackfillSyncCompleted(func(event indexer.BackfillSyncCompleted) {
			log.InfoContext(ctx, "Backfill batch completed",
				slog.Int("fetched", event.Fetched),
				slog.Uint64("checkpoint", event.Checkpoint),
				slog.Uint64("head", event.Head),
			)
		}),
		indexer.OnBackfillDone(func(event indexer.BackfillDone) {
			log.InfoContext(ctx, "Backfill completed",
				slog.Int64("totalProcessed", event.TotalProcessed),
				slog.Duration("duration", event.Duration),
				slog.Uint64("checkpoint", event.Checkpoint),
			)
		}),
		indexer.OnBackfillError(func(event indexer.BackfillError) {
			log.ErrorContext(ctx, "Backfill failed", slog.Any("error", event.Err))
		}),
		indexer.OnPollingStarted(func(event indexer.PollingStarted) {
			log.InfoContext(ctx, "Polling started",
				slog.Duration("interval", event.Interval),
			)
		}),
		indexer.OnPollingSyncCompleted(func(event indexer.PollingSyncCompleted) {
			if event.Fetched > 0 {
				log.InfoContext(ctx, "Polling cycle completed",
					slog.Int("fetched", event.Fetched),
					slog.Uint64("checkpoint", event.Checkpoint),
				)
			} else {
				log.DebugContext(ctx, "Polling cycle completed, no new events",
					slog.Uint64("head", event.Head),
				)
			}
		}),
		indexer.OnPollingShutdown(func(event indexer.PollingShutdown) {
			log.InfoContext(ctx, "Polling stopped",
				slog.String("reason", event.Reason.Error()),
			)
		}),
		indexer.OnPollingError(func(event indexer.PollingError) {
			log.ErrorContext(ctx, "Polling failed", slog.Any("error", event.Err))
		}),
	)
}
