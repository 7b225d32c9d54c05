package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/screwyprof/stakeflow/analytics"
	"github.com/screwyprof/stakeflow/pkg/clock"
	"github.com/screwyprof/stakeflow/pkg/httpkit"
	"github.com/screwyprof/stakeflow/pkg/logger"
	"github.com/screwyprof/stakeflow/pkg/pgxdb"
	"github.com/screwyprof/stakeflow/pkg/starknet"
	"github.com/screwyprof/stakeflow/staking"
	"github.com/screwyprof/stakeflow/web/config"
	"github.com/screwyprof/stakeflow/web/handler"
	"github.com/screwyprof/stakeflow/web/store/pgxstore"
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

	log.InfoContext(ctx, "Stakeflow Web API Service starting",
		slog.String("version", version),
		slog.String("date", date),
	)

	// Initialize database connection
	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL, pgxdb.WithApplicationName("stakeflow-web"))
	if err != nil {
		log.ErrorContext(ctx, "Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize store, it owns the pool from here on
	store, storeCloser := pgxstore.New(db)
	defer storeCloser()

	// Token reads for the planner go through the node
	rpc := starknet.NewClient(&http.Client{Timeout: cfg.HttpClientTimeout}, cfg.RPCURL,
		starknet.WithMaxTries(cfg.RPCMaxTries),
		starknet.WithRateLimit(cfg.RPCRateLimit, max(1, int(cfg.RPCRateLimit))),
	)
	token := starknet.NewToken(rpc, cfg.TokenAddress)

	// Create HTTP server
	mux := http.NewServeMux()

	handler.NewStrkGetValidators(store, staking.RandomPicker()).AddRoutes(mux)
	handler.NewStrkGetFlow(store, analytics.NewAggregator(), clock.System{}).AddRoutes(mux)
	handler.NewStrkStake(staking.NewPlanner(token), staking.NewRecorder(store, log)).AddRoutes(mux)
	handler.NewStrkGetUnpool(store).AddRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// The dashboard runs on another origin
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", httpkit.RequestIDHeader},
		ExposedHeaders: []string{"Link", httpkit.RequestIDHeader},
	})

	// Wrap with logging middleware
	loggedMux := logger.NewMiddleware(log)(c.Handler(mux))

	// Create server address
	addr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)

	server := &http.Server{
		Addr:              addr,
		Handler:           loggedMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.InfoContext(ctx, "Server started", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "Server failed to start", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.InfoContext(ctx, "Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(ctx, "Server forced to shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	log.InfoContext(ctx, "Server exited gracefully")
}
