// Vectord is the resilient vector document store daemon for CQ Intelligence.
//
// This binary starts the vectord HTTP server with full store initialization:
// pooled MongoDB connection behind a circuit breaker, query cache, Atlas
// search index verification, and an optional expired-document sweeper.
//
// Configuration is loaded from a YAML file and environment variables. See
// internal/config for details.
//
// Usage:
//
//	# Start daemon with defaults (~/.config/vectord/config.yaml)
//	vectord
//
//	# Explicit config file
//	vectord -config /etc/vectord/config.yaml
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9091 MONGO_URI=mongodb://localhost:27017 vectord
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cqanalytics/vectord/internal/config"
	vdhttp "github.com/cqanalytics/vectord/internal/http"
	"github.com/cqanalytics/vectord/internal/logging"
	"github.com/cqanalytics/vectord/internal/telemetry"
	"github.com/cqanalytics/vectord/internal/vectorstore"
	"github.com/cqanalytics/vectord/pkg/server"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/vectord/config.yaml)")
	flag.Parse()
	args := flag.Args()

	// Handle subcommands
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  vectord            Start the vectord daemon\n")
			fmt.Fprintf(os.Stderr, "  vectord version    Show version information\n")
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("vectord by CQ Analytics\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the vectord server and blocks until context is cancelled.
//
// This function initializes all dependencies:
//  1. Loads and validates configuration
//  2. Initializes telemetry and the structured logger
//  3. Connects the vector store and ensures collections and indexes
//  4. Starts the expired-document sweeper (if configured)
//  5. Registers HTTP routes and starts the server
//  6. Performs graceful shutdown on context cancellation
//
// Returns http.ErrServerClosed on graceful shutdown.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info(ctx, "starting vectord",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Mongo.Database),
		zap.String("collection", cfg.Mongo.Collection),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	deps, err := initDependencies(ctx, cfg, logger, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	// Expired-document sweeper alongside the server-side TTL monitor.
	if interval := cfg.Retention.SweepInterval.Duration(); interval > 0 {
		go runSweeper(ctx, deps.store, logger, interval)
		logger.Info(ctx, "sweeper started", zap.Duration("interval", interval))
	}

	srv := server.NewServer(cfg, logger)

	api, err := vdhttp.NewAPI(deps.store, logger, version)
	if err != nil {
		return fmt.Errorf("failed to create API: %w", err)
	}
	api.RegisterRoutes(srv.Echo())

	logger.Info(ctx, "server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/healthz", cfg.Server.Port)),
		zap.String("api_prefix", "/v1"),
		zap.String("metrics_endpoint", "/metrics"))

	// Start server (blocks until context cancellation)
	return srv.Start(ctx)
}

// dependencies holds all infrastructure dependencies.
type dependencies struct {
	store     *vectorstore.Store
	telemetry *telemetry.Telemetry
	logger    *logging.Logger
}

// Close releases all infrastructure resources.
func (d *dependencies) Close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if d.store != nil {
		if err := d.store.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn(shutdownCtx, "store shutdown failed", zap.Error(err))
		}
	}
	if d.telemetry != nil {
		if err := d.telemetry.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}
	if d.logger != nil {
		_ = d.logger.Sync() // Best-effort sync
	}
}

// initLogger builds the structured logger from the operator-facing log
// section, leaving the pipeline defaults (redaction, sampling tiers, caller
// annotation) in place.
func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()

	level, err := logging.LevelFromString(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logCfg.Level = level
	logCfg.Format = cfg.Log.Format
	logCfg.Sampling.Enabled = cfg.Log.Sampling
	logCfg.Output.OTEL = cfg.Telemetry.Enabled && tel.LoggerProvider() != nil
	logCfg.Fields["version"] = version

	return logging.NewLogger(logCfg, tel.LoggerProvider())
}

// initDependencies connects the vector store and ensures the schema.
//
// Startup is fail-fast: vectord refuses to start while MongoDB is
// unreachable. Transient outages after a successful start are the circuit
// breaker's job. The one survivable gap is the Atlas vector search index:
// deployments without a search service still serve CRUD and text search,
// and vector queries report their missing index per request.
func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger, tel *telemetry.Telemetry) (*dependencies, error) {
	store, err := vectorstore.New(cfg.StoreConfig(), logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := store.EnsureCollections(ctx); err != nil {
		shutdownStore(store, logger)
		return nil, fmt.Errorf("failed to ensure collections: %w", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		shutdownStore(store, logger)
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	if err := store.EnsureVectorSearchIndex(ctx); err != nil {
		if errors.Is(err, vectorstore.ErrSearchUnavailable) {
			logger.Warn(ctx, "vector search index unavailable on this deployment; vector and hybrid search will report it per request",
				zap.Error(err))
		} else {
			logger.Warn(ctx, "failed to ensure vector search index", zap.Error(err))
		}
	}

	logger.Info(ctx, "store initialized",
		zap.String("database", store.Database()),
		zap.String("collection", store.Collection()))

	return &dependencies{
		store:     store,
		telemetry: tel,
		logger:    logger,
	}, nil
}

func shutdownStore(store *vectorstore.Store, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "store shutdown failed", zap.Error(err))
	}
}

// runSweeper deletes expired documents on a fixed interval until the
// context is cancelled.
func runSweeper(ctx context.Context, store *vectorstore.Store, logger *logging.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := store.SweepExpired(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn(ctx, "sweep failed", zap.Error(err))
				continue
			}
			if result.DeletedCount > 0 {
				logger.Info(ctx, "swept expired documents",
					zap.Int64("deleted", result.DeletedCount))
			}
		}
	}
}
