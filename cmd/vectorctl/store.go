package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/cqanalytics/vectord/internal/config"
	"github.com/cqanalytics/vectord/internal/logging"
	"github.com/cqanalytics/vectord/internal/vectorstore"
)

// skipVector disables Atlas vector search index creation during setup
var skipVector bool

// setupCmd provisions collections and indexes
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create vectord collections and indexes",
	Long: `Connect directly to MongoDB and create the collections and indexes a
vectord deployment needs: the document collections, the tenant/source/status
compound index, the time index, the text index, the TTL expiry index, and
the Atlas vector search index.

Every step is idempotent; rerunning setup on a provisioned deployment is
safe.

Examples:
  # Full setup (requires Atlas search)
  vectorctl setup

  # Setup without Atlas vector search
  vectorctl setup --skip-vector`,
	RunE: runSetup,
}

// sweepCmd force-deletes expired documents
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired documents now",
	Long: `Delete documents whose expiry timestamp has passed. The TTL index
deletes these eventually; sweep forces the deletion now and reports the
count.

Examples:
  vectorctl sweep`,
	RunE: runSweep,
}

func init() {
	setupCmd.Flags().BoolVar(&skipVector, "skip-vector", false, "skip the Atlas vector search index (deployments without a search service)")
}

// openStore loads configuration and connects a store for direct-MongoDB
// commands. The caller must call closeStore when done.
func openStore(ctx context.Context) (*vectorstore.Store, *config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newToolLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := vectorstore.New(cfg.StoreConfig(), logger.Underlying())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Initialize(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	return store, cfg, nil
}

// closeStore shuts the store down with a fresh timeout so cleanup survives
// a cancelled command context.
func closeStore(store *vectorstore.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = store.Shutdown(ctx)
}

// newToolLogger builds a quiet console logger for operator tools. Progress
// goes through fmt; the store's own logging only surfaces warnings.
func newToolLogger() (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	logCfg.Level = zapcore.WarnLevel
	logCfg.Format = "console"
	logCfg.Sampling.Enabled = false
	logCfg.Caller.Enabled = false
	return logging.NewLogger(logCfg, nil)
}

// runSetup handles the setup command
func runSetup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	fmt.Printf("Setting up %s.%s\n", store.Database(), store.Collection())

	if err := store.EnsureCollections(ctx); err != nil {
		return fmt.Errorf("failed to ensure collections: %w", err)
	}
	fmt.Println("✓ collections ensured")

	if err := store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}
	fmt.Println("✓ indexes ensured")

	if skipVector {
		fmt.Println("- vector search index skipped (--skip-vector)")
		return nil
	}

	if err := store.EnsureVectorSearchIndex(ctx); err != nil {
		if errors.Is(err, vectorstore.ErrSearchUnavailable) {
			return fmt.Errorf("%w\n\nThis deployment has no Atlas search service. Rerun with --skip-vector to provision without vector search; vector and hybrid queries will be unavailable", err)
		}
		return fmt.Errorf("failed to ensure vector search index: %w", err)
	}
	fmt.Printf("✓ vector search index ensured (%s, %d dimensions)\n",
		cfg.Search.VectorIndex, vectorstore.EmbeddingDimensions)

	return nil
}

// runSweep handles the sweep command
func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	result, err := store.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Printf("Deleted %d expired document(s)\n", result.DeletedCount)
	return nil
}
