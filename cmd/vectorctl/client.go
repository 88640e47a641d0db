package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/cqanalytics/vectord/internal/monitor"
)

// monitorInterval is the dashboard refresh interval
var monitorInterval time.Duration

// healthCmd checks daemon and store health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check vectord store health",
	Long: `Check the health of a running vectord daemon and its backing store.

Examples:
  # Check health
  vectorctl health

  # Check health on a different server
  vectorctl health --url http://localhost:8080`,
	RunE: runHealth,
}

// statsCmd dumps the operational snapshot
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vectord operation, cache, and breaker statistics",
	Long: `Fetch and print the daemon's operational snapshot: operation counters,
cache accounting, circuit breaker state, and live document counts.

Examples:
  # Show stats
  vectorctl stats

  # Show stats from a different server
  vectorctl stats --url http://localhost:8080`,
	RunE: runStats,
}

// monitorCmd runs the live terminal dashboard
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live terminal dashboard for a vectord daemon",
	Long: `Run a full-screen terminal dashboard that polls the daemon and renders
breaker state, cache hit rate, and operation/search rates.

Examples:
  # Monitor with the default 5s refresh
  vectorctl monitor

  # Faster refresh
  vectorctl monitor --interval 2s`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 5*time.Second, "dashboard refresh interval")
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	client := monitor.NewClient(daemonURL)

	health, err := client.Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to reach vectord at %s: %w", daemonURL, err)
	}

	fmt.Printf("Status:      %s\n", health.Status)
	fmt.Printf("Connected:   %v\n", health.Connected)
	fmt.Printf("Initialized: %v\n", health.Initialized)
	fmt.Printf("Breaker:     %s\n", health.Breaker.State)
	if health.Detail != "" {
		fmt.Printf("Detail:      %s\n", health.Detail)
	}

	return nil
}

// runStats handles the stats command
func runStats(cmd *cobra.Command, args []string) error {
	client := monitor.NewClient(daemonURL)

	stats, err := client.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to reach vectord at %s: %w", daemonURL, err)
	}

	ops := stats.Operations
	fmt.Printf("Store:       %s.%s\n", stats.Database, stats.Collection)
	fmt.Printf("Operations:  %d total\n", ops.Total())
	fmt.Printf("  Inserts:   %d (+%d bulk)\n", ops.Inserts, ops.BulkInserts)
	fmt.Printf("  Reads:     %d\n", ops.Reads)
	fmt.Printf("  Updates:   %d\n", ops.Updates)
	fmt.Printf("  Deletes:   %d\n", ops.Deletes)
	fmt.Printf("  Searches:  %d vector, %d text, %d hybrid\n",
		ops.VectorSearches, ops.TextSearches, ops.HybridSearches)
	fmt.Printf("  Failures:  %d\n", ops.Failures)

	if stats.Cache.Enabled {
		fmt.Printf("Cache:       %d/%d entries, %.1f%% hit rate\n",
			stats.Cache.Entries, stats.Cache.MaxSize, stats.Cache.HitRate*100)
		fmt.Printf("  Hits:      %d\n", stats.Cache.Hits)
		fmt.Printf("  Misses:    %d\n", stats.Cache.Misses)
		fmt.Printf("  Evictions: %d\n", stats.Cache.Evictions)
		fmt.Printf("  Expired:   %d\n", stats.Cache.Expired)
	} else {
		fmt.Printf("Cache:       disabled\n")
	}

	fmt.Printf("Breaker:     %s (%d/%d failures, %d trips)\n",
		stats.Breaker.State, stats.Breaker.FailureCount,
		stats.Breaker.FailureThreshold, ops.BreakerTrips)

	if stats.Documents != nil {
		fmt.Printf("Documents:   %d total\n", stats.Documents.Total)
		for _, status := range []string{"active", "archived", "deprecated"} {
			if n, ok := stats.Documents.ByStatus[status]; ok {
				fmt.Printf("  %-10s %d\n", status+":", n)
			}
		}
	}

	return nil
}

// runMonitor handles the monitor command
func runMonitor(cmd *cobra.Command, args []string) error {
	model := monitor.NewModel(daemonURL, monitorInterval)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}

	return nil
}
