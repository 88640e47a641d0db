// Package main implements the vectorctl CLI for operator tasks against a
// vectord deployment: daemon inspection (health, stats, monitor) over HTTP,
// and direct-MongoDB maintenance (setup, backup, restore, sweep).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// daemonURL is the base URL for the vectord HTTP server
	daemonURL string
	// configPath selects the config file for direct-store commands
	configPath string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vectorctl",
	Short: "CLI for vectord operations",
	Long: `vectorctl is a command-line interface for operating a vectord deployment.

Daemon commands (health, stats, monitor) talk to a running vectord over
HTTP. Store commands (setup, backup, restore, sweep) connect directly to
MongoDB using the vectord configuration file.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&daemonURL, "url", "http://localhost:9091", "vectord server URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/vectord/config.yaml)")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(sweepCmd)
}
