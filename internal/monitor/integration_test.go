//go:build integration
// +build integration

package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClient_Integration tests against a real vectord daemon.
// Run with: go test -tags=integration ./internal/monitor/...
func TestClient_Integration(t *testing.T) {
	daemonURL := "http://localhost:9091"
	client := NewClient(daemonURL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("stats", func(t *testing.T) {
		stats, err := client.Stats(ctx)
		require.NoError(t, err, "vectord should be reachable at %s", daemonURL)
		assert.NotEmpty(t, stats.Database)
		assert.NotEmpty(t, stats.Collection)
		assert.NotEmpty(t, stats.Breaker.State)
		t.Logf("Stats: %s.%s, %d total operations",
			stats.Database, stats.Collection, stats.Operations.Total())
	})

	t.Run("health", func(t *testing.T) {
		health, err := client.Health(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, health.Status)
		t.Logf("Health: %s (connected=%v, initialized=%v)",
			health.Status, health.Connected, health.Initialized)
	})
}

// TestMonitorModel_Integration exercises the full snapshot fetch against a
// real daemon.
func TestMonitorModel_Integration(t *testing.T) {
	daemonURL := "http://localhost:9091"
	model := NewModel(daemonURL, 5*time.Second)

	cmd := model.Init()
	require.NotNil(t, cmd, "Init should return command")

	fetchCmd := fetchSnapshot(daemonURL)
	msg := fetchCmd()

	switch msg := msg.(type) {
	case snapshotMsg:
		require.NotNil(t, msg.stats)
		require.NotNil(t, msg.health)
		t.Logf("Snapshot: health=%s breaker=%s cache_hit_rate=%.2f",
			msg.health.Status, msg.stats.Breaker.State, msg.stats.Cache.HitRate)

		updated, _ := model.Update(msg)
		m := updated.(Model)
		assert.NotNil(t, m.stats)
		assert.False(t, m.lastUpdate.IsZero())

	case errMsg:
		t.Logf("Error fetching snapshot (expected if vectord is not running): %v", msg)

	default:
		t.Fatalf("Unexpected message type: %T", msg)
	}
}
