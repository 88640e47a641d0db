package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqanalytics/vectord/internal/vectorstore"
)

// withDaemonURL points the client commands at a test server for the duration
// of the test.
func withDaemonURL(t *testing.T, url string) {
	t.Helper()
	prev := daemonURL
	daemonURL = url
	t.Cleanup(func() { daemonURL = prev })
}

func TestRunHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		json.NewEncoder(w).Encode(vectorstore.Health{
			Status:      vectorstore.HealthHealthy,
			Connected:   true,
			Initialized: true,
			Timestamp:   time.Now().UTC(),
			Breaker:     vectorstore.BreakerSnapshot{State: "CLOSED"},
		})
	}))
	defer server.Close()

	withDaemonURL(t, server.URL)
	healthCmd.SetContext(context.Background())

	err := runHealth(healthCmd, nil)
	require.NoError(t, err)
}

func TestRunHealth_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	withDaemonURL(t, server.URL)
	healthCmd.SetContext(context.Background())

	err := runHealth(healthCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach vectord")
}

func TestRunStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/stats", r.URL.Path)
		json.NewEncoder(w).Encode(vectorstore.Stats{
			Database:   "cqintelligence",
			Collection: "vectordocuments",
			Operations: vectorstore.OperationCounters{Inserts: 10, Reads: 20},
			Cache:      vectorstore.CacheStats{Enabled: true, Entries: 5, MaxSize: 1000},
			Breaker:    vectorstore.BreakerSnapshot{State: "CLOSED", FailureThreshold: 5},
			Documents: &vectorstore.DocumentCounts{
				Total:    30,
				ByStatus: map[string]int64{"active": 30},
			},
			Timestamp: time.Now().UTC(),
		})
	}))
	defer server.Close()

	withDaemonURL(t, server.URL)
	statsCmd.SetContext(context.Background())

	err := runStats(statsCmd, nil)
	require.NoError(t, err)
}

func TestRunStats_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	withDaemonURL(t, server.URL)
	statsCmd.SetContext(context.Background())

	err := runStats(statsCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach vectord")
}
