package vectorstore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "vectord"

	subsystemStore   = "store"
	subsystemCache   = "cache"
	subsystemBreaker = "breaker"
)

// Metrics holds the Prometheus collectors for the store. All record methods
// are nil-receiver safe so components can run without metrics in tests.
type Metrics struct {
	operations *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	searches   *prometheus.CounterVec

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheEntries   prometheus.Gauge

	breakerState prometheus.Gauge
	breakerTrips prometheus.Counter

	connected prometheus.Gauge
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics returns the process-wide store metrics. Collectors are
// registered on the default registry exactly once; later calls return the
// same instance.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			operations: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemStore,
				Name:      "operations_total",
				Help:      "Store operations by operation name and outcome.",
			}, []string{"operation", "status"}),
			opDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemStore,
				Name:      "operation_duration_seconds",
				Help:      "Store operation latency.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			}, []string{"operation"}),
			searches: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemStore,
				Name:      "searches_total",
				Help:      "Search requests by mode and outcome.",
			}, []string{"mode", "status"}),
			cacheHits: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemCache,
				Name:      "hits_total",
				Help:      "Cache hits.",
			}),
			cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemCache,
				Name:      "misses_total",
				Help:      "Cache misses, including lazily expired entries.",
			}),
			cacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemCache,
				Name:      "evictions_total",
				Help:      "LRU evictions caused by inserts at capacity.",
			}),
			cacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemCache,
				Name:      "entries",
				Help:      "Current cache entry count.",
			}),
			breakerState: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemBreaker,
				Name:      "state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			}),
			breakerTrips: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemBreaker,
				Name:      "trips_total",
				Help:      "Transitions into the OPEN state.",
			}),
			connected: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemStore,
				Name:      "connected",
				Help:      "Whether the pooled client is connected (1) or not (0).",
			}),
		}
	})
	return sharedMetrics
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordOperation records one store operation outcome and its latency.
func (m *Metrics) RecordOperation(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, statusLabel(err)).Inc()
	m.opDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordSearch records one search request outcome.
func (m *Metrics) RecordSearch(mode string, err error) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(mode, statusLabel(err)).Inc()
}

// RecordCacheHit increments the cache hit counter.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// RecordCacheEviction increments the LRU eviction counter.
func (m *Metrics) RecordCacheEviction() {
	if m == nil {
		return
	}
	m.cacheEvictions.Inc()
}

// SetCacheEntries updates the cache size gauge.
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}

// SetBreakerState updates the breaker state gauge.
func (m *Metrics) SetBreakerState(state BreakerState) {
	if m == nil {
		return
	}
	m.breakerState.Set(float64(state))
}

// RecordBreakerTrip counts a transition into OPEN.
func (m *Metrics) RecordBreakerTrip() {
	if m == nil {
		return
	}
	m.breakerTrips.Inc()
}

// SetConnected updates the connection gauge.
func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

// opCounters is the in-process mirror of the operation counters, kept so
// GetStats can report without scraping the Prometheus registry.
type opCounters struct {
	inserts        atomic.Int64
	bulkInserts    atomic.Int64
	reads          atomic.Int64
	updates        atomic.Int64
	deletes        atomic.Int64
	vectorSearches atomic.Int64
	textSearches   atomic.Int64
	hybridSearches atomic.Int64
	failures       atomic.Int64
}

// OperationCounters is the cumulative operation accounting reported by
// GetStats.
type OperationCounters struct {
	Inserts        int64 `json:"inserts"`
	BulkInserts    int64 `json:"bulkInserts"`
	Reads          int64 `json:"reads"`
	Updates        int64 `json:"updates"`
	Deletes        int64 `json:"deletes"`
	VectorSearches int64 `json:"vectorSearches"`
	TextSearches   int64 `json:"textSearches"`
	HybridSearches int64 `json:"hybridSearches"`
	Failures       int64 `json:"failures"`
	BreakerTrips   int64 `json:"breakerTrips"`
}

// Total sums every operation kind, searches included.
func (c OperationCounters) Total() int64 {
	return c.Inserts + c.BulkInserts + c.Reads + c.Updates + c.Deletes +
		c.VectorSearches + c.TextSearches + c.HybridSearches
}

// snapshot reads the counters. BreakerTrips is filled in by the caller from
// the connection manager, which owns trip accounting.
func (c *opCounters) snapshot() OperationCounters {
	return OperationCounters{
		Inserts:        c.inserts.Load(),
		BulkInserts:    c.bulkInserts.Load(),
		Reads:          c.reads.Load(),
		Updates:        c.updates.Load(),
		Deletes:        c.deletes.Load(),
		VectorSearches: c.vectorSearches.Load(),
		TextSearches:   c.textSearches.Load(),
		HybridSearches: c.hybridSearches.Load(),
		Failures:       c.failures.Load(),
	}
}
