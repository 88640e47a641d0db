package vectorstore

import "time"

// Health status values.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// Health is the structured result of HealthCheck. HealthCheck never fails:
// a broken store is reported here as data, so status, connected, initialized
// and timestamp are always populated.
type Health struct {
	Status      string          `json:"status"`
	Connected   bool            `json:"connected"`
	Initialized bool            `json:"initialized"`
	Timestamp   time.Time       `json:"timestamp"`
	Breaker     BreakerSnapshot `json:"breaker"`
	Detail      string          `json:"detail,omitempty"`
}

// Stats aggregates everything an operational dashboard needs in one
// structure: identity, operation counters, cache accounting, breaker state,
// and best-effort live document counts.
type Stats struct {
	Database   string            `json:"database"`
	Collection string            `json:"collection"`
	Operations OperationCounters `json:"operations"`
	Cache      CacheStats        `json:"cache"`
	Breaker    BreakerSnapshot   `json:"breaker"`
	Documents  *DocumentCounts   `json:"documents,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// DocumentCounts is the live shape of the primary collection. Collected
// best-effort: omitted from Stats when the store is unreachable.
type DocumentCounts struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
}
