// Package vectorstore implements the resilient vector-document store behind
// CQ Intelligence.
//
// The store wraps a MongoDB collection that offers native vector search
// (Atlas Vector Search) and layers the reliability machinery every caller
// shares:
//
//   - ConnectionManager: one pooled client per process with bounded pool
//     size, idle reaping, and distinct connect/server-selection/operation
//     timeouts. Every operation passes its circuit-breaker gate first.
//   - Circuit breaker: CLOSED/OPEN/HALF_OPEN state machine implemented as a
//     pure transition function (breaker.go) so the transition table is
//     testable without I/O. The manager only feeds events in and reads the
//     resulting state out.
//   - DocumentValidator: pure schema checks (required fields, embedding
//     dimensionality of exactly 1536, content length) applied before any
//     write reaches the wire.
//   - CacheLayer: strict-LRU, TTL-per-entry read cache with deterministic
//     key derivation, substring invalidation, and hit/miss/eviction
//     accounting. The cache is process-local: when the service runs as
//     multiple instances, each holds an independent cache with independent
//     statistics. A shared L2 tier is deliberately not part of this layer.
//   - SearchEngine: vector, text, and hybrid queries. A missing index is
//     reported as ErrVectorSearchUnavailable/ErrTextSearchUnavailable naming
//     the capability, never masked as an empty result set, and never
//     substituted with a weaker in-process scan.
//
// Store is an explicit service object: construct with New, start with
// Initialize, and stop with Shutdown. There is no package-level instance.
//
// Error taxonomy (errors.go) follows sentinel values matched with errors.Is;
// callers decide between retrying (ErrConnection), backing off
// (ErrCircuitOpen), fixing input (ErrValidation, ErrDuplicateKey), or fixing
// deployment (ErrSearchUnavailable). HealthCheck is the one operation that
// never fails: it reports degradation as data.
package vectorstore
