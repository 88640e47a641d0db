package vectorstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("vectord.vectorstore")

// Operation names used for metrics, counters, and cache key prefixes.
const (
	opInsert         = "insert_document"
	opBulkInsert     = "insert_documents"
	opGet            = "get_document"
	opUpdate         = "update_document"
	opDelete         = "delete_document"
	opVectorSearch   = "vector_search"
	opTextSearch     = "text_search"
	opHybridSearch   = "hybrid_search"
	opSweep          = "sweep_expired"
	opExport         = "export_documents"
	opDocumentCounts = "document_counts"
	opRecordBackup   = "record_backup"
	opEnsureIndexes  = "ensure_indexes"
)

// Config aggregates the store's component settings.
type Config struct {
	Connection ConnectionConfig
	Cache      CacheConfig
	Search     SearchConfig

	// Retention is how long documents live before TTL expiry.
	// Default: 90 days.
	Retention time.Duration
}

// ApplyDefaults sets default values for unset fields, recursively.
func (c *Config) ApplyDefaults() {
	c.Connection.ApplyDefaults()
	c.Cache.ApplyDefaults()
	c.Search.ApplyDefaults()
	if c.Retention == 0 {
		c.Retention = 90 * 24 * time.Hour
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if c.Retention <= 0 {
		return fmt.Errorf("%w: retention must be positive, got %s", ErrInvalidConfig, c.Retention)
	}
	return nil
}

// Store is the vector-document store service. Construct with New, start with
// Initialize, stop with Shutdown; there is no package-level instance. Safe
// for concurrent use by many callers over one pooled connection.
type Store struct {
	cfg     Config
	log     *zap.Logger
	conn    *ConnectionManager
	cache   *Cache
	metrics *Metrics

	counters    opCounters
	initialized atomic.Bool
}

// New validates cfg and returns an unconnected store. A nil logger is
// replaced with a no-op one.
func New(cfg Config, log *zap.Logger) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	metrics := NewMetrics()
	conn, err := NewConnectionManager(cfg.Connection, log, metrics)
	if err != nil {
		return nil, err
	}
	cache, err := NewCache(cfg.Cache, metrics)
	if err != nil {
		return nil, err
	}

	return &Store{
		cfg:     cfg,
		log:     log,
		conn:    conn,
		cache:   cache,
		metrics: metrics,
	}, nil
}

// Initialize establishes the pooled connection. Idempotent.
func (s *Store) Initialize(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Store.Initialize")
	defer span.End()

	if err := s.conn.Connect(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	s.initialized.Store(true)
	span.SetStatus(codes.Ok, "initialized")
	return nil
}

// Shutdown releases the pooled connection and drops the cache. Idempotent.
func (s *Store) Shutdown(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Store.Shutdown")
	defer span.End()

	s.initialized.Store(false)
	s.cache.Purge()
	if err := s.conn.Shutdown(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "shut down")
	return nil
}

// Initialized reports whether Initialize has succeeded and Shutdown has not
// run since.
func (s *Store) Initialized() bool {
	return s.initialized.Load()
}

// Cache exposes the read cache for callers that manage invalidation
// themselves (tests, tooling).
func (s *Store) Cache() *Cache {
	return s.cache
}

// Database returns the configured database name.
func (s *Store) Database() string {
	return s.cfg.Connection.Database
}

// Collection returns the primary collection name.
func (s *Store) Collection() string {
	return s.cfg.Connection.Collection
}

// Breaker exposes the connection manager's breaker bookkeeping. Tooling and
// tests feed synthetic outcomes through it.
func (s *Store) Breaker() *ConnectionManager {
	return s.conn
}

// guarded runs fn against the named collection behind the circuit-breaker
// gate with the per-operation timeout applied, classifies the failure, and
// feeds the outcome back to the breaker.
func (s *Store) guarded(ctx context.Context, collection string, fn func(context.Context, *mongo.Collection) error) error {
	coll, err := s.gate(collection)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Connection.OperationTimeout)
	defer cancel()

	opErr := classifyError(fn(opCtx, coll))
	s.observe(opErr)
	return opErr
}

// gate performs the pre-flight checks shared by guarded and the streaming
// operations that manage their own deadlines.
func (s *Store) gate(collection string) (*mongo.Collection, error) {
	if !s.initialized.Load() {
		return nil, fmt.Errorf("%w: call Initialize first", ErrNotInitialized)
	}
	if err := s.conn.Allow(time.Now()); err != nil {
		return nil, err
	}
	coll := s.conn.Collection(collection)
	if coll == nil {
		err := fmt.Errorf("%w: not connected", ErrConnection)
		s.conn.HandleError(err)
		return nil, err
	}
	return coll, nil
}

// observe feeds an operation outcome to the breaker. Connectivity failures
// count against it; business errors (duplicates, missing documents, absent
// indexes) prove the server answered and reset the failure streak.
func (s *Store) observe(err error) {
	if err == nil {
		s.conn.HandleSuccess()
		return
	}
	s.counters.failures.Add(1)
	if isConnectivityError(err) {
		s.conn.HandleError(err)
	} else {
		s.conn.HandleSuccess()
	}
}

// HealthCheck reports liveness as data. It never fails: a broken or
// circuit-open store is described by the returned value. While the breaker
// is OPEN no network attempt is made.
func (s *Store) HealthCheck(ctx context.Context) Health {
	ctx, span := tracer.Start(ctx, "Store.HealthCheck")
	defer span.End()

	h := Health{
		Initialized: s.initialized.Load(),
		Breaker:     s.conn.Snapshot(),
		Timestamp:   time.Now().UTC(),
	}

	switch {
	case !h.Initialized:
		h.Status = HealthUnhealthy
		h.Detail = "store not initialized"
	case s.conn.State() == BreakerOpen:
		h.Status = HealthDegraded
		h.Detail = "circuit breaker open"
	default:
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.conn.Ping(pingCtx); err != nil {
			h.Status = HealthDegraded
			h.Detail = err.Error()
		} else {
			h.Status = HealthHealthy
			h.Connected = true
		}
	}

	span.SetAttributes(attribute.String("status", h.Status))
	return h
}

// GetStats aggregates identity, operation counters, cache statistics, and
// breaker state into one structure. Live document counts are included
// best-effort and omitted while the store is unreachable.
func (s *Store) GetStats(ctx context.Context) *Stats {
	ctx, span := tracer.Start(ctx, "Store.GetStats")
	defer span.End()

	stats := &Stats{
		Database:   s.cfg.Connection.Database,
		Collection: s.cfg.Connection.Collection,
		Operations: s.counters.snapshot(),
		Cache:      s.cache.Stats(),
		Breaker:    s.conn.Snapshot(),
		Timestamp:  time.Now().UTC(),
	}
	stats.Operations.BreakerTrips = s.conn.Trips()

	counts, err := s.documentCounts(ctx)
	if err != nil {
		s.log.Debug("document counts unavailable", zap.Error(err))
	} else {
		stats.Documents = counts
	}
	return stats
}

// documentCounts aggregates per-status totals. Cached for a minute: the
// aggregate changes slowly and dashboards poll aggressively.
func (s *Store) documentCounts(ctx context.Context) (*DocumentCounts, error) {
	key := GenerateKey(opDocumentCounts, s.cfg.Connection.Collection, nil)
	if v, ok := s.cache.Get(key); ok {
		if counts, ok := v.(DocumentCounts); ok {
			return &counts, nil
		}
	}

	var counts DocumentCounts
	err := s.guarded(ctx, s.cfg.Connection.Collection, func(ctx context.Context, coll *mongo.Collection) error {
		cursor, err := coll.Aggregate(ctx, mongo.Pipeline{
			{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: "$status"},
				{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			}}},
		})
		if err != nil {
			return err
		}
		var rows []struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.All(ctx, &rows); err != nil {
			return err
		}
		counts = DocumentCounts{ByStatus: make(map[string]int64, len(rows))}
		for _, row := range rows {
			counts.ByStatus[row.Status] = row.Count
			counts.Total += row.Count
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, counts, time.Minute)
	return &counts, nil
}

// invalidateAfterWrite drops every cached read shape a write could have
// staled: all search results, the per-document entries named, and the
// document counts aggregate.
func (s *Store) invalidateAfterWrite(documentIDs ...string) {
	removed := 0
	for _, pattern := range []string{opVectorSearch, opTextSearch, opHybridSearch, opDocumentCounts} {
		removed += s.cache.Invalidate(pattern)
	}
	for _, id := range documentIDs {
		removed += s.cache.Invalidate(documentCacheKey(id))
	}
	if removed > 0 {
		s.log.Debug("cache invalidated after write", zap.Int("entries", removed))
	}
}

func documentCacheKey(documentID string) string {
	return GenerateKey(opGet, documentID, nil)
}
