package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectionConfig holds MongoDB client and resilience settings.
type ConnectionConfig struct {
	// URI is the MongoDB connection string. Required.
	URI string

	// Database is the database name.
	// Default: "cqintelligence"
	Database string

	// Collection is the primary document collection.
	// Default: "vectordocuments"
	Collection string

	// MinPoolSize / MaxPoolSize bound the connection pool.
	// Defaults: 5 / 50.
	MinPoolSize uint64
	MaxPoolSize uint64

	// MaxIdleTime is how long an idle pooled connection survives before it
	// is reaped. Default: 30s.
	MaxIdleTime time.Duration

	// ConnectTimeout bounds dialing a single server. Default: 5s.
	ConnectTimeout time.Duration

	// SelectionTimeout bounds server selection; exceeding it is the
	// "no server reachable" diagnostic. Default: 5s.
	SelectionTimeout time.Duration

	// OperationTimeout bounds each store operation. Default: 10s.
	OperationTimeout time.Duration

	// Breaker tunes the circuit breaker guarding every operation.
	Breaker BreakerSettings
}

// ApplyDefaults sets default values for unset fields.
func (c *ConnectionConfig) ApplyDefaults() {
	if c.Database == "" {
		c.Database = "cqintelligence"
	}
	if c.Collection == "" {
		c.Collection = CollectionDocuments
	}
	if c.MinPoolSize == 0 {
		c.MinPoolSize = 5
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 50
	}
	if c.MaxIdleTime == 0 {
		c.MaxIdleTime = 30 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.SelectionTimeout == 0 {
		c.SelectionTimeout = 5 * time.Second
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = 10 * time.Second
	}
	c.Breaker.ApplyDefaults()
}

// Validate validates the configuration.
func (c ConnectionConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: connection URI required", ErrInvalidConfig)
	}
	if c.MaxPoolSize < c.MinPoolSize {
		return fmt.Errorf("%w: max pool size %d below min pool size %d", ErrInvalidConfig, c.MaxPoolSize, c.MinPoolSize)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("%w: operation timeout must be positive, got %s", ErrInvalidConfig, c.OperationTimeout)
	}
	return c.Breaker.Validate()
}

// ConnectionManager owns the pooled client and the circuit breaker gating
// every store operation. One instance per Store; the breaker value itself is
// pure (breaker.go) and the manager feeds events in and reads state out
// under its mutex.
type ConnectionManager struct {
	cfg     ConnectionConfig
	log     *zap.Logger
	metrics *Metrics

	mu      sync.Mutex
	client  *mongo.Client
	breaker Breaker

	connected atomic.Bool
	trips     atomic.Int64
}

// NewConnectionManager validates cfg and returns an unconnected manager.
func NewConnectionManager(cfg ConnectionConfig, log *zap.Logger, metrics *Metrics) (*ConnectionManager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ConnectionManager{cfg: cfg, log: log, metrics: metrics}, nil
}

// Config returns the effective configuration, defaults applied.
func (m *ConnectionManager) Config() ConnectionConfig {
	return m.cfg
}

// Connect establishes the pooled client and verifies a server is reachable
// within the selection timeout. Calling Connect on a connected manager is a
// no-op.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.client != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	opts := options.Client().
		ApplyURI(m.cfg.URI).
		SetMinPoolSize(m.cfg.MinPoolSize).
		SetMaxPoolSize(m.cfg.MaxPoolSize).
		SetMaxConnIdleTime(m.cfg.MaxIdleTime).
		SetConnectTimeout(m.cfg.ConnectTimeout).
		SetServerSelectionTimeout(m.cfg.SelectionTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.SelectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("%w: no server reachable within %s: %v", ErrConnection, m.cfg.SelectionTimeout, err)
	}

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
	m.connected.Store(true)
	m.metrics.SetConnected(true)

	m.log.Info("store connected",
		zap.String("host", safeTarget(m.cfg.URI)),
		zap.String("database", m.cfg.Database),
		zap.String("collection", m.cfg.Collection),
		zap.Uint64("min_pool_size", m.cfg.MinPoolSize),
		zap.Uint64("max_pool_size", m.cfg.MaxPoolSize))
	return nil
}

// safeTarget reduces a connection URI to scheme and host for logging.
// Credentials and query parameters never reach the log stream.
func safeTarget(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return "invalid-uri"
	}
	return u.Scheme + "://" + u.Host
}

// Shutdown releases the pooled client. Idempotent.
func (m *ConnectionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()

	m.connected.Store(false)
	m.metrics.SetConnected(false)
	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("%w: disconnect: %v", ErrConnection, err)
	}
	m.log.Info("store disconnected")
	return nil
}

// Connected reports whether Connect has succeeded and Shutdown has not run.
func (m *ConnectionManager) Connected() bool {
	return m.connected.Load()
}

// Database returns a handle to the configured database, or nil before
// Connect.
func (m *ConnectionManager) Database() *mongo.Database {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	return m.client.Database(m.cfg.Database)
}

// Collection returns a handle to the named collection, or nil before
// Connect.
func (m *ConnectionManager) Collection(name string) *mongo.Collection {
	db := m.Database()
	if db == nil {
		return nil
	}
	return db.Collection(name)
}

// Ping verifies a server round-trip without feeding the breaker; health
// checks observe, they do not judge.
func (m *ConnectionManager) Ping(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return fmt.Errorf("%w: not connected", ErrConnection)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrConnection, err)
	}
	return nil
}

// Allow is the circuit-breaker gate consulted before every store operation.
// It returns nil when the operation may proceed. While OPEN it returns
// ErrCircuitOpen without any network attempt; once the reset timeout elapses
// the calling operation becomes the single HALF_OPEN trial.
func (m *ConnectionManager) Allow(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := AllowBreaker(m.breaker, now, m.cfg.Breaker)
	if next.State != m.breaker.State {
		m.log.Info("circuit breaker state change",
			zap.Stringer("from", m.breaker.State),
			zap.Stringer("to", next.State))
		m.metrics.SetBreakerState(next.State)
	}
	m.breaker = next
	if ok {
		return nil
	}

	if m.breaker.State == BreakerHalfOpen {
		return fmt.Errorf("%w: trial operation in flight", ErrCircuitOpen)
	}
	wait := m.cfg.Breaker.ResetTimeout - now.Sub(m.breaker.LastFailure)
	if wait < 0 {
		wait = 0
	}
	return fmt.Errorf("%w: retry in %s", ErrCircuitOpen, wait.Round(time.Millisecond))
}

// HandleError records a store-operation failure with the breaker. Pure
// bookkeeping: it never fails and performs no I/O.
func (m *ConnectionManager) HandleError(err error) {
	if err == nil {
		return
	}
	m.feed(EventFailure)
}

// HandleSuccess records a successful store round-trip, resetting the
// failure count.
func (m *ConnectionManager) HandleSuccess() {
	m.feed(EventSuccess)
}

func (m *ConnectionManager) feed(ev BreakerEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := NextBreaker(m.breaker, ev, time.Now(), m.cfg.Breaker)
	if next.State != m.breaker.State {
		switch next.State {
		case BreakerOpen:
			m.trips.Add(1)
			m.metrics.RecordBreakerTrip()
			m.log.Warn("circuit breaker opened",
				zap.Int("failures", next.FailureCount),
				zap.Duration("reset_timeout", m.cfg.Breaker.ResetTimeout))
		case BreakerClosed:
			m.log.Info("circuit breaker closed")
		}
		m.metrics.SetBreakerState(next.State)
	}
	m.breaker = next
}

// State returns the current breaker position.
func (m *ConnectionManager) State() BreakerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breaker.State
}

// Snapshot returns the breaker state for health and stats payloads.
func (m *ConnectionManager) Snapshot() BreakerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshotBreaker(m.breaker, m.cfg.Breaker)
}

// Trips returns the cumulative count of transitions into OPEN.
func (m *ConnectionManager) Trips() int64 {
	return m.trips.Load()
}

// duplicateKeyCode is the server's E11000 write error code. Bulk inserts
// inspect individual write errors with it; everything else goes through
// mongo.IsDuplicateKeyError.
const duplicateKeyCode = 11000

// classifyError maps driver errors into the store taxonomy. Errors already
// carrying a sentinel pass through unchanged; unrecognized server errors are
// returned as-is for the caller to interpret.
func classifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrCircuitOpen),
		errors.Is(err, ErrConnection),
		errors.Is(err, ErrDuplicateKey),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrSearchUnavailable):
		return err
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: client disconnected", ErrConnection)
	case mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: operation timed out: %v", ErrConnection, err)
	case mongo.IsNetworkError(err):
		return fmt.Errorf("%w: network error: %v", ErrConnection, err)
	default:
		return err
	}
}

// isConnectivityError reports whether err should count against the breaker.
// Validation, duplicates, and missing documents prove the server answered;
// only connectivity-class failures are breaker evidence.
func isConnectivityError(err error) bool {
	return errors.Is(err, ErrConnection)
}
