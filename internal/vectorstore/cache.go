package vectorstore

import (
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheConfig holds read-cache settings.
type CacheConfig struct {
	// Enabled turns the cache layer on. When false every Get is a
	// pass-through miss and Set is a no-op; counters stay at zero.
	Enabled bool

	// MaxSize is the entry capacity. Inserting into a full cache evicts the
	// least-recently-used entry. Default: 1000.
	MaxSize int

	// TTL is the default entry lifetime applied when Set receives a
	// non-positive ttl. Callers tune per-query-shape freshness by passing
	// their own ttl. Default: 5m.
	TTL time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *CacheConfig) ApplyDefaults() {
	if c.MaxSize == 0 {
		c.MaxSize = 1000
	}
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
}

// Validate validates the configuration.
func (c CacheConfig) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: cache max size must be positive, got %d", ErrInvalidConfig, c.MaxSize)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("%w: cache ttl must be positive, got %s", ErrInvalidConfig, c.TTL)
	}
	return nil
}

type cacheEntry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

func (e cacheEntry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Cache is the in-process read cache: strict LRU bounded at MaxSize with a
// lazy per-entry TTL. Entries are process-local and carry no cross-process
// consistency guarantee: each instance of the service has its own cache and
// its own statistics.
//
// Expiry is lazy: a Get whose entry outlived its ttl counts as a miss and
// drops the entry. Eviction is strict LRU and only happens on insert at
// capacity; the eviction counter tracks exactly those removals.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, cacheEntry]
	cfg     CacheConfig
	metrics *Metrics

	hits      int64
	misses    int64
	evictions int64
	expired   int64
}

// NewCache creates a cache from cfg. Defaults are applied; a disabled config
// yields a functioning pass-through cache.
func NewCache(cfg CacheConfig, metrics *Metrics) (*Cache, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Cache{cfg: cfg, metrics: metrics}
	if cfg.Enabled {
		entries, err := lru.New[string, cacheEntry](cfg.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		c.entries = entries
	}
	return c, nil
}

// Enabled reports whether the cache layer is active.
func (c *Cache) Enabled() bool {
	return c.entries != nil
}

// Get returns the cached value for key. The second return is false on a
// miss (absent key, expired entry, or disabled cache).
func (c *Cache) Get(key string) (any, bool) {
	if c.entries == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(key)
	if !ok {
		c.misses++
		c.metrics.RecordCacheMiss()
		return nil, false
	}
	if entry.expired(time.Now()) {
		c.entries.Remove(key)
		c.expired++
		c.misses++
		c.metrics.RecordCacheMiss()
		c.metrics.SetCacheEntries(c.entries.Len())
		return nil, false
	}

	c.hits++
	c.metrics.RecordCacheHit()
	return entry.value, true
}

// Set stores value under key for ttl. A non-positive ttl uses the configured
// default. At capacity the least-recently-used entry is evicted first.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if c.entries == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := cacheEntry{value: value, storedAt: time.Now(), ttl: ttl}
	if evicted := c.entries.Add(key, entry); evicted {
		c.evictions++
		c.metrics.RecordCacheEviction()
	}
	c.metrics.SetCacheEntries(c.entries.Len())
}

// Invalidate removes every entry whose key contains pattern and returns the
// count removed. An empty pattern matches every key.
func (c *Cache) Invalidate(pattern string) int {
	if c.entries == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.entries.Keys() {
		if strings.Contains(key, pattern) {
			c.entries.Remove(key)
			removed++
		}
	}
	if removed > 0 {
		c.metrics.SetCacheEntries(c.entries.Len())
	}
	return removed
}

// Purge drops every entry without touching the hit/miss/eviction counters.
func (c *Cache) Purge() {
	if c.entries == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
	c.metrics.SetCacheEntries(0)
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	if c.entries == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// CacheStats is a point-in-time snapshot of cache accounting. Statistics are
// per process instance.
type CacheStats struct {
	Enabled   bool    `json:"enabled"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Expired   int64   `json:"expired"`
	Entries   int     `json:"entries"`
	MaxSize   int     `json:"maxSize"`
	HitRate   float64 `json:"hitRate"`
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Enabled:   c.entries != nil,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
		MaxSize:   c.cfg.MaxSize,
	}
	if c.entries != nil {
		stats.Entries = c.entries.Len()
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}
