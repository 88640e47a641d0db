package vectorstore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, cfg CacheConfig) *Cache {
	t.Helper()
	cache, err := NewCache(cfg, nil)
	require.NoError(t, err)
	return cache
}

func TestCacheConfig_Defaults(t *testing.T) {
	var cfg CacheConfig
	cfg.ApplyDefaults()

	assert.Equal(t, 1000, cfg.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.TTL)
}

func TestNewCache_InvalidConfig(t *testing.T) {
	_, err := NewCache(CacheConfig{MaxSize: -1, TTL: time.Minute}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCache_Disabled(t *testing.T) {
	cache := newTestCache(t, CacheConfig{Enabled: false})

	cache.Set("k", "v", time.Minute)
	_, ok := cache.Get("k")
	assert.False(t, ok, "disabled cache never returns a value")
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, 0, cache.Invalidate(""))

	stats := cache.Stats()
	assert.False(t, stats.Enabled)
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses, "a disabled cache does not count pass-throughs")
}

func TestCache_SetAndGet(t *testing.T) {
	cache := newTestCache(t, CacheConfig{Enabled: true})

	cache.Set("k", []SearchResult{{Score: 0.9}}, 0)

	v, ok := cache.Get("k")
	require.True(t, ok)
	results, ok := v.([]SearchResult)
	require.True(t, ok)
	assert.Equal(t, 0.9, results[0].Score)
}

func TestCache_StrictLRUEviction(t *testing.T) {
	cache := newTestCache(t, CacheConfig{Enabled: true, MaxSize: 3})

	cache.Set("a", 1, 0)
	cache.Set("b", 2, 0)
	cache.Set("c", 3, 0)

	// Touch "a" so "b" becomes the least recently used.
	_, ok := cache.Get("a")
	require.True(t, ok)

	// Insert at capacity: exactly one eviction, and it must be "b".
	cache.Set("d", 4, 0)

	_, ok = cache.Get("b")
	assert.False(t, ok, "least recently used entry must be evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := cache.Get(key)
		assert.True(t, ok, "entry %q should survive", key)
	}

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 3, stats.Entries)
}

func TestCache_UpdateDoesNotEvict(t *testing.T) {
	cache := newTestCache(t, CacheConfig{Enabled: true, MaxSize: 2})

	cache.Set("a", 1, 0)
	cache.Set("b", 2, 0)
	cache.Set("a", 10, 0) // overwrite, not insert

	v, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	_, ok = cache.Get("b")
	assert.True(t, ok)
	assert.Zero(t, cache.Stats().Evictions, "overwriting an existing key is not an eviction")
}

func TestCache_LazyExpiry(t *testing.T) {
	cache := newTestCache(t, CacheConfig{Enabled: true})

	cache.Set("short", "v", 30*time.Millisecond)
	cache.Set("long", "v", time.Minute)

	_, ok := cache.Get("short")
	require.True(t, ok, "entry should exist before its ttl passes")

	time.Sleep(50 * time.Millisecond)

	_, ok = cache.Get("short")
	assert.False(t, ok, "expired entry must read as a miss")
	_, ok = cache.Get("long")
	assert.True(t, ok, "ttl is per entry")

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Expired)
	assert.Zero(t, stats.Evictions, "expiry is not an eviction")
	assert.Equal(t, 1, stats.Entries, "the expired entry is dropped on read")
}

func TestCache_DefaultTTLApplied(t *testing.T) {
	cache := newTestCache(t, CacheConfig{Enabled: true, TTL: 30 * time.Millisecond})

	cache.Set("k", "v", 0) // non-positive ttl takes the default
	time.Sleep(50 * time.Millisecond)

	_, ok := cache.Get("k")
	assert.False(t, ok)
}

func TestCache_InvalidatePattern(t *testing.T) {
	cache := newTestCache(t, CacheConfig{Enabled: true})

	cache.Set(GenerateKey("vector_search", "q1", nil), 1, 0)
	cache.Set(GenerateKey("vector_search", "q2", nil), 2, 0)
	cache.Set(GenerateKey("text_search", "q1", nil), 3, 0)
	cache.Set(GenerateKey("get_document", "doc-1", nil), 4, 0)

	removed := cache.Invalidate("vector_search")
	assert.Equal(t, 2, removed, "invalidation reports how many entries it dropped")
	assert.Equal(t, 2, cache.Len())

	// Unmatched pattern removes nothing.
	assert.Equal(t, 0, cache.Invalidate("hybrid_search"))

	// Empty pattern clears the rest.
	assert.Equal(t, 2, cache.Invalidate(""))
	assert.Equal(t, 0, cache.Len())
}

func TestCache_Purge(t *testing.T) {
	cache := newTestCache(t, CacheConfig{Enabled: true})

	cache.Set("a", 1, 0)
	cache.Get("a")
	cache.Get("missing")
	cache.Purge()

	assert.Equal(t, 0, cache.Len())
	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits, "purge keeps the counters")
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_StatsHitRate(t *testing.T) {
	cache := newTestCache(t, CacheConfig{Enabled: true})

	cache.Set("k", "v", 0)
	cache.Get("k")      // hit
	cache.Get("k")      // hit
	cache.Get("absent") // miss

	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
	assert.Equal(t, 1000, stats.MaxSize)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := newTestCache(t, CacheConfig{Enabled: true, MaxSize: 64})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("key-%d", (id+j)%100)
				switch j % 3 {
				case 0:
					cache.Set(key, j, 0)
				case 1:
					cache.Get(key)
				default:
					cache.Invalidate(fmt.Sprintf("key-%d", j%10))
				}
			}
		}(i)
	}
	wg.Wait()

	stats := cache.Stats()
	assert.LessOrEqual(t, stats.Entries, 64, "capacity bound must hold under concurrency")
}
