package weather

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CacheConfig holds configuration for the weather cache.
type CacheConfig struct {
	// Logger for cache operations.
	Logger zerolog.Logger

	// TTL is how long an entry stays fresh (default: 30 minutes).
	TTL time.Duration

	// StaleIfError keeps an entry past its TTL, measured from when it was
	// fetched, so it can be served when a refresh fails (default: 1 hour).
	StaleIfError time.Duration

	// FetchTimeout bounds a refresh once it has been detached from the
	// initiating caller (default: 15 seconds).
	FetchTimeout time.Duration

	// Metrics, when set, records hit, miss, and stale-serve counters.
	Metrics *Metrics
}

// FetchFunc fetches a fresh record for a cache key.
type FetchFunc func(ctx context.Context) (*Record, error)

// Cache stores one weather record per location key with TTL expiry.
// Concurrent misses for the same key collapse into a single upstream
// fetch; other keys fetch independently. The mutex guards only the map,
// never an in-progress fetch.
type Cache struct {
	logger       zerolog.Logger
	ttl          time.Duration
	staleIfError time.Duration
	fetchTimeout time.Duration
	metrics      *Metrics

	flight singleflight.Group

	mu              sync.RWMutex
	entries         map[string]*cacheEntry
	lastCleanup     time.Time
	cleanupInterval time.Duration

	hits        int64
	misses      int64
	staleServes int64
	evictions   int64
}

// cacheEntry is immutable once stored; refreshes replace the pointer.
type cacheEntry struct {
	record    *Record
	fetchedAt time.Time
	expiresAt time.Time
}

// NewCache creates a weather cache.
func NewCache(cfg CacheConfig) *Cache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	staleIfError := cfg.StaleIfError
	if staleIfError == 0 {
		staleIfError = 1 * time.Hour
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout == 0 {
		fetchTimeout = 15 * time.Second
	}

	return &Cache{
		logger:          cfg.Logger,
		ttl:             ttl,
		staleIfError:    staleIfError,
		fetchTimeout:    fetchTimeout,
		metrics:         cfg.Metrics,
		entries:         make(map[string]*cacheEntry),
		cleanupInterval: 5 * time.Minute,
	}
}

// GetOrFetch returns the cached record for key, fetching it when absent
// or expired. All concurrent callers for one key share a single fetch and
// observe its outcome. A caller whose context expires while waiting gets
// ErrTimeout; the shared fetch keeps running for the others. When the
// fetch fails and a stale entry is still within its stale-if-error
// window, the stale record is served instead of the error.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) (*Record, error) {
	if rec := c.lookup(key); rec != nil {
		atomic.AddInt64(&c.hits, 1)
		c.metrics.RecordCacheHit(ctx)
		return rec, nil
	}
	atomic.AddInt64(&c.misses, 1)
	c.metrics.RecordCacheMiss(ctx)

	ch := c.flight.DoChan(key, func() (interface{}, error) {
		// A sibling flight may have refreshed the entry between our miss
		// and this closure running.
		if rec := c.lookup(key); rec != nil {
			return rec, nil
		}
		return c.refresh(ctx, key, fetch)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			if stale := c.staleFor(key); stale != nil {
				atomic.AddInt64(&c.staleServes, 1)
				c.metrics.RecordStaleServe(ctx)
				c.logger.Warn().
					Str("key", key).
					Err(res.Err).
					Msg("serving stale weather data after failed refresh")
				return stale, nil
			}
			return nil, res.Err
		}
		return res.Val.(*Record), nil
	case <-ctx.Done():
		// The flight keeps running for any other waiters; only this
		// caller gives up.
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
}

// Refresh fetches key unconditionally, replacing any cached entry on
// success. Unlike GetOrFetch it reports fetch failures instead of falling
// back to a stale entry, so callers driving scheduled refreshes can retry.
// The existing entry is left in place on failure.
func (c *Cache) Refresh(ctx context.Context, key string, fetch FetchFunc) (*Record, error) {
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		return c.refresh(ctx, key, fetch)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Record), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
}

// refresh performs the upstream fetch and stores the result. It runs
// inside a singleflight and may outlive the caller that started it, so
// it detaches from that caller's cancellation and applies its own bound.
func (c *Cache) refresh(ctx context.Context, key string, fetch FetchFunc) (*Record, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	c.logger.Debug().Str("key", key).Msg("fetching weather from provider")

	rec, err := fetch(fetchCtx)
	if err != nil {
		c.logger.Error().Str("key", key).Err(err).Msg("weather fetch failed")
		return nil, err
	}

	c.store(key, rec)
	return rec, nil
}

// lookup returns the record for key when present and not expired.
func (c *Cache) lookup(key string) *Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !time.Now().Before(entry.expiresAt) {
		return nil
	}
	return entry.record
}

// staleFor returns the record for key when present and still inside the
// stale-if-error window, even if expired.
func (c *Cache) staleFor(key string) *Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !time.Now().Before(entry.fetchedAt.Add(c.staleIfError)) {
		return nil
	}
	return entry.record
}

func (c *Cache) store(key string, rec *Record) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		record:    rec,
		fetchedAt: now,
		expiresAt: now.Add(c.ttl),
	}

	c.cleanupIfNeeded(now)
}

// cleanupIfNeeded drops entries past their stale window. Expired entries
// inside the window are kept as refresh fallbacks. Caller holds the lock.
func (c *Cache) cleanupIfNeeded(now time.Time) {
	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	c.lastCleanup = now

	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.fetchedAt.Add(c.staleIfError)) {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 {
		atomic.AddInt64(&c.evictions, int64(removed))
		c.logger.Debug().Int("removed", removed).Msg("swept stale weather cache entries")
	}
}

// Invalidate removes the entry for key. It reports whether an entry was
// present.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	atomic.AddInt64(&c.evictions, 1)
	return true
}

// InvalidateAll clears the cache and returns the number of entries
// removed.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.entries)
	c.entries = make(map[string]*cacheEntry)
	atomic.AddInt64(&c.evictions, int64(removed))
	return removed
}

// Stats returns a snapshot of cache contents and counters.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	fresh := 0
	for _, entry := range c.entries {
		if now.Before(entry.expiresAt) {
			fresh++
		}
	}

	return CacheStats{
		Entries:      len(c.entries),
		FreshEntries: fresh,
		Hits:         atomic.LoadInt64(&c.hits),
		Misses:       atomic.LoadInt64(&c.misses),
		StaleServes:  atomic.LoadInt64(&c.staleServes),
		Evictions:    atomic.LoadInt64(&c.evictions),
		TTL:          c.ttl,
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Entries      int
	FreshEntries int
	Hits         int64
	Misses       int64
	StaleServes  int64
	Evictions    int64
	TTL          time.Duration
}
