package flight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/pace/internal/metrics"
	"goflare.io/pace/internal/models"
	"goflare.io/pace/internal/utils"
)

var (
	// ErrFetchTimeout is returned when a fetch outlives the cache's fetch timeout.
	ErrFetchTimeout = errors.New("cache fetch timed out")

	// ErrFetchPanic wraps a panic raised by a fetcher.
	ErrFetchPanic = errors.New("cache fetch panicked")
)

// Fetcher loads the value for one key from upstream.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Cache is a process wide key/value store with per-call TTL, single-flight
// fetch coalescing and stale-while-revalidate. Entries never expire on their
// own; a lookup decides freshness with the TTL it passes.
type Cache struct {
	shards       []*shard
	sf           singleflight.Group
	refreshing   sync.Map
	metrics      *models.Metrics
	logger       *zap.Logger
	tracer       trace.Tracer
	now          func() time.Time
	fetchTimeout time.Duration

	// mu guards closed and orders background.Add against Wait.
	mu         sync.Mutex
	closed     bool
	background sync.WaitGroup
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*models.Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger 設置日誌記錄器
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithShardCount 設置分片數量
func WithShardCount(n uint64) Option {
	return func(c *Cache) {
		if n > 0 {
			c.shards = newShards(n)
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithFetchTimeout bounds how long one fetch may occupy its key's slot.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		shards:       newShards(1),
		metrics:      models.NewMetrics(),
		logger:       zap.NewNop(),
		tracer:       otel.Tracer("goflare.io/pace/cache"),
		now:          time.Now,
		fetchTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newShards(n uint64) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{entries: make(map[string]*models.Entry)}
	}
	return shards
}

// GetOrFetch returns the value cached under key.
//
// A fresh entry is returned without I/O. A stale entry is returned
// immediately while a background refresh runs, unless one already does. A
// missing entry blocks the caller on a fetch that every concurrent caller
// for the same key shares.
func GetOrFetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch Fetcher[T]) (T, error) {
	var zero T
	v, err := c.getOrFetch(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache key %q holds %T", key, v)
	}
	return typed, nil
}

func (c *Cache) getOrFetch(ctx context.Context, key string, ttl time.Duration, fetch Fetcher[any]) (any, error) {
	ctx, span := c.tracer.Start(ctx, "flight.GetOrFetch", trace.WithAttributes(
		attribute.String("key", key),
		attribute.String("ttl", ttl.String()),
	))
	defer span.End()

	entry, found := c.load(key)
	if found && entry.IsFresh(c.now(), ttl) {
		c.metrics.Hits.Inc()
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		span.SetAttributes(attribute.String("result", "hit"))
		c.logger.Debug("Cache hit", zap.String("key", key))
		return entry.Value, nil
	}

	if found {
		c.metrics.StaleServed.Inc()
		metrics.CacheRequests.WithLabelValues("stale").Inc()
		span.SetAttributes(attribute.String("result", "stale"))
		c.refresh(ctx, key, fetch)
		return entry.Value, nil
	}

	c.metrics.Misses.Inc()
	metrics.CacheRequests.WithLabelValues("miss").Inc()
	span.SetAttributes(attribute.String("result", "miss"))
	c.logger.Debug("Cache miss, fetching", zap.String("key", key))

	ch := c.sf.DoChan(key, c.fetchAndStore(ctx, key, "cold", fetch))
	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.Coalesced.Inc()
		}
		if res.Err != nil {
			span.RecordError(res.Err)
			return nil, res.Err
		}
		return res.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// refresh starts a background fetch for key unless one is already running.
func (c *Cache) refresh(ctx context.Context, key string, fetch Fetcher[any]) {
	if _, running := c.refreshing.LoadOrStore(key, struct{}{}); running {
		c.logger.Debug("Serving stale value, refresh already in flight", zap.String("key", key))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.refreshing.Delete(key)
		c.logger.Debug("Cache closed, skipping refresh", zap.String("key", key))
		return
	}
	c.background.Add(1)
	c.mu.Unlock()

	c.logger.Debug("Serving stale value, refreshing in background", zap.String("key", key))
	c.metrics.Refreshes.Inc()
	ch := c.sf.DoChan(key, c.fetchAndStore(ctx, key, "refresh", fetch))

	go func() {
		defer c.background.Done()
		res := <-ch
		c.refreshing.Delete(key)
		if res.Err != nil {
			c.metrics.RefreshFailures.Inc()
			c.logger.Warn("Background refresh failed, keeping stale value",
				zap.String("key", key), zap.Error(res.Err))
		}
	}()
}

// fetchAndStore wraps fetch so that it runs detached from the caller's
// cancellation, bounded by the fetch timeout, and writes the entry only on
// success.
func (c *Cache) fetchAndStore(ctx context.Context, key, kind string, fetch Fetcher[any]) func() (any, error) {
	return func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		type result struct {
			val any
			err error
		}
		done := make(chan result, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("Fetch panicked", zap.String("key", key), zap.Any("panic", r))
					done <- result{err: fmt.Errorf("%w: %s: %v", ErrFetchPanic, key, r)}
				}
			}()
			v, err := fetch(fctx)
			done <- result{val: v, err: err}
		}()

		var res result
		select {
		case res = <-done:
		case <-fctx.Done():
			res = result{err: fmt.Errorf("%w: %s after %s", ErrFetchTimeout, key, c.fetchTimeout)}
			metrics.CacheFetches.WithLabelValues(kind, "timeout").Inc()
			c.metrics.FetchFailures.Inc()
			return nil, res.err
		}

		if res.err != nil {
			metrics.CacheFetches.WithLabelValues(kind, "failure").Inc()
			c.metrics.FetchFailures.Inc()
			return nil, res.err
		}

		c.store(key, res.val)
		metrics.CacheFetches.WithLabelValues(kind, "success").Inc()
		return res.val, nil
	}
}

func (c *Cache) shardFor(key string) *shard {
	return c.shards[utils.ShardIndex(uint64(len(c.shards)), key)]
}

func (c *Cache) load(key string) (*models.Entry, bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (c *Cache) store(key string, value any) {
	s := c.shardFor(key)
	s.mu.Lock()
	s.entries[key] = models.NewEntry(key, value, c.now())
	s.mu.Unlock()
}

// Peek returns the entry for key without fetching or touching counters.
func (c *Cache) Peek(key string) (models.Entry, bool) {
	entry, ok := c.load(key)
	if !ok {
		return models.Entry{}, false
	}
	return *entry, true
}

// Invalidate drops the entry for key. An in-flight fetch still stores its result.
func (c *Cache) Invalidate(key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len reports the number of stored entries.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() models.CacheStats {
	stats := c.metrics.Snapshot()
	stats.Items = c.Len()
	return stats
}

// Wait blocks until background refreshes started so far have settled.
func (c *Cache) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.background.Wait()
}

// Close stops new background refreshes and waits for running ones. Stale
// entries are still served after Close.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.background.Wait()
}
