package upstream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FetchFunc performs one upstream lookup. It may fail; the coalescer
// surfaces the failure only to callers of the failing key.
type FetchFunc func(ctx context.Context) (any, error)

// CoalescerConfig tunes batching and dispatch smoothing.
type CoalescerConfig struct {
	// WindowWidth is how long the batch window stays open after the
	// most recent arrival before the batch is dispatched.
	WindowWidth time.Duration `json:"window_width"`
	// MaxBatchSize drains the batch early once reached.
	MaxBatchSize int `json:"max_batch_size"`
	// InterItemDelay spaces out item dispatches to smooth bursty load
	// on rate-limited upstreams.
	InterItemDelay time.Duration `json:"inter_item_delay"`
	// FetchTimeout bounds each individual upstream call.
	FetchTimeout time.Duration `json:"fetch_timeout"`
}

// DefaultCoalescerConfig returns the production defaults: 100 ms
// window, batches of 10, 50 ms between dispatched items.
func DefaultCoalescerConfig() CoalescerConfig {
	return CoalescerConfig{
		WindowWidth:    100 * time.Millisecond,
		MaxBatchSize:   10,
		InterItemDelay: 50 * time.Millisecond,
		FetchTimeout:   15 * time.Second,
	}
}

// pendingItem is one registered key awaiting dispatch or in flight.
type pendingItem struct {
	key   string
	fetch FetchFunc
	done  chan struct{}
	value any
	err   error
}

// Coalescer groups concurrent lookups against a rate-limited upstream.
// The first caller for a key within an open window registers the fetch;
// later callers for the same key join the in-flight result. Distinct
// keys arriving within the window form one batch that is drained when
// the window elapses or the batch fills. Each item succeeds or fails on
// its own: partial failure within a batch never fails co-batched keys.
type Coalescer struct {
	config  CoalescerConfig
	cache   *QueryCache
	limiter *rate.Limiter
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingItem
	batch   []*pendingItem
	timer   *time.Timer
}

// NewCoalescer creates a coalescer around an owned result cache. Pass a
// nil cache to disable result caching entirely.
func NewCoalescer(config CoalescerConfig, cache *QueryCache) *Coalescer {
	if config.WindowWidth <= 0 {
		config.WindowWidth = 100 * time.Millisecond
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = 10
	}
	if config.InterItemDelay <= 0 {
		config.InterItemDelay = 50 * time.Millisecond
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 15 * time.Second
	}

	return &Coalescer{
		config:  config,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Every(config.InterItemDelay), 1),
		logger:  slog.Default().With("component", "coalescer"),
		pending: make(map[string]*pendingItem),
	}
}

// Acquire returns the result for key, going to the upstream at most
// once per key per cache TTL no matter how many concurrent callers ask.
// The caller's context only governs its own wait: cancelling one waiter
// does not cancel the shared fetch.
func (c *Coalescer) Acquire(ctx context.Context, key string, fetch FetchFunc) (any, error) {
	cacheKey := CacheKey(key)
	if c.cache != nil {
		if value, found := c.cache.Get(cacheKey); found {
			return value, nil
		}
	}

	c.mu.Lock()
	if item, ok := c.pending[key]; ok {
		c.mu.Unlock()
		return c.await(ctx, item)
	}

	item := &pendingItem{
		key:   key,
		fetch: fetch,
		done:  make(chan struct{}),
	}
	c.pending[key] = item
	c.batch = append(c.batch, item)

	if len(c.batch) >= c.config.MaxBatchSize {
		batch := c.takeBatchLocked()
		c.mu.Unlock()
		go c.dispatch(batch)
	} else {
		// Every arrival re-opens the window.
		if c.timer != nil {
			c.timer.Stop()
		}
		c.timer = time.AfterFunc(c.config.WindowWidth, c.drain)
		c.mu.Unlock()
	}

	return c.await(ctx, item)
}

// Stats exposes the underlying cache counters.
func (c *Coalescer) Stats() CacheStats {
	if c.cache == nil {
		return CacheStats{}
	}
	return c.cache.Stats()
}

func (c *Coalescer) await(ctx context.Context, item *pendingItem) (any, error) {
	select {
	case <-item.done:
		return item.value, item.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drain dispatches whatever accumulated when the window timer fires.
func (c *Coalescer) drain() {
	c.mu.Lock()
	batch := c.takeBatchLocked()
	c.mu.Unlock()

	if len(batch) > 0 {
		c.dispatch(batch)
	}
}

func (c *Coalescer) takeBatchLocked() []*pendingItem {
	batch := c.batch
	c.batch = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return batch
}

// dispatch runs each item of a drained batch in arrival order with the
// configured inter-item spacing. Item outcomes are strictly per key.
func (c *Coalescer) dispatch(batch []*pendingItem) {
	for _, item := range batch {
		// The limiter, not the waiters' contexts, paces the batch.
		if err := c.limiter.Wait(context.Background()); err != nil {
			item.err = err
			c.finish(item)
			continue
		}

		fetchCtx, cancel := context.WithTimeout(context.Background(), c.config.FetchTimeout)
		value, err := item.fetch(fetchCtx)
		cancel()

		if err != nil {
			// Failures are not cached so the next call retries.
			item.err = err
			c.logger.Warn("upstream fetch failed", "key", item.key, "error", err)
		} else {
			item.value = value
			if c.cache != nil {
				c.cache.Set(CacheKey(item.key), value)
			}
		}
		c.finish(item)
	}
}

func (c *Coalescer) finish(item *pendingItem) {
	c.mu.Lock()
	delete(c.pending, item.key)
	c.mu.Unlock()
	close(item.done)
}
