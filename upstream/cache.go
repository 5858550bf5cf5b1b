package upstream

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// CacheConfig configures the query result cache.
type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	TTL             time.Duration `json:"ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
	MaxSize         int           `json:"max_size"`
}

// DefaultCacheConfig returns the production defaults: 24 hour TTL,
// hourly cleanup.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:         true,
		TTL:             24 * time.Hour,
		CleanupInterval: time.Hour,
		MaxSize:         10000,
	}
}

// cacheEntry is one stored result.
type cacheEntry struct {
	value       any
	expiration  time.Time
	accessCount int64
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// QueryCache is a mutex-guarded TTL cache for upstream lookup results.
// It is the only shared mutable state between concurrent adapter tasks.
type QueryCache struct {
	config CacheConfig
	data   map[string]*cacheEntry
	mutex  sync.RWMutex
	stats  CacheStats
	done   chan struct{}
}

// NewQueryCache creates a cache and, when enabled, starts its
// background expiry sweep.
func NewQueryCache(config CacheConfig) *QueryCache {
	c := &QueryCache{
		config: config,
		data:   make(map[string]*cacheEntry),
		done:   make(chan struct{}),
	}

	if config.Enabled && config.CleanupInterval > 0 {
		go c.startCleanup()
	}

	return c
}

// Get returns a cached result if present and unexpired.
func (c *QueryCache) Get(key string) (any, bool) {
	if !c.config.Enabled {
		return nil, false
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.data[key]
	if !exists || time.Now().After(entry.expiration) {
		c.stats.Misses++
		return nil, false
	}

	entry.accessCount++
	c.stats.Hits++
	return entry.value, true
}

// Set stores a result with the configured TTL. Only successful lookups
// are stored; callers must not cache failures.
func (c *QueryCache) Set(key string, value any) {
	if !c.config.Enabled {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.config.MaxSize > 0 && len(c.data) >= c.config.MaxSize {
		c.evictLRU()
	}

	c.data[key] = &cacheEntry{
		value:       value,
		expiration:  time.Now().Add(c.config.TTL),
		accessCount: 1,
	}
	c.stats.Size = len(c.data)
}

// Clear drops all entries and resets the counters.
func (c *QueryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]*cacheEntry)
	c.stats = CacheStats{}
}

// Stats returns a copy of the current counters.
func (c *QueryCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := c.stats
	stats.Size = len(c.data)
	return stats
}

// Close stops the background sweep.
func (c *QueryCache) Close() {
	close(c.done)
}

// evictLRU drops the least-accessed entry. Caller holds the lock.
func (c *QueryCache) evictLRU() {
	var lruKey string
	var lruCount int64 = -1

	for key, entry := range c.data {
		if lruCount == -1 || entry.accessCount < lruCount {
			lruKey = key
			lruCount = entry.accessCount
		}
	}

	if lruKey != "" {
		delete(c.data, lruKey)
	}
}

func (c *QueryCache) startCleanup() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.done:
			return
		}
	}
}

func (c *QueryCache) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
	c.stats.Size = len(c.data)
}

// CacheKey derives a stable cache key from a normalized query string.
func CacheKey(query string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(hash[:])
}
