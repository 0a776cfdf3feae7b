// Package cache provides the in-memory result cache for the query
// pipeline. Only fully accepted results are ever stored in it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/sqlball/sqlball/internal/errors"
)

// Cache defines the result cache operations
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
	Close()
}

// entry is one cached value with its expiry
type entry struct {
	data      []byte
	createdAt time.Time
	expiresAt time.Time
}

// Stats represents cache statistics
type Stats struct {
	TotalEntries int64   `json:"total_entries"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hit_rate"`
}

// Key derives the cache key from the normalized question and the schema
// version. Any schema change produces different keys, so stale results
// become unreachable without explicit invalidation.
func Key(normalizedQuestion, schemaVersion string) string {
	sum := sha256.Sum256([]byte(normalizedQuestion + "\x00" + schemaVersion))
	return hex.EncodeToString(sum[:])
}

// MemoryCache implements Cache with an in-memory map. Expired entries are
// dropped lazily on read and by an optional background sweeper.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	hits       int64
	misses     int64
	stopSweep  chan struct{}
	sweepOnce  sync.Once
}

// NewMemoryCache creates a cache holding at most maxEntries values. When
// sweepFreq is positive a background goroutine evicts expired entries at
// that interval; Close stops it.
func NewMemoryCache(maxEntries int, sweepFreq time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}

	c := &MemoryCache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		stopSweep:  make(chan struct{}),
	}

	if sweepFreq > 0 {
		go c.sweepLoop(sweepFreq)
	}

	return c
}

// Get returns the cached data for key, or ErrTypeNotFound when the key is
// absent or expired.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, errors.Newf(errors.ErrTypeNotFound, "cache miss for key %s", key)
	}

	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++

		return nil, errors.Newf(errors.ErrTypeNotFound, "cache entry expired for key %s", key)
	}

	c.hits++

	data := make([]byte, len(e.data))
	copy(data, e.data)

	return data, nil
}

// Set stores data under key for ttl. When the cache is full the oldest
// entry is evicted first.
func (c *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New(errors.ErrTypeCache, "ttl must be positive")
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	c.entries[key] = entry{
		data:      stored,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}

	return nil
}

// Delete removes a single entry
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	return nil
}

// Clear removes every entry
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)

	return nil
}

// GetStats returns hit and miss counters
func (c *MemoryCache) GetStats(ctx context.Context) (*Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := &Stats{
		TotalEntries: int64(len(c.entries)),
		Hits:         c.hits,
		Misses:       c.misses,
	}

	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}

	return stats, nil
}

// Close stops the background sweeper if one is running
func (c *MemoryCache) Close() {
	c.sweepOnce.Do(func() { close(c.stopSweep) })
}

func (c *MemoryCache) sweepLoop(freq time.Duration) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopSweep:
			return
		}
	}
}

func (c *MemoryCache) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictOldestLocked removes the entry with the earliest creation time.
// Callers must hold the write lock.
func (c *MemoryCache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
	)

	for key, e := range c.entries {
		if oldestKey == "" || e.createdAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.createdAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

var _ Cache = (*MemoryCache)(nil)

// String renders stats for log output
func (s *Stats) String() string {
	return fmt.Sprintf("entries=%d hits=%d misses=%d hit_rate=%.2f",
		s.TotalEntries, s.Hits, s.Misses, s.HitRate)
}
