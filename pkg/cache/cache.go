// Package cache provides an in-memory cache for filtered dataset views.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cohortlab/cohort/pkg/models"
)

// Cache defines the interface for caching dataset views.
type Cache interface {
	// Get retrieves a dataset from the cache; nil means miss.
	Get(ctx context.Context, key string) (*models.Dataset, error)
	// Put stores a dataset in the cache.
	Put(ctx context.Context, key string, ds *models.Dataset) error
	// Delete removes a dataset from the cache.
	Delete(ctx context.Context, key string) error
	// InvalidatePrefix removes every entry whose key starts with prefix.
	InvalidatePrefix(ctx context.Context, prefix string) error
	// Clear removes all entries from the cache.
	Clear(ctx context.Context) error
	// Stats returns usage counters.
	Stats() Stats
	// Close releases any resources held by the cache.
	Close() error
}

// Stats holds cache usage counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
	Bytes     int64 `json:"bytes"`
}

// entry is a single cache entry with bookkeeping metadata.
type entry struct {
	dataset  *models.Dataset
	size     int64
	lastUsed time.Time
}

// MemoryCache implements Cache with byte-bounded in-memory storage and
// least-recently-used eviction.
type MemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	maxBytes int64
	curBytes int64
	stats    Stats
}

// NewMemoryCache creates a cache bounded to maxBytes of approximate dataset
// payload.
func NewMemoryCache(maxBytes int64) *MemoryCache {
	return &MemoryCache{
		entries:  make(map[string]*entry),
		maxBytes: maxBytes,
	}
}

// Get retrieves a dataset view from the cache.
func (c *MemoryCache) Get(ctx context.Context, key string) (*models.Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.lastUsed = time.Now()
		c.stats.Hits++
		return e.dataset, nil
	}
	c.stats.Misses++
	return nil, nil
}

// Put stores a dataset view in the cache.
func (c *MemoryCache) Put(ctx context.Context, key string, ds *models.Dataset) error {
	size := approxSize(ds)
	if size > c.maxBytes {
		return nil // too large to ever fit; skip silently
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.curBytes -= old.size
	}
	for c.curBytes+size > c.maxBytes && len(c.entries) > 0 {
		c.evictOldest()
	}

	c.entries[key] = &entry{dataset: ds, size: size, lastUsed: time.Now()}
	c.curBytes += size
	return nil
}

// Delete removes an entry from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.curBytes -= e.size
		delete(c.entries, key)
	}
	return nil
}

// InvalidatePrefix removes every entry derived from a given dataset. View
// keys are prefixed with the source dataset ID, so evicting a dataset evicts
// its cached views with one call.
func (c *MemoryCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.curBytes -= e.size
			delete(c.entries, key)
		}
	}
	return nil
}

// Clear removes all entries from the cache.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.curBytes = 0
	return nil
}

// Stats returns usage counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.Entries = len(c.entries)
	s.Bytes = c.curBytes
	return s
}

// Close releases resources held by the cache.
func (c *MemoryCache) Close() error {
	return c.Clear(context.Background())
}

// evictOldest removes the least recently used entry. Caller holds the lock.
func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, e := range c.entries {
		if oldestKey == "" || e.lastUsed.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.lastUsed
		}
	}
	if oldestKey != "" {
		c.curBytes -= c.entries[oldestKey].size
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

// approxSize estimates the in-memory payload of a dataset.
func approxSize(ds *models.Dataset) int64 {
	size := int64(0)
	for _, col := range ds.Columns {
		size += int64(len(col.Valid)) // validity mask
		size += int64(len(col.Numbers)) * 8
		size += int64(len(col.Times)) * 24
		for _, s := range col.Strings {
			size += int64(len(s)) + 16
		}
	}
	return size
}

// ViewKey builds the cache key for a filtered view of a dataset.
func ViewKey(datasetID string, spec models.FilterSpec) string {
	return datasetID + "|" + spec.Fingerprint()
}
