// Package feedcache implements the Result Cache of spec.md §4.F: a
// TTL-bounded, LRU-evicted store for assembled feed bytes, keyed by
// feedurl.CacheKey, with singleflight coalescing of concurrent misses.
package feedcache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is the default entry lifetime, per spec.md §4.F.
	DefaultTTL = time.Hour

	// softCap is the soft upper bound on entry count. On insertion
	// causing overflow, the oldest 20% of entries (by insertion time)
	// are evicted.
	softCap = 100

	// sweepInterval is how often the background sweep proactively
	// evicts expired entries, per spec.md §4.F.
	sweepInterval = 5 * time.Minute
)

// Entry is the cached value: assembled feed bytes plus a content-type
// tag, per spec.md §4.F.
type Entry struct {
	Bytes       []byte
	ContentType string

	// GeneratedAt is when the pipeline produced Bytes, used by the
	// HTTP layer for the Last-Modified header. It stays fixed across
	// cache hits, unlike a timestamp taken at response time.
	GeneratedAt time.Time
}

type entryRecord struct {
	value      Entry
	insertedAt time.Time
	expiresAt  time.Time
}

// Stats reports cache hit/miss counters for the /cache/stats endpoint.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Cache is the Result Cache.
type Cache struct {
	ttl   time.Duration
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entryRecord
	hits    int64
	misses  int64

	stopSweep chan struct{}
}

// New creates a Cache with the given TTL, and starts its background
// sweep goroutine. Callers should call Close when done.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:       ttl,
		entries:   make(map[string]*entryRecord),
		stopSweep: make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Close stops the background sweep goroutine.
func (c *Cache) Close() {
	close(c.stopSweep)
}

// Get returns the cached entry for key, if present and unexpired.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.entries[key]
	if !ok || time.Now().After(rec.expiresAt) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return Entry{}, false
	}
	c.hits++
	return rec.value, true
}

// Produce returns the cached entry for key, or calls fn to generate it
// if absent. Concurrent callers for the same key share a single fn
// invocation: the second and later callers block until the first
// completes and receive its result (or its error) identically, per
// spec.md §4.F's coalescing requirement.
func (c *Cache) Produce(key string, fn func() (Entry, error)) (Entry, error) {
	if entry, ok := c.Get(key); ok {
		return entry, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check: another goroutine may have populated the cache
		// while we were waiting to enter the singleflight group.
		if entry, ok := c.Get(key); ok {
			return entry, nil
		}
		entry, err := fn()
		if err != nil {
			return Entry{}, err
		}
		c.set(key, entry)
		return entry, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

func (c *Cache) set(key string, value Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= softCap {
		c.evictOldestLocked()
	}
	c.entries[key] = &entryRecord{value: value, insertedAt: now, expiresAt: now.Add(c.ttl)}
}

type keyedInsertion struct {
	key        string
	insertedAt time.Time
}

// evictOldestLocked evicts the oldest 20% of entries by insertion
// time. Callers must hold c.mu.
func (c *Cache) evictOldestLocked() {
	ordered := make([]keyedInsertion, 0, len(c.entries))
	for k, rec := range c.entries {
		ordered = append(ordered, keyedInsertion{k, rec.insertedAt})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].insertedAt.Before(ordered[j].insertedAt)
	})

	evictCount := len(ordered) / 5
	if evictCount < 1 {
		evictCount = 1
	}
	for i := 0; i < evictCount && i < len(ordered); i++ {
		delete(c.entries, ordered[i].key)
	}
}

// Clear removes every entry and resets hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entryRecord)
	c.hits = 0
	c.misses = 0
}

// ClearByPage removes every entry whose key carries the given page
// prefix, regardless of options, per spec.md §4.F.
func (c *Cache) ClearByPage(pagePrefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if strings.HasPrefix(k, pagePrefix) {
			delete(c.entries, k)
		}
	}
}

// StatsSnapshot returns the current hit/miss counters and entry count.
func (c *Cache) StatsSnapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.stopSweep:
			return
		}
	}
}

func (c *Cache) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, rec := range c.entries {
		if now.After(rec.expiresAt) {
			delete(c.entries, k)
		}
	}
}
