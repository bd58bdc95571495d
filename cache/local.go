package cache

import (
	"sort"
	"sync"
	"time"
)

// DefaultEvictFraction is the share of resident entries evicted when the
// local tier reaches capacity.
const DefaultEvictFraction = 0.20

// LocalCache is the bounded in-process tier. All access is serialized by a
// single mutex; eviction scans are therefore consistent with concurrent
// inserts, and HitCount updates are never lost.
type LocalCache struct {
	mu            sync.Mutex
	entries       map[string]*localEntry
	maxSize       int
	evictFraction float64
	seq           uint64
	stats         *Stats
}

type localEntry struct {
	entry *Entry
	seq   uint64 // insertion order, used as the eviction tie-break
}

// NewLocalCache creates a local tier bounded at maxSize entries.
// evictFraction <= 0 falls back to DefaultEvictFraction.
func NewLocalCache(maxSize int, evictFraction float64, stats *Stats) *LocalCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if evictFraction <= 0 || evictFraction > 1 {
		evictFraction = DefaultEvictFraction
	}
	return &LocalCache{
		entries:       make(map[string]*localEntry),
		maxSize:       maxSize,
		evictFraction: evictFraction,
		stats:         stats,
	}
}

// Get returns a copy of the resident entry, bumping its hit count.
// Expired entries are removed lazily and reported as absent.
func (c *LocalCache) Get(key string) (*Entry, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	le, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if le.entry.Expired(now) {
		delete(c.entries, key)
		if c.stats != nil {
			c.stats.recordEviction(1)
		}
		return nil, false
	}

	le.entry.HitCount++
	return le.entry.clone(), true
}

// Peek returns a copy of the resident entry without counting a hit.
// Used by invalidation scans, which must not perturb eviction order.
func (c *LocalCache) Peek(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	le, ok := c.entries[key]
	if !ok || le.entry.Expired(time.Now()) {
		return nil, false
	}
	return le.entry.clone(), true
}

// Put inserts or replaces an entry, evicting the least-frequently-used
// fraction first when the tier is at capacity.
func (c *LocalCache) Put(key string, entry *Entry) {
	if entry == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.seq++
	c.entries[key] = &localEntry{entry: entry.clone(), seq: c.seq}
}

// Delete removes an entry. Idempotent; reports whether a removal happened.
func (c *LocalCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Len returns the number of resident entries, including not-yet-swept
// expired ones.
func (c *LocalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns a snapshot of resident keys.
func (c *LocalCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// SweepExpired removes all expired entries and returns the count removed.
// Called periodically by the health monitor; takes the same lock as
// ordinary mutation.
func (c *LocalCache) SweepExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, le := range c.entries {
		if le.entry.Expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 && c.stats != nil {
		c.stats.recordEviction(int64(removed))
	}
	return removed
}

// evictLocked removes the lowest-hit-count fraction of resident entries.
// Ties are broken by insertion order, earliest first.
func (c *LocalCache) evictLocked() {
	n := int(float64(len(c.entries)) * c.evictFraction)
	if n < 1 {
		n = 1
	}

	type victim struct {
		key string
		le  *localEntry
	}
	candidates := make([]victim, 0, len(c.entries))
	for k, le := range c.entries {
		candidates = append(candidates, victim{key: k, le: le})
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].le, candidates[j].le
		if a.entry.HitCount != b.entry.HitCount {
			return a.entry.HitCount < b.entry.HitCount
		}
		return a.seq < b.seq
	})

	for i := 0; i < n && i < len(candidates); i++ {
		delete(c.entries, candidates[i].key)
	}
	if c.stats != nil {
		c.stats.recordEviction(int64(n))
	}
}
