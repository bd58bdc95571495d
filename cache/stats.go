package cache

import (
	"sync/atomic"
	"time"
)

// Stats holds process-wide cache counters. All fields are updated with
// atomics so hot-path recording never contends with snapshot readers.
type Stats struct {
	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	rateLimited atomic.Int64
	lookupNanos atomic.Int64
	lookups     atomic.Int64
}

// Snapshot is a read-only view of the cache counters at a point in time.
type Snapshot struct {
	TotalHits             int64   `json:"total_hits"`
	TotalMisses           int64   `json:"total_misses"`
	HitRate               float64 `json:"hit_rate"`
	EvictionCount         int64   `json:"eviction_count"`
	RateLimitedCount      int64   `json:"rate_limited_count"`
	CacheSize             int     `json:"cache_size"`
	AverageResponseTimeMs float64 `json:"average_response_time_ms"`
}

// NewStats creates a zeroed stats aggregator.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) recordHit(elapsed time.Duration) {
	s.hits.Add(1)
	s.recordLookup(elapsed)
}

func (s *Stats) recordMiss(elapsed time.Duration) {
	s.misses.Add(1)
	s.recordLookup(elapsed)
}

func (s *Stats) recordLookup(elapsed time.Duration) {
	s.lookups.Add(1)
	s.lookupNanos.Add(elapsed.Nanoseconds())
}

func (s *Stats) recordEviction(n int64) {
	s.evictions.Add(n)
}

func (s *Stats) recordRateLimited() {
	s.rateLimited.Add(1)
}

// snapshot builds a point-in-time view. size is supplied by the caller since
// the local tier owns its own lock.
func (s *Stats) snapshot(size int) Snapshot {
	hits := s.hits.Load()
	misses := s.misses.Load()
	snap := Snapshot{
		TotalHits:        hits,
		TotalMisses:      misses,
		EvictionCount:    s.evictions.Load(),
		RateLimitedCount: s.rateLimited.Load(),
		CacheSize:        size,
	}
	if total := hits + misses; total > 0 {
		snap.HitRate = float64(hits) / float64(total)
	}
	if lookups := s.lookups.Load(); lookups > 0 {
		snap.AverageResponseTimeMs = float64(s.lookupNanos.Load()) / float64(lookups) / 1e6
	}
	return snap
}
