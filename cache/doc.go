// Package cache implements a two-tier response cache for AI query answers.
//
// It provides HMAC-based key derivation over sanitized query payloads, a
// bounded in-process tier with frequency-based eviction, a best-effort
// Redis-backed remote tier with reconnect handling, entry codecs with
// optional compression, and pattern/category-scoped invalidation across
// both tiers.
package cache
