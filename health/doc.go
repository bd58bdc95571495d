// Package health provides liveness probing for the cache tiers and the
// periodic background maintenance loop owned by the cache handle.
//
// A Checker reports the health of one component (the remote store, process
// memory). The Aggregator combines checkers into a composite view. The
// Monitor drives the periodic cycle: probing the remote tier, sweeping
// expired local entries, and pruning rate-limiter windows — all cancelled
// together with the cache instance that owns it.
package health
