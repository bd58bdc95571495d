package resilience

import (
	"sync"
	"time"
)

// UserRateLimiterConfig configures the per-user rate limiter.
type UserRateLimiterConfig struct {
	// Limit is the number of requests allowed per user per window.
	// Default: 1000
	Limit int

	// Window is the length of each counting window.
	// Default: 1 minute
	Window time.Duration
}

// UserRateLimiter bounds request counts per user identity within a rolling
// window. Windows reset transparently on the next request after expiry and
// are pruned when stale.
//
// Contract:
// - Concurrency: safe for concurrent use; concurrent requests for the same
//   user never double-count past the limit (increment-and-compare runs
//   under one lock).
type UserRateLimiter struct {
	config UserRateLimiterConfig

	mu      sync.Mutex
	windows map[string]*rateWindow
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// NewUserRateLimiter creates a per-user rate limiter.
func NewUserRateLimiter(config UserRateLimiterConfig) *UserRateLimiter {
	// Apply defaults
	if config.Limit <= 0 {
		config.Limit = 1000
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &UserRateLimiter{
		config:  config,
		windows: make(map[string]*rateWindow),
	}
}

// Allow reports whether the user may issue another request in the current
// window, counting the request when allowed.
func (rl *UserRateLimiter) Allow(userID string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[userID]
	if !ok || now.After(w.resetAt) {
		rl.windows[userID] = &rateWindow{count: 1, resetAt: now.Add(rl.config.Window)}
		return true
	}

	if w.count >= rl.config.Limit {
		return false
	}
	w.count++
	return true
}

// Remaining returns how many requests the user has left in the current
// window. A user with no active window has the full budget.
func (rl *UserRateLimiter) Remaining(userID string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[userID]
	if !ok || time.Now().After(w.resetAt) {
		return rl.config.Limit
	}
	remaining := rl.config.Limit - w.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Prune drops expired windows and returns the count removed. Called
// periodically so inactive users do not accumulate state.
func (rl *UserRateLimiter) Prune(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for userID, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, userID)
			removed++
		}
	}
	return removed
}

// ActiveUsers returns the number of users with a live window.
func (rl *UserRateLimiter) ActiveUsers() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// Config returns the limiter configuration.
func (rl *UserRateLimiter) Config() UserRateLimiterConfig {
	return rl.config
}
