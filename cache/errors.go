package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrInvalidIdentity is returned when a userID is empty or oversized.
	ErrInvalidIdentity = errors.New("cache: invalid user identity")

	// ErrInvalidConfiguration is returned when construction-time config is invalid.
	ErrInvalidConfiguration = errors.New("cache: invalid configuration")

	// ErrRemoteUnavailable indicates the remote tier timed out or is disconnected.
	// Callers treat the remote tier as absent; the error never fails a lookup.
	ErrRemoteUnavailable = errors.New("cache: remote tier unavailable")

	// ErrRateLimited indicates the per-user request budget is exhausted.
	// It is a distinct outcome, not a cache miss.
	ErrRateLimited = errors.New("cache: rate limited")

	// ErrEntryInvalid indicates a stored entry failed structural validation.
	ErrEntryInvalid = errors.New("cache: entry failed validation")

	// ErrInvalidPattern is returned when an invalidation pattern contains
	// characters outside the safe alphabet.
	ErrInvalidPattern = errors.New("cache: invalid invalidation pattern")

	// ErrClosed is returned from operations on a destroyed cache.
	ErrClosed = errors.New("cache: cache is closed")
)
