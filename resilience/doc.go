// Package resilience provides the guard rails around cache access: per-user
// sliding-window rate limiting, retry with exponential backoff for remote
// reconnection, and operation timeouts.
package resilience
