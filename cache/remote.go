package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/clinicore/respcache/resilience"
)

// DefaultRemoteTimeout bounds every remote round trip.
const DefaultRemoteTimeout = 5 * time.Second

// DefaultDeleteChunkSize bounds the number of keys per DEL round trip.
const DefaultDeleteChunkSize = 100

// DefaultReconnectCeiling is the number of backed-off reconnect attempts
// before the adapter stays down until the next health probe.
const DefaultReconnectCeiling = 5

// RemoteStoreConfig configures the remote tier adapter.
type RemoteStoreConfig struct {
	// URL is the redis connection URL (redis://...).
	URL string

	// OpTimeout is the per-operation deadline. Default: DefaultRemoteTimeout.
	OpTimeout time.Duration

	// DeleteChunkSize bounds batch deletes. Default: DefaultDeleteChunkSize.
	DeleteChunkSize int

	// ReconnectCeiling is the maximum backed-off reconnect attempts.
	// Default: DefaultReconnectCeiling.
	ReconnectCeiling int
}

// RemoteStore adapts a Redis instance as the best-effort second tier.
//
// Every operation is raced against OpTimeout. A timeout or transport error
// marks the store disconnected and surfaces ErrRemoteUnavailable; the caller
// treats the tier as absent. A single background reconnect loop (deduplicated
// via singleflight) retries with exponential backoff up to the ceiling; after
// that the store stays disconnected until a health probe ping succeeds.
type RemoteStore struct {
	client  *redis.Client
	config  RemoteStoreConfig
	timeout *resilience.Timeout

	connected atomic.Bool
	closed    atomic.Bool

	reconnectGroup singleflight.Group
	baseCtx        context.Context
	cancel         context.CancelFunc
}

// NewRemoteStore creates a remote tier adapter and attempts an initial ping.
// A failed initial ping is not fatal: the store starts disconnected and the
// reconnect loop takes over.
func NewRemoteStore(ctx context.Context, config RemoteStoreConfig) (*RemoteStore, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: remote store URL: %v", ErrInvalidConfiguration, err)
	}
	if config.OpTimeout <= 0 {
		config.OpTimeout = DefaultRemoteTimeout
	}
	if config.DeleteChunkSize <= 0 {
		config.DeleteChunkSize = DefaultDeleteChunkSize
	}
	if config.ReconnectCeiling <= 0 {
		config.ReconnectCeiling = DefaultReconnectCeiling
	}

	baseCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &RemoteStore{
		client:  redis.NewClient(opts),
		config:  config,
		timeout: resilience.NewTimeout(resilience.TimeoutConfig{Timeout: config.OpTimeout}),
		baseCtx: baseCtx,
		cancel:  cancel,
	}

	if err := r.Ping(ctx); err != nil {
		r.connected.Store(false)
	}
	return r, nil
}

// Connected reports whether the adapter currently considers the remote
// tier reachable.
func (r *RemoteStore) Connected() bool {
	return r.connected.Load() && !r.closed.Load()
}

// Get fetches the storable for key. Returns (nil, false, nil) on a clean
// miss and ErrRemoteUnavailable when the tier is down.
func (r *RemoteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !r.Connected() {
		return nil, false, ErrRemoteUnavailable
	}

	var data []byte
	var found bool
	err := r.execute(ctx, func(opCtx context.Context) error {
		res, err := r.client.Get(opCtx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		data, found = res, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, found, nil
}

// SetWithTTL writes the storable under key with the given TTL.
func (r *RemoteStore) SetWithTTL(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if !r.Connected() {
		return ErrRemoteUnavailable
	}
	return r.execute(ctx, func(opCtx context.Context) error {
		return r.client.Set(opCtx, key, data, ttl).Err()
	})
}

// Delete removes keys in chunks, bounding single-call load on the remote
// store. Returns the number of keys the server reports removed.
func (r *RemoteStore) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if !r.Connected() {
		return 0, ErrRemoteUnavailable
	}

	removed := 0
	for start := 0; start < len(keys); start += r.config.DeleteChunkSize {
		end := start + r.config.DeleteChunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		err := r.execute(ctx, func(opCtx context.Context) error {
			n, err := r.client.Del(opCtx, chunk...).Result()
			removed += int(n)
			return err
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Keys returns the keys matching pattern. The pattern must already be
// restricted to the safe alphabet by the caller.
func (r *RemoteStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if !r.Connected() {
		return nil, ErrRemoteUnavailable
	}

	var keys []string
	err := r.execute(ctx, func(opCtx context.Context) error {
		res, err := r.client.Keys(opCtx, pattern).Result()
		if err != nil {
			return err
		}
		keys = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Ping probes the remote tier. A successful probe restores the connected
// flag; this is the recovery path after the reconnect ceiling is reached.
func (r *RemoteStore) Ping(ctx context.Context) error {
	if r.closed.Load() {
		return ErrRemoteUnavailable
	}

	err := r.timeout.Execute(ctx, func(opCtx context.Context) error {
		return r.client.Ping(opCtx).Err()
	})
	if err != nil {
		r.markDisconnected()
		return fmt.Errorf("%w: ping: %v", ErrRemoteUnavailable, err)
	}
	r.connected.Store(true)
	return nil
}

// Close releases the underlying client. Subsequent operations report the
// tier unavailable.
func (r *RemoteStore) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.connected.Store(false)
	r.cancel()
	return r.client.Close()
}

// execute runs op under the per-operation deadline. Any failure marks the
// adapter disconnected and kicks off the background reconnect loop; the
// caller sees ErrRemoteUnavailable and falls back to local-only behavior.
// An operation that outlives its deadline is abandoned: its late result is
// discarded along with the cancelled context.
func (r *RemoteStore) execute(ctx context.Context, op func(context.Context) error) error {
	err := r.timeout.Execute(ctx, op)
	if err == nil {
		return nil
	}
	r.markDisconnected()
	return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
}

// markDisconnected flips the connected flag once and triggers the reconnect
// loop. Concurrent failures collapse into a single loop via singleflight.
func (r *RemoteStore) markDisconnected() {
	if !r.connected.CompareAndSwap(true, false) {
		return
	}
	if r.closed.Load() {
		return
	}
	go r.reconnect()
}

// reconnect retries pinging with exponential backoff (2^attempt seconds)
// up to the ceiling. Only one loop runs at a time.
func (r *RemoteStore) reconnect() {
	_, _, _ = r.reconnectGroup.Do("reconnect", func() (any, error) {
		retry := resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  r.config.ReconnectCeiling,
			InitialDelay: 2 * time.Second,
			Multiplier:   2.0,
			Strategy:     resilience.BackoffExponential,
			Jitter:       true,
		})

		err := retry.Execute(r.baseCtx, func(attemptCtx context.Context) error {
			if r.closed.Load() {
				return nil
			}
			return r.timeout.Execute(attemptCtx, func(opCtx context.Context) error {
				return r.client.Ping(opCtx).Err()
			})
		})
		if err == nil && !r.closed.Load() {
			r.connected.Store(true)
		}
		// After the ceiling the store stays down until the next health
		// probe ping succeeds.
		return nil, nil
	})
}
