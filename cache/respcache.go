package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/clinicore/respcache/health"
	"github.com/clinicore/respcache/observe"
	"github.com/clinicore/respcache/resilience"
)

// WriteOptions tune a single cache write.
type WriteOptions struct {
	// TTL overrides the configured default TTL. Clamped to [1s, 24h].
	TTL time.Duration

	// Skip suppresses caching for this response entirely.
	Skip bool
}

// Option customizes a ResponseCache at construction.
type Option func(*ResponseCache)

// WithLogger sets the structured logger. Default: no-op.
func WithLogger(l observe.Logger) Option {
	return func(c *ResponseCache) { c.logger = l }
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observe.Metrics) Option {
	return func(c *ResponseCache) { c.metrics = m }
}

// WithTracer sets the operation tracer. Default: no-op.
func WithTracer(t observe.Tracer) Option {
	return func(c *ResponseCache) { c.tracer = t }
}

// WithObserver wires logger, metrics, and tracer from a single Observer.
func WithObserver(obs observe.Observer) Option {
	return func(c *ResponseCache) {
		c.logger = obs.Logger()
		c.tracer = observe.NewTracer(obs.Tracer())
		if m, err := observe.NewMetrics(obs.Meter()); err == nil {
			c.metrics = m
		}
	}
}

// WithCodec overrides the entry codec chosen by the Compression flag.
func WithCodec(codec Codec) Option {
	return func(c *ResponseCache) { c.codec = codec }
}

// ResponseCache is the two-tier response cache handle. It is constructed
// once with injected configuration and passed by reference to all callers;
// there is no package-level instance. All methods are safe for concurrent
// use. Destroy releases the background monitor and the remote connection.
type ResponseCache struct {
	config  Config
	keyer   *HMACKeyer
	local   *LocalCache
	remote  *RemoteStore
	codec   Codec
	limiter *resilience.UserRateLimiter
	inv     *Invalidator
	stats   *Stats
	monitor *health.Monitor

	logger  observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer

	// evictions already pushed to the metrics backend, for delta reporting
	// from the monitor cycle.
	reportedEvictions atomic.Int64

	closed atomic.Bool
}

// New constructs a cache instance from validated configuration.
// Configuration errors are fatal here; nothing else is. A remote tier that
// is unreachable at construction starts disconnected and the cache serves
// local-only until the health probe restores it.
func New(ctx context.Context, config Config, opts ...Option) (*ResponseCache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	stats := NewStats()
	remote, err := NewRemoteStore(ctx, RemoteStoreConfig{
		URL:              config.RedisURL,
		OpTimeout:        config.RemoteTimeout,
		ReconnectCeiling: config.ReconnectCeiling,
	})
	if err != nil {
		return nil, err
	}

	c := &ResponseCache{
		config: config,
		keyer:  NewHMACKeyer(config.Namespace, []byte(config.KeySecret)),
		local:  NewLocalCache(config.MaxLocalEntries, config.EvictFraction, stats),
		remote: remote,
		limiter: resilience.NewUserRateLimiter(resilience.UserRateLimiterConfig{
			Limit:  config.RateLimit,
			Window: config.RateWindow,
		}),
		stats:   stats,
		logger:  observe.NewNopLogger(),
		metrics: observe.NopMetrics{},
		tracer:  observe.NewNopTracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.codec == nil {
		if config.Compression {
			c.codec = NewGzipCodec()
		} else {
			c.codec = NewJSONCodec()
		}
	}
	c.logger = c.logger.WithComponent("respcache")
	c.inv = NewInvalidator(c.local, c.remote, c.codec, c.stats, config.Namespace)

	c.monitor = c.newMonitor()
	c.monitor.Start(ctx)

	return c, nil
}

// newMonitor assembles the periodic probe/sweep loop owned by this handle.
func (c *ResponseCache) newMonitor() *health.Monitor {
	agg := health.NewAggregator(health.AggregatorConfig{Timeout: c.config.RemoteTimeout})
	agg.Register("remote", health.NewPingChecker("remote", c.remote.Ping))
	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))

	tasks := []health.Task{
		{Name: "sweep-expired", Run: func(ctx context.Context) {
			if n := c.local.SweepExpired(time.Now()); n > 0 {
				c.logger.Debug(ctx, "swept expired entries", observe.Field{Key: "count", Value: n})
			}
		}},
		{Name: "prune-rate-windows", Run: func(ctx context.Context) {
			c.limiter.Prune(time.Now())
		}},
		{Name: "report-evictions", Run: func(ctx context.Context) {
			total := c.stats.evictions.Load()
			if delta := total - c.reportedEvictions.Swap(total); delta > 0 {
				c.metrics.RecordEvictions(ctx, delta)
			}
		}},
	}

	return health.NewMonitor(health.MonitorConfig{
		Interval: c.config.HealthInterval,
		OnCycle: func(results map[string]health.Result, overall health.Status) {
			if overall == health.StatusHealthy {
				return
			}
			for name, r := range results {
				if r.Status != health.StatusHealthy {
					c.logger.Warn(context.Background(), "health check not healthy",
						observe.Field{Key: "checker", Value: name},
						observe.Field{Key: "status", Value: r.Status.String()},
						observe.Field{Key: "message", Value: r.Message},
					)
				}
			}
		},
	}, agg, tasks...)
}

// GetCachedResponse looks up the cached response for a query issued by
// userID. It returns (nil, nil) on a miss, ErrRateLimited when the user's
// request budget is exhausted, and ErrInvalidIdentity for an unusable
// userID. Remote-tier failures never surface: the lookup degrades to the
// local tier and, at worst, a miss.
func (c *ResponseCache) GetCachedResponse(ctx context.Context, query *Query, userID string) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	ctx, span := c.tracer.StartSpan(ctx, observe.OpMeta{Name: "lookup", Namespace: c.config.Namespace})
	resp, err := c.lookup(ctx, query, userID)
	c.tracer.EndSpan(span, err)
	return resp, err
}

func (c *ResponseCache) lookup(ctx context.Context, query *Query, userID string) (*Response, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	if !c.limiter.Allow(userID) {
		c.stats.recordRateLimited()
		c.metrics.RecordLookup(ctx, observe.OutcomeRateLimited, 0)
		c.logger.Debug(ctx, "lookup rate limited", observe.Field{Key: "user_id", Value: userID})
		return nil, ErrRateLimited
	}

	key, err := c.keyer.Key(query, userID)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	if entry, ok := c.local.Get(key); ok {
		elapsed := time.Since(start)
		c.stats.recordHit(elapsed)
		c.metrics.RecordLookup(ctx, observe.OutcomeHitLocal, elapsed)
		return &entry.Payload, nil
	}

	if entry, ok := c.remoteLookup(ctx, key); ok {
		// Promote into the local tier so subsequent reads skip the
		// network round trip.
		entry.HitCount++
		c.local.Put(key, entry)

		elapsed := time.Since(start)
		c.stats.recordHit(elapsed)
		c.metrics.RecordLookup(ctx, observe.OutcomeHitRemote, elapsed)
		return &entry.Payload, nil
	}

	elapsed := time.Since(start)
	c.stats.recordMiss(elapsed)
	c.metrics.RecordLookup(ctx, observe.OutcomeMiss, elapsed)
	return nil, nil
}

// remoteLookup fetches, decodes, and validates a remote entry. Structurally
// invalid or expired entries are deleted there as hygiene and reported as a
// miss; the key is then absent instead of poisoning future reads.
func (c *ResponseCache) remoteLookup(ctx context.Context, key string) (*Entry, bool) {
	data, found, err := c.remote.Get(ctx, key)
	if err != nil {
		c.logger.Debug(ctx, "remote tier unavailable, serving local-only")
		return nil, false
	}
	if !found {
		return nil, false
	}

	entry, err := c.codec.Decode(data)
	if err == nil {
		err = entry.Validate()
	}
	if err == nil && entry.Expired(time.Now()) {
		err = ErrEntryInvalid
	}
	if err != nil {
		c.logger.Warn(ctx, "dropping invalid remote entry", observe.Field{Key: "error", Value: err.Error()})
		if _, delErr := c.remote.Delete(ctx, key); delErr != nil {
			c.logger.Debug(ctx, "hygiene delete failed")
		}
		return nil, false
	}
	return entry, true
}

// CacheResponse stores a response in both tiers. The remote write is
// best-effort and the local tier is bounded; a rejected write is never an
// error for the caller — caching is advisory, the upstream response path
// does not depend on it.
func (c *ResponseCache) CacheResponse(ctx context.Context, query *Query, resp *Response, userID string, opts *WriteOptions) error {
	if c.closed.Load() {
		return ErrClosed
	}

	ctx, span := c.tracer.StartSpan(ctx, observe.OpMeta{Name: "write", Namespace: c.config.Namespace})
	err := c.write(ctx, query, resp, userID, opts)
	c.tracer.EndSpan(span, err)
	return err
}

func (c *ResponseCache) write(ctx context.Context, query *Query, resp *Response, userID string, opts *WriteOptions) error {
	if opts != nil && opts.Skip {
		return nil
	}

	key, err := c.keyer.Key(query, userID)
	if err != nil {
		return err
	}

	if err := resp.Validate(); err != nil {
		// Do-not-cache outcome, not a failure.
		c.logger.Warn(ctx, "response failed validation, not caching")
		return nil
	}

	ttl := c.config.DefaultTTL
	if opts != nil && opts.TTL > 0 {
		ttl = opts.TTL
	}
	ttlSeconds := clampInt(int(ttl/time.Second), MinTTLSeconds, MaxTTLSeconds)

	entry := &Entry{
		Payload:    *resp,
		CreatedAt:  time.Now(),
		TTLSeconds: ttlSeconds,
		Metadata: Metadata{
			QueryHash:  key[strings.LastIndexByte(key, ':')+1:],
			UserID:     userID,
			PatientID:  SanitizeText(query.PatientID),
			Confidence: resp.Confidence,
		},
	}
	for _, cat := range query.Categories {
		if s := SanitizeText(cat); s != "" {
			entry.Metadata.DataCategories = append(entry.Metadata.DataCategories, s)
		}
	}

	data, err := c.codec.Encode(entry)
	if err != nil {
		c.logger.Warn(ctx, "entry encode failed, not caching", observe.Field{Key: "error", Value: err.Error()})
		return nil
	}

	remoteErr := c.remote.SetWithTTL(ctx, key, data, time.Duration(ttlSeconds)*time.Second)
	c.metrics.RecordWrite(ctx, "remote", remoteErr)
	if remoteErr != nil {
		c.logger.Debug(ctx, "remote write skipped, tier unavailable")
	}

	c.local.Put(key, entry)
	c.metrics.RecordWrite(ctx, "local", nil)
	return nil
}

// InvalidatePattern removes entries matching a restricted glob pattern from
// both tiers and returns the count removed. Remote failure degrades to
// local-only invalidation.
func (c *ResponseCache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	ctx, span := c.tracer.StartSpan(ctx, observe.OpMeta{Name: "invalidate", Namespace: c.config.Namespace})
	removed, err := c.inv.ByPattern(ctx, pattern)
	c.tracer.EndSpan(span, err)

	c.metrics.RecordInvalidation(ctx, "pattern", removed)
	c.logger.Info(ctx, "pattern invalidation",
		observe.Field{Key: "removed", Value: removed})
	return removed, err
}

// InvalidateByDataCategory removes entries tagged with category, optionally
// scoped to a user and patient, and returns the count removed.
func (c *ResponseCache) InvalidateByDataCategory(ctx context.Context, category, userID, patientID string) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	ctx, span := c.tracer.StartSpan(ctx, observe.OpMeta{Name: "invalidate", Namespace: c.config.Namespace})
	removed, err := c.inv.ByCategory(ctx, category, userID, patientID)
	c.tracer.EndSpan(span, err)

	c.metrics.RecordInvalidation(ctx, "category", removed)
	c.logger.Info(ctx, "category invalidation",
		observe.Field{Key: "category", Value: category},
		observe.Field{Key: "removed", Value: removed})
	return removed, err
}

// Stats returns a point-in-time snapshot of the cache counters.
func (c *ResponseCache) Stats() Snapshot {
	return c.stats.snapshot(c.local.Len())
}

// Connected reports whether the remote tier is currently reachable.
func (c *ResponseCache) Connected() bool {
	return c.remote.Connected()
}

// Destroy stops the background monitor and closes the remote connection.
// Idempotent; subsequent cache operations return ErrClosed.
func (c *ResponseCache) Destroy() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.monitor.Stop()
	return c.remote.Close()
}
