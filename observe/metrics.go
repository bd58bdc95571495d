package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lookup outcomes recorded against the cache metrics.
const (
	OutcomeHitLocal    = "hit_local"
	OutcomeHitRemote   = "hit_remote"
	OutcomeMiss        = "miss"
	OutcomeRateLimited = "rate_limited"
)

// Metrics records cache operation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records a cache lookup with its outcome and duration.
	RecordLookup(ctx context.Context, outcome string, duration time.Duration)

	// RecordWrite records a cache write per tier, with error status.
	RecordWrite(ctx context.Context, tier string, err error)

	// RecordEvictions adds to the eviction counter.
	RecordEvictions(ctx context.Context, n int64)

	// RecordInvalidation records an invalidation sweep and how many
	// entries it removed.
	RecordInvalidation(ctx context.Context, scope string, removed int)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	lookupCount      metric.Int64Counter
	lookupDuration   metric.Float64Histogram
	writeCount       metric.Int64Counter
	writeErrors      metric.Int64Counter
	evictionCount    metric.Int64Counter
	invalidatedCount metric.Int64Counter
}

// NewMetrics creates cache metrics instruments on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	lookupCount, err := meter.Int64Counter(
		"cache.lookup.total",
		metric.WithDescription("Total number of cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	lookupDuration, err := meter.Float64Histogram(
		"cache.lookup.duration_ms",
		metric.WithDescription("Cache lookup duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	writeCount, err := meter.Int64Counter(
		"cache.write.total",
		metric.WithDescription("Total number of cache tier writes"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, err
	}

	writeErrors, err := meter.Int64Counter(
		"cache.write.errors",
		metric.WithDescription("Total number of failed cache tier writes"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	evictionCount, err := meter.Int64Counter(
		"cache.evictions.total",
		metric.WithDescription("Total number of evicted or expired entries"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	invalidatedCount, err := meter.Int64Counter(
		"cache.invalidated.total",
		metric.WithDescription("Total number of entries removed by invalidation"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookupCount:      lookupCount,
		lookupDuration:   lookupDuration,
		writeCount:       writeCount,
		writeErrors:      writeErrors,
		evictionCount:    evictionCount,
		invalidatedCount: invalidatedCount,
	}, nil
}

// RecordLookup records a lookup outcome and its duration.
func (m *metricsImpl) RecordLookup(ctx context.Context, outcome string, duration time.Duration) {
	opt := metric.WithAttributes(attribute.String("cache.outcome", outcome))
	m.lookupCount.Add(ctx, 1, opt)
	m.lookupDuration.Record(ctx, float64(duration.Nanoseconds())/1e6, opt)
}

// RecordWrite records a per-tier write attempt.
func (m *metricsImpl) RecordWrite(ctx context.Context, tier string, err error) {
	opt := metric.WithAttributes(attribute.String("cache.tier", tier))
	m.writeCount.Add(ctx, 1, opt)
	if err != nil {
		m.writeErrors.Add(ctx, 1, opt)
	}
}

// RecordEvictions adds to the eviction counter.
func (m *metricsImpl) RecordEvictions(ctx context.Context, n int64) {
	if n > 0 {
		m.evictionCount.Add(ctx, n)
	}
}

// RecordInvalidation records an invalidation sweep.
func (m *metricsImpl) RecordInvalidation(ctx context.Context, scope string, removed int) {
	m.invalidatedCount.Add(ctx, int64(removed),
		metric.WithAttributes(attribute.String("cache.invalidation_scope", scope)))
}

// NopMetrics is a metrics implementation that does nothing.
type NopMetrics struct{}

func (NopMetrics) RecordLookup(ctx context.Context, outcome string, duration time.Duration) {}
func (NopMetrics) RecordWrite(ctx context.Context, tier string, err error)                  {}
func (NopMetrics) RecordEvictions(ctx context.Context, n int64)                             {}
func (NopMetrics) RecordInvalidation(ctx context.Context, scope string, removed int)        {}

// Ensure implementations satisfy Metrics
var (
	_ Metrics = (*metricsImpl)(nil)
	_ Metrics = NopMetrics{}
)
