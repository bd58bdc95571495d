package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	// Recording must never panic regardless of input.
	ctx := context.Background()
	m.RecordLookup(ctx, OutcomeHitLocal, 3*time.Millisecond)
	m.RecordLookup(ctx, OutcomeHitRemote, 0)
	m.RecordLookup(ctx, OutcomeMiss, time.Second)
	m.RecordLookup(ctx, OutcomeRateLimited, 0)
	m.RecordWrite(ctx, "local", nil)
	m.RecordWrite(ctx, "remote", errors.New("unavailable"))
	m.RecordEvictions(ctx, 5)
	m.RecordEvictions(ctx, 0)
	m.RecordEvictions(ctx, -1)
	m.RecordInvalidation(ctx, "pattern", 10)
	m.RecordInvalidation(ctx, "category", 0)
}

func TestNopMetrics(t *testing.T) {
	var m Metrics = NopMetrics{}
	ctx := context.Background()

	m.RecordLookup(ctx, OutcomeMiss, time.Millisecond)
	m.RecordWrite(ctx, "local", errors.New("ignored"))
	m.RecordEvictions(ctx, 100)
	m.RecordInvalidation(ctx, "pattern", 3)
}
