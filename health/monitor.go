package health

import (
	"context"
	"sync"
	"time"
)

// Task is a named maintenance function run by the Monitor every tick
// (expiry sweeps, rate-window pruning).
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// MonitorConfig configures the periodic monitor.
type MonitorConfig struct {
	// Interval between maintenance cycles. Default: 30 seconds.
	Interval time.Duration

	// OnCycle, when set, receives the check results of every cycle.
	OnCycle func(results map[string]Result, overall Status)
}

// Monitor is the background maintenance loop owned by a cache instance. Each
// cycle it runs all registered health checks and maintenance tasks. It is
// started once and stopped through the owning instance's teardown, so no
// timer outlives the cache.
type Monitor struct {
	config MonitorConfig
	agg    *Aggregator
	tasks  []Task

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewMonitor creates a monitor over the given aggregator.
func NewMonitor(config MonitorConfig, agg *Aggregator, tasks ...Task) *Monitor {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if agg == nil {
		agg = NewAggregator()
	}
	return &Monitor{
		config: config,
		agg:    agg,
		tasks:  tasks,
		done:   make(chan struct{}),
	}
}

// Start launches the periodic loop. Subsequent calls are no-ops.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		m.cancel = cancel
		go m.loop(loopCtx)
	})
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
// Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
			<-m.done
		} else {
			close(m.done)
		}
	})
}

// RunCycle executes one maintenance cycle immediately, outside the timer.
// Used by tests and by callers that want a synchronous probe.
func (m *Monitor) RunCycle(ctx context.Context) (map[string]Result, Status) {
	for _, task := range m.tasks {
		task.Run(ctx)
	}
	results := m.agg.CheckAll(ctx)
	overall := m.agg.OverallStatus(results)
	if m.config.OnCycle != nil {
		m.config.OnCycle(results, overall)
	}
	return results, overall
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}
