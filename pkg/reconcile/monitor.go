package reconcile

import (
	"context"
	"time"

	"github.com/gamesense/gamesense/pkg/logger"
)

// DefaultInterval is the period of a Monitor run when none is given.
const DefaultInterval = time.Minute

// ReportObserver receives the reports of every monitor tick.
type ReportObserver interface {
	ObserveReports([]Report)
}

// Monitor checks the stores on an interval and optionally replays the DLQ
// after each check.
type Monitor struct {
	checker  *Checker
	replayer *Replayer
	observer ReportObserver
	batch    int
	log      logger.Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithReplayer makes each tick replay up to batch dead letters.
func WithReplayer(r *Replayer, batch int) MonitorOption {
	return func(m *Monitor) {
		m.replayer = r
		m.batch = batch
	}
}

func WithReportObserver(o ReportObserver) MonitorOption {
	return func(m *Monitor) { m.observer = o }
}

func WithMonitorLogger(l logger.Logger) MonitorOption {
	return func(m *Monitor) { m.log = l }
}

func NewMonitor(checker *Checker, opts ...MonitorOption) *Monitor {
	m := &Monitor{checker: checker, log: logger.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run ticks until ctx is done. It blocks; start it in its own goroutine.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.log.Info("consistency monitor started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			m.log.Info("consistency monitor stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one check and, if configured, one replay batch.
func (m *Monitor) Tick(ctx context.Context) []Report {
	reports := m.checker.CheckAll(ctx)
	for _, r := range reports {
		if r.Error != "" {
			m.log.Error("consistency check errored", "entity", r.EntityClass, "error", r.Error)
		}
	}
	if m.observer != nil {
		m.observer.ObserveReports(reports)
	}
	if m.replayer != nil {
		if _, err := m.replayer.Replay(ctx, m.batch); err != nil {
			m.log.Error("dead letter replay failed", "error", err)
		}
	}
	return reports
}
