// Package metrics exports coordinator outcomes and reconciliation reports as
// Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/gamesense/gamesense/pkg/consistency"
	"github.com/gamesense/gamesense/pkg/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gamesense"

// Metrics owns its registry so several instances can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	operations  *prometheus.CounterVec
	attempts    *prometheus.HistogramVec
	deadLetters *prometheus.CounterVec
	entities    *prometheus.GaugeVec
	consistent  *prometheus.GaugeVec
	pending     prometheus.Gauge
}

var (
	_ consistency.Observer     = (*Metrics)(nil)
	_ reconcile.ReportObserver = (*Metrics)(nil)
)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Coordinated operations by final state.",
		}, []string{"operation", "state"}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "secondary_attempts",
			Help:      "Secondary write attempts per operation.",
			Buckets:   []float64{1, 2, 3, 5},
		}, []string{"operation"}),
		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_letters_total",
			Help:      "Operations whose secondary write ended in the DLQ.",
		}, []string{"operation"}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entities",
			Help:      "Entity counts from the last consistency check.",
		}, []string{"entity", "store"}),
		consistent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consistent",
			Help:      "1 when the last check found equal counts in both stores.",
		}, []string{"entity"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_dead_letters",
			Help:      "Unresolved dead letters at the last consistency check.",
		}),
	}
	m.registry.MustRegister(m.operations, m.attempts, m.deadLetters, m.entities, m.consistent, m.pending)
	return m
}

func (m *Metrics) ObserveOutcome(o consistency.Outcome) {
	op := string(o.Operation)
	m.operations.WithLabelValues(op, string(o.State)).Inc()
	if o.Attempts > 0 {
		m.attempts.WithLabelValues(op).Observe(float64(o.Attempts))
	}
	if o.Degraded() {
		m.deadLetters.WithLabelValues(op).Inc()
	}
}

// ObserveReports updates the gauges. Reports that carry an error leave the
// previous values in place.
func (m *Metrics) ObserveReports(reports []reconcile.Report) {
	for _, r := range reports {
		if r.Error != "" {
			continue
		}
		entity := string(r.EntityClass)
		m.entities.WithLabelValues(entity, "document").Set(float64(r.DocumentCount))
		m.entities.WithLabelValues(entity, "graph").Set(float64(r.GraphCount))
		m.consistent.WithLabelValues(entity).Set(boolGauge(r.Consistent))
		m.pending.Set(float64(r.PendingDeadLetters))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests and for registering process collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
