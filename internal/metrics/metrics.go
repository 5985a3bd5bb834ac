// Package metrics holds the Prometheus collectors of the function host.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded per invocation.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Metrics is created once at process start on its own registry.
type Metrics struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	items       *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_invocations_total",
				Help: "Function invocations by function and outcome",
			},
			[]string{"function", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_invocation_duration_seconds",
				Help:    "Function invocation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"function"},
		),
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_news_items_total",
				Help: "News items written by function",
			},
			[]string{"function"},
		),
	}
	m.registry.MustRegister(m.invocations, m.duration, m.items)
	return m
}

// Observe records one invocation.
func (m *Metrics) Observe(function, outcome string, elapsed time.Duration) {
	m.invocations.WithLabelValues(function, outcome).Inc()
	m.duration.WithLabelValues(function).Observe(elapsed.Seconds())
}

// AddItems counts news items written by function.
func (m *Metrics) AddItems(function string, n int) {
	if n > 0 {
		m.items.WithLabelValues(function).Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
