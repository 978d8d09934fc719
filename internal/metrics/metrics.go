// Package metrics exposes prometheus collectors for generation flows.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the bot's collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	flows         *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	updates       *prometheus.CounterVec
	sessionsSwept prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docbot",
			Name:      "generation_flows_total",
			Help:      "Finished generation attempts by template and outcome.",
		}, []string{"template", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docbot",
			Name:      "stage_duration_seconds",
			Help:      "Duration of remote workflow stages.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 180},
		}, []string{"stage", "result"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "docbot",
			Name:      "generation_flows_in_flight",
			Help:      "Generation attempts currently running.",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docbot",
			Name:      "updates_total",
			Help:      "Inbound chat updates by kind.",
		}, []string{"kind"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docbot",
			Name:      "sessions_expired_total",
			Help:      "Idle sessions dropped by the sweeper.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.flows, m.stageDuration, m.inFlight, m.updates, m.sessionsSwept,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FlowStarted marks one more attempt in flight.
func (m *Metrics) FlowStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// FlowFinished records the outcome of an attempt.
func (m *Metrics) FlowFinished(template, outcome string) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.flows.WithLabelValues(template, outcome).Inc()
}

// ObserveStage records how long a stage took and whether it failed.
func (m *Metrics) ObserveStage(stage string, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.stageDuration.WithLabelValues(stage, result).Observe(took.Seconds())
}

// Update counts an inbound update of the given kind.
func (m *Metrics) Update(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

// SessionsSwept adds n expired sessions.
func (m *Metrics) SessionsSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsSwept.Add(float64(n))
}
