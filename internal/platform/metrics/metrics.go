package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the watch progress service.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	samplesTotal        *prometheus.CounterVec
	skipsTotal          prometheus.Counter
	intervalsCommitted  prometheus.Counter
	persistenceFailures *prometheus.CounterVec
	activeSessions      prometheus.Gauge
}

// New creates and registers the service metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		samplesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_samples_total",
			Help: "Playback events handled by trackers, by outcome",
		}, []string{"outcome"}),
		skipsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_skips_total",
			Help: "Sample transitions classified as a seek or fast-forward",
		}),
		intervalsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_intervals_committed_total",
			Help: "Spans merged into a watched-interval set",
		}),
		persistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_persistence_failures_total",
			Help: "Failed store reads and writes, by operation",
		}, []string{"op"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watch_active_sessions",
			Help: "Number of open tracking sessions",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.samplesTotal,
		m.skipsTotal,
		m.intervalsCommitted,
		m.persistenceFailures,
		m.activeSessions,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// ObserveSample counts one tracker event with the given outcome label.
func (m *Metrics) ObserveSample(outcome string) {
	if m == nil {
		return
	}
	m.samplesTotal.WithLabelValues(outcome).Inc()
}

// IncSkips increments the skip counter.
func (m *Metrics) IncSkips() {
	if m == nil {
		return
	}
	m.skipsTotal.Inc()
}

// IncIntervalsCommitted increments the committed spans counter.
func (m *Metrics) IncIntervalsCommitted() {
	if m == nil {
		return
	}
	m.intervalsCommitted.Inc()
}

// IncPersistenceFailures counts a failed store operation.
func (m *Metrics) IncPersistenceFailures(op string) {
	if m == nil {
		return
	}
	m.persistenceFailures.WithLabelValues(op).Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
