// Package telemetry defines the Prometheus collectors recorded by the
// builders, engines and the experiment runner. All methods are safe to call
// on a nil *Metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	PostsNormalized   prometheus.Counter
	FormulasExtracted prometheus.Counter
	StructuralErrors  prometheus.Counter
	DocsIndexed       *prometheus.CounterVec
	EngineQueries     *prometheus.CounterVec
	EngineLatency     *prometheus.HistogramVec
	CacheLookups      *prometheus.CounterVec
	ExperimentsRun    prometheus.Counter
	AuthRejections    *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PostsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mathfuse_posts_normalized_total",
			Help: "Total raw posts normalized.",
		}),
		FormulasExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mathfuse_formulas_extracted_total",
			Help: "Total formula placeholders captured.",
		}),
		StructuralErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mathfuse_structural_errors_total",
			Help: "Raw records rejected for missing required fields.",
		}),
		DocsIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mathfuse_docs_indexed_total",
			Help: "Documents written to an index, by index kind.",
		}, []string{"kind"}),
		EngineQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mathfuse_engine_queries_total",
			Help: "Engine calls by engine and status (ok, error).",
		}, []string{"engine", "status"}),
		EngineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mathfuse_engine_latency_seconds",
			Help:    "Engine call latency in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"engine"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mathfuse_cache_lookups_total",
			Help: "Ranked-list cache lookups by backend and result (hit, miss).",
		}, []string{"backend", "result"}),
		ExperimentsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mathfuse_experiments_run_total",
			Help: "Experiments evaluated.",
		}),
		AuthRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mathfuse_auth_rejections_total",
			Help: "Requests rejected by the serve authentication, by scheme.",
		}, []string{"scheme"}),
	}

	m.registry.MustRegister(
		m.PostsNormalized,
		m.FormulasExtracted,
		m.StructuralErrors,
		m.DocsIndexed,
		m.EngineQueries,
		m.EngineLatency,
		m.CacheLookups,
		m.ExperimentsRun,
		m.AuthRejections,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PostNormalized records one normalized post carrying the given number of formulas.
func (m *Metrics) PostNormalized(formulas int) {
	if m == nil {
		return
	}
	m.PostsNormalized.Inc()
	m.FormulasExtracted.Add(float64(formulas))
}

// StructuralError records a rejected raw record.
func (m *Metrics) StructuralError() {
	if m == nil {
		return
	}
	m.StructuralErrors.Inc()
}

// Indexed records n documents written to an index of the given kind.
func (m *Metrics) Indexed(kind string, n int) {
	if m == nil {
		return
	}
	m.DocsIndexed.WithLabelValues(kind).Add(float64(n))
}

// EngineCall records one engine call.
func (m *Metrics) EngineCall(engine string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EngineQueries.WithLabelValues(engine, status).Inc()
	m.EngineLatency.WithLabelValues(engine).Observe(elapsed.Seconds())
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(backend string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(backend, result).Inc()
}

// ExperimentDone records one evaluated experiment.
func (m *Metrics) ExperimentDone() {
	if m == nil {
		return
	}
	m.ExperimentsRun.Inc()
}

// AuthRejected records a request rejected by the given auth scheme.
func (m *Metrics) AuthRejected(scheme string) {
	if m == nil {
		return
	}
	m.AuthRejections.WithLabelValues(scheme).Inc()
}
