// Package metrics exposes Prometheus counters for breakpoint synchronization.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path labels distinguish the direct API from the textual command path.
const (
	PathDirect  = "direct"
	PathCommand = "command"
)

// Metrics holds the bridge counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	calls    *prometheus.CounterVec
	failures *prometheus.CounterVec
	hits     prometheus.Counter
	gatherer prometheus.Gatherer
}

// New registers the counters on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m, err := NewWithRegistry(reg, reg)
	if err != nil {
		// a fresh registry cannot hold conflicting collectors
		panic(err)
	}
	return m
}

// NewWithRegistry registers the counters on reg and serves them from gatherer.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "psdebug_backend_calls_total",
			Help: "Breakpoint calls issued to the runtime service.",
		}, []string{"op", "path"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "psdebug_backend_failures_total",
			Help: "Breakpoint calls that failed and were logged.",
		}, []string{"op", "path"}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "psdebug_breakpoint_hits_total",
			Help: "Line crossings republished as hit notifications.",
		}),
		gatherer: gatherer,
	}
	for _, c := range []prometheus.Collector{m.calls, m.failures, m.hits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveCall records one backend call and whether it failed.
func (m *Metrics) ObserveCall(op, path string, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, path).Inc()
	if err != nil {
		m.failures.WithLabelValues(op, path).Inc()
	}
}

// ObserveHit records a published hit notification.
func (m *Metrics) ObserveHit() {
	if m == nil {
		return
	}
	m.hits.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
