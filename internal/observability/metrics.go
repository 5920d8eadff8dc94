package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Selection outcome label values.
const (
	ResultSelected     = "selected"
	ResultNoVectors    = "no_vectors"
	ResultNoInspectors = "no_inspectors"
	ResultNoSelection  = "no_selection"
)

// noInspector is the inspector label used when no inspector won.
const noInspector = "none"

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	connectionsTotal  prometheus.Counter
	activeConnections prometheus.Gauge
	selectionsTotal   *prometheus.CounterVec
	inspectorFailures *prometheus.CounterVec
	relayDuration     *prometheus.HistogramVec
	backendErrors     *prometheus.CounterVec
	buildInfo         *prometheus.GaugeVec
	registry          *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "httpvec"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.connectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted client connections",
		},
	)

	m.activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of client connections being handled",
		},
	)

	m.selectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help: "Total number of selection chain " +
				"evaluations by outcome",
		},
		[]string{"result", "inspector"},
	)

	m.inspectorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inspector_failures_total",
			Help: "Total number of inspector invocations " +
				"that failed and were treated as no opinion",
		},
		[]string{"inspector"},
	)

	m.relayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_duration_seconds",
			Help:      "Backend relay duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"scheme"},
	)

	m.backendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Total number of failed backend relays",
		},
		[]string{"vector"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information for the relay",
		},
		[]string{"version"},
	)

	m.registry.MustRegister(
		m.connectionsTotal,
		m.activeConnections,
		m.selectionsTotal,
		m.inspectorFailures,
		m.relayDuration,
		m.backendErrors,
		m.buildInfo,
	)
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
	)

	return m
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.activeConnections.Inc()
}

// ConnectionClosed records a finished connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

// RecordSelection records the outcome of one selection chain evaluation.
// inspector is empty unless result is ResultSelected.
func (m *Metrics) RecordSelection(result, inspector string) {
	if m == nil {
		return
	}
	if inspector == "" {
		inspector = noInspector
	}
	m.selectionsTotal.WithLabelValues(result, inspector).Inc()
}

// RecordInspectorFailure records an inspector invocation failure.
func (m *Metrics) RecordInspectorFailure(inspector string) {
	if m == nil {
		return
	}
	m.inspectorFailures.WithLabelValues(inspector).Inc()
}

// RecordRelay records a completed backend relay.
func (m *Metrics) RecordRelay(scheme string, duration time.Duration) {
	if m == nil {
		return
	}
	m.relayDuration.WithLabelValues(scheme).Observe(duration.Seconds())
}

// RecordBackendError records a failed backend relay. The vector label
// is the vector's URL, which is bounded by the catalog size.
func (m *Metrics) RecordBackendError(vector string) {
	if m == nil {
		return
	}
	m.backendErrors.WithLabelValues(vector).Inc()
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version string) {
	if m == nil {
		return
	}
	m.buildInfo.WithLabelValues(version).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
