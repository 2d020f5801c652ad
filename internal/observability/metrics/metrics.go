package metrics

import "github.com/prometheus/client_golang/prometheus"

// BackendLatencyMetric is the fully qualified histogram name summarised by Snapshot.
const BackendLatencyMetric = "wellness_backend_request_latency_seconds"

// BackendMetrics exposes counters/histograms for calls to the practice backend.
type BackendMetrics struct {
	callsTotal   *prometheus.CounterVec
	retriesTotal *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

func NewBackendMetrics(reg prometheus.Registerer) *BackendMetrics {
	m := &BackendMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Logical backend calls by operation and final outcome",
		}, []string{"operation", "outcome"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "backend",
			Name:      "retries_total",
			Help:      "Backend attempts that were retried after a transient failure",
		}, []string{"operation"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wellness",
			Subsystem: "backend",
			Name:      "request_latency_seconds",
			Help:      "Latency of logical backend calls including retries",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.retriesTotal, m.latency)
	return m
}

func (m *BackendMetrics) ObserveCall(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation, outcome).Observe(seconds)
}

func (m *BackendMetrics) ObserveRetry(operation string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(operation).Inc()
}

// HTTPMetrics instruments the dashboard's own HTTP surface.
type HTTPMetrics struct {
	requestsTotal *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Dashboard HTTP requests by route and status class",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wellness",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Dashboard HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.duration)
	return m
}

func (m *HTTPMetrics) ObserveRequest(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, status).Inc()
	m.duration.WithLabelValues(route, method).Observe(seconds)
}
