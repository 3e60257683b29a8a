package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's prometheus instruments on a dedicated
// registry so tests can run multiple instances without collisions.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	UpstreamLatency *prometheus.HistogramVec
	InFlight        prometheus.Gauge
	SigningDuration prometheus.Summary
}

// New creates and registers the gateway metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miniogate",
			Name:      "requests_total",
			Help:      "Proxied requests by method and response status.",
		}, []string{"method", "status"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "miniogate",
			Name:      "upstream_duration_seconds",
			Help:      "Upstream request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "miniogate",
			Name:      "in_flight_requests",
			Help:      "Requests currently being proxied.",
		}),
		SigningDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace:  "miniogate",
			Name:       "signing_duration_seconds",
			Help:       "Time spent computing SigV4 signatures.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.UpstreamLatency,
		m.InFlight,
		m.SigningDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
