package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sweep results recorded on cms_publish_sweeps_total
const (
	SweepPublished = "published"
	SweepEmpty     = "empty"
	SweepError     = "error"
)

// Metrics holds the service's prometheus collectors on a private registry.
// All methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	sweeps            *prometheus.CounterVec
	articlesPublished prometheus.Counter
	sweepDuration     prometheus.Histogram
	inferences        *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New registers all collectors, plus the Go runtime and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_publish_sweeps_total",
			Help: "Publish sweeps run, by result.",
		}, []string{"result"}),
		articlesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cms_articles_published_total",
			Help: "Scheduled articles moved to PUBLISHED by the sweep.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cms_publish_sweep_duration_seconds",
			Help:    "Publish sweep duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		inferences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_taxonomy_inferences_total",
			Help: "Label lists filled by taxonomy inference, by kind.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_http_requests_total",
			Help: "HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cms_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sweeps,
		m.articlesPublished,
		m.sweepDuration,
		m.inferences,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordSweep records one publish sweep
func (m *Metrics) RecordSweep(published int, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	switch {
	case err != nil:
		m.sweeps.WithLabelValues(SweepError).Inc()
	case published == 0:
		m.sweeps.WithLabelValues(SweepEmpty).Inc()
	default:
		m.sweeps.WithLabelValues(SweepPublished).Inc()
		m.articlesPublished.Add(float64(published))
	}
}

// RecordInference counts an inferred category or tag list
func (m *Metrics) RecordInference(kind string) {
	if m == nil {
		return
	}
	m.inferences.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest records a finished request. route is the matched gin
// route pattern, not the raw path.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
