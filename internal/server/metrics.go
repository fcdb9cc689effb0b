package server

import (
	"net/http"
	"strconv"
	"time"

	"curve-analyzer/curvelog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry, so several
// servers can coexist in one process (tests).
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	records       prometheus.Counter
	diagnostics   *prometheus.CounterVec
	parseDuration prometheus.Histogram
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curvelog_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curvelog_records_parsed_total",
			Help: "Records parsed from uploaded logs.",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curvelog_diagnostics_total",
			Help: "Diagnostics raised while parsing and enriching logs.",
		}, []string{"kind"}),
		parseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "curvelog_parse_duration_seconds",
			Help:    "Time spent parsing one uploaded log.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
	m.registry.MustRegister(m.requests, m.records, m.diagnostics, m.parseDuration)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeParse(elapsed time.Duration, parsed *curvelog.ParseResult) {
	m.parseDuration.Observe(elapsed.Seconds())
	m.records.Add(float64(len(parsed.Records)))
	m.observeDiagnostics(parsed.Diagnostics)
}

func (m *Metrics) observeDiagnostics(diags []curvelog.Diagnostic) {
	for kind, n := range curvelog.CountByKind(diags) {
		m.diagnostics.WithLabelValues(string(kind)).Add(float64(n))
	}
}

// instrument counts each request by its chi route pattern.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
