// Package metrics exposes Prometheus instrumentation for the analysis
// pipeline and the HTTP surface.
package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/polyseek/internal/analysis"
	"github.com/alanyoungcy/polyseek/internal/domain"
)

const namespace = "polyseek"

// Collector owns a private registry so several instances can coexist in
// tests. It implements analysis.Recorder and service.Observer.
type Collector struct {
	registry *prometheus.Registry

	analyses           *prometheus.CounterVec
	extractionOutcomes *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	completionErrors   *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	wsConnections      prometheus.Gauge
}

// New creates a Collector with Go runtime and process collectors attached.
func New(version string) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.analyses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyses_total",
		Help:      "Completed analyses by depth and verdict.",
	}, []string{"depth", "verdict"})

	c.extractionOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extraction_outcomes_total",
		Help:      "Response extraction outcomes by pipeline stage.",
	}, []string{"stage", "outcome"})

	c.completionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "completion_duration_seconds",
		Help:      "Latency of text-generation calls by stage.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"stage"})

	c.completionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "completion_errors_total",
		Help:      "Failed text-generation calls by cause.",
	}, []string{"cause"})

	c.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	c.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	c.wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Open WebSocket connections.",
	})

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"version"})
	info.WithLabelValues(version).Set(1)

	c.registry.MustRegister(
		c.analyses, c.extractionOutcomes, c.completionDuration, c.completionErrors,
		c.httpRequests, c.httpDuration, c.wsConnections, info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveCompletion records the latency of one completion call and, on
// failure, its cause.
func (c *Collector) ObserveCompletion(stage string, d time.Duration, err error) {
	c.completionDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err == nil {
		return
	}
	cause := domain.CauseUnknown
	var ce *domain.CompletionError
	if errors.As(err, &ce) {
		cause = ce.Cause
	}
	c.completionErrors.WithLabelValues(string(cause)).Inc()
}

// ObserveExtraction counts how a stage's document was obtained.
func (c *Collector) ObserveExtraction(stage string, kind analysis.OutcomeKind) {
	c.extractionOutcomes.WithLabelValues(stage, kind.String()).Inc()
}

// ObserveAnalysis counts a finished analysis.
func (c *Collector) ObserveAnalysis(depth domain.Depth, verdict domain.Verdict) {
	c.analyses.WithLabelValues(string(depth), string(verdict)).Inc()
}

// WSConnected adjusts the open WebSocket gauge by delta.
func (c *Collector) WSConnected(delta int) {
	c.wsConnections.Add(float64(delta))
}

// Middleware records request count and latency. The route label is the
// ServeMux pattern that matched, so path parameters do not explode
// cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: response writer does not implement http.Hijacker")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
