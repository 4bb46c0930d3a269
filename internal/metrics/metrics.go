// Package metrics exposes Prometheus collectors for the ingest service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream request outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeStatus    = "status_error"
	OutcomeDecode    = "decode_error"
)

var (
	upstreamRequestsTotal          *prometheus.CounterVec
	upstreamRequestDurationSeconds *prometheus.HistogramVec
	pipelinesTotal                 *prometheus.CounterVec
	pipelinesInflight              prometheus.Gauge
	rateLimitDelaysSeconds         *prometheus.HistogramVec
	httpRequestsTotal              *prometheus.CounterVec
	httpRequestDurationSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wbingest_upstream_requests_total",
				Help: "Upstream GET attempts, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		upstreamRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wbingest_upstream_request_duration_seconds",
				Help:    "Latency of upstream GET attempts, labeled by source.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		)

		pipelinesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wbingest_pipelines_total",
				Help: "Completed acquisition pipelines, labeled by where the description came from.",
			},
			[]string{"description_source"},
		)

		pipelinesInflight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "wbingest_pipelines_inflight",
				Help: "Number of acquisition pipelines currently running.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wbingest_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpstream records one upstream attempt.
func ObserveUpstream(source, outcome string, duration time.Duration) {
	Init()
	upstreamRequestsTotal.WithLabelValues(source, outcome).Inc()
	upstreamRequestDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObservePipeline counts a finished pipeline.
func ObservePipeline(descriptionSource string) {
	Init()
	if descriptionSource == "" {
		descriptionSource = "none"
	}
	pipelinesTotal.WithLabelValues(descriptionSource).Inc()
}

// IncInflight increments the in-flight pipelines gauge.
func IncInflight() {
	Init()
	pipelinesInflight.Inc()
}

// DecInflight decrements the in-flight pipelines gauge.
func DecInflight() {
	Init()
	pipelinesInflight.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
