package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpInProgress    prometheus.Gauge
	aiRequests        *prometheus.CounterVec
	aiDuration        *prometheus.HistogramVec
	aiTokens          *prometheus.CounterVec
	authRequests      *prometheus.CounterVec
	rateLimitRejected *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		httpInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_progress",
			Help: "HTTP requests currently being served",
		}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total upstream AI requests",
		}, []string{"model", "status"}),
		aiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Upstream AI request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"model"}),
		aiTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_token_usage_total",
			Help: "Tokens consumed by upstream AI requests",
		}, []string{"model", "type"}),
		authRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Authentication operations",
		}, []string{"operation", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"endpoint"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.httpInProgress,
		m.aiRequests,
		m.aiDuration,
		m.aiTokens,
		m.authRequests,
		m.rateLimitRejected,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.httpInProgress.Inc()
}

func (m *Metrics) RequestFinished(method, endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpInProgress.Dec()
	m.httpRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordAIRequest(model, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.aiRequests.WithLabelValues(model, status).Inc()
	m.aiDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordTokenUsage(model string, input, output int) {
	if m == nil {
		return
	}
	if input > 0 {
		m.aiTokens.WithLabelValues(model, "input").Add(float64(input))
	}
	if output > 0 {
		m.aiTokens.WithLabelValues(model, "output").Add(float64(output))
	}
}

func (m *Metrics) RecordAuth(operation string, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.authRequests.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) RecordRateLimitRejection(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitRejected.WithLabelValues(endpoint).Inc()
}
