package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Rate limit metrics
	RateLimitDecisionsTotal *prometheus.CounterVec
	RateLimitBackendErrors  prometheus.Counter
	RateLimitDegradedTotal  prometheus.Counter

	// SSO metrics
	SSOLoginsTotal          *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RateLimitDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_rate_limit_decisions_total",
				Help: "Rate limit decisions by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		RateLimitBackendErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authgate_rate_limit_backend_errors_total",
				Help: "Rate limit backend errors that were answered by the fallback",
			},
		),
		RateLimitDegradedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authgate_rate_limit_degraded_total",
				Help: "Times the distributed rate limit backend was abandoned for the in-process one",
			},
		),
		SSOLoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_sso_logins_total",
				Help: "SSO callback outcomes by provider",
			},
			[]string{"provider", "outcome"},
		),
		ProviderRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authgate_provider_request_duration_seconds",
				Help:    "Duration of identity provider code exchanges",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"provider", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RateLimitDecisionsTotal,
		m.RateLimitBackendErrors,
		m.RateLimitDegradedTotal,
		m.SSOLoginsTotal,
		m.ProviderRequestDuration,
	)

	return m
}

// RecordRateLimit counts one admit decision
func (m *Metrics) RecordRateLimit(action string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	m.RateLimitDecisionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordRateLimitBackendError counts a distributed backend failure
func (m *Metrics) RecordRateLimitBackendError() {
	if m == nil {
		return
	}
	m.RateLimitBackendErrors.Inc()
}

// RecordRateLimitDegraded counts a permanent switch to the in-process backend
func (m *Metrics) RecordRateLimitDegraded() {
	if m == nil {
		return
	}
	m.RateLimitDegradedTotal.Inc()
}

// RecordSSOLogin counts one callback outcome
func (m *Metrics) RecordSSOLogin(provider, outcome string) {
	if m == nil {
		return
	}
	m.SSOLoginsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveProviderRequest records how long a code exchange took
func (m *Metrics) ObserveProviderRequest(provider string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ProviderRequestDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RouteNamer maps a request to a low-cardinality route label
type RouteNamer func(r *http.Request) string

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics, routeName RouteNamer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if routeName != nil {
				route = routeName(r)
			}
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
