package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application and the
// authorization kernel.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	cacheLookups    *prometheus.CounterVec
	providerRetries prometheus.Counter
	denialsTotal    *prometheus.CounterVec
	redactedFields  prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "armature_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "armature_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "armature_principal_cache_lookups_total",
		Help: "Principal cache lookups by outcome.",
	}, []string{"outcome"})
	providerRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "armature_identity_provider_retries_total",
		Help: "Identity provider calls retried after transient failure.",
	})
	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "armature_authz_denials_total",
		Help: "Authorization denials by resource class.",
	}, []string{"resource_class"})
	redacted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "armature_redacted_fields_total",
		Help: "Restricted attributes removed from responses.",
	})
	registry.MustRegister(requests, duration, cacheLookups, providerRetries, denials, redacted)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		cacheLookups:    cacheLookups,
		providerRetries: providerRetries,
		denialsTotal:    denials,
		redactedFields:  redacted,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// CacheLookup records a principal cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// ProviderRetry records a retried identity provider call.
func (m *Metrics) ProviderRetry() {
	if m == nil {
		return
	}
	m.providerRetries.Inc()
}

// Denial records an authorization denial for a resource class.
func (m *Metrics) Denial(resourceClass string) {
	if m == nil {
		return
	}
	m.denialsTotal.WithLabelValues(resourceClass).Inc()
}

// RedactedFields adds to the count of removed restricted attributes.
func (m *Metrics) RedactedFields(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.redactedFields.Add(float64(n))
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
