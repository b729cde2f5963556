package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	LoginsTotal             *prometheus.CounterVec
	SignupsTotal            *prometheus.CounterVec
	TokenVerificationsTotal *prometheus.CounterVec
	FederatedLoginsTotal    *prometheus.CounterVec
	ResetTicketsIssuedTotal prometheus.Counter
	ResetConsumptionsTotal  *prometheus.CounterVec

	// Storage metrics
	StorageErrorsTotal *prometheus.CounterVec
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inkwell_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_logins_total",
				Help: "Password login attempts by outcome",
			},
			[]string{"outcome"},
		),
		SignupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_signups_total",
				Help: "Signup attempts by outcome",
			},
			[]string{"outcome"},
		),
		TokenVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_token_verifications_total",
				Help: "Bearer token verifications by result",
			},
			[]string{"result"},
		),
		FederatedLoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_federated_logins_total",
				Help: "Federated logins by outcome",
			},
			[]string{"outcome"},
		),
		ResetTicketsIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inkwell_reset_tickets_issued_total",
				Help: "Password reset tickets issued",
			},
		),
		ResetConsumptionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_reset_consumptions_total",
				Help: "Password reset consumption attempts by outcome",
			},
			[]string{"outcome"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkwell_storage_errors_total",
				Help: "Storage collaborator errors by operation",
			},
			[]string{"operation"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inkwell_cache_hits_total",
				Help: "User cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inkwell_cache_misses_total",
				Help: "User cache misses",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "inkwell_db_connections_active",
				Help: "Active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "inkwell_db_connections_idle",
				Help: "Idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.SignupsTotal,
		m.TokenVerificationsTotal,
		m.FederatedLoginsTotal,
		m.ResetTicketsIssuedTotal,
		m.ResetConsumptionsTotal,
		m.StorageErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns the /metrics endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware instruments an HTTP handler with request count and
// duration metrics. The path label uses the route template, not the raw
// URL, to keep cardinality bounded.
func (m *Metrics) HTTPMiddleware(routeName string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, routeName, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, routeName).Observe(time.Since(start).Seconds())
	})
}
