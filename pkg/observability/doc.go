// Package observability provides structured logging, Prometheus metrics,
// health checks, OpenTelemetry initialization, and graceful shutdown for
// the Inkwell auth service.
//
// # Logging
//
// Logger wraps log/slog with a JSON handler:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("login succeeded")
//
// # Metrics
//
// NewMetrics registers HTTP and authentication metrics on a private
// registry served at /metrics on the health port. Authentication counters
// are labeled by outcome, never by user.
//
// # Health
//
// HealthChecker serves /healthz (liveness) and /readyz (readiness over
// postgres and redis). A dead cache degrades readiness; a dead database
// fails it.
package observability
