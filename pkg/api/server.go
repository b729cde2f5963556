package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/inkwell-io/inkwell/pkg/auth"
	"github.com/inkwell-io/inkwell/pkg/federated"
	"github.com/inkwell-io/inkwell/pkg/httputil"
	"github.com/inkwell-io/inkwell/pkg/middleware"
	"github.com/inkwell-io/inkwell/pkg/observability"
	"github.com/inkwell-io/inkwell/pkg/uploads"
)

// Server represents the authentication API server
type Server struct {
	router  *mux.Router
	service *auth.Service
	logger  *observability.Logger
	metrics *observability.Metrics

	// Optional collaborators; routes depending on them are only
	// registered when they are configured.
	google  *federated.GoogleProvider
	images  *uploads.ImageStore
	limiter *middleware.DistributedRateLimiter

	tracingEnabled bool
}

// Option configures optional server collaborators
type Option func(*Server)

// WithGoogleProvider enables the federated sign-in routes
func WithGoogleProvider(provider *federated.GoogleProvider) Option {
	return func(s *Server) { s.google = provider }
}

// WithImageStore enables profile image uploads on signup
func WithImageStore(store *uploads.ImageStore) Option {
	return func(s *Server) { s.images = store }
}

// WithRateLimiter throttles the credential-bearing endpoints per client IP
func WithRateLimiter(limiter *middleware.DistributedRateLimiter) Option {
	return func(s *Server) { s.limiter = limiter }
}

// WithTracing wraps the handler tree in OpenTelemetry instrumentation
func WithTracing() Option {
	return func(s *Server) { s.tracingEnabled = true }
}

// NewServer creates a new API server
func NewServer(service *auth.Service, logger *observability.Logger, metrics *observability.Metrics, opts ...Option) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		service: service,
		logger:  logger,
		metrics: metrics,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	authMW := middleware.NewAuthMiddleware(s.service, false)
	optionalMW := middleware.NewAuthMiddleware(s.service, true)

	// Credential flows
	s.router.Handle("/auth/signup", s.throttled(http.HandlerFunc(s.signup))).Methods("POST")
	s.router.Handle("/auth/login", s.throttled(http.HandlerFunc(s.login))).Methods("POST")
	s.router.HandleFunc("/auth/logout", s.logout).Methods("POST")

	// Password reset
	s.router.Handle("/auth/forgot-password", s.throttled(http.HandlerFunc(s.forgotPassword))).Methods("POST")
	s.router.Handle("/auth/reset-password/{token}", s.throttled(http.HandlerFunc(s.resetPassword))).Methods("POST")

	// Session introspection and account lookup
	s.router.Handle("/auth/status", optionalMW.Handler(http.HandlerFunc(s.status))).Methods("GET")
	s.router.Handle("/auth/users/{userID}", authMW.Handler(http.HandlerFunc(s.getUser))).Methods("GET")

	// Federated sign-in
	if s.google != nil {
		s.router.HandleFunc("/auth/google", s.googleLogin).Methods("GET")
		s.router.HandleFunc("/auth/google/callback", s.googleCallback).Methods("GET")
	}
}

// throttled applies the rate limiter when one is configured
func (s *Server) throttled(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Handler(next)
}

// Handler returns the full middleware-wrapped handler tree
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router

	chain := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(s.logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
	}
	if s.metrics != nil {
		chain = append(chain, func(next http.Handler) http.Handler {
			return s.metrics.HTTPMiddleware("auth", next)
		})
	}
	h = httputil.Chain(chain...)(h)

	if s.tracingEnabled {
		h = otelhttp.NewHandler(h, "inkwell.api")
	}
	return h
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
