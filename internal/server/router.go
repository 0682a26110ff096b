// Package server builds the HTTP router and runs the server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	adminhandler "sessionkeeper/backend/internal/admin/handler"
	healthhandler "sessionkeeper/backend/internal/health/handler"
	identityhandler "sessionkeeper/backend/internal/identity/handler"
	"sessionkeeper/backend/internal/security"
	"sessionkeeper/backend/internal/server/middleware"
	sessionhandler "sessionkeeper/backend/internal/session/handler"
	userhandler "sessionkeeper/backend/internal/user/handler"
)

// Deps holds the services the router mounts.
type Deps struct {
	// Auth serves the public /auth endpoints. Required.
	Auth identityhandler.AuthService
	// Sessions serves /auth/sessions and the admin session routes behind access token auth. Required.
	Sessions SessionService
	// Users serves /users/me. If nil, the route is not mounted.
	Users userhandler.UserGetter
	// AuditLogs backs the admin audit route. If nil, the route is not mounted.
	AuditLogs adminhandler.AuditLister
	// Codec verifies access tokens for authenticated routes. Required.
	Codec *security.TokenCodec
	// Log receives one line per request.
	Log zerolog.Logger
	// Gatherer is exposed on /metrics. If nil, /metrics is not mounted.
	Gatherer prometheus.Gatherer
	// HealthPinger is checked by /readyz (e.g. *sql.DB). If nil, the database check is skipped.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is checked by /readyz (e.g. the OPA evaluator). If nil, the policy check is skipped.
	HealthPolicyChecker healthhandler.PolicyChecker
	// AllowedOrigins is the CORS allow-list; empty allows any origin.
	AllowedOrigins []string
	// LoginRateLimit is login attempts per client IP per minute; 0 disables.
	LoginRateLimit int
	// ServiceName names the otelhttp spans. Empty disables HTTP tracing.
	ServiceName string
}

// SessionService is what the session and admin handlers need from the session manager.
type SessionService interface {
	sessionhandler.SessionService
	adminhandler.SessionAdmin
}

// NewRouter returns the HTTP handler for all endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.ClientIP)
	r.Use(middleware.RequestLogger(deps.Log))
	r.Use(chimw.Recoverer)

	allowed := deps.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))

	health := healthhandler.NewHandler(deps.HealthPinger, deps.HealthPolicyChecker)
	r.Get("/healthz", health.Live)
	r.Get("/readyz", health.Ready)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	var loginLimit func(http.Handler) http.Handler
	if deps.LoginRateLimit > 0 {
		loginLimit = httprate.LimitByIP(deps.LoginRateLimit, time.Minute)
	}
	identityhandler.NewHandler(deps.Auth, deps.Log).Routes(r, loginLimit)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.Codec))
		sessionhandler.NewHandler(deps.Sessions, deps.Log).Routes(r)
		adminhandler.NewHandler(deps.Sessions, deps.AuditLogs, deps.Log).Routes(r)
		if deps.Users != nil {
			userhandler.NewHandler(deps.Users, deps.Log).Routes(r)
		}
	})

	if deps.ServiceName == "" {
		return r
	}
	return otelhttp.NewHandler(r, deps.ServiceName)
}
