package main

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/authgate/pkg/auth"
	"github.com/platinummonkey/authgate/pkg/config"
	"github.com/platinummonkey/authgate/pkg/httputil"
	"github.com/platinummonkey/authgate/pkg/middleware"
	"github.com/platinummonkey/authgate/pkg/observability"
	"github.com/platinummonkey/authgate/pkg/sso"
	"github.com/platinummonkey/authgate/pkg/storage/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIPrefix is where the auth routes are mounted
const APIPrefix = "/api/auth"

// apiDeps are the long-lived components the public router is built from
type apiDeps struct {
	config  *config.Config
	logger  logrus.FieldLogger
	metrics *observability.Metrics
	db      *sql.DB
	backend middleware.RateBackend
}

// newAPIHandler wires the SSO flow and the session route behind the shared
// middleware stack.
func newAPIHandler(deps apiDeps) (http.Handler, error) {
	cfg := deps.config

	states, err := sso.NewStateCodec([]byte(cfg.SSO.StateSecret), cfg.SSO.FrontendBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create state codec: %w", err)
	}

	tokens, err := auth.NewJWTTokenService(auth.JWTConfig{
		Secret: []byte(cfg.JWT.Secret),
		TTL:    cfg.JWT.AccessTTL,
		Issuer: cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	if !cfg.SSO.GoogleConfigured() {
		deps.logger.Warn("Google OAuth credentials are not set, SSO logins will be refused")
	}
	google := sso.NewGoogleClient(sso.GoogleConfig{
		ClientID:     cfg.SSO.GoogleClientID,
		ClientSecret: cfg.SSO.GoogleClientSecret,
		RedirectURL:  cfg.SSO.GoogleRedirectURI,
		Timeout:      cfg.SSO.HTTPTimeout,
	}, deps.metrics)

	provisioner := sso.NewUserProvisioner(postgres.NewStore(deps.db), tokens, deps.logger)
	limiter := middleware.NewRateLimitMiddleware(
		middleware.NewRateGate(deps.backend, deps.metrics),
		deps.logger,
		cfg.RateLimit.TrustForwardedFor,
	)

	handlers := sso.NewHandlers(google, states, provisioner, limiter, sso.HandlersConfig{
		FrontendCallbackURL: cfg.SSO.FrontendCallbackURL(),
		StateTTL:            cfg.SSO.StateTTL,
		RateLimits: sso.RateLimits{
			StartLimit:     cfg.RateLimit.StartLimit,
			StartWindow:    cfg.RateLimit.StartWindow,
			CallbackLimit:  cfg.RateLimit.CallbackLimit,
			CallbackWindow: cfg.RateLimit.CallbackWindow,
		},
	}, deps.logger, deps.metrics)

	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(deps.metrics, routeTemplate)))
	api := router.PathPrefix(APIPrefix).Subrouter()
	handlers.RegisterRoutes(api)
	sso.RegisterSessionRoute(api, middleware.NewAuthMiddleware(tokens, false))

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "not found")
	})

	return httputil.Chain(
		observability.RecoverMiddleware(deps.logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(deps.logger),
	)(router), nil
}

// routeTemplate labels metrics by mux path template. It only sees the
// matched route when run as router middleware.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// newAdminHandler serves health probes and, when enabled, /metrics
func newAdminHandler(checker *observability.HealthChecker, registry *prometheus.Registry) http.Handler {
	admin := http.NewServeMux()
	observability.RegisterHealthRoutes(admin, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(admin, registry)
	}
	return admin
}

// traced wraps the public handler with otelhttp when tracing is on
func traced(handler http.Handler, enabled bool) http.Handler {
	if !enabled {
		return handler
	}
	return otelhttp.NewHandler(handler, "authgate",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
