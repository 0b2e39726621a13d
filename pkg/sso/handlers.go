package sso

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/authgate/pkg/httputil"
	"github.com/platinummonkey/authgate/pkg/middleware"
	"github.com/platinummonkey/authgate/pkg/observability"
	"github.com/sirupsen/logrus"
)

// Provisioner turns a verified identity into a local account and token
type Provisioner interface {
	Provision(ctx context.Context, identity *Identity) (*ProvisionResult, error)
}

// RateLimits caps how often one client may hit each leg of the flow
type RateLimits struct {
	StartLimit     int
	StartWindow    time.Duration
	CallbackLimit  int
	CallbackWindow time.Duration
}

// DefaultRateLimits returns 30 starts per 5 minutes and 60 callbacks per 10 minutes
func DefaultRateLimits() RateLimits {
	return RateLimits{
		StartLimit:     30,
		StartWindow:    5 * time.Minute,
		CallbackLimit:  60,
		CallbackWindow: 10 * time.Minute,
	}
}

// HandlersConfig configures the SSO flow handlers
type HandlersConfig struct {
	// FrontendCallbackURL receives the final redirect with the result fragment
	FrontendCallbackURL string
	StateTTL            time.Duration
	RateLimits          RateLimits
}

// Handlers handles the two legs of the SSO login
type Handlers struct {
	provider    IdentityProviderClient
	states      *StateCodec
	provisioner Provisioner
	limiter     *middleware.RateLimitMiddleware
	config      HandlersConfig
	logger      logrus.FieldLogger
	metrics     *observability.Metrics
}

// NewHandlers creates the SSO handlers. metrics may be nil.
func NewHandlers(
	provider IdentityProviderClient,
	states *StateCodec,
	provisioner Provisioner,
	limiter *middleware.RateLimitMiddleware,
	config HandlersConfig,
	logger logrus.FieldLogger,
	metrics *observability.Metrics,
) *Handlers {
	if config.RateLimits == (RateLimits{}) {
		config.RateLimits = DefaultRateLimits()
	}
	return &Handlers{
		provider:    provider,
		states:      states,
		provisioner: provisioner,
		limiter:     limiter,
		config:      config,
		logger:      logger,
		metrics:     metrics,
	}
}

// RegisterRoutes registers SSO routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	name := h.provider.Name()

	start := h.limiter.Limit(middleware.RateLimitRule{
		Action: middleware.StaticAction(fmt.Sprintf("auth:sso_%s_start", name)),
		Limit:  h.config.RateLimits.StartLimit,
		Window: h.config.RateLimits.StartWindow,
	})(http.HandlerFunc(h.start))

	callback := h.limiter.Limit(middleware.RateLimitRule{
		Action: middleware.StaticAction(fmt.Sprintf("auth:sso_%s_callback", name)),
		Limit:  h.config.RateLimits.CallbackLimit,
		Window: h.config.RateLimits.CallbackWindow,
	})(http.HandlerFunc(h.callback))

	router.Handle(fmt.Sprintf("/sso/%s/start", name), start).Methods(http.MethodGet).Name("sso_start")
	router.Handle(fmt.Sprintf("/sso/%s/callback", name), callback).Methods(http.MethodGet).Name("sso_callback")
}

// start handles GET /sso/{provider}/start
func (h *Handlers) start(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.Mint(h.config.FrontendCallbackURL, h.config.StateTTL)
	if err != nil {
		h.logger.WithError(err).Error("Failed to mint SSO state")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "sso is not configured")
		return
	}

	authURL, err := h.provider.AuthorizeURL(state)
	if err != nil {
		h.logger.WithError(err).WithField("provider", h.provider.Name()).Error("Failed to build authorize URL")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "sso is not configured")
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// callback handles GET /sso/{provider}/callback
func (h *Handlers) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	logger := observability.WithTraceContext(r.Context(), h.logger).WithField("provider", h.provider.Name())

	stateParam := query.Get("state")
	if stateParam == "" {
		h.recordOutcome("invalid_state")
		httputil.WriteBadRequest(w, "missing state")
		return
	}

	payload, err := h.states.Verify(stateParam)
	if err != nil {
		h.recordOutcome("invalid_state")
		logger.WithError(err).Info("Rejected SSO state")
		if errors.Is(err, ErrInvalidCallback) {
			httputil.WriteBadRequest(w, "invalid callback")
			return
		}
		httputil.WriteBadRequest(w, "invalid state")
		return
	}
	callbackURL, _, _ := strings.Cut(payload.CallbackURL, "#")

	if providerError := query.Get("error"); providerError != "" {
		h.recordOutcome("provider_error")
		logger.WithField("error_code", providerError).Info("Provider reported an SSO error")
		redirectWithFragment(w, r, callbackURL, "error="+url.QueryEscape(providerError))
		return
	}

	code := query.Get("code")
	if code == "" {
		h.recordOutcome("missing_code")
		httputil.WriteBadRequest(w, "missing code")
		return
	}

	identity, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.recordOutcome("exchange_failed")
		logger.WithError(err).Warn("SSO code exchange failed")
		redirectWithFragment(w, r, callbackURL, "error=oauth_userinfo_failed")
		return
	}

	result, err := h.provisioner.Provision(r.Context(), identity)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			h.recordOutcome("validation_failed")
			logger.WithField("reason", validationErr.Message).Info("SSO identity rejected")
			reason := strings.ReplaceAll(validationErr.Message, " ", "_")
			redirectWithFragment(w, r, callbackURL, "error="+url.QueryEscape(reason))
			return
		}
		h.recordOutcome("error")
		logger.WithError(err).Error("SSO provisioning failed")
		httputil.WriteInternalError(w)
		return
	}

	h.recordOutcome("success")
	logger.WithField("account_id", result.Account.ID).Info("SSO login succeeded")

	fragment := url.Values{
		"access_token": {result.Token.Value},
		"expires_at":   {result.Token.ExpiresAt.UTC().Format(time.RFC3339)},
	}
	redirectWithFragment(w, r, callbackURL, fragment.Encode())
}

func (h *Handlers) recordOutcome(outcome string) {
	h.metrics.RecordSSOLogin(h.provider.Name(), outcome)
}

func redirectWithFragment(w http.ResponseWriter, r *http.Request, target, fragment string) {
	http.Redirect(w, r, target+"#"+fragment, http.StatusFound)
}
