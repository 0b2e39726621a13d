package sso

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/authgate/pkg/httputil"
	"github.com/platinummonkey/authgate/pkg/middleware"
)

// SessionInfo describes the access token presented by the caller
type SessionInfo struct {
	AccountID string `json:"account_id"`
	ExpiresAt string `json:"expires_at"`
}

// RegisterSessionRoute registers GET /session, which echoes the verified
// bearer token so the frontend can check it after the login redirect.
func RegisterSessionRoute(router *mux.Router, authn *middleware.AuthMiddleware) {
	router.Handle("/session", authn.Handler(http.HandlerFunc(getSession))).Methods(http.MethodGet).Name("session")
}

func getSession(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetAccessClaims(r)
	if claims == nil || claims.ExpiresAt == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	httputil.WriteSuccess(w, SessionInfo{
		AccountID: claims.Subject,
		ExpiresAt: claims.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
