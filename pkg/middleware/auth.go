package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/authgate/pkg/auth"
	"github.com/platinummonkey/authgate/pkg/contextkeys"
	"github.com/platinummonkey/authgate/pkg/httputil"
)

// AccessTokenParser validates bearer tokens
type AccessTokenParser interface {
	ParseAccessToken(token string) (*auth.AccessClaims, error)
}

// AuthMiddleware provides bearer token authentication
type AuthMiddleware struct {
	parser   AccessTokenParser
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(parser AccessTokenParser, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		parser:   parser,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := m.parser.ParseAccessToken(token)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), claims)
		ctx = contextkeys.WithUserID(ctx, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAccessClaims extracts the verified claims from the request, if any
func GetAccessClaims(r *http.Request) *auth.AccessClaims {
	claims, ok := r.Context().Value(contextkeys.AuthKey).(*auth.AccessClaims)
	if !ok {
		return nil
	}
	return claims
}
