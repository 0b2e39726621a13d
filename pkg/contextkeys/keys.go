// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here.
//
//	import "github.com/platinummonkey/authgate/pkg/contextkeys"
//	ctx = contextkeys.WithAuth(ctx, claims)
//	claims := ctx.Value(contextkeys.AuthKey).(*auth.AccessClaims)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AccessClaims
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	AuthKey Key = "auth_context"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated account ID string
	// Set by: middleware.AuthMiddleware
	UserIDKey Key = "user_id"
)

// WithAuth adds authentication claims to the context
func WithAuth(ctx context.Context, claims interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, claims)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// RequestID returns the request ID, or "" when none is set
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// UserID returns the authenticated account ID, or "" when none is set
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}
