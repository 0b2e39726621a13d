// Package httputil holds the small set of HTTP helpers shared by the gateway's
// handlers and middleware.
//
// # Responses
//
// Every error body has the same shape:
//
//	{"error": "Invalid state"}
//
// Handlers write them with the helpers:
//
//	httputil.WriteBadRequest(w, "Invalid state")
//	httputil.WriteUnauthorized(w, "missing bearer token")
//	httputil.WriteInternalError(w)
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//	)(router)
//
// RequestIDMiddleware stores the ID with contextkeys.WithRequestID so the
// logging middleware and handlers can read it back.
package httputil
