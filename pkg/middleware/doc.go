// Package middleware provides HTTP middleware for rate limiting and bearer
// token authentication.
//
// # Rate Limiting
//
// RateGate counts hits per (action, client address) in fixed windows. The
// backend is chosen once at startup: Redis when REDIS_URL is set and reachable,
// process memory otherwise. After the first Redis error a FallbackBackend
// stays on process memory for the rest of the process lifetime.
//
//	memory, _ := middleware.NewMemoryBackend(0)
//	backend, redisClient := middleware.NewRateBackend(ctx, cfg.RedisURL, memory, logger, metrics)
//	gate := middleware.NewRateGate(backend, metrics)
//
//	limits := middleware.NewRateLimitMiddleware(gate, logger, cfg.TrustForwardedFor)
//	router.Handle("/sso/google/start", limits.Limit(middleware.RateLimitRule{
//		Action: middleware.StaticAction("auth:sso_google_start"),
//		Limit:  30,
//		Window: 5 * time.Minute,
//	})(handler))
//
// Rejected requests get 429 with Retry-After and a JSON body
// {"error":"rate limit exceeded","retry_after":N}. Every admitted response
// carries X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset.
//
// # Authentication
//
// AuthMiddleware verifies "Authorization: Bearer <token>" with an
// AccessTokenParser and stores the claims in the request context:
//
//	router.Handle("/session", middleware.NewAuthMiddleware(tokens, false).Handler(sessionHandler))
//	claims := middleware.GetAccessClaims(r)
package middleware
