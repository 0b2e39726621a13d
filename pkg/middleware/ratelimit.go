package middleware

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/platinummonkey/authgate/pkg/httputil"
	"github.com/platinummonkey/authgate/pkg/observability"
	"github.com/sirupsen/logrus"
)

// ErrInvalidRateLimit is returned by Admit for a non-positive limit or window
var ErrInvalidRateLimit = errors.New("rate limit and window must be positive")

// DefaultMemoryCapacity bounds the number of live windows kept in process memory
const DefaultMemoryCapacity = 100_000

// DefaultCleanupInterval is how often expired windows are swept
const DefaultCleanupInterval = time.Minute

// RateKey identifies one limiter bucket
type RateKey struct {
	Action        string
	ClientAddress string
}

// String returns the storage key, shared by every backend
func (k RateKey) String() string {
	return "rl:" + k.Action + ":" + k.ClientAddress
}

// Decision is the outcome of one Admit call
type Decision struct {
	// Count is the hit count within the current window, including this hit
	Count int64
	Limit int
	// RetryAfter is the time until the current window resets
	RetryAfter time.Duration
	// ResetAt is when the current window resets, on the gate's clock
	ResetAt time.Time
	Allowed bool
}

// Remaining returns how many more hits the window accepts
func (d Decision) Remaining() int64 {
	remaining := int64(d.Limit) - d.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds
func (d Decision) RetryAfterSeconds() int64 {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int64((d.RetryAfter + time.Second - 1) / time.Second)
}

// RateBackend counts hits in fixed windows.
// Hit increments the counter for key, starting a fresh window of the given
// length when none is live, and returns the new count and the time left in
// the window.
type RateBackend interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

type fixedWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryBackend keeps windows in a bounded in-process LRU.
// Evicting a live window under memory pressure resets that client's count.
type MemoryBackend struct {
	mu      sync.Mutex
	windows *lru.Cache[string, fixedWindow]
	now     func() time.Time
}

// NewMemoryBackend creates an in-process backend holding at most capacity windows
func NewMemoryBackend(capacity int) (*MemoryBackend, error) {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	windows, err := lru.New[string, fixedWindow](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create window cache: %w", err)
	}
	return &MemoryBackend{
		windows: windows,
		now:     time.Now,
	}, nil
}

// Hit implements RateBackend
func (b *MemoryBackend) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	w, ok := b.windows.Get(key)
	if !ok || !now.Before(w.resetAt) {
		w = fixedWindow{resetAt: now.Add(window)}
	}
	w.count++
	b.windows.Add(key, w)

	return w.count, w.resetAt.Sub(now), nil
}

// Cleanup drops windows that have already reset
func (b *MemoryBackend) Cleanup() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	removed := 0
	for _, key := range b.windows.Keys() {
		if w, ok := b.windows.Peek(key); ok && !now.Before(w.resetAt) {
			b.windows.Remove(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of windows held
func (b *MemoryBackend) Len() int {
	return b.windows.Len()
}

// StartCleanup starts a background goroutine that calls Cleanup every interval.
// A non-positive interval means DefaultCleanupInterval.
func (b *MemoryBackend) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateGate applies fixed-window limits on top of a RateBackend
type RateGate struct {
	backend RateBackend
	metrics *observability.Metrics
	now     func() time.Time
}

// NewRateGate creates a gate. metrics may be nil.
func NewRateGate(backend RateBackend, metrics *observability.Metrics) *RateGate {
	return &RateGate{
		backend: backend,
		metrics: metrics,
		now:     time.Now,
	}
}

// Admit records one hit for key and reports whether it is within limit
func (g *RateGate) Admit(ctx context.Context, key RateKey, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{}, ErrInvalidRateLimit
	}

	count, resetIn, err := g.backend.Hit(ctx, key.String(), window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit hit failed: %w", err)
	}

	if resetIn < 0 {
		resetIn = 0
	}
	if resetIn > window {
		resetIn = window
	}

	d := Decision{
		Count:      count,
		Limit:      limit,
		RetryAfter: resetIn,
		ResetAt:    g.now().Add(resetIn),
		Allowed:    count <= int64(limit),
	}
	g.metrics.RecordRateLimit(key.Action, d.Allowed)
	return d, nil
}

// RateLimitRule describes one limit applied by the middleware
type RateLimitRule struct {
	// Action names the bucket for a request
	Action func(r *http.Request) string
	Limit  int
	Window time.Duration
}

// StaticAction returns an Action that ignores the request
func StaticAction(action string) func(*http.Request) string {
	return func(*http.Request) string { return action }
}

// RateLimitMiddleware provides HTTP rate limiting keyed by client address
type RateLimitMiddleware struct {
	gate              *RateGate
	logger            logrus.FieldLogger
	trustForwardedFor bool
}

// NewRateLimitMiddleware creates a new rate limit middleware.
// trustForwardedFor should only be set behind a proxy that overwrites X-Forwarded-For.
func NewRateLimitMiddleware(gate *RateGate, logger logrus.FieldLogger, trustForwardedFor bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		gate:              gate,
		logger:            logger,
		trustForwardedFor: trustForwardedFor,
	}
}

// Limit wraps an HTTP handler with the given rule. Backend failures let the
// request through.
func (m *RateLimitMiddleware) Limit(rule RateLimitRule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := RateKey{
				Action:        rule.Action(r),
				ClientAddress: ClientAddress(r, m.trustForwardedFor),
			}

			decision, err := m.gate.Admit(r.Context(), key, rule.Limit, rule.Window)
			if err != nil {
				m.logger.WithError(err).WithField("action", key.Action).Error("Rate limit check failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, decision)
			if !decision.Allowed {
				m.logger.WithFields(logrus.Fields{
					"action": key.Action,
					"client": key.ClientAddress,
					"count":  decision.Count,
				}).Warn("Rate limit exceeded")
				rateLimitExceeded(w, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining(), 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func rateLimitExceeded(w http.ResponseWriter, d Decision) {
	retryAfter := d.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"error":       "rate limit exceeded",
		"retry_after": retryAfter,
	})
}

// ClientAddress picks the address a request is limited by: the first
// X-Forwarded-For hop when trusted, then X-Real-IP, then the host part of
// RemoteAddr, then "unknown".
func ClientAddress(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}

	return "unknown"
}
