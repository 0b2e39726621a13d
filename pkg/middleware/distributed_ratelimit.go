package middleware

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/authgate/pkg/observability"
	"github.com/sirupsen/logrus"
)

// hitScript increments the counter and reads its remaining TTL in one step.
// A key without a TTL (fresh, or its expiry raced the INCR) is re-armed to the
// window. Running as a script keeps two colliding hits from both re-arming.
var hitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisBackend counts hits in Redis so limits are shared across instances
type RedisBackend struct {
	client redis.UniversalClient
}

// NewRedisBackend creates a Redis-backed backend
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

// Hit implements RateBackend
func (b *RedisBackend) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	res, err := hitScript.Run(ctx, b.client, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis error: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit script reply %v", res)
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected rate limit count %v", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected rate limit ttl %v", values[1])
	}

	return count, time.Duration(ttlMs) * time.Millisecond, nil
}

// FallbackBackend prefers a shared backend and permanently switches to a
// local one after the first shared-backend failure. The failing hit is
// answered by the local backend, so callers never see the outage.
type FallbackBackend struct {
	primary  RateBackend
	fallback RateBackend
	degraded atomic.Bool
	logger   logrus.FieldLogger
	metrics  *observability.Metrics
}

// NewFallbackBackend creates a backend that degrades from primary to fallback
func NewFallbackBackend(primary, fallback RateBackend, logger logrus.FieldLogger, metrics *observability.Metrics) *FallbackBackend {
	return &FallbackBackend{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		metrics:  metrics,
	}
}

// Degraded reports whether the primary backend has been abandoned
func (b *FallbackBackend) Degraded() bool {
	return b.degraded.Load()
}

// Hit implements RateBackend
func (b *FallbackBackend) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if b.degraded.Load() {
		return b.fallback.Hit(ctx, key, window)
	}

	count, resetIn, err := b.primary.Hit(ctx, key, window)
	if err == nil {
		return count, resetIn, nil
	}

	b.metrics.RecordRateLimitBackendError()
	// A cancelled request says nothing about the backend's health
	if ctx.Err() == nil && b.degraded.CompareAndSwap(false, true) {
		b.metrics.RecordRateLimitDegraded()
		b.logger.WithError(err).Warn("Distributed rate limit backend failed, using in-process limits from now on")
	}

	return b.fallback.Hit(ctx, key, window)
}

// NewRedisClient parses a redis:// URL and verifies the server answers
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// NewRateBackend picks the rate limit backend for this process.
// An empty URL, an unparsable URL or an unreachable server all yield the
// in-process backend; the returned client is nil in that case.
func NewRateBackend(ctx context.Context, redisURL string, memory *MemoryBackend, logger logrus.FieldLogger, metrics *observability.Metrics) (RateBackend, *redis.Client) {
	if redisURL == "" {
		logger.Info("No REDIS_URL configured, using in-process rate limits")
		return memory, nil
	}

	client, err := NewRedisClient(ctx, redisURL)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, using in-process rate limits")
		return memory, nil
	}

	logger.Info("Using Redis for rate limits")
	return NewFallbackBackend(NewRedisBackend(client), memory, logger, metrics), client
}
