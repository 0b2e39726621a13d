package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// Health states, worst last
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const readinessTimeout = 5 * time.Second

// HealthStatus is the body of /health and /health/ready
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is the result of probing one dependency
type DependencyStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// probe checks one dependency. A failing optional probe only degrades the
// overall status.
type probe struct {
	name     string
	optional bool
	check    func(ctx context.Context) (status, message string)
}

// HealthChecker reports the account store and the rate limit Redis
type HealthChecker struct {
	version string
	probes  []probe
}

// NewHealthChecker creates a health checker. Either dependency may be nil and
// is then left out of the report.
func NewHealthChecker(db *sql.DB, redisClient redis.UniversalClient, version string) *HealthChecker {
	h := &HealthChecker{version: version}
	if db != nil {
		h.probes = append(h.probes, probe{name: "database", check: databaseProbe(db)})
	}
	if redisClient != nil {
		// rate limiting falls back to process memory without it
		h.probes = append(h.probes, probe{name: "redis", optional: true, check: redisProbe(redisClient)})
	}
	return h
}

// Check probes every dependency in turn
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	report := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(h.probes)),
	}

	for _, p := range h.probes {
		start := time.Now()
		status, message := p.check(ctx)
		report.Dependencies[p.name] = DependencyStatus{
			Status:    status,
			Message:   message,
			LatencyMS: time.Since(start).Milliseconds(),
			Timestamp: start,
		}

		if status == StatusUnhealthy && p.optional {
			status = StatusDegraded
		}
		report.Status = worse(report.Status, status)
	}

	return report
}

// Liveness always answers 200 while the process serves HTTP
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   h.version,
	})
}

// Readiness answers 503 only when a required dependency is down
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	report := h.Check(ctx)
	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, report)
}

// RegisterHealthRoutes registers /health, /health/live and /health/ready
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}

func databaseProbe(db *sql.DB) func(ctx context.Context) (string, string) {
	return func(ctx context.Context) (string, string) {
		if err := db.PingContext(ctx); err != nil {
			return StatusUnhealthy, err.Error()
		}
		stats := db.Stats()
		if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
			return StatusDegraded, "connection pool exhausted"
		}
		return StatusHealthy, ""
	}
}

func redisProbe(client redis.UniversalClient) func(ctx context.Context) (string, string) {
	return func(ctx context.Context) (string, string) {
		if err := client.Ping(ctx).Err(); err != nil {
			return StatusUnhealthy, err.Error()
		}
		return StatusHealthy, ""
	}
}

func worse(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func writeHealth(w http.ResponseWriter, code int, body HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
