// Package observability provides logging, Prometheus metrics, health checks
// and OpenTelemetry setup for authgate.
//
// # Logging
//
// Loggers are plain logrus loggers configured from the service config:
//
//	logger, err := observability.NewLogger("info", "json", os.Stdout)
//	observability.WithTraceContext(ctx, logger).Info("callback handled")
//
// # Prometheus Metrics
//
// Metrics live on a private registry and every recording method accepts a nil
// receiver, so components can be built without metrics in tests:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordRateLimit("auth:sso_google_start", true)
//	observability.RegisterMetricsEndpoint(mux, registry)
//
// # Health Checks
//
// The database and Redis are both optional. A Redis outage only degrades
// readiness because rate limiting falls back to process memory:
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	telemetry, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "authgate",
//	}, logger)
//	defer telemetry.Shutdown(ctx)
package observability
