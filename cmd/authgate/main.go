package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/authgate/pkg/config"
	"github.com/platinummonkey/authgate/pkg/middleware"
	"github.com/platinummonkey/authgate/pkg/observability"
	"github.com/platinummonkey/authgate/pkg/storage/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("authgate exited with an error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	logger.WithField("version", version).Info("Starting authgate")

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	telemetry, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	shutdown.RegisterShutdownFunc(telemetry.Shutdown)

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	dbConfig := postgres.DefaultConnectionConfig(cfg.Database.Driver, cfg.Database.URL)
	dbConfig.MaxConns = cfg.Database.MaxConns
	dbConfig.MinConns = cfg.Database.MinConns
	dbConfig.Timeout = cfg.Database.Timeout
	db, err := postgres.Open(ctx, dbConfig)
	if err != nil {
		return err
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error { return db.Close() })

	if err := postgres.Migrate(ctx, db, cfg.Database.Driver); err != nil {
		_ = db.Close()
		return err
	}
	logger.WithField("driver", cfg.Database.Driver).Info("Account store ready")

	memory, err := middleware.NewMemoryBackend(cfg.RateLimit.MemoryCapacity)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create rate limit backend: %w", err)
	}
	memory.StartCleanup(ctx, cfg.RateLimit.CleanupInterval)

	backend, redisClient := middleware.NewRateBackend(ctx, cfg.RateLimit.RedisURL, memory, logger, metrics)
	var healthRedis redis.UniversalClient
	if redisClient != nil {
		healthRedis = redisClient
		shutdown.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
	}

	apiHandler, err := newAPIHandler(apiDeps{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		db:      db,
		backend: backend,
	})
	if err != nil {
		_ = shutdown.Shutdown(context.Background())
		return err
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      traced(apiHandler, cfg.Observability.OTelEnabled),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	adminServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: newAdminHandler(observability.NewHealthChecker(db, healthRedis, version), registry),
	}
	shutdown.RegisterServer(apiServer)
	shutdown.RegisterServer(adminServer)

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{apiServer, adminServer} {
		g.Go(func() error {
			logger.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}
