package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/astracare/cmd/mainconfig"
	"github.com/wolfman30/astracare/internal/agent"
	"github.com/wolfman30/astracare/internal/api/router"
	"github.com/wolfman30/astracare/internal/app/bootstrap"
	"github.com/wolfman30/astracare/internal/appointments"
	"github.com/wolfman30/astracare/internal/catalog"
	"github.com/wolfman30/astracare/internal/concierge"
	appconfig "github.com/wolfman30/astracare/internal/config"
	"github.com/wolfman30/astracare/internal/events"
	"github.com/wolfman30/astracare/internal/observability/metrics"
	"github.com/wolfman30/astracare/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger, closeLog := logging.NewWithFile(cfg.LogLevel, cfg.LogFile)
	defer func() { _ = closeLog() }()
	logger.Info("starting astracare API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildServer wires every dependency. cleanup releases pools and clients and
// is safe to call when err is nil.
func buildServer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*http.Server, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*http.Server, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	settings, err := bootstrap.LoadSettings(cfg)
	if err != nil {
		return fail(err)
	}

	var objects catalog.ObjectGetter
	if cfg.CatalogS3Bucket != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("load aws config: %w", err))
		}
		objects = mainconfig.NewS3Client(awsCfg, cfg)
	}
	dir, err := bootstrap.LoadCatalog(ctx, cfg, objects, time.Now(), logger)
	if err != nil {
		return fail(err)
	}

	pipeline, err := agent.NewPipeline(dir, agent.WithSettings(settings))
	if err != nil {
		return fail(err)
	}

	checks := map[string]router.HealthCheck{}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	sessions := bootstrap.BuildSessionStore(redisClient, cfg.SessionTTL, logger)

	repo, pool, err := bootstrap.BuildAppointmentRepository(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	if pool != nil {
		closers = append(closers, pool.Close)
		checks["postgres"] = pool.Ping

		relayCtx, stopRelay := context.WithCancel(ctx)
		relay := events.NewRelay(pool, events.LogHandler(logger.With("component", "outbox")), logger)
		go relay.Run(relayCtx)
		closers = append(closers, stopRelay)
	}

	metricsHandler, pipelineMetrics, gatherer := setupMetrics()
	svc := concierge.NewService(concierge.Deps{
		Pipeline:     pipeline,
		Directory:    dir,
		Sessions:     sessions,
		Appointments: appointments.NewService(repo, nil),
		Metrics:      pipelineMetrics,
		Gatherer:     gatherer,
		Logger:       logger,
	})

	handler := router.New(&router.Config{
		Logger:             logger,
		Concierge:          concierge.NewHandler(svc, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
		HealthChecks:       checks,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, cleanup, nil
}

// setupMetrics registers the pipeline collectors on a dedicated registry
// alongside the Go runtime and process collectors.
func setupMetrics() (http.Handler, *metrics.PipelineMetrics, prometheus.Gatherer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewPipelineMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m, reg
}
