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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/irfndi/celebrum-analytics/internal/api"
	"github.com/irfndi/celebrum-analytics/internal/cache"
	"github.com/irfndi/celebrum-analytics/internal/config"
	"github.com/irfndi/celebrum-analytics/internal/database"
	"github.com/irfndi/celebrum-analytics/internal/logging"
	"github.com/irfndi/celebrum-analytics/internal/middleware"
	"github.com/irfndi/celebrum-analytics/internal/services"
	"github.com/irfndi/celebrum-analytics/internal/source"
	"github.com/irfndi/celebrum-analytics/internal/telemetry"
)

const statsReportInterval = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment and config.yaml still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)

	if err := telemetry.InitTelemetry(telemetry.FromConfig(cfg.Telemetry, cfg.Environment)); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Failed to shutdown telemetry")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, cleanup, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	scheduler := services.NewRefreshScheduler(deps.Analysis, logger)
	go scheduler.WarmCache(ctx)
	if err := scheduler.Register(cfg.Cache.RefreshCron); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := newRouter(cfg, logger, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       config.ParseDurationOr(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout:      config.ParseDurationOr(cfg.Server.WriteTimeout, 30*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.LogStartup(logger, telemetry.ServiceName, telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logging.LogShutdown(logger, telemetry.ServiceName, "signal "+sig.String())
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		config.ParseDurationOr(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

// buildDependencies wires the series source, cache tiers, analysis and
// forecast services. The returned cleanup closes what was opened.
func buildDependencies(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (api.Dependencies, func(), error) {
	cleanup := func() {}

	var redisClient *database.RedisClient
	if cfg.Redis.Enabled {
		rc, err := database.NewRedisConnection(cfg.Redis, logger)
		if err != nil {
			// The second tier is optional; serve from memory only.
			logger.WithError(err).Warn("Redis unavailable, continuing without second tier cache")
		} else {
			redisClient = rc
			cleanup = rc.Close
		}
	}

	opts := cache.Options{TTL: cfg.Cache.CacheTTL(), Logger: logger}
	var cacheAnalytics *services.CacheAnalyticsService
	if redisClient != nil {
		cacheAnalytics = services.NewCacheAnalyticsService(redisClient.Client, logger)
		cacheAnalytics.StartPeriodicReporting(ctx, statsReportInterval)
		opts.SecondTier = cache.NewRedisSeriesStore(redisClient, cfg.Cache.CacheTTL(), logger)
	} else {
		cacheAnalytics = services.NewCacheAnalyticsService(nil, logger)
	}
	opts.Recorder = cacheAnalytics

	src := source.NewFileSource(cfg.Data.Dir, cfg.Data.Assets)
	seriesCache := cache.NewSeriesCache(src, services.LoadAligned(src, cfg.Data.MaxRows), opts)
	analysis := services.NewAnalysisService(cfg, src, seriesCache, logger)

	forecaster, err := services.NewForecaster(cfg.Forecast, logger)
	if err != nil {
		cleanup()
		return api.Dependencies{}, nil, fmt.Errorf("failed to create forecaster: %w", err)
	}

	return api.Dependencies{
		Analysis:       analysis,
		Forecasts:      services.NewForecastService(analysis, forecaster, cfg.Forecast.Horizon, logger),
		CacheAnalytics: cacheAnalytics,
		Redis:          redisClient,
		Version:        telemetry.ServiceVersion,
	}, cleanup, nil
}

// newRouter builds the gin engine with the middleware chain and routes.
func newRouter(cfg *config.Config, logger *logrus.Logger, deps api.Dependencies) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(middleware.TelemetryMiddleware())
	router.Use(middleware.AccessLogger(logger))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	api.SetupRoutes(router, deps)
	return router
}
