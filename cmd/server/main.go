package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/heliowatch/heliowatch-go/internal/api"
	"github.com/heliowatch/heliowatch-go/internal/cache"
	"github.com/heliowatch/heliowatch-go/internal/config"
	"github.com/heliowatch/heliowatch-go/internal/database"
	"github.com/heliowatch/heliowatch-go/internal/logging"
	"github.com/heliowatch/heliowatch-go/internal/services"
	"github.com/heliowatch/heliowatch-go/internal/telemetry"
	"github.com/heliowatch/heliowatch-go/pkg/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; everything can come from real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := telemetry.InitTracing(telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.Environment,
	}); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown tracing: %v\n", err)
		}
	}()

	appLogger := logging.NewStandardOTLPLogger(logging.OTLPConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
	})

	// Services still take logrus directly.
	logrusLogger := logrus.New()
	logrusLogger.SetLevel(logging.ParseLogrusLevel(cfg.LogLevel))
	logrusLogger.SetFormatter(&logrus.JSONFormatter{})

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redis.Close()

	baselineCache := cache.NewRedisBaselineCache(redis.Client,
		time.Duration(cfg.Baseline.CacheTTLMinutes)*time.Minute)

	weatherService := weather.NewService(&cfg.Weather, logrusLogger)
	defer func() { _ = weatherService.Close() }()

	telemetryRepo := database.NewTelemetryRepository(db.Pool)
	anomalyRepo := database.NewAnomalyRepository(db.Pool)
	configRepo := database.NewConfigRepository(db.Pool)

	baselines := services.NewBaselineBuilder(telemetryRepo, baselineCache, &cfg.Baseline, logrusLogger)
	notifier := services.NewLogNotifier(logrusLogger)

	engine, err := services.NewDetectionEngine(
		baselines, telemetryRepo, anomalyRepo, configRepo,
		weatherService, notifier, cfg, logrusLogger,
	)
	if err != nil {
		return fmt.Errorf("create detection engine: %w", err)
	}

	alerts := services.NewAlertManager(anomalyRepo, logrusLogger)
	forecasts := services.NewForecastService(telemetryRepo, baselines, weatherService, &cfg.Forecast, logrusLogger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	api.SetupRoutes(router, &api.Dependencies{
		DB:             db,
		Redis:          redis,
		Engine:         engine,
		Alerts:         alerts,
		Forecasts:      forecasts,
		Telemetry:      telemetryRepo,
		Configs:        configRepo,
		BaselineCache:  baselineCache,
		WeatherService: weatherService,
		ServiceName:    cfg.Telemetry.ServiceName,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.LogStartup(cfg.Telemetry.ServiceName, telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Error("Server stopped unexpectedly")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.LogShutdown(cfg.Telemetry.ServiceName, "signal")

	// Give outstanding requests a deadline for completion.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}
