package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/heliowatch/heliowatch-go/internal/api/handlers"
	"github.com/heliowatch/heliowatch-go/internal/cache"
	"github.com/heliowatch/heliowatch-go/internal/database"
	"github.com/heliowatch/heliowatch-go/internal/middleware"
	"github.com/heliowatch/heliowatch-go/internal/services"
	"github.com/heliowatch/heliowatch-go/pkg/weather"
)

// Dependencies carries everything the route handlers need.
type Dependencies struct {
	DB             *database.PostgresDB
	Redis          *database.RedisClient
	Engine         *services.DetectionEngine
	Alerts         *services.AlertManager
	Forecasts      *services.ForecastService
	Telemetry      *database.TelemetryRepository
	Configs        *database.ConfigRepository
	BaselineCache  *cache.RedisBaselineCache
	WeatherService *weather.Service
	ServiceName    string
}

// SetupRoutes registers the HTTP surface on the router.
func SetupRoutes(router *gin.Engine, deps *Dependencies) {
	router.Use(otelgin.Middleware(deps.ServiceName))
	router.Use(middleware.RequestID())

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis, deps.WeatherService)
	router.GET("/health", healthHandler.HealthCheck)

	detectionHandler := handlers.NewDetectionHandler(deps.Engine, deps.Telemetry)
	var cacheStats handlers.CacheStatsProvider
	if deps.BaselineCache != nil {
		cacheStats = deps.BaselineCache
	}
	anomalyHandler := handlers.NewAnomalyHandler(deps.Alerts, cacheStats)
	forecastHandler := handlers.NewForecastHandler(deps.Forecasts)
	configHandler := handlers.NewConfigHandler(deps.Configs, deps.Engine)

	v1 := router.Group("/api/v1")
	{
		telemetry := v1.Group("/telemetry")
		{
			telemetry.POST("/:systemId/detect", detectionHandler.Detect)
		}

		systems := v1.Group("/systems")
		{
			systems.GET("/:systemId/anomalies", anomalyHandler.List)
			systems.GET("/:systemId/forecast", forecastHandler.Forecast)
			systems.PUT("/:systemId/detection-config", configHandler.Upsert)
			systems.GET("/:systemId/detection-config", configHandler.Get)
		}

		anomalies := v1.Group("/anomalies")
		{
			anomalies.GET("/:id", anomalyHandler.Get)
			anomalies.POST("/:id/acknowledge", anomalyHandler.Acknowledge)
			anomalies.POST("/:id/status", anomalyHandler.UpdateStatus)
		}

		v1.GET("/statistics", anomalyHandler.Statistics)
	}
}
