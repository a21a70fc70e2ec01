package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/heliowatch/heliowatch-go/internal/database"
	"github.com/heliowatch/heliowatch-go/pkg/weather"
)

var startTime = time.Now()

// HealthHandler reports per-dependency health.
type HealthHandler struct {
	db      *database.PostgresDB
	redis   *database.RedisClient
	weather *weather.Service
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Memory    *MemoryStats      `json:"memory,omitempty"`
}

// MemoryStats reports host memory pressure alongside dependency health.
type MemoryStats struct {
	UsedPercent float64 `json:"used_percent"`
	TotalMB     uint64  `json:"total_mb"`
	AvailableMB uint64  `json:"available_mb"`
}

// NewHealthHandler creates the health endpoint handler.
func NewHealthHandler(db *database.PostgresDB, redis *database.RedisClient, weatherService *weather.Service) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		weather: weatherService,
	}
}

// HealthCheck handles GET /health. A degraded weather feed does not fail the
// service: detection keeps running without the comparative method.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	services := make(map[string]string)

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			services["database"] = "unhealthy: " + err.Error()
		} else {
			services["database"] = "healthy"
		}
	} else {
		services["database"] = "unhealthy: not configured"
	}

	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "unhealthy: not configured"
	}

	if h.weather != nil {
		if err := h.weather.HealthCheck(ctx); err != nil {
			services["weather"] = "degraded: " + err.Error()
		} else {
			services["weather"] = "healthy"
		}
	} else {
		services["weather"] = "degraded: not configured"
	}

	overallStatus := "healthy"
	if services["database"] != "healthy" || services["redis"] != "healthy" {
		overallStatus = "unhealthy"
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Services:  services,
		Version:   os.Getenv("APP_VERSION"),
		Uptime:    time.Since(startTime).String(),
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		response.Memory = &MemoryStats{
			UsedPercent: memInfo.UsedPercent,
			TotalMB:     memInfo.Total / 1024 / 1024,
			AvailableMB: memInfo.Available / 1024 / 1024,
		}
	}

	status := http.StatusOK
	if overallStatus != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}
