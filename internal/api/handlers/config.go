package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heliowatch/heliowatch-go/internal/database"
	"github.com/heliowatch/heliowatch-go/internal/models"
)

// ConfigStore reads and writes per-system detection configuration.
type ConfigStore interface {
	Get(ctx context.Context, systemID string) (*models.DetectionConfig, error)
	Upsert(ctx context.Context, cfg *models.DetectionConfig) error
}

// Defaulter supplies the shipped configuration for unconfigured systems.
type Defaulter interface {
	DefaultConfig(systemID string) *models.DetectionConfig
}

// ConfigHandler serves the per-system detection-config endpoints.
type ConfigHandler struct {
	configs  ConfigStore
	defaults Defaulter
}

// NewConfigHandler creates the detection-config endpoints handler.
func NewConfigHandler(configs ConfigStore, defaults Defaulter) *ConfigHandler {
	return &ConfigHandler{configs: configs, defaults: defaults}
}

// Get handles GET /api/v1/systems/:systemId/detection-config. Systems that
// were never configured get the shipped defaults.
func (h *ConfigHandler) Get(c *gin.Context) {
	systemID := c.Param("systemId")

	cfg, err := h.configs.Get(c.Request.Context(), systemID)
	if err != nil {
		if errors.Is(err, database.ErrConfigNotFound) {
			c.JSON(http.StatusOK, h.defaults.DefaultConfig(systemID))
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// Upsert handles PUT /api/v1/systems/:systemId/detection-config.
func (h *ConfigHandler) Upsert(c *gin.Context) {
	var cfg models.DetectionConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "bad_request"})
		return
	}
	cfg.SystemID = c.Param("systemId")
	cfg.UpdatedAt = time.Now().UTC()

	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	if err := h.configs.Upsert(c.Request.Context(), &cfg); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}
