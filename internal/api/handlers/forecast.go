package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

// Forecaster produces production forecasts per horizon.
type Forecaster interface {
	Forecast(ctx context.Context, systemID string, horizon models.ForecastHorizon) (*models.ForecastResult, error)
}

// ForecastHandler serves GET /api/v1/systems/:systemId/forecast.
type ForecastHandler struct {
	forecasts Forecaster
}

// NewForecastHandler creates the forecast endpoint handler.
func NewForecastHandler(forecasts Forecaster) *ForecastHandler {
	return &ForecastHandler{forecasts: forecasts}
}

// Forecast returns the forecast for the requested horizon. Missing training
// data comes back as 422, not a fabricated forecast.
func (h *ForecastHandler) Forecast(c *gin.Context) {
	horizon := models.ForecastHorizon(c.DefaultQuery("horizon", string(models.HorizonDay)))
	if !horizon.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "horizon must be one of hour, day, week, month", Code: "bad_request"})
		return
	}

	result, err := h.forecasts.Forecast(c.Request.Context(), c.Param("systemId"), horizon)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
