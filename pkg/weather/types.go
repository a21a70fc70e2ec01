package weather

import (
	"github.com/heliowatch/heliowatch-go/internal/models"
)

// HealthResponse is the weather service health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  int64  `json:"uptime,omitempty"`
}

// CurrentResponse wraps the latest observation for a site.
type CurrentResponse struct {
	SystemID string               `json:"system_id"`
	Sample   models.WeatherSample `json:"sample"`
}

// ForecastResponse carries hourly forecast samples for a site.
type ForecastResponse struct {
	SystemID string                 `json:"system_id"`
	Samples  []models.WeatherSample `json:"samples"`
}

// HistoryResponse carries observed samples over a time window.
type HistoryResponse struct {
	SystemID string                 `json:"system_id"`
	Samples  []models.WeatherSample `json:"samples"`
}

// ErrorResponse is the weather service error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
