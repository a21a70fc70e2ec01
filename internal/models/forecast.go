package models

import "time"

// ForecastHorizon is the requested prediction span.
type ForecastHorizon string

const (
	HorizonHour  ForecastHorizon = "hour"
	HorizonDay   ForecastHorizon = "day"
	HorizonWeek  ForecastHorizon = "week"
	HorizonMonth ForecastHorizon = "month"
)

// Valid reports whether the horizon is one of the supported spans.
func (h ForecastHorizon) Valid() bool {
	switch h {
	case HorizonHour, HorizonDay, HorizonWeek, HorizonMonth:
		return true
	}
	return false
}

// ForecastRange is the confidence band around a point forecast. Energy values
// never go negative: Min clamps to zero and Min <= P50 <= Max always holds.
type ForecastRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	P10 float64 `json:"p10"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
}

// ContributingFactor names one input that shaped the forecast.
type ContributingFactor struct {
	Name        string  `json:"name"`
	Impact      float64 `json:"impact"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// ForecastResult is a pure computation output; it has no persisted identity
// beyond caching by system, horizon and generation time.
type ForecastResult struct {
	SystemID     string               `json:"system_id"`
	Horizon      ForecastHorizon      `json:"horizon"`
	ValueKWh     float64              `json:"value_kwh"`
	Confidence   float64              `json:"confidence"`
	Range        ForecastRange        `json:"range"`
	Factors      []ContributingFactor `json:"factors"`
	Methodology  string               `json:"methodology"`
	GeneratedAt  time.Time            `json:"generated_at"`
	ValidMinutes int                  `json:"valid_minutes"`
}
