package services

import (
	"context"
	"math"

	"github.com/heliowatch/heliowatch-go/internal/config"
	"github.com/heliowatch/heliowatch-go/internal/models"
)

// ComparativeDetector compares measured AC power against what the matched
// weather sample says the array should produce. It is skipped when the
// weather integration is degraded.
type ComparativeDetector struct {
	cfg *config.DetectionConfig
}

// NewComparativeDetector creates the weather comparative method.
func NewComparativeDetector(cfg *config.DetectionConfig) *ComparativeDetector {
	return &ComparativeDetector{cfg: cfg}
}

func (d *ComparativeDetector) Method() models.DetectionMethod {
	return models.MethodComparative
}

func (d *ComparativeDetector) Detect(ctx context.Context, input *DetectionInput) ([]Candidate, error) {
	if input.Weather == nil {
		// Degraded mode: no weather match within tolerance, stay silent
		// rather than guess.
		return nil, nil
	}
	capacity := input.Config.CapacityKW
	if capacity <= 0 {
		return nil, nil
	}

	irradiance := input.Weather.IrradianceWM2
	if irradiance < d.cfg.MinIrradianceWM2 {
		return nil, nil
	}

	// Expected output derates nameplate capacity by irradiance and the
	// fixed system loss factor.
	expected := capacity * (irradiance / 1000.0) * d.cfg.DeratingFactor
	if expected <= 0 {
		return nil, nil
	}

	actual := input.Record.Production.ACPowerKW
	shortfall := (expected - actual) / expected
	if shortfall < d.cfg.DeviationThreshold {
		return nil, nil
	}

	return []Candidate{{
		Type:       models.AnomalyWeatherInconsistency,
		Category:   models.CategoryWeather,
		Score:      math.Min(shortfall/(d.cfg.DeviationThreshold*3), 1.0),
		Confidence: math.Min(0.6+shortfall, 0.95),
		Unit:       UnitKW,
		Context: models.AnomalyContext{
			CurrentValue:  actual,
			ExpectedValue: expected,
			Deviation:     actual - expected,
			IrradianceWM2: &input.Weather.IrradianceWM2,
			AmbientTempC:  &input.Weather.AmbientTempC,
			Notes:         "production below weather-derived expectation",
		},
	}}, nil
}
