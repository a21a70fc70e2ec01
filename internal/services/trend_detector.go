package services

import (
	"context"
	"math"

	"github.com/heliowatch/heliowatch-go/internal/config"
	"github.com/heliowatch/heliowatch-go/internal/models"
)

// TrendDetector fits an ordinary least squares line through the recent
// performance ratio series and flags sustained downward slopes as
// degradation.
type TrendDetector struct {
	cfg *config.DetectionConfig
}

// NewTrendDetector creates the trend analysis method.
func NewTrendDetector(cfg *config.DetectionConfig) *TrendDetector {
	return &TrendDetector{cfg: cfg}
}

func (d *TrendDetector) Method() models.DetectionMethod {
	return models.MethodTrend
}

func (d *TrendDetector) Detect(ctx context.Context, input *DetectionInput) ([]Candidate, error) {
	history := input.History
	if len(history) < d.cfg.MinTrendSamples {
		return nil, nil
	}

	values := make([]float64, len(history))
	for i := range history {
		values[i] = history[i].Performance.PerformanceRatio
	}

	slope, r2 := olsSlope(values)
	if slope >= d.cfg.DegradationSlope {
		return nil, nil
	}

	// Slope is per sample; scale onto [0,1] so a 5x-threshold slope
	// saturates the score.
	score := math.Min(math.Abs(slope)/(math.Abs(d.cfg.DegradationSlope)*5), 1.0)

	last := history[len(history)-1]
	return []Candidate{{
		Type:       models.AnomalyPerformanceDegradation,
		Category:   models.CategoryDegradation,
		Score:      score,
		Confidence: math.Min(r2, 0.95),
		Unit:       UnitRatio,
		Context: models.AnomalyContext{
			CurrentValue:  last.Performance.PerformanceRatio,
			ExpectedValue: values[0],
			Deviation:     slope,
			IrradianceWM2: last.Environmental.IrradianceWM2,
			Notes:         "sustained downward performance ratio trend",
		},
	}}, nil
}

// olsSlope fits y = a + b*x over x = 0..n-1 and returns the slope and the
// coefficient of determination.
func olsSlope(values []float64) (slope, r2 float64) {
	n := float64(len(values))
	if n < 2 {
		return 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range values {
		fit := intercept + slope*float64(i)
		ssTot += (y - meanY) * (y - meanY)
		ssRes += (y - fit) * (y - fit)
	}
	if ssTot == 0 {
		return slope, 0
	}
	return slope, 1 - ssRes/ssTot
}
