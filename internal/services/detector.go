package services

import (
	"context"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

// DetectionInput bundles everything a detection method may consult for one
// record. History is ordered oldest first and ends at the record under test.
// Weather is nil when the upstream integration is degraded.
type DetectionInput struct {
	Record   *models.TelemetryRecord
	Baseline *models.Baseline
	History  []models.TelemetryRecord
	Weather  *models.WeatherSample
	Config   *models.DetectionConfig
}

// MetricUnit says what a candidate's context values measure, so impact
// estimation knows how to turn a deviation into energy.
type MetricUnit string

const (
	UnitKW    MetricUnit = "kw"
	UnitRatio MetricUnit = "ratio"
	UnitNone  MetricUnit = "none"
)

// Candidate is one method's raw verdict before consolidation. Score and
// Confidence are both in [0,1].
type Candidate struct {
	Type       models.AnomalyType
	Category   models.AnomalyCategory
	Score      float64
	Confidence float64
	Unit       MetricUnit
	Context    models.AnomalyContext
}

// Detector is one pluggable detection method. Detect returns zero or more
// candidates; an error from one method never aborts the run.
type Detector interface {
	Method() models.DetectionMethod
	Detect(ctx context.Context, input *DetectionInput) ([]Candidate, error)
}

// PatternDetector is the pattern recognition strategy seam. The default
// implementation emits nothing; a trained model can be plugged in without
// touching the orchestrator.
type PatternDetector struct{}

// NewPatternDetector creates the default pattern recognition strategy.
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{}
}

func (d *PatternDetector) Method() models.DetectionMethod {
	return models.MethodPattern
}

func (d *PatternDetector) Detect(ctx context.Context, input *DetectionInput) ([]Candidate, error) {
	return nil, nil
}
