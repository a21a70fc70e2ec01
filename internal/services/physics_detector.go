package services

import (
	"context"
	"math"

	"github.com/heliowatch/heliowatch-go/internal/config"
	"github.com/heliowatch/heliowatch-go/internal/models"
)

// PhysicsDetector checks invariants no healthy plant can violate: AC output
// cannot exceed DC input beyond inverter tolerance, and module efficiency has
// a physical ceiling. Violations are sensor or data problems, not production
// problems.
type PhysicsDetector struct {
	cfg *config.DetectionConfig
}

// NewPhysicsDetector creates the physics invariant method.
func NewPhysicsDetector(cfg *config.DetectionConfig) *PhysicsDetector {
	return &PhysicsDetector{cfg: cfg}
}

func (d *PhysicsDetector) Method() models.DetectionMethod {
	return models.MethodPhysics
}

func (d *PhysicsDetector) Detect(ctx context.Context, input *DetectionInput) ([]Candidate, error) {
	rec := input.Record
	var candidates []Candidate

	dc := rec.Production.DCPowerKW
	ac := rec.Production.ACPowerKW
	if dc > 0 {
		limit := dc * (1 + d.cfg.ACDCToleranceFrac)
		if ac > limit {
			excess := (ac - limit) / limit
			candidates = append(candidates, Candidate{
				Type:       models.AnomalyDataQuality,
				Category:   models.CategoryMeasurement,
				Score:      math.Min(0.6+excess, 1.0),
				Confidence: 0.95,
				Unit:       UnitKW,
				Context: models.AnomalyContext{
					CurrentValue:  ac,
					ExpectedValue: limit,
					Deviation:     ac - limit,
					Notes:         "AC power exceeds DC input beyond inverter tolerance",
				},
			})
		}
	}

	eff := rec.Performance.Efficiency
	if eff > d.cfg.MaxEfficiency {
		candidates = append(candidates, Candidate{
			Type:       models.AnomalyDataQuality,
			Category:   models.CategoryMeasurement,
			Score:      0.8,
			Confidence: 0.9,
			Unit:       UnitNone,
			Context: models.AnomalyContext{
				CurrentValue:  eff,
				ExpectedValue: d.cfg.MaxEfficiency,
				Deviation:     eff - d.cfg.MaxEfficiency,
				Notes:         "reported efficiency above physical ceiling",
			},
		})
	}

	return candidates, nil
}
