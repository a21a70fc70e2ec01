package services

import (
	"context"
	"fmt"

	"github.com/heliowatch/heliowatch-go/internal/config"
	"github.com/heliowatch/heliowatch-go/internal/models"
)

// ThresholdDetector checks hard operating limits: grid frequency, voltage
// band and performance ratio floor. Violations point at equipment faults and
// carry high confidence.
type ThresholdDetector struct {
	cfg *config.DetectionConfig
}

// NewThresholdDetector creates the threshold violation method.
func NewThresholdDetector(cfg *config.DetectionConfig) *ThresholdDetector {
	return &ThresholdDetector{cfg: cfg}
}

func (d *ThresholdDetector) Method() models.DetectionMethod {
	return models.MethodThreshold
}

func (d *ThresholdDetector) Detect(ctx context.Context, input *DetectionInput) ([]Candidate, error) {
	rec := input.Record
	var candidates []Candidate

	freq := rec.Production.FrequencyHz
	if freq != 0 && (freq < d.cfg.FrequencyMinHz || freq > d.cfg.FrequencyMaxHz) {
		expected := d.cfg.FrequencyMinHz
		if freq > d.cfg.FrequencyMaxHz {
			expected = d.cfg.FrequencyMaxHz
		}
		candidates = append(candidates, Candidate{
			Type:       models.AnomalyEquipmentMalfunction,
			Category:   models.CategoryEquipment,
			Score:      1.0,
			Confidence: 0.98,
			Unit:       UnitNone,
			Context: models.AnomalyContext{
				CurrentValue:  freq,
				ExpectedValue: expected,
				Deviation:     freq - expected,
				Notes:         fmt.Sprintf("grid frequency outside [%.1f, %.1f] Hz", d.cfg.FrequencyMinHz, d.cfg.FrequencyMaxHz),
			},
		})
	}

	volt := rec.Production.VoltageV
	if volt != 0 && (volt < d.cfg.VoltageMinV || volt > d.cfg.VoltageMaxV) {
		expected := d.cfg.VoltageMinV
		if volt > d.cfg.VoltageMaxV {
			expected = d.cfg.VoltageMaxV
		}
		candidates = append(candidates, Candidate{
			Type:       models.AnomalyEquipmentMalfunction,
			Category:   models.CategoryEquipment,
			Score:      0.9,
			Confidence: 0.95,
			Unit:       UnitNone,
			Context: models.AnomalyContext{
				CurrentValue:  volt,
				ExpectedValue: expected,
				Deviation:     volt - expected,
				Notes:         fmt.Sprintf("voltage outside [%.0f, %.0f] V", d.cfg.VoltageMinV, d.cfg.VoltageMaxV),
			},
		})
	}

	pr := rec.Performance.PerformanceRatio
	if pr > 0 && pr < d.cfg.PerformanceRatioMin {
		candidates = append(candidates, Candidate{
			Type:       models.AnomalyEfficiencyLoss,
			Category:   models.CategoryEquipment,
			Score:      0.7,
			Confidence: 0.9,
			Unit:       UnitRatio,
			Context: models.AnomalyContext{
				CurrentValue:  pr,
				ExpectedValue: d.cfg.PerformanceRatioMin,
				Deviation:     pr - d.cfg.PerformanceRatioMin,
				IrradianceWM2: rec.Environmental.IrradianceWM2,
				Notes:         "performance ratio below operating floor",
			},
		})
	}

	return candidates, nil
}
