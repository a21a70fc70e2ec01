package services

import (
	"context"
	"fmt"
	"math"

	"github.com/heliowatch/heliowatch-go/internal/config"
	"github.com/heliowatch/heliowatch-go/internal/models"
)

// StatisticalDetector z-scores performance ratio, AC power and module
// efficiency against the rolling baseline, and checks AC power against the
// seasonal hourly profile.
type StatisticalDetector struct {
	cfg *config.DetectionConfig
}

// NewStatisticalDetector creates the statistical outlier method.
func NewStatisticalDetector(cfg *config.DetectionConfig) *StatisticalDetector {
	return &StatisticalDetector{cfg: cfg}
}

func (d *StatisticalDetector) Method() models.DetectionMethod {
	return models.MethodStatistical
}

func (d *StatisticalDetector) Detect(ctx context.Context, input *DetectionInput) ([]Candidate, error) {
	baseline := input.Baseline
	if baseline == nil {
		return nil, fmt.Errorf("%w: no baseline for %s", ErrInsufficientData, input.Record.SystemID)
	}

	var candidates []Candidate

	if c := d.checkPerformanceRatio(input.Record, baseline); c != nil {
		candidates = append(candidates, *c)
	}
	if c := d.checkACPower(input.Record, baseline); c != nil {
		candidates = append(candidates, *c)
	}
	if c := d.checkEfficiency(input.Record, baseline); c != nil {
		candidates = append(candidates, *c)
	}
	if c := d.checkSeasonalProfile(input.Record, baseline); c != nil {
		candidates = append(candidates, *c)
	}

	return candidates, nil
}

func (d *StatisticalDetector) checkPerformanceRatio(rec *models.TelemetryRecord, baseline *models.Baseline) *Candidate {
	stats := baseline.Statistics
	if stats.StdDev == 0 {
		return nil
	}

	z := (rec.Performance.PerformanceRatio - stats.Mean) / stats.StdDev
	if math.Abs(z) < d.cfg.ZScoreThreshold {
		return nil
	}

	anomalyType := models.AnomalyProductionDrop
	if z > 0 {
		// Ratios far above baseline point at measurement trouble rather
		// than lost production.
		anomalyType = models.AnomalyDataQuality
	}

	return &Candidate{
		Type:       anomalyType,
		Category:   models.CategoryStatistical,
		Score:      zScoreToScore(z),
		Confidence: math.Min(math.Abs(z)/3.0, 1.0),
		Unit:       UnitRatio,
		Context: models.AnomalyContext{
			CurrentValue:  rec.Performance.PerformanceRatio,
			ExpectedValue: stats.Mean,
			Deviation:     rec.Performance.PerformanceRatio - stats.Mean,
			ZScore:        z,
			IrradianceWM2: rec.Environmental.IrradianceWM2,
			AmbientTempC:  rec.Environmental.AmbientTempC,
		},
	}
}

func (d *StatisticalDetector) checkACPower(rec *models.TelemetryRecord, baseline *models.Baseline) *Candidate {
	stats := baseline.ACPowerStats
	if stats.StdDev == 0 {
		return nil
	}

	z := (rec.Production.ACPowerKW - stats.Mean) / stats.StdDev
	if math.Abs(z) < d.cfg.ZScoreThreshold {
		return nil
	}

	anomalyType := models.AnomalyProductionDrop
	if z > 0 {
		anomalyType = models.AnomalyDataQuality
	}

	return &Candidate{
		Type:       anomalyType,
		Category:   models.CategoryStatistical,
		Score:      zScoreToScore(z),
		Confidence: math.Min(math.Abs(z)/3.0, 1.0),
		Unit:       UnitKW,
		Context: models.AnomalyContext{
			CurrentValue:  rec.Production.ACPowerKW,
			ExpectedValue: stats.Mean,
			Deviation:     rec.Production.ACPowerKW - stats.Mean,
			ZScore:        z,
			IrradianceWM2: rec.Environmental.IrradianceWM2,
			AmbientTempC:  rec.Environmental.AmbientTempC,
			Notes:         "ac power outside baseline band",
		},
	}
}

func (d *StatisticalDetector) checkEfficiency(rec *models.TelemetryRecord, baseline *models.Baseline) *Candidate {
	stats := baseline.EfficiencyStat
	if stats.StdDev == 0 {
		return nil
	}

	z := (rec.Performance.Efficiency - stats.Mean) / stats.StdDev
	if math.Abs(z) < d.cfg.ZScoreThreshold {
		return nil
	}

	anomalyType := models.AnomalyEfficiencyLoss
	if z > 0 {
		// Efficiency above its own baseline is a reporting artifact, not
		// a healthier array.
		anomalyType = models.AnomalyDataQuality
	}

	return &Candidate{
		Type:       anomalyType,
		Category:   models.CategoryStatistical,
		Score:      zScoreToScore(z),
		Confidence: math.Min(math.Abs(z)/3.0, 1.0),
		Unit:       UnitRatio,
		Context: models.AnomalyContext{
			CurrentValue:  rec.Performance.Efficiency,
			ExpectedValue: stats.Mean,
			Deviation:     rec.Performance.Efficiency - stats.Mean,
			ZScore:        z,
			IrradianceWM2: rec.Environmental.IrradianceWM2,
			AmbientTempC:  rec.Environmental.AmbientTempC,
			Notes:         "module efficiency outside baseline band",
		},
	}
}

func (d *StatisticalDetector) checkSeasonalProfile(rec *models.TelemetryRecord, baseline *models.Baseline) *Candidate {
	profile := baseline.ProfileForHour(rec.Timestamp.UTC().Hour())
	if profile == nil || profile.StdDev == 0 {
		return nil
	}

	z := (rec.Production.ACPowerKW - profile.MeanACPower) / profile.StdDev
	// Only shortfalls against the seasonal profile are anomalous; an
	// unusually good hour is not a fault.
	if z > -d.cfg.ZScoreThreshold {
		return nil
	}

	return &Candidate{
		Type:       models.AnomalySeasonalDeviation,
		Category:   models.CategoryStatistical,
		Score:      zScoreToScore(z),
		Confidence: math.Min(math.Abs(z)/3.0, 1.0),
		Unit:       UnitKW,
		Context: models.AnomalyContext{
			CurrentValue:  rec.Production.ACPowerKW,
			ExpectedValue: profile.MeanACPower,
			Deviation:     rec.Production.ACPowerKW - profile.MeanACPower,
			ZScore:        z,
			IrradianceWM2: rec.Environmental.IrradianceWM2,
			Notes:         fmt.Sprintf("hour-of-day profile, %d samples", profile.SampleCount),
		},
	}
}

// zScoreToScore maps the magnitude of a z-score onto [0,1]. A score of 1
// corresponds to four standard deviations or more.
func zScoreToScore(z float64) float64 {
	return math.Min(math.Abs(z)/4.0, 1.0)
}
