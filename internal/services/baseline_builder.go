package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/heliowatch/heliowatch-go/internal/config"
	"github.com/heliowatch/heliowatch-go/internal/models"
)

// TelemetryReader is the slice of the telemetry repository the builder needs.
type TelemetryReader interface {
	GetHistory(ctx context.Context, systemID string, from, to time.Time, limit int) ([]models.TelemetryRecord, error)
	GetDailyEnergy(ctx context.Context, systemID string, from, to time.Time) ([]models.TelemetryRecord, error)
}

// BaselineCache stores computed baselines between detection runs.
type BaselineCache interface {
	Get(ctx context.Context, systemID string) (*models.Baseline, bool)
	Set(ctx context.Context, systemID string, baseline *models.Baseline)
	Invalidate(ctx context.Context, systemID string) error
}

// BaselineBuilder computes rolling statistics and the hourly seasonal profile
// for a system. Concurrent builds for the same system collapse into one
// computation via singleflight.
type BaselineBuilder struct {
	telemetry TelemetryReader
	cache     BaselineCache
	cfg       *config.BaselineConfig
	logger    *logrus.Logger
	group     singleflight.Group
}

// NewBaselineBuilder creates a baseline builder.
func NewBaselineBuilder(telemetry TelemetryReader, cache BaselineCache, cfg *config.BaselineConfig, logger *logrus.Logger) *BaselineBuilder {
	return &BaselineBuilder{
		telemetry: telemetry,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
	}
}

// Get returns the cached baseline for a system, computing it when missing or
// stale. Returns ErrInsufficientData when the window holds fewer than the
// configured minimum number of points.
func (b *BaselineBuilder) Get(ctx context.Context, systemID string) (*models.Baseline, error) {
	if b.cache != nil {
		if baseline, ok := b.cache.Get(ctx, systemID); ok {
			return baseline, nil
		}
	}

	v, err, _ := b.group.Do(systemID, func() (interface{}, error) {
		return b.build(ctx, systemID)
	})
	if err != nil {
		return nil, err
	}

	baseline := v.(*models.Baseline)
	if b.cache != nil {
		b.cache.Set(ctx, systemID, baseline)
	}
	return baseline, nil
}

// Invalidate drops the cached baseline so the next run recomputes it.
func (b *BaselineBuilder) Invalidate(ctx context.Context, systemID string) error {
	if b.cache == nil {
		return nil
	}
	return b.cache.Invalidate(ctx, systemID)
}

func (b *BaselineBuilder) build(ctx context.Context, systemID string) (*models.Baseline, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -b.cfg.WindowDays)

	records, err := b.telemetry.GetHistory(ctx, systemID, from, now, 0)
	if err != nil {
		return nil, fmt.Errorf("load baseline window for %s: %w", systemID, err)
	}
	if len(records) < b.cfg.MinimumDataPoints {
		return nil, fmt.Errorf("%w: %d points in window, need %d", ErrInsufficientData, len(records), b.cfg.MinimumDataPoints)
	}

	baseline := &models.Baseline{
		SystemID:    systemID,
		WindowDays:  b.cfg.WindowDays,
		SampleCount: len(records),
		ComputedAt:  now,
	}

	pr := make([]float64, 0, len(records))
	ac := make([]float64, 0, len(records))
	eff := make([]float64, 0, len(records))
	for i := range records {
		pr = append(pr, records[i].Performance.PerformanceRatio)
		ac = append(ac, records[i].Production.ACPowerKW)
		eff = append(eff, records[i].Performance.Efficiency)
	}

	baseline.Statistics = computeStatistics(pr)
	baseline.ACPowerStats = computeStatistics(ac)
	baseline.EfficiencyStat = computeStatistics(eff)
	baseline.HourlyProfiles = computeHourlyProfiles(records)

	b.logger.WithFields(logrus.Fields{
		"system_id":    systemID,
		"sample_count": len(records),
		"window_days":  b.cfg.WindowDays,
		"mean_pr":      baseline.Statistics.Mean,
	}).Debug("Baseline computed")

	return baseline, nil
}

// computeStatistics summarizes one series. StdDev is the population standard
// deviation; percentiles use linear interpolation between closest ranks.
func computeStatistics(values []float64) models.BaselineStatistics {
	if len(values) == 0 {
		return models.BaselineStatistics{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	var sqSum float64
	for _, v := range sorted {
		d := v - mean
		sqSum += d * d
	}

	return models.BaselineStatistics{
		Mean:   mean,
		Median: percentile(sorted, 50),
		StdDev: math.Sqrt(sqSum / float64(len(sorted))),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P25:    percentile(sorted, 25),
		P75:    percentile(sorted, 75),
		P95:    percentile(sorted, 95),
		P99:    percentile(sorted, 99),
	}
}

// percentile expects sorted input and interpolates linearly between ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// computeHourlyProfiles buckets AC power by hour of day. Hours with no
// samples stay nil and carry no seasonal signal.
func computeHourlyProfiles(records []models.TelemetryRecord) [24]*models.HourlyProfile {
	var buckets [24][]float64
	for i := range records {
		hour := records[i].Timestamp.UTC().Hour()
		buckets[hour] = append(buckets[hour], records[i].Production.ACPowerKW)
	}

	var profiles [24]*models.HourlyProfile
	for hour := 0; hour < 24; hour++ {
		values := buckets[hour]
		if len(values) == 0 {
			continue
		}
		stats := computeStatistics(values)
		profiles[hour] = &models.HourlyProfile{
			Hour:        hour,
			MeanACPower: stats.Mean,
			StdDev:      stats.StdDev,
			SampleCount: len(values),
		}
	}
	return profiles
}
