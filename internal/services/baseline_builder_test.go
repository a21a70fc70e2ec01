package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch-go/internal/config"
	"github.com/heliowatch/heliowatch-go/internal/models"
)

type fakeTelemetryReader struct {
	history []models.TelemetryRecord
	daily   []models.TelemetryRecord
	err     error
	calls   int
}

func (f *fakeTelemetryReader) GetHistory(ctx context.Context, systemID string, from, to time.Time, limit int) ([]models.TelemetryRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

func (f *fakeTelemetryReader) GetDailyEnergy(ctx context.Context, systemID string, from, to time.Time) ([]models.TelemetryRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.daily, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func makeRecords(n int, pr float64) []models.TelemetryRecord {
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	records := make([]models.TelemetryRecord, n)
	for i := range records {
		records[i] = models.TelemetryRecord{
			SystemID:  "sys-1",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Production: models.ProductionMetrics{
				ACPowerKW: 40 + float64(i%10),
				EnergyKWh: 40,
			},
			Performance: models.PerformanceMetrics{
				PerformanceRatio: pr,
				Efficiency:       0.18,
			},
			QualityConfidence: 1,
		}
	}
	return records
}

func baselineConfig() *config.BaselineConfig {
	return &config.BaselineConfig{WindowDays: 30, MinimumDataPoints: 100, CacheTTLMinutes: 60}
}

func TestBaselineBuilder_InsufficientData(t *testing.T) {
	reader := &fakeTelemetryReader{history: makeRecords(50, 0.8)}
	builder := NewBaselineBuilder(reader, nil, baselineConfig(), testLogger())

	_, err := builder.Get(context.Background(), "sys-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestBaselineBuilder_ComputesStatistics(t *testing.T) {
	reader := &fakeTelemetryReader{history: makeRecords(120, 0.8)}
	builder := NewBaselineBuilder(reader, nil, baselineConfig(), testLogger())

	baseline, err := builder.Get(context.Background(), "sys-1")
	require.NoError(t, err)

	assert.Equal(t, "sys-1", baseline.SystemID)
	assert.Equal(t, 120, baseline.SampleCount)
	assert.InDelta(t, 0.8, baseline.Statistics.Mean, 1e-9)
	assert.InDelta(t, 0, baseline.Statistics.StdDev, 1e-9)

	// 24 hourly records per day means every hour has a profile.
	for hour := 0; hour < 24; hour++ {
		require.NotNil(t, baseline.ProfileForHour(hour), "hour %d", hour)
		assert.Equal(t, 5, baseline.ProfileForHour(hour).SampleCount)
	}
}

func TestBaselineBuilder_PropagatesReadError(t *testing.T) {
	reader := &fakeTelemetryReader{err: errors.New("connection refused")}
	builder := NewBaselineBuilder(reader, nil, baselineConfig(), testLogger())

	_, err := builder.Get(context.Background(), "sys-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestComputeStatistics_Percentiles(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	stats := computeStatistics(values)

	assert.InDelta(t, 5.5, stats.Mean, 1e-9)
	assert.InDelta(t, 5.5, stats.Median, 1e-9)
	assert.InDelta(t, 1, stats.Min, 1e-9)
	assert.InDelta(t, 10, stats.Max, 1e-9)
	// Linear interpolation between closest ranks.
	assert.InDelta(t, 3.25, stats.P25, 1e-9)
	assert.InDelta(t, 7.75, stats.P75, 1e-9)
	assert.InDelta(t, 9.55, stats.P95, 1e-9)
	assert.InDelta(t, 2.8722813232690143, stats.StdDev, 1e-9)
}

func TestComputeStatistics_Empty(t *testing.T) {
	stats := computeStatistics(nil)
	assert.Zero(t, stats.Mean)
	assert.Zero(t, stats.StdDev)
}

func TestComputeHourlyProfiles_SkipsEmptyHours(t *testing.T) {
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	records := []models.TelemetryRecord{
		{Timestamp: base, Production: models.ProductionMetrics{ACPowerKW: 30}},
		{Timestamp: base.Add(24 * time.Hour), Production: models.ProductionMetrics{ACPowerKW: 34}},
	}

	profiles := computeHourlyProfiles(records)
	require.NotNil(t, profiles[10])
	assert.InDelta(t, 32, profiles[10].MeanACPower, 1e-9)
	assert.Equal(t, 2, profiles[10].SampleCount)

	for hour := 0; hour < 24; hour++ {
		if hour == 10 {
			continue
		}
		assert.Nil(t, profiles[hour])
	}
}
