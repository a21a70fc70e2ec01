package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch-go/internal/config"
	"github.com/heliowatch/heliowatch-go/internal/database"
	"github.com/heliowatch/heliowatch-go/internal/models"
	"github.com/heliowatch/heliowatch-go/pkg/weather"
)

type fakeAnomalyStore struct {
	inserted []models.Anomaly
	count    int64
}

func (f *fakeAnomalyStore) Insert(ctx context.Context, a *models.Anomaly) error {
	f.inserted = append(f.inserted, *a)
	return nil
}

func (f *fakeAnomalyStore) CountSince(ctx context.Context, systemID string, since time.Time) (int64, error) {
	return f.count, nil
}

type fakeConfigStore struct {
	cfg *models.DetectionConfig
}

func (f *fakeConfigStore) Get(ctx context.Context, systemID string) (*models.DetectionConfig, error) {
	if f.cfg == nil {
		return nil, database.ErrConfigNotFound
	}
	return f.cfg, nil
}

type fakeWeatherProvider struct {
	sample *models.WeatherSample
	err    error
}

func (f *fakeWeatherProvider) GetCurrent(ctx context.Context, systemID string) (*models.WeatherSample, error) {
	return f.sample, f.err
}

func (f *fakeWeatherProvider) GetForecast(ctx context.Context, systemID string, hours int) ([]models.WeatherSample, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.sample == nil {
		return nil, nil
	}
	return []models.WeatherSample{*f.sample}, nil
}

func (f *fakeWeatherProvider) GetHistory(ctx context.Context, systemID string, from, to time.Time) ([]models.WeatherSample, error) {
	return nil, f.err
}

func (f *fakeWeatherProvider) HealthCheck(ctx context.Context) error { return f.err }

type recordingNotifier struct {
	notified []string
}

func (n *recordingNotifier) NotifyAnomaly(ctx context.Context, a *models.Anomaly) error {
	n.notified = append(n.notified, a.ID)
	return nil
}

func engineConfig() *config.Config {
	return &config.Config{
		Detection: config.DetectionConfig{
			ZScoreThreshold:      2.5,
			DeviationThreshold:   0.20,
			DegradationSlope:     -0.01,
			DeratingFactor:       0.8,
			MinIrradianceWM2:     100,
			MinTrendSamples:      10,
			PerformanceRatioMin:  0.5,
			VoltageMinV:          200,
			VoltageMaxV:          260,
			FrequencyMinHz:       49,
			FrequencyMaxHz:       61,
			ACDCToleranceFrac:    0.05,
			MaxEfficiency:        0.25,
			MaxAnomaliesPerHour:  5,
			MaxAnomaliesPerDay:   20,
			CooldownMinutes:      30,
			HistoryCacheSize:     16,
			EnergyPriceKWh:       0.15,
			CO2FactorKgPerKWh:    0.4,
			ScoreThresholdInfo:   0.2,
			ScoreThresholdWarn:   0.5,
			ScoreThresholdCrit:   0.8,
			ImpactMinProdLossKWh: 0.0,
			ImpactMinEffDropPct:  0.0,
			ImpactMinFinancial:   0.0,
		},
		Baseline: config.BaselineConfig{WindowDays: 30, MinimumDataPoints: 100, CacheTTLMinutes: 60},
		Weather:  config.WeatherConfig{MatchToleranceM: 30},
	}
}

func newTestEngine(t *testing.T, store *fakeAnomalyStore, configs *fakeConfigStore, provider *fakeWeatherProvider, history []models.TelemetryRecord) (*DetectionEngine, *recordingNotifier) {
	t.Helper()

	reader := &fakeTelemetryReader{history: history}
	builder := NewBaselineBuilder(reader, nil, &config.BaselineConfig{WindowDays: 30, MinimumDataPoints: 100}, testLogger())
	notifier := &recordingNotifier{}

	var weatherProvider weather.Provider
	if provider != nil {
		weatherProvider = provider
	}

	engine, err := NewDetectionEngine(builder, reader, store, configs, weatherProvider, notifier, engineConfig(), testLogger())
	require.NoError(t, err)
	return engine, notifier
}

func TestDetectionEngine_InvalidRecord(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeAnomalyStore{}, &fakeConfigStore{}, nil, makeRecords(120, 0.8))

	_, err := engine.Run(context.Background(), &models.TelemetryRecord{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDetectionEngine_DisabledConfigSkips(t *testing.T) {
	cfg := &models.DetectionConfig{SystemID: "sys-1", Enabled: false}
	engine, _ := newTestEngine(t, &fakeAnomalyStore{}, &fakeConfigStore{cfg: cfg}, nil, makeRecords(120, 0.8))

	result, err := engine.Run(context.Background(), testRecord(0.8))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "detection disabled", result.SkipReason)
}

func TestDetectionEngine_LowIrradianceExclusion(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeAnomalyStore{}, &fakeConfigStore{}, nil, makeRecords(120, 0.8))

	rec := testRecord(0.4)
	irr := 40.0
	rec.Environmental.IrradianceWM2 = &irr

	result, err := engine.Run(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Contains(t, result.SkipReason, "below detection floor")
	assert.Empty(t, result.Anomalies)
}

func TestDetectionEngine_MaintenanceWindowExclusion(t *testing.T) {
	rec := testRecord(0.4)
	start := rec.Timestamp.Add(-time.Hour)
	end := rec.Timestamp.Add(time.Hour)

	sysCfg := &models.DetectionConfig{
		SystemID: "sys-1",
		Enabled:  true,
		Methods:  []models.DetectionMethod{models.MethodThreshold},
		Thresholds: models.SeverityThresholds{
			Info: 0.2, Warning: 0.5, Critical: 0.8,
		},
		Exclusions: []models.ExclusionCondition{
			{Type: models.ExclusionMaintenance, Enabled: true, WindowStart: &start, WindowEnd: &end},
		},
	}
	engine, _ := newTestEngine(t, &fakeAnomalyStore{}, &fakeConfigStore{cfg: sysCfg}, nil, makeRecords(120, 0.8))

	result, err := engine.Run(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Contains(t, result.SkipReason, "maintenance")
}

func TestDetectionEngine_PersistsAndNotifies(t *testing.T) {
	store := &fakeAnomalyStore{}
	engine, notifier := newTestEngine(t, store, &fakeConfigStore{}, nil, makeRecords(120, 0.8))

	rec := testRecord(0.8)
	rec.Production.FrequencyHz = 48.0 // hard threshold violation

	result, err := engine.Run(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, result.Anomalies, 1)

	a := result.Anomalies[0]
	assert.Equal(t, models.AnomalyEquipmentMalfunction, a.Type)
	assert.Equal(t, models.SeverityCritical, a.Severity)
	assert.Equal(t, models.StatusActive, a.Status)
	assert.NotEmpty(t, a.ID)
	assert.NotEmpty(t, a.Recommendations)
	assert.Contains(t, a.DetectedBy, string(models.MethodThreshold))

	require.Len(t, store.inserted, 1)
	assert.Equal(t, []string{a.ID}, notifier.notified)
}

func TestDetectionEngine_CooldownSuppressesRepeat(t *testing.T) {
	store := &fakeAnomalyStore{}
	engine, _ := newTestEngine(t, store, &fakeConfigStore{}, nil, makeRecords(120, 0.8))

	rec := testRecord(0.8)
	rec.Production.FrequencyHz = 48.0

	first, err := engine.Run(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, first.Anomalies, 1)

	second, err := engine.Run(context.Background(), rec)
	require.NoError(t, err)
	assert.Empty(t, second.Anomalies)
	assert.Len(t, store.inserted, 1)
}

func TestDetectionEngine_HourlyCapSuppresses(t *testing.T) {
	store := &fakeAnomalyStore{count: 5}
	engine, _ := newTestEngine(t, store, &fakeConfigStore{}, nil, makeRecords(120, 0.8))

	rec := testRecord(0.8)
	rec.Production.FrequencyHz = 48.0

	result, err := engine.Run(context.Background(), rec)
	require.NoError(t, err)
	assert.Empty(t, result.Anomalies)
	assert.Empty(t, store.inserted)
}

func TestDetectionEngine_MethodErrorIsolation(t *testing.T) {
	// Too little history for a baseline: the statistical method fails but
	// hard threshold checks still run.
	store := &fakeAnomalyStore{}
	engine, _ := newTestEngine(t, store, &fakeConfigStore{}, nil, makeRecords(20, 0.8))

	rec := testRecord(0.8)
	rec.Production.FrequencyHz = 48.0

	result, err := engine.Run(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, result.Anomalies, 1)
	assert.Equal(t, models.AnomalyEquipmentMalfunction, result.Anomalies[0].Type)
	assert.Contains(t, result.MethodErrors, string(models.MethodStatistical))
}

func TestDetectionEngine_WeatherOutageDegrades(t *testing.T) {
	store := &fakeAnomalyStore{}
	provider := &fakeWeatherProvider{err: assert.AnError}
	engine, _ := newTestEngine(t, store, &fakeConfigStore{}, provider, makeRecords(120, 0.8))

	result, err := engine.Run(context.Background(), testRecord(0.8))
	require.NoError(t, err)
	assert.Contains(t, result.MethodErrors, string(models.MethodComparative))
	assert.Empty(t, result.Anomalies)
}

func TestDetectionEngine_DeduplicatesAcrossMethods(t *testing.T) {
	candidates := []scoredCandidate{
		{Candidate: Candidate{Type: models.AnomalyProductionDrop, Category: models.CategoryStatistical, Score: 0.6, Confidence: 0.7}, Method: models.MethodStatistical},
		{Candidate: Candidate{Type: models.AnomalyProductionDrop, Category: models.CategoryStatistical, Score: 0.9, Confidence: 0.6}, Method: models.MethodComparative},
		{Candidate: Candidate{Type: models.AnomalyDataQuality, Category: models.CategoryMeasurement, Score: 0.8, Confidence: 0.9}, Method: models.MethodPhysics},
	}

	merged := mergeCandidates(candidates, time.Date(2026, 6, 1, 12, 0, 30, 0, time.UTC))
	require.Len(t, merged, 2)

	assert.InDelta(t, 0.9, merged[0].Score, 1e-9)      // highest score wins
	assert.InDelta(t, 0.7, merged[0].Confidence, 1e-9) // highest confidence kept
	assert.ElementsMatch(t, []string{"statistical_outlier", "comparative"}, merged[0].Methods)
}

func TestDetectionEngine_RatioImpactScalesWithCapacity(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeAnomalyStore{}, &fakeConfigStore{}, nil, makeRecords(120, 0.8))
	sysCfg := &models.DetectionConfig{CapacityKW: 50}

	// Performance ratio shortfall of 0.2 against a 50 kW array.
	ratio := mergedCandidate{Candidate: Candidate{
		Type:     models.AnomalyProductionDrop,
		Category: models.CategoryStatistical,
		Score:    0.9,
		Unit:     UnitRatio,
		Context:  models.AnomalyContext{CurrentValue: 0.6, ExpectedValue: 0.8},
	}}
	impact := engine.estimateImpact(ratio, sysCfg)
	assert.InDelta(t, 10.0, impact.ProductionLossKWh, 1e-9)
	assert.InDelta(t, 4.0, impact.CO2OffsetLossKg, 1e-9)
	assert.Equal(t, "1.5", impact.FinancialImpact.String())

	// Power shortfalls are already energy per hourly record.
	power := mergedCandidate{Candidate: Candidate{
		Type:     models.AnomalySeasonalDeviation,
		Category: models.CategoryStatistical,
		Score:    0.6,
		Unit:     UnitKW,
		Context:  models.AnomalyContext{CurrentValue: 40, ExpectedValue: 48},
	}}
	assert.InDelta(t, 8.0, engine.estimateImpact(power, sysCfg).ProductionLossKWh, 1e-9)

	// Frequency and voltage deviations carry no energy figure.
	grid := mergedCandidate{Candidate: Candidate{
		Type:     models.AnomalyEquipmentMalfunction,
		Category: models.CategoryEquipment,
		Score:    1.0,
		Unit:     UnitNone,
		Context:  models.AnomalyContext{CurrentValue: 48.2, ExpectedValue: 49},
	}}
	assert.Zero(t, engine.estimateImpact(grid, sysCfg).ProductionLossKWh)
}

func TestDetectionEngine_SystemLocksAreBounded(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeAnomalyStore{}, &fakeConfigStore{}, nil, makeRecords(120, 0.8))

	assert.Same(t, engine.systemLock("sys-1"), engine.systemLock("sys-1"))

	seen := make(map[*sync.Mutex]struct{})
	for i := 0; i < 10000; i++ {
		seen[engine.systemLock(fmt.Sprintf("sys-%d", i))] = struct{}{}
	}
	assert.LessOrEqual(t, len(seen), len(engine.locks))
}

func TestDetectionEngine_DefaultConfig(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeAnomalyStore{}, &fakeConfigStore{}, nil, makeRecords(120, 0.8))

	cfg := engine.DefaultConfig("sys-9")
	assert.Equal(t, "sys-9", cfg.SystemID)
	assert.True(t, cfg.Enabled)
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.MethodEnabled(models.MethodStatistical))
	assert.False(t, cfg.MethodEnabled(models.MethodPattern))
}
