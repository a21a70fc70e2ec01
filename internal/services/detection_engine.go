package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/heliowatch/heliowatch-go/internal/config"
	"github.com/heliowatch/heliowatch-go/internal/database"
	"github.com/heliowatch/heliowatch-go/internal/models"
	"github.com/heliowatch/heliowatch-go/pkg/weather"
)

// AnomalyStore is the slice of the anomaly repository the engine needs.
type AnomalyStore interface {
	Insert(ctx context.Context, a *models.Anomaly) error
	CountSince(ctx context.Context, systemID string, since time.Time) (int64, error)
}

// ConfigStore loads per-system detection configuration.
type ConfigStore interface {
	Get(ctx context.Context, systemID string) (*models.DetectionConfig, error)
}

// DetectionResult is the outcome of one run over one record.
type DetectionResult struct {
	SystemID     string            `json:"system_id"`
	Skipped      bool              `json:"skipped"`
	SkipReason   string            `json:"skip_reason,omitempty"`
	Anomalies    []models.Anomaly  `json:"anomalies"`
	MethodErrors map[string]string `json:"method_errors,omitempty"`
	EvaluatedAt  time.Time         `json:"evaluated_at"`
}

// systemHistory tracks recent emissions for one system so cooldowns survive
// between runs without a database round trip.
type systemHistory struct {
	mu         sync.Mutex
	lastByType map[models.AnomalyType]time.Time
}

// DetectionEngine orchestrates the detection methods over incoming telemetry:
// exclusions, fan-out with per-method error isolation, consolidation, impact
// and rate filters, persistence and notification.
type DetectionEngine struct {
	detectors []Detector
	baselines *BaselineBuilder
	telemetry TelemetryReader
	anomalies AnomalyStore
	configs   ConfigStore
	weather   weather.Provider
	notifier  Notifier
	cfg       *config.Config
	logger    *logrus.Logger

	history *lru.Cache[string, *systemHistory]

	// Fixed stripe set so per-system serialization never grows with the
	// fleet. Systems hashing to the same stripe share a lock.
	locks [64]sync.Mutex
}

// NewDetectionEngine wires the orchestrator with the default method set.
func NewDetectionEngine(
	baselines *BaselineBuilder,
	telemetry TelemetryReader,
	anomalies AnomalyStore,
	configs ConfigStore,
	weatherProvider weather.Provider,
	notifier Notifier,
	cfg *config.Config,
	logger *logrus.Logger,
) (*DetectionEngine, error) {
	size := cfg.Detection.HistoryCacheSize
	if size <= 0 {
		size = 256
	}
	history, err := lru.New[string, *systemHistory](size)
	if err != nil {
		return nil, fmt.Errorf("create history cache: %w", err)
	}

	return &DetectionEngine{
		detectors: []Detector{
			NewStatisticalDetector(&cfg.Detection),
			NewThresholdDetector(&cfg.Detection),
			NewTrendDetector(&cfg.Detection),
			NewComparativeDetector(&cfg.Detection),
			NewPhysicsDetector(&cfg.Detection),
			NewPatternDetector(),
		},
		baselines: baselines,
		telemetry: telemetry,
		anomalies: anomalies,
		configs:   configs,
		weather:   weatherProvider,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		history:   history,
	}, nil
}

// Run evaluates one record. Runs for the same system serialize; runs for
// different systems proceed concurrently.
func (e *DetectionEngine) Run(ctx context.Context, record *models.TelemetryRecord) (*DetectionResult, error) {
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	lock := e.systemLock(record.SystemID)
	lock.Lock()
	defer lock.Unlock()

	result := &DetectionResult{
		SystemID:    record.SystemID,
		EvaluatedAt: time.Now().UTC(),
	}

	sysCfg, err := e.loadConfig(ctx, record.SystemID)
	if err != nil {
		return nil, err
	}
	if !sysCfg.Enabled {
		result.Skipped = true
		result.SkipReason = "detection disabled"
		return result, nil
	}

	if reason, excluded := e.excluded(record, sysCfg); excluded {
		result.Skipped = true
		result.SkipReason = reason
		return result, nil
	}

	input, methodErrs := e.assembleInput(ctx, record, sysCfg)
	candidates := e.fanOut(ctx, input, sysCfg, methodErrs)
	if len(methodErrs) > 0 {
		result.MethodErrors = methodErrs
	}

	merged := mergeCandidates(candidates, record.Timestamp)
	accepted := e.consolidate(ctx, merged, record, sysCfg)

	for i := range accepted {
		if err := e.anomalies.Insert(ctx, &accepted[i]); err != nil {
			e.logger.WithError(err).WithField("system_id", record.SystemID).Error("Failed to persist anomaly")
			continue
		}
		if e.notifier != nil {
			if err := e.notifier.NotifyAnomaly(ctx, &accepted[i]); err != nil {
				e.logger.WithError(err).Warn("Anomaly notification failed")
			}
		}
		result.Anomalies = append(result.Anomalies, accepted[i])
	}

	e.logger.WithFields(logrus.Fields{
		"system_id":  record.SystemID,
		"candidates": len(candidates),
		"accepted":   len(result.Anomalies),
		"errors":     len(methodErrs),
	}).Debug("Detection run complete")

	return result, nil
}

func (e *DetectionEngine) systemLock(systemID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(systemID))
	return &e.locks[h.Sum32()%uint32(len(e.locks))]
}

func (e *DetectionEngine) loadConfig(ctx context.Context, systemID string) (*models.DetectionConfig, error) {
	sysCfg, err := e.configs.Get(ctx, systemID)
	if err != nil {
		if errors.Is(err, database.ErrConfigNotFound) {
			return e.DefaultConfig(systemID), nil
		}
		return nil, fmt.Errorf("load detection config for %s: %w", systemID, err)
	}
	return sysCfg, nil
}

// DefaultConfig builds the shipped per-system tuning for systems that have
// never been configured.
func (e *DetectionEngine) DefaultConfig(systemID string) *models.DetectionConfig {
	d := e.cfg.Detection
	return &models.DetectionConfig{
		SystemID:    systemID,
		Enabled:     true,
		Sensitivity: "medium",
		Methods: []models.DetectionMethod{
			models.MethodStatistical,
			models.MethodThreshold,
			models.MethodTrend,
			models.MethodComparative,
			models.MethodPhysics,
		},
		Thresholds: models.SeverityThresholds{
			Info:     d.ScoreThresholdInfo,
			Warning:  d.ScoreThresholdWarn,
			Critical: d.ScoreThresholdCrit,
		},
		Limits: models.FrequencyLimits{
			MaxPerHour:      d.MaxAnomaliesPerHour,
			MaxPerDay:       d.MaxAnomaliesPerDay,
			CooldownMinutes: d.CooldownMinutes,
		},
		ImpactMinimums: models.ImpactMinimums{
			ProductionLossKWh: d.ImpactMinProdLossKWh,
			EfficiencyDropPct: d.ImpactMinEffDropPct,
			FinancialImpact:   d.ImpactMinFinancial,
		},
		Exclusions: []models.ExclusionCondition{
			{Type: models.ExclusionLowIrradiance, Enabled: true, MinIrradianceWM2: d.MinIrradianceWM2},
		},
		UpdatedAt: time.Now().UTC(),
	}
}

// excluded evaluates skip rules in config order; the first match wins.
func (e *DetectionEngine) excluded(record *models.TelemetryRecord, sysCfg *models.DetectionConfig) (string, bool) {
	for _, ex := range sysCfg.Exclusions {
		if !ex.Enabled {
			continue
		}
		switch ex.Type {
		case models.ExclusionLowIrradiance:
			min := ex.MinIrradianceWM2
			if min <= 0 {
				min = e.cfg.Detection.MinIrradianceWM2
			}
			if irr := record.Environmental.IrradianceWM2; irr != nil && *irr < min {
				return fmt.Sprintf("irradiance %.0f W/m2 below detection floor", *irr), true
			}
		case models.ExclusionMaintenance, models.ExclusionGridEvent:
			if ex.WindowStart != nil && ex.WindowEnd != nil &&
				!record.Timestamp.Before(*ex.WindowStart) && !record.Timestamp.After(*ex.WindowEnd) {
				return fmt.Sprintf("%s window active", ex.Type), true
			}
		case models.ExclusionManual:
			reason := ex.Reason
			if reason == "" {
				reason = "manual exclusion active"
			}
			return reason, true
		}
	}
	return "", false
}

// assembleInput gathers baseline, history and weather for the record.
// Failures to assemble optional inputs degrade the affected methods instead
// of aborting the run.
func (e *DetectionEngine) assembleInput(ctx context.Context, record *models.TelemetryRecord, sysCfg *models.DetectionConfig) (*DetectionInput, map[string]string) {
	methodErrs := make(map[string]string)

	input := &DetectionInput{
		Record: record,
		Config: sysCfg,
	}

	baseline, err := e.baselines.Get(ctx, record.SystemID)
	if err != nil {
		methodErrs[string(models.MethodStatistical)] = err.Error()
	} else {
		input.Baseline = baseline
	}

	from := record.Timestamp.AddDate(0, 0, -e.cfg.Baseline.WindowDays)
	history, err := e.telemetry.GetHistory(ctx, record.SystemID, from, record.Timestamp, 0)
	if err != nil {
		methodErrs[string(models.MethodTrend)] = err.Error()
	} else {
		input.History = history
	}

	if e.weather != nil && sysCfg.MethodEnabled(models.MethodComparative) {
		sample, err := e.weather.GetCurrent(ctx, record.SystemID)
		if err != nil {
			methodErrs[string(models.MethodComparative)] = fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err).Error()
		} else if sample != nil {
			tolerance := e.cfg.Weather.MatchTolerance()
			matched := models.ClosestWeatherSample([]models.WeatherSample{*sample}, record.Timestamp, tolerance)
			input.Weather = matched
		}
	}

	return input, methodErrs
}

// fanOut runs every enabled method. One method failing never suppresses the
// findings of the others.
func (e *DetectionEngine) fanOut(ctx context.Context, input *DetectionInput, sysCfg *models.DetectionConfig, methodErrs map[string]string) []scoredCandidate {
	var all []scoredCandidate
	for _, det := range e.detectors {
		method := det.Method()
		if !sysCfg.MethodEnabled(method) {
			continue
		}
		if _, failed := methodErrs[string(method)]; failed {
			continue
		}

		candidates, err := det.Detect(ctx, input)
		if err != nil {
			methodErrs[string(method)] = err.Error()
			e.logger.WithError(err).WithFields(logrus.Fields{
				"system_id": input.Record.SystemID,
				"method":    method,
			}).Warn("Detection method failed")
			continue
		}
		for _, c := range candidates {
			all = append(all, scoredCandidate{Candidate: c, Method: method})
		}
	}
	return all
}

type scoredCandidate struct {
	Candidate
	Method models.DetectionMethod
}

type dedupKey struct {
	Type     models.AnomalyType
	Category models.AnomalyCategory
	Minute   int64
}

// mergeCandidates collapses duplicate findings from different methods. The
// highest-scoring candidate wins; contributing methods are unioned.
func mergeCandidates(candidates []scoredCandidate, ts time.Time) []mergedCandidate {
	groups := make(map[dedupKey]*mergedCandidate)
	order := make([]dedupKey, 0, len(candidates))

	minute := ts.Truncate(time.Minute).Unix()
	for _, c := range candidates {
		key := dedupKey{Type: c.Type, Category: c.Category, Minute: minute}
		m, ok := groups[key]
		if !ok {
			groups[key] = &mergedCandidate{Candidate: c.Candidate, Methods: []string{string(c.Method)}}
			order = append(order, key)
			continue
		}
		m.Methods = appendUnique(m.Methods, string(c.Method))
		conf := math.Max(m.Confidence, c.Confidence)
		if c.Score > m.Score {
			m.Candidate = c.Candidate
		}
		m.Confidence = conf
	}

	merged := make([]mergedCandidate, 0, len(order))
	for _, key := range order {
		merged = append(merged, *groups[key])
	}
	return merged
}

type mergedCandidate struct {
	Candidate
	Methods []string
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// consolidate applies severity mapping, impact and frequency filters, then
// builds the final anomalies with impact estimates and recommendations.
func (e *DetectionEngine) consolidate(ctx context.Context, merged []mergedCandidate, record *models.TelemetryRecord, sysCfg *models.DetectionConfig) []models.Anomaly {
	now := time.Now().UTC()
	var accepted []models.Anomaly

	for _, m := range merged {
		severity, ok := severityForScore(m.Score, sysCfg.Thresholds)
		if !ok {
			continue
		}

		impact := e.estimateImpact(m, sysCfg)
		if !e.clearsImpactFloor(m, impact, sysCfg.ImpactMinimums) {
			continue
		}
		if !e.withinRateLimits(ctx, record.SystemID, m.Type, sysCfg.Limits, now) {
			continue
		}

		anomaly := models.Anomaly{
			ID:              uuid.New().String(),
			SystemID:        record.SystemID,
			Timestamp:       record.Timestamp,
			Type:            m.Type,
			Category:        m.Category,
			Severity:        severity,
			Score:           m.Score,
			Confidence:      m.Confidence,
			DetectedBy:      m.Methods,
			Context:         m.Context,
			Impact:          impact,
			Recommendations: RecommendationsFor(m.Type),
			Status:          models.StatusActive,
			CreatedAt:       now,
		}
		accepted = append(accepted, anomaly)
		e.recordEmission(record.SystemID, m.Type, now)
	}

	return accepted
}

func severityForScore(score float64, t models.SeverityThresholds) (models.Severity, bool) {
	switch {
	case score >= t.Critical:
		return models.SeverityCritical, true
	case score >= t.Warning:
		return models.SeverityWarning, true
	case score >= t.Info:
		return models.SeverityInfo, true
	default:
		return "", false
	}
}

// estimateImpact derives production, financial and emission impact from the
// candidate's deviation. Records arrive at most hourly, so a power shortfall
// translates one to one into energy; ratio-valued deviations scale by the
// system's nameplate capacity first.
func (e *DetectionEngine) estimateImpact(m mergedCandidate, sysCfg *models.DetectionConfig) models.ImpactEstimate {
	lossKWh := 0.0
	if m.Category != models.CategoryMeasurement && m.Context.ExpectedValue > m.Context.CurrentValue {
		delta := m.Context.ExpectedValue - m.Context.CurrentValue
		switch m.Unit {
		case UnitRatio:
			lossKWh = delta * sysCfg.CapacityKW
		case UnitNone:
			// Deviation is in Hz or V; no meaningful energy figure.
		default:
			lossKWh = delta
		}
	}

	effDrop := 0.0
	if m.Context.ExpectedValue > 0 {
		effDrop = (m.Context.ExpectedValue - m.Context.CurrentValue) / m.Context.ExpectedValue * 100
		if effDrop < 0 {
			effDrop = 0
		}
	}

	urgency := "routine"
	if m.Score >= e.cfg.Detection.ScoreThresholdCrit {
		urgency = "immediate"
	} else if m.Score >= e.cfg.Detection.ScoreThresholdWarn {
		urgency = "scheduled"
	}

	return models.ImpactEstimate{
		ProductionLossKWh: lossKWh,
		EfficiencyDropPct: effDrop,
		FinancialImpact:   decimal.NewFromFloat(lossKWh * e.cfg.Detection.EnergyPriceKWh).Round(4),
		CO2OffsetLossKg:   lossKWh * e.cfg.Detection.CO2FactorKgPerKWh,
		Urgency:           urgency,
	}
}

// clearsImpactFloor drops low-impact noise. Equipment and measurement
// findings are reliability problems and bypass the production-impact floor.
func (e *DetectionEngine) clearsImpactFloor(m mergedCandidate, impact models.ImpactEstimate, minimums models.ImpactMinimums) bool {
	if m.Category == models.CategoryEquipment || m.Category == models.CategoryMeasurement {
		return true
	}
	if minimums.ProductionLossKWh <= 0 && minimums.EfficiencyDropPct <= 0 && minimums.FinancialImpact <= 0 {
		return true
	}
	if minimums.ProductionLossKWh > 0 && impact.ProductionLossKWh >= minimums.ProductionLossKWh {
		return true
	}
	if minimums.EfficiencyDropPct > 0 && impact.EfficiencyDropPct >= minimums.EfficiencyDropPct {
		return true
	}
	if minimums.FinancialImpact > 0 && impact.FinancialImpact.GreaterThanOrEqual(decimal.NewFromFloat(minimums.FinancialImpact)) {
		return true
	}
	return false
}

// withinRateLimits enforces per-type cooldown and the hourly and daily caps.
func (e *DetectionEngine) withinRateLimits(ctx context.Context, systemID string, t models.AnomalyType, limits models.FrequencyLimits, now time.Time) bool {
	if limits.CooldownMinutes > 0 {
		if last, ok := e.lastEmission(systemID, t); ok {
			if now.Sub(last) < time.Duration(limits.CooldownMinutes)*time.Minute {
				return false
			}
		}
	}

	if limits.MaxPerHour > 0 {
		count, err := e.anomalies.CountSince(ctx, systemID, now.Add(-time.Hour))
		if err == nil && count >= int64(limits.MaxPerHour) {
			return false
		}
	}
	if limits.MaxPerDay > 0 {
		count, err := e.anomalies.CountSince(ctx, systemID, now.Add(-24*time.Hour))
		if err == nil && count >= int64(limits.MaxPerDay) {
			return false
		}
	}
	return true
}

func (e *DetectionEngine) lastEmission(systemID string, t models.AnomalyType) (time.Time, bool) {
	h, ok := e.history.Get(systemID)
	if !ok {
		return time.Time{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	last, ok := h.lastByType[t]
	return last, ok
}

func (e *DetectionEngine) recordEmission(systemID string, t models.AnomalyType, at time.Time) {
	h, ok := e.history.Get(systemID)
	if !ok {
		h = &systemHistory{lastByType: make(map[models.AnomalyType]time.Time)}
		e.history.Add(systemID, h)
	}
	h.mu.Lock()
	h.lastByType[t] = at
	h.mu.Unlock()
}
