package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/heliowatch/heliowatch-go/internal/config"
	"github.com/heliowatch/heliowatch-go/internal/models"
	"github.com/heliowatch/heliowatch-go/pkg/weather"
)

// trainedSet bundles the models trained for one system plus the spread of
// its daily energy, reused across horizons until the training TTL lapses.
type trainedSet struct {
	regression *LinearRegressionModel
	movingAvg  *MovingAverageModel
	seasonal   *SeasonalDecompositionModel
	dailyStd   float64
	dailyMean  float64
	trainedAt  time.Time
}

type cachedForecast struct {
	result    *models.ForecastResult
	expiresAt time.Time
}

// ForecastService produces short-horizon production forecasts by combining
// the trained models per horizon. Weather outages degrade to
// weather-independent models instead of failing the request.
type ForecastService struct {
	telemetry TelemetryReader
	baselines *BaselineBuilder
	weather   weather.Provider
	cfg       *config.ForecastConfig
	logger    *logrus.Logger

	group singleflight.Group

	mu      sync.RWMutex
	models  map[string]*trainedSet
	results map[string]cachedForecast
}

// NewForecastService creates a forecast service.
func NewForecastService(telemetry TelemetryReader, baselines *BaselineBuilder, weatherProvider weather.Provider, cfg *config.ForecastConfig, logger *logrus.Logger) *ForecastService {
	return &ForecastService{
		telemetry: telemetry,
		baselines: baselines,
		weather:   weatherProvider,
		cfg:       cfg,
		logger:    logger,
		models:    make(map[string]*trainedSet),
		results:   make(map[string]cachedForecast),
	}
}

// Forecast returns the production forecast for one system and horizon.
func (s *ForecastService) Forecast(ctx context.Context, systemID string, horizon models.ForecastHorizon) (*models.ForecastResult, error) {
	if !horizon.Valid() {
		return nil, fmt.Errorf("%w: horizon %q", ErrInvalidInput, horizon)
	}

	cacheKey := systemID + ":" + string(horizon)
	if cached, ok := s.cachedResult(cacheKey); ok {
		return cached, nil
	}

	set, err := s.trained(ctx, systemID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var result *models.ForecastResult
	switch horizon {
	case models.HorizonHour:
		result, err = s.forecastHour(ctx, systemID, set, now)
	case models.HorizonDay:
		result, err = s.forecastDay(ctx, systemID, set, now)
	case models.HorizonWeek:
		result, err = s.forecastSpan(systemID, set, now, models.HorizonWeek, 7)
	case models.HorizonMonth:
		result, err = s.forecastSpan(systemID, set, now, models.HorizonMonth, daysInNextMonth(now))
	}
	if err != nil {
		return nil, err
	}

	result.SystemID = systemID
	result.GeneratedAt = now
	result.ValidMinutes = s.cfg.CacheTTLMinutes
	clampRange(result)

	s.storeResult(cacheKey, result)
	return result, nil
}

// Invalidate drops the trained models and cached results for a system.
func (s *ForecastService) Invalidate(systemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.models, systemID)
	for key := range s.results {
		if len(key) > len(systemID) && key[:len(systemID)] == systemID && key[len(systemID)] == ':' {
			delete(s.results, key)
		}
	}
}

func (s *ForecastService) cachedResult(key string) (*models.ForecastResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached, ok := s.results[key]
	if !ok || time.Now().After(cached.expiresAt) {
		return nil, false
	}
	return cached.result, true
}

func (s *ForecastService) storeResult(key string, result *models.ForecastResult) {
	s.mu.Lock()
	s.results[key] = cachedForecast{
		result:    result,
		expiresAt: time.Now().Add(time.Duration(s.cfg.CacheTTLMinutes) * time.Minute),
	}
	s.mu.Unlock()
}

// trained returns the model set for a system, training it at most once per
// TTL even under concurrent requests.
func (s *ForecastService) trained(ctx context.Context, systemID string) (*trainedSet, error) {
	s.mu.RLock()
	set, ok := s.models[systemID]
	s.mu.RUnlock()
	ttl := time.Duration(s.cfg.CacheTTLMinutes) * time.Minute
	if ok && time.Since(set.trainedAt) < ttl {
		return set, nil
	}

	v, err, _ := s.group.Do(systemID, func() (interface{}, error) {
		return s.train(ctx, systemID)
	})
	if err != nil {
		return nil, err
	}

	set = v.(*trainedSet)
	s.mu.Lock()
	s.models[systemID] = set
	s.mu.Unlock()
	return set, nil
}

func (s *ForecastService) train(ctx context.Context, systemID string) (*trainedSet, error) {
	now := time.Now().UTC()

	hourly, err := s.telemetry.GetHistory(ctx, systemID, now.AddDate(0, -3, 0), now, 0)
	if err != nil {
		return nil, fmt.Errorf("load training window for %s: %w", systemID, err)
	}
	daily, err := s.telemetry.GetDailyEnergy(ctx, systemID, now.AddDate(-2, 0, 0), now)
	if err != nil {
		return nil, fmt.Errorf("load daily energy for %s: %w", systemID, err)
	}
	if len(daily) == 0 {
		return nil, fmt.Errorf("%w: no daily energy history for %s", ErrInsufficientData, systemID)
	}

	set := &trainedSet{
		regression: NewLinearRegressionModel(),
		movingAvg:  NewMovingAverageModel(s.cfg.MovingAverageWindow),
		seasonal:   NewSeasonalDecompositionModel(s.cfg.SeasonalMinSamples),
		trainedAt:  now,
	}

	if err := set.regression.Train(hourly); err != nil {
		s.logger.WithError(err).WithField("system_id", systemID).Debug("Regression model unavailable")
	}
	if err := set.movingAvg.Train(daily); err != nil {
		return nil, err
	}
	if err := set.seasonal.Train(daily); err != nil {
		// Less than a year of data: the seasonal model just sits out.
		s.logger.WithError(err).WithField("system_id", systemID).Debug("Seasonal model unavailable")
	}

	energies := make([]float64, len(daily))
	for i := range daily {
		energies[i] = daily[i].Production.EnergyKWh
	}
	stats := computeStatistics(energies)
	set.dailyStd = stats.StdDev
	set.dailyMean = stats.Mean

	return set, nil
}

func (s *ForecastService) forecastHour(ctx context.Context, systemID string, set *trainedSet, now time.Time) (*models.ForecastResult, error) {
	confidence := s.cfg.ConfidenceHour

	if set.regression.Trained() && s.weather != nil {
		samples, err := s.weather.GetForecast(ctx, systemID, 1)
		if err == nil && len(samples) > 0 {
			kw, perr := set.regression.Predict(samples[0].IrradianceWM2)
			if perr == nil {
				return &models.ForecastResult{
					Horizon:     models.HorizonHour,
					ValueKWh:    kw,
					Confidence:  confidence,
					Range:       weatherRange(kw, s.cfg.WeatherRangeFrac),
					Methodology: "linear_regression+weather_forecast",
					Factors: []models.ContributingFactor{
						{Name: "irradiance_forecast", Impact: samples[0].IrradianceWM2, Confidence: confidence, Description: "forecast irradiance for the next hour"},
						{Name: "regression_fit", Impact: set.regression.R2(), Confidence: confidence, Description: "irradiance to power fit quality"},
					},
				}, nil
			}
		} else if err != nil {
			s.logger.WithError(err).WithField("system_id", systemID).Warn("Weather forecast unavailable, degrading to hourly profile")
		}
	}

	// Degraded path: seasonal hourly profile from the baseline.
	baseline, err := s.baselines.Get(ctx, systemID)
	if err != nil {
		return nil, err
	}
	profile := baseline.ProfileForHour(now.Add(time.Hour).Hour())
	if profile == nil {
		return nil, fmt.Errorf("%w: no hourly profile for %s", ErrInsufficientData, systemID)
	}

	confidence = degradedConfidence(confidence)
	return &models.ForecastResult{
		Horizon:     models.HorizonHour,
		ValueKWh:    profile.MeanACPower,
		Confidence:  confidence,
		Range:       spreadRange(profile.MeanACPower, profile.StdDev*spreadFactor(confidence)),
		Methodology: "hourly_profile",
		Factors: []models.ContributingFactor{
			{Name: "hourly_profile", Impact: profile.MeanACPower, Confidence: confidence, Description: "historical mean output for this hour of day"},
		},
	}, nil
}

func (s *ForecastService) forecastDay(ctx context.Context, systemID string, set *trainedSet, now time.Time) (*models.ForecastResult, error) {
	confidence := s.cfg.ConfidenceDay

	if set.regression.Trained() && s.weather != nil {
		samples, err := s.weather.GetForecast(ctx, systemID, 24)
		if err == nil && len(samples) > 0 {
			var total float64
			for _, sample := range samples {
				kw, perr := set.regression.Predict(sample.IrradianceWM2)
				if perr != nil {
					break
				}
				total += kw
			}
			return &models.ForecastResult{
				Horizon:     models.HorizonDay,
				ValueKWh:    total,
				Confidence:  confidence,
				Range:       weatherRange(total, s.cfg.WeatherRangeFrac),
				Methodology: "linear_regression+weather_forecast",
				Factors: []models.ContributingFactor{
					{Name: "weather_forecast", Impact: float64(len(samples)), Confidence: confidence, Description: "hourly irradiance forecast coverage"},
					{Name: "regression_fit", Impact: set.regression.R2(), Confidence: confidence, Description: "irradiance to power fit quality"},
				},
			}, nil
		}
		if err != nil {
			s.logger.WithError(err).WithField("system_id", systemID).Warn("Weather forecast unavailable, degrading to moving average")
		}
	}

	value, err := set.movingAvg.Predict()
	if err != nil {
		return nil, err
	}
	confidence = degradedConfidence(confidence)
	return &models.ForecastResult{
		Horizon:     models.HorizonDay,
		ValueKWh:    value,
		Confidence:  confidence,
		Range:       spreadRange(value, set.dailyStd*spreadFactor(confidence)),
		Methodology: "moving_average",
		Factors: []models.ContributingFactor{
			{Name: "moving_average", Impact: value, Confidence: confidence, Description: "smoothed recent daily energy"},
		},
	}, nil
}

// forecastSpan handles the week and month horizons: a per-day estimate from
// the seasonal model when trained, otherwise the moving average, scaled by
// the calendar span.
func (s *ForecastService) forecastSpan(systemID string, set *trainedSet, now time.Time, horizon models.ForecastHorizon, days int) (*models.ForecastResult, error) {
	confidence := s.cfg.ConfidenceWeek
	if horizon == models.HorizonMonth {
		confidence = s.cfg.ConfidenceMonth
	}

	var total float64
	methodology := "moving_average"
	factors := []models.ContributingFactor{}

	if set.seasonal.Trained() {
		methodology = "seasonal_decomposition"
		for d := 1; d <= days; d++ {
			v, err := set.seasonal.Predict(now.AddDate(0, 0, d))
			if err != nil {
				return nil, err
			}
			total += v
		}
		factors = append(factors, models.ContributingFactor{
			Name: "seasonal_profile", Impact: total / float64(days), Confidence: confidence,
			Description: "day-of-year factors over the annual trend",
		})
	} else {
		perDay, err := set.movingAvg.Predict()
		if err != nil {
			return nil, err
		}
		total = perDay * float64(days)
		confidence = degradedConfidence(confidence)
		factors = append(factors, models.ContributingFactor{
			Name: "moving_average", Impact: perDay, Confidence: confidence,
			Description: "smoothed recent daily energy extrapolated over the span",
		})
	}

	spread := set.dailyStd * math.Sqrt(float64(days)) * spreadFactor(confidence)
	return &models.ForecastResult{
		Horizon:     horizon,
		ValueKWh:    total,
		Confidence:  confidence,
		Range:       spreadRange(total, spread),
		Methodology: methodology,
		Factors:     factors,
	}, nil
}

// spreadFactor widens the band as confidence drops.
func spreadFactor(confidence float64) float64 {
	return 1 + (1 - confidence)
}

func degradedConfidence(c float64) float64 {
	c *= 0.8
	if c < 0.3 {
		c = 0.3
	}
	return c
}

// weatherRange builds the band for weather-adjusted forecasts.
func weatherRange(value, frac float64) models.ForecastRange {
	delta := value * frac
	return models.ForecastRange{
		Min: value - delta,
		Max: value + delta,
		P10: value - delta*0.8,
		P50: value,
		P90: value + delta*0.8,
	}
}

// spreadRange builds the band from the historical spread.
func spreadRange(value, spread float64) models.ForecastRange {
	return models.ForecastRange{
		Min: value - spread,
		Max: value + spread,
		P10: value - spread*0.8,
		P50: value,
		P90: value + spread*0.8,
	}
}

// clampRange enforces non-negative energy and Min <= P50 <= Max.
func clampRange(result *models.ForecastResult) {
	r := &result.Range
	if result.ValueKWh < 0 {
		result.ValueKWh = 0
	}
	for _, v := range []*float64{&r.Min, &r.Max, &r.P10, &r.P50, &r.P90} {
		if *v < 0 {
			*v = 0
		}
	}
	if r.P50 > r.Max {
		r.Max = r.P50
	}
	if r.Min > r.P50 {
		r.Min = r.P50
	}
}

func daysInNextMonth(now time.Time) int {
	firstOfNext := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 1, -1).Day()
}
