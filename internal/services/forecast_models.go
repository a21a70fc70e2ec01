package services

import (
	"fmt"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

// ForecastModel is one trainable production prediction model. Train must
// succeed before Predict is usable.
type ForecastModel interface {
	Name() string
	Train(records []models.TelemetryRecord) error
	Trained() bool
}

// LinearRegressionModel predicts power output from irradiance with an
// ordinary least squares fit over the training window.
type LinearRegressionModel struct {
	slope     float64
	intercept float64
	r2        float64
	trained   bool
	samples   int
}

// NewLinearRegressionModel creates an untrained regression model.
func NewLinearRegressionModel() *LinearRegressionModel {
	return &LinearRegressionModel{}
}

func (m *LinearRegressionModel) Name() string  { return "linear_regression" }
func (m *LinearRegressionModel) Trained() bool { return m.trained }

// R2 reports the fit quality after training.
func (m *LinearRegressionModel) R2() float64 { return m.r2 }

// Train fits power against irradiance. Records without an irradiance reading
// are skipped.
func (m *LinearRegressionModel) Train(records []models.TelemetryRecord) error {
	var xs, ys []float64
	for i := range records {
		irr := records[i].Environmental.IrradianceWM2
		if irr == nil {
			continue
		}
		xs = append(xs, *irr)
		ys = append(ys, records[i].Production.ACPowerKW)
	}
	if len(xs) < 2 {
		return fmt.Errorf("%w: %d usable irradiance samples", ErrInsufficientData, len(xs))
	}

	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return fmt.Errorf("%w: zero irradiance variance", ErrInsufficientData)
	}
	m.slope = (n*sumXY - sumX*sumY) / denom
	m.intercept = (sumY - m.slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i := range xs {
		fit := m.intercept + m.slope*xs[i]
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
		ssRes += (ys[i] - fit) * (ys[i] - fit)
	}
	if ssTot > 0 {
		m.r2 = 1 - ssRes/ssTot
	}

	m.samples = len(xs)
	m.trained = true
	return nil
}

// Predict returns expected power in kW for an irradiance level. Negative
// fits clamp to zero.
func (m *LinearRegressionModel) Predict(irradianceWM2 float64) (float64, error) {
	if !m.trained {
		return 0, fmt.Errorf("%w: linear regression", ErrModelNotTrained)
	}
	v := m.intercept + m.slope*irradianceWM2
	if v < 0 {
		v = 0
	}
	return v, nil
}

// MovingAverageModel smooths daily energy with a simple moving average.
type MovingAverageModel struct {
	window   int
	smoothed []float64
	trained  bool
}

// NewMovingAverageModel creates a moving average model over the given
// window length in days.
func NewMovingAverageModel(window int) *MovingAverageModel {
	if window <= 0 {
		window = 7
	}
	return &MovingAverageModel{window: window}
}

func (m *MovingAverageModel) Name() string  { return "moving_average" }
func (m *MovingAverageModel) Trained() bool { return m.trained }

// Train smooths the daily energy series.
func (m *MovingAverageModel) Train(records []models.TelemetryRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: empty daily energy series", ErrInsufficientData)
	}

	values := make([]float64, len(records))
	for i := range records {
		values[i] = records[i].Production.EnergyKWh
	}

	window := m.window
	if window > len(values) {
		window = len(values)
	}
	smaIndicator := trend.NewSmaWithPeriod[float64](window)
	m.smoothed = helper.ChanToSlice(smaIndicator.Compute(helper.SliceToChan(values)))
	m.trained = true
	return nil
}

// Predict returns the most recent smoothed daily energy, or zero when the
// smoothed series came out empty.
func (m *MovingAverageModel) Predict() (float64, error) {
	if !m.trained {
		return 0, fmt.Errorf("%w: moving average", ErrModelNotTrained)
	}
	if len(m.smoothed) == 0 {
		return 0, nil
	}
	return m.smoothed[len(m.smoothed)-1], nil
}

// SeasonalDecompositionModel captures the annual cycle as per-day-of-year
// factors over a trend line. It needs at least a full year of daily data.
type SeasonalDecompositionModel struct {
	minSamples int
	factors    map[int]float64
	trendBase  float64
	trendSlope float64
	daysSeen   int
	lastDay    time.Time
	trained    bool
}

// NewSeasonalDecompositionModel creates an untrained seasonal model.
func NewSeasonalDecompositionModel(minSamples int) *SeasonalDecompositionModel {
	if minSamples <= 0 {
		minSamples = 365
	}
	return &SeasonalDecompositionModel{minSamples: minSamples}
}

func (m *SeasonalDecompositionModel) Name() string  { return "seasonal_decomposition" }
func (m *SeasonalDecompositionModel) Trained() bool { return m.trained }

// Train decomposes daily energy into a linear trend and day-of-year factors.
func (m *SeasonalDecompositionModel) Train(records []models.TelemetryRecord) error {
	if len(records) < m.minSamples {
		return fmt.Errorf("%w: %d daily samples, need %d", ErrInsufficientData, len(records), m.minSamples)
	}

	values := make([]float64, len(records))
	var sum float64
	for i := range records {
		values[i] = records[i].Production.EnergyKWh
		sum += values[i]
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return fmt.Errorf("%w: flat zero production series", ErrInsufficientData)
	}

	slope, _ := olsSlope(values)

	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i := range records {
		doy := records[i].Timestamp.YearDay()
		// Factor against the detrended level so the annual shape is not
		// polluted by multi-year drift.
		level := mean + slope*(float64(i)-float64(len(values))/2)
		if level <= 0 {
			level = mean
		}
		sums[doy] += values[i] / level
		counts[doy]++
	}

	factors := make(map[int]float64, len(sums))
	for doy, s := range sums {
		factors[doy] = s / float64(counts[doy])
	}

	m.factors = factors
	m.trendBase = mean
	m.trendSlope = slope
	m.daysSeen = len(values)
	m.lastDay = records[len(records)-1].Timestamp
	m.trained = true
	return nil
}

// Predict returns expected daily energy for a calendar date: the trend
// projection scaled by the day-of-year factor. Days never observed fall back
// to factor 1.
func (m *SeasonalDecompositionModel) Predict(date time.Time) (float64, error) {
	if !m.trained {
		return 0, fmt.Errorf("%w: seasonal decomposition", ErrModelNotTrained)
	}

	daysAhead := date.Sub(m.lastDay).Hours() / 24
	level := m.trendBase + m.trendSlope*(float64(m.daysSeen)/2+daysAhead)
	if level < 0 {
		level = 0
	}

	factor, ok := m.factors[date.YearDay()]
	if !ok {
		factor = 1
	}
	return level * factor, nil
}
