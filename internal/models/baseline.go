package models

import "time"

// BaselineStatistics summarizes the performance-ratio series for a system
// over the historical window.
type BaselineStatistics struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}

// HourlyProfile is the seasonal signal for one hour of the day. Hours with no
// samples have a nil slot in Baseline.HourlyProfiles and carry no seasonal
// signal.
type HourlyProfile struct {
	Hour        int     `json:"hour"`
	MeanACPower float64 `json:"mean_ac_power_kw"`
	StdDev      float64 `json:"std_dev"`
	SampleCount int     `json:"sample_count"`
}

// Baseline holds the rolling statistics and seasonal hourly profile used by
// the statistical and seasonal detection methods.
type Baseline struct {
	SystemID       string             `json:"system_id"`
	WindowDays     int                `json:"window_days"`
	SampleCount    int                `json:"sample_count"`
	Statistics     BaselineStatistics `json:"statistics"`
	ACPowerStats   BaselineStatistics `json:"ac_power_stats"`
	EfficiencyStat BaselineStatistics `json:"efficiency_stats"`
	HourlyProfiles [24]*HourlyProfile `json:"hourly_profiles"`
	ComputedAt     time.Time          `json:"computed_at"`
}

// Stale reports whether the baseline has outlived the historical window it
// was built from and must be rebuilt.
func (b *Baseline) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(b.ComputedAt) > maxAge
}

// ProfileForHour returns the seasonal profile for the given hour of day, or
// nil when that hour carries no seasonal signal.
func (b *Baseline) ProfileForHour(hour int) *HourlyProfile {
	if hour < 0 || hour > 23 {
		return nil
	}
	return b.HourlyProfiles[hour]
}
