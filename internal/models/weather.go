package models

import "time"

// WeatherSample is one observation or forecast point from the external
// weather integration.
type WeatherSample struct {
	Timestamp     time.Time `json:"timestamp"`
	IrradianceWM2 float64   `json:"irradiance_wm2"`
	AmbientTempC  float64   `json:"ambient_temp_c"`
	CloudCoverPct float64   `json:"cloud_cover_pct"`
	WindSpeedMS   float64   `json:"wind_speed_ms"`
}

// ClosestWeatherSample returns the sample nearest to t within the tolerance,
// or nil when no sample is close enough.
func ClosestWeatherSample(samples []WeatherSample, t time.Time, tolerance time.Duration) *WeatherSample {
	var best *WeatherSample
	bestDiff := tolerance
	for i := range samples {
		diff := samples[i].Timestamp.Sub(t)
		if diff < 0 {
			diff = -diff
		}
		if diff <= bestDiff {
			best = &samples[i]
			bestDiff = diff
		}
	}
	return best
}
