package models

import (
	"fmt"
	"time"
)

// ProductionMetrics holds the electrical production measurements of a record.
type ProductionMetrics struct {
	DCPowerKW   float64 `json:"dc_power_kw" db:"dc_power_kw"`
	ACPowerKW   float64 `json:"ac_power_kw" db:"ac_power_kw"`
	EnergyKWh   float64 `json:"energy_kwh" db:"energy_kwh"`
	VoltageV    float64 `json:"voltage_v" db:"voltage_v"`
	CurrentA    float64 `json:"current_a" db:"current_a"`
	FrequencyHz float64 `json:"frequency_hz" db:"frequency_hz"`
}

// EnvironmentalMetrics holds optional sensor readings taken alongside production.
type EnvironmentalMetrics struct {
	IrradianceWM2 *float64 `json:"irradiance_wm2,omitempty" db:"irradiance_wm2"`
	AmbientTempC  *float64 `json:"ambient_temp_c,omitempty" db:"ambient_temp_c"`
	ModuleTempC   *float64 `json:"module_temp_c,omitempty" db:"module_temp_c"`
}

// PerformanceMetrics holds derived performance figures for a record.
type PerformanceMetrics struct {
	PerformanceRatio float64 `json:"performance_ratio" db:"performance_ratio"`
	Efficiency       float64 `json:"efficiency" db:"efficiency"`
	SpecificYield    float64 `json:"specific_yield" db:"specific_yield"`
	CapacityFactor   float64 `json:"capacity_factor" db:"capacity_factor"`
}

// TelemetryRecord is one time-stamped measurement for one system.
// Records are immutable once ingested.
type TelemetryRecord struct {
	SystemID          string               `json:"system_id" db:"system_id"`
	Timestamp         time.Time            `json:"timestamp" db:"timestamp"`
	Production        ProductionMetrics    `json:"production"`
	Environmental     EnvironmentalMetrics `json:"environmental"`
	Performance       PerformanceMetrics   `json:"performance"`
	QualityConfidence float64              `json:"quality_confidence" db:"quality_confidence"`
}

// Validate rejects records that cannot be evaluated by any detection method.
func (r *TelemetryRecord) Validate() error {
	if r.SystemID == "" {
		return fmt.Errorf("telemetry record missing system id")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("telemetry record missing timestamp")
	}
	if r.QualityConfidence < 0 || r.QualityConfidence > 1 {
		return fmt.Errorf("quality confidence %.3f outside [0,1]", r.QualityConfidence)
	}
	if r.Production.DCPowerKW < 0 || r.Production.ACPowerKW < 0 {
		return fmt.Errorf("negative power reading")
	}
	return nil
}
