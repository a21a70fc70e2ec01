package models

import (
	"fmt"
	"time"
)

// DetectionMethod names one pluggable detection method.
type DetectionMethod string

const (
	MethodStatistical DetectionMethod = "statistical_outlier"
	MethodThreshold   DetectionMethod = "threshold_violation"
	MethodTrend       DetectionMethod = "trend_analysis"
	MethodComparative DetectionMethod = "comparative"
	MethodPhysics     DetectionMethod = "physics_invariant"
	MethodPattern     DetectionMethod = "pattern_recognition"
)

// ExclusionType names a condition under which detection is skipped entirely.
type ExclusionType string

const (
	ExclusionLowIrradiance ExclusionType = "low_irradiance"
	ExclusionMaintenance   ExclusionType = "maintenance"
	ExclusionGridEvent     ExclusionType = "grid_event"
	ExclusionManual        ExclusionType = "manual"
)

// ExclusionCondition is one configured skip rule, evaluated in config order.
type ExclusionCondition struct {
	Type    ExclusionType `json:"type"`
	Enabled bool          `json:"enabled"`
	// MinIrradianceWM2 applies to low_irradiance exclusions.
	MinIrradianceWM2 float64 `json:"min_irradiance_wm2,omitempty"`
	// WindowStart/WindowEnd bound maintenance and grid-event exclusions,
	// including the configured buffer.
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// SeverityThresholds maps anomaly scores to severities. Values must be
// strictly increasing: Info < Warning < Critical.
type SeverityThresholds struct {
	Info     float64 `json:"info"`
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// Validate enforces the monotonic ordering the scoring logic depends on.
func (t SeverityThresholds) Validate() error {
	if !(t.Info < t.Warning && t.Warning < t.Critical) {
		return fmt.Errorf("severity thresholds must be strictly increasing: info=%.2f warning=%.2f critical=%.2f",
			t.Info, t.Warning, t.Critical)
	}
	return nil
}

// FrequencyLimits caps the alert rate for a system.
type FrequencyLimits struct {
	MaxPerHour      int `json:"max_per_hour"`
	MaxPerDay       int `json:"max_per_day"`
	CooldownMinutes int `json:"cooldown_minutes"`
}

// ImpactMinimums filters out anomalies whose estimated impact clears none of
// the configured floors. An anomaly passes when it clears any one of them.
type ImpactMinimums struct {
	ProductionLossKWh float64 `json:"production_loss_kwh"`
	EfficiencyDropPct float64 `json:"efficiency_drop_pct"`
	FinancialImpact   float64 `json:"financial_impact"`
}

// DetectionConfig is the per-system detection tuning.
type DetectionConfig struct {
	SystemID       string               `json:"system_id" db:"system_id"`
	Enabled        bool                 `json:"enabled" db:"enabled"`
	Sensitivity    string               `json:"sensitivity" db:"sensitivity"`
	Methods        []DetectionMethod    `json:"methods"`
	Thresholds     SeverityThresholds   `json:"thresholds"`
	Limits         FrequencyLimits      `json:"limits"`
	ImpactMinimums ImpactMinimums       `json:"impact_minimums"`
	Exclusions     []ExclusionCondition `json:"exclusions"`
	CapacityKW     float64              `json:"capacity_kw" db:"capacity_kw"`
	UpdatedAt      time.Time            `json:"updated_at" db:"updated_at"`
}

// MethodEnabled reports whether the named method should run.
func (c *DetectionConfig) MethodEnabled(m DetectionMethod) bool {
	for _, enabled := range c.Methods {
		if enabled == m {
			return true
		}
	}
	return false
}

// Validate checks the pieces the orchestrator depends on.
func (c *DetectionConfig) Validate() error {
	if c.SystemID == "" {
		return fmt.Errorf("detection config missing system id")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.Limits.MaxPerHour < 0 || c.Limits.MaxPerDay < 0 || c.Limits.CooldownMinutes < 0 {
		return fmt.Errorf("frequency limits must be non-negative")
	}
	return nil
}
