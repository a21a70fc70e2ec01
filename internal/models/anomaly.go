package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnomalyType classifies what kind of deviation was observed.
type AnomalyType string

const (
	AnomalyProductionDrop         AnomalyType = "production_drop"
	AnomalyEfficiencyLoss         AnomalyType = "efficiency_loss"
	AnomalyEquipmentMalfunction   AnomalyType = "equipment_malfunction"
	AnomalyWeatherInconsistency   AnomalyType = "weather_inconsistency"
	AnomalyPerformanceDegradation AnomalyType = "performance_degradation"
	AnomalyCommunicationLoss      AnomalyType = "communication_loss"
	AnomalySeasonalDeviation      AnomalyType = "seasonal_deviation"
	AnomalyDataQuality            AnomalyType = "data_quality"
)

// AnomalyCategory groups anomalies by their likely origin.
type AnomalyCategory string

const (
	CategoryStatistical AnomalyCategory = "statistical"
	CategoryEquipment   AnomalyCategory = "equipment_fault"
	CategoryWeather     AnomalyCategory = "weather"
	CategoryDegradation AnomalyCategory = "degradation"
	CategoryMeasurement AnomalyCategory = "measurement"
)

// Severity ranks anomalies for alerting purposes.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AnomalyStatus tracks the lifecycle of a detected anomaly.
type AnomalyStatus string

const (
	StatusActive        AnomalyStatus = "active"
	StatusInvestigating AnomalyStatus = "investigating"
	StatusResolved      AnomalyStatus = "resolved"
	StatusFalsePositive AnomalyStatus = "false_positive"
)

// Terminal reports whether the status admits no further transitions.
func (s AnomalyStatus) Terminal() bool {
	return s == StatusResolved || s == StatusFalsePositive
}

// AnomalyContext is a snapshot of conditions at detection time.
type AnomalyContext struct {
	CurrentValue  float64  `json:"current_value"`
	ExpectedValue float64  `json:"expected_value"`
	Deviation     float64  `json:"deviation"`
	ZScore        float64  `json:"z_score,omitempty"`
	IrradianceWM2 *float64 `json:"irradiance_wm2,omitempty"`
	AmbientTempC  *float64 `json:"ambient_temp_c,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// ImpactEstimate quantifies the consequences of an anomaly.
type ImpactEstimate struct {
	ProductionLossKWh float64         `json:"production_loss_kwh"`
	EfficiencyDropPct float64         `json:"efficiency_drop_pct"`
	FinancialImpact   decimal.Decimal `json:"financial_impact"`
	CO2OffsetLossKg   float64         `json:"co2_offset_loss_kg"`
	Urgency           string          `json:"urgency"`
}

// Recommendation is one ranked remedial action attached to an anomaly.
type Recommendation struct {
	Action        string          `json:"action"`
	Priority      int             `json:"priority"`
	Category      string          `json:"category"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	EstimatedTime string          `json:"estimated_time"`
	RequiredSkill string          `json:"required_skill"`
}

// Feedback is the operator's verdict recorded at acknowledgement time. It is
// the only tuning input the engine keeps.
type Feedback struct {
	Accurate  bool      `json:"accurate"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Anomaly is an accepted detection result. Append-only once created except
// for status, acknowledgement and feedback fields.
type Anomaly struct {
	ID              string           `json:"id" db:"id"`
	SystemID        string           `json:"system_id" db:"system_id"`
	Timestamp       time.Time        `json:"timestamp" db:"timestamp"`
	Type            AnomalyType      `json:"type" db:"type"`
	Category        AnomalyCategory  `json:"category" db:"category"`
	Severity        Severity         `json:"severity" db:"severity"`
	Score           float64          `json:"score" db:"score"`
	Confidence      float64          `json:"confidence" db:"confidence"`
	DetectedBy      []string         `json:"detected_by"`
	Context         AnomalyContext   `json:"context"`
	Impact          ImpactEstimate   `json:"impact"`
	Recommendations []Recommendation `json:"recommendations"`
	Status          AnomalyStatus    `json:"status" db:"status"`
	Acknowledged    bool             `json:"acknowledged" db:"acknowledged"`
	AcknowledgedBy  string           `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt  *time.Time       `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	Feedback        *Feedback        `json:"feedback,omitempty"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// AnomalyFilter narrows a listing query.
type AnomalyFilter struct {
	From       *time.Time      `json:"from,omitempty" form:"from"`
	To         *time.Time      `json:"to,omitempty" form:"to"`
	Severities []Severity      `json:"severities,omitempty" form:"severities"`
	Statuses   []AnomalyStatus `json:"statuses,omitempty" form:"statuses"`
	Limit      int             `json:"limit,omitempty" form:"limit"`
}

// AnomalyStatistics is the aggregate view exposed to dashboards.
type AnomalyStatistics struct {
	TotalAnomalies    int64   `json:"total_anomalies"`
	CriticalAnomalies int64   `json:"critical_anomalies"`
	FalsePositives    int64   `json:"false_positives"`
	AverageScore      float64 `json:"average_score"`
	Accuracy          float64 `json:"accuracy"`
}
