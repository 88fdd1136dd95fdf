package reporting

import (
	"time"

	"github.com/google/uuid"
)

// KPITarget compares an operator-defined target against the current value
// for a period. Status is derived and recomputed on every pipeline run; the
// admission path never mutates it.
type KPITarget struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	Name         string    `json:"name"`
	TargetValue  float64   `json:"target_value"`
	CurrentValue float64   `json:"current_value"`
	Period       Period    `json:"period"`
	Status       KPIStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type KPIStatus string

const (
	KPIOnTrack  KPIStatus = "on_track"
	KPIAtRisk   KPIStatus = "at_risk"
	KPIBehind   KPIStatus = "behind"
	KPIExceeded KPIStatus = "exceeded"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// PredictiveInsight is a derived trend/anomaly artifact regenerated each
// pipeline run. Confidence values are fixed per category heuristics.
type PredictiveInsight struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	Category    InsightCategory `json:"category"`
	Headline    string          `json:"headline"`
	Detail      string          `json:"detail"`
	Direction   TrendDirection  `json:"direction"`
	Confidence  float64         `json:"confidence"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type InsightCategory string

const (
	InsightVolume     InsightCategory = "call_volume"
	InsightConversion InsightCategory = "conversion_rate"
	InsightDuration   InsightCategory = "call_duration"
)

type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
)

// BenchmarkData positions an account metric against fleet-wide figures.
type BenchmarkData struct {
	Metric      string  `json:"metric"`
	UserValue   float64 `json:"user_value"`
	Average     float64 `json:"average"`
	TopQuartile float64 `json:"top_quartile"`
	Percentile  float64 `json:"percentile"`
}

// CallStats is the windowed aggregate over committed call records.
type CallStats struct {
	AccountID       uuid.UUID `json:"account_id"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	TotalCalls      int64     `json:"total_calls"`
	CompletedCalls  int64     `json:"completed_calls"`
	ConvertedCalls  int64     `json:"converted_calls"`
	TotalMinutes    int64     `json:"total_minutes"`
	AverageDuration float64   `json:"average_duration"`
	CompletionRate  float64   `json:"completion_rate"`
	ConversionRate  float64   `json:"conversion_rate"` // percentage points
}

// ComplianceReport is the periodic compliance synthesis for an account.
type ComplianceReport struct {
	ID              uuid.UUID `json:"id"`
	AccountID       uuid.UUID `json:"account_id"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	TotalCalls      int64     `json:"total_calls"`
	TotalViolations int64     `json:"total_violations"`
	CompliantCalls  int64     `json:"compliant_calls"`
	Score           int       `json:"score"`

	// Discrepancy flags periods where violations exceeded calls, which
	// would otherwise drive the compliant-call count negative.
	Discrepancy     bool     `json:"discrepancy"`
	Recommendations []string `json:"recommendations"`

	GeneratedAt time.Time `json:"generated_at"`
}
