package models

import "time"

// ConfidenceTier classifies an effectiveness score purely by sample size.
type ConfidenceTier string

const (
	ConfidenceTierLow    ConfidenceTier = "low"
	ConfidenceTierMedium ConfidenceTier = "medium"
	ConfidenceTierHigh   ConfidenceTier = "high"
)

// SignalResponse is one row from the external decision journal: what a human
// did (or did not do) about one signal fire.
type SignalResponse struct {
	ID              string     `json:"id" db:"id"`
	TenantID        string     `json:"tenant_id" db:"tenant_id"`
	SignalType      string     `json:"signal_type" db:"signal_type"`
	EntityID        string     `json:"entity_id" db:"entity_id"`
	FiredAt         time.Time  `json:"fired_at" db:"fired_at"`
	Acted           bool       `json:"acted" db:"acted"`
	Dismissed       bool       `json:"dismissed" db:"dismissed"`
	RespondedAt     *time.Time `json:"responded_at,omitempty" db:"responded_at"`
	OutcomeImproved *bool      `json:"outcome_improved,omitempty" db:"outcome_improved"`
	SeasonalActive  bool       `json:"seasonal_active" db:"seasonal_active"`
}

// EffectivenessScore is the per-signal-type scoring result for one period.
type EffectivenessScore struct {
	SignalType          string         `json:"signal_type"`
	PeriodStart         time.Time      `json:"period_start"`
	PeriodEnd           time.Time      `json:"period_end"`
	FireCount           int            `json:"fire_count"`
	ActedCount          int            `json:"acted_count"`
	DismissedCount      int            `json:"dismissed_count"`
	SeasonalExcluded    int            `json:"seasonal_excluded"`
	MeanResponseLatency time.Duration  `json:"mean_response_latency"`
	ImprovementRate     float64        `json:"improvement_rate"`
	ActionRate          float64        `json:"action_rate"`
	Timeliness          float64        `json:"timeliness"`
	Effectiveness       float64        `json:"effectiveness"`
	Tier                ConfidenceTier `json:"tier"`
	// InsufficientData is set instead of a numeric score when the fire count
	// is below the configured minimum. Effectiveness is 0 and must not be
	// read when this flag is set.
	InsufficientData bool `json:"insufficient_data"`
}
