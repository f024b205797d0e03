package models

import (
	"fmt"
	"time"
)

// AttentionLevel is the strict-priority attention classification of a profile.
type AttentionLevel int

const (
	AttentionStable AttentionLevel = iota
	AttentionNormal
	AttentionElevated
	AttentionUrgent
)

func (a AttentionLevel) String() string {
	switch a {
	case AttentionStable:
		return "stable"
	case AttentionNormal:
		return "normal"
	case AttentionElevated:
		return "elevated"
	case AttentionUrgent:
		return "urgent"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// StabilityLabel aggregates pattern trends for an entity.
type StabilityLabel string

const (
	StabilityStabilizing   StabilityLabel = "stabilizing"
	StabilityNeutral       StabilityLabel = "neutral"
	StabilityDestabilizing StabilityLabel = "destabilizing"
)

// TrendDirection classifies a weighted regression slope.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendStable    TrendDirection = "stable"
	TrendDeclining TrendDirection = "declining"
)

// TrendResult is the output of a recency-weighted trend fit.
type TrendResult struct {
	Direction      TrendDirection `json:"direction"`
	Slope          float64        `json:"slope"`
	WeightedMean   float64        `json:"weighted_mean"`
	UnweightedMean float64        `json:"unweighted_mean"`
	MeanDelta      float64        `json:"mean_delta"`
	Confidence     float64        `json:"confidence"`
	SampleCount    int            `json:"sample_count"`
}

// TrajectoryProjection is the forward projection of an entity's composite
// health with an uncertainty band from regression residual spread.
type TrajectoryProjection struct {
	Current        float64        `json:"current"`
	Projected      float64        `json:"projected"`
	UnitsAhead     int            `json:"units_ahead"`
	UpperBound     float64        `json:"upper_bound"`
	LowerBound     float64        `json:"lower_bound"`
	Direction      TrendDirection `json:"direction"`
	Confidence     float64        `json:"confidence"`
}

// ActiveSignal is a signal with its lifecycle fields as shown on a profile.
type ActiveSignal struct {
	SignalType      string           `json:"signal_type"`
	Severity        Severity         `json:"severity"`
	Persistence     PersistenceState `json:"persistence"`
	FirstDetectedAt time.Time        `json:"first_detected_at"`
	BusinessDaysAge int              `json:"business_days_age"`
	EscalationCount int              `json:"escalation_count"`
}

// ActivePattern is a pattern with its trend as shown on a profile.
type ActivePattern struct {
	PatternKey string       `json:"pattern_key"`
	Trend      PatternTrend `json:"trend"`
	Confidence float64      `json:"confidence"`
}

// CompoundRisk is a cross-signal finding with its confidence breakdown.
type CompoundRisk struct {
	CorrelationKey string              `json:"correlation_key"`
	Label          string              `json:"label"`
	Structural     bool                `json:"structural"`
	Confidence     ConfidenceBreakdown `json:"confidence"`
}

// SignalTrendDirection compares current vs prior-cycle severity-weighted
// signal load.
type SignalTrendDirection string

const (
	SignalTrendRising  SignalTrendDirection = "rising"
	SignalTrendFlat    SignalTrendDirection = "flat"
	SignalTrendFalling SignalTrendDirection = "falling"
)

// CostProfile carries the entity's cost data onto the profile unchanged.
type CostProfile struct {
	Currency      string  `json:"currency"`
	PeriodCost    float64 `json:"period_cost"`
	BudgetPercent float64 `json:"budget_percent"`
}

// RecommendedAction is one template-driven action on a profile.
type RecommendedAction struct {
	Priority int    `json:"priority"`
	Action   string `json:"action"`
	Basis    string `json:"basis"`
}

// EntityIntelligenceProfile is the synthesized read model. It is rebuilt
// fresh from persisted inputs on every request or cycle; it is never a
// source of truth.
type EntityIntelligenceProfile struct {
	TenantID        string               `json:"tenant_id"`
	EntityID        string               `json:"entity_id"`
	EntityKind      string               `json:"entity_kind"`
	EntityName      string               `json:"entity_name"`
	HealthScore     float64              `json:"health_score"`
	HealthByDim     map[string]float64   `json:"health_by_dimension"`
	Trajectory      TrajectoryProjection `json:"trajectory"`
	ActiveSignals   []ActiveSignal       `json:"active_signals"`
	SignalTrend     SignalTrendDirection `json:"signal_trend"`
	ActivePatterns  []ActivePattern      `json:"active_patterns"`
	Stability       StabilityLabel       `json:"stability"`
	CompoundRisks   []CompoundRisk       `json:"compound_risks"`
	Cost            *CostProfile         `json:"cost,omitempty"`
	Attention       AttentionLevel       `json:"attention"`
	Narrative       string               `json:"narrative"`
	Recommendations []RecommendedAction  `json:"recommendations"`
	NextReviewAt    time.Time            `json:"next_review_at"`
	SynthesizedAt   time.Time            `json:"synthesized_at"`
}
