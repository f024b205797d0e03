package models

import (
	"fmt"
	"time"
)

// PatternSnapshot is one row per (pattern key, evaluation cycle).
type PatternSnapshot struct {
	ID               string    `json:"id" db:"id"`
	TenantID         string    `json:"tenant_id" db:"tenant_id"`
	PatternKey       string    `json:"pattern_key" db:"pattern_key"`
	CycleID          string    `json:"cycle_id" db:"cycle_id"`
	EntityCount      int       `json:"entity_count" db:"entity_count"`
	EvidenceStrength float64   `json:"evidence_strength" db:"evidence_strength"`
	Present          bool      `json:"present" db:"present"`
	ObservedAt       time.Time `json:"observed_at" db:"observed_at"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// PatternTrend is the classified trend direction of a pattern.
type PatternTrend int

const (
	PatternTrendNew PatternTrend = iota
	PatternTrendPersistent
	PatternTrendWorsening
	PatternTrendResolving
	PatternTrendInconclusive
)

func (t PatternTrend) String() string {
	switch t {
	case PatternTrendNew:
		return "new"
	case PatternTrendPersistent:
		return "persistent"
	case PatternTrendWorsening:
		return "worsening"
	case PatternTrendResolving:
		return "resolving"
	case PatternTrendInconclusive:
		return "inconclusive"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// PatternTrendResult is the analyzer output: the classification plus how
// confidently the rule matched.
type PatternTrendResult struct {
	PatternKey     string       `json:"pattern_key"`
	Trend          PatternTrend `json:"trend"`
	Confidence     float64      `json:"confidence"`
	PriorPresence  int          `json:"prior_presence"`
	PresentNow     bool         `json:"present_now"`
	EntityCountNow int          `json:"entity_count_now"`
	StrengthNow    float64      `json:"strength_now"`
}
