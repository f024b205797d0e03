package models

import "time"

// HealthScore is one per-entity, per-cycle, per-dimension score row produced
// by the external scoring component. Read-only input to sage.
type HealthScore struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	EntityKind string    `json:"entity_kind" db:"entity_kind"`
	CycleID    string    `json:"cycle_id" db:"cycle_id"`
	Dimension  string    `json:"dimension" db:"dimension"`
	Score      float64   `json:"score" db:"score"`
	ScoredAt   time.Time `json:"scored_at" db:"scored_at"`
}

// Well-known health dimensions. The scoring component may add more; sage
// treats dimensions as open strings and only weights the ones it knows.
const (
	DimensionFinancial      = "financial"
	DimensionDelivery       = "delivery"
	DimensionEngagement     = "engagement"
	DimensionResponsiveness = "responsiveness"
)
