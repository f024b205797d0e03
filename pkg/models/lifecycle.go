package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/sage/pkg/database"
)

// PersistenceState is the lifecycle classification of an active signal.
type PersistenceState int

const (
	PersistenceNew PersistenceState = iota
	PersistenceRecent
	PersistenceOngoing
	PersistenceChronic
	PersistenceEscalating
	PersistenceResolving
	PersistenceCleared
)

func (p PersistenceState) String() string {
	switch p {
	case PersistenceNew:
		return "new"
	case PersistenceRecent:
		return "recent"
	case PersistenceOngoing:
		return "ongoing"
	case PersistenceChronic:
		return "chronic"
	case PersistenceEscalating:
		return "escalating"
	case PersistenceResolving:
		return "resolving"
	case PersistenceCleared:
		return "cleared"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParsePersistenceState converts a stored label back into a PersistenceState.
func ParsePersistenceState(label string) (PersistenceState, error) {
	switch label {
	case "new":
		return PersistenceNew, nil
	case "recent":
		return PersistenceRecent, nil
	case "ongoing":
		return PersistenceOngoing, nil
	case "chronic":
		return PersistenceChronic, nil
	case "escalating":
		return PersistenceEscalating, nil
	case "resolving":
		return PersistenceResolving, nil
	case "cleared":
		return PersistenceCleared, nil
	default:
		return PersistenceNew, fmt.Errorf("unknown persistence state %q", label)
	}
}

func (p PersistenceState) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *PersistenceState) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParsePersistenceState(label)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ResolutionKind records how a cleared signal was resolved.
type ResolutionKind string

const (
	// ResolutionNatural - the health metric improved without a recorded human action.
	ResolutionNatural ResolutionKind = "natural"
	// ResolutionAddressed - a recorded action occurred while the signal was active.
	ResolutionAddressed ResolutionKind = "addressed"
	// ResolutionExpired - the detection condition no longer holds, with no action and no improvement.
	ResolutionExpired ResolutionKind = "expired"
	// ResolutionUnknown - none of the above could be established.
	ResolutionUnknown ResolutionKind = "unknown"
)

// EscalationTrigger distinguishes evaluator-driven severity changes from
// lifecycle-internal auto-escalations.
type EscalationTrigger string

const (
	EscalationTriggerDetection  EscalationTrigger = "detection"
	EscalationTriggerChronicAge EscalationTrigger = "chronic_age"
)

// EscalationEvent is one entry in a lifecycle's ordered escalation history.
type EscalationEvent struct {
	OccurredAt  time.Time         `json:"occurred_at"`
	OldSeverity Severity          `json:"old_severity"`
	NewSeverity Severity          `json:"new_severity"`
	Trigger     EscalationTrigger `json:"trigger"`
	Reason      string            `json:"reason"`
}

// SignalLifecycle is one row per unique signal key per lifecycle generation.
// Rows are retained after clearing; re-detection opens a new generation
// linked only through the shared signal key.
type SignalLifecycle struct {
	ID                string                              `json:"id" db:"id"`
	TenantID          string                              `json:"tenant_id" db:"tenant_id"`
	SignalType        string                              `json:"signal_type" db:"signal_type"`
	EntityID          string                              `json:"entity_id" db:"entity_id"`
	EntityKind        string                              `json:"entity_kind" db:"entity_kind"`
	FirstDetectedAt   time.Time                           `json:"first_detected_at" db:"first_detected_at"`
	LastDetectedAt    time.Time                           `json:"last_detected_at" db:"last_detected_at"`
	InitialSeverity   Severity                            `json:"initial_severity" db:"initial_severity"`
	CurrentSeverity   Severity                            `json:"current_severity" db:"current_severity"`
	PeakSeverity      Severity                            `json:"peak_severity" db:"peak_severity"`
	DetectionCount    int                                 `json:"detection_count" db:"detection_count"`
	ConsecutiveCycles int                                 `json:"consecutive_cycles" db:"consecutive_cycles"`
	LastCycleID       string                              `json:"last_cycle_id" db:"last_cycle_id"`
	Persistence       PersistenceState                    `json:"persistence" db:"persistence"`
	SeasonalActive    bool                                `json:"seasonal_active" db:"seasonal_active"`
	Escalations       database.JSONB[[]EscalationEvent]   `json:"escalations" db:"escalations"`
	ClearedAt         *time.Time                          `json:"cleared_at,omitempty" db:"cleared_at"`
	Resolution        *ResolutionKind                     `json:"resolution,omitempty" db:"resolution"`
	CreatedAt         time.Time                           `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time                           `json:"updated_at" db:"updated_at"`
}

// Key returns the signal key for this lifecycle.
func (l *SignalLifecycle) Key() SignalKey {
	return SignalKey{SignalType: l.SignalType, EntityID: l.EntityID}
}

// IsActive reports whether the lifecycle has not been cleared.
func (l *SignalLifecycle) IsActive() bool {
	return l.ClearedAt == nil
}

// SignalLifecycleListResponse is the response for listing lifecycles.
type SignalLifecycleListResponse struct {
	Items      []SignalLifecycle `json:"items"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
}
