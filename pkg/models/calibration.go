package models

import (
	"time"

	"github.com/Ramsey-B/sage/pkg/database"
)

// ThresholdUnit determines the rounding precision for calibration: integers
// for counts, one decimal for percentages, nearest five for day counts.
type ThresholdUnit string

const (
	ThresholdUnitCount   ThresholdUnit = "count"
	ThresholdUnitPercent ThresholdUnit = "percent"
	ThresholdUnitDays    ThresholdUnit = "days"
)

// ThresholdDefinition is one signal type's evaluation threshold.
type ThresholdDefinition struct {
	SignalType string        `json:"signal_type"`
	Value      float64       `json:"value"`
	Unit       ThresholdUnit `json:"unit"`
}

// ThresholdDocument is the structured signal-type → threshold map that the
// external evaluator reads. Stored as one immutable version per calibration.
type ThresholdDocument struct {
	Thresholds map[string]ThresholdDefinition `json:"thresholds"`
}

// Clone returns a deep copy. Seasonal modification and calibration both work
// on copies; the persisted document is never edited in place.
func (d ThresholdDocument) Clone() ThresholdDocument {
	out := ThresholdDocument{Thresholds: make(map[string]ThresholdDefinition, len(d.Thresholds))}
	for k, v := range d.Thresholds {
		out.Thresholds[k] = v
	}
	return out
}

// ThresholdConfig is one persisted version of the threshold document.
type ThresholdConfig struct {
	ID        string                              `json:"id" db:"id"`
	TenantID  string                              `json:"tenant_id" db:"tenant_id"`
	Version   int                                 `json:"version" db:"version"`
	Document  database.JSONB[ThresholdDocument]   `json:"document" db:"document"`
	IsCurrent bool                                `json:"is_current" db:"is_current"`
	// BackupOf references the version this row was snapshotted from, set on
	// backup rows written before a calibration mutates anything.
	BackupOf  *int      `json:"backup_of,omitempty" db:"backup_of"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AdjustmentDirection is which way a calibration moves a threshold.
type AdjustmentDirection string

const (
	DirectionRaise AdjustmentDirection = "raise"
	DirectionLower AdjustmentDirection = "lower"
	DirectionNone  AdjustmentDirection = "none"
)

// AdjustmentReason is the closed set of reason codes attached to every
// applied or skipped adjustment.
type AdjustmentReason string

const (
	ReasonLowEffectiveness    AdjustmentReason = "low_effectiveness"
	ReasonHighEffectiveness   AdjustmentReason = "high_effectiveness"
	ReasonInsufficientSamples AdjustmentReason = "insufficient_samples"
	ReasonCooldownActive      AdjustmentReason = "cooldown_active"
	ReasonOscillationGuard    AdjustmentReason = "oscillation_guard"
	ReasonNoChangeNeeded      AdjustmentReason = "no_change_needed"
	ReasonRolledBack          AdjustmentReason = "rolled_back"
)

// AdjustmentEvidence summarizes the effectiveness evidence behind a proposal.
type AdjustmentEvidence struct {
	FireCount        int     `json:"fire_count"`
	ActedCount       int     `json:"acted_count"`
	DismissedCount   int     `json:"dismissed_count"`
	Effectiveness    float64 `json:"effectiveness"`
	Tier             string  `json:"tier"`
	LookbackDays     int     `json:"lookback_days"`
	SeasonalExcluded int     `json:"seasonal_excluded"`
}

// CalibrationAdjustment is one immutable record per applied or skipped
// threshold change. Rollbacks append a new record, they never mutate history.
type CalibrationAdjustment struct {
	ID            string                               `json:"id" db:"id"`
	TenantID      string                               `json:"tenant_id" db:"tenant_id"`
	RunID         string                               `json:"run_id" db:"run_id"`
	SignalType    string                               `json:"signal_type" db:"signal_type"`
	PreviousValue float64                              `json:"previous_value" db:"previous_value"`
	ProposedValue float64                              `json:"proposed_value" db:"proposed_value"`
	CappedValue   float64                              `json:"capped_value" db:"capped_value"`
	FinalValue    float64                              `json:"final_value" db:"final_value"`
	Direction     AdjustmentDirection                  `json:"direction" db:"direction"`
	Reason        AdjustmentReason                     `json:"reason" db:"reason"`
	Tier          ConfidenceTier                       `json:"tier" db:"tier"`
	Applied       bool                                 `json:"applied" db:"applied"`
	Skipped       bool                                 `json:"skipped" db:"skipped"`
	Evidence      database.JSONB[AdjustmentEvidence]   `json:"evidence" db:"evidence"`
	BackupVersion *int                                 `json:"backup_version,omitempty" db:"backup_version"`
	RolledBack    bool                                 `json:"rolled_back" db:"rolled_back"`
	CreatedAt     time.Time                            `json:"created_at" db:"created_at"`
}

// CalibrationProposal is the pre-apply output of the calibrator for one
// signal type.
type CalibrationProposal struct {
	SignalType    string              `json:"signal_type"`
	PreviousValue float64             `json:"previous_value"`
	ProposedValue float64             `json:"proposed_value"`
	CappedValue   float64             `json:"capped_value"`
	FinalValue    float64             `json:"final_value"`
	Direction     AdjustmentDirection `json:"direction"`
	Reason        AdjustmentReason    `json:"reason"`
	Tier          ConfidenceTier      `json:"tier"`
	Skip          bool                `json:"skip"`
	Evidence      AdjustmentEvidence  `json:"evidence"`
}

// CalibrationReport is always produced by a calibration run, even when every
// adjustment was skipped, so an operator can see why nothing changed.
type CalibrationReport struct {
	RunID         string                `json:"run_id"`
	TenantID      string                `json:"tenant_id"`
	DryRun        bool                  `json:"dry_run"`
	RanAt         time.Time             `json:"ran_at"`
	BackupVersion *int                  `json:"backup_version,omitempty"`
	NewVersion    *int                  `json:"new_version,omitempty"`
	Proposals     []CalibrationProposal `json:"proposals"`
	AppliedCount  int                   `json:"applied_count"`
	SkippedCount  int                   `json:"skipped_count"`
}
