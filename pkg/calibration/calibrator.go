// Package calibration tunes signal thresholds from effectiveness evidence.
//
// Threshold configuration is copy-on-write: a run reads the current version,
// writes a full backup, then writes a new version and swaps the current
// pointer. Nothing is ever edited in place, and a failed backup aborts the
// run before any mutation.
package calibration

import (
	"context"
	"math"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// ConfigStore is the threshold configuration boundary. Implemented by
// internal/repositories/thresholdconfig.
type ConfigStore interface {
	// GetCurrent returns the version the evaluator is reading.
	GetCurrent(ctx context.Context, tenantID string) (*models.ThresholdConfig, error)
	// WriteBackup snapshots a version into a new non-current row.
	WriteBackup(ctx context.Context, source models.ThresholdConfig) (*models.ThresholdConfig, error)
	// WriteNewVersion inserts a new document version and atomically makes it
	// current.
	WriteNewVersion(ctx context.Context, tenantID string, doc models.ThresholdDocument) (*models.ThresholdConfig, error)
	// GetLatestBackup returns the most recent backup row, or nil when none
	// exists.
	GetLatestBackup(ctx context.Context, tenantID string) (*models.ThresholdConfig, error)
}

// AdjustmentLog is the append-only calibration history. Implemented by
// internal/repositories/calibrationlog.
type AdjustmentLog interface {
	Append(ctx context.Context, adjustment *models.CalibrationAdjustment) error
	// RecentApplied returns the latest applied adjustments for a signal type,
	// newest first.
	RecentApplied(ctx context.Context, tenantID, signalType string, limit int) ([]models.CalibrationAdjustment, error)
}

// Config holds the calibration safety parameters.
type Config struct {
	// MaxAdjustmentPercent caps the magnitude of any single adjustment.
	MaxAdjustmentPercent float64
	// CooldownDays blocks re-adjusting a signal type that changed recently.
	CooldownDays int
	// LowBand and HighBand bound the no-change zone: effectiveness below
	// LowBand raises the threshold, above HighBand lowers it.
	LowBand  float64
	HighBand float64
}

// DefaultConfig returns the stock calibration parameters.
func DefaultConfig() Config {
	return Config{
		MaxAdjustmentPercent: 30,
		CooldownDays:         14,
		LowBand:              0.4,
		HighBand:             0.75,
	}
}

// ErrBackupFailed wraps a backup write failure. It is the only calibration
// error treated as fatal: proceeding without a backup would be unrecoverable.
var ErrBackupFailed = errors.New("calibration backup write failed")

// Calibrator proposes, applies, and rolls back threshold adjustments.
type Calibrator struct {
	store  ConfigStore
	log    AdjustmentLog
	config Config
	logger ectologger.Logger
}

// NewCalibrator creates a threshold calibrator.
func NewCalibrator(store ConfigStore, log AdjustmentLog, config Config, logger ectologger.Logger) *Calibrator {
	if config.MaxAdjustmentPercent <= 0 {
		config.MaxAdjustmentPercent = 30
	}
	if config.CooldownDays <= 0 {
		config.CooldownDays = 14
	}
	if config.LowBand <= 0 {
		config.LowBand = 0.4
	}
	if config.HighBand <= config.LowBand {
		config.HighBand = 0.75
	}
	return &Calibrator{
		store:  store,
		log:    log,
		config: config,
		logger: logger,
	}
}

// Propose computes one signal type's adjustment without touching persisted
// state. Insufficient samples, an active cooldown, and oscillation all
// produce a skip with a reason code rather than an error.
func (c *Calibrator) Propose(ctx context.Context, tenantID string, score models.EffectivenessScore, current models.ThresholdDefinition, now time.Time) (models.CalibrationProposal, error) {
	proposal := models.CalibrationProposal{
		SignalType:    score.SignalType,
		PreviousValue: current.Value,
		ProposedValue: current.Value,
		CappedValue:   current.Value,
		FinalValue:    current.Value,
		Direction:     models.DirectionNone,
		Tier:          score.Tier,
		Evidence: models.AdjustmentEvidence{
			FireCount:        score.FireCount,
			ActedCount:       score.ActedCount,
			DismissedCount:   score.DismissedCount,
			Effectiveness:    score.Effectiveness,
			Tier:             string(score.Tier),
			SeasonalExcluded: score.SeasonalExcluded,
		},
	}

	if score.InsufficientData {
		proposal.Skip = true
		proposal.Reason = models.ReasonInsufficientSamples
		return proposal, nil
	}

	guarded, reason, err := c.safetyGuard(ctx, tenantID, score.SignalType, now)
	if err != nil {
		return proposal, err
	}
	if guarded {
		proposal.Skip = true
		proposal.Reason = reason
		return proposal, nil
	}

	direction, reason, rawPercent := c.rawAdjustment(score.Effectiveness)
	proposal.Reason = reason
	if direction == models.DirectionNone {
		proposal.Skip = true
		return proposal, nil
	}

	cappedPercent := math.Min(rawPercent, c.config.MaxAdjustmentPercent)

	sign := 1.0
	if direction == models.DirectionLower {
		sign = -1.0
	}
	proposal.ProposedValue = current.Value * (1 + sign*rawPercent/100)
	proposal.CappedValue = current.Value * (1 + sign*cappedPercent/100)
	proposal.FinalValue = RoundForUnit(proposal.CappedValue, current.Unit)
	proposal.Direction = direction

	// Rounding can collapse a small move back onto the current value.
	if proposal.FinalValue == current.Value {
		proposal.Skip = true
		proposal.Reason = models.ReasonNoChangeNeeded
		proposal.Direction = models.DirectionNone
	}

	return proposal, nil
}

// Apply runs a calibration pass over every scored signal type. Dry-run, the
// default, computes and reports without writing anything. Live mode writes a
// backup of the current version before any mutation, applies the non-skipped
// proposals as one new version, and appends one adjustment record per signal
// type, applied or skipped. A report is always returned, even when every
// proposal was skipped.
func (c *Calibrator) Apply(ctx context.Context, tenantID string, scores []models.EffectivenessScore, dryRun bool, now time.Time) (*models.CalibrationReport, error) {
	ctx, span := tracing.StartSpan(ctx, "calibration.Calibrator.Apply")
	defer span.End()

	report := &models.CalibrationReport{
		RunID:    uuid.New().String(),
		TenantID: tenantID,
		DryRun:   dryRun,
		RanAt:    now,
	}

	currentConfig, err := c.store.GetCurrent(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	doc := currentConfig.Document.Data

	for _, score := range scores {
		definition, ok := doc.Thresholds[score.SignalType]
		if !ok {
			continue
		}

		proposal, err := c.Propose(ctx, tenantID, score, definition, now)
		if err != nil {
			return nil, err
		}
		proposal.Evidence.LookbackDays = int(score.PeriodEnd.Sub(score.PeriodStart).Hours() / 24)

		report.Proposals = append(report.Proposals, proposal)
		if proposal.Skip {
			report.SkippedCount++
		} else {
			report.AppliedCount++
		}
	}

	if dryRun {
		return report, nil
	}

	// Backup before any mutation. A failed backup aborts the whole run; a
	// half-applied calibration without one would be unrecoverable.
	backup, err := c.store.WriteBackup(ctx, *currentConfig)
	if err != nil {
		return nil, errors.Wrap(ErrBackupFailed, err.Error())
	}
	report.BackupVersion = &backup.Version

	if report.AppliedCount > 0 {
		updated := doc.Clone()
		for _, p := range report.Proposals {
			if p.Skip {
				continue
			}
			definition := updated.Thresholds[p.SignalType]
			definition.Value = p.FinalValue
			updated.Thresholds[p.SignalType] = definition
		}

		newVersion, err := c.store.WriteNewVersion(ctx, tenantID, updated)
		if err != nil {
			return nil, err
		}
		report.NewVersion = &newVersion.Version
	}

	for _, p := range report.Proposals {
		record := adjustmentRecord(tenantID, report.RunID, p, now)
		record.BackupVersion = report.BackupVersion
		if err := c.log.Append(ctx, record); err != nil {
			return nil, err
		}
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":  report.RunID,
		"applied": report.AppliedCount,
		"skipped": report.SkippedCount,
	}).Info("Calibration run completed")

	return report, nil
}

// Rollback restores the most recent backup as a new current version and
// records the restoration in the adjustment log. History is never mutated;
// the rollback appends.
func (c *Calibrator) Rollback(ctx context.Context, tenantID string, now time.Time) (*models.CalibrationReport, error) {
	ctx, span := tracing.StartSpan(ctx, "calibration.Calibrator.Rollback")
	defer span.End()

	backup, err := c.store.GetLatestBackup(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if backup == nil {
		return nil, errors.New("no calibration backup to restore")
	}

	currentConfig, err := c.store.GetCurrent(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	restored, err := c.store.WriteNewVersion(ctx, tenantID, backup.Document.Data.Clone())
	if err != nil {
		return nil, err
	}

	report := &models.CalibrationReport{
		RunID:         uuid.New().String(),
		TenantID:      tenantID,
		RanAt:         now,
		BackupVersion: &backup.Version,
		NewVersion:    &restored.Version,
	}

	currentDoc := currentConfig.Document.Data
	for signalType, def := range backup.Document.Data.Thresholds {
		previous, ok := currentDoc.Thresholds[signalType]
		if !ok || previous.Value == def.Value {
			continue
		}

		record := &models.CalibrationAdjustment{
			ID:            uuid.New().String(),
			TenantID:      tenantID,
			RunID:         report.RunID,
			SignalType:    signalType,
			PreviousValue: previous.Value,
			ProposedValue: def.Value,
			CappedValue:   def.Value,
			FinalValue:    def.Value,
			Direction:     directionOf(previous.Value, def.Value),
			Reason:        models.ReasonRolledBack,
			Applied:       true,
			RolledBack:    true,
			BackupVersion: &backup.Version,
			CreatedAt:     now,
		}
		if err := c.log.Append(ctx, record); err != nil {
			return nil, err
		}
		report.AppliedCount++
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":           report.RunID,
		"restored_version": backup.Version,
	}).Info("Calibration rolled back")

	return report, nil
}

// safetyGuard checks the cooldown window and the oscillation guard against
// the applied-adjustment history.
func (c *Calibrator) safetyGuard(ctx context.Context, tenantID, signalType string, now time.Time) (bool, models.AdjustmentReason, error) {
	recent, err := c.log.RecentApplied(ctx, tenantID, signalType, 2)
	if err != nil {
		return false, "", err
	}
	if len(recent) == 0 {
		return false, "", nil
	}

	cooldown := time.Duration(c.config.CooldownDays) * 24 * time.Hour
	if now.Sub(recent[0].CreatedAt) < cooldown {
		return true, models.ReasonCooldownActive, nil
	}

	if len(recent) == 2 && opposed(recent[0].Direction, recent[1].Direction) {
		return true, models.ReasonOscillationGuard, nil
	}

	return false, "", nil
}

// rawAdjustment maps effectiveness to a direction and an uncapped adjustment
// percentage: the further outside the no-change band, the larger the move.
func (c *Calibrator) rawAdjustment(effectiveness float64) (models.AdjustmentDirection, models.AdjustmentReason, float64) {
	switch {
	case effectiveness < c.config.LowBand:
		// Low effectiveness: the signal fires without being useful, so raise
		// the threshold to make it less sensitive.
		return models.DirectionRaise, models.ReasonLowEffectiveness, (c.config.LowBand - effectiveness) * 100
	case effectiveness > c.config.HighBand:
		// High effectiveness: the signal earns attention, so lower the
		// threshold to catch conditions earlier.
		return models.DirectionLower, models.ReasonHighEffectiveness, (effectiveness - c.config.HighBand) * 100
	default:
		return models.DirectionNone, models.ReasonNoChangeNeeded, 0
	}
}

// RoundForUnit rounds an adjusted value to the precision appropriate for the
// threshold's unit: whole numbers for counts, one decimal for percentages,
// the nearest five for day counts.
func RoundForUnit(value float64, unit models.ThresholdUnit) float64 {
	switch unit {
	case models.ThresholdUnitCount:
		return math.Round(value)
	case models.ThresholdUnitPercent:
		return math.Round(value*10) / 10
	case models.ThresholdUnitDays:
		return math.Round(value/5) * 5
	default:
		return value
	}
}

func adjustmentRecord(tenantID, runID string, p models.CalibrationProposal, now time.Time) *models.CalibrationAdjustment {
	return &models.CalibrationAdjustment{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		RunID:         runID,
		SignalType:    p.SignalType,
		PreviousValue: p.PreviousValue,
		ProposedValue: p.ProposedValue,
		CappedValue:   p.CappedValue,
		FinalValue:    p.FinalValue,
		Direction:     p.Direction,
		Reason:        p.Reason,
		Tier:          p.Tier,
		Applied:       !p.Skip,
		Skipped:       p.Skip,
		Evidence:      database.JSONB[models.AdjustmentEvidence]{Data: p.Evidence},
		CreatedAt:     now,
	}
}

func directionOf(from, to float64) models.AdjustmentDirection {
	switch {
	case to > from:
		return models.DirectionRaise
	case to < from:
		return models.DirectionLower
	default:
		return models.DirectionNone
	}
}

func opposed(a, b models.AdjustmentDirection) bool {
	return (a == models.DirectionRaise && b == models.DirectionLower) ||
		(a == models.DirectionLower && b == models.DirectionRaise)
}
