package calibration

import (
	"context"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/effectiveness"
	"github.com/Ramsey-B/sage/pkg/events"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/redis"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// JournalSource is the decision journal boundary the runner scores from.
type JournalSource interface {
	SignalTypes(ctx context.Context, tenantID string, from, to time.Time) ([]string, error)
	ListBySignalType(ctx context.Context, tenantID, signalType string, from, to time.Time) ([]models.SignalResponse, error)
}

// RunnerConfig holds the orchestration parameters.
type RunnerConfig struct {
	LookbackDays int
	LockTTL      time.Duration
}

// Runner orchestrates a full calibration pass: score every signal type over
// the lookback window, then hand the scores to the calibrator. Live runs and
// rollbacks hold a per-tenant distributed lock, because two concurrent
// calibrations against the same configuration would race the version swap.
type Runner struct {
	journal    JournalSource
	scorer     *effectiveness.Scorer
	calibrator *Calibrator
	locker     *redis.Locker
	emitter    *events.Emitter
	config     RunnerConfig
	logger     ectologger.Logger
}

// NewRunner creates a calibration runner.
func NewRunner(journal JournalSource, scorer *effectiveness.Scorer, calibrator *Calibrator, locker *redis.Locker, emitter *events.Emitter, config RunnerConfig, logger ectologger.Logger) *Runner {
	if config.LookbackDays <= 0 {
		config.LookbackDays = 90
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 2 * time.Minute
	}
	return &Runner{
		journal:    journal,
		scorer:     scorer,
		calibrator: calibrator,
		locker:     locker,
		emitter:    emitter,
		config:     config,
		logger:     logger,
	}
}

// Run executes one calibration pass. Dry-run reads only and needs no lock.
func (r *Runner) Run(ctx context.Context, tenantID string, dryRun bool, now time.Time) (*models.CalibrationReport, error) {
	ctx, span := tracing.StartSpan(ctx, "calibration.Runner.Run")
	defer span.End()

	scores, err := r.scoreAll(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	if dryRun {
		report, err := r.calibrator.Apply(ctx, tenantID, scores, true, now)
		r.record(tenantID, "dry_run", report, err)
		return report, err
	}

	var report *models.CalibrationReport
	lockErr := r.locker.WithLock(ctx, "calibration:"+tenantID, r.config.LockTTL, func() error {
		var applyErr error
		report, applyErr = r.calibrator.Apply(ctx, tenantID, scores, false, now)
		return applyErr
	})
	r.record(tenantID, "live", report, lockErr)
	if lockErr != nil {
		return nil, lockErr
	}

	if err := r.emitter.EmitCalibrationReport(ctx, report); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("Calibration report event not emitted")
	}

	return report, nil
}

// Rollback restores the latest backup under the same lock a live run holds.
func (r *Runner) Rollback(ctx context.Context, tenantID string, now time.Time) (*models.CalibrationReport, error) {
	ctx, span := tracing.StartSpan(ctx, "calibration.Runner.Rollback")
	defer span.End()

	var report *models.CalibrationReport
	lockErr := r.locker.WithLock(ctx, "calibration:"+tenantID, r.config.LockTTL, func() error {
		var rollbackErr error
		report, rollbackErr = r.calibrator.Rollback(ctx, tenantID, now)
		return rollbackErr
	})
	r.record(tenantID, "rollback", report, lockErr)
	if lockErr != nil {
		return nil, lockErr
	}

	if err := r.emitter.EmitCalibrationReport(ctx, report); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("Calibration report event not emitted")
	}

	return report, nil
}

func (r *Runner) scoreAll(ctx context.Context, tenantID string, now time.Time) ([]models.EffectivenessScore, error) {
	from := now.AddDate(0, 0, -r.config.LookbackDays)

	signalTypes, err := r.journal.SignalTypes(ctx, tenantID, from, now)
	if err != nil {
		return nil, err
	}

	scores := make([]models.EffectivenessScore, 0, len(signalTypes))
	for _, signalType := range signalTypes {
		responses, err := r.journal.ListBySignalType(ctx, tenantID, signalType, from, now)
		if err != nil {
			return nil, err
		}
		scores = append(scores, r.scorer.Score(signalType, responses, from, now))
	}
	return scores, nil
}

func (r *Runner) record(tenantID, mode string, report *models.CalibrationReport, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordCalibrationRun(tenantID, mode, outcome)

	if report == nil {
		return
	}
	skipped := ectolinq.Filter(report.Proposals, func(p models.CalibrationProposal) bool { return p.Skip })
	for _, p := range skipped {
		metrics.RecordCalibrationSkip(tenantID, string(p.Reason))
	}
}
