// Package lifecycle maintains per-signal detection history and the
// persistence state machine:
//
//	new -> {recent, ongoing, chronic, escalating, resolving} -> cleared
//
// Cleared rows are retained with resolution metadata; re-detection after
// clearing opens a fresh lifecycle generation.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/sage/pkg/calendar"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Repository is the persistence boundary the tracker needs. The full
// implementation lives in internal/repositories/signallifecycle.
type Repository interface {
	// GetActive returns the open lifecycle for a signal key, or nil when
	// none exists.
	GetActive(ctx context.Context, tenantID string, key models.SignalKey) (*models.SignalLifecycle, error)
	// Save upserts a lifecycle row.
	Save(ctx context.Context, lifecycle *models.SignalLifecycle) error
}

// Config holds the classification boundaries, all in business days.
type Config struct {
	RecentMaxBusinessDays  int
	OngoingMaxBusinessDays int
	// ChronicEscalationBusinessDays is how long a chronic signal may sit at
	// the lowest severity tier before it auto-escalates one tier.
	ChronicEscalationBusinessDays int
	// HistoryMaxItems bounds the escalation history kept per row.
	HistoryMaxItems int
}

// DefaultConfig returns the stock classification boundaries.
func DefaultConfig() Config {
	return Config{
		RecentMaxBusinessDays:         3,
		OngoingMaxBusinessDays:        10,
		ChronicEscalationBusinessDays: 14,
		HistoryMaxItems:               50,
	}
}

// Result describes what a detection did to a lifecycle.
type Result struct {
	Lifecycle     *models.SignalLifecycle
	PreviousState models.PersistenceState
	IsNew         bool
	Escalated     bool
	AutoEscalated bool
}

// Tracker applies detection events to signal lifecycles.
type Tracker struct {
	repo   Repository
	cal    *calendar.Calendar
	config Config
	logger ectologger.Logger
}

// NewTracker creates a lifecycle tracker.
func NewTracker(repo Repository, cal *calendar.Calendar, config Config, logger ectologger.Logger) *Tracker {
	if config.RecentMaxBusinessDays <= 0 {
		config.RecentMaxBusinessDays = 3
	}
	if config.OngoingMaxBusinessDays <= config.RecentMaxBusinessDays {
		config.OngoingMaxBusinessDays = 10
	}
	if config.ChronicEscalationBusinessDays <= 0 {
		config.ChronicEscalationBusinessDays = 14
	}
	if config.HistoryMaxItems <= 0 {
		config.HistoryMaxItems = 50
	}
	return &Tracker{
		repo:   repo,
		cal:    cal,
		config: config,
		logger: logger,
	}
}

// ProcessDetection applies one detection event from the external signal
// evaluator and persists the updated lifecycle.
func (t *Tracker) ProcessDetection(ctx context.Context, event models.DetectionEvent) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Tracker.ProcessDetection")
	defer span.End()

	log := t.logger.WithContext(ctx).WithFields(map[string]any{
		"signal_type": event.SignalType,
		"entity_id":   event.EntityID,
		"severity":    event.Severity.String(),
	})

	existing, err := t.repo.GetActive(ctx, event.TenantID, event.Key())
	if err != nil {
		return nil, err
	}

	if existing == nil {
		lc := t.newLifecycle(event)
		if err := t.repo.Save(ctx, lc); err != nil {
			return nil, err
		}
		log.Info("Opened signal lifecycle")
		return &Result{Lifecycle: lc, PreviousState: models.PersistenceNew, IsNew: true}, nil
	}

	result := &Result{Lifecycle: existing, PreviousState: existing.Persistence}

	existing.DetectionCount++
	if event.CycleID != existing.LastCycleID {
		existing.ConsecutiveCycles++
		existing.LastCycleID = event.CycleID
	}
	existing.LastDetectedAt = event.DetectedAt
	if event.SeasonalActive {
		existing.SeasonalActive = true
	}

	if event.Severity > existing.CurrentSeverity {
		t.recordEscalation(existing, models.EscalationEvent{
			OccurredAt:  event.DetectedAt,
			OldSeverity: existing.CurrentSeverity,
			NewSeverity: event.Severity,
			Trigger:     models.EscalationTriggerDetection,
			Reason:      fmt.Sprintf("evaluator reported severity %s", event.Severity),
		})
		result.Escalated = true
	}
	existing.CurrentSeverity = event.Severity
	if event.Severity > existing.PeakSeverity {
		existing.PeakSeverity = event.Severity
	}

	if t.maybeAutoEscalate(existing, event.DetectedAt) {
		result.AutoEscalated = true
	}

	existing.Persistence = t.classify(existing, event)
	existing.UpdatedAt = time.Now().UTC()

	if err := t.repo.Save(ctx, existing); err != nil {
		return nil, err
	}

	if result.PreviousState != existing.Persistence {
		log.WithFields(map[string]any{
			"from": result.PreviousState.String(),
			"to":   existing.Persistence.String(),
		}).Info("Signal lifecycle transitioned")
	}

	return result, nil
}

// Clear closes the active lifecycle for a signal key. The row is retained
// with a cleared timestamp and resolution kind; it is never deleted.
func (t *Tracker) Clear(ctx context.Context, tenantID string, key models.SignalKey, clearedAt time.Time, resolution models.ResolutionKind) (*models.SignalLifecycle, error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Tracker.Clear")
	defer span.End()

	existing, err := t.repo.GetActive(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	cleared := clearedAt.UTC()
	existing.Persistence = models.PersistenceCleared
	existing.ClearedAt = &cleared
	existing.Resolution = &resolution
	existing.UpdatedAt = time.Now().UTC()

	if err := t.repo.Save(ctx, existing); err != nil {
		return nil, err
	}

	t.logger.WithContext(ctx).WithFields(map[string]any{
		"signal_type": key.SignalType,
		"entity_id":   key.EntityID,
		"resolution":  string(resolution),
	}).Info("Cleared signal lifecycle")

	return existing, nil
}

// DeriveResolution decides the resolution kind for a clearing event from
// what is known about the signal's final cycle.
func DeriveResolution(actionRecorded, healthImproved, conditionHolds bool) models.ResolutionKind {
	switch {
	case actionRecorded:
		return models.ResolutionAddressed
	case healthImproved:
		return models.ResolutionNatural
	case !conditionHolds:
		return models.ResolutionExpired
	default:
		return models.ResolutionUnknown
	}
}

func (t *Tracker) newLifecycle(event models.DetectionEvent) *models.SignalLifecycle {
	now := time.Now().UTC()
	return &models.SignalLifecycle{
		ID:                uuid.New().String(),
		TenantID:          event.TenantID,
		SignalType:        event.SignalType,
		EntityID:          event.EntityID,
		EntityKind:        event.EntityKind,
		FirstDetectedAt:   event.DetectedAt,
		LastDetectedAt:    event.DetectedAt,
		InitialSeverity:   event.Severity,
		CurrentSeverity:   event.Severity,
		PeakSeverity:      event.Severity,
		DetectionCount:    1,
		ConsecutiveCycles: 1,
		LastCycleID:       event.CycleID,
		Persistence:       models.PersistenceNew,
		SeasonalActive:    event.SeasonalActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// classify derives the persistence state. Escalation and resolution override
// the age buckets.
func (t *Tracker) classify(lc *models.SignalLifecycle, event models.DetectionEvent) models.PersistenceState {
	if lc.CurrentSeverity > lc.InitialSeverity {
		return models.PersistenceEscalating
	}
	if event.MetricTrend == models.MetricTrendTowardThreshold {
		return models.PersistenceResolving
	}

	age := t.cal.BusinessDaysBetween(lc.FirstDetectedAt, event.DetectedAt)
	switch {
	case age <= t.config.RecentMaxBusinessDays:
		return models.PersistenceRecent
	case age <= t.config.OngoingMaxBusinessDays:
		return models.PersistenceOngoing
	default:
		return models.PersistenceChronic
	}
}

// maybeAutoEscalate bumps a long-lived lowest-tier signal one tier. This is
// a lifecycle-internal escalation, distinct from evaluator-driven ones.
func (t *Tracker) maybeAutoEscalate(lc *models.SignalLifecycle, asOf time.Time) bool {
	if lc.CurrentSeverity != models.SeverityWatch {
		return false
	}

	age := t.cal.BusinessDaysBetween(lc.FirstDetectedAt, asOf)
	if age < t.config.ChronicEscalationBusinessDays {
		return false
	}

	// Only escalate once for chronic age.
	for _, e := range lc.Escalations.Data {
		if e.Trigger == models.EscalationTriggerChronicAge {
			return false
		}
	}

	t.recordEscalation(lc, models.EscalationEvent{
		OccurredAt:  asOf,
		OldSeverity: lc.CurrentSeverity,
		NewSeverity: models.SeverityOperational,
		Trigger:     models.EscalationTriggerChronicAge,
		Reason:      fmt.Sprintf("chronic at lowest severity for %d business days", age),
	})
	lc.CurrentSeverity = models.SeverityOperational
	if lc.CurrentSeverity > lc.PeakSeverity {
		lc.PeakSeverity = lc.CurrentSeverity
	}
	return true
}

func (t *Tracker) recordEscalation(lc *models.SignalLifecycle, event models.EscalationEvent) {
	history := append(lc.Escalations.Data, event)
	if len(history) > t.config.HistoryMaxItems {
		history = history[len(history)-t.config.HistoryMaxItems:]
	}
	lc.Escalations.Data = history
}
