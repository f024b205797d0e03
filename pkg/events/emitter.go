// Package events handles event emission for signal lifecycle changes and
// calibration outcomes.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/kafka"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes Sage's outbound events
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitLifecycleTransition emits a persistence state transition. Notification
// routing keys off these.
func (e *Emitter) EmitLifecycleTransition(ctx context.Context, lc *models.SignalLifecycle, from models.PersistenceState) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLifecycleTransition")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version":  SchemaVersion,
		"lifecycle_id":    lc.ID,
		"from":            from.String(),
		"to":              lc.Persistence.String(),
		"severity":        lc.CurrentSeverity.String(),
		"detection_count": lc.DetectionCount,
	})

	event := &kafka.IntelligenceEvent{
		EventType:  "lifecycle.transitioned",
		TenantID:   lc.TenantID,
		SignalType: lc.SignalType,
		EntityID:   lc.EntityID,
		Data:       data,
	}

	if err := e.producer.PublishIntelligenceEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit lifecycle.transitioned event")
		return err
	}
	return nil
}

// EmitEscalation emits a severity escalation, whether evaluator-driven or
// chronic-age.
func (e *Emitter) EmitEscalation(ctx context.Context, lc *models.SignalLifecycle, escalation models.EscalationEvent) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEscalation")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"lifecycle_id":   lc.ID,
		"old_severity":   escalation.OldSeverity.String(),
		"new_severity":   escalation.NewSeverity.String(),
		"trigger":        string(escalation.Trigger),
		"reason":         escalation.Reason,
	})

	event := &kafka.IntelligenceEvent{
		EventType:  "signal.escalated",
		TenantID:   lc.TenantID,
		SignalType: lc.SignalType,
		EntityID:   lc.EntityID,
		Data:       data,
	}

	if err := e.producer.PublishIntelligenceEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit signal.escalated event")
		return err
	}
	return nil
}

// EmitCleared emits a lifecycle clearing with its resolution kind.
func (e *Emitter) EmitCleared(ctx context.Context, lc *models.SignalLifecycle) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCleared")
	defer span.End()

	resolution := string(models.ResolutionUnknown)
	if lc.Resolution != nil {
		resolution = string(*lc.Resolution)
	}

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"lifecycle_id":   lc.ID,
		"resolution":     resolution,
		"cleared_at":     lc.ClearedAt,
	})

	event := &kafka.IntelligenceEvent{
		EventType:  "signal.cleared",
		TenantID:   lc.TenantID,
		SignalType: lc.SignalType,
		EntityID:   lc.EntityID,
		Data:       data,
	}

	if err := e.producer.PublishIntelligenceEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit signal.cleared event")
		return err
	}
	return nil
}

// EmitCalibrationReport emits the outcome of a calibration run for the
// operator-facing reporting component.
func (e *Emitter) EmitCalibrationReport(ctx context.Context, report *models.CalibrationReport) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCalibrationReport")
	defer span.End()

	data, err := json.Marshal(report)
	if err != nil {
		return err
	}

	event := &kafka.IntelligenceEvent{
		EventType: "calibration.completed",
		TenantID:  report.TenantID,
		Data:      data,
	}

	if err := e.producer.PublishIntelligenceEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit calibration.completed event")
		return err
	}
	return nil
}
