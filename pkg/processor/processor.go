// Package processor consumes the detection topic and drives the signal
// lifecycle: detections update or open lifecycles, clearings close them.
// Handlers return errors on persistence failures so the consumer redelivers;
// lifecycle writes are idempotent per (signal key, cycle).
package processor

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/events"
	"github.com/Ramsey-B/sage/pkg/kafka"
	"github.com/Ramsey-B/sage/pkg/lifecycle"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/seasonal"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Processor handles detection-topic messages
type Processor struct {
	logger   ectologger.Logger
	tracker  *lifecycle.Tracker
	emitter  *events.Emitter
	modifier *seasonal.Modifier
}

// NewProcessor creates a new detection processor
func NewProcessor(logger ectologger.Logger, tracker *lifecycle.Tracker, emitter *events.Emitter, modifier *seasonal.Modifier) *Processor {
	return &Processor{
		logger:   logger,
		tracker:  tracker,
		emitter:  emitter,
		modifier: modifier,
	}
}

// HandleMessage dispatches one parsed message from the detection topic.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.HandleMessage")
	defer span.End()

	switch {
	case msg.Detection != nil:
		return p.handleDetection(ctx, msg)
	case msg.Clearing != nil:
		return p.handleClearing(ctx, msg)
	default:
		// Parse guarantees one of the two is set; anything else was already
		// rejected.
		return nil
	}
}

func (p *Processor) handleDetection(ctx context.Context, msg *kafka.IncomingMessage) error {
	event := *msg.Detection

	// The evaluator may not know the calendar; the seasonal flag is computed
	// here so calibration evidence can exclude these fires either way.
	if !event.SeasonalActive && p.modifier.Active(event.DetectedAt) {
		event.SeasonalActive = true
	}

	result, err := p.tracker.ProcessDetection(ctx, event)
	if err != nil {
		metrics.RecordDetection(event.TenantID, event.SignalType, "error")
		return err
	}

	metrics.RecordDetection(event.TenantID, event.SignalType, "processed")

	lc := result.Lifecycle
	if result.PreviousState != lc.Persistence {
		metrics.RecordTransition(lc.TenantID, result.PreviousState.String(), lc.Persistence.String())
		if err := p.emitter.EmitLifecycleTransition(ctx, lc, result.PreviousState); err != nil {
			// Event emission is best-effort; the lifecycle row is already
			// committed and redelivery would double-count the detection.
			p.logger.WithContext(ctx).WithError(err).Warn("Lifecycle transition event not emitted")
		}
	}

	if result.Escalated || result.AutoEscalated {
		if result.AutoEscalated {
			metrics.AutoEscalations.WithLabelValues(lc.TenantID, lc.SignalType).Inc()
		}
		if n := len(lc.Escalations.Data); n > 0 {
			if err := p.emitter.EmitEscalation(ctx, lc, lc.Escalations.Data[n-1]); err != nil {
				p.logger.WithContext(ctx).WithError(err).Warn("Escalation event not emitted")
			}
		}
	}

	return nil
}

func (p *Processor) handleClearing(ctx context.Context, msg *kafka.IncomingMessage) error {
	event := *msg.Clearing

	resolution := lifecycle.DeriveResolution(event.ActionRecorded, event.HealthImproved, event.ConditionHolds)

	lc, err := p.tracker.Clear(ctx, event.TenantID, event.Key(), event.ClearedAt, resolution)
	if err != nil {
		metrics.RecordDetection(event.TenantID, event.SignalType, "error")
		return err
	}
	if lc == nil {
		// Clearing for a signal with no open lifecycle: a replay or a
		// clearing that raced its own detection. Nothing to do.
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"signal_type": event.SignalType,
			"entity_id":   event.EntityID,
		}).Debug("Clearing event with no open lifecycle")
		return nil
	}

	metrics.RecordDetection(event.TenantID, event.SignalType, "cleared")
	metrics.RecordTransition(lc.TenantID, "active", lc.Persistence.String())

	if err := p.emitter.EmitCleared(ctx, lc); err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Cleared event not emitted")
	}

	return nil
}
