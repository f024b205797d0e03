package models

import "time"

// CorrelationSignal is one component signal of a correlation instance.
type CorrelationSignal struct {
	Key        SignalKey `json:"key"`
	Severity   Severity  `json:"severity"`
	DetectedAt time.Time `json:"detected_at"`
	Present    bool      `json:"present"`
}

// CorrelationEvidence is the ephemeral input to confidence calculation for
// one correlation instance.
type CorrelationEvidence struct {
	CorrelationKey string              `json:"correlation_key"`
	Signals        []CorrelationSignal `json:"signals"`
	RequiredCount  int                 `json:"required_count"`
	// Recurrence holds, per evaluated cycle (most recent first), whether every
	// required signal was simultaneously present.
	Recurrence []bool `json:"recurrence"`
}

// ConfidenceBreakdown carries the final confidence together with every
// sub-score that produced it. Confidence is never a bare number.
type ConfidenceBreakdown struct {
	Completeness      float64 `json:"completeness"`
	SeverityAlignment float64 `json:"severity_alignment"`
	TemporalProximity float64 `json:"temporal_proximity"`
	Recurrence        float64 `json:"recurrence"`
	Confidence        float64 `json:"confidence"`
}
