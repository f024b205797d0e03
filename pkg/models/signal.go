package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity is the closed set of signal severity tiers, ordered from least to
// most severe.
type Severity int

const (
	SeverityWatch Severity = iota
	SeverityOperational
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWatch:
		return "watch"
	case SeverityOperational:
		return "operational"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ParseSeverity converts a stored label back into a Severity.
func ParseSeverity(label string) (Severity, error) {
	switch label {
	case "watch":
		return SeverityWatch, nil
	case "operational":
		return SeverityOperational, nil
	case "warning":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityWatch, fmt.Errorf("unknown severity %q", label)
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParseSeverity(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MetricTrend describes where the signal's underlying metric is heading
// relative to its threshold, as reported by the external evaluator.
type MetricTrend int

const (
	MetricTrendNone MetricTrend = iota
	MetricTrendTowardThreshold
	MetricTrendAwayFromThreshold
)

func (t MetricTrend) String() string {
	switch t {
	case MetricTrendTowardThreshold:
		return "toward_threshold"
	case MetricTrendAwayFromThreshold:
		return "away_from_threshold"
	default:
		return "none"
	}
}

// ParseMetricTrend converts a wire label back into a MetricTrend.
func ParseMetricTrend(label string) (MetricTrend, error) {
	switch label {
	case "toward_threshold":
		return MetricTrendTowardThreshold, nil
	case "away_from_threshold":
		return MetricTrendAwayFromThreshold, nil
	case "none", "":
		return MetricTrendNone, nil
	default:
		return MetricTrendNone, fmt.Errorf("unknown metric trend %q", label)
	}
}

func (t MetricTrend) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *MetricTrend) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParseMetricTrend(label)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SignalKey identifies a unique signal: one signal type observed on one entity.
type SignalKey struct {
	SignalType string `json:"signal_type"`
	EntityID   string `json:"entity_id"`
}

func (k SignalKey) String() string {
	return k.SignalType + ":" + k.EntityID
}

// DetectionEvent is one raw detection from the external signal evaluator.
// Sage never decides whether a condition fires, only what it means once fired.
type DetectionEvent struct {
	TenantID       string          `json:"tenant_id"`
	SignalType     string          `json:"signal_type"`
	EntityID       string          `json:"entity_id"`
	EntityKind     string          `json:"entity_kind"`
	Severity       Severity        `json:"severity"`
	MetricTrend    MetricTrend     `json:"metric_trend"`
	Evidence       json.RawMessage `json:"evidence,omitempty"`
	CycleID        string          `json:"cycle_id"`
	SeasonalActive bool            `json:"seasonal_active"`
	DetectedAt     time.Time       `json:"detected_at"`
}

func (e DetectionEvent) Key() SignalKey {
	return SignalKey{SignalType: e.SignalType, EntityID: e.EntityID}
}

// ClearingEvent is the evaluator's notice that a signal's condition no longer
// holds. The flags feed resolution-kind derivation.
type ClearingEvent struct {
	TenantID       string    `json:"tenant_id"`
	SignalType     string    `json:"signal_type"`
	EntityID       string    `json:"entity_id"`
	CycleID        string    `json:"cycle_id"`
	ActionRecorded bool      `json:"action_recorded"`
	HealthImproved bool      `json:"health_improved"`
	ConditionHolds bool      `json:"condition_holds"`
	ClearedAt      time.Time `json:"cleared_at"`
}

func (e ClearingEvent) Key() SignalKey {
	return SignalKey{SignalType: e.SignalType, EntityID: e.EntityID}
}
