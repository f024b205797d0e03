// Package correlation scores multi-signal correlation instances. The output
// is always a full breakdown, never a bare number.
package correlation

import (
	"math"
	"time"

	"github.com/Ramsey-B/sage/pkg/models"
)

const (
	weightCompleteness      = 0.35
	weightSeverityAlignment = 0.25
	weightTemporalProximity = 0.20
	weightRecurrence        = 0.20
)

// Config holds the temporal decay parameters.
type Config struct {
	// CycleHours is the evaluation cycle length. Temporal proximity decays
	// with a half-life of three cycles.
	CycleHours float64
}

// DefaultConfig returns the stock correlation parameters.
func DefaultConfig() Config {
	return Config{CycleHours: 24}
}

// Calculator computes correlation confidence from evidence.
type Calculator struct {
	config Config
}

// NewCalculator creates a correlation confidence calculator.
func NewCalculator(config Config) *Calculator {
	if config.CycleHours <= 0 {
		config.CycleHours = 24
	}
	return &Calculator{config: config}
}

// Calculate scores one correlation instance:
//
//	confidence = 0.35*completeness + 0.25*severityAlignment +
//	             0.20*temporalProximity + 0.20*recurrence
//
// clamped to [0, 1]. Every sub-score is retained in the breakdown.
func (c *Calculator) Calculate(evidence models.CorrelationEvidence, now time.Time) models.ConfidenceBreakdown {
	breakdown := models.ConfidenceBreakdown{
		Completeness:      c.completeness(evidence),
		SeverityAlignment: c.severityAlignment(evidence.Signals),
		TemporalProximity: c.temporalProximity(evidence.Signals, now),
		Recurrence:        c.recurrence(evidence.Recurrence),
	}

	confidence := weightCompleteness*breakdown.Completeness +
		weightSeverityAlignment*breakdown.SeverityAlignment +
		weightTemporalProximity*breakdown.TemporalProximity +
		weightRecurrence*breakdown.Recurrence

	breakdown.Confidence = clamp01(confidence)
	return breakdown
}

// completeness is the fraction of required component signals present.
func (c *Calculator) completeness(evidence models.CorrelationEvidence) float64 {
	if evidence.RequiredCount <= 0 {
		return 0
	}
	present := 0
	for _, s := range evidence.Signals {
		if s.Present {
			present++
		}
	}
	return clamp01(float64(present) / float64(evidence.RequiredCount))
}

// severityAlignment is 1 minus the normalized standard deviation of the
// component severities. A single signal is trivially aligned.
func (c *Calculator) severityAlignment(signals []models.CorrelationSignal) float64 {
	if len(signals) <= 1 {
		return 1.0
	}

	var mean float64
	for _, s := range signals {
		mean += float64(s.Severity)
	}
	mean /= float64(len(signals))

	var variance float64
	for _, s := range signals {
		d := float64(s.Severity) - mean
		variance += d * d
	}
	variance /= float64(len(signals))

	// The widest possible spread is half the severity range on either side
	// of the mean.
	maxStdev := float64(models.SeverityCritical-models.SeverityWatch) / 2
	return clamp01(1 - math.Sqrt(variance)/maxStdev)
}

// temporalProximity is the mean, over present signals, of an exponential
// decay with a three-cycle half-life. No present signal means 0.
func (c *Calculator) temporalProximity(signals []models.CorrelationSignal, now time.Time) float64 {
	halfLifeHours := 3 * c.config.CycleHours

	var sum float64
	present := 0
	for _, s := range signals {
		if !s.Present {
			continue
		}
		present++
		hours := now.Sub(s.DetectedAt).Hours()
		if hours < 0 {
			hours = 0
		}
		sum += math.Exp2(-hours / halfLifeHours)
	}
	if present == 0 {
		return 0
	}
	return clamp01(sum / float64(present))
}

// recurrence is the fraction of evaluated cycles in which every required
// signal was simultaneously present.
func (c *Calculator) recurrence(history []bool) float64 {
	if len(history) == 0 {
		return 0
	}
	hits := 0
	for _, all := range history {
		if all {
			hits++
		}
	}
	return float64(hits) / float64(len(history))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
