package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/sage/pkg/models"
)

var calcNow = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

func signal(severity models.Severity, present bool, hoursAgo float64) models.CorrelationSignal {
	return models.CorrelationSignal{
		Key:        models.SignalKey{SignalType: "s", EntityID: "e"},
		Severity:   severity,
		Present:    present,
		DetectedAt: calcNow.Add(-time.Duration(hoursAgo * float64(time.Hour))),
	}
}

func TestCalculateStrongInstance(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	// All three required signals present, identical severity, detected this
	// cycle, recurring in all five evaluated cycles.
	evidence := models.CorrelationEvidence{
		CorrelationKey: "capacity_strain",
		RequiredCount:  3,
		Signals: []models.CorrelationSignal{
			signal(models.SeverityWarning, true, 1),
			signal(models.SeverityWarning, true, 2),
			signal(models.SeverityWarning, true, 3),
		},
		Recurrence: []bool{true, true, true, true, true},
	}

	breakdown := calc.Calculate(evidence, calcNow)

	assert.Equal(t, 1.0, breakdown.Completeness)
	assert.Equal(t, 1.0, breakdown.SeverityAlignment)
	assert.Equal(t, 1.0, breakdown.Recurrence)
	assert.Greater(t, breakdown.TemporalProximity, 0.95)
	assert.Greater(t, breakdown.Confidence, 0.8)
	assert.LessOrEqual(t, breakdown.Confidence, 1.0)
}

func TestCalculateDegradedInstance(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	// One of three signals missing, mixed severities, patchy recurrence.
	evidence := models.CorrelationEvidence{
		CorrelationKey: "capacity_strain",
		RequiredCount:  3,
		Signals: []models.CorrelationSignal{
			signal(models.SeverityWatch, true, 4),
			signal(models.SeverityCritical, true, 30),
			signal(models.SeverityWarning, false, 0),
		},
		Recurrence: []bool{true, false, true, false, false},
	}

	breakdown := calc.Calculate(evidence, calcNow)

	assert.InDelta(t, 2.0/3.0, breakdown.Completeness, 1e-9)
	assert.Less(t, breakdown.SeverityAlignment, 1.0)
	assert.InDelta(t, 0.4, breakdown.Recurrence, 1e-9)
	assert.Greater(t, breakdown.Confidence, 0.3)
	assert.Less(t, breakdown.Confidence, 0.75)
}

func TestCompleteness(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	tests := []struct {
		name     string
		present  int
		required int
		expected float64
	}{
		{"all present", 3, 3, 1.0},
		{"one of two", 1, 2, 0.5},
		{"none present", 0, 4, 0.0},
		{"zero required", 2, 0, 0.0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			signals := make([]models.CorrelationSignal, 0, test.present+1)
			for i := 0; i < test.present; i++ {
				signals = append(signals, signal(models.SeverityWatch, true, 1))
			}
			signals = append(signals, signal(models.SeverityWatch, false, 1))

			breakdown := calc.Calculate(models.CorrelationEvidence{
				RequiredCount: test.required,
				Signals:       signals,
			}, calcNow)
			assert.InDelta(t, test.expected, breakdown.Completeness, 1e-9)
		})
	}
}

func TestSeverityAlignment(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	// A single signal is trivially aligned.
	single := calc.Calculate(models.CorrelationEvidence{
		RequiredCount: 1,
		Signals:       []models.CorrelationSignal{signal(models.SeverityCritical, true, 1)},
	}, calcNow)
	assert.Equal(t, 1.0, single.SeverityAlignment)

	// Watch vs critical is the widest possible two-signal spread.
	spread := calc.Calculate(models.CorrelationEvidence{
		RequiredCount: 2,
		Signals: []models.CorrelationSignal{
			signal(models.SeverityWatch, true, 1),
			signal(models.SeverityCritical, true, 1),
		},
	}, calcNow)
	assert.InDelta(t, 0.0, spread.SeverityAlignment, 1e-9)
}

func TestTemporalProximityDecay(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	// One present signal exactly three cycles (72h) old weighs 0.5.
	breakdown := calc.Calculate(models.CorrelationEvidence{
		RequiredCount: 1,
		Signals:       []models.CorrelationSignal{signal(models.SeverityWarning, true, 72)},
	}, calcNow)
	assert.InDelta(t, 0.5, breakdown.TemporalProximity, 1e-9)

	// A future-dated detection clamps to now instead of exceeding 1.
	future := calc.Calculate(models.CorrelationEvidence{
		RequiredCount: 1,
		Signals:       []models.CorrelationSignal{signal(models.SeverityWarning, true, -5)},
	}, calcNow)
	assert.Equal(t, 1.0, future.TemporalProximity)

	// No present signals at all.
	none := calc.Calculate(models.CorrelationEvidence{
		RequiredCount: 2,
		Signals:       []models.CorrelationSignal{signal(models.SeverityWarning, false, 1)},
	}, calcNow)
	assert.Equal(t, 0.0, none.TemporalProximity)
}

func TestConfidenceStaysInRange(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	empty := calc.Calculate(models.CorrelationEvidence{}, calcNow)
	assert.GreaterOrEqual(t, empty.Confidence, 0.0)
	assert.LessOrEqual(t, empty.Confidence, 1.0)
}
