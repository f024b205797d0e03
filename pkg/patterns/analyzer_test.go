package patterns

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/sage/pkg/models"
)

var observedBase = time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

// snap builds one snapshot; cyclesAgo 0 is the current cycle.
func snap(cyclesAgo int, present bool, entityCount int, strength float64) models.PatternSnapshot {
	return models.PatternSnapshot{
		PatternKey:       "deadline_slip_cluster",
		CycleID:          fmt.Sprintf("cycle-%d", cyclesAgo),
		EntityCount:      entityCount,
		EvidenceStrength: strength,
		Present:          present,
		ObservedAt:       observedBase.AddDate(0, 0, -cyclesAgo),
	}
}

func TestAnalyzeNewPattern(t *testing.T) {
	a := NewAnalyzer()

	snapshots := []models.PatternSnapshot{
		snap(0, true, 4, 0.6),
		snap(1, false, 0, 0),
		snap(2, false, 0, 0),
		snap(3, false, 0, 0),
		snap(4, false, 0, 0),
		snap(5, false, 0, 0),
	}

	result := a.Analyze("deadline_slip_cluster", snapshots)
	assert.Equal(t, models.PatternTrendNew, result.Trend)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, 0, result.PriorPresence)
	assert.True(t, result.PresentNow)
}

func TestAnalyzePersistentPattern(t *testing.T) {
	a := NewAnalyzer()

	// Present in the current cycle and four of five priors, steady size.
	snapshots := []models.PatternSnapshot{
		snap(0, true, 5, 0.5),
		snap(1, true, 5, 0.5),
		snap(2, true, 5, 0.5),
		snap(3, false, 0, 0),
		snap(4, true, 5, 0.5),
		snap(5, true, 5, 0.5),
	}

	result := a.Analyze("deadline_slip_cluster", snapshots)
	assert.Equal(t, models.PatternTrendPersistent, result.Trend)
	assert.Equal(t, 4, result.PriorPresence)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestAnalyzeWorseningOverridesPersistent(t *testing.T) {
	a := NewAnalyzer()

	// Present in three priors with entity counts around 4; the current
	// count of 12 clears the prior mean by more than one stdev.
	snapshots := []models.PatternSnapshot{
		snap(0, true, 12, 0.5),
		snap(1, true, 4, 0.5),
		snap(2, true, 5, 0.5),
		snap(3, true, 3, 0.5),
		snap(4, false, 0, 0),
		snap(5, false, 0, 0),
	}

	result := a.Analyze("deadline_slip_cluster", snapshots)
	assert.Equal(t, models.PatternTrendWorsening, result.Trend)
	assert.Equal(t, 3, result.PriorPresence)
}

func TestAnalyzeWorseningByStrength(t *testing.T) {
	a := NewAnalyzer()

	// Entity counts are flat but evidence strength jumps.
	snapshots := []models.PatternSnapshot{
		snap(0, true, 5, 0.95),
		snap(1, true, 5, 0.40),
		snap(2, true, 5, 0.45),
		snap(3, true, 5, 0.42),
		snap(4, true, 5, 0.38),
		snap(5, true, 5, 0.44),
	}

	result := a.Analyze("deadline_slip_cluster", snapshots)
	assert.Equal(t, models.PatternTrendWorsening, result.Trend)
}

func TestAnalyzeResolvingPattern(t *testing.T) {
	a := NewAnalyzer()

	// Was established, absent now.
	snapshots := []models.PatternSnapshot{
		snap(0, false, 0, 0),
		snap(1, true, 5, 0.5),
		snap(2, true, 5, 0.5),
		snap(3, true, 4, 0.5),
		snap(4, true, 5, 0.5),
		snap(5, false, 0, 0),
	}

	result := a.Analyze("deadline_slip_cluster", snapshots)
	assert.Equal(t, models.PatternTrendResolving, result.Trend)
	assert.False(t, result.PresentNow)
}

func TestAnalyzeInconclusive(t *testing.T) {
	a := NewAnalyzer()

	// Absent now and barely seen before.
	snapshots := []models.PatternSnapshot{
		snap(0, false, 0, 0),
		snap(1, true, 2, 0.3),
		snap(2, false, 0, 0),
		snap(3, false, 0, 0),
		snap(4, false, 0, 0),
		snap(5, false, 0, 0),
	}

	result := a.Analyze("deadline_slip_cluster", snapshots)
	assert.Equal(t, models.PatternTrendInconclusive, result.Trend)
	assert.Equal(t, 0.0, result.Confidence)

	// No history at all.
	empty := a.Analyze("deadline_slip_cluster", nil)
	assert.Equal(t, models.PatternTrendInconclusive, empty.Trend)
}

func TestAnalyzeSparsePresenceReducesConfidence(t *testing.T) {
	a := NewAnalyzer()

	// Present now and in two priors: under the persistence floor, so the
	// closest category is reported with reduced confidence.
	snapshots := []models.PatternSnapshot{
		snap(0, true, 5, 0.5),
		snap(1, true, 5, 0.5),
		snap(2, false, 0, 0),
		snap(3, true, 5, 0.5),
		snap(4, false, 0, 0),
		snap(5, false, 0, 0),
	}

	result := a.Analyze("deadline_slip_cluster", snapshots)
	assert.Equal(t, models.PatternTrendPersistent, result.Trend)
	assert.InDelta(t, 2.0/3.0, result.Confidence, 1e-9)
}

func TestAnalyzeShortHistory(t *testing.T) {
	a := NewAnalyzer()

	// Only three cycles of history: the window coverage caps confidence.
	snapshots := []models.PatternSnapshot{
		snap(0, true, 5, 0.5),
		snap(1, false, 0, 0),
		snap(2, false, 0, 0),
	}

	result := a.Analyze("deadline_slip_cluster", snapshots)
	assert.Equal(t, models.PatternTrendNew, result.Trend)
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
}

func TestAnalyzeIgnoresSnapshotsBeyondWindow(t *testing.T) {
	a := NewAnalyzer()

	// Ten cycles of history; only the latest six count. Presence in cycles
	// 6-9 must not establish the pattern.
	snapshots := []models.PatternSnapshot{
		snap(0, true, 5, 0.5),
		snap(1, false, 0, 0),
		snap(2, false, 0, 0),
		snap(3, false, 0, 0),
		snap(4, false, 0, 0),
		snap(5, false, 0, 0),
		snap(6, true, 5, 0.5),
		snap(7, true, 5, 0.5),
		snap(8, true, 5, 0.5),
		snap(9, true, 5, 0.5),
	}

	result := a.Analyze("deadline_slip_cluster", snapshots)
	assert.Equal(t, models.PatternTrendNew, result.Trend)
	assert.Equal(t, 0, result.PriorPresence)
}

func TestAnalyzeUnorderedInput(t *testing.T) {
	a := NewAnalyzer()

	// Snapshots arrive oldest first; the analyzer must sort before reading.
	snapshots := []models.PatternSnapshot{
		snap(5, true, 5, 0.5),
		snap(4, true, 5, 0.5),
		snap(3, true, 4, 0.5),
		snap(2, true, 5, 0.5),
		snap(1, true, 5, 0.5),
		snap(0, false, 0, 0),
	}

	result := a.Analyze("deadline_slip_cluster", snapshots)
	assert.Equal(t, models.PatternTrendResolving, result.Trend)
}
