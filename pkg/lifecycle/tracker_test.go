package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/calendar"
	"github.com/Ramsey-B/sage/pkg/models"
)

// memoryRepository keeps lifecycles in a map keyed by signal key. Cleared
// rows move to a retained slice, matching the partial-unique-index contract.
type memoryRepository struct {
	active   map[models.SignalKey]*models.SignalLifecycle
	retained []*models.SignalLifecycle
	saves    int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{active: make(map[models.SignalKey]*models.SignalLifecycle)}
}

func (m *memoryRepository) GetActive(_ context.Context, _ string, key models.SignalKey) (*models.SignalLifecycle, error) {
	return m.active[key], nil
}

func (m *memoryRepository) Save(_ context.Context, lc *models.SignalLifecycle) error {
	m.saves++
	if lc.ClearedAt != nil {
		delete(m.active, lc.Key())
		m.retained = append(m.retained, lc)
		return nil
	}
	m.active[lc.Key()] = lc
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestTracker(repo Repository) *Tracker {
	return NewTracker(repo, calendar.New(calendar.DefaultConfig()), DefaultConfig(), testLogger())
}

func detection(severity models.Severity, cycleID string, at time.Time) models.DetectionEvent {
	return models.DetectionEvent{
		TenantID:   "tenant-1",
		SignalType: "delivery_velocity_drop",
		EntityID:   "entity-1",
		EntityKind: "project",
		Severity:   severity,
		CycleID:    cycleID,
		DetectedAt: at,
	}
}

// Mon Aug 3 2026.
var cycleStart = time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

func TestFirstDetectionOpensLifecycle(t *testing.T) {
	repo := newMemoryRepository()
	tracker := newTestTracker(repo)

	result, err := tracker.ProcessDetection(context.Background(), detection(models.SeverityWarning, "c1", cycleStart))
	require.NoError(t, err)

	assert.True(t, result.IsNew)
	assert.Equal(t, models.PersistenceNew, result.Lifecycle.Persistence)
	assert.Equal(t, models.SeverityWarning, result.Lifecycle.InitialSeverity)
	assert.Equal(t, models.SeverityWarning, result.Lifecycle.PeakSeverity)
	assert.Equal(t, 1, result.Lifecycle.DetectionCount)
	assert.Equal(t, 1, result.Lifecycle.ConsecutiveCycles)
	assert.NotEmpty(t, result.Lifecycle.ID)
}

func TestRepeatedDetectionAges(t *testing.T) {
	repo := newMemoryRepository()
	tracker := newTestTracker(repo)
	ctx := context.Background()

	_, err := tracker.ProcessDetection(ctx, detection(models.SeverityOperational, "c1", cycleStart))
	require.NoError(t, err)

	// Two business days later: still recent.
	result, err := tracker.ProcessDetection(ctx, detection(models.SeverityOperational, "c2", cycleStart.AddDate(0, 0, 2)))
	require.NoError(t, err)
	assert.False(t, result.IsNew)
	assert.Equal(t, models.PersistenceRecent, result.Lifecycle.Persistence)
	assert.Equal(t, 2, result.Lifecycle.DetectionCount)
	assert.Equal(t, 2, result.Lifecycle.ConsecutiveCycles)

	// Seven business days in: ongoing.
	result, err = tracker.ProcessDetection(ctx, detection(models.SeverityOperational, "c3", cycleStart.AddDate(0, 0, 9)))
	require.NoError(t, err)
	assert.Equal(t, models.PersistenceOngoing, result.Lifecycle.Persistence)

	// Sixteen calendar days = 12 business days: chronic. Severity stays
	// above watch, so no auto-escalation fires.
	result, err = tracker.ProcessDetection(ctx, detection(models.SeverityOperational, "c4", cycleStart.AddDate(0, 0, 16)))
	require.NoError(t, err)
	assert.Equal(t, models.PersistenceChronic, result.Lifecycle.Persistence)
	assert.False(t, result.AutoEscalated)
}

func TestSeverityIncreaseEscalates(t *testing.T) {
	repo := newMemoryRepository()
	tracker := newTestTracker(repo)
	ctx := context.Background()

	_, err := tracker.ProcessDetection(ctx, detection(models.SeverityOperational, "c1", cycleStart))
	require.NoError(t, err)

	// Escalation overrides the age bucket even on day two.
	result, err := tracker.ProcessDetection(ctx, detection(models.SeverityCritical, "c2", cycleStart.AddDate(0, 0, 1)))
	require.NoError(t, err)

	assert.True(t, result.Escalated)
	assert.Equal(t, models.PersistenceEscalating, result.Lifecycle.Persistence)
	assert.Equal(t, models.SeverityCritical, result.Lifecycle.CurrentSeverity)
	assert.Equal(t, models.SeverityCritical, result.Lifecycle.PeakSeverity)
	assert.Equal(t, models.SeverityOperational, result.Lifecycle.InitialSeverity)

	require.Len(t, result.Lifecycle.Escalations.Data, 1)
	entry := result.Lifecycle.Escalations.Data[0]
	assert.Equal(t, models.EscalationTriggerDetection, entry.Trigger)
	assert.Equal(t, models.SeverityOperational, entry.OldSeverity)
	assert.Equal(t, models.SeverityCritical, entry.NewSeverity)
}

func TestSeverityDecreaseKeepsPeak(t *testing.T) {
	repo := newMemoryRepository()
	tracker := newTestTracker(repo)
	ctx := context.Background()

	_, err := tracker.ProcessDetection(ctx, detection(models.SeverityCritical, "c1", cycleStart))
	require.NoError(t, err)

	result, err := tracker.ProcessDetection(ctx, detection(models.SeverityWarning, "c2", cycleStart.AddDate(0, 0, 1)))
	require.NoError(t, err)

	assert.False(t, result.Escalated)
	assert.Equal(t, models.SeverityWarning, result.Lifecycle.CurrentSeverity)
	assert.Equal(t, models.SeverityCritical, result.Lifecycle.PeakSeverity)
}

func TestMetricTrendTowardThresholdResolves(t *testing.T) {
	repo := newMemoryRepository()
	tracker := newTestTracker(repo)
	ctx := context.Background()

	_, err := tracker.ProcessDetection(ctx, detection(models.SeverityWarning, "c1", cycleStart))
	require.NoError(t, err)

	event := detection(models.SeverityWarning, "c2", cycleStart.AddDate(0, 0, 9))
	event.MetricTrend = models.MetricTrendTowardThreshold

	result, err := tracker.ProcessDetection(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, models.PersistenceResolving, result.Lifecycle.Persistence)
}

func TestChronicWatchAutoEscalatesOnce(t *testing.T) {
	repo := newMemoryRepository()
	tracker := newTestTracker(repo)
	ctx := context.Background()

	_, err := tracker.ProcessDetection(ctx, detection(models.SeverityWatch, "c1", cycleStart))
	require.NoError(t, err)

	// 20 calendar days later is comfortably past 14 business days.
	result, err := tracker.ProcessDetection(ctx, detection(models.SeverityWatch, "c2", cycleStart.AddDate(0, 0, 20)))
	require.NoError(t, err)

	assert.True(t, result.AutoEscalated)
	assert.Equal(t, models.SeverityOperational, result.Lifecycle.CurrentSeverity)
	// The bump raises current above initial, so the state is escalating.
	assert.Equal(t, models.PersistenceEscalating, result.Lifecycle.Persistence)

	require.Len(t, result.Lifecycle.Escalations.Data, 1)
	assert.Equal(t, models.EscalationTriggerChronicAge, result.Lifecycle.Escalations.Data[0].Trigger)

	// A later watch-severity detection must not escalate again.
	result, err = tracker.ProcessDetection(ctx, detection(models.SeverityWatch, "c3", cycleStart.AddDate(0, 0, 25)))
	require.NoError(t, err)
	assert.False(t, result.AutoEscalated)
	assert.Len(t, result.Lifecycle.Escalations.Data, 1)
}

func TestClearRetainsRow(t *testing.T) {
	repo := newMemoryRepository()
	tracker := newTestTracker(repo)
	ctx := context.Background()

	event := detection(models.SeverityWarning, "c1", cycleStart)
	_, err := tracker.ProcessDetection(ctx, event)
	require.NoError(t, err)

	clearedAt := cycleStart.AddDate(0, 0, 5)
	cleared, err := tracker.Clear(ctx, "tenant-1", event.Key(), clearedAt, models.ResolutionAddressed)
	require.NoError(t, err)
	require.NotNil(t, cleared)

	assert.Equal(t, models.PersistenceCleared, cleared.Persistence)
	require.NotNil(t, cleared.ClearedAt)
	assert.Equal(t, clearedAt, *cleared.ClearedAt)
	require.NotNil(t, cleared.Resolution)
	assert.Equal(t, models.ResolutionAddressed, *cleared.Resolution)

	// The row is retained, not deleted.
	require.Len(t, repo.retained, 1)
	assert.Empty(t, repo.active)

	// Re-detection opens a fresh generation.
	result, err := tracker.ProcessDetection(ctx, detection(models.SeverityWatch, "c9", clearedAt.AddDate(0, 0, 1)))
	require.NoError(t, err)
	assert.True(t, result.IsNew)
	assert.NotEqual(t, cleared.ID, result.Lifecycle.ID)
}

func TestClearWithoutActiveLifecycle(t *testing.T) {
	repo := newMemoryRepository()
	tracker := newTestTracker(repo)

	cleared, err := tracker.Clear(context.Background(), "tenant-1", models.SignalKey{SignalType: "x", EntityID: "y"}, cycleStart, models.ResolutionExpired)
	require.NoError(t, err)
	assert.Nil(t, cleared)
	assert.Zero(t, repo.saves)
}

func TestDeriveResolution(t *testing.T) {
	tests := []struct {
		name           string
		actionRecorded bool
		healthImproved bool
		conditionHolds bool
		expected       models.ResolutionKind
	}{
		{"action wins", true, true, true, models.ResolutionAddressed},
		{"improvement without action", false, true, true, models.ResolutionNatural},
		{"condition lapsed", false, false, false, models.ResolutionExpired},
		{"nothing established", false, false, true, models.ResolutionUnknown},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, DeriveResolution(test.actionRecorded, test.healthImproved, test.conditionHolds))
		})
	}
}

func TestSeasonalFlagSticks(t *testing.T) {
	repo := newMemoryRepository()
	tracker := newTestTracker(repo)
	ctx := context.Background()

	first := detection(models.SeverityWarning, "c1", cycleStart)
	first.SeasonalActive = true
	_, err := tracker.ProcessDetection(ctx, first)
	require.NoError(t, err)

	// A later detection outside the seasonal window does not unset the flag.
	result, err := tracker.ProcessDetection(ctx, detection(models.SeverityWarning, "c2", cycleStart.AddDate(0, 0, 1)))
	require.NoError(t, err)
	assert.True(t, result.Lifecycle.SeasonalActive)
}
