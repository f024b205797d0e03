package calibration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/effectiveness"
	"github.com/Ramsey-B/sage/pkg/models"
)

var calNow = time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

// memoryStore is an in-memory ConfigStore with an optional injected backup
// failure.
type memoryStore struct {
	versions   []models.ThresholdConfig
	failBackup error
}

func newMemoryStore(doc models.ThresholdDocument) *memoryStore {
	return &memoryStore{
		versions: []models.ThresholdConfig{{
			ID:        "v1",
			TenantID:  "tenant-1",
			Version:   1,
			Document:  database.JSONB[models.ThresholdDocument]{Data: doc},
			IsCurrent: true,
			CreatedAt: calNow.AddDate(0, 0, -60),
		}},
	}
}

func (m *memoryStore) GetCurrent(_ context.Context, _ string) (*models.ThresholdConfig, error) {
	for i := range m.versions {
		if m.versions[i].IsCurrent {
			return &m.versions[i], nil
		}
	}
	return nil, errors.New("no current threshold configuration")
}

func (m *memoryStore) WriteBackup(_ context.Context, source models.ThresholdConfig) (*models.ThresholdConfig, error) {
	if m.failBackup != nil {
		return nil, m.failBackup
	}
	backup := models.ThresholdConfig{
		TenantID:  source.TenantID,
		Version:   len(m.versions) + 1,
		Document:  database.JSONB[models.ThresholdDocument]{Data: source.Document.Data.Clone()},
		BackupOf:  &source.Version,
		CreatedAt: calNow,
	}
	m.versions = append(m.versions, backup)
	return &backup, nil
}

func (m *memoryStore) WriteNewVersion(_ context.Context, tenantID string, doc models.ThresholdDocument) (*models.ThresholdConfig, error) {
	for i := range m.versions {
		m.versions[i].IsCurrent = false
	}
	config := models.ThresholdConfig{
		TenantID:  tenantID,
		Version:   len(m.versions) + 1,
		Document:  database.JSONB[models.ThresholdDocument]{Data: doc},
		IsCurrent: true,
		CreatedAt: calNow,
	}
	m.versions = append(m.versions, config)
	return &config, nil
}

func (m *memoryStore) GetLatestBackup(_ context.Context, _ string) (*models.ThresholdConfig, error) {
	for i := len(m.versions) - 1; i >= 0; i-- {
		if m.versions[i].BackupOf != nil {
			return &m.versions[i], nil
		}
	}
	return nil, nil
}

// memoryLog is an in-memory append-only AdjustmentLog.
type memoryLog struct {
	records []models.CalibrationAdjustment
}

func (m *memoryLog) Append(_ context.Context, a *models.CalibrationAdjustment) error {
	m.records = append(m.records, *a)
	return nil
}

func (m *memoryLog) RecentApplied(_ context.Context, _, signalType string, limit int) ([]models.CalibrationAdjustment, error) {
	var out []models.CalibrationAdjustment
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.records[i]
		if r.SignalType == signalType && r.Applied && !r.RolledBack {
			out = append(out, r)
		}
	}
	return out, nil
}

func testDocument() models.ThresholdDocument {
	return models.ThresholdDocument{
		Thresholds: map[string]models.ThresholdDefinition{
			"stale_task_count":       {SignalType: "stale_task_count", Value: 10, Unit: models.ThresholdUnitCount},
			"delivery_velocity_drop": {SignalType: "delivery_velocity_drop", Value: 20, Unit: models.ThresholdUnitPercent},
			"invoice_aging_breach":   {SignalType: "invoice_aging_breach", Value: 30, Unit: models.ThresholdUnitDays},
		},
	}
}

func score(signalType string, effectiveness float64) models.EffectivenessScore {
	return models.EffectivenessScore{
		SignalType:    signalType,
		Effectiveness: effectiveness,
		FireCount:     30,
		Tier:          models.ConfidenceTierMedium,
		PeriodStart:   calNow.AddDate(0, 0, -90),
		PeriodEnd:     calNow,
	}
}

func newTestCalibrator(store ConfigStore, log AdjustmentLog) *Calibrator {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewCalibrator(store, log, DefaultConfig(), logger)
}

func TestProposeInsufficientData(t *testing.T) {
	c := newTestCalibrator(newMemoryStore(testDocument()), &memoryLog{})

	s := score("stale_task_count", 0)
	s.InsufficientData = true
	s.FireCount = 5

	proposal, err := c.Propose(context.Background(), "tenant-1", s, testDocument().Thresholds["stale_task_count"], calNow)
	require.NoError(t, err)

	assert.True(t, proposal.Skip)
	assert.Equal(t, models.ReasonInsufficientSamples, proposal.Reason)
	assert.Equal(t, 10.0, proposal.FinalValue)
}

func TestProposeInBandNoChange(t *testing.T) {
	c := newTestCalibrator(newMemoryStore(testDocument()), &memoryLog{})

	proposal, err := c.Propose(context.Background(), "tenant-1", score("stale_task_count", 0.6), testDocument().Thresholds["stale_task_count"], calNow)
	require.NoError(t, err)

	assert.True(t, proposal.Skip)
	assert.Equal(t, models.ReasonNoChangeNeeded, proposal.Reason)
	assert.Equal(t, models.DirectionNone, proposal.Direction)
}

func TestProposeLowEffectivenessRaises(t *testing.T) {
	c := newTestCalibrator(newMemoryStore(testDocument()), &memoryLog{})

	// Effectiveness 0.2 is 0.2 under the low band: a 20% raise.
	proposal, err := c.Propose(context.Background(), "tenant-1", score("delivery_velocity_drop", 0.2), testDocument().Thresholds["delivery_velocity_drop"], calNow)
	require.NoError(t, err)

	assert.False(t, proposal.Skip)
	assert.Equal(t, models.DirectionRaise, proposal.Direction)
	assert.Equal(t, models.ReasonLowEffectiveness, proposal.Reason)
	assert.InDelta(t, 24.0, proposal.ProposedValue, 1e-9)
	assert.InDelta(t, 24.0, proposal.FinalValue, 1e-9)
}

func TestProposeHighEffectivenessLowers(t *testing.T) {
	c := newTestCalibrator(newMemoryStore(testDocument()), &memoryLog{})

	// Effectiveness 0.85 is 0.1 over the high band: a 10% cut.
	proposal, err := c.Propose(context.Background(), "tenant-1", score("stale_task_count", 0.85), testDocument().Thresholds["stale_task_count"], calNow)
	require.NoError(t, err)

	assert.Equal(t, models.DirectionLower, proposal.Direction)
	assert.Equal(t, models.ReasonHighEffectiveness, proposal.Reason)
	assert.InDelta(t, 9.0, proposal.FinalValue, 1e-9)
}

func TestProposeCapsExtremeAdjustment(t *testing.T) {
	c := newTestCalibrator(newMemoryStore(testDocument()), &memoryLog{})

	// Effectiveness 0 is 0.4 under the band: raw 40%, capped at 30%.
	proposal, err := c.Propose(context.Background(), "tenant-1", score("delivery_velocity_drop", 0), testDocument().Thresholds["delivery_velocity_drop"], calNow)
	require.NoError(t, err)

	assert.InDelta(t, 28.0, proposal.ProposedValue, 1e-9)
	assert.InDelta(t, 26.0, proposal.CappedValue, 1e-9)
	assert.InDelta(t, 26.0, proposal.FinalValue, 1e-9)
}

func TestProposeRoundingPerUnit(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		unit     models.ThresholdUnit
		expected float64
	}{
		{"count rounds to integer", 10.6, models.ThresholdUnitCount, 11},
		{"percent rounds to tenth", 21.44, models.ThresholdUnitPercent, 21.4},
		{"days round to nearest five", 33.0, models.ThresholdUnitDays, 35},
		{"days round down to nearest five", 32.0, models.ThresholdUnitDays, 30},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, RoundForUnit(test.value, test.unit))
		})
	}
}

func TestProposeRoundingCollapseSkips(t *testing.T) {
	c := newTestCalibrator(newMemoryStore(testDocument()), &memoryLog{})

	// Days unit at 30: effectiveness 0.78 is 0.03 over the band, a 3% cut to
	// 29.1, which rounds back to 30. No change to apply.
	proposal, err := c.Propose(context.Background(), "tenant-1", score("invoice_aging_breach", 0.78), testDocument().Thresholds["invoice_aging_breach"], calNow)
	require.NoError(t, err)

	assert.True(t, proposal.Skip)
	assert.Equal(t, models.ReasonNoChangeNeeded, proposal.Reason)
	assert.Equal(t, models.DirectionNone, proposal.Direction)
	assert.Equal(t, 30.0, proposal.FinalValue)
}

func TestProposeCooldownSkips(t *testing.T) {
	log := &memoryLog{}
	c := newTestCalibrator(newMemoryStore(testDocument()), log)

	// An applied adjustment five days ago puts the type inside the cooldown.
	log.records = append(log.records, models.CalibrationAdjustment{
		SignalType: "stale_task_count",
		Direction:  models.DirectionRaise,
		Applied:    true,
		CreatedAt:  calNow.AddDate(0, 0, -5),
	})

	proposal, err := c.Propose(context.Background(), "tenant-1", score("stale_task_count", 0.1), testDocument().Thresholds["stale_task_count"], calNow)
	require.NoError(t, err)

	assert.True(t, proposal.Skip)
	assert.Equal(t, models.ReasonCooldownActive, proposal.Reason)
}

func TestProposeOscillationGuardSkips(t *testing.T) {
	log := &memoryLog{}
	c := newTestCalibrator(newMemoryStore(testDocument()), log)

	// The last two applied moves went opposite ways, both outside cooldown.
	log.records = append(log.records,
		models.CalibrationAdjustment{
			SignalType: "stale_task_count",
			Direction:  models.DirectionRaise,
			Applied:    true,
			CreatedAt:  calNow.AddDate(0, 0, -40),
		},
		models.CalibrationAdjustment{
			SignalType: "stale_task_count",
			Direction:  models.DirectionLower,
			Applied:    true,
			CreatedAt:  calNow.AddDate(0, 0, -20),
		},
	)

	proposal, err := c.Propose(context.Background(), "tenant-1", score("stale_task_count", 0.1), testDocument().Thresholds["stale_task_count"], calNow)
	require.NoError(t, err)

	assert.True(t, proposal.Skip)
	assert.Equal(t, models.ReasonOscillationGuard, proposal.Reason)
}

func TestApplyDryRunWritesNothing(t *testing.T) {
	store := newMemoryStore(testDocument())
	log := &memoryLog{}
	c := newTestCalibrator(store, log)

	report, err := c.Apply(context.Background(), "tenant-1", []models.EffectivenessScore{
		score("stale_task_count", 0.1),
		score("delivery_velocity_drop", 0.9),
	}, true, calNow)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.AppliedCount)
	assert.Nil(t, report.BackupVersion)
	assert.Nil(t, report.NewVersion)

	// One version, no backups, no log records.
	assert.Len(t, store.versions, 1)
	assert.Empty(t, log.records)
}

func TestApplyLiveRun(t *testing.T) {
	store := newMemoryStore(testDocument())
	log := &memoryLog{}
	c := newTestCalibrator(store, log)

	report, err := c.Apply(context.Background(), "tenant-1", []models.EffectivenessScore{
		score("stale_task_count", 0.1),       // raise 30% (capped) -> 13
		score("delivery_velocity_drop", 0.6), // in band, skipped
	}, false, calNow)
	require.NoError(t, err)

	assert.Equal(t, 1, report.AppliedCount)
	assert.Equal(t, 1, report.SkippedCount)
	require.NotNil(t, report.BackupVersion)
	require.NotNil(t, report.NewVersion)

	// The new current version carries the adjusted value; the skipped type
	// is untouched.
	current, err := store.GetCurrent(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, *report.NewVersion, current.Version)
	assert.Equal(t, 13.0, current.Document.Data.Thresholds["stale_task_count"].Value)
	assert.Equal(t, 20.0, current.Document.Data.Thresholds["delivery_velocity_drop"].Value)

	// One record per proposal, skipped included.
	require.Len(t, log.records, 2)
	for _, r := range log.records {
		assert.Equal(t, report.RunID, r.RunID)
		require.NotNil(t, r.BackupVersion)
		assert.Equal(t, *report.BackupVersion, *r.BackupVersion)
	}
}

func TestApplyAllSkippedStillReports(t *testing.T) {
	store := newMemoryStore(testDocument())
	log := &memoryLog{}
	c := newTestCalibrator(store, log)

	report, err := c.Apply(context.Background(), "tenant-1", []models.EffectivenessScore{
		score("stale_task_count", 0.5),
	}, false, calNow)
	require.NoError(t, err)

	assert.Equal(t, 0, report.AppliedCount)
	assert.Equal(t, 1, report.SkippedCount)
	require.Len(t, report.Proposals, 1)

	// Backup still written, but no new version since nothing changed.
	assert.NotNil(t, report.BackupVersion)
	assert.Nil(t, report.NewVersion)
	assert.Len(t, log.records, 1)
}

func TestApplyBackupFailureAborts(t *testing.T) {
	store := newMemoryStore(testDocument())
	store.failBackup = errors.New("disk full")
	log := &memoryLog{}
	c := newTestCalibrator(store, log)

	_, err := c.Apply(context.Background(), "tenant-1", []models.EffectivenessScore{
		score("stale_task_count", 0.1),
	}, false, calNow)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackupFailed)

	// Nothing was mutated and nothing was logged.
	current, getErr := store.GetCurrent(context.Background(), "tenant-1")
	require.NoError(t, getErr)
	assert.Equal(t, 1, current.Version)
	assert.Equal(t, 10.0, current.Document.Data.Thresholds["stale_task_count"].Value)
	assert.Empty(t, log.records)
}

func TestApplyUnknownSignalTypeIgnored(t *testing.T) {
	store := newMemoryStore(testDocument())
	c := newTestCalibrator(store, &memoryLog{})

	report, err := c.Apply(context.Background(), "tenant-1", []models.EffectivenessScore{
		score("nonexistent_signal", 0.1),
	}, true, calNow)
	require.NoError(t, err)
	assert.Empty(t, report.Proposals)
}

func TestRollbackRestoresBackup(t *testing.T) {
	store := newMemoryStore(testDocument())
	log := &memoryLog{}
	c := newTestCalibrator(store, log)
	ctx := context.Background()

	// Live run moves stale_task_count from 10 to 13.
	applyReport, err := c.Apply(ctx, "tenant-1", []models.EffectivenessScore{
		score("stale_task_count", 0.1),
	}, false, calNow)
	require.NoError(t, err)
	require.NotNil(t, applyReport.NewVersion)

	rollback, err := c.Rollback(ctx, "tenant-1", calNow.Add(time.Hour))
	require.NoError(t, err)

	// The restored document is current again, as a new version.
	current, err := store.GetCurrent(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, *rollback.NewVersion, current.Version)
	assert.Greater(t, current.Version, *applyReport.NewVersion)
	assert.Equal(t, 10.0, current.Document.Data.Thresholds["stale_task_count"].Value)

	// The rollback appended a record; the original run's history is intact.
	assert.Equal(t, 1, rollback.AppliedCount)
	require.Len(t, log.records, 2)
	last := log.records[len(log.records)-1]
	assert.Equal(t, models.ReasonRolledBack, last.Reason)
	assert.True(t, last.RolledBack)
	assert.Equal(t, 13.0, last.PreviousValue)
	assert.Equal(t, 10.0, last.FinalValue)
}

// journalResponses builds decision journal rows for one signal type: acted
// fires respond a day later without improvement, dismissed fires never do.
func journalResponses(signalType string, acted, dismissed, seasonal int, periodStart time.Time) []models.SignalResponse {
	var responses []models.SignalResponse
	add := func(count int, mutate func(r *models.SignalResponse)) {
		for i := 0; i < count; i++ {
			r := models.SignalResponse{
				ID:         uuid.New().String(),
				TenantID:   "tenant-1",
				SignalType: signalType,
				EntityID:   "entity-1",
				FiredAt:    periodStart.Add(time.Duration(len(responses)) * time.Hour),
			}
			mutate(&r)
			responses = append(responses, r)
		}
	}
	add(acted, func(r *models.SignalResponse) {
		r.Acted = true
		responded := r.FiredAt.Add(24 * time.Hour)
		r.RespondedAt = &responded
	})
	add(dismissed, func(r *models.SignalResponse) { r.Dismissed = true })
	add(seasonal, func(r *models.SignalResponse) { r.SeasonalActive = true })
	return responses
}

func TestApplyLiveRunFromScoredResponses(t *testing.T) {
	store := newMemoryStore(testDocument())
	log := &memoryLog{}
	c := newTestCalibrator(store, log)
	ctx := context.Background()

	// A mostly-dismissed signal type: 100 in-period fires, 85 dismissed and
	// 15 acted on without improvement, plus 10 seasonal fires that must not
	// count. Effectiveness 0.3*0.15 + 0.2*0.5 = 0.145, under the low band.
	periodStart := calNow.AddDate(0, 0, -90)
	responses := journalResponses("stale_task_count", 15, 85, 10, periodStart)

	eff := effectiveness.NewScorer(effectiveness.DefaultConfig()).Score("stale_task_count", responses, periodStart, calNow)
	assert.Equal(t, 100, eff.FireCount)
	assert.Equal(t, 10, eff.SeasonalExcluded)
	assert.InDelta(t, 0.145, eff.Effectiveness, 1e-9)

	report, err := c.Apply(ctx, "tenant-1", []models.EffectivenessScore{eff}, false, calNow)
	require.NoError(t, err)

	// A 25.5% raise on 10 rounds to 13, written as a new current version with
	// a backup of the old one.
	assert.Equal(t, 1, report.AppliedCount)
	require.NotNil(t, report.BackupVersion)
	require.NotNil(t, report.NewVersion)

	current, err := store.GetCurrent(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 13.0, current.Document.Data.Thresholds["stale_task_count"].Value)

	backup, err := store.GetLatestBackup(ctx, "tenant-1")
	require.NoError(t, err)
	require.NotNil(t, backup)
	assert.Equal(t, 10.0, backup.Document.Data.Thresholds["stale_task_count"].Value)

	// The adjustment record carries the journal-derived evidence.
	require.Len(t, log.records, 1)
	record := log.records[0]
	assert.Equal(t, models.DirectionRaise, record.Direction)
	assert.Equal(t, models.ReasonLowEffectiveness, record.Reason)
	assert.Equal(t, 10.0, record.PreviousValue)
	assert.Equal(t, 13.0, record.FinalValue)
	require.NotNil(t, record.BackupVersion)
	assert.Equal(t, *report.BackupVersion, *record.BackupVersion)

	evidence := record.Evidence.Data
	assert.Equal(t, 100, evidence.FireCount)
	assert.Equal(t, 15, evidence.ActedCount)
	assert.Equal(t, 85, evidence.DismissedCount)
	assert.Equal(t, 10, evidence.SeasonalExcluded)
	assert.Equal(t, 90, evidence.LookbackDays)
	assert.InDelta(t, 0.145, evidence.Effectiveness, 1e-9)
}

func TestRollbackWithoutBackup(t *testing.T) {
	c := newTestCalibrator(newMemoryStore(testDocument()), &memoryLog{})

	_, err := c.Rollback(context.Background(), "tenant-1", calNow)
	require.Error(t, err)
}
