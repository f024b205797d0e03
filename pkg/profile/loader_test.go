package profile

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/models"
)

// fakeScoreSource counts queries so the batch tests can assert that the
// portfolio path never falls back to per-entity I/O.
type fakeScoreSource struct {
	byEntity map[string][]models.HealthScore

	latestCalls  int
	historyCalls int
	tenantCalls  int
}

func (f *fakeScoreSource) Latest(_ context.Context, _, entityID string) ([]models.HealthScore, error) {
	f.latestCalls++
	return latestPerDimension(f.byEntity[entityID]), nil
}

func (f *fakeScoreSource) History(_ context.Context, _, entityID string, _ time.Time) ([]models.HealthScore, error) {
	f.historyCalls++
	return f.byEntity[entityID], nil
}

func (f *fakeScoreSource) HistoryByTenant(_ context.Context, _ string, _ time.Time) (map[string][]models.HealthScore, error) {
	f.tenantCalls++
	return f.byEntity, nil
}

type fakeLifecycleSource struct {
	active map[string][]models.SignalLifecycle
	prior  map[string][]models.SignalLifecycle

	entityCalls      int
	cycleCalls       int
	tenantCalls      int
	tenantCycleCalls int
}

func (f *fakeLifecycleSource) ListActiveByEntity(_ context.Context, _, entityID string) ([]models.SignalLifecycle, error) {
	f.entityCalls++
	return f.active[entityID], nil
}

func (f *fakeLifecycleSource) ListByCycle(_ context.Context, _, entityID, _ string) ([]models.SignalLifecycle, error) {
	f.cycleCalls++
	return f.prior[entityID], nil
}

func (f *fakeLifecycleSource) ListActiveByTenant(_ context.Context, _ string) (map[string][]models.SignalLifecycle, error) {
	f.tenantCalls++
	return f.active, nil
}

func (f *fakeLifecycleSource) ListByCycleForTenant(_ context.Context, _, _ string) (map[string][]models.SignalLifecycle, error) {
	f.tenantCycleCalls++
	return f.prior, nil
}

type fakePatternSource struct {
	histories map[string][]models.PatternSnapshot
	calls     int
}

func (f *fakePatternSource) Histories(_ context.Context, _ string, _ int) (map[string][]models.PatternSnapshot, error) {
	f.calls++
	return f.histories, nil
}

func portfolioScore(entityID, dimension string, value float64, at time.Time) models.HealthScore {
	return models.HealthScore{
		TenantID:   "tenant-1",
		EntityID:   entityID,
		EntityKind: "client",
		Dimension:  dimension,
		Score:      value,
		ScoredAt:   at,
	}
}

func portfolioLifecycle(entityID, signalType string) models.SignalLifecycle {
	return models.SignalLifecycle{
		ID:         "lc-" + entityID + "-" + signalType,
		TenantID:   "tenant-1",
		SignalType: signalType,
		EntityID:   entityID,
	}
}

func newTestLoader(scores *fakeScoreSource, lifecycles *fakeLifecycleSource, patterns *fakePatternSource) *Loader {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewLoader(scores, lifecycles, patterns, newTestSynthesizer(), logger)
}

func TestLoadPortfolioQueriesOncePerSource(t *testing.T) {
	entityIDs := []string{"entity-1", "entity-2", "entity-3"}

	scores := &fakeScoreSource{byEntity: map[string][]models.HealthScore{}}
	for _, id := range entityIDs {
		scores.byEntity[id] = []models.HealthScore{
			portfolioScore(id, models.DimensionFinancial, 80, synthNow.AddDate(0, 0, -7)),
			portfolioScore(id, models.DimensionFinancial, 75, synthNow),
			portfolioScore(id, models.DimensionDelivery, 60, synthNow),
		}
	}

	lifecycles := &fakeLifecycleSource{
		active: map[string][]models.SignalLifecycle{
			"entity-1": {portfolioLifecycle("entity-1", "stale_task_count")},
		},
		prior: map[string][]models.SignalLifecycle{
			"entity-2": {portfolioLifecycle("entity-2", "invoice_aging_breach")},
		},
	}
	patternSource := &fakePatternSource{}

	l := newTestLoader(scores, lifecycles, patternSource)
	inputs, err := l.LoadPortfolio(context.Background(), "tenant-1", entityIDs, LoadOptions{PriorCycleID: "cycle-7"}, synthNow)
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	// One tenant-wide query per source regardless of batch size, and none of
	// the per-entity methods.
	assert.Equal(t, 1, scores.tenantCalls)
	assert.Equal(t, 1, lifecycles.tenantCalls)
	assert.Equal(t, 1, lifecycles.tenantCycleCalls)
	assert.Equal(t, 1, patternSource.calls)
	assert.Equal(t, 0, scores.latestCalls)
	assert.Equal(t, 0, scores.historyCalls)
	assert.Equal(t, 0, lifecycles.entityCalls)
	assert.Equal(t, 0, lifecycles.cycleCalls)

	// The grouped results are sliced back to the right entities.
	assert.Equal(t, "entity-1", inputs[0].EntityID)
	require.Len(t, inputs[0].ActiveLifecycles, 1)
	assert.Equal(t, "stale_task_count", inputs[0].ActiveLifecycles[0].SignalType)
	assert.Empty(t, inputs[0].PriorLifecycles)

	require.Len(t, inputs[1].PriorLifecycles, 1)
	assert.Equal(t, "invoice_aging_breach", inputs[1].PriorLifecycles[0].SignalType)
	assert.Empty(t, inputs[1].ActiveLifecycles)

	// Latest-per-dimension slicing keeps the newest financial row.
	require.Len(t, inputs[0].HealthScores, 2)
	assert.Equal(t, "client", inputs[0].EntityKind)
	assert.Len(t, inputs[0].ScoreHistory, 2)
}

func TestLoadPortfolioSkipsCycleQueryWithoutPriorCycle(t *testing.T) {
	scores := &fakeScoreSource{byEntity: map[string][]models.HealthScore{}}
	lifecycles := &fakeLifecycleSource{}
	patternSource := &fakePatternSource{}

	l := newTestLoader(scores, lifecycles, patternSource)
	inputs, err := l.LoadPortfolio(context.Background(), "tenant-1", []string{"entity-1"}, LoadOptions{}, synthNow)
	require.NoError(t, err)
	require.Len(t, inputs, 1)

	assert.Equal(t, 1, lifecycles.tenantCalls)
	assert.Equal(t, 0, lifecycles.tenantCycleCalls)
}
