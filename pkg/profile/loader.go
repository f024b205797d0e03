package profile

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/recency"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// HealthScoreSource provides the scoring component's rows.
type HealthScoreSource interface {
	Latest(ctx context.Context, tenantID, entityID string) ([]models.HealthScore, error)
	History(ctx context.Context, tenantID, entityID string, since time.Time) ([]models.HealthScore, error)
	HistoryByTenant(ctx context.Context, tenantID string, since time.Time) (map[string][]models.HealthScore, error)
}

// LifecycleSource provides signal lifecycle state. The tenant-wide variants
// serve batch loads, which slice the grouped result per entity in memory.
type LifecycleSource interface {
	ListActiveByEntity(ctx context.Context, tenantID, entityID string) ([]models.SignalLifecycle, error)
	ListByCycle(ctx context.Context, tenantID, entityID, cycleID string) ([]models.SignalLifecycle, error)
	ListActiveByTenant(ctx context.Context, tenantID string) (map[string][]models.SignalLifecycle, error)
	ListByCycleForTenant(ctx context.Context, tenantID, cycleID string) (map[string][]models.SignalLifecycle, error)
}

// PatternSource provides pattern snapshot histories.
type PatternSource interface {
	Histories(ctx context.Context, tenantID string, perKeyLimit int) (map[string][]models.PatternSnapshot, error)
}

// LoadOptions tunes what one load pulls.
type LoadOptions struct {
	// PriorCycleID enables the prior-cycle signal trend comparison; empty
	// skips it.
	PriorCycleID string
	// HistoryDays bounds the score history window for trajectory fitting.
	HistoryDays int
	// Correlations are the candidate compound risks, assembled by the
	// caller from its correlation definitions.
	Correlations []CorrelationInput
	// Cost, when known, is carried onto the profile unchanged.
	Cost *models.CostProfile
}

// Loader assembles synthesis inputs from the persistence stores. It exists
// so the Synthesizer itself never queries: one Load per entity, or one
// LoadPortfolio per batch, then pure in-memory assembly.
type Loader struct {
	scores     HealthScoreSource
	lifecycles LifecycleSource
	patterns   PatternSource
	synth      *Synthesizer
	logger     ectologger.Logger
}

// NewLoader creates a profile input loader.
func NewLoader(scores HealthScoreSource, lifecycles LifecycleSource, patterns PatternSource, synth *Synthesizer, logger ectologger.Logger) *Loader {
	return &Loader{
		scores:     scores,
		lifecycles: lifecycles,
		patterns:   patterns,
		synth:      synth,
		logger:     logger,
	}
}

// Load pulls one entity's inputs.
func (l *Loader) Load(ctx context.Context, tenantID, entityID string, opts LoadOptions, now time.Time) (Inputs, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.Loader.Load")
	defer span.End()

	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 90
	}

	in := Inputs{
		TenantID:     tenantID,
		EntityID:     entityID,
		EntityName:   entityID,
		Correlations: opts.Correlations,
		Cost:         opts.Cost,
		Now:          now,
	}

	latest, err := l.scores.Latest(ctx, tenantID, entityID)
	if err != nil {
		return in, err
	}
	in.HealthScores = latest
	if len(latest) > 0 {
		in.EntityKind = latest[0].EntityKind
	}

	since := now.AddDate(0, 0, -opts.HistoryDays)
	history, err := l.scores.History(ctx, tenantID, entityID, since)
	if err != nil {
		return in, err
	}
	in.ScoreHistory = l.compositeSeries(in.EntityKind, history)

	active, err := l.lifecycles.ListActiveByEntity(ctx, tenantID, entityID)
	if err != nil {
		return in, err
	}
	in.ActiveLifecycles = active

	if opts.PriorCycleID != "" {
		prior, err := l.lifecycles.ListByCycle(ctx, tenantID, entityID, opts.PriorCycleID)
		if err != nil {
			return in, err
		}
		in.PriorLifecycles = prior
	}

	histories, err := l.patterns.Histories(ctx, tenantID, 6)
	if err != nil {
		return in, err
	}
	in.PatternHistories = histories

	return in, nil
}

// LoadPortfolio pulls shared inputs once and slices them per entity. The
// per-entity loop after this does no I/O.
func (l *Loader) LoadPortfolio(ctx context.Context, tenantID string, entityIDs []string, opts LoadOptions, now time.Time) ([]Inputs, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.Loader.LoadPortfolio")
	defer span.End()

	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 90
	}

	since := now.AddDate(0, 0, -opts.HistoryDays)
	histories, err := l.scores.HistoryByTenant(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}

	patternHistories, err := l.patterns.Histories(ctx, tenantID, 6)
	if err != nil {
		return nil, err
	}

	activeByEntity, err := l.lifecycles.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var priorByEntity map[string][]models.SignalLifecycle
	if opts.PriorCycleID != "" {
		priorByEntity, err = l.lifecycles.ListByCycleForTenant(ctx, tenantID, opts.PriorCycleID)
		if err != nil {
			return nil, err
		}
	}

	inputs := make([]Inputs, 0, len(entityIDs))
	for _, entityID := range entityIDs {
		in := Inputs{
			TenantID:         tenantID,
			EntityID:         entityID,
			EntityName:       entityID,
			PatternHistories: patternHistories,
			Now:              now,
		}

		entityHistory := histories[entityID]
		in.HealthScores = latestPerDimension(entityHistory)
		if len(in.HealthScores) > 0 {
			in.EntityKind = in.HealthScores[0].EntityKind
		}
		in.ScoreHistory = l.compositeSeries(in.EntityKind, entityHistory)
		in.ActiveLifecycles = activeByEntity[entityID]
		in.PriorLifecycles = priorByEntity[entityID]

		inputs = append(inputs, in)
	}

	return inputs, nil
}

// compositeSeries collapses per-dimension rows into one composite point per
// scoring timestamp, using the same weights the profile composite uses.
func (l *Loader) compositeSeries(entityKind string, history []models.HealthScore) []recency.Point {
	byTime := make(map[time.Time][]models.HealthScore)
	for _, score := range history {
		key := score.ScoredAt.Truncate(time.Minute)
		byTime[key] = append(byTime[key], score)
	}

	points := make([]recency.Point, 0, len(byTime))
	for at, scores := range byTime {
		_, composite := l.synth.compositeHealth(entityKind, scores)
		points = append(points, recency.Point{Date: at, Value: composite})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

// latestPerDimension keeps the newest row per dimension from a history
// already sorted oldest first.
func latestPerDimension(history []models.HealthScore) []models.HealthScore {
	latest := make(map[string]models.HealthScore, 4)
	for _, score := range history {
		latest[score.Dimension] = score
	}

	dims := make([]string, 0, len(latest))
	for dim := range latest {
		dims = append(dims, dim)
	}
	sort.Strings(dims)

	out := make([]models.HealthScore, 0, len(dims))
	for _, dim := range dims {
		out = append(out, latest[dim])
	}
	return out
}
