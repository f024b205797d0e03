// Package profile assembles the per-entity intelligence read model. The
// synthesizer is pure aggregation over already-loaded inputs: it never
// queries, and its output is rebuilt fresh on every request or cycle.
package profile

import (
	"sort"
	"time"

	"github.com/Ramsey-B/sage/pkg/calendar"
	"github.com/Ramsey-B/sage/pkg/correlation"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/patterns"
	"github.com/Ramsey-B/sage/pkg/recency"
)

// CorrelationInput is one candidate compound risk with its raw evidence.
type CorrelationInput struct {
	CorrelationKey string
	Label          string
	Structural     bool
	Evidence       models.CorrelationEvidence
}

// Inputs is everything one entity's profile is assembled from. Batch callers
// pre-load the shared tables once and slice per entity.
type Inputs struct {
	TenantID   string
	EntityID   string
	EntityKind string
	EntityName string

	// HealthScores are the latest per-dimension rows for the entity.
	HealthScores []models.HealthScore
	// ScoreHistory is the composite health history, for trajectory fitting.
	ScoreHistory []recency.Point

	// ActiveLifecycles are the entity's open signal lifecycles this cycle.
	ActiveLifecycles []models.SignalLifecycle
	// PriorLifecycles are the open lifecycles as of the previous cycle, for
	// the aggregate signal trend comparison.
	PriorLifecycles []models.SignalLifecycle

	// PatternHistories maps pattern key to its snapshot history.
	PatternHistories map[string][]models.PatternSnapshot

	Correlations []CorrelationInput
	Cost         *models.CostProfile

	Now time.Time
}

// Config holds the synthesis parameters.
type Config struct {
	// ProjectionUnits is how many business days ahead the trajectory
	// projects.
	ProjectionUnits int
	// DimensionWeights maps entity kind to per-dimension composite weights.
	// Kinds without an entry use DefaultWeights.
	DimensionWeights map[string]map[string]float64
	DefaultWeights   map[string]float64
	// MinConfidence drops compound risks scored below it from the profile.
	MinConfidence float64
}

// DefaultConfig returns the stock synthesis parameters.
func DefaultConfig() Config {
	return Config{
		ProjectionUnits: 30,
		DefaultWeights: map[string]float64{
			models.DimensionFinancial:      0.3,
			models.DimensionDelivery:       0.3,
			models.DimensionEngagement:     0.2,
			models.DimensionResponsiveness: 0.2,
		},
		MinConfidence: 0.3,
	}
}

// Synthesizer builds EntityIntelligenceProfile read models.
type Synthesizer struct {
	cal        *calendar.Calendar
	weighter   *recency.Weighter
	analyzer   *patterns.Analyzer
	calculator *correlation.Calculator
	config     Config
}

// NewSynthesizer creates a profile synthesizer.
func NewSynthesizer(cal *calendar.Calendar, weighter *recency.Weighter, analyzer *patterns.Analyzer, calculator *correlation.Calculator, config Config) *Synthesizer {
	if config.ProjectionUnits <= 0 {
		config.ProjectionUnits = 30
	}
	if len(config.DefaultWeights) == 0 {
		config.DefaultWeights = DefaultConfig().DefaultWeights
	}
	return &Synthesizer{
		cal:        cal,
		weighter:   weighter,
		analyzer:   analyzer,
		calculator: calculator,
		config:     config,
	}
}

// Synthesize assembles one entity's profile from pre-loaded inputs.
func (s *Synthesizer) Synthesize(in Inputs) models.EntityIntelligenceProfile {
	profile := models.EntityIntelligenceProfile{
		TenantID:      in.TenantID,
		EntityID:      in.EntityID,
		EntityKind:    in.EntityKind,
		EntityName:    in.EntityName,
		Cost:          in.Cost,
		SynthesizedAt: in.Now,
	}

	profile.HealthByDim, profile.HealthScore = s.compositeHealth(in.EntityKind, in.HealthScores)
	profile.Trajectory = s.trajectory(in.ScoreHistory, profile.HealthScore, in.Now)
	profile.ActiveSignals = s.activeSignals(in.ActiveLifecycles, in.Now)
	profile.SignalTrend = s.signalTrend(in.ActiveLifecycles, in.PriorLifecycles)
	profile.ActivePatterns, profile.Stability = s.activePatterns(in.PatternHistories)
	profile.CompoundRisks = s.compoundRisks(in.Correlations, in.Now)
	profile.Attention = s.attention(profile.ActiveSignals, profile.ActivePatterns, profile.CompoundRisks)
	profile.NextReviewAt = s.nextReview(profile.Attention, in.Now)
	profile.Narrative = s.narrative(profile)
	profile.Recommendations = s.recommend(profile)

	return profile
}

// SynthesizeBatch assembles profiles for a pre-loaded portfolio. Each entry's
// inputs must already be in memory; the loop does no I/O.
func (s *Synthesizer) SynthesizeBatch(inputs []Inputs) []models.EntityIntelligenceProfile {
	profiles := make([]models.EntityIntelligenceProfile, 0, len(inputs))
	for _, in := range inputs {
		profiles = append(profiles, s.Synthesize(in))
	}
	return profiles
}

// compositeHealth computes the weighted composite over the dimensions
// present, normalized by the weight actually used. Unknown dimensions carry
// no weight.
func (s *Synthesizer) compositeHealth(entityKind string, scores []models.HealthScore) (map[string]float64, float64) {
	byDim := make(map[string]float64, len(scores))
	for _, score := range scores {
		byDim[score.Dimension] = score.Score
	}

	weights := s.config.DefaultWeights
	if kindWeights, ok := s.config.DimensionWeights[entityKind]; ok {
		weights = kindWeights
	}

	var weightedSum, totalWeight float64
	for dim, score := range byDim {
		weight, ok := weights[dim]
		if !ok {
			continue
		}
		weightedSum += score * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return byDim, 0
	}
	return byDim, weightedSum / totalWeight
}

// trajectory fits the weighted trend over the score history and projects it
// forward, with an uncertainty band from the regression residual spread.
func (s *Synthesizer) trajectory(history []recency.Point, current float64, now time.Time) models.TrajectoryProjection {
	trend := s.weighter.WeightedTrend(history, now)
	spread := s.weighter.ResidualSpread(history, now)

	units := s.config.ProjectionUnits
	projected := clampScore(current + trend.Slope*float64(units))

	return models.TrajectoryProjection{
		Current:    current,
		Projected:  projected,
		UnitsAhead: units,
		UpperBound: clampScore(projected + spread),
		LowerBound: clampScore(projected - spread),
		Direction:  trend.Direction,
		Confidence: trend.Confidence,
	}
}

func (s *Synthesizer) activeSignals(lifecycles []models.SignalLifecycle, now time.Time) []models.ActiveSignal {
	signals := make([]models.ActiveSignal, 0, len(lifecycles))
	for _, lc := range lifecycles {
		if !lc.IsActive() {
			continue
		}
		signals = append(signals, models.ActiveSignal{
			SignalType:      lc.SignalType,
			Severity:        lc.CurrentSeverity,
			Persistence:     lc.Persistence,
			FirstDetectedAt: lc.FirstDetectedAt,
			BusinessDaysAge: s.cal.BusinessDaysBetween(lc.FirstDetectedAt, now),
			EscalationCount: len(lc.Escalations.Data),
		})
	}
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Severity != signals[j].Severity {
			return signals[i].Severity > signals[j].Severity
		}
		return signals[i].BusinessDaysAge > signals[j].BusinessDaysAge
	})
	return signals
}

// signalTrend compares the current and prior-cycle severity-weighted signal
// loads.
func (s *Synthesizer) signalTrend(current, prior []models.SignalLifecycle) models.SignalTrendDirection {
	load := func(lifecycles []models.SignalLifecycle) int {
		total := 0
		for _, lc := range lifecycles {
			if lc.IsActive() {
				total += int(lc.CurrentSeverity) + 1
			}
		}
		return total
	}

	now, before := load(current), load(prior)
	switch {
	case now > before:
		return models.SignalTrendRising
	case now < before:
		return models.SignalTrendFalling
	default:
		return models.SignalTrendFlat
	}
}

// activePatterns classifies each pattern history and aggregates to the
// entity's stability label.
func (s *Synthesizer) activePatterns(histories map[string][]models.PatternSnapshot) ([]models.ActivePattern, models.StabilityLabel) {
	keys := make([]string, 0, len(histories))
	for key := range histories {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	active := make([]models.ActivePattern, 0, len(keys))
	destabilizing, stabilizing := 0, 0
	for _, key := range keys {
		result := s.analyzer.Analyze(key, histories[key])
		switch result.Trend {
		case models.PatternTrendWorsening, models.PatternTrendNew:
			destabilizing++
		case models.PatternTrendResolving:
			stabilizing++
		}
		if result.Trend == models.PatternTrendInconclusive && !result.PresentNow {
			continue
		}
		active = append(active, models.ActivePattern{
			PatternKey: key,
			Trend:      result.Trend,
			Confidence: result.Confidence,
		})
	}

	label := models.StabilityNeutral
	switch {
	case destabilizing > stabilizing:
		label = models.StabilityDestabilizing
	case stabilizing > destabilizing:
		label = models.StabilityStabilizing
	}
	return active, label
}

func (s *Synthesizer) compoundRisks(inputs []CorrelationInput, now time.Time) []models.CompoundRisk {
	risks := make([]models.CompoundRisk, 0, len(inputs))
	for _, in := range inputs {
		breakdown := s.calculator.Calculate(in.Evidence, now)
		if breakdown.Confidence < s.config.MinConfidence {
			continue
		}
		risks = append(risks, models.CompoundRisk{
			CorrelationKey: in.CorrelationKey,
			Label:          in.Label,
			Structural:     in.Structural,
			Confidence:     breakdown,
		})
	}
	sort.Slice(risks, func(i, j int) bool {
		return risks[i].Confidence.Confidence > risks[j].Confidence.Confidence
	})
	return risks
}

// attention applies the strict priority order: critical signal or structural
// compound risk, then warning/operational findings, then watch-level
// signals, then stable.
func (s *Synthesizer) attention(signals []models.ActiveSignal, activePatterns []models.ActivePattern, risks []models.CompoundRisk) models.AttentionLevel {
	for _, risk := range risks {
		if risk.Structural {
			return models.AttentionUrgent
		}
	}
	for _, sig := range signals {
		if sig.Severity == models.SeverityCritical {
			return models.AttentionUrgent
		}
	}

	for _, sig := range signals {
		if sig.Severity == models.SeverityWarning || sig.Severity == models.SeverityOperational {
			return models.AttentionElevated
		}
	}
	for _, p := range activePatterns {
		if p.Trend == models.PatternTrendWorsening {
			return models.AttentionElevated
		}
	}

	if len(signals) > 0 {
		return models.AttentionNormal
	}
	return models.AttentionStable
}

// nextReview schedules the next look at the entity, sooner the more
// attention it needs.
func (s *Synthesizer) nextReview(attention models.AttentionLevel, now time.Time) time.Time {
	days := map[models.AttentionLevel]int{
		models.AttentionUrgent:   1,
		models.AttentionElevated: 3,
		models.AttentionNormal:   5,
		models.AttentionStable:   10,
	}[attention]
	return s.cal.AddBusinessDays(now, days)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
