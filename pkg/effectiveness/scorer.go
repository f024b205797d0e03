// Package effectiveness scores how useful a signal type has been, judged by
// what humans did about its fires.
package effectiveness

import (
	"math"
	"time"

	"github.com/Ramsey-B/sage/pkg/models"
)

const (
	weightImprovement = 0.5
	weightAction      = 0.3
	weightTimeliness  = 0.2
)

// Config holds the scoring parameters.
type Config struct {
	// MinimumFires below which the result is "insufficient data".
	MinimumFires int
	// HighTierFires is the sample size above which confidence is high.
	HighTierFires int
	// TimelinessHalfLifeHours controls how fast the timeliness factor decays
	// with mean response latency.
	TimelinessHalfLifeHours float64
}

// DefaultConfig returns the stock scoring parameters.
func DefaultConfig() Config {
	return Config{
		MinimumFires:            20,
		HighTierFires:           50,
		TimelinessHalfLifeHours: 24,
	}
}

// Scorer computes per-signal-type effectiveness from decision journal rows.
type Scorer struct {
	config Config
}

// NewScorer creates an effectiveness scorer.
func NewScorer(config Config) *Scorer {
	if config.MinimumFires <= 0 {
		config.MinimumFires = 20
	}
	if config.HighTierFires <= config.MinimumFires {
		config.HighTierFires = 50
	}
	if config.TimelinessHalfLifeHours <= 0 {
		config.TimelinessHalfLifeHours = 24
	}
	return &Scorer{config: config}
}

// Score computes the effectiveness of one signal type over a period. Fires
// that occurred while a seasonal modifier was active are excluded so the
// score never tunes on predictable seasonal noise. Below the minimum fire
// count the result carries InsufficientData instead of a number.
func (s *Scorer) Score(signalType string, responses []models.SignalResponse, periodStart, periodEnd time.Time) models.EffectivenessScore {
	score := models.EffectivenessScore{
		SignalType:  signalType,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}

	var (
		acted, dismissed, improved int
		latencySum                 time.Duration
		latencyCount               int
	)
	for _, r := range responses {
		if r.SeasonalActive {
			score.SeasonalExcluded++
			continue
		}
		if r.FiredAt.Before(periodStart) || !r.FiredAt.Before(periodEnd) {
			continue
		}

		score.FireCount++
		if r.Dismissed {
			dismissed++
		}
		if !r.Acted {
			continue
		}
		acted++
		if r.OutcomeImproved != nil && *r.OutcomeImproved {
			improved++
		}
		if r.RespondedAt != nil && r.RespondedAt.After(r.FiredAt) {
			latencySum += r.RespondedAt.Sub(r.FiredAt)
			latencyCount++
		}
	}

	score.ActedCount = acted
	score.DismissedCount = dismissed
	score.Tier = s.tier(score.FireCount)

	if score.FireCount < s.config.MinimumFires {
		score.InsufficientData = true
		return score
	}

	score.ActionRate = float64(acted) / float64(score.FireCount)
	if acted > 0 {
		score.ImprovementRate = float64(improved) / float64(acted)
	}

	// Timeliness decays exponentially with mean response latency. No
	// recorded responses means no timeliness credit.
	if latencyCount > 0 {
		score.MeanResponseLatency = latencySum / time.Duration(latencyCount)
		score.Timeliness = math.Exp2(-score.MeanResponseLatency.Hours() / s.config.TimelinessHalfLifeHours)
	}

	score.Effectiveness = weightImprovement*score.ImprovementRate +
		weightAction*score.ActionRate +
		weightTimeliness*score.Timeliness

	return score
}

// tier derives the confidence tier purely from sample size.
func (s *Scorer) tier(fires int) models.ConfidenceTier {
	switch {
	case fires > s.config.HighTierFires:
		return models.ConfidenceTierHigh
	case fires >= s.config.MinimumFires:
		return models.ConfidenceTierMedium
	default:
		return models.ConfidenceTierLow
	}
}
