// Package patterns classifies a detected pattern's trend from its presence
// across the most recent evaluation cycles.
package patterns

import (
	"math"
	"sort"

	"github.com/Ramsey-B/sage/pkg/models"
)

// windowSize is the number of snapshots a trend reads: the current cycle
// plus five priors.
const windowSize = 6

// persistenceFloor is how many of the five prior cycles a pattern must be
// present in to count as established.
const persistenceFloor = 3

// Analyzer classifies pattern trends from snapshot windows.
type Analyzer struct{}

// NewAnalyzer creates a pattern trend analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze classifies one pattern key from its snapshot history. Snapshots may
// arrive in any order; the analyzer sorts by observation time and reads the
// latest six. Sparse or inconsistent histories report the best-matching
// category with reduced confidence rather than failing.
func (a *Analyzer) Analyze(patternKey string, snapshots []models.PatternSnapshot) models.PatternTrendResult {
	result := models.PatternTrendResult{
		PatternKey: patternKey,
		Trend:      models.PatternTrendInconclusive,
	}
	if len(snapshots) == 0 {
		return result
	}

	window := latestWindow(snapshots)
	current := window[0]
	priors := window[1:]

	result.PresentNow = current.Present
	result.EntityCountNow = current.EntityCount
	result.StrengthNow = current.EvidenceStrength

	priorPresence := 0
	for _, s := range priors {
		if s.Present {
			priorPresence++
		}
	}
	result.PriorPresence = priorPresence

	// A short history can still classify, just less confidently.
	coverage := float64(len(window)) / float64(windowSize)

	switch {
	case current.Present && priorPresence == 0:
		result.Trend = models.PatternTrendNew
		result.Confidence = coverage

	case current.Present && a.exceedsPriorSpread(current, priors):
		// Worsening overrides persistent.
		result.Trend = models.PatternTrendWorsening
		result.Confidence = coverage

	case current.Present && priorPresence >= persistenceFloor:
		result.Trend = models.PatternTrendPersistent
		result.Confidence = coverage

	case !current.Present && priorPresence >= persistenceFloor:
		result.Trend = models.PatternTrendResolving
		result.Confidence = coverage

	case current.Present:
		// Present now with sparse prior presence: closest to persistent,
		// reported at reduced confidence.
		result.Trend = models.PatternTrendPersistent
		result.Confidence = coverage * float64(priorPresence) / float64(persistenceFloor)

	default:
		result.Trend = models.PatternTrendInconclusive
		result.Confidence = 0
	}

	return result
}

// exceedsPriorSpread reports whether the current entity count or evidence
// strength sits more than one estimated standard deviation above the prior
// average.
func (a *Analyzer) exceedsPriorSpread(current models.PatternSnapshot, priors []models.PatternSnapshot) bool {
	presentPriors := make([]models.PatternSnapshot, 0, len(priors))
	for _, s := range priors {
		if s.Present {
			presentPriors = append(presentPriors, s)
		}
	}
	if len(presentPriors) < 2 {
		return false
	}

	counts := make([]float64, len(presentPriors))
	strengths := make([]float64, len(presentPriors))
	for i, s := range presentPriors {
		counts[i] = float64(s.EntityCount)
		strengths[i] = s.EvidenceStrength
	}

	countMean, countStdev := meanStdev(counts)
	strengthMean, strengthStdev := meanStdev(strengths)

	return float64(current.EntityCount) > countMean+countStdev ||
		current.EvidenceStrength > strengthMean+strengthStdev
}

// latestWindow sorts snapshots newest first and truncates to the window size.
func latestWindow(snapshots []models.PatternSnapshot) []models.PatternSnapshot {
	sorted := make([]models.PatternSnapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ObservedAt.After(sorted[j].ObservedAt)
	})
	if len(sorted) > windowSize {
		sorted = sorted[:windowSize]
	}
	return sorted
}

func meanStdev(values []float64) (mean, stdev float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
