// Package recency applies exponential half-life decay to time-ordered data
// series. Decay advances in business days, not calendar days: activity is
// flat over weekends, so weight must not decay across them.
package recency

import (
	"math"
	"time"

	"github.com/Ramsey-B/sage/pkg/calendar"
	"github.com/Ramsey-B/sage/pkg/models"
)

// Point is one dated observation.
type Point struct {
	Date  time.Time
	Value float64
}

// Config holds the decay parameters.
type Config struct {
	// HalfLifeDays is the decay half-life in business days.
	HalfLifeDays float64
	// MinimumWeight floors the weight so old data contributes negligibly
	// rather than disappearing discontinuously.
	MinimumWeight float64
	// SlopeThreshold classifies trend direction (units per business day).
	SlopeThreshold float64
}

// DefaultConfig returns the stock decay parameters.
func DefaultConfig() Config {
	return Config{
		HalfLifeDays:   14,
		MinimumWeight:  0.01,
		SlopeThreshold: 0.3,
	}
}

// Weighter computes recency-weighted statistics over dated series.
type Weighter struct {
	cal    *calendar.Calendar
	config Config
}

// NewWeighter creates a Weighter over a business calendar.
func NewWeighter(cal *calendar.Calendar, config Config) *Weighter {
	if config.HalfLifeDays <= 0 {
		config.HalfLifeDays = 14
	}
	if config.MinimumWeight <= 0 {
		config.MinimumWeight = 0.01
	}
	if config.SlopeThreshold <= 0 {
		config.SlopeThreshold = 0.3
	}
	return &Weighter{cal: cal, config: config}
}

// Weight returns 2^(-businessDaysAgo / halfLife), floored at the configured
// minimum. Dates at or after the reference weigh 1.0.
func (w *Weighter) Weight(date, reference time.Time) float64 {
	if !date.Before(reference) {
		return 1.0
	}
	daysAgo := float64(w.cal.BusinessDaysBetween(date, reference))
	weight := math.Exp2(-daysAgo / w.config.HalfLifeDays)
	if weight < w.config.MinimumWeight {
		return w.config.MinimumWeight
	}
	return weight
}

// WeightedAverage is the weight-normalized mean of the series. Returns 0 for
// an empty series.
func (w *Weighter) WeightedAverage(points []Point, reference time.Time) float64 {
	if len(points) == 0 {
		return 0
	}

	var sum, totalWeight float64
	for _, p := range points {
		weight := w.Weight(p.Date, reference)
		sum += p.Value * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return sum / totalWeight
}

// WeightedTrend fits a recency-weighted linear regression over the series
// and classifies the slope. The x axis is business days relative to the
// reference, so the slope is units per business day.
func (w *Weighter) WeightedTrend(points []Point, reference time.Time) models.TrendResult {
	result := models.TrendResult{
		Direction:   models.TrendStable,
		SampleCount: len(points),
	}
	if len(points) == 0 {
		return result
	}

	var unweightedSum float64
	for _, p := range points {
		unweightedSum += p.Value
	}
	result.UnweightedMean = unweightedSum / float64(len(points))
	result.WeightedMean = w.WeightedAverage(points, reference)
	result.MeanDelta = result.WeightedMean - result.UnweightedMean

	if len(points) < 2 {
		return result
	}

	xs := make([]float64, len(points))
	ws := make([]float64, len(points))
	var totalWeight, meanX, meanY float64
	for i, p := range points {
		x := -float64(w.cal.BusinessDaysBetween(p.Date, reference))
		if !p.Date.Before(reference) {
			x = 0
		}
		weight := w.Weight(p.Date, reference)
		xs[i] = x
		ws[i] = weight
		totalWeight += weight
		meanX += x * weight
		meanY += p.Value * weight
	}
	meanX /= totalWeight
	meanY /= totalWeight

	var covXY, varX, varY float64
	for i, p := range points {
		dx := xs[i] - meanX
		dy := p.Value - meanY
		covXY += ws[i] * dx * dy
		varX += ws[i] * dx * dx
		varY += ws[i] * dy * dy
	}

	if varX == 0 {
		// All points share a business day; no slope to fit.
		return result
	}

	result.Slope = covXY / varX

	// Fit quality: weighted r-squared, 1.0 when the line explains all
	// variance. A flat series fits perfectly.
	if varY == 0 {
		result.Confidence = 1.0
	} else {
		r := covXY / math.Sqrt(varX*varY)
		result.Confidence = r * r
	}

	switch {
	case result.Slope > w.config.SlopeThreshold:
		result.Direction = models.TrendImproving
	case result.Slope < -w.config.SlopeThreshold:
		result.Direction = models.TrendDeclining
	default:
		result.Direction = models.TrendStable
	}

	return result
}

// ResidualSpread returns the weighted standard deviation of regression
// residuals, used for trajectory uncertainty bands.
func (w *Weighter) ResidualSpread(points []Point, reference time.Time) float64 {
	if len(points) < 3 {
		return 0
	}

	slope, intercept, ok := w.fitLine(points, reference)
	if !ok {
		return 0
	}

	var totalWeight, sumSq float64
	for _, p := range points {
		x := w.relativeDay(p.Date, reference)
		residual := p.Value - (intercept + slope*x)
		weight := w.Weight(p.Date, reference)
		sumSq += weight * residual * residual
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return math.Sqrt(sumSq / totalWeight)
}

// fitLine computes the weighted least-squares line through the series.
func (w *Weighter) fitLine(points []Point, reference time.Time) (slope, intercept float64, ok bool) {
	if len(points) < 2 {
		return 0, 0, false
	}

	var totalWeight, meanX, meanY float64
	for _, p := range points {
		weight := w.Weight(p.Date, reference)
		totalWeight += weight
		meanX += w.relativeDay(p.Date, reference) * weight
		meanY += p.Value * weight
	}
	meanX /= totalWeight
	meanY /= totalWeight

	var covXY, varX float64
	for _, p := range points {
		weight := w.Weight(p.Date, reference)
		dx := w.relativeDay(p.Date, reference) - meanX
		covXY += weight * dx * (p.Value - meanY)
		varX += weight * dx * dx
	}
	if varX == 0 {
		return 0, 0, false
	}

	slope = covXY / varX
	intercept = meanY - slope*meanX
	return slope, intercept, true
}

// relativeDay places a date on the regression x axis: 0 at the reference,
// negative business days in the past.
func (w *Weighter) relativeDay(date, reference time.Time) float64 {
	if !date.Before(reference) {
		return 0
	}
	return -float64(w.cal.BusinessDaysBetween(date, reference))
}

// WeightedPercentile ranks a value against a recency-weighted population:
// the weight fraction of the population at or below the value. Returns 0.5
// for an empty population.
func (w *Weighter) WeightedPercentile(value float64, population []Point, reference time.Time) float64 {
	if len(population) == 0 {
		return 0.5
	}

	var below, totalWeight float64
	for _, p := range population {
		weight := w.Weight(p.Date, reference)
		totalWeight += weight
		if p.Value <= value {
			below += weight
		}
	}
	if totalWeight == 0 {
		return 0.5
	}
	return below / totalWeight
}
