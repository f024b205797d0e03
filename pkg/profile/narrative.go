package profile

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/sage/pkg/models"
)

// narrative renders the profile summary from fixed templates over the
// computed values. Every sentence cites a number or finding from the
// profile, so two entities with different findings never read identically.
func (s *Synthesizer) narrative(p models.EntityIntelligenceProfile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s holds a composite health score of %.1f and is %s",
		p.EntityName, p.HealthScore, describeTrajectory(p.Trajectory))

	switch len(p.ActiveSignals) {
	case 0:
		b.WriteString(". No signals are currently active")
	case 1:
		sig := p.ActiveSignals[0]
		fmt.Fprintf(&b, ". One %s signal (%s) is active, %s for %d business days",
			sig.Severity, sig.SignalType, sig.Persistence, sig.BusinessDaysAge)
	default:
		top := p.ActiveSignals[0]
		fmt.Fprintf(&b, ". %d signals are active, led by a %s %s open for %d business days",
			len(p.ActiveSignals), top.Severity, top.SignalType, top.BusinessDaysAge)
	}

	if p.SignalTrend == models.SignalTrendRising {
		b.WriteString("; signal load is rising against the prior cycle")
	} else if p.SignalTrend == models.SignalTrendFalling {
		b.WriteString("; signal load is easing against the prior cycle")
	}
	b.WriteString(".")

	if worsening := patternsWithTrend(p.ActivePatterns, models.PatternTrendWorsening); len(worsening) > 0 {
		fmt.Fprintf(&b, " Pattern %s is worsening.", strings.Join(worsening, ", "))
	} else if p.Stability == models.StabilityStabilizing {
		b.WriteString(" Pattern activity is stabilizing.")
	}

	if len(p.CompoundRisks) > 0 {
		top := p.CompoundRisks[0]
		fmt.Fprintf(&b, " Compound risk %q stands at %.0f%% confidence", top.Label, top.Confidence.Confidence*100)
		if top.Structural {
			b.WriteString(" and is structural")
		}
		b.WriteString(".")
	}

	fmt.Fprintf(&b, " Attention level: %s.", p.Attention)
	return b.String()
}

// recommend derives two or three actions from fixed rules over the profile,
// ordered by priority.
func (s *Synthesizer) recommend(p models.EntityIntelligenceProfile) []models.RecommendedAction {
	var actions []models.RecommendedAction

	for _, sig := range p.ActiveSignals {
		if sig.Severity == models.SeverityCritical {
			actions = append(actions, models.RecommendedAction{
				Priority: 1,
				Action:   fmt.Sprintf("Escalate the critical %s signal to the account owner today", sig.SignalType),
				Basis:    fmt.Sprintf("critical severity, active for %d business days", sig.BusinessDaysAge),
			})
			break
		}
	}

	for _, risk := range p.CompoundRisks {
		if risk.Structural {
			actions = append(actions, models.RecommendedAction{
				Priority: 1,
				Action:   fmt.Sprintf("Review the structural compound risk %q with the delivery lead", risk.Label),
				Basis:    fmt.Sprintf("confidence %.0f%%", risk.Confidence.Confidence*100),
			})
			break
		}
	}

	if p.Trajectory.Direction == models.TrendDeclining {
		actions = append(actions, models.RecommendedAction{
			Priority: 2,
			Action:   fmt.Sprintf("Schedule a health review before the projected score reaches %.1f", p.Trajectory.Projected),
			Basis:    fmt.Sprintf("declining trajectory, lower bound %.1f", p.Trajectory.LowerBound),
		})
	}

	for _, sig := range p.ActiveSignals {
		if sig.Persistence == models.PersistenceChronic {
			actions = append(actions, models.RecommendedAction{
				Priority: 2,
				Action:   fmt.Sprintf("Assign an owner to the chronic %s signal", sig.SignalType),
				Basis:    fmt.Sprintf("chronic for %d business days with %d escalations", sig.BusinessDaysAge, sig.EscalationCount),
			})
			break
		}
	}

	if worsening := patternsWithTrend(p.ActivePatterns, models.PatternTrendWorsening); len(worsening) > 0 {
		actions = append(actions, models.RecommendedAction{
			Priority: 3,
			Action:   fmt.Sprintf("Investigate the worsening pattern %s across affected entities", worsening[0]),
			Basis:    "pattern metrics exceed the recent average",
		})
	}

	// Always at least two actions: the review cadence backstops sparse
	// profiles.
	if len(actions) < 2 {
		actions = append(actions, models.RecommendedAction{
			Priority: 4,
			Action:   fmt.Sprintf("Keep the standard review cadence; next review %s", p.NextReviewAt.Format("2006-01-02")),
			Basis:    fmt.Sprintf("attention level %s", p.Attention),
		})
	}
	if len(actions) < 2 {
		actions = append(actions, models.RecommendedAction{
			Priority: 4,
			Action:   fmt.Sprintf("Monitor the composite score, currently %.1f", p.HealthScore),
			Basis:    string(p.Trajectory.Direction) + " trajectory",
		})
	}

	if len(actions) > 3 {
		actions = actions[:3]
	}
	return actions
}

func describeTrajectory(t models.TrajectoryProjection) string {
	switch t.Direction {
	case models.TrendImproving:
		return fmt.Sprintf("trending up toward %.1f over the next %d business days", t.Projected, t.UnitsAhead)
	case models.TrendDeclining:
		return fmt.Sprintf("trending down toward %.1f over the next %d business days", t.Projected, t.UnitsAhead)
	default:
		return "holding steady"
	}
}

func patternsWithTrend(activePatterns []models.ActivePattern, trend models.PatternTrend) []string {
	var keys []string
	for _, p := range activePatterns {
		if p.Trend == trend {
			keys = append(keys, p.PatternKey)
		}
	}
	return keys
}
