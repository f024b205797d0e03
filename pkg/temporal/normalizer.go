// Package temporal converts wall-clock durations into business-time figures
// using the business calendar.
package temporal

import (
	"time"

	"github.com/Ramsey-B/sage/pkg/calendar"
)

// TaskStatus is the subset of task state the age weighting cares about.
type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
)

// Normalizer converts due/sent timestamps into business-time figures. All
// methods are deterministic given their inputs and the calendar
// configuration.
type Normalizer struct {
	cal *calendar.Calendar
}

// NewNormalizer creates a Normalizer over a business calendar.
func NewNormalizer(cal *calendar.Calendar) *Normalizer {
	return &Normalizer{cal: cal}
}

// BusinessDaysLate returns 0 when not yet due, otherwise the count of
// working days strictly after the due date up to and including now. A task
// due on a Friday and checked the following Monday is 1 day late, not 3.
func (n *Normalizer) BusinessDaysLate(due, now time.Time) int {
	if !now.After(due) {
		return 0
	}
	// Working days in (due, now] == working days in [due+1d, now+1d).
	return n.cal.BusinessDaysBetween(due.AddDate(0, 0, 1), now.AddDate(0, 0, 1))
}

// BusinessHoursElapsed sums, for every calendar day in [start, end], only
// the portion of that day falling inside the day's effective working-hours
// window. Weekends and holidays contribute nothing.
func (n *Normalizer) BusinessHoursElapsed(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}

	start = start.UTC()
	end = end.UTC()

	total := time.Duration(0)
	for day := dateOnly(start); !day.After(dateOnly(end)); day = day.AddDate(0, 0, 1) {
		ctx := n.cal.Classify(day)
		if ctx.WorkingMinutes == 0 {
			continue
		}

		windowStart := day.Add(time.Duration(ctx.Hours.Start) * time.Hour)
		windowEnd := day.Add(time.Duration(ctx.Hours.End) * time.Hour)

		from := maxTime(start, windowStart)
		to := minTime(end, windowEnd)
		if to.After(from) {
			total += to.Sub(from)
		}
	}

	return total.Hours()
}

// TaskAgeWeight returns a multiplier for task scoring: 1.0 for fresh or
// completed tasks, rising piecewise with business-day age and capped at 2.0.
// This is a pure scoring input, not a signal.
func (n *Normalizer) TaskAgeWeight(created time.Time, status TaskStatus, now time.Time) float64 {
	if status == TaskStatusCompleted {
		return 1.0
	}

	age := n.cal.BusinessDaysBetween(created, now)
	switch {
	case age <= 3:
		return 1.0
	case age <= 7:
		return 1.2
	case age <= 14:
		return 1.5
	default:
		weight := 1.5 + 0.05*float64(age-14)
		if weight > 2.0 {
			return 2.0
		}
		return weight
	}
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
