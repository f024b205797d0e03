package calendar

import (
	"fmt"
	"time"
)

// DayClass classifies one calendar date.
type DayClass int

const (
	DayWorking DayClass = iota
	DayWeekend
	DayHoliday
	DayObservance
)

func (c DayClass) String() string {
	switch c {
	case DayWorking:
		return "working"
	case DayWeekend:
		return "weekend"
	case DayHoliday:
		return "public_holiday"
	case DayObservance:
		return "observance"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// DayContext is the computed classification of one date. Derived solely from
// the configuration and the date; never persisted.
type DayContext struct {
	Date time.Time

	Class     DayClass
	IsWeekend bool
	IsHoliday bool

	// ObservanceDayIndex is the 1-based day index inside the observance
	// period, nil outside one (including years missing from the table). It is
	// populated whenever the date falls inside an observance range, even when
	// a weekend or holiday takes the day class, so overlapping calendar
	// contexts stay visible to callers.
	ObservanceDayIndex *int

	// FiscalSeason is the active season label, empty when none.
	FiscalSeason string

	// Hours is the effective working window: the normal window on working
	// days, the narrowed window during observance, zero on non-working days.
	Hours HoursWindow

	// WorkingMinutes is Hours.Minutes(), precomputed for scoring callers.
	WorkingMinutes int
}

// IsWorkingDay reports whether the date has any working hours.
func (d DayContext) IsWorkingDay() bool {
	return d.Class == DayWorking || d.Class == DayObservance
}

// Calendar answers date classification and business-day arithmetic. All
// methods are pure functions of (date, config); there is no hidden clock.
type Calendar struct {
	config   Config
	weekends map[time.Weekday]bool
	holidays map[MonthDay]bool
}

// New builds a Calendar from a validated configuration.
func New(config Config) *Calendar {
	weekends := make(map[time.Weekday]bool, len(config.WeekendDays))
	for _, wd := range config.WeekendDays {
		weekends[time.Weekday(wd)] = true
	}
	holidays := make(map[MonthDay]bool, len(config.Holidays))
	for _, h := range config.Holidays {
		holidays[h] = true
	}
	return &Calendar{
		config:   config,
		weekends: weekends,
		holidays: holidays,
	}
}

// Config returns the loaded calendar configuration.
func (c *Calendar) Config() Config {
	return c.config
}

// Classify returns the DayContext for a date. The time-of-day portion of the
// argument is ignored.
func (c *Calendar) Classify(date time.Time) DayContext {
	day := dateOnly(date)

	ctx := DayContext{
		Date:         day,
		FiscalSeason: c.fiscalSeason(day),
	}

	ctx.IsWeekend = c.weekends[day.Weekday()]
	ctx.IsHoliday = c.holidays[MonthDay{Month: int(day.Month()), Day: day.Day()}]
	ctx.ObservanceDayIndex = c.observanceIndex(day)

	switch {
	case ctx.IsWeekend:
		ctx.Class = DayWeekend
	case ctx.IsHoliday:
		ctx.Class = DayHoliday
	case ctx.ObservanceDayIndex != nil:
		ctx.Class = DayObservance
		ctx.Hours = c.config.ObservanceHours
	default:
		ctx.Class = DayWorking
		ctx.Hours = c.config.WorkingHours
	}

	ctx.WorkingMinutes = ctx.Hours.Minutes()
	return ctx
}

// BusinessDaysBetween counts working days in [a, b), skipping weekends and
// holidays. Returns 0 when b is not after a.
func (c *Calendar) BusinessDaysBetween(a, b time.Time) int {
	start := dateOnly(a)
	end := dateOnly(b)

	count := 0
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		if c.Classify(day).IsWorkingDay() {
			count++
		}
	}
	return count
}

// AddBusinessDays walks forward from start, skipping non-working days, and
// returns the date n business days ahead. n must be non-negative.
func (c *Calendar) AddBusinessDays(start time.Time, n int) time.Time {
	day := dateOnly(start)
	for added := 0; added < n; {
		day = day.AddDate(0, 0, 1)
		if c.Classify(day).IsWorkingDay() {
			added++
		}
	}
	return day
}

// NextBusinessDay returns the first working day strictly after the date.
func (c *Calendar) NextBusinessDay(date time.Time) time.Time {
	return c.AddBusinessDays(date, 1)
}

func (c *Calendar) observanceIndex(day time.Time) *int {
	ranges, ok := c.config.ObservanceTable[day.Year()]
	if !ok {
		// Year outside the precomputed table: explicit "no observance"
		// rather than a guess.
		return nil
	}

	for _, r := range ranges {
		start := r.Start.Time()
		end := r.End.Time()
		if day.Before(start) || day.After(end) {
			continue
		}
		index := int(day.Sub(start).Hours()/24) + 1
		return &index
	}
	return nil
}

func (c *Calendar) fiscalSeason(day time.Time) string {
	md := MonthDay{Month: int(day.Month()), Day: day.Day()}
	for _, season := range c.config.FiscalSeasons {
		if monthDayInRange(md, season.Start, season.End) {
			return season.Label
		}
	}
	return ""
}

// monthDayInRange handles ranges that wrap the year boundary (e.g. fiscal
// close Dec 15 - Jan 15).
func monthDayInRange(d, start, end MonthDay) bool {
	dv := d.Month*100 + d.Day
	sv := start.Month*100 + start.Day
	ev := end.Month*100 + end.Day
	if sv <= ev {
		return dv >= sv && dv <= ev
	}
	return dv >= sv || dv <= ev
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
