package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WeekendDays = []int{int(time.Friday), int(time.Saturday)}
	cfg.Holidays = []MonthDay{
		{Month: 1, Day: 1},
		{Month: 9, Day: 23},
	}
	cfg.ObservanceTable = map[int][]DateRange{
		2026: {
			{
				Start: CivilDate{Year: 2026, Month: time.February, Day: 18},
				End:   CivilDate{Year: 2026, Month: time.March, Day: 19},
			},
		},
	}
	cfg.FiscalSeasons = []FiscalSeason{
		{Label: "fiscal_close", Start: MonthDay{Month: 12, Day: 15}, End: MonthDay{Month: 1, Day: 15}},
	}
	return cfg
}

func TestClassifyWeekend(t *testing.T) {
	cal := New(testConfig())

	tests := []struct {
		name    string
		date    time.Time
		weekend bool
	}{
		// Weekend days come from configuration, not from Sat/Sun.
		{"friday is weekend", time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC), true},
		{"saturday is weekend", time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), true},
		{"sunday is working", time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), false},
		{"monday is working", time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := cal.Classify(test.date)
			assert.Equal(t, test.weekend, ctx.IsWeekend)
			if test.weekend {
				assert.Equal(t, DayWeekend, ctx.Class)
				assert.Equal(t, 0, ctx.WorkingMinutes)
			}
		})
	}
}

func TestClassifyHoliday(t *testing.T) {
	cal := New(testConfig())

	ctx := cal.Classify(time.Date(2026, 9, 23, 15, 30, 0, 0, time.UTC))
	assert.True(t, ctx.IsHoliday)
	assert.Equal(t, DayHoliday, ctx.Class)
	assert.False(t, ctx.IsWorkingDay())
}

func TestClassifyObservance(t *testing.T) {
	cal := New(testConfig())

	// First day of the 2026 period.
	first := cal.Classify(time.Date(2026, 2, 18, 0, 0, 0, 0, time.UTC))
	require.NotNil(t, first.ObservanceDayIndex)
	assert.Equal(t, 1, *first.ObservanceDayIndex)
	assert.Equal(t, DayObservance, first.Class)

	// Observance days carry the narrowed hours window.
	assert.Equal(t, HoursWindow{Start: 9, End: 14}, first.Hours)
	assert.Equal(t, 5*60, first.WorkingMinutes)
	assert.True(t, first.IsWorkingDay())

	// Eighth day.
	eighth := cal.Classify(time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC))
	require.NotNil(t, eighth.ObservanceDayIndex)
	assert.Equal(t, 8, *eighth.ObservanceDayIndex)
}

func TestClassifyObservanceYearOutsideTable(t *testing.T) {
	cal := New(testConfig())

	// 2027 is not in the table: no observance, never a guess.
	ctx := cal.Classify(time.Date(2027, 2, 25, 0, 0, 0, 0, time.UTC))
	assert.Nil(t, ctx.ObservanceDayIndex)
	assert.Equal(t, DayWorking, ctx.Class)
	assert.Equal(t, HoursWindow{Start: 10, End: 20}, ctx.Hours)
}

func TestClassifyWeekendWinsOverObservance(t *testing.T) {
	cal := New(testConfig())

	// 2026-02-20 is a Friday inside the observance period.
	ctx := cal.Classify(time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, DayWeekend, ctx.Class)
	assert.Equal(t, 0, ctx.WorkingMinutes)

	// The day class yields to the weekend, but observance membership stays
	// visible so both contexts can act on the date.
	require.NotNil(t, ctx.ObservanceDayIndex)
	assert.Equal(t, 3, *ctx.ObservanceDayIndex)
}

func TestFiscalSeasonWrapsYearBoundary(t *testing.T) {
	cal := New(testConfig())

	assert.Equal(t, "fiscal_close", cal.Classify(time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)).FiscalSeason)
	assert.Equal(t, "fiscal_close", cal.Classify(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)).FiscalSeason)
	assert.Equal(t, "", cal.Classify(time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)).FiscalSeason)
}

func TestBusinessDaysBetween(t *testing.T) {
	cal := New(testConfig())

	tests := []struct {
		name     string
		from     time.Time
		to       time.Time
		expected int
	}{
		{
			// Sun Jan 11 .. Sun Jan 18 2026: Fri 16 and Sat 17 skipped.
			name:     "one week skips weekend",
			from:     time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC),
			to:       time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC),
			expected: 5,
		},
		{
			name:     "empty range",
			from:     time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
			to:       time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
			expected: 0,
		},
		{
			name:     "reversed range",
			from:     time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC),
			to:       time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC),
			expected: 0,
		},
		{
			// Week containing the Sep 23 holiday (a Wednesday in 2026).
			name:     "holiday skipped",
			from:     time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC),
			to:       time.Date(2026, 9, 27, 0, 0, 0, 0, time.UTC),
			expected: 4,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, cal.BusinessDaysBetween(test.from, test.to))
		})
	}
}

func TestAddBusinessDays(t *testing.T) {
	cal := New(testConfig())

	// Thu Jan 15 2026 + 1 business day lands on Sun Jan 18 (Fri/Sat weekend).
	next := cal.AddBusinessDays(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), 1)
	assert.Equal(t, time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC), next)

	// Adding zero returns the same date.
	same := cal.AddBusinessDays(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), 0)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), same)
}

func TestNextBusinessDay(t *testing.T) {
	cal := New(testConfig())

	// From inside the weekend.
	next := cal.NextBusinessDay(time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), next)
}
