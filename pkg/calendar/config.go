// Package calendar implements the business calendar: weekend and holiday
// classification, lunar-observance periods with shifted working hours,
// fiscal seasons, and business-day arithmetic.
package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// MonthDay is a recurring calendar date (fixed-date holidays, fiscal season
// boundaries).
type MonthDay struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Day   int `json:"day" validate:"required,min=1,max=31"`
}

// DateRange is an inclusive civil-date range.
type DateRange struct {
	Start CivilDate `json:"start" validate:"required"`
	End   CivilDate `json:"end" validate:"required"`
}

// CivilDate is a timezone-free calendar date serialized as "2006-01-02".
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

func (d CivilDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d *CivilDate) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return fmt.Errorf("invalid civil date %q: %w", raw, err)
	}
	d.Year, d.Month, d.Day = t.Year(), t.Month(), t.Day()
	return nil
}

func (d CivilDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time().Format("2006-01-02"))
}

// HoursWindow is a [start, end) working-hours window in whole hours.
// A zero window means the day has no working hours.
type HoursWindow struct {
	Start int `json:"start" validate:"min=0,max=24"`
	End   int `json:"end" validate:"min=0,max=24"`
}

// Minutes returns the window length in minutes.
func (w HoursWindow) Minutes() int {
	if w.End <= w.Start {
		return 0
	}
	return (w.End - w.Start) * 60
}

// FiscalSeason is a recurring annual season (e.g. fiscal close).
type FiscalSeason struct {
	Label string   `json:"label" validate:"required"`
	Start MonthDay `json:"start" validate:"required"`
	End   MonthDay `json:"end" validate:"required"`
}

// Config is the calendar configuration document. Loaded once at process
// start and read-only afterwards.
type Config struct {
	// WeekendDays holds exactly the two configured weekend weekdays
	// (time.Weekday values, 0 = Sunday).
	WeekendDays []int `json:"weekend_days" validate:"required,min=1,max=3,dive,min=0,max=6"`

	// Holidays are fixed-date public holidays, recurring every year.
	Holidays []MonthDay `json:"holidays" validate:"dive"`

	// ObservanceTable maps a year to that year's precomputed observance
	// date ranges. This is refreshed configuration data, not an astronomical
	// calculation; years outside the table classify as no observance.
	ObservanceTable map[int][]DateRange `json:"observance_table" validate:"dive,dive"`

	// FiscalSeasons are recurring annual season windows.
	FiscalSeasons []FiscalSeason `json:"fiscal_seasons" validate:"dive"`

	// WorkingHours is the normal working window.
	WorkingHours HoursWindow `json:"working_hours"`

	// ObservanceHours is the narrowed window during observance periods.
	ObservanceHours HoursWindow `json:"observance_hours"`
}

// DefaultConfig returns the stock calendar: Saturday/Sunday weekends,
// 10:00-20:00 working hours, 09:00-14:00 during observance.
func DefaultConfig() Config {
	return Config{
		WeekendDays:     []int{int(time.Saturday), int(time.Sunday)},
		WorkingHours:    HoursWindow{Start: 10, End: 20},
		ObservanceHours: HoursWindow{Start: 9, End: 14},
	}
}

// LoadConfig reads and validates a calendar configuration document.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read calendar config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse calendar config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate calendar config: %w", err)
	}

	if cfg.WorkingHours.Minutes() == 0 {
		cfg.WorkingHours = HoursWindow{Start: 10, End: 20}
	}
	if cfg.ObservanceHours.Minutes() == 0 {
		cfg.ObservanceHours = HoursWindow{Start: 9, End: 14}
	}

	return cfg, nil
}
