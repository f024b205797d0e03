// Package seasonal derives date-adjusted threshold documents. The persisted
// configuration is never mutated here; it is cloned, adjusted, and returned.
package seasonal

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/sage/pkg/calendar"
	"github.com/Ramsey-B/sage/pkg/models"
)

// ContextKind names a calendar condition a rule can bind to.
type ContextKind string

const (
	ContextWeekend      ContextKind = "weekend"
	ContextHoliday      ContextKind = "public_holiday"
	ContextObservance   ContextKind = "observance"
	ContextFiscalSeason ContextKind = "fiscal_season"
)

// Rule maps one calendar context to per-signal-type multiplicative factors.
type Rule struct {
	Context ContextKind `json:"context" validate:"required,oneof=weekend public_holiday observance fiscal_season"`
	// Label narrows fiscal_season rules to one season; empty matches any.
	Label string `json:"label,omitempty"`
	// Factor applies to every signal type without an override.
	Factor float64 `json:"factor" validate:"required,gt=0"`
	// Overrides replaces Factor for specific signal types.
	Overrides map[string]float64 `json:"overrides,omitempty" validate:"dive,gt=0"`
}

// rulesDocument is the seasonal section of the calendar configuration file.
type rulesDocument struct {
	SeasonalRules []Rule `json:"seasonal_rules" validate:"dive"`
}

// LoadRules reads the seasonal rules from the calendar configuration
// document. A document without a seasonal section yields no rules, which
// means no modification on any date.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seasonal rules: %w", err)
	}

	var doc rulesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seasonal rules: %w", err)
	}
	if err := validator.New().Struct(doc); err != nil {
		return nil, fmt.Errorf("validate seasonal rules: %w", err)
	}
	return doc.SeasonalRules, nil
}

// AppliedFactor records one rule's contribution to a derived threshold.
type AppliedFactor struct {
	Context ContextKind `json:"context"`
	Label   string      `json:"label,omitempty"`
	Factor  float64     `json:"factor"`
}

// Modification describes everything Apply did to one date's thresholds.
type Modification struct {
	Date     time.Time                `json:"date"`
	Active   bool                     `json:"active"`
	Contexts []AppliedFactor          `json:"contexts,omitempty"`
	Factors  map[string]float64       `json:"factors,omitempty"`
	Document models.ThresholdDocument `json:"document"`
}

// Modifier derives threshold documents for dates with active calendar
// contexts.
type Modifier struct {
	cal   *calendar.Calendar
	rules []Rule
}

// NewModifier creates a seasonal modifier.
func NewModifier(cal *calendar.Calendar, rules []Rule) *Modifier {
	return &Modifier{cal: cal, rules: rules}
}

// Active reports whether any seasonal rule matches the date. Fires while this
// is true are flagged so effectiveness scoring and calibration can exclude
// them.
func (m *Modifier) Active(date time.Time) bool {
	return len(m.matchingRules(date)) > 0
}

// Apply returns a derived copy of the threshold document with every matching
// rule's factor applied. Overlapping contexts stack multiplicatively. The
// input document is not modified.
func (m *Modifier) Apply(doc models.ThresholdDocument, date time.Time) Modification {
	matched := m.matchingRules(date)

	mod := Modification{
		Date:     date,
		Active:   len(matched) > 0,
		Document: doc.Clone(),
	}
	if len(matched) == 0 {
		return mod
	}

	mod.Factors = make(map[string]float64, len(mod.Document.Thresholds))
	for signalType, def := range mod.Document.Thresholds {
		factor := 1.0
		for _, rule := range matched {
			factor *= rule.factorFor(signalType)
		}
		mod.Factors[signalType] = factor

		def.Value *= factor
		mod.Document.Thresholds[signalType] = def
	}

	for _, rule := range matched {
		mod.Contexts = append(mod.Contexts, AppliedFactor{
			Context: rule.Context,
			Label:   rule.Label,
			Factor:  rule.Factor,
		})
	}

	return mod
}

func (m *Modifier) matchingRules(date time.Time) []Rule {
	day := m.cal.Classify(date)

	var matched []Rule
	for _, rule := range m.rules {
		switch rule.Context {
		case ContextWeekend:
			if day.IsWeekend {
				matched = append(matched, rule)
			}
		case ContextHoliday:
			if day.IsHoliday {
				matched = append(matched, rule)
			}
		case ContextObservance:
			if day.ObservanceDayIndex != nil {
				matched = append(matched, rule)
			}
		case ContextFiscalSeason:
			if day.FiscalSeason != "" && (rule.Label == "" || rule.Label == day.FiscalSeason) {
				matched = append(matched, rule)
			}
		}
	}
	return matched
}

func (r Rule) factorFor(signalType string) float64 {
	if override, ok := r.Overrides[signalType]; ok {
		return override
	}
	return r.Factor
}
