package calendar

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/teambition/rrule-go"

	"github.com/warp/deposit-engine/generic"
)

// =============================================================================
// FREQUENCY - How often a collection calendar repeats
// =============================================================================

type FrequencyType string

const (
	FrequencyDaily   FrequencyType = "daily"
	FrequencyWeekly  FrequencyType = "weekly"
	FrequencyMonthly FrequencyType = "monthly"
	FrequencyYearly  FrequencyType = "yearly"
)

// UnspecifiedInterval is the legacy "not set" marker. Existing accounts were
// scheduled as if it were 1, so it still normalizes to 1.
const UnspecifiedInterval = -1

// Frequency is a frequency type with its repeat interval, e.g. every 2 weeks.
type Frequency struct {
	Type     FrequencyType
	Interval int
}

// Unit returns the term unit one frequency step advances by.
func (t FrequencyType) Unit() (generic.TermUnit, bool) {
	switch t {
	case FrequencyDaily:
		return generic.UnitDays, true
	case FrequencyWeekly:
		return generic.UnitWeeks, true
	case FrequencyMonthly:
		return generic.UnitMonths, true
	case FrequencyYearly:
		return generic.UnitYears, true
	}
	return "", false
}

func (t FrequencyType) IsValid() bool {
	_, ok := t.Unit()
	return ok
}

// NormalizeInterval maps the legacy sentinel (-1) and the unset zero value to
// 1 and rejects any other non-positive interval.
func NormalizeInterval(interval int) (int, error) {
	switch {
	case interval > 0:
		return interval, nil
	case interval == 0 || interval == UnspecifiedInterval:
		return 1, nil
	default:
		return 0, &generic.InvalidTermError{Field: "interval", Reason: fmt.Sprintf("must be positive, got %d", interval)}
	}
}

// Normalized validates the frequency and returns it with a positive interval.
func (f Frequency) Normalized() (Frequency, error) {
	if !f.Type.IsValid() {
		return Frequency{}, &generic.InvalidTermError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", f.Type)}
	}
	interval, err := NormalizeInterval(f.Interval)
	if err != nil {
		return Frequency{}, err
	}
	return Frequency{Type: f.Type, Interval: interval}, nil
}

func (f Frequency) String() string {
	return fmt.Sprintf("every %d %s", f.Interval, f.Type)
}

// =============================================================================
// RECURRENCE RULE CONVERSION
// =============================================================================

var rruleFrequencies = map[FrequencyType]rrule.Frequency{
	FrequencyDaily:   rrule.DAILY,
	FrequencyWeekly:  rrule.WEEKLY,
	FrequencyMonthly: rrule.MONTHLY,
	FrequencyYearly:  rrule.YEARLY,
}

// indexed by time.Weekday
var rruleWeekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// RecurrenceRule renders the frequency as an RFC 5545 rule. The BYDAY /
// BYMONTHDAY part is derived from start, never supplied separately.
func (f Frequency) RecurrenceRule(start civil.Date) (string, error) {
	n, err := f.Normalized()
	if err != nil {
		return "", err
	}

	opt := rrule.ROption{Freq: rruleFrequencies[n.Type], Interval: n.Interval}
	switch n.Type {
	case FrequencyWeekly:
		opt.Byweekday = []rrule.Weekday{rruleWeekdays[generic.Weekday(start)]}
	case FrequencyMonthly:
		opt.Bymonthday = []int{start.Day}
	}
	return opt.RRuleString(), nil
}

// ParseRecurrenceRule extracts the frequency and interval from an RFC 5545
// rule. Anchors in the rule are ignored; they always follow the start date.
func ParseRecurrenceRule(rule string) (Frequency, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return Frequency{}, &generic.InvalidTermError{Field: "recurrence", Reason: err.Error()}
	}

	for t, rf := range rruleFrequencies {
		if rf == opt.Freq {
			return Frequency{Type: t, Interval: opt.Interval}.Normalized()
		}
	}
	return Frequency{}, &generic.InvalidTermError{Field: "recurrence", Reason: "unsupported frequency in " + rule}
}
