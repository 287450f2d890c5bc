package calendar

import (
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/warp/deposit-engine/generic"
)

// MaxScheduleEntries bounds a generated schedule (e.g. a daily calendar over
// a very long term).
const MaxScheduleEntries = 50000

// ScheduleEntry is one due date of a schedule.
type ScheduleEntry struct {
	Index   int
	DueDate civil.Date
}

// Schedule is an ordered, finite list of due dates. It is regenerated from
// its calendar and term whenever needed and never edited in place.
type Schedule struct {
	Start              civil.Date
	Entries            []ScheduleEntry
	ContractedMaturity civil.Date

	// Truncated is set when a pre-closure date cut the schedule short.
	Truncated bool
}

// MaturityDate is the due date of the last entry.
func (s Schedule) MaturityDate() civil.Date {
	if len(s.Entries) == 0 {
		return civil.Date{}
	}
	return s.Entries[len(s.Entries)-1].DueDate
}

// Periods returns the accrual periods between consecutive boundaries,
// starting at s.Start.
func (s Schedule) Periods() []generic.Period {
	periods := make([]generic.Period, len(s.Entries))
	prev := s.Start
	for i, e := range s.Entries {
		periods[i] = generic.Period{Start: prev, End: e.DueDate}
		prev = e.DueDate
	}
	return periods
}

// Generate expands cal into the due dates of term.
//
// Due dates are the calendar occurrences strictly after the start date and
// before the end of the term. The last entry is always the end of the term:
// the contracted maturity, or the closure date when a pre-closure cuts the
// term short. A term that is not a whole number of intervals therefore ends
// with a shorter stub period.
func Generate(cal CollectionCalendar, term generic.DepositTerm) (Schedule, error) {
	if err := term.Validate(); err != nil {
		return Schedule{}, err
	}

	start := cal.StartDate
	if generic.IsZeroDate(start) {
		start = term.StartDate
	}
	if generic.IsZeroDate(cal.SeriesStart) {
		cal.SeriesStart = start
	}

	maturity := term.Tenor.End(start)
	end := maturity
	truncated := false
	if term.PreClosure && term.ClosureDate.Before(maturity) {
		end = term.ClosureDate
		truncated = true
	}
	if !end.After(start) {
		return Schedule{}, &generic.InvalidTermError{Field: "closure_date", Reason: "must be after the schedule start"}
	}

	n, err := firstOccurrenceAfter(cal, start)
	if err != nil {
		return Schedule{}, err
	}

	var entries []ScheduleEntry
	for {
		due, err := cal.Occurrence(n)
		if err != nil {
			return Schedule{}, err
		}
		if !due.Before(end) {
			break
		}
		entries = append(entries, ScheduleEntry{Index: len(entries), DueDate: due})
		if len(entries) >= MaxScheduleEntries {
			return Schedule{}, &generic.InvalidTermError{
				Field:  "term_length",
				Reason: fmt.Sprintf("schedule exceeds %d entries", MaxScheduleEntries),
			}
		}
		n++
	}
	entries = append(entries, ScheduleEntry{Index: len(entries), DueDate: end})

	return Schedule{
		Start:              start,
		Entries:            entries,
		ContractedMaturity: maturity,
		Truncated:          truncated,
	}, nil
}

// Upcoming returns the next n occurrences of cal strictly after d.
func Upcoming(cal CollectionCalendar, d civil.Date, n int) ([]civil.Date, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > MaxScheduleEntries {
		n = MaxScheduleEntries
	}
	if generic.IsZeroDate(cal.SeriesStart) {
		cal.SeriesStart = cal.StartDate
	}

	k, err := firstOccurrenceAfter(cal, d)
	if err != nil {
		return nil, err
	}
	dates := make([]civil.Date, 0, n)
	for i := 0; i < n; i++ {
		occ, err := cal.Occurrence(k + i)
		if err != nil {
			return nil, err
		}
		dates = append(dates, occ)
	}
	return dates, nil
}

// firstOccurrenceAfter returns the smallest n whose occurrence falls after d.
func firstOccurrenceAfter(cal CollectionCalendar, d civil.Date) (int, error) {
	f, err := cal.Frequency.Normalized()
	if err != nil {
		return 0, err
	}
	unit, _ := f.Type.Unit()

	// Jump close to d first; inherited series may have started years ago.
	n := unit.Between(cal.SeriesStart, d) / f.Interval
	if n < 0 {
		n = 0
	}
	for {
		occ, err := cal.Occurrence(n)
		if err != nil {
			return 0, err
		}
		if occ.After(d) {
			return n, nil
		}
		n++
	}
}
