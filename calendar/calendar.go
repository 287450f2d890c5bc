/*
Package calendar resolves and expands deposit collection calendars.

PURPOSE:
  A collection calendar is the recurrence that governs when a deposit
  account collects installments and posts interest. An account either owns
  a standalone calendar or inherits, by reference, the meeting calendar of
  its group or of that group's center.

KEY TYPES:
  Frequency:          Frequency type + interval, convertible to an RFC 5545 rule
  CollectionCalendar: The effective calendar of one account
  Resolver:           Chooses between inheritance and a standalone calendar
  Schedule:           Ordered, finite due dates generated from a calendar

INHERITANCE:
  client --(exactly one)--> group --(optional)--> center

  The effective entity is the center when the group has one, the group
  otherwise. Zero or several groups are errors; the resolver never picks
  one on the caller's behalf.

ANCHORS:
  Weekly calendars repeat on the weekday of their series start, monthly
  calendars on its day of month (clamped at month end). The anchor is
  always derived from the series start.

SEE ALSO:
  - resolver.go: Resolve
  - schedule.go: Generate
  - generic/store.go: CalendarReader, Directory
*/
package calendar

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/warp/deposit-engine/generic"
)

// Provenance records where an account's calendar came from.
type Provenance string

const (
	ProvenanceStandalone          Provenance = "standalone"
	ProvenanceInheritedFromGroup  Provenance = "inherited_from_group"
	ProvenanceInheritedFromCenter Provenance = "inherited_from_center"
)

func (p Provenance) IsInherited() bool {
	return p == ProvenanceInheritedFromGroup || p == ProvenanceInheritedFromCenter
}

// Anchor is the weekday and day of month a calendar repeats on.
type Anchor struct {
	Weekday    time.Weekday
	DayOfMonth int
}

// AnchorOf derives the anchor of a series starting on d.
func AnchorOf(d civil.Date) Anchor {
	return Anchor{Weekday: generic.Weekday(d), DayOfMonth: d.Day}
}

// CollectionCalendar is the effective calendar of one deposit account.
type CollectionCalendar struct {
	// ID is the referenced parent calendar for inherited calendars and the
	// persisted ID of a standalone one (empty until it is stored).
	ID generic.CalendarID

	// StartDate is the deposit start; the schedule counts from here.
	StartDate civil.Date

	// SeriesStart is the first occurrence of the recurrence. It equals
	// StartDate for standalone calendars and the parent's start otherwise.
	SeriesStart civil.Date

	Frequency     Frequency
	Anchor        Anchor
	Provenance    Provenance
	Owner         generic.Owner
	InheritedFrom *generic.Owner
}

// Record converts a standalone calendar to its persisted form.
func (c CollectionCalendar) Record() (generic.CalendarRecord, error) {
	rule, err := c.Frequency.RecurrenceRule(c.SeriesStart)
	if err != nil {
		return generic.CalendarRecord{}, err
	}
	return generic.CalendarRecord{
		ID:        c.ID,
		Title:     "collection:" + c.Owner.String(),
		Type:      generic.CalendarTypeCollection,
		StartDate: c.SeriesStart,
		Rule:      rule,
	}, nil
}

// Occurrence returns the n-th date of the series (0 is SeriesStart).
func (c CollectionCalendar) Occurrence(n int) (civil.Date, error) {
	f, err := c.Frequency.Normalized()
	if err != nil {
		return civil.Date{}, err
	}
	unit, _ := f.Type.Unit()
	return unit.Add(c.SeriesStart, n*f.Interval, c.anchorDay()), nil
}

func (c CollectionCalendar) anchorDay() int {
	if c.Anchor.DayOfMonth > 0 {
		return c.Anchor.DayOfMonth
	}
	return c.SeriesStart.Day
}

// FromRecord rebuilds the recurrence of a stored calendar.
func FromRecord(rec generic.CalendarRecord) (CollectionCalendar, error) {
	f, err := ParseRecurrenceRule(rec.Rule)
	if err != nil {
		return CollectionCalendar{}, err
	}
	return CollectionCalendar{
		ID:          rec.ID,
		StartDate:   rec.StartDate,
		SeriesStart: rec.StartDate,
		Frequency:   f,
		Anchor:      AnchorOf(rec.StartDate),
	}, nil
}
