package generic

import (
	"time"

	"cloud.google.com/go/civil"
)

// =============================================================================
// PERIOD - A half-open date range [Start, End)
// =============================================================================

// Period is the span between two consecutive schedule boundaries. Interest
// for a period accrues on the days in [Start, End).
type Period struct {
	Start civil.Date
	End   civil.Date
}

// Contains returns true if d is within [Start, End).
func (p Period) Contains(d civil.Date) bool {
	return OnOrAfter(d, p.Start) && d.Before(p.End)
}

// Days returns the number of accruing days in the period.
func (p Period) Days() int { return DaysBetween(p.Start, p.End) }

func (p Period) IsEmpty() bool { return !p.End.After(p.Start) }

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + ")"
}

// =============================================================================
// FINANCIAL YEAR - Year boundaries for actual/actual day counting
// =============================================================================

// FinancialYear describes a year beginning on the first day of StartMonth.
type FinancialYear struct {
	StartMonth time.Month
}

// PeriodFor returns the financial year containing d.
func (fy FinancialYear) PeriodFor(d civil.Date) Period {
	month := fy.StartMonth
	if month < time.January || month > time.December {
		month = time.January
	}

	start := civil.Date{Year: d.Year, Month: month, Day: 1}
	// If d is before this year's start, d belongs to the previous financial year
	if d.Before(start) {
		start.Year--
	}
	end := start
	end.Year++
	return Period{Start: start, End: end}
}

// Split cuts p at financial-year boundaries. Each piece lies inside exactly
// one financial year, returned alongside that year's length in days.
func (fy FinancialYear) Split(p Period) []YearSlice {
	var slices []YearSlice
	cursor := p.Start
	for cursor.Before(p.End) {
		year := fy.PeriodFor(cursor)
		end := MinDate(year.End, p.End)
		slices = append(slices, YearSlice{
			Period:     Period{Start: cursor, End: end},
			DaysInYear: year.Days(),
		})
		cursor = end
	}
	return slices
}

// YearSlice is a piece of a period contained in a single financial year.
type YearSlice struct {
	Period     Period
	DaysInYear int
}
