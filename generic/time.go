package generic

import (
	"time"

	"cloud.google.com/go/civil"
)

// =============================================================================
// DATES - Deposits are day-granular; civil.Date carries no time zone
// =============================================================================

// Date builds a civil.Date. Out-of-range days are normalized by time.Date.
func Date(year int, month time.Month, day int) civil.Date {
	return civil.DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func IsZeroDate(d civil.Date) bool { return d == civil.Date{} }

func OnOrBefore(a, b civil.Date) bool { return !a.After(b) }
func OnOrAfter(a, b civil.Date) bool  { return !a.Before(b) }

func Weekday(d civil.Date) time.Weekday { return d.In(time.UTC).Weekday() }

// DaysBetween returns the number of days from `from` to `to` (negative when
// `to` is earlier).
func DaysBetween(from, to civil.Date) int { return to.DaysSince(from) }

func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths moves d by n months keeping anchorDay as the day of month,
// clamped to the last valid day of the target month. Passing d.Day as the
// anchor gives plain add-months semantics (Jan 31 + 1 month = Feb 29 in 2024).
func AddMonths(d civil.Date, n int, anchorDay int) civil.Date {
	months := int(d.Month) - 1 + n
	year := d.Year + floorDiv(months, 12)
	month := time.Month(floorMod(months, 12) + 1)

	day := anchorDay
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

// MonthsBetween counts whole months from `from` to `to` using add-months
// semantics anchored on from.Day.
func MonthsBetween(from, to civil.Date) int {
	if to.Before(from) {
		return -MonthsBetween(to, from)
	}
	n := (to.Year-from.Year)*12 + int(to.Month) - int(from.Month)
	for n > 0 && AddMonths(from, n, from.Day).After(to) {
		n--
	}
	return n
}

func StartOfMonth(year int, month time.Month) civil.Date {
	return civil.Date{Year: year, Month: month, Day: 1}
}

func EndOfMonth(year int, month time.Month) civil.Date {
	return civil.Date{Year: year, Month: month, Day: DaysInMonth(year, month)}
}

func MinDate(a, b civil.Date) civil.Date {
	if a.Before(b) {
		return a
	}
	return b
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int { return a - floorDiv(a, b)*b }
