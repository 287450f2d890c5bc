package generic

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// =============================================================================
// TERM UNITS - How long a deposit runs
// =============================================================================

type TermUnit string

const (
	UnitDays   TermUnit = "days"
	UnitWeeks  TermUnit = "weeks"
	UnitMonths TermUnit = "months"
	UnitYears  TermUnit = "years"
)

func (u TermUnit) IsValid() bool {
	switch u {
	case UnitDays, UnitWeeks, UnitMonths, UnitYears:
		return true
	}
	return false
}

// Add moves d by n units. Month and year steps keep anchorDay as the day of
// month, clamped to the end of shorter months.
func (u TermUnit) Add(d civil.Date, n int, anchorDay int) civil.Date {
	switch u {
	case UnitDays:
		return d.AddDays(n)
	case UnitWeeks:
		return d.AddDays(7 * n)
	case UnitMonths:
		return AddMonths(d, n, anchorDay)
	case UnitYears:
		return AddMonths(d, 12*n, anchorDay)
	default:
		return d
	}
}

// Between counts whole units from `from` to `to`.
func (u TermUnit) Between(from, to civil.Date) int {
	switch u {
	case UnitDays:
		return DaysBetween(from, to)
	case UnitWeeks:
		return DaysBetween(from, to) / 7
	case UnitMonths:
		return MonthsBetween(from, to)
	case UnitYears:
		return MonthsBetween(from, to) / 12
	default:
		return 0
	}
}

// Tenor is a term length with its unit, e.g. 6 months.
type Tenor struct {
	Length int
	Unit   TermUnit
}

// End returns the date the tenor elapses when started on start.
func (t Tenor) End(start civil.Date) civil.Date {
	return t.Unit.Add(start, t.Length, start.Day)
}

// In converts the tenor to another unit by measuring it on the calendar from
// start. Same-unit conversion is exact and does not need a start date.
func (t Tenor) In(unit TermUnit, start civil.Date) int {
	if unit == t.Unit {
		return t.Length
	}
	return unit.Between(start, t.End(start))
}

// =============================================================================
// INTEREST CONVENTIONS
// =============================================================================

// CompoundingPeriod is how often accrued interest is added to the balance
// when it is not posted at every collection period end.
type CompoundingPeriod string

const (
	CompoundDaily      CompoundingPeriod = "daily"
	CompoundMonthly    CompoundingPeriod = "monthly"
	CompoundQuarterly  CompoundingPeriod = "quarterly"
	CompoundSemiAnnual CompoundingPeriod = "semi_annual"
	CompoundAnnual     CompoundingPeriod = "annual"
)

func (c CompoundingPeriod) IsValid() bool {
	_, _, ok := c.step()
	return ok
}

// Boundary returns the n-th compounding date counted from start.
func (c CompoundingPeriod) Boundary(start civil.Date, n int) civil.Date {
	unit, size, _ := c.step()
	return unit.Add(start, n*size, start.Day)
}

func (c CompoundingPeriod) step() (TermUnit, int, bool) {
	switch c {
	case CompoundDaily:
		return UnitDays, 1, true
	case CompoundMonthly:
		return UnitMonths, 1, true
	case CompoundQuarterly:
		return UnitMonths, 3, true
	case CompoundSemiAnnual:
		return UnitMonths, 6, true
	case CompoundAnnual:
		return UnitMonths, 12, true
	default:
		return "", 0, false
	}
}

// DayCountConvention converts a date interval into a fraction of a year.
type DayCountConvention string

const (
	DayCountActual365    DayCountConvention = "actual_365"
	DayCountActual360    DayCountConvention = "actual_360"
	DayCountActual364    DayCountConvention = "actual_364"
	DayCountActualActual DayCountConvention = "actual_actual" // financial-year aware
	DayCount30360        DayCountConvention = "30_360"
)

func (d DayCountConvention) IsValid() bool {
	switch d {
	case DayCountActual365, DayCountActual360, DayCountActual364, DayCountActualActual, DayCount30360:
		return true
	}
	return false
}

// =============================================================================
// DEPOSIT TERM - Everything the maturity calculation needs to know
// =============================================================================

// DepositTerm is the immutable description of a fixed or recurring deposit
// contract at calculation time.
type DepositTerm struct {
	StartDate civil.Date
	Principal Money

	// Installment is added on every due date except the last. Zero for fixed
	// deposits.
	Installment decimal.Decimal

	Tenor                   Tenor
	Compounding             CompoundingPeriod
	DayCount                DayCountConvention
	FinancialYearStartMonth time.Month
	Rounding                RoundingMode

	PreClosure          bool
	ClosureDate         civil.Date
	PreClosurePenalRate decimal.Decimal
}

// ContractedMaturity is the date the term elapses, ignoring pre-closure.
func (t DepositTerm) ContractedMaturity() civil.Date {
	return t.Tenor.End(t.StartDate)
}

// IsRecurring reports whether the term collects periodic installments.
func (t DepositTerm) IsRecurring() bool { return t.Installment.IsPositive() }

// Validate checks the contract invariants the engine relies on.
func (t DepositTerm) Validate() error {
	switch {
	case IsZeroDate(t.StartDate) || !t.StartDate.IsValid():
		return &InvalidTermError{Field: "start_date", Reason: "must be a valid date"}
	case !t.Principal.IsPositive():
		return &InvalidTermError{Field: "principal", Reason: "must be positive"}
	case t.Principal.Currency.DecimalPlaces < 0 || t.Principal.Currency.DecimalPlaces > 6:
		return &InvalidTermError{Field: "currency", Reason: "decimal places must be between 0 and 6"}
	case !fitsScale(t.Principal.Value, t.Principal.Currency.DecimalPlaces):
		return &InvalidTermError{Field: "principal", Reason: "has more decimal places than " + t.Principal.Currency.Code + " allows"}
	case t.Installment.IsNegative():
		return &InvalidTermError{Field: "installment", Reason: "must not be negative"}
	case !fitsScale(t.Installment, t.Principal.Currency.DecimalPlaces):
		return &InvalidTermError{Field: "installment", Reason: "has more decimal places than " + t.Principal.Currency.Code + " allows"}
	case t.Tenor.Length <= 0:
		return &InvalidTermError{Field: "term_length", Reason: "must be positive"}
	case !t.Tenor.Unit.IsValid():
		return &InvalidTermError{Field: "term_unit", Reason: "unknown unit " + string(t.Tenor.Unit)}
	case !t.Compounding.IsValid():
		return &InvalidTermError{Field: "compounding", Reason: "unknown compounding period " + string(t.Compounding)}
	case !t.DayCount.IsValid():
		return &InvalidTermError{Field: "day_count", Reason: "unknown convention " + string(t.DayCount)}
	case t.FinancialYearStartMonth < time.January || t.FinancialYearStartMonth > time.December:
		return &InvalidTermError{Field: "financial_year_start_month", Reason: "must be between 1 and 12"}
	case t.Rounding != "" && !t.Rounding.IsValid():
		return &InvalidTermError{Field: "rounding", Reason: "unknown rounding mode " + string(t.Rounding)}
	}

	if t.PreClosure {
		if IsZeroDate(t.ClosureDate) {
			return &InvalidTermError{Field: "closure_date", Reason: "required for pre-closure"}
		}
		if !t.ClosureDate.After(t.StartDate) {
			return &InvalidTermError{Field: "closure_date", Reason: "must be after the start date"}
		}
	}
	return nil
}

// fitsScale reports whether v has no digits beyond places decimals.
func fitsScale(v decimal.Decimal, places int32) bool {
	return v.Equal(v.Truncate(places))
}
