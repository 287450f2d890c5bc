/*
Package maturity computes deposit maturity from a generated schedule.

PURPOSE:
  Given a deposit term, its schedule of due dates and the selected nominal
  annual rate, compute the maturity date, the maturity amount and the
  interest the depositor can expect.

KEY TYPES:
  RateChart:        Tenor brackets (optionally amount bands) mapped to rates
  CalculationInput: Term, schedule, rate and posting options of one run
  MaturityResult:   The computed outcome, fresh on every call

ALGORITHM:
  The balance is carried period by period at full precision:

    for each schedule period:
      when interest is posted at every period end:
        accrue over the whole period and compound once at its end
      otherwise:
        split the period at compounding boundaries
        accrue balance * rate * day-count fraction for each slice
        compound at boundaries, and at the end of the last period
      add the installment at the due date (recurring terms, except the last)

  The maturity amount is rounded once, at the very end, to the currency
  scale. Intermediate amounts are never rounded.

DAY COUNTS:
  actual/365, actual/360, actual/364, 30/360 and actual/actual. The last one
  splits periods at financial-year boundaries and uses the length of each
  financial year (365 or 366 days) as the basis.

SEE ALSO:
  - rate.go: Select
  - daycount.go: YearFractions
  - calendar/schedule.go: Generate
*/
package maturity

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/warp/deposit-engine/calendar"
	"github.com/warp/deposit-engine/generic"
)

// CalculationInput is one maturity calculation request.
type CalculationInput struct {
	Term     generic.DepositTerm
	Schedule calendar.Schedule

	// AnnualRate is the selected nominal annual rate in percent.
	AnnualRate decimal.Decimal

	// IsPreClosure stops accrual at Term.ClosureDate and applies the term's
	// pre-closure penal rate. A closure on or after the contracted maturity
	// is not a pre-closure and is ignored.
	IsPreClosure bool

	// PostInterestAtPeriodEnd compounds once at every schedule period end
	// and ignores the term's compounding boundaries.
	PostInterestAtPeriodEnd bool

	// FinancialYearStartMonth overrides the term's financial year for the
	// actual/actual day count. Zero keeps the term's.
	FinancialYearStartMonth time.Month
}

// MaturityResult is the outcome of Calculate.
type MaturityResult struct {
	MaturityDate     civil.Date
	MaturityAmount   generic.Money
	ExpectedInterest generic.Money
	DepositAmount    generic.Money

	// DepositPeriod is the term length, or the whole units actually elapsed
	// when the deposit is closed early.
	DepositPeriod          int
	DepositPeriodFrequency generic.TermUnit

	// AnnualRate is the rate used, after any pre-closure penalty.
	AnnualRate decimal.Decimal
}

// Calculate runs the period-by-period compounding over in.Schedule.
func Calculate(in CalculationInput) (MaturityResult, error) {
	term := in.Term
	if err := term.Validate(); err != nil {
		return MaturityResult{}, err
	}
	if len(in.Schedule.Entries) == 0 {
		return MaturityResult{}, &generic.InvalidTermError{Field: "schedule", Reason: "must contain at least one due date"}
	}
	if in.IsPreClosure && generic.IsZeroDate(term.ClosureDate) {
		return MaturityResult{}, &generic.InvalidTermError{Field: "closure_date", Reason: "required for pre-closure"}
	}

	fyStart := in.FinancialYearStartMonth
	if fyStart == 0 {
		fyStart = term.FinancialYearStartMonth
	}
	if fyStart < time.January || fyStart > time.December {
		return MaturityResult{}, &generic.InvalidTermError{Field: "financial_year_start_month", Reason: "must be between 1 and 12"}
	}

	contracted := in.Schedule.ContractedMaturity
	if generic.IsZeroDate(contracted) {
		contracted = term.ContractedMaturity()
	}
	preClosure := in.IsPreClosure && term.ClosureDate.Before(contracted)

	rate := in.AnnualRate
	if preClosure {
		rate = rate.Sub(term.PreClosurePenalRate)
	}

	periods := in.Schedule.Periods()
	if preClosure {
		periods = clip(periods, term.ClosureDate)
		if len(periods) == 0 {
			return MaturityResult{}, &generic.InvalidTermError{Field: "closure_date", Reason: "must be after the schedule start"}
		}
	}

	c := compounder{
		rate:        rate,
		dayCount:    term.DayCount,
		fyStart:     fyStart,
		compounding: term.Compounding,
		origin:      in.Schedule.Start,
		next:        1,
		balance:     term.Principal.Value,
		accrued:     decimal.Zero,
	}
	deposits := term.Principal.Value

	for i, p := range periods {
		last := i == len(periods)-1
		var err error
		if in.PostInterestAtPeriodEnd {
			err = c.post(p)
		} else {
			err = c.run(p, last)
		}
		if err != nil {
			return MaturityResult{}, err
		}
		if !last && term.IsRecurring() {
			c.balance = c.balance.Add(term.Installment)
			deposits = deposits.Add(term.Installment)
		}
	}

	currency := term.Principal.Currency
	maturityAmount := generic.NewMoneyFromDecimal(c.balance, currency).Round(term.Rounding)
	depositAmount := generic.NewMoneyFromDecimal(deposits, currency)
	interest := maturityAmount.Sub(depositAmount).Max(depositAmount.Zero())

	maturityDate := periods[len(periods)-1].End
	depositPeriod := term.Tenor.Length
	if preClosure || in.Schedule.Truncated {
		depositPeriod = term.Tenor.Unit.Between(in.Schedule.Start, maturityDate)
	}

	return MaturityResult{
		MaturityDate:           maturityDate,
		MaturityAmount:         maturityAmount,
		ExpectedInterest:       interest,
		DepositAmount:          depositAmount,
		DepositPeriod:          depositPeriod,
		DepositPeriodFrequency: term.Tenor.Unit,
		AnnualRate:             rate,
	}, nil
}

// clip drops periods starting on or after end and shortens the one that
// straddles it.
func clip(periods []generic.Period, end civil.Date) []generic.Period {
	var out []generic.Period
	for _, p := range periods {
		if !p.Start.Before(end) {
			break
		}
		if p.End.After(end) {
			p.End = end
		}
		out = append(out, p)
	}
	return out
}

// =============================================================================
// COMPOUNDER - Running balance and uncompounded interest
// =============================================================================

type compounder struct {
	rate        decimal.Decimal
	dayCount    generic.DayCountConvention
	fyStart     time.Month
	compounding generic.CompoundingPeriod

	// origin and next locate the next compounding boundary:
	// compounding.Boundary(origin, next).
	origin civil.Date
	next   int

	balance decimal.Decimal
	accrued decimal.Decimal
}

// run accrues over p, compounding at every boundary inside it. When
// compoundAtEnd is set the interest accrued by the end of p is compounded
// even if p.End is not a boundary.
func (c *compounder) run(p generic.Period, compoundAtEnd bool) error {
	if p.IsEmpty() {
		return &generic.InvalidTermError{Field: "schedule", Reason: "zero-length period " + p.String()}
	}
	cursor := p.Start
	for {
		boundary := c.boundary(cursor)
		if !boundary.Before(p.End) {
			if err := c.accrue(generic.Period{Start: cursor, End: p.End}); err != nil {
				return err
			}
			if boundary == p.End || compoundAtEnd {
				c.compound()
			}
			return nil
		}
		if err := c.accrue(generic.Period{Start: cursor, End: boundary}); err != nil {
			return err
		}
		c.compound()
		cursor = boundary
	}
}

// post accrues over the whole of p and compounds once at p.End.
func (c *compounder) post(p generic.Period) error {
	if p.IsEmpty() {
		return &generic.InvalidTermError{Field: "schedule", Reason: "zero-length period " + p.String()}
	}
	if err := c.accrue(p); err != nil {
		return err
	}
	c.compound()
	return nil
}

// boundary returns the first compounding boundary after d.
func (c *compounder) boundary(d civil.Date) civil.Date {
	b := c.compounding.Boundary(c.origin, c.next)
	for !b.After(d) {
		c.next++
		b = c.compounding.Boundary(c.origin, c.next)
	}
	return b
}

func (c *compounder) accrue(p generic.Period) error {
	if p.IsEmpty() {
		return nil
	}
	fractions, err := YearFractions(c.dayCount, p, c.fyStart)
	if err != nil {
		return err
	}
	c.accrued = c.accrued.Add(accrue(c.balance, c.rate, fractions))
	return nil
}

func (c *compounder) compound() {
	c.balance = c.balance.Add(c.accrued)
	c.accrued = decimal.Zero
}
