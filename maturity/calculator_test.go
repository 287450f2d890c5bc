package maturity_test

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/deposit-engine/calendar"
	"github.com/warp/deposit-engine/generic"
	"github.com/warp/deposit-engine/maturity"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func monthlyCalendar(start civil.Date) calendar.CollectionCalendar {
	return calendar.CollectionCalendar{
		StartDate:   start,
		SeriesStart: start,
		Frequency:   calendar.Frequency{Type: calendar.FrequencyMonthly, Interval: 1},
		Anchor:      calendar.AnchorOf(start),
		Provenance:  calendar.ProvenanceStandalone,
	}
}

func fixedTerm(principal string, start civil.Date, months int) generic.DepositTerm {
	return generic.DepositTerm{
		StartDate:               start,
		Principal:               generic.NewMoney(principal, generic.USD),
		Tenor:                   generic.Tenor{Length: months, Unit: generic.UnitMonths},
		Compounding:             generic.CompoundMonthly,
		DayCount:                generic.DayCountActual365,
		FinancialYearStartMonth: time.January,
		Rounding:                generic.RoundHalfEven,
	}
}

func calculate(t *testing.T, term generic.DepositTerm, rate string, postAtPeriodEnd bool) maturity.MaturityResult {
	t.Helper()
	schedule, err := calendar.Generate(monthlyCalendar(term.StartDate), term)
	require.NoError(t, err)

	result, err := maturity.Calculate(maturity.CalculationInput{
		Term:                    term,
		Schedule:                schedule,
		AnnualRate:              dec(rate),
		IsPreClosure:            term.PreClosure,
		PostInterestAtPeriodEnd: postAtPeriodEnd,
	})
	require.NoError(t, err)
	return result
}

// =============================================================================
// REFERENCE VALUES
// =============================================================================

func TestCalculate_MonthlyCompounding_SingleFinalRounding(t *testing.T) {
	// GIVEN: 1000.00 at 12% for 12 months, compounded every collection period
	// WHEN: Calculating maturity with actual/365
	// THEN: The full-precision balance 1127.19158... is rounded once

	term := fixedTerm("1000.00", generic.Date(2024, time.January, 1), 12)
	result := calculate(t, term, "12", true)

	assert.Equal(t, "1127.19", result.MaturityAmount.Value.StringFixed(2))
	assert.Equal(t, "127.19", result.ExpectedInterest.Value.StringFixed(2))
	assert.Equal(t, "1000.00", result.DepositAmount.Value.StringFixed(2))
	assert.Equal(t, generic.Date(2025, time.January, 1), result.MaturityDate)
	assert.Equal(t, 12, result.DepositPeriod)
	assert.Equal(t, generic.UnitMonths, result.DepositPeriodFrequency)
	assert.True(t, result.AnnualRate.Equal(dec("12")))
}

func TestCalculate_EndToEnd_StandaloneMonthly(t *testing.T) {
	// GIVEN: 10,000 at 10% from 2024-01-15 for 6 months, monthly calendar
	// WHEN: Generating the schedule and calculating maturity
	// THEN: Six due dates ending 2024-07-15 and the reference amount

	term := fixedTerm("10000", generic.Date(2024, time.January, 15), 6)
	schedule, err := calendar.Generate(monthlyCalendar(term.StartDate), term)
	require.NoError(t, err)
	require.Len(t, schedule.Entries, 6)
	for i, e := range schedule.Entries {
		assert.Equal(t, generic.Date(2024, time.Month(i+2), 15), e.DueDate)
	}

	result, err := maturity.Calculate(maturity.CalculationInput{
		Term:                    term,
		Schedule:                schedule,
		AnnualRate:              dec("10"),
		PostInterestAtPeriodEnd: true,
	})
	require.NoError(t, err)

	assert.Equal(t, generic.Date(2024, time.July, 15), result.MaturityDate)
	assert.Equal(t, "10509.10", result.MaturityAmount.Value.StringFixed(2))
	assert.Equal(t, "509.10", result.ExpectedInterest.Value.StringFixed(2))
}

func TestCalculate_QuarterlyCompounding_AccruesBetweenBoundaries(t *testing.T) {
	// GIVEN: Monthly collections compounded quarterly
	// WHEN: Interest is not posted at every period end
	// THEN: Months between quarter ends accrue without compounding

	term := fixedTerm("1000.00", generic.Date(2024, time.January, 1), 12)
	term.Compounding = generic.CompoundQuarterly

	quarterly := calculate(t, term, "12", false)
	assert.Equal(t, "1125.87", quarterly.MaturityAmount.Value.StringFixed(2))

	// Posting at every period end replaces the compounding period
	posted := calculate(t, term, "12", true)
	assert.Equal(t, "1127.19", posted.MaturityAmount.Value.StringFixed(2))
}

func TestCalculate_PostAtPeriodEnd_IgnoresFinerCompounding(t *testing.T) {
	// GIVEN: Monthly collections with daily compounding
	// WHEN: Interest is posted at every period end
	// THEN: Interest compounds once per collection period, not daily

	term := fixedTerm("1000.00", generic.Date(2024, time.January, 1), 12)
	monthly := calculate(t, term, "12", true)

	term.Compounding = generic.CompoundDaily
	daily := calculate(t, term, "12", true)

	assert.Equal(t, "1127.19", daily.MaturityAmount.Value.StringFixed(2))
	assert.True(t, monthly.MaturityAmount.Equal(daily.MaturityAmount))
}

func TestCalculate_DailyCompounding_SplitsPeriods(t *testing.T) {
	term := fixedTerm("1000.00", generic.Date(2024, time.January, 1), 12)
	term.Compounding = generic.CompoundDaily

	result := calculate(t, term, "12", false)
	assert.Equal(t, "1127.85", result.MaturityAmount.Value.StringFixed(2))
}

func TestCalculate_AnnualCompounding_CompoundsAtMaturity(t *testing.T) {
	// 2024 is a leap year: 1000 * (1 + 0.12 * 366/365)
	term := fixedTerm("1000.00", generic.Date(2024, time.January, 1), 12)
	term.Compounding = generic.CompoundAnnual

	result := calculate(t, term, "12", false)
	assert.Equal(t, "1120.33", result.MaturityAmount.Value.StringFixed(2))
}

func TestCalculate_DayCountConventions(t *testing.T) {
	start := generic.Date(2024, time.January, 1)

	tests := []struct {
		name     string
		dayCount generic.DayCountConvention
		fyMonth  time.Month
		want     string
	}{
		{"actual/360", generic.DayCountActual360, time.January, "1129.06"},
		{"30/360", generic.DayCount30360, time.January, "1126.83"},
		{"actual/actual calendar year", generic.DayCountActualActual, time.January, "1126.82"},
		{"actual/actual april year", generic.DayCountActualActual, time.April, "1127.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := fixedTerm("1000.00", start, 12)
			term.DayCount = tt.dayCount
			term.FinancialYearStartMonth = tt.fyMonth

			result := calculate(t, term, "12", true)
			assert.Equal(t, tt.want, result.MaturityAmount.Value.StringFixed(2))
		})
	}
}

func TestCalculate_FinancialYearOverride(t *testing.T) {
	// GIVEN: A term whose financial year starts in January
	// WHEN: The calculation overrides it with April
	// THEN: The April result is produced

	term := fixedTerm("1000.00", generic.Date(2024, time.January, 1), 12)
	term.DayCount = generic.DayCountActualActual

	schedule, err := calendar.Generate(monthlyCalendar(term.StartDate), term)
	require.NoError(t, err)

	result, err := maturity.Calculate(maturity.CalculationInput{
		Term:                    term,
		Schedule:                schedule,
		AnnualRate:              dec("12"),
		PostInterestAtPeriodEnd: true,
		FinancialYearStartMonth: time.April,
	})
	require.NoError(t, err)
	assert.Equal(t, "1127.10", result.MaturityAmount.Value.StringFixed(2))
}

func TestCalculate_RoundingModes(t *testing.T) {
	// 30/360 monthly: 1000 * 1.01^12 = 1126.825030...
	term := fixedTerm("1000.00", generic.Date(2024, time.January, 1), 12)
	term.DayCount = generic.DayCount30360

	term.Rounding = generic.RoundDown
	assert.Equal(t, "1126.82", calculate(t, term, "12", true).MaturityAmount.Value.StringFixed(2))

	term.Rounding = generic.RoundHalfUp
	assert.Equal(t, "1126.83", calculate(t, term, "12", true).MaturityAmount.Value.StringFixed(2))

	term.Rounding = ""
	assert.Equal(t, "1126.83", calculate(t, term, "12", true).MaturityAmount.Value.StringFixed(2))
}

// =============================================================================
// RECURRING DEPOSITS
// =============================================================================

func TestCalculate_RecurringInstallments(t *testing.T) {
	// GIVEN: 100 opening deposit plus 100 on every due date but the last
	// WHEN: Calculating at 6% over 12 months
	// THEN: Deposits total 1200 and interest accrues on the growing balance

	term := fixedTerm("100", generic.Date(2024, time.January, 1), 12)
	term.Installment = dec("100")

	result := calculate(t, term, "6", true)
	assert.Equal(t, "1200.00", result.DepositAmount.Value.StringFixed(2))
	assert.Equal(t, "1239.92", result.MaturityAmount.Value.StringFixed(2))
	assert.Equal(t, "39.92", result.ExpectedInterest.Value.StringFixed(2))
}

// =============================================================================
// PRE-CLOSURE
// =============================================================================

func TestCalculate_PreClosure_AppliesPenalRateAndStopsAtClosure(t *testing.T) {
	// GIVEN: A 12-month deposit at 12% with a 1% pre-closure penalty
	// WHEN: Closed on 2024-04-15
	// THEN: Interest stops at the closure date and uses 11%

	term := fixedTerm("1000.00", generic.Date(2024, time.January, 1), 12)
	term.PreClosure = true
	term.ClosureDate = generic.Date(2024, time.April, 15)
	term.PreClosurePenalRate = dec("1")

	result := calculate(t, term, "12", true)
	assert.Equal(t, generic.Date(2024, time.April, 15), result.MaturityDate)
	assert.Equal(t, "1032.01", result.MaturityAmount.Value.StringFixed(2))
	assert.True(t, result.AnnualRate.Equal(dec("11")))
	assert.Equal(t, 3, result.DepositPeriod)
}

func TestCalculate_PreClosure_ClipsUntruncatedSchedule(t *testing.T) {
	// GIVEN: A schedule generated for the full term
	// WHEN: Calculating a pre-closure on 2024-04-15
	// THEN: Periods after the closure date are ignored

	term := fixedTerm("1000.00", generic.Date(2024, time.January, 1), 12)
	schedule, err := calendar.Generate(monthlyCalendar(term.StartDate), term)
	require.NoError(t, err)

	term.ClosureDate = generic.Date(2024, time.April, 15)
	term.PreClosurePenalRate = dec("1")

	result, err := maturity.Calculate(maturity.CalculationInput{
		Term:                    term,
		Schedule:                schedule,
		AnnualRate:              dec("12"),
		IsPreClosure:            true,
		PostInterestAtPeriodEnd: true,
	})
	require.NoError(t, err)
	assert.Equal(t, generic.Date(2024, time.April, 15), result.MaturityDate)
	assert.Equal(t, "1032.01", result.MaturityAmount.Value.StringFixed(2))
}

func TestCalculate_ClosureOnOrAfterMaturity_NoPenalty(t *testing.T) {
	// GIVEN: A 12-month deposit at 12% with a 1% pre-closure penalty
	// WHEN: The closure date is the contracted maturity or later
	// THEN: The full term runs at the contracted rate

	for _, closure := range []civil.Date{
		generic.Date(2025, time.January, 1),
		generic.Date(2025, time.March, 1),
	} {
		t.Run(closure.String(), func(t *testing.T) {
			term := fixedTerm("1000.00", generic.Date(2024, time.January, 1), 12)
			term.PreClosure = true
			term.ClosureDate = closure
			term.PreClosurePenalRate = dec("1")

			result := calculate(t, term, "12", true)
			assert.Equal(t, generic.Date(2025, time.January, 1), result.MaturityDate)
			assert.Equal(t, "1127.19", result.MaturityAmount.Value.StringFixed(2))
			assert.True(t, result.AnnualRate.Equal(dec("12")))
			assert.Equal(t, 12, result.DepositPeriod)
		})
	}
}

// =============================================================================
// INVARIANTS AND FAILURES
// =============================================================================

func TestCalculate_NegativeRate_InterestFlooredAtZero(t *testing.T) {
	term := fixedTerm("1000.00", generic.Date(2024, time.January, 1), 12)

	result := calculate(t, term, "-5", true)
	assert.Equal(t, "951.00", result.MaturityAmount.Value.StringFixed(2))
	assert.True(t, result.ExpectedInterest.IsZero())
}

func TestCalculate_Deterministic(t *testing.T) {
	term := fixedTerm("2500.00", generic.Date(2024, time.March, 31), 9)
	term.Compounding = generic.CompoundQuarterly

	first := calculate(t, term, "7.25", false)
	second := calculate(t, term, "7.25", false)
	assert.Equal(t, first, second)
}

func TestCalculate_EmptySchedule_InvalidTerm(t *testing.T) {
	term := fixedTerm("1000.00", generic.Date(2024, time.January, 1), 12)

	_, err := maturity.Calculate(maturity.CalculationInput{
		Term:       term,
		Schedule:   calendar.Schedule{Start: term.StartDate},
		AnnualRate: dec("12"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvalidTerm))
}

func TestCalculate_ZeroLengthPeriod_InvalidTerm(t *testing.T) {
	start := generic.Date(2024, time.January, 1)
	term := fixedTerm("1000.00", start, 1)

	_, err := maturity.Calculate(maturity.CalculationInput{
		Term: term,
		Schedule: calendar.Schedule{
			Start:   start,
			Entries: []calendar.ScheduleEntry{{Index: 0, DueDate: start}},
		},
		AnnualRate: dec("12"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvalidTerm))
}

func TestCalculate_NonPositivePrincipal_InvalidTerm(t *testing.T) {
	term := fixedTerm("0", generic.Date(2024, time.January, 1), 12)

	_, err := maturity.Calculate(maturity.CalculationInput{
		Term:       term,
		Schedule:   calendar.Schedule{Start: term.StartDate},
		AnnualRate: dec("12"),
	})

	var termErr *generic.InvalidTermError
	require.ErrorAs(t, err, &termErr)
	assert.Equal(t, "principal", termErr.Field)
}
