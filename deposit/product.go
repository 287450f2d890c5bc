/*
Package deposit ties calendar resolution, schedule generation, rate
selection and maturity calculation into the account workflows.

PURPOSE:
  The engine packages (calendar, maturity) are pure functions. This package
  supplies them with product configuration, reads calendars and group
  membership through the store interfaces, and persists the account's
  calendar instance when an account is opened.

KEY TYPES:
  Product: Deposit product configuration (defaults, rate chart, conventions)
  Request: One account's deposit parameters
  Quote:   Calendar, schedule and maturity result of a request
  Service: Preview and OpenAccount

WORKFLOW:
  resolve calendar -> build term -> generate schedule -> select rate ->
  calculate maturity [-> persist calendar instance, OpenAccount only]

SEE ALSO:
  - presets.go: Ready-made product definitions
  - factory/product.go: JSON/YAML product parsing
*/
package deposit

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/deposit-engine/generic"
	"github.com/warp/deposit-engine/maturity"
)

// =============================================================================
// PRODUCT
// =============================================================================

type Kind string

const (
	KindFixed     Kind = "fixed"
	KindRecurring Kind = "recurring"
)

func (k Kind) IsValid() bool { return k == KindFixed || k == KindRecurring }

// PreClosurePolicy controls early closure of accounts of a product.
type PreClosurePolicy struct {
	Allowed bool

	// PenalRate is subtracted from the nominal annual rate (percentage
	// points) when an account is closed early.
	PenalRate decimal.Decimal
}

// Product is the configuration shared by every account of a deposit product.
type Product struct {
	ID       string
	Name     string
	Kind     Kind
	Currency generic.Currency
	Rounding generic.RoundingMode

	// DefaultTenor is used when a request does not specify a term.
	DefaultTenor generic.Tenor

	Compounding             generic.CompoundingPeriod
	DayCount                generic.DayCountConvention
	FinancialYearStartMonth time.Month
	PostInterestAtPeriodEnd bool

	// MinDeposit is the smallest accepted principal (and installment for
	// recurring products). Zero means no minimum.
	MinDeposit decimal.Decimal

	PreClosure PreClosurePolicy
	Chart      maturity.RateChart
}

// Validate checks the product configuration, including the rate chart.
func (p *Product) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("product id is required")
	case !p.Kind.IsValid():
		return fmt.Errorf("product %s: unknown kind %q", p.ID, p.Kind)
	case p.Currency.Code == "":
		return fmt.Errorf("product %s: currency is required", p.ID)
	case p.Currency.DecimalPlaces < 0 || p.Currency.DecimalPlaces > 6:
		return fmt.Errorf("product %s: currency decimal places must be between 0 and 6", p.ID)
	case p.Rounding != "" && !p.Rounding.IsValid():
		return fmt.Errorf("product %s: unknown rounding mode %q", p.ID, p.Rounding)
	case p.DefaultTenor.Length < 0 || (p.DefaultTenor.Length > 0 && !p.DefaultTenor.Unit.IsValid()):
		return fmt.Errorf("product %s: invalid default term", p.ID)
	case !p.Compounding.IsValid():
		return fmt.Errorf("product %s: unknown compounding period %q", p.ID, p.Compounding)
	case !p.DayCount.IsValid():
		return fmt.Errorf("product %s: unknown day count %q", p.ID, p.DayCount)
	case p.FinancialYearStartMonth < time.January || p.FinancialYearStartMonth > time.December:
		return fmt.Errorf("product %s: financial year start month must be between 1 and 12", p.ID)
	case p.MinDeposit.IsNegative():
		return fmt.Errorf("product %s: minimum deposit must not be negative", p.ID)
	case p.PreClosure.PenalRate.IsNegative():
		return fmt.Errorf("product %s: pre-closure penal rate must not be negative", p.ID)
	}
	if err := p.Chart.Validate(); err != nil {
		return fmt.Errorf("product %s: rate chart: %w", p.ID, err)
	}
	return nil
}
