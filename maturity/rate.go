package maturity

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/warp/deposit-engine/generic"
)

// =============================================================================
// RATE CHART - Tenor brackets mapped to nominal annual rates
// =============================================================================

// RateTier maps a tenor bracket (and optionally an amount band) to a rate.
type RateTier struct {
	MinTenor int
	MaxTenor *int // nil = open-ended
	Unit     generic.TermUnit

	// MinAmount/MaxAmount narrow the tier to a deposit amount band. Both are
	// inclusive and optional.
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal

	// Rate is the nominal annual rate in percent.
	Rate decimal.Decimal
}

func (t RateTier) String() string {
	upper := "∞"
	if t.MaxTenor != nil {
		upper = fmt.Sprint(*t.MaxTenor)
	}
	return fmt.Sprintf("[%d,%s] %s -> %s%%", t.MinTenor, upper, t.Unit, t.Rate)
}

func (t RateTier) coversTenor(n int) bool {
	return n >= t.MinTenor && (t.MaxTenor == nil || n <= *t.MaxTenor)
}

func (t RateTier) coversAmount(amount *decimal.Decimal) bool {
	if amount == nil {
		return true
	}
	if t.MinAmount != nil && amount.LessThan(*t.MinAmount) {
		return false
	}
	if t.MaxAmount != nil && amount.GreaterThan(*t.MaxAmount) {
		return false
	}
	return true
}

// RateChart is a product's ordered set of tiers.
type RateChart struct {
	Name  string
	Tiers []RateTier
}

// Validate enforces the product-configuration invariant: tiers of the same
// unit and amount band are ordered by MinTenor and do not overlap.
func (c RateChart) Validate() error {
	for i, t := range c.Tiers {
		if !t.Unit.IsValid() {
			return fmt.Errorf("tier %d: unknown unit %q", i, t.Unit)
		}
		if t.MinTenor < 0 || (t.MaxTenor != nil && *t.MaxTenor < t.MinTenor) {
			return fmt.Errorf("tier %d: invalid bracket %s", i, t)
		}
		if i == 0 {
			continue
		}
		prev := c.Tiers[i-1]
		if prev.Unit != t.Unit || !sameBand(prev, t) {
			continue
		}
		if t.MinTenor < prev.MinTenor {
			return fmt.Errorf("tier %d: not ordered after %s", i, prev)
		}
		if prev.MaxTenor == nil || *prev.MaxTenor >= t.MinTenor {
			return fmt.Errorf("tier %d: %s overlaps %s", i, t, prev)
		}
	}
	return nil
}

func sameBand(a, b RateTier) bool {
	eq := func(x, y *decimal.Decimal) bool {
		if x == nil || y == nil {
			return x == nil && y == nil
		}
		return x.Equal(*y)
	}
	return eq(a.MinAmount, b.MinAmount) && eq(a.MaxAmount, b.MaxAmount)
}

// =============================================================================
// SELECTION
// =============================================================================

// RateQuery is the term a rate is being selected for.
type RateQuery struct {
	Tenor generic.Tenor

	// Start anchors unit conversion (e.g. 1 year measured in days) on the
	// calendar. Only needed when a tier uses a different unit.
	Start civil.Date

	// Amount, when set, is matched against tier amount bands.
	Amount *decimal.Decimal
}

// Select returns the rate of the tier covering q. When several tiers match
// (overlapping brackets, a configuration defect), the tier with the smallest
// MinTenor wins, ties keeping chart order.
func Select(q RateQuery, chart RateChart) (decimal.Decimal, error) {
	if q.Tenor.Length <= 0 || !q.Tenor.Unit.IsValid() {
		return decimal.Zero, &generic.InvalidTermError{Field: "term", Reason: fmt.Sprintf("invalid tenor %d %s", q.Tenor.Length, q.Tenor.Unit)}
	}

	var matches []RateTier
	for _, t := range chart.Tiers {
		if t.Unit != q.Tenor.Unit && generic.IsZeroDate(q.Start) {
			return decimal.Zero, &generic.InvalidTermError{Field: "start_date", Reason: "required to convert the term to " + string(t.Unit)}
		}
		if t.coversTenor(q.Tenor.In(t.Unit, q.Start)) && t.coversAmount(q.Amount) {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return decimal.Zero, &generic.InvalidRateForTermError{Tenor: q.Tenor, Chart: chart.Name}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].MinTenor < matches[j].MinTenor })
	return matches[0].Rate, nil
}
