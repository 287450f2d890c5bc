/*
Package factory provides JSON/YAML to Go product conversion.

PURPOSE:
  Converts deposit product definitions into deposit.Product values. Product
  teams define rate charts and conventions as data; the factory validates
  them and creates the Go structs the engine consumes.

JSON SCHEMA:
  {
    "id": "fd-standard",
    "name": "Standard Fixed Deposit",
    "kind": "fixed",
    "currency": {"code": "USD", "decimal_places": 2},
    "rounding": "half_even",
    "default_term": {"length": 12, "unit": "months"},
    "compounding": "monthly",
    "day_count": "actual_365",
    "financial_year_start_month": 1,
    "post_interest_at_period_end": true,
    "min_deposit": "100",
    "pre_closure": {"allowed": true, "penal_rate": "1"},
    "rate_chart": {
      "name": "fd-standard-chart",
      "tiers": [
        {"min_tenor": 1, "max_tenor": 6, "unit": "months", "rate": "5"},
        {"min_tenor": 7, "max_tenor": 12, "unit": "months", "rate": "6"}
      ]
    }
  }

  Amounts and rates may be written as strings or numbers. The same fields
  are accepted in YAML; a YAML catalog lists products under "products".

DEFAULTS:
  kind fixed, currency USD/2, rounding half_even, compounding monthly,
  day_count actual_365, financial_year_start_month 1.

USAGE:
  factory := NewProductFactory()
  product, err := factory.ParseProduct(deposit.StandardFixedDepositJSON("fd", "FD", "5", "6"))

SEE ALSO:
  - deposit/product.go: Product type definition
  - deposit/presets.go: Preset product definitions
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/deposit-engine/deposit"
	"github.com/warp/deposit-engine/generic"
	"github.com/warp/deposit-engine/maturity"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// Number is a decimal written either as a JSON string or a JSON number.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	*n = Number(strings.Trim(s, `"`))
	return nil
}

func (n Number) decimal(field string) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, string(n), err)
	}
	return d, nil
}

// ProductJSON is the serialized form of a product.
type ProductJSON struct {
	ID                      string          `json:"id" yaml:"id"`
	Name                    string          `json:"name" yaml:"name"`
	Kind                    string          `json:"kind,omitempty" yaml:"kind,omitempty"`
	Currency                *CurrencyJSON   `json:"currency,omitempty" yaml:"currency,omitempty"`
	Rounding                string          `json:"rounding,omitempty" yaml:"rounding,omitempty"`
	DefaultTerm             *TermJSON       `json:"default_term,omitempty" yaml:"default_term,omitempty"`
	Compounding             string          `json:"compounding,omitempty" yaml:"compounding,omitempty"`
	DayCount                string          `json:"day_count,omitempty" yaml:"day_count,omitempty"`
	FinancialYearStartMonth int             `json:"financial_year_start_month,omitempty" yaml:"financial_year_start_month,omitempty"`
	PostInterestAtPeriodEnd bool            `json:"post_interest_at_period_end" yaml:"post_interest_at_period_end"`
	MinDeposit              Number          `json:"min_deposit,omitempty" yaml:"min_deposit,omitempty"`
	PreClosure              *PreClosureJSON `json:"pre_closure,omitempty" yaml:"pre_closure,omitempty"`
	RateChart               RateChartJSON   `json:"rate_chart" yaml:"rate_chart"`
}

type CurrencyJSON struct {
	Code          string `json:"code" yaml:"code"`
	DecimalPlaces int32  `json:"decimal_places" yaml:"decimal_places"`
}

type TermJSON struct {
	Length int    `json:"length" yaml:"length"`
	Unit   string `json:"unit" yaml:"unit"`
}

type PreClosureJSON struct {
	Allowed   bool   `json:"allowed" yaml:"allowed"`
	PenalRate Number `json:"penal_rate,omitempty" yaml:"penal_rate,omitempty"`
}

type RateChartJSON struct {
	Name  string         `json:"name,omitempty" yaml:"name,omitempty"`
	Tiers []RateTierJSON `json:"tiers" yaml:"tiers"`
}

// RateTierJSON is one tenor bracket. MaxTenor is omitted for open-ended tiers.
type RateTierJSON struct {
	MinTenor  int    `json:"min_tenor" yaml:"min_tenor"`
	MaxTenor  *int   `json:"max_tenor,omitempty" yaml:"max_tenor,omitempty"`
	Unit      string `json:"unit" yaml:"unit"`
	MinAmount Number `json:"min_amount,omitempty" yaml:"min_amount,omitempty"`
	MaxAmount Number `json:"max_amount,omitempty" yaml:"max_amount,omitempty"`
	Rate      Number `json:"rate" yaml:"rate"`
}

// CatalogYAML is a YAML file of several products.
type CatalogYAML struct {
	Products []ProductJSON `yaml:"products"`
}

// =============================================================================
// PRODUCT FACTORY
// =============================================================================

// ProductFactory converts product definitions to deposit.Product.
type ProductFactory struct{}

// NewProductFactory creates a new product factory.
func NewProductFactory() *ProductFactory {
	return &ProductFactory{}
}

// ParseProduct parses a JSON product definition.
func (f *ProductFactory) ParseProduct(jsonStr string) (*deposit.Product, error) {
	var pj ProductJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse product JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// ParseProductYAML parses a single YAML product definition.
func (f *ProductFactory) ParseProductYAML(data []byte) (*deposit.Product, error) {
	var pj ProductJSON
	if err := yaml.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("failed to parse product YAML: %w", err)
	}
	return f.FromJSON(pj)
}

// ParseCatalogYAML parses a YAML catalog. Product IDs must be unique.
func (f *ProductFactory) ParseCatalogYAML(data []byte) ([]*deposit.Product, error) {
	var catalog CatalogYAML
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse product catalog: %w", err)
	}

	seen := make(map[string]bool)
	products := make([]*deposit.Product, 0, len(catalog.Products))
	for i, pj := range catalog.Products {
		p, err := f.FromJSON(pj)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("catalog entry %d: duplicate product id %s", i, p.ID)
		}
		seen[p.ID] = true
		products = append(products, p)
	}
	return products, nil
}

// FromJSON converts ProductJSON to a validated deposit.Product.
func (f *ProductFactory) FromJSON(pj ProductJSON) (*deposit.Product, error) {
	p := &deposit.Product{
		ID:                      pj.ID,
		Name:                    pj.Name,
		Kind:                    deposit.Kind(withDefault(pj.Kind, string(deposit.KindFixed))),
		Currency:                generic.USD,
		Rounding:                generic.RoundingMode(withDefault(pj.Rounding, string(generic.RoundHalfEven))),
		Compounding:             generic.CompoundingPeriod(withDefault(pj.Compounding, string(generic.CompoundMonthly))),
		DayCount:                generic.DayCountConvention(withDefault(pj.DayCount, string(generic.DayCountActual365))),
		FinancialYearStartMonth: time.January,
		PostInterestAtPeriodEnd: pj.PostInterestAtPeriodEnd,
	}

	if pj.Currency != nil {
		p.Currency = generic.Currency{Code: strings.ToUpper(pj.Currency.Code), DecimalPlaces: pj.Currency.DecimalPlaces}
	}
	if pj.FinancialYearStartMonth != 0 {
		p.FinancialYearStartMonth = time.Month(pj.FinancialYearStartMonth)
	}
	if pj.DefaultTerm != nil {
		p.DefaultTenor = generic.Tenor{Length: pj.DefaultTerm.Length, Unit: generic.TermUnit(pj.DefaultTerm.Unit)}
	}

	var err error
	if p.MinDeposit, err = pj.MinDeposit.decimal("min_deposit"); err != nil {
		return nil, err
	}
	if pj.PreClosure != nil {
		p.PreClosure.Allowed = pj.PreClosure.Allowed
		if p.PreClosure.PenalRate, err = pj.PreClosure.PenalRate.decimal("penal_rate"); err != nil {
			return nil, err
		}
	}

	if p.Chart, err = parseChart(pj.RateChart); err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ToJSON converts a product back to its serialized form.
func (f *ProductFactory) ToJSON(p *deposit.Product) ProductJSON {
	pj := ProductJSON{
		ID:                      p.ID,
		Name:                    p.Name,
		Kind:                    string(p.Kind),
		Currency:                &CurrencyJSON{Code: p.Currency.Code, DecimalPlaces: p.Currency.DecimalPlaces},
		Rounding:                string(p.Rounding),
		Compounding:             string(p.Compounding),
		DayCount:                string(p.DayCount),
		FinancialYearStartMonth: int(p.FinancialYearStartMonth),
		PostInterestAtPeriodEnd: p.PostInterestAtPeriodEnd,
		RateChart:               RateChartJSON{Name: p.Chart.Name},
	}
	if p.DefaultTenor.Length > 0 {
		pj.DefaultTerm = &TermJSON{Length: p.DefaultTenor.Length, Unit: string(p.DefaultTenor.Unit)}
	}
	if !p.MinDeposit.IsZero() {
		pj.MinDeposit = Number(p.MinDeposit.String())
	}
	if p.PreClosure.Allowed || !p.PreClosure.PenalRate.IsZero() {
		pj.PreClosure = &PreClosureJSON{Allowed: p.PreClosure.Allowed}
		if !p.PreClosure.PenalRate.IsZero() {
			pj.PreClosure.PenalRate = Number(p.PreClosure.PenalRate.String())
		}
	}
	for _, t := range p.Chart.Tiers {
		tj := RateTierJSON{
			MinTenor: t.MinTenor,
			MaxTenor: t.MaxTenor,
			Unit:     string(t.Unit),
			Rate:     Number(t.Rate.String()),
		}
		if t.MinAmount != nil {
			tj.MinAmount = Number(t.MinAmount.String())
		}
		if t.MaxAmount != nil {
			tj.MaxAmount = Number(t.MaxAmount.String())
		}
		pj.RateChart.Tiers = append(pj.RateChart.Tiers, tj)
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseChart(cj RateChartJSON) (maturity.RateChart, error) {
	chart := maturity.RateChart{Name: cj.Name}
	for i, tj := range cj.Tiers {
		if tj.Rate == "" {
			return maturity.RateChart{}, fmt.Errorf("rate tier %d: rate is required", i)
		}
		rate, err := tj.Rate.decimal("rate")
		if err != nil {
			return maturity.RateChart{}, fmt.Errorf("rate tier %d: %w", i, err)
		}
		tier := maturity.RateTier{
			MinTenor: tj.MinTenor,
			MaxTenor: tj.MaxTenor,
			Unit:     generic.TermUnit(withDefault(tj.Unit, string(generic.UnitMonths))),
			Rate:     rate,
		}
		if tier.MinAmount, err = optionalDecimal(tj.MinAmount, "min_amount"); err != nil {
			return maturity.RateChart{}, fmt.Errorf("rate tier %d: %w", i, err)
		}
		if tier.MaxAmount, err = optionalDecimal(tj.MaxAmount, "max_amount"); err != nil {
			return maturity.RateChart{}, fmt.Errorf("rate tier %d: %w", i, err)
		}
		chart.Tiers = append(chart.Tiers, tier)
	}
	return chart, nil
}

func optionalDecimal(n Number, field string) (*decimal.Decimal, error) {
	if n == "" {
		return nil, nil
	}
	d, err := n.decimal(field)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func withDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
