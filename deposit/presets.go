package deposit

import (
	"encoding/json"
)

// Preset product definitions, as JSON accepted by factory.ParseProduct.
// They build the JSON directly so this package does not import factory.

// StandardFixedDepositJSON returns a fixed deposit product with a two-tier
// monthly rate chart: 1-6 months at shortRate, 7-12 months at longRate.
func StandardFixedDepositJSON(id, name string, shortRate, longRate string) string {
	pj := map[string]interface{}{
		"id":       id,
		"name":     name,
		"kind":     "fixed",
		"currency": map[string]interface{}{"code": "USD", "decimal_places": 2},
		"rounding": "half_even",
		"default_term": map[string]interface{}{
			"length": 12,
			"unit":   "months",
		},
		"compounding":                 "monthly",
		"day_count":                   "actual_365",
		"financial_year_start_month":  1,
		"post_interest_at_period_end": true,
		"pre_closure": map[string]interface{}{
			"allowed":    true,
			"penal_rate": "1",
		},
		"rate_chart": map[string]interface{}{
			"name": id + "-chart",
			"tiers": []map[string]interface{}{
				{"min_tenor": 1, "max_tenor": 6, "unit": "months", "rate": shortRate},
				{"min_tenor": 7, "max_tenor": 12, "unit": "months", "rate": longRate},
			},
		},
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}

// RecurringDepositJSON returns a recurring deposit product compounded
// quarterly on an actual/actual basis with an April financial year.
func RecurringDepositJSON(id, name string, rate string, minInstallment string) string {
	pj := map[string]interface{}{
		"id":       id,
		"name":     name,
		"kind":     "recurring",
		"currency": map[string]interface{}{"code": "KES", "decimal_places": 2},
		"rounding": "half_even",
		"default_term": map[string]interface{}{
			"length": 12,
			"unit":   "months",
		},
		"compounding":                 "quarterly",
		"day_count":                   "actual_actual",
		"financial_year_start_month":  4,
		"post_interest_at_period_end": false,
		"min_deposit":                 minInstallment,
		"pre_closure": map[string]interface{}{
			"allowed": false,
		},
		"rate_chart": map[string]interface{}{
			"name": id + "-chart",
			"tiers": []map[string]interface{}{
				{"min_tenor": 6, "max_tenor": 60, "unit": "months", "rate": rate},
			},
		},
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}

// TieredSavingsJSON returns a fixed deposit product whose chart is expressed
// in days with an amount band for large deposits.
func TieredSavingsJSON(id, name string) string {
	pj := map[string]interface{}{
		"id":       id,
		"name":     name,
		"kind":     "fixed",
		"currency": map[string]interface{}{"code": "USD", "decimal_places": 2},
		"rounding": "half_up",
		"default_term": map[string]interface{}{
			"length": 365,
			"unit":   "days",
		},
		"compounding":                 "daily",
		"day_count":                   "actual_360",
		"financial_year_start_month":  1,
		"post_interest_at_period_end": false,
		"pre_closure": map[string]interface{}{
			"allowed":    true,
			"penal_rate": "0.5",
		},
		"rate_chart": map[string]interface{}{
			"name": id + "-chart",
			"tiers": []map[string]interface{}{
				{"min_tenor": 30, "max_tenor": 180, "unit": "days", "rate": "3.5"},
				{"min_tenor": 181, "unit": "days", "max_amount": "9999.99", "rate": "4.25"},
				{"min_tenor": 181, "unit": "days", "min_amount": "10000", "rate": "4.75"},
			},
		},
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}
