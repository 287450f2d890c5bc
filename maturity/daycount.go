package maturity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/deposit-engine/generic"
)

// Fraction is Days/Basis of a year. Keeping numerator and denominator apart
// lets interest be computed with a single division per slice.
type Fraction struct {
	Days  int64
	Basis int64
}

func (f Fraction) Decimal() decimal.Decimal {
	return decimal.NewFromInt(f.Days).Div(decimal.NewFromInt(f.Basis))
}

// YearFractions converts p into year fractions under conv. All conventions
// return a single fraction except actual/actual, which returns one per
// financial year the period touches.
func YearFractions(conv generic.DayCountConvention, p generic.Period, fyStart time.Month) ([]Fraction, error) {
	if p.IsEmpty() {
		return nil, &generic.InvalidTermError{Field: "period", Reason: "zero-length period " + p.String()}
	}

	days := int64(p.Days())
	switch conv {
	case generic.DayCountActual365:
		return []Fraction{{Days: days, Basis: 365}}, nil
	case generic.DayCountActual360:
		return []Fraction{{Days: days, Basis: 360}}, nil
	case generic.DayCountActual364:
		return []Fraction{{Days: days, Basis: 364}}, nil
	case generic.DayCount30360:
		return []Fraction{{Days: thirty360Days(p), Basis: 360}}, nil
	case generic.DayCountActualActual:
		slices := generic.FinancialYear{StartMonth: fyStart}.Split(p)
		fractions := make([]Fraction, len(slices))
		for i, s := range slices {
			fractions[i] = Fraction{Days: int64(s.Period.Days()), Basis: int64(s.DaysInYear)}
		}
		return fractions, nil
	default:
		return nil, &generic.InvalidTermError{Field: "day_count", Reason: "unknown convention " + string(conv)}
	}
}

// thirty360Days counts days under the 30/360 bond basis.
func thirty360Days(p generic.Period) int64 {
	d1, d2 := p.Start.Day, p.End.Day
	if d1 == 31 {
		d1 = 30
	}
	if d2 == 31 && d1 == 30 {
		d2 = 30
	}
	return int64(360*(p.End.Year-p.Start.Year) + 30*(int(p.End.Month)-int(p.Start.Month)) + d2 - d1)
}

var hundred = decimal.NewFromInt(100)

// accrue returns balance * rate% * fraction, summed over fractions, at full
// precision.
func accrue(balance, annualRate decimal.Decimal, fractions []Fraction) decimal.Decimal {
	interest := decimal.Zero
	for _, f := range fractions {
		num := balance.Mul(annualRate).Mul(decimal.NewFromInt(f.Days))
		den := hundred.Mul(decimal.NewFromInt(f.Basis))
		interest = interest.Add(num.Div(den))
	}
	return interest
}
