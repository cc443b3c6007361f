// Package money holds the fixed-point helpers used for every monetary field.
// Amounts are shopspring decimals rounded half away from zero to two places,
// which is half-up for the non-negative values an invoice carries.
package money

import "github.com/shopspring/decimal"

// Places is the number of fraction digits kept on stored amounts.
const Places = 2

var Hundred = decimal.NewFromInt(100)

// Round rounds d to two fraction digits, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent returns amount * rate / 100 rounded to two places.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate).Div(Hundred))
}

// Sum adds the given amounts exactly.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Format renders d with exactly two fraction digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// Fixed is a decimal that marshals to a JSON string with exactly two fraction digits,
// so 20 is sent as "20.00".
type Fixed decimal.Decimal

func (f Fixed) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Format(decimal.Decimal(f)) + `"`), nil
}
