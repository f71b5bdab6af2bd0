package metrics

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// GrowthRate returns the percentage change from previous to current. With no
// previous revenue it is 100 when there is current revenue and 0 otherwise.
func GrowthRate(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsPositive() {
			return 100
		}
		return 0
	}
	rate := current.Sub(previous).Div(previous).Mul(hundred)
	f, _ := rate.Round(2).Float64()
	return f
}

// money rounds to cents and converts for presentation.
func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// average returns total/count, or zero when count is zero.
func average(total decimal.Decimal, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(count))
}

// percentage returns part as a percentage of whole, truncated to two places
// so shares never add up to more than 100. Zero when whole is not positive.
func percentage(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	f, _ := part.Div(whole).Mul(hundred).Truncate(2).Float64()
	return f
}
