package tips

import "github.com/shopspring/decimal"

// DisplayAmount converts a minor-unit amount into the decimal string shown
// to users, e.g. 199 -> "1.99". All tips are charged in USD.
func DisplayAmount(amountCents int64) string {
	return decimal.NewFromInt(amountCents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
