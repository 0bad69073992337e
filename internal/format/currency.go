// Package format renders prices, percentages, exchange hours and logo URLs
// for the views.
package format

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for empty or unknown currency codes
const DefaultCurrency = money.USD

// currency returns the go-money currency for code, falling back to USD
func currency(code string) money.Currency {
	if code == "" || money.GetCurrency(code) == nil {
		code = DefaultCurrency
	}
	// money.New guarantees a non-nil currency
	return *money.New(0, code).Currency()
}

// Currency formats value in the currency's own notation, e.g. "$1,234.56"
func Currency(value decimal.Decimal, code string) string {
	cur := currency(code)
	minor := value.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// SignedCurrency is Currency with a leading "+" for positive values
func SignedCurrency(value decimal.Decimal, code string) string {
	if value.IsPositive() {
		return "+" + Currency(value, code)
	}
	return Currency(value, code)
}

// SignedPercent formats a percentage with two decimals and an explicit sign, e.g. "+1.03%"
func SignedPercent(d decimal.Decimal) string {
	s := d.StringFixed(2) + "%"
	if d.Round(2).IsPositive() {
		return "+" + s
	}
	return s
}

// Compact abbreviates large values such as volume and market cap, e.g. "3.23T"
func Compact(d decimal.Decimal) string {
	units := []struct {
		suffix string
		exp    int32
	}{{"T", 12}, {"B", 9}, {"M", 6}, {"K", 3}}

	abs := d.Abs()
	for _, u := range units {
		if abs.GreaterThanOrEqual(decimal.New(1, u.exp)) {
			return d.Shift(-u.exp).StringFixed(2) + u.suffix
		}
	}
	return d.StringFixed(0)
}
