// Package format converts raw API values into French display strings and back.
//
// Every function is pure and never signals errors: invalid input renders as
// Placeholder ("--") or parses as 0. All monetary values shown anywhere in
// restodash go through Currency / CurrencyValue so that tables, exports and
// the HTTP surface can never disagree on formatting.
package format

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Placeholder is rendered for missing or invalid values.
const Placeholder = "--"

const (
	decimalSep   = ","
	thousandsSep = " "
	euroSuffix   = " €"
)

// Currency formats an optional amount in euros, e.g. "1 234,56 €".
func Currency(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return CurrencyValue(*v)
}

// CurrencyValue formats an amount in euros with two decimals.
func CurrencyValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Placeholder
	}
	return Decimal(decimal.NewFromFloat(v), 2) + euroSuffix
}

// CurrencyDecimal formats a decimal amount in euros.
func CurrencyDecimal(d decimal.Decimal) string {
	return Decimal(d, 2) + euroSuffix
}

// Decimal renders d rounded half away from zero to places decimals, using a
// comma as decimal separator and a space between thousands.
func Decimal(d decimal.Decimal, places int32) string {
	fixed := d.Round(places).StringFixed(places)

	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if negative && strings.Trim(fixed, "0.") != "" {
		b.WriteByte('-')
	}
	b.WriteString(groupThousands(intPart))
	if fracPart != "" {
		b.WriteString(decimalSep)
		b.WriteString(fracPart)
	}
	return b.String()
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(thousandsSep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
