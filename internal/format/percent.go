package format

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Percentage renders a signed percentage delta with at most one decimal:
// "+12,5%", "-3%". Nil, non-finite and zero values render "0%".
func Percentage(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return "0%"
	}

	rounded := decimal.NewFromFloat(*v).Round(1)
	if rounded.IsZero() {
		return "0%"
	}

	rendered := Decimal(rounded.Abs(), 1)
	rendered = strings.TrimSuffix(rendered, decimalSep+"0")

	sign := "+"
	if rounded.IsNegative() {
		sign = "-"
	}
	return sign + rendered + "%"
}
