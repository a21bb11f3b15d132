package format

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var numberNoise = strings.NewReplacer(
	" ", "",
	"\u00a0", "", // no-break space
	"\u202f", "", // narrow no-break space
	"€", "",
	"EUR", "",
	"eur", "",
	"%", "",
)

// ParseNumber parses a French or plain formatted number such as
// "1 234,56 €", "1.234,56", "1234.56" or "-12,5". Anything that cannot be
// read as a finite number yields 0.
func ParseNumber(s string) float64 {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return 0
	}

	negative := strings.HasPrefix(cleaned, "-")
	if negative {
		cleaned = strings.TrimPrefix(cleaned, "-")
	}
	cleaned = numberNoise.Replace(cleaned)

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasDot:
		// the last separator is the decimal one: 1.234,56 and 1,234.56
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	if negative {
		value = -value
	}
	return value
}

// IsNumeric reports whether s holds a number ParseNumber can read.
// Used to reject free-text input before it is sent to the API.
func IsNumeric(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	return ParseNumber(trimmed) != 0 || isZeroLiteral(trimmed)
}

func isZeroLiteral(s string) bool {
	cleaned := numberNoise.Replace(strings.TrimPrefix(s, "-"))
	cleaned = strings.NewReplacer(",", "", ".", "").Replace(cleaned)
	return cleaned != "" && strings.Trim(cleaned, "0") == ""
}

// Quantity renders a quantity with up to three decimals, e.g. "2,5".
func Quantity(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Placeholder
	}
	rendered := Decimal(decimal.NewFromFloat(v), 3)
	if strings.Contains(rendered, decimalSep) {
		rendered = strings.TrimRight(rendered, "0")
		rendered = strings.TrimSuffix(rendered, decimalSep)
	}
	return rendered
}
