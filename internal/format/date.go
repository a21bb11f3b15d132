package format

import (
	"strings"
	"time"
)

// DisplayDateLayout is the French day-first layout used in tables and exports.
const DisplayDateLayout = "02/01/2006"

// dateLayouts are the shapes the API (and users) send dates in.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	DisplayDateLayout,
	"02.01.2006",
}

// ParseDate reads an API or display date. ok is false for empty or
// unparseable input.
func ParseDate(s string) (t time.Time, ok bool) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Date renders an API date as DD/MM/YYYY, or Placeholder when invalid.
func Date(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return Placeholder
	}
	return t.Format(DisplayDateLayout)
}

// DateValue renders a time as DD/MM/YYYY, or Placeholder for the zero time.
func DateValue(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Format(DisplayDateLayout)
}
