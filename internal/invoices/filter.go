package invoices

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"restodash/internal/format"
)

// SortKey selects the column rows are sorted by.
type SortKey string

const (
	SortByDate      SortKey = "date"
	SortByTTC       SortKey = "ttc"
	SortBySupplier  SortKey = "supplier"
	SortByReference SortKey = "reference"
)

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseSortKey validates a sort key coming from a flag or query parameter.
func ParseSortKey(s string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(s))); key {
	case SortByDate, SortByTTC, SortBySupplier, SortByReference:
		return key, nil
	case "":
		return SortByDate, nil
	default:
		return "", fmt.Errorf("unknown sort key %q (date, ttc, supplier, reference)", s)
	}
}

// ParseDirection validates a sort direction. Empty means descending.
func ParseDirection(s string) (Direction, error) {
	switch dir := Direction(strings.ToLower(strings.TrimSpace(s))); dir {
	case Ascending, Descending:
		return dir, nil
	case "":
		return Descending, nil
	default:
		return "", fmt.Errorf("unknown sort direction %q (asc, desc)", s)
	}
}

// Filter returns the rows dated within [from, to] whose supplier is in
// suppliers. Zero bounds are open and an empty supplier set lets every
// supplier through. Rows without a valid date are dropped as soon as a bound
// is set. A date-only to bound covers its whole day. The input slice is not
// modified.
func Filter(items []ListItem, from, to time.Time, suppliers []string) []ListItem {
	end := endBound(to)
	allowed := make(map[string]bool, len(suppliers))
	for _, s := range suppliers {
		allowed[s] = true
	}

	out := make([]ListItem, 0, len(items))
	for _, item := range items {
		if !from.IsZero() || !to.IsZero() {
			if item.DateValue.IsZero() {
				continue
			}
			if !from.IsZero() && item.DateValue.Before(from) {
				continue
			}
			if !end.IsZero() && !item.DateValue.Before(end) {
				continue
			}
		}
		if len(allowed) > 0 && !allowed[item.SupplierValue] {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Sort orders rows in place. Missing totals sort before any amount.
func Sort(items []ListItem, key SortKey, dir Direction) {
	less := func(a, b ListItem) bool {
		switch key {
		case SortByTTC:
			return value(a.TTCValue) < value(b.TTCValue)
		case SortBySupplier:
			return strings.ToLower(a.Supplier) < strings.ToLower(b.Supplier)
		case SortByReference:
			return a.Reference < b.Reference
		default:
			return a.DateValue.Before(b.DateValue)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if dir == Ascending {
			return less(items[i], items[j])
		}
		return less(items[j], items[i])
	})
}

func value(v *float64) float64 {
	if v == nil {
		return -1e308
	}
	return *v
}

// Summary is the footer of the invoice table.
type Summary struct {
	Count int    `json:"count"`
	HT    string `json:"ht"`
	TVA   string `json:"tva"`
	TTC   string `json:"ttc"`

	HTValue  decimal.Decimal `json:"ht_value"`
	TVAValue decimal.Decimal `json:"tva_value"`
	TTCValue decimal.Decimal `json:"ttc_value"`
}

// Totals adds up the amounts of rows. Missing amounts count as zero.
func Totals(items []ListItem) Summary {
	var t Summary
	for _, item := range items {
		t.Count++
		t.HTValue = t.HTValue.Add(toDecimal(item.HTValue))
		t.TVAValue = t.TVAValue.Add(toDecimal(item.TVAValue))
		t.TTCValue = t.TTCValue.Add(toDecimal(item.TTCValue))
	}
	t.HT = format.CurrencyDecimal(t.HTValue)
	t.TVA = format.CurrencyDecimal(t.TVAValue)
	t.TTC = format.CurrencyDecimal(t.TTCValue)
	return t
}

func toDecimal(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

// endBound returns the first instant after to. A midnight bound is a
// calendar day, so it moves to the next midnight.
func endBound(to time.Time) time.Time {
	if to.IsZero() {
		return to
	}
	if h, m, sec := to.Clock(); h == 0 && m == 0 && sec == 0 && to.Nanosecond() == 0 {
		return to.AddDate(0, 0, 1)
	}
	return to.Add(time.Nanosecond)
}
