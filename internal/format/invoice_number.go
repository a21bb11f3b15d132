package format

import "strings"

// InvoiceNumberPrefix is prepended to invoice numbers for display.
const InvoiceNumberPrefix = "N°"

// referencePrefixes are the spellings NormalizeInvoiceNumber accepts.
var referencePrefixes = []string{InvoiceNumberPrefix, "n°", "Nº", "nº"}

// shortIDLength is how many characters of an id are shown when an invoice
// has no number.
const shortIDLength = 8

// FormatInvoiceNumber renders "N°<number>". An empty number renders empty.
func FormatInvoiceNumber(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	return InvoiceNumberPrefix + trimmed
}

// NormalizeInvoiceNumber strips a single display prefix and surrounding
// spaces, so NormalizeInvoiceNumber(FormatInvoiceNumber(x)) == x for any
// trimmed, non-empty x.
func NormalizeInvoiceNumber(value string) string {
	trimmed := strings.TrimSpace(value)
	for _, prefix := range referencePrefixes {
		if rest, ok := strings.CutPrefix(trimmed, prefix); ok {
			return strings.TrimSpace(rest)
		}
	}
	return trimmed
}

// InvoiceReference returns the display reference of an invoice: its
// formatted number, or "#" followed by a truncated id.
func InvoiceReference(number, id string) string {
	if ref := FormatInvoiceNumber(number); ref != "" {
		return ref
	}
	short := []rune(id)
	if len(short) > shortIDLength {
		short = short[:shortIDLength]
	}
	return "#" + string(short)
}
