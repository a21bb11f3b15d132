package ocr

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"restodash/internal/extract"
	"restodash/internal/format"
	"restodash/internal/logger"
	"restodash/internal/reconcile"
)

// SourceOCR tags totals read from OCR text.
const SourceOCR = "ocr"

var (
	percentPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)?\s*%`)
	amountPattern  = regexp.MustCompile(`-?\d{1,3}(?:[ \x{00a0}\x{202f}.]\d{3})+,\d{2}|-?\d+[.,]\d{2}\b`)

	// labelStop ends the segment read after a label, for totals printed on one line.
	labelStop = regexp.MustCompile(`(?i)\b(?:total|montant|t\.?v\.?a|t\.?t\.?c|h\.?t)\b`)

	numberPattern = regexp.MustCompile(`(?i)facture\s*(?:n\s*[°ºo]\.?|num[ée]ro)\s*:?\s*([A-Z0-9][A-Z0-9/_.-]*)`)

	// Patterns are tried in order, the first one yielding an amount wins.
	htLabels = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:total|montant|sous-total|net)[^\d\n]{0,15}(?:\bh\.?\s?t\b|hors\s+taxes?)`),
	}
	tvaLabels = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:total|montant)[^\d\n]{0,15}\bt\.?v\.?a\b`),
		regexp.MustCompile(`(?i)\bt\.?v\.?a\b`),
	}
	ttcLabels = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:total|montant|net)[^\d\n]{0,15}(?:\bt\.?t\.?c\b|toutes\s+taxes\s+comprises)`),
		regexp.MustCompile(`(?i)net\s+(?:à|a)\s+payer`),
		regexp.MustCompile(`(?i)\bt\.?t\.?c\b`),
	}
)

// ParseAmounts finds the HT, TVA and TTC totals in the text of a French
// invoice. The last matching line wins since totals close the document.
// When a label line carries no amount, the next non empty line is read.
func ParseAmounts(text string) reconcile.Amounts {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	return reconcile.Amounts{
		HT:  findAmount(lines, htLabels),
		TVA: findAmount(lines, tvaLabels),
		TTC: findAmount(lines, ttcLabels),
	}
}

// ParseInvoiceNumber finds "Facture N° ..." in the text.
func ParseInvoiceNumber(text string) string {
	m := numberPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimRight(m[1], ".-/")
}

func findAmount(lines []string, labels []*regexp.Regexp) *float64 {
	for _, label := range labels {
		var found *float64
		for i, line := range lines {
			loc := label.FindStringIndex(line)
			if loc == nil {
				continue
			}
			rest := line[loc[1]:]
			if stop := labelStop.FindStringIndex(rest); stop != nil {
				rest = rest[:stop[0]]
			}
			if v, ok := lastAmount(rest); ok {
				found = &v
				continue
			}
			if next := nextLine(lines, i); next != "" {
				if v, ok := lastAmount(next); ok {
					found = &v
				}
			}
		}
		if found != nil {
			return found
		}
	}
	return nil
}

func lastAmount(s string) (float64, bool) {
	matches := amountPattern.FindAllString(percentPattern.ReplaceAllString(s, " "), -1)
	if len(matches) == 0 {
		return 0, false
	}
	return format.ParseNumber(matches[len(matches)-1]), true
}

func nextLine(lines []string, i int) string {
	for _, line := range lines[i+1:] {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// TextExtractor reads totals from the OCR text of a document.
type TextExtractor struct {
	service   Service
	completer *Completer
}

// TextOption configures a TextExtractor.
type TextOption func(*TextExtractor)

// WithCompleter asks c for the totals the text parser could not find.
func WithCompleter(c *Completer) TextOption {
	return func(t *TextExtractor) { t.completer = c }
}

// NewTextExtractor creates an extract.Extractor on top of an OCR service.
func NewTextExtractor(service Service, opts ...TextOption) *TextExtractor {
	t := &TextExtractor{service: service}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Extract runs OCR on the document and parses its totals.
func (t *TextExtractor) Extract(ctx context.Context, pdf []byte) (*extract.Totals, error) {
	const op = "TextExtractor.Extract"

	result, err := t.service.ProcessPDF(ctx, pdf)
	if err != nil {
		return nil, err
	}

	totals := &extract.Totals{
		Amounts:       ParseAmounts(result.Text),
		InvoiceNumber: ParseInvoiceNumber(result.Text),
		Source:        SourceOCR,
		Confidence:    map[string]float32{"text": result.Confidence},
	}

	if t.completer != nil && !complete(totals) {
		completed, err := t.completer.Complete(ctx, result.Text)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case err != nil:
			logger.FromContext(ctx).Warn().Err(err).Msg("Completion failed, keeping parsed totals")
		default:
			merge(totals, completed)
		}
	}

	if totals.Empty() {
		return nil, extract.Wrap(op, extract.ErrNoAmounts, "no totals line in OCR text")
	}
	return totals, nil
}

func complete(t *extract.Totals) bool {
	return t.HT != nil && t.TVA != nil && t.TTC != nil
}

// merge fills the fields of dst that the parser left empty.
func merge(dst, src *extract.Totals) {
	filled := false
	if dst.HT == nil && src.HT != nil {
		dst.HT, filled = src.HT, true
	}
	if dst.TVA == nil && src.TVA != nil {
		dst.TVA, filled = src.TVA, true
	}
	if dst.TTC == nil && src.TTC != nil {
		dst.TTC, filled = src.TTC, true
	}
	if dst.InvoiceNumber == "" {
		dst.InvoiceNumber = src.InvoiceNumber
	}
	if dst.Date == "" {
		dst.Date = src.Date
	}
	if filled {
		dst.Source = SourceCompletion
	}
}
