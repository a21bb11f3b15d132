package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"restodash/internal/api"
	"restodash/internal/extract"
	"restodash/internal/format"
	"restodash/internal/logger"
	"restodash/internal/reconcile"
	"restodash/internal/storage"
	"restodash/pkg/models"
)

// CheckAPI is the part of the API client the totals check needs.
type CheckAPI interface {
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	ListInvoiceDetails(ctx context.Context, invoiceID string) ([]models.Article, error)
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// CheckReport is the outcome of a totals check.
type CheckReport struct {
	InvoiceID string            `json:"invoice_id"`
	Reference string            `json:"reference"`
	Stored    reconcile.Amounts `json:"stored"`

	Arithmetic *reconcile.Result `json:"arithmetic"`
	Lines      *reconcile.Result `json:"lines"`

	// Document is nil when the source document could not be read.
	Document      *reconcile.Result `json:"document,omitempty"`
	Extracted     *extract.Totals   `json:"extracted,omitempty"`
	DocumentError string            `json:"document_error,omitempty"`
}

// HasDiscrepancy reports whether any of the checks failed.
func (r *CheckReport) HasDiscrepancy() bool {
	for _, res := range []*reconcile.Result{r.Arithmetic, r.Lines, r.Document} {
		if res != nil && res.HasDiscrepancy {
			return true
		}
	}
	return false
}

// Warnings gathers the warnings of every check.
func (r *CheckReport) Warnings() []string {
	var out []string
	for _, res := range []*reconcile.Result{r.Arithmetic, r.Lines, r.Document} {
		if res != nil {
			out = append(out, res.Warnings...)
		}
	}
	return out
}

// Verifier checks stored invoice totals against their arithmetic, their lines
// and the totals printed on the source document.
type Verifier struct {
	api       CheckAPI
	resolver  storage.Resolver
	extractor extract.Extractor
	checker   *reconcile.Checker
	log       zerolog.Logger
}

// NewVerifier creates a verifier. A nil extractor or resolver skips the
// document comparison.
func NewVerifier(client CheckAPI, resolver storage.Resolver, extractor extract.Extractor) *Verifier {
	return &Verifier{
		api:       client,
		resolver:  resolver,
		extractor: extractor,
		checker:   reconcile.NewChecker(),
		log:       logger.WithComponent("invoice-check"),
	}
}

// Check runs every check on one invoice. Failing to read the document is
// recorded in the report and does not fail the check.
func (v *Verifier) Check(ctx context.Context, invoiceID string) (*CheckReport, error) {
	const op = "invoices.Check"

	if err := checkID(invoiceID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	log := v.log.With().Str("invoice_id", invoiceID).Logger()

	invoice, err := v.api.GetInvoice(ctx, invoiceID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch invoice")
		if api.IsNotFound(err) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrDetailFailed, err)
	}

	articles, err := v.api.ListInvoiceDetails(ctx, invoiceID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch invoice lines")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrDetailFailed, err)
	}

	stored := reconcile.Amounts{HT: invoice.TotalExclTax, TVA: invoice.TotalTax, TTC: invoice.TotalInclTax}
	lineTotals := make([]float64, 0, len(articles))
	for _, a := range articles {
		lineTotals = append(lineTotals, a.Total)
	}

	report := &CheckReport{
		InvoiceID:  invoice.ID,
		Reference:  format.InvoiceReference(format.NormalizeInvoiceNumber(invoice.InvoiceNumber), invoice.ID),
		Stored:     stored,
		Arithmetic: v.checker.CheckTotals(stored),
		Lines:      v.checker.CheckLines(invoice.TotalExclTax, lineTotals),
	}

	extracted, err := v.readDocument(ctx, invoice.FilePath)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	case err != nil:
		log.Warn().Err(err).Msg("Could not read totals from the document")
		report.DocumentError = documentReason(err)
	case extracted != nil:
		report.Extracted = extracted
		report.Document = v.checker.Compare(stored, extracted.Amounts)
	}

	log.Info().
		Bool("has_discrepancy", report.HasDiscrepancy()).
		Bool("document_compared", report.Document != nil).
		Dur("duration", time.Since(start)).
		Msg("Invoice totals checked")

	return report, nil
}

var errNoExtractor = errors.New("no document extractor configured")

func (v *Verifier) readDocument(ctx context.Context, path string) (*extract.Totals, error) {
	if v.extractor == nil || v.resolver == nil {
		return nil, errNoExtractor
	}
	url, err := v.resolver.URL(ctx, path)
	if err != nil {
		return nil, err
	}
	pdf, err := v.api.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	return v.extractor.Extract(ctx, pdf)
}

func documentReason(err error) string {
	switch {
	case errors.Is(err, errNoExtractor):
		return "lecture des documents non configurée"
	case errors.Is(err, storage.ErrNoPath):
		return "aucun document associé"
	case api.IsNotFound(err):
		return "document introuvable"
	case errors.Is(err, extract.ErrInvalidPDF), errors.Is(err, extract.ErrDocumentTooLarge):
		return "document illisible"
	case errors.Is(err, extract.ErrNoAmounts):
		return "aucun total trouvé dans le document"
	default:
		return "lecture du document impossible"
	}
}
