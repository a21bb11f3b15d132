// Package invoices fetches invoices, suppliers and article lines from the API
// and shapes them into the rows of the invoice table and the invoice detail
// view.
//
// Loading follows a fan-out/fan-in pattern: independent requests run
// concurrently and are joined before shaping. Any failing request of a list
// load fails the whole load; there is no partial result and no retry.
package invoices

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"restodash/internal/api"
	"restodash/internal/format"
	"restodash/internal/logger"
	"restodash/pkg/models"
)

// UnknownSupplier is displayed for invoices whose supplier cannot be resolved.
const UnknownSupplier = "Fournisseur inconnu"

// DefaultConcurrency bounds the per-invoice requests when none is configured.
const DefaultConcurrency = 8

// ListAPI is the part of the API client the list loader needs.
type ListAPI interface {
	ListInvoices(ctx context.Context, opts api.ListOptions) ([]models.Invoice, error)
	ListSuppliers(ctx context.Context, opts api.ListOptions) ([]models.Supplier, error)
	ListInvoiceDetails(ctx context.Context, invoiceID string) ([]models.Article, error)
}

// Query selects the invoices of an establishment, optionally within a date
// range. Zero bounds are open.
type Query struct {
	EstablishmentID string
	From            time.Time
	To              time.Time
}

// ListItem is one row of the invoice table: display strings plus the raw
// values used for sorting, filtering and totals.
type ListItem struct {
	ID            string `json:"id"`
	Reference     string `json:"reference"`
	InvoiceNumber string `json:"invoice_number"`
	Supplier      string `json:"supplier"`
	Date          string `json:"date"`
	HT            string `json:"ht"`
	TVA           string `json:"tva"`
	TTC           string `json:"ttc"`
	ArticleCount  int    `json:"article_count"`
	FilePath      string `json:"file_path"`

	// Raw keys
	SupplierValue string    `json:"supplier_id"`
	DateValue     time.Time `json:"date_value"`
	HTValue       *float64  `json:"ht_value"`
	TVAValue      *float64  `json:"tva_value"`
	TTCValue      *float64  `json:"ttc_value"`
}

// SupplierOption is an entry of the supplier filter.
type SupplierOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ListResult is the outcome of a list load.
type ListResult struct {
	Items     []ListItem       `json:"items"`
	Suppliers []SupplierOption `json:"suppliers"`
}

// Lister loads the invoice table of an establishment.
type Lister struct {
	api         ListAPI
	concurrency int
	log         zerolog.Logger
}

// NewLister creates a lister issuing at most concurrency per-invoice
// requests at a time.
func NewLister(client ListAPI, concurrency int) *Lister {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Lister{
		api:         client,
		concurrency: concurrency,
		log:         logger.WithComponent("invoices"),
	}
}

// Load fetches suppliers and invoices concurrently, counts the article lines
// of every invoice, and joins the three datasets into table rows sorted by
// date, most recent first.
func (l *Lister) Load(ctx context.Context, q Query) (*ListResult, error) {
	const op = "invoices.Load"

	start := time.Now()
	log := logger.WithEstablishment(l.log, q.EstablishmentID)

	opts := api.ListOptions{
		EstablishmentID: q.EstablishmentID,
		OrderBy:         "date",
		Direction:       "desc",
		Filters:         q.filters(),
	}

	var (
		invoices  []models.Invoice
		suppliers []models.Supplier
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoices, err = l.api.ListInvoices(gctx, opts)
		return err
	})
	g.Go(func() error {
		var err error
		suppliers, err = l.api.ListSuppliers(gctx, api.ListOptions{EstablishmentID: q.EstablishmentID})
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Failed to fetch invoices or suppliers")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrLoadFailed, err)
	}

	counts, err := l.countArticles(ctx, invoices)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count invoice articles")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrLoadFailed, err)
	}

	items := Join(invoices, suppliers, counts)
	items = Filter(items, q.From, q.To, nil)
	Sort(items, SortByDate, Descending)

	log.Info().
		Int("invoices", len(items)).
		Int("suppliers", len(suppliers)).
		Dur("duration", time.Since(start)).
		Msg("Invoice list loaded")

	return &ListResult{
		Items:     items,
		Suppliers: Options(items),
	}, nil
}

// countArticles fetches the lines of every invoice, at most l.concurrency
// at a time. The first failure cancels the remaining requests.
func (l *Lister) countArticles(ctx context.Context, invoices []models.Invoice) (map[string]int, error) {
	counts := make([]int, len(invoices))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, invoice := range invoices {
		g.Go(func() error {
			articles, err := l.api.ListInvoiceDetails(gctx, invoice.ID)
			if err != nil {
				return fmt.Errorf("invoice %s: %w", invoice.ID, err)
			}
			counts[i] = len(articles)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]int, len(invoices))
	for i, invoice := range invoices {
		byID[invoice.ID] = counts[i]
	}
	return byID, nil
}

func (q Query) filters() map[string]string {
	filters := map[string]string{}
	if !q.From.IsZero() {
		filters["date_from"] = q.From.Format("2006-01-02")
	}
	if !q.To.IsZero() {
		filters["date_to"] = q.To.Format("2006-01-02")
	}
	return filters
}

// Join shapes invoices into table rows. Suppliers and article counts are
// matched by id; unknown suppliers render as UnknownSupplier.
func Join(invoices []models.Invoice, suppliers []models.Supplier, counts map[string]int) []ListItem {
	names := make(map[string]string, len(suppliers))
	for _, s := range suppliers {
		names[s.ID] = s.Name
	}

	items := make([]ListItem, 0, len(invoices))
	for _, invoice := range invoices {
		name, ok := names[invoice.SupplierID]
		if !ok || strings.TrimSpace(name) == "" {
			name = UnknownSupplier
		}

		item := NewListItem(invoice, name)
		item.ArticleCount = counts[invoice.ID]
		items = append(items, item)
	}
	return items
}

// NewListItem shapes a single invoice.
func NewListItem(invoice models.Invoice, supplierName string) ListItem {
	item := ListItem{
		ID:            invoice.ID,
		Supplier:      supplierName,
		SupplierValue: invoice.SupplierID,
	}
	ApplyInvoice(&item, invoice)
	return item
}

// ApplyInvoice patches the invoice fields of a row with an updated record,
// leaving the supplier and article count untouched.
func ApplyInvoice(item *ListItem, invoice models.Invoice) {
	date, _ := format.ParseDate(invoice.Date)

	item.InvoiceNumber = format.NormalizeInvoiceNumber(invoice.InvoiceNumber)
	item.Reference = format.InvoiceReference(item.InvoiceNumber, invoice.ID)
	item.Date = format.DateValue(date)
	item.DateValue = date
	item.HT = format.Currency(invoice.TotalExclTax)
	item.TVA = format.Currency(invoice.TotalTax)
	item.TTC = format.Currency(invoice.TotalInclTax)
	item.HTValue = invoice.TotalExclTax
	item.TVAValue = invoice.TotalTax
	item.TTCValue = invoice.TotalInclTax
	item.FilePath = invoice.FilePath
}

// Options returns the suppliers present in items, sorted by name.
func Options(items []ListItem) []SupplierOption {
	seen := make(map[string]bool)
	options := make([]SupplierOption, 0)
	for _, item := range items {
		if item.SupplierValue == "" || seen[item.SupplierValue] {
			continue
		}
		seen[item.SupplierValue] = true
		options = append(options, SupplierOption{Value: item.SupplierValue, Label: item.Supplier})
	}

	sort.SliceStable(options, func(i, j int) bool {
		return strings.ToLower(options[i].Label) < strings.ToLower(options[j].Label)
	})
	return options
}
