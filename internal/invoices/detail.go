package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"restodash/internal/api"
	"restodash/internal/cache"
	"restodash/internal/format"
	"restodash/internal/logger"
	"restodash/internal/reconcile"
	"restodash/internal/suppliers"
	"restodash/pkg/models"
)

// DetailAPI is the part of the API client the detail loader needs.
type DetailAPI interface {
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	ListInvoiceDetails(ctx context.Context, invoiceID string) ([]models.Article, error)
	GetSupplier(ctx context.Context, id string) (*models.Supplier, error)
	GetMasterArticle(ctx context.Context, id string) (*models.MasterArticle, error)
	ListVariations(ctx context.Context, opts api.ListOptions) ([]models.Variation, error)
}

// SupplierInfo is the supplier block of the detail view.
type SupplierInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Item is an article line of the detail view.
type Item struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Unit            string `json:"unit"`
	Quantity        string `json:"quantity"`
	UnitPrice       string `json:"unit_price"`
	Total           string `json:"total"`
	PriceDelta      string `json:"price_delta"`
	Duties          string `json:"duties"`
	Discount        string `json:"discount"`
	MasterArticleID string `json:"master_article_id"`
	MasterArticle   string `json:"master_article"`

	History []models.PricePoint `json:"history"`

	Article models.Article `json:"-"`
}

// Detail is the view of a single invoice.
type Detail struct {
	Invoice   models.Invoice `json:"invoice"`
	Reference string         `json:"reference"`
	Date      string         `json:"date"`
	HT        string         `json:"ht"`
	TVA       string         `json:"tva"`
	TTC       string         `json:"ttc"`
	Supplier  SupplierInfo   `json:"supplier"`
	Items     []Item         `json:"items"`
}

// Discrepancy checks the totals of the invoice against each other and against
// its lines. It returns nil when everything adds up.
func (d *Detail) Discrepancy() []string {
	checker := reconcile.NewChecker()

	var warnings []string
	totals := checker.CheckTotals(reconcile.Amounts{
		HT:  d.Invoice.TotalExclTax,
		TVA: d.Invoice.TotalTax,
		TTC: d.Invoice.TotalInclTax,
	})
	if totals.HasDiscrepancy {
		warnings = append(warnings, totals.Warnings...)
	}

	lineTotals := make([]float64, 0, len(d.Items))
	for _, item := range d.Items {
		lineTotals = append(lineTotals, item.Article.Total)
	}
	if lines := checker.CheckLines(d.Invoice.TotalExclTax, lineTotals); lines.HasDiscrepancy {
		warnings = append(warnings, lines.Warnings...)
	}
	return warnings
}

// DetailLoader loads the detail view of an invoice.
type DetailLoader struct {
	api         DetailAPI
	cache       cache.Cache
	concurrency int
	log         zerolog.Logger
}

// NewDetailLoader creates a detail loader. A nil cache disables caching of
// master articles.
func NewDetailLoader(client DetailAPI, c cache.Cache, concurrency int) *DetailLoader {
	if c == nil {
		c = cache.Nop{}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &DetailLoader{
		api:         client,
		cache:       c,
		concurrency: concurrency,
		log:         logger.WithComponent("invoice-detail"),
	}
}

// Load fetches an invoice with its lines, supplier, master articles and
// price variations, and shapes the detail view.
//
// Supplier and master article lookups are best effort: a failure only
// degrades the display. Failing to fetch the invoice, its lines or the
// variations fails the load.
func (d *DetailLoader) Load(ctx context.Context, invoiceID, establishmentID string) (*Detail, error) {
	const op = "invoices.Detail"

	start := time.Now()
	log := logger.WithEstablishment(d.log, establishmentID).With().Str("invoice_id", invoiceID).Logger()

	var (
		invoice  *models.Invoice
		articles []models.Article
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoice, err = d.api.GetInvoice(gctx, invoiceID)
		return err
	})
	g.Go(func() error {
		var err error
		articles, err = d.api.ListInvoiceDetails(gctx, invoiceID)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Failed to fetch invoice")
		if api.IsNotFound(err) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrDetailFailed, err)
	}

	supplier := d.supplier(ctx, invoice.SupplierID, log)
	masters := d.masterArticles(ctx, articles, log)

	variations, err := d.api.ListVariations(ctx, api.ListOptions{
		EstablishmentID: establishmentID,
		OrderBy:         "date",
		Direction:       "asc",
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch price variations")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrDetailFailed, err)
	}
	history := partitionVariations(variations)

	detail := &Detail{
		Invoice:   *invoice,
		Reference: format.InvoiceReference(format.NormalizeInvoiceNumber(invoice.InvoiceNumber), invoice.ID),
		Date:      format.Date(invoice.Date),
		HT:        format.Currency(invoice.TotalExclTax),
		TVA:       format.Currency(invoice.TotalTax),
		TTC:       format.Currency(invoice.TotalInclTax),
		Supplier:  supplier,
		Items:     make([]Item, 0, len(articles)),
	}

	for _, article := range articles {
		item := newItem(article)
		if master, ok := masters[article.MasterArticleID]; ok {
			item.MasterArticle = master.Name
		}
		item.History = BuildPriceHistory(history[article.MasterArticleID], invoice.Date, article.UnitPrice)
		detail.Items = append(detail.Items, item)
	}

	log.Info().
		Int("items", len(detail.Items)).
		Int("master_articles", len(masters)).
		Int("variations", len(variations)).
		Dur("duration", time.Since(start)).
		Msg("Invoice detail loaded")

	return detail, nil
}

func (d *DetailLoader) supplier(ctx context.Context, id string, log zerolog.Logger) SupplierInfo {
	info := SupplierInfo{ID: id, Name: UnknownSupplier, Label: suppliers.DisplayLabel("")}
	if id == "" {
		return info
	}

	supplier, err := d.api.GetSupplier(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("supplier_id", id).Msg("Failed to resolve supplier")
		return info
	}

	if supplier.Name != "" {
		info.Name = supplier.Name
	}
	info.Label = suppliers.DisplayLabel(supplier.Label)
	return info
}

// masterArticles resolves the distinct master articles of articles. Lookups
// run concurrently and failures are logged and skipped.
func (d *DetailLoader) masterArticles(ctx context.Context, articles []models.Article, log zerolog.Logger) map[string]models.MasterArticle {
	ids := make([]string, 0, len(articles))
	seen := make(map[string]bool, len(articles))
	for _, a := range articles {
		if a.MasterArticleID == "" || seen[a.MasterArticleID] {
			continue
		}
		seen[a.MasterArticleID] = true
		ids = append(ids, a.MasterArticleID)
	}

	results := make([]*models.MasterArticle, len(ids))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			master, err := d.masterArticle(ctx, id)
			if err != nil {
				log.Warn().Err(err).Str("master_article_id", id).Msg("Failed to resolve master article")
				return nil
			}
			results[i] = master
			return nil
		})
	}
	_ = g.Wait()

	masters := make(map[string]models.MasterArticle, len(ids))
	for _, master := range results {
		if master != nil {
			masters[master.ID] = *master
		}
	}
	return masters
}

func (d *DetailLoader) masterArticle(ctx context.Context, id string) (*models.MasterArticle, error) {
	key := cache.MasterArticleKey(id)

	var cached models.MasterArticle
	if found, err := d.cache.Get(ctx, key, &cached); err == nil && found {
		return &cached, nil
	} else if err != nil {
		d.log.Debug().Err(err).Str("key", key).Msg("Cache lookup failed")
	}

	master, err := d.api.GetMasterArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	if master.ID == "" {
		master.ID = id
	}

	if err := d.cache.Set(ctx, key, master); err != nil {
		d.log.Debug().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return master, nil
}

func newItem(a models.Article) Item {
	return Item{
		ID:              a.ID,
		Name:            a.Name,
		Unit:            a.Unit,
		Quantity:        format.Quantity(a.Quantity),
		UnitPrice:       format.CurrencyValue(a.UnitPrice),
		Total:           format.CurrencyValue(a.Total),
		PriceDelta:      format.Percentage(a.PriceDelta),
		Duties:          format.Currency(a.Duties),
		Discount:        format.Currency(a.Discount),
		MasterArticleID: a.MasterArticleID,
		Article:         a,
	}
}
