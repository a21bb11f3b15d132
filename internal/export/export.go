// Package export builds invoice exports: a spreadsheet with one row per
// invoice plus a zip of the source documents. Large selections are
// delegated to the backend, which returns a ready-made archive.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"restodash/internal/api"
	"restodash/internal/invoices"
	"restodash/internal/logger"
	"restodash/internal/storage"
)

// DefaultThreshold is the largest selection exported locally.
const DefaultThreshold = 5

var (
	ErrEmptySelection = errors.New("export: no invoice selected")
	ErrExportFailed   = errors.New("export: failed")
)

// Messages shown to users.
const (
	MsgEmptySelection = "Aucune facture sélectionnée."
	MsgExportFailed   = "L'export a échoué."
	MsgDone           = "Export terminé."
	msgMissing        = "Export terminé avec des documents manquants (%d)"
)

// UserMessage converts an export error into the French message displayed to
// the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptySelection):
		return MsgEmptySelection
	default:
		return MsgExportFailed
	}
}

// Mode tells how an export was produced.
type Mode string

const (
	ModeLocal   Mode = "local"
	ModeBackend Mode = "backend"
)

// Backend is the part of the API client the exporter needs.
type Backend interface {
	ExportInvoices(ctx context.Context, req api.ExportRequest) ([]byte, error)
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// SheetWriter receives the exported rows, e.g. a Google Sheet.
type SheetWriter interface {
	WriteInvoices(ctx context.Context, header []string, rows [][]any) error
}

// Request describes an export.
type Request struct {
	EstablishmentID string
	Invoices        []invoices.ListItem

	// Name is the base name of the produced files, sanitized before use.
	Name string

	// Dir is the directory the files are written to.
	Dir string
}

// Missing is a document that could not be added to the archive.
type Missing struct {
	InvoiceID string `json:"invoice_id"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// Result reports what an export produced.
type Result struct {
	Mode     Mode      `json:"mode"`
	Files    []string  `json:"files"`
	Invoices int       `json:"invoices"`
	Missing  []Missing `json:"missing"`
	Warnings []string  `json:"warnings,omitempty"`
}

// Message is the summary shown once the export is done.
func (r *Result) Message() string {
	if len(r.Missing) > 0 {
		return fmt.Sprintf(msgMissing, len(r.Missing))
	}
	return MsgDone
}

// Exporter builds exports.
type Exporter struct {
	backend     Backend
	resolver    storage.Resolver
	sheet       SheetWriter
	threshold   int
	concurrency int
	now         func() time.Time
	log         zerolog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithThreshold sets the largest selection exported locally.
func WithThreshold(n int) Option {
	return func(e *Exporter) { e.threshold = n }
}

// WithConcurrency bounds the concurrent document downloads.
func WithConcurrency(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithSheet also pushes locally exported rows to w.
func WithSheet(w SheetWriter) Option {
	return func(e *Exporter) { e.sheet = w }
}

// NewExporter creates an exporter. resolver turns invoice storage paths
// into download URLs.
func NewExporter(backend Backend, resolver storage.Resolver, opts ...Option) *Exporter {
	e := &Exporter{
		backend:     backend,
		resolver:    resolver,
		threshold:   DefaultThreshold,
		concurrency: invoices.DefaultConcurrency,
		now:         time.Now,
		log:         logger.WithComponent("export"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes the export of req.Invoices to req.Dir. Selections larger
// than the threshold are delegated to the backend and written as
// <name>.zip. Smaller ones produce <name>.xlsx and <name>.zip built
// locally; documents that cannot be fetched are listed in Result.Missing
// without failing the export.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	const op = "export.Export"

	if len(req.Invoices) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySelection)
	}

	name := req.Name
	if strings.TrimSpace(name) == "" {
		name = "factures_" + e.now().Format("2006-01-02")
	}
	name = SanitizeFilename(name)

	dir := req.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrExportFailed, err)
	}

	log := logger.WithEstablishment(e.log, req.EstablishmentID).With().
		Int("invoices", len(req.Invoices)).
		Str("name", name).
		Logger()

	start := time.Now()
	var (
		result *Result
		err    error
	)
	if len(req.Invoices) > e.threshold {
		result, err = e.exportBackend(ctx, req, dir, name)
	} else {
		result, err = e.exportLocal(ctx, req, dir, name)
	}
	if err != nil {
		log.Error().Err(err).Msg("Export failed")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrExportFailed, err)
	}

	log.Info().
		Str("mode", string(result.Mode)).
		Strs("files", result.Files).
		Int("missing", len(result.Missing)).
		Dur("duration", time.Since(start)).
		Msg("Export completed")

	return result, nil
}

func (e *Exporter) exportBackend(ctx context.Context, req Request, dir, name string) (*Result, error) {
	ids := make([]string, 0, len(req.Invoices))
	for _, item := range req.Invoices {
		ids = append(ids, item.ID)
	}

	blob, err := e.backend.ExportInvoices(ctx, api.ExportRequest{
		EstablishmentID: req.EstablishmentID,
		InvoiceIDs:      ids,
	})
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, name+".zip")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return nil, err
	}

	return &Result{
		Mode:     ModeBackend,
		Files:    []string{path},
		Invoices: len(req.Invoices),
		Missing:  []Missing{},
	}, nil
}

func (e *Exporter) exportLocal(ctx context.Context, req Request, dir, name string) (*Result, error) {
	result := &Result{Mode: ModeLocal, Invoices: len(req.Invoices), Missing: []Missing{}}

	var sheet bytes.Buffer
	if err := WriteSpreadsheet(&sheet, req.Invoices); err != nil {
		return nil, err
	}
	sheetPath := filepath.Join(dir, name+".xlsx")
	if err := os.WriteFile(sheetPath, sheet.Bytes(), 0o644); err != nil {
		return nil, err
	}
	result.Files = append(result.Files, sheetPath)

	docs, missing := e.fetchDocuments(ctx, req.Invoices)
	result.Missing = missing
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(docs) > 0 {
		var archive bytes.Buffer
		if err := WriteArchive(&archive, docs, e.now()); err != nil {
			return nil, err
		}
		archivePath := filepath.Join(dir, name+".zip")
		if err := os.WriteFile(archivePath, archive.Bytes(), 0o644); err != nil {
			return nil, err
		}
		result.Files = append(result.Files, archivePath)
	}

	if e.sheet != nil {
		if err := e.sheet.WriteInvoices(ctx, Header, Rows(req.Invoices)); err != nil {
			e.log.Warn().Err(err).Msg("Failed to push export to spreadsheet")
			result.Warnings = append(result.Warnings, "La feuille Google n'a pas pu être mise à jour.")
		}
	}

	return result, nil
}

// fetchDocuments downloads the source document of every invoice, at most
// e.concurrency at a time. A failure never aborts the other downloads.
func (e *Exporter) fetchDocuments(ctx context.Context, items []invoices.ListItem) ([]Document, []Missing) {
	docs := make([]*Document, len(items))
	reasons := make([]string, len(items))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, item := range items {
		g.Go(func() error {
			data, err := e.fetchDocument(ctx, item.FilePath)
			if err != nil {
				e.log.Warn().Err(err).Str("invoice_id", item.ID).Msg("Document unavailable")
				reasons[i] = reason(err)
				return nil
			}
			docs[i] = &Document{Name: documentName(item), Data: data}
			return nil
		})
	}
	_ = g.Wait()

	found := make([]Document, 0, len(items))
	missing := make([]Missing, 0)
	for i, item := range items {
		if docs[i] != nil {
			found = append(found, *docs[i])
			continue
		}
		missing = append(missing, Missing{InvoiceID: item.ID, Reference: item.Reference, Reason: reasons[i]})
	}
	return found, missing
}

func (e *Exporter) fetchDocument(ctx context.Context, path string) ([]byte, error) {
	if e.resolver == nil {
		return nil, storage.ErrNoPath
	}
	url, err := e.resolver.URL(ctx, path)
	if err != nil {
		return nil, err
	}
	return e.backend.Download(ctx, url)
}

func reason(err error) string {
	switch {
	case errors.Is(err, storage.ErrNoPath):
		return "aucun document associé"
	case api.IsNotFound(err):
		return "document introuvable"
	default:
		return "téléchargement impossible"
	}
}

// documentName is the archive entry name of an invoice document.
func documentName(item invoices.ListItem) string {
	parts := []string{item.Reference, item.Supplier}
	if !item.DateValue.IsZero() {
		parts = append(parts, item.DateValue.Format("2006-01-02"))
	}

	ext := strings.ToLower(filepath.Ext(item.FilePath))
	if ext == "" {
		ext = ".pdf"
	}
	return strings.Join(parts, "_") + ext
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
