package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"restodash/internal/api"
	"restodash/internal/invoices"
	"restodash/internal/storage"
	"restodash/pkg/models"
)

type testBackend struct {
	client      *api.Client
	resolver    storage.Resolver
	exportCalls atomic.Int32
	exportedIDs atomic.Value
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()

	b := &testBackend{}
	r := chi.NewRouter()
	r.Post("/api/invoices/export", func(w http.ResponseWriter, req *http.Request) {
		b.exportCalls.Add(1)
		var body api.ExportRequest
		_ = json.NewDecoder(req.Body).Decode(&body)
		b.exportedIDs.Store(body.InvoiceIDs)
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("PK-backend-archive"))
	})
	r.Get("/files/*", func(w http.ResponseWriter, req *http.Request) {
		switch chi.URLParam(req, "*") {
		case "est-1/inv-1.pdf":
			w.Write([]byte("%PDF-1 first"))
		case "est-1/inv-2.pdf":
			w.Write([]byte("%PDF-1 second"))
		default:
			http.NotFound(w, req)
		}
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	client, err := api.New(server.URL + "/api")
	require.NoError(t, err)
	resolver, err := storage.NewPublicResolver(server.URL + "/files")
	require.NoError(t, err)

	b.client = client
	b.resolver = resolver
	return b
}

func ptr(v float64) *float64 { return &v }

func items(n int) []invoices.ListItem {
	out := make([]invoices.ListItem, 0, n)
	for i := 1; i <= n; i++ {
		inv := models.Invoice{
			ID:            "inv-" + string(rune('0'+i)),
			InvoiceNumber: "F-00" + string(rune('0'+i)),
			Date:          "2024-03-0" + string(rune('0'+i)),
			TotalExclTax:  ptr(100),
			TotalTax:      ptr(5.5),
			TotalInclTax:  ptr(105.5),
			FilePath:      "est-1/inv-" + string(rune('0'+i)) + ".pdf",
		}
		item := invoices.NewListItem(inv, "Épicerie Müller & Fils")
		item.ArticleCount = i
		out = append(out, item)
	}
	return out
}

type recordingSheet struct {
	header []string
	rows   [][]any
}

func (r *recordingSheet) WriteInvoices(_ context.Context, header []string, rows [][]any) error {
	r.header, r.rows = header, rows
	return nil
}

func TestExportLocal(t *testing.T) {
	b := newTestBackend(t)
	sheet := &recordingSheet{}
	exporter := NewExporter(b.client, b.resolver, WithSheet(sheet), WithConcurrency(2))
	dir := t.TempDir()

	selection := items(3)
	selection[2].FilePath = ""

	result, err := exporter.Export(context.Background(), Request{
		EstablishmentID: "est-1",
		Invoices:        selection,
		Name:            "Factures mars été",
		Dir:             dir,
	})
	require.NoError(t, err)

	assert.Equal(t, ModeLocal, result.Mode)
	assert.Equal(t, []string{
		filepath.Join(dir, "Factures-mars-ete.xlsx"),
		filepath.Join(dir, "Factures-mars-ete.zip"),
	}, result.Files)
	require.Len(t, result.Missing, 1)
	assert.Equal(t, "inv-3", result.Missing[0].InvoiceID)
	assert.Equal(t, "aucun document associé", result.Missing[0].Reason)
	assert.Equal(t, "Export terminé avec des documents manquants (1)", result.Message())
	assert.Zero(t, b.exportCalls.Load())

	// spreadsheet
	f, err := excelize.OpenFile(result.Files[0])
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"N°F-001", "Épicerie Müller & Fils", "01/03/2024", "100", "5.5", "105.5", "1"}, rows[1])
	assert.Equal(t, "Total", rows[4][0])
	assert.Equal(t, "316.5", rows[4][5])

	// archive
	entries := readArchive(t, result.Files[1])
	assert.Equal(t, map[string]string{
		"N-F-001_Epicerie-Muller-Fils_2024-03-01.pdf": "%PDF-1 first",
		"N-F-002_Epicerie-Muller-Fils_2024-03-02.pdf": "%PDF-1 second",
	}, entries)

	// sheet sink
	assert.Equal(t, Header, sheet.header)
	assert.Len(t, sheet.rows, 3)
}

func TestExportLocalAllMissing(t *testing.T) {
	b := newTestBackend(t)
	exporter := NewExporter(b.client, b.resolver)

	selection := items(1)
	selection[0].FilePath = "est-1/unknown.pdf"

	result, err := exporter.Export(context.Background(), Request{Invoices: selection, Name: "x", Dir: t.TempDir()})
	require.NoError(t, err)

	assert.Len(t, result.Files, 1, "no archive without documents")
	require.Len(t, result.Missing, 1)
	assert.Equal(t, "document introuvable", result.Missing[0].Reason)
}

func TestExportDelegatesAboveThreshold(t *testing.T) {
	b := newTestBackend(t)
	exporter := NewExporter(b.client, b.resolver)
	dir := t.TempDir()

	result, err := exporter.Export(context.Background(), Request{
		EstablishmentID: "est-1",
		Invoices:        items(6),
		Name:            "gros export",
		Dir:             dir,
	})
	require.NoError(t, err)

	assert.Equal(t, ModeBackend, result.Mode)
	assert.Equal(t, int32(1), b.exportCalls.Load())
	assert.Len(t, b.exportedIDs.Load(), 6)
	assert.Equal(t, "Export terminé.", result.Message())

	data, err := os.ReadFile(filepath.Join(dir, "gros-export.zip"))
	require.NoError(t, err)
	assert.Equal(t, "PK-backend-archive", string(data))
}

func TestExportThresholdIsInclusive(t *testing.T) {
	b := newTestBackend(t)
	exporter := NewExporter(b.client, b.resolver)

	result, err := exporter.Export(context.Background(), Request{Invoices: items(5), Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, result.Mode)
	assert.Zero(t, b.exportCalls.Load())
}

func TestExportEmptySelection(t *testing.T) {
	exporter := NewExporter(nil, nil)

	_, err := exporter.Export(context.Background(), Request{})
	require.ErrorIs(t, err, ErrEmptySelection)
	assert.Equal(t, MsgEmptySelection, UserMessage(err))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"Facture été 2024.pdf":   "Facture-ete-2024.pdf",
		"  --Crème brûlée--  ":   "Creme-brulee",
		"a/b\\c:d*e?f":           "a-b-c-d-e-f",
		"N°123 (copie)":          "N-123-(copie)",
		"":                       DefaultFilename,
		"€€€":                    DefaultFilename,
		"..":                     DefaultFilename,
		"already_safe-name.xlsx": "already_safe-name.xlsx",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}

	safe := regexp.MustCompile(`^[\w().-]+$`)
	for _, in := range []string{"日本語", "- -", "ÀÉÎÕÜ ç ñ", "tab\tnew\nline", "100% bio!", "x"} {
		got := SanitizeFilename(in)
		assert.Regexp(t, safe, got, in)
		assert.NotEqual(t, '-', rune(got[0]), in)
		assert.NotEqual(t, '-', rune(got[len(got)-1]), in)
	}
}

func TestWriteArchiveUniqueNames(t *testing.T) {
	var buf bytes.Buffer
	err := WriteArchive(&buf, []Document{
		{Name: "a.pdf", Data: []byte("1")},
		{Name: "A.pdf", Data: []byte("2")},
		{Name: "a.pdf", Data: []byte("3")},
	}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a.pdf", "A-2.pdf", "a-3.pdf"}, names)
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	entries := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = string(data)
	}
	return entries
}
