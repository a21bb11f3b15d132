package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"restodash/internal/api"
	"restodash/internal/export"
	"restodash/internal/invoices"
	"restodash/internal/storage"
	"restodash/internal/suppliers"
	"restodash/pkg/models"
)

func ptr(v float64) *float64 { return &v }

// fakeAPI serves a tiny dataset with the routes of the backend API.
type fakeAPI struct {
	mu        sync.Mutex
	invoices  []models.Invoice
	suppliers []models.Supplier
	labels    map[string]string
}

func (f *fakeAPI) router() http.Handler {
	r := chi.NewRouter()
	answer := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	r.Get("/invoices", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		answer(w, f.invoices)
	})
	r.Get("/invoices/{id}", func(w http.ResponseWriter, req *http.Request) {
		for _, inv := range f.invoices {
			if inv.ID == chi.URLParam(req, "id") {
				answer(w, inv)
				return
			}
		}
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
	})
	r.Patch("/invoices/{id}", func(w http.ResponseWriter, req *http.Request) {
		var patch api.InvoicePatch
		_ = json.NewDecoder(req.Body).Decode(&patch)
		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.invoices {
			if f.invoices[i].ID != chi.URLParam(req, "id") {
				continue
			}
			f.invoices[i].TotalExclTax = patch.TotalExclTax
			f.invoices[i].TotalTax = patch.TotalTax
			f.invoices[i].TotalInclTax = patch.TotalInclTax
			answer(w, f.invoices[i])
			return
		}
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
	})
	r.Get("/invoices/{id}/details", func(w http.ResponseWriter, _ *http.Request) {
		answer(w, []models.Article{{ID: "l1", Total: 10}})
	})
	r.Get("/suppliers", func(w http.ResponseWriter, _ *http.Request) { answer(w, f.suppliers) })
	r.Patch("/suppliers/{id}", func(w http.ResponseWriter, req *http.Request) {
		var patch map[string]string
		_ = json.NewDecoder(req.Body).Decode(&patch)
		f.mu.Lock()
		f.labels[chi.URLParam(req, "id")] = patch["label"]
		f.mu.Unlock()
		answer(w, models.Supplier{ID: chi.URLParam(req, "id"), Label: patch["label"]})
	})
	r.Get("/files/*", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("%PDF-1.4"))
	})
	return r
}

func newTestServer(t *testing.T, rateLimit int) (*Server, *fakeAPI, string) {
	t.Helper()

	fake := &fakeAPI{
		invoices: []models.Invoice{
			{ID: "inv-1", SupplierID: "sup-a", InvoiceNumber: "1", Date: "2024-03-01", TotalInclTax: ptr(100), FilePath: "a.pdf"},
			{ID: "inv-2", SupplierID: "sup-b", InvoiceNumber: "2", Date: "2024-03-02", TotalInclTax: ptr(200), FilePath: "b.pdf"},
			{ID: "inv-3", SupplierID: "sup-a", InvoiceNumber: "3", Date: "2024-03-03", TotalInclTax: ptr(300)},
		},
		suppliers: []models.Supplier{{ID: "sup-a", Name: "Alpha"}, {ID: "sup-b", Name: "Beta"}},
		labels:    map[string]string{},
	}
	backend := httptest.NewServer(fake.router())
	t.Cleanup(backend.Close)

	client, err := api.New(backend.URL)
	require.NoError(t, err)
	resolver, err := storage.NewPublicResolver(backend.URL + "/files")
	require.NoError(t, err)

	dir := t.TempDir()
	s := New(Deps{
		Lister:          invoices.NewLister(client, 2),
		Details:         invoices.NewDetailLoader(client, nil, 2),
		Editor:          invoices.NewEditor(client),
		Exporter:        export.NewExporter(client, resolver),
		Suppliers:       suppliers.NewService(client, nil),
		EstablishmentID: "est-1",
		ExportDir:       dir,
		RateLimit:       rateLimit,
	})
	return s, fake, dir
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t, 0)

	rec, body := do(t, s.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestListInvoices(t *testing.T) {
	s, _, _ := newTestServer(t, 0)

	rec, body := do(t, s.Handler(), http.MethodGet, "/invoices?supplier=sup-a&sort=ttc&dir=asc", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "inv-1", items[0].(map[string]any)["id"])
	assert.Equal(t, "inv-3", items[1].(map[string]any)["id"])
	assert.Equal(t, "400,00 €", body["summary"].(map[string]any)["ttc"])
	assert.Len(t, body["suppliers"], 2)
}

func TestListInvoicesRejectsBadInput(t *testing.T) {
	s, _, _ := newTestServer(t, 0)

	rec, body := do(t, s.Handler(), http.MethodGet, "/invoices?from=demain", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Champ « du » : date invalide.", body["error"])

	rec, _ = do(t, s.Handler(), http.MethodGet, "/invoices?sort=price", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShowInvoiceNotFound(t *testing.T) {
	s, _, _ := newTestServer(t, 0)

	rec, body := do(t, s.Handler(), http.MethodGet, "/invoices/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, invoices.MsgNotFound, body["error"])
}

func TestUpdateTotalsValidation(t *testing.T) {
	s, _, _ := newTestServer(t, 0)

	rec, body := do(t, s.Handler(), http.MethodPatch, "/invoices/inv-1/totals", `{"ht":"abc","tva":"1","ttc":"2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "total HT")

	rec, body = do(t, s.Handler(), http.MethodPatch, "/invoices/inv-1/totals", `{"unknown":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Champ « corps » : requête JSON invalide.", body["error"])

	rec, body = do(t, s.Handler(), http.MethodPatch, "/invoices/"+models.TempID()+"/totals", `{"ht":"1","tva":"0","ttc":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "pas encore enregistré")
}

func TestUpdateTotalsPatchesListedRow(t *testing.T) {
	s, _, _ := newTestServer(t, 0)
	totals := `{"ht":"1 000,00","tva":"200","ttc":"1,200.00"}`

	// nothing listed yet: only the backend record comes back
	rec, body := do(t, s.Handler(), http.MethodPatch, "/invoices/inv-1/totals", totals)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "inv-1", body["invoice"].(map[string]any)["id"])
	assert.NotContains(t, body, "row")

	rec, _ = do(t, s.Handler(), http.MethodGet, "/invoices", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body = do(t, s.Handler(), http.MethodPatch, "/invoices/inv-1/totals", `{"ht":"10","tva":"2","ttc":"12"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	row := body["row"].(map[string]any)
	assert.Equal(t, "Alpha", row["supplier"])
	assert.Equal(t, "12,00 €", row["ttc"])

	var cached invoices.ListItem
	for _, item := range s.store("est-1").Snapshot().Items {
		if item.ID == "inv-1" {
			cached = item
		}
	}
	assert.Equal(t, "Alpha", cached.Supplier)
	assert.Equal(t, "12,00 €", cached.TTC)
	require.NotNil(t, cached.HTValue)
	assert.Equal(t, 10.0, *cached.HTValue)
}

func TestUpdateSupplierLabel(t *testing.T) {
	s, fake, _ := newTestServer(t, 0)

	rec, _ := do(t, s.Handler(), http.MethodPatch, "/suppliers/sup-a/label", `{"label":"Boissons"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, models.LabelBeverages, fake.labels["sup-a"])
}

func TestExportInvoices(t *testing.T) {
	s, _, dir := newTestServer(t, 0)

	rec, body := do(t, s.Handler(), http.MethodPost, "/invoices/export", `{"invoice_ids":["inv-1","inv-2"],"name":"mars"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, string(export.ModeLocal), body["mode"])
	assert.Equal(t, "Export terminé.", body["message"])
	assert.FileExists(t, dir+"/mars.xlsx")
	assert.FileExists(t, dir+"/mars.zip")

	rec, body = do(t, s.Handler(), http.MethodPost, "/invoices/export", `{"suppliers":["nobody"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, export.MsgEmptySelection, body["error"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCheckNotConfigured(t *testing.T) {
	s, _, _ := newTestServer(t, 0)

	rec, _ := do(t, s.Handler(), http.MethodGet, "/invoices/inv-1/check", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s, _, _ := newTestServer(t, 1)

	rec, _ := do(t, s.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, s.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, body["error"])
}

func TestMetrics(t *testing.T) {
	s, _, _ := newTestServer(t, 0)

	rec, _ := do(t, s.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s.Handler(), http.MethodPost, "/invoices/export", `{"invoice_ids":["inv-1"],"name":"m"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = do(t, s.Handler(), http.MethodGet, "/invoices/inv-1/check", "")
	require.Equal(t, http.StatusNotImplemented, rec.Code)

	rec, _ = do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	out := rec.Body.String()
	assert.Contains(t, out, `restodash_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, out, `restodash_http_requests_total{method="GET",route="/invoices/{id}/check",status="501"} 1`)
	assert.Contains(t, out, `restodash_exports_total{mode="local"} 1`)
	assert.Contains(t, out, "go_goroutines")
}
