package invoices

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"restodash/internal/api"
	"restodash/pkg/models"
)

// fakeBackend serves an in-memory dataset with the routes of the API.
type fakeBackend struct {
	mu         sync.Mutex
	invoices   []models.Invoice
	suppliers  []models.Supplier
	articles   map[string][]models.Article
	masters    map[string]models.MasterArticle
	variations []models.Variation
	documents  map[string][]byte

	// failing routes answer 500
	failing map[string]bool

	masterCalls atomic.Int32
	lastPatch   map[string]any
	lastQuery   map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		articles:  map[string][]models.Article{},
		masters:   map[string]models.MasterArticle{},
		documents: map[string][]byte{},
		failing:   map[string]bool{},
	}
}

func (b *fakeBackend) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/invoices", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		b.lastQuery = map[string]string{}
		for key := range req.URL.Query() {
			b.lastQuery[key] = req.URL.Query().Get(key)
		}
		b.mu.Unlock()
		b.answer(w, "invoices", b.invoices)
	})
	r.Get("/invoices/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		for _, inv := range b.invoices {
			if inv.ID == id {
				b.answer(w, "invoice", inv)
				return
			}
		}
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
	})
	r.Patch("/invoices/{id}", func(w http.ResponseWriter, req *http.Request) {
		var patch map[string]any
		_ = json.NewDecoder(req.Body).Decode(&patch)
		b.mu.Lock()
		b.lastPatch = patch
		b.mu.Unlock()

		id := chi.URLParam(req, "id")
		for _, inv := range b.invoices {
			if inv.ID == id {
				if v, ok := patch["total_incl_tax"].(float64); ok {
					inv.TotalInclTax = &v
				}
				if v, ok := patch["total_excl_tax"].(float64); ok {
					inv.TotalExclTax = &v
				}
				if v, ok := patch["total_tax"].(float64); ok {
					inv.TotalTax = &v
				}
				if v, ok := patch["invoice_number"].(string); ok {
					inv.InvoiceNumber = v
				}
				b.answer(w, "patch", inv)
				return
			}
		}
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
	})
	r.Get("/invoices/{id}/details", func(w http.ResponseWriter, req *http.Request) {
		b.answer(w, "details", b.articles[chi.URLParam(req, "id")])
	})
	r.Get("/suppliers", func(w http.ResponseWriter, req *http.Request) {
		b.answer(w, "suppliers", b.suppliers)
	})
	r.Get("/suppliers/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		for _, s := range b.suppliers {
			if s.ID == id {
				b.answer(w, "supplier", s)
				return
			}
		}
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
	})
	r.Get("/master_articles/{id}", func(w http.ResponseWriter, req *http.Request) {
		b.masterCalls.Add(1)
		master, ok := b.masters[chi.URLParam(req, "id")]
		if !ok {
			http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
			return
		}
		b.answer(w, "master", master)
	})
	r.Get("/variations", func(w http.ResponseWriter, req *http.Request) {
		b.answer(w, "variations", b.variations)
	})
	r.Patch("/articles/{id}", func(w http.ResponseWriter, req *http.Request) {
		var patch map[string]any
		_ = json.NewDecoder(req.Body).Decode(&patch)
		b.mu.Lock()
		b.lastPatch = patch
		b.mu.Unlock()

		article := models.Article{ID: chi.URLParam(req, "id")}
		if v, ok := patch["unit_price"].(float64); ok {
			article.UnitPrice = v
		}
		if v, ok := patch["name"].(string); ok {
			article.Name = v
		}
		b.answer(w, "article", article)
	})
	r.Get("/files/*", func(w http.ResponseWriter, req *http.Request) {
		doc, ok := b.documents[chi.URLParam(req, "*")]
		if !ok {
			http.NotFound(w, req)
			return
		}
		w.Write(doc)
	})

	return r
}

func (b *fakeBackend) fail(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[route] = true
}

func (b *fakeBackend) query(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastQuery[key]
}

func (b *fakeBackend) patch() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPatch
}

func (b *fakeBackend) answer(w http.ResponseWriter, route string, payload any) {
	b.mu.Lock()
	failing := b.failing[route]
	b.mu.Unlock()

	if failing {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (b *fakeBackend) client(t *testing.T) *api.Client {
	t.Helper()

	server := httptest.NewServer(b.router())
	t.Cleanup(server.Close)

	client, err := api.New(server.URL)
	require.NoError(t, err)
	return client
}

func ptr(v float64) *float64 { return &v }
