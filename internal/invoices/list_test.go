package invoices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"restodash/pkg/models"
)

func scenarioBackend() *fakeBackend {
	b := newFakeBackend()
	b.suppliers = []models.Supplier{
		{ID: "sup-a", Name: "Maison A"},
		{ID: "sup-b", Name: "Brasserie B"},
	}
	b.invoices = []models.Invoice{
		{ID: "inv-1", SupplierID: "sup-a", InvoiceNumber: "F-001", Date: "2024-03-01", TotalInclTax: ptr(100)},
		{ID: "inv-2", SupplierID: "sup-b", InvoiceNumber: "", Date: "2024-03-15", TotalInclTax: ptr(200)},
		{ID: "inv-3", SupplierID: "sup-a", InvoiceNumber: "N°F-003", Date: "2024-04-02", TotalInclTax: ptr(300)},
	}
	b.articles["inv-1"] = []models.Article{{ID: "a1"}, {ID: "a2"}}
	b.articles["inv-3"] = []models.Article{{ID: "a3"}}
	return b
}

func TestLoadJoinsInvoicesSuppliersAndCounts(t *testing.T) {
	b := scenarioBackend()
	lister := NewLister(b.client(t), 2)

	result, err := lister.Load(context.Background(), Query{EstablishmentID: "est-1"})
	require.NoError(t, err)
	require.Len(t, result.Items, 3)

	// most recent first
	assert.Equal(t, []string{"inv-3", "inv-2", "inv-1"}, ids(result.Items))

	first := result.Items[0]
	assert.Equal(t, "N°F-003", first.Reference)
	assert.Equal(t, "F-003", first.InvoiceNumber)
	assert.Equal(t, "Maison A", first.Supplier)
	assert.Equal(t, "02/04/2024", first.Date)
	assert.Equal(t, "300,00 €", first.TTC)
	assert.Equal(t, "--", first.HT)
	assert.Equal(t, 1, first.ArticleCount)

	assert.Equal(t, "#inv-2", result.Items[1].Reference)
	assert.Equal(t, 0, result.Items[1].ArticleCount)
	assert.Equal(t, 2, result.Items[2].ArticleCount)

	assert.Equal(t, []SupplierOption{
		{Value: "sup-b", Label: "Brasserie B"},
		{Value: "sup-a", Label: "Maison A"},
	}, result.Suppliers)

	assert.Equal(t, "est-1", b.query("establishment_id"))
}

func TestScenarioFilterSupplierTotals(t *testing.T) {
	lister := NewLister(scenarioBackend().client(t), 4)

	result, err := lister.Load(context.Background(), Query{EstablishmentID: "est-1"})
	require.NoError(t, err)

	rows := Filter(result.Items, time.Time{}, time.Time{}, []string{"sup-a"})
	require.Len(t, rows, 2)
	assert.Equal(t, "400,00 €", Totals(rows).TTC)
	assert.Equal(t, 2, Totals(rows).Count)
}

func TestLoadAppliesDateRange(t *testing.T) {
	b := scenarioBackend()
	lister := NewLister(b.client(t), 4)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	result, err := lister.Load(context.Background(), Query{EstablishmentID: "est-1", From: from, To: to})
	require.NoError(t, err)

	assert.Equal(t, []string{"inv-2", "inv-1"}, ids(result.Items))
	assert.Equal(t, "2024-03-01", b.query("date_from"))
	assert.Equal(t, "2024-03-31", b.query("date_to"))
}

func TestLoadUnknownSupplier(t *testing.T) {
	b := scenarioBackend()
	b.suppliers = b.suppliers[:1]

	result, err := NewLister(b.client(t), 4).Load(context.Background(), Query{EstablishmentID: "est-1"})
	require.NoError(t, err)
	assert.Equal(t, UnknownSupplier, result.Items[1].Supplier)
}

func TestLoadFailureClearsEverything(t *testing.T) {
	for _, route := range []string{"invoices", "suppliers", "details"} {
		t.Run(route, func(t *testing.T) {
			b := scenarioBackend()
			b.fail(route)

			result, err := NewLister(b.client(t), 4).Load(context.Background(), Query{EstablishmentID: "est-1"})
			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrLoadFailed))
			assert.Equal(t, MsgLoadFailed, UserMessage(err))
		})
	}
}

func TestStoreRefreshAndApply(t *testing.T) {
	b := scenarioBackend()
	store := NewStore(NewLister(b.client(t), 4), Query{EstablishmentID: "est-1"})

	require.NoError(t, store.Refresh(context.Background()))
	state := store.Snapshot()
	assert.Len(t, state.Items, 3)
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)

	updated := b.invoices[1]
	updated.TotalInclTax = ptr(250)
	updated.InvoiceNumber = "F-002"
	row, ok := store.Apply(updated)
	assert.True(t, ok)
	assert.Equal(t, "Brasserie B", row.Supplier)
	_, ok = store.Apply(models.Invoice{ID: "missing"})
	assert.False(t, ok)

	state = store.Snapshot()
	assert.Equal(t, "250,00 €", state.Items[1].TTC)
	assert.Equal(t, "N°F-002", state.Items[1].Reference)
	assert.Equal(t, "Brasserie B", state.Items[1].Supplier)

	b.fail("invoices")
	err := store.Refresh(context.Background())
	require.Error(t, err)

	state = store.Snapshot()
	assert.Empty(t, state.Items)
	assert.Empty(t, state.Suppliers)
	assert.ErrorIs(t, state.Err, ErrLoadFailed)
}

func ids(items []ListItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}
