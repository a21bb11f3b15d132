package invoices

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"restodash/internal/api"
	"restodash/internal/extract"
	"restodash/internal/reconcile"
	"restodash/internal/storage"
	"restodash/pkg/models"
)

type fixedExtractor struct {
	totals *extract.Totals
	err    error
	got    []byte
}

func (f *fixedExtractor) Extract(_ context.Context, pdf []byte) (*extract.Totals, error) {
	f.got = pdf
	return f.totals, f.err
}

func checkBackend(t *testing.T) (*fakeBackend, *api.Client, storage.Resolver) {
	t.Helper()

	b := newFakeBackend()
	b.invoices = []models.Invoice{
		{ID: "inv-1", InvoiceNumber: "F-1", TotalExclTax: ptr(100), TotalTax: ptr(5.5), TotalInclTax: ptr(105.5), FilePath: "est-1/inv-1.pdf"},
		{ID: "inv-2", TotalExclTax: ptr(100), TotalTax: ptr(20), TotalInclTax: ptr(130)},
	}
	b.articles["inv-1"] = []models.Article{{ID: "l1", Total: 60}, {ID: "l2", Total: 40}}
	b.documents["est-1/inv-1.pdf"] = []byte("%PDF-1.4 facture")

	server := httptest.NewServer(b.router())
	t.Cleanup(server.Close)

	client, err := api.New(server.URL)
	require.NoError(t, err)
	resolver, err := storage.NewPublicResolver(server.URL + "/files")
	require.NoError(t, err)
	return b, client, resolver
}

func TestCheckComparesDocument(t *testing.T) {
	_, client, resolver := checkBackend(t)
	extractor := &fixedExtractor{totals: &extract.Totals{
		Amounts: reconcile.Amounts{HT: ptr(100), TVA: ptr(5.5), TTC: ptr(125)},
		Source:  "stub",
	}}

	report, err := NewVerifier(client, resolver, extractor).Check(context.Background(), "inv-1")
	require.NoError(t, err)

	assert.Equal(t, "%PDF-1.4 facture", string(extractor.got))
	assert.Equal(t, "N°F-1", report.Reference)
	assert.False(t, report.Arithmetic.HasDiscrepancy)
	assert.False(t, report.Lines.HasDiscrepancy)
	require.NotNil(t, report.Document)
	assert.True(t, report.Document.HasDiscrepancy)
	assert.True(t, report.HasDiscrepancy())
	assert.Len(t, report.Warnings(), 1)
	assert.Empty(t, report.DocumentError)
}

func TestCheckWithoutDocument(t *testing.T) {
	_, client, resolver := checkBackend(t)
	extractor := &fixedExtractor{}

	report, err := NewVerifier(client, resolver, extractor).Check(context.Background(), "inv-2")
	require.NoError(t, err)

	assert.True(t, report.Arithmetic.HasDiscrepancy, "100 + 20 != 130")
	assert.Nil(t, report.Document)
	assert.Equal(t, "aucun document associé", report.DocumentError)
	assert.Nil(t, extractor.got)
}

func TestCheckDocumentFailures(t *testing.T) {
	_, client, resolver := checkBackend(t)

	report, err := NewVerifier(client, nil, nil).Check(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "lecture des documents non configurée", report.DocumentError)

	extractor := &fixedExtractor{err: extract.Wrap("x", extract.ErrNoAmounts, "")}
	report, err = NewVerifier(client, resolver, extractor).Check(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "aucun total trouvé dans le document", report.DocumentError)
	assert.False(t, report.HasDiscrepancy())
}

func TestCheckInvoiceErrors(t *testing.T) {
	b, client, resolver := checkBackend(t)
	verifier := NewVerifier(client, resolver, nil)

	_, err := verifier.Check(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = verifier.Check(context.Background(), models.TempID())
	assert.Equal(t, "Champ « id » : élément pas encore enregistré.", UserMessage(err))

	b.fail("details")
	_, err = verifier.Check(context.Background(), "inv-1")
	assert.ErrorIs(t, err, ErrDetailFailed)
}
