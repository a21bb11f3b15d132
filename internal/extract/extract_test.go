package extract

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/type/date"
	"google.golang.org/genproto/googleapis/type/money"
	"restodash/internal/reconcile"
)

func moneyEntity(kind string, units int64, nanos int32, conf float32) *documentaipb.Document_Entity {
	return &documentaipb.Document_Entity{
		Type:       kind,
		Confidence: conf,
		NormalizedValue: &documentaipb.Document_Entity_NormalizedValue{
			StructuredValue: &documentaipb.Document_Entity_NormalizedValue_MoneyValue{
				MoneyValue: &money.Money{CurrencyCode: "EUR", Units: units, Nanos: nanos},
			},
		},
	}
}

func TestTotalsFromDocument(t *testing.T) {
	doc := &documentaipb.Document{
		Entities: []*documentaipb.Document_Entity{
			moneyEntity("net_amount", 100, 0, 0.9),
			moneyEntity("total_tax_amount", 5, 500000000, 0.8),
			{Type: "total_amount", MentionText: "105,50 €", Confidence: 0.7},
			{Type: "invoice_id", MentionText: " N°F-2024-12 ", Confidence: 0.95},
			{
				Type: "invoice_date",
				NormalizedValue: &documentaipb.Document_Entity_NormalizedValue{
					StructuredValue: &documentaipb.Document_Entity_NormalizedValue_DateValue{
						DateValue: &date.Date{Year: 2024, Month: 3, Day: 14},
					},
				},
			},
			{Type: "supplier_name", MentionText: "Metro"},
		},
	}

	totals := totalsFromDocument(doc, zerolog.Nop())

	require.NotNil(t, totals.HT)
	require.NotNil(t, totals.TVA)
	require.NotNil(t, totals.TTC)
	assert.Equal(t, 100.0, *totals.HT)
	assert.Equal(t, 5.5, *totals.TVA)
	assert.Equal(t, 105.5, *totals.TTC)
	assert.Equal(t, "F-2024-12", totals.InvoiceNumber)
	assert.Equal(t, "2024-03-14", totals.Date)
	assert.Equal(t, SourceDocumentAI, totals.Source)
	assert.False(t, totals.Empty())
}

func TestTotalsFromDocumentKeepsMostConfident(t *testing.T) {
	doc := &documentaipb.Document{
		Entities: []*documentaipb.Document_Entity{
			moneyEntity("total_amount", 90, 0, 0.4),
			moneyEntity("total_amount", 120, 0, 0.9),
			moneyEntity("total_amount", 80, 0, 0.5),
			{Type: "net_amount", MentionText: "illisible", Confidence: 1},
		},
	}

	totals := totalsFromDocument(doc, zerolog.Nop())

	require.NotNil(t, totals.TTC)
	assert.Equal(t, 120.0, *totals.TTC)
	assert.Nil(t, totals.HT, "unreadable mention text is ignored")
}

func TestValidatePDF(t *testing.T) {
	assert.NoError(t, ValidatePDF("test", []byte("%PDF-1.7")))
	assert.ErrorIs(t, ValidatePDF("test", []byte("PK")), ErrInvalidPDF)
	assert.ErrorIs(t, ValidatePDF("test", make([]byte, MaxDocumentSizeBytes+1)), ErrDocumentTooLarge)
}

func TestNewDocumentAIRequiresConfiguration(t *testing.T) {
	_, err := NewDocumentAI(context.Background(), DocumentAIConfig{ProcessorID: "p"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewDocumentAI(context.Background(), DocumentAIConfig{ProjectID: "p"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	t.Setenv("GOOGLE_CREDENTIALS", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err = NewDocumentAI(context.Background(), DocumentAIConfig{ProjectID: "p", ProcessorID: "x"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestProcessorName(t *testing.T) {
	d := &DocumentAI{config: DocumentAIConfig{ProjectID: "proj", Location: "eu", ProcessorID: "abc"}}
	assert.Equal(t, "projects/proj/locations/eu/processors/abc", d.processorName())

	d.config.ProcessorVersion = "v2"
	assert.Equal(t, "projects/proj/locations/eu/processors/abc/processorVersions/v2", d.processorName())
}

func TestHandleProcessingError(t *testing.T) {
	d := &DocumentAI{config: DocumentAIConfig{ProcessorID: "abc"}}

	tests := map[string]error{
		"rpc error: code = PermissionDenied desc = denied": ErrInvalidCredentials,
		"rpc error: code = NotFound desc = missing":        ErrProcessorNotFound,
		"rpc error: code = InvalidArgument desc = bad":     ErrInvalidPDF,
		"context deadline exceeded":                        context.DeadlineExceeded,
		"boom":                                             ErrProcessingFailed,
	}
	for msg, want := range tests {
		assert.ErrorIs(t, d.handleProcessingError("op", errors.New(msg)), want, msg)
	}
}

type stubExtractor struct {
	totals *Totals
	err    error
	calls  int
}

func (s *stubExtractor) Extract(context.Context, []byte) (*Totals, error) {
	s.calls++
	return s.totals, s.err
}

func TestChain(t *testing.T) {
	ttc := 42.0
	found := &Totals{Amounts: reconcile.Amounts{TTC: &ttc}, Source: "stub"}

	t.Run("falls back after a failure", func(t *testing.T) {
		first := &stubExtractor{err: Wrap("first", ErrQuotaExceeded, "")}
		second := &stubExtractor{totals: found}

		got, err := Chain(first, second).Extract(context.Background(), []byte("%PDF"))
		require.NoError(t, err)
		assert.Same(t, found, got)
		assert.Equal(t, 1, second.calls)
	})

	t.Run("falls back after an empty result", func(t *testing.T) {
		first := &stubExtractor{totals: &Totals{}}
		second := &stubExtractor{totals: found}

		got, err := Chain(first, second).Extract(context.Background(), []byte("%PDF"))
		require.NoError(t, err)
		assert.Same(t, found, got)
	})

	t.Run("stops on an invalid document", func(t *testing.T) {
		first := &stubExtractor{err: Wrap("first", ErrInvalidPDF, "")}
		second := &stubExtractor{totals: found}

		_, err := Chain(first, second).Extract(context.Background(), []byte("nope"))
		assert.ErrorIs(t, err, ErrInvalidPDF)
		assert.Zero(t, second.calls)
	})

	t.Run("reports every failure", func(t *testing.T) {
		first := &stubExtractor{err: Wrap("first", ErrQuotaExceeded, "")}
		second := &stubExtractor{totals: nil}

		_, err := Chain(first, second).Extract(context.Background(), []byte("%PDF"))
		assert.ErrorIs(t, err, ErrQuotaExceeded)
		assert.ErrorIs(t, err, ErrNoAmounts)
	})

	t.Run("needs an extractor", func(t *testing.T) {
		_, err := Chain().Extract(context.Background(), nil)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})
}
