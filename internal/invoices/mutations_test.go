package invoices

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"restodash/internal/validate"
	"restodash/pkg/models"
)

func TestUpdateTotals(t *testing.T) {
	b := scenarioBackend()
	editor := NewEditor(b.client(t))

	invoice, err := editor.UpdateTotals(context.Background(), "inv-2", TotalsInput{
		InvoiceNumber: " N°F-002 ",
		Date:          "15/03/2024",
		HT:            "1 000,50",
		TVA:           "200,10 €",
		TTC:           "1.200,60",
	})
	require.NoError(t, err)

	patch := b.patch()
	assert.Equal(t, 1000.5, patch["total_excl_tax"])
	assert.Equal(t, 200.1, patch["total_tax"])
	assert.Equal(t, 1200.6, patch["total_incl_tax"])
	assert.Equal(t, "F-002", patch["invoice_number"])
	assert.Equal(t, "2024-03-15", patch["date"])

	item := NewListItem(b.invoices[1], "Brasserie B")
	ApplyInvoice(&item, *invoice)
	assert.Equal(t, "1 200,60 €", item.TTC)
	assert.Equal(t, "N°F-002", item.Reference)
}

func TestUpdateTotalsRejectsInvalidInput(t *testing.T) {
	b := scenarioBackend()
	editor := NewEditor(b.client(t))

	tests := []struct {
		name  string
		id    string
		input TotalsInput
		field string
	}{
		{"missing HT", "inv-1", TotalsInput{TVA: "1", TTC: "1"}, "total HT"},
		{"non numeric TTC", "inv-1", TotalsInput{HT: "1", TVA: "1", TTC: "beaucoup"}, "total TTC"},
		{"bad date", "inv-1", TotalsInput{HT: "1", TVA: "0", TTC: "1", Date: "demain"}, "date"},
		{"empty id", "", TotalsInput{HT: "1", TVA: "0", TTC: "1"}, "id"},
		{"temporary id", models.TempID(), TotalsInput{HT: "1", TVA: "0", TTC: "1"}, "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := editor.UpdateTotals(context.Background(), tt.id, tt.input)

			var verr *validate.Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Contains(t, UserMessage(err), tt.field)
		})
	}

	assert.Nil(t, b.patch(), "no request may be sent for invalid input")
}

func TestUpdateTotalsAPIFailure(t *testing.T) {
	b := scenarioBackend()
	b.fail("patch")

	_, err := NewEditor(b.client(t)).UpdateTotals(context.Background(), "inv-1", TotalsInput{HT: "1", TVA: "0", TTC: "1"})
	require.ErrorIs(t, err, ErrUpdateFailed)
	assert.Equal(t, MsgUpdateFailed, UserMessage(err))
}

func TestUpdateArticle(t *testing.T) {
	b := scenarioBackend()
	editor := NewEditor(b.client(t))

	article, err := editor.UpdateArticle(context.Background(), "l1", ArticleInput{Name: " Beurre ", UnitPrice: "4,20"})
	require.NoError(t, err)
	assert.Equal(t, 4.2, article.UnitPrice)
	assert.Equal(t, "Beurre", article.Name)
	assert.Equal(t, map[string]any{"name": "Beurre", "unit_price": 4.2}, b.patch())

	_, err = editor.UpdateArticle(context.Background(), "l1", ArticleInput{})
	var verr *validate.Error
	require.ErrorAs(t, err, &verr)

	_, err = editor.UpdateArticle(context.Background(), "l1", ArticleInput{Quantity: "deux"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "quantité", verr.Field)
}
