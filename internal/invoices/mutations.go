package invoices

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"restodash/internal/api"
	"restodash/internal/format"
	"restodash/internal/logger"
	"restodash/internal/validate"
	"restodash/pkg/models"
)

// MutationAPI is the part of the API client the editor needs.
type MutationAPI interface {
	UpdateInvoice(ctx context.Context, id string, patch api.InvoicePatch) (*models.Invoice, error)
	UpdateArticle(ctx context.Context, id string, patch api.ArticlePatch) (*models.Article, error)
}

// TotalsInput is the totals form of an invoice as typed by the user, e.g.
// "1 234,56". Number and date are optional.
type TotalsInput struct {
	InvoiceNumber string `field:"numéro"`
	Date          string `field:"date"`
	HT            string `field:"total HT" validate:"required,frnumber"`
	TVA           string `field:"TVA" validate:"required,frnumber"`
	TTC           string `field:"total TTC" validate:"required,frnumber"`
}

// ArticleInput is the edit form of an invoice line. Empty fields are left
// unchanged.
type ArticleInput struct {
	Name      string `field:"nom"`
	Unit      string `field:"unité"`
	Quantity  string `field:"quantité" validate:"omitempty,frnumber"`
	UnitPrice string `field:"prix unitaire" validate:"omitempty,frnumber"`
	Total     string `field:"total" validate:"omitempty,frnumber"`
	Duties    string `field:"droits et taxes" validate:"omitempty,frnumber"`
	Discount  string `field:"remise" validate:"omitempty,frnumber"`
}

// Editor issues the invoice and article edits.
type Editor struct {
	api MutationAPI
	log zerolog.Logger
}

// NewEditor creates an editor.
func NewEditor(client MutationAPI) *Editor {
	return &Editor{api: client, log: logger.WithComponent("invoice-editor")}
}

// UpdateTotals validates the form, then patches the invoice and returns the
// updated record. Nothing is sent when validation fails.
func (e *Editor) UpdateTotals(ctx context.Context, id string, in TotalsInput) (*models.Invoice, error) {
	const op = "invoices.UpdateTotals"

	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	ht := format.ParseNumber(in.HT)
	tva := format.ParseNumber(in.TVA)
	ttc := format.ParseNumber(in.TTC)
	patch := api.InvoicePatch{
		TotalExclTax: &ht,
		TotalTax:     &tva,
		TotalInclTax: &ttc,
	}

	if number := format.NormalizeInvoiceNumber(in.InvoiceNumber); number != "" {
		patch.InvoiceNumber = &number
	}
	if strings.TrimSpace(in.Date) != "" {
		date, ok := format.ParseDate(in.Date)
		if !ok {
			return nil, &validate.Error{Field: "date", Value: in.Date, Message: "date invalide, format attendu JJ/MM/AAAA"}
		}
		iso := date.Format("2006-01-02")
		patch.Date = &iso
	}

	invoice, err := e.api.UpdateInvoice(ctx, id, patch)
	if err != nil {
		e.log.Error().Err(err).Str("invoice_id", id).Msg("Failed to update invoice totals")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUpdateFailed, err)
	}

	e.log.Info().
		Str("invoice_id", id).
		Float64("ht", ht).
		Float64("tva", tva).
		Float64("ttc", ttc).
		Msg("Invoice totals updated")

	return invoice, nil
}

// UpdateArticle validates the form, then patches the invoice line.
func (e *Editor) UpdateArticle(ctx context.Context, id string, in ArticleInput) (*models.Article, error) {
	const op = "invoices.UpdateArticle"

	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	patch := api.ArticlePatch{
		Name:      optionalString(in.Name),
		Unit:      optionalString(in.Unit),
		Quantity:  optionalNumber(in.Quantity),
		UnitPrice: optionalNumber(in.UnitPrice),
		Total:     optionalNumber(in.Total),
		Duties:    optionalNumber(in.Duties),
		Discount:  optionalNumber(in.Discount),
	}
	if patch == (api.ArticlePatch{}) {
		return nil, &validate.Error{Field: "article", Message: "aucune modification à enregistrer"}
	}

	article, err := e.api.UpdateArticle(ctx, id, patch)
	if err != nil {
		e.log.Error().Err(err).Str("article_id", id).Msg("Failed to update article")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUpdateFailed, err)
	}

	e.log.Info().Str("article_id", id).Msg("Article updated")
	return article, nil
}

// checkID rejects empty and client-side identifiers.
func checkID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return &validate.Error{Field: "id", Value: id, Message: "ce champ est obligatoire"}
	case models.IsTempID(id):
		return &validate.Error{Field: "id", Value: id, Message: "élément pas encore enregistré"}
	}
	return nil
}

func optionalString(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func optionalNumber(s string) *float64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	v := format.ParseNumber(s)
	return &v
}
