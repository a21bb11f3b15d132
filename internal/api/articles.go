package api

import (
	"context"
	"net/http"
	"net/url"

	"restodash/pkg/models"
)

// ArticlePatch holds the editable fields of an invoice line.
type ArticlePatch struct {
	Name      *string  `json:"name,omitempty"`
	Unit      *string  `json:"unit,omitempty"`
	Quantity  *float64 `json:"quantity,omitempty"`
	UnitPrice *float64 `json:"unit_price,omitempty"`
	Total     *float64 `json:"total,omitempty"`
	Duties    *float64 `json:"duties_and_taxes,omitempty"`
	Discount  *float64 `json:"discount,omitempty"`
}

// UpdateArticle patches an invoice line and returns the updated record.
func (c *Client) UpdateArticle(ctx context.Context, id string, patch ArticlePatch) (*models.Article, error) {
	var article models.Article
	if err := c.sendJSON(ctx, "UpdateArticle", http.MethodPatch, "/articles/"+url.PathEscape(id), patch, &article); err != nil {
		return nil, err
	}
	return &article, nil
}

// GetMasterArticle returns a canonical product record.
func (c *Client) GetMasterArticle(ctx context.Context, id string) (*models.MasterArticle, error) {
	var master models.MasterArticle
	if err := c.getJSON(ctx, "GetMasterArticle", "/master_articles/"+url.PathEscape(id), nil, &master); err != nil {
		return nil, err
	}
	return &master, nil
}

// ListVariations returns the recorded price variations of an establishment.
func (c *Client) ListVariations(ctx context.Context, opts ListOptions) ([]models.Variation, error) {
	var variations []models.Variation
	if err := c.getJSON(ctx, "ListVariations", "/variations", opts.values(), &variations); err != nil {
		return nil, err
	}
	return variations, nil
}

// ListEmailAliases returns the ingestion mailboxes of an establishment.
func (c *Client) ListEmailAliases(ctx context.Context, opts ListOptions) ([]models.EmailAlias, error) {
	var aliases []models.EmailAlias
	if err := c.getJSON(ctx, "ListEmailAliases", "/establishment_email_alias", opts.values(), &aliases); err != nil {
		return nil, err
	}
	return aliases, nil
}
