package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"restodash/pkg/models"
)

// InvoicePatch holds the editable totals of an invoice. Nil fields are not sent.
type InvoicePatch struct {
	InvoiceNumber *string  `json:"invoice_number,omitempty"`
	Date          *string  `json:"date,omitempty"`
	TotalExclTax  *float64 `json:"total_excl_tax,omitempty"`
	TotalTax      *float64 `json:"total_tax,omitempty"`
	TotalInclTax  *float64 `json:"total_incl_tax,omitempty"`
}

// ExportRequest asks the backend to build an invoice archive.
type ExportRequest struct {
	EstablishmentID string   `json:"establishment_id"`
	InvoiceIDs      []string `json:"invoice_ids"`
}

// ListInvoices returns the invoices of an establishment.
func (c *Client) ListInvoices(ctx context.Context, opts ListOptions) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := c.getJSON(ctx, "ListInvoices", "/invoices", opts.values(), &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// GetInvoice returns a single invoice.
func (c *Client) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := c.getJSON(ctx, "GetInvoice", "/invoices/"+url.PathEscape(id), nil, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListInvoiceDetails returns the article lines of an invoice.
func (c *Client) ListInvoiceDetails(ctx context.Context, invoiceID string) ([]models.Article, error) {
	var articles []models.Article
	path := fmt.Sprintf("/invoices/%s/details", url.PathEscape(invoiceID))
	if err := c.getJSON(ctx, "ListInvoiceDetails", path, nil, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// UpdateInvoice patches an invoice and returns the updated record.
func (c *Client) UpdateInvoice(ctx context.Context, id string, patch InvoicePatch) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := c.sendJSON(ctx, "UpdateInvoice", http.MethodPatch, "/invoices/"+url.PathEscape(id), patch, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ExportInvoices asks the backend to build a zip archive of the given
// invoices and returns the archive bytes.
func (c *Client) ExportInvoices(ctx context.Context, req ExportRequest) ([]byte, error) {
	const op = "ExportInvoices"
	const path = "/invoices/export"

	body, err := c.sendRaw(ctx, op, http.MethodPost, path, req)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// sendRaw issues a JSON request and returns the raw answer body.
func (c *Client) sendRaw(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Op: op, Method: method, Path: path, Err: err, Details: "failed to encode request"}
	}
	return c.do(ctx, op, method, path, nil, encoded)
}
