package api

import (
	"context"
	"net/http"
	"net/url"

	"restodash/pkg/models"
)

// SupplierPatch holds the editable fields of a supplier.
type SupplierPatch struct {
	Name             *string `json:"name,omitempty"`
	Label            *string `json:"label,omitempty"`
	ActiveAnalysis   *bool   `json:"active_analysis,omitempty"`
	MarketSupplierID *string `json:"market_supplier_id,omitempty"`
}

// MergeRequestInput creates a supplier merge request.
type MergeRequestInput struct {
	EstablishmentID   string   `json:"establishment_id"`
	SourceSupplierIDs []string `json:"source_supplier_ids"`
	TargetSupplierID  string   `json:"target_supplier_id"`
}

// ListSuppliers returns the suppliers of an establishment.
func (c *Client) ListSuppliers(ctx context.Context, opts ListOptions) ([]models.Supplier, error) {
	var suppliers []models.Supplier
	if err := c.getJSON(ctx, "ListSuppliers", "/suppliers", opts.values(), &suppliers); err != nil {
		return nil, err
	}
	return suppliers, nil
}

// GetSupplier returns a single supplier.
func (c *Client) GetSupplier(ctx context.Context, id string) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := c.getJSON(ctx, "GetSupplier", "/suppliers/"+url.PathEscape(id), nil, &supplier); err != nil {
		return nil, err
	}
	return &supplier, nil
}

// UpdateSupplier patches a supplier and returns the updated record.
func (c *Client) UpdateSupplier(ctx context.Context, id string, patch SupplierPatch) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := c.sendJSON(ctx, "UpdateSupplier", http.MethodPatch, "/suppliers/"+url.PathEscape(id), patch, &supplier); err != nil {
		return nil, err
	}
	return &supplier, nil
}

// ListMarketSuppliers returns the mercuriale supplier catalogue.
func (c *Client) ListMarketSuppliers(ctx context.Context, opts ListOptions) ([]models.MarketSupplier, error) {
	var suppliers []models.MarketSupplier
	if err := c.getJSON(ctx, "ListMarketSuppliers", "/market_suppliers", opts.values(), &suppliers); err != nil {
		return nil, err
	}
	return suppliers, nil
}

// CreateMergeRequest files a request to merge suppliers.
func (c *Client) CreateMergeRequest(ctx context.Context, input MergeRequestInput) (*models.MergeRequest, error) {
	var request models.MergeRequest
	if err := c.sendJSON(ctx, "CreateMergeRequest", http.MethodPost, "/supplier_merge_request", input, &request); err != nil {
		return nil, err
	}
	return &request, nil
}

// ListMergeRequests returns the merge requests of an establishment.
func (c *Client) ListMergeRequests(ctx context.Context, opts ListOptions) ([]models.MergeRequest, error) {
	var requests []models.MergeRequest
	if err := c.getJSON(ctx, "ListMergeRequests", "/supplier_merge_request", opts.values(), &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// UpdateMergeRequestStatus accepts or refuses a merge request.
func (c *Client) UpdateMergeRequestStatus(ctx context.Context, id, status string) (*models.MergeRequest, error) {
	var request models.MergeRequest
	payload := map[string]string{"status": status}
	path := "/supplier_merge_request/" + url.PathEscape(id)
	if err := c.sendJSON(ctx, "UpdateMergeRequestStatus", http.MethodPatch, path, payload, &request); err != nil {
		return nil, err
	}
	return &request, nil
}
