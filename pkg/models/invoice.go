package models

import (
	"fmt"
	"strings"
	"time"
)

// Invoice mirrors an invoice record of the backend API.
type Invoice struct {
	// Core identifiers
	ID              string `json:"id"`
	EstablishmentID string `json:"establishment_id"`
	SupplierID      string `json:"supplier_id"`
	InvoiceNumber   string `json:"invoice_number"` // as printed on the document, may be empty

	// Date is sent as an ISO date (or timestamp) string and may be empty
	Date string `json:"date"`

	// Totals, nil while the document has not been reviewed
	TotalExclTax *float64 `json:"total_excl_tax"` // HT
	TotalTax     *float64 `json:"total_tax"`      // TVA
	TotalInclTax *float64 `json:"total_incl_tax"` // TTC

	// FilePath is the storage path of the source document
	FilePath string `json:"file_storage_path"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Article is a line of an invoice.
type Article struct {
	ID              string   `json:"id"`
	InvoiceID       string   `json:"invoice_id"`
	MasterArticleID string   `json:"master_article_id"`
	Name            string   `json:"name"`
	Unit            string   `json:"unit"`
	Quantity        float64  `json:"quantity"`
	UnitPrice       float64  `json:"unit_price"`
	Total           float64  `json:"total"`
	PriceDelta      *float64 `json:"price_delta"` // percentage against the previous purchase
	Duties          *float64 `json:"duties_and_taxes"`
	Discount        *float64 `json:"discount"`
}

// MasterArticle is the canonical product an article line is matched to.
type MasterArticle struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	SupplierID string `json:"supplier_id"`
}

// Variation is a recorded unit price change of a master article.
type Variation struct {
	ID              string  `json:"id"`
	MasterArticleID string  `json:"master_article_id"`
	Date            string  `json:"date"`
	OldUnitPrice    float64 `json:"old_unit_price"`
	NewUnitPrice    float64 `json:"new_unit_price"`
	Percentage      float64 `json:"percentage"`
}

// PricePoint is one sample of an article price history.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// EmailAlias is the mailbox invoices can be forwarded to for ingestion.
type EmailAlias struct {
	ID              string `json:"id"`
	EstablishmentID string `json:"establishment_id"`
	Alias           string `json:"email_alias"`
}

// tempIDPrefix marks identifiers created client side.
const tempIDPrefix = "tmp-"

// Optimistic rows (a duplicated recipe before the API answers) are created by
// the front end, never by this module. Their ids reach us only by mistake, so
// every mutation rejects them with IsTempID before calling the API.

// TempID returns an id in the front end's temporary format. Only tests and
// tools that replay client input need it.
func TempID() string {
	return fmt.Sprintf("%s%d", tempIDPrefix, time.Now().UnixNano())
}

// IsTempID reports whether id was created by TempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}
