// Package extract reads the totals printed on an invoice document.
//
// The primary extractor uses a Google Document AI invoice processor. Any
// other Extractor (such as the OCR based one in internal/ocr) can be chained
// behind it with Chain.
package extract

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"restodash/internal/logger"
	"restodash/internal/reconcile"
)

// MaxDocumentSizeBytes is the maximum document size accepted by the extractors.
const MaxDocumentSizeBytes = 20 * 1024 * 1024

// Totals holds what could be read from a document.
type Totals struct {
	reconcile.Amounts

	InvoiceNumber string `json:"invoice_number,omitempty"`
	// Date is an ISO date (2006-01-02) when known.
	Date string `json:"date,omitempty"`

	// Source names the extractor that produced the totals.
	Source     string             `json:"source"`
	Confidence map[string]float32 `json:"confidence,omitempty"`
}

// Empty reports whether no total was found.
func (t *Totals) Empty() bool {
	return t == nil || (t.HT == nil && t.TVA == nil && t.TTC == nil)
}

// Extractor reads totals from a PDF document.
type Extractor interface {
	Extract(ctx context.Context, pdf []byte) (*Totals, error)
}

type chain struct {
	extractors []Extractor
	log        zerolog.Logger
}

// Chain tries each extractor in turn and returns the first non empty result.
// Invalid documents and cancellation stop the chain.
func Chain(extractors ...Extractor) Extractor {
	return &chain{extractors: extractors, log: logger.WithComponent("extract")}
}

func (c *chain) Extract(ctx context.Context, pdf []byte) (*Totals, error) {
	const op = "Chain.Extract"

	if len(c.extractors) == 0 {
		return nil, Wrap(op, ErrInvalidConfiguration, "no extractor configured")
	}

	var errs []error
	for i, e := range c.extractors {
		totals, err := e.Extract(ctx, pdf)
		if err == nil && !totals.Empty() {
			return totals, nil
		}
		if err == nil {
			err = ErrNoAmounts
		}
		if errors.Is(err, ErrInvalidPDF) || errors.Is(err, ErrDocumentTooLarge) || ctx.Err() != nil {
			return nil, err
		}

		c.log.Warn().
			Err(err).
			Int("extractor", i).
			Msg("Extractor failed, trying next one")
		errs = append(errs, err)
	}
	return nil, Wrap(op, errors.Join(errs...), "all extractors failed")
}
