// Package ocr reads the text of invoice PDFs with Google Cloud Vision and
// finds the French totals lines in it.
//
// Cloud Vision limits synchronous file annotation to 20MB and 5 pages.
// Credentials come from GOOGLE_CREDENTIALS (inline JSON) or
// GOOGLE_APPLICATION_CREDENTIALS (a file).
package ocr

import (
	"context"
	"time"
)

// Service extracts text from PDF documents.
type Service interface {
	ProcessPDF(ctx context.Context, pdf []byte) (*Result, error)
}

// Result is the text of a document with some metadata.
type Result struct {
	// Text holds every page in reading order.
	Text string `json:"text"`

	PageCount int `json:"page_count"`

	// Confidence is the average page confidence, from 0 to 1.
	Confidence float32 `json:"confidence"`

	LanguageCodes []string `json:"language_codes,omitempty"`

	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}
