package extract

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPDF           = errors.New("invalid or corrupted PDF document")
	ErrDocumentTooLarge     = errors.New("document exceeds the maximum size (20MB)")
	ErrProcessingFailed     = errors.New("document processing failed")
	ErrInvalidConfiguration = errors.New("invalid document extraction configuration")
	ErrMissingCredentials   = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")
	ErrInvalidCredentials   = errors.New("insufficient permissions for document extraction")
	ErrQuotaExceeded        = errors.New("document extraction quota exceeded")
	ErrProcessorNotFound    = errors.New("document processor not found")
	ErrContextCanceled      = errors.New("document extraction was canceled")

	// ErrNoAmounts is returned when a document yields none of the three totals.
	ErrNoAmounts = errors.New("no totals found in document")
)

// Error wraps an extraction failure with the operation and some details.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("extract: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("extract: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// Wrap returns err as an *Error unless it already is one.
func Wrap(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var extractErr *Error
	if errors.As(err, &extractErr) {
		return err
	}
	return &Error{Op: op, Err: err, Details: details}
}

// ValidatePDF checks the size limit and the PDF header of a document.
func ValidatePDF(op string, data []byte) error {
	if len(data) > MaxDocumentSizeBytes {
		return Wrap(op, ErrDocumentTooLarge, fmt.Sprintf("file size: %d bytes", len(data)))
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return Wrap(op, ErrInvalidPDF, "missing PDF header")
	}
	return nil
}
