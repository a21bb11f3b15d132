package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
	"restodash/internal/format"
	"restodash/internal/logger"
)

// SourceDocumentAI tags totals read by Document AI.
const SourceDocumentAI = "document_ai"

// DocumentAIConfig locates the invoice processor.
type DocumentAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Timeout          time.Duration
}

// DocumentAI extracts totals with a Document AI invoice processor.
type DocumentAI struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAI creates an extractor for the configured processor. Without
// client options, credentials come from GOOGLE_CREDENTIALS (inline JSON) or
// GOOGLE_APPLICATION_CREDENTIALS (a file).
func NewDocumentAI(ctx context.Context, config DocumentAIConfig, opts ...option.ClientOption) (*DocumentAI, error) {
	const op = "NewDocumentAI"

	if config.ProjectID == "" {
		return nil, Wrap(op, ErrInvalidConfiguration, "Google Cloud project is required")
	}
	if config.ProcessorID == "" {
		return nil, Wrap(op, ErrInvalidConfiguration, "Document AI processor id is required")
	}
	if config.Location == "" {
		config.Location = "eu"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	if len(opts) == 0 {
		if config.Location != "us" {
			opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)))
		}
		switch {
		case os.Getenv("GOOGLE_CREDENTIALS") != "":
			opts = append(opts, option.WithCredentialsJSON([]byte(os.Getenv("GOOGLE_CREDENTIALS"))))
		case os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "":
			opts = append(opts, option.WithCredentialsFile(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")))
		default:
			return nil, Wrap(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, Wrap(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAI{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}, nil
}

// Extract sends the document to the processor and reads the totals entities.
func (d *DocumentAI) Extract(ctx context.Context, pdf []byte) (*Totals, error) {
	const op = "DocumentAI.Extract"

	if err := ValidatePDF(op, pdf); err != nil {
		return nil, err
	}

	processCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	started := time.Now()
	resp, err := d.client.ProcessDocument(processCtx, &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pdf,
				MimeType: "application/pdf",
			},
		},
	})
	if err != nil {
		return nil, d.handleProcessingError(op, err)
	}
	if resp.GetDocument() == nil {
		return nil, Wrap(op, ErrProcessingFailed, "no document in response")
	}

	totals := totalsFromDocument(resp.GetDocument(), d.log)
	d.log.Info().
		Dur("duration", time.Since(started)).
		Str("invoice_number", totals.InvoiceNumber).
		Bool("has_ht", totals.HT != nil).
		Bool("has_tva", totals.TVA != nil).
		Bool("has_ttc", totals.TTC != nil).
		Msg("Document AI extraction completed")

	if totals.Empty() {
		return nil, Wrap(op, ErrNoAmounts, "processor returned no amount entity")
	}
	return totals, nil
}

// Close releases the underlying client.
func (d *DocumentAI) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

func (d *DocumentAI) processorName() string {
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.config.ProjectID, d.config.Location, d.config.ProcessorID)
	if d.config.ProcessorVersion != "" {
		name += "/processorVersions/" + d.config.ProcessorVersion
	}
	return name
}

func (d *DocumentAI) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED") || strings.Contains(errStr, "PermissionDenied"):
		return Wrap(op, ErrInvalidCredentials, errStr)
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "ResourceExhausted"):
		return Wrap(op, ErrQuotaExceeded, errStr)
	case strings.Contains(errStr, "NOT_FOUND") || strings.Contains(errStr, "NotFound"):
		return Wrap(op, ErrProcessorNotFound, fmt.Sprintf("processor not found: %s", d.config.ProcessorID))
	case strings.Contains(errStr, "INVALID_ARGUMENT") || strings.Contains(errStr, "InvalidArgument"):
		return Wrap(op, ErrInvalidPDF, "document format not supported or corrupted")
	case strings.Contains(errStr, "DeadlineExceeded") || strings.Contains(errStr, "context deadline exceeded"):
		return Wrap(op, context.DeadlineExceeded, "processing timeout")
	case strings.Contains(errStr, "Canceled") || strings.Contains(errStr, "context canceled"):
		return Wrap(op, ErrContextCanceled, "processing was canceled")
	default:
		return Wrap(op, ErrProcessingFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// totalsFromDocument reads the invoice processor entities. When an entity
// appears several times the most confident one wins.
func totalsFromDocument(doc *documentaipb.Document, log zerolog.Logger) *Totals {
	totals := &Totals{Source: SourceDocumentAI, Confidence: map[string]float32{}}

	for _, entity := range doc.GetEntities() {
		kind := entity.GetType()
		conf := entity.GetConfidence()
		if prev, seen := totals.Confidence[kind]; seen && prev >= conf {
			continue
		}

		log.Debug().
			Str("entity_type", kind).
			Str("value", strings.TrimSpace(entity.GetMentionText())).
			Float32("confidence", conf).
			Msg("Processing Document AI entity")

		switch kind {
		case "net_amount", "subtotal_amount":
			if v, ok := moneyValue(entity); ok {
				totals.HT = &v
				totals.Confidence[kind] = conf
			}
		case "total_tax_amount", "vat_amount":
			if v, ok := moneyValue(entity); ok {
				totals.TVA = &v
				totals.Confidence[kind] = conf
			}
		case "total_amount", "gross_amount":
			if v, ok := moneyValue(entity); ok {
				totals.TTC = &v
				totals.Confidence[kind] = conf
			}
		case "invoice_id", "invoice_number":
			if v := strings.TrimSpace(entity.GetMentionText()); v != "" {
				totals.InvoiceNumber = format.NormalizeInvoiceNumber(v)
				totals.Confidence[kind] = conf
			}
		case "invoice_date":
			if v, ok := dateValue(entity); ok {
				totals.Date = v
				totals.Confidence[kind] = conf
			}
		}
	}
	return totals
}

// moneyValue prefers the normalized money value and falls back to the
// mention text read as a French number.
func moneyValue(entity *documentaipb.Document_Entity) (float64, bool) {
	if m := entity.GetNormalizedValue().GetMoneyValue(); m != nil {
		amount := decimal.New(m.GetUnits(), 0).Add(decimal.New(int64(m.GetNanos()), -9))
		v, _ := amount.Round(2).Float64()
		return v, true
	}

	text := strings.TrimSpace(entity.GetMentionText())
	if !format.IsNumeric(text) {
		return 0, false
	}
	return format.ParseNumber(text), true
}

func dateValue(entity *documentaipb.Document_Entity) (string, bool) {
	if d := entity.GetNormalizedValue().GetDateValue(); d != nil && d.GetYear() > 0 {
		t := time.Date(int(d.GetYear()), time.Month(d.GetMonth()), int(d.GetDay()), 0, 0, 0, 0, time.UTC)
		return t.Format(time.DateOnly), true
	}
	if t, ok := format.ParseDate(strings.TrimSpace(entity.GetMentionText())); ok {
		return t.Format(time.DateOnly), true
	}
	return "", false
}
