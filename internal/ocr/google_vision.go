package ocr

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"restodash/internal/extract"
	"restodash/internal/logger"
)

// MaxPagesSync is the maximum number of pages for synchronous processing.
const MaxPagesSync = 5

// Vision implements Service with Google Cloud Vision document text detection.
type Vision struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewVision creates a Vision client. Without client options, credentials are
// read from the environment.
func NewVision(ctx context.Context, opts ...option.ClientOption) (*Vision, error) {
	const op = "NewVision"

	if len(opts) == 0 {
		switch {
		case os.Getenv("GOOGLE_CREDENTIALS") != "":
			opts = append(opts, option.WithCredentialsJSON([]byte(os.Getenv("GOOGLE_CREDENTIALS"))))
		case os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "":
			opts = append(opts, option.WithCredentialsFile(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")))
		default:
			return nil, wrap(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, wrap(op, err, "failed to create Vision client")
	}

	return &Vision{client: client, log: logger.WithComponent("ocr")}, nil
}

// ProcessPDF extracts the text of every page of a PDF.
func (v *Vision) ProcessPDF(ctx context.Context, pdf []byte) (*Result, error) {
	const op = "Vision.ProcessPDF"
	started := time.Now()

	if err := extract.ValidatePDF(op, pdf); err != nil {
		return nil, err
	}

	resp, err := v.client.BatchAnnotateFiles(ctx, &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  pdf,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	})
	if err != nil {
		return nil, wrap(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.GetResponses()) == 0 {
		return nil, wrap(op, ErrOCRFailed, "no response from Vision API")
	}

	fileResp := resp.GetResponses()[0]
	if fileResp.GetError() != nil {
		return nil, wrap(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", fileResp.GetError().GetMessage()))
	}

	result, err := processVisionResponse(fileResp)
	if err != nil {
		return nil, wrap(op, err, "failed to process Vision API response")
	}

	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(started)

	v.log.Debug().
		Int("pages", result.PageCount).
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("OCR completed")

	return result, nil
}

// Close closes the underlying Vision client.
func (v *Vision) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

func processVisionResponse(fileResp *visionpb.AnnotateFileResponse) (*Result, error) {
	pages := fileResp.GetResponses()
	if len(pages) == 0 {
		return nil, ErrEmptyDocument
	}
	if len(pages) > MaxPagesSync {
		return nil, wrap("processVisionResponse", ErrTooManyPages, fmt.Sprintf("document has %d pages", len(pages)))
	}

	var (
		text            strings.Builder
		confidenceSum   float32
		confidenceCount int
		languages       = map[string]bool{}
	)

	for i, page := range pages {
		if page.GetError() != nil {
			return nil, fmt.Errorf("error processing page %d: %s", i+1, page.GetError().GetMessage())
		}

		annotation := page.GetFullTextAnnotation()
		if annotation == nil {
			continue
		}
		if i > 0 {
			fmt.Fprintf(&text, "\n\n--- Page %d ---\n\n", i+1)
		}
		text.WriteString(annotation.GetText())

		for _, p := range annotation.GetPages() {
			if p.GetConfidence() > 0 {
				confidenceSum += p.GetConfidence()
				confidenceCount++
			}
			for _, lang := range p.GetProperty().GetDetectedLanguages() {
				if lang.GetLanguageCode() != "" {
					languages[lang.GetLanguageCode()] = true
				}
			}
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, ErrEmptyDocument
	}

	result := &Result{Text: text.String(), PageCount: len(pages)}
	if confidenceCount > 0 {
		result.Confidence = confidenceSum / float32(confidenceCount)
	}
	for lang := range languages {
		result.LanguageCodes = append(result.LanguageCodes, lang)
	}
	sort.Strings(result.LanguageCodes)

	return result, nil
}
