package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"restodash/internal/extract"
	"restodash/internal/format"
	"restodash/internal/logger"
)

// SourceCompletion tags totals read from OCR text by a language model.
const SourceCompletion = "ocr_completion"

// ErrMissingAPIKey is returned when no OpenAI API key is configured.
var ErrMissingAPIKey = errors.New("missing OpenAI API key")

// maxPromptText bounds the OCR text sent to the model. Totals are printed at
// the end of the document, so the tail is kept.
const maxPromptText = 12000

const completionSystemPrompt = `Tu lis des factures de fournisseurs de restaurants françaises.
À partir du texte OCR fourni, retourne uniquement un objet JSON avec les champs :
  "invoice_number": numéro de facture,
  "invoice_date": date de facture au format AAAA-MM-JJ,
  "total_ht": total hors taxes,
  "total_tva": montant total de TVA,
  "total_ttc": total toutes taxes comprises.
Les montants sont des nombres au format "1234.56". Laisse un champ vide ("")
quand il n'apparaît pas dans le texte. N'invente aucune valeur.`

// CompletionConfig configures the model reading totals from OCR text.
type CompletionConfig struct {
	APIKey      string
	Model       string
	BaseURL     string // optional, e.g. a proxy or a test server
	MaxRetries  int
	Temperature float32
}

// Completer asks a chat model for the totals that the text parser missed.
type Completer struct {
	client *openai.Client
	config CompletionConfig
	log    zerolog.Logger
}

type completionResponse struct {
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`
	TotalHT       string `json:"total_ht"`
	TotalTVA      string `json:"total_tva"`
	TotalTTC      string `json:"total_ttc"`
}

// NewCompleter creates a completer. Model defaults to gpt-4o-mini and
// MaxRetries to 3.
func NewCompleter(config CompletionConfig) (*Completer, error) {
	const op = "NewCompleter"

	if config.APIKey == "" {
		return nil, wrap(op, ErrMissingAPIKey, "")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Completer{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		log:    logger.WithComponent("ocr-completion"),
	}, nil
}

// Complete reads the totals of an OCR text.
func (c *Completer) Complete(ctx context.Context, text string) (*extract.Totals, error) {
	const op = "Completer.Complete"

	if strings.TrimSpace(text) == "" {
		return nil, wrap(op, ErrEmptyDocument, "")
	}
	if len(text) > maxPromptText {
		text = text[len(text)-maxPromptText:]
	}

	c.log.Debug().
		Int("text_length", len(text)).
		Str("model", c.config.Model).
		Msg("Sending completion request")

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.config.Model,
			Temperature: c.config.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: completionSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			MaxTokens: 300,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s: %w", op, ctx.Err())
			}
			lastErr = err
			c.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", c.config.MaxRetries).
				Msg("Completion request failed, retrying")
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("no choices in completion response")
			continue
		}

		var parsed completionResponse
		content := resp.Choices[0].Message.Content
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			lastErr = fmt.Errorf("failed to parse completion JSON: %w", err)
			c.log.Warn().
				Err(err).
				Str("response", content).
				Int("attempt", attempt).
				Msg("Failed to parse completion response, retrying")
			continue
		}

		totals := parsed.totals()
		if totals.Empty() {
			return nil, extract.Wrap(op, extract.ErrNoAmounts, "model found no totals")
		}
		c.log.Info().
			Int("attempt", attempt).
			Bool("has_ht", totals.HT != nil).
			Bool("has_tva", totals.TVA != nil).
			Bool("has_ttc", totals.TTC != nil).
			Msg("Totals read by completion")
		return totals, nil
	}

	return nil, wrap(op, ErrOCRFailed, fmt.Sprintf("all %d completion attempts failed, last error: %v", c.config.MaxRetries, lastErr))
}

func (r completionResponse) totals() *extract.Totals {
	totals := &extract.Totals{
		InvoiceNumber: strings.TrimSpace(r.InvoiceNumber),
		Source:        SourceCompletion,
	}
	totals.HT = amount(r.TotalHT)
	totals.TVA = amount(r.TotalTVA)
	totals.TTC = amount(r.TotalTTC)
	if date, ok := format.ParseDate(r.InvoiceDate); ok {
		totals.Date = date.Format("2006-01-02")
	}
	return totals
}

func amount(s string) *float64 {
	if !format.IsNumeric(s) {
		return nil
	}
	v := format.ParseNumber(s)
	return &v
}
