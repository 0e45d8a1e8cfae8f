package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"paylink/internal/config"
	"paylink/internal/logger"
	"paylink/internal/ocr"
	"paylink/pkg/models"
)

// ChatCompleter is the part of the OpenAI client the extractor uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures the OpenAI backend
type OpenAIConfig struct {
	Model       string  // gpt-4o-mini, gpt-4o
	MaxRetries  int     // chat completion attempts
	Temperature float32 // chat temperature
}

// OpenAIExtractor OCRs PDFs with Cloud Vision and asks an OpenAI chat model
// to structure the text.
type OpenAIExtractor struct {
	client ChatCompleter
	ocr    ocr.OCRService
	config OpenAIConfig
	log    zerolog.Logger
}

// NewOpenAIExtractorFromConfig wires the OpenAI client and the Vision OCR
// service from configuration.
func NewOpenAIExtractorFromConfig(ctx context.Context, cfg *config.Config) (*OpenAIExtractor, error) {
	const op = "NewOpenAIExtractor"

	credentials, err := cfg.GoogleCredentials()
	if err != nil {
		return nil, wrapError(op, config.ProviderOpenAI, ErrMissingCredentials, err.Error())
	}
	ocrService, err := ocr.NewVisionService(ctx, credentials)
	if err != nil {
		return nil, wrapError(op, config.ProviderOpenAI, err, "failed to create OCR service")
	}

	return NewOpenAIExtractor(openai.NewClient(cfg.OpenAIAPIKey), ocrService, OpenAIConfig{
		Model:       cfg.OpenAIModel,
		MaxRetries:  cfg.OpenAIMaxRetries,
		Temperature: 0.1,
	}), nil
}

// NewOpenAIExtractor creates the extractor with explicit dependencies.
// ocrService may be nil when only prompts are extracted.
func NewOpenAIExtractor(client ChatCompleter, ocrService ocr.OCRService, cfg OpenAIConfig) *OpenAIExtractor {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	return &OpenAIExtractor{
		client: client,
		ocr:    ocrService,
		config: cfg,
		log:    logger.WithComponent("openai"),
	}
}

// Extract OCRs the document if present and retries the chat completion until
// the reply parses.
func (o *OpenAIExtractor) Extract(ctx context.Context, doc Document) (*models.Extraction, error) {
	const op = "Extract"
	start := time.Now()

	if err := doc.Validate(); err != nil {
		return nil, wrapError(op, config.ProviderOpenAI, err, doc.Name)
	}

	var documentText string
	if len(doc.Data) > 0 {
		if doc.MIMEType != "application/pdf" {
			return nil, wrapError(op, config.ProviderOpenAI, ErrUnsupportedFormat, "only PDF documents can be OCR'd")
		}
		if o.ocr == nil {
			return nil, wrapError(op, config.ProviderOpenAI, ErrMissingCredentials, "no OCR service configured")
		}
		result, err := o.ocr.ExtractText(ctx, doc.Data)
		if err != nil {
			return nil, wrapError(op, config.ProviderOpenAI, err, "OCR failed")
		}
		documentText = result.Text
		o.log.Info().
			Int("text_length", len(result.Text)).
			Float32("avg_confidence", result.Confidence).
			Msg("OCR extraction completed")
	}

	messages := buildMessages(doc, documentText)

	var lastErr error
	for attempt := 1; attempt <= o.config.MaxRetries; attempt++ {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       o.config.Model,
			Temperature: o.config.Temperature,
			Messages:    messages,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			o.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", o.config.MaxRetries).
				Msg("OpenAI request failed, retrying")
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("%w: no response choices", ErrInvalidResponse)
			continue
		}

		content := resp.Choices[0].Message.Content
		extraction, err := ParseResponse(content)
		if err != nil {
			lastErr = err
			o.log.Warn().
				Err(err).
				Str("response", content).
				Int("attempt", attempt).
				Msg("Failed to parse OpenAI response, retrying")
			continue
		}

		o.log.Info().
			Str("model", o.config.Model).
			Str("document", doc.Name).
			Int("line_items", len(extraction.LineItems)).
			Int("attempt", attempt).
			Dur("duration", time.Since(start)).
			Msg("OpenAI extraction completed")

		return extraction, nil
	}

	details := fmt.Sprintf("all %d attempts failed", o.config.MaxRetries)
	if lastErr != nil && !errors.Is(lastErr, ErrInvalidResponse) {
		lastErr = fmt.Errorf("%w: %v", ErrProviderFailed, lastErr)
	}
	return nil, wrapError(op, config.ProviderOpenAI, lastErr, details)
}

// Close closes the OCR service.
func (o *OpenAIExtractor) Close() error {
	if o.ocr != nil {
		return o.ocr.Close()
	}
	return nil
}

func buildMessages(doc Document, documentText string) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: Instructions(),
	}}
	for _, turn := range doc.History {
		role := openai.ChatMessageRoleUser
		if geminiRole(turn.Role) == "model" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}

	var prompt strings.Builder
	if documentText != "" {
		prompt.WriteString("Document text:\n\n")
		prompt.WriteString(documentText)
		prompt.WriteString("\n\n")
	}
	if p := strings.TrimSpace(doc.Prompt); p != "" {
		prompt.WriteString(p)
	} else {
		prompt.WriteString(DefaultPrompt)
	}

	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt.String(),
	})
}
