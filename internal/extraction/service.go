// Package extraction turns uploaded documents or free-text prompts into buyer
// data and line items ready for the schedule engine.
//
// Three backends are available:
//   - gemini: the PDF is sent inline to a Gemini model together with the
//     embedded instructions. Supports follow-up chat turns.
//   - openai: the PDF is OCR'd with Cloud Vision and the text is sent to an
//     OpenAI chat model.
//   - documentai: the Document AI invoice parser. Line items come back
//     undated and must be reviewed before scheduling.
//
// Limits:
//   - Maximum document size: 20MB
//   - Supported formats: PDF, PNG, JPEG (openai accepts PDF only)
package extraction

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"

	"paylink/internal/config"
	"paylink/pkg/models"
)

// MaxDocumentSizeBytes is the maximum document size for synchronous extraction (20MB)
const MaxDocumentSizeBytes = 20 * 1024 * 1024

// DefaultPrompt is sent alongside a file when the caller gives no prompt.
const DefaultPrompt = "Follow system instructions"

//go:embed prompts/instructions.md
var instructions string

// Instructions returns the system instructions shared by the model backends.
func Instructions() string {
	return instructions
}

// Extractor produces an Extraction from one document or prompt.
type Extractor interface {
	Extract(ctx context.Context, doc Document) (*models.Extraction, error)
	Close() error
}

// Turn is one earlier message of a chat-style refinement.
type Turn struct {
	Role string `json:"role"` // user or model
	Text string `json:"text"`
}

// Document is the input of an extraction. Either Data or Prompt must be set.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
	Prompt   string
	History  []Turn
}

var supportedMIMETypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

// Validate checks size, format and content of the document. An empty MIME
// type on a non-empty document is treated as PDF.
func (d *Document) Validate() error {
	if len(d.Data) == 0 && strings.TrimSpace(d.Prompt) == "" {
		return ErrEmptyDocument
	}
	if len(d.Data) == 0 {
		return nil
	}
	if len(d.Data) > MaxDocumentSizeBytes {
		return fmt.Errorf("%w: file size: %d bytes", ErrDocumentTooLarge, len(d.Data))
	}
	if d.MIMEType == "" {
		d.MIMEType = "application/pdf"
	}
	if i := strings.IndexByte(d.MIMEType, ';'); i >= 0 {
		d.MIMEType = strings.TrimSpace(d.MIMEType[:i])
	}
	if !supportedMIMETypes[d.MIMEType] {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, d.MIMEType)
	}
	if d.MIMEType == "application/pdf" && !bytes.HasPrefix(d.Data, []byte("%PDF")) {
		return fmt.Errorf("%w: missing PDF header", ErrInvalidPDF)
	}
	return nil
}

// New builds the extractor for provider, falling back to the configured
// default when provider is empty.
func New(ctx context.Context, cfg *config.Config, provider string) (Extractor, error) {
	const op = "New"

	if provider == "" {
		provider = cfg.ExtractionProvider
	}
	provider = strings.ToLower(provider)

	switch provider {
	case config.ProviderGemini, config.ProviderOpenAI, config.ProviderDocumentAI:
	default:
		return nil, wrapError(op, provider, ErrUnsupportedProvider, "")
	}
	if err := cfg.ValidateExtraction(provider); err != nil {
		return nil, wrapError(op, provider, ErrMissingCredentials, err.Error())
	}

	switch provider {
	case config.ProviderGemini:
		return NewGeminiExtractor(ctx, GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
	case config.ProviderOpenAI:
		return NewOpenAIExtractorFromConfig(ctx, cfg)
	default:
		credentials, err := cfg.GoogleCredentials()
		if err != nil {
			return nil, wrapError(op, provider, ErrMissingCredentials, err.Error())
		}
		return NewDocumentAIExtractor(ctx, DocumentAIConfig{
			ProjectID:        cfg.GoogleCloudProject,
			Location:         cfg.GoogleCloudLocation,
			ProcessorID:      cfg.DocumentAIProcessorID,
			ProcessorVersion: cfg.DocumentAIProcessorVersion,
			Credentials:      credentials,
		})
	}
}
