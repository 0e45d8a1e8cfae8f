package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"paylink/internal/config"
	"paylink/internal/logger"
	"paylink/pkg/models"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey      string
	Model       string  // gemini-1.5-flash, gemini-2.0-flash, ...
	Temperature float32 // 0 means the package default
}

// GeminiExtractor sends documents inline to a Gemini model.
type GeminiExtractor struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
	log    zerolog.Logger
}

// NewGeminiExtractor creates a Gemini client configured for JSON output.
func NewGeminiExtractor(ctx context.Context, cfg GeminiConfig) (*GeminiExtractor, error) {
	const op = "NewGeminiExtractor"

	if cfg.APIKey == "" {
		return nil, wrapError(op, config.ProviderGemini, ErrMissingCredentials, "GEMINI_API_KEY is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, wrapError(op, config.ProviderGemini, err, "failed to create Gemini client")
	}

	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(Instructions())}}
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(cfg.Temperature)

	return &GeminiExtractor{
		client: client,
		model:  model,
		name:   cfg.Model,
		log:    logger.WithComponent("gemini"),
	}, nil
}

// Extract sends the document, or the prompt alone, and parses the reply.
// With History set the call continues a chat session.
func (g *GeminiExtractor) Extract(ctx context.Context, doc Document) (*models.Extraction, error) {
	const op = "Extract"
	start := time.Now()

	if err := doc.Validate(); err != nil {
		return nil, wrapError(op, config.ProviderGemini, err, doc.Name)
	}

	parts := documentParts(doc)

	var (
		resp *genai.GenerateContentResponse
		err  error
	)
	if len(doc.History) > 0 {
		cs := g.model.StartChat()
		cs.History = chatHistory(doc.History)
		resp, err = cs.SendMessage(ctx, parts...)
	} else {
		resp, err = g.model.GenerateContent(ctx, parts...)
	}
	if err != nil {
		return nil, wrapError(op, config.ProviderGemini, ErrProviderFailed, err.Error())
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, wrapError(op, config.ProviderGemini, err, "")
	}

	extraction, err := ParseResponse(text)
	if err != nil {
		g.log.Warn().Err(err).Str("response", text).Msg("Failed to parse Gemini response")
		return nil, wrapError(op, config.ProviderGemini, err, "")
	}

	g.log.Info().
		Str("model", g.name).
		Str("document", doc.Name).
		Int("line_items", len(extraction.LineItems)).
		Dur("duration", time.Since(start)).
		Msg("Gemini extraction completed")

	return extraction, nil
}

// Close closes the underlying Gemini client.
func (g *GeminiExtractor) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func documentParts(doc Document) []genai.Part {
	prompt := strings.TrimSpace(doc.Prompt)
	if len(doc.Data) == 0 {
		return []genai.Part{genai.Text(prompt)}
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return []genai.Part{
		genai.Blob{MIMEType: doc.MIMEType, Data: doc.Data},
		genai.Text(prompt),
	}
}

func chatHistory(turns []Turn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		history = append(history, &genai.Content{
			Role:  geminiRole(turn.Role),
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}
	return history
}

func geminiRole(role string) string {
	switch strings.ToLower(role) {
	case "model", "assistant":
		return "model"
	default:
		return "user"
	}
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", ErrInvalidResponse)
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return "", fmt.Errorf("%w: empty candidate", ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no text in response", ErrInvalidResponse)
	}
	return b.String(), nil
}
