package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"paylink/internal/config"
	"paylink/internal/logger"
	"paylink/pkg/models"
)

// DocumentAIConfig holds configuration for Google Document AI processing.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location ("us", "eu").
	// Should match where the processor was created.
	Location string

	// ProcessorID is the invoice parser processor ID.
	ProcessorID string

	// ProcessorVersion pins a processor version. Empty uses the default.
	ProcessorVersion string

	// Credentials is service account JSON. Empty uses application default credentials.
	Credentials []byte

	// Timeout is the maximum time to wait for processing. Default: 60 seconds.
	Timeout time.Duration
}

// DocumentAIExtractor maps invoice parser entities to line items.
type DocumentAIExtractor struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIExtractor creates a Document AI client on the regional endpoint.
func NewDocumentAIExtractor(ctx context.Context, cfg DocumentAIConfig) (*DocumentAIExtractor, error) {
	const op = "NewDocumentAIExtractor"

	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, wrapError(op, config.ProviderDocumentAI, ErrMissingCredentials, "project and processor ID are required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientOptions := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)),
	}
	if len(cfg.Credentials) > 0 {
		clientOptions = append(clientOptions, option.WithCredentialsJSON(cfg.Credentials))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		return nil, wrapError(op, config.ProviderDocumentAI, err, fmt.Sprintf("failed to create Document AI client for location: %s", cfg.Location))
	}

	return &DocumentAIExtractor{
		client: client,
		config: cfg,
		log:    logger.WithComponent("document-ai"),
	}, nil
}

// Extract runs the invoice parser. Prompts are not supported.
func (p *DocumentAIExtractor) Extract(ctx context.Context, doc Document) (*models.Extraction, error) {
	const op = "Extract"
	start := time.Now()

	if err := doc.Validate(); err != nil {
		return nil, wrapError(op, config.ProviderDocumentAI, err, doc.Name)
	}
	if len(doc.Data) == 0 {
		return nil, wrapError(op, config.ProviderDocumentAI, ErrEmptyDocument, "Document AI needs a file")
	}

	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	resp, err := p.client.ProcessDocument(processCtx, &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  doc.Data,
				MimeType: doc.MIMEType,
			},
		},
	})
	if err != nil {
		return nil, p.handleProcessingError(op, err)
	}
	if resp.Document == nil {
		return nil, wrapError(op, config.ProviderDocumentAI, ErrInvalidResponse, "no document in response")
	}

	extraction := extractionFromDocument(resp.Document)

	p.log.Info().
		Str("document", doc.Name).
		Str("buyer", extraction.Buyer.CompanyName).
		Int("line_items", len(extraction.LineItems)).
		Dur("duration", time.Since(start)).
		Msg("Document AI extraction completed")

	return extraction, nil
}

func (p *DocumentAIExtractor) processorName() string {
	if p.config.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			p.config.ProjectID, p.config.Location, p.config.ProcessorID, p.config.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// handleProcessingError maps gRPC status codes to extraction errors.
func (p *DocumentAIExtractor) handleProcessingError(op string, err error) error {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return wrapError(op, config.ProviderDocumentAI, ErrMissingCredentials, "insufficient permissions for Document AI")
	case codes.ResourceExhausted:
		return wrapError(op, config.ProviderDocumentAI, ErrQuotaExceeded, "Document AI API quota exceeded")
	case codes.NotFound:
		return wrapError(op, config.ProviderDocumentAI, ErrProcessorNotFound, fmt.Sprintf("processor not found: %s", p.config.ProcessorID))
	case codes.InvalidArgument:
		return wrapError(op, config.ProviderDocumentAI, ErrInvalidPDF, "document format not supported or corrupted")
	case codes.DeadlineExceeded:
		return wrapError(op, config.ProviderDocumentAI, context.DeadlineExceeded, "processing timeout")
	case codes.Canceled:
		return wrapError(op, config.ProviderDocumentAI, context.Canceled, "processing was canceled")
	default:
		return wrapError(op, config.ProviderDocumentAI, ErrProviderFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// Close closes the underlying Document AI client.
func (p *DocumentAIExtractor) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// extractionFromDocument reads receiver entities into the buyer and each
// line_item entity into an undated line item.
func extractionFromDocument(doc *documentaipb.Document) *models.Extraction {
	extraction := &models.Extraction{LineItems: []models.LineItem{}}

	for _, entity := range doc.Entities {
		value := strings.TrimSpace(entity.MentionText)
		switch entity.Type {
		case "receiver_name":
			extraction.Buyer.CompanyName = value
		case "receiver_address":
			extraction.Buyer.Address = strings.Join(strings.Fields(value), " ")
		case "receiver_email":
			extraction.Buyer.ContactEmail = value
		case "receiver_contact", "receiver_contact_name":
			extraction.Buyer.ContactName = value
		case "line_item":
			item, ok := lineItemFromEntity(entity, len(extraction.LineItems))
			if ok {
				extraction.LineItems = append(extraction.LineItems, item)
			}
		}
	}

	return extraction
}

func lineItemFromEntity(entity *documentaipb.Document_Entity, index int) (models.LineItem, bool) {
	var (
		description string
		amount      int64
		hasAmount   bool
	)
	for _, prop := range entity.Properties {
		switch prop.Type {
		case "line_item/description":
			description = strings.Join(strings.Fields(prop.MentionText), " ")
		case "line_item/amount":
			if cents, err := moneyValue(prop); err == nil {
				amount = cents
				hasAmount = true
			}
		}
	}
	if description == "" && !hasAmount {
		return models.LineItem{}, false
	}

	title := description
	if i := strings.IndexAny(title, ",;("); i > 0 {
		title = strings.TrimSpace(title[:i])
	}

	return models.LineItem{
		ID:                 fmt.Sprintf("invoice-%d", index),
		ServiceTitle:       title,
		ServiceDescription: description,
		ServiceAmount:      amount,
	}, true
}

// moneyValue converts a money entity to cents, preferring the normalized value.
func moneyValue(entity *documentaipb.Document_Entity) (int64, error) {
	if entity.NormalizedValue != nil {
		if m := entity.NormalizedValue.GetMoneyValue(); m != nil {
			d := decimal.New(m.Units, 0).Add(decimal.New(int64(m.Nanos), -9))
			return d.Shift(2).Round(0).IntPart(), nil
		}
	}
	if strings.TrimSpace(entity.MentionText) == "" {
		return 0, fmt.Errorf("empty amount value")
	}
	return ParseLocalizedAmount(entity.MentionText)
}
