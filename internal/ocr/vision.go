package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"paylink/internal/logger"
)

const (
	// MaxFileSizeBytes is the maximum file size for synchronous processing (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the maximum number of pages for synchronous processing
	MaxPagesSync = 5
)

// VisionService implements OCRService using the Cloud Vision API.
type VisionService struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewVisionService creates a Vision client from service account JSON. With no
// credentials it falls back to application default credentials.
func NewVisionService(ctx context.Context, credentials []byte) (*VisionService, error) {
	const op = "NewVisionService"

	var opts []option.ClientOption
	if len(credentials) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentials))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, wrap(op, ErrMissingCredentials, err.Error())
		}
		return nil, wrap(op, err, "failed to create Vision client")
	}

	return &VisionService{
		client: client,
		log:    logger.WithComponent("ocr"),
	}, nil
}

// ExtractText runs document text detection over every page of pdf.
func (v *VisionService) ExtractText(ctx context.Context, pdf []byte) (*Result, error) {
	const op = "ExtractText"
	start := time.Now()

	if len(pdf) > MaxFileSizeBytes {
		return nil, wrap(op, ErrPDFTooLarge, fmt.Sprintf("file size: %d bytes", len(pdf)))
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		return nil, wrap(op, ErrInvalidPDF, "missing PDF header")
	}

	resp, err := v.client.BatchAnnotateFiles(ctx, &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{
				Content:  pdf,
				MimeType: "application/pdf",
			},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		return nil, wrap(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, wrap(op, ErrOCRFailed, "no response from Vision API")
	}

	result, err := textFromResponse(resp.Responses[0])
	if err != nil {
		return nil, wrap(op, err, "failed to read Vision API response")
	}
	result.Duration = time.Since(start)

	v.log.Debug().
		Int("pages", result.PageCount).
		Int("text_length", len(result.Text)).
		Float32("confidence", result.Confidence).
		Dur("duration", result.Duration).
		Msg("OCR extraction completed")

	return result, nil
}

// textFromResponse joins page texts and averages page confidence.
func textFromResponse(fileResp *visionpb.AnnotateFileResponse) (*Result, error) {
	if fileResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrOCRFailed, fileResp.Error.Message)
	}
	pageCount := len(fileResp.Responses)
	if pageCount == 0 {
		return nil, ErrEmptyDocument
	}
	if pageCount > MaxPagesSync {
		return nil, fmt.Errorf("%w: document has %d pages", ErrTooManyPages, pageCount)
	}

	var (
		text          strings.Builder
		confidenceSum float32
		confidenceN   int
	)
	for i, page := range fileResp.Responses {
		if page.Error != nil {
			return nil, fmt.Errorf("%w: page %d: %s", ErrOCRFailed, i+1, page.Error.Message)
		}
		if page.FullTextAnnotation == nil {
			continue
		}
		if i > 0 {
			fmt.Fprintf(&text, "\n\n--- Page %d ---\n\n", i+1)
		}
		text.WriteString(page.FullTextAnnotation.Text)
		for _, p := range page.FullTextAnnotation.Pages {
			if p.Confidence > 0 {
				confidenceSum += p.Confidence
				confidenceN++
			}
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, ErrEmptyDocument
	}

	result := &Result{Text: text.String(), PageCount: pageCount}
	if confidenceN > 0 {
		result.Confidence = confidenceSum / float32(confidenceN)
	}
	return result, nil
}

// Close closes the underlying Vision client.
func (v *VisionService) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
