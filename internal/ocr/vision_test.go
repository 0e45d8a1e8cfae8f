package ocr

import (
	"errors"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/status"
)

func page(text string, confidence float32) *visionpb.AnnotateImageResponse {
	return &visionpb.AnnotateImageResponse{
		FullTextAnnotation: &visionpb.TextAnnotation{
			Text:  text,
			Pages: []*visionpb.Page{{Confidence: confidence}},
		},
	}
}

func TestTextFromResponseJoinsPages(t *testing.T) {
	resp := &visionpb.AnnotateFileResponse{
		Responses: []*visionpb.AnnotateImageResponse{
			page("Invoice 2025-001", 0.9),
			page("Total 1.200,00 EUR", 0.7),
		},
	}

	result, err := textFromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, 2, result.PageCount)
	assert.Equal(t, "Invoice 2025-001\n\n--- Page 2 ---\n\nTotal 1.200,00 EUR", result.Text)
	assert.InDelta(t, 0.8, result.Confidence, 0.0001)
}

func TestTextFromResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		resp *visionpb.AnnotateFileResponse
		want error
	}{
		{"no pages", &visionpb.AnnotateFileResponse{}, ErrEmptyDocument},
		{"blank text", &visionpb.AnnotateFileResponse{Responses: []*visionpb.AnnotateImageResponse{page("  ", 0.5)}}, ErrEmptyDocument},
		{"file error", &visionpb.AnnotateFileResponse{Error: &status.Status{Message: "bad file"}}, ErrOCRFailed},
		{"page error", &visionpb.AnnotateFileResponse{Responses: []*visionpb.AnnotateImageResponse{{Error: &status.Status{Message: "bad page"}}}}, ErrOCRFailed},
		{"too many pages", &visionpb.AnnotateFileResponse{Responses: make([]*visionpb.AnnotateImageResponse, MaxPagesSync+1)}, ErrTooManyPages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := textFromResponse(tt.resp)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestExtractTextRejectsNonPDF(t *testing.T) {
	svc := &VisionService{}
	_, err := svc.ExtractText(t.Context(), []byte("hello"))
	assert.ErrorIs(t, err, ErrInvalidPDF)

	var ocrErr *OCRError
	require.ErrorAs(t, err, &ocrErr)
	assert.Equal(t, "ExtractText", ocrErr.Op)
}
