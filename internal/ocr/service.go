// Package ocr extracts plain text from PDF documents with Google Cloud Vision.
//
// Documents are sent inline (no Cloud Storage upload) using synchronous
// document text detection, which limits input to 20MB and 5 pages.
// Page texts are concatenated in reading order with a page separator.
package ocr

import (
	"context"
	"time"
)

// OCRService extracts text from a PDF document.
type OCRService interface {
	ExtractText(ctx context.Context, pdf []byte) (*Result, error)
	Close() error
}

// Result is the text of one document plus page and confidence metadata.
type Result struct {
	Text       string        `json:"text"`
	PageCount  int           `json:"page_count"`
	Confidence float32       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
}
