package extraction

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDocument is returned when a document carries neither data nor a prompt.
	ErrEmptyDocument = errors.New("document has no content and no prompt")

	// ErrDocumentTooLarge is returned when the document exceeds MaxDocumentSizeBytes.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size limit")

	// ErrInvalidPDF is returned when a document declared as PDF has no PDF header.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrUnsupportedFormat is returned for MIME types no backend accepts.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrMissingCredentials is returned when the selected provider is not configured.
	ErrMissingCredentials = errors.New("missing provider credentials")

	// ErrInvalidResponse is returned when the model output cannot be decoded
	// into buyer data and line items.
	ErrInvalidResponse = errors.New("invalid extraction response")

	// ErrUnsupportedProvider is returned for an unknown provider name.
	ErrUnsupportedProvider = errors.New("unsupported extraction provider")

	// ErrProviderFailed is returned when the remote API call fails.
	ErrProviderFailed = errors.New("extraction provider call failed")

	// ErrQuotaExceeded is returned when the provider rejects the call for quota reasons.
	ErrQuotaExceeded = errors.New("provider quota exceeded")

	// ErrProcessorNotFound is returned when the Document AI processor does not exist.
	ErrProcessorNotFound = errors.New("Document AI processor not found")
)

// ExtractionError wraps an extraction failure with the operation and provider.
type ExtractionError struct {
	Op       string
	Provider string
	Err      error
	Details  string
}

func (e *ExtractionError) Error() string {
	prefix := "extraction"
	if e.Provider != "" {
		prefix = fmt.Sprintf("extraction (%s)", e.Provider)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %s failed: %s: %v", prefix, e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", prefix, e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// wrapError wraps err as an ExtractionError unless it already is one.
func wrapError(op, provider string, err error, details string) error {
	if err == nil {
		return nil
	}
	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return err
	}
	return &ExtractionError{Op: op, Provider: provider, Err: err, Details: details}
}
