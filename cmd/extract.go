package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"paylink/internal/extraction"
	"paylink/internal/logger"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file...]",
	Short: "Extract buyer data and line items from invoices or a text prompt",
	Long: `Extract the buyer profile and the schedule line items from invoice PDFs or
images, or from a free text prompt describing the deal.

Providers:
  gemini      - Gemini reads the document directly (GEMINI_API_KEY)
  openai      - Cloud Vision OCR followed by an OpenAI chat model
                (OPENAI_API_KEY plus Google credentials)
  documentai  - Google Document AI invoice parser (GOOGLE_CLOUD_PROJECT,
                DOCUMENT_AI_PROCESSOR_ID plus Google credentials)

With several files the documents are processed concurrently and the output
is an array with one result per file.`,
	Example: `  # Extract one invoice with the default provider
  paylink extract invoice.pdf

  # Describe a deal instead of uploading a document
  paylink extract --prompt "Acme GmbH, 12 month license from 2025-01-01 at 1,200.00 EUR"

  # Process a folder with Document AI, four at a time
  paylink extract ./invoices/*.pdf --provider documentai --concurrency 4 -o out.json`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("prompt", "", "Free text prompt (used alone or as extra instructions for documents)")
	extractCmd.Flags().String("provider", "", "Extraction provider: gemini, openai or documentai (default: EXTRACTION_PROVIDER)")
	extractCmd.Flags().Int("concurrency", 4, "Documents processed in parallel")
	extractCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	prompt, _ := cmd.Flags().GetString("prompt")
	provider, _ := cmd.Flags().GetString("provider")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	outputPath, _ := cmd.Flags().GetString("output")

	if len(args) == 0 && strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("provide at least one file or --prompt")
	}

	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	docs, err := loadDocuments(args, prompt, log)
	if err != nil {
		return err
	}

	ctx, cancel := createCommandContext(timeoutSecs, log)
	defer cancel()

	extractor, err := extraction.New(ctx, cfg, provider)
	if err != nil {
		return handleExtractionError(err, log)
	}
	defer func() {
		if closeErr := extractor.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close extractor")
		}
	}()

	if len(docs) == 1 {
		start := time.Now()
		result, err := extractor.Extract(ctx, docs[0])
		if err != nil {
			return handleExtractionError(err, log)
		}
		log.Info().
			Str("document", docs[0].Name).
			Str("buyer", result.Buyer.CompanyName).
			Int("line_items", len(result.LineItems)).
			Dur("duration", time.Since(start)).
			Msg("Extraction completed")
		return writeJSON(result, outputPath, log)
	}

	results := extraction.ExtractBatch(ctx, extractor, docs, concurrency)
	failed := extraction.Failed(results)
	log.Info().
		Int("documents", len(results)).
		Int("failed", failed).
		Msg("Batch extraction completed")

	if err := writeJSON(results, outputPath, log); err != nil {
		return err
	}
	if failed == len(results) {
		return fmt.Errorf("all %d documents failed", failed)
	}
	return nil
}

// loadDocuments reads every file into a Document. The MIME type is sniffed
// from the content so misnamed files are still routed correctly.
func loadDocuments(paths []string, prompt string, log zerolog.Logger) ([]extraction.Document, error) {
	if len(paths) == 0 {
		return []extraction.Document{{Name: "prompt", Prompt: prompt}}, nil
	}

	docs := make([]extraction.Document, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("file not found: %s", path)
			}
			return nil, fmt.Errorf("error accessing file: %w", err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("path is not a regular file: %s", path)
		}
		if info.Size() > extraction.MaxDocumentSizeBytes {
			return nil, fmt.Errorf("%s is too large (%d bytes). Maximum size is %d bytes (20MB)",
				path, info.Size(), extraction.MaxDocumentSizeBytes)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		doc := extraction.Document{
			Name:     filepath.Base(path),
			MIMEType: http.DetectContentType(data),
			Data:     data,
			Prompt:   prompt,
		}
		if err := doc.Validate(); err != nil {
			log.Error().Err(err).Str("file", path).Msg("Document rejected")
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// handleExtractionError provides user-friendly messages for extraction failures.
func handleExtractionError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Extraction failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("extraction timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("extraction was canceled")
	case errors.Is(err, extraction.ErrUnsupportedProvider):
		return fmt.Errorf("unknown provider. Use gemini, openai or documentai: %w", err)
	case errors.Is(err, extraction.ErrMissingCredentials):
		return fmt.Errorf("extraction provider is not configured. Check your .env file:\n"+
			"  gemini:     GEMINI_API_KEY\n"+
			"  openai:     OPENAI_API_KEY, GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS\n"+
			"  documentai: GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID, GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS\n"+
			"Original error: %w", err)
	case errors.Is(err, extraction.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, extraction.ErrDocumentTooLarge):
		return fmt.Errorf("document is too large (maximum 20MB). Try compressing or splitting the file")
	case errors.Is(err, extraction.ErrProcessorNotFound):
		return fmt.Errorf("Document AI processor not found. Please check DOCUMENT_AI_PROCESSOR_ID")
	case errors.Is(err, extraction.ErrQuotaExceeded):
		return fmt.Errorf("provider quota exceeded. Check your project quotas: %w", err)
	case errors.Is(err, extraction.ErrInvalidResponse):
		return fmt.Errorf("the model did not return usable line items. Try a clearer document or prompt: %w", err)
	case errors.Is(err, extraction.ErrProviderFailed):
		return fmt.Errorf("extraction provider failed. This may be due to network issues or service unavailability: %w", err)
	default:
		return fmt.Errorf("extraction failed: %w", err)
	}
}
