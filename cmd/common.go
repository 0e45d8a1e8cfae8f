package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"paylink/internal/schedule"
	"paylink/pkg/models"
)

// createCommandContext creates a context that is canceled on SIGINT/SIGTERM
// and, when timeoutSecs is positive, after the timeout.
func createCommandContext(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeoutSecs > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// readExtraction loads either an Extraction document or a bare array of line
// items from path.
func readExtraction(path string) (*models.Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return decodeExtraction(data)
}

func decodeExtraction(data []byte) (*models.Extraction, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("input is empty")
	}

	if trimmed[0] == '[' {
		var items []models.LineItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("invalid line item array: %w", err)
		}
		return &models.Extraction{LineItems: items}, nil
	}

	var ext models.Extraction
	if err := json.Unmarshal(trimmed, &ext); err != nil {
		return nil, fmt.Errorf("invalid extraction document: %w", err)
	}
	return &ext, nil
}

// engineFor builds the schedule engine from a policy name, falling back to
// the configured policy when name is empty.
func engineFor(name string, lenient bool) (schedule.Engine, error) {
	if name == "" {
		if cfg, err := requireConfig(); err == nil {
			name = cfg.MonthPolicy
		}
	}
	if name == "" {
		return schedule.Engine{Lenient: lenient}, nil
	}

	policy, err := schedule.PolicyByName(name)
	if err != nil {
		return schedule.Engine{}, err
	}
	return schedule.Engine{Policy: policy, Lenient: lenient}, nil
}

// writeJSON pretty prints v to outputPath, or stdout when outputPath is empty.
func writeJSON(v any, outputPath string, log zerolog.Logger) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	jsonData = append(jsonData, '\n')
	return writeOutput(jsonData, outputPath, log)
}

func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		log.Error().
			Err(err).
			Str("output", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output", outputPath).
		Int("bytes", len(data)).
		Msg("Output written")
	return nil
}
