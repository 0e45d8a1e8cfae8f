package extraction

import (
	"context"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"paylink/internal/logger"
	"paylink/pkg/models"
)

// BatchResult is the outcome for one document of a batch.
type BatchResult struct {
	Name       string             `json:"name"`
	Extraction *models.Extraction `json:"extraction,omitempty"`
	Err        error              `json:"-"`
	Error      string             `json:"error,omitempty"`
	Duration   time.Duration      `json:"duration"`
}

// ExtractBatch runs docs through ex with at most concurrency calls in
// flight. Results keep input order and one failure does not stop the rest.
func ExtractBatch(ctx context.Context, ex Extractor, docs []Document, concurrency int) []BatchResult {
	log := logger.WithComponent("extraction-batch")
	results := make([]BatchResult, len(docs))

	if concurrency < 1 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, doc := range docs {
		g.Go(func() error {
			start := time.Now()
			result := BatchResult{Name: doc.Name}

			if err := ctx.Err(); err != nil {
				result.Err = err
			} else {
				result.Extraction, result.Err = ex.Extract(ctx, doc)
			}

			result.Duration = time.Since(start)
			if result.Err != nil {
				result.Error = result.Err.Error()
				log.Warn().Err(result.Err).Str("document", doc.Name).Msg("Extraction failed")
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Failed counts the results that carry an error.
func Failed(results []BatchResult) int {
	return lo.CountBy(results, func(r BatchResult) bool { return r.Err != nil })
}
