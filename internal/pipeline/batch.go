package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/forgery-detect/internal/imaging"
	"github.com/example/forgery-detect/internal/policy"
)

var (
	// ErrEmptyBatch rejects a batch with no images before any analysis runs.
	ErrEmptyBatch = errors.New("batch contains no images")
	// ErrBatchTooLarge rejects an oversized batch outright, never truncates it.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
)

// ImageAnalyzer is the slice of the analyzer the batch runner consumes.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, img imaging.Image, meta Meta) (*AnalysisResult, error)
}

// BatchItem pairs one image with its metadata for the whole journey through
// the batch, so results can be reassembled without index guessing.
type BatchItem struct {
	Image imaging.Image
	Meta  Meta
}

// BatchSummary aggregates the successful results of one batch.
type BatchSummary struct {
	Authentic     int     `json:"authentic"`
	Forged        int     `json:"forged"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// BatchResult is the outcome of one batch run. ProcessedImages counts only
// successful analyses; failed items are omitted from Results without
// affecting their siblings.
type BatchResult struct {
	BatchID         string           `json:"batch_id"`
	TotalImages     int              `json:"total_images"`
	ProcessedImages int              `json:"processed_images"`
	Results         []AnalysisResult `json:"results"`
	Summary         BatchSummary     `json:"summary"`
}

// BatchRunner executes the analysis pipeline across a bounded batch of
// images. Items run on a bounded worker pool; results are reassembled in
// input order, never completion order.
type BatchRunner struct {
	analyzer     ImageAnalyzer
	maxBatchSize int
	workers      int
	logger       *zap.Logger
}

// NewBatchRunner constructs a runner. maxBatchSize guards the pre-flight
// check; workers bounds concurrent analyses.
func NewBatchRunner(analyzer ImageAnalyzer, maxBatchSize, workers int, logger *zap.Logger) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	return &BatchRunner{
		analyzer:     analyzer,
		maxBatchSize: maxBatchSize,
		workers:      workers,
		logger:       logger.Named("batch_runner"),
	}
}

// NewBatchID synthesizes a short unique batch identifier.
func NewBatchID() string {
	return "batch_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Run analyzes every item and aggregates the successes. The whole batch is
// rejected up front when empty or larger than the configured maximum. A
// failure on one item removes only that item from the results. When ctx is
// cancelled mid-flight the batch is abandoned and no partial result is
// returned.
func (r *BatchRunner) Run(ctx context.Context, items []BatchItem) (*BatchResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(items) > r.maxBatchSize {
		return nil, ErrBatchTooLarge
	}

	batchID := NewBatchID()
	r.logger.Info("starting batch analysis",
		zap.String("batch_id", batchID),
		zap.Int("images", len(items)),
	)

	slots := make([]*AnalysisResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := r.analyzer.Analyze(gctx, item.Image, item.Meta)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// Per-item isolation: log and omit, keep siblings running.
				r.logger.Warn("image analysis failed",
					zap.String("batch_id", batchID),
					zap.String("case_id", item.Meta.CaseID),
					zap.String("filename", item.Meta.Filename),
					zap.Error(err),
				)
				return nil
			}
			result.BatchID = batchID
			slots[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]AnalysisResult, 0, len(items))
	for _, slot := range slots {
		if slot != nil {
			results = append(results, *slot)
		}
	}

	br := &BatchResult{
		BatchID:         batchID,
		TotalImages:     len(items),
		ProcessedImages: len(results),
		Results:         results,
		Summary:         summarize(results),
	}
	r.logger.Info("batch analysis complete",
		zap.String("batch_id", batchID),
		zap.Int("processed", br.ProcessedImages),
		zap.Int("total", br.TotalImages),
	)
	return br, nil
}

// summarize computes aggregate statistics strictly from successful results.
func summarize(results []AnalysisResult) BatchSummary {
	s := BatchSummary{}
	if len(results) == 0 {
		return s
	}
	sum := 0.0
	for _, res := range results {
		switch res.Result {
		case policy.Authentic:
			s.Authentic++
		case policy.Forged:
			s.Forged++
		}
		sum += res.Confidence
	}
	s.AvgConfidence = sum / float64(len(results))
	return s
}
