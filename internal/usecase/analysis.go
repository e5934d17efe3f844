package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/forgery-detect/internal/imaging"
	"github.com/example/forgery-detect/internal/logging"
	"github.com/example/forgery-detect/internal/pipeline"
	"github.com/example/forgery-detect/internal/repository"
)

const resultCacheTTL = 24 * time.Hour

// AnalysisRepository defines the persistence operations needed by the use case.
type AnalysisRepository interface {
	Save(ctx context.Context, record *repository.AnalysisRecord) error
	FindByCaseID(ctx context.Context, caseID string) (*repository.AnalysisRecord, error)
	AggregateStats(ctx context.Context) (*repository.StatsAggregation, error)
}

// BatchRunner defines the batch orchestration the use case drives.
type BatchRunner interface {
	Run(ctx context.Context, items []pipeline.BatchItem) (*pipeline.BatchResult, error)
}

// AnalysisUseCase encapsulates the analyze, batch, lookup and statistics flows.
type AnalysisUseCase struct {
	analyzer       pipeline.ImageAnalyzer
	runner         BatchRunner
	repo           AnalysisRepository
	cache          Cache
	logger         *zap.Logger
	maxBatchSize   int
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type cachedAnalysis struct {
	CaseID       string    `json:"case_id"`
	BatchID      string    `json:"batch_id,omitempty"`
	Result       string    `json:"result"`
	Confidence   float64   `json:"confidence"`
	RegionsCount int       `json:"regions_count"`
	Filename     string    `json:"filename"`
	FileSize     int       `json:"file_size"`
	MaskData     string    `json:"mask_data"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewAnalysisUseCase constructs a new use case instance.
func NewAnalysisUseCase(analyzer pipeline.ImageAnalyzer, runner BatchRunner, repo AnalysisRepository, cache Cache, maxBatchSize int, logger *zap.Logger) *AnalysisUseCase {
	return &AnalysisUseCase{
		analyzer:       analyzer,
		runner:         runner,
		repo:           repo,
		cache:          cache,
		logger:         logger.Named("analysis_usecase"),
		maxBatchSize:   maxBatchSize,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AnalyzeImage runs the pipeline for a single upload, then persists and
// caches the outcome. Persistence and caching are best effort: the analysis
// result is returned even when storage misbehaves.
func (uc *AnalysisUseCase) AnalyzeImage(ctx context.Context, img imaging.Image, meta pipeline.Meta) (*pipeline.AnalysisResult, error) {
	result, err := uc.analyzer.Analyze(ctx, img, meta)
	if err != nil {
		return nil, err
	}

	uc.storeResult(ctx, result)
	return result, nil
}

// AnalyzeBatch runs the orchestrator over the decoded items. totalUploaded
// is the number of files the caller received before decode filtering; the
// pre-flight size guard applies to it, and it is what TotalImages reports.
func (uc *AnalysisUseCase) AnalyzeBatch(ctx context.Context, items []pipeline.BatchItem, totalUploaded int) (*pipeline.BatchResult, error) {
	if totalUploaded == 0 {
		return nil, pipeline.ErrEmptyBatch
	}
	if totalUploaded > uc.maxBatchSize {
		return nil, pipeline.ErrBatchTooLarge
	}

	batch, err := uc.runner.Run(ctx, items)
	if err != nil {
		return nil, err
	}
	batch.TotalImages = totalUploaded

	for i := range batch.Results {
		uc.storeResult(ctx, &batch.Results[i])
	}
	return batch, nil
}

// GetResult retrieves a stored analysis, cache first with repository fallback.
func (uc *AnalysisUseCase) GetResult(ctx context.Context, caseID string) (*repository.AnalysisRecord, error) {
	cacheKey := cacheKeyFor(caseID)
	if cached, err := uc.withRedisGet(ctx, caseID, "cache.get.result", cacheKey); err == nil {
		var payload cachedAnalysis
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", caseID).Warn("failed to decode cached result", zap.Error(err))
		} else {
			return &repository.AnalysisRecord{
				CaseID:       payload.CaseID,
				BatchID:      payload.BatchID,
				Result:       payload.Result,
				Confidence:   payload.Confidence,
				RegionsCount: payload.RegionsCount,
				Filename:     payload.Filename,
				FileSize:     payload.FileSize,
				MaskData:     payload.MaskData,
				Status:       "completed",
				CreatedAt:    payload.CreatedAt,
			}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", caseID).Warn("failed to read cache", zap.Error(err))
	}

	return uc.repo.FindByCaseID(ctx, caseID)
}

// StatisticsSummary represents aggregated analysis insights.
type StatisticsSummary struct {
	TotalAnalyses  int64   `json:"total_analyses"`
	AuthenticCount int64   `json:"authentic_count"`
	ForgedCount    int64   `json:"forged_count"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

// GetStatistics aggregates analysis statistics from persisted records.
func (uc *AnalysisUseCase) GetStatistics(ctx context.Context) (*StatisticsSummary, error) {
	agg, err := uc.repo.AggregateStats(ctx)
	if err != nil {
		return nil, err
	}
	return &StatisticsSummary{
		TotalAnalyses:  agg.TotalCount,
		AuthenticCount: agg.AuthenticCount,
		ForgedCount:    agg.ForgedCount,
		AvgConfidence:  agg.AvgConfidence,
	}, nil
}

func cacheKeyFor(caseID string) string {
	return fmt.Sprintf("analysis:%s", caseID)
}

// storeResult persists and caches one analysis outcome, logging failures
// without surfacing them.
func (uc *AnalysisUseCase) storeResult(ctx context.Context, result *pipeline.AnalysisResult) {
	opLogger := logging.WithOperation(uc.logger, "usecase.store_result", result.CaseID)

	createdAt, err := time.Parse(time.RFC3339, result.Timestamp)
	if err != nil {
		createdAt = time.Now().UTC()
	}
	record := &repository.AnalysisRecord{
		CaseID:       result.CaseID,
		BatchID:      result.BatchID,
		Result:       string(result.Result),
		Confidence:   result.Confidence,
		RegionsCount: len(result.Regions),
		Filename:     result.Filename,
		FileSize:     result.FileSize,
		MaskData:     result.Mask,
		Status:       "completed",
		CreatedAt:    createdAt,
	}
	if err := uc.repo.Save(ctx, record); err != nil {
		opLogger.Warn("failed to persist analysis record", zap.Error(err))
	}

	cached := cachedAnalysis{
		CaseID:       record.CaseID,
		BatchID:      record.BatchID,
		Result:       record.Result,
		Confidence:   record.Confidence,
		RegionsCount: record.RegionsCount,
		Filename:     record.Filename,
		FileSize:     record.FileSize,
		MaskData:     record.MaskData,
		CreatedAt:    record.CreatedAt,
	}
	serialized, err := json.Marshal(cached)
	if err != nil {
		opLogger.Warn("failed to serialize analysis result", zap.Error(err))
		return
	}
	if err := uc.withRedisRetry(ctx, result.CaseID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKeyFor(result.CaseID), string(serialized), resultCacheTTL)
	}); err != nil {
		opLogger.Warn("failed to cache analysis result", zap.Error(err))
	}
}

func (uc *AnalysisUseCase) withRedisRetry(ctx context.Context, caseID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, caseID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, caseID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, caseID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if errors.Is(err, redis.Nil) {
			return logging.NewOperationError(operation, caseID, err)
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, caseID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, caseID, err)
}

func (uc *AnalysisUseCase) withRedisGet(ctx context.Context, caseID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, caseID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
