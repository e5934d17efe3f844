package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/forgery-detect/internal/logging"
)

// AnalysisRecord is a persisted analysis outcome.
type AnalysisRecord struct {
	ID           uint      `gorm:"primaryKey"`
	CaseID       string    `gorm:"column:case_id;uniqueIndex;size:64"`
	BatchID      string    `gorm:"column:batch_id;size:64"`
	Result       string    `gorm:"column:result;size:20"`
	Confidence   float64   `gorm:"column:confidence"`
	RegionsCount int       `gorm:"column:regions_count"`
	Filename     string    `gorm:"column:filename;size:255"`
	FileSize     int       `gorm:"column:file_size"`
	MaskData     string    `gorm:"column:mask_data;type:text"`
	Status       string    `gorm:"column:status;size:20;default:completed"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (AnalysisRecord) TableName() string {
	return "analyses"
}

// StatsAggregation holds the aggregate view over all persisted analyses.
type StatsAggregation struct {
	TotalCount     int64
	AuthenticCount int64
	ForgedCount    int64
	AvgConfidence  float64
}

// AnalysisRepository provides persistence APIs for analysis records.
type AnalysisRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewAnalysisRepository creates a new repository instance.
func NewAnalysisRepository(db *gorm.DB, logger *zap.Logger) *AnalysisRepository {
	return &AnalysisRepository{
		db:             db,
		logger:         logger.Named("analysis_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *AnalysisRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&AnalysisRecord{})
}

// Save persists one analysis record.
func (r *AnalysisRepository) Save(ctx context.Context, record *AnalysisRecord) error {
	return r.executeWithRetry(ctx, "repository.save_analysis", record.CaseID, func() error {
		return r.db.WithContext(ctx).Create(record).Error
	})
}

// FindByCaseID retrieves the analysis record for a case.
func (r *AnalysisRepository) FindByCaseID(ctx context.Context, caseID string) (*AnalysisRecord, error) {
	var record AnalysisRecord
	err := r.executeWithRetry(ctx, "repository.find_analysis", caseID, func() error {
		return r.db.WithContext(ctx).First(&record, "case_id = ?", caseID).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// AggregateStats computes counts and the average confidence across all
// persisted analyses.
func (r *AnalysisRepository) AggregateStats(ctx context.Context) (*StatsAggregation, error) {
	var agg StatsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_stats", "", func() error {
		return r.db.WithContext(ctx).
			Model(&AnalysisRecord{}).
			Select("COUNT(*) AS total_count, " +
				"COALESCE(SUM(CASE WHEN result = 'authentic' THEN 1 ELSE 0 END), 0) AS authentic_count, " +
				"COALESCE(SUM(CASE WHEN result = 'forged' THEN 1 ELSE 0 END), 0) AS forged_count, " +
				"COALESCE(AVG(confidence), 0) AS avg_confidence").
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *AnalysisRepository) executeWithRetry(ctx context.Context, operation, caseID string, fn func() error) error {
	if r.retryAttempts <= 1 {
		return logging.NewOperationError(operation, caseID, fn())
	}

	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, caseID)
	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, caseID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, caseID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, caseID, err)
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
