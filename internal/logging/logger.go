package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds a production ready structured logger.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	return cfg.Build()
}

// WithOperation enriches the logger with operation and case identifiers.
func WithOperation(logger *zap.Logger, operation, caseID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if caseID != "" {
		fields = append(fields, zap.String("case_id", caseID))
	}
	return logger.With(fields...)
}
