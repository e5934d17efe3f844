package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ConfidenceThreshold != 0.5 {
		t.Fatalf("expected default threshold 0.5, got %f", cfg.ConfidenceThreshold)
	}
	if cfg.MaxBatchSize != 10 {
		t.Fatalf("expected default batch size 10, got %d", cfg.MaxBatchSize)
	}
	if cfg.TargetImageSize != 512 {
		t.Fatalf("expected default image size 512, got %d", cfg.TargetImageSize)
	}
	if cfg.BatchWorkers != 4 {
		t.Fatalf("expected default workers 4, got %d", cfg.BatchWorkers)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CONFIDENCE_THRESHOLD", "0.7")
	t.Setenv("MAX_BATCH_SIZE", "25")
	t.Setenv("MODEL_URL", "http://localhost:5000/predict")

	cfg := Load()
	if cfg.ConfidenceThreshold != 0.7 {
		t.Fatalf("expected threshold 0.7, got %f", cfg.ConfidenceThreshold)
	}
	if cfg.MaxBatchSize != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.MaxBatchSize)
	}
	if cfg.ModelURL != "http://localhost:5000/predict" {
		t.Fatalf("unexpected model url %s", cfg.ModelURL)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CONFIDENCE_THRESHOLD", "not-a-number")
	t.Setenv("MAX_BATCH_SIZE", "ten")

	cfg := Load()
	if cfg.ConfidenceThreshold != 0.5 || cfg.MaxBatchSize != 10 {
		t.Fatalf("expected defaults for malformed values, got %+v", cfg)
	}
}
