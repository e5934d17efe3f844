package config

import (
	"os"
	"strconv"
)

// Config holds all runtime settings, read once at startup.
type Config struct {
	Addr     string
	Database string
	Redis    string
	ModelURL string

	ConfidenceThreshold float64
	MaxBatchSize        int
	TargetImageSize     int
	BatchWorkers        int
}

// Load reads configuration from the environment, falling back to defaults.
func Load() *Config {
	return &Config{
		Addr:                getEnv("ADDR", ":8080"),
		Database:            getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=forgerydetect port=5432 sslmode=disable"),
		Redis:               getEnv("REDIS_ADDR", "redis:6379"),
		ModelURL:            getEnv("MODEL_URL", "http://model-server:5000/predict"),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.5),
		MaxBatchSize:        getEnvInt("MAX_BATCH_SIZE", 10),
		TargetImageSize:     getEnvInt("TARGET_IMAGE_SIZE", 512),
		BatchWorkers:        getEnvInt("BATCH_WORKERS", 4),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
