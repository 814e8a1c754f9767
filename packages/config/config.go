// Package config
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string
	DumpPath    string

	// Gemini classification service
	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration
	MaxAttempts   int

	// Logging configuration
	LogFile  string
	LogLevel string

	// Metrics endpoint
	MetricsAddr string

	// Redis-backed author classification cache. Disabled when RedisAddr
	// is empty; the pipeline then always calls the model directly.
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	AuthorCachePrefix string
	AuthorCacheTTL    time.Duration
}

func Load() (Config, error) {
	cfg := Config{}
	var missingVars []string

	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", "")
	cfg.DumpPath = getEnv("DUMP_PATH", "")

	if cfg.DatabaseURL == "" {
		missingVars = append(missingVars, "DATABASE_URL")
	}
	if cfg.GeminiAPIKey == "" {
		missingVars = append(missingVars, "GEMINI_API_KEY")
	}
	if cfg.DumpPath == "" {
		missingVars = append(missingVars, "DUMP_PATH")
	}
	if len(missingVars) > 0 {
		return cfg, fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}

	cfg.GeminiModel = getEnv("GEMINI_MODEL", "gemini-2.0-flash")

	var err error
	cfg.GeminiTimeout, err = time.ParseDuration(getEnv("GEMINI_TIMEOUT", "60s"))
	if err != nil {
		slog.Warn("Invalid GEMINI_TIMEOUT", "value", getEnv("GEMINI_TIMEOUT", "60s"), "error", err)
		cfg.GeminiTimeout = 60 * time.Second
	}
	cfg.MaxAttempts, err = strconv.Atoi(getEnv("MAX_ATTEMPTS", "3"))
	if err != nil || cfg.MaxAttempts < 1 {
		slog.Warn("Invalid MAX_ATTEMPTS", "value", getEnv("MAX_ATTEMPTS", "3"), "error", err)
		cfg.MaxAttempts = 3
	}

	cfg.LogFile = getEnv("LOG_FILE", "logs/ingest.log")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "0.0.0.0:9094")

	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, _ = strconv.Atoi(getEnv("REDIS_DB", "0"))
	cfg.AuthorCachePrefix = getEnv("AUTHOR_CACHE_PREFIX", "quoteminer:author:")
	cfg.AuthorCacheTTL, _ = time.ParseDuration(getEnv("AUTHOR_CACHE_TTL", "168h"))

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
