package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"quoteminer/packages/config"
	"quoteminer/packages/db"
	"quoteminer/packages/extractor"
	"quoteminer/packages/gemini"
	"quoteminer/packages/metrics"
	"quoteminer/packages/pipeline"
	"quoteminer/packages/retry"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

func setupLogger(cfg config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logDir := filepath.Dir(cfg.LogFile)
	if err := os.MkdirAll(logDir, 0750); err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error(
			"Failed to create log directory", "path", logDir, "error", err,
		)
	}

	logRotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    5,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}

	multiWriter := io.MultiWriter(os.Stdout, logRotator)

	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}).WithAttrs([]slog.Attr{slog.String("service", "quoteminer-ingest")})

	logger := slog.New(handler)
	slog.SetDefault(logger)
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, relying on system environment variables.")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("FATAL: Failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("--- Starting Quoteminer Ingest ---", "dump", cfg.DumpPath, "model", cfg.GeminiModel)

	storage, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	var cache *gemini.AuthorCache
	if cfg.RedisAddr != "" {
		cache = gemini.NewAuthorCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.AuthorCachePrefix, cfg.AuthorCacheTTL)
		defer cache.Close()
		slog.Info("Author classification cache enabled", "addr", cfg.RedisAddr)
	}

	client := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout, retry.New(cfg.MaxAttempts), cache)

	pipe := pipeline.New(client, storage, func(language string) (extractor.Extractor, error) {
		return extractor.ForLanguage(language, client)
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.MetricsAddr)
	})
	g.Go(func() error {
		defer cancel()
		return pipe.Run(gctx, cfg.DumpPath)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Ingestion run failed", "error", err)
		os.Exit(1)
	}
	slog.Info("--- Quoteminer Ingest Completed ---")
}
