// Package main provides the entry point for the VidFetch API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vidfetch/vidfetch-api/internal/config"
	"github.com/vidfetch/vidfetch-api/internal/job"
	"github.com/vidfetch/vidfetch-api/internal/server"
	"github.com/vidfetch/vidfetch-api/internal/storage"
	"github.com/vidfetch/vidfetch-api/internal/ytdlp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present; real environment still wins
	_ = godotenv.Load()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting VidFetch API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("temp_dir", cfg.TempDir),
		slog.Int("max_concurrent_downloads", cfg.MaxConcurrentDownloads),
		slog.Int("download_timeout_min", cfg.DownloadTimeoutMin),
		slog.String("db_driver", cfg.DBDriver),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	// Initialize storage
	var store storage.Storage
	var local *storage.LocalStorage
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return fmt.Errorf("create S3 storage: %w", err)
		}
		store = s3Store
		local = s3Store.LocalStorage
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
	} else {
		localStore, err := storage.NewLocalStorage(cfg.TempDir)
		if err != nil {
			return fmt.Errorf("create local storage: %w", err)
		}
		store = localStore
		local = localStore
		logger.Info("local storage configured",
			slog.String("temp_dir", cfg.TempDir),
		)
	}

	// Sweep job directories left over from a previous run
	if removed, err := local.SweepStale(24 * time.Hour); err != nil {
		logger.Warn("stale temp sweep failed", slog.Any("error", err))
	} else if removed > 0 {
		logger.Info("removed stale job directories", slog.Int("count", removed))
	}

	// Initialize yt-dlp client
	extractor := ytdlp.NewClient(
		ytdlp.WithBinary(cfg.YtdlpPath),
		ytdlp.WithFfmpeg(cfg.FfmpegPath),
		ytdlp.WithTimeout(cfg.DownloadTimeout()),
		ytdlp.WithLogger(logger),
	)
	if err := extractor.Available(); err != nil {
		logger.Warn("extraction tool not available",
			slog.String("ytdlp_path", cfg.YtdlpPath),
			slog.Any("error", err),
		)
	}

	// Initialize job repository
	var repo job.Repository
	if cfg.DBDriver == "" || cfg.DBDriver == "memory" {
		repo = job.NewMemoryRepository()
	} else {
		db, err := job.InitDB(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		repo = job.NewGormRepository(db)
		logger.Info("database job repository configured",
			slog.String("driver", cfg.DBDriver),
		)
	}

	// Change feed for progress watchers
	feed := job.NewFeed()

	// Initialize DownloadService
	svc := job.NewDownloadService(
		repo,
		feed,
		extractor,
		store,
		logger,
		job.WithMaxConcurrent(cfg.MaxConcurrentDownloads),
		job.WithMaxAttempts(cfg.MaxAttempts),
		job.WithSignedURLTTL(cfg.SignedURLTTL()),
	)

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(svc, extractor, logger)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	// Create HTTP server
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
		// WriteTimeout stays unset so progress event streams can outlive
		// the longest download.
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
