// Package bootstrap provides dependency initialization for the VidFetch API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/vidfetch/vidfetch-api/internal/config"
	"github.com/vidfetch/vidfetch-api/internal/job"
	"github.com/vidfetch/vidfetch-api/internal/storage"
	"github.com/vidfetch/vidfetch-api/internal/ytdlp"
)

// staleTempAge is the cutoff for the startup sweep of leftover job
// directories. Anything older than this belongs to a previous run.
const staleTempAge = 24 * time.Hour

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	DownloadService *job.DownloadService
	Extractor       *ytdlp.Client
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize yt-dlp client
	extractor := ytdlp.NewClient(
		ytdlp.WithBinary(cfg.YtdlpPath),
		ytdlp.WithFfmpeg(cfg.FfmpegPath),
		ytdlp.WithTimeout(cfg.DownloadTimeout()),
		ytdlp.WithLogger(logger),
	)

	// Initialize job repository
	repo, err := initRepository(cfg, logger)
	if err != nil {
		return nil, err
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

	return &Dependencies{
		DownloadService: svc,
		Extractor:       extractor,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
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
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		sweepStale(s3Store.LocalStorage, logger)
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	sweepStale(localStore, logger)
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

// initRepository selects the job record store based on DB_DRIVER.
func initRepository(cfg *config.Config, logger *slog.Logger) (job.Repository, error) {
	if cfg.DBDriver == "" || cfg.DBDriver == "memory" {
		logger.Info("in-memory job repository configured")
		return job.NewMemoryRepository(), nil
	}

	db, err := job.InitDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Info("database job repository configured",
		slog.String("driver", cfg.DBDriver),
	)
	return job.NewGormRepository(db), nil
}

// sweepStale removes job temp directories left over from earlier runs.
// Failure is logged but never blocks startup.
func sweepStale(store *storage.LocalStorage, logger *slog.Logger) {
	removed, err := store.SweepStale(staleTempAge)
	if err != nil {
		logger.Warn("stale temp sweep failed", slog.Any("error", err))
		return
	}
	if removed > 0 {
		logger.Info("removed stale job directories", slog.Int("count", removed))
	}
}
