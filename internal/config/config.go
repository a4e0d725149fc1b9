// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrTempDirRequired is returned when TEMP_DIR resolves to an empty path.
	ErrTempDirRequired = errors.New("config: TEMP_DIR is required")
	// ErrSignedURLTTLInvalid is returned when SIGNED_URL_TTL_HOURS is not positive.
	ErrSignedURLTTLInvalid = errors.New("config: SIGNED_URL_TTL_HOURS must be positive")
	// ErrDownloadTimeoutInvalid is returned when DOWNLOAD_TIMEOUT_MIN is not positive.
	ErrDownloadTimeoutInvalid = errors.New("config: DOWNLOAD_TIMEOUT_MIN must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Extraction tool settings
	YtdlpPath  string `env:"YTDLP_PATH, default=yt-dlp" json:"ytdlp_path"`
	FfmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/vidfetch" json:"temp_dir"`

	// Download settings
	DownloadTimeoutMin     int `env:"DOWNLOAD_TIMEOUT_MIN, default=10" json:"download_timeout_min"`
	MaxConcurrentDownloads int `env:"MAX_CONCURRENT_DOWNLOADS, default=3" json:"max_concurrent_downloads"`
	MaxAttempts            int `env:"MAX_ATTEMPTS, default=3" json:"max_attempts"`

	// Job record store settings
	DBDriver string `env:"DB_DRIVER, default=memory" json:"db_driver"` // "memory", "sqlite" or "postgres"
	DBDSN    string `env:"DB_DSN" json:"-"`                            // Masked in JSON

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	SignedURLTTLHours  int    `env:"SIGNED_URL_TTL_HOURS, default=6" json:"signed_url_ttl_hours"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// DownloadTimeout returns the per-attempt wall-clock budget for the
// extraction subprocess.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutMin) * time.Minute
}

// SignedURLTTL returns the expiry for retrieval URLs.
func (c *Config) SignedURLTTL() time.Duration {
	return time.Duration(c.SignedURLTTLHours) * time.Hour
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and sane.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TempDir) == "" {
		return ErrTempDirRequired
	}
	if c.SignedURLTTLHours <= 0 {
		return ErrSignedURLTTLInvalid
	}
	if c.DownloadTimeoutMin <= 0 {
		return ErrDownloadTimeoutInvalid
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, YtdlpPath: %s, TempDir: %s, DownloadTimeoutMin: %d, MaxConcurrentDownloads: %d, DBDriver: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.YtdlpPath,
		c.TempDir,
		c.DownloadTimeoutMin,
		c.MaxConcurrentDownloads,
		c.DBDriver,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
