package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// LocalStorage implements the Storage interface using local disk. Uploads
// land in a delivery directory under the temp root and signed URLs are
// file:// links; suitable for development and tests, swap for S3Storage in
// production.
type LocalStorage struct {
	tempRoot    string
	deliveryDir string
}

// NewLocalStorage creates a LocalStorage rooted at tempRoot.
// If tempRoot is empty, a directory under os.TempDir() is used.
func NewLocalStorage(tempRoot string) (*LocalStorage, error) {
	if tempRoot == "" {
		tempRoot = filepath.Join(os.TempDir(), "vidfetch")
	}

	deliveryDir := filepath.Join(tempRoot, "delivery")
	if err := os.MkdirAll(deliveryDir, 0750); err != nil {
		return nil, fmt.Errorf("create delivery directory: %w", err)
	}

	return &LocalStorage{tempRoot: tempRoot, deliveryDir: deliveryDir}, nil
}

// TempRoot returns the temporary root directory path.
func (s *LocalStorage) TempRoot() string {
	return s.tempRoot
}

// JobDir creates and returns the temp directory scoped to jobID.
func (s *LocalStorage) JobDir(jobID string) (string, error) {
	dir := filepath.Join(s.tempRoot, "jobs", jobID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create job directory: %w", err)
	}
	return dir, nil
}

// CleanupJob removes the job's temp directory.
func (s *LocalStorage) CleanupJob(jobID string) error {
	if err := os.RemoveAll(filepath.Join(s.tempRoot, "jobs", jobID)); err != nil {
		return fmt.Errorf("remove job directory: %w", err)
	}
	return nil
}

// SweepStale removes job temp directories older than maxAge. Run at startup
// to reclaim space left behind by jobs that failed after upload errors or a
// crash.
func (s *LocalStorage) SweepStale(maxAge time.Duration) (int, error) {
	jobsDir := filepath.Join(s.tempRoot, "jobs")
	entries, err := os.ReadDir(jobsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read jobs directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(jobsDir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Upload copies data into the delivery directory under key.
func (s *LocalStorage) Upload(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dest := filepath.Join(s.deliveryDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("create delivery path: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create delivery file: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("write delivery file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("close delivery file: %w", err)
	}
	return nil
}

// SignedURL returns a file:// URL for a delivered key. Local URLs carry no
// real expiry; the ttl parameter is accepted for interface parity.
func (s *LocalStorage) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	dest := filepath.Join(s.deliveryDir, filepath.FromSlash(key))
	if _, err := os.Stat(dest); err != nil {
		return "", fmt.Errorf("signed URL for %s: %w", key, err)
	}
	return (&url.URL{Scheme: "file", Path: dest}).String(), nil
}

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)
