// Package storage provides temporary file space and blob-store delivery.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and S3.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage is the file-space contract the download pipeline depends on:
// a per-job temporary namespace plus blob upload and signed retrieval.
type Storage interface {
	// JobDir returns (creating it if needed) the temp directory scoped to
	// one job. Partitioning per job keeps a concurrent job's locator from
	// picking up another job's leftover file.
	JobDir(jobID string) (string, error)

	// CleanupJob removes a job's temp directory. Best-effort: callers log
	// failures but never fail a job on them.
	CleanupJob(jobID string) error

	// Upload stores data under key. contentType reflects the artifact
	// extension observed on disk.
	Upload(ctx context.Context, key string, data io.Reader, size int64, contentType string) error

	// SignedURL issues a time-bounded, credential-free retrieval URL for
	// an uploaded key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
