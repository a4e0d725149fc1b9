package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLocalStorage(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vf")
	s, err := NewLocalStorage(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TempRoot() != root {
		t.Errorf("expected temp root %s, got %s", root, s.TempRoot())
	}
	if _, err := os.Stat(filepath.Join(root, "delivery")); err != nil {
		t.Error("expected delivery directory to be created")
	}
}

func TestLocalStorage_JobDir(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dir, err := s.JobDir("dl-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(dir, filepath.Join("jobs", "dl-abc")) {
		t.Errorf("expected job-scoped path, got %s", dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Error("expected job directory to exist")
	}

	// Idempotent
	if _, err := s.JobDir("dl-abc"); err != nil {
		t.Errorf("second call failed: %v", err)
	}
}

func TestLocalStorage_CleanupJob(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dir, _ := s.JobDir("dl-abc")
	if err := os.WriteFile(filepath.Join(dir, "video.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := s.CleanupJob("dl-abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("expected job directory removed")
	}

	// Cleanup of a missing job is not an error
	if err := s.CleanupJob("dl-never-existed"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLocalStorage_SweepStale(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	staleDir, _ := s.JobDir("dl-stale")
	freshDir, _ := s.JobDir("dl-fresh")

	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(staleDir, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := s.SweepStale(24 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(staleDir); !os.IsNotExist(err) {
		t.Error("expected stale directory removed")
	}
	if _, err := os.Stat(freshDir); err != nil {
		t.Error("expected fresh directory kept")
	}
}

func TestLocalStorage_SweepStale_NoJobsDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vf")
	s, err := NewLocalStorage(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	removed, err := s.SweepStale(time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected 0 removals, got %d", removed)
	}
}

func TestLocalStorage_UploadAndSignedURL(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	payload := "fake media bytes"
	key := "downloads/dl-abc/123-deadbeef.mp4"
	err = s.Upload(ctx, key, strings.NewReader(payload), int64(len(payload)), "video/mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	url, err := s.SignedURL(ctx, key, 6*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Errorf("expected file:// URL, got %s", url)
	}

	data, err := os.ReadFile(filepath.Join(s.TempRoot(), "delivery", "downloads", "dl-abc", "123-deadbeef.mp4"))
	if err != nil {
		t.Fatalf("read delivered file: %v", err)
	}
	if string(data) != payload {
		t.Errorf("delivered content mismatch: %q", data)
	}
}

func TestLocalStorage_SignedURL_MissingKey(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.SignedURL(context.Background(), "downloads/nope.mp4", time.Hour); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLocalStorage_Upload_CancelledContext(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.Upload(ctx, "k", strings.NewReader("x"), 1, "video/mp4")
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
