package storage

import (
	"os"
	"strings"
	"testing"
)

func testS3Config() S3Config {
	return S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566", // LocalStack-like endpoint
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}
}

func TestNewS3Storage(t *testing.T) {
	s, err := NewS3Storage(t.TempDir(), testS3Config())
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}
	if s.bucket != "test-bucket" {
		t.Errorf("bucket = %v, want test-bucket", s.bucket)
	}
}

func TestS3Storage_InheritsLocalTempSpace(t *testing.T) {
	root := t.TempDir()
	s, err := NewS3Storage(root, testS3Config())
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	// Temp-space operations stay local even with S3 delivery configured
	dir, err := s.JobDir("dl-x")
	if err != nil {
		t.Fatalf("JobDir: %v", err)
	}
	if !strings.HasPrefix(dir, root) {
		t.Errorf("expected job dir under %s, got %s", root, dir)
	}
	if err := s.CleanupJob("dl-x"); err != nil {
		t.Fatalf("CleanupJob: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("expected job dir removed")
	}
}
