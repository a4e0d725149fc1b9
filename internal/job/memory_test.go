package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vidfetch/vidfetch-api/internal/extract"
)

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := New("dl-1", "https://example.com/v", "720p_video", "720p", extract.FormatVideo)
	if err := repo.Save(ctx, j); err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err := repo.FindByID(ctx, "dl-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.URL != j.URL {
		t.Errorf("expected URL %s, got %s", j.URL, found.URL)
	}

	// Returned job is a clone; mutations must not reach the store
	found.Title = "mutated"
	again, _ := repo.FindByID(ctx, "dl-1")
	if again.Title == "mutated" {
		t.Error("repository must hand out clones")
	}
}

func TestMemoryRepository_SaveUpdates(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := New("dl-1", "https://example.com/v", "720p_video", "720p", extract.FormatVideo)
	_ = repo.Save(ctx, j)

	_ = j.Start()
	j.ApplyProgress(extract.ProgressEvent{Percent: 42})
	_ = repo.Save(ctx, j)

	found, err := repo.FindByID(ctx, "dl-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Status != StatusDownloading {
		t.Errorf("expected downloading, got %s", found.Status)
	}
	if found.Progress != 42 {
		t.Errorf("expected progress 42, got %v", found.Progress)
	}
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.FindByID(context.Background(), "dl-missing")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryRepository_List_NewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	older := New("dl-old", "https://example.com/1", "720p_video", "720p", extract.FormatVideo)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := New("dl-new", "https://example.com/2", "720p_video", "720p", extract.FormatVideo)

	_ = repo.Save(ctx, older)
	_ = repo.Save(ctx, newer)

	jobs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "dl-new" || jobs[1].ID != "dl-old" {
		t.Errorf("expected newest first, got %s then %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			j := New("dl-c", "https://example.com/v", "720p_video", "720p", extract.FormatVideo)
			_ = repo.Save(ctx, j)
		}
	}()
	for i := 0; i < 100; i++ {
		_, _ = repo.FindByID(ctx, "dl-c")
		_, _ = repo.List(ctx)
	}
	<-done
}
