// Package job provides the DownloadJob aggregate and the orchestration
// service that drives a download request from acceptance to a terminal
// state. It includes the job state machine, repository ports, and a change
// feed for live client updates.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/vidfetch/vidfetch-api/internal/extract"
)

// Status represents the current state of a DownloadJob.
type Status string

const (
	// StatusPending indicates the request is accepted but not yet picked up.
	StatusPending Status = "pending"
	// StatusDownloading indicates the pipeline is running.
	StatusDownloading Status = "downloading"
	// StatusCompleted indicates the artifact was validated, uploaded and a
	// retrieval URL issued.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the job ended with a user-reportable error.
	StatusFailed Status = "failed"
	// StatusCancelled is reserved for external cancellation; the pipeline
	// itself never produces it.
	StatusCancelled Status = "cancelled"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed. Terminal
// states allow nothing, which is what guarantees at most one terminal write.
var validTransitions = map[Status][]Status{
	StatusPending:     {StatusDownloading, StatusFailed, StatusCancelled},
	StatusDownloading: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:   {},
	StatusFailed:      {},
	StatusCancelled:   {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// placeholders shown to the client while live values are unavailable.
const (
	placeholderSpeed = "--"
	placeholderETA   = "--"
)

// Job represents a download job aggregate: the persisted unit of work
// tracking one request end-to-end.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string `gorm:"type:text;primaryKey" json:"id"`
	// URL is the source media URL.
	URL string `gorm:"not null" json:"url"`
	// Quality is the raw client token (e.g. "1080p_both").
	Quality string `json:"quality"`
	// Resolution is the parsed height-ceiling token.
	Resolution string `json:"resolution"`
	// Format is the parsed stream class (video, audio, both).
	Format string `json:"format"`

	// Denormalized source metadata, fetched once and immutable afterwards.
	Title        string  `json:"title"`
	ThumbnailURL string  `json:"thumbnail_url"`
	DurationSec  float64 `json:"duration_sec"`
	Uploader     string  `json:"uploader"`

	// Status is the current job state.
	Status Status `gorm:"default:pending;index" json:"status"`
	// Progress is the completion percentage (0-100), monotonically
	// non-decreasing within an attempt.
	Progress float64 `json:"progress"`
	// Speed is a best-effort transfer rate string.
	Speed string `json:"speed"`
	// ETA is a best-effort remaining-time string.
	ETA string `json:"eta"`
	// ErrorMessage is set exactly once, on failure.
	ErrorMessage string `json:"error_message,omitempty"`

	// FileSize is the human-readable result size, set once on success.
	FileSize string `json:"file_size,omitempty"`
	// RetrievalURL is the time-bounded signed URL, set once on success.
	RetrievalURL string `json:"retrieval_url,omitempty"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for GORM mapping.
func (*Job) TableName() string {
	return "download_jobs"
}

// New creates a Job in pending status for the given request parameters.
func New(id, url, quality string, res extract.Resolution, format extract.Format) *Job {
	now := time.Now()
	return &Job{
		ID:         id,
		URL:        url,
		Quality:    quality,
		Resolution: string(res),
		Format:     string(format),
		Status:     StatusPending,
		Speed:      placeholderSpeed,
		ETA:        placeholderETA,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()
	return nil
}

// Start transitions the job from pending to downloading.
func (j *Job) Start() error {
	return j.TransitionTo(StatusDownloading)
}

// Complete transitions the job to completed and records the result fields
// in the same mutation, so the terminal write persists atomically.
func (j *Job) Complete(fileSize, retrievalURL string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, StatusCompleted) {
		return ErrInvalidTransition
	}

	j.Status = StatusCompleted
	j.Progress = 100
	j.FileSize = fileSize
	j.RetrievalURL = retrievalURL
	j.Speed = placeholderSpeed
	j.ETA = placeholderETA
	j.UpdatedAt = time.Now()
	return nil
}

// Fail transitions the job to failed with a user-reportable message.
func (j *Job) Fail(message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, StatusFailed) {
		return ErrInvalidTransition
	}

	j.Status = StatusFailed
	j.ErrorMessage = message
	j.Speed = placeholderSpeed
	j.ETA = placeholderETA
	j.UpdatedAt = time.Now()
	return nil
}

// SetMetadata records the denormalized source metadata. Called once before
// the download starts.
func (j *Job) SetMetadata(md *extract.Metadata) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Title = md.Title
	j.ThumbnailURL = md.ThumbnailURL
	j.DurationSec = md.DurationSec
	j.Uploader = md.Uploader
	j.UpdatedAt = time.Now()
}

// progressCap bounds every non-terminal progress write. Exactly 100 is
// written only by Complete, so a reader seeing 100 can rely on the job
// being done.
const progressCap = 99.0

// ApplyProgress folds a progress event into the job. The percentage is
// clamped to never regress and to stay below 100 while the job is still
// running; speed and ETA replace previous values only when present.
func (j *Job) ApplyProgress(ev extract.ProgressEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if ev.Percent > j.Progress && ev.Percent <= 100 {
		j.Progress = min(ev.Percent, progressCap)
	}
	if ev.Speed != "" {
		j.Speed = ev.Speed
	}
	if ev.ETA != "" {
		j.ETA = ev.ETA
	}
	j.UpdatedAt = time.Now()
}

// SetProgressFloor raises the progress to at least pct. The orchestrator
// uses it to report the validation/upload stages that follow the subprocess.
func (j *Job) SetProgressFloor(pct float64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if pct > j.Progress && pct <= 100 {
		j.Progress = min(pct, progressCap)
		j.UpdatedAt = time.Now()
	}
}

// ResetProgress lowers the progress to the retry watermark. This is the
// only permitted downward move; it avoids showing a client 0% after a
// degraded-quality retry.
func (j *Job) ResetProgress(watermark float64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.Progress = watermark
	j.Speed = placeholderSpeed
	j.ETA = placeholderETA
	j.UpdatedAt = time.Now()
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// GetProgress returns the current progress (thread-safe).
func (j *Job) GetProgress() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Progress
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed || j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:           j.ID,
		URL:          j.URL,
		Quality:      j.Quality,
		Resolution:   j.Resolution,
		Format:       j.Format,
		Title:        j.Title,
		ThumbnailURL: j.ThumbnailURL,
		DurationSec:  j.DurationSec,
		Uploader:     j.Uploader,
		Status:       j.Status,
		Progress:     j.Progress,
		Speed:        j.Speed,
		ETA:          j.ETA,
		ErrorMessage: j.ErrorMessage,
		FileSize:     j.FileSize,
		RetrievalURL: j.RetrievalURL,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}
