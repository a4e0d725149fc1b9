package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vidfetch/vidfetch-api/internal/artifact"
	"github.com/vidfetch/vidfetch-api/internal/extract"
	"github.com/vidfetch/vidfetch-api/internal/job/id"
	"github.com/vidfetch/vidfetch-api/internal/storage"
)

// Pipeline tuning.
const (
	// retryWatermark is where progress restarts after a degraded-quality
	// retry. Not zero: the client should not see a full visual regression.
	retryWatermark = 5.0
	// validatedProgress and uploadedProgress report the post-subprocess
	// stages; the subprocess itself is capped at 90 by the parser.
	validatedProgress = 92.0
	uploadedProgress  = 97.0
	// defaultAcquireWait bounds how long a job waits for a worker slot
	// before failing as busy.
	defaultAcquireWait = 10 * time.Second
)

// DownloadInput contains the parameters of a download request.
type DownloadInput struct {
	// URL is the source media URL.
	URL string
	// Quality is the raw token of the form "<resolution>_<format>".
	Quality string
	// JobID optionally pins the job identifier; one is generated when empty.
	JobID string
}

// DownloadService orchestrates the download pipeline: it owns the job state
// machine and drives extraction, validation, upload and signed-URL issuance
// to exactly one terminal state per job.
type DownloadService struct {
	repo      Repository
	feed      *Feed
	extractor extract.Extractor
	store     storage.Storage
	logger    *slog.Logger

	sem          chan struct{}
	acquireWait  time.Duration
	maxAttempts  int
	signedURLTTL time.Duration
}

// ServiceOption configures a DownloadService.
type ServiceOption func(*DownloadService)

// WithMaxConcurrent bounds how many download pipelines run at once.
func WithMaxConcurrent(n int) ServiceOption {
	return func(s *DownloadService) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		}
	}
}

// WithMaxAttempts sets the total extraction attempts per job, including the
// first one.
func WithMaxAttempts(n int) ServiceOption {
	return func(s *DownloadService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithSignedURLTTL sets the retrieval URL expiry.
func WithSignedURLTTL(ttl time.Duration) ServiceOption {
	return func(s *DownloadService) {
		if ttl > 0 {
			s.signedURLTTL = ttl
		}
	}
}

// WithAcquireWait sets how long a job may wait for a worker slot.
func WithAcquireWait(d time.Duration) ServiceOption {
	return func(s *DownloadService) {
		if d > 0 {
			s.acquireWait = d
		}
	}
}

// NewDownloadService creates a DownloadService.
func NewDownloadService(
	repo Repository,
	feed *Feed,
	extractor extract.Extractor,
	store storage.Storage,
	logger *slog.Logger,
	opts ...ServiceOption,
) *DownloadService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DownloadService{
		repo:         repo,
		feed:         feed,
		extractor:    extractor,
		store:        store,
		logger:       logger,
		sem:          make(chan struct{}, 3),
		acquireWait:  defaultAcquireWait,
		maxAttempts:  3,
		signedURLTTL: 6 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob validates the request, creates the job record in pending status
// and persists it. Processing is started separately.
func (s *DownloadService) CreateJob(ctx context.Context, input DownloadInput) (*Job, error) {
	res, format, err := extract.ParseQuality(input.Quality)
	if err != nil {
		return nil, err
	}

	jobID := input.JobID
	if jobID == "" {
		jobID = id.Generate()
	}

	j := New(jobID, input.URL, input.Quality, res, format)

	s.logger.Info("creating download job",
		slog.String("job_id", j.ID),
		slog.String("url", input.URL),
		slog.String("quality", input.Quality),
	)

	if err := s.persist(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return j, nil
}

// GetJob retrieves a job by ID.
func (s *DownloadService) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// ListJobs returns all jobs, newest first.
func (s *DownloadService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Watch subscribes to live updates of one job.
func (s *DownloadService) Watch(jobID string) (<-chan *Job, func()) {
	return s.feed.Subscribe(jobID)
}

// Process runs the full pipeline for a previously created job. It is meant
// to run detached from the request cycle and never returns an error to its
// caller: the job record is the only error channel a client observes. The
// single failure boundary here guarantees exactly one terminal write even
// on panics; a job stranded in downloading forever is a correctness bug.
func (s *DownloadService) Process(ctx context.Context, j *Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("download pipeline panicked",
				slog.String("job_id", j.ID),
				slog.Any("panic", r),
			)
			s.markFailed(ctx, j, fmt.Errorf("pipeline panic: %v", r))
		}
	}()

	if !s.acquireSlot(ctx) {
		s.markFailed(ctx, j, errServerBusy)
		return
	}
	defer s.releaseSlot()

	// Accepted: the client sees "downloading" before the first byte flows.
	if err := j.Start(); err != nil {
		s.logger.Warn("job not startable",
			slog.String("job_id", j.ID),
			slog.String("status", string(j.GetStatus())),
		)
		return
	}
	if err := s.persist(ctx, j); err != nil {
		s.markFailed(ctx, j, err)
		return
	}

	cleanupTemp := true
	err := s.runPipeline(ctx, j, &cleanupTemp)
	if err != nil {
		s.markFailed(ctx, j, err)
	}
	if cleanupTemp {
		s.cleanup(j.ID)
	}
}

// errServerBusy marks a rejected job when no worker slot frees up in time.
var errServerBusy = errors.New("no download slot available")

func (s *DownloadService) acquireSlot(ctx context.Context) bool {
	timer := time.NewTimer(s.acquireWait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *DownloadService) releaseSlot() {
	<-s.sem
}

// runPipeline drives one job through metadata probe, extraction (with the
// bounded degraded-quality retry ladder), artifact validation, upload and
// signed-URL issuance. cleanupTemp is cleared when the artifact should be
// left on disk for the startup sweep instead of immediate removal.
func (s *DownloadService) runPipeline(ctx context.Context, j *Job, cleanupTemp *bool) error {
	md, err := s.extractor.Probe(ctx, j.URL)
	switch {
	case errors.Is(err, extract.ErrToolUnavailable):
		return err
	case err != nil:
		// Metadata is denormalized convenience, not the payload; the
		// download attempt still arbitrates success.
		s.logger.Warn("metadata probe failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		j.SetMetadata(&extract.Metadata{Title: j.URL})
	default:
		j.SetMetadata(md)
	}
	if err := s.persist(ctx, j); err != nil {
		return err
	}

	destDir, err := s.store.JobDir(j.ID)
	if err != nil {
		return fmt.Errorf("%w: temp space: %v", extract.ErrExtractionFailed, err)
	}

	if err := s.download(ctx, j, destDir); err != nil {
		return err
	}

	art, err := artifact.Locate(destDir)
	if err != nil {
		return err
	}
	if err := artifact.Validate(art, extract.Format(j.Format)); err != nil {
		return err
	}
	j.SetProgressFloor(validatedProgress)
	if err := s.persist(ctx, j); err != nil {
		return err
	}

	url, err := s.finalize(ctx, j, art)
	if err != nil {
		// Leave the artifact for next-run hygiene; a failed upload's temp
		// file is not worth racing over.
		*cleanupTemp = false
		return err
	}

	if err := j.Complete(formatSize(art.Size), url); err != nil {
		return nil // already terminal, nothing more to write
	}
	if err := s.persist(ctx, j); err != nil {
		s.logger.Error("failed to persist completed job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("download completed",
		slog.String("job_id", j.ID),
		slog.String("file_size", j.FileSize),
	)
	return nil
}

// download runs the extraction subprocess, walking the degraded-resolution
// ladder on retryable failures. Attempts are fully independent process
// invocations; the attempt counter and ladder make the retry bound
// mechanically checkable.
func (s *DownloadService) download(ctx context.Context, j *Job, destDir string) error {
	res := extract.Resolution(j.Resolution)
	format := extract.Format(j.Format)

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		req := extract.Request{
			URL:        j.URL,
			Resolution: res,
			Format:     format,
			DestDir:    destDir,
		}

		s.logger.Info("starting extraction attempt",
			slog.String("job_id", j.ID),
			slog.Int("attempt", attempt),
			slog.String("resolution", string(res)),
		)

		_, err := s.extractor.Download(ctx, req, func(ev extract.ProgressEvent) {
			j.ApplyProgress(ev)
			if perr := s.persist(ctx, j); perr != nil {
				s.logger.Warn("failed to persist progress",
					slog.String("job_id", j.ID),
					slog.String("error", perr.Error()),
				)
			}
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if !extract.Retryable(err) {
			return err
		}
		next, ok := res.Degrade()
		if !ok || attempt == s.maxAttempts {
			return err
		}

		s.logger.Warn("extraction attempt failed, degrading resolution",
			slog.String("job_id", j.ID),
			slog.Int("attempt", attempt),
			slog.String("from", string(res)),
			slog.String("to", string(next)),
			slog.String("error", err.Error()),
		)

		res = next
		j.ResetProgress(retryWatermark)
		if perr := s.persist(ctx, j); perr != nil {
			return perr
		}
	}
	return lastErr
}

// finalize uploads the validated artifact and issues the signed retrieval
// URL. The upload key embeds the job id, a timestamp, a random component
// and the extension observed on disk, since the tool may have substituted the
// container format.
func (s *DownloadService) finalize(ctx context.Context, j *Job, art artifact.Artifact) (string, error) {
	key := fmt.Sprintf("downloads/%s/%d-%s%s",
		j.ID, time.Now().Unix(), uuid.NewString()[:8], art.Ext())

	f, err := os.Open(art.Path)
	if err != nil {
		return "", fmt.Errorf("%w: open artifact: %v", extract.ErrUploadFailed, err)
	}
	defer f.Close()

	if err := s.store.Upload(ctx, key, f, art.Size, contentTypeFor(art.Ext())); err != nil {
		return "", fmt.Errorf("%w: %v", extract.ErrUploadFailed, err)
	}
	j.SetProgressFloor(uploadedProgress)
	if err := s.persist(ctx, j); err != nil {
		return "", err
	}

	url, err := s.store.SignedURL(ctx, key, s.signedURLTTL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", extract.ErrSignURLFailed, err)
	}
	return url, nil
}

// markFailed performs the terminal failed write with the user-reportable
// message for err. A second terminal attempt is rejected by the state
// machine and only logged.
func (s *DownloadService) markFailed(ctx context.Context, j *Job, err error) {
	msg := userMessage(err)

	if terr := j.Fail(msg); terr != nil {
		s.logger.Warn("skipping duplicate terminal write",
			slog.String("job_id", j.ID),
			slog.String("status", string(j.GetStatus())),
		)
		return
	}

	s.logger.Info("download failed",
		slog.String("job_id", j.ID),
		slog.String("message", msg),
		slog.String("error", err.Error()),
	)

	if perr := s.persist(ctx, j); perr != nil {
		s.logger.Error("failed to persist failed job",
			slog.String("job_id", j.ID),
			slog.String("error", perr.Error()),
		)
	}
}

// persist saves the job and fans the snapshot out to watchers.
func (s *DownloadService) persist(ctx context.Context, j *Job) error {
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}
	if s.feed != nil {
		s.feed.Publish(j)
	}
	return nil
}

func (s *DownloadService) cleanup(jobID string) {
	if err := s.store.CleanupJob(jobID); err != nil {
		s.logger.Warn("temp cleanup failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// userMessage maps a pipeline error to the message the client sees. The
// raw diagnostic stays in the logs; each taxonomy class gets a distinct,
// remediation-friendly message.
func userMessage(err error) string {
	switch {
	case errors.Is(err, extract.ErrToolUnavailable):
		return "The download engine is unavailable. Please try again later."
	case errors.Is(err, extract.ErrTimeout):
		return "The download timed out. Try a lower quality."
	case errors.Is(err, extract.ErrExtractionFailed):
		return "Extraction failed. The source may be restricted, removed or unsupported."
	case errors.Is(err, extract.ErrNoArtifact):
		return "The download finished but no media file was produced."
	case errors.Is(err, extract.ErrArtifactTooSmall):
		return "The downloaded file was incomplete. Try a lower quality."
	case errors.Is(err, extract.ErrBadSignature):
		return "The downloaded file is not recognizable media. Check the URL."
	case errors.Is(err, extract.ErrUploadFailed):
		return "Storing the downloaded file failed. Please try again later."
	case errors.Is(err, extract.ErrSignURLFailed):
		return "Preparing the retrieval link failed. Please try again later."
	case errors.Is(err, errServerBusy):
		return "The server is busy. Please try again in a few minutes."
	default:
		return "An unexpected error occurred during the download."
	}
}

// formatSize renders a byte count the way the client displays it.
func formatSize(n int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.2f GB", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.2f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.2f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// contentTypeFor maps an observed artifact extension to a MIME type.
func contentTypeFor(ext string) string {
	switch ext {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
