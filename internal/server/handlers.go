package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/vidfetch/vidfetch-api/internal/extract"
	"github.com/vidfetch/vidfetch-api/internal/job"
)

// ToolChecker reports whether the extraction tool can be invoked. Used for
// health checks and request preflight.
type ToolChecker interface {
	Available() error
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.DownloadService
	tool               ToolChecker
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateDownload only creates the job and returns
// immediately without starting the pipeline. Used in tests.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.DownloadService, tool ToolChecker, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		tool:               tool,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Extractor: "available"}
	if h.tool != nil {
		if err := h.tool.Available(); err != nil {
			resp.Extractor = "unavailable"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateDownload handles POST /downloads requests. The request is rejected
// immediately on malformed input or an unreachable extraction tool;
// otherwise the job is accepted and the pipeline runs detached from the
// request cycle.
func (h *Handlers) CreateDownload(w http.ResponseWriter, r *http.Request) {
	var req CreateDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	if h.tool != nil {
		if err := h.tool.Available(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "extraction tool unavailable", "TOOL_UNAVAILABLE")
			return
		}
	}

	input := job.DownloadInput{
		URL:     req.URL,
		Quality: req.Quality,
		JobID:   req.JobID,
	}

	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		if errors.Is(err, extract.ErrInvalidQuality) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_QUALITY")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Capture the response fields before handing the job to the background
	// worker. Once Process starts it mutates the job under its own lock and
	// the handler must not touch it again.
	jobID := createdJob.ID
	status := string(createdJob.GetStatus())

	// Start processing in background with a detached context.
	// Use context.WithoutCancel to prevent cancellation when the request ends.
	if h.enableAsyncProcess {
		go h.service.Process(context.WithoutCancel(r.Context()), createdJob)
	}

	h.logger.Info("download accepted",
		slog.String("job_id", jobID),
		slog.String("quality", req.Quality),
	)

	writeJSON(w, http.StatusAccepted, CreateDownloadResponse{
		Success: true,
		ID:      jobID,
		Status:  status,
	})
}

// GetDownload handles GET /downloads/{id} requests.
func (h *Handlers) GetDownload(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, newDownloadResponse(foundJob))
}

// ListDownloads handles GET /downloads requests.
func (h *Handlers) ListDownloads(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := make([]DownloadResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, newDownloadResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Events handles GET /downloads/{id}/events requests: a server-sent event
// stream of job snapshots, ending when the job reaches a terminal state or
// the client disconnects.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "STREAMING_UNSUPPORTED")
		return
	}

	// Subscribe before reading the current snapshot so no update between
	// the two is lost.
	updates, cancel := h.service.Watch(jobID)
	defer cancel()

	current, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if !h.writeEvent(w, flusher, current) {
		return
	}
	if isTerminal(current.Status) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if !h.writeEvent(w, flusher, snapshot) {
				return
			}
			if isTerminal(snapshot.Status) {
				return
			}
		}
	}
}

func (h *Handlers) writeEvent(w http.ResponseWriter, flusher http.Flusher, j *job.Job) bool {
	payload, err := json.Marshal(newDownloadResponse(j))
	if err != nil {
		h.logger.Error("failed to encode event", slog.String("error", err.Error()))
		return false
	}
	if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func isTerminal(s job.Status) bool {
	return s == job.StatusCompleted || s == job.StatusFailed || s == job.StatusCancelled
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
