// Package server provides the HTTP server for the vidfetch API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/vidfetch/vidfetch-api/internal/job"
)

// CreateDownloadRequest is the HTTP request body for submitting a download.
type CreateDownloadRequest struct {
	// URL is the source media URL.
	URL string `json:"url" validate:"required,url"`
	// Quality is the token "<resolution>_<format>", e.g. "1080p_both".
	Quality string `json:"quality" validate:"required"`
	// JobID optionally pins the job identifier (client-generated ids).
	JobID string `json:"jobId" validate:"omitempty,max=64"`
}

// CreateDownloadResponse is the HTTP response after accepting a download.
type CreateDownloadResponse struct {
	// Success indicates the request was accepted.
	Success bool `json:"success"`
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// DownloadResponse is the HTTP representation of a job record.
type DownloadResponse struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Quality      string    `json:"quality"`
	Title        string    `json:"title,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	DurationSec  float64   `json:"duration_sec,omitempty"`
	Uploader     string    `json:"uploader,omitempty"`
	Status       string    `json:"status"`
	Progress     float64   `json:"progress"`
	Speed        string    `json:"speed"`
	ETA          string    `json:"eta"`
	Error        string    `json:"error,omitempty"`
	FileSize     string    `json:"file_size,omitempty"`
	RetrievalURL string    `json:"retrieval_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// newDownloadResponse maps a job snapshot to its DTO.
func newDownloadResponse(j *job.Job) DownloadResponse {
	return DownloadResponse{
		ID:           j.ID,
		URL:          j.URL,
		Quality:      j.Quality,
		Title:        j.Title,
		ThumbnailURL: j.ThumbnailURL,
		DurationSec:  j.DurationSec,
		Uploader:     j.Uploader,
		Status:       string(j.Status),
		Progress:     j.Progress,
		Speed:        j.Speed,
		ETA:          j.ETA,
		Error:        j.ErrorMessage,
		FileSize:     j.FileSize,
		RetrievalURL: j.RetrievalURL,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// Extractor reports whether the extraction tool can be invoked.
	Extractor string `json:"extractor"`
}
