package extract

import "errors"

// Error taxonomy for the download pipeline. Every failure surfaced to a job
// record wraps exactly one of these sentinels so the orchestrator can map it
// to a distinct, user-reportable message.
var (
	// ErrToolUnavailable indicates the extraction tool (or a required
	// companion such as ffmpeg) cannot be invoked at all.
	ErrToolUnavailable = errors.New("extraction tool unavailable")
	// ErrTimeout indicates the subprocess exceeded its wall-clock budget.
	ErrTimeout = errors.New("extraction timed out")
	// ErrExtractionFailed indicates the subprocess exited non-zero.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrNoArtifact indicates the subprocess reported success but no
	// matching output file exists on disk.
	ErrNoArtifact = errors.New("no output file produced")
	// ErrArtifactTooSmall indicates the output file is below the size floor
	// for its format class.
	ErrArtifactTooSmall = errors.New("output file too small")
	// ErrBadSignature indicates the output file carries no recognized
	// container signature for the requested format class.
	ErrBadSignature = errors.New("unrecognized container signature")
	// ErrUploadFailed indicates the blob store rejected the upload.
	ErrUploadFailed = errors.New("upload failed")
	// ErrSignURLFailed indicates signed-URL issuance failed after upload.
	ErrSignURLFailed = errors.New("signed URL issuance failed")
)

// Retryable reports whether a failure is eligible for the bounded
// degraded-quality retry. Only process-level failures qualify; a missing or
// invalid artifact after a clean exit points at a deeper mismatch that a
// lower resolution will not fix.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrExtractionFailed)
}
