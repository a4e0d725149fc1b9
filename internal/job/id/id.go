// Package id provides unique identifier generation for jobs.
package id

import (
	"github.com/google/uuid"
)

// Generate creates a new unique job ID.
// Format: dl-<uuid>
// Example: dl-9f1c2b4e-0f3a-4a7e-9c11-2d45c0a8b7f1
func Generate() string {
	return "dl-" + uuid.NewString()
}
