package archive

import (
	"fmt"
	"time"
)

// Status summarizes how a build ended.
type Status int

const (
	// StatusBuilt means an archive was written.
	StatusBuilt Status = iota
	// StatusSourceMissing means the source directory did not exist. It has
	// been created so it can be populated.
	StatusSourceMissing
	// StatusSourceEmpty means the source directory holds no images.
	StatusSourceEmpty
	// StatusFailed means every image failed ingestion.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusBuilt:
		return "built"
	case StatusSourceMissing:
		return "source_missing"
	case StatusSourceEmpty:
		return "source_empty"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// IngestionFailure records why one source file was skipped.
type IngestionFailure struct {
	File  string
	Stage string
	Err   error
}

func (f IngestionFailure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.File, f.Stage, f.Err)
}

func (f IngestionFailure) Unwrap() error { return f.Err }

// Report describes one build run.
type Report struct {
	BuildID  string
	Status   Status
	Source   string
	Indexed  int
	Skipped  int
	Failures []IngestionFailure
	// Tags counts indexed images per tag.
	Tags     map[string]int
	Duration time.Duration
}

// Message returns an operator-facing summary of the outcome.
func (r *Report) Message() string {
	switch r.Status {
	case StatusBuilt:
		return fmt.Sprintf("archive built: %d images indexed, %d skipped", r.Indexed, r.Skipped)
	case StatusSourceMissing:
		return fmt.Sprintf("created %s; add images and run the build again", r.Source)
	case StatusSourceEmpty:
		return fmt.Sprintf("%s has no images; add .png/.jpg files and run the build again", r.Source)
	case StatusFailed:
		return fmt.Sprintf("no valid images in %s: all %d files failed", r.Source, r.Skipped)
	}
	return r.Status.String()
}
