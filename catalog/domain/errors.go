package domain

import (
	"errors"
	"fmt"
)

// ErrJobNotFound is returned when polling an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// ValidationError rejects a request before any work starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError is a filesystem failure that aborts the enclosing operation.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConversionError is a single image that could not be re-encoded.
type ConversionError struct {
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion of %s failed: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ImportError is captured on a job record. Collection is empty for
// envelope-level failures.
type ImportError struct {
	Collection string
	Err        error
}

func (e *ImportError) Error() string {
	if e.Collection == "" {
		return "import failed: " + e.Err.Error()
	}
	return fmt.Sprintf("import of %s failed: %v", e.Collection, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// ArchiveStreamError is a failure while writing a bundled export.
type ArchiveStreamError struct {
	Entry string
	Err   error
}

func (e *ArchiveStreamError) Error() string {
	return fmt.Sprintf("archive stream failed at %s: %v", e.Entry, e.Err)
}

func (e *ArchiveStreamError) Unwrap() error { return e.Err }
