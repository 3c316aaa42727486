package bundler

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by a Provider wraps exactly one of these,
// so callers can branch with errors.Is.
var (
	// ErrFileNotFound is returned when a local file is missing at add or
	// fetch time, or when remote content cannot be retrieved.
	ErrFileNotFound = errors.New("file does not exist")

	// ErrRemoteFetchFailed is returned when a remote reference answers with a
	// non-2xx status or the transport fails. It also matches ErrFileNotFound.
	ErrRemoteFetchFailed = fmt.Errorf("%w: remote fetch failed", ErrFileNotFound)

	// ErrDirectoryNotFound is returned when the output directory is missing
	// and could not be created.
	ErrDirectoryNotFound = errors.New("build directory does not exist")

	// ErrDirectoryNotWritable is returned when the output directory exists
	// but files cannot be created in it.
	ErrDirectoryNotWritable = errors.New("build directory is not writable")

	// ErrCannotRemoveFile is returned when a stale artifact cannot be purged.
	ErrCannotRemoveFile = errors.New("file cannot be removed")

	// ErrCannotSaveFile is returned when the artifact cannot be written.
	ErrCannotSaveFile = errors.New("file cannot be saved")
)

// Error describes a failed bundling step together with the path or URL it
// concerned.
type Error struct {
	Op   string // step that failed, e.g. "add" or "purge"
	Path string // file, directory or URL involved
	Kind error  // one of the Err* kinds above
	Err  error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op, path string, kind, err error) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Err: err}
}

// ValidationError collects the errors found while registering several
// references at once with WithAccumulateErrors enabled.
type ValidationError struct {
	Errors []error
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	if len(ve.Errors) == 1 {
		return fmt.Sprintf("validation failed: %v", ve.Errors[0])
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "validation failed with %d errors:\n", len(ve.Errors))
	for i, err := range ve.Errors {
		fmt.Fprintf(&buf, "  %d. %v\n", i+1, err)
	}
	return buf.String()
}

// Unwrap returns the underlying errors for use with errors.Is and errors.As.
func (ve *ValidationError) Unwrap() []error {
	return ve.Errors
}

// newValidationError creates a ValidationError from a slice of errors.
// Returns nil if the slice is empty.
func newValidationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: errs}
}
