// Package errors defines the sentinel errors shared across the retrieval
// engine, plus an AppError wrapper carrying a human-readable message.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrCorpusUnavailable means the corpus source itself is unreadable.
	// It is fatal for a build.
	ErrCorpusUnavailable = errors.New("corpus unavailable")

	// ErrDocumentParse marks a single malformed document. Builds skip and
	// count these rather than aborting.
	ErrDocumentParse = errors.New("document parse error")

	// ErrIndexNotFound means no index artifacts exist at the configured
	// location and no index has been published in-process.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexCorrupt means persisted index artifacts exist but fail magic,
	// version, length, or checksum validation.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrBuildInProgress is returned when a build is requested while another
	// one is still running. Builds are rejected, never queued.
	ErrBuildInProgress = errors.New("index build already in progress")

	// ErrInvalidTopK is returned when a caller asks for a result count
	// outside the allowed range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidInput covers malformed caller input other than top_k.
	ErrInvalidInput = errors.New("invalid input")
)

// AppError wraps a sentinel with context about where it happened.
type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps a sentinel error with a message.
func New(sentinel error, message string) *AppError {
	return &AppError{Err: sentinel, Message: message}
}

// Newf wraps a sentinel error with a formatted message.
func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{Err: sentinel, Message: fmt.Sprintf(format, args...)}
}
