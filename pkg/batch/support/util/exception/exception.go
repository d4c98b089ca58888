// Package exception provides the error types shared by the postchunk pipeline.
// Errors are categorised as skippable (a single record may be dropped and the run continues)
// or fatal (the run is aborted and reported as failed).
package exception

import (
	"errors"
	"fmt"
	"strings"
)

// Module names used as BatchError.Module.
const (
	ModuleConfig    = "config"
	ModuleReader    = "reader"
	ModuleAssembler = "assembler"
	ModuleWriter    = "writer"
	ModuleJob       = "job"
)

var (
	// ErrTablesMissing reports that one of the source or destination tables does not exist.
	ErrTablesMissing = errors.New("Required database tables do not exist")
	// ErrChunkTableMissing reports that the destination chunk table does not exist.
	ErrChunkTableMissing = errors.New("facebook_chunks table does not exist")
)

// BatchError is a custom error type that occurs during batch processing.
// It holds the module where the error occurred, a message, the wrapped original error,
// and flags indicating whether it is retryable or skippable.
type BatchError struct {
	// Module indicates the module where the error occurred (e.g., "reader", "writer", "config").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error

	isRetryable bool
	isSkippable bool
}

// NewBatchError creates a new BatchError instance.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
	}
}

// NewBatchErrorf creates a fatal BatchError with a formatted message.
// If the last argument is an error it is wrapped and not used for formatting.
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	if len(a) > 0 {
		if err, ok := a[len(a)-1].(error); ok {
			originalErr = err
			a = a[:len(a)-1]
		}
	}
	return NewBatchError(module, fmt.Sprintf(format, a...), originalErr, false, false)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// AsBatchError returns the first BatchError in err's chain, if any.
func AsBatchError(err error) (*BatchError, bool) {
	var be *BatchError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsSkippable reports whether err carries a skippable BatchError anywhere in its chain.
func IsSkippable(err error) bool {
	be, ok := AsBatchError(err)
	return ok && be.IsSkippable()
}

// IsFatal determines if an error is fatal (cannot be retried or skipped).
// Errors that are not BatchErrors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if be, ok := AsBatchError(err); ok {
		return !be.IsRetryable() && !be.IsSkippable()
	}
	return true
}

// IsTableNotExistError reports whether err looks like a missing-table error from
// PostgreSQL, MySQL or SQLite.
func IsTableNotExistError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTablesMissing) || errors.Is(err, ErrChunkTableMissing) {
		return true
	}
	errMsg := err.Error()
	return (strings.Contains(errMsg, "relation \"") && strings.Contains(errMsg, "\" does not exist")) || // PostgreSQL
		(strings.Contains(errMsg, "Error 1146") && strings.Contains(errMsg, "doesn't exist")) || // MySQL
		strings.Contains(errMsg, "no such table:") // SQLite
}

// ExtractErrorMessage extracts the error message string from an error.
// For BatchError, it returns the cleaner Message field, followed by the cause when present.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if be, ok := err.(*BatchError); ok {
		if be.OriginalErr != nil {
			return be.Message + ": " + be.OriginalErr.Error()
		}
		return be.Message
	}
	return err.Error()
}
