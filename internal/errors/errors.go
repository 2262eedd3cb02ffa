// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/hyp3rd/ewrap"

	"github.com/jittakal/kaflogcache/pkg/event"
)

// Sentinel errors for common conditions.
var (
	// ErrCacheClosed is returned by a swap request once the cache has been
	// closed and no producer activity remains to hand over.
	ErrCacheClosed = ewrap.New("cache is closed")

	ErrConsumerClosed     = ewrap.New("consumer is closed")
	ErrInvalidEvent       = ewrap.New("invalid event")
	ErrWriterClosed       = ewrap.New("storage writer is closed")
	ErrNoRecords          = ewrap.New("no records to write")
	ErrUnsupportedFormat  = ewrap.New("unsupported file format")
	ErrUnsupportedBackend = ewrap.New("unsupported storage backend")
	ErrConnectionLost     = ewrap.New("connection lost")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// ProcessingError represents an error during event processing.
type ProcessingError struct {
	PartitionID event.PartitionID
	Offset      int64
	EventID     string
	Err         error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error: partition=%s offset=%d event_id=%s: %v",
		e.PartitionID, e.Offset, e.EventID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ValidationError represents an event validation failure.
type ValidationError struct {
	EventID string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: event_id=%s field=%s: %s",
		e.EventID, e.Field, e.Reason)
}

// Is lets callers match any validation failure against ErrInvalidEvent.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidEvent
}

// StorageError represents a storage operation failure.
type StorageError struct {
	Backend   string
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: backend=%s operation=%s path=%s: %v",
		e.Backend, e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// CommitError represents an offset commit failure.
type CommitError struct {
	PartitionID event.PartitionID
	Offset      int64
	Err         error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit error: partition=%s offset=%d: %v",
		e.PartitionID, e.Offset, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	return errors.Is(err, ErrConnectionLost)
}

// IsRetryable reports whether the failed storage operation may succeed on a later attempt.
func (e *StorageError) IsRetryable() bool {
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "create"
}

// IsRetryable determines if a ProcessingError is retryable.
func (e *ProcessingError) IsRetryable() bool {
	return IsRetryable(e.Err)
}
