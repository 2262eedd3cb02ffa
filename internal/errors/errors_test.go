package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jittakal/kaflogcache/pkg/event"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrCacheClosed", ErrCacheClosed},
		{"ErrConsumerClosed", ErrConsumerClosed},
		{"ErrInvalidEvent", ErrInvalidEvent},
		{"ErrWriterClosed", ErrWriterClosed},
		{"ErrNoRecords", ErrNoRecords},
		{"ErrUnsupportedFormat", ErrUnsupportedFormat},
		{"ErrUnsupportedBackend", ErrUnsupportedBackend},
		{"ErrConnectionLost", ErrConnectionLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
			assert.True(t, Is(tt.err, tt.err))
		})
	}
}

func TestProcessingError(t *testing.T) {
	baseErr := stderrors.New("base error")
	procErr := &ProcessingError{
		PartitionID: event.PartitionID{Topic: "logs", Partition: 0},
		Offset:      100,
		EventID:     "event-123",
		Err:         baseErr,
	}

	assert.Contains(t, procErr.Error(), "partition=logs-0")
	assert.Contains(t, procErr.Error(), "offset=100")
	assert.True(t, Is(procErr, baseErr))
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{EventID: "evt-1", Field: "source", Reason: "required field is missing"}

	assert.Equal(t, "validation error: event_id=evt-1 field=source: required field is missing", err.Error())
	assert.True(t, Is(err, ErrInvalidEvent))

	wrapped := fmt.Errorf("ingest: %w", err)
	var target *ValidationError
	assert.True(t, As(wrapped, &target))
	assert.Equal(t, "source", target.Field)
}

func TestStorageError(t *testing.T) {
	baseErr := stderrors.New("access denied")
	err := &StorageError{Backend: "s3", Operation: "upload", Path: "s3://logs/a.parquet", Err: baseErr}

	assert.Contains(t, err.Error(), "backend=s3")
	assert.True(t, Is(err, baseErr))
}

func TestCommitError(t *testing.T) {
	baseErr := stderrors.New("session closed")
	err := &CommitError{PartitionID: event.PartitionID{Topic: "logs", Partition: 2}, Offset: 7, Err: baseErr}

	assert.Contains(t, err.Error(), "partition=logs-2")
	assert.True(t, Is(err, baseErr))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: stderrors.New("boom"), want: false},
		{name: "connection lost", err: ErrConnectionLost, want: true},
		{name: "wrapped connection lost", err: fmt.Errorf("dial: %w", ErrConnectionLost), want: true},
		{name: "upload failure", err: &StorageError{Operation: "upload"}, want: true},
		{name: "encode failure", err: &StorageError{Operation: "encode"}, want: false},
		{
			name: "processing error wrapping upload failure",
			err:  &ProcessingError{Err: &StorageError{Operation: "write"}},
			want: true,
		},
		{
			name: "processing error wrapping validation failure",
			err:  &ProcessingError{Err: &ValidationError{Field: "id"}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
