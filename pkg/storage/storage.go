// Package storage defines interfaces for persisting cached log records.
//
// A Writer persists one batch of records per call, a Router decides where
// that batch goes, and a RotationPolicy tells the flusher when the
// producer-facing cache buffer is worth swapping out.
package storage

import (
	"context"

	"github.com/jittakal/kaflogcache/pkg/event"
)

// Writer writes event records to storage.
type Writer interface {
	// Write encodes records as one object below path and returns the
	// number of bytes stored. It is safe to call concurrently.
	Write(ctx context.Context, records []event.Record, path string, format event.FileFormat) (int64, error)

	// Close closes the writer and releases resources.
	Close() error
}

// Router determines storage paths for events based on partitioning strategy.
type Router interface {
	// Route returns the storage path for a partition at a given time.
	// timestamp is the event time in Unix seconds. specVersion is the
	// CloudEvents spec version (e.g. "1.0"); empty uses the router default.
	Route(partitionID event.PartitionID, timestamp int64, specVersion string) string
}

// RotationPolicy determines when buffered events should be flushed.
type RotationPolicy interface {
	// ShouldRotate returns true if the buffer should be flushed based on stats.
	ShouldRotate(stats event.FileStats) bool
}
