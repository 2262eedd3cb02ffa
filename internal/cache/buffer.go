package cache

import (
	"iter"
	"slices"
	"time"

	pkgcache "github.com/jittakal/kaflogcache/pkg/cache"
	"github.com/jittakal/kaflogcache/pkg/event"
)

// BoundedBuffer is an append-only sequence of records limited by the sum of
// their sizes. It does no locking; the owning cache serializes access.
type BoundedBuffer[T pkgcache.Sizer] struct {
	records        []T
	capacity       int64
	occupied       int64
	firstWriteTime time.Time
	lastWriteTime  time.Time
}

// NewBoundedBuffer creates an empty buffer that holds at most capacity units.
func NewBoundedBuffer[T pkgcache.Sizer](capacity int64) *BoundedBuffer[T] {
	return &BoundedBuffer[T]{capacity: capacity}
}

// Append adds record to the tail of the buffer.
// It returns false and leaves the buffer untouched when the record does not fit.
func (b *BoundedBuffer[T]) Append(record T) bool {
	size := record.Size()
	if size < 0 || size > b.capacity-b.occupied {
		return false
	}

	b.records = append(b.records, record)
	b.occupied += size

	now := time.Now()
	if b.firstWriteTime.IsZero() {
		b.firstWriteTime = now
	}
	b.lastWriteTime = now

	return true
}

// OccupiedSize returns the summed size of all buffered records.
func (b *BoundedBuffer[T]) OccupiedSize() int64 {
	return b.occupied
}

// Capacity returns the size limit the buffer was created with.
func (b *BoundedBuffer[T]) Capacity() int64 {
	return b.capacity
}

// Len returns the number of buffered records.
func (b *BoundedBuffer[T]) Len() int {
	return len(b.records)
}

// Records returns the buffered records in append order.
// The slice aliases the buffer and is only valid until the buffer is reused.
func (b *BoundedBuffer[T]) Records() []T {
	return b.records
}

// All iterates over the buffered records in append order.
func (b *BoundedBuffer[T]) All() iter.Seq[T] {
	return slices.Values(b.records)
}

// Stats summarizes the buffer for rotation decisions.
func (b *BoundedBuffer[T]) Stats() event.FileStats {
	return event.FileStats{
		RecordCount:    len(b.records),
		SizeBytes:      b.occupied,
		FirstWriteTime: b.firstWriteTime,
		LastWriteTime:  b.lastWriteTime,
	}
}

// reset empties the buffer, keeping its backing array for reuse.
func (b *BoundedBuffer[T]) reset() {
	clear(b.records)
	b.records = b.records[:0]
	b.occupied = 0
	b.firstWriteTime = time.Time{}
	b.lastWriteTime = time.Time{}
}
