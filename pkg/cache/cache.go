// Package cache defines the contracts between log producers and the
// write-behind cache.
package cache

// Sizer is implemented by anything that can be held in a bounded buffer.
// Size is expressed in the same unit as the buffer capacity.
type Sizer interface {
	Size() int64
}

// Pusher accepts records from producers.
// Push never blocks beyond a lock acquisition; false means the record was dropped.
type Pusher[T Sizer] interface {
	Push(record T) bool
}
