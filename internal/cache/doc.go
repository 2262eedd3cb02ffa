// Package cache provides the write-behind double buffer that sits between
// the Kafka consumers and the storage flusher.
//
// # Bounded buffers
//
// BoundedBuffer is an append-only list of records whose summed Size never
// exceeds the capacity it was created with. A record that would overflow the
// buffer is rejected and the buffer is left unchanged:
//
//	buf := cache.NewBoundedBuffer[event.Record](1 << 20)
//	if !buf.Append(record) {
//	    // record dropped
//	}
//
// BoundedBuffer does no locking of its own.
//
// # Double buffer
//
// DoubleBufferCache owns two bounded buffers of equal capacity. One faces the
// producers, the other faces the single consumer:
//
//	c := cache.New[event.Record](capacity,
//	    cache.WithName("app-logs"),
//	    cache.WithLogger(logger),
//	)
//
//	// producers, from any goroutine
//	c.Push(record)
//
//	// consumer, from one goroutine
//	for {
//	    if err := c.RequestSwap(ctx); err != nil {
//	        break
//	    }
//	    persist(c.ConsumerView().Records())
//	    c.Release()
//	}
//
//	c.Close()
//	c.ShutdownReport()
//
// RequestSwap blocks until at least one Push has happened since the previous
// swap, so the consumer never spins on an idle cache. It returns early when
// the context ends or when the cache is closed with nothing left to hand over.
//
// # Drops
//
// Push never waits for the consumer. Records that do not fit in the
// producer-facing buffer, and records pushed after Close, are counted and
// discarded. ShutdownReport logs the total together with whatever is still
// held in either buffer.
package cache
