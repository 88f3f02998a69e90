package router

import "sync"

// GrowableBuffer is an unbounded FIFO queue between one fast producer
// (the router) and one slow consumer (a writer). It starts at a fixed
// capacity and doubles whenever it fills, so a database stall never
// blocks feed consumption; memory is the pressure valve.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	count  int
	closed bool

	received  int64
	delivered int64
	grows     int
}

// NewGrowableBuffer creates a buffer with the given initial capacity.
func NewGrowableBuffer[T any](initialCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	b := &GrowableBuffer[T]{ring: make([]T, initialCapacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send enqueues an item, growing the ring if it is full. Returns false
// once the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if b.count == len(b.ring) {
		b.grow()
	}

	b.ring[(b.head+b.count)%len(b.ring)] = item
	b.count++
	b.received++

	b.cond.Signal()
	return true
}

// Receive dequeues the oldest item, blocking until one is available.
// Returns false only when the buffer is closed and drained.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.take(), true
}

// TryReceive dequeues the oldest item without blocking.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.take(), true
}

// take removes and returns the head item. Callers hold b.mu.
func (b *GrowableBuffer[T]) take() T {
	item := b.ring[b.head]
	var zero T
	b.ring[b.head] = zero // release for GC
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	b.delivered++
	return item
}

// grow doubles the ring, unwrapping pending items to the front.
// Callers hold b.mu.
func (b *GrowableBuffer[T]) grow() {
	bigger := make([]T, len(b.ring)*2)
	n := copy(bigger, b.ring[b.head:])
	copy(bigger[n:], b.ring[:b.head])
	b.ring = bigger
	b.head = 0
	b.grows++
}

// Close marks the buffer closed. Senders get false; receivers drain the
// remaining items and then get false.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of pending items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current ring capacity.
func (b *GrowableBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// BufferStats is a point-in-time view of buffer activity.
type BufferStats struct {
	Depth     int
	Capacity  int
	Received  int64
	Delivered int64
	Grows     int
}

// Stats returns current buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Depth:     b.count,
		Capacity:  len(b.ring),
		Received:  b.received,
		Delivered: b.delivered,
		Grows:     b.grows,
	}
}
