// Package queue buffers tick-engine events until a transport drains them.
// The engine must never block on a slow or absent consumer, so the buffer is
// bounded and sheds its oldest entries under pressure.
package queue

import (
	"sync"
)

// Queue is a thread-safe FIFO buffer with an optional bound. Producers push
// from the tick goroutine while transports drain from their own, so every
// method takes the lock.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	limit   int
	dropped uint64
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
	}
}

// NewBounded creates a queue that holds at most limit items. Pushing past
// the bound evicts the oldest items first: a stale energy reading is worth
// less than the one that just superseded it. A limit below 1 means
// unbounded.
func NewBounded[T any](limit int) *Queue[T] {
	q := New[T]()
	q.limit = limit
	return q
}

// Push appends items, evicting from the front if the bound is exceeded.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if q.limit > 0 && len(q.items) > q.limit {
		excess := len(q.items) - q.limit
		q.items = append(q.items[:0], q.items[excess:]...)
		q.dropped += uint64(excess)
	}
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many items eviction has discarded since creation.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Drain returns all buffered items in push order and empties the queue.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}
