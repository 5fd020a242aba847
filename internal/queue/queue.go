// Package queue provides the unbounded mailbox used to hand events from the
// UI thread to the application loop.
//
// A Queue never blocks: Offer always succeeds and Poll returns immediately,
// reporting false when nothing is queued. Items are handed to exactly one
// caller of Poll, in the order they were offered.
package queue

import "sync"

// compactThreshold is the number of consumed slots tolerated at the front of
// the buffer before the live items are shifted down.
const compactThreshold = 64

// Queue is an unbounded, ordered, concurrency-safe FIFO.
// The zero value is an empty queue ready for use.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Offer appends v to the tail of the queue.
func (q *Queue[T]) Offer(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
}

// Poll removes and returns the head of the queue.
// It returns the zero value and false if the queue is empty.
func (q *Queue[T]) Poll() (T, bool) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return zero, false
	}

	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return v, true
}

// PollOr is Poll with a caller-chosen sentinel for the empty case.
func (q *Queue[T]) PollOr(sentinel T) T {
	if v, ok := q.Poll(); ok {
		return v
	}
	return sentinel
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Drain removes every queued item and returns them in order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return nil
	}
	out := make([]T, len(q.items)-q.head)
	copy(out, q.items[q.head:])
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
	return out
}
