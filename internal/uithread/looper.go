// Package uithread models the single thread that owns UI APIs.
//
// Code running elsewhere never calls into the UI toolkit directly. It posts
// a function to a Poster and the owner of the UI thread runs it, either by
// draining the Looper once per frame or by parking in Run.
package uithread

import (
	"context"
	"errors"
	"sync"

	"oxygencrate/internal/logging"
	"oxygencrate/internal/queue"
)

// ErrClosed is returned by Call once the looper no longer accepts work.
var ErrClosed = errors.New("uithread: looper closed")

// Poster schedules work on the UI thread. Post never blocks and reports
// whether the function was accepted.
type Poster interface {
	Post(f func()) bool
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(f func()) bool

// Post implements Poster.
func (p PosterFunc) Post(f func()) bool { return p(f) }

// Immediate runs posted functions synchronously on the caller's goroutine.
// It suits hosts where the caller already is the UI thread, and tests.
var Immediate Poster = PosterFunc(func(f func()) bool {
	f()
	return true
})

// Looper is an unbounded FIFO of functions executed by whichever goroutine
// acts as the UI thread.
type Looper struct {
	tasks  *queue.Queue[func()]
	wake   chan struct{}
	onPost func()
	crash  *logging.CrashHandler

	mu     sync.RWMutex
	closed bool
}

// Option configures a Looper.
type Option func(*Looper)

// WithWake registers a callback run after every accepted Post, typically a
// window invalidation so a frame-driven owner drains promptly.
func WithWake(f func()) Option {
	return func(l *Looper) { l.onPost = f }
}

// WithCrashHandler sets the handler that absorbs panics from tasks.
func WithCrashHandler(h *logging.CrashHandler) Option {
	return func(l *Looper) { l.crash = h }
}

// NewLooper returns an open looper.
func NewLooper(opts ...Option) *Looper {
	l := &Looper{
		tasks: queue.New[func()](),
		wake:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.crash == nil {
		l.crash = logging.NewCrashHandler(logging.Default().WithComponent("uithread"))
	}
	return l
}

// Post queues f for the UI thread. It returns false once the looper has
// been closed.
func (l *Looper) Post(f func()) bool {
	if f == nil {
		return false
	}

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return false
	}
	l.tasks.Offer(f)
	l.mu.RUnlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	if l.onPost != nil {
		l.onPost()
	}
	return true
}

// Drain runs every queued task, including tasks posted while draining, on
// the calling goroutine and returns how many ran.
func (l *Looper) Drain() int {
	n := 0
	for {
		f, ok := l.tasks.Poll()
		if !ok {
			return n
		}
		l.crash.Recover("uithread task", f)
		n++
	}
}

// Run makes the calling goroutine the UI thread until ctx is done or the
// looper is closed. Remaining tasks are drained before returning.
func (l *Looper) Run(ctx context.Context) error {
	for {
		l.Drain()
		if l.isClosed() {
			l.Drain()
			return ErrClosed
		}
		select {
		case <-ctx.Done():
			l.Drain()
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Call posts f and waits for it to finish, for ctx to end, or for the
// looper to close. It must not be called from the UI thread itself.
func (l *Looper) Call(ctx context.Context, f func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		f()
	}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued tasks.
func (l *Looper) Pending() int {
	return l.tasks.Len()
}

// Close stops accepting new tasks and wakes Run.
func (l *Looper) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Looper) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}
