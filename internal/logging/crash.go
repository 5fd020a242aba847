package logging

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
)

// CrashHandler turns panics inside bridge callbacks into log entries.
// Nothing recovered here is re-raised: the UI loop and the polling loop
// keep running.
type CrashHandler struct {
	logger  *Logger
	onCrash func(panicValue any, stack []byte)
	count   atomic.Uint64
}

// NewCrashHandler returns a handler logging through l (Default when nil).
func NewCrashHandler(l *Logger) *CrashHandler {
	if l == nil {
		l = Default()
	}
	return &CrashHandler{logger: l}
}

// OnCrash registers a callback run after a panic has been logged.
func (h *CrashHandler) OnCrash(fn func(panicValue any, stack []byte)) {
	h.onCrash = fn
}

// Recovered returns how many panics the handler has absorbed.
func (h *CrashHandler) Recovered() uint64 {
	return h.count.Load()
}

// Recover runs fn and reports whether it returned without panicking.
func (h *CrashHandler) Recover(op string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.handle(op, r)
			ok = false
		}
	}()
	fn()
	return true
}

func (h *CrashHandler) handle(op string, v any) {
	h.count.Add(1)
	stack := debug.Stack()
	h.logger.Error("recovered panic",
		slog.String("op", op),
		slog.String("panic", fmt.Sprint(v)),
		slog.String("stack", string(stack)),
	)
	if h.onCrash != nil {
		h.onCrash(v, stack)
	}
}

// Recover runs fn under a crash handler bound to the default logger.
func Recover(op string, fn func()) bool {
	return NewCrashHandler(nil).Recover(op, fn)
}
