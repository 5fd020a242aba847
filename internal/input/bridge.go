package input

import (
	"log/slog"

	"oxygencrate/internal/logging"
	"oxygencrate/internal/metrics"
	"oxygencrate/internal/queue"
)

// Bridge turns key-down events into a FIFO of code points.
//
// OnKeyEvent belongs to the UI thread; PollCharacter may be called from
// any goroutine. Neither blocks.
type Bridge struct {
	chars   *queue.Queue[rune]
	keymap  CharacterMap
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics counts key events and polls.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithLogger sets the logger for debug output.
func WithLogger(l *logging.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// NewBridge returns a bridge decoding with km, or USKeyboard when km is nil.
func NewBridge(km CharacterMap, opts ...Option) *Bridge {
	if km == nil {
		km = USKeyboard
	}
	b := &Bridge{
		chars:  queue.New[rune](),
		keymap: km,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.Default().WithComponent("input")
	}
	return b
}

// OnKeyEvent handles a key event on the UI thread and reports whether a
// character was queued. Only key-downs are decoded; a zero or negative
// decode (dead keys, unmapped chords) is dropped.
func (b *Bridge) OnKeyEvent(ev KeyEvent) bool {
	if ev.Action != ActionDown {
		b.metrics.KeyEvent(metrics.KeyIgnored)
		return false
	}

	r := b.keymap.Get(ev.Code, ev.Meta)
	if r <= 0 {
		b.metrics.KeyEvent(metrics.KeyDropped)
		b.logger.Debug("key produced no character",
			slog.Int("code", int(ev.Code)),
			slog.Int("meta", int(ev.Meta)),
		)
		return false
	}

	b.Enqueue(r)
	return true
}

// Enqueue queues an already decoded code point. Non-positive values are
// ignored.
func (b *Bridge) Enqueue(r rune) {
	if r <= 0 {
		return
	}
	b.chars.Offer(r)
	b.metrics.KeyEvent(metrics.KeyQueued)
}

// PollCharacter removes and returns the oldest queued code point, or 0
// when nothing is pending.
func (b *Bridge) PollCharacter() rune {
	r, ok := b.chars.Poll()
	if !ok {
		return 0
	}
	b.metrics.CharacterPolled()
	return r
}

// Pending returns the number of queued code points.
func (b *Bridge) Pending() int {
	return b.chars.Len()
}
