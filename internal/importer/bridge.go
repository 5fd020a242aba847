// Package importer turns picker results into local files a poller can
// open.
//
// A request starts with RequestFilePicker, which allocates a token and
// posts the picker launch to the UI thread. The result comes back through
// OnResult on the UI thread. Results that match an awaiting token are
// copied into the import directory and the resulting absolute path is
// queued for PollSelectedFile. Every failure degrades to "nothing was
// imported"; no error or panic escapes the bridge.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"oxygencrate/internal/logging"
	"oxygencrate/internal/metrics"
	"oxygencrate/internal/queue"
	"oxygencrate/internal/uithread"
)

// DefaultFallbackPrefix names imports whose display name is unknown.
const DefaultFallbackPrefix = "Imported"

const recordTimeout = 5 * time.Second

var errResolverPanic = errors.New("importer: content resolver panicked")

// Bridge owns the import directory and the queue of imported paths.
type Bridge struct {
	dir      string
	poster   uithread.Poster
	launcher Launcher
	resolver ContentResolver

	recorder       Recorder
	metrics        *metrics.Metrics
	logger         *logging.Logger
	crash          *logging.CrashHandler
	now            func() time.Time
	fallbackPrefix string
	firstToken     RequestToken
	dirMode        os.FileMode
	fileMode       os.FileMode

	requests *requests
	paths    *queue.Queue[string]
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRecorder reports every resolved request to r.
func WithRecorder(r Recorder) Option {
	return func(b *Bridge) { b.recorder = r }
}

// WithMetrics counts picker requests and import outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithLogger sets the bridge logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithCrashHandler sets the handler absorbing collaborator panics.
func WithCrashHandler(h *logging.CrashHandler) Option {
	return func(b *Bridge) { b.crash = h }
}

// WithClock sets the clock used for fallback names and records.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// WithFallbackPrefix changes the prefix of generated names.
func WithFallbackPrefix(prefix string) Option {
	return func(b *Bridge) {
		if prefix != "" {
			b.fallbackPrefix = prefix
		}
	}
}

// WithFirstToken changes the first request token.
func WithFirstToken(tok RequestToken) Option {
	return func(b *Bridge) { b.firstToken = tok }
}

// WithModes sets the permissions of created directories and files.
func WithModes(dir, file os.FileMode) Option {
	return func(b *Bridge) {
		if dir != 0 {
			b.dirMode = dir
		}
		if file != 0 {
			b.fileMode = file
		}
	}
}

// NewBridge returns a bridge importing into dir.
func NewBridge(dir string, poster uithread.Poster, launcher Launcher, resolver ContentResolver, opts ...Option) (*Bridge, error) {
	switch {
	case dir == "":
		return nil, errors.New("importer: import directory is required")
	case poster == nil:
		return nil, errors.New("importer: UI thread poster is required")
	case launcher == nil:
		return nil, errors.New("importer: picker launcher is required")
	case resolver == nil:
		return nil, errors.New("importer: content resolver is required")
	}

	b := &Bridge{
		dir:            dir,
		poster:         poster,
		launcher:       launcher,
		resolver:       resolver,
		now:            time.Now,
		fallbackPrefix: DefaultFallbackPrefix,
		firstToken:     FirstRequestToken,
		dirMode:        0o755,
		fileMode:       0o644,
		paths:          queue.New[string](),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.Default().WithComponent("importer")
	}
	if b.crash == nil {
		b.crash = logging.NewCrashHandler(b.logger)
	}
	b.requests = newRequests(b.firstToken)
	return b, nil
}

// Dir returns the import directory.
func (b *Bridge) Dir() string { return b.dir }

// RequestFilePicker allocates a token, marks it awaiting and posts the
// picker launch to the UI thread. It returns without waiting.
func (b *Bridge) RequestFilePicker() RequestToken {
	tok := b.requests.allocate()
	b.metrics.PickerRequested()

	if !b.poster.Post(func() { b.launch(tok) }) {
		b.requests.resolve(tok)
		b.logger.Warn("UI thread rejected picker launch", slog.Int("request_token", int(tok)))
		b.finish(Record{Token: tok, Outcome: OutcomeFailed, Err: "ui thread unavailable", At: b.now()})
	}
	return tok
}

func (b *Bridge) launch(tok RequestToken) {
	var err error
	if !b.crash.Recover("launch picker", func() { err = b.launcher.Launch(tok) }) {
		err = errors.New("picker launcher panicked")
	}
	if err == nil {
		return
	}

	// No result will ever arrive for a launch that failed.
	if b.requests.resolve(tok) != nil {
		return
	}
	b.logger.Warn("picker launch failed", slog.Int("request_token", int(tok)), slog.Any("error", err))
	b.finish(Record{Token: tok, Outcome: OutcomeFailed, Err: err.Error(), At: b.now()})
}

// OnResult handles a picker result on the UI thread.
func (b *Bridge) OnResult(res Result) {
	b.crash.Recover("import result", func() { b.handle(res) })
}

func (b *Bridge) handle(res Result) {
	log := b.logger.With(slog.Int("request_token", int(res.Token)))

	if err := b.requests.resolve(res.Token); err != nil {
		b.metrics.ImportResult(metrics.ImportIgnored)
		log.Debug("ignoring picker result", slog.Any("error", err))
		return
	}

	if res.Canceled || res.ContentRef == "" {
		log.Debug("picker closed without a selection")
		b.finish(Record{Token: res.Token, Outcome: OutcomeCanceled, At: b.now()})
		return
	}

	began := time.Now()
	rec := Record{Token: res.Token, ContentRef: res.ContentRef, At: b.now()}

	var permErr error = errResolverPanic
	b.crash.Recover("persist read access", func() {
		permErr = b.resolver.TakePersistableReadPermission(res.ContentRef, res.Flags&PersistableRead)
	})
	if permErr != nil {
		log.Warn("could not persist read access", slog.Any("error", permErr))
	}

	rec.DisplayName, rec.FallbackName = b.displayName(res.ContentRef)

	out, err := b.copy(res.ContentRef, rec.DisplayName)
	if err != nil {
		log.Warn("import failed",
			slog.String("display_name", rec.DisplayName),
			slog.Any("error", err),
		)
		rec.Outcome = OutcomeFailed
		rec.Err = err.Error()
		b.finish(rec)
		return
	}

	b.paths.Offer(out.path)
	b.metrics.ImportCompleted(out.size, time.Since(began))

	rec.Path = out.path
	rec.Size = out.size
	rec.Digest = out.digest
	rec.Outcome = OutcomeImported
	log.Info("imported file", slog.String("path", out.path), slog.Int64("size", out.size))
	b.finish(rec)
}

func (b *Bridge) displayName(ref string) (string, bool) {
	var (
		name string
		err  error = errResolverPanic
	)
	b.crash.Recover("query display name", func() { name, err = b.resolver.DisplayName(ref) })
	if err == nil {
		if clean := SanitizeName(name); clean != "" {
			return clean, false
		}
	} else {
		b.logger.Debug("display name unavailable", slog.Any("error", err))
	}
	return fmt.Sprintf("%s_%d", b.fallbackPrefix, b.now().UnixMilli()), true
}

func (b *Bridge) copy(ref, name string) (copied, error) {
	if err := os.MkdirAll(b.dir, b.dirMode); err != nil {
		return copied{}, fmt.Errorf("create import directory: %w", err)
	}

	var (
		src io.ReadCloser
		err error = errResolverPanic
	)
	b.crash.Recover("open content", func() { src, err = b.resolver.Open(ref) })
	if err != nil {
		return copied{}, fmt.Errorf("open content: %w", err)
	}
	if src == nil {
		return copied{}, ErrNoContent
	}
	defer src.Close()

	return copyInto(b.dir, name, src, b.fileMode)
}

func (b *Bridge) finish(rec Record) {
	b.metrics.ImportResult(string(rec.Outcome))
	if b.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := b.recorder.RecordImport(ctx, rec); err != nil {
		b.logger.Warn("could not record import",
			slog.Int("request_token", int(rec.Token)),
			slog.Any("error", err),
		)
	}
}

// PollSelectedFile removes and returns the oldest imported path, or ""
// when nothing is pending.
func (b *Bridge) PollSelectedFile() string {
	p, _ := b.paths.Poll()
	return p
}

// Pending returns the number of queued paths.
func (b *Bridge) Pending() int {
	return b.paths.Len()
}

// State reports where tok is in its lifecycle.
func (b *Bridge) State(tok RequestToken) RequestState {
	return b.requests.state(tok)
}

// Awaiting returns how many launched pickers have not reported back.
func (b *Bridge) Awaiting() int {
	return b.requests.awaiting()
}
