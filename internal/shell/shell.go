// Package shell is the UI-shell lifecycle object.
//
// A Shell owns the input and import bridges together with the UI-thread
// poster and the optional host collaborators. UI callbacks (key dispatch,
// picker results, lifecycle) enter through the Shell on the UI thread;
// the application loop on its own goroutine only polls.
package shell

import (
	"errors"
	"log/slog"
	"sync"

	"oxygencrate/internal/config"
	"oxygencrate/internal/importer"
	"oxygencrate/internal/input"
	"oxygencrate/internal/logging"
	"oxygencrate/internal/metrics"
	"oxygencrate/internal/uithread"
)

// StoragePermission is the host's shared-storage permission flow.
type StoragePermission interface {
	// Granted reports whether the app may write the import root.
	Granted() bool
	// Request starts the primary permission flow.
	Request() error
	// RequestFallback starts the generic settings route, used once when
	// Request fails.
	RequestFallback() error
}

// SoftKeyboard shows and hides the on-screen keyboard. Both methods are
// called on the UI thread.
type SoftKeyboard interface {
	Show()
	Hide()
}

// PermissionStatus is what Create found or did about storage access.
type PermissionStatus int

const (
	PermissionUnmanaged PermissionStatus = iota
	PermissionGranted
	PermissionRequested
	PermissionRequestedFallback
	PermissionUnavailable
)

func (p PermissionStatus) String() string {
	switch p {
	case PermissionUnmanaged:
		return "unmanaged"
	case PermissionGranted:
		return "granted"
	case PermissionRequested:
		return "requested"
	case PermissionRequestedFallback:
		return "requested-fallback"
	case PermissionUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Shell wires host callbacks to the bridges.
type Shell struct {
	keys    *input.Bridge
	imports *importer.Bridge
	poster  uithread.Poster

	permission StoragePermission
	keyboard   SoftKeyboard
	metrics    *metrics.Metrics
	logger     *logging.Logger
	crash      *logging.CrashHandler

	closeMu sync.Mutex
	closers []func() error

	settingsMu sync.Mutex
	settings   *config.Config
}

// Option configures a Shell.
type Option func(*Shell)

// WithStoragePermission sets the permission flow run by Create.
func WithStoragePermission(p StoragePermission) Option {
	return func(s *Shell) { s.permission = p }
}

// WithSoftKeyboard sets the on-screen keyboard.
func WithSoftKeyboard(k SoftKeyboard) Option {
	return func(s *Shell) { s.keyboard = k }
}

// WithMetrics exposes m through Metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Shell) { s.metrics = m }
}

// WithLogger sets the shell logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// WithCloser registers a release function run by Close, in reverse order.
func WithCloser(fn func() error) Option {
	return func(s *Shell) {
		if fn != nil {
			s.closers = append(s.closers, fn)
		}
	}
}

// New returns a shell over the given bridges.
func New(keys *input.Bridge, imports *importer.Bridge, poster uithread.Poster, opts ...Option) (*Shell, error) {
	switch {
	case keys == nil:
		return nil, errors.New("shell: input bridge is required")
	case imports == nil:
		return nil, errors.New("shell: import bridge is required")
	case poster == nil:
		return nil, errors.New("shell: UI thread poster is required")
	}

	s := &Shell{keys: keys, imports: imports, poster: poster}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default().WithComponent("shell")
	}
	s.crash = logging.NewCrashHandler(s.logger)
	return s, nil
}

// Create runs the storage permission bootstrap. It is called once, on the
// UI thread, when the host window is created.
func (s *Shell) Create() PermissionStatus {
	if s.permission == nil {
		return PermissionUnmanaged
	}

	status := PermissionUnavailable
	s.crash.Recover("storage permission", func() {
		if s.permission.Granted() {
			status = PermissionGranted
			return
		}
		err := s.permission.Request()
		if err == nil {
			status = PermissionRequested
			return
		}
		s.logger.Warn("storage permission request failed, trying fallback", slog.Any("error", err))
		if err := s.permission.RequestFallback(); err != nil {
			s.logger.Error("storage permission unavailable", slog.Any("error", err))
			return
		}
		status = PermissionRequestedFallback
	})

	s.logger.Info("storage permission", slog.String("status", status.String()))
	return status
}

// DispatchKeyEvent feeds a UI key event to the input bridge and reports
// whether a character was queued.
func (s *Shell) DispatchKeyEvent(ev input.KeyEvent) bool {
	return s.keys.OnKeyEvent(ev)
}

// PollCharacter returns the oldest queued character or 0.
func (s *Shell) PollCharacter() rune {
	return s.keys.PollCharacter()
}

// RequestFilePicker asks the UI thread to open the picker.
func (s *Shell) RequestFilePicker() importer.RequestToken {
	return s.imports.RequestFilePicker()
}

// DeliverResult posts a picker result to the UI thread. Hosts that
// already run on the UI thread may call the import bridge's OnResult
// directly.
func (s *Shell) DeliverResult(res importer.Result) bool {
	ok := s.poster.Post(func() { s.imports.OnResult(res) })
	if !ok {
		s.logger.Warn("UI thread rejected picker result", slog.Int("request_token", int(res.Token)))
	}
	return ok
}

// PollSelectedFile returns the oldest imported path or "".
func (s *Shell) PollSelectedFile() string {
	return s.imports.PollSelectedFile()
}

// ShowSoftInput posts a request to show the on-screen keyboard.
func (s *Shell) ShowSoftInput() bool {
	return s.softInput("show soft input", func(k SoftKeyboard) { k.Show() })
}

// HideSoftInput posts a request to hide the on-screen keyboard.
func (s *Shell) HideSoftInput() bool {
	return s.softInput("hide soft input", func(k SoftKeyboard) { k.Hide() })
}

func (s *Shell) softInput(op string, fn func(SoftKeyboard)) bool {
	if s.keyboard == nil {
		return false
	}
	return s.poster.Post(func() {
		s.crash.Recover(op, func() { fn(s.keyboard) })
	})
}

// Keys returns the input bridge.
func (s *Shell) Keys() *input.Bridge { return s.keys }

// Imports returns the import bridge.
func (s *Shell) Imports() *importer.Bridge { return s.imports }

// Metrics returns the shell metrics, or nil when disabled.
func (s *Shell) Metrics() *metrics.Metrics { return s.metrics }

// Logger returns the shell logger.
func (s *Shell) Logger() *logging.Logger { return s.logger }

// Close runs registered release functions and returns the first error.
func (s *Shell) Close() error {
	s.closeMu.Lock()
	closers := s.closers
	s.closers = nil
	s.closeMu.Unlock()

	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
