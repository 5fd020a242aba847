package importer

import (
	"context"
	"errors"
	"io"
	"time"
)

// GrantFlags carries the access grants attached to a picker result.
type GrantFlags int32

// Grant bits. Values match the host platform.
const (
	GrantRead        GrantFlags = 0x1
	GrantWrite       GrantFlags = 0x2
	GrantPersistable GrantFlags = 0x40
)

// PersistableRead is the subset of grants taken when persisting access.
const PersistableRead = GrantRead | GrantPersistable

var (
	// ErrNoContent is returned for an empty content reference.
	ErrNoContent = errors.New("importer: no content reference")

	// ErrUnsupportedRef is returned for references a resolver cannot open.
	ErrUnsupportedRef = errors.New("importer: unsupported content reference")
)

// Launcher opens the OS document picker. It is called on the UI thread
// and must not block on the user's choice: the choice arrives later
// through Bridge.OnResult carrying the same token.
type Launcher interface {
	Launch(token RequestToken) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(token RequestToken) error

// Launch implements Launcher.
func (f LauncherFunc) Launch(token RequestToken) error { return f(token) }

// ContentResolver reads content behind an opaque reference.
type ContentResolver interface {
	// TakePersistableReadPermission keeps read access across restarts.
	TakePersistableReadPermission(ref string, flags GrantFlags) error

	// DisplayName returns the human-facing name of the content.
	DisplayName(ref string) (string, error)

	// Open returns a stream of the content bytes.
	Open(ref string) (io.ReadCloser, error)
}

// Result is a picker result as delivered on the UI thread.
type Result struct {
	Token      RequestToken
	Canceled   bool
	ContentRef string
	Flags      GrantFlags
}

// Outcome is the final state of a resolved request.
type Outcome string

const (
	OutcomeImported Outcome = "imported"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Record describes one resolved request.
type Record struct {
	Token        RequestToken
	ContentRef   string
	DisplayName  string
	FallbackName bool
	Path         string
	Size         int64
	Digest       []byte
	Outcome      Outcome
	Err          string
	At           time.Time
}

// Recorder receives a Record for every resolved request.
type Recorder interface {
	RecordImport(ctx context.Context, rec Record) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, rec Record) error

// RecordImport implements Recorder.
func (f RecorderFunc) RecordImport(ctx context.Context, rec Record) error { return f(ctx, rec) }
