// Package portal opens the desktop file chooser through
// xdg-desktop-portal over D-Bus.
//
// A Picker is an importer.Launcher. Launch asks the portal for an OpenFile
// dialog and returns once the portal has accepted the request; the user's
// choice arrives later as a Response signal on the request handle and is
// handed to the deliver callback as an importer.Result.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"oxygencrate/internal/importer"
	"oxygencrate/internal/logging"
)

// D-Bus names used by the portal.
const (
	DesktopService    = "org.freedesktop.portal.Desktop"
	DesktopPath       = "/org/freedesktop/portal/desktop"
	FileChooserOpen   = "org.freedesktop.portal.FileChooser.OpenFile"
	RequestInterface  = "org.freedesktop.portal.Request"
	ResponseMember    = "Response"
	requestPathPrefix = "/org/freedesktop/portal/desktop/request/"
	handleTokenPrefix = "oxygencrate"
)

// Response codes of org.freedesktop.portal.Request.Response.
const (
	ResponseSuccess  uint32 = 0
	ResponseCanceled uint32 = 1
	ResponseOther    uint32 = 2
)

// ErrNoConnection is returned when the picker has no bus.
var ErrNoConnection = errors.New("portal: no session bus connection")

// bus is the part of *dbus.Conn the picker uses.
type bus interface {
	Names() []string
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
}

type openFileFunc func(ctx context.Context, parent, title string, options map[string]dbus.Variant) (dbus.ObjectPath, error)

// Picker launches portal file choosers and reports their results.
type Picker struct {
	bus      bus
	openFile openFileFunc
	deliver  func(importer.Result)

	mu     sync.Mutex
	title  string
	modal  bool
	parent string

	logger *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ importer.Launcher = (*Picker)(nil)

// Option configures a Picker.
type Option func(*Picker)

// WithTitle sets the dialog title.
func WithTitle(title string) Option {
	return func(p *Picker) { p.title = title }
}

// WithModal makes the dialog modal to its parent.
func WithModal(modal bool) Option {
	return func(p *Picker) { p.modal = modal }
}

// WithParentWindow sets the portal parent window identifier,
// e.g. "x11:1a00003".
func WithParentWindow(parent string) Option {
	return func(p *Picker) { p.parent = parent }
}

// X11Parent formats an X11 window ID as a portal parent identifier.
func X11Parent(window uintptr) string {
	return fmt.Sprintf("x11:%x", window)
}

// WithLogger sets the picker logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Picker) { p.logger = l }
}

// Connect opens a private session bus connection.
func Connect() (*dbus.Conn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return conn, nil
}

// New returns a picker on conn. deliver receives every result and is
// called from a background goroutine; callers post it to the UI thread.
func New(conn *dbus.Conn, deliver func(importer.Result), opts ...Option) (*Picker, error) {
	if conn == nil {
		return nil, ErrNoConnection
	}
	desktop := conn.Object(DesktopService, DesktopPath)
	open := func(ctx context.Context, parent, title string, options map[string]dbus.Variant) (dbus.ObjectPath, error) {
		var handle dbus.ObjectPath
		err := desktop.CallWithContext(ctx, FileChooserOpen, 0, parent, title, options).Store(&handle)
		return handle, err
	}
	return newPicker(conn, open, deliver, opts...), nil
}

func newPicker(b bus, open openFileFunc, deliver func(importer.Result), opts ...Option) *Picker {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Picker{
		bus:      b,
		openFile: open,
		deliver:  deliver,
		title:    "Import file",
		modal:    true,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.Default().WithComponent("portal")
	}
	return p
}

// HandleToken derives the portal handle_token for a request token. The
// suffix keeps tokens unique across process restarts.
func HandleToken(tok importer.RequestToken, suffix string) string {
	return fmt.Sprintf("%s_%d_%s", handleTokenPrefix, tok, suffix)
}

// RequestPath predicts the request object path the portal will use for
// a sender's handle token.
func RequestPath(uniqueName, handleToken string) dbus.ObjectPath {
	sender := strings.ReplaceAll(strings.TrimPrefix(uniqueName, ":"), ".", "_")
	return dbus.ObjectPath(requestPathPrefix + sender + "/" + handleToken)
}

// SetParentWindow changes the parent used by later dialogs. The window
// usually becomes known only after the picker has been created.
func (p *Picker) SetParentWindow(parent string) {
	p.mu.Lock()
	p.parent = parent
	p.mu.Unlock()
}

// Configure changes the title and modality of later dialogs.
func (p *Picker) Configure(title string, modal bool) {
	p.mu.Lock()
	p.title = title
	p.modal = modal
	p.mu.Unlock()
}

// Launch implements importer.Launcher.
func (p *Picker) Launch(tok importer.RequestToken) error {
	if p.ctx.Err() != nil {
		return ErrNoConnection
	}
	names := p.bus.Names()
	if len(names) == 0 {
		return ErrNoConnection
	}

	token := HandleToken(tok, strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	expected := RequestPath(names[0], token)

	signals := make(chan *dbus.Signal, 4)
	p.bus.Signal(signals)
	if err := p.bus.AddMatchSignal(matchFor(expected)...); err != nil {
		p.bus.RemoveSignal(signals)
		return fmt.Errorf("subscribe to portal response: %w", err)
	}

	p.mu.Lock()
	parent, title, modal := p.parent, p.title, p.modal
	p.mu.Unlock()

	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(token),
		"modal":        dbus.MakeVariant(modal),
		"multiple":     dbus.MakeVariant(false),
	}
	handle, err := p.openFile(p.ctx, parent, title, options)
	if err != nil {
		p.unsubscribe(signals, expected)
		return fmt.Errorf("open file chooser: %w", err)
	}

	// Older portals ignore handle_token and pick their own path.
	if handle != expected {
		if err := p.bus.AddMatchSignal(matchFor(handle)...); err != nil {
			p.unsubscribe(signals, expected)
			return fmt.Errorf("subscribe to portal response: %w", err)
		}
		p.bus.RemoveMatchSignal(matchFor(expected)...)
	}

	p.logger.Debug("file chooser opened",
		slog.Int("request_token", int(tok)),
		slog.String("handle", string(handle)),
	)

	p.wg.Add(1)
	go p.await(tok, handle, signals)
	return nil
}

func (p *Picker) await(tok importer.RequestToken, handle dbus.ObjectPath, signals chan *dbus.Signal) {
	defer p.wg.Done()
	defer p.unsubscribe(signals, handle)

	for {
		select {
		case <-p.ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if sig.Path != handle || sig.Name != RequestInterface+"."+ResponseMember {
				continue
			}

			code, uris, err := ParseResponse(sig)
			if err != nil {
				p.logger.Warn("malformed portal response", slog.Any("error", err))
				code = ResponseOther
			}
			if code == ResponseOther {
				p.logger.Warn("file chooser failed", slog.Int("request_token", int(tok)))
			}
			p.deliver(ResultFor(tok, code, uris))
			return
		}
	}
}

func (p *Picker) unsubscribe(signals chan *dbus.Signal, path dbus.ObjectPath) {
	p.bus.RemoveMatchSignal(matchFor(path)...)
	p.bus.RemoveSignal(signals)
}

func matchFor(path dbus.ObjectPath) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(RequestInterface),
		dbus.WithMatchMember(ResponseMember),
	}
}

// ParseResponse decodes the body of a Response signal.
func ParseResponse(sig *dbus.Signal) (uint32, []string, error) {
	if sig == nil || len(sig.Body) < 2 {
		return ResponseOther, nil, errors.New("portal: short response body")
	}
	code, ok := sig.Body[0].(uint32)
	if !ok {
		return ResponseOther, nil, fmt.Errorf("portal: response code has type %T", sig.Body[0])
	}
	results, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return code, nil, fmt.Errorf("portal: response results have type %T", sig.Body[1])
	}

	var uris []string
	if v, ok := results["uris"]; ok {
		if err := v.Store(&uris); err != nil {
			return code, nil, fmt.Errorf("portal: decode uris: %w", err)
		}
	}
	return code, uris, nil
}

// ResultFor maps a portal response to a picker result. Anything but a
// successful response with at least one URI is a cancellation.
func ResultFor(tok importer.RequestToken, code uint32, uris []string) importer.Result {
	if code != ResponseSuccess || len(uris) == 0 || uris[0] == "" {
		return importer.Result{Token: tok, Canceled: true}
	}
	return importer.Result{
		Token:      tok,
		ContentRef: uris[0],
		Flags:      importer.PersistableRead,
	}
}

// Close stops waiting for outstanding dialogs.
func (p *Picker) Close() error {
	p.cancel()
	p.wg.Wait()
	return nil
}
