package portal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oxygencrate/internal/importer"
)

type fakeBus struct {
	mu       sync.Mutex
	names    []string
	channels []chan<- *dbus.Signal
	matches  int
	removed  int
	matchErr error
}

func (b *fakeBus) Names() []string { return b.names }

func (b *fakeBus) Signal(ch chan<- *dbus.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, ch)
}

func (b *fakeBus) RemoveSignal(ch chan<- *dbus.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.channels {
		if c == ch {
			b.channels = append(b.channels[:i], b.channels[i+1:]...)
			return
		}
	}
}

func (b *fakeBus) AddMatchSignal(...dbus.MatchOption) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.matchErr != nil {
		return b.matchErr
	}
	b.matches++
	return nil
}

func (b *fakeBus) RemoveMatchSignal(...dbus.MatchOption) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removed++
	return nil
}

func (b *fakeBus) emit(sig *dbus.Signal) {
	b.mu.Lock()
	chans := append([]chan<- *dbus.Signal(nil), b.channels...)
	b.mu.Unlock()
	for _, ch := range chans {
		ch <- sig
	}
}

func (b *fakeBus) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels)
}

func response(path dbus.ObjectPath, code uint32, uris ...string) *dbus.Signal {
	results := map[string]dbus.Variant{}
	if uris != nil {
		results["uris"] = dbus.MakeVariant(uris)
	}
	return &dbus.Signal{
		Sender: ":1.7",
		Path:   path,
		Name:   RequestInterface + "." + ResponseMember,
		Body:   []interface{}{code, results},
	}
}

func TestRequestPath(t *testing.T) {
	assert.Equal(t,
		dbus.ObjectPath("/org/freedesktop/portal/desktop/request/1_42/oxygencrate_2002_abc"),
		RequestPath(":1.42", "oxygencrate_2002_abc"))
	assert.True(t, RequestPath(":1.42", HandleToken(2002, "abc")).IsValid())
}

func TestParseResponse(t *testing.T) {
	code, uris, err := ParseResponse(response("/x", ResponseSuccess, "file:///tmp/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, ResponseSuccess, code)
	assert.Equal(t, []string{"file:///tmp/a.txt"}, uris)

	code, uris, err = ParseResponse(response("/x", ResponseCanceled))
	require.NoError(t, err)
	assert.Equal(t, ResponseCanceled, code)
	assert.Empty(t, uris)

	_, _, err = ParseResponse(&dbus.Signal{Body: []interface{}{"nope"}})
	assert.Error(t, err)
	_, _, err = ParseResponse(&dbus.Signal{Body: []interface{}{"0", map[string]dbus.Variant{}}})
	assert.Error(t, err)
	_, _, err = ParseResponse(nil)
	assert.Error(t, err)
}

func TestResultFor(t *testing.T) {
	ok := ResultFor(7, ResponseSuccess, []string{"file:///a", "file:///b"})
	assert.Equal(t, importer.Result{Token: 7, ContentRef: "file:///a", Flags: importer.PersistableRead}, ok)

	assert.True(t, ResultFor(7, ResponseCanceled, nil).Canceled)
	assert.True(t, ResultFor(7, ResponseOther, []string{"file:///a"}).Canceled)
	assert.True(t, ResultFor(7, ResponseSuccess, nil).Canceled)
}

func newTestPicker(t *testing.T, b *fakeBus, handle func(token string) dbus.ObjectPath) (*Picker, chan importer.Result, *map[string]dbus.Variant) {
	t.Helper()
	results := make(chan importer.Result, 4)
	var seen map[string]dbus.Variant
	open := func(_ context.Context, _, title string, options map[string]dbus.Variant) (dbus.ObjectPath, error) {
		assert.Equal(t, "Pick one", title)
		seen = options
		return handle(options["handle_token"].Value().(string)), nil
	}
	p := newPicker(b, open, func(r importer.Result) { results <- r }, WithTitle("Pick one"))
	t.Cleanup(func() { p.Close() })
	return p, results, &seen
}

func TestPicker_LaunchDeliversSelection(t *testing.T) {
	b := &fakeBus{names: []string{":1.42"}}
	p, results, seen := newTestPicker(t, b, func(token string) dbus.ObjectPath {
		return RequestPath(":1.42", token)
	})

	require.NoError(t, p.Launch(2002))
	token := (*seen)["handle_token"].Value().(string)
	assert.True(t, strings.HasPrefix(token, "oxygencrate_2002_"))
	assert.Equal(t, false, (*seen)["multiple"].Value())
	assert.Equal(t, true, (*seen)["modal"].Value())

	path := RequestPath(":1.42", token)
	b.emit(response("/org/freedesktop/portal/desktop/request/1_42/other", ResponseSuccess, "file:///wrong"))
	b.emit(response(path, ResponseSuccess, "file:///tmp/report.csv"))

	select {
	case r := <-results:
		assert.Equal(t, importer.RequestToken(2002), r.Token)
		assert.Equal(t, "file:///tmp/report.csv", r.ContentRef)
		assert.False(t, r.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("no result delivered")
	}

	assert.Eventually(t, func() bool { return b.subscribers() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestPicker_LaunchFollowsPortalChosenHandle(t *testing.T) {
	b := &fakeBus{names: []string{":1.42"}}
	p, results, _ := newTestPicker(t, b, func(string) dbus.ObjectPath {
		return "/org/freedesktop/portal/desktop/request/1_42/t1"
	})

	require.NoError(t, p.Launch(9))
	b.emit(response("/org/freedesktop/portal/desktop/request/1_42/t1", ResponseCanceled))

	select {
	case r := <-results:
		assert.True(t, r.Canceled)
		assert.Equal(t, importer.RequestToken(9), r.Token)
	case <-time.After(5 * time.Second):
		t.Fatal("no result delivered")
	}
	b.mu.Lock()
	assert.Equal(t, 2, b.matches)
	b.mu.Unlock()
}

func TestPicker_LaunchErrors(t *testing.T) {
	b := &fakeBus{}
	p := newPicker(b, nil, func(importer.Result) {})
	assert.ErrorIs(t, p.Launch(1), ErrNoConnection)

	b = &fakeBus{names: []string{":1.1"}, matchErr: errors.New("denied")}
	p = newPicker(b, nil, func(importer.Result) {})
	assert.Error(t, p.Launch(1))
	assert.Zero(t, b.subscribers())

	b = &fakeBus{names: []string{":1.1"}}
	failing := func(context.Context, string, string, map[string]dbus.Variant) (dbus.ObjectPath, error) {
		return "", dbus.NewError("org.freedesktop.DBus.Error.ServiceUnknown", nil)
	}
	p = newPicker(b, failing, func(importer.Result) {})
	assert.Error(t, p.Launch(1))
	assert.Zero(t, b.subscribers())

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Launch(1), ErrNoConnection)
}

func TestPicker_CloseAbandonsPendingDialogs(t *testing.T) {
	b := &fakeBus{names: []string{":1.42"}}
	p, results, _ := newTestPicker(t, b, func(token string) dbus.ObjectPath {
		return RequestPath(":1.42", token)
	})

	require.NoError(t, p.Launch(3))
	require.NoError(t, p.Close())
	assert.Zero(t, b.subscribers())
	assert.Empty(t, results)
}

func TestNewRequiresConnection(t *testing.T) {
	_, err := New(nil, func(importer.Result) {})
	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestPicker_ParentAndSettingsApplyToLaterDialogs(t *testing.T) {
	type call struct {
		parent, title string
		modal         bool
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	b := &fakeBus{names: []string{":1.7"}}
	open := func(_ context.Context, parent, title string, options map[string]dbus.Variant) (dbus.ObjectPath, error) {
		mu.Lock()
		calls = append(calls, call{parent, title, options["modal"].Value().(bool)})
		mu.Unlock()
		return RequestPath(":1.7", options["handle_token"].Value().(string)), nil
	}
	p := newPicker(b, open, func(importer.Result) {}, WithParentWindow("x11:1"))
	defer p.Close()

	require.NoError(t, p.Launch(1))
	p.SetParentWindow(X11Parent(0x1a00003))
	p.Configure("Choose a crate", false)
	require.NoError(t, p.Launch(2))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []call{
		{"x11:1", "Import file", true},
		{"x11:1a00003", "Choose a crate", false},
	}, calls)
}
