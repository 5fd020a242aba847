// Package mobile is the gomobile surface of the shell.
//
// The host activity owns the window and the UI thread; it forwards key
// events, picker results and lifecycle calls here and implements the host
// interfaces (MainThread, PickerLauncher, ContentResolver, ...) in its own
// language. The native application loop polls PollUnicodeChar and
// PollSelectedFile from any thread.
//
// Only primitive types, strings, byte slices and interfaces cross the
// boundary, so the package binds cleanly:
//
//	gomobile bind -target=android -o oxygencrate.aar ./internal/mobile
//	gomobile bind -target=ios -o OxygenCrate.xcframework ./internal/mobile
package mobile

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"

	"oxygencrate/internal/config"
	"oxygencrate/internal/importer"
	"oxygencrate/internal/input"
	"oxygencrate/internal/shell"
	"oxygencrate/internal/uithread"
)

// Activity mirrors the host activity.
type Activity struct {
	shell *shell.Shell

	mu         sync.RWMutex
	keymap     KeyCharacterMap
	keyboard   SoftKeyboard
	permission StoragePermission
}

// NewActivity assembles the shell. configPath may be empty to use the
// defaults. importRoot overrides the storage root the import directory
// lives under (Environment.getExternalStorageDirectory on Android), and
// dataDir the directory holding the ledger and log files.
func NewActivity(configPath, importRoot, dataDir string, thread MainThread, picker PickerLauncher, content ContentResolver) (*Activity, error) {
	switch {
	case thread == nil:
		return nil, errors.New("mobile: main thread is required")
	case picker == nil:
		return nil, errors.New("mobile: picker launcher is required")
	case content == nil:
		return nil, errors.New("mobile: content resolver is required")
	}

	var cfg *config.Config
	if configPath == "" {
		cfg = config.DefaultConfig()
		cfg.ApplyEnvOverrides()
	} else {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	if importRoot != "" {
		cfg.Import.Root = importRoot
	}
	if dataDir != "" {
		cfg.Storage.Path = filepath.Join(dataDir, "imports.db")
		cfg.Logging.FilePath = filepath.Join(dataDir, "logs", "oxygencrate.log")
	}
	// Key decoding always goes through the host map once one is set.
	cfg.Input.Layout = "host"

	a := &Activity{}
	poster := uithread.PosterFunc(func(f func()) bool { return thread.Post(task(f)) })
	s, err := shell.FromConfig(cfg, shell.Host{
		Poster:       poster,
		Launcher:     launcher{picker},
		Resolver:     resolver{content},
		CharacterMap: input.CharacterMapFunc(a.decode),
		Permission:   hostPermission{a},
		Keyboard:     hostKeyboard{a},
	})
	if err != nil {
		return nil, err
	}
	a.shell = s
	return a, nil
}

// SetKeyCharacterMap sets the host key map. Until one is set keys decode
// with a US layout.
func (a *Activity) SetKeyCharacterMap(km KeyCharacterMap) {
	a.mu.Lock()
	a.keymap = km
	a.mu.Unlock()
}

// SetSoftKeyboard sets the host input method controller.
func (a *Activity) SetSoftKeyboard(kb SoftKeyboard) {
	a.mu.Lock()
	a.keyboard = kb
	a.mu.Unlock()
}

// SetStoragePermission sets the host storage permission flow.
func (a *Activity) SetStoragePermission(p StoragePermission) {
	a.mu.Lock()
	a.permission = p
	a.mu.Unlock()
}

// OnCreate runs the storage permission bootstrap and returns its status:
// "unmanaged", "granted", "requested", "requested-fallback" or
// "unavailable".
func (a *Activity) OnCreate() string {
	if a.storagePermission() == nil {
		return shell.PermissionUnmanaged.String()
	}
	return a.shell.Create().String()
}

// DispatchKeyEvent queues the character of a key-down event. The host
// still performs its default dispatch.
func (a *Activity) DispatchKeyEvent(action, keyCode, metaState, repeat int32) bool {
	return a.shell.DispatchKeyEvent(input.KeyEvent{
		Action: input.Action(action),
		Code:   input.KeyCode(keyCode),
		Meta:   input.MetaState(metaState),
		Repeat: repeat,
	})
}

// PollUnicodeChar returns the oldest queued code point, or 0.
func (a *Activity) PollUnicodeChar() int32 {
	return int32(a.shell.PollCharacter())
}

// OpenFilePicker requests the document picker and returns its request
// code.
func (a *Activity) OpenFilePicker() int32 {
	return int32(a.shell.RequestFilePicker())
}

// OnActivityResult handles an activity result on the UI thread. Request
// codes that were not issued by OpenFilePicker are ignored.
func (a *Activity) OnActivityResult(requestCode, resultCode int32, uri string, flags int32) {
	a.shell.Imports().OnResult(importer.Result{
		Token:      importer.RequestToken(requestCode),
		Canceled:   resultCode != ResultOK,
		ContentRef: uri,
		Flags:      importer.GrantFlags(flags),
	})
}

// PollSelectedFile returns the oldest imported path, or "".
func (a *Activity) PollSelectedFile() string {
	return a.shell.PollSelectedFile()
}

// ShowSoftInput shows the input method on the UI thread.
func (a *Activity) ShowSoftInput() {
	a.shell.ShowSoftInput()
}

// HideSoftInput hides the input method on the UI thread.
func (a *Activity) HideSoftInput() {
	a.shell.HideSoftInput()
}

// ImportDir returns the directory imported files are copied into.
func (a *Activity) ImportDir() string {
	return a.shell.Imports().Dir()
}

// GetStatus returns JSON-encoded queue and request state.
func (a *Activity) GetStatus() string {
	data, err := json.Marshal(map[string]interface{}{
		"import_dir":         a.shell.Imports().Dir(),
		"pending_characters": a.shell.Keys().Pending(),
		"pending_files":      a.shell.Imports().Pending(),
		"awaiting_requests":  a.shell.Imports().Awaiting(),
	})
	if err != nil {
		return ""
	}
	return string(data)
}

// Close releases the ledger and log files.
func (a *Activity) Close() error {
	return a.shell.Close()
}

func (a *Activity) decode(code input.KeyCode, meta input.MetaState) rune {
	a.mu.RLock()
	km := a.keymap
	a.mu.RUnlock()
	if km == nil {
		return input.USKeyboard.Get(code, meta)
	}
	return rune(km.Get(int32(code), int32(meta)))
}

func (a *Activity) storagePermission() StoragePermission {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.permission
}

func (a *Activity) softKeyboard() SoftKeyboard {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.keyboard
}

type hostPermission struct{ a *Activity }

func (p hostPermission) Granted() bool {
	if h := p.a.storagePermission(); h != nil {
		return h.Granted()
	}
	return true
}

func (p hostPermission) Request() error {
	if h := p.a.storagePermission(); h != nil {
		return h.Request()
	}
	return nil
}

func (p hostPermission) RequestFallback() error {
	if h := p.a.storagePermission(); h != nil {
		return h.RequestFallback()
	}
	return nil
}

type hostKeyboard struct{ a *Activity }

func (k hostKeyboard) Show() {
	if h := k.a.softKeyboard(); h != nil {
		h.Show()
	}
}

func (k hostKeyboard) Hide() {
	if h := k.a.softKeyboard(); h != nil {
		h.Hide()
	}
}
