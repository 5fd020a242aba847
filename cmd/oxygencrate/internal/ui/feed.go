package ui

import (
	"strings"
	"sync"
)

const maxTranscript = 4096

// Feed is what the application loop has received so far. The loop writes
// it; the window reads snapshots.
type Feed struct {
	mu      sync.Mutex
	text    []rune
	imports []string
}

// Snapshot is a copy of the feed.
type Snapshot struct {
	Text    string
	Imports []string
}

// AddChar appends a polled character. Backspace removes the last one.
func (f *Feed) AddChar(r rune) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r == '\b' {
		if n := len(f.text); n > 0 {
			f.text = f.text[:n-1]
		}
		return
	}
	f.text = append(f.text, r)
	if over := len(f.text) - maxTranscript; over > 0 {
		f.text = f.text[over:]
	}
}

// AddImport appends a polled path.
func (f *Feed) AddImport(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imports = append(f.imports, path)
}

// Snapshot returns a copy of the current state.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	var b strings.Builder
	for _, r := range f.text {
		b.WriteRune(r)
	}
	return Snapshot{
		Text:    b.String(),
		Imports: append([]string(nil), f.imports...),
	}
}

// SoftKeyboard records show and hide requests posted to the UI thread
// until the next frame executes them.
type SoftKeyboard struct {
	mu      sync.Mutex
	visible bool
	pending *bool
	wake    func()
}

// NewSoftKeyboard returns a keyboard calling wake after each request.
func NewSoftKeyboard(wake func()) *SoftKeyboard {
	return &SoftKeyboard{wake: wake}
}

// Show implements shell.SoftKeyboard.
func (k *SoftKeyboard) Show() { k.set(true) }

// Hide implements shell.SoftKeyboard.
func (k *SoftKeyboard) Hide() { k.set(false) }

// Visible reports the last requested state.
func (k *SoftKeyboard) Visible() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.visible
}

func (k *SoftKeyboard) set(show bool) {
	k.mu.Lock()
	k.visible = show
	k.pending = &show
	k.mu.Unlock()
	if k.wake != nil {
		k.wake()
	}
}

func (k *SoftKeyboard) take() (bool, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.pending == nil {
		return false, false
	}
	show := *k.pending
	k.pending = nil
	return show, true
}
