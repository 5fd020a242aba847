package input

import (
	"strings"

	"gioui.org/io/key"
)

var gioNamed = map[key.Name]KeyCode{
	key.NameReturn: KeycodeEnter,
	key.NameEnter:  KeycodeEnter,
	key.NameTab:    KeycodeTab,
	key.NameSpace:  KeycodeSpace,
	",":            KeycodeComma,
	".":            KeycodePeriod,
	"`":            KeycodeGrave,
	"-":            KeycodeMinus,
	"=":            KeycodeEquals,
	"[":            KeycodeLeftBracket,
	"]":            KeycodeRightBracket,
	"\\":           KeycodeBackslash,
	";":            KeycodeSemicolon,
	"'":            KeycodeApostrophe,
	"/":            KeycodeSlash,
}

// GioKeyCode maps a gio key name to a key code. Unknown names map to
// KeycodeUnknown.
func GioKeyCode(name key.Name) KeyCode {
	if c, ok := gioNamed[name]; ok {
		return c
	}
	s := strings.ToUpper(string(name))
	if len(s) != 1 {
		return KeycodeUnknown
	}
	switch c := s[0]; {
	case c >= 'A' && c <= 'Z':
		return KeycodeA + KeyCode(c-'A')
	case c >= '0' && c <= '9':
		return Keycode0 + KeyCode(c-'0')
	}
	return KeycodeUnknown
}

// GioMetaState maps gio modifiers to a meta state.
func GioMetaState(m key.Modifiers) MetaState {
	var s MetaState
	if m.Contain(key.ModShift) {
		s |= MetaShiftOn
	}
	if m.Contain(key.ModAlt) {
		s |= MetaAltOn
	}
	if m.Contain(key.ModCtrl) {
		s |= MetaCtrlOn
	}
	if m.Contain(key.ModCommand) || m.Contain(key.ModSuper) {
		s |= MetaMetaOn
	}
	return s
}

// GioKeyEvent translates a gio key event.
func GioKeyEvent(e key.Event) KeyEvent {
	action := ActionDown
	if e.State == key.Release {
		action = ActionUp
	}
	return KeyEvent{
		Action: action,
		Code:   GioKeyCode(e.Name),
		Meta:   GioMetaState(e.Modifiers),
	}
}

// OnGioKey routes a gio key event through OnKeyEvent.
func (b *Bridge) OnGioKey(e key.Event) bool {
	return b.OnKeyEvent(GioKeyEvent(e))
}

// OnEditEvent queues every code point of text committed by an input
// method and returns how many were queued.
func (b *Bridge) OnEditEvent(e key.EditEvent) int {
	n := 0
	for _, r := range e.Text {
		if r <= 0 {
			continue
		}
		b.Enqueue(r)
		n++
	}
	return n
}
