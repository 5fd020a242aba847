// Package input bridges key presses from the UI thread to a poller
// running elsewhere.
//
// Key events arrive on the UI thread with a platform key code and meta
// state. The Bridge decodes them through a CharacterMap and hands the
// resulting code points, one at a time and in order, to whichever
// goroutine calls PollCharacter.
package input

// Action is the phase of a key event.
type Action int32

// Values match the host platform's key actions.
const (
	ActionDown     Action = 0
	ActionUp       Action = 1
	ActionMultiple Action = 2
)

func (a Action) String() string {
	switch a {
	case ActionDown:
		return "down"
	case ActionUp:
		return "up"
	case ActionMultiple:
		return "multiple"
	default:
		return "unknown"
	}
}

// KeyCode identifies a physical or virtual key.
type KeyCode int32

// Key codes understood by USKeyboard. Values match the host platform.
const (
	KeycodeUnknown      KeyCode = 0
	Keycode0            KeyCode = 7
	Keycode9            KeyCode = 16
	KeycodeA            KeyCode = 29
	KeycodeZ            KeyCode = 54
	KeycodeComma        KeyCode = 55
	KeycodePeriod       KeyCode = 56
	KeycodeTab          KeyCode = 61
	KeycodeSpace        KeyCode = 62
	KeycodeEnter        KeyCode = 66
	KeycodeDel          KeyCode = 67
	KeycodeGrave        KeyCode = 68
	KeycodeMinus        KeyCode = 69
	KeycodeEquals       KeyCode = 70
	KeycodeLeftBracket  KeyCode = 71
	KeycodeRightBracket KeyCode = 72
	KeycodeBackslash    KeyCode = 73
	KeycodeSemicolon    KeyCode = 74
	KeycodeApostrophe   KeyCode = 75
	KeycodeSlash        KeyCode = 76
	KeycodeAt           KeyCode = 77
)

// MetaState is the modifier bitmask active when a key event fired.
type MetaState int32

// Modifier bits. Values match the host platform.
const (
	MetaShiftOn    MetaState = 0x1
	MetaAltOn      MetaState = 0x2
	MetaSymOn      MetaState = 0x4
	MetaCtrlOn     MetaState = 0x1000
	MetaMetaOn     MetaState = 0x10000
	MetaCapsLockOn MetaState = 0x100000
)

// Has reports whether every bit of m is set.
func (s MetaState) Has(m MetaState) bool { return s&m == m }

// KeyEvent is a single key event as delivered by the UI framework.
type KeyEvent struct {
	Action Action
	Code   KeyCode
	Meta   MetaState
	// Repeat counts auto-repeats of a held key. Repeated downs are still
	// key-downs.
	Repeat int32
}
