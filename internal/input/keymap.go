package input

// CharacterMap decodes a key code under a meta state into a code point.
// Zero means the combination produces no printable character.
type CharacterMap interface {
	Get(code KeyCode, meta MetaState) rune
}

// CharacterMapFunc adapts a function to CharacterMap.
type CharacterMapFunc func(code KeyCode, meta MetaState) rune

// Get implements CharacterMap.
func (f CharacterMapFunc) Get(code KeyCode, meta MetaState) rune { return f(code, meta) }

type keyPair struct {
	base, shifted rune
}

var usPunctuation = map[KeyCode]keyPair{
	KeycodeComma:        {',', '<'},
	KeycodePeriod:       {'.', '>'},
	KeycodeTab:          {'\t', '\t'},
	KeycodeSpace:        {' ', ' '},
	KeycodeEnter:        {'\n', '\n'},
	KeycodeGrave:        {'`', '~'},
	KeycodeMinus:        {'-', '_'},
	KeycodeEquals:       {'=', '+'},
	KeycodeLeftBracket:  {'[', '{'},
	KeycodeRightBracket: {']', '}'},
	KeycodeBackslash:    {'\\', '|'},
	KeycodeSemicolon:    {';', ':'},
	KeycodeApostrophe:   {'\'', '"'},
	KeycodeSlash:        {'/', '?'},
	KeycodeAt:           {'@', '@'},
}

var usShiftedDigits = [10]rune{')', '!', '@', '#', '$', '%', '^', '&', '*', '('}

// USKeyboard decodes a US layout. Shift and CapsLock are honored; any
// chord with Ctrl, Alt or Meta decodes to zero.
var USKeyboard CharacterMap = CharacterMapFunc(usKeyboard)

func usKeyboard(code KeyCode, meta MetaState) rune {
	if meta&(MetaCtrlOn|MetaAltOn|MetaMetaOn) != 0 {
		return 0
	}
	shift := meta.Has(MetaShiftOn)

	switch {
	case code >= KeycodeA && code <= KeycodeZ:
		upper := shift != meta.Has(MetaCapsLockOn)
		if upper {
			return 'A' + rune(code-KeycodeA)
		}
		return 'a' + rune(code-KeycodeA)
	case code >= Keycode0 && code <= Keycode9:
		if shift {
			return usShiftedDigits[code-Keycode0]
		}
		return '0' + rune(code-Keycode0)
	}

	p, ok := usPunctuation[code]
	if !ok {
		return 0
	}
	if shift {
		return p.shifted
	}
	return p.base
}
