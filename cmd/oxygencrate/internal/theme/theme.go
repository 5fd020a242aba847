package theme

import (
	"image/color"
	"runtime"

	"gioui.org/font/gofont"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget/material"
)

// Palette defines the shell colors.
type Palette struct {
	Background color.NRGBA
	Surface    color.NRGBA
	Primary    color.NRGBA
	Text       color.NRGBA
	TextMuted  color.NRGBA
	Border     color.NRGBA
	Success    color.NRGBA
}

// Config defines the shell metrics.
type Config struct {
	CornerRadius unit.Dp
	Spacing      unit.Dp
	Padding      unit.Dp
	FontTitle    unit.Sp
	FontBody     unit.Sp
	FontCaption  unit.Sp
}

// Theme wraps the material theme with shell styling.
type Theme struct {
	*material.Theme
	Palette Palette
	Config  Config
}

// NewTheme creates a theme for the current OS. Touch platforms get larger
// spacing and type.
func NewTheme() *Theme {
	m := material.NewTheme()
	m.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))

	t := &Theme{Theme: m}
	t.Palette = Palette{
		Background: color.NRGBA{R: 0x1B, G: 0x1D, B: 0x21, A: 0xFF},
		Surface:    color.NRGBA{R: 0x26, G: 0x29, B: 0x2E, A: 0xFF},
		Primary:    color.NRGBA{R: 0x2F, G: 0xA3, B: 0x8C, A: 0xFF},
		Text:       color.NRGBA{R: 0xF2, G: 0xF2, B: 0xF2, A: 0xFF},
		TextMuted:  color.NRGBA{R: 0x9A, G: 0x9E, B: 0xA6, A: 0xFF},
		Border:     color.NRGBA{R: 0x3C, G: 0x40, B: 0x46, A: 0xFF},
		Success:    color.NRGBA{R: 0x6B, G: 0xBC, B: 0x0F, A: 0xFF},
	}
	m.Palette.Fg = t.Palette.Text
	m.Palette.Bg = t.Palette.Background
	m.Palette.ContrastBg = t.Palette.Primary

	switch runtime.GOOS {
	case "android", "ios":
		t.Config = Config{
			CornerRadius: unit.Dp(12),
			Spacing:      unit.Dp(12),
			Padding:      unit.Dp(20),
			FontTitle:    unit.Sp(24),
			FontBody:     unit.Sp(16),
			FontCaption:  unit.Sp(13),
		}
	default:
		t.Config = Config{
			CornerRadius: unit.Dp(6),
			Spacing:      unit.Dp(8),
			Padding:      unit.Dp(16),
			FontTitle:    unit.Sp(20),
			FontBody:     unit.Sp(14),
			FontCaption:  unit.Sp(12),
		}
	}
	return t
}
