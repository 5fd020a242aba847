package ui

import (
	"image"
	"path/filepath"

	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"oxygencrate/cmd/oxygencrate/internal/theme"
	"oxygencrate/internal/shell"
)

const maxListedImports = 8

// View is the shell window. It routes window input into the shell and
// renders what the application loop received.
type View struct {
	theme    *theme.Theme
	shell    *shell.Shell
	feed     *Feed
	keyboard *SoftKeyboard

	importBtn   widget.Clickable
	keyboardBtn widget.Clickable
	focused     bool
}

// NewView returns a view over s.
func NewView(t *theme.Theme, s *shell.Shell, feed *Feed, kb *SoftKeyboard) *View {
	return &View{theme: t, shell: s, feed: feed, keyboard: kb}
}

// Layout handles this frame's input and draws the window.
func (v *View) Layout(gtx layout.Context) layout.Dimensions {
	v.handleInput(gtx)

	if v.importBtn.Clicked(gtx) {
		v.shell.RequestFilePicker()
	}
	if v.keyboardBtn.Clicked(gtx) {
		if v.keyboard.Visible() {
			v.shell.HideSoftInput()
		} else {
			v.shell.ShowSoftInput()
		}
	}
	if show, ok := v.keyboard.take(); ok {
		gtx.Execute(key.SoftKeyboardCmd{Show: show})
	}

	paint.Fill(gtx.Ops, v.theme.Palette.Background)

	// Key input target covering the whole window.
	area := clip.Rect{Max: gtx.Constraints.Max}.Push(gtx.Ops)
	event.Op(gtx.Ops, v)
	key.InputHintOp{Tag: v, Hint: key.HintText}.Add(gtx.Ops)
	area.Pop()

	snap := v.feed.Snapshot()
	return layout.UniformInset(v.theme.Config.Padding).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				title := material.H6(v.theme.Theme, "OxygenCrate")
				title.Color = v.theme.Palette.Primary
				title.TextSize = v.theme.Config.FontTitle
				return title.Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Height: v.theme.Config.Spacing}.Layout),
			layout.Rigid(v.layoutButtons),
			layout.Rigid(layout.Spacer{Height: v.theme.Config.Spacing}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return v.layoutPanel(gtx, snap.Text, "Type to send characters to the application loop")
			}),
			layout.Rigid(layout.Spacer{Height: v.theme.Config.Spacing}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return v.layoutImports(gtx, snap.Imports)
			}),
		)
	})
}

func (v *View) handleInput(gtx layout.Context) {
	if !v.focused {
		gtx.Execute(key.FocusCmd{Tag: v})
	}

	mods := key.ModShift | key.ModCtrl | key.ModAlt | key.ModSuper | key.ModCommand
	for {
		ev, ok := gtx.Event(
			key.FocusFilter{Target: v},
			key.Filter{Focus: v, Name: key.NameReturn, Optional: mods},
			key.Filter{Focus: v, Name: key.NameEnter, Optional: mods},
			key.Filter{Focus: v, Name: key.NameTab, Optional: mods},
		)
		if !ok {
			return
		}
		switch ev := ev.(type) {
		case key.FocusEvent:
			v.focused = ev.Focus
		case key.Event:
			v.shell.Keys().OnGioKey(ev)
		case key.EditEvent:
			v.shell.Keys().OnEditEvent(ev)
		}
	}
}

func (v *View) layoutButtons(gtx layout.Context) layout.Dimensions {
	label := "Show keyboard"
	if v.keyboard.Visible() {
		label = "Hide keyboard"
	}
	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
		layout.Rigid(material.Button(v.theme.Theme, &v.importBtn, "Import file").Layout),
		layout.Rigid(layout.Spacer{Width: v.theme.Config.Spacing}.Layout),
		layout.Rigid(material.Button(v.theme.Theme, &v.keyboardBtn, label).Layout),
	)
}

func (v *View) layoutPanel(gtx layout.Context, body, placeholder string) layout.Dimensions {
	size := gtx.Constraints.Max
	rect := clip.UniformRRect(image.Rect(0, 0, size.X, size.Y), gtx.Dp(v.theme.Config.CornerRadius)).Op(gtx.Ops)
	paint.FillShape(gtx.Ops, v.theme.Palette.Surface, rect)

	return layout.UniformInset(unit.Dp(12)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		l := material.Body1(v.theme.Theme, body)
		l.TextSize = v.theme.Config.FontBody
		l.Color = v.theme.Palette.Text
		if body == "" {
			l.Text = placeholder
			l.Color = v.theme.Palette.TextMuted
		}
		return l.Layout(gtx)
	})
}

func (v *View) layoutImports(gtx layout.Context, imports []string) layout.Dimensions {
	if len(imports) > maxListedImports {
		imports = imports[len(imports)-maxListedImports:]
	}
	children := []layout.FlexChild{
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			c := material.Caption(v.theme.Theme, "Imported into "+v.shell.Imports().Dir())
			c.Color = v.theme.Palette.TextMuted
			c.TextSize = v.theme.Config.FontCaption
			return c.Layout(gtx)
		}),
	}
	for _, p := range imports {
		name := filepath.Base(p)
		children = append(children, layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			l := material.Body2(v.theme.Theme, name)
			l.Color = v.theme.Palette.Success
			return l.Layout(gtx)
		}))
	}
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx, children...)
}
