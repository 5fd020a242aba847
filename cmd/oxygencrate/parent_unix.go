//go:build (linux && !android) || freebsd || openbsd

package main

import (
	"gioui.org/app"
	"gioui.org/io/event"

	"oxygencrate/internal/portal"
)

// parentWindow extracts the portal parent identifier from a view event.
// Wayland surfaces have no exportable handle here, so only X11 yields one.
func parentWindow(e event.Event) (string, bool) {
	if v, ok := e.(app.X11ViewEvent); ok && v.Window != 0 {
		return portal.X11Parent(v.Window), true
	}
	return "", false
}
