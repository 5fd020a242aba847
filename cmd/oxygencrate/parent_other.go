//go:build !((linux && !android) || freebsd || openbsd)

package main

import "gioui.org/io/event"

func parentWindow(event.Event) (string, bool) { return "", false }
