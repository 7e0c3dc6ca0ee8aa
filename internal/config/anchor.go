package config

import (
	"strconv"
	"strings"
)

// DefaultMargin is the margin in pixels used when position omits it.
const DefaultMargin = 10

type HAnchor int

const (
	HCenter HAnchor = iota
	HLeft
	HRight
)

type VAnchor int

const (
	VBottom VAnchor = iota
	VTop
	VCenter
)

// Anchor places the notification on screen.
type Anchor struct {
	H       HAnchor
	V       VAnchor
	MarginH int
	MarginV int
}

// ParseAnchor parses "h, v, margin_h, margin_v". Missing or invalid parts
// fall back to center, bottom, DefaultMargin and margin_h respectively.
func ParseAnchor(s string) Anchor {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}
	part := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	a := Anchor{MarginH: DefaultMargin}
	switch part(0) {
	case "left":
		a.H = HLeft
	case "right":
		a.H = HRight
	}
	switch part(1) {
	case "top":
		a.V = VTop
	case "center":
		a.V = VCenter
	}
	if m, err := strconv.Atoi(part(2)); err == nil {
		a.MarginH = m
	}
	a.MarginV = a.MarginH
	if m, err := strconv.Atoi(part(3)); err == nil {
		a.MarginV = m
	}
	return a
}
