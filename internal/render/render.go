// Package render draws notifications. The daemon decides what to show and
// when; a Renderer only turns text, a signal and a visual state into output.
package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/llehouerou/inno/internal/animation"
	"github.com/llehouerou/inno/internal/config"
	"github.com/llehouerou/inno/internal/notify"
)

var (
	// ErrTransient marks a failed frame that may succeed on the next call.
	ErrTransient = errors.New("render: transient failure")
	// ErrClosed means the output surface is gone for good.
	ErrClosed = errors.New("render: surface closed")
)

// EventKind identifies a surface lifecycle event.
type EventKind int

const (
	Configured EventKind = iota
	Closed
)

func (k EventKind) String() string {
	if k == Closed {
		return "closed"
	}
	return "configured"
}

// SurfaceEvent reports a change in the renderer's output surface.
type SurfaceEvent struct {
	Kind EventKind
	Err  error
}

// Renderer is the daemon's output boundary. Calls come from a single
// goroutine and repeated identical calls must be harmless.
type Renderer interface {
	// Render draws text. sig is nil for direct text (remote Show), in which
	// case the configured text color is used. An invisible vs produces an
	// empty 1x1 frame.
	Render(text string, sig *config.Signal, vs animation.VisualState) (width, height int, err error)
	// Hide removes whatever is shown.
	Hide() error
	// Configure swaps the appearance settings used by later frames.
	Configure(cfg *config.Config)
	// Events delivers surface lifecycle events.
	Events() <-chan SurfaceEvent
	Close() error
}

// AlphaEpsilon is the alpha at or below which a frame is drawn empty.
const AlphaEpsilon = 0.01

// Invisible reports whether vs should be drawn as an empty frame.
func Invisible(vs animation.VisualState) bool {
	return !vs.Visible || vs.Alpha <= AlphaEpsilon
}

// textColor is the color text is drawn in: the signal's color, or the
// configured text color for direct text.
func textColor(cfg *config.Config, sig *config.Signal) config.RGBA {
	if sig == nil {
		return cfg.TextColor
	}
	return sig.Color
}

// Options carries the outputs a backend may need.
type Options struct {
	Out      io.Writer       // console backend
	Notifier notify.Notifier // notify backend
}

// New builds the named backend ("notify" or "console").
func New(name string, cfg *config.Config, opts Options) (Renderer, error) {
	switch name {
	case "console":
		if opts.Out == nil {
			return nil, errors.New("render: console renderer needs an output")
		}
		return NewConsole(opts.Out, cfg), nil
	case "", "notify":
		if opts.Notifier == nil {
			return nil, errors.New("render: notify renderer needs a notifier")
		}
		return NewNotify(opts.Notifier, cfg), nil
	default:
		return nil, fmt.Errorf("render: unknown renderer %q", name)
	}
}
