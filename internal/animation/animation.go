// Package animation derives per-frame visual parameters for a notification.
package animation

import (
	"math"
	"strings"
	"time"
)

// FPS is the animation tick rate.
const FPS = 30

// Interval is the period between two animation ticks.
const Interval = time.Second / FPS

// Kind is the animation applied to a notification.
type Kind int

const (
	None Kind = iota
	Flicker
	Pulse
	Fade
	Slide
	Bounce
)

// ParseKind maps a config string to a Kind. Unknown values map to None.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flicker":
		return Flicker
	case "pulse":
		return Pulse
	case "fade", "fadein", "fadeout", "fade-in", "fade-out":
		return Fade
	case "slide":
		return Slide
	case "bounce":
		return Bounce
	default:
		return None
	}
}

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Flicker:
		return "flicker"
	case Pulse:
		return "pulse"
	case Fade:
		return "fade"
	case Slide:
		return "slide"
	case Bounce:
		return "bounce"
	default:
		return "none"
	}
}

// VisualState is what the renderer needs to draw one frame.
type VisualState struct {
	Visible bool
	Alpha   float64
	OffsetX float64
	OffsetY float64
}

// Static is the visual state of a non-animated notification.
var Static = VisualState{Visible: true, Alpha: 1.0}

const (
	flickerPeriod  = 15
	fadeInFrames   = 20
	slideDistance  = 200.0
	bounceHeight   = 20.0
	pulseBase      = 0.6
	pulseAmplitude = 0.4
)

// Driver is the per-notification animation state machine. The visual
// state is a pure function of the kind and the frame counter.
type Driver struct {
	frame uint32
	state VisualState
}

// NewDriver returns a driver in its reset state.
func NewDriver() Driver {
	d := Driver{}
	d.Reset()
	return d
}

// Reset restarts the animation from its initial phase.
func (d *Driver) Reset() {
	d.frame = 0
	d.state = Static
}

// Frame returns the current frame counter.
func (d *Driver) Frame() uint32 {
	return d.frame
}

// State returns the visual state computed by the last Tick or Reset.
func (d *Driver) State() VisualState {
	return d.state
}

// Tick advances one frame and returns the new visual state.
func (d *Driver) Tick(kind Kind) VisualState {
	d.frame++ // wraps on overflow
	d.state = Compute(kind, d.frame)
	return d.state
}

// Compute returns the visual state of kind at the given frame.
func Compute(kind Kind, frame uint32) VisualState {
	vs := Static
	f := float64(frame)

	switch kind {
	case None:
	case Flicker:
		vs.Visible = (frame/flickerPeriod)%2 == 0
	case Pulse:
		vs.Alpha = pulseBase + pulseAmplitude*math.Abs(math.Sin(f*0.15))
	case Fade:
		vs.Alpha = math.Min(f/fadeInFrames, 1.0)
	case Slide:
		progress := math.Min(f*0.1, 1.0)
		eased := 1 - math.Pow(1-progress, 3)
		vs.OffsetX = (1 - eased) * slideDistance
	case Bounce:
		decay := 1 / (1 + f*0.02)
		vs.OffsetY = -math.Abs(math.Sin(f*0.2)) * decay * bounceHeight
	}

	return vs
}
