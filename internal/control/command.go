// Package control exposes the org.inno.Control remote-control interface on
// the session bus and provides a client for it.
package control

import "time"

const (
	// DefaultShowDuration applies to Show requests without a duration.
	DefaultShowDuration = 5 * time.Second
	// MaxShowDuration caps Show requests.
	MaxShowDuration = 24 * time.Hour
)

// Version is reported by the Version method. Set at build time with
// -ldflags "-X github.com/llehouerou/inno/internal/control.Version=...".
var Version = "0.1.0-dev"

// Command is a request from the remote-control surface to the daemon.
type Command interface {
	command()
}

// Show displays Message for Duration, bypassing signal resolution.
type Show struct {
	Message  string
	Duration time.Duration
}

// Hide hides the current notification immediately.
type Hide struct{}

// Reload reloads the configuration and event rules.
type Reload struct{}

func (Show) command()   {}
func (Hide) command()   {}
func (Reload) command() {}
