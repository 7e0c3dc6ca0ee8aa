// Package state publishes the daemon's current battery reading to readers
// outside the orchestrator and keeps the last reading across restarts.
package state

import (
	"sync/atomic"
	"time"
)

const (
	DefaultPercentage = 100.0
	DefaultState      = "unknown"
)

// Snapshot is an immutable view of the latest observation. Readers must not
// modify a snapshot returned by Load.
type Snapshot struct {
	Version    uint64
	Percentage float64
	State      string
	Text       string
	Visible    bool
	UpdatedAt  time.Time
}

// Store holds the current snapshot. Publish is called by a single writer;
// Load may be called from any goroutine.
type Store struct {
	cur atomic.Pointer[Snapshot]
}

// NewStore returns a store holding the default reading.
func NewStore() *Store {
	s := &Store{}
	s.cur.Store(&Snapshot{Percentage: DefaultPercentage, State: DefaultState})
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() Snapshot {
	return *s.cur.Load()
}

// Publish copies the current snapshot, applies fn to the copy, bumps the
// version and swaps it in. The new snapshot is returned.
func (s *Store) Publish(fn func(*Snapshot)) Snapshot {
	next := *s.cur.Load()
	fn(&next)
	next.Version++
	s.cur.Store(&next)
	return next
}

// Seed replaces the reading with a persisted one without bumping the
// version. Used once at startup.
func (s *Store) Seed(snap Snapshot) {
	snap.Version = s.cur.Load().Version
	s.cur.Store(&snap)
}
