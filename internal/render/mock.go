package render

import (
	"sync"

	"github.com/llehouerou/inno/internal/animation"
	"github.com/llehouerou/inno/internal/config"
)

// Frame is one recorded Render call.
type Frame struct {
	Text   string
	Signal *config.Signal
	State  animation.VisualState
}

// Mock records calls for tests.
type Mock struct {
	mu sync.Mutex

	Frames     []Frame
	Hides      int
	Configured []*config.Config
	IsClosed   bool

	// RenderErr and HideErr are returned by the next calls when set.
	RenderErr error
	HideErr   error

	events chan SurfaceEvent
}

// NewMock returns a mock with a buffered event channel.
func NewMock() *Mock {
	return &Mock{events: make(chan SurfaceEvent, 4)}
}

func (m *Mock) Render(text string, sig *config.Signal, vs animation.VisualState) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RenderErr != nil {
		return 0, 0, m.RenderErr
	}
	m.Frames = append(m.Frames, Frame{Text: text, Signal: sig, State: vs})
	if Invisible(vs) {
		return 1, 1, nil
	}
	return len(text), 1, nil
}

func (m *Mock) Hide() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HideErr != nil {
		return m.HideErr
	}
	m.Hides++
	return nil
}

func (m *Mock) Configure(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Configured = append(m.Configured, cfg)
}

func (m *Mock) Events() <-chan SurfaceEvent {
	return m.events
}

// Emit queues a surface event.
func (m *Mock) Emit(ev SurfaceEvent) {
	m.events <- ev
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IsClosed = true
	return nil
}

// LastFrame returns the most recent frame and whether there is one.
func (m *Mock) LastFrame() (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Frames) == 0 {
		return Frame{}, false
	}
	return m.Frames[len(m.Frames)-1], true
}

// FrameCount returns the number of recorded frames.
func (m *Mock) FrameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Frames)
}

// HideCount returns the number of Hide calls.
func (m *Mock) HideCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Hides
}
