package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/inno/internal/animation"
	"github.com/llehouerou/inno/internal/config"
	"github.com/llehouerou/inno/internal/notify"
)

type fakeNotifier struct {
	sent     []notify.Notification
	closedID []uint32
	nextID   uint32
	err      error
	closed   chan uint32
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{nextID: 41, closed: make(chan uint32, 4)}
}

func (f *fakeNotifier) Notify(n notify.Notification) (uint32, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.sent = append(f.sent, n)
	if n.ReplacesID != 0 {
		return n.ReplacesID, nil
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeNotifier) Close(id uint32) error {
	f.closedID = append(f.closedID, id)
	return nil
}

func (f *fakeNotifier) Closed() <-chan uint32 { return f.closed }

func drainConfigured(t *testing.T, events <-chan SurfaceEvent) {
	t.Helper()
	select {
	case ev := <-events:
		require.Equal(t, Configured, ev.Kind)
	default:
		t.Fatal("expected initial Configured event")
	}
}

var lowSignal = &config.Signal{
	Message:     "Low battery",
	Icon:        "🔋",
	Color:       config.RGBA{R: 1, A: 1},
	Threshold:   15,
	StateFilter: "discharging",
	Animation:   animation.Flicker,
}

func TestInvisible(t *testing.T) {
	assert.True(t, Invisible(animation.VisualState{Visible: false, Alpha: 1}))
	assert.True(t, Invisible(animation.VisualState{Visible: true, Alpha: 0.01}))
	assert.False(t, Invisible(animation.VisualState{Visible: true, Alpha: 0.02}))
	assert.False(t, Invisible(animation.Static))
}

func TestNew(t *testing.T) {
	cfg := config.Default()

	r, err := New("console", cfg, Options{Out: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.IsType(t, &Console{}, r)

	r, err = New("notify", cfg, Options{Notifier: newFakeNotifier()})
	require.NoError(t, err)
	assert.IsType(t, &NotifyRenderer{}, r)

	_, err = New("wayland", cfg, Options{})
	require.Error(t, err)

	_, err = New("console", cfg, Options{})
	require.Error(t, err)
}

func TestNotifyRenderer_ReplacesSingleBubble(t *testing.T) {
	fn := newFakeNotifier()
	r := NewNotify(fn, config.Default())
	drainConfigured(t, r.Events())

	_, _, err := r.Render("🔋 Low battery 15%", lowSignal, animation.Static)
	require.NoError(t, err)
	_, _, err = r.Render("🔋 Low battery 14%", lowSignal, animation.Static)
	require.NoError(t, err)

	require.Len(t, fn.sent, 2)
	assert.Zero(t, fn.sent[0].ReplacesID)
	assert.Equal(t, uint32(42), fn.sent[1].ReplacesID)
	assert.Equal(t, notify.UrgencyCritical, fn.sent[0].Urgency)
	assert.Equal(t, "🔋 Low battery 14%", fn.sent[1].Title)
}

func TestNotifyRenderer_Idempotent(t *testing.T) {
	fn := newFakeNotifier()
	r := NewNotify(fn, config.Default())

	for range 3 {
		_, _, err := r.Render("Low battery 15%", lowSignal, animation.Static)
		require.NoError(t, err)
	}
	// Alpha-only changes collapse to the same bubble.
	_, _, err := r.Render("Low battery 15%", lowSignal, animation.VisualState{Visible: true, Alpha: 0.5})
	require.NoError(t, err)

	assert.Len(t, fn.sent, 1)
}

func TestNotifyRenderer_InvisibleFrameIsNoop(t *testing.T) {
	fn := newFakeNotifier()
	r := NewNotify(fn, config.Default())

	w, h, err := r.Render("Low battery 15%", lowSignal, animation.VisualState{Visible: false})
	require.NoError(t, err)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
	assert.Empty(t, fn.sent)
}

func TestNotifyRenderer_DirectTextIsNormalUrgency(t *testing.T) {
	fn := newFakeNotifier()
	r := NewNotify(fn, config.Default())

	_, _, err := r.Render("hello", nil, animation.Static)
	require.NoError(t, err)
	require.Len(t, fn.sent, 1)
	assert.Equal(t, notify.UrgencyNormal, fn.sent[0].Urgency)
	assert.Empty(t, fn.sent[0].Icon)
}

func TestNotifyRenderer_Hide(t *testing.T) {
	fn := newFakeNotifier()
	r := NewNotify(fn, config.Default())

	require.NoError(t, r.Hide(), "hide with nothing shown")
	assert.Empty(t, fn.closedID)

	_, _, err := r.Render("x", nil, animation.Static)
	require.NoError(t, err)
	require.NoError(t, r.Hide())
	require.NoError(t, r.Hide())
	assert.Equal(t, []uint32{42}, fn.closedID)

	// After a hide the next frame opens a new bubble.
	_, _, err = r.Render("x", nil, animation.Static)
	require.NoError(t, err)
	require.Len(t, fn.sent, 2)
	assert.Zero(t, fn.sent[1].ReplacesID)
}

func TestNotifyRenderer_DismissedBubbleStaysClosed(t *testing.T) {
	fn := newFakeNotifier()
	r := NewNotify(fn, config.Default())
	drainConfigured(t, r.Events())

	_, _, err := r.Render("Low battery 15%", lowSignal, animation.Static)
	require.NoError(t, err)
	fn.closed <- 42
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.id == 0
	}, time.Second, time.Millisecond)

	// Later frames of the same notification do not reopen it.
	for _, alpha := range []float64{0.5, 1} {
		_, _, err = r.Render("Low battery 15%", lowSignal, animation.VisualState{Visible: true, Alpha: alpha})
		require.NoError(t, err)
	}
	assert.Len(t, fn.sent, 1)

	// New content opens a fresh bubble.
	_, _, err = r.Render("Low battery 9%", lowSignal, animation.Static)
	require.NoError(t, err)
	require.Len(t, fn.sent, 2)
	assert.Zero(t, fn.sent[1].ReplacesID)
}

func TestNotifyRenderer_HideClearsDismissed(t *testing.T) {
	fn := newFakeNotifier()
	r := NewNotify(fn, config.Default())
	drainConfigured(t, r.Events())

	_, _, err := r.Render("x", nil, animation.Static)
	require.NoError(t, err)
	fn.closed <- 42
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.hasDismissed
	}, time.Second, time.Millisecond)

	require.NoError(t, r.Hide())
	assert.Empty(t, fn.closedID, "nothing left to close")

	_, _, err = r.Render("x", nil, animation.Static)
	require.NoError(t, err)
	assert.Len(t, fn.sent, 2)
}

func TestNotifyRenderer_ErrorsAreClassified(t *testing.T) {
	fn := newFakeNotifier()
	r := NewNotify(fn, config.Default())

	fn.err = errors.New("org.freedesktop.DBus.Error.NoReply")
	_, _, err := r.Render("x", nil, animation.Static)
	assert.ErrorIs(t, err, ErrTransient)

	fn.err = dbus.ErrClosed
	_, _, err = r.Render("x", nil, animation.Static)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNotifyRenderer_ConnectionEndClosesSurface(t *testing.T) {
	fn := newFakeNotifier()
	r := NewNotify(fn, config.Default())
	drainConfigured(t, r.Events())

	close(fn.closed)
	ev := <-r.Events()
	assert.Equal(t, Closed, ev.Kind)
	assert.ErrorIs(t, ev.Err, ErrClosed)
}

func TestConsole_RenderAndHide(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, config.Default())
	drainConfigured(t, c.Events())

	w, h, err := c.Render("Low battery 15%", lowSignal, animation.Static)
	require.NoError(t, err)
	assert.Equal(t, 1, h)
	assert.GreaterOrEqual(t, w, len("Low battery 15%"))
	assert.Contains(t, buf.String(), "Low battery 15%")

	buf.Reset()
	_, _, err = c.Render("Low battery 15%", lowSignal, animation.Static)
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "identical frame is not rewritten")

	require.NoError(t, c.Hide())
	assert.Equal(t, clearLine, buf.String())
}

func TestConsole_InvisibleFrameClearsLine(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, config.Default())

	w, h, err := c.Render("blink", lowSignal, animation.VisualState{Visible: false})
	require.NoError(t, err)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
	assert.NotContains(t, buf.String(), "blink")
}

func TestConsole_SlideOffsetIndents(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, config.Default())

	_, _, err := c.Render("go", nil, animation.VisualState{Visible: true, Alpha: 1, OffsetX: 200})
	require.NoError(t, err)
	line := strings.TrimPrefix(buf.String(), clearLine)
	assert.True(t, strings.HasPrefix(line, strings.Repeat(" ", 20)), "line %q", line)
}

func TestConsole_GradientKeepsText(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.Gradient = true
	c := NewConsole(&buf, cfg)

	_, _, err := c.Render("héllo 👍🏽", lowSignal, animation.Static)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "héllo 👍🏽")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestConsole_WriteErrorClosesSurface(t *testing.T) {
	c := NewConsole(failingWriter{}, config.Default())
	drainConfigured(t, c.Events())

	_, _, err := c.Render("x", nil, animation.Static)
	require.ErrorIs(t, err, ErrClosed)

	ev := <-c.Events()
	assert.Equal(t, Closed, ev.Kind)

	_, _, err = c.Render("y", nil, animation.Static)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMock_Records(t *testing.T) {
	m := NewMock()
	_, _, _ = m.Render("a", nil, animation.Static)
	_ = m.Hide()

	f, ok := m.LastFrame()
	require.True(t, ok)
	assert.Equal(t, "a", f.Text)
	assert.Equal(t, 1, m.FrameCount())
	assert.Equal(t, 1, m.HideCount())
}
