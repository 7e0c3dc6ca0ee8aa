package render

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rivo/uniseg"

	"github.com/llehouerou/inno/internal/animation"
	"github.com/llehouerou/inno/internal/config"
	"github.com/llehouerou/inno/internal/notify"
)

const notifyCategory = "device"

// NotifyRenderer shows notifications as a single desktop notification
// bubble that is replaced in place. Animation frames that change only
// alpha or offset cannot be expressed, so they collapse to the visible
// frame; invisible frames leave the bubble alone. Colors are not
// expressible either and are ignored.
type NotifyRenderer struct {
	notifier notify.Notifier
	events   chan SurfaceEvent

	mu   sync.Mutex
	cfg  *config.Config
	id   uint32
	last notify.Notification

	// dismissed is the bubble the server closed under us. Frames that
	// would show it again are dropped until the content changes or Hide.
	dismissed    notify.Notification
	hasDismissed bool
}

// NewNotify returns a renderer backed by n.
func NewNotify(n notify.Notifier, cfg *config.Config) *NotifyRenderer {
	r := &NotifyRenderer{
		notifier: n,
		cfg:      cfg,
		events:   make(chan SurfaceEvent, 4),
	}
	r.events <- SurfaceEvent{Kind: Configured}
	go r.watchClosed()
	return r
}

// watchClosed remembers a bubble the server closed and reports the
// surface closed when the bus connection ends.
func (r *NotifyRenderer) watchClosed() {
	for id := range r.notifier.Closed() {
		r.mu.Lock()
		if id != 0 && id == r.id {
			r.dismissed = r.last
			r.hasDismissed = true
			r.id = 0
			r.last = notify.Notification{}
		}
		r.mu.Unlock()
	}
	select {
	case r.events <- SurfaceEvent{Kind: Closed, Err: ErrClosed}:
	default:
	}
}

func (r *NotifyRenderer) Configure(cfg *config.Config) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

func (r *NotifyRenderer) Render(text string, sig *config.Signal, vs animation.VisualState) (int, int, error) {
	if Invisible(vs) {
		return 1, 1, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.notification(text, sig)
	width := uniseg.StringWidth(n.Title)
	if r.id != 0 && n == r.last {
		return width, 1, nil
	}
	if r.hasDismissed {
		if n == r.dismissed {
			return width, 1, nil
		}
		r.hasDismissed = false
	}

	n.ReplacesID = r.id
	id, err := r.notifier.Notify(n)
	if err != nil {
		return 0, 0, classify(err)
	}
	r.id = id
	r.last = n
	r.last.ReplacesID = 0
	return width, 1, nil
}

func (r *NotifyRenderer) notification(text string, sig *config.Signal) notify.Notification {
	n := notify.Notification{
		Title:     text,
		Category:  notifyCategory,
		Timeout:   0, // the daemon hides explicitly
		Urgency:   notify.UrgencyNormal,
		Transient: true,
	}
	if sig == nil {
		return n
	}

	if image, _ := notify.SplitIcon(sig.Icon); image != "" {
		n.Icon = image
		n.Title = strings.TrimSpace(strings.ReplaceAll(text, sig.Icon, ""))
	}
	if sig.Animation == animation.Flicker && !strings.EqualFold(sig.StateFilter, "charging") {
		n.Urgency = notify.UrgencyCritical
	}
	return n
}

func (r *NotifyRenderer) Hide() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hasDismissed = false
	if r.id == 0 {
		return nil
	}
	id := r.id
	r.id = 0
	r.last = notify.Notification{}
	if err := r.notifier.Close(id); err != nil {
		return classify(err)
	}
	return nil
}

func (r *NotifyRenderer) Events() <-chan SurfaceEvent {
	return r.events
}

// Close removes the bubble. The notifier's connection is owned by the
// caller.
func (r *NotifyRenderer) Close() error {
	return r.Hide()
}

// classify maps notifier errors onto ErrClosed or ErrTransient.
func classify(err error) error {
	if errors.Is(err, dbus.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
