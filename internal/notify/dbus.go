//go:build linux

package notify

import (
	"github.com/godbus/dbus/v5"
)

const (
	dbusNotifyDest      = "org.freedesktop.Notifications"
	dbusNotifyPath      = "/org/freedesktop/Notifications"
	dbusNotifyInterface = "org.freedesktop.Notifications"

	appName = "inno"
)

// dbusNotifier sends notifications via D-Bus.
type dbusNotifier struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	closed chan uint32
}

// New creates a Notifier that sends desktop notifications via D-Bus.
// Returns a no-op notifier if D-Bus is unavailable.
func New() (Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		// D-Bus not available, return no-op notifier (intentional graceful degradation)
		return newStub(), nil //nolint:nilerr // graceful fallback when D-Bus unavailable
	}
	return NewWithConn(conn)
}

// NewWithConn creates a Notifier on an existing session connection.
func NewWithConn(conn *dbus.Conn) (Notifier, error) {
	err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(dbusNotifyPath),
		dbus.WithMatchInterface(dbusNotifyInterface),
		dbus.WithMatchMember("NotificationClosed"),
	)
	if err != nil {
		return nil, err
	}

	n := &dbusNotifier{
		conn:   conn,
		obj:    conn.Object(dbusNotifyDest, dbusNotifyPath),
		closed: make(chan uint32, 8),
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	go n.forwardClosed(signals)

	return n, nil
}

func (n *dbusNotifier) forwardClosed(signals <-chan *dbus.Signal) {
	defer close(n.closed)
	done := n.conn.Context().Done()
	for {
		select {
		case <-done:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if id, ok := closedID(sig); ok {
				select {
				case n.closed <- id:
				default:
				}
			}
		}
	}
}

// closedID extracts the notification ID from a NotificationClosed signal
// (id u, reason u).
func closedID(sig *dbus.Signal) (uint32, bool) {
	if sig == nil || sig.Name != dbusNotifyInterface+".NotificationClosed" || len(sig.Body) < 1 {
		return 0, false
	}
	id, ok := sig.Body[0].(uint32)
	return id, ok
}

// Notify sends a notification via D-Bus.
func (n *dbusNotifier) Notify(notif Notification) (uint32, error) {
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(notif.Urgency)),
		"desktop-entry": dbus.MakeVariant(appName),
	}
	if notif.Category != "" {
		hints["category"] = dbus.MakeVariant(notif.Category)
	}
	if notif.Transient {
		hints["transient"] = dbus.MakeVariant(true)
	}

	// D-Bus Notify method signature:
	// Notify(app_name, replaces_id, icon, summary, body, actions, hints, timeout) -> id
	call := n.obj.Call(
		dbusNotifyInterface+".Notify",
		0,                // flags
		appName,          // app_name
		notif.ReplacesID, // replaces_id
		notif.Icon,       // app_icon (path or icon name)
		notif.Title,      // summary
		notif.Body,       // body
		[]string{},       // actions
		hints,            // hints
		notif.Timeout,    // expire_timeout
	)

	if call.Err != nil {
		return 0, call.Err
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, err
	}

	return id, nil
}

// Close closes a notification by ID.
func (n *dbusNotifier) Close(id uint32) error {
	call := n.obj.Call(dbusNotifyInterface+".CloseNotification", 0, id)
	return call.Err
}

func (n *dbusNotifier) Closed() <-chan uint32 {
	return n.closed
}

// stubNotifier is used when D-Bus is unavailable.
type stubNotifier struct {
	closed chan uint32
}

func newStub() *stubNotifier {
	return &stubNotifier{closed: make(chan uint32)}
}

func (s *stubNotifier) Notify(_ Notification) (uint32, error) {
	return 0, nil
}

func (s *stubNotifier) Close(_ uint32) error {
	return nil
}

// Closed never delivers; a stub has nothing to close.
func (s *stubNotifier) Closed() <-chan uint32 {
	return s.closed
}
