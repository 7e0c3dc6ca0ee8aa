package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// ErrNotRunning means no daemon owns the control service name.
var ErrNotRunning = errors.New("inno daemon is not running")

const serviceUnknown = "org.freedesktop.DBus.Error.ServiceUnknown"

// Client calls a running daemon's control interface.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Dial connects to the session bus.
func Dial() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient uses an existing connection.
func NewClient(conn *dbus.Conn) *Client {
	return &Client{conn: conn, obj: conn.Object(ServiceName, ObjectPath)}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Show(ctx context.Context, message string, duration time.Duration) error {
	secs := uint64(duration / time.Second)
	return c.call(ctx, "Show", message, secs).Err
}

func (c *Client) Hide(ctx context.Context) error {
	return c.call(ctx, "Hide").Err
}

func (c *Client) Reload(ctx context.Context) error {
	return c.call(ctx, "Reload").Err
}

// GetState returns the daemon's last percentage and state label.
func (c *Client) GetState(ctx context.Context) (float64, string, error) {
	var pct float64
	var st string
	call := c.call(ctx, "GetState")
	if call.Err != nil {
		return 0, "", call.Err
	}
	if err := call.Store(&pct, &st); err != nil {
		return 0, "", err
	}
	return pct, st, nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	var v string
	call := c.call(ctx, "Version")
	if call.Err != nil {
		return "", call.Err
	}
	if err := call.Store(&v); err != nil {
		return "", err
	}
	return v, nil
}

func (c *Client) call(ctx context.Context, method string, args ...any) *dbus.Call {
	call := c.obj.CallWithContext(ctx, Interface+"."+method, 0, args...)
	call.Err = translate(call.Err)
	return call
}

// translate maps the bus's "no owner" error to ErrNotRunning.
func translate(err error) error {
	var name string
	var dbusErr dbus.Error
	var dbusErrPtr *dbus.Error
	switch {
	case errors.As(err, &dbusErr):
		name = dbusErr.Name
	case errors.As(err, &dbusErrPtr):
		name = dbusErrPtr.Name
	default:
		return err
	}
	if name == serviceUnknown {
		return fmt.Errorf("%w: %w", ErrNotRunning, err)
	}
	return err
}
