package control

import (
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/inno/internal/state"
)

const (
	ServiceName = "org.inno.Control"
	ObjectPath  = dbus.ObjectPath("/org/inno/Control")
	Interface   = "org.inno.Control"

	errFailed = "org.inno.Control.Error.Failed"

	enqueueTimeout = 2 * time.Second
)

// ErrNameTaken means another daemon already owns the service name.
var ErrNameTaken = errors.New("control service name already taken")

const introspectXML = `
<node>
	<interface name="` + Interface + `">
		<method name="Show">
			<arg name="message" direction="in" type="s"/>
			<arg name="duration" direction="in" type="t"/>
		</method>
		<method name="Hide"/>
		<method name="Reload"/>
		<method name="GetState">
			<arg name="percentage" direction="out" type="d"/>
			<arg name="state" direction="out" type="s"/>
		</method>
		<method name="Version">
			<arg name="version" direction="out" type="s"/>
		</method>
	</interface>` + introspect.IntrospectDataString + `</node>`

// Service handles remote-control calls. Commands are queued on the
// daemon's control channel; GetState reads the published snapshot.
type Service struct {
	out   chan<- Command
	done  <-chan struct{}
	store *state.Store
	log   logrus.FieldLogger

	timeout time.Duration
}

// NewService creates a service feeding out. done is closed when the daemon
// stops accepting commands.
func NewService(out chan<- Command, done <-chan struct{}, store *state.Store, log logrus.FieldLogger) *Service {
	return &Service{out: out, done: done, store: store, log: log, timeout: enqueueTimeout}
}

// Register exports the service on conn and claims the well-known name.
func Register(conn *dbus.Conn, s *Service) error {
	if err := conn.Export(s, ObjectPath, Interface); err != nil {
		return fmt.Errorf("export %s: %w", Interface, err)
	}
	if err := conn.Export(introspect.Introspectable(introspectXML), ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name %s: %w", ServiceName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return ErrNameTaken
	}
	s.log.WithField("name", ServiceName).Info("control interface registered")
	return nil
}

// Show queues a direct-text notification. A zero duration means
// DefaultShowDuration; longer than MaxShowDuration is clamped.
func (s *Service) Show(message string, duration uint64) *dbus.Error {
	var d time.Duration
	switch {
	case duration == 0:
		d = DefaultShowDuration
	case duration > uint64(MaxShowDuration/time.Second):
		d = MaxShowDuration
	default:
		d = time.Duration(duration) * time.Second
	}
	s.log.WithFields(logrus.Fields{"message": message, "duration": d}).Info("control: show")
	return s.enqueue(Show{Message: message, Duration: d})
}

func (s *Service) Hide() *dbus.Error {
	s.log.Info("control: hide")
	return s.enqueue(Hide{})
}

func (s *Service) Reload() *dbus.Error {
	s.log.Info("control: reload")
	return s.enqueue(Reload{})
}

// GetState returns the last observed percentage and state label.
func (s *Service) GetState() (float64, string, *dbus.Error) {
	snap := s.store.Load()
	return snap.Percentage, snap.State, nil
}

func (s *Service) Version() (string, *dbus.Error) {
	return Version, nil
}

func (s *Service) enqueue(cmd Command) *dbus.Error {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case s.out <- cmd:
		return nil
	case <-s.done:
		return dbus.NewError(errFailed, []any{"daemon is shutting down"})
	case <-timer.C:
		return dbus.NewError(errFailed, []any{"daemon is busy"})
	}
}
