// Package bus connects event rules to the system and session message
// buses and feeds matched observations to the daemon.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/inno/internal/config"
	"github.com/llehouerou/inno/internal/errmsg"
	"github.com/llehouerou/inno/internal/matcher"
	"github.com/llehouerou/inno/internal/metrics"
	"github.com/llehouerou/inno/internal/rules"
)

const signalBuffer = 64

// ErrDisconnected is returned by Run when the bus connection goes away.
var ErrDisconnected = errors.New("bus connection lost")

// Listener subscribes one bus to the rules of its domain.
type Listener struct {
	Domain      rules.Domain
	Rules       []rules.Rule
	BatteryMode config.BatteryMode
	Out         chan<- matcher.Observation
	Log         logrus.FieldLogger

	// connect opens the bus connection; replaced in tests.
	connect func() (*dbus.Conn, error)
}

func (l *Listener) dial() (*dbus.Conn, error) {
	if l.connect != nil {
		return l.connect()
	}
	if l.Domain == rules.Session {
		return dbus.ConnectSessionBus()
	}
	return dbus.ConnectSystemBus()
}

// Run connects, registers one match per rule and forwards observations
// until ctx is cancelled or the connection fails. Sends to Out block.
func (l *Listener) Run(ctx context.Context) error {
	conn, err := l.dial()
	if err != nil {
		return fmt.Errorf("connect %s bus: %w", l.Domain, err)
	}
	defer conn.Close()

	for _, r := range l.Rules {
		match := r.Match.MatchString()
		call := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.AddMatch", 0, match)
		if call.Err != nil {
			return fmt.Errorf("%s for rule %q: %w", errmsg.OpBusSubscribe, r.Name, call.Err)
		}
		l.Log.WithFields(logrus.Fields{"rule": r.Name, "match": match}).Debug("registered match")
	}

	var battery matcher.BatteryQuerier
	if l.Domain == rules.System {
		battery = NewUPower(conn, l.BatteryMode)
	}
	m := matcher.New(l.Rules, battery, l.Log)

	signals := make(chan *dbus.Signal, signalBuffer)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	l.Log.WithField("rules", len(l.Rules)).Info("listening")
	return l.loop(ctx, conn.Context().Done(), signals, m)
}

func (l *Listener) loop(ctx context.Context, connDone <-chan struct{}, signals <-chan *dbus.Signal, m *matcher.Matcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-connDone:
			return ErrDisconnected
		case sig, ok := <-signals:
			if !ok {
				return ErrDisconnected
			}
			msg, ok := toMessage(sig)
			if !ok {
				l.Log.WithField("name", sig.Name).Debug("skipping malformed signal")
				continue
			}
			for _, obs := range m.Match(ctx, msg) {
				select {
				case l.Out <- obs:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// Options configures StartAll.
type Options struct {
	Rules       rules.RuleSet
	BatteryMode config.BatteryMode
	Out         chan<- matcher.Observation
	Log         logrus.FieldLogger
	Metrics     *metrics.Metrics
	Backoff     Backoff
}

// StartAll starts one supervised listener per domain that has rules and
// returns a function that waits for all of them to stop after ctx is
// cancelled.
func StartAll(ctx context.Context, opts Options) (wait func()) {
	backoff := opts.Backoff
	if backoff == (Backoff{}) {
		backoff = DefaultBackoff
	}

	var wg sync.WaitGroup
	for _, domain := range opts.Rules.Domains() {
		log := opts.Log.WithField("bus", domain.String())
		l := &Listener{
			Domain:      domain,
			Rules:       opts.Rules.ByDomain(domain),
			BatteryMode: opts.BatteryMode,
			Out:         opts.Out,
			Log:         log,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			Supervise(ctx, log, backoff, l.Run, func() {
				opts.Metrics.ListenerRestart(domain.String())
			})
		}()
	}
	return wg.Wait
}
