// Package daemon runs the orchestrator: the single goroutine that owns the
// notification state and turns observations, control commands and timers
// into renderer calls.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/llehouerou/inno/internal/animation"
	"github.com/llehouerou/inno/internal/config"
	"github.com/llehouerou/inno/internal/control"
	"github.com/llehouerou/inno/internal/errmsg"
	"github.com/llehouerou/inno/internal/matcher"
	"github.com/llehouerou/inno/internal/metrics"
	"github.com/llehouerou/inno/internal/render"
	"github.com/llehouerou/inno/internal/signals"
	"github.com/llehouerou/inno/internal/sound"
	"github.com/llehouerou/inno/internal/state"
)

const (
	// HideTimeout re-arms the hide timer while nothing is shown.
	HideTimeout = 86400 * time.Second
	// FadeOutWindow is how long before the hide deadline a Fade
	// notification starts fading out.
	FadeOutWindow = time.Second
)

// Persister stores snapshots across restarts. *state.Manager implements it.
type Persister interface {
	Save(snap state.Snapshot)
}

// Deps are the daemon's inputs and outputs.
type Deps struct {
	Config       *config.Config
	Observations <-chan matcher.Observation
	Reload       <-chan struct{}
	Control      <-chan control.Command
	Renderer     render.Renderer
	Sound        sound.Player

	// Loader rereads the configuration on reload. Nil disables reloads.
	Loader func() (*config.Config, error)

	// ReloadRules asks for the event rules to be reread. Only a control
	// Reload calls it; config file edits leave the listeners alone.
	ReloadRules func()

	Snapshot *state.Store
	Persist  Persister // optional
	Metrics  *metrics.Metrics
	Clock    Clock
	Logger   logrus.FieldLogger
}

// notificationState is owned by the Run goroutine.
type notificationState struct {
	currentText   string
	currentSignal *config.Signal // nil for direct text
	kind          animation.Kind
	showing       bool

	prevState         string
	prevSignalMessage string
	seen              bool

	driver       animation.Driver
	hideDeadline time.Time
	animating    bool

	percentage float64
	state      string
}

type Daemon struct {
	cfg      *config.Config
	obs      <-chan matcher.Observation
	reload   <-chan struct{}
	control  <-chan control.Command
	renderer render.Renderer
	sound    sound.Player
	loader   func() (*config.Config, error)
	rules    func()
	store    *state.Store
	persist  Persister
	metrics  *metrics.Metrics
	clock    Clock
	log      logrus.FieldLogger

	st        notificationState
	hideTimer Timer
	animTimer Timer // nil while not animating
}

// New builds a daemon. Missing optional deps get harmless defaults.
func New(deps Deps) *Daemon {
	d := &Daemon{
		cfg:      deps.Config,
		obs:      deps.Observations,
		reload:   deps.Reload,
		control:  deps.Control,
		renderer: deps.Renderer,
		sound:    deps.Sound,
		loader:   deps.Loader,
		rules:    deps.ReloadRules,
		store:    deps.Snapshot,
		persist:  deps.Persist,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		log:      deps.Logger,
	}
	if d.cfg == nil {
		d.cfg = config.Default()
	}
	if d.sound == nil {
		d.sound = sound.Nop{}
	}
	if d.store == nil {
		d.store = state.NewStore()
	}
	if d.clock == nil {
		d.clock = realClock{}
	}
	if d.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		d.log = l
	}

	snap := d.store.Load()
	d.st.percentage = snap.Percentage
	d.st.state = snap.State
	d.st.driver = animation.NewDriver()
	d.hideTimer = d.clock.NewTimer(HideTimeout)
	d.st.hideDeadline = d.clock.Now().Add(HideTimeout)
	return d
}

// Run processes events until ctx is cancelled or the render surface closes.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.stopTimers()

	d.log.WithFields(logrus.Fields{
		"signals":  len(d.cfg.Signals),
		"renderer": d.cfg.Renderer,
	}).Info("daemon started")

	for {
		var animC <-chan time.Time
		if d.animTimer != nil {
			animC = d.animTimer.C()
		}

		var err error
		select {
		case <-ctx.Done():
			d.log.Info("daemon stopping")
			return nil

		case obs, ok := <-d.obs:
			if !ok {
				d.obs = nil
				continue
			}
			err = d.handleObservation(obs)

		case _, ok := <-d.reload:
			if !ok {
				d.reload = nil
				continue
			}
			d.handleReload("file")

		case cmd, ok := <-d.control:
			if !ok {
				d.control = nil
				continue
			}
			err = d.handleCommand(cmd)

		case <-animC:
			err = d.handleTick()

		case <-d.hideTimer.C():
			err = d.handleHideDeadline()

		case ev, ok := <-d.renderer.Events():
			if !ok {
				return render.ErrClosed
			}
			err = d.handleSurface(ev)
		}

		if err != nil {
			return err
		}
	}
}

func (d *Daemon) handleObservation(obs matcher.Observation) error {
	d.metrics.Observation(obs.EventName)

	if obs.Percentage != nil {
		d.st.percentage = *obs.Percentage
	}
	if obs.State != nil {
		d.st.state = *obs.State
	}
	pct, st := d.st.percentage, d.st.state
	d.metrics.Percentage(pct)

	sig := signals.Find(pct, st, d.cfg.Signals)
	msg := ""
	if sig != nil {
		msg = sig.Message
	}

	stateChanged := !d.st.seen || st != d.st.prevState
	signalChanged := !d.st.seen || msg != d.st.prevSignalMessage
	d.st.prevState = st
	d.st.prevSignalMessage = msg
	d.st.seen = true

	log := d.log.WithFields(logrus.Fields{
		"event":      obs.EventName,
		"percentage": pct,
		"state":      st,
	})

	var err error
	if sig != nil && (stateChanged || signalChanged) {
		resolved := *sig
		text := d.cfg.DisplayText(&resolved, pct, st)
		log.WithFields(logrus.Fields{
			"signal":         resolved.Message,
			"state_changed":  stateChanged,
			"signal_changed": signalChanged,
		}).Info("showing notification")

		if resolved.Sound != "" {
			d.sound.Play(resolved.Sound)
		}
		err = d.show(text, &resolved, resolved.Duration, resolved.Animation, "signal")
	} else {
		log.Debug("observation without render")
	}

	d.publish()
	return err
}

func (d *Daemon) handleCommand(cmd control.Command) error {
	switch c := cmd.(type) {
	case control.Show:
		dur := c.Duration
		if dur <= 0 {
			dur = control.DefaultShowDuration
		}
		d.log.WithField("duration", dur).Info("control: show")
		err := d.show(c.Message, nil, dur, animation.None, "control")
		d.publish()
		return err
	case control.Hide:
		d.log.Info("control: hide")
		err := d.hide("control")
		d.publish()
		return err
	case control.Reload:
		if d.rules != nil {
			d.rules()
		}
		d.handleReload("control")
		return nil
	default:
		d.log.WithField("command", fmt.Sprintf("%T", cmd)).Warn("unknown control command")
		return nil
	}
}

// handleReload swaps the configuration. The notification on screen is
// left as it is.
func (d *Daemon) handleReload(source string) {
	if d.loader == nil {
		return
	}
	log := d.log.WithField("source", source)

	cfg, err := d.loader()
	if err != nil {
		d.metrics.Reload(false)
		log.Warn(errmsg.Format(errmsg.OpConfigReload, err))
		return
	}
	d.cfg = cfg
	d.renderer.Configure(cfg)
	d.metrics.Reload(true)
	log.WithField("signals", len(cfg.Signals)).Info("configuration reloaded")
}

func (d *Daemon) handleTick() error {
	if !d.st.animating || !d.st.showing {
		d.stopAnimation()
		return nil
	}
	d.st.driver.Tick(d.st.kind)
	d.animTimer = d.clock.NewTimer(animation.Interval)
	return d.draw()
}

func (d *Daemon) handleHideDeadline() error {
	if !d.st.showing {
		d.armHide(HideTimeout)
		return nil
	}
	d.log.Debug("hide deadline reached")
	err := d.hide("timeout")
	d.publish()
	return err
}

func (d *Daemon) handleSurface(ev render.SurfaceEvent) error {
	switch ev.Kind {
	case render.Closed:
		d.log.WithError(ev.Err).Warn("render surface closed")
		if ev.Err != nil {
			return fmt.Errorf("%w: %w", render.ErrClosed, ev.Err)
		}
		return render.ErrClosed
	default:
		d.log.WithField("event", ev.Kind.String()).Debug("render surface event")
		return nil
	}
}

// show starts a new notification: the animation restarts and the hide
// timer is armed for dur.
func (d *Daemon) show(text string, sig *config.Signal, dur time.Duration, kind animation.Kind, reason string) error {
	d.st.driver.Reset()
	d.st.currentText = text
	d.st.currentSignal = sig
	d.st.kind = kind
	d.st.showing = true
	d.armHide(dur)

	d.st.animating = kind != animation.None
	if d.st.animating {
		d.startAnimation()
	} else {
		d.stopAnimation()
	}

	d.metrics.Render(reason)
	return d.draw()
}

func (d *Daemon) hide(reason string) error {
	d.armHide(HideTimeout)
	if !d.st.showing {
		return nil
	}
	d.st.currentText = ""
	d.st.currentSignal = nil
	d.st.kind = animation.None
	d.st.showing = false
	d.st.animating = false
	d.st.driver.Reset()
	d.stopAnimation()

	d.metrics.Hide(reason)
	return d.renderErr(d.renderer.Hide())
}

// draw renders the current text with the driver's visual state. Frames
// that are invisible are still sent so the renderer can clear its surface.
func (d *Daemon) draw() error {
	_, _, err := d.renderer.Render(d.st.currentText, d.st.currentSignal, d.visualState())
	return d.renderErr(err)
}

// visualState is the kind's curve at the driver's frame with the fade-out
// cap applied. Frame 0 is the first point of the curve, so a Fade starts
// transparent and a Slide starts off to the side.
func (d *Daemon) visualState() animation.VisualState {
	vs := animation.Compute(d.st.kind, d.st.driver.Frame())
	if d.st.kind != animation.Fade {
		return vs
	}
	remaining := d.st.hideDeadline.Sub(d.clock.Now())
	if remaining >= FadeOutWindow {
		return vs
	}
	limit := max(float64(remaining)/float64(FadeOutWindow), 0)
	vs.Alpha = min(vs.Alpha, limit)
	return vs
}

// renderErr logs transient failures and passes fatal ones up.
func (d *Daemon) renderErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, render.ErrTransient) {
		d.log.WithError(err).Warn("render failed, retrying on next frame")
		return nil
	}
	return fmt.Errorf("render: %w", err)
}

func (d *Daemon) armHide(dur time.Duration) {
	d.hideTimer.Stop()
	d.hideTimer = d.clock.NewTimer(dur)
	d.st.hideDeadline = d.clock.Now().Add(dur)
}

func (d *Daemon) startAnimation() {
	if d.animTimer != nil {
		d.animTimer.Stop()
	}
	d.animTimer = d.clock.NewTimer(animation.Interval)
}

func (d *Daemon) stopAnimation() {
	if d.animTimer != nil {
		d.animTimer.Stop()
		d.animTimer = nil
	}
}

func (d *Daemon) stopTimers() {
	d.hideTimer.Stop()
	d.stopAnimation()
}

// publish swaps in a new snapshot for control readers and persists it.
func (d *Daemon) publish() {
	snap := d.store.Publish(func(s *state.Snapshot) {
		s.Percentage = d.st.percentage
		s.State = d.st.state
		s.Text = d.st.currentText
		s.Visible = d.st.showing
		s.UpdatedAt = d.clock.Now()
	})
	if d.persist != nil {
		d.persist.Save(snap)
	}
}
