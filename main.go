// Command inno is a desktop daemon that turns D-Bus state changes (battery
// level and charging state by default) into on-screen notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/llehouerou/inno/internal/bus"
	"github.com/llehouerou/inno/internal/config"
	"github.com/llehouerou/inno/internal/control"
	"github.com/llehouerou/inno/internal/daemon"
	"github.com/llehouerou/inno/internal/errmsg"
	"github.com/llehouerou/inno/internal/logging"
	"github.com/llehouerou/inno/internal/matcher"
	"github.com/llehouerou/inno/internal/metrics"
	"github.com/llehouerou/inno/internal/notify"
	"github.com/llehouerou/inno/internal/render"
	"github.com/llehouerou/inno/internal/rules"
	"github.com/llehouerou/inno/internal/sound"
	"github.com/llehouerou/inno/internal/state"
	"github.com/llehouerou/inno/internal/stderr"
	"github.com/llehouerou/inno/internal/watch"
)

// Channel capacities between the background goroutines and the daemon.
const (
	observationBuffer = 10
	controlBuffer     = 10
)

type options struct {
	configPath string
	eventsDir  string
	logLevel   string
	logFile    string
	renderer   string
	noDBus     bool
	version    bool
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var o options
	fs := pflag.NewFlagSet("inno", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVarP(&o.configPath, "config", "c", "", "path to config.toml (default: first found in the search path)")
	fs.StringVarP(&o.eventsDir, "events", "e", "", "directory of event rule files")
	fs.StringVar(&o.logLevel, "log-level", "", "log level (trace|debug|info|warn|error), overrides the config")
	fs.StringVar(&o.logFile, "log-file", "", "append logs to this file instead of stderr")
	fs.StringVar(&o.renderer, "renderer", "", "output backend (notify|console), overrides the config")
	fs.BoolVar(&o.noDBus, "no-dbus", false, "do not register the org.inno.Control service")
	fs.BoolVarP(&o.version, "version", "v", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return o, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if opts.version {
		fmt.Println("inno", control.Version)
		return 0
	}

	// Capture stderr early, before the audio backend can write to fd 2.
	if err := stderr.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not capture stderr: %v\n", err)
	}
	defer stderr.Stop()

	cfg, cfgErr := config.Load(opts.configPath)
	if cfg == nil {
		cfg = config.Default()
	}
	applyOverrides(cfg, opts)

	logOut := stderr.Original()
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			stderr.WriteOriginal(fmt.Sprintf("Warning: cannot open log file: %v\n", err))
		} else {
			defer f.Close()
			logOut = f
		}
	}
	logLevel := cfg.LogLevel
	if opts.logLevel != "" {
		logLevel = opts.logLevel
	}
	log := logging.New(logLevel, logOut)
	stderr.Forward(log)

	switch {
	case errors.Is(cfgErr, config.ErrNotFound):
		log.WithField("searched", config.SearchPaths()).Info("no config file found, using defaults")
	case cfgErr != nil:
		log.Warn(errmsg.Format(errmsg.OpConfigLoad, cfgErr))
	default:
		log.WithField("path", cfg.Path).Info("configuration loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runDaemon(ctx, log, cfg, opts); err != nil {
		msg := errmsg.Format(errmsg.OpInitialize, err)
		log.Error(msg)
		if opts.logFile != "" {
			stderr.WriteOriginal(msg + "\n")
		}
		return 1
	}
	return 0
}

func applyOverrides(cfg *config.Config, opts options) {
	if opts.renderer != "" {
		cfg.Renderer = opts.renderer
	}
}

func runDaemon(ctx context.Context, log *logrus.Logger, cfg *config.Config, opts options) error {
	eventDirs := config.EventDirs()
	if opts.eventsDir != "" {
		eventDirs = []string{config.ExpandPath(opts.eventsDir)}
	}
	ruleset := rules.Load(log, eventDirs)

	store := state.NewStore()
	var persist daemon.Persister
	if mgr, err := state.Open(); err != nil {
		log.Warn(errmsg.Format(errmsg.OpStateOpen, err))
	} else {
		defer mgr.Close()
		persist = mgr
		if last, err := mgr.Last(); err != nil {
			log.Warn(errmsg.Format(errmsg.OpStateOpen, err))
		} else if last != nil {
			store.Seed(*last)
			log.WithFields(logrus.Fields{
				"percentage": last.Percentage,
				"state":      last.State,
			}).Debug("restored last battery reading")
		}
	}

	renderer, err := newRenderer(cfg)
	if err != nil {
		return err
	}
	defer renderer.Close()

	m := metrics.New()
	observations := make(chan matcher.Observation, observationBuffer)
	commands := make(chan control.Command, controlBuffer)
	reload := make(chan struct{}, 1)
	rulesChanged := make(chan struct{}, 1)

	g, gctx := errgroup.WithContext(ctx)

	if !opts.noDBus {
		registerControl(gctx, log, commands, store)
	}

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			if err := m.Serve(gctx, cfg.MetricsAddr, log); err != nil {
				log.Warn(errmsg.Format(errmsg.OpMetricsServe, err))
			}
			return nil
		})
	}

	g.Go(func() error {
		err := watch.Watch(gctx, log,
			watch.Target{Path: cfg.Path, Out: reload},
			watch.Target{Path: ruleset.Dir, Dir: true, Out: rulesChanged},
		)
		if err != nil {
			log.Warn(errmsg.Format(errmsg.OpWatch, err))
		}
		return nil
	})

	g.Go(func() error {
		runListeners(gctx, log, ruleset, eventDirs, rulesChanged, bus.Options{
			BatteryMode: cfg.BatteryMode,
			Out:         observations,
			Log:         log,
			Metrics:     m,
		})
		return nil
	})

	configPath := cfg.Path
	if configPath == "" {
		configPath = opts.configPath
	}
	d := daemon.New(daemon.Deps{
		Config:       cfg,
		Observations: observations,
		Reload:       reload,
		Control:      commands,
		Renderer:     renderer,
		Sound:        sound.New(log),
		Loader: func() (*config.Config, error) {
			next, err := config.Load(configPath)
			if err != nil {
				return nil, err
			}
			applyOverrides(next, opts)
			return next, nil
		},
		ReloadRules: func() {
			select {
			case rulesChanged <- struct{}{}:
			default:
			}
		},
		Snapshot: store,
		Persist:  persist,
		Metrics:  m,
		Logger:   log,
	})
	g.Go(func() error {
		return d.Run(gctx)
	})

	return g.Wait()
}

func newRenderer(cfg *config.Config) (render.Renderer, error) {
	var notifier notify.Notifier
	if cfg.Renderer != "console" {
		n, err := notify.New()
		if err != nil {
			return nil, err
		}
		notifier = n
	}
	r, err := render.New(cfg.Renderer, cfg, render.Options{Out: os.Stdout, Notifier: notifier})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errmsg.OpRender, err)
	}
	return r, nil
}

// registerControl exports the control service on the session bus. The
// daemon keeps running without it when the bus or the name is unavailable.
func registerControl(ctx context.Context, log logrus.FieldLogger, commands chan<- control.Command, store *state.Store) {
	conn, err := dbus.SessionBus()
	if err != nil {
		log.Warn(errmsg.Format(errmsg.OpControlRegister, err))
		return
	}
	svc := control.NewService(commands, ctx.Done(), store, log)
	if err := control.Register(conn, svc); err != nil {
		log.Warn(errmsg.Format(errmsg.OpControlRegister, err))
	}
}

// runListeners keeps the bus listeners running, restarting them with a
// fresh rule set whenever the rule files change.
func runListeners(ctx context.Context, log logrus.FieldLogger, rs rules.RuleSet, dirs []string, changed <-chan struct{}, opts bus.Options) {
	for {
		lctx, cancel := context.WithCancel(ctx)
		opts.Rules = rs
		wait := bus.StartAll(lctx, opts)

		select {
		case <-ctx.Done():
			cancel()
			wait()
			return
		case <-changed:
			cancel()
			wait()
			rs = rules.Load(log, dirs)
			log.WithField("rules", len(rs.Rules)).Info("event rules reloaded, listeners restarted")
		}
	}
}
