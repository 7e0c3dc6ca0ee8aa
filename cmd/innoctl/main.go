// Command innoctl controls a running inno daemon over D-Bus.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/llehouerou/inno/internal/control"
	"github.com/llehouerou/inno/internal/errmsg"
)

const usage = `usage: innoctl [--timeout D] <command>

commands:
  show MESSAGE [SECONDS]   show MESSAGE (default %d seconds)
  hide                     hide the current notification
  reload                   reload configuration and event rules
  state                    print the last battery percentage and state
  version                  print the daemon version
`

// daemonClient is the part of *control.Client innoctl uses.
type daemonClient interface {
	Show(ctx context.Context, message string, duration time.Duration) error
	Hide(ctx context.Context) error
	Reload(ctx context.Context) error
	GetState(ctx context.Context) (float64, string, error)
	Version(ctx context.Context) (string, error)
	Close() error
}

func main() {
	dial := func() (daemonClient, error) { return control.Dial() }
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, dial))
}

func run(args []string, stdout, stderr io.Writer, dial func() (daemonClient, error)) int {
	fs := pflag.NewFlagSet("innoctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	timeout := fs.Duration("timeout", 5*time.Second, "how long to wait for the daemon")
	fs.Usage = func() {
		fmt.Fprintf(stderr, usage, int(control.DefaultShowDuration/time.Second))
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	op, call, err := parseCommand(cmd, rest, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return 2
	}

	client, err := dial()
	if err != nil {
		fmt.Fprintln(stderr, errmsg.Format(errmsg.OpBusConnect, err))
		return 1
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := call(ctx, client); err != nil {
		fmt.Fprintln(stderr, errmsg.Format(op, err))
		if errors.Is(err, control.ErrNotRunning) {
			return 3
		}
		return 1
	}
	return 0
}

type callFunc func(ctx context.Context, c daemonClient) error

func parseCommand(cmd string, args []string, stdout io.Writer) (errmsg.Op, callFunc, error) {
	switch cmd {
	case "show":
		if len(args) < 1 || len(args) > 2 {
			return "", nil, errors.New("show takes MESSAGE and an optional SECONDS")
		}
		message := args[0]
		var duration time.Duration
		if len(args) == 2 {
			secs, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return "", nil, fmt.Errorf("invalid duration %q", args[1])
			}
			duration = time.Duration(secs) * time.Second
		}
		return errmsg.OpControlShow, func(ctx context.Context, c daemonClient) error {
			return c.Show(ctx, message, duration)
		}, nil

	case "hide":
		return noArgs(errmsg.OpControlHide, args, func(ctx context.Context, c daemonClient) error {
			return c.Hide(ctx)
		})

	case "reload":
		return noArgs(errmsg.OpControlReload, args, func(ctx context.Context, c daemonClient) error {
			return c.Reload(ctx)
		})

	case "state":
		return noArgs(errmsg.OpControlState, args, func(ctx context.Context, c daemonClient) error {
			pct, st, err := c.GetState(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s%% %s\n", humanize.FtoaWithDigits(pct, 1), st)
			return nil
		})

	case "version":
		return noArgs(errmsg.OpControlVersion, args, func(ctx context.Context, c daemonClient) error {
			v, err := c.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "inno %s (innoctl %s)\n", v, control.Version)
			return nil
		})

	default:
		return "", nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func noArgs(op errmsg.Op, args []string, fn callFunc) (errmsg.Op, callFunc, error) {
	if len(args) > 0 {
		return "", nil, fmt.Errorf("unexpected argument %q", args[0])
	}
	return op, fn, nil
}
