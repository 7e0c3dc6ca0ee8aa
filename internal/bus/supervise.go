package bus

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Backoff is the restart delay policy for a supervised task.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff doubles from 1s up to 30s.
var DefaultBackoff = Backoff{Initial: initialBackoff, Max: maxBackoff}

// Supervise runs run until ctx is cancelled, restarting it after failures.
// The delay doubles after each failure up to b.Max and resets once a run
// stays up longer than b.Max. onRestart, if set, is called before each
// restart.
func Supervise(ctx context.Context, log logrus.FieldLogger, b Backoff, run func(context.Context) error, onRestart func()) {
	delay := b.Initial
	for {
		started := time.Now()
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil || errors.Is(err, context.Canceled) {
			err = errors.New("listener stopped")
		}

		if time.Since(started) > b.Max {
			delay = b.Initial
		}
		log.WithError(err).WithField("retry_in", delay).Warn("bus listener failed")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = min(delay*2, b.Max)

		if onRestart != nil {
			onRestart()
		}
	}
}
