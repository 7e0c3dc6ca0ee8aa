// Package watch turns file system changes to the configuration into
// debounced reload requests.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DebounceWindow is how long a burst of writes must be quiet before a
// reload is requested.
const DebounceWindow = 250 * time.Millisecond

// Target is a watched path. A file target fires when that file changes; a
// directory target fires when any *.toml inside it is written, created,
// renamed or removed. Sends on Out never block: a pending request absorbs
// new ones.
type Target struct {
	Path string
	Dir  bool
	Out  chan<- struct{}
}

func (t Target) matches(event fsnotify.Event) bool {
	name := filepath.Clean(event.Name)
	if t.Dir {
		if filepath.Dir(name) != filepath.Clean(t.Path) || !strings.EqualFold(filepath.Ext(name), ".toml") {
			return false
		}
		return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
	}
	if name != filepath.Clean(t.Path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (t Target) watchDir() string {
	if t.Dir {
		return filepath.Clean(t.Path)
	}
	// Editors replace files by rename, so the parent is watched.
	return filepath.Dir(filepath.Clean(t.Path))
}

// Watch blocks until ctx is cancelled, forwarding debounced changes for
// each target. Targets with an empty path are ignored.
func Watch(ctx context.Context, log logrus.FieldLogger, targets ...Target) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	var active []Target
	added := make(map[string]bool)
	for _, t := range targets {
		if t.Path == "" || t.Out == nil {
			continue
		}
		dir := t.watchDir()
		if !added[dir] {
			if err := watcher.Add(dir); err != nil {
				log.WithError(err).WithField("path", dir).Warn("cannot watch configuration path")
				continue
			}
			added[dir] = true
		}
		active = append(active, t)
	}
	if len(active) == 0 {
		<-ctx.Done()
		return nil
	}

	timers := make([]*time.Timer, len(active))
	fired := make(chan int, len(active))
	defer func() {
		for _, timer := range timers {
			if timer != nil {
				timer.Stop()
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			for i, t := range active {
				if !t.matches(event) {
					continue
				}
				if timers[i] != nil {
					timers[i].Stop()
				}
				idx := i
				timers[i] = time.AfterFunc(DebounceWindow, func() {
					select {
					case fired <- idx:
					case <-ctx.Done():
					}
				})
			}
		case i := <-fired:
			log.WithField("path", active[i].Path).Debug("configuration changed")
			select {
			case active[i].Out <- struct{}{}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("config watcher error")
		}
	}
}
