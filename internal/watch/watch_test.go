package watch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestTarget_Matches(t *testing.T) {
	file := Target{Path: "/cfg/inno.toml"}
	dir := Target{Path: "/cfg/events", Dir: true}

	tests := []struct {
		name   string
		target Target
		event  fsnotify.Event
		want   bool
	}{
		{"file write", file, fsnotify.Event{Name: "/cfg/inno.toml", Op: fsnotify.Write}, true},
		{"file rename", file, fsnotify.Event{Name: "/cfg/inno.toml", Op: fsnotify.Rename}, true},
		{"file chmod", file, fsnotify.Event{Name: "/cfg/inno.toml", Op: fsnotify.Chmod}, false},
		{"sibling file", file, fsnotify.Event{Name: "/cfg/other.toml", Op: fsnotify.Write}, false},
		{"rule created", dir, fsnotify.Event{Name: "/cfg/events/battery.toml", Op: fsnotify.Create}, true},
		{"rule removed", dir, fsnotify.Event{Name: "/cfg/events/battery.toml", Op: fsnotify.Remove}, true},
		{"non toml in dir", dir, fsnotify.Event{Name: "/cfg/events/README", Op: fsnotify.Write}, false},
		{"nested dir", dir, fsnotify.Event{Name: "/cfg/events/sub/x.toml", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.target.matches(tt.event))
		})
	}
}

func TestWatch_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inno.toml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	out := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, quietLogger(), Target{Path: path, Out: out}) }()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o600))
	}

	select {
	case <-out:
	case <-time.After(3 * time.Second):
		t.Fatal("no reload request")
	}

	select {
	case <-out:
		t.Fatal("burst produced more than one reload request")
	case <-time.After(2 * DebounceWindow):
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_RuleDirectory(t *testing.T) {
	dir := t.TempDir()
	out := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = Watch(ctx, quietLogger(), Target{Path: dir, Dir: true, Out: out}) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "headset.toml"), []byte("name = \"x\"\n"), 0o600))

	select {
	case <-out:
	case <-time.After(3 * time.Second):
		t.Fatal("no reload request for new rule file")
	}
}

func TestWatch_NoTargetsWaitsForCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, quietLogger(), Target{}) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
