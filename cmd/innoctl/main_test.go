package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/inno/internal/control"
)

type fakeClient struct {
	shown    []string
	duration time.Duration
	hides    int
	reloads  int
	pct      float64
	state    string
	err      error
	closed   bool
}

func (f *fakeClient) Show(_ context.Context, message string, d time.Duration) error {
	f.shown = append(f.shown, message)
	f.duration = d
	return f.err
}

func (f *fakeClient) Hide(context.Context) error {
	f.hides++
	return f.err
}

func (f *fakeClient) Reload(context.Context) error {
	f.reloads++
	return f.err
}

func (f *fakeClient) GetState(context.Context) (float64, string, error) {
	return f.pct, f.state, f.err
}

func (f *fakeClient) Version(context.Context) (string, error) { return "1.2.3", f.err }

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func runWith(f *fakeClient, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr, func() (daemonClient, error) { return f, nil })
	return code, stdout.String(), stderr.String()
}

func TestShow(t *testing.T) {
	f := &fakeClient{}
	code, _, _ := runWith(f, "show", "hello world", "7")
	require.Equal(t, 0, code)
	assert.Equal(t, []string{"hello world"}, f.shown)
	assert.Equal(t, 7*time.Second, f.duration)
	assert.True(t, f.closed)

	f = &fakeClient{}
	code, _, _ = runWith(f, "show", "x")
	require.Equal(t, 0, code)
	assert.Zero(t, f.duration, "daemon applies its default")
}

func TestShowInvalidDuration(t *testing.T) {
	f := &fakeClient{}
	code, _, stderr := runWith(f, "show", "x", "soon")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `invalid duration "soon"`)
	assert.Empty(t, f.shown)
}

func TestHideReload(t *testing.T) {
	f := &fakeClient{}
	code, _, _ := runWith(f, "hide")
	assert.Equal(t, 0, code)
	code, _, _ = runWith(f, "reload")
	assert.Equal(t, 0, code)
	assert.Equal(t, 1, f.hides)
	assert.Equal(t, 1, f.reloads)

	code, _, _ = runWith(f, "hide", "now")
	assert.Equal(t, 2, code)
}

func TestState(t *testing.T) {
	f := &fakeClient{pct: 42, state: "discharging"}
	code, stdout, _ := runWith(f, "state")
	require.Equal(t, 0, code)
	assert.Equal(t, "42% discharging\n", stdout)

	f.pct = 42.5
	_, stdout, _ = runWith(f, "state")
	assert.Equal(t, "42.5% discharging\n", stdout)
}

func TestVersion(t *testing.T) {
	code, stdout, _ := runWith(&fakeClient{}, "version")
	require.Equal(t, 0, code)
	assert.Equal(t, fmt.Sprintf("inno 1.2.3 (innoctl %s)\n", control.Version), stdout)
}

func TestErrors(t *testing.T) {
	code, _, stderr := runWith(&fakeClient{err: fmt.Errorf("call: %w", control.ErrNotRunning)}, "hide")
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "Failed to hide notification")

	code, _, _ = runWith(&fakeClient{err: errors.New("boom")}, "reload")
	assert.Equal(t, 1, code)

	code, _, stderr = runWith(&fakeClient{}, "dance")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "dance"`)

	code, _, _ = runWith(&fakeClient{})
	assert.Equal(t, 2, code)
}

func TestDialFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"hide"}, &stdout, &stderr, func() (daemonClient, error) {
		return nil, errors.New("no session bus")
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Failed to connect to message bus")
}
