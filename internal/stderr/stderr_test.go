//go:build !windows

package stderr

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForward_LogsNonEmptyLines(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	forward(strings.NewReader("ALSA lib pcm.c: underrun\n\n   \n  second line  \n"), log)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "ALSA lib pcm.c: underrun", entries[0].Message)
	assert.Equal(t, "second line", entries[1].Message)
	assert.Equal(t, logrus.DebugLevel, entries[0].Level)
	assert.Equal(t, "stderr", entries[0].Data["source"])
}

func TestOriginal_BeforeStart(t *testing.T) {
	assert.NotNil(t, Original())
}
