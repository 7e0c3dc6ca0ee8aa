// Package sound plays short notification sounds without blocking the
// caller.
package sound

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/inno/internal/errmsg"
)

const (
	extWAV  = ".wav"
	extMP3  = ".mp3"
	extFLAC = ".flac"
	extOGG  = ".ogg"

	sampleRate beep.SampleRate = 44100
)

// Player plays a sound file. Play must return immediately.
type Player interface {
	Play(path string)
}

// Nop discards every request.
type Nop struct{}

func (Nop) Play(string) {}

// BeepPlayer decodes and mixes sounds onto the default audio device.
type BeepPlayer struct {
	log logrus.FieldLogger

	initOnce sync.Once
	initErr  error
}

// New returns a player that logs failures to log.
func New(log logrus.FieldLogger) *BeepPlayer {
	return &BeepPlayer{log: log}
}

// Play decodes path on a background goroutine and queues it on the
// speaker. Missing files and decode errors are logged.
func (p *BeepPlayer) Play(path string) {
	if path == "" {
		return
	}
	go func() {
		if err := p.play(path); err != nil {
			p.log.Warn(errmsg.FormatWith(errmsg.OpSoundPlay, path, err))
		}
	}()
}

func (p *BeepPlayer) play(path string) error {
	streamer, format, err := decode(path)
	if err != nil {
		return err
	}

	p.initOnce.Do(func() {
		p.initErr = speaker.Init(sampleRate, sampleRate.N(time.Second/10))
	})
	if p.initErr != nil {
		streamer.Close()
		return fmt.Errorf("init speaker: %w", p.initErr)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != sampleRate {
		s = beep.Resample(4, format.SampleRate, sampleRate, streamer)
	}

	speaker.Play(beep.Seq(s, beep.Callback(func() {
		streamer.Close()
	})))
	return nil
}

// decode opens path and picks a decoder by extension. The returned
// streamer owns the file.
func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case extWAV, extMP3, extFLAC, extOGG:
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported format: %s", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch ext {
	case extWAV:
		streamer, format, err = wav.Decode(f)
	case extMP3:
		streamer, format, err = mp3.Decode(f)
	case extFLAC:
		streamer, format, err = flac.Decode(f)
	case extOGG:
		streamer, format, err = vorbis.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return streamer, format, nil
}
