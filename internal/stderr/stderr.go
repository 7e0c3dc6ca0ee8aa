//go:build !windows

// Package stderr captures stderr output from C libraries (ALSA through the
// audio backend) that write directly to file descriptor 2, bypassing Go's
// os.Stderr, and forwards it to the logger.
package stderr

import (
	"bufio"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
)

var (
	origStderr int
	origFile   *os.File
	pipeRead   *os.File
	pipeWrite  *os.File
	started    bool
)

// Start begins capturing stderr output.
// Must be called early in main(), before any C library initialization and
// before the logger is pointed at Original().
// Returns an error if capture cannot be set up, but the program can continue
// without stderr capture.
func Start() error {
	if started {
		return nil
	}

	r, w, err := os.Pipe()
	if err != nil {
		return err
	}

	origStderr, err = syscall.Dup(int(os.Stderr.Fd()))
	if err != nil {
		r.Close()
		w.Close()
		return err
	}

	// Redirect stderr (fd 2) to the pipe's write end
	err = syscall.Dup2(int(w.Fd()), int(os.Stderr.Fd()))
	if err != nil {
		syscall.Close(origStderr)
		r.Close()
		w.Close()
		return err
	}

	pipeRead = r
	pipeWrite = w
	origFile = os.NewFile(uintptr(origStderr), "stderr")
	started = true
	return nil
}

// Original returns the terminal stderr as it was before Start. The logger
// must write here, otherwise its own output would be captured again.
func Original() io.Writer {
	if origFile != nil {
		return origFile
	}
	return os.Stderr
}

// Forward logs every captured line at debug level until Stop is called.
func Forward(log logrus.FieldLogger) {
	if !started {
		return
	}
	go forward(pipeRead, log)
}

func forward(r io.Reader, log logrus.FieldLogger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			log.WithField("source", "stderr").Debug(line)
		}
	}
}

// WriteOriginal writes directly to the original stderr, bypassing capture.
// Useful for fatal errors that must be visible.
func WriteOriginal(msg string) {
	_, _ = io.WriteString(Original(), msg)
}

// Stop restores the original stderr. Should be called on program exit.
func Stop() {
	if !started {
		return
	}

	_ = syscall.Dup2(origStderr, int(os.Stderr.Fd()))
	origFile.Close()
	origFile = nil

	pipeWrite.Close()
	pipeRead.Close()

	started = false
}
