package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// reopenableLogWriter is an io.Writer over a log file that can be
// reopened in place, so a SIGHUP-driven log rotation doesn't lose
// writes mid-rollover. Adapted from the teacher's
// cmd/mtproto-proxy/log_writer.go; wrapped by a pion/logging.LoggerFactory
// here instead of being written to directly.
var _ io.Writer = (*reopenableLogWriter)(nil)

type reopenableLogWriter struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func newReopenableLogWriter(path string) (*reopenableLogWriter, error) {
	f, err := openLogFile(path)
	if err != nil {
		return nil, err
	}
	return &reopenableLogWriter{path: path, f: f}, nil
}

func (w *reopenableLogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return 0, fmt.Errorf("log writer is closed")
	}
	return w.f.Write(p)
}

// Reopen closes the previous file handle and opens path fresh, picking
// up a rotation performed by an external log rotator.
func (w *reopenableLogWriter) Reopen() error {
	next, err := openLogFile(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	prev := w.f
	w.f = next
	if prev != nil {
		return prev.Close()
	}
	return nil
}

func (w *reopenableLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// setupLogWriter returns stderr when path is empty, otherwise a
// reopenableLogWriter over path plus a cleanup func the caller should
// defer.
func setupLogWriter(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stderr, func() {}, nil
	}
	lw, err := newReopenableLogWriter(path)
	if err != nil {
		return nil, nil, err
	}
	return lw, func() { _ = lw.Close() }, nil
}

// installSIGHUPReopen reopens logw on SIGHUP, matching the teacher's
// log-rotation signal handling in cmd/mtproto-proxy/main.go. No-op when
// logw isn't a reopenableLogWriter (i.e. logging to stderr).
func installSIGHUPReopen(logw io.Writer) {
	reopener, ok := logw.(interface{ Reopen() error })
	if !ok {
		return
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	go func() {
		for range sigCh {
			_ = reopener.Reopen()
		}
	}()
}

func openLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return f, nil
}
