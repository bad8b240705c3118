// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/dotcli/lib/clock"
	"github.com/bureau-foundation/dotcli/lib/environ"
)

// DefaultGracePeriod is how long a cancelled child has to exit after
// the termination signal before it is killed.
const DefaultGracePeriod = 5 * time.Second

// tailLines is the number of trailing lines kept per stream for
// diagnostics.
const tailLines = 50

// Streams connects a child's standard streams. Nil writers discard
// output (it is still logged at debug level and kept in the tail).
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Result is the outcome of a child that started.
type Result struct {
	ExitCode  int
	Cancelled bool
	PID       int
	Duration  time.Duration

	// StdoutTail and StderrTail hold the last lines of each stream,
	// without line terminators.
	StdoutTail []string
	StderrTail []string
}

// Success reports whether the child exited with code zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && !r.Cancelled
}

// LauncherOptions configures a Launcher. Zero values select defaults.
type LauncherOptions struct {
	Logger      *slog.Logger
	Clock       clock.Clock
	GracePeriod time.Duration

	// Environment is the base environment children inherit. Nil means
	// the environment of the running process, captured once.
	Environment *environ.Snapshot
}

// Launcher starts child processes.
type Launcher struct {
	logger      *slog.Logger
	clock       clock.Clock
	gracePeriod time.Duration
	base        environ.Snapshot
}

// NewLauncher creates a Launcher.
func NewLauncher(options LauncherOptions) *Launcher {
	launcher := &Launcher{
		logger:      options.Logger,
		clock:       options.Clock,
		gracePeriod: options.GracePeriod,
	}
	if launcher.logger == nil {
		launcher.logger = slog.New(slog.DiscardHandler)
	}
	if launcher.clock == nil {
		launcher.clock = clock.Real()
	}
	if launcher.gracePeriod <= 0 {
		launcher.gracePeriod = DefaultGracePeriod
	}
	if options.Environment != nil {
		launcher.base = *options.Environment
	} else {
		launcher.base = environ.Current()
	}
	return launcher
}

// Launch runs the child described by spec to completion.
//
// A non-zero exit is reported in Result with a nil error. A child that
// could not be started yields a *LaunchError. If ctx is cancelled the
// child is terminated, its remaining output is drained, and the
// returned error wraps ErrCancelled and the context's cause.
func (l *Launcher) Launch(ctx context.Context, spec *CommandSpec, streams Streams) (*Result, error) {
	if err := spec.consume(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", spec.Path, ErrCancelled, context.Cause(ctx))
	}

	command := exec.Command(spec.Path, spec.Argv...)
	command.Dir = spec.Dir
	command.Env = environ.Merge(l.base, spec.Env)
	command.Stdin = streams.Stdin
	configurePlatform(command, spec)

	// A descendant outside the child's process group can hold the output
	// pipes open indefinitely. Wait closes them this long after the
	// child itself has exited.
	command.WaitDelay = l.gracePeriod

	// Both streams share one lock so a caller passing the same writer
	// for stdout and stderr never sees interleaved partial lines.
	var writeMutex sync.Mutex
	stdout := newLineWriter("stdout", streams.Stdout, &writeMutex)
	stderr := newLineWriter("stderr", streams.Stderr, &writeMutex)
	command.Stdout = stdout
	command.Stderr = stderr

	started := l.clock.Now()
	if err := command.Start(); err != nil {
		return nil, &LaunchError{Path: spec.Path, CommandLine: spec.String(), Err: err}
	}
	pid := command.Process.Pid
	logger := l.logger.With("pid", pid, "path", spec.Path)
	logger.Debug("child process started", "command", spec.String())
	writeMutex.Lock()
	stdout.logger = logger
	stderr.logger = logger
	writeMutex.Unlock()

	exited := make(chan struct{})
	cancelled := make(chan struct{})
	go l.watchCancellation(ctx, command, exited, cancelled, logger)

	// Wait returns once the child has exited and its output has been
	// copied, or WaitDelay after exit if the pipes are still held open.
	waitErr := command.Wait()
	close(exited)
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		logger.Debug("output pipes still open after exit, closed", "wait_delay", l.gracePeriod)
		waitErr = nil
	}
	stdout.flush()
	stderr.flush()

	result := &Result{
		PID:        pid,
		Duration:   l.clock.Now().Sub(started),
		StdoutTail: stdout.tail.lines(),
		StderrTail: stderr.tail.lines(),
		ExitCode:   exitCode(command.ProcessState),
	}

	select {
	case <-cancelled:
		result.Cancelled = true
		logger.Debug("child process cancelled", "exit_code", result.ExitCode)
		return result, fmt.Errorf("%s: %w: %w", spec.Path, ErrCancelled, context.Cause(ctx))
	default:
	}

	var exitError *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitError) {
		return result, fmt.Errorf("waiting for %s: %w", spec.Path, waitErr)
	}

	logger.Debug("child process exited", "exit_code", result.ExitCode, "duration", result.Duration)
	return result, nil
}

// watchCancellation terminates the child when ctx is done, escalating
// to a kill after the grace period. It closes cancelled before
// signalling so Launch can attribute the exit to cancellation.
func (l *Launcher) watchCancellation(ctx context.Context, command *exec.Cmd, exited <-chan struct{}, cancelled chan<- struct{}, logger *slog.Logger) {
	select {
	case <-exited:
		return
	case <-ctx.Done():
	}

	close(cancelled)
	logger.Debug("terminating child process", "grace_period", l.gracePeriod)
	if err := terminate(command.Process); err != nil {
		logger.Debug("sending termination signal failed", "error", err)
	}

	select {
	case <-exited:
	case <-l.clock.After(l.gracePeriod):
		logger.Warn("child process did not exit within grace period, killing")
		if err := kill(command.Process); err != nil {
			logger.Debug("killing child process failed", "error", err)
		}
	}
}

// lineWriter receives one child stream from the copying goroutine of
// exec.Cmd and forwards it to the caller one complete line at a time.
// Each line is also logged and recorded in the tail. A trailing partial
// line is forwarded by flush once the stream has ended. logger is
// guarded by writeMutex.
type lineWriter struct {
	stream     string
	target     io.Writer
	writeMutex *sync.Mutex
	tail       *tail
	logger     *slog.Logger
	pending    []byte
}

func newLineWriter(stream string, target io.Writer, writeMutex *sync.Mutex) *lineWriter {
	return &lineWriter{
		stream:     stream,
		target:     target,
		writeMutex: writeMutex,
		tail:       newTail(tailLines),
		logger:     slog.New(slog.DiscardHandler),
	}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		index := bytes.IndexByte(w.pending, '\n')
		if index < 0 {
			break
		}
		w.emit(w.pending[:index+1])
		w.pending = w.pending[index+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.pending) > 0 {
		w.emit(w.pending)
		w.pending = nil
	}
}

func (w *lineWriter) emit(line []byte) {
	trimmed := strings.TrimRight(string(line), "\r\n")
	w.tail.add(trimmed)

	w.writeMutex.Lock()
	defer w.writeMutex.Unlock()
	if w.target != nil {
		_, _ = w.target.Write(line)
	}
	w.logger.Debug("child output", "stream", w.stream, "line", trimmed)
}

// tail is a bounded ring of the most recent lines.
type tail struct {
	mu      sync.Mutex
	limit   int
	entries []string
}

func newTail(limit int) *tail {
	return &tail{limit: limit}
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == t.limit {
		copy(t.entries, t.entries[1:])
		t.entries = t.entries[:len(t.entries)-1]
	}
	t.entries = append(t.entries, line)
}

func (t *tail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.entries...)
}
