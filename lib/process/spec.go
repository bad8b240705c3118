// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bureau-foundation/dotcli/lib/environ"
	"github.com/bureau-foundation/dotcli/lib/escape"
)

// ErrSpecConsumed is returned when a CommandSpec is launched twice.
var ErrSpecConsumed = errors.New("process: command spec already launched")

// CommandSpec describes one child process invocation. Construct it with
// NewCommandSpec; the fields are read-only afterwards.
type CommandSpec struct {
	// Path is the executable. A bare name is resolved against PATH at
	// launch time.
	Path string

	// Argv is the logical argument vector, excluding the executable.
	Argv []string

	// Args is Argv escaped into one command-line string. Platforms
	// where the child parses its own command line receive this string
	// verbatim.
	Args string

	// Env is applied over the launcher's base environment.
	Env environ.Overlay

	// Dir is the working directory. Empty means the current directory.
	Dir string

	consumed atomic.Bool
}

// NewCommandSpec builds a spec, escaping argv into Args.
func NewCommandSpec(path string, argv []string, env environ.Overlay) *CommandSpec {
	copied := make([]string, len(argv))
	copy(copied, argv)
	return &CommandSpec{
		Path: path,
		Argv: copied,
		Args: escape.Escape(copied),
		Env:  env,
	}
}

// InDir sets the working directory and returns the spec.
func (s *CommandSpec) InDir(directory string) *CommandSpec {
	s.Dir = directory
	return s
}

// CommandLine returns the full escaped command line including the
// executable.
func (s *CommandSpec) CommandLine() string {
	if s.Args == "" {
		return escape.Arg(s.Path)
	}
	return escape.Arg(s.Path) + " " + s.Args
}

// String renders the invocation in POSIX shell syntax for diagnostics.
func (s *CommandSpec) String() string {
	return escape.Display(append([]string{s.Path}, s.Argv...))
}

func (s *CommandSpec) consume() error {
	if !s.consumed.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: %w", s.Path, ErrSpecConsumed)
	}
	return nil
}

// LaunchError reports that the executable could not be started. It is
// distinct from a child that started and exited non-zero.
type LaunchError struct {
	Path        string
	CommandLine string
	Err         error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to start %s: %v (attempted: %s)", e.Path, e.Err, e.CommandLine)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ErrCancelled is wrapped by the error Launch returns when the launch
// context was cancelled before the child exited.
var ErrCancelled = errors.New("process cancelled")
