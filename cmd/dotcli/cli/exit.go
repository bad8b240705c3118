// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/dotcli/lib/process"
)

// Process exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1

	// ExitUsage reports a command line that did not parse.
	ExitUsage = 2

	// ExitCancelled reports an interrupted execution (128 + SIGINT).
	ExitCancelled = 130
)

// ExitError signals a non-zero exit code without printing an extra
// error message. Commands that forward to an external tool return it
// with the tool's exit code: the tool has already written its own
// output.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// UsageError is a command line problem found by a command's Run after
// dispatch succeeded (e.g., two mutually exclusive options). It exits
// with ExitUsage.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// Usagef returns a *UsageError with a formatted message.
func Usagef(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// ExitCodeFor maps the error returned by a command to a process exit
// code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitError *ExitError
	if errors.As(err, &exitError) {
		return exitError.Code
	}
	var usageError *UsageError
	if errors.As(err, &usageError) {
		return ExitUsage
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, process.ErrCancelled) {
		return ExitCancelled
	}
	return ExitFailure
}
