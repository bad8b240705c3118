// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process launches external tools on behalf of dotcli commands.
//
// A [CommandSpec] is the immutable description of one child process:
// executable path, argument vector, the same vector pre-escaped into a
// single command-line string, and an environment overlay. A [Launcher]
// consumes a spec exactly once. It merges the overlay over the captured
// environment and starts the child. Two goroutines drain stdout and
// stderr line by line. The launcher waits for both before reporting
// the exit code, so no trailing output is lost.
//
// Cancellation of the launch context asks the child (and on Unix its
// whole process group) to terminate, waits a grace period, then kills
// it. Output written before the kill is still delivered.
//
// A child that exits non-zero is not an error: the exit code is
// returned in [Result] for the caller to propagate. A child that cannot
// be started at all is a [*LaunchError].
//
// [TempDir] and [WithTempDir] give each invocation a private scratch
// directory whose removal is best-effort and never fails the command.
// [Fatal] is the entrypoint error handler for use before a logger
// exists.
package process
