// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
)

// ParseDirective is the directive that prints the token diagram
// instead of running the command.
const ParseDirective = "parse"

// Execute dispatches args and runs the resolved command, returning the
// process exit code. It never panics: a panicking command exits with
// ExitFailure.
//
// Outcomes, in order of precedence: the [parse] directive prints the
// diagram; a help switch prints the command's help; parse errors print
// with the synopsis and exit ExitUsage; a command with subcommands and
// none given runs its Fallback (by default help on stderr and
// ExitFailure); otherwise Run runs and its error maps through
// ExitCodeFor.
func (t *Tree) Execute(ctx context.Context, args []string, streams Streams, logger *slog.Logger) (code int) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	streams = streams.withDefaults()

	result := t.Dispatch(args)
	command := result.Command

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("command panicked",
				"command", command.FullName(),
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
			fmt.Fprintf(streams.Stderr, "internal error: %v\n", recovered)
			code = ExitFailure
		}
	}()

	for _, directive := range result.Directives {
		if directive != ParseDirective {
			logger.Debug("ignoring unknown directive", "directive", directive)
		}
	}

	if result.HasDirective(ParseDirective) {
		fmt.Fprintln(streams.Stdout, result.Diagram())
		for _, parseError := range result.Errors {
			fmt.Fprintf(streams.Stdout, "error: %v\n", parseError)
		}
		if len(result.Errors) > 0 {
			return ExitUsage
		}
		return ExitSuccess
	}

	if result.HelpRequested {
		command.PrintHelp(streams.Stdout)
		return ExitSuccess
	}

	if len(result.Errors) > 0 {
		for _, parseError := range result.Errors {
			fmt.Fprintf(streams.Stderr, "error: %v\n", parseError)
		}
		fmt.Fprintf(streams.Stderr, "\nUsage:\n  %s\n\nRun '%s --help' for usage.\n", command.Synopsis(), command.FullName())
		return ExitUsage
	}

	invocation := &Invocation{
		Result:  result,
		Logger:  logger.With("command", command.FullName()),
		Streams: streams,
	}

	var err error
	switch {
	case result.MissingSubcommand && command.Fallback != nil:
		err = command.Fallback(ctx, invocation)
	case result.MissingSubcommand:
		command.PrintHelp(streams.Stderr)
		err = fmt.Errorf("%s: subcommand required", command.FullName())
	default:
		err = command.Run(ctx, invocation)
	}
	return report(streams.Stderr, command, err)
}

// report prints err the way its type asks for and returns the exit
// code.
func report(w io.Writer, command *Command, err error) int {
	code := ExitCodeFor(err)
	if err == nil {
		return code
	}
	var exitError *ExitError
	var usageError *UsageError
	switch {
	case errors.As(err, &exitError):
	case errors.As(err, &usageError):
		fmt.Fprintf(w, "error: %s\n\nRun '%s --help' for usage.\n", usageError.Message, command.FullName())
	default:
		fmt.Fprintf(w, "error: %v\n", err)
	}
	return code
}

func (s Streams) withDefaults() Streams {
	if s.Stdin == nil {
		s.Stdin = os.Stdin
	}
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}
	if s.Stderr == nil {
		s.Stderr = os.Stderr
	}
	return s
}
