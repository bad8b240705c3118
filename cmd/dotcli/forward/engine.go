// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package forward

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/lib/buildserver"
	"github.com/bureau-foundation/dotcli/lib/clock"
	"github.com/bureau-foundation/dotcli/lib/environ"
	"github.com/bureau-foundation/dotcli/lib/process"
	"github.com/bureau-foundation/dotcli/lib/router"
)

// Engine is everything the forwarding commands need to run the build
// engine and the package manager.
type Engine struct {
	// Path is the engine executable and Arguments the tokens every
	// engine invocation starts with.
	Path      string
	Arguments []string

	// PackageManager is the package manager executable.
	PackageManager string

	// EntryPointExtensions and DiagnosticPatterns configure routing.
	EntryPointExtensions []string
	DiagnosticPatterns   []string

	Launcher *process.Launcher

	// Overlay is applied to every child's environment.
	Overlay environ.Overlay

	// BuildServer returns the client for builds that use a persistent
	// server. Nil disables server builds.
	BuildServer func(logger *slog.Logger) *buildserver.Client

	// UseBuildServer is the default of --use-build-server.
	UseBuildServer bool

	// Version is reported to build servers and hot-reload agents.
	Version string

	// ChannelDirectory holds hot-reload channels. Empty means the
	// system temporary directory.
	ChannelDirectory string

	// WatchDebounce is how long watch collects file events before
	// acting on them. Zero selects the default.
	WatchDebounce time.Duration

	Clock clock.Clock
}

func (e *Engine) clock() clock.Clock {
	if e.Clock == nil {
		return clock.Real()
	}
	return e.Clock
}

// route classifies the tokens after the command name, binding the
// command's options.
func (e *Engine) route(invocation *cli.Invocation) router.Decision {
	r := &router.Router{Options: invocation.Result.Command.VisibleOptions()}
	if len(e.EntryPointExtensions) > 0 {
		r.IsEntryPoint = router.FileEntryPoint(e.EntryPointExtensions)
	}
	if len(e.DiagnosticPatterns) > 0 {
		r.IsDiagnostic = router.PrefixMatcher(e.DiagnosticPatterns)
	}
	decision := r.Route(invocation.Result.Remaining)
	invocation.Logger.Debug("routed invocation",
		"kind", decision.Kind,
		"entry_point", decision.EntryPoint,
		"unknown", decision.Args.Unknown,
		"diagnostic", decision.Args.Diagnostic,
	)
	return decision
}

// launch runs spec with the invocation's streams. A non-zero exit
// becomes *cli.ExitError carrying the child's code.
func (e *Engine) launch(ctx context.Context, invocation *cli.Invocation, spec *process.CommandSpec, useServer bool) error {
	streams := process.Streams{
		Stdin:  invocation.Stdin,
		Stdout: invocation.Stdout,
		Stderr: invocation.Stderr,
	}

	var (
		result *process.Result
		err    error
	)
	if useServer && e.BuildServer != nil {
		result, err = e.BuildServer(invocation.Logger).Build(ctx, spec, streams)
	} else {
		result, err = e.Launcher.Launch(ctx, spec, streams)
	}
	if err != nil {
		return err
	}

	invocation.Logger.Debug("child exited",
		"path", spec.Path,
		"pid", result.PID,
		"exit_code", result.ExitCode,
		"duration", result.Duration,
	)
	if result.ExitCode != 0 {
		return &cli.ExitError{Code: result.ExitCode}
	}
	return nil
}
