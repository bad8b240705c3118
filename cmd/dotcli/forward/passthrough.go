// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package forward

import (
	"context"
	"slices"

	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/lib/process"
	"github.com/bureau-foundation/dotcli/lib/router"
)

// MSBuildCommand returns "msbuild", which hands every token to the
// build engine unchanged.
func MSBuildCommand(engine *Engine) *cli.Command {
	return &cli.Command{
		Name:    "msbuild",
		Summary: "Run the build engine with the given arguments",
		Description: `Run the build engine with the given arguments.

Every token after "msbuild" is forwarded unchanged, after the engine
arguments from the configuration file.`,
		Usage: "dotcli msbuild [<engine-arguments>...]",
		Kind:  cli.KindPassthrough,
		Examples: []cli.Example{
			{Description: "Build with a binary log", Command: "dotcli msbuild app.csproj -bl -p:Configuration=Release"},
		},
		Run: func(ctx context.Context, invocation *cli.Invocation) error {
			argv := append([]string(nil), engine.Arguments...)
			argv = append(argv, engine.verbatim(invocation)...)
			return engine.launch(ctx, invocation, process.NewCommandSpec(engine.Path, argv, engine.Overlay), false)
		},
	}
}

// NuGetCommand returns "nuget", which hands every token to the package
// manager unchanged.
func NuGetCommand(engine *Engine) *cli.Command {
	return &cli.Command{
		Name:    "nuget",
		Summary: "Run the package manager with the given arguments",
		Usage:   "dotcli nuget [<package-manager-arguments>...]",
		Kind:    cli.KindPassthrough,
		Run: func(ctx context.Context, invocation *cli.Invocation) error {
			if engine.PackageManager == "" {
				return cli.Usagef("no package manager configured (set package_manager.path)")
			}
			spec := process.NewCommandSpec(engine.PackageManager, engine.verbatim(invocation), engine.Overlay)
			return engine.launch(ctx, invocation, spec, false)
		},
	}
}

// verbatim returns the invocation's tokens with global options
// dotcli consumed removed. No token is treated as an entry point, and
// tokens after "--" are kept with their terminator.
func (e *Engine) verbatim(invocation *cli.Invocation) []string {
	r := &router.Router{
		Options:      invocation.Result.Command.VisibleOptions(),
		IsEntryPoint: func(string) bool { return false },
		IsDiagnostic: func(string) bool { return false },
	}
	decision := r.Route(invocation.Result.Remaining)
	tokens := decision.Args.ForwardedTokens()
	if slices.Contains(invocation.Result.Remaining, "--") {
		tokens = append(tokens, "--")
		tokens = append(tokens, decision.Args.Application...)
	}
	return tokens
}
