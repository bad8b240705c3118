// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package forward

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/lib/argspec"
	"github.com/bureau-foundation/dotcli/lib/process"
	"github.com/bureau-foundation/dotcli/lib/router"
)

// target describes one engine-forwarding command.
type target struct {
	name        string
	summary     string
	description string

	// engineTarget is passed as -target:<engineTarget>.
	engineTarget string

	// restore commands restore implicitly unless --no-restore.
	restore bool

	// output commands accept -o/--output.
	output bool
}

var targets = []target{
	{
		name:    "build",
		summary: "Build a project and its dependencies",
		description: `Build a project and its dependencies with the build engine.

Options dotcli does not recognize are forwarded to the engine
unchanged, so engine switches such as "-bl" or "/p:Name=Value" work
as they would when running the engine directly. A single source file
is built as a file-based program.`,
		engineTarget: "Build",
		restore:      true,
		output:       true,
	},
	{
		name:         "restore",
		summary:      "Restore the dependencies of a project",
		engineTarget: "Restore",
	},
	{
		name:         "clean",
		summary:      "Remove the outputs of a project",
		engineTarget: "Clean",
		output:       true,
	},
	{
		name:         "test",
		summary:      "Build a project and run its tests",
		engineTarget: "VSTest",
		restore:      true,
	},
	{
		name:         "pack",
		summary:      "Create a package from a project",
		engineTarget: "Pack",
		restore:      true,
		output:       true,
	},
	{
		name:         "publish",
		summary:      "Publish an application for deployment",
		engineTarget: "Publish",
		restore:      true,
		output:       true,
	},
}

// EngineCommands returns the engine-forwarding commands: build,
// restore, clean, test, pack, and publish.
func EngineCommands(engine *Engine) []*cli.Command {
	commands := make([]*cli.Command, 0, len(targets))
	for _, target := range targets {
		commands = append(commands, engineCommand(engine, target))
	}
	return commands
}

type engineCommandOptions struct {
	noRestore      *argspec.Option
	useBuildServer *argspec.Option
	project        *argspec.Argument
}

func engineCommand(engine *Engine, target target) *cli.Command {
	options := engineCommandOptions{
		useBuildServer: useBuildServerOption(),
		project:        projectArgument(),
	}
	specs := []*argspec.Option{configurationOption(), frameworkOption(), verbosityOption()}
	if target.output {
		specs = append(specs, outputOption())
	}
	specs = append(specs, propertyOption())
	if target.restore {
		options.noRestore = noRestoreOption()
		specs = append(specs, options.noRestore)
	}
	specs = append(specs, options.useBuildServer)

	return &cli.Command{
		Name:        target.name,
		Summary:     target.summary,
		Description: target.description,
		Kind:        cli.KindPassthrough,
		Options:     specs,
		Arguments:   []*argspec.Argument{options.project},
		Examples: []cli.Example{
			{
				Description: fmt.Sprintf("%s the project in the current directory in Release", target.name),
				Command:     fmt.Sprintf("dotcli %s -c Release", target.name),
			},
		},
		Run: func(ctx context.Context, invocation *cli.Invocation) error {
			return engine.runTarget(ctx, invocation, target, options)
		},
	}
}

func (e *Engine) runTarget(ctx context.Context, invocation *cli.Invocation, target target, options engineCommandOptions) error {
	result := invocation.Result
	decision := e.route(invocation)

	useServer := e.UseBuildServer
	if result.Has(options.useBuildServer) {
		useServer = cli.Value[bool](result, options.useBuildServer)
	}
	restore := target.restore && !cli.Value[bool](result, options.noRestore)

	engineArgs := func(prefix ...string) []string {
		argv := append([]string(nil), e.Arguments...)
		argv = append(argv, prefix...)
		if restore {
			argv = append(argv, "-restore")
		}
		argv = append(argv, "-target:"+target.engineTarget)
		argv = append(argv, decision.Args.ForwardedTokens()...)
		return append(argv, decision.Args.Application...)
	}

	if decision.Kind != router.VirtualEntryPoint {
		spec := process.NewCommandSpec(e.Path, engineArgs(), e.Overlay)
		return e.launch(ctx, invocation, spec, useServer)
	}

	return process.WithTempDir(invocation.Logger, "dotcli-"+target.name, func(directory string) error {
		project, entryPoint, err := stageVirtualProject(directory, decision.EntryPoint)
		if err != nil {
			return err
		}
		invocation.Logger.Debug("staged virtual project", "project", project, "entry_point", entryPoint)
		spec := process.NewCommandSpec(e.Path, engineArgs(project, "-property:"+entryPointProperty+"="+entryPoint), e.Overlay)
		return e.launch(ctx, invocation, spec, useServer)
	})
}
