// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package forward

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/lib/argspec"
	"github.com/bureau-foundation/dotcli/lib/environ"
	"github.com/bureau-foundation/dotcli/lib/escape"
	"github.com/bureau-foundation/dotcli/lib/launchprofile"
	"github.com/bureau-foundation/dotcli/lib/process"
	"github.com/bureau-foundation/dotcli/lib/router"
)

// Engine properties the Run target reads.
const (
	runArgumentsProperty        = "RunArguments"
	runWorkingDirectoryProperty = "RunWorkingDirectory"
)

// runOptions are the options of run and watch.
type runOptions struct {
	project         *argspec.Option
	launchProfile   *argspec.Option
	noLaunchProfile *argspec.Option
	noRestore       *argspec.Option
	arguments       *argspec.Argument
}

func newRunOptions() runOptions {
	return runOptions{
		project: &argspec.Option{
			Name: "project", ValueName: "PATH",
			Description: "The project file or directory to run",
			Type:        argspec.String, Arity: argspec.ArityExactlyOne,
			Forward: argspec.Consume,
		},
		launchProfile: &argspec.Option{
			Name: "launch-profile", Aliases: []string{"lp"}, ValueName: "NAME",
			Description: "The launch settings profile to use",
			Type:        argspec.String, Arity: argspec.ArityExactlyOne,
			Forward: argspec.Consume,
		},
		noLaunchProfile: &argspec.Option{
			Name:        "no-launch-profile",
			Description: "Ignore launch settings",
			Type:        argspec.Bool, Arity: argspec.ArityZero,
			Forward: argspec.Consume,
		},
		noRestore: noRestoreOption(),
		arguments: &argspec.Argument{
			Name:        "ARGUMENTS",
			Description: "A source file to run, or arguments passed to the application",
			Type:        argspec.StringSlice, Arity: argspec.ArityZeroOrMore,
		},
	}
}

func (o runOptions) list() []*argspec.Option {
	return []*argspec.Option{
		configurationOption(), frameworkOption(), verbosityOption(), propertyOption(),
		o.project, o.launchProfile, o.noLaunchProfile, o.noRestore,
	}
}

// RunCommand returns "run", which builds and runs a project or a
// file-based program.
func RunCommand(engine *Engine) *cli.Command {
	options := newRunOptions()
	return &cli.Command{
		Name:    "run",
		Summary: "Build and run an application",
		Description: `Build and run an application.

A single source file argument runs that file as a program. Otherwise
the project in the current directory (or --project) is run and
positional arguments, along with everything after "--", are passed to
the application. Launch settings supply environment variables and
default arguments unless --no-launch-profile is given.`,
		Kind:      cli.KindPassthrough,
		Options:   options.list(),
		Arguments: []*argspec.Argument{options.arguments},
		Examples: []cli.Example{
			{Description: "Run a file-based program", Command: "dotcli run app.cs -- --port 8080"},
			{Description: "Run a project with a launch profile", Command: "dotcli run --project src/web --launch-profile https"},
		},
		Run: func(ctx context.Context, invocation *cli.Invocation) error {
			plan, err := engine.planRun(invocation, options)
			if err != nil {
				return err
			}
			defer plan.Close()
			return engine.launch(ctx, invocation, plan.spec(engine.Path, nil), false)
		},
	}
}

// runPlan is a resolved run invocation. Close releases the staged
// virtual project, if any.
type runPlan struct {
	argv    []string
	overlay environ.Overlay

	// root is the directory whose sources make up the application.
	root string

	scratch *process.Scratch
}

func (p *runPlan) spec(path string, extra environ.Overlay) *process.CommandSpec {
	return process.NewCommandSpec(path, p.argv, p.overlay.With(extra))
}

func (p *runPlan) Close() {
	if p.scratch != nil {
		p.scratch.Close()
	}
}

func (e *Engine) planRun(invocation *cli.Invocation, options runOptions) (*runPlan, error) {
	result := invocation.Result
	logger := invocation.Logger
	decision := e.route(invocation)

	plan := &runPlan{overlay: environ.Overlay{}.With(e.Overlay)}
	argv := append([]string(nil), e.Arguments...)

	var (
		target         string
		appArgs        []string
		entryPointPath string
	)
	projectPath := cli.Value[string](result, options.project)
	switch {
	case decision.Kind == router.VirtualEntryPoint && projectPath == "":
		scratch, err := process.TempDir(logger, "dotcli-run")
		if err != nil {
			return nil, err
		}
		plan.scratch = scratch
		project, absolute, err := stageVirtualProject(scratch.Path, decision.EntryPoint)
		if err != nil {
			plan.Close()
			return nil, err
		}
		logger.Debug("staged virtual project", "project", project, "entry_point", absolute)
		argv = append(argv, project, "-property:"+entryPointProperty+"="+absolute)
		target = decision.EntryPoint
		entryPointPath = absolute
		plan.root = filepath.Dir(absolute)
	default:
		if decision.Kind == router.VirtualEntryPoint {
			appArgs = append(appArgs, decision.EntryPoint)
		}
		appArgs = append(appArgs, decision.Args.Positional...)
		target = projectPath
		if target == "" {
			target = "."
		} else {
			argv = append(argv, projectPath)
		}
		plan.root = projectRoot(target)
	}
	appArgs = append(appArgs, decision.Args.Application...)

	profile, err := e.selectProfile(invocation, options, target)
	if err != nil {
		plan.Close()
		return nil, err
	}
	if profile != nil {
		plan.overlay = plan.overlay.With(profile.Overlay())
		if len(appArgs) == 0 {
			profileArgs, err := profile.Arguments()
			if err != nil {
				plan.Close()
				return nil, err
			}
			appArgs = profileArgs
		}
	}

	if !cli.Value[bool](result, options.noRestore) {
		argv = append(argv, "-restore")
	}
	argv = append(argv, "-target:Run")
	if len(appArgs) > 0 {
		argv = append(argv, "-property:"+runArgumentsProperty+"="+escape.Escape(appArgs))
	}
	if profile != nil && profile.WorkingDirectory != "" {
		argv = append(argv, "-property:"+runWorkingDirectoryProperty+"="+profile.WorkingDirectory)
	}
	argv = append(argv, decision.Args.OptionTokens()...)
	plan.argv = argv

	logger.Debug("planned run",
		"target", target,
		"entry_point", entryPointPath,
		"application_arguments", appArgs,
	)
	return plan, nil
}

// selectProfile returns the launch profile for target, or nil. A
// profile requested by name must exist; the default profile is used
// only when one is found.
func (e *Engine) selectProfile(invocation *cli.Invocation, options runOptions, target string) (*launchprofile.Profile, error) {
	result := invocation.Result
	name := cli.Value[string](result, options.launchProfile)
	if cli.Value[bool](result, options.noLaunchProfile) {
		if name != "" {
			return nil, cli.Usagef("--launch-profile and --no-launch-profile cannot be used together")
		}
		return nil, nil
	}

	path := launchprofile.Locate(target)
	if path == "" {
		if name != "" {
			return nil, cli.Usagef("launch profile %q requested but no launch settings were found for %s", name, target)
		}
		return nil, nil
	}

	settings, err := launchprofile.Load(path)
	if err != nil {
		if name != "" {
			return nil, err
		}
		invocation.Logger.Warn("ignoring unreadable launch settings", "path", path, "error", err)
		fmt.Fprintf(invocation.Stderr, "warning: ignoring launch settings %s: %v\n", path, err)
		return nil, nil
	}
	profile, err := settings.Select(name)
	if err != nil {
		if name != "" || !errors.Is(err, launchprofile.ErrNotFound) {
			return nil, fmt.Errorf("launch settings %s: %w", path, err)
		}
		invocation.Logger.Debug("no default launch profile", "path", path)
		return nil, nil
	}
	invocation.Logger.Debug("using launch profile", "path", path, "profile", profile.Name)
	return profile, nil
}

// projectRoot returns the directory holding the sources of a project
// path, which may be a project file or a directory.
func projectRoot(target string) string {
	absolute, err := filepath.Abs(target)
	if err != nil {
		return target
	}
	info, err := os.Stat(absolute)
	if err == nil && !info.IsDir() {
		return filepath.Dir(absolute)
	}
	return absolute
}
