// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete dotcli command tree. The tree
// is constructed explicitly from its dependencies: nothing in it is a
// package-level global, so tests build as many trees as they need.
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	buildservercmd "github.com/bureau-foundation/dotcli/cmd/dotcli/buildservercmd"
	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/cmd/dotcli/forward"
	"github.com/bureau-foundation/dotcli/lib/argspec"
	"github.com/bureau-foundation/dotcli/lib/version"
)

// Dependencies are the process-level collaborators of the commands.
type Dependencies struct {
	Engine      *forward.Engine
	BuildServer buildservercmd.Options

	// ConfigSource names where configuration came from, for --info.
	ConfigSource string
}

// BuildCommandTree builds and validates the dotcli command tree.
func BuildCommandTree(deps Dependencies) (*cli.Tree, error) {
	versionOption := &argspec.Option{
		Name:        "version",
		Description: "Print the version and exit",
		Type:        argspec.Bool, Arity: argspec.ArityZero,
		Forward: argspec.Consume,
	}
	infoOption := &argspec.Option{
		Name:        "info",
		Description: "Print version and environment information and exit",
		Type:        argspec.Bool, Arity: argspec.ArityZero,
		Forward: argspec.Consume,
	}

	subcommands := forward.EngineCommands(deps.Engine)
	subcommands = append(subcommands,
		forward.MSBuildCommand(deps.Engine),
		forward.NuGetCommand(deps.Engine),
		forward.RunCommand(deps.Engine),
		forward.WatchCommand(deps.Engine),
		buildservercmd.Command(deps.BuildServer),
		&cli.Command{
			Name:    "version",
			Summary: "Print version information",
			Run: func(_ context.Context, invocation *cli.Invocation) error {
				fmt.Fprintf(invocation.Stdout, "dotcli %s\n", version.Full())
				return nil
			},
		},
	)

	root := &cli.Command{
		Name: "dotcli",
		Description: `dotcli: build engine front end.

Parses a command line, forwards build commands to the build engine,
runs applications and source files, and manages persistent build
servers.`,
		Usage: "dotcli [--config <path>] [-d] <command> [<arguments>...]",
		Options: []*argspec.Option{
			{
				Name: "diagnostics", Short: "d",
				Description: "Enable debug logging",
				Type:        argspec.Bool, Arity: argspec.ArityZeroOrOne,
				Global: true, Forward: argspec.Consume,
			},
			versionOption,
			infoOption,
		},
		Subcommands: subcommands,
		Examples: []cli.Example{
			{
				Description: "Build the project in the current directory for release",
				Command:     "dotcli build -c Release",
			},
			{
				Description: "Run a single source file without a project",
				Command:     "dotcli hello.cs -- --name world",
			},
			{
				Description: "Pass switches straight to the build engine",
				Command:     "dotcli msbuild app.csproj -bl -target:Rebuild",
			},
			{
				Description: "Stop every persistent build server",
				Command:     "dotcli build-server shutdown",
			},
			{
				Description: "Show how a command line is classified",
				Command:     "dotcli [parse] build -c Release app.csproj",
			},
		},
	}
	root.Fallback = func(_ context.Context, invocation *cli.Invocation) error {
		switch {
		case cli.Value[bool](invocation.Result, versionOption):
			fmt.Fprintln(invocation.Stdout, version.Info())
			return nil
		case cli.Value[bool](invocation.Result, infoOption):
			printInfo(invocation.Stdout, deps)
			return nil
		}
		root.PrintHelp(invocation.Stderr)
		return &cli.ExitError{Code: cli.ExitFailure}
	}

	var tree *cli.Tree
	root.Subcommands = append(root.Subcommands, parseCommand(func() *cli.Tree { return tree }))

	tree, err := cli.NewTree(root)
	if err != nil {
		return nil, fmt.Errorf("building command tree: %w", err)
	}
	return tree, nil
}

func printInfo(w io.Writer, deps Dependencies) {
	fmt.Fprintf(w, "dotcli %s\n\n", version.Full())
	engine := deps.Engine
	fmt.Fprintln(w, "Build engine:")
	fmt.Fprintf(w, "  Path:       %s\n", engine.Path)
	fmt.Fprintf(w, "  Arguments:  %s\n", strings.Join(engine.Arguments, " "))
	fmt.Fprintf(w, "  Package manager: %s\n", orNone(engine.PackageManager))
	fmt.Fprintf(w, "  Entry points:    %s\n", strings.Join(engine.EntryPointExtensions, " "))
	fmt.Fprintln(w, "Build server:")
	if deps.BuildServer.Registry != nil {
		fmt.Fprintf(w, "  Directory:  %s\n", deps.BuildServer.Registry.Directory())
	}
	fmt.Fprintf(w, "  Default:    %s\n", enabled(engine.UseBuildServer))
	fmt.Fprintf(w, "Configuration: %s\n", orNone(deps.ConfigSource))
}

func orNone(value string) string {
	if value == "" {
		return "(none)"
	}
	return value
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

// parseCommand returns the hidden "parse" command, which prints the
// classification of the tokens after "--" without running anything.
// tree is called at run time: the command is part of the tree it
// inspects.
func parseCommand(tree func() *cli.Tree) *cli.Command {
	tokens := &argspec.Argument{
		Name:        "TOKENS",
		Description: "Command line to classify",
		Type:        argspec.StringSlice,
		Arity:       argspec.ArityZeroOrMore,
	}
	return &cli.Command{
		Name:      "parse",
		Summary:   "Print how a command line is parsed",
		Usage:     "dotcli parse -- <command line>",
		Kind:      cli.KindHidden,
		Arguments: []*argspec.Argument{tokens},
		Run: func(_ context.Context, invocation *cli.Invocation) error {
			args := append(cli.Value[[]string](invocation.Result, tokens), invocation.Result.Passthrough...)
			result := tree().Dispatch(args)
			fmt.Fprintln(invocation.Stdout, result.Diagram())
			fmt.Fprintf(invocation.Stdout, "command: %s\n", result.Command.FullName())
			if len(result.Unmatched) > 0 {
				fmt.Fprintf(invocation.Stdout, "unmatched: %s\n", strings.Join(result.Unmatched, " "))
			}
			if len(result.Passthrough) > 0 {
				fmt.Fprintf(invocation.Stdout, "passthrough: %s\n", strings.Join(result.Passthrough, " "))
			}
			for _, parseError := range result.Errors {
				fmt.Fprintf(invocation.Stdout, "error: %v\n", parseError)
			}
			if len(result.Errors) > 0 {
				return &cli.ExitError{Code: cli.ExitUsage}
			}
			return nil
		},
	}
}

// RewriteEntryPoint returns args with "run" inserted when the first
// token after any directives is not a command of tree but satisfies
// isEntryPoint, so "dotcli app.cs" means "dotcli run app.cs".
func RewriteEntryPoint(tree *cli.Tree, args []string, isEntryPoint func(string) bool) []string {
	index := 0
	for index < len(args) && isDirective(args[index]) {
		index++
	}
	if index >= len(args) || isEntryPoint == nil {
		return args
	}
	first := args[index]
	if strings.HasPrefix(first, "-") || isCommand(tree.Root(), first) || !isEntryPoint(first) {
		return args
	}
	rewritten := make([]string, 0, len(args)+1)
	rewritten = append(rewritten, args[:index]...)
	rewritten = append(rewritten, "run")
	return append(rewritten, args[index:]...)
}

func isCommand(parent *cli.Command, token string) bool {
	for _, subcommand := range parent.Subcommands {
		if subcommand.Name == token {
			return true
		}
		for _, alias := range subcommand.Aliases {
			if alias == token {
				return true
			}
		}
	}
	return false
}

func isDirective(token string) bool {
	return len(token) > 2 && token[0] == '[' && token[len(token)-1] == ']'
}
