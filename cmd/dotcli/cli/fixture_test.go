// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"testing"

	"github.com/bureau-foundation/dotcli/lib/argspec"
)

// fixture is a small tree shaped like the real one: a passthrough
// build command, a normal command with a required argument, a group
// with no default action, and a hidden command.
type fixture struct {
	tree *Tree

	diagnostics   *argspec.Option
	version       *argspec.Option
	configuration *argspec.Option
	property      *argspec.Option
	verbosity     *argspec.Option
	noRestore     *argspec.Option
	internal      *argspec.Option
	project       *argspec.Argument
	force         *argspec.Option
	name          *argspec.Argument
	id            *argspec.Option

	// ran records the commands whose Run or Fallback was called.
	ran []string

	// errs and panics choose what a command's Run does.
	errs   map[string]error
	panics map[string]bool

	invocation *Invocation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		errs:   make(map[string]error),
		panics: make(map[string]bool),
	}
	f.diagnostics = &argspec.Option{
		Name: "diagnostics", Short: "d", Type: argspec.Bool, Arity: argspec.ArityZeroOrOne,
		Global: true, Description: "Enable diagnostic output",
	}
	f.version = &argspec.Option{
		Name: "version", Type: argspec.Bool, Arity: argspec.ArityZero, Description: "Print the version",
	}
	f.configuration = &argspec.Option{
		Name: "configuration", Short: "c", ValueName: "CONFIGURATION",
		Type: argspec.String, Arity: argspec.ArityExactlyOne, Description: "Build configuration",
	}
	f.property = &argspec.Option{
		Name: "property", Short: "p", Aliases: []string{"properties"}, ValueName: "NAME=VALUE",
		Type: argspec.StringSlice, Arity: argspec.ArityExactlyOne, Description: "Set an engine property",
	}
	f.verbosity = &argspec.Option{
		Name: "verbosity", Short: "v", ValueName: "LEVEL",
		Type: argspec.String, Arity: argspec.ArityExactlyOne, Description: "Engine verbosity",
		Default: func() any { return "minimal" },
	}
	f.noRestore = &argspec.Option{
		Name: "no-restore", Type: argspec.Bool, Arity: argspec.ArityZero, Description: "Skip the implicit restore",
	}
	f.internal = &argspec.Option{
		Name: "internal-trace", Type: argspec.Bool, Arity: argspec.ArityZero, Hidden: true,
	}
	f.project = &argspec.Argument{
		Name: "PROJECT", Type: argspec.String, Arity: argspec.ArityZeroOrOne,
		Description: "Project file or directory", Default: func() any { return "." },
	}
	f.force = &argspec.Option{
		Name: "force", Type: argspec.Bool, Arity: argspec.ArityZeroOrOne, Description: "Overwrite existing files",
	}
	f.name = &argspec.Argument{
		Name: "NAME", Type: argspec.String, Arity: argspec.ArityExactlyOne, Description: "Name of the output",
	}
	f.id = &argspec.Option{
		Name: "id", ValueName: "PACKAGE", Type: argspec.String, Arity: argspec.ArityExactlyOne,
		Required: true, Description: "Package to install",
	}

	root := &Command{
		Name:     "dotcli",
		Summary:  "Build and run programs",
		Options:  []*argspec.Option{f.diagnostics, f.version},
		Fallback: f.runner("dotcli"),
		Subcommands: []*Command{
			{
				Name:    "build",
				Aliases: []string{"b"},
				Summary: "Build a project",
				Kind:    KindPassthrough,
				Options: []*argspec.Option{
					f.configuration, f.property, f.verbosity, f.noRestore, f.internal,
				},
				Arguments:         []*argspec.Argument{f.project},
				DocumentationLink: "https://example.com/build",
				Run:               f.runner("build"),
			},
			{
				Name:      "new",
				Summary:   "Create a project",
				Options:   []*argspec.Option{f.force},
				Arguments: []*argspec.Argument{f.name},
				Examples: []Example{
					{Description: "Create a console app", Command: "dotcli new console"},
				},
				Run: f.runner("new"),
			},
			{
				Name:    "tool",
				Summary: "Manage tools",
				Subcommands: []*Command{
					{Name: "install", Summary: "Install a tool", Options: []*argspec.Option{f.id}, Run: f.runner("tool install")},
					{Name: "list", Summary: "List installed tools", Run: f.runner("tool list")},
				},
			},
			{
				Name:    "parse",
				Summary: "Show how a command line parses",
				Kind:    KindHidden,
				Run:     f.runner("parse"),
			},
		},
	}

	tree, err := NewTree(root)
	if err != nil {
		t.Fatalf("NewTree() error: %v", err)
	}
	f.tree = tree
	return f
}

func (f *fixture) runner(name string) func(context.Context, *Invocation) error {
	return func(ctx context.Context, invocation *Invocation) error {
		f.ran = append(f.ran, name)
		f.invocation = invocation
		if f.panics[name] {
			panic("boom in " + name)
		}
		return f.errs[name]
	}
}

func tokenKinds(tokens []Token) []TokenKind {
	kinds := make([]TokenKind, len(tokens))
	for i, token := range tokens {
		kinds[i] = token.Kind
	}
	return kinds
}
