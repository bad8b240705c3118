// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"

	"github.com/bureau-foundation/dotcli/lib/argspec"
)

func noop(context.Context, *Invocation) error { return nil }

func TestNewTree_LinksParents(t *testing.T) {
	f := newFixture(t)
	install := f.tree.Lookup("tool", "install")
	if install == nil {
		t.Fatal("Lookup(tool, install) = nil")
	}
	if install.Parent() != f.tree.Lookup("tool") {
		t.Error("install.Parent() is not tool")
	}
	if got := install.FullName(); got != "dotcli tool install" {
		t.Errorf("FullName() = %q", got)
	}
	if f.tree.Lookup("b") != nil {
		t.Error("Lookup matched an alias")
	}
	if f.tree.Lookup("tool", "missing") != nil {
		t.Error("Lookup(tool, missing) != nil")
	}
}

func TestTree_Walk(t *testing.T) {
	f := newFixture(t)
	var names []string
	f.tree.Walk(func(command *Command) error {
		names = append(names, command.FullName())
		return nil
	})
	want := []string{
		"dotcli", "dotcli build", "dotcli new", "dotcli tool",
		"dotcli tool install", "dotcli tool list", "dotcli parse",
	}
	if !slices.Equal(names, want) {
		t.Errorf("Walk() visited %q, want %q", names, want)
	}
}

func TestNewTree_ReportsEveryProblem(t *testing.T) {
	shared := &Command{Name: "shared", Run: noop}
	root := &Command{
		Name: "dotcli",
		Subcommands: []*Command{
			{Name: "build", Run: noop},
			{Name: "compile", Aliases: []string{"build"}, Run: noop},
			{Name: "empty"},
			{Name: "-bad", Run: noop},
			{
				Name: "options",
				Run:  noop,
				Options: []*argspec.Option{
					{Name: "output", Short: "o", Arity: argspec.ArityExactlyOne},
					{Name: "output", Arity: argspec.ArityExactlyOne},
					{Name: "other", Short: "o", Arity: argspec.ArityExactlyOne},
					{Name: "flag", Short: "ff"},
				},
			},
			{
				Name: "arguments",
				Run:  noop,
				Arguments: []*argspec.Argument{
					{Name: "FILES", Arity: argspec.ArityOneOrMore},
					{Name: "TARGET", Arity: argspec.ArityExactlyOne},
				},
			},
			shared,
			{Name: "group", Subcommands: []*Command{shared}},
		},
	}

	_, err := NewTree(root)
	if err == nil {
		t.Fatal("NewTree() succeeded, want an error")
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) || len(merr.Errors) < 8 {
		t.Errorf("NewTree() error = %T, want a *multierror.Error with every problem", err)
	}
	for _, want := range []string{
		`duplicate subcommand name "build"`,
		"dotcli empty: command has neither Run nor subcommands",
		"command name must not start with a dash",
		"duplicate option --output",
		"duplicate option -o",
		"must be a single character",
		`argument "FILES" accepts any number of values but is not last`,
		"command appears more than once in the tree",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("NewTree() error missing %q:\n%v", want, err)
		}
	}
}

func TestNewTree_NilRoot(t *testing.T) {
	if _, err := NewTree(nil); err == nil {
		t.Error("NewTree(nil) succeeded")
	}
}

func TestKind_String(t *testing.T) {
	for kind, want := range map[Kind]string{KindNormal: "normal", KindHidden: "hidden", KindPassthrough: "passthrough"} {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}
