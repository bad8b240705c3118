// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/bureau-foundation/dotcli/lib/argspec"
)

// Tree is a validated, immutable command tree. It is safe for
// concurrent use.
type Tree struct {
	root *Command
}

// NewTree validates the tree rooted at root and links every command to
// its parent. Every problem found is reported, not just the first.
func NewTree(root *Command) (*Tree, error) {
	if root == nil {
		return nil, errors.New("command tree has no root")
	}
	var problems *multierror.Error
	seen := make(map[*Command]bool)
	link(root, nil, seen, &problems)
	if err := problems.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid command tree: %w", err)
	}
	return &Tree{root: root}, nil
}

func link(command, parent *Command, seen map[*Command]bool, problems **multierror.Error) {
	path := command.Name
	if parent != nil {
		path = parent.FullName() + " " + command.Name
	}
	report := func(format string, args ...any) {
		*problems = multierror.Append(*problems, fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
	}

	if seen[command] {
		report("command appears more than once in the tree")
		return
	}
	seen[command] = true
	command.parent = parent

	if command.Name == "" {
		report("command has no name")
	}
	if strings.HasPrefix(command.Name, "-") {
		report("command name must not start with a dash")
	}
	if command.Run == nil && len(command.Subcommands) == 0 {
		report("command has neither Run nor subcommands")
	}

	validateOptions(command, report)
	validateArguments(command, report)

	names := make(map[string]bool)
	for _, subcommand := range command.Subcommands {
		for _, name := range append([]string{subcommand.Name}, subcommand.Aliases...) {
			if names[name] {
				report("duplicate subcommand name %q", name)
			}
			names[name] = true
		}
	}
	for _, subcommand := range command.Subcommands {
		link(subcommand, command, seen, problems)
	}
}

func validateOptions(command *Command, report func(string, ...any)) {
	longNames := make(map[string]bool)
	shortNames := make(map[string]bool)
	for _, option := range command.Options {
		if err := option.Validate(); err != nil {
			report("%v", err)
			continue
		}
		for _, name := range option.Names() {
			if longNames[name] {
				report("duplicate option --%s", name)
			}
			longNames[name] = true
		}
		if option.Short != "" {
			if shortNames[option.Short] {
				report("duplicate option -%s", option.Short)
			}
			shortNames[option.Short] = true
		}
	}
}

func validateArguments(command *Command, report func(string, ...any)) {
	for i, argument := range command.Arguments {
		if err := argument.Validate(); err != nil {
			report("%v", err)
			continue
		}
		if argument.Arity.Max == argspec.Unbounded && i != len(command.Arguments)-1 {
			report("argument %q accepts any number of values but is not last", argument.Name)
		}
	}
}

// Root returns the root command.
func (t *Tree) Root() *Command {
	return t.root
}

// Lookup follows a path of command names (not aliases) from the root.
// It returns nil if any element is missing.
func (t *Tree) Lookup(path ...string) *Command {
	command := t.root
	for _, name := range path {
		var next *Command
		for _, subcommand := range command.Subcommands {
			if subcommand.Name == name {
				next = subcommand
				break
			}
		}
		if next == nil {
			return nil
		}
		command = next
	}
	return command
}

// Walk calls fn for every command, parents before children, in
// declared order. A non-nil error from fn stops the walk.
func (t *Tree) Walk(fn func(*Command) error) error {
	return walk(t.root, fn)
}

func walk(command *Command, fn func(*Command) error) error {
	if err := fn(command); err != nil {
		return err
	}
	for _, subcommand := range command.Subcommands {
		if err := walk(subcommand, fn); err != nil {
			return err
		}
	}
	return nil
}
