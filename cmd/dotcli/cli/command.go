// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/bureau-foundation/dotcli/lib/argspec"
)

// Kind changes how the dispatcher and help treat a command.
type Kind int

const (
	// KindNormal commands reject tokens they do not recognize.
	KindNormal Kind = iota

	// KindHidden commands dispatch normally but are omitted from help
	// listings and suggestions.
	KindHidden

	// KindPassthrough commands collect unrecognized tokens verbatim in
	// ParseResult.Unmatched instead of reporting them as errors. They
	// forward those tokens to an external tool.
	KindPassthrough
)

func (k Kind) String() string {
	switch k {
	case KindHidden:
		return "hidden"
	case KindPassthrough:
		return "passthrough"
	default:
		return "normal"
	}
}

// Command is one node of the command tree. Commands are plain values:
// build the whole tree, then hand the root to NewTree, which validates
// it and links parents. Do not modify a command after that.
type Command struct {
	// Name is the command name as typed (e.g., "build-server").
	Name string

	// Aliases are alternative names matched like Name.
	Aliases []string

	// Summary is the one-line description in the parent's listing.
	Summary string

	// Description is shown at the top of the command's own help.
	// Defaults to Summary.
	Description string

	// Usage overrides the synthesized synopsis.
	Usage string

	Examples []Example

	// DocumentationLink is printed at the end of help.
	DocumentationLink string

	Kind Kind

	Options   []*argspec.Option
	Arguments []*argspec.Argument

	Subcommands []*Command

	// Run executes the command after a successful dispatch.
	Run func(ctx context.Context, invocation *Invocation) error

	// Fallback runs when the command has subcommands and none was
	// given. Nil prints help and fails.
	Fallback func(ctx context.Context, invocation *Invocation) error

	parent *Command
}

// Example is a usage example shown in help output.
type Example struct {
	Description string
	Command     string
}

// Invocation is what Run and Fallback receive.
type Invocation struct {
	Result *ParseResult
	Logger *slog.Logger
	Streams
}

// Streams are the standard streams of an execution.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Parent returns the command's parent, or nil for the root.
func (c *Command) Parent() *Command {
	return c.parent
}

// FullName returns the command path (e.g., "dotcli build-server
// shutdown").
func (c *Command) FullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.FullName() + " " + c.Name
}

// Hidden reports whether the command is omitted from help.
func (c *Command) Hidden() bool {
	return c.Kind == KindHidden
}

// matchesName reports whether token is the command's name or an alias.
func (c *Command) matchesName(token string) bool {
	if token == c.Name {
		return true
	}
	for _, alias := range c.Aliases {
		if token == alias {
			return true
		}
	}
	return false
}

// child returns the first subcommand, in declared order, named token.
func (c *Command) child(token string) *Command {
	for _, subcommand := range c.Subcommands {
		if subcommand.matchesName(token) {
			return subcommand
		}
	}
	return nil
}

// VisibleOptions returns the options usable at this command: its own,
// then global options declared by ancestors, nearest first.
func (c *Command) VisibleOptions() []*argspec.Option {
	options := append([]*argspec.Option(nil), c.Options...)
	for ancestor := c.parent; ancestor != nil; ancestor = ancestor.parent {
		for _, option := range ancestor.Options {
			if option.Global {
				options = append(options, option)
			}
		}
	}
	return options
}
