// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/bureau-foundation/dotcli/lib/argspec"
)

// ParseError is one problem found while dispatching.
type ParseError struct {
	// Token is the offending token, or nil for problems not tied to a
	// token (a missing required option).
	Token *Token

	Message string

	// Suggestion is a close match for a mistyped name, if any.
	Suggestion string
}

func (e *ParseError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (did you mean %q?)", e.Message, e.Suggestion)
	}
	return e.Message
}

// ParseResult is the outcome of dispatching one argument list.
// Dispatch always resolves a command (at worst the root); errors do
// not prevent resolution.
type ParseResult struct {
	// Command is the deepest command reached.
	Command *Command

	Tokens []Token
	Errors []*ParseError

	// Directives are the names inside leading "[name]" tokens.
	Directives []string

	// Remaining holds every token after the last command token, in
	// order and verbatim, including options and the separator.
	Remaining []string

	// Unmatched are the tokens a passthrough command did not
	// recognize.
	Unmatched []string

	// Passthrough are the tokens after "--".
	Passthrough []string

	HelpRequested bool

	// MissingSubcommand is set when Command has subcommands and none
	// was given.
	MissingSubcommand bool

	values   map[any]any
	explicit map[any]bool
}

// Err returns every ParseError combined, or nil.
func (r *ParseResult) Err() error {
	var errs *multierror.Error
	for _, parseError := range r.Errors {
		errs = multierror.Append(errs, parseError)
	}
	return errs.ErrorOrNil()
}

// HasDirective reports whether the "[name]" directive was given.
func (r *ParseResult) HasDirective(name string) bool {
	for _, directive := range r.Directives {
		if directive == name {
			return true
		}
	}
	return false
}

// Has reports whether an option or argument was given explicitly
// rather than defaulted. spec is an *argspec.Option or
// *argspec.Argument.
func (r *ParseResult) Has(spec any) bool {
	return r.explicit[spec]
}

// Value returns the bound value of an option or argument of the
// resolved command (or a global option of an ancestor), with its
// default applied when absent. spec is an *argspec.Option or
// *argspec.Argument. A spec that does not belong to the resolved
// command yields the zero T. Asking for the wrong T panics: it is a
// programming error in the command, not a user error.
func Value[T any](result *ParseResult, spec any) T {
	var zero T
	value, ok := result.values[spec]
	if !ok || value == nil {
		return zero
	}
	typed, ok := value.(T)
	if !ok {
		panic(fmt.Sprintf("cli.Value: %s holds %T, not %T", specName(spec), value, zero))
	}
	return typed
}

func specName(spec any) string {
	switch typed := spec.(type) {
	case *argspec.Option:
		return "option --" + typed.Name
	case *argspec.Argument:
		return "argument " + typed.Name
	default:
		return fmt.Sprintf("%T", spec)
	}
}

// Diagram renders the classified tokens for the [parse] directive, for
// example:
//
//	[ dotcli [ build [ --configuration <Release> ] <app.csproj> *[ --verbosity <minimal> ] ] ]
//
// Options whose value was defaulted are marked with '*'.
func (r *ParseResult) Diagram() string {
	root := r.Command
	for root.parent != nil {
		root = root.parent
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "[ %s ", root.Name)
	depth := 1
	for i := 0; i < len(r.Tokens); i++ {
		token := r.Tokens[i]
		switch token.Kind {
		case TokenDirective:
			continue
		case TokenCommand:
			fmt.Fprintf(&builder, "[ %s ", token.Text)
			depth++
		case TokenOption:
			builder.WriteString("[ " + token.Text)
			for i+1 < len(r.Tokens) && r.Tokens[i+1].Kind == TokenOptionValue {
				i++
				fmt.Fprintf(&builder, " <%s>", r.Tokens[i].Text)
			}
			builder.WriteString(" ] ")
		case TokenArgument:
			fmt.Fprintf(&builder, "<%s> ", token.Text)
		case TokenError:
			fmt.Fprintf(&builder, "!%s! ", token.Text)
		default:
			fmt.Fprintf(&builder, "%s ", token.Text)
		}
	}

	for _, option := range r.Command.VisibleOptions() {
		if r.explicit[option] {
			continue
		}
		if value, ok := r.values[option]; ok && option.Default != nil {
			fmt.Fprintf(&builder, "*[ --%s <%v> ] ", option.Name, value)
		}
	}

	builder.WriteString(strings.TrimSpace(strings.Repeat("] ", depth)))
	return strings.TrimSpace(builder.String())
}
