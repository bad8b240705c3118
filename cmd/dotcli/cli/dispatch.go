// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/dotcli/lib/argspec"
)

// dispatchState is the position of the dispatcher in the grammar.
type dispatchState int

const (
	// stateAtRoot: nothing but directives has been consumed.
	stateAtRoot dispatchState = iota

	// stateAtCommand: positioned at a command, expecting subcommands,
	// options, or arguments.
	stateAtCommand

	// stateAtOption: consuming the values of an option occurrence.
	stateAtOption

	// stateSeparated: after "--"; everything is passthrough.
	stateSeparated
)

// Dispatch resolves args (without the program name) against the tree.
//
// Children and options are matched in declared order; the first match
// wins. Long option names ("--name") and short forms ("-n") are
// separate namespaces, both case-sensitive. A value may be attached
// with '=' or ':' ("--name=value", "-n:value"). Problems accumulate in
// the result's Errors; dispatch never stops at the first one.
func (t *Tree) Dispatch(args []string) *ParseResult {
	d := &dispatcher{
		result: &ParseResult{
			Command:  t.root,
			values:   make(map[any]any),
			explicit: make(map[any]bool),
		},
		state: stateAtRoot,
	}
	d.enter(t.root)
	for position, text := range args {
		d.consume(position, text)
	}
	d.finish(args)
	return d.result
}

// Tokenize returns the classification Dispatch gives each argument.
func (t *Tree) Tokenize(args []string) []Token {
	return t.Dispatch(args).Tokens
}

type dispatcher struct {
	result *ParseResult
	state  dispatchState

	// commandEnd is the index after the last command or directive
	// token.
	commandEnd int

	// option is the occurrence being filled in stateAtOption.
	option       *argspec.Option
	optionToken  int
	optionValues int

	// slot is the argument slot positionals currently fill, and
	// slotCounts the number of values bound to each slot.
	slot       int
	slotCounts []int
}

func (d *dispatcher) node() *Command {
	return d.result.Command
}

func (d *dispatcher) enter(command *Command) {
	d.result.Command = command
	d.slot = 0
	d.slotCounts = make([]int, len(command.Arguments))
}

func (d *dispatcher) addToken(position int, text string, kind TokenKind) *Token {
	d.result.Tokens = append(d.result.Tokens, Token{Text: text, Kind: kind, Position: position})
	return &d.result.Tokens[len(d.result.Tokens)-1]
}

func (d *dispatcher) fail(position int, text string, message, suggestion string) {
	token := d.addToken(position, text, TokenError)
	copied := *token
	d.result.Errors = append(d.result.Errors, &ParseError{Token: &copied, Message: message, Suggestion: suggestion})
}

func (d *dispatcher) consume(position int, text string) {
	switch d.state {
	case stateSeparated:
		d.addToken(position, text, TokenPassthrough)
		d.result.Passthrough = append(d.result.Passthrough, text)
		return

	case stateAtOption:
		if d.acceptsValue(text) {
			d.addToken(position, text, TokenOptionValue)
			d.bindOption(d.option, text, position)
			d.optionValues++
			if d.optionValues >= d.option.Arity.Max {
				d.finishOption()
			}
			return
		}
		d.finishOption()

	case stateAtRoot:
		if isDirectiveToken(text) {
			d.addToken(position, text, TokenDirective)
			d.result.Directives = append(d.result.Directives, text[1:len(text)-1])
			d.commandEnd = position + 1
			return
		}
		d.state = stateAtCommand
	}

	node := d.node()
	switch {
	case text == "--":
		d.addToken(position, text, TokenSeparator)
		d.state = stateSeparated

	case isHelpToken(text):
		d.addToken(position, text, TokenHelp)
		d.result.HelpRequested = true

	case node.child(text) != nil:
		d.addToken(position, text, TokenCommand)
		d.enter(node.child(text))
		d.commandEnd = position + 1

	case isOptionShaped(text):
		d.matchOption(position, text)

	case node.Kind == KindPassthrough && argspec.IsSwitch(text):
		d.unmatched(position, text)

	default:
		d.matchArgument(position, text)
	}
}

// acceptsValue reports whether text can be the next value of the
// option being filled.
func (d *dispatcher) acceptsValue(text string) bool {
	if text == "--" || isOptionShaped(text) || isHelpToken(text) {
		return false
	}
	if d.option.Type == argspec.Bool {
		return isBoolLiteral(text)
	}
	return true
}

func (d *dispatcher) matchOption(position int, text string) {
	long := strings.HasPrefix(text, "--")
	name := strings.TrimPrefix(strings.TrimPrefix(text, "-"), "-")
	attached, hasAttached := "", false
	if index := strings.IndexAny(name, "=:"); index >= 0 {
		name, attached, hasAttached = name[:index], name[index+1:], true
	}

	var option *argspec.Option
	for _, candidate := range d.node().VisibleOptions() {
		if candidate.Matches(name, long) {
			option = candidate
			break
		}
	}
	if option == nil {
		if d.node().Kind == KindPassthrough {
			d.unmatched(position, text)
			return
		}
		d.fail(position, text, fmt.Sprintf("unknown option %q", text), suggestOption(name, long, d.node().VisibleOptions()))
		return
	}

	d.addToken(position, text, TokenOption)
	d.result.explicit[option] = true

	switch {
	case hasAttached && option.Arity.Max == 0:
		d.result.Errors = append(d.result.Errors, &ParseError{
			Token:   &Token{Text: text, Kind: TokenOption, Position: position},
			Message: fmt.Sprintf("option --%s does not take a value", option.Name),
		})
	case hasAttached:
		d.bindOption(option, attached, position)
	case option.Arity.Max == 0:
		d.result.values[option] = true
	default:
		d.state = stateAtOption
		d.option = option
		d.optionToken = position
		d.optionValues = 0
	}
}

// finishOption closes the option occurrence being filled.
func (d *dispatcher) finishOption() {
	option := d.option
	if d.optionValues < option.Arity.Min {
		d.result.Errors = append(d.result.Errors, &ParseError{
			Token:   &Token{Text: "--" + option.Name, Kind: TokenOption, Position: d.optionToken},
			Message: fmt.Sprintf("option --%s requires a value", option.Name),
		})
	}
	if d.optionValues == 0 && option.Type == argspec.Bool {
		d.result.values[option] = true
	}
	d.option = nil
	d.state = stateAtCommand
}

func (d *dispatcher) bindOption(option *argspec.Option, value string, position int) {
	switch option.Type {
	case argspec.Bool:
		if !isBoolLiteral(value) {
			d.result.Errors = append(d.result.Errors, &ParseError{
				Token:   &Token{Text: value, Kind: TokenOptionValue, Position: position},
				Message: fmt.Sprintf("invalid value %q for --%s: expected true or false", value, option.Name),
			})
			return
		}
		d.result.values[option] = strings.EqualFold(value, "true")
	case argspec.StringSlice:
		existing, _ := d.result.values[option].([]string)
		d.result.values[option] = append(existing, value)
	default:
		d.result.values[option] = value
	}
}

func (d *dispatcher) matchArgument(position int, text string) {
	node := d.node()
	for d.slot < len(node.Arguments) && d.slotCounts[d.slot] >= node.Arguments[d.slot].Arity.Max {
		d.slot++
	}
	if d.slot < len(node.Arguments) {
		argument := node.Arguments[d.slot]
		d.addToken(position, text, TokenArgument)
		d.slotCounts[d.slot]++
		d.result.explicit[argument] = true
		switch argument.Type {
		case argspec.StringSlice:
			existing, _ := d.result.values[argument].([]string)
			d.result.values[argument] = append(existing, text)
		case argspec.Bool:
			d.result.values[argument] = strings.EqualFold(text, "true")
		default:
			d.result.values[argument] = text
		}
		return
	}

	if node.Kind == KindPassthrough {
		d.unmatched(position, text)
		return
	}
	if len(node.Subcommands) > 0 {
		d.fail(position, text, fmt.Sprintf("unknown command %q", text), suggestCommand(text, node.Subcommands))
		return
	}
	d.fail(position, text, fmt.Sprintf("unrecognized command or argument %q", text), "")
}

func (d *dispatcher) unmatched(position int, text string) {
	d.addToken(position, text, TokenUnmatched)
	d.result.Unmatched = append(d.result.Unmatched, text)
}

// finish runs the terminal checks and applies defaults.
func (d *dispatcher) finish(args []string) {
	if d.state == stateAtOption {
		d.finishOption()
	}
	result := d.result
	node := d.node()
	result.Remaining = append([]string(nil), args[d.commandEnd:]...)

	for _, option := range node.VisibleOptions() {
		if option.Required && !result.explicit[option] {
			result.Errors = append(result.Errors, &ParseError{
				Message: fmt.Sprintf("option --%s is required", option.Name),
			})
		}
		if _, bound := result.values[option]; !bound {
			result.values[option] = option.DefaultValue()
		}
	}
	for i, argument := range node.Arguments {
		if d.slotCounts[i] < argument.Arity.Min {
			result.Errors = append(result.Errors, &ParseError{
				Message: fmt.Sprintf("required argument %s is missing", argument.Name),
			})
		}
		if _, bound := result.values[argument]; !bound {
			result.values[argument] = argument.DefaultValue()
		}
	}

	result.MissingSubcommand = len(node.Subcommands) > 0
}

func isBoolLiteral(text string) bool {
	return strings.EqualFold(text, "true") || strings.EqualFold(text, "false")
}
