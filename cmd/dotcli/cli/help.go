// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dotcli/lib/argspec"
)

// Synopsis returns the usage line: the Usage override, or one
// synthesized from the command's subcommands, options, and arguments.
func (c *Command) Synopsis() string {
	if c.Usage != "" {
		return c.Usage
	}
	parts := []string{c.FullName()}
	if len(c.Subcommands) > 0 {
		parts = append(parts, "<command>")
	}
	if len(c.VisibleOptions()) > 0 {
		parts = append(parts, "[options]")
	}
	for _, argument := range c.Arguments {
		parts = append(parts, argumentSynopsis(argument))
	}
	if c.Kind == KindPassthrough {
		parts = append(parts, "[-- <args>...]")
	}
	return strings.Join(parts, " ")
}

func argumentSynopsis(argument *argspec.Argument) string {
	name := "<" + argument.Name + ">"
	if argument.Arity.Max > 1 {
		name += "..."
	}
	if argument.Arity.Min == 0 {
		return "[" + name + "]"
	}
	return name
}

// PrintHelp writes structured help output to w.
func (c *Command) PrintHelp(w io.Writer) {
	if c.Description != "" {
		fmt.Fprintf(w, "%s\n\n", c.Description)
	} else if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	fmt.Fprintf(w, "Usage:\n  %s\n", c.Synopsis())

	if len(c.Arguments) > 0 {
		fmt.Fprintf(w, "\nArguments:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, argument := range c.Arguments {
			fmt.Fprintf(tw, "  <%s>\t%s\n", argument.Name, argument.Description)
		}
		tw.Flush()
	}

	if usages := c.flagSet().FlagUsages(); usages != "" {
		fmt.Fprintf(w, "\nFlags:\n%s", usages)
	}

	var visible []*Command
	for _, subcommand := range c.Subcommands {
		if !subcommand.Hidden() {
			visible = append(visible, subcommand)
		}
	}
	if len(visible) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, subcommand := range visible {
			name := subcommand.Name
			if len(subcommand.Aliases) > 0 {
				name += ", " + strings.Join(subcommand.Aliases, ", ")
			}
			fmt.Fprintf(tw, "  %s\t%s\n", name, subcommand.Summary)
		}
		tw.Flush()
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
			if example.Description != "" {
				fmt.Fprintln(w)
			}
		}
	}

	if len(visible) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", c.FullName())
	}
	if c.DocumentationLink != "" {
		fmt.Fprintf(w, "\nLearn more: %s\n", c.DocumentationLink)
	}
}

// flagSet renders the command's visible options as a pflag set, used
// only for its help formatting. Nothing is ever parsed with it.
func (c *Command) flagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(c.FullName(), pflag.ContinueOnError)
	flagSet.SortFlags = false
	for _, option := range c.VisibleOptions() {
		if option.Hidden || flagSet.Lookup(option.Name) != nil {
			continue
		}
		short := option.Short
		if short != "" && flagSet.ShorthandLookup(short) != nil {
			short = ""
		}
		usage := option.Description
		if len(option.Aliases) > 0 {
			usage += " (also --" + strings.Join(option.Aliases, ", --") + ")"
		}
		if option.Required {
			usage += " (required)"
		}
		value := &helpValue{typeName: helpTypeName(option)}
		flag := flagSet.VarPF(value, option.Name, short, usage)
		if option.Default != nil {
			flag.DefValue = defaultLabel(option.Default())
		}
	}
	if flagSet.Lookup("help") == nil {
		short := "h"
		if flagSet.ShorthandLookup(short) != nil {
			short = ""
		}
		flagSet.VarPF(&helpValue{typeName: "bool"}, "help", short, "Show help for this command")
	}
	return flagSet
}

// defaultLabel renders a default for help. pflag hides "" and "false".
func defaultLabel(value any) string {
	switch typed := value.(type) {
	case []string:
		return strings.Join(typed, ",")
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}

// helpTypeName is the value label pflag prints after the flag name.
// pflag omits it for "bool".
func helpTypeName(option *argspec.Option) string {
	if option.Type == argspec.Bool || option.Arity.Max == 0 {
		return "bool"
	}
	if option.ValueName != "" {
		return strings.ToLower(option.ValueName)
	}
	return "value"
}

// helpValue is a pflag.Value that only carries a type label.
type helpValue struct {
	typeName string
	value    string
}

func (v *helpValue) String() string     { return v.value }
func (v *helpValue) Set(s string) error { v.value = s; return nil }
func (v *helpValue) Type() string       { return v.typeName }
