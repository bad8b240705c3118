// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package escape

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// Escape renders an argument vector as a single command-line string
// that a CommandLineToArgv-compatible parser splits back into exactly
// the same vector. Arguments are separated by a single space.
func Escape(args []string) string {
	var builder strings.Builder
	for i, arg := range args {
		if i > 0 {
			builder.WriteByte(' ')
		}
		writeArg(&builder, arg)
	}
	return builder.String()
}

// Arg escapes a single argument.
func Arg(arg string) string {
	var builder strings.Builder
	writeArg(&builder, arg)
	return builder.String()
}

// needsQuotes reports whether an argument must be wrapped in quotes to
// survive splitting. Empty arguments are quoted so they are not lost.
func needsQuotes(arg string) bool {
	return arg == "" || strings.ContainsAny(arg, " \t\n\v\"")
}

func writeArg(builder *strings.Builder, arg string) {
	if !needsQuotes(arg) {
		builder.WriteString(arg)
		return
	}

	builder.WriteByte('"')
	for i := 0; i < len(arg); {
		backslashes := 0
		for i < len(arg) && arg[i] == '\\' {
			backslashes++
			i++
		}

		switch {
		case i == len(arg):
			// The closing quote follows: double the run so the last
			// backslash does not escape it.
			builder.WriteString(strings.Repeat(`\`, backslashes*2))
		case arg[i] == '"':
			builder.WriteString(strings.Repeat(`\`, backslashes*2))
			builder.WriteString(`\"`)
			i++
		default:
			builder.WriteString(strings.Repeat(`\`, backslashes))
			builder.WriteByte(arg[i])
			i++
		}
	}
	builder.WriteByte('"')
}

// Display renders an argument vector in POSIX shell syntax for logs
// and error messages. The result can be pasted into a shell to repeat
// the invocation.
func Display(argv []string) string {
	return shellquote.Join(argv...)
}
