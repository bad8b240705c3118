// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package escape

import (
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"plain", []string{"one", "two", "three"}, "one two three"},
		{"spaces", []string{"with spaces"}, `"with spaces"`},
		{"trailing backslash unquoted", []string{`C:\Users\`}, `C:\Users\`},
		{"trailing backslash quoted", []string{`C:\Program Files\dotnet\`}, `"C:\Program Files\dotnet\\"`},
		{"inner backslash", []string{`with\backslash`}, `with\backslash`},
		{"embedded quote", []string{`say "hi"`}, `"say \"hi\""`},
		{"backslash before quote", []string{`a\"b`}, `"a\\\"b"`},
		{"empty", []string{""}, `""`},
		{"empty between", []string{"a", "", "b"}, `a "" b`},
		{"tab", []string{"a\tb"}, "\"a\tb\""},
		{"msbuild property", []string{"-property:Configuration=Release"}, "-property:Configuration=Release"},
		{"nothing", nil, ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Escape(test.args); got != test.want {
				t.Errorf("Escape(%q) = %s, want %s", test.args, got, test.want)
			}
		})
	}
}

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		commandLine string
		want        []string
	}{
		{`one two  three`, []string{"one", "two", "three"}},
		{`"with spaces" x`, []string{"with spaces", "x"}},
		{`"C:\Program Files\dotnet\\"`, []string{`C:\Program Files\dotnet\`}},
		{`a\\\"b`, []string{`a\"b`}},
		{`a\\b`, []string{`a\\b`}},
		{`""`, []string{""}},
		{`"a""b"`, []string{`a"b`}},
		{`  `, nil},
	}

	for _, test := range tests {
		if got := splitCommandLine(test.commandLine); !reflect.DeepEqual(got, test.want) {
			t.Errorf("splitCommandLine(%s) = %q, want %q", test.commandLine, got, test.want)
		}
	}
}

func TestEscape_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		alphabet := rapid.SampledFrom([]rune{'a', 'Z', '0', ' ', '\t', '\\', '"', '/', ':', '=', '\'', 'é'})
		argument := rapid.StringOf(alphabet)
		args := rapid.SliceOfN(argument, 1, 6).Draw(t, "args")

		commandLine := Escape(args)
		if got := splitCommandLine(commandLine); !reflect.DeepEqual(got, args) {
			t.Fatalf("splitCommandLine(Escape(%q)) = %q via %s", args, got, commandLine)
		}
	})
}

func TestDisplay(t *testing.T) {
	got := Display([]string{"msbuild", "-property:A=1", "with space"})
	want := `msbuild -property:A=1 'with space'`
	if got != want {
		t.Errorf("Display() = %s, want %s", got, want)
	}
}

// splitCommandLine parses a command line with the CommandLineToArgv
// rules that Escape targets: spaces and tabs separate arguments outside quotes;
// 2n backslashes before a quote produce n backslashes and the quote
// toggles quoting; 2n+1 backslashes before a quote produce n
// backslashes and a literal quote; backslashes not followed by a quote
// are literal; a doubled quote inside a quoted region is a literal
// quote. Every argument is parsed with the same rules (there is no
// special handling of a leading program name).
func splitCommandLine(commandLine string) []string {
	var (
		args     []string
		current  strings.Builder
		inQuotes bool
		inArg    bool
	)

	for i := 0; i < len(commandLine); {
		character := commandLine[i]

		switch {
		case (character == ' ' || character == '\t') && !inQuotes:
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
			i++

		case character == '\\':
			backslashes := 0
			for i < len(commandLine) && commandLine[i] == '\\' {
				backslashes++
				i++
			}
			inArg = true
			if i < len(commandLine) && commandLine[i] == '"' {
				current.WriteString(strings.Repeat(`\`, backslashes/2))
				if backslashes%2 == 1 {
					current.WriteByte('"')
					i++
				}
				// An even run leaves the quote for the next iteration,
				// where it toggles quoting.
			} else {
				current.WriteString(strings.Repeat(`\`, backslashes))
			}

		case character == '"':
			inArg = true
			if inQuotes && i+1 < len(commandLine) && commandLine[i+1] == '"' {
				current.WriteByte('"')
				i += 2
				continue
			}
			inQuotes = !inQuotes
			i++

		default:
			inArg = true
			current.WriteByte(character)
			i++
		}
	}

	if inArg {
		args = append(args, current.String())
	}
	return args
}
