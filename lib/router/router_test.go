// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"path/filepath"
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/bureau-foundation/dotcli/lib/argspec"
	"github.com/bureau-foundation/dotcli/lib/testutil"
)

var (
	verbosityOption = &argspec.Option{
		Name: "verbosity", Short: "v", Type: argspec.String, Arity: argspec.ArityExactlyOne,
		Forward: argspec.ForwardAs("-verbosity:"),
	}
	noRestoreOption = &argspec.Option{
		Name: "no-restore", Type: argspec.Bool, Arity: argspec.ArityZeroOrOne,
	}
	propertyOption = &argspec.Option{
		Name: "property", Short: "p", Type: argspec.StringSlice, Arity: argspec.ArityExactlyOne,
		Forward: argspec.ForwardAs("-property:"),
	}
	knownOptions = []*argspec.Option{verbosityOption, noRestoreOption, propertyOption}
)

// acceptAll treats every token ending in .cs as an existing file so
// tests do not depend on the filesystem.
func acceptAll(token string) bool {
	return filepath.Ext(token) == ".cs" && !isOptionToken(token)
}

func TestRoute_FileEntryPointScenario(t *testing.T) {
	directory := t.TempDir()
	testutil.Chdir(t, directory)
	testutil.WriteFile(t, directory, "myscript.cs", "Console.WriteLine(1);")

	decision := Route([]string{"myscript.cs", "--no-restore"}, knownOptions)

	if decision.Kind != VirtualEntryPoint {
		t.Fatalf("Kind = %s, want %s", decision.Kind, VirtualEntryPoint)
	}
	if decision.EntryPoint != "myscript.cs" {
		t.Errorf("EntryPoint = %q, want myscript.cs", decision.EntryPoint)
	}
	if !reflect.DeepEqual(decision.Args.Tokens, []string{"--no-restore"}) {
		t.Errorf("Tokens = %q, want [--no-restore]", decision.Args.Tokens)
	}
	if len(decision.Args.Options) != 1 || decision.Args.Options[0].Option != noRestoreOption {
		t.Errorf("Options = %+v, want one --no-restore binding", decision.Args.Options)
	}
}

func TestRoute_MissingFileIsPassthrough(t *testing.T) {
	testutil.Chdir(t, t.TempDir())

	decision := Route([]string{"myscript.cs"}, knownOptions)
	if decision.Kind != PhysicalPassthrough {
		t.Fatalf("Kind = %s, want passthrough for a file that does not exist", decision.Kind)
	}
}

func TestRoute_AmbiguousPassthroughScenario(t *testing.T) {
	router := &Router{Options: knownOptions, IsEntryPoint: acceptAll}
	tokens := []string{"build", "--verbosity", "quiet", "extra.txt"}

	decision := router.Route(tokens)
	if decision.Kind != PhysicalPassthrough {
		t.Fatalf("Kind = %s, want passthrough", decision.Kind)
	}
	if !reflect.DeepEqual(decision.Args.Tokens, tokens) {
		t.Errorf("Tokens = %q, want %q", decision.Args.Tokens, tokens)
	}
	if !reflect.DeepEqual(decision.Args.Positional, []string{"build", "extra.txt"}) {
		t.Errorf("Positional = %q", decision.Args.Positional)
	}
}

func TestRoute_TwoEntryPointsIsPassthrough(t *testing.T) {
	router := &Router{Options: knownOptions, IsEntryPoint: acceptAll}
	decision := router.Route([]string{"a.cs", "b.cs"})
	if decision.Kind != PhysicalPassthrough {
		t.Fatalf("Kind = %s, want passthrough with two candidates", decision.Kind)
	}
}

func TestRoute_OptionValueIsNotPositional(t *testing.T) {
	router := &Router{Options: knownOptions, IsEntryPoint: acceptAll}

	// "x.cs" is the value of -p, so no positional remains.
	decision := router.Route([]string{"-p", "x.cs"})
	if decision.Kind != PhysicalPassthrough {
		t.Fatalf("Kind = %s, want passthrough", decision.Kind)
	}
	if len(decision.Args.Positional) != 0 {
		t.Errorf("Positional = %q, want none", decision.Args.Positional)
	}
}

func TestRoute_DiagnosticTokensPreserveOrder(t *testing.T) {
	router := &Router{Options: knownOptions, IsEntryPoint: acceptAll}
	decision := router.Route([]string{"-bl:first.binlog", "app.cs", "/BL", "-binaryLogger:second.binlog"})

	if decision.Kind != VirtualEntryPoint {
		t.Fatalf("Kind = %s, want virtual", decision.Kind)
	}
	want := []string{"-bl:first.binlog", "/BL", "-binaryLogger:second.binlog"}
	if !reflect.DeepEqual(decision.Args.Diagnostic, want) {
		t.Errorf("Diagnostic = %q, want %q", decision.Args.Diagnostic, want)
	}
	if !reflect.DeepEqual(decision.Args.Tokens, want) {
		t.Errorf("Tokens = %q, want %q", decision.Args.Tokens, want)
	}
}

func TestRoute_ApplicationArgumentsAfterTerminator(t *testing.T) {
	router := &Router{Options: knownOptions, IsEntryPoint: acceptAll}
	decision := router.Route([]string{"app.cs", "--", "other.cs", "--verbosity"})

	if decision.Kind != VirtualEntryPoint {
		t.Fatalf("Kind = %s, want virtual", decision.Kind)
	}
	if !reflect.DeepEqual(decision.Args.Application, []string{"other.cs", "--verbosity"}) {
		t.Errorf("Application = %q", decision.Args.Application)
	}
}

func TestRoute_Transform(t *testing.T) {
	router := &Router{
		Options:      knownOptions,
		IsEntryPoint: acceptAll,
		Transform: func(args *ForwardedArgs) {
			args.Tokens = append(args.Tokens, "-nologo")
		},
	}
	decision := router.Route([]string{"app.cs"})
	if !reflect.DeepEqual(decision.Args.Tokens, []string{"-nologo"}) {
		t.Errorf("Tokens = %q, want [-nologo]", decision.Args.Tokens)
	}
}

func TestForwardedArgs_ForwardedTokens(t *testing.T) {
	router := &Router{Options: knownOptions, IsEntryPoint: acceptAll}
	decision := router.Route([]string{"app.cs", "-v", "q", "--property:A=1", "-unknown", "--no-restore", "-bl"})

	got := decision.Args.ForwardedTokens()
	want := []string{"-verbosity:q", "-property:A=1", "-unknown", "--no-restore", "-bl"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ForwardedTokens() = %q, want %q", got, want)
	}
}

func TestPrefixMatcher(t *testing.T) {
	matcher := PrefixMatcher(DefaultDiagnosticPatterns)
	for _, token := range []string{"-bl", "-BL", "/bl:out.binlog", "--binarylogger", "-binaryLogger:x"} {
		if !matcher(token) {
			t.Errorf("%q not recognized", token)
		}
	}
	for _, token := range []string{"-blah", "build", "--verbosity", "-b"} {
		if matcher(token) {
			t.Errorf("%q recognized as diagnostic", token)
		}
	}
}

func TestFileEntryPoint(t *testing.T) {
	directory := t.TempDir()
	script := testutil.WriteFile(t, directory, "Tool.CS", "")
	other := testutil.WriteFile(t, directory, "notes.txt", "")

	predicate := FileEntryPoint([]string{".cs"})
	if !predicate(script) {
		t.Errorf("%s rejected", script)
	}
	if predicate(other) {
		t.Errorf("%s accepted with a non-entry extension", other)
	}
	if predicate(directory) {
		t.Error("directory accepted")
	}
	if predicate(filepath.Join(directory, "missing.cs")) {
		t.Error("missing file accepted")
	}
}

func TestRoute_Properties(t *testing.T) {
	vocabulary := []string{
		"app.cs", "lib.cs", "build", "extra.txt", "-v", "--verbosity", "q",
		"--no-restore", "true", "-p", "A=1", "-bl", "/bl:x", "-unknown", "--",
	}
	router := &Router{Options: knownOptions, IsEntryPoint: acceptAll}

	rapid.Check(t, func(t *rapid.T) {
		tokens := rapid.SliceOfN(rapid.SampledFrom(vocabulary), 0, 8).Draw(t, "tokens")

		first := router.Route(tokens)
		second := router.Route(append([]string(nil), tokens...))
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("Route is not deterministic for %q", tokens)
		}

		// Every token before "--" is forwarded exactly once, except
		// the entry point of a virtual decision.
		forwarded := len(first.Args.Tokens) + len(first.Args.Application)
		if first.Kind == VirtualEntryPoint {
			forwarded++
			if len(first.Args.Positional) != 0 {
				t.Fatalf("virtual decision kept positionals %q", first.Args.Positional)
			}
		}
		terminators := 0
		for _, token := range tokens {
			if token == "--" {
				terminators = 1
				break
			}
		}
		if forwarded+terminators != len(tokens) {
			t.Fatalf("tokens %q: forwarded %d of %d", tokens, forwarded, len(tokens))
		}

		// A virtual decision requires exactly one positional and it
		// must be a candidate.
		if first.Kind == VirtualEntryPoint && !acceptAll(first.EntryPoint) {
			t.Fatalf("entry point %q is not a candidate", first.EntryPoint)
		}
	})
}

func TestRoute_UnknownOptionKeepsItsValue(t *testing.T) {
	router := &Router{Options: knownOptions, IsEntryPoint: acceptAll}
	decision := router.Route([]string{"arg1", "-maxcpucount", "4", "--tl:off", "arg2", "-unknown", "app.cs"})

	if decision.Kind != PhysicalPassthrough {
		t.Fatalf("Kind = %s, want %s", decision.Kind, PhysicalPassthrough)
	}
	if !reflect.DeepEqual(decision.Args.Positional, []string{"arg1", "arg2", "app.cs"}) {
		t.Errorf("Positional = %q", decision.Args.Positional)
	}
	if !reflect.DeepEqual(decision.Args.Unknown, []string{"-maxcpucount", "4", "--tl:off", "-unknown"}) {
		t.Errorf("Unknown = %q", decision.Args.Unknown)
	}
	if got, want := decision.Args.OptionTokens(), []string{"-maxcpucount", "4", "--tl:off", "-unknown"}; !reflect.DeepEqual(got, want) {
		t.Errorf("OptionTokens() = %q, want %q", got, want)
	}
}

func TestRoute_UnknownOptionBeforeEntryPoint(t *testing.T) {
	router := &Router{Options: knownOptions, IsEntryPoint: acceptAll}
	decision := router.Route([]string{"-nologo", "app.cs", "-m", "2"})

	if decision.Kind != VirtualEntryPoint || decision.EntryPoint != "app.cs" {
		t.Fatalf("Route() = %s %q, want virtual app.cs", decision.Kind, decision.EntryPoint)
	}
	if got, want := decision.Args.ForwardedTokens(), []string{"-nologo", "-m", "2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ForwardedTokens() = %q, want %q", got, want)
	}
}

func TestRoute_SlashSwitchIsNotPositional(t *testing.T) {
	router := &Router{Options: knownOptions, IsEntryPoint: acceptAll}
	decision := router.Route([]string{"app.cs", "/p:Configuration=Release"})
	if decision.Kind != VirtualEntryPoint || decision.EntryPoint != "app.cs" {
		t.Fatalf("Route() = %s %q, want virtual app.cs", decision.Kind, decision.EntryPoint)
	}
	if !reflect.DeepEqual(decision.Args.Unknown, []string{"/p:Configuration=Release"}) {
		t.Errorf("Unknown = %q", decision.Args.Unknown)
	}
}

func TestForwardedArgs_OptionTokens(t *testing.T) {
	consumed := &argspec.Option{
		Name: "launch-profile", Type: argspec.String, Arity: argspec.ArityExactlyOne, Forward: argspec.Consume,
	}
	router := &Router{Options: append([]*argspec.Option{consumed}, knownOptions...), IsEntryPoint: acceptAll}
	decision := router.Route([]string{"arg1", "--launch-profile", "https", "-v", "q", "/bl", "arg2", "--", "app"})

	if decision.Kind != PhysicalPassthrough {
		t.Fatalf("Kind = %s, want %s", decision.Kind, PhysicalPassthrough)
	}
	got := decision.Args.OptionTokens()
	want := []string{"-verbosity:q", "/bl"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OptionTokens() = %q, want %q", got, want)
	}
	if !reflect.DeepEqual(decision.Args.Positional, []string{"arg1", "arg2"}) {
		t.Errorf("Positional = %q", decision.Args.Positional)
	}
	if !reflect.DeepEqual(decision.Args.Application, []string{"app"}) {
		t.Errorf("Application = %q", decision.Args.Application)
	}
}
