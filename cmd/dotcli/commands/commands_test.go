// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	buildservercmd "github.com/bureau-foundation/dotcli/cmd/dotcli/buildservercmd"
	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/cmd/dotcli/forward"
	"github.com/bureau-foundation/dotcli/lib/buildserver"
	"github.com/bureau-foundation/dotcli/lib/process"
	"github.com/bureau-foundation/dotcli/lib/router"
	"github.com/bureau-foundation/dotcli/lib/testutil"
	"github.com/bureau-foundation/dotcli/lib/version"
)

func testTree(t *testing.T) *cli.Tree {
	t.Helper()
	tree, err := BuildCommandTree(Dependencies{
		Engine: &forward.Engine{
			Path:                 "/opt/engine/msbuild",
			Arguments:            []string{"-nologo"},
			PackageManager:       "nuget",
			EntryPointExtensions: []string{".cs"},
			Launcher:             process.NewLauncher(process.LauncherOptions{}),
		},
		BuildServer: buildservercmd.Options{
			Registry: buildserver.NewRegistry(filepath.Join(t.TempDir(), "servers"), nil),
		},
		ConfigSource: "defaults",
	})
	if err != nil {
		t.Fatalf("BuildCommandTree() error: %v", err)
	}
	return tree
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := testTree(t).Execute(context.Background(), args, cli.Streams{Stdout: &stdout, Stderr: &stderr}, nil)
	return code, stdout.String(), stderr.String()
}

func TestBuildCommandTree_Commands(t *testing.T) {
	tree := testTree(t)
	for _, path := range [][]string{
		{"build"}, {"restore"}, {"clean"}, {"test"}, {"pack"}, {"publish"},
		{"msbuild"}, {"nuget"}, {"run"}, {"watch"},
		{"build-server", "shutdown"}, {"build-server", "status"},
		{"version"}, {"parse"},
	} {
		if tree.Lookup(path...) == nil {
			t.Errorf("command %q missing", strings.Join(path, " "))
		}
	}
}

// Every runnable command must be reachable: a leaf without Run, or a
// group without subcommands, would dispatch to nothing.
func TestBuildCommandTree_EveryLeafRuns(t *testing.T) {
	tree := testTree(t)
	err := tree.Walk(func(command *cli.Command) error {
		if len(command.Subcommands) == 0 && command.Run == nil {
			return errors.New(command.FullName() + " has neither subcommands nor Run")
		}
		if command.Summary == "" && command.Parent() != nil {
			return errors.New(command.FullName() + " has no summary")
		}
		return nil
	})
	if err != nil {
		t.Error(err)
	}
}

func TestRoot_NoCommandPrintsHelp(t *testing.T) {
	code, stdout, stderr := execute(t)
	if code != cli.ExitFailure {
		t.Errorf("exit code = %d, want %d", code, cli.ExitFailure)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	if !strings.Contains(stderr, "build-server") || !strings.Contains(stderr, "Usage:") {
		t.Errorf("stderr does not look like help:\n%s", stderr)
	}
	if strings.Contains(stderr, "\n  parse") {
		t.Errorf("hidden parse command listed in help:\n%s", stderr)
	}
}

func TestRoot_Version(t *testing.T) {
	code, stdout, _ := execute(t, "--version")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if stdout != version.Info()+"\n" {
		t.Errorf("stdout = %q, want %q", stdout, version.Info())
	}
}

func TestRoot_Info(t *testing.T) {
	code, stdout, _ := execute(t, "--info")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{version.Info(), "/opt/engine/msbuild", "-nologo", "servers", "Configuration: defaults"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("--info output missing %q:\n%s", want, stdout)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	code, stdout, _ := execute(t, "version")
	if code != 0 || !strings.HasPrefix(stdout, "dotcli "+version.Info()) {
		t.Errorf("code %d, stdout %q", code, stdout)
	}
}

func TestParseCommand(t *testing.T) {
	code, stdout, _ := execute(t, "parse", "--", "build", "-c", "Release", "app.csproj", "-bl")
	if code != 0 {
		t.Fatalf("exit code = %d, stdout:\n%s", code, stdout)
	}
	for _, want := range []string{"[ build ", "<Release>", "command: dotcli build", "unmatched: -bl"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("parse output missing %q:\n%s", want, stdout)
		}
	}
}

func TestParseCommand_ReportsErrors(t *testing.T) {
	code, stdout, _ := execute(t, "parse", "--", "build-server", "shutdown", "--bogus")
	if code != cli.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, cli.ExitUsage)
	}
	if !strings.Contains(stdout, "error: ") {
		t.Errorf("stdout = %q, want the parse error", stdout)
	}
}

func TestUnknownCommandIsUsageError(t *testing.T) {
	code, _, stderr := execute(t, "biuld")
	if code != cli.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, cli.ExitUsage)
	}
	if !strings.Contains(stderr, "build") {
		t.Errorf("stderr = %q, want a suggestion", stderr)
	}
}

func TestRewriteEntryPoint(t *testing.T) {
	tree := testTree(t)
	directory := t.TempDir()
	script := testutil.WriteFile(t, directory, "hello.cs", "")
	testutil.WriteFile(t, directory, "build", "")
	isEntryPoint := router.FileEntryPoint([]string{".cs"})

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"entry point", []string{script, "a"}, []string{"run", script, "a"}},
		{"after directive", []string{"[parse]", script}, []string{"[parse]", "run", script}},
		{"command", []string{"build", script}, []string{"build", script}},
		{"option", []string{"--version"}, []string{"--version"}},
		{"missing file", []string{filepath.Join(directory, "nope.cs")}, []string{filepath.Join(directory, "nope.cs")}},
		{"empty", nil, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := RewriteEntryPoint(tree, test.args, isEntryPoint)
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("RewriteEntryPoint(%q) = %q, want %q", test.args, got, test.want)
			}
		})
	}
}
