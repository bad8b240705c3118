// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package forward

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/lib/argspec"
	"github.com/bureau-foundation/dotcli/lib/process"
)

// fakeEngine is a shell script standing in for the build engine. It
// records its argument vector, its environment, a copy of any project
// file it is handed, and one line per start in its own directory.
type fakeEngine struct {
	path      string
	directory string
}

type fakeEngineOptions struct {
	exitCode int

	// sleep keeps the process alive for this many seconds after it
	// records its start.
	sleep int
}

func newFakeEngine(t *testing.T, options fakeEngineOptions) *fakeEngine {
	t.Helper()
	directory := t.TempDir()
	var script strings.Builder
	script.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&script, "out=%q\n", directory)
	script.WriteString(`for arg in "$@"; do printf '%s\n' "$arg"; done > "$out/argv"` + "\n")
	script.WriteString(`env > "$out/env"` + "\n")
	script.WriteString(`for arg in "$@"; do case "$arg" in *.csproj) [ -f "$arg" ] && cp "$arg" "$out/project";; esac; done` + "\n")
	script.WriteString(`echo start >> "$out/starts"` + "\n")
	if options.sleep > 0 {
		fmt.Fprintf(&script, "exec sleep %d\n", options.sleep)
	}
	fmt.Fprintf(&script, "exit %d\n", options.exitCode)

	path := filepath.Join(directory, "engine.sh")
	if err := os.WriteFile(path, []byte(script.String()), 0o755); err != nil {
		t.Fatalf("writing fake engine: %v", err)
	}
	return &fakeEngine{path: path, directory: directory}
}

func (f *fakeEngine) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.directory, name))
	if err != nil {
		t.Fatalf("reading fake engine %s: %v", name, err)
	}
	return string(data)
}

func (f *fakeEngine) argv(t *testing.T) []string {
	t.Helper()
	content := strings.TrimSuffix(f.read(t, "argv"), "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func (f *fakeEngine) env(t *testing.T, key string) (string, bool) {
	t.Helper()
	for _, line := range strings.Split(f.read(t, "env"), "\n") {
		if value, ok := strings.CutPrefix(line, key+"="); ok {
			return value, true
		}
	}
	return "", false
}

func (f *fakeEngine) starts() int {
	data, err := os.ReadFile(filepath.Join(f.directory, "starts"))
	if err != nil {
		return 0
	}
	return strings.Count(string(data), "\n")
}

func newTestEngine(fake *fakeEngine) *Engine {
	return &Engine{
		Path:      fake.path,
		Arguments: []string{"--engine"},
		Launcher:  process.NewLauncher(process.LauncherOptions{GracePeriod: time.Second}),
	}
}

// newTestTree builds a root carrying every forwarding command.
func newTestTree(t *testing.T, engine *Engine) *cli.Tree {
	t.Helper()
	subcommands := EngineCommands(engine)
	subcommands = append(subcommands,
		MSBuildCommand(engine), NuGetCommand(engine), RunCommand(engine), WatchCommand(engine))
	tree, err := cli.NewTree(&cli.Command{
		Name: "dotcli",
		Options: []*argspec.Option{{
			Name: "diagnostics", Short: "d", Type: argspec.Bool, Arity: argspec.ArityZeroOrOne,
			Global: true, Forward: argspec.Consume,
		}},
		Subcommands: subcommands,
	})
	if err != nil {
		t.Fatalf("NewTree() error: %v", err)
	}
	return tree
}

func execute(t *testing.T, engine *Engine, args ...string) (int, string) {
	t.Helper()
	return executeContext(context.Background(), t, engine, args...)
}

func executeContext(ctx context.Context, t *testing.T, engine *Engine, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr syncBuffer
	code := newTestTree(t, engine).Execute(ctx, args, cli.Streams{
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
	}, nil)
	return code, stderr.String()
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a
// child's output drain and the command itself.
type syncBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

// waitFor polls condition until it holds or the deadline passes.
func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
