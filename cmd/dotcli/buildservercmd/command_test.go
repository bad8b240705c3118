// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package buildservercmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/lib/buildserver"
	"github.com/bureau-foundation/dotcli/lib/testutil"
)

const testTimeout = 5 * time.Second

// startServer runs an in-process server for backend and registers it.
// The returned channel is closed when Serve returns.
func startServer(t *testing.T, registry *buildserver.Registry, backend buildserver.Backend) <-chan struct{} {
	t.Helper()
	channel := buildserver.ChannelName(registry.Directory(), string(backend), t.Name())
	server := buildserver.NewServer(buildserver.ServerOptions{Channel: channel, Backend: backend, Version: "9.9.9"})

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-finished:
		case <-time.After(testTimeout):
			t.Errorf("server did not stop")
		}
	})
	testutil.RequireClosed(t, server.Ready(), testTimeout, "build server ready")

	if _, err := registry.Register(buildserver.Registration{
		Backend:   backend,
		PID:       os.Getpid(),
		Channel:   channel,
		Version:   "9.9.9",
		StartedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return finished
}

func registerStale(t *testing.T, registry *buildserver.Registry, backend buildserver.Backend, pid int) {
	t.Helper()
	if _, err := registry.Register(buildserver.Registration{
		Backend:   backend,
		PID:       pid,
		Channel:   filepath.Join(registry.Directory(), fmt.Sprintf("%s-gone.sock", backend)),
		StartedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
}

func execute(t *testing.T, registry *buildserver.Registry, args ...string) (int, string, string) {
	t.Helper()
	tree, err := cli.NewTree(&cli.Command{
		Name: "dotcli",
		Subcommands: []*cli.Command{Command(Options{
			Registry:       registry,
			ClientVersion:  "test",
			ConnectTimeout: time.Second,
		})},
	})
	if err != nil {
		t.Fatalf("NewTree() error: %v", err)
	}
	var stdout, stderr bytes.Buffer
	code := tree.Execute(context.Background(), args, cli.Streams{Stdout: &stdout, Stderr: &stderr}, nil)
	return code, stdout.String(), stderr.String()
}

func TestShutdown_All(t *testing.T) {
	registry := buildserver.NewRegistry(testutil.SocketDir(t), nil)
	finished := startServer(t, registry, buildserver.MSBuild)
	registerStale(t, registry, buildserver.Razor, 424242)

	code, stdout, stderr := execute(t, registry, "build-server", "shutdown")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	for _, want := range []string{
		fmt.Sprintf("Shut down msbuild server (pid %d).\n", os.Getpid()),
		"No vbcscompiler server running.\n",
		"Removed stale razor server registration (pid 424242).\n",
		"No unified server running.\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}

	testutil.RequireClosed(t, finished, testTimeout, "msbuild server to stop")
	for _, backend := range buildserver.AllBackends() {
		if found, _ := registry.Discover(backend); len(found) != 0 {
			t.Errorf("%s registrations remain: %+v", backend, found)
		}
	}
}

func TestShutdown_SelectedBackend(t *testing.T) {
	registry := buildserver.NewRegistry(testutil.SocketDir(t), nil)
	startServer(t, registry, buildserver.MSBuild)
	startServer(t, registry, buildserver.VBCSCompiler)

	code, stdout, stderr := execute(t, registry, "build-server", "shutdown", "--vbcscompiler")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "Shut down vbcscompiler server") {
		t.Errorf("stdout = %q", stdout)
	}
	if strings.Contains(stdout, "msbuild") {
		t.Errorf("msbuild mentioned when only --vbcscompiler was selected:\n%s", stdout)
	}
	if found, _ := registry.Discover(buildserver.MSBuild); len(found) != 1 {
		t.Errorf("msbuild registrations = %+v, want the running server kept", found)
	}
}

func TestShutdown_NothingRunning(t *testing.T) {
	registry := buildserver.NewRegistry(filepath.Join(t.TempDir(), "empty"), nil)

	code, stdout, _ := execute(t, registry, "build-server", "shutdown")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if strings.Count(stdout, "server running.") != len(buildserver.AllBackends()) {
		t.Errorf("stdout = %q, want one line per backend", stdout)
	}
}

func TestStatus(t *testing.T) {
	registry := buildserver.NewRegistry(testutil.SocketDir(t), nil)
	startServer(t, registry, buildserver.MSBuild)
	registerStale(t, registry, buildserver.Razor, 424242)

	code, stdout, stderr := execute(t, registry, "build-server", "status")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("status output has %d lines, want header plus two:\n%s", len(lines), stdout)
	}
	if !strings.HasPrefix(lines[0], "BACKEND") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "msbuild") || !strings.Contains(lines[1], "running") || !strings.Contains(lines[1], "9.9.9") {
		t.Errorf("msbuild row = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "razor") || !strings.Contains(lines[2], "not responding") {
		t.Errorf("razor row = %q", lines[2])
	}
}

func TestStatus_JSON(t *testing.T) {
	registry := buildserver.NewRegistry(testutil.SocketDir(t), nil)
	startServer(t, registry, buildserver.Unified)

	code, stdout, stderr := execute(t, registry, "build-server", "status", "--json")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	var statuses []serverStatus
	if err := json.Unmarshal([]byte(stdout), &statuses); err != nil {
		t.Fatalf("decoding status JSON: %v\n%s", err, stdout)
	}
	if len(statuses) != 1 || statuses[0].Backend != buildserver.Unified || !statuses[0].Responding {
		t.Errorf("statuses = %+v, want one responding unified server", statuses)
	}
}

func TestStatus_Empty(t *testing.T) {
	registry := buildserver.NewRegistry(filepath.Join(t.TempDir(), "empty"), nil)
	code, stdout, _ := execute(t, registry, "build-server", "status")
	if code != 0 || stdout != "No build servers running.\n" {
		t.Errorf("code %d, stdout %q", code, stdout)
	}
}

func TestCommand_RequiresSubcommand(t *testing.T) {
	registry := buildserver.NewRegistry(t.TempDir(), nil)
	code, _, stderr := execute(t, registry, "build-server")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "shutdown") || !strings.Contains(stderr, "status") {
		t.Errorf("stderr = %q, want help listing the subcommands", stderr)
	}
}
