// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package buildserver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/dotcli/lib/environ"
	"github.com/bureau-foundation/dotcli/lib/process"
	"github.com/bureau-foundation/dotcli/lib/testutil"
)

func testEnvironment() *environ.Snapshot {
	snapshot := environ.Parse([]string{"PATH=/usr/bin:/bin", "BUILD_FLAVOR=server"})
	return &snapshot
}

func newTestClient(registry *Registry) *Client {
	return NewClient(ClientOptions{
		Registry:       registry,
		Backend:        MSBuild,
		ClientVersion:  "test",
		ConnectTimeout: time.Second,
		Launcher:       process.NewLauncher(process.LauncherOptions{Environment: testEnvironment()}),
		Environment:    testEnvironment(),
	})
}

// registerServer starts an in-process build server and registers it.
func registerServer(t *testing.T, registry *Registry, backend Backend) (*Server, <-chan error) {
	t.Helper()
	channel := ChannelName(registry.Directory(), string(backend), t.Name())
	server, done := startServer(t, ServerOptions{Channel: channel, Backend: backend, Version: "test"}, map[string]ActionFunc{
		ActionBuild: BuildHandler(EngineOptions{}),
	})
	if _, err := registry.Register(Registration{
		Backend:   backend,
		PID:       os.Getpid(),
		Channel:   channel,
		Version:   "test",
		StartedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return server, done
}

func TestClient_Build_OnServer(t *testing.T) {
	registry := NewRegistry(testutil.SocketDir(t), nil)
	registerServer(t, registry, MSBuild)

	spec := process.NewCommandSpec("/bin/sh", []string{"-c", `echo "flavor=$BUILD_FLAVOR extra=$EXTRA"; echo warning >&2; exit 3`},
		environ.Overlay{"EXTRA": "overlay"})
	var stdout, stderr bytes.Buffer
	result, err := newTestClient(registry).Build(context.Background(), spec, process.Streams{Stdout: &stdout, Stderr: &stderr})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if result.PID != os.Getpid() {
		t.Errorf("PID = %d, want the in-process server's %d", result.PID, os.Getpid())
	}
	if stdout.String() != "flavor=server extra=overlay\n" {
		t.Errorf("stdout = %q, want the client's environment and overlay", stdout.String())
	}
	if stderr.String() != "warning\n" {
		t.Errorf("stderr = %q, want the engine's stderr on its own stream", stderr.String())
	}
}

func TestClient_Build_FallsBackWithoutServer(t *testing.T) {
	registry := NewRegistry(testutil.SocketDir(t), nil)

	spec := process.NewCommandSpec("/bin/sh", []string{"-c", "echo direct"}, nil)
	var stdout bytes.Buffer
	result, err := newTestClient(registry).Build(context.Background(), spec, process.Streams{Stdout: &stdout})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if result.ExitCode != 0 || stdout.String() != "direct\n" {
		t.Errorf("Build() = exit %d, output %q", result.ExitCode, stdout.String())
	}
	if result.PID == os.Getpid() {
		t.Error("fallback build ran in-process")
	}
}

func TestClient_Build_RemovesStaleRegistration(t *testing.T) {
	registry := NewRegistry(testutil.SocketDir(t), nil)
	stale := Registration{
		Backend:   MSBuild,
		PID:       424242,
		Channel:   filepath.Join(registry.Directory(), "gone.sock"),
		StartedAt: time.Now(),
	}
	if _, err := registry.Register(stale); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	spec := process.NewCommandSpec("/bin/sh", []string{"-c", "exit 0"}, nil)
	if _, err := newTestClient(registry).Build(context.Background(), spec, process.Streams{}); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	found, err := registry.Discover(MSBuild)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("stale registration survived: %+v", found)
	}
}

func TestClient_Build_LaunchFailureSurfaces(t *testing.T) {
	registry := NewRegistry(testutil.SocketDir(t), nil)
	registerServer(t, registry, MSBuild)

	spec := process.NewCommandSpec("/nonexistent/engine", nil, nil)
	_, err := newTestClient(registry).Build(context.Background(), spec, process.Streams{})
	var launchError *process.LaunchError
	if !errors.As(err, &launchError) {
		t.Fatalf("Build() error = %v, want *process.LaunchError from the direct launch", err)
	}
}
