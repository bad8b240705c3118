// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package buildserver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/dotcli/lib/testutil"
)

func TestShutdownBackends(t *testing.T) {
	registry := NewRegistry(testutil.SocketDir(t), nil)
	_, done := registerServer(t, registry, MSBuild)
	stale := Registration{
		Backend:   Razor,
		PID:       515151,
		Channel:   filepath.Join(registry.Directory(), "razor-gone.sock"),
		StartedAt: time.Now(),
	}
	if _, err := registry.Register(stale); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	results, err := ShutdownBackends(context.Background(), registry, AllBackends(), ShutdownOptions{ConnectTimeout: time.Second})
	if err != nil {
		t.Fatalf("ShutdownBackends() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(results), results)
	}
	if results[0].Registration.Backend != MSBuild || !results[0].Running {
		t.Errorf("msbuild result = %+v, want running", results[0])
	}
	if results[1].Registration.Backend != Razor || results[1].Running {
		t.Errorf("razor result = %+v, want not running", results[1])
	}

	if err := testutil.RequireReceive(t, done, testTimeout, "msbuild server to stop"); err != nil {
		t.Errorf("Serve() error: %v", err)
	}
	for _, backend := range []Backend{MSBuild, Razor} {
		found, _ := registry.Discover(backend)
		if len(found) != 0 {
			t.Errorf("%s registrations remain: %+v", backend, found)
		}
	}
}

func TestShutdownBackends_NothingRunning(t *testing.T) {
	registry := NewRegistry(filepath.Join(t.TempDir(), "empty"), nil)
	results, err := ShutdownBackends(context.Background(), registry, AllBackends(), ShutdownOptions{})
	if err != nil {
		t.Fatalf("ShutdownBackends() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
}
