// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for dotcli packages.
//
// [SocketDir] creates a short directory in /tmp for build-server
// sockets, since Unix domain socket paths are limited to 108 bytes.
// [WriteFile] and [Chdir] set up project and entry-point fixtures for
// routing and command tests.
//
// [RequireReceive] and [RequireClosed] wrap the select with a
// wall-clock timeout so a hung goroutine fails the test instead of
// stalling the suite.
//
// All helpers call t.Fatalf on failure.
package testutil
