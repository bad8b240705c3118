// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// Backend names a kind of persistent build server.
type Backend string

const (
	// MSBuild is the build engine's reusable worker node.
	MSBuild Backend = "msbuild"

	// VBCSCompiler is the compiler server.
	VBCSCompiler Backend = "vbcscompiler"

	// Razor is the Razor source generator server.
	Razor Backend = "razor"

	// Unified is the combined server that hosts all of the above in
	// one process.
	Unified Backend = "unified"
)

// AllBackends returns every backend in shutdown order.
func AllBackends() []Backend {
	return []Backend{MSBuild, VBCSCompiler, Razor, Unified}
}

// ParseBackend parses a backend name case-insensitively.
func ParseBackend(name string) (Backend, error) {
	for _, backend := range AllBackends() {
		if strings.EqualFold(name, string(backend)) {
			return backend, nil
		}
	}
	return "", fmt.Errorf("unknown build server backend %q", name)
}

// channelDigestBytes is how much of the identifier hash appears in a
// channel name. Eight bytes keeps socket paths well inside the 108-byte
// sun_path limit.
const channelDigestBytes = 8

// ChannelName derives the socket path for a channel from a fixed
// namespace (a backend name, or "hotreload") and an identifier that
// distinguishes instances within it (for example the user and engine
// path, or a process ID). Identical inputs always produce the same
// path.
func ChannelName(directory, namespace, identifier string) string {
	digest := blake3.Sum256([]byte(namespace + "\x00" + identifier))
	return filepath.Join(directory, namespace+"-"+hex.EncodeToString(digest[:channelDigestBytes])+".sock")
}

// ServerIdentity is the identifier used for build server channels: a
// server is shared by one user for one engine at one protocol version.
func ServerIdentity(enginePath string) string {
	return fmt.Sprintf("uid=%d engine=%s protocol=%d", os.Getuid(), enginePath, ProtocolVersion)
}
