// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package environ

import (
	"os"
	"runtime"
	"sort"
	"strings"
)

// Variables read or set by dotcli.
const (
	// ConfigVar names the configuration file.
	ConfigVar = "DOTCLI_CONFIG"

	// BuildEnginePathVar overrides the build engine executable path.
	BuildEnginePathVar = "DOTCLI_BUILD_ENGINE_PATH"

	// HotReloadPipeVar carries the hot-reload delta channel name to the
	// application being watched.
	HotReloadPipeVar = "DOTNET_HOTRELOAD_NAMEDPIPE_NAME"

	// TelemetryLogVar enables logging of telemetry messages. It is
	// propagated to child processes unchanged.
	TelemetryLogVar = "DOTCLI_CLI_TELEMETRY_LOG"

	// TelemetrySessionVar carries the invocation's session ID to child
	// processes so their telemetry can be correlated.
	TelemetrySessionVar = "DOTCLI_CLI_TELEMETRY_SESSIONID"

	// LogFileVar names a file receiving a copy of dotcli's logs.
	LogFileVar = "DOTCLI_LOG_FILE"

	// HostPathVar is set for child processes to the running dotcli
	// executable so they can call back into it.
	HostPathVar = "DOTCLI_HOST_PATH"
)

// Snapshot is an immutable view of a process environment.
type Snapshot struct {
	values map[string]string
	order  []string
}

// Current captures the environment of the running process.
func Current() Snapshot {
	return Parse(os.Environ())
}

// Parse builds a snapshot from "KEY=value" entries. Later entries for
// the same key win. Entries without "=" are ignored.
func Parse(entries []string) Snapshot {
	snapshot := Snapshot{values: make(map[string]string, len(entries))}
	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			continue
		}
		normalized := normalizeKey(key)
		if _, exists := snapshot.values[normalized]; !exists {
			snapshot.order = append(snapshot.order, key)
		}
		snapshot.values[normalized] = value
	}
	return snapshot
}

// Lookup returns the value of key and whether it is set.
func (s Snapshot) Lookup(key string) (string, bool) {
	value, ok := s.values[normalizeKey(key)]
	return value, ok
}

// Get returns the value of key, or "" if unset.
func (s Snapshot) Get(key string) string {
	value, _ := s.Lookup(key)
	return value
}

// Len returns the number of variables in the snapshot.
func (s Snapshot) Len() int {
	return len(s.values)
}

// Overlay is a set of variables that replace or extend a base
// environment for one child process.
type Overlay map[string]string

// Set adds or replaces a variable. Returns the overlay for chaining.
func (o Overlay) Set(key, value string) Overlay {
	o[key] = value
	return o
}

// With returns a copy of o with every entry of other applied on top.
func (o Overlay) With(other Overlay) Overlay {
	merged := make(Overlay, len(o)+len(other))
	for key, value := range o {
		merged[key] = value
	}
	for key, value := range other {
		merged[key] = value
	}
	return merged
}

// Merge combines a base snapshot with an overlay into "KEY=value"
// entries suitable for exec.Cmd.Env. Overlay keys win over base keys.
// Base entries keep their original order; new overlay keys follow in
// sorted order so the result is deterministic.
func Merge(base Snapshot, overlay Overlay) []string {
	normalizedOverlay := make(map[string]string, len(overlay))
	for key, value := range overlay {
		normalizedOverlay[normalizeKey(key)] = value
	}

	entries := make([]string, 0, len(base.order)+len(overlay))
	for _, key := range base.order {
		normalized := normalizeKey(key)
		if value, ok := normalizedOverlay[normalized]; ok {
			entries = append(entries, key+"="+value)
			delete(normalizedOverlay, normalized)
			continue
		}
		entries = append(entries, key+"="+base.values[normalized])
	}

	var added []string
	for key := range overlay {
		if _, pending := normalizedOverlay[normalizeKey(key)]; pending {
			added = append(added, key)
		}
	}
	sort.Strings(added)
	for _, key := range added {
		entries = append(entries, key+"="+overlay[key])
	}
	return entries
}

// ChildOverlay returns the variables every child process receives:
// the host path and telemetry session, plus the telemetry log toggle
// when the parent has it set.
func ChildOverlay(base Snapshot, hostPath, sessionID string) Overlay {
	overlay := Overlay{}
	if hostPath != "" {
		overlay.Set(HostPathVar, hostPath)
	}
	if sessionID != "" {
		overlay.Set(TelemetrySessionVar, sessionID)
	}
	if value, ok := base.Lookup(TelemetryLogVar); ok {
		overlay.Set(TelemetryLogVar, value)
	}
	return overlay
}

// normalizeKey folds case on Windows, where environment variable
// names are case-insensitive.
func normalizeKey(key string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(key)
	}
	return key
}
