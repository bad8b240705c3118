// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewCommandLogger_JSONWhenNotTerminal(t *testing.T) {
	var stderr bytes.Buffer
	logger, closer := NewCommandLogger(LoggerOptions{Stderr: &stderr})
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("engine started", "pid", 42)

	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), stderr.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if record["msg"] != "engine started" || record["pid"] != float64(42) {
		t.Errorf("record = %v", record)
	}
}

func TestNewCommandLogger_FileReceivesEveryRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dotcli.log")
	var stderr bytes.Buffer
	logger, closer := NewCommandLogger(LoggerOptions{
		Level:     slog.LevelDebug,
		Stderr:    &stderr,
		File:      path,
		MaxSizeMB: 1,
	})
	logger.With("command", "dotcli build").Debug("routing", "kind", "virtual-entry-point")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	for _, output := range []string{string(data), stderr.String()} {
		if !strings.Contains(output, `"command":"dotcli build"`) || !strings.Contains(output, `"msg":"routing"`) {
			t.Errorf("output = %q, want the record", output)
		}
	}
}
