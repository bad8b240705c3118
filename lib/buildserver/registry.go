// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bureau-foundation/dotcli/lib/codec"
)

// Registration is the content of a server's pid file: enough for a
// client to find and identify a running server without connecting.
type Registration struct {
	Backend   Backend   `cbor:"backend"`
	PID       int       `cbor:"pid"`
	Channel   string    `cbor:"channel"`
	Version   string    `cbor:"version"`
	StartedAt time.Time `cbor:"started_at"`
}

// Registry is the directory of pid files, one per running server,
// named "<backend>-<pid>.pid".
type Registry struct {
	directory string
	logger    *slog.Logger
}

// NewRegistry returns a registry rooted at directory. The directory is
// created on the first Register.
func NewRegistry(directory string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{directory: directory, logger: logger}
}

// Directory returns the registry root. Channels for servers registered
// here conventionally live in the same directory.
func (r *Registry) Directory() string {
	return r.directory
}

func (r *Registry) pidFilePath(backend Backend, pid int) string {
	return filepath.Join(r.directory, fmt.Sprintf("%s-%d.pid", backend, pid))
}

// Register atomically writes the pid file for registration and
// returns its path.
func (r *Registry) Register(registration Registration) (string, error) {
	data, err := codec.Marshal(registration)
	if err != nil {
		return "", fmt.Errorf("encoding registration for %s pid %d: %w", registration.Backend, registration.PID, err)
	}
	if err := os.MkdirAll(r.directory, 0o700); err != nil {
		return "", fmt.Errorf("creating build server directory: %w", err)
	}

	finalPath := r.pidFilePath(registration.Backend, registration.PID)

	tmpFile, err := os.CreateTemp(r.directory, "register-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp pid file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("writing pid file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("closing temp pid file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming pid file to %s: %w", finalPath, err)
	}

	success = true
	return finalPath, nil
}

// Discover returns the registrations for backend, newest first. A
// missing registry directory yields no registrations. Files that cannot
// be read or decoded are skipped.
func (r *Registry) Discover(backend Backend) ([]Registration, error) {
	matches, err := filepath.Glob(filepath.Join(r.directory, string(backend)+"-*.pid"))
	if err != nil {
		return nil, fmt.Errorf("listing %s pid files: %w", backend, err)
	}

	var registrations []Registration
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				r.logger.Warn("skipping unreadable pid file", "path", path, "error", err)
			}
			continue
		}
		var registration Registration
		if err := codec.Unmarshal(data, &registration); err != nil {
			attributes := []any{"path", path, "error", err}
			if notation, diagnoseErr := codec.Diagnose(data); diagnoseErr == nil {
				attributes = append(attributes, "content", notation)
			}
			r.logger.Warn("skipping malformed pid file", attributes...)
			continue
		}
		if registration.Backend != backend {
			r.logger.Warn("skipping pid file for another backend",
				"path", path, "expected", backend, "found", registration.Backend)
			continue
		}
		registrations = append(registrations, registration)
	}

	sort.SliceStable(registrations, func(i, j int) bool {
		return registrations[i].StartedAt.After(registrations[j].StartedAt)
	})
	return registrations, nil
}

// Remove deletes registration's pid file. A file that is already gone
// is not an error.
func (r *Registry) Remove(registration Registration) error {
	path := r.pidFilePath(registration.Backend, registration.PID)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing pid file %s: %w", path, err)
	}
	return nil
}
