// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Scratch is a temporary directory owned by one invocation.
type Scratch struct {
	Path string

	logger *slog.Logger
	once   sync.Once
}

// TempDir creates a uniquely named directory under the system temporary
// directory. The caller must Close it.
func TempDir(logger *slog.Logger, prefix string) (*Scratch, error) {
	path, err := os.MkdirTemp("", prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary directory: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scratch{Path: path, logger: logger}, nil
}

// Close removes the directory and everything in it. Failure is logged
// and otherwise ignored. Close is idempotent.
func (s *Scratch) Close() {
	s.once.Do(func() {
		if err := os.RemoveAll(s.Path); err != nil {
			s.logger.Warn("removing temporary directory failed", "path", s.Path, "error", err)
			return
		}
		s.logger.Debug("removed temporary directory", "path", s.Path)
	})
}

// WithTempDir runs fn with a fresh temporary directory that is removed
// when fn returns, fails, or panics.
func WithTempDir(logger *slog.Logger, prefix string, fn func(directory string) error) error {
	scratch, err := TempDir(logger, prefix)
	if err != nil {
		return err
	}
	defer scratch.Close()
	return fn(scratch.Path)
}
