// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions configures NewCommandLogger.
type LoggerOptions struct {
	Level slog.Leveler

	// Stderr receives console records. Nil means os.Stderr.
	Stderr io.Writer

	// File, if set, also receives every record as JSON, rotated by
	// size.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// NewCommandLogger creates the structured logger for a CLI invocation.
// When stderr is a terminal it uses slog.TextHandler for human-readable
// output; when stderr is piped or redirected (CI, scripts, tests) it
// uses slog.JSONHandler. The returned closer releases the log file and
// is safe to call when there is none.
//
// Callers scope the logger with command context via With():
//
//	logger := invocation.Logger.With("engine", enginePath)
func NewCommandLogger(options LoggerOptions) (*slog.Logger, io.Closer) {
	level := options.Level
	if level == nil {
		level = slog.LevelInfo
	}
	stderr := options.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	var console slog.Handler
	if isTerminal(stderr) {
		console = slog.NewTextHandler(stderr, handlerOptions)
	} else {
		console = slog.NewJSONHandler(stderr, handlerOptions)
	}

	if options.File == "" {
		return slog.New(console), nopCloser{}
	}
	file := &lumberjack.Logger{
		Filename:   options.File,
		MaxSize:    options.MaxSizeMB,
		MaxBackups: options.MaxBackups,
	}
	return slog.New(fanoutHandler{console, slog.NewJSONHandler(file, handlerOptions)}), file
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanoutHandler is a slog.Handler that sends each record to multiple
// underlying handlers. A record is enabled if any sub-handler is
// enabled for that level.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
