// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package forward

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bureau-foundation/dotcli/lib/clock"
)

// defaultWatchDebounce is how long watch collects file events before
// acting on them, so that a save touching several files restarts the
// application once.
const defaultWatchDebounce = 200 * time.Millisecond

// skippedDirectories hold build outputs; changes there never restart
// the application.
var skippedDirectories = map[string]bool{"bin": true, "obj": true, "node_modules": true}

// eventSource delivers file system events for watched directories.
// fsnotify.Watcher is the production implementation; tests inject
// events directly.
type eventSource interface {
	Add(path string) error
	Close() error
	events() <-chan fsnotify.Event
	errors() <-chan error
}

type fsnotifySource struct {
	watcher *fsnotify.Watcher
}

func (s fsnotifySource) Add(path string) error { return s.watcher.Add(path) }
func (s fsnotifySource) Close() error { return s.watcher.Close() }
func (s fsnotifySource) events() <-chan fsnotify.Event { return s.watcher.Events }
func (s fsnotifySource) errors() <-chan error { return s.watcher.Errors }

// sourceWatcher reports changed source files under root. Every
// directory of the tree is watched, except build outputs and dot
// directories; directories created later are added as they appear.
type sourceWatcher struct {
	root     string
	debounce time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	source   eventSource
}

// newSourceWatcher starts watching root with fsnotify.
func newSourceWatcher(root string, debounce time.Duration, clk clock.Clock, logger *slog.Logger) (*sourceWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	w := &sourceWatcher{root: root, debounce: debounce, clock: clk, logger: logger, source: fsnotifySource{watcher}}
	if err := w.addTree(root, nil); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *sourceWatcher) Close() error {
	return w.source.Close()
}

// addTree watches directory and every relevant directory below it.
// found, if set, is called for each regular file in the tree.
func (w *sourceWatcher) addTree(directory string, found func(path string)) error {
	return filepath.WalkDir(directory, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// Removed mid-walk; its parent's events cover it.
			if path != directory {
				return nil
			}
			return err
		}
		if !w.relevant(path) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() {
			if found != nil && entry.Type().IsRegular() {
				found(path)
			}
			return nil
		}
		if err := w.source.Add(path); err != nil {
			if path == w.root {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			w.logger.Warn("watching directory failed", "path", path, "error", err)
		}
		return nil
	})
}

// relevant reports whether path lies outside build outputs and dot
// directories and is not itself a dot file.
func (w *sourceWatcher) relevant(path string) bool {
	relative, err := filepath.Rel(w.root, path)
	if err != nil || relative == "." {
		return err == nil
	}
	for _, part := range strings.Split(relative, string(filepath.Separator)) {
		if part == ".." || skippedDirectories[part] || strings.HasPrefix(part, ".") {
			return false
		}
	}
	return true
}

// run sends each batch of changed paths, sorted, until ctx is done or
// the event source closes. A batch collects the events of one debounce
// window.
func (w *sourceWatcher) run(ctx context.Context, changes chan<- []string) {
	pending := make(map[string]bool)
	var flush <-chan time.Time
	record := func(path string) {
		pending[path] = true
		if flush == nil {
			flush = w.clock.After(w.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.source.events():
			if !ok {
				return
			}
			if !w.relevant(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					// Files may land in a new directory before its watch
					// exists, so the ones already there count as changed.
					if err := w.addTree(event.Name, record); err != nil {
						w.logger.Warn("watching new directory failed", "path", event.Name, "error", err)
					}
					continue
				}
			}
			record(event.Name)

		case err, ok := <-w.source.errors():
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "root", w.root, "error", err)

		case <-flush:
			flush = nil
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			clear(pending)
			sort.Strings(batch)
			w.logger.Debug("sources changed", "files", batch)
			select {
			case changes <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}
