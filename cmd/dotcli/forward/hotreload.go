// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package forward

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"sync"

	"github.com/bureau-foundation/dotcli/lib/buildserver"
	"github.com/bureau-foundation/dotcli/lib/clock"
)

// Actions served on the hot-reload channel.
const (
	// ActionApplyUpdates returns the changes pending since the agent's
	// last call and marks the agent attached.
	ActionApplyUpdates = "apply-updates"

	// ActionRequestRestart asks the watcher to restart the application
	// (for an edit the agent cannot apply in place).
	ActionRequestRestart = "request-restart"
)

// hotReloadNamespace is the channel namespace of hot-reload servers.
const hotReloadNamespace = "hotreload"

// HotReloadUpdate is the reply to ActionApplyUpdates. Sequence counts
// every batch offered to the current application; Files lists the
// changed paths not yet delivered.
type HotReloadUpdate struct {
	Sequence uint64   `cbor:"sequence"`
	Files    []string `cbor:"files,omitempty"`
}

// hotReloadChannel serves file changes to an agent inside the running
// application.
type hotReloadChannel struct {
	name   string
	server *buildserver.Server
	served chan error
	cancel context.CancelFunc

	restart chan struct{}

	mu       sync.Mutex
	attached bool
	sequence uint64
	pending  []string
}

type hotReloadOptions struct {
	Directory string
	Version   string
	Logger    *slog.Logger
	Clock     clock.Clock
}

// startHotReload starts serving the channel and waits until it is
// listening.
func startHotReload(ctx context.Context, options hotReloadOptions) (*hotReloadChannel, error) {
	directory := options.Directory
	if directory == "" {
		directory = os.TempDir()
	}
	name := buildserver.ChannelName(directory, hotReloadNamespace, strconv.Itoa(os.Getpid()))

	channel := &hotReloadChannel{
		name:    name,
		served:  make(chan error, 1),
		restart: make(chan struct{}, 1),
	}
	channel.server = buildserver.NewServer(buildserver.ServerOptions{
		Channel: name,
		Backend: buildserver.Backend(hotReloadNamespace),
		Version: options.Version,
		Logger:  options.Logger,
		Clock:   options.Clock,
	})
	channel.server.Handle(ActionApplyUpdates, channel.applyUpdates)
	channel.server.Handle(ActionRequestRestart, channel.requestRestart)

	serveCtx, cancel := context.WithCancel(ctx)
	channel.cancel = cancel
	go func() {
		channel.served <- channel.server.Serve(serveCtx)
	}()

	select {
	case <-channel.server.Ready():
		return channel, nil
	case err := <-channel.served:
		cancel()
		return nil, fmt.Errorf("starting hot reload channel: %w", err)
	}
}

func (c *hotReloadChannel) applyUpdates(ctx context.Context, call *buildserver.Call) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = true
	update := HotReloadUpdate{Sequence: c.sequence, Files: c.pending}
	c.pending = nil
	return update, nil
}

func (c *hotReloadChannel) requestRestart(ctx context.Context, call *buildserver.Call) (any, error) {
	select {
	case c.restart <- struct{}{}:
	default:
	}
	return nil, nil
}

// offer queues changed files for an attached agent. It reports false
// when no agent is attached, in which case the caller restarts.
func (c *hotReloadChannel) offer(files []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.attached {
		return false
	}
	for _, file := range files {
		if !slices.Contains(c.pending, file) {
			c.pending = append(c.pending, file)
		}
	}
	c.sequence++
	return true
}

// reset forgets the agent of the previous application.
func (c *hotReloadChannel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = false
	c.sequence = 0
	c.pending = nil
	select {
	case <-c.restart:
	default:
	}
}

// Close stops the server and waits for it to exit.
func (c *hotReloadChannel) Close() error {
	c.server.Stop()
	c.cancel()
	return <-c.served
}
