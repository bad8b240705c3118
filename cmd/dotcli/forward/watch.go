// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package forward

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/lib/argspec"
	"github.com/bureau-foundation/dotcli/lib/environ"
)

// WatchCommand returns "watch", which runs an application and restarts
// it when its sources change.
func WatchCommand(engine *Engine) *cli.Command {
	options := newRunOptions()
	noHotReload := &argspec.Option{
		Name:        "no-hot-reload",
		Description: "Always restart the application instead of offering changes to it",
		Type:        argspec.Bool, Arity: argspec.ArityZero,
		Forward: argspec.Consume,
	}
	return &cli.Command{
		Name:    "watch",
		Summary: "Run an application and restart it when sources change",
		Description: `Run an application and restart it when sources change.

Arguments are those of "dotcli run". While the application runs, a
hot-reload channel is advertised to it through ` + environ.HotReloadPipeVar + `.
An application that attaches to the channel receives changed files
instead of being restarted.`,
		Kind:      cli.KindPassthrough,
		Options:   append(options.list(), noHotReload),
		Arguments: []*argspec.Argument{options.arguments},
		Run: func(ctx context.Context, invocation *cli.Invocation) error {
			return engine.watch(ctx, invocation, options, !cli.Value[bool](invocation.Result, noHotReload))
		},
	}
}

func (e *Engine) watch(ctx context.Context, invocation *cli.Invocation, options runOptions, hotReload bool) error {
	plan, err := e.planRun(invocation, options)
	if err != nil {
		return err
	}
	defer plan.Close()
	logger := invocation.Logger.With("root", plan.root)

	var channel *hotReloadChannel
	if hotReload {
		channel, err = startHotReload(ctx, hotReloadOptions{
			Directory: e.ChannelDirectory,
			Version:   e.Version,
			Logger:    logger,
			Clock:     e.clock(),
		})
		if err != nil {
			logger.Warn("hot reload unavailable, changes restart the application", "error", err)
			channel = nil
		} else {
			defer channel.Close()
		}
	}

	debounce := e.WatchDebounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	watcher, err := newSourceWatcher(plan.root, debounce, e.clock(), logger)
	if err != nil {
		return err
	}
	defer watcher.Close()
	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	changes := make(chan []string)
	go watcher.run(watchCtx, changes)

	var restartRequests <-chan struct{}
	if channel != nil {
		restartRequests = channel.restart
	}

	for generation := 1; ; generation++ {
		var extra environ.Overlay
		if channel != nil {
			channel.reset()
			extra = environ.Overlay{environ.HotReloadPipeVar: channel.name}
		}

		childCtx, stopChild := context.WithCancel(ctx)
		exited := make(chan error, 1)
		spec := plan.spec(e.Path, extra)
		go func() {
			exited <- e.launch(childCtx, invocation, spec, false)
		}()
		logger.Info("application started", "generation", generation)

		running := true
		restart := false
		for !restart {
			select {
			case <-ctx.Done():
				stopChild()
				if running {
					<-exited
				}
				return ctx.Err()

			case err := <-exited:
				running = false
				var exitError *cli.ExitError
				switch {
				case err == nil:
					fmt.Fprintln(invocation.Stderr, "watch: application exited, waiting for a file change")
				case errors.As(err, &exitError):
					fmt.Fprintf(invocation.Stderr, "watch: application exited with code %d, waiting for a file change\n", exitError.Code)
				default:
					fmt.Fprintf(invocation.Stderr, "watch: %v\nwatch: waiting for a file change\n", err)
				}

			case files := <-changes:
				if running && channel != nil && channel.offer(files) {
					logger.Info("offered changes to the application", "files", files)
					fmt.Fprintf(invocation.Stderr, "watch: hot reload: %d changed file(s)\n", len(files))
					continue
				}
				fmt.Fprintf(invocation.Stderr, "watch: %d file(s) changed, restarting\n", len(files))
				restart = true

			case <-restartRequests:
				fmt.Fprintln(invocation.Stderr, "watch: restart requested by the application")
				restart = true
			}
		}

		stopChild()
		if running {
			<-exited
		}
	}
}
