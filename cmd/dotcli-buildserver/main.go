// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Dotcli-buildserver keeps a build backend warm between builds. It
// listens on a channel in the build server directory, registers itself
// there with a pid file, and runs build requests from dotcli until it
// is shut down, signalled, or idle for too long.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/lib/buildserver"
	"github.com/bureau-foundation/dotcli/lib/process"
	"github.com/bureau-foundation/dotcli/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	backend     string
	directory   string
	engine      string
	idleTimeout time.Duration
	gracePeriod time.Duration
	logFile     string
	verbose     bool
	showVersion bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	flags := pflag.NewFlagSet("dotcli-buildserver", pflag.ContinueOnError)
	flags.StringVar(&opts.backend, "backend", string(buildserver.MSBuild), "backend to serve (msbuild, vbcscompiler, razor, unified)")
	flags.StringVar(&opts.directory, "directory", "", "build server directory for the channel and pid file (required)")
	flags.StringVar(&opts.engine, "engine", "", "build engine the server is shared for; part of the channel identity")
	flags.DurationVar(&opts.idleTimeout, "idle-timeout", 10*time.Minute, "stop after this long without requests (0 disables)")
	flags.DurationVar(&opts.gracePeriod, "grace-period", process.DefaultGracePeriod, "time a cancelled build has to exit before it is killed")
	flags.StringVar(&opts.logFile, "log-file", "", "also write logs to this file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if opts.showVersion {
		return opts, nil
	}
	if opts.directory == "" {
		return options{}, fmt.Errorf("--directory is required")
	}
	if opts.idleTimeout < 0 {
		return options{}, fmt.Errorf("--idle-timeout must not be negative")
	}
	return opts, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Printf("dotcli-buildserver %s\n", version.Info())
		return nil
	}
	backend, err := buildserver.ParseBackend(opts.backend)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger, logCloser := cli.NewCommandLogger(cli.LoggerOptions{Level: level, File: opts.logFile})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, opts, backend, logger)
}

// serve runs the server until it stops and keeps its registration in
// place exactly while it is listening.
func serve(ctx context.Context, opts options, backend buildserver.Backend, logger *slog.Logger) error {
	if err := os.MkdirAll(opts.directory, 0o700); err != nil {
		return fmt.Errorf("creating build server directory: %w", err)
	}
	channel := buildserver.ChannelName(opts.directory, string(backend), buildserver.ServerIdentity(opts.engine))
	logger = logger.With("backend", backend, "channel", channel)

	server := buildserver.NewServer(buildserver.ServerOptions{
		Channel:     channel,
		Backend:     backend,
		Version:     version.Short(),
		IdleTimeout: opts.idleTimeout,
		Logger:      logger,
	})
	server.Handle(buildserver.ActionBuild, buildserver.BuildHandler(buildserver.EngineOptions{
		Logger:      logger,
		GracePeriod: opts.gracePeriod,
	}))

	served := make(chan error, 1)
	go func() {
		served <- server.Serve(ctx)
	}()
	select {
	case <-server.Ready():
	case err := <-served:
		return fmt.Errorf("starting %s build server: %w", backend, err)
	}

	registry := buildserver.NewRegistry(opts.directory, logger)
	registration := buildserver.Registration{
		Backend:   backend,
		PID:       os.Getpid(),
		Channel:   channel,
		Version:   version.Short(),
		StartedAt: time.Now(),
	}
	if _, err := registry.Register(registration); err != nil {
		server.Stop()
		<-served
		return err
	}
	defer func() {
		if err := registry.Remove(registration); err != nil {
			logger.Warn("removing registration", "error", err)
		}
	}()
	logger.Info("build server started", "pid", registration.PID, "version", registration.Version, "idle_timeout", opts.idleTimeout)

	return <-served
}
