// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bureau-foundation/dotcli/lib/clock"
	"github.com/bureau-foundation/dotcli/lib/environ"
	"github.com/bureau-foundation/dotcli/lib/process"
)

// ErrNoServer is returned when no server is registered for a backend
// and auto-start is disabled.
var ErrNoServer = errors.New("no build server running")

// registrationPollInterval is how often an auto-starting client checks
// for the new server's pid file.
const registrationPollInterval = 50 * time.Millisecond

// AutoStart describes how to start a server when none is running.
type AutoStart struct {
	Binary    string
	Arguments []string
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Registry       *Registry
	Backend        Backend
	ClientVersion  string
	ConnectTimeout time.Duration

	// Launcher runs the engine directly when no server is usable, and
	// starts servers for AutoStart.
	Launcher *process.Launcher

	// AutoStart, when set, starts a server if none answers.
	AutoStart *AutoStart

	// Environment is the base environment sent with build requests.
	// Nil means the environment of the running process.
	Environment *environ.Snapshot

	Logger *slog.Logger
	Clock  clock.Clock
}

// Client runs builds on a persistent server when one is available and
// falls back to launching the engine once otherwise. The fallback is
// invisible to callers apart from the log: both paths return a
// process.Result.
type Client struct {
	options ClientOptions
	logger  *slog.Logger
	clock   clock.Clock
	base    environ.Snapshot
}

// NewClient creates a Client. Registry and Launcher are required.
func NewClient(options ClientOptions) *Client {
	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = DefaultConnectTimeout
	}
	client := &Client{
		options: options,
		logger:  options.Logger,
		clock:   options.Clock,
	}
	if client.logger == nil {
		client.logger = slog.New(slog.DiscardHandler)
	}
	client.logger = client.logger.With("backend", options.Backend)
	if client.clock == nil {
		client.clock = clock.Real()
	}
	if options.Environment != nil {
		client.base = *options.Environment
	} else {
		client.base = environ.Current()
	}
	return client
}

// Build runs spec. A server build writes the captured stdout and
// stderr to the matching writers in streams.
func (c *Client) Build(ctx context.Context, spec *process.CommandSpec, streams process.Streams) (*process.Result, error) {
	result, err := c.buildOnServer(ctx, spec, streams)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s: %w: %w", spec.Path, process.ErrCancelled, context.Cause(ctx))
	}
	if errors.Is(err, ErrNoServer) {
		c.logger.Debug("no build server, running build engine directly")
	} else {
		c.logger.Info("build server unavailable, running build engine directly", "error", err)
	}
	return c.options.Launcher.Launch(ctx, spec, streams)
}

func (c *Client) buildOnServer(ctx context.Context, spec *process.CommandSpec, streams process.Streams) (*process.Result, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	request := BuildRequest{
		Path: spec.Path,
		Argv: spec.Argv,
		Env:  environ.Merge(c.base, spec.Env),
		Dir:  spec.Dir,
	}
	started := c.clock.Now()
	var reply BuildReply
	if err := session.Call(ctx, ActionBuild, request, &reply); err != nil {
		return nil, err
	}
	for _, stream := range []struct {
		name   string
		output StreamOutput
		writer io.Writer
	}{
		{"stdout", reply.Stdout, streams.Stdout},
		{"stderr", reply.Stderr, streams.Stderr},
	} {
		data, err := DecodeOutput(stream.output.Data, stream.output.Encoding, stream.output.Size)
		if err != nil {
			return nil, &IPCError{Channel: session.channel, Op: ActionBuild, Err: fmt.Errorf("decoding %s: %w", stream.name, err)}
		}
		if stream.writer != nil && len(data) > 0 {
			if _, err := stream.writer.Write(data); err != nil {
				c.logger.Warn("writing build output", "stream", stream.name, "error", err)
			}
		}
	}

	welcome := session.Welcome()
	c.logger.Debug("build completed on server",
		"server_pid", welcome.PID,
		"exit_code", reply.ExitCode,
		"stdout_bytes", reply.Stdout.Size,
		"stderr_bytes", reply.Stderr.Size,
		"encoding", reply.Stdout.Encoding,
	)
	return &process.Result{
		ExitCode: reply.ExitCode,
		PID:      welcome.PID,
		Duration: c.clock.Now().Sub(started),
	}, nil
}

// connect returns a session to the newest registered server that
// answers, removing registrations nothing is listening for. With no
// live server it starts one if AutoStart is set.
func (c *Client) connect(ctx context.Context) (*Session, error) {
	registrations, err := c.options.Registry.Discover(c.options.Backend)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, registration := range registrations {
		session, err := c.dial(ctx, registration)
		if err == nil {
			return session, nil
		}
		lastErr = err
	}

	if c.options.AutoStart != nil {
		return c.start(ctx)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoServer
}

func (c *Client) dial(ctx context.Context, registration Registration) (*Session, error) {
	session := c.newSession(registration.Channel)
	err := session.Connect(ctx)
	if err == nil {
		return session, nil
	}
	var ipcError *IPCError
	if errors.As(err, &ipcError) && ipcError.Op == "connect" {
		c.logger.Debug("removing stale build server registration", "pid", registration.PID, "error", err)
		if removeErr := c.options.Registry.Remove(registration); removeErr != nil {
			c.logger.Warn("removing stale registration", "error", removeErr)
		}
	}
	return nil, err
}

// start launches a detached server and waits for it to register.
func (c *Client) start(ctx context.Context) (*Session, error) {
	autoStart := c.options.AutoStart
	spec := process.NewCommandSpec(autoStart.Binary, autoStart.Arguments, nil)
	pid, err := c.options.Launcher.StartDetached(spec)
	if err != nil {
		return nil, fmt.Errorf("starting %s build server: %w", c.options.Backend, err)
	}
	c.logger.Info("started build server", "pid", pid)

	deadline := c.clock.Now().Add(c.options.ConnectTimeout)
	for {
		registrations, err := c.options.Registry.Discover(c.options.Backend)
		if err != nil {
			return nil, err
		}
		for _, registration := range registrations {
			if registration.PID == pid {
				return c.dial(ctx, registration)
			}
		}
		if !c.clock.Now().Before(deadline) {
			return nil, &IPCError{
				Channel: c.options.Registry.Directory(),
				Op:      "connect",
				Err:     fmt.Errorf("build server pid %d did not register within %s", pid, c.options.ConnectTimeout),
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(registrationPollInterval):
		}
	}
}

func (c *Client) newSession(channel string) *Session {
	return NewSession(SessionOptions{
		Channel:        channel,
		ConnectTimeout: c.options.ConnectTimeout,
		ClientVersion:  c.options.ClientVersion,
		Logger:         c.logger,
	})
}
