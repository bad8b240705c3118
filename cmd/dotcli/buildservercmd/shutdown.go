// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildservercmd

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/lib/argspec"
	"github.com/bureau-foundation/dotcli/lib/buildserver"
)

var backendSummaries = map[buildserver.Backend]string{
	buildserver.MSBuild:      "Shut down the build engine server",
	buildserver.VBCSCompiler: "Shut down the compiler server",
	buildserver.Razor:        "Shut down the Razor server",
	buildserver.Unified:      "Shut down the unified server",
}

func shutdownCommand(options Options) *cli.Command {
	selectors := make(map[buildserver.Backend]*argspec.Option)
	var specs []*argspec.Option
	for _, backend := range buildserver.AllBackends() {
		option := &argspec.Option{
			Name:        string(backend),
			Description: backendSummaries[backend],
			Type:        argspec.Bool, Arity: argspec.ArityZero,
		}
		selectors[backend] = option
		specs = append(specs, option)
	}

	return &cli.Command{
		Name:    "shutdown",
		Summary: "Shut down build servers",
		Description: `Shut down running build servers. With no options every kind of server
is shut down. Registrations of servers that are no longer running are
removed.`,
		Options: specs,
		Examples: []cli.Example{
			{Description: "Shut down every build server", Command: "dotcli build-server shutdown"},
			{Description: "Shut down only the compiler server", Command: "dotcli build-server shutdown --vbcscompiler"},
		},
		Run: func(ctx context.Context, invocation *cli.Invocation) error {
			var backends []buildserver.Backend
			for _, backend := range buildserver.AllBackends() {
				if cli.Value[bool](invocation.Result, selectors[backend]) {
					backends = append(backends, backend)
				}
			}
			if len(backends) == 0 {
				backends = buildserver.AllBackends()
			}
			return shutdown(ctx, invocation, options, backends)
		},
	}
}

func shutdown(ctx context.Context, invocation *cli.Invocation, options Options, backends []buildserver.Backend) error {
	results, err := buildserver.ShutdownBackends(ctx, options.Registry, backends, buildserver.ShutdownOptions{
		ClientVersion:  options.ClientVersion,
		ConnectTimeout: options.ConnectTimeout,
		Logger:         invocation.Logger,
	})

	seen := make(map[buildserver.Backend]bool)
	for _, result := range results {
		registration := result.Registration
		seen[registration.Backend] = true
		switch {
		case result.Err != nil:
			// Reported through err below.
		case result.Running:
			fmt.Fprintf(invocation.Stdout, "Shut down %s server (pid %d).\n", registration.Backend, registration.PID)
		default:
			fmt.Fprintf(invocation.Stdout, "Removed stale %s server registration (pid %d).\n", registration.Backend, registration.PID)
		}
	}
	for _, backend := range backends {
		if !seen[backend] {
			fmt.Fprintf(invocation.Stdout, "No %s server running.\n", backend)
		}
	}

	if err != nil {
		return fmt.Errorf("shutting down build servers: %w", err)
	}
	return nil
}
