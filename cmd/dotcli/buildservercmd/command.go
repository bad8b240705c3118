// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildservercmd

import (
	"time"

	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/lib/buildserver"
)

// Options are what the build-server commands need from the process.
type Options struct {
	Registry       *buildserver.Registry
	ClientVersion  string
	ConnectTimeout time.Duration
}

// Command returns "build-server" with its subcommands.
func Command(options Options) *cli.Command {
	return &cli.Command{
		Name:    "build-server",
		Summary: "Manage persistent build servers",
		Description: `Manage the persistent build servers that keep the build engine, the
compiler, and the Razor generator warm between builds.`,
		Subcommands: []*cli.Command{
			shutdownCommand(options),
			statusCommand(options),
		},
	}
}
