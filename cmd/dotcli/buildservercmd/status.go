// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildservercmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/lib/argspec"
	"github.com/bureau-foundation/dotcli/lib/buildserver"
)

// serverStatus is one row of "build-server status".
type serverStatus struct {
	Backend    buildserver.Backend `json:"backend"`
	PID        int                 `json:"pid"`
	Responding bool                `json:"responding"`
	Version    string              `json:"version"`
	StartedAt  time.Time           `json:"started_at"`
	Channel    string              `json:"channel"`
}

func statusCommand(options Options) *cli.Command {
	jsonOutput := &argspec.Option{
		Name:        "json",
		Description: "Print machine-readable JSON",
		Type:        argspec.Bool, Arity: argspec.ArityZero,
	}
	return &cli.Command{
		Name:    "status",
		Summary: "List registered build servers",
		Description: `List registered build servers and whether each one answers on its
channel.`,
		Options: []*argspec.Option{jsonOutput},
		Run: func(ctx context.Context, invocation *cli.Invocation) error {
			statuses, err := collectStatus(ctx, invocation, options)
			if err != nil {
				return err
			}
			if cli.Value[bool](invocation.Result, jsonOutput) {
				encoder := json.NewEncoder(invocation.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(statuses)
			}
			printStatus(invocation, statuses)
			return nil
		},
	}
}

func collectStatus(ctx context.Context, invocation *cli.Invocation, options Options) ([]serverStatus, error) {
	statuses := []serverStatus{}
	for _, backend := range buildserver.AllBackends() {
		registrations, err := options.Registry.Discover(backend)
		if err != nil {
			return nil, err
		}
		for _, registration := range registrations {
			statuses = append(statuses, serverStatus{
				Backend:    registration.Backend,
				PID:        registration.PID,
				Responding: ping(ctx, invocation, options, registration),
				Version:    registration.Version,
				StartedAt:  registration.StartedAt,
				Channel:    registration.Channel,
			})
		}
	}
	return statuses, nil
}

// ping reports whether the server behind registration answers.
func ping(ctx context.Context, invocation *cli.Invocation, options Options, registration buildserver.Registration) bool {
	session := buildserver.NewSession(buildserver.SessionOptions{
		Channel:        registration.Channel,
		ConnectTimeout: options.ConnectTimeout,
		ClientVersion:  options.ClientVersion,
		Logger:         invocation.Logger,
	})
	defer session.Close()
	if err := session.Connect(ctx); err != nil {
		invocation.Logger.Debug("build server not responding", "backend", registration.Backend, "pid", registration.PID, "error", err)
		return false
	}
	return session.Call(ctx, buildserver.ActionPing, nil, nil) == nil
}

func printStatus(invocation *cli.Invocation, statuses []serverStatus) {
	if len(statuses) == 0 {
		fmt.Fprintln(invocation.Stdout, "No build servers running.")
		return
	}
	writer := tabwriter.NewWriter(invocation.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(writer, "BACKEND\tPID\tSTATUS\tVERSION\tSTARTED\tCHANNEL")
	for _, status := range statuses {
		state := "running"
		if !status.Responding {
			state = "not responding"
		}
		fmt.Fprintf(writer, "%s\t%d\t%s\t%s\t%s\t%s\n",
			status.Backend, status.PID, state, status.Version,
			status.StartedAt.Local().Format(time.DateTime), status.Channel)
	}
	writer.Flush()
}
