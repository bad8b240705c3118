// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/dotcli/lib/codec"
	"github.com/bureau-foundation/dotcli/lib/environ"
	"github.com/bureau-foundation/dotcli/lib/process"
)

// EngineOptions configures the build action handler.
type EngineOptions struct {
	Logger      *slog.Logger
	GracePeriod time.Duration
}

// BuildHandler returns the ActionFunc for "build": it runs the
// requested engine invocation in the request's environment and replies
// with its exit code and the output of each stream, encoded as
// negotiated for the connection. An engine that cannot be started is a failure
// response, so the client falls back and reports the launch error
// itself.
func BuildHandler(options EngineOptions) ActionFunc {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(ctx context.Context, call *Call) (any, error) {
		var request BuildRequest
		if err := codec.Unmarshal(call.Payload, &request); err != nil {
			return nil, fmt.Errorf("invalid build request: %w", err)
		}
		if request.Path == "" {
			return nil, fmt.Errorf("invalid build request: missing path")
		}

		environment := environ.Parse(request.Env)
		launcher := process.NewLauncher(process.LauncherOptions{
			Logger:      logger,
			GracePeriod: options.GracePeriod,
			Environment: &environment,
		})
		spec := process.NewCommandSpec(request.Path, request.Argv, nil).InDir(request.Dir)

		// The launcher serializes writes across both streams.
		var stdout, stderr bytes.Buffer
		result, err := launcher.Launch(ctx, spec, process.Streams{Stdout: &stdout, Stderr: &stderr})
		if err != nil {
			return nil, err
		}

		reply := BuildReply{ExitCode: result.ExitCode}
		if reply.Stdout, err = encodeStream(stdout.Bytes(), call.Encoding); err != nil {
			return nil, err
		}
		if reply.Stderr, err = encodeStream(stderr.Bytes(), call.Encoding); err != nil {
			return nil, err
		}
		logger.Info("build finished",
			"session", call.SessionID,
			"exit_code", result.ExitCode,
			"duration", result.Duration,
			"stdout_bytes", reply.Stdout.Size,
			"stderr_bytes", reply.Stderr.Size,
			"encoded_bytes", len(reply.Stdout.Data)+len(reply.Stderr.Data),
			"encoding", call.Encoding,
		)
		return reply, nil
	}
}

func encodeStream(data []byte, preferred string) (StreamOutput, error) {
	encoded, encoding, err := EncodeOutput(data, preferred)
	if err != nil {
		return StreamOutput{}, err
	}
	return StreamOutput{Data: encoded, Size: len(data), Encoding: encoding}, nil
}
