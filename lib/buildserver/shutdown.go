// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ShutdownOptions configures ShutdownBackends.
type ShutdownOptions struct {
	ClientVersion  string
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// ShutdownResult is the outcome for one registered server.
type ShutdownResult struct {
	Registration Registration

	// Running is false when nothing answered on the registration's
	// channel; its pid file was stale.
	Running bool

	Err error
}

// ShutdownBackends asks every registered server of each backend to
// exit. Stale registrations are removed. A backend with no servers
// contributes no results. The returned error aggregates every failure;
// the results still describe every server that was attempted.
func ShutdownBackends(ctx context.Context, registry *Registry, backends []Backend, options ShutdownOptions) ([]ShutdownResult, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var results []ShutdownResult
	var errs *multierror.Error
	for _, backend := range backends {
		registrations, err := registry.Discover(backend)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		for _, registration := range registrations {
			result := shutdownOne(ctx, registry, registration, options, logger)
			if result.Err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s pid %d: %w", registration.Backend, registration.PID, result.Err))
			}
			results = append(results, result)
		}
	}
	return results, errs.ErrorOrNil()
}

func shutdownOne(ctx context.Context, registry *Registry, registration Registration, options ShutdownOptions, logger *slog.Logger) ShutdownResult {
	result := ShutdownResult{Registration: registration}
	session := NewSession(SessionOptions{
		Channel:        registration.Channel,
		ConnectTimeout: options.ConnectTimeout,
		ClientVersion:  options.ClientVersion,
		Logger:         logger,
	})
	defer session.Close()

	if err := session.Connect(ctx); err != nil {
		var ipcError *IPCError
		if !errors.As(err, &ipcError) || ipcError.Op != "connect" {
			result.Running = true
			result.Err = err
			return result
		}
		logger.Debug("build server not running, removing registration",
			"backend", registration.Backend, "pid", registration.PID)
		result.Err = registry.Remove(registration)
		return result
	}

	result.Running = true
	if err := session.Shutdown(ctx); err != nil {
		result.Err = err
		return result
	}
	logger.Info("build server shut down", "backend", registration.Backend, "pid", registration.PID)
	result.Err = registry.Remove(registration)
	return result
}
