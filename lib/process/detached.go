// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"os"
	"os/exec"

	"github.com/bureau-foundation/dotcli/lib/environ"
)

// StartDetached starts spec without waiting for it. The child runs in
// its own session with its standard streams connected to the null
// device, so it outlives the caller. Returns the child's PID.
func (l *Launcher) StartDetached(spec *CommandSpec) (int, error) {
	if err := spec.consume(); err != nil {
		return 0, err
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, &LaunchError{Path: spec.Path, CommandLine: spec.String(), Err: err}
	}
	defer devNull.Close()

	command := exec.Command(spec.Path, spec.Argv...)
	command.Dir = spec.Dir
	command.Env = environ.Merge(l.base, spec.Env)
	command.Stdin = devNull
	command.Stdout = devNull
	command.Stderr = devNull
	configureDetached(command, spec)

	if err := command.Start(); err != nil {
		return 0, &LaunchError{Path: spec.Path, CommandLine: spec.String(), Err: err}
	}
	pid := command.Process.Pid
	l.logger.Info("started detached process", "path", spec.Path, "pid", pid)
	if err := command.Process.Release(); err != nil {
		l.logger.Warn("releasing detached process", "pid", pid, "error", err)
	}
	return pid, nil
}
