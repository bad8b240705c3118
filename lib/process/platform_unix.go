// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configurePlatform places the child in its own process group so that
// cancellation reaches every process it spawns. The argument vector is
// passed directly; Unix children do not re-parse a command line.
func configurePlatform(command *exec.Cmd, _ *CommandSpec) {
	command.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// configureDetached starts the child in a new session, detached from
// the caller's terminal and process group.
func configureDetached(command *exec.Cmd, _ *CommandSpec) {
	command.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func terminate(process *os.Process) error {
	return signalGroup(process, unix.SIGTERM)
}

func kill(process *os.Process) error {
	return signalGroup(process, unix.SIGKILL)
}

// signalGroup signals the child's process group, falling back to the
// child alone if the group is already gone.
func signalGroup(process *os.Process, signal unix.Signal) error {
	if err := unix.Kill(-process.Pid, signal); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return process.Signal(signal)
		}
		return err
	}
	return nil
}

// exitCode maps a terminated process to a shell-style exit code:
// 128+N for death by signal N.
func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return state.ExitCode()
}
