// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package process

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/bureau-foundation/dotcli/lib/escape"
)

// configurePlatform hands the child the pre-escaped command line
// verbatim. The child's runtime splits it with CommandLineToArgv, which
// recovers exactly spec.Argv.
func configurePlatform(command *exec.Cmd, spec *CommandSpec) {
	commandLine := escape.Arg(spec.Path)
	if spec.Args != "" {
		commandLine += " " + spec.Args
	}
	command.SysProcAttr = &syscall.SysProcAttr{CmdLine: commandLine}
}

// detachedProcess is DETACHED_PROCESS from the Windows API.
const detachedProcess = 0x00000008

func configureDetached(command *exec.Cmd, spec *CommandSpec) {
	configurePlatform(command, spec)
	command.SysProcAttr.CreationFlags = syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess
}

// terminate kills the child; Windows has no catchable termination
// signal for console processes started without a console group.
func terminate(process *os.Process) error {
	return process.Kill()
}

func kill(process *os.Process) error {
	return process.Kill()
}

func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	return state.ExitCode()
}
