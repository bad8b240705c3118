// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package forward implements the dotcli commands that hand work to an
// external process: the engine targets (build, restore, clean, test,
// pack, publish), the verbatim passthroughs (msbuild, nuget), and the
// application runners (run, watch).
//
// Every command is a passthrough command: dotcli validates and binds
// the options it knows, then routes the tokens after the command name
// through [router.Router] so that unrecognized engine switches reach
// the engine unchanged and in their original order. A single source
// file argument becomes a virtual project staged in a temporary
// directory for the duration of the command.
//
// A child that exits non-zero is reported as [cli.ExitError] carrying
// the child's code, so dotcli exits with it.
package forward
