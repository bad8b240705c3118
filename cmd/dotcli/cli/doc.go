// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for dotcli: an immutable tree
// of [Command] values, a dispatcher that classifies every argument and
// binds option and argument values, and the execution wrapper that
// turns the outcome into a process exit code.
//
// A tree is built once from plain values and validated by [NewTree]:
//
//	tree, err := cli.NewTree(&cli.Command{
//	    Name: "dotcli",
//	    Subcommands: []*cli.Command{buildCommand, runCommand},
//	})
//
// [Tree.Dispatch] never stops at the first problem. It always resolves
// a command (at worst the root) and reports every problem in
// [ParseResult.Errors], so help and diagnostics can describe the whole
// command line. Parsed values are read back with [Value], keyed by the
// *argspec.Option or *argspec.Argument that declared them.
//
// Passthrough commands ([KindPassthrough]) collect the tokens they do
// not recognize in [ParseResult.Unmatched] for forwarding to an
// external tool. Tokens after "--" are collected in
// [ParseResult.Passthrough] for every command.
//
// A leading "[parse]" directive prints the dispatcher's classification
// of the command line instead of running it:
//
//	$ dotcli [parse] build -c Release app.csproj
//	[ dotcli [ build [ -c <Release> ] <app.csproj> ] ]
package cli
