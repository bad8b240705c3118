// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package forward

import "github.com/bureau-foundation/dotcli/lib/argspec"

// Options shared by the engine commands. Each command gets its own
// instances: parsed values are keyed by option identity.

func configurationOption() *argspec.Option {
	return &argspec.Option{
		Name: "configuration", Short: "c", ValueName: "CONFIGURATION",
		Description: "The configuration to build for (Debug or Release)",
		Type:        argspec.String, Arity: argspec.ArityExactlyOne,
		Forward: argspec.ForwardAs("-property:Configuration="),
	}
}

func frameworkOption() *argspec.Option {
	return &argspec.Option{
		Name: "framework", Short: "f", ValueName: "FRAMEWORK",
		Description: "The target framework to build for",
		Type:        argspec.String, Arity: argspec.ArityExactlyOne,
		Forward: argspec.ForwardAs("-property:TargetFramework="),
	}
}

func verbosityOption() *argspec.Option {
	return &argspec.Option{
		Name: "verbosity", Short: "v", ValueName: "LEVEL",
		Description: "Engine verbosity: quiet, minimal, normal, detailed, or diagnostic",
		Type:        argspec.String, Arity: argspec.ArityExactlyOne,
		Forward: argspec.ForwardAs("-verbosity:"),
	}
}

func outputOption() *argspec.Option {
	return &argspec.Option{
		Name: "output", Short: "o", ValueName: "DIRECTORY",
		Description: "The output directory",
		Type:        argspec.String, Arity: argspec.ArityExactlyOne,
		Forward: argspec.ForwardAs("-property:OutputPath="),
	}
}

func propertyOption() *argspec.Option {
	return &argspec.Option{
		Name: "property", Short: "p", ValueName: "NAME=VALUE",
		Description: "Set an engine property; repeatable",
		Type:        argspec.StringSlice, Arity: argspec.ArityExactlyOne,
		Forward: argspec.ForwardAs("-property:"),
	}
}

func noRestoreOption() *argspec.Option {
	return &argspec.Option{
		Name:        "no-restore",
		Description: "Do not restore dependencies before building",
		Type:        argspec.Bool, Arity: argspec.ArityZero,
		Forward: argspec.Consume,
	}
}

func useBuildServerOption() *argspec.Option {
	return &argspec.Option{
		Name:        "use-build-server",
		Description: "Run the engine in a persistent build server (true or false)",
		Type:        argspec.Bool, Arity: argspec.ArityZeroOrOne,
		Forward: argspec.Consume,
	}
}

func projectArgument() *argspec.Argument {
	return &argspec.Argument{
		Name:        "PROJECT",
		Description: "Project or solution file, directory, or a single source file (default: current directory)",
		Type:        argspec.String, Arity: argspec.ArityZeroOrOne,
		Default: argspec.DefaultCurrentDirectory,
	}
}
