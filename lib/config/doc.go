// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for dotcli.
//
// The configuration file is named by the --config flag or the
// DOTCLI_CONFIG environment variable, in that order. Unlike a service,
// a build CLI must work out of the box, so when neither is set
// [Resolve] returns [Default]. A file that is named but unreadable is
// an error; dotcli never searches for configuration files.
//
// Values in the file are layered over the defaults. Path fields expand
// ${HOME}, ${TMPDIR} and ${VAR:-default} patterns after loading. Two
// environment variables override file values because they are part of
// the tool's external contract: DOTCLI_BUILD_ENGINE_PATH
// ([Config.BuildEnginePath]) and DOTCLI_LOG_FILE ([Config.LogFile]).
//
// Durations are kept as strings in the file format and parsed by
// [Config.Validate] and the *Duration accessors.
package config
