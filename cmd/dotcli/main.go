// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	buildservercmd "github.com/bureau-foundation/dotcli/cmd/dotcli/buildservercmd"
	"github.com/bureau-foundation/dotcli/cmd/dotcli/cli"
	"github.com/bureau-foundation/dotcli/cmd/dotcli/commands"
	"github.com/bureau-foundation/dotcli/cmd/dotcli/forward"
	"github.com/bureau-foundation/dotcli/lib/buildserver"
	"github.com/bureau-foundation/dotcli/lib/config"
	"github.com/bureau-foundation/dotcli/lib/environ"
	"github.com/bureau-foundation/dotcli/lib/process"
	"github.com/bureau-foundation/dotcli/lib/router"
	"github.com/bureau-foundation/dotcli/lib/version"
)

func main() {
	if err := run(os.Args[1:], cli.Streams{}); err != nil {
		// Commands print their own failures; an ExitError only carries
		// the code.
		var exitError *cli.ExitError
		if errors.As(err, &exitError) {
			os.Exit(exitError.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.ExitCodeFor(err))
	}
}

// globals are the process-level flags accepted before the command.
type globals struct {
	config      string
	logFile     string
	diagnostics bool
}

func run(args []string, streams cli.Streams) error {
	flags, rest, err := parseGlobals(args)
	if err != nil {
		return cli.Usagef("%v", err)
	}

	cfg, err := config.Resolve(flags.config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	snapshot := environ.Current()

	level, _ := cfg.Logging.SlogLevel()
	if flags.diagnostics {
		level = slog.LevelDebug
	}
	logFile := flags.logFile
	if logFile == "" {
		logFile = cfg.LogFile(snapshot)
	}
	logger, logCloser := cli.NewCommandLogger(cli.LoggerOptions{
		Level:      level,
		Stderr:     streams.Stderr,
		File:       logFile,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tree, err := commands.BuildCommandTree(dependencies(cfg, configSource(flags.config, snapshot), snapshot, logger))
	if err != nil {
		return err
	}
	rest = commands.RewriteEntryPoint(tree, rest, router.FileEntryPoint(cfg.EntryPoints.Extensions))
	logger.Debug("dispatching", "args", rest, "version", version.Short())

	if code := tree.Execute(ctx, rest, streams, logger); code != cli.ExitSuccess {
		return &cli.ExitError{Code: code}
	}
	return nil
}

// parseGlobals parses the global flags at the front of args and
// returns the remaining tokens untouched. Parsing stops at the first
// token that is not one of these flags, so command options with the
// same spelling are never taken.
func parseGlobals(args []string) (globals, []string, error) {
	var flags globals
	set := pflag.NewFlagSet("dotcli", pflag.ContinueOnError)
	set.SetInterspersed(false)
	set.SetOutput(io.Discard)
	set.StringVar(&flags.config, "config", "", "configuration file (default $"+environ.ConfigVar+")")
	set.StringVar(&flags.logFile, "log-file", "", "also write logs to this file (default $"+environ.LogFileVar+")")
	set.BoolVarP(&flags.diagnostics, "diagnostics", "d", false, "enable debug logging")

	end := leadingGlobals(set, args)
	if err := set.Parse(args[:end]); err != nil {
		return globals{}, nil, err
	}
	return flags, args[end:], nil
}

// leadingGlobals returns how many tokens at the front of args belong
// to flags defined in set.
func leadingGlobals(set *pflag.FlagSet, args []string) int {
	index := 0
	for index < len(args) {
		token := args[index]
		var flag *pflag.Flag
		name, _, hasValue := strings.Cut(strings.TrimLeft(token, "-"), "=")
		switch {
		case strings.HasPrefix(token, "--") && len(token) > 2:
			flag = set.Lookup(name)
		case len(token) == 2 && token[0] == '-':
			flag = set.ShorthandLookup(token[1:])
		}
		if flag == nil {
			break
		}
		if hasValue || flag.Value.Type() == "bool" {
			index++
		} else {
			index = min(index+2, len(args))
		}
	}
	return index
}

func configSource(flagPath string, snapshot environ.Snapshot) string {
	if flagPath != "" {
		return flagPath
	}
	if path := snapshot.Get(environ.ConfigVar); path != "" {
		return path + " ($" + environ.ConfigVar + ")"
	}
	return "defaults"
}

// dependencies wires the command tree to the configured engine,
// launcher, and build server registry.
func dependencies(cfg *config.Config, source string, snapshot environ.Snapshot, logger *slog.Logger) commands.Dependencies {
	launcher := process.NewLauncher(process.LauncherOptions{
		Logger:      logger,
		GracePeriod: cfg.Process.GracePeriodDuration(),
		Environment: &snapshot,
	})
	hostPath, err := os.Executable()
	if err != nil {
		logger.Debug("cannot determine own executable", "error", err)
	}
	registry := buildserver.NewRegistry(cfg.BuildServer.Directory, logger)
	enginePath := cfg.BuildEnginePath(snapshot)
	connectTimeout := cfg.BuildServer.ConnectTimeoutDuration()

	engine := &forward.Engine{
		Path:                 enginePath,
		Arguments:            cfg.BuildEngine.Arguments,
		PackageManager:       cfg.PackageManager.Path,
		EntryPointExtensions: cfg.EntryPoints.Extensions,
		DiagnosticPatterns:   cfg.Diagnostics.Patterns,
		Launcher:             launcher,
		Overlay:              environ.ChildOverlay(snapshot, hostPath, uuid.NewString()),
		UseBuildServer:       cfg.BuildServer.UseServer,
		Version:              version.Short(),
		BuildServer: func(logger *slog.Logger) *buildserver.Client {
			options := buildserver.ClientOptions{
				Registry:       registry,
				Backend:        buildserver.MSBuild,
				ClientVersion:  version.Short(),
				ConnectTimeout: connectTimeout,
				Launcher:       launcher,
				Environment:    &snapshot,
				Logger:         logger,
			}
			if cfg.BuildServer.AutoStart {
				options.AutoStart = &buildserver.AutoStart{
					Binary: cfg.BuildServer.ServerBinary,
					Arguments: []string{
						"--backend", string(buildserver.MSBuild),
						"--directory", cfg.BuildServer.Directory,
						"--idle-timeout", cfg.BuildServer.IdleTimeoutDuration().String(),
						"--engine", enginePath,
					},
				}
			}
			return buildserver.NewClient(options)
		},
	}

	return commands.Dependencies{
		Engine: engine,
		BuildServer: buildservercmd.Options{
			Registry:       registry,
			ClientVersion:  version.Short(),
			ConnectTimeout: connectTimeout,
		},
		ConfigSource: source,
	}
}
