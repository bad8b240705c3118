// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/dotcli/lib/environ"
)

// Config is the dotcli configuration.
type Config struct {
	// BuildEngine configures the executable that forwarding commands
	// invoke.
	BuildEngine BuildEngineConfig `yaml:"build_engine"`

	// PackageManager configures the executable behind "dotcli nuget".
	PackageManager PackageManagerConfig `yaml:"package_manager"`

	// EntryPoints configures file-based program detection.
	EntryPoints EntryPointsConfig `yaml:"entry_points"`

	// Diagnostics configures which tokens are diagnostic switches.
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`

	// BuildServer configures persistent build servers.
	BuildServer BuildServerConfig `yaml:"build_server"`

	// Process configures child process handling.
	Process ProcessConfig `yaml:"process"`

	// Logging configures dotcli's own logs.
	Logging LoggingConfig `yaml:"logging"`
}

// BuildEngineConfig configures the build engine.
type BuildEngineConfig struct {
	// Path is the engine executable. A bare name is looked up in PATH.
	// DOTCLI_BUILD_ENGINE_PATH overrides it.
	// Default: msbuild
	Path string `yaml:"path"`

	// Arguments are prepended to every engine invocation.
	// Default: ["-nologo"]
	Arguments []string `yaml:"arguments"`
}

// PackageManagerConfig configures the package manager.
type PackageManagerConfig struct {
	// Path is the package manager executable.
	// Default: nuget
	Path string `yaml:"path"`
}

// EntryPointsConfig configures file-based program detection.
type EntryPointsConfig struct {
	// Extensions are the accepted entry-point file extensions,
	// including the dot.
	// Default: [".cs"]
	Extensions []string `yaml:"extensions"`
}

// DiagnosticsConfig configures diagnostic token recognition.
type DiagnosticsConfig struct {
	// Patterns are case-insensitive switch names (e.g., "-bl") that
	// mark a token as a diagnostic switch, alone or followed by
	// ":value".
	Patterns []string `yaml:"patterns"`
}

// BuildServerConfig configures persistent build servers.
type BuildServerConfig struct {
	// Directory holds the pid files and sockets of running servers.
	// Default: ${TMPDIR:-/tmp}/dotcli-build-server
	Directory string `yaml:"directory"`

	// UseServer makes forwarding commands prefer a running build
	// server over a one-shot engine process.
	// Default: false
	UseServer bool `yaml:"use_server"`

	// AutoStart starts a server when UseServer is set and none is
	// running.
	// Default: false
	AutoStart bool `yaml:"auto_start"`

	// ServerBinary is the build server host executable.
	// Default: dotcli-buildserver
	ServerBinary string `yaml:"server_binary"`

	// ConnectTimeout bounds connecting to and handshaking with a
	// server.
	// Default: 2s
	ConnectTimeout string `yaml:"connect_timeout"`

	// IdleTimeout is how long a server waits without requests before
	// exiting.
	// Default: 10m
	IdleTimeout string `yaml:"idle_timeout"`
}

// ProcessConfig configures child process handling.
type ProcessConfig struct {
	// GracePeriod is how long a cancelled child has to exit before it
	// is killed.
	// Default: 5s
	GracePeriod string `yaml:"grace_period"`
}

// LoggingConfig configures dotcli's logs.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`

	// File, if set, receives a copy of every log record. DOTCLI_LOG_FILE
	// overrides it.
	File string `yaml:"file"`

	// MaxSizeMB is the size at which the log file is rotated.
	// Default: 16
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	// Default: 3
	MaxBackups int `yaml:"max_backups"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		BuildEngine: BuildEngineConfig{
			Path:      "msbuild",
			Arguments: []string{"-nologo"},
		},
		PackageManager: PackageManagerConfig{
			Path: "nuget",
		},
		EntryPoints: EntryPointsConfig{
			Extensions: []string{".cs"},
		},
		Diagnostics: DiagnosticsConfig{
			Patterns: []string{"-bl", "/bl", "--bl", "-binarylogger", "/binarylogger", "--binarylogger"},
		},
		BuildServer: BuildServerConfig{
			Directory:      filepath.Join(os.TempDir(), "dotcli-build-server"),
			ServerBinary:   "dotcli-buildserver",
			ConnectTimeout: "2s",
			IdleTimeout:    "10m",
		},
		Process: ProcessConfig{
			GracePeriod: "5s",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  16,
			MaxBackups: 3,
		},
	}
}

// Load loads the file named by DOTCLI_CONFIG, or returns Default()
// when the variable is unset.
func Load() (*Config, error) {
	return Resolve("")
}

// Resolve loads the file at flagPath if non-empty, else the file named
// by DOTCLI_CONFIG, else returns Default(). An explicitly named file
// that cannot be read is an error.
func Resolve(flagPath string) (*Config, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(environ.ConfigVar)
	}
	if path == "" {
		config := Default()
		config.expandVariables()
		return config, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, layered over Default().
func LoadFile(path string) (*Config, error) {
	config := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	config.expandVariables()
	return config, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":   os.Getenv("HOME"),
		"TMPDIR": os.TempDir(),
	}
	c.BuildEngine.Path = expandVars(c.BuildEngine.Path, vars)
	c.PackageManager.Path = expandVars(c.PackageManager.Path, vars)
	c.BuildServer.Directory = expandVars(c.BuildServer.Directory, vars)
	c.BuildServer.ServerBinary = expandVars(c.BuildServer.ServerBinary, vars)
	c.Logging.File = expandVars(c.Logging.File, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. Provided
// vars are consulted before the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if c.BuildEngine.Path == "" {
		errs = multierror.Append(errs, fmt.Errorf("build_engine.path is required"))
	}
	if c.BuildServer.Directory == "" {
		errs = multierror.Append(errs, fmt.Errorf("build_server.directory is required"))
	}
	for _, extension := range c.EntryPoints.Extensions {
		if !strings.HasPrefix(extension, ".") || len(extension) < 2 {
			errs = multierror.Append(errs, fmt.Errorf("entry_points.extensions: %q must start with a dot", extension))
		}
	}
	for _, pattern := range c.Diagnostics.Patterns {
		if pattern == "" {
			errs = multierror.Append(errs, fmt.Errorf("diagnostics.patterns: empty pattern"))
		}
	}

	durations := []struct {
		field string
		value string
	}{
		{"build_server.connect_timeout", c.BuildServer.ConnectTimeout},
		{"build_server.idle_timeout", c.BuildServer.IdleTimeout},
		{"process.grace_period", c.Process.GracePeriod},
	}
	for _, duration := range durations {
		parsed, err := time.ParseDuration(duration.value)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", duration.field, err))
			continue
		}
		if parsed <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s must be positive", duration.field))
		}
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		errs = multierror.Append(errs, fmt.Errorf("logging.max_size_mb and logging.max_backups must not be negative"))
	}

	return errs.ErrorOrNil()
}

// BuildEnginePath returns the engine executable, honoring
// DOTCLI_BUILD_ENGINE_PATH in snapshot.
func (c *Config) BuildEnginePath(snapshot environ.Snapshot) string {
	if override := snapshot.Get(environ.BuildEnginePathVar); override != "" {
		return override
	}
	return c.BuildEngine.Path
}

// LogFile returns the log file path, honoring DOTCLI_LOG_FILE in
// snapshot.
func (c *Config) LogFile(snapshot environ.Snapshot) string {
	if override := snapshot.Get(environ.LogFileVar); override != "" {
		return override
	}
	return c.Logging.File
}

// ConnectTimeoutDuration returns build_server.connect_timeout, or 2s if it does
// not parse.
func (c *BuildServerConfig) ConnectTimeoutDuration() time.Duration {
	return parseDuration(c.ConnectTimeout, 2*time.Second)
}

// IdleTimeoutDuration returns build_server.idle_timeout, or 10m if it
// does not parse.
func (c *BuildServerConfig) IdleTimeoutDuration() time.Duration {
	return parseDuration(c.IdleTimeout, 10*time.Minute)
}

// GracePeriodDuration returns process.grace_period, or 5s if it does
// not parse.
func (c *ProcessConfig) GracePeriodDuration() time.Duration {
	return parseDuration(c.GracePeriod, 5*time.Second)
}

// SlogLevel parses logging.level.
func (c *LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
