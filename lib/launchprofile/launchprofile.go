// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launchprofile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/shlex"
	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/dotcli/lib/environ"
)

// ErrNotFound is returned by Select when no profile matches.
var ErrNotFound = errors.New("launch profile not found")

// projectCommand is the commandName of profiles that run the project
// itself (as opposed to profiles that launch an external executable).
const projectCommand = "Project"

// urlsVariable receives a profile's applicationUrl.
const urlsVariable = "ASPNETCORE_URLS"

// Profile is one entry of a launch settings file.
type Profile struct {
	Name                 string            `json:"-"`
	CommandName          string            `json:"commandName"`
	CommandLineArgs      string            `json:"commandLineArgs"`
	EnvironmentVariables map[string]string `json:"environmentVariables"`
	ApplicationURL       string            `json:"applicationUrl"`
	WorkingDirectory     string            `json:"workingDirectory"`
}

// Settings is a parsed launch settings file. Profiles keep the order
// in which they appear in the file.
type Settings struct {
	Path     string
	Profiles []*Profile
}

// Locate returns the launch settings path for target, which is either a
// project directory, a project file, or a file-based program. Project
// directories use Properties/launchSettings.json; a file-based program
// "app.cs" uses "app.run.json" beside it. Returns "" if the file does
// not exist.
func Locate(target string) string {
	info, err := os.Stat(target)
	if err != nil {
		return ""
	}

	var candidate string
	switch {
	case info.IsDir():
		candidate = filepath.Join(target, "Properties", "launchSettings.json")
	case isProjectFile(target):
		candidate = filepath.Join(filepath.Dir(target), "Properties", "launchSettings.json")
	default:
		candidate = strings.TrimSuffix(target, filepath.Ext(target)) + ".run.json"
	}

	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

func isProjectFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(filepath.Ext(path)), "proj")
}

// Load reads and parses a launch settings file. Comments and trailing
// commas are accepted.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading launch settings %s: %w", path, err)
	}
	settings, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing launch settings %s: %w", path, err)
	}
	settings.Path = path
	return settings, nil
}

// Parse parses launch settings content.
func Parse(data []byte) (*Settings, error) {
	var document struct {
		Profiles json.RawMessage `json:"profiles"`
	}
	standard := jsonc.ToJSON(data)
	if err := json.Unmarshal(standard, &document); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if len(document.Profiles) == 0 {
		return settings, nil
	}

	names, err := objectKeys(document.Profiles)
	if err != nil {
		return nil, fmt.Errorf("profiles: %w", err)
	}
	var byName map[string]*Profile
	if err := json.Unmarshal(document.Profiles, &byName); err != nil {
		return nil, fmt.Errorf("profiles: %w", err)
	}
	for _, name := range names {
		profile := byName[name]
		if profile == nil {
			continue
		}
		profile.Name = name
		settings.Profiles = append(settings.Profiles, profile)
	}
	return settings, nil
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(object json.RawMessage) ([]string, error) {
	decoder := json.NewDecoder(bytes.NewReader(object))
	token, err := decoder.Token()
	if err != nil {
		return nil, err
	}
	if delimiter, ok := token.(json.Delim); !ok || delimiter != '{' {
		return nil, fmt.Errorf("expected an object")
	}

	var keys []string
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		key, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key")
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := decoder.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// Select returns the named profile, or when name is empty the first
// profile that runs the project.
func (s *Settings) Select(name string) (*Profile, error) {
	for _, profile := range s.Profiles {
		if name == "" && profile.CommandName == projectCommand {
			return profile, nil
		}
		if name != "" && profile.Name == name {
			return profile, nil
		}
	}
	if name == "" {
		return nil, fmt.Errorf("no profile with commandName %q: %w", projectCommand, ErrNotFound)
	}
	return nil, fmt.Errorf("%q (available: %s): %w", name, strings.Join(s.names(), ", "), ErrNotFound)
}

func (s *Settings) names() []string {
	names := make([]string, 0, len(s.Profiles))
	for _, profile := range s.Profiles {
		names = append(names, profile.Name)
	}
	sort.Strings(names)
	return names
}

// Overlay returns the profile's environment variables, plus the
// application URL when the profile declares one.
func (p *Profile) Overlay() environ.Overlay {
	overlay := environ.Overlay{}
	if p.ApplicationURL != "" {
		overlay.Set(urlsVariable, p.ApplicationURL)
	}
	for key, value := range p.EnvironmentVariables {
		overlay.Set(key, value)
	}
	return overlay
}

// Arguments splits commandLineArgs with shell quoting rules.
func (p *Profile) Arguments() ([]string, error) {
	if strings.TrimSpace(p.CommandLineArgs) == "" {
		return nil, nil
	}
	arguments, err := shlex.Split(p.CommandLineArgs)
	if err != nil {
		return nil, fmt.Errorf("profile %q: commandLineArgs: %w", p.Name, err)
	}
	return arguments, nil
}
