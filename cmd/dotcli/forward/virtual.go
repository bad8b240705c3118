// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package forward

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// entryPointProperty carries the source file of a file-based program to
// the engine.
const entryPointProperty = "EntryPointFilePath"

const virtualProjectTemplate = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <OutputType>Exe</OutputType>
    <ImplicitUsings>enable</ImplicitUsings>
    <Nullable>enable</Nullable>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="%s" />
  </ItemGroup>
</Project>
`

// stageVirtualProject writes the project for the file-based program
// entryPoint into directory and returns the project path and the
// absolute entry point.
func stageVirtualProject(directory, entryPoint string) (projectPath, absolute string, err error) {
	absolute, err = filepath.Abs(entryPoint)
	if err != nil {
		return "", "", fmt.Errorf("resolving entry point %s: %w", entryPoint, err)
	}

	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(absolute)); err != nil {
		return "", "", fmt.Errorf("escaping entry point path: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(absolute), filepath.Ext(absolute))
	projectPath = filepath.Join(directory, name+".csproj")
	content := fmt.Sprintf(virtualProjectTemplate, escaped.String())
	if err := os.WriteFile(projectPath, []byte(content), 0o644); err != nil {
		return "", "", fmt.Errorf("writing virtual project: %w", err)
	}
	return projectPath, absolute, nil
}
