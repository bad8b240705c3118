// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the dotcli build.
//
// Release builds inject [GitCommit], [GitDirty], [BuildTime], and
// [Version] with -ldflags -X. Development builds fall back to the VCS
// stamp the Go toolchain records in the binary, and otherwise report
// "unknown".
//
// The build server handshake exchanges [Short] so that clients only
// reuse servers from the same dotcli build.
package version
