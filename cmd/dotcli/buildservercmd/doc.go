// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildservercmd implements "dotcli build-server": inspecting
// and shutting down the persistent build servers registered in the
// build server directory.
package buildservercmd
