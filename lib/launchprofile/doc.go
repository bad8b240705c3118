// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package launchprofile reads launch settings: named profiles that
// give "dotcli run" extra environment variables and application
// arguments. The files are JSON with comments, as editors write them.
package launchprofile
