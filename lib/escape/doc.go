// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package escape converts argument vectors into single command-line
// strings and back.
//
// [Escape] produces the string handed to process creation on platforms
// where the child re-parses its own command line (Windows). The rules
// are those of CommandLineToArgv: arguments without whitespace or
// quotes pass through unchanged, everything else is quoted with
// backslashes doubled only where they precede a quote, so splitting
// the result with those rules recovers the vector exactly.
//
// [Display] formats a vector for humans using POSIX shell quoting.
package escape
