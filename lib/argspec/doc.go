// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package argspec declares the shapes of options and positional
// arguments. The command tree uses these declarations to bind parsed
// values, and the argument router uses the same declarations to
// recognize which tokens belong to known options when it decides how to
// forward an invocation to an external process.
package argspec
