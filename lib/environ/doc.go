// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package environ captures the process environment once per invocation
// and merges per-child overlays on top of it. Overlay entries always
// win over the captured base. The well-known variable names that
// dotcli reads or sets for its children are declared here.
package environ
