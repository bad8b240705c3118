// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package router decides how an invocation is forwarded to the build
// engine.
//
// Given the tokens that follow a forwarding command and the options
// that command declares, [Router.Route] partitions the tokens into
// diagnostic switches, recognized options with their values, unknown
// option tokens, and positionals. When exactly one positional remains
// and it names an existing source file with an accepted extension, the
// invocation is a [VirtualEntryPoint]: that file is the program and
// every other token is forwarded. Otherwise the invocation is a
// [PhysicalPassthrough] and every token is forwarded in its original
// order.
//
// Routing never fails. An ambiguous invocation degrades to passthrough
// and the build engine reports whatever it does not understand.
package router
