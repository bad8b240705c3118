// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildserver talks to long-lived build servers over Unix
// sockets.
//
// A server registers itself by writing a pid file into a shared
// directory (see [Registry]) and listens on a channel whose path is
// derived with [ChannelName]. Clients find servers through the
// registry, connect with a [Session], and exchange CBOR values: one
// [Hello]/[Welcome] handshake, then [Request]/[Response] pairs
// correlated by ID. A session carries one request at a time.
//
// [Client] is the build-side entry point. It prefers a running server
// and falls back to launching the build engine directly, so a missing
// or broken server never fails a build. [ShutdownBackends] implements
// "build-server shutdown": it is a no-op for servers that are not
// running.
//
// Build output travels compressed with zstd or lz4 when both sides
// support it; the encoding is negotiated in the handshake.
package buildserver
