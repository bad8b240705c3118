// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds dotcli's CBOR configuration.
//
// CBOR is used wherever dotcli talks to itself: the build server
// protocol and the pid files servers leave in their registry
// directory. JSON appears only at the edges, in files other tools
// write (launch settings) and in --json output.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same value always produces the same bytes.
//
//	data, err := codec.Marshal(registration)
//	err = codec.Unmarshal(data, &registration)
//
// Connections carry a stream of self-delimiting values, so no framing
// is needed:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// A decoder may read ahead; keep one decoder per connection for its
// whole life.
//
// Types serialized only as CBOR carry `cbor` struct tags. Types that
// are also written as JSON carry only `json` tags, which the CBOR
// library falls back to.
package codec
