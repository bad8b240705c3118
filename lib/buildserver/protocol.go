// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"fmt"

	"github.com/bureau-foundation/dotcli/lib/codec"
)

// ProtocolVersion is the wire protocol version. Client and server must
// agree exactly; a mismatch fails the handshake.
const ProtocolVersion = 1

// Actions understood by build servers.
const (
	ActionBuild    = "build"
	ActionShutdown = "shutdown"
	ActionPing     = "ping"
)

// Hello is the first value a client writes on a new connection.
type Hello struct {
	Protocol      int    `cbor:"protocol"`
	ClientVersion string `cbor:"client_version"`
	SessionID     string `cbor:"session_id"`

	// Compression lists the encodings the client can decode, in
	// preference order.
	Compression []string `cbor:"compression,omitempty"`

	Capabilities []string `cbor:"capabilities,omitempty"`
}

// Welcome is the server's reply to Hello.
type Welcome struct {
	OK            bool    `cbor:"ok"`
	Error         string  `cbor:"error,omitempty"`
	Protocol      int     `cbor:"protocol"`
	ServerVersion string  `cbor:"server_version"`
	Backend       Backend `cbor:"backend"`
	PID           int     `cbor:"pid"`

	// Compression is the encoding the server chose for this
	// connection.
	Compression string `cbor:"compression"`

	Capabilities []string `cbor:"capabilities,omitempty"`
}

// Request is one call on an established connection. ID correlates the
// response.
type Request struct {
	ID      string           `cbor:"id"`
	Action  string           `cbor:"action"`
	Payload codec.RawMessage `cbor:"payload,omitempty"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID    string           `cbor:"id"`
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// BuildRequest asks a server to run the build engine.
type BuildRequest struct {
	Path string   `cbor:"path"`
	Argv []string `cbor:"argv"`

	// Env is the complete environment for the engine as KEY=VALUE
	// entries. The server's own environment is not inherited.
	Env []string `cbor:"env,omitempty"`

	Dir string `cbor:"dir,omitempty"`
}

// BuildReply carries the engine's exit code and the output of each of
// its streams.
type BuildReply struct {
	ExitCode int          `cbor:"exit_code"`
	Stdout   StreamOutput `cbor:"stdout"`
	Stderr   StreamOutput `cbor:"stderr"`
}

// StreamOutput is one captured stream. Data is encoded with Encoding;
// Size is its decoded length.
type StreamOutput struct {
	Data     []byte `cbor:"data,omitempty"`
	Size     int    `cbor:"size"`
	Encoding string `cbor:"encoding"`
}

// IPCError reports a failure of the channel itself: connecting,
// handshaking, reading, or writing. Callers treat it as "no usable
// server" and fall back to launching the engine directly.
type IPCError struct {
	Channel string
	Op      string
	Err     error
}

func (e *IPCError) Error() string {
	return fmt.Sprintf("build server %s on %s: %v", e.Op, e.Channel, e.Err)
}

func (e *IPCError) Unwrap() error {
	return e.Err
}

// RemoteError is returned when the server answers a request with
// ok=false.
type RemoteError struct {
	Action  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("build server error on %q: %s", e.Action, e.Message)
}
