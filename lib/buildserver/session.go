// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/dotcli/lib/codec"
)

// State is a Session's lifecycle position.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	ShuttingDown
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ShuttingDown:
		return "shutting-down"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultConnectTimeout bounds dialing plus the handshake.
const DefaultConnectTimeout = 2 * time.Second

// writeTimeout bounds writing one request. Requests are small; a
// server that cannot absorb one in this time is wedged.
const writeTimeout = 10 * time.Second

var (
	// ErrSessionClosed is returned by operations on a closed Session.
	ErrSessionClosed = errors.New("session closed")

	// ErrNotConnected is returned by Call before a successful Connect,
	// or after the connection was lost.
	ErrNotConnected = errors.New("session not connected")
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// Channel is the socket path of the server.
	Channel string

	// ConnectTimeout bounds Connect. Zero selects
	// DefaultConnectTimeout.
	ConnectTimeout time.Duration

	ClientVersion string

	// Compression lists the output encodings this client accepts, in
	// preference order. Nil selects SupportedEncodings.
	Compression []string

	Capabilities []string

	Logger *slog.Logger
}

// Session is a client's connection to one build server. A Session
// carries at most one request at a time; concurrent Call invocations
// queue. Responses are matched to requests by ID, and a response that
// matches no outstanding request is discarded.
type Session struct {
	channel        string
	connectTimeout time.Duration
	hello          Hello
	logger         *slog.Logger

	// inflight admits one Call at a time.
	inflight chan struct{}

	// writeMutex serializes writes to conn.
	writeMutex sync.Mutex

	mu      sync.Mutex
	state   State
	conn    net.Conn
	encoder *codec.Encoder
	welcome Welcome
	pending map[string]chan callResult
}

type callResult struct {
	response *Response
	err      error
}

// NewSession creates a disconnected session.
func NewSession(options SessionOptions) *Session {
	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = DefaultConnectTimeout
	}
	if options.Compression == nil {
		options.Compression = SupportedEncodings
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	sessionID := uuid.NewString()
	return &Session{
		channel:        options.Channel,
		connectTimeout: options.ConnectTimeout,
		hello: Hello{
			Protocol:      ProtocolVersion,
			ClientVersion: options.ClientVersion,
			SessionID:     sessionID,
			Compression:   options.Compression,
			Capabilities:  options.Capabilities,
		},
		logger:   options.Logger.With("channel", options.Channel, "session", sessionID),
		inflight: make(chan struct{}, 1),
		state:    Disconnected,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Welcome returns the server's handshake reply. It is the zero value
// until Connect succeeds.
func (s *Session) Welcome() Welcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.welcome
}

// Connect dials the channel and performs the handshake. Connecting an
// already connected session is a no-op. Failures are *IPCError with Op
// "connect" (nothing is listening) or "handshake" (something answered
// but the handshake failed), and leave the session Disconnected.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case Connected, ShuttingDown:
		s.mu.Unlock()
		return nil
	case Connecting:
		s.mu.Unlock()
		return &IPCError{Channel: s.channel, Op: "connect", Err: errors.New("connect already in progress")}
	}
	s.state = Connecting
	s.mu.Unlock()

	conn, decoder, welcome, err := s.dial(ctx)
	if err != nil {
		s.mu.Lock()
		if s.state == Connecting {
			s.state = Disconnected
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.state != Connecting {
		// Closed while the handshake was in flight.
		s.mu.Unlock()
		conn.Close()
		return ErrSessionClosed
	}
	s.state = Connected
	s.conn = conn
	s.encoder = codec.NewEncoder(conn)
	s.welcome = welcome
	s.pending = make(map[string]chan callResult)
	s.mu.Unlock()

	s.logger.Debug("build server session connected",
		"backend", welcome.Backend,
		"server_pid", welcome.PID,
		"server_version", welcome.ServerVersion,
		"compression", welcome.Compression,
	)

	go s.readLoop(conn, decoder)
	return nil
}

// dial connects and exchanges Hello/Welcome. The returned decoder must
// be used for every later read on conn: it may have buffered bytes
// past the Welcome.
func (s *Session) dial(ctx context.Context) (net.Conn, *codec.Decoder, Welcome, error) {
	dialContext, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialContext, "unix", s.channel)
	if err != nil {
		return nil, nil, Welcome{}, &IPCError{Channel: s.channel, Op: "connect", Err: err}
	}

	handshakeFailed := func(err error) (net.Conn, *codec.Decoder, Welcome, error) {
		conn.Close()
		return nil, nil, Welcome{}, &IPCError{Channel: s.channel, Op: "handshake", Err: err}
	}

	deadline, _ := dialContext.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return handshakeFailed(fmt.Errorf("setting deadline: %w", err))
	}
	if err := codec.NewEncoder(conn).Encode(s.hello); err != nil {
		return handshakeFailed(fmt.Errorf("writing hello: %w", err))
	}
	decoder := codec.NewDecoder(conn)
	var welcome Welcome
	if err := decoder.Decode(&welcome); err != nil {
		return handshakeFailed(fmt.Errorf("reading welcome: %w", err))
	}
	if !welcome.OK {
		return handshakeFailed(fmt.Errorf("rejected: %s", welcome.Error))
	}
	if welcome.Protocol != ProtocolVersion {
		return handshakeFailed(fmt.Errorf("protocol version %d, expected %d", welcome.Protocol, ProtocolVersion))
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return handshakeFailed(fmt.Errorf("clearing deadline: %w", err))
	}
	return conn, decoder, welcome, nil
}

// Call sends one request and waits for its response, decoding the
// response data into result (which may be nil). The server's refusal
// is a *RemoteError; a channel failure is an *IPCError and leaves the
// session Disconnected.
func (s *Session) Call(ctx context.Context, action string, payload any, result any) error {
	select {
	case s.inflight <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.inflight }()

	request := Request{ID: uuid.NewString(), Action: action}
	if payload != nil {
		data, err := codec.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", action, err)
		}
		request.Payload = data
	}

	s.mu.Lock()
	switch s.state {
	case Connected, ShuttingDown:
	case Closed:
		s.mu.Unlock()
		return ErrSessionClosed
	default:
		s.mu.Unlock()
		return &IPCError{Channel: s.channel, Op: action, Err: ErrNotConnected}
	}
	conn := s.conn
	encoder := s.encoder
	replies := make(chan callResult, 1)
	s.pending[request.ID] = replies
	s.mu.Unlock()

	s.writeMutex.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := encoder.Encode(request)
	s.writeMutex.Unlock()
	if err != nil {
		s.fail(conn, err)
		return &IPCError{Channel: s.channel, Op: action, Err: fmt.Errorf("writing request: %w", err)}
	}

	select {
	case reply := <-replies:
		if reply.err != nil {
			return &IPCError{Channel: s.channel, Op: action, Err: reply.err}
		}
		if !reply.response.OK {
			return &RemoteError{Action: action, Message: reply.response.Error}
		}
		if result != nil && len(reply.response.Data) > 0 {
			if err := codec.Unmarshal(reply.response.Data, result); err != nil {
				return fmt.Errorf("decoding %s response: %w", action, err)
			}
		}
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, request.ID)
		s.mu.Unlock()
		return ctx.Err()
	}
}

// readLoop delivers responses to their callers until the connection
// fails or is closed.
func (s *Session) readLoop(conn net.Conn, decoder *codec.Decoder) {
	for {
		var response Response
		if err := decoder.Decode(&response); err != nil {
			s.fail(conn, err)
			return
		}
		s.mu.Lock()
		replies, ok := s.pending[response.ID]
		delete(s.pending, response.ID)
		s.mu.Unlock()
		if !ok {
			s.logger.Warn("discarding unmatched build server response", "id", response.ID)
			continue
		}
		replies <- callResult{response: &response}
	}
}

// fail tears down conn after a read or write error and fails every
// outstanding call. It does nothing if conn is no longer current.
func (s *Session) fail(conn net.Conn, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return
	}
	conn.Close()
	s.conn = nil
	s.encoder = nil
	if s.state == Connected {
		s.state = Disconnected
		s.logger.Debug("build server session lost", "error", cause)
	}
	for id, replies := range s.pending {
		replies <- callResult{err: cause}
		delete(s.pending, id)
	}
}

// Shutdown asks the server to exit and closes the session. If no
// server is listening on the channel, Shutdown succeeds without doing
// anything. A server that closes the connection instead of replying
// has also shut down.
func (s *Session) Shutdown(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		var ipcError *IPCError
		if errors.As(err, &ipcError) && ipcError.Op == "connect" {
			s.logger.Debug("no build server listening", "error", err)
			s.Close()
			return nil
		}
		s.Close()
		return err
	}

	s.mu.Lock()
	if s.state == Connected {
		s.state = ShuttingDown
	}
	s.mu.Unlock()

	err := s.Call(ctx, ActionShutdown, nil, nil)
	s.Close()

	var ipcError *IPCError
	if errors.As(err, &ipcError) {
		s.logger.Debug("build server closed the channel during shutdown", "error", err)
		return nil
	}
	return err
}

// Close closes the connection and fails outstanding calls with
// ErrSessionClosed. A closed session cannot be reconnected.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return nil
	}
	s.state = Closed
	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
		s.encoder = nil
	}
	for id, replies := range s.pending {
		replies <- callResult{err: ErrSessionClosed}
		delete(s.pending, id)
	}
	return err
}
