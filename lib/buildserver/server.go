// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/dotcli/lib/clock"
	"github.com/bureau-foundation/dotcli/lib/codec"
)

// Call is one request as seen by an ActionFunc.
type Call struct {
	Action  string
	Payload codec.RawMessage

	// SessionID and Encoding come from the connection's handshake.
	SessionID string
	Encoding  string
}

// ActionFunc handles one action. Return a value to include in the
// success response (nil for none) or an error for a failure response.
type ActionFunc func(ctx context.Context, call *Call) (any, error)

// ServerOptions configures a Server.
type ServerOptions struct {
	Channel string
	Backend Backend
	Version string

	// IdleTimeout stops the server after this long with no
	// connections and no requests. Zero disables it.
	IdleTimeout time.Duration

	// Compression lists the output encodings the server can produce.
	// Nil selects SupportedEncodings.
	Compression []string

	Capabilities []string

	Logger *slog.Logger
	Clock  clock.Clock
}

// Server serves the build server protocol on a Unix socket. Each
// connection starts with a Hello/Welcome handshake and then carries
// any number of requests, answered in order. The "shutdown" action is
// built in: the server replies, then stops.
type Server struct {
	options  ServerOptions
	handlers map[string]ActionFunc
	logger   *slog.Logger
	clock    clock.Clock

	ready    chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	// active counts open connections; the idle timer never stops a
	// server with a client attached.
	active    atomic.Int64
	idleMutex sync.Mutex
	idleTimer *clock.Timer

	activeConnections sync.WaitGroup
}

// NewServer creates a server. Register actions with Handle before
// calling Serve.
func NewServer(options ServerOptions) *Server {
	if options.Compression == nil {
		options.Compression = SupportedEncodings
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Server{
		options:  options,
		handlers: make(map[string]ActionFunc),
		logger:   logger.With("channel", options.Channel, "backend", options.Backend),
		clock:    clk,
		ready:    make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Handle registers a handler for action. Panics on a duplicate or on
// the reserved "shutdown" action.
func (s *Server) Handle(action string, handler ActionFunc) {
	if action == ActionShutdown {
		panic("buildserver.Server: the shutdown action is built in")
	}
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("buildserver.Server: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop asks Serve to return. It is safe to call more than once, and
// before Serve.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

// Serve listens on the channel and serves connections until ctx is
// cancelled, Stop is called, a client requests shutdown, or the idle
// timeout elapses. It then closes every connection, waits for their
// handlers, and removes the socket file.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.options.Channel); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.options.Channel, err)
	}

	listener, err := net.Listen("unix", s.options.Channel)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.options.Channel, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.options.Channel)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.stopped:
		}
		cancel()
		listener.Close()
	}()

	if s.options.IdleTimeout > 0 {
		s.idleMutex.Lock()
		s.idleTimer = s.clock.AfterFunc(s.options.IdleTimeout, s.idleExpired)
		s.idleMutex.Unlock()
		defer func() {
			s.idleMutex.Lock()
			s.idleTimer.Stop()
			s.idleMutex.Unlock()
		}()
	}

	s.logger.Info("build server listening", "idle_timeout", s.options.IdleTimeout)
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.active.Add(1)
		s.touch()
		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			defer func() {
				s.active.Add(-1)
				s.touch()
			}()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	s.logger.Info("build server stopped")
	return nil
}

func (s *Server) idleExpired() {
	if s.active.Load() > 0 {
		s.touch()
		return
	}
	s.logger.Info("build server idle timeout elapsed")
	s.Stop()
}

// touch restarts the idle timer.
func (s *Server) touch() {
	s.idleMutex.Lock()
	defer s.idleMutex.Unlock()
	if s.idleTimer != nil {
		s.idleTimer.Reset(s.options.IdleTimeout)
	}
}

// handshakeTimeout is how long a new connection has to send Hello.
const handshakeTimeout = 30 * time.Second

// errClientDisconnected is the cancellation cause of a request whose
// client went away before the handler finished.
var errClientDisconnected = errors.New("client disconnected")

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	// Unblock the reads when the server stops or the connection ends.
	connectionDone := make(chan struct{})
	var reading sync.WaitGroup
	defer func() {
		close(connectionDone)
		conn.Close()
		reading.Wait()
	}()
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-connectionDone:
		}
	}()

	decoder := codec.NewDecoder(conn)
	encoder := codec.NewEncoder(conn)

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var hello Hello
	if err := decoder.Decode(&hello); err != nil {
		if !errors.Is(err, io.EOF) {
			s.logger.Debug("reading hello failed", "error", err)
		}
		return
	}
	conn.SetReadDeadline(time.Time{})

	welcome := Welcome{
		Protocol:      ProtocolVersion,
		ServerVersion: s.options.Version,
		Backend:       s.options.Backend,
		PID:           os.Getpid(),
		Capabilities:  s.options.Capabilities,
	}
	if hello.Protocol != ProtocolVersion {
		welcome.Error = fmt.Sprintf("unsupported protocol version %d (server speaks %d)", hello.Protocol, ProtocolVersion)
		s.write(conn, encoder, welcome)
		return
	}
	welcome.OK = true
	welcome.Compression = NegotiateEncoding(hello.Compression, s.options.Compression)
	if !s.write(conn, encoder, welcome) {
		return
	}

	logger := s.logger.With("session", hello.SessionID)
	logger.Debug("client connected", "client_version", hello.ClientVersion, "compression", welcome.Compression)

	// The connection is read continuously, also while a handler runs,
	// so a client that disconnects mid-request cancels that request.
	requests := make(chan Request)
	disconnected := make(chan struct{})
	reading.Add(1)
	go func() {
		defer reading.Done()
		defer close(disconnected)
		for {
			var request Request
			if err := decoder.Decode(&request); err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					logger.Debug("reading request failed", "error", err)
				}
				return
			}
			select {
			case requests <- request:
			case <-connectionDone:
				return
			}
		}
	}()

	for {
		var request Request
		select {
		case request = <-requests:
		case <-disconnected:
			return
		}
		s.touch()

		if request.Action == ActionShutdown {
			logger.Info("shutdown requested")
			s.write(conn, encoder, Response{ID: request.ID, OK: true})
			s.Stop()
			return
		}

		response := s.dispatchRequest(ctx, logger, disconnected, &Call{
			Action:    request.Action,
			Payload:   request.Payload,
			SessionID: hello.SessionID,
			Encoding:  welcome.Compression,
		})
		response.ID = request.ID
		if !s.write(conn, encoder, response) {
			return
		}
		s.touch()
	}
}

// dispatchRequest runs one call with a context that is cancelled if
// the client disconnects before the handler returns.
func (s *Server) dispatchRequest(ctx context.Context, logger *slog.Logger, disconnected <-chan struct{}, call *Call) Response {
	requestCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	handled := make(chan struct{})
	defer close(handled)
	go func() {
		select {
		case <-disconnected:
			logger.Debug("client disconnected during request, cancelling", "action", call.Action)
			cancel(errClientDisconnected)
		case <-handled:
		}
	}()
	return s.dispatch(requestCtx, logger, call)
}

func (s *Server) dispatch(ctx context.Context, logger *slog.Logger, call *Call) Response {
	if call.Action == "" {
		return Response{Error: "missing required field: action"}
	}
	if call.Action == ActionPing {
		if _, registered := s.handlers[ActionPing]; !registered {
			return Response{OK: true}
		}
	}
	handler, exists := s.handlers[call.Action]
	if !exists {
		return Response{Error: fmt.Sprintf("unknown action %q", call.Action)}
	}

	result, err := handler(ctx, call)
	if err != nil {
		logger.Debug("action failed", "action", call.Action, "error", err)
		return Response{Error: err.Error()}
	}
	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			return Response{Error: fmt.Sprintf("internal: marshaling response: %v", err)}
		}
		response.Data = data
	}
	return response
}

// write sends one value, reporting whether the connection is still
// usable.
func (s *Server) write(conn net.Conn, encoder *codec.Encoder, value any) bool {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := encoder.Encode(value); err != nil {
		s.logger.Debug("failed to write to client", "error", err)
		return false
	}
	return true
}
