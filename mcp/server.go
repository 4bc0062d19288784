// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/modelcontextprotocol/go-mcp-core/internal/jsonrpc2"
)

// ProtocolVersion is the MCP protocol version this implementation speaks.
const ProtocolVersion = "2025-06-18"

// ServerOptions configures a [Server].
type ServerOptions struct {
	// Instructions are returned to the client in InitializeResult, as a
	// hint for how to use the server.
	Instructions string
	// Capabilities are advertised to the client during the handshake. If
	// nil, a minimal set (logging only) is advertised.
	Capabilities *ServerCapabilities
	// Logger receives session diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// SessionStore, if non-nil, persists session state so that a restart
	// does not lose in-flight InitializeParams/log-level state for
	// sessions whose transport supports resumption (Streamable-HTTP).
	SessionStore SessionStore
	// Observer, if non-nil, is notified of every request's latency and
	// outcome, in both directions (component J: diagnostics).
	Observer jsonrpc2.Observer
}

// A Server accepts connections from MCP clients. A single Server may be
// connected to many clients concurrently, each producing its own
// [ServerSession].
type Server struct {
	impl *Implementation
	opts ServerOptions

	mu       sync.Mutex
	sessions map[*ServerSession]struct{}
}

// NewServer returns a Server identifying itself with impl. A nil opts is
// equivalent to the zero ServerOptions.
func NewServer(impl *Implementation, opts *ServerOptions) *Server {
	s := &Server{impl: impl, sessions: make(map[*ServerSession]struct{})}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.Logger == nil {
		s.opts.Logger = slog.Default()
	}
	if s.opts.Capabilities == nil {
		s.opts.Capabilities = &ServerCapabilities{Logging: &LoggingCapabilities{}}
	}
	return s
}

// Connect accepts one logical connection over t, performs no handshake
// itself (the client drives handshake by sending "initialize"), and
// returns the resulting session. The session is removed from the
// server's bookkeeping when it is closed.
func (s *Server) Connect(ctx context.Context, t Transport) (*ServerSession, error) {
	conn, err := t.Connect(ctx)
	if err != nil {
		return nil, err
	}
	ss := &ServerSession{
		server:   s,
		mcpConn:  conn,
		log:      s.opts.Logger,
		closed:   make(chan struct{}),
		progress: newProgressTracker(),
		logLevel: LevelInfo,
	}
	ss.lifecycle.advance(stateConnecting)
	ss.conn = jsonrpc2.Bind(ctx, conn, jsonrpc2.Options{
		Log:           s.opts.Logger,
		Observer:      s.opts.Observer,
		CancelMethod:  notificationCancelled,
		CancelAliases: []string{notificationCancelledAlias},
	})
	ss.registerHandlers()

	s.mu.Lock()
	s.sessions[ss] = struct{}{}
	s.mu.Unlock()

	return ss, nil
}

func (s *Server) removeSession(ss *ServerSession) {
	s.mu.Lock()
	delete(s.sessions, ss)
	s.mu.Unlock()
}

// Sessions returns a snapshot of currently connected sessions.
func (s *Server) Sessions() []*ServerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ServerSession, 0, len(s.sessions))
	for ss := range s.sessions {
		out = append(out, ss)
	}
	return out
}

// Shutdown closes every currently connected session concurrently and
// returns the first error encountered, if any. Unlike a single session's
// Close (which joins its own handler tasks before returning),
// Shutdown's fan-out across sessions is what actually needs a
// goroutine-lifecycle join, so it is built on [errgroup.Group] rather
// than a session-local sync.WaitGroup.
func (s *Server) Shutdown(ctx context.Context) error {
	sessions := s.Sessions()
	g, _ := errgroup.WithContext(ctx)
	for _, ss := range sessions {
		ss := ss
		g.Go(func() error {
			return ss.Close()
		})
	}
	return g.Wait()
}

// A ServerSession is one client's live connection to a [Server]. It
// implements the handshake, progress, cancellation, and logging-level
// gate described by the core spec's session engine, layered over an
// [internal/jsonrpc2.Conn].
type ServerSession struct {
	server  *Server
	conn    *jsonrpc2.Conn
	mcpConn Connection
	log     *slog.Logger

	lifecycle lifecycle
	progress  *progressTracker

	mu         sync.Mutex
	initParams *InitializeParams
	logLevel   LoggingLevel

	closeOnce sync.Once
	closed    chan struct{}
}

func (ss *ServerSession) registerHandlers() {
	bindServerRequest(ss, methodInitialize, ss.handleInitialize)
	bindServerRequest(ss, methodPing, ss.handlePing)
	bindServerRequest(ss, methodSetLevel, ss.handleSetLevel)
	bindServerNotification(ss, notificationInitialized, ss.handleInitialized)
	bindServerNotification(ss, notificationProgress, ss.handleProgress)
}

func (ss *ServerSession) handleInitialize(ctx context.Context, r *InitializeRequest) (*InitializeResult, error) {
	ss.mu.Lock()
	ss.initParams = r.Params
	ss.mu.Unlock()
	ss.lifecycle.advance(stateHandshakePending)

	version := r.Params.ProtocolVersion
	if version == "" {
		version = ProtocolVersion
	}
	return &InitializeResult{
		Capabilities:    ss.server.opts.Capabilities.clone(),
		Instructions:    ss.server.opts.Instructions,
		ProtocolVersion: version,
		ServerInfo:      ss.server.impl,
	}, nil
}

func (ss *ServerSession) handleInitialized(ctx context.Context, r *InitializedRequest) {
	ss.lifecycle.advance(stateReady)
	if store := ss.server.opts.SessionStore; store != nil {
		ss.mu.Lock()
		state := &SessionState{InitializeParams: ss.initParams, LogLevel: ss.logLevel}
		ss.mu.Unlock()
		if err := store.Store(ctx, ss.mcpConn.SessionID(), state); err != nil {
			ss.log.Warn("mcp: failed to persist session state", "error", err)
		}
	}
}

func (ss *ServerSession) handlePing(ctx context.Context, r *PingRequest) (*PingResult, error) {
	if err := ss.lifecycle.requireReady(); err != nil {
		return nil, err
	}
	return &PingResult{}, nil
}

func (ss *ServerSession) handleSetLevel(ctx context.Context, r *SetLoggingLevelRequest) (*SetLoggingLevelResult, error) {
	if err := ss.lifecycle.requireReady(); err != nil {
		return nil, err
	}
	ss.mu.Lock()
	ss.logLevel = r.Params.Level
	ss.mu.Unlock()
	return &SetLoggingLevelResult{}, nil
}

// restoreState reconstructs a session's handshake-derived state from a
// persisted [SessionState], for [StreamableHTTPHandler]'s resumption
// path: the peer already completed initialize/initialized against a
// prior process, so this session is admitted directly into stateReady
// rather than replaying the handshake.
func (ss *ServerSession) restoreState(state *SessionState) {
	ss.mu.Lock()
	ss.initParams = state.InitializeParams
	ss.logLevel = state.LogLevel
	ss.mu.Unlock()
	ss.lifecycle.advance(stateHandshakePending)
	ss.lifecycle.advance(stateReady)
}

func (ss *ServerSession) handleProgress(ctx context.Context, r *ProgressNotificationServerRequest) {
	ss.progress.dispatch(r.Params)
}

// NotifyProgress sends a progress update to the client for a request the
// client issued and this session is still handling; params.ProgressToken
// is the token the client put in that request's _meta (see
// [ServerRequest.Progress]).
func (ss *ServerSession) NotifyProgress(ctx context.Context, params *ProgressNotificationParams) error {
	return ss.conn.Notify(ctx, notificationProgress, params)
}

// Log sends a log record to the client, if the client's configured
// minimum level (via "logging/setLevel") is at or below level.
func (ss *ServerSession) Log(ctx context.Context, level LoggingLevel, logger string, data any) error {
	ss.mu.Lock()
	min := ss.logLevel
	ss.mu.Unlock()
	if !level.atLeast(min) {
		return nil
	}
	return ss.conn.Notify(ctx, notificationLoggingMessage, &LoggingMessageParams{
		Data: data, Level: level, Logger: logger,
	})
}

// InitializeParams returns the parameters the client sent to initialize
// this session, or nil if no initialize request has been handled yet. It
// is set as soon as initialize is handled, before the client's
// initialized notification completes the handshake.
func (ss *ServerSession) InitializeParams() *InitializeParams {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.initParams
}

// ID returns the transport-level session identifier, or "" for
// transports (such as the in-memory transport) that don't have one.
func (ss *ServerSession) ID() string { return ss.mcpConn.SessionID() }

// Wait blocks until the session is closed.
func (ss *ServerSession) Wait() { <-ss.closed }

// Close tears down the session: see the core spec's disposal semantics
// (component I) as implemented by [internal/jsonrpc2.Conn.Close], which
// fails every outstanding call with a transport-closed error and joins
// every in-flight handler task before returning.
func (ss *ServerSession) Close() error {
	var err error
	ss.closeOnce.Do(func() {
		if !ss.lifecycle.beginDispose() {
			return
		}
		err = ss.conn.Close()
		ss.server.removeSession(ss)
		ss.lifecycle.finishDispose()
		close(ss.closed)
	})
	return err
}
