// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/modelcontextprotocol/go-mcp-core/internal/json"
	"github.com/modelcontextprotocol/go-mcp-core/internal/jsonrpc2"
)

// ClientOptions configures a [Client].
type ClientOptions struct {
	// Capabilities are advertised to the server during the handshake.
	Capabilities *ClientCapabilities
	// Logger receives session diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// Observer, if non-nil, is notified of every request's latency and
	// outcome, in both directions.
	Observer jsonrpc2.Observer
	// LoggingMessageHandler, if non-nil, is invoked for every
	// notifications/message the server sends.
	LoggingMessageHandler func(context.Context, *LoggingMessageParams)
}

// A Client initiates connections to MCP servers.
type Client struct {
	impl *Implementation
	opts ClientOptions
}

// NewClient returns a Client identifying itself with impl.
func NewClient(impl *Implementation, opts *ClientOptions) *Client {
	c := &Client{impl: impl}
	if opts != nil {
		c.opts = *opts
	}
	if c.opts.Logger == nil {
		c.opts.Logger = slog.Default()
	}
	if c.opts.Capabilities == nil {
		c.opts.Capabilities = &ClientCapabilities{}
	}
	return c
}

// Connect establishes a connection over t and drives the two-step
// handshake to completion: it sends "initialize", waits for the server's
// result, then sends "notifications/initialized". The returned session is
// only valid once Connect returns without error.
func (c *Client) Connect(ctx context.Context, t Transport) (*ClientSession, error) {
	conn, err := t.Connect(ctx)
	if err != nil {
		return nil, err
	}
	cs := &ClientSession{
		client:   c,
		mcpConn:  conn,
		log:      c.opts.Logger,
		closed:   make(chan struct{}),
		progress: newProgressTracker(),
	}
	cs.lifecycle.advance(stateConnecting)
	cs.conn = jsonrpc2.Bind(ctx, conn, jsonrpc2.Options{
		Log:           c.opts.Logger,
		Observer:      c.opts.Observer,
		CancelMethod:  notificationCancelled,
		CancelAliases: []string{notificationCancelledAlias},
	})
	cs.registerHandlers()

	cs.lifecycle.advance(stateHandshakePending)
	result, err := cs.initialize(ctx)
	if err != nil {
		cs.conn.Close()
		return nil, fmt.Errorf("mcp: initialize: %w", err)
	}
	cs.mu.Lock()
	cs.initResult = result
	cs.mu.Unlock()

	if err := cs.conn.Notify(ctx, notificationInitialized, &InitializedParams{}); err != nil {
		cs.conn.Close()
		return nil, fmt.Errorf("mcp: initialized notification: %w", err)
	}
	cs.lifecycle.advance(stateReady)

	return cs, nil
}

func (cs *ClientSession) initialize(ctx context.Context) (*InitializeResult, error) {
	params := &InitializeParams{
		Capabilities:    cs.client.opts.Capabilities.clone(),
		ClientInfo:      cs.client.impl,
		ProtocolVersion: ProtocolVersion,
	}
	ctx, span := startSpan(ctx, methodInitialize, trace.SpanKindClient)
	defer span.End()
	injectTraceContext(ctx, params)

	raw, err := cs.conn.Call(ctx, methodInitialize, params)
	if err != nil {
		return nil, err
	}
	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode initialize result: %w", err)
	}
	return &result, nil
}

// A ClientSession is one live connection from a [Client] to an MCP
// server.
type ClientSession struct {
	client  *Client
	conn    *jsonrpc2.Conn
	mcpConn Connection
	log     *slog.Logger

	lifecycle lifecycle
	progress  *progressTracker

	mu         sync.Mutex
	initResult *InitializeResult

	closeOnce sync.Once
	closed    chan struct{}
}

func (cs *ClientSession) registerHandlers() {
	bindClientRequest(cs, methodPing, cs.handlePing)
	bindClientNotification(cs, notificationLoggingMessage, cs.handleLoggingMessage)
	bindClientNotification(cs, notificationProgress, cs.handleProgress)
}

func (cs *ClientSession) handlePing(ctx context.Context, r *ClientPingRequest) (*PingResult, error) {
	if err := cs.lifecycle.requireReady(); err != nil {
		return nil, err
	}
	return &PingResult{}, nil
}

func (cs *ClientSession) handleLoggingMessage(ctx context.Context, r *LoggingMessageRequest) {
	if cs.client.opts.LoggingMessageHandler == nil {
		return
	}
	cs.client.opts.LoggingMessageHandler(ctx, r.Params)
}

func (cs *ClientSession) handleProgress(ctx context.Context, r *ProgressNotificationClientRequest) {
	cs.progress.dispatch(r.Params)
}

// InitializeResult returns the server's handshake response.
func (cs *ClientSession) InitializeResult() *InitializeResult {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.initResult
}

// Ping sends a liveness check to the server.
func (cs *ClientSession) Ping(ctx context.Context) error {
	params := &PingParams{}
	ctx, span := startSpan(ctx, methodPing, trace.SpanKindClient)
	defer span.End()
	injectTraceContext(ctx, params)
	_, err := cs.conn.Call(ctx, methodPing, params)
	return err
}

// SetLoggingLevel asks the server to forward only log messages at or
// above level.
func (cs *ClientSession) SetLoggingLevel(ctx context.Context, level LoggingLevel) error {
	params := &SetLoggingLevelParams{Level: level}
	ctx, span := startSpan(ctx, methodSetLevel, trace.SpanKindClient)
	defer span.End()
	injectTraceContext(ctx, params)
	_, err := cs.conn.Call(ctx, methodSetLevel, params)
	return err
}

// CallWithProgress issues a request carrying a fresh progress token, and
// invokes onProgress for every progress notification the peer sends
// correlated with that token, until the call completes.
func (cs *ClientSession) CallWithProgress(ctx context.Context, method string, params ProgressParams, onProgress func(*ProgressNotificationParams)) (json.RawMessage, error) {
	token := randText()
	params.SetProgressToken(token)
	if onProgress != nil {
		unregister := cs.progress.register(token, onProgress)
		defer unregister()
	}
	ctx, span := startSpan(ctx, method, trace.SpanKindClient)
	defer span.End()
	if ms, ok := params.(metaSetter); ok {
		injectTraceContext(ctx, ms)
	}
	return cs.conn.Call(ctx, method, params)
}

// ID returns the transport-level session identifier.
func (cs *ClientSession) ID() string { return cs.mcpConn.SessionID() }

// Wait blocks until the session is closed.
func (cs *ClientSession) Wait() { <-cs.closed }

// Close tears down the session; see [ServerSession.Close].
func (cs *ClientSession) Close() error {
	var err error
	cs.closeOnce.Do(func() {
		if !cs.lifecycle.beginDispose() {
			return
		}
		err = cs.conn.Close()
		cs.lifecycle.finishDispose()
		close(cs.closed)
	})
	return err
}
