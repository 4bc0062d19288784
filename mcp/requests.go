// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file holds the generic request wrapper types, the type aliases for
// each in-scope method, and the binding helpers that adapt a typed handler
// to the raw [internal/jsonrpc2.Conn] dispatch contract (component H:
// handler registry).

package mcp

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/modelcontextprotocol/go-mcp-core/internal/json"
	"github.com/modelcontextprotocol/go-mcp-core/internal/jsonrpc2"
	"github.com/modelcontextprotocol/go-mcp-core/jsonrpc"
)

// A ServerRequest is an incoming request or notification dispatched to a
// handler registered on a [ServerSession]: the parameters P plus a back
// reference to the session, so the handler can call Progress, look up
// session state, or issue its own requests back to the client.
type ServerRequest[P Params] struct {
	Session *ServerSession
	Params  P
}

// A ClientRequest is the symmetric wrapper for requests and notifications
// dispatched to a handler registered on a [ClientSession].
type ClientRequest[P Params] struct {
	Session *ClientSession
	Params  P
}

type (
	// InitializeRequest is the client's handshake request, handled on the
	// server.
	InitializeRequest = ServerRequest[*InitializeParams]
	// InitializedRequest is the client's handshake-complete notification.
	InitializedRequest = ServerRequest[*InitializedParams]
	// PingRequest is a liveness check; either peer may send it.
	PingRequest = ServerRequest[*PingParams]
	// SetLoggingLevelRequest adjusts the minimum level of log messages
	// forwarded to the client.
	SetLoggingLevelRequest = ServerRequest[*SetLoggingLevelParams]
	// ProgressNotificationServerRequest is a progress update the client
	// sent the server for a request the client is processing on the
	// server's behalf.
	ProgressNotificationServerRequest = ServerRequest[*ProgressNotificationParams]
)

type (
	// ClientPingRequest is a liveness check sent by the server.
	ClientPingRequest = ClientRequest[*PingParams]
	// LoggingMessageRequest delivers a server log record to the client.
	LoggingMessageRequest = ClientRequest[*LoggingMessageParams]
	// ProgressNotificationClientRequest is a progress update the server
	// sent the client for a request the server is processing on the
	// client's behalf.
	ProgressNotificationClientRequest = ClientRequest[*ProgressNotificationParams]
)

// paramsPtr constrains a generic binding's pointer-to-params type T,
// letting [bindServerRequest] allocate a fresh *T with "new(T)" while still
// requiring it to satisfy [Params]. This is the standard pattern for
// generic code that must both allocate T and call methods declared on *T.
//
// Note: cancellation notifications ("notifications/cancelled") never
// reach this layer. [internal/jsonrpc2.Conn] intercepts them before
// dispatch to trip the matching handler's cancellation source, per the
// core spec's component D dispatch loop step 2 — there is deliberately no
// CancelledServerRequest/CancelledClientRequest alias here.
type paramsPtr[T any] interface {
	*T
	Params
}

// bindServerRequest registers a typed request handler for method on ss,
// decoding params with the session's strict envelope rules, propagating
// trace context, and starting a server-kind span named for method.
func bindServerRequest[T any, PT paramsPtr[T], R Result](ss *ServerSession, method string, h func(context.Context, *ServerRequest[PT]) (R, error)) {
	ss.conn.RegisterRequestHandler(method, func(ctx context.Context, req *jsonrpc.Request) (any, error) {
		p := PT(new(T))
		if len(req.Params) > 0 {
			if err := jsonrpc2.StrictUnmarshal(req.Params, p); err != nil {
				return nil, &jsonrpc2.RemoteError{Code: jsonrpc.CodeInvalidParams, Message: "invalid params: " + err.Error()}
			}
		}
		ctx = extractTraceContext(ctx, p)
		ctx, span := startSpan(ctx, method, trace.SpanKindServer)
		defer span.End()
		return h(ctx, &ServerRequest[PT]{Session: ss, Params: p})
	})
}

// bindServerNotification registers a typed notification handler for
// method on ss. Unlike bindServerRequest, decode failures are logged and
// dropped rather than replied to, since notifications have no reply.
func bindServerNotification[T any, PT paramsPtr[T]](ss *ServerSession, method string, h func(context.Context, *ServerRequest[PT])) (unregister func()) {
	return ss.conn.RegisterNotificationHandler(method, func(ctx context.Context, n *jsonrpc.Notification) {
		p := PT(new(T))
		if len(n.Params) > 0 {
			if err := json.Unmarshal(n.Params, p); err != nil {
				ss.log.Warn("mcp: malformed notification params", "method", method, "error", err)
				return
			}
		}
		h(ctx, &ServerRequest[PT]{Session: ss, Params: p})
	})
}

// bindClientRequest is the symmetric helper for request handlers
// registered on a [ClientSession] (server-to-client requests such as
// "ping").
func bindClientRequest[T any, PT paramsPtr[T], R Result](cs *ClientSession, method string, h func(context.Context, *ClientRequest[PT]) (R, error)) {
	cs.conn.RegisterRequestHandler(method, func(ctx context.Context, req *jsonrpc.Request) (any, error) {
		p := PT(new(T))
		if len(req.Params) > 0 {
			if err := jsonrpc2.StrictUnmarshal(req.Params, p); err != nil {
				return nil, &jsonrpc2.RemoteError{Code: jsonrpc.CodeInvalidParams, Message: "invalid params: " + err.Error()}
			}
		}
		ctx = extractTraceContext(ctx, p)
		ctx, span := startSpan(ctx, method, trace.SpanKindServer)
		defer span.End()
		return h(ctx, &ClientRequest[PT]{Session: cs, Params: p})
	})
}

// bindClientNotification is the symmetric helper for notification
// handlers registered on a [ClientSession].
func bindClientNotification[T any, PT paramsPtr[T]](cs *ClientSession, method string, h func(context.Context, *ClientRequest[PT])) (unregister func()) {
	return cs.conn.RegisterNotificationHandler(method, func(ctx context.Context, n *jsonrpc.Notification) {
		p := PT(new(T))
		if len(n.Params) > 0 {
			if err := json.Unmarshal(n.Params, p); err != nil {
				cs.log.Warn("mcp: malformed notification params", "method", method, "error", err)
				return
			}
		}
		h(ctx, &ClientRequest[PT]{Session: cs, Params: p})
	})
}

// CallTyped issues method on cs with the given params and decodes the
// reply using newResult, injecting trace context the same way
// [ClientSession.Ping] and [ClientSession.CallWithProgress] do. It is the
// generic counterpart of those hand-written methods, for any method whose
// Params/Result pair is defined in this package.
func CallTyped[R Result](ctx context.Context, cs *ClientSession, method string, params Params, newResult func() R) (R, error) {
	var zero R
	ctx, span := startSpan(ctx, method, trace.SpanKindClient)
	defer span.End()
	if ms, ok := params.(metaSetter); ok {
		injectTraceContext(ctx, ms)
	}
	raw, err := cs.conn.Call(ctx, method, params)
	if err != nil {
		return zero, err
	}
	result := newResult()
	if err := json.Unmarshal(raw, result); err != nil {
		return zero, err
	}
	return result, nil
}
