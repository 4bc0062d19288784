// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc2 implements the duplex JSON-RPC 2.0 session engine: a
// single dispatch loop that correlates outgoing requests with their
// replies, dispatches incoming requests to registered handlers, and
// propagates cancellation in both directions. It has no knowledge of MCP;
// the mcp package layers handshake, capability negotiation, and progress
// semantics on top of the primitives here.
package jsonrpc2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-mcp-core/internal/json"
	"github.com/modelcontextprotocol/go-mcp-core/jsonrpc"
)

// A Transport is the minimal duplex byte-to-message channel a Conn drives.
// Implementations must serialize their own concurrent writes.
type Transport interface {
	Read(ctx context.Context) (jsonrpc.Message, error)
	Write(ctx context.Context, msg jsonrpc.Message) error
	Close() error
}

// A Handler answers one incoming [jsonrpc.Request]. It runs in its own
// goroutine; ctx is cancelled if the peer sends a matching cancellation
// notification or the Conn is closed. Returning a *RemoteError preserves
// its Code/Data on the wire; any other non-nil error becomes
// [jsonrpc.CodeInternalError].
type Handler func(ctx context.Context, req *jsonrpc.Request) (result any, err error)

// A NotificationHandler observes one incoming [jsonrpc.Notification].
// Handlers for the same method are invoked in registration order; a
// handler must not block the dispatch loop; panics are recovered and
// logged, never propagated.
type NotificationHandler func(ctx context.Context, n *jsonrpc.Notification)

// A RemoteError is a Handler error that should be reported to the peer
// with an explicit JSON-RPC code and optional data, instead of being
// collapsed to [jsonrpc.CodeInternalError]. Its Message is deliberately
// sent to the peer: callers must not embed secrets or stack traces in it.
type RemoteError struct {
	Code    int32
	Message string
	Data    json.RawMessage
}

func (e *RemoteError) Error() string { return fmt.Sprintf("jsonrpc2: %d: %s", e.Code, e.Message) }

// Observer receives timing and outcome information for every Call and
// every dispatched Handler invocation, so that a caller can record
// histograms or spans without the engine depending on any particular
// metrics or tracing library (see [Options.Observer]).
type Observer interface {
	ObserveRequest(method string, direction Direction, duration time.Duration, err error)
}

// Direction distinguishes outgoing Calls from incoming Handler dispatches
// for an [Observer].
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

// Sentinel errors returned by [Conn.Call] and surfaced to registered
// handlers via ctx.Err paths.
var (
	// ErrTransportClosed is returned by every outstanding Call, and by any
	// new Call attempted after the transport has failed or Close has run.
	ErrTransportClosed = errors.New("jsonrpc2: transport closed")
	// ErrCancelled is returned by Call when its context is cancelled
	// before a reply arrives.
	ErrCancelled = errors.New("jsonrpc2: cancelled")
)

// A ProtocolError is returned by [Conn.Call] when the peer replies with a
// JSON-RPC Error message.
type ProtocolError struct {
	Code    int32
	Message string
	Data    json.RawMessage
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("jsonrpc2: peer error %d: %s", e.Code, e.Message)
}

// Options configures a [Bind].
type Options struct {
	// Log receives dispatch-loop diagnostics (unknown IDs, duplicate
	// responses, handler panics). If nil, slog.Default() is used.
	Log *slog.Logger

	// Observer, if non-nil, is notified of every Call and Handler
	// invocation's outcome and latency.
	Observer Observer

	// CancelMethod is the notification method this Conn sends for local
	// cancellation and intercepts (instead of dispatching to
	// notification handlers) to trip an in-flight incoming handler's
	// context. Defaults to "notifications/cancelled".
	CancelMethod string

	// CancelAliases are additional notification methods accepted on
	// ingress as equivalent to CancelMethod, for compatibility with peers
	// using an older name (e.g. "$/cancelled"). They are never sent.
	CancelAliases []string
}

// Bind starts a Conn's dispatch loop over transport and returns
// immediately; the loop runs until the transport closes or ctx is done.
func Bind(ctx context.Context, transport Transport, opts Options) *Conn {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.CancelMethod == "" {
		opts.CancelMethod = "notifications/cancelled"
	}
	cancelAliases := map[string]bool{opts.CancelMethod: true}
	for _, a := range opts.CancelAliases {
		cancelAliases[a] = true
	}

	c := &Conn{
		transport:     transport,
		log:           opts.Log,
		observer:      opts.Observer,
		cancelMethod:  opts.CancelMethod,
		cancelAliases: cancelAliases,
		pending:       make(map[jsonrpc.ID]*pendingCall),
		incoming:      make(map[jsonrpc.ID]*incomingCall),
		reqHandlers:   make(map[string]Handler),
		notifHandlers: make(map[string][]NotificationHandler),
		closed:        make(chan struct{}),
	}
	go c.dispatchLoop(ctx)
	return c
}

// A Conn is one live duplex JSON-RPC session: the session engine described
// by the core spec's "Session engine" component. It multiplexes calls,
// replies, notifications, and incoming-request dispatch over a single
// [Transport].
type Conn struct {
	transport Transport
	log       *slog.Logger
	observer  Observer
	ids       IDGenerator

	cancelMethod  string
	cancelAliases map[string]bool

	mu       sync.Mutex
	pending  map[jsonrpc.ID]*pendingCall  // outgoing requests awaiting reply
	incoming map[jsonrpc.ID]*incomingCall // incoming requests being handled
	wg       sync.WaitGroup               // one entry per spawned handler task

	handlersMu    sync.RWMutex
	reqHandlers   map[string]Handler
	notifHandlers map[string][]NotificationHandler

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

type pendingCall struct {
	method    string
	start     time.Time
	replyCh   chan replyResult
	delivered bool
}

type replyResult struct {
	result json.RawMessage
	err    error
}

type incomingCall struct {
	cancel     context.CancelFunc
	suppressed bool
}

// Call issues a request and blocks until a reply arrives, ctx is done, or
// the Conn closes. On success it returns the raw JSON result; the caller
// is responsible for unmarshaling it into a concrete type.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}

	id := c.ids.Next()
	pc := &pendingCall{method: method, start: time.Now(), replyCh: make(chan replyResult, 1)}

	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		return nil, ErrTransportClosed
	}
	c.pending[id] = pc
	c.mu.Unlock()

	req := &jsonrpc.Request{ID: id, Method: method, Params: raw}
	if err := c.transport.Write(ctx, req); err != nil {
		c.removePending(id)
		c.observe(method, Outbound, time.Since(pc.start), err)
		return nil, fmt.Errorf("jsonrpc2: write request: %w", err)
	}

	select {
	case r := <-pc.replyCh:
		c.observe(method, Outbound, time.Since(pc.start), r.err)
		return r.result, r.err
	case <-ctx.Done():
		// Best-effort local cancellation: tell the peer, then fail the
		// caller. No retry and no confirmation is expected.
		c.removePending(id)
		_ = c.Notify(context.Background(), c.cancelMethod, cancelledParams{RequestID: id.Raw()})
		c.observe(method, Outbound, time.Since(pc.start), ErrCancelled)
		return nil, ErrCancelled
	case <-c.closed:
		c.observe(method, Outbound, time.Since(pc.start), ErrTransportClosed)
		return nil, ErrTransportClosed
	}
}

type cancelledParams struct {
	RequestID any    `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

// Notify sends a fire-and-forget notification.
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	if err := c.transport.Write(ctx, &jsonrpc.Notification{Method: method, Params: raw}); err != nil {
		return fmt.Errorf("jsonrpc2: write notification: %w", err)
	}
	return nil
}

// RegisterRequestHandler installs h as the handler for method, replacing
// any previous registration. At most one handler exists per method at a
// time, matching the "at most one handler per method" contract of the
// core spec's handler registry.
func (c *Conn) RegisterRequestHandler(method string, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.reqHandlers[method] = h
}

// RegisterNotificationHandler appends h to the handlers for method and
// returns a function that unregisters it. Multiple handlers may share a
// method name; all run, in registration order, for each matching
// notification.
func (c *Conn) RegisterNotificationHandler(method string, h NotificationHandler) (unregister func()) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.notifHandlers[method] = append(c.notifHandlers[method], h)
	idx := len(c.notifHandlers[method]) - 1
	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		hs := c.notifHandlers[method]
		if idx < len(hs) {
			hs[idx] = nil // preserve indices of concurrently-registered siblings
		}
	}
}

// IsClosed reports whether the Conn has begun or finished shutting down.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Conn) isClosed() bool { return c.IsClosed() }

// Close tears the Conn down: it stops accepting new Calls, fails every
// outstanding pending Call with [ErrTransportClosed], cancels and joins
// every in-flight handler task, and closes the underlying transport.
// Close is idempotent and safe to call from multiple goroutines.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		pendings := make([]*pendingCall, 0, len(c.pending))
		for id, pc := range c.pending {
			pendings = append(pendings, pc)
			delete(c.pending, id)
		}
		incomings := make([]context.CancelFunc, 0, len(c.incoming))
		for id, ic := range c.incoming {
			incomings = append(incomings, ic.cancel)
			delete(c.incoming, id)
		}
		c.mu.Unlock()

		for _, pc := range pendings {
			deliver(pc, replyResult{err: ErrTransportClosed})
		}
		for _, cancel := range incomings {
			cancel()
		}

		c.wg.Wait() // every handler task joined before Close returns
		c.closeErr = c.transport.Close()
	})
	return c.closeErr
}

// dispatchLoop is the single consumer task described by the core spec: it
// never blocks on a handler task, only on transport I/O and the short
// critical sections that mutate the pending/incoming maps.
func (c *Conn) dispatchLoop(ctx context.Context) {
	defer c.Close()
	for {
		msg, err := c.transport.Read(ctx)
		if err != nil {
			return // transport fault or peer close; Close() fails all pendings
		}
		switch m := msg.(type) {
		case *jsonrpc.Response:
			c.completeOutgoing(m.ID, replyResult{result: m.Result})
		case *jsonrpc.Error:
			c.completeOutgoing(m.ID, replyResult{err: &ProtocolError{
				Code: m.Error.Code, Message: m.Error.Message, Data: m.Error.Data,
			}})
		case *jsonrpc.Notification:
			c.handleNotification(ctx, m)
		case *jsonrpc.Request:
			c.handleRequest(ctx, m)
		}
	}
}

func (c *Conn) completeOutgoing(id jsonrpc.ID, r replyResult) {
	c.mu.Lock()
	pc, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		c.log.Warn("jsonrpc2: reply for unknown or already-retired id", "id", id.String())
		return
	}
	deliver(pc, r)
}

func deliver(pc *pendingCall, r replyResult) {
	if pc.delivered {
		return
	}
	pc.delivered = true
	pc.replyCh <- r
}

func (c *Conn) handleNotification(ctx context.Context, n *jsonrpc.Notification) {
	if c.cancelAliases[n.Method] {
		var p cancelledParams
		if err := json.Unmarshal(n.Params, &p); err != nil {
			c.log.Warn("jsonrpc2: malformed cancellation notification", "error", err)
			return
		}
		c.cancelIncoming(p.RequestID)
		return
	}

	c.handlersMu.RLock()
	handlers := append([]NotificationHandler(nil), c.notifHandlers[n.Method]...)
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		if h == nil { // unregistered
			continue
		}
		h := h
		go func() {
			defer c.recoverPanic("notification handler", n.Method)
			h(ctx, n)
		}()
	}
}

// cancelIncoming trips the cancellation source of the in-flight incoming
// handler whose ID matches requestID, and marks it so that no reply is
// sent once the handler returns (core spec invariant 2).
func (c *Conn) cancelIncoming(requestID any) {
	id, ok := idFromRaw(requestID)
	if !ok {
		return
	}
	c.mu.Lock()
	ic, ok := c.incoming[id]
	if ok {
		ic.suppressed = true
	}
	c.mu.Unlock()
	if ok {
		ic.cancel()
	}
}

func (c *Conn) handleRequest(ctx context.Context, req *jsonrpc.Request) {
	c.handlersMu.RLock()
	h, ok := c.reqHandlers[req.Method]
	c.handlersMu.RUnlock()

	if !ok {
		c.replyError(req.ID, jsonrpc.CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
		return
	}

	hctx, cancel := context.WithCancel(ctx)
	ic := &incomingCall{cancel: cancel}
	c.mu.Lock()
	c.incoming[req.ID] = ic
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		start := time.Now()
		result, err := c.runHandler(hctx, h, req)

		c.mu.Lock()
		delete(c.incoming, req.ID)
		suppressed := ic.suppressed
		c.mu.Unlock()

		c.observe(req.Method, Inbound, time.Since(start), err)
		if suppressed {
			return // peer cancelled; no reply per core spec invariant 2
		}
		c.replyTo(req.ID, result, err)
	}()
}

func (c *Conn) runHandler(ctx context.Context, h Handler, req *jsonrpc.Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("jsonrpc2: handler panic", "method", req.Method, "panic", r)
			err = &RemoteError{Code: jsonrpc.CodeInternalError, Message: "internal error"}
		}
	}()
	return h(ctx, req)
}

func (c *Conn) replyTo(id jsonrpc.ID, result any, err error) {
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			c.replyError(id, re.Code, re.Message, re.Data)
			return
		}
		c.replyError(id, jsonrpc.CodeInternalError, err.Error(), nil)
		return
	}
	raw, merr := json.Marshal(result)
	if merr != nil {
		c.replyError(id, jsonrpc.CodeInternalError, merr.Error(), nil)
		return
	}
	c.write(&jsonrpc.Response{ID: id, Result: raw})
}

func (c *Conn) replyError(id jsonrpc.ID, code int32, message string, data json.RawMessage) {
	c.write(&jsonrpc.Error{ID: id, Error: jsonrpc.ErrorValue{Code: code, Message: message, Data: data}})
}

func (c *Conn) write(msg jsonrpc.Message) {
	if err := c.transport.Write(context.Background(), msg); err != nil {
		c.log.Warn("jsonrpc2: failed to write reply", "error", err)
	}
}

func (c *Conn) removePending(id jsonrpc.ID) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) observe(method string, dir Direction, d time.Duration, err error) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, dir, d, err)
	}
}

func (c *Conn) recoverPanic(kind, method string) {
	if r := recover(); r != nil {
		c.log.Error("jsonrpc2: panic", "kind", kind, "method", method, "panic", r)
	}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(params)
}

func idFromRaw(v any) (jsonrpc.ID, bool) {
	switch x := v.(type) {
	case string:
		return jsonrpc.StringID(x), true
	case float64:
		return jsonrpc.Int64ID(int64(x)), true
	case int64:
		return jsonrpc.Int64ID(x), true
	case int:
		return jsonrpc.Int64ID(int64(x)), true
	default:
		return jsonrpc.ID{}, false
	}
}
