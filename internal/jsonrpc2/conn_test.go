// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/modelcontextprotocol/go-mcp-core/internal/json"
	"github.com/modelcontextprotocol/go-mcp-core/jsonrpc"
)

// pipeTransport is a minimal in-memory [Transport] pair for exercising
// Conn without a real network or process boundary, following the same
// close-the-channel-you-write-to idiom as mcp's in-memory transport.
type pipeTransport struct {
	out chan jsonrpc.Message
	in  chan jsonrpc.Message

	closeOnce sync.Once
}

func newPipe() (a, b *pipeTransport) {
	c1 := make(chan jsonrpc.Message, 16)
	c2 := make(chan jsonrpc.Message, 16)
	return &pipeTransport{out: c1, in: c2}, &pipeTransport{out: c2, in: c1}
}

func (p *pipeTransport) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case m, ok := <-p.in:
		if !ok {
			return nil, io.EOF
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeTransport) Write(ctx context.Context, msg jsonrpc.Message) error {
	select {
	case p.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeTransport) Close() error {
	p.closeOnce.Do(func() { close(p.out) })
	return nil
}

func echoHandler(ctx context.Context, req *jsonrpc.Request) (any, error) {
	var v map[string]any
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func TestConn_CallAndReply(t *testing.T) {
	defer goleak.VerifyNone(t)

	clientT, serverT := newPipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := Bind(ctx, serverT, Options{})
	server.RegisterRequestHandler("echo", echoHandler)
	client := Bind(ctx, clientT, Options{})
	defer client.Close()
	defer server.Close()

	raw, err := client.Call(ctx, "echo", map[string]any{"a": float64(1)})
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got["a"] != float64(1) {
		t.Fatalf("Call() result = %v, want a=1", got)
	}
}

func TestConn_MethodNotFound(t *testing.T) {
	defer goleak.VerifyNone(t)

	clientT, serverT := newPipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := Bind(ctx, serverT, Options{})
	client := Bind(ctx, clientT, Options{})
	defer client.Close()
	defer server.Close()

	_, err := client.Call(ctx, "nonexistent", nil)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Call() error = %v, want *ProtocolError", err)
	}
	if perr.Code != jsonrpc.CodeMethodNotFound {
		t.Fatalf("ProtocolError.Code = %d, want %d", perr.Code, jsonrpc.CodeMethodNotFound)
	}
}

func TestConn_RemoteErrorPreservesCode(t *testing.T) {
	defer goleak.VerifyNone(t)

	clientT, serverT := newPipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := Bind(ctx, serverT, Options{})
	server.RegisterRequestHandler("fail", func(context.Context, *jsonrpc.Request) (any, error) {
		return nil, &RemoteError{Code: jsonrpc.CodeInvalidParams, Message: "nope"}
	})
	client := Bind(ctx, clientT, Options{})
	defer client.Close()
	defer server.Close()

	_, err := client.Call(ctx, "fail", nil)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Call() error = %v, want *ProtocolError", err)
	}
	if perr.Code != jsonrpc.CodeInvalidParams || perr.Message != "nope" {
		t.Fatalf("ProtocolError = %+v, want {Code: %d, Message: nope}", perr, jsonrpc.CodeInvalidParams)
	}
}

func TestConn_HandlerPanicBecomesInternalError(t *testing.T) {
	defer goleak.VerifyNone(t)

	clientT, serverT := newPipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := Bind(ctx, serverT, Options{})
	server.RegisterRequestHandler("boom", func(context.Context, *jsonrpc.Request) (any, error) {
		panic("kaboom")
	})
	client := Bind(ctx, clientT, Options{})
	defer client.Close()
	defer server.Close()

	_, err := client.Call(ctx, "boom", nil)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Call() error = %v, want *ProtocolError", err)
	}
	if perr.Code != jsonrpc.CodeInternalError {
		t.Fatalf("ProtocolError.Code = %d, want %d", perr.Code, jsonrpc.CodeInternalError)
	}
}

func TestConn_Notify(t *testing.T) {
	defer goleak.VerifyNone(t)

	clientT, serverT := newPipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := Bind(ctx, serverT, Options{})
	client := Bind(ctx, clientT, Options{})
	defer client.Close()
	defer server.Close()

	received := make(chan string, 1)
	server.RegisterNotificationHandler("ping", func(ctx context.Context, n *jsonrpc.Notification) {
		received <- n.Method
	})

	if err := client.Notify(ctx, "ping", nil); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}

	select {
	case m := <-received:
		if m != "ping" {
			t.Fatalf("notification method = %q, want ping", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification handler to run")
	}
}

func TestConn_NotifyUnregisterStopsFutureDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)

	clientT, serverT := newPipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := Bind(ctx, serverT, Options{})
	client := Bind(ctx, clientT, Options{})
	defer client.Close()
	defer server.Close()

	var calls int
	var mu sync.Mutex
	unregister := server.RegisterNotificationHandler("ping", func(ctx context.Context, n *jsonrpc.Notification) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	unregister()

	if err := client.Notify(ctx, "ping", nil); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	// Give the dispatch loop a chance to process the notification; since the
	// handler was unregistered before send, calls must remain 0.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("unregistered handler ran %d times, want 0", calls)
	}
}

func TestConn_CloseFailsPendingCalls(t *testing.T) {
	defer goleak.VerifyNone(t)

	clientT, serverT := newPipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := Bind(ctx, serverT, Options{})
	// Register a handler that never replies until the test tells it to,
	// simulating an in-flight request outlived by a Close.
	release := make(chan struct{})
	server.RegisterRequestHandler("slow", func(ctx context.Context, req *jsonrpc.Request) (any, error) {
		<-release
		return map[string]any{}, nil
	})
	client := Bind(ctx, clientT, Options{})
	defer server.Close()
	defer close(release)

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Call(context.Background(), "slow", nil)
		errCh <- err
	}()

	// Give the call time to register as pending before closing.
	time.Sleep(50 * time.Millisecond)
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrTransportClosed) {
			t.Fatalf("Call() error = %v, want ErrTransportClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pending Call to fail after Close")
	}
}

func TestConn_CallAfterCloseFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	clientT, serverT := newPipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := Bind(ctx, serverT, Options{})
	defer server.Close()
	client := Bind(ctx, clientT, Options{})

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !client.IsClosed() {
		t.Fatal("IsClosed() should report true after Close()")
	}

	_, err := client.Call(context.Background(), "echo", nil)
	if !errors.Is(err, ErrTransportClosed) {
		t.Fatalf("Call() after Close() error = %v, want ErrTransportClosed", err)
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveRequest(method string, dir Direction, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	dirName := "outbound"
	if dir == Inbound {
		dirName = "inbound"
	}
	o.calls = append(o.calls, method+":"+dirName+":"+outcome)
}

func TestConn_ObserverSeesBothDirections(t *testing.T) {
	defer goleak.VerifyNone(t)

	clientT, serverT := newPipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverObs := &recordingObserver{}
	clientObs := &recordingObserver{}
	server := Bind(ctx, serverT, Options{Observer: serverObs})
	server.RegisterRequestHandler("echo", echoHandler)
	client := Bind(ctx, clientT, Options{Observer: clientObs})
	defer client.Close()
	defer server.Close()

	if _, err := client.Call(ctx, "echo", nil); err != nil {
		t.Fatalf("Call() error: %v", err)
	}

	// The server's observation of the inbound dispatch races the client's
	// receipt of the reply (the reply itself unblocks the client's Call),
	// so poll briefly rather than asserting immediately.
	deadline := time.Now().Add(time.Second)
	for {
		serverObs.mu.Lock()
		n := len(serverObs.calls)
		serverObs.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	clientObs.mu.Lock()
	defer clientObs.mu.Unlock()
	if len(clientObs.calls) != 1 || clientObs.calls[0] != "echo:outbound:ok" {
		t.Fatalf("client observer calls = %v, want [echo:outbound:ok]", clientObs.calls)
	}
	serverObs.mu.Lock()
	defer serverObs.mu.Unlock()
	if len(serverObs.calls) != 1 || serverObs.calls[0] != "echo:inbound:ok" {
		t.Fatalf("server observer calls = %v, want [echo:inbound:ok]", serverObs.calls)
	}
}
