// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func connectedPair(t *testing.T, sopts *ServerOptions, copts *ClientOptions) (*Server, *ServerSession, *ClientSession) {
	t.Helper()
	clientT, serverT := NewInMemoryTransports()
	server := NewServer(&Implementation{Name: "test-server", Version: "0"}, sopts)

	ctx := context.Background()
	var ss *ServerSession
	var acceptErr error
	done := make(chan struct{})
	go func() {
		ss, acceptErr = server.Connect(ctx, serverT)
		close(done)
	}()

	client := NewClient(&Implementation{Name: "test-client", Version: "0"}, copts)
	cs, err := client.Connect(ctx, clientT)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	<-done
	if acceptErr != nil {
		t.Fatalf("server.Connect: %v", acceptErr)
	}
	return server, ss, cs
}

// TestHandshake exercises scenario S1: the client completes initialize,
// sends initialized, and both sides observe a fully negotiated session.
func TestHandshake(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, ss, cs := connectedPair(t, nil, nil)
	defer ss.Close()
	defer cs.Close()

	result := cs.InitializeResult()
	if result == nil {
		t.Fatal("InitializeResult is nil after Connect returned")
	}
	if result.ProtocolVersion != ProtocolVersion {
		t.Errorf("ProtocolVersion = %q, want %q", result.ProtocolVersion, ProtocolVersion)
	}
	if result.ServerInfo.Name != "test-server" {
		t.Errorf("ServerInfo.Name = %q, want %q", result.ServerInfo.Name, "test-server")
	}

	if got := ss.InitializeParams(); got == nil || got.ClientInfo.Name != "test-client" {
		t.Errorf("server-observed InitializeParams.ClientInfo = %+v, want client-info name %q", got, "test-client")
	}
}

// TestPing covers the client pinging the server, through both the
// hand-written ClientSession.Ping and the generic CallTyped path.
func TestPing(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, ss, cs := connectedPair(t, nil, nil)
	defer ss.Close()
	defer cs.Close()

	ctx := context.Background()
	if err := cs.Ping(ctx); err != nil {
		t.Errorf("client Ping: %v", err)
	}

	result, err := CallTyped(ctx, cs, methodPing, &PingParams{}, func() Result { return &PingResult{} })
	if err != nil {
		t.Fatalf("CallTyped(ping): %v", err)
	}
	if _, ok := result.(*PingResult); !ok {
		t.Errorf("CallTyped(ping) result type = %T, want *PingResult", result)
	}
}

// TestConcurrentRequestsOutOfOrder covers scenario S2: two concurrent
// client calls must both resolve correctly regardless of which server
// reply lands first; correlation is by Id, not arrival order.
func TestConcurrentRequestsOutOfOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, ss, cs := connectedPair(t, nil, nil)
	defer ss.Close()
	defer cs.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = cs.Ping(ctx)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("ping %d: %v", i, err)
		}
	}
}

// TestProgressCorrelation covers scenario S4: progress notifications
// carrying a token are routed to the sink registered for that call, and
// the three in-call updates arrive in the order the server sent them.
// Deregistration of the sink after the call completes is not checked here.
func TestProgressCorrelation(t *testing.T) {
	defer goleak.VerifyNone(t)

	server := NewServer(&Implementation{Name: "progress-server", Version: "0"}, nil)

	clientT, serverT := NewInMemoryTransports()
	ctx := context.Background()

	ssCh := make(chan *ServerSession, 1)
	go func() {
		ss, err := server.Connect(ctx, serverT)
		if err != nil {
			return
		}
		bindServerRequest(ss, "doWork", func(ctx context.Context, r *ServerRequest[*PingParams]) (*PingResult, error) {
			for _, p := range []float64{0.25, 0.5, 0.75} {
				r.Progress(ctx, "", p, 1)
			}
			return &PingResult{}, nil
		})
		ssCh <- ss
	}()

	client := NewClient(&Implementation{Name: "progress-client", Version: "0"}, nil)
	cs, err := client.Connect(ctx, clientT)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	defer cs.Close()
	ss := <-ssCh
	defer ss.Close()

	var mu sync.Mutex
	var updates []float64
	_, err = cs.CallWithProgress(ctx, "doWork", &PingParams{}, func(p *ProgressNotificationParams) {
		mu.Lock()
		updates = append(updates, p.Progress)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("CallWithProgress: %v", err)
	}

	// Give the fire-and-forget progress notifications time to land; the
	// call's own reply is ordered after them on the wire, but delivery
	// to the local handler goroutine is not guaranteed synchronous.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(updates)
		mu.Unlock()
		if n >= 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 3 {
		t.Fatalf("got %d progress updates, want 3: %v", len(updates), updates)
	}
	want := []float64{0.25, 0.5, 0.75}
	for i, w := range want {
		if updates[i] != w {
			t.Errorf("updates[%d] = %v, want %v", i, updates[i], w)
		}
	}
}

// TestLoggingLevelGate exercises SetLoggingLevel: the server must not
// forward log records below the client's configured minimum.
func TestLoggingLevelGate(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var received []LoggingLevel
	_, ss, cs := connectedPair(t, nil, &ClientOptions{
		LoggingMessageHandler: func(ctx context.Context, p *LoggingMessageParams) {
			mu.Lock()
			received = append(received, p.Level)
			mu.Unlock()
		},
	})
	defer ss.Close()
	defer cs.Close()

	ctx := context.Background()
	if err := cs.SetLoggingLevel(ctx, LevelWarning); err != nil {
		t.Fatalf("SetLoggingLevel: %v", err)
	}

	if err := ss.Log(ctx, LevelDebug, "t", "suppressed"); err != nil {
		t.Fatalf("Log(debug): %v", err)
	}
	if err := ss.Log(ctx, LevelError, "t", "delivered"); err != nil {
		t.Fatalf("Log(error): %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n >= 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0] != LevelError {
		t.Fatalf("received = %v, want exactly one LevelError record", received)
	}
}

// TestSessionCloseFailsPendingCalls covers session teardown: closing the
// server session must not leave the client hanging forever on a call
// that was in flight.
func TestSessionCloseFailsPendingCalls(t *testing.T) {
	defer goleak.VerifyNone(t)

	server := NewServer(&Implementation{Name: "s", Version: "0"}, nil)
	clientT, serverT := NewInMemoryTransports()
	ctx := context.Background()

	started := make(chan struct{})
	ssCh := make(chan *ServerSession, 1)
	go func() {
		ss, err := server.Connect(ctx, serverT)
		if err != nil {
			return
		}
		bindServerRequest(ss, "hang", func(ctx context.Context, r *ServerRequest[*PingParams]) (*PingResult, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		ssCh <- ss
	}()

	client := NewClient(&Implementation{Name: "c", Version: "0"}, nil)
	cs, err := client.Connect(ctx, clientT)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	ss := <-ssCh

	done := make(chan error, 1)
	go func() {
		_, callErr := CallTyped(ctx, cs, "hang", &PingParams{}, func() Result { return &PingResult{} })
		done <- callErr
	}()
	<-started
	if err := ss.Close(); err != nil {
		t.Fatalf("ss.Close: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected the in-flight call to fail once the server session closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("call did not resolve after session close")
	}
	cs.Close()
}
