// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-mcp-core/mcp/sessioncache"
)

func newTestHandler(t *testing.T) (*httptest.Server, *StreamableHTTPHandler) {
	t.Helper()
	handler := NewStreamableHTTPHandler(func(*http.Request) *Server {
		return NewServer(&Implementation{Name: "streamable-server", Version: "0"}, nil)
	}, nil)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Cleanup(handler.closeAll)
	return srv, handler
}

// TestStreamableHandshakeOverHTTP drives a full client/server handshake and
// a ping round-trip over the Streamable-HTTP transport, confirming the
// server mints and returns an Mcp-Session-Id and the client reuses it.
func TestStreamableHandshakeOverHTTP(t *testing.T) {
	srv, _ := newTestHandler(t)

	client := NewClient(&Implementation{Name: "streamable-client", Version: "0"}, nil)
	transport := NewStreamableClientTransport(srv.URL, nil)

	ctx := context.Background()
	cs, err := client.Connect(ctx, transport)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	defer cs.Close()

	if cs.ID() == "" {
		t.Error("client session has no Mcp-Session-Id after handshake")
	}
	if err := cs.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

// TestStreamableRejectsUnknownSession covers scenario S5: a POST carrying
// a non-initialize request with an absent-from-the-server-map
// Mcp-Session-Id header must be rejected with 404, and no session state is
// created for it.
func TestStreamableRejectsUnknownSession(t *testing.T) {
	srv, handler := newTestHandler(t)

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Mcp-Session-Id", "nonexistent-session")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	handler.sessionsMu.Lock()
	n := len(handler.sessions)
	handler.sessionsMu.Unlock()
	if n != 0 {
		t.Errorf("handler has %d sessions after a rejected unknown-session POST, want 0", n)
	}
}

// TestStreamableDeleteTerminatesSession exercises explicit session
// termination: after DELETE, the session's Mcp-Session-Id is no longer
// recognized by the server.
func TestStreamableDeleteTerminatesSession(t *testing.T) {
	srv, handler := newTestHandler(t)

	client := NewClient(&Implementation{Name: "c", Version: "0"}, nil)
	transport := NewStreamableClientTransport(srv.URL, nil)
	ctx := context.Background()
	cs, err := client.Connect(ctx, transport)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	sessionID := cs.ID()
	if sessionID == "" {
		t.Fatal("empty session id after handshake")
	}

	req, err := http.NewRequest(http.MethodDelete, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Mcp-Session-Id", sessionID)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	handler.sessionsMu.Lock()
	_, ok := handler.sessions[sessionID]
	handler.sessionsMu.Unlock()
	if ok {
		t.Error("session still present in handler after DELETE")
	}

	// The session is already gone server-side; closing the client is just
	// cleanup of its background goroutines, and any DELETE error it hits
	// along the way is expected and ignored.
	cs.Close()
}

// TestStreamableResumesFromSessionStore simulates this process restarting:
// the handler's in-memory session table is cleared out from under a live
// client, but a SessionStore still has the persisted InitializeParams, so
// the next request resumes rather than 404ing.
func TestStreamableResumesFromSessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	handler := NewStreamableHTTPHandler(func(*http.Request) *Server {
		return NewServer(&Implementation{Name: "streamable-server", Version: "0"}, &ServerOptions{
			SessionStore: store,
		})
	}, &StreamableHTTPOptions{SessionStore: store})
	srv := httptest.NewServer(handler)
	defer srv.Close()
	defer handler.closeAll()

	client := NewClient(&Implementation{Name: "streamable-client", Version: "0"}, nil)
	transport := NewStreamableClientTransport(srv.URL, nil)
	ctx := context.Background()
	cs, err := client.Connect(ctx, transport)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	sessionID := cs.ID()

	// Drop the in-memory session, as if the process had just restarted;
	// the persisted state in store is all that is left.
	handler.sessionsMu.Lock()
	delete(handler.sessions, sessionID)
	handler.sessionsMu.Unlock()

	if err := cs.Ping(ctx); err != nil {
		t.Fatalf("Ping after simulated restart: %v", err)
	}

	handler.sessionsMu.Lock()
	_, ok := handler.sessions[sessionID]
	handler.sessionsMu.Unlock()
	if !ok {
		t.Error("resumed session was not re-registered in the handler's session table")
	}
	cs.Close()
}

// TestStreamableEvictsStaleCacheClaimOn404 covers the SessionCache half of
// scenario S5: when a session is not found either locally or via
// SessionStore, any ownership claim left behind in SessionCache is
// released rather than left to expire on its own.
func TestStreamableEvictsStaleCacheClaimOn404(t *testing.T) {
	cache := sessioncache.NewMemoryCache(nil)
	defer cache.Close()

	handler := NewStreamableHTTPHandler(func(*http.Request) *Server {
		return NewServer(&Implementation{Name: "streamable-server", Version: "0"}, nil)
	}, &StreamableHTTPOptions{SessionCache: cache, NodeID: "node-a"})
	srv := httptest.NewServer(handler)
	defer srv.Close()
	defer handler.closeAll()

	ctx := context.Background()
	ok, err := cache.Claim(ctx, "stale-session", "node-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("Claim: ok=%v err=%v", ok, err)
	}

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Mcp-Session-Id", "stale-session")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	if _, ok, err := cache.Get(ctx, "stale-session"); err != nil || ok {
		t.Errorf("Get after 404 = ok=%v err=%v, want the stale claim evicted", ok, err)
	}
}
