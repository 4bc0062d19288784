// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/modelcontextprotocol/go-mcp-core/jsonrpc"
)

// A Transport is a factory for a logical MCP connection: each call to
// Connect yields one duplex [Connection]. Whether a Transport may be
// connected more than once depends on the implementation:
// [StreamableServerTransport] and [WebSocketServerTransport] hand back one
// fixed connection, so the HTTP handlers create a new transport for each
// session.
type Transport interface {
	Connect(ctx context.Context) (Connection, error)
}

// A Connection is one duplex byte-to-message channel: the same contract
// as [internal/jsonrpc2.Transport], plus a SessionID used by
// Streamable-HTTP and WebSocket transports to correlate subsequent HTTP
// requests with an existing logical session.
type Connection interface {
	Read(ctx context.Context) (jsonrpc.Message, error)
	Write(ctx context.Context, msg jsonrpc.Message) error
	SessionID() string
	Close() error
}

// readBatch parses data as a single message or a JSON array batch, per
// the wire format [jsonrpc.ReadBatch] understands.
func readBatch(data []byte) ([]jsonrpc.Message, bool, error) {
	msgs, err := jsonrpc.ReadBatch(data)
	if err != nil {
		return nil, false, err
	}
	return msgs, len(msgs) > 1, nil
}

// NewInMemoryTransports returns two linked [Transport] values: messages
// written on one side's Connection are read on the other's. This is the
// canonical transport used to connect a [Client] and [Server] within a
// single process, for example in tests.
func NewInMemoryTransports() (client, server Transport) {
	c2s := make(chan jsonrpc.Message, 16)
	s2c := make(chan jsonrpc.Message, 16)
	return &inMemoryTransport{read: s2c, write: c2s},
		&inMemoryTransport{read: c2s, write: s2c}
}

type inMemoryTransport struct {
	read  chan jsonrpc.Message
	write chan jsonrpc.Message
}

func (t *inMemoryTransport) Connect(context.Context) (Connection, error) {
	return &inMemoryConn{read: t.read, write: t.write}, nil
}

type inMemoryConn struct {
	read, write chan jsonrpc.Message

	mu        sync.Mutex
	closeOnce sync.Once
	closed    bool
}

func (c *inMemoryConn) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case msg, ok := <-c.read:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *inMemoryConn) Write(ctx context.Context, msg jsonrpc.Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("mcp: connection closed")
	}
	select {
	case c.write <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *inMemoryConn) SessionID() string { return "" }

// Close closes the channel this side writes to, so the peer's next Read
// observes end-of-stream; it never closes the channel it reads from,
// since the peer owns that lifecycle.
func (c *inMemoryConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.write)
	})
	return nil
}
