// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import (
	"sync/atomic"

	"github.com/modelcontextprotocol/go-mcp-core/jsonrpc"
)

// An IDGenerator mints session-local, monotonically increasing request IDs
// starting at 1. The zero value is ready to use. It is safe for concurrent
// use by multiple goroutines.
//
// IDs are not exposed to request handlers; only the session engine that
// issues outgoing requests consumes them.
type IDGenerator struct {
	next atomic.Int64
}

// Next returns a fresh [jsonrpc.ID], unique for the lifetime of the
// generator (until int64 overflow, at which point the allocator wraps and
// IDs may be reused; by then any request using the wrapped-to value has
// long since been retired).
func (g *IDGenerator) Next() jsonrpc.ID {
	return jsonrpc.Int64ID(g.next.Add(1))
}
