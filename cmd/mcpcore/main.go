// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command mcpcore is a demo CLI that wires an MCP server and client
// end-to-end over the Streamable-HTTP transport, exercising the core
// package's handshake, logging, progress, metrics, and tracing surface.
package main

import (
	"github.com/modelcontextprotocol/go-mcp-core/cmd/mcpcore/cmd"
)

func main() {
	cmd.Execute()
}
