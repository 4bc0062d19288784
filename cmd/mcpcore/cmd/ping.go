// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelcontextprotocol/go-mcp-core/mcp"
)

var pingURL string

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Connect to a running server and perform the handshake plus a ping",
	RunE:  runPing,
}

func init() {
	pingCmd.Flags().StringVar(&pingURL, "url", "http://localhost:8080/mcp", "Streamable-HTTP endpoint to connect to")
	rootCmd.AddCommand(pingCmd)
}

func runPing(c *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	client := mcp.NewClient(&mcp.Implementation{Name: "mcpcore-ping", Version: "0.1.0"}, &mcp.ClientOptions{
		Logger: logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	transport := mcp.NewStreamableClientTransport(pingURL, nil)
	session, err := client.Connect(ctx, transport)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer session.Close()

	result := session.InitializeResult()
	fmt.Printf("connected to %s %s (protocol %s)\n",
		result.ServerInfo.Name, result.ServerInfo.Version, result.ProtocolVersion)

	if err := session.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	fmt.Println("ping ok")
	return nil
}
