// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package cmd provides the CLI commands for mcpcore.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcpcore",
	Short: "mcpcore runs and exercises a Model Context Protocol core",
	Long: `mcpcore is a demo CLI built on the Model Context Protocol core
packages (jsonrpc, internal/jsonrpc2, mcp). It is not an MCP server with
tools or resources of its own: it wires the handshake, logging, progress,
metrics, and tracing surface end-to-end over Streamable-HTTP, so that
surface can be driven and observed without a full application around it.

Commands:
  serve   Run a Streamable-HTTP MCP server
  ping    Connect to a running server and perform the handshake plus a ping`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mcpcore.yaml)")
}
