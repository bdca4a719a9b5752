package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start a Model Context Protocol (MCP) server",
	Long: `Starts a JSON-RPC server implementing the Model Context Protocol (MCP).
This lets an AI agent (e.g. Claude Desktop, Cursor) drive kernsim scenario
runs and ask about anomalies interactively.

Communication happens over standard input/output (stdio).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := mcpserver.NewServer(version)
		return srv.Start(ctx)
	},
}
