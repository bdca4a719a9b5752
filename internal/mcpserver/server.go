// Package mcpserver exposes kernsim as a Model Context Protocol tool
// surface over stdio, so an AI agent can drive scenario runs and ask about
// anomalies interactively instead of shelling out to the CLI. Direct port
// of the teacher's internal/mcp package onto mark3labs/mcp-go, with the
// Linux-diagnostics tool set (get_health/collect_metrics) replaced by a
// scenario-runner tool set (run_scenario/list_components/list_anomalies/
// explain_anomaly).
package mcpserver

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server instance.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server with every kernsim tool registered.
func NewServer(version string) *Server {
	s := server.NewMCPServer("kernsim", version, server.WithLogging())
	registerTools(s)
	return &Server{mcpServer: s}
}

// Start runs the server in stdio mode (blocking until ctx is done).
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func registerTools(s *server.MCPServer) {
	runTool := mcp.NewTool("run_scenario",
		mcp.WithDescription("Run a kernsim workload scenario and return the health report (USE metrics, anomalies, recommendations). Takes ~2-60s depending on profile."),
		mcp.WithString("profile",
			mcp.Description("Run length/intensity: smoke (2s), standard (10s), soak (60s, heavier congestion+shaper load)"),
			mcp.DefaultString("smoke"),
			mcp.Enum("smoke", "standard", "soak"),
		),
		mcp.WithString("only",
			mcp.Description("Comma-separated component subset to drive: cpuscheduler,rcuengine,trafficshaper,congestion,tickmanager. Omit for all."),
		),
		mcp.WithNumber("seed",
			mcp.Description("RNG seed for reproducible workload generation. Omit for a random seed."),
		),
	)
	s.AddTool(runTool, handleRunScenario)

	listTool := mcp.NewTool("list_components",
		mcp.WithDescription("List the five simulator components kernsim can drive, with a one-line description of each."),
	)
	s.AddTool(listTool, handleListComponents)

	explainTool := mcp.NewTool("explain_anomaly",
		mcp.WithDescription("Get root causes and remediation advice for a specific anomaly metric ID. Use list_anomalies to discover available IDs."),
		mcp.WithString("anomaly_id",
			mcp.Required(),
			mcp.Description("Anomaly metric ID, e.g. 'scheduler_capacity_drops', 'congestion_loss_rate'."),
		),
	)
	s.AddTool(explainTool, handleExplainAnomaly)

	listAnomaliesTool := mcp.NewTool("list_anomalies",
		mcp.WithDescription("List all known anomaly metric IDs with brief descriptions. Use with explain_anomaly for detail."),
	)
	s.AddTool(listAnomaliesTool, handleListAnomalies)
}
