package mcpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"listingexport/internal/etl"
	"listingexport/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server is the MCP server for listing exports.
// It exposes the configured export job as tools and a resource so agents
// can run, preview and inspect it.
type Server struct {
	mcp    *server.MCPServer
	logger *slog.Logger

	exports *service.ExportService
	job     *etl.ExportJob // base job; tool arguments override source and output
}

// Deps holds everything the MCP server needs from the CLI.
type Deps struct {
	Exports *service.ExportService
	Job     *etl.ExportJob
	Logger  *slog.Logger
	Version string
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		logger:  logger,
		exports: deps.Exports,
		job:     deps.Job,
	}

	s.mcp = server.NewMCPServer(
		"listingexport-mcp",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerExportTools()
	s.registerResources()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp: starting stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// jobFor returns a copy of the base job with source and output overridden
// by the tool arguments, when given.
func (s *Server) jobFor(req mcp.CallToolRequest) (*etl.ExportJob, error) {
	if s.job == nil {
		return nil, fmt.Errorf("no export job configured")
	}
	job := *s.job
	if src := req.GetString("source", ""); src != "" {
		job.Source = src
	}
	if out := req.GetString("output", ""); out != "" {
		job.Output = out
	}
	if job.Source == "" {
		return nil, fmt.Errorf("source is required (no default source configured)")
	}
	return &job, nil
}

func boolPtr(v bool) *bool { return &v }
