package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerExportTools() {
	s.mcp.AddTool(mcp.NewTool("run_export",
		mcp.WithDescription("🛑 DESTRUCTIVE: Run the listing export: fetch the feed, extract and transform every listing, and replace the output CSV."),
		mcp.WithString("source", mcp.Description("Feed location, a path or http(s) URL (optional, defaults to the configured source)")),
		mcp.WithString("output", mcp.Description("CSV path to write (optional, defaults to the configured output)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunExport)

	s.mcp.AddTool(mcp.NewTool("preview_export",
		mcp.WithDescription("Extract and transform the feed without writing anything. Returns the output columns and the first rows."),
		mcp.WithString("source", mcp.Description("Feed location (optional, defaults to the configured source)")),
		mcp.WithNumber("rows", mcp.Description("Maximum rows to return (default 10)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handlePreviewExport)

	s.mcp.AddTool(mcp.NewTool("list_export_runs",
		mcp.WithDescription("List recent export runs, newest first. Requires run history to be enabled."),
		mcp.WithString("job", mcp.Description("Job name to filter by (optional, empty lists all jobs)")),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return (default 20)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListExportRuns)

	s.mcp.AddTool(mcp.NewTool("list_sources",
		mcp.WithDescription("List the feed source types and the locators each one accepts"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListSources)
}

func (s *Server) handleRunExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, err := s.jobFor(req)
	if err != nil {
		return nil, err
	}

	result, err := s.exports.RunJob(ctx, job)
	if err != nil {
		if result == nil {
			return nil, fmt.Errorf("run export: %w", err)
		}
		// The result carries the failing stage; report it rather than a bare error.
		res, jerr := jsonResult(result)
		if jerr != nil {
			return nil, jerr
		}
		res.IsError = true
		return res, nil
	}
	return jsonResult(result)
}

func (s *Server) handlePreviewExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, err := s.jobFor(req)
	if err != nil {
		return nil, err
	}
	rows := req.GetInt("rows", 10)
	if rows <= 0 {
		rows = 10
	}

	table, err := s.exports.Preview(ctx, job, rows)
	if err != nil {
		return nil, fmt.Errorf("preview export: %w", err)
	}
	return jsonResult(table)
}

func (s *Server) handleListExportRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobName := req.GetString("job", "")
	limit := req.GetInt("limit", 20)

	logs, err := s.exports.ListRunLogs(jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("list export runs: %w", err)
	}
	if len(logs) == 0 {
		return textResult("No export runs recorded"), nil
	}
	return jsonResult(logs)
}

func (s *Server) handleListSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.exports.ListSources())
}
