package app

import (
	"context"

	mcpserver "listingexport/internal/mcp"
)

// ServeMCP runs the export job as a standalone MCP server on stdin/stdout.
// It returns when the client disconnects.
func (a *App) ServeMCP(_ context.Context, version string) error {
	srv := mcpserver.New(mcpserver.Deps{
		Exports: a.exports,
		Job:     a.job,
		Logger:  a.logger,
		Version: version,
	})
	return srv.ServeStdio()
}
