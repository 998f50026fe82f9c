package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"listingexport/internal/etl"

	"github.com/mark3labs/mcp-go/mcp"
)

const jobResourceURI = "listingexport://job"

func (s *Server) registerResources() {
	// ── listingexport://job ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		jobResourceURI,
		"Configured Export Job",
		mcp.WithResourceDescription("The export job this server runs: source, record path, columns, transforms and output"),
		mcp.WithMIMEType("application/json"),
	), s.handleJobResource)
}

// jobSummary is the JSON view of an export job, columns included.
type jobSummary struct {
	Name          string                `json:"name"`
	Source        string                `json:"source"`
	RecordPath    string                `json:"recordPath"`
	Columns       []etl.Column          `json:"columns"`
	Transforms    []etl.TransformConfig `json:"transforms,omitempty"`
	Output        string                `json:"output"`
	OutputColumns []string              `json:"outputColumns,omitempty"`
	Trigger       etl.Trigger           `json:"trigger"`

	// TransformTypes lists the transform types a config may use.
	TransformTypes []string `json:"transformTypes"`
}

func summarizeJob(job *etl.ExportJob) jobSummary {
	return jobSummary{
		Name:          job.Name,
		Source:        job.Source,
		RecordPath:    job.RecordPath,
		Columns:       job.Columns.Columns(),
		Transforms:    job.Transforms,
		Output:        job.Output,
		OutputColumns: job.OutputColumns,
		Trigger:       job.Trigger,

		TransformTypes: etl.TransformTypes(),
	}
}

func (s *Server) handleJobResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if s.job == nil {
		return nil, fmt.Errorf("no export job configured")
	}

	data, err := json.MarshalIndent(summarizeJob(s.job), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      jobResourceURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
