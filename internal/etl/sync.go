package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ── ExportJob ──────────────────────────────────────────────
// Orchestrates: source.Open → Extract → transform chain → destination.Write.
// Each run is one sequential, synchronous pass; nothing carries over
// between runs.

// Trigger types.
const (
	TriggerManual    = "manual"
	TriggerSchedule  = "schedule"
	TriggerFileWatch = "file_watch"
)

// Trigger says when a job runs.
type Trigger struct {
	Type   string `json:"type" yaml:"type"`     // "manual" | "schedule" | "file_watch"
	Config string `json:"config" yaml:"config"` // cron expression or watch path
}

// ExportJob holds the configuration for one feed export.
type ExportJob struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Source        string            `json:"source"`
	RecordPath    string            `json:"recordPath"`
	Columns       ColumnSpec        `json:"-"`
	Transforms    []TransformConfig `json:"transforms,omitempty"`
	Output        string            `json:"output"`
	OutputColumns []string          `json:"outputColumns,omitempty"`
	Trigger       Trigger           `json:"trigger"`
}

// TransformConfig is a declarative transform definition.
type TransformConfig struct {
	Type   string         `json:"type" yaml:"type"` // "listing" | "select" | "rename"
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusRunning = "running"
)

// ExportResult is the outcome of running an export job.
type ExportResult struct {
	RunID       string        `json:"runId"`
	JobName     string        `json:"jobName"`
	Status      string        `json:"status"` // "success" | "error"
	RowsRead    int           `json:"rowsRead"`
	RowsWritten int           `json:"rowsWritten"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// RunLog is a historical record of an export run.
type RunLog struct {
	ID          string    `json:"id"`
	JobName     string    `json:"jobName"`
	Source      string    `json:"source"`
	Output      string    `json:"output"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"`
	RowsRead    int       `json:"rowsRead"`
	RowsWritten int       `json:"rowsWritten"`
	Error       string    `json:"error,omitempty"`
}

// NewRunLog builds the history record for a finished run.
func NewRunLog(job *ExportJob, result *ExportResult) *RunLog {
	return &RunLog{
		ID:          result.RunID,
		JobName:     job.Name,
		Source:      job.Source,
		Output:      job.Output,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.StartedAt.Add(result.Duration),
		Status:      result.Status,
		RowsRead:    result.RowsRead,
		RowsWritten: result.RowsWritten,
		Error:       result.Error,
	}
}

// ── Engine ─────────────────────────────────────────────────

// Engine runs export jobs using the registered sources and a destination.
type Engine struct {
	Dest   Destination // nil means &CSVWriter{}
	Verify bool        // re-read the output after writing
}

func (e *Engine) dest() Destination {
	if e.Dest == nil {
		return &CSVWriter{}
	}
	return e.Dest
}

// Run executes an export job end-to-end. The table is fully extracted and
// transformed before anything is written.
func (e *Engine) Run(ctx context.Context, job *ExportJob) (*ExportResult, error) {
	start := time.Now()
	result := &ExportResult{
		RunID:     uuid.New().String(),
		JobName:   job.Name,
		StartedAt: start,
	}
	fail := func(stage string, err error) (*ExportResult, error) {
		result.Status = StatusError
		result.Error = fmt.Sprintf("%s: %s", stage, err)
		result.Duration = time.Since(start)
		return result, fmt.Errorf("%s: %w", stage, err)
	}

	// 1. Read and extract.
	table, err := e.extract(ctx, job)
	if err != nil {
		return fail("extract", err)
	}
	result.RowsRead = table.RowCount()

	// 2. Build transformer chain from config and apply it.
	transformers, err := BuildTransformers(job.Transforms)
	if err != nil {
		return fail("transform", err)
	}
	table, err = ApplyTransformers(table, transformers)
	if err != nil {
		return fail("transform", err)
	}

	// 3. Write to destination.
	written, err := e.dest().Write(ctx, job.Output, table, job.OutputColumns)
	if err != nil {
		return fail("write", err)
	}
	result.RowsWritten = written

	if e.Verify {
		if err := VerifyCSV(job.Output, table, job.OutputColumns); err != nil {
			return fail("verify", err)
		}
	}

	result.Status = StatusSuccess
	result.Duration = time.Since(start)
	return result, nil
}

// Preview extracts and transforms without writing, returning up to maxRows
// rows projected to the job's output columns.
func (e *Engine) Preview(ctx context.Context, job *ExportJob, maxRows int) (*Table, error) {
	table, err := e.extract(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	transformers, err := BuildTransformers(job.Transforms)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	table, err = ApplyTransformers(table, transformers)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	if len(job.OutputColumns) > 0 {
		if table, err = project(table, job.OutputColumns, "load"); err != nil {
			return nil, err
		}
	}
	return table.Head(maxRows), nil
}

func (e *Engine) extract(ctx context.Context, job *ExportJob) (*Table, error) {
	if job.Source == "" {
		return nil, fmt.Errorf("no source locator")
	}
	source, err := ResolveSource(job.Source)
	if err != nil {
		return nil, err
	}
	rc, err := source.Open(ctx, job.Source)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()

	return Extract(rc, job.RecordPath, job.Columns)
}

// BuildTransformers converts declarative TransformConfig into Transformer instances.
func BuildTransformers(configs []TransformConfig) ([]Transformer, error) {
	var ts []Transformer

	for _, tc := range configs {
		switch tc.Type {
		case "listing":
			limit, err := configInt(tc.Config, "descriptionLimit")
			if err != nil {
				return nil, err
			}
			ts = append(ts, &ListingTransform{DescriptionLimit: limit})

		case "select":
			fields, err := configStrings(tc.Config, "fields")
			if err != nil {
				return nil, err
			}
			if len(fields) == 0 {
				return nil, fmt.Errorf("select: fields are required")
			}
			ts = append(ts, &SelectTransform{Fields: fields})

		case "rename":
			mapping, ok := tc.Config["mapping"].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("rename: mapping is required")
			}
			m := make(map[string]string, len(mapping))
			for k, v := range mapping {
				m[k] = fmt.Sprint(v)
			}
			ts = append(ts, &RenameTransform{Mapping: m})

		default:
			return nil, fmt.Errorf("unknown transform type: %q", tc.Type)
		}
	}

	return ts, nil
}

// TransformTypes lists the transform types BuildTransformers accepts.
func TransformTypes() []string {
	return []string{"listing", "rename", "select"}
}

func configInt(cfg map[string]any, key string) (int, error) {
	switch v := cfg[key].(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s: expected a number, got %T", key, v)
	}
}

func configStrings(cfg map[string]any, key string) ([]string, error) {
	switch v := cfg[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: expected strings, got %T", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected a list, got %T", key, v)
	}
}
