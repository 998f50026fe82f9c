// Package config loads export job configuration from YAML files.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"listingexport/internal/etl"
)

//go:embed listings.yaml
var defaultYAML []byte

// Config is one export job plus the knobs that control how it runs.
type Config struct {
	Name          string                `yaml:"name"`
	Source        string                `yaml:"source"`
	RecordPath    string                `yaml:"record_path"`
	Output        string                `yaml:"output"`
	Columns       []ColumnConfig        `yaml:"columns"`
	Transforms    []etl.TransformConfig `yaml:"transforms"`
	OutputColumns []string              `yaml:"output_columns"`
	Trigger       etl.Trigger           `yaml:"trigger"`

	History  string        `yaml:"history"` // SQLite path for run history; empty disables it
	Timeout  time.Duration `yaml:"timeout"`
	Verify   bool          `yaml:"verify"`
	LogLevel string        `yaml:"log_level"` // debug | info | warn | error
}

// ColumnConfig is the YAML form of etl.Column.
type ColumnConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	Kind string `yaml:"kind"` // scalar | list; empty means scalar
}

// Default returns the built-in listing feed configuration.
func Default() *Config {
	cfg, err := parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("config: embedded default: %v", err))
	}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Load parses YAML configuration. A file that declares no columns
// inherits the built-in listing columns, transforms and output columns.
func Load(data []byte) (*Config, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Columns) == 0 {
		base, err := parse(defaultYAML)
		if err == nil {
			c.Columns = base.Columns
			if c.RecordPath == "" {
				c.RecordPath = base.RecordPath
			}
			if c.Transforms == nil {
				c.Transforms = base.Transforms
			}
			if c.OutputColumns == nil {
				c.OutputColumns = base.OutputColumns
			}
		}
	}
	if c.Name == "" {
		c.Name = "listings"
	}
	if c.Output == "" {
		c.Output = c.Name + ".csv"
	}
	if c.Trigger.Type == "" {
		c.Trigger.Type = etl.TriggerManual
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks that the job can be built.
func (c *Config) Validate() error {
	if c.RecordPath == "" {
		return fmt.Errorf("record_path is required")
	}
	switch c.Trigger.Type {
	case etl.TriggerManual, etl.TriggerSchedule, etl.TriggerFileWatch:
	default:
		return fmt.Errorf("trigger: unknown type %q", c.Trigger.Type)
	}
	if c.Trigger.Type == etl.TriggerSchedule && c.Trigger.Config == "" {
		return fmt.Errorf("trigger: schedule needs a cron expression")
	}
	if _, err := c.ColumnSpec(); err != nil {
		return err
	}
	if _, err := etl.BuildTransformers(c.Transforms); err != nil {
		return fmt.Errorf("transforms: %w", err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ColumnSpec converts the configured columns to a validated spec.
func (c *Config) ColumnSpec() (etl.ColumnSpec, error) {
	cols := make([]etl.Column, len(c.Columns))
	for i, cc := range c.Columns {
		kind := etl.KindScalar
		if cc.Kind != "" {
			k, err := etl.ParseKind(cc.Kind)
			if err != nil {
				return etl.ColumnSpec{}, fmt.Errorf("column %q: %w", cc.Name, err)
			}
			kind = k
		}
		cols[i] = etl.Column{Name: cc.Name, Path: cc.Path, Kind: kind}
	}
	spec, err := etl.NewColumnSpec(cols...)
	if err != nil {
		return etl.ColumnSpec{}, fmt.Errorf("columns: %w", err)
	}
	return spec, nil
}

// Job converts the configuration to an export job.
func (c *Config) Job() (*etl.ExportJob, error) {
	spec, err := c.ColumnSpec()
	if err != nil {
		return nil, err
	}
	return &etl.ExportJob{
		Name:          c.Name,
		Source:        c.Source,
		RecordPath:    c.RecordPath,
		Columns:       spec,
		Transforms:    c.Transforms,
		Output:        c.Output,
		OutputColumns: c.OutputColumns,
		Trigger:       c.Trigger,
	}, nil
}

// ParseLevel maps a log level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
