package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingexport/internal/etl"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "listings", cfg.Name)
	assert.Equal(t, "/Listings/Listing", cfg.RecordPath)
	assert.Equal(t, "zillow.csv", cfg.Output)
	assert.Len(t, cfg.Columns, 16)
	assert.Equal(t, []string{
		"MlsId", "MlsName", "DateListed", "StreetAddress", "Price",
		"Bedrooms", "Bathrooms", "Appliances", "Rooms", "Description",
	}, cfg.OutputColumns)
	assert.Equal(t, etl.TriggerManual, cfg.Trigger.Type)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Empty(t, cfg.History)
}

func TestDefault_Job(t *testing.T) {
	job, err := Default().Job()
	require.NoError(t, err)

	assert.Equal(t, 16, job.Columns.Len())
	cols := job.Columns.Columns()
	assert.Equal(t, "Appliances", cols[14].Name)
	assert.Equal(t, etl.KindList, cols[14].Kind)
	assert.Equal(t, etl.KindScalar, cols[0].Kind)

	ts, err := etl.BuildTransformers(job.Transforms)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, &etl.ListingTransform{DescriptionLimit: 200}, ts[0])
}

func TestLoad_InheritsListingColumns(t *testing.T) {
	cfg, err := Load([]byte(`
source: ./feeds/listings.xml
output: out/listings.csv
history: runs.db
timeout: 30s
verify: true
trigger:
  type: schedule
  config: "0 6 * * *"
`))
	require.NoError(t, err)

	assert.Equal(t, "./feeds/listings.xml", cfg.Source)
	assert.Equal(t, "out/listings.csv", cfg.Output)
	assert.Equal(t, "/Listings/Listing", cfg.RecordPath)
	assert.Len(t, cfg.Columns, 16)
	assert.Len(t, cfg.Transforms, 1)
	assert.Equal(t, "runs.db", cfg.History)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.Verify)
	assert.Equal(t, etl.Trigger{Type: etl.TriggerSchedule, Config: "0 6 * * *"}, cfg.Trigger)
}

func TestLoad_CustomColumns(t *testing.T) {
	cfg, err := Load([]byte(`
name: children
record_path: /rootnode/child
columns:
  - {name: first, path: "string(grandchildnode1/text())"}
  - {name: items, path: "grandchildnode3/*/text()", kind: list}
`))
	require.NoError(t, err)

	assert.Equal(t, "children.csv", cfg.Output)
	assert.Nil(t, cfg.Transforms, "custom columns do not inherit the listing transform")
	assert.Nil(t, cfg.OutputColumns)

	spec, err := cfg.ColumnSpec()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "items"}, spec.Names())
	assert.Equal(t, etl.KindList, spec.Columns()[1].Kind)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "columns: [unclosed"},
		{"duplicate column", `
record_path: /a
columns:
  - {name: x, path: "string(a)"}
  - {name: x, path: "string(b)"}
`},
		{"unknown kind", `
record_path: /a
columns:
  - {name: x, path: "string(a)", kind: table}
`},
		{"bad path", `
record_path: /a
columns:
  - {name: x, path: "string(("}
`},
		{"missing record path", `
columns:
  - {name: x, path: "string(a)"}
`},
		{"unknown trigger", "trigger: {type: webhook}"},
		{"schedule without cron", "trigger: {type: schedule}"},
		{"unknown transform", "transforms: [{type: pivot}]"},
		{"bad log level", "log_level: loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: feed.xml\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "feed.xml", cfg.Source)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
