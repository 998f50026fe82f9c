package etl

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ── Destination ────────────────────────────────────────────
// A Destination writes a finished table to its target.
// The only destination is a flat CSV file.

// Destination writes the given columns of a table to target.
// It returns the number of data rows written.
type Destination interface {
	Write(ctx context.Context, target string, table *Table, columns []string) (int, error)
}

// ── CSV Destination ────────────────────────────────────────

// CSVWriter implements Destination for CSV files. The file is written to a
// temporary sibling and renamed into place, so a failed run never leaves a
// truncated file behind.
type CSVWriter struct {
	Perm os.FileMode // 0 means 0644
}

func (w *CSVWriter) Write(ctx context.Context, target string, table *Table, columns []string) (int, error) {
	if target == "" {
		return 0, fmt.Errorf("csv: no output path")
	}
	if len(columns) == 0 {
		columns = table.Columns()
	}
	projected, err := project(table, columns, "load")
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := EncodeCSV(ctx, tmp, projected); err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}

	perm := w.Perm
	if perm == 0 {
		perm = 0o644
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return 0, fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return 0, fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return projected.RowCount(), nil
}

// EncodeCSV writes a header row followed by every row of t.
// Missing cells become empty fields.
func EncodeCSV(ctx context.Context, w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(t.columns))
	for i, row := range t.rows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		for j, c := range row {
			record[j] = c.String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
