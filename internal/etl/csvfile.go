package etl

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ── CSV read-back ──────────────────────────────────────────
// Reads an exported file back into a Table, for verification.

// ReadCSV parses CSV with a header row. Blank fields become missing and
// numeric-looking fields become numbers; everything else stays text.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty csv file")
	}

	headers := records[0]
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if seen[h] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, h)
		}
		seen[h] = true
	}

	t := NewTable(headers)
	for _, rec := range records[1:] {
		row := make(Row, len(headers))
		for j, field := range rec {
			row[j] = inferCSVValue(field)
		}
		if err := t.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// inferCSVValue maps a field to missing, a number, or text. Only finite
// decimal literals become numbers; words such as "NaN" or "Inf" stay text.
func inferCSVValue(s string) Cell {
	if s == "" {
		return Missing()
	}
	if !looksNumeric(s) {
		return Text(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Text(s)
	}
	return Number(f)
}

// looksNumeric reports whether s starts like a decimal literal and holds
// only digits, signs, dots and exponent markers.
func looksNumeric(s string) bool {
	switch c := s[0]; {
	case c >= '0' && c <= '9', c == '+', c == '-', c == '.':
	default:
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c == '+', c == '-', c == '.', c == 'e', c == 'E':
		default:
			return false
		}
	}
	return true
}

// ErrVerifyMismatch is returned when a written file does not read back
// to the table it was written from.
var ErrVerifyMismatch = errors.New("output does not match table")

// VerifyCSV re-reads path and checks it holds the given columns of want,
// row by row. Cells compare equal when their text matches or when both
// read as the same number, so "535000.00" and 535000 agree.
func VerifyCSV(path string, want *Table, columns []string) error {
	if len(columns) == 0 {
		columns = want.Columns()
	}
	expected, err := project(want, columns, "verify")
	if err != nil {
		return err
	}
	got, err := ReadCSVFile(path)
	if err != nil {
		return err
	}

	gotCols := got.Columns()
	if strings.Join(gotCols, "\x00") != strings.Join(columns, "\x00") {
		return fmt.Errorf("%w: header %v, want %v", ErrVerifyMismatch, gotCols, columns)
	}
	if got.RowCount() != expected.RowCount() {
		return fmt.Errorf("%w: %d rows, want %d", ErrVerifyMismatch, got.RowCount(), expected.RowCount())
	}
	for i := 0; i < expected.RowCount(); i++ {
		for j, name := range columns {
			a := expected.rows[i][j]
			b := got.rows[i][j]
			if !sameCell(a, b) {
				return fmt.Errorf("%w: row %d column %q: %q, want %q", ErrVerifyMismatch, i, name, b.String(), a.String())
			}
		}
	}
	return nil
}

func sameCell(a, b Cell) bool {
	if a.IsMissing() || b.IsMissing() {
		// An empty text cell is written as a blank field.
		return a.String() == "" && b.String() == ""
	}
	if a.String() == b.String() {
		return true
	}
	fa, okA := a.Float()
	fb, okB := b.Float()
	return okA && okB && fa == fb
}
