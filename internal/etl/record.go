package etl

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/antchfx/xpath"
)

// ── Column Specification ───────────────────────────────────
// A column spec is configuration, not code: an ordered list of
// (name, path, kind) triples validated once when it is built.

// Kind is the value shape a column's path is declared to produce.
type Kind int

const (
	// KindScalar columns yield exactly one text or numeric atom per record.
	KindScalar Kind = iota
	// KindList columns yield zero or more text nodes, joined with a comma.
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts "scalar" or "list" (any case) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scalar":
		return KindScalar, nil
	case "list":
		return KindList, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if k != KindScalar && k != KindList {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names ParseKind accepts.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Column describes how to pull one field out of a record node.
type Column struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Kind Kind   `json:"kind"`
}

// ColumnSpec is an ordered, validated list of columns.
// The zero value is an empty spec.
type ColumnSpec struct {
	columns []Column
}

// NewColumnSpec validates cols and returns them as a spec.
// Names must be unique and non-empty, kinds known, and every path must compile.
func NewColumnSpec(cols ...Column) (ColumnSpec, error) {
	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		if c.Name == "" {
			return ColumnSpec{}, fmt.Errorf("column %d: %w", i, ErrEmptyColumnName)
		}
		if seen[c.Name] {
			return ColumnSpec{}, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
		}
		seen[c.Name] = true
		if c.Kind != KindScalar && c.Kind != KindList {
			return ColumnSpec{}, fmt.Errorf("column %q: %w: %s", c.Name, ErrUnknownKind, c.Kind)
		}
		if _, err := xpath.Compile(c.Path); err != nil {
			return ColumnSpec{}, fmt.Errorf("column %q: %w: %v", c.Name, ErrInvalidPath, err)
		}
	}
	spec := ColumnSpec{columns: make([]Column, len(cols))}
	copy(spec.columns, cols)
	return spec, nil
}

// MustColumnSpec is like NewColumnSpec but panics on an invalid spec.
func MustColumnSpec(cols ...Column) ColumnSpec {
	spec, err := NewColumnSpec(cols...)
	if err != nil {
		panic(err)
	}
	return spec
}

// Len returns the number of columns.
func (s ColumnSpec) Len() int { return len(s.columns) }

// Columns returns a copy of the columns in declared order.
func (s ColumnSpec) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Names returns the column names in declared order.
func (s ColumnSpec) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// ── Cell ───────────────────────────────────────────────────

type cellKind uint8

const (
	cellMissing cellKind = iota
	cellText
	cellNumber
)

// Cell is one table value: missing, text, or a number.
// Missing is distinct from empty text.
type Cell struct {
	kind cellKind
	text string
	num  float64
}

// Missing returns the absence marker.
func Missing() Cell { return Cell{} }

// Text returns a text cell. The empty string is kept as-is.
func Text(s string) Cell { return Cell{kind: cellText, text: s} }

// Number returns a numeric cell. NaN collapses to Missing.
func Number(f float64) Cell {
	if math.IsNaN(f) {
		return Missing()
	}
	return Cell{kind: cellNumber, num: f}
}

// IsMissing reports whether c is the absence marker.
func (c Cell) IsMissing() bool { return c.kind == cellMissing }

// IsNumber reports whether c holds a number.
func (c Cell) IsNumber() bool { return c.kind == cellNumber }

// TextValue returns the text of a text cell.
func (c Cell) TextValue() (string, bool) {
	return c.text, c.kind == cellText
}

// NumberValue returns the value of a numeric cell.
func (c Cell) NumberValue() (float64, bool) {
	return c.num, c.kind == cellNumber
}

// Float interprets c as a number. Text is parsed; missing yields false.
func (c Cell) Float() (float64, bool) {
	switch c.kind {
	case cellNumber:
		return c.num, true
	case cellText:
		f, err := strconv.ParseFloat(strings.TrimSpace(c.text), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// String renders c the way it is written to CSV: missing is empty,
// numbers use the shortest decimal form.
func (c Cell) String() string {
	switch c.kind {
	case cellText:
		return c.text
	case cellNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes missing as null, text as a string, numbers as numbers.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case cellText:
		return json.Marshal(c.text)
	case cellNumber:
		if math.IsInf(c.num, 0) {
			return json.Marshal(c.String())
		}
		return json.Marshal(c.num)
	default:
		return []byte("null"), nil
	}
}

// ── Table ──────────────────────────────────────────────────

// Row is one record's cells in column order.
type Row []Cell

// Table is a rectangular set of rows with named columns.
// Column names are unique; every row has one cell per column.
type Table struct {
	columns []string
	index   map[string]int
	rows    []Row
}

// NewTable creates an empty table with the given column names.
func NewTable(columns []string) *Table {
	t := &Table{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	copy(t.columns, columns)
	for i, name := range columns {
		if _, ok := t.index[name]; !ok {
			t.index[name] = i
		}
	}
	return t
}

// Columns returns a copy of the column names.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int { return len(t.rows) }

// ColCount returns the number of columns.
func (t *Table) ColCount() int { return len(t.columns) }

// ColumnIndex returns the position of a named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AppendRow adds a row. The row must have exactly one cell per column.
func (t *Table) AppendRow(r Row) error {
	if len(r) != len(t.columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(r), len(t.columns))
	}
	row := make(Row, len(r))
	copy(row, r)
	t.rows = append(t.rows, row)
	return nil
}

// Row returns a copy of row i.
func (t *Table) Row(i int) Row {
	row := make(Row, len(t.rows[i]))
	copy(row, t.rows[i])
	return row
}

// Cell returns the cell at row i in the named column.
func (t *Table) Cell(i int, name string) (Cell, bool) {
	j, ok := t.index[name]
	if !ok || i < 0 || i >= len(t.rows) {
		return Cell{}, false
	}
	return t.rows[i][j], true
}

// Head returns a new table holding at most n leading rows.
func (t *Table) Head(n int) *Table {
	out := NewTable(t.columns)
	if n > len(t.rows) {
		n = len(t.rows)
	}
	for i := 0; i < n; i++ {
		out.rows = append(out.rows, t.Row(i))
	}
	return out
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [[...]]}.
func (t *Table) MarshalJSON() ([]byte, error) {
	rows := t.rows
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(struct {
		Columns []string `json:"columns"`
		Rows    []Row    `json:"rows"`
	}{Columns: t.columns, Rows: rows})
}
