package etl

import (
	"fmt"
	"math"
	"strconv"
)

// ── Transformer ────────────────────────────────────────────
// Transformers derive a new table from an extracted one. They never
// modify their input; each returns a fresh table.

// Transformer turns one table into another.
type Transformer interface {
	Transform(*Table) (*Table, error)
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(*Table) (*Table, error)

func (f TransformerFunc) Transform(t *Table) (*Table, error) { return f(t) }

// ApplyTransformers runs a chain of transformers in order.
func ApplyTransformers(t *Table, ts []Transformer) (*Table, error) {
	for _, tr := range ts {
		var err error
		t, err = tr.Transform(t)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ── Listing Transform ──────────────────────────────────────

// Column names the listing transform reads and writes.
const (
	ColStreetAddress         = "StreetAddress"
	ColBathroomsRaw          = "Bathrooms_raw"
	ColFullBathrooms         = "FullBathrooms"
	ColHalfBathrooms         = "HalfBathrooms"
	ColThreeQuarterBathrooms = "ThreeQuarterBathrooms"
	ColFullDescription       = "Full_Description"
	ColAppliances            = "Appliances"
	ColRooms                 = "Rooms"

	ColBathrooms   = "Bathrooms"
	ColDescription = "Description"
)

// DefaultDescriptionLimit is the number of characters kept in Description.
const DefaultDescriptionLimit = 200

var listingRequired = []string{
	ColStreetAddress,
	ColBathroomsRaw,
	ColFullBathrooms,
	ColHalfBathrooms,
	ColThreeQuarterBathrooms,
	ColFullDescription,
	ColAppliances,
	ColRooms,
}

// ListingTransform derives Bathrooms and Description for listing feeds.
//
// Bathrooms is the raw count when present. Otherwise full, half and
// three-quarter baths each count as one whole bathroom; a zero total is
// missing. Description is Full_Description cut to DescriptionLimit
// characters, with a missing description treated as empty.
type ListingTransform struct {
	DescriptionLimit int // 0 means DefaultDescriptionLimit
}

func (lt *ListingTransform) Transform(in *Table) (*Table, error) {
	for _, f := range listingRequired {
		if !in.HasColumn(f) {
			return nil, &MissingFieldError{Field: f, Stage: "transform"}
		}
	}
	limit := lt.DescriptionLimit
	if limit <= 0 {
		limit = DefaultDescriptionLimit
	}

	cols := in.Columns()
	for _, name := range []string{ColBathrooms, ColDescription} {
		if !in.HasColumn(name) {
			cols = append(cols, name)
		}
	}
	out := NewTable(cols)
	bathIdx, _ := out.ColumnIndex(ColBathrooms)
	descIdx, _ := out.ColumnIndex(ColDescription)
	addrIdx, _ := out.ColumnIndex(ColStreetAddress)
	fullDescIdx, _ := out.ColumnIndex(ColFullDescription)

	for i := 0; i < in.RowCount(); i++ {
		row := make(Row, len(cols))
		copy(row, in.rows[i])

		if row[addrIdx].IsMissing() {
			row[addrIdx] = Text("")
		}
		if row[fullDescIdx].IsMissing() {
			row[fullDescIdx] = Text("")
		}

		baths, err := bathrooms(in, i)
		if err != nil {
			return nil, err
		}
		row[bathIdx] = baths
		row[descIdx] = Text(truncate(row[fullDescIdx].String(), limit))

		if err := out.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// bathrooms computes the unified bathroom count for row i.
func bathrooms(t *Table, i int) (Cell, error) {
	raw, _ := t.Cell(i, ColBathroomsRaw)
	if !raw.IsMissing() {
		return raw, nil
	}

	sum := 0
	for _, f := range []string{ColFullBathrooms, ColHalfBathrooms, ColThreeQuarterBathrooms} {
		c, _ := t.Cell(i, f)
		n, err := wholeCount(f, c)
		if err != nil {
			return Cell{}, err
		}
		sum += n
	}
	if sum == 0 {
		return Missing(), nil
	}
	return Number(float64(sum)), nil
}

// maxSubCount bounds each sub-count so the sum of three stays in range
// and converts to float64 exactly.
const maxSubCount = 1 << 50

// wholeCount reads a sub-count as an integer, truncating toward zero.
// Missing counts as zero.
func wholeCount(field string, c Cell) (int, error) {
	if c.IsMissing() {
		return 0, nil
	}
	f, ok := c.Float()
	if !ok {
		return 0, &FieldValueError{Field: field, Value: c.String(), Err: strconv.ErrSyntax}
	}
	if math.IsNaN(f) {
		return 0, &FieldValueError{Field: field, Value: c.String(), Err: strconv.ErrSyntax}
	}
	f = math.Trunc(f)
	if math.Abs(f) > maxSubCount {
		return 0, &FieldValueError{Field: field, Value: c.String(), Err: strconv.ErrRange}
	}
	return int(f), nil
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ── Select / Rename ────────────────────────────────────────

// SelectTransform keeps only the named columns, in the given order.
// Asking for a column the table lacks is an error.
type SelectTransform struct {
	Fields []string
}

func (st *SelectTransform) Transform(in *Table) (*Table, error) {
	return project(in, st.Fields, "transform")
}

func project(in *Table, fields []string, stage string) (*Table, error) {
	idx := make([]int, len(fields))
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		j, ok := in.ColumnIndex(f)
		if !ok {
			return nil, &MissingFieldError{Field: f, Stage: stage}
		}
		if seen[f] {
			return nil, fmt.Errorf("%s: %w: %q", stage, ErrDuplicateColumn, f)
		}
		seen[f] = true
		idx[i] = j
	}

	out := NewTable(fields)
	for _, src := range in.rows {
		row := make(Row, len(idx))
		for i, j := range idx {
			row[i] = src[j]
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

// RenameTransform renames columns. Names not present are ignored.
type RenameTransform struct {
	Mapping map[string]string // oldName → newName
}

func (rt *RenameTransform) Transform(in *Table) (*Table, error) {
	cols := in.Columns()
	for i, name := range cols {
		if to, ok := rt.Mapping[name]; ok {
			cols[i] = to
		}
	}
	seen := make(map[string]bool, len(cols))
	for _, name := range cols {
		if seen[name] {
			return nil, fmt.Errorf("rename: %w: %q", ErrDuplicateColumn, name)
		}
		seen[name] = true
	}

	out := NewTable(cols)
	for i := range in.rows {
		out.rows = append(out.rows, in.Row(i))
	}
	return out, nil
}
