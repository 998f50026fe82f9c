package etl_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"listingexport/internal/etl"
)

// ─────────────────────────────────────────────────────────────
// Shared fixtures
// ─────────────────────────────────────────────────────────────

const (
	testRecordPath    = "/rootnode/child"
	listingRecordPath = "/Listings/Listing"
)

func testColumns() []etl.Column {
	return []etl.Column{
		{Name: "grandchildnode1", Path: "string(grandchildnode1/text())", Kind: etl.KindScalar},
		{Name: "grandchildnode2", Path: "string(grandchildnode2/text())", Kind: etl.KindScalar},
		{Name: "grandchildnode3", Path: "grandchildnode3/*/text()", Kind: etl.KindList},
	}
}

func testSpec(t *testing.T) etl.ColumnSpec {
	t.Helper()
	spec, err := etl.NewColumnSpec(testColumns()...)
	require.NoError(t, err)
	return spec
}

func listingSpec() etl.ColumnSpec {
	return etl.MustColumnSpec(
		etl.Column{Name: "MlsId", Path: "string(ListingDetails/MlsId/text())"},
		etl.Column{Name: "MlsName", Path: "string(ListingDetails/MlsName/text())"},
		etl.Column{Name: "DateListed", Path: "string(ListingDetails/DateListed/text())"},
		etl.Column{Name: "StreetAddress", Path: "string(Location/StreetAddress/text())"},
		etl.Column{Name: "City", Path: "string(Location/City/text())"},
		etl.Column{Name: "State", Path: "string(Location/State/text())"},
		etl.Column{Name: "Zip", Path: "string(Location/Zip/text())"},
		etl.Column{Name: "Price", Path: "string(ListingDetails/Price/text())"},
		etl.Column{Name: "Bedrooms", Path: "number(BasicDetails/Bedrooms/text())"},
		etl.Column{Name: "Bathrooms_raw", Path: "number(BasicDetails/Bathrooms/text())"},
		etl.Column{Name: "FullBathrooms", Path: "number(BasicDetails/FullBathrooms/text())"},
		etl.Column{Name: "HalfBathrooms", Path: "number(BasicDetails/HalfBathrooms/text())"},
		etl.Column{Name: "ThreeQuarterBathrooms", Path: "string(BasicDetails/ThreeQuarterBathrooms/text())"},
		etl.Column{Name: "Full_Description", Path: "string(BasicDetails/Description/text())"},
		etl.Column{Name: "Appliances", Path: "RichDetails/Appliances/*/text()", Kind: etl.KindList},
		etl.Column{Name: "Rooms", Path: "RichDetails/Rooms/*/text()", Kind: etl.KindList},
	)
}

var listingOutputColumns = []string{
	"MlsId", "MlsName", "DateListed", "StreetAddress", "Price",
	"Bedrooms", "Bathrooms", "Appliances", "Rooms", "Description",
}

func openFixture(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func extractFixture(t *testing.T, name, recordPath string, spec etl.ColumnSpec) *etl.Table {
	t.Helper()
	table, err := etl.Extract(openFixture(t, name), recordPath, spec)
	require.NoError(t, err)
	return table
}

// cell fetches a cell that must exist.
func cell(t *testing.T, table *etl.Table, row int, name string) etl.Cell {
	t.Helper()
	c, ok := table.Cell(row, name)
	require.True(t, ok, "no cell at row %d column %q", row, name)
	return c
}

func fixturePath(t *testing.T, name string) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return p
}
