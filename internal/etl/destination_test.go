package etl_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingexport/internal/etl"
)

// ─────────────────────────────────────────────────────────────
// CSV destination
// ─────────────────────────────────────────────────────────────

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func writeListings(t *testing.T) (string, *etl.Table) {
	t.Helper()
	table := transformListings(t)
	path := filepath.Join(t.TempDir(), "zillow.csv")

	n, err := (&etl.CSVWriter{}).Write(context.Background(), path, table, listingOutputColumns)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	return path, table
}

func TestCSVWriter_HeaderAndRows(t *testing.T) {
	path, _ := writeListings(t)

	records := readRecords(t, path)
	require.Len(t, records, 4)
	assert.Equal(t, listingOutputColumns, records[0])

	first := records[1]
	assert.Equal(t, "14799273", first[0])
	assert.Equal(t, "535000.00", first[4])
	assert.Equal(t, "0", first[5])
	assert.Equal(t, "3.5", first[6])
	assert.Equal(t, "Dishwasher,Refrigerator", first[7])
	assert.Equal(t, "", first[8], "missing list is an empty field")
	assert.Len(t, []rune(first[9]), 200)

	assert.Equal(t, "3", records[2][6])
	assert.Equal(t, "", records[3][6], "missing bathrooms is an empty field")
}

func TestCSVWriter_QuotesOnlyWhenNeeded(t *testing.T) {
	path, _ := writeListings(t)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(listingOutputColumns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `14799273,CLAW,2014-10-03 00:00:00,0 Castro Peak Mountainway,535000.00,0,3.5,"Dishwasher,Refrigerator",,"Enjoy`))
}

func TestCSVWriter_ProjectionFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0o644))

	table := transformListings(t)
	_, err := (&etl.CSVWriter{}).Write(context.Background(), path, table, []string{"MlsId", "Garage"})

	var mf *etl.MissingFieldError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "Garage", mf.Field)
	assert.Equal(t, "load", mf.Stage)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(data), "existing output is untouched")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestCSVWriter_ZeroRowsWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	table := etl.NewTable([]string{"a", "b"})

	n, err := (&etl.CSVWriter{}).Write(context.Background(), path, table, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

func TestCSVWriter_NoColumnsMeansAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.csv")
	table := extractFixture(t, "test.xml", testRecordPath, testSpec(t))

	_, err := (&etl.CSVWriter{}).Write(context.Background(), path, table, nil)
	require.NoError(t, err)

	records := readRecords(t, path)
	assert.Equal(t, table.Columns(), records[0])
	assert.Equal(t, []string{"8", "", ""}, records[3])
}

func TestCSVWriter_NoTarget(t *testing.T) {
	_, err := (&etl.CSVWriter{}).Write(context.Background(), "", etl.NewTable(nil), nil)
	assert.Error(t, err)
}

func TestCSVWriter_Perm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "private.csv")

	_, err := (&etl.CSVWriter{Perm: 0o600}).Write(context.Background(), path, etl.NewTable([]string{"a"}), nil)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestEncodeCSV_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sb strings.Builder
	err := etl.EncodeCSV(ctx, &sb, extractFixture(t, "test.xml", testRecordPath, testSpec(t)))
	assert.ErrorIs(t, err, context.Canceled)
}

// ─────────────────────────────────────────────────────────────
// Read-back and verification
// ─────────────────────────────────────────────────────────────

func TestReadCSV_InfersCells(t *testing.T) {
	table, err := etl.ReadCSV(strings.NewReader("id,price,name\n7,535000.00,\n8,x,Bob\n"))
	require.NoError(t, err)

	require.Equal(t, 2, table.RowCount())
	n, ok := cell(t, table, 0, "price").NumberValue()
	require.True(t, ok)
	assert.Equal(t, 535000.0, n)
	assert.True(t, cell(t, table, 0, "name").IsMissing())
	assert.Equal(t, "Bob", cell(t, table, 1, "name").String())
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := etl.ReadCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = etl.ReadCSV(strings.NewReader("a,a\n1,2\n"))
	assert.ErrorIs(t, err, etl.ErrDuplicateColumn)
}

func TestReadCSV_NumberLikeWordsStayText(t *testing.T) {
	table, err := etl.ReadCSV(strings.NewReader("v\nNan\ninf\nInfinity\n-NaN\n 12\n0x1p3\n1_000\n-2.5e3\n"))
	require.NoError(t, err)

	want := []struct {
		text   string
		number bool
	}{
		{"Nan", false},
		{"inf", false},
		{"Infinity", false},
		{"-NaN", false},
		{" 12", false},
		{"0x1p3", false},
		{"1_000", false},
		{"-2500", true},
	}
	require.Equal(t, len(want), table.RowCount())
	for i, w := range want {
		c := cell(t, table, i, "v")
		assert.False(t, c.IsMissing(), "row %d", i)
		assert.Equal(t, w.number, c.IsNumber(), "row %d", i)
		assert.Equal(t, w.text, c.String(), "row %d", i)
	}
}

func TestVerifyCSV_RoundTrip(t *testing.T) {
	path, table := writeListings(t)
	assert.NoError(t, etl.VerifyCSV(path, table, listingOutputColumns))

	words := etl.NewTable([]string{"City", "State", "Zip"})
	require.NoError(t, words.AppendRow(etl.Row{etl.Text("Nan"), etl.Text("INF"), etl.Text("-infinity")}))
	require.NoError(t, words.AppendRow(etl.Row{etl.Text("Ojai"), etl.Missing(), etl.Number(93023)}))
	path = filepath.Join(t.TempDir(), "words.csv")
	_, err := (&etl.CSVWriter{}).Write(context.Background(), path, words, nil)
	require.NoError(t, err)

	assert.NoError(t, etl.VerifyCSV(path, words, nil))
	back, err := etl.ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Nan", cell(t, back, 0, "City").String())
	assert.False(t, cell(t, back, 0, "City").IsMissing())
}

func TestVerifyCSV_DetectsChanges(t *testing.T) {
	path, table := writeListings(t)

	records := readRecords(t, path)
	records[2][6] = "4"
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(records))
	require.NoError(t, f.Close())

	err = etl.VerifyCSV(path, table, listingOutputColumns)
	assert.ErrorIs(t, err, etl.ErrVerifyMismatch)
	assert.Contains(t, err.Error(), "Bathrooms")
}

func TestVerifyCSV_DetectsHeaderMismatch(t *testing.T) {
	path, table := writeListings(t)

	err := etl.VerifyCSV(path, table, []string{"MlsId"})
	assert.ErrorIs(t, err, etl.ErrVerifyMismatch)
}
