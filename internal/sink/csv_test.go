package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leadharvest/leadharvest/internal/leads"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestEnsureHeaderIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	c := NewCSV(path, true)

	require.NoError(t, c.EnsureHeader())
	require.NoError(t, c.EnsureHeader())

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	require.Equal(t, "name,phone,website,email,category,city,state", lines[0])
}

func TestEnsureHeaderSkipsNonEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	c := NewCSV(path, true)
	require.NoError(t, c.EnsureHeader())
	require.NoError(t, c.Append([]leads.Record{{Name: "Biz", Category: "bakeries", City: "Springfield", Region: "IL"}}))

	require.NoError(t, c.EnsureHeader())
	lines := readLines(t, path)
	require.Len(t, lines, 2)
	require.Equal(t, "name,phone,website,email,category,city,state", lines[0])
}

func TestAppendQuotesSpecialFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	c := NewCSV(path, true)
	require.NoError(t, c.EnsureHeader())
	require.NoError(t, c.Append([]leads.Record{{
		Name:     `Joe's "Best" Bagels, Inc.`,
		Phone:    "555-0100",
		Email:    "joe@bagels.com",
		Category: "bakeries",
		City:     "Springfield",
		Region:   "IL",
	}}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, `Joe's "Best" Bagels, Inc.`, rows[1][0])
}

func TestAppendEmptyBatchNoOp(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	c := NewCSV(path, true)
	require.NoError(t, c.Append(nil))

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestReducedSchemaOmitsPhone(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	c := NewCSV(path, false)
	require.NoError(t, c.EnsureHeader())
	require.NoError(t, c.Append([]leads.Record{{
		Name: "Biz", Phone: "should-not-appear", Email: "a@b.co",
		Category: "bakeries", City: "Springfield", Region: "IL",
	}}))

	lines := readLines(t, path)
	require.Equal(t, "name,website,email,category,city,state", lines[0])
	require.NotContains(t, lines[1], "should-not-appear")
}

func TestAppendAccumulatesAcrossRuns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")

	first := NewCSV(path, true)
	require.NoError(t, first.EnsureHeader())
	require.NoError(t, first.Append([]leads.Record{{Name: "A"}}))

	second := NewCSV(path, true)
	require.NoError(t, second.EnsureHeader())
	require.NoError(t, second.Append([]leads.Record{{Name: "B"}}))

	lines := readLines(t, path)
	require.Len(t, lines, 3)
}
