// Package sink implements the append-only CSV output writer.
package sink

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leadharvest/leadharvest/internal/leads"
)

// CSV appends records to a delimiter-separated file. The file is append-only
// across runs; no record is ever rewritten or removed.
type CSV struct {
	path         string
	includePhone bool
}

// NewCSV constructs a sink writing to path. When includePhone is false the
// reduced schema without the phone column is used.
func NewCSV(path string, includePhone bool) *CSV {
	return &CSV{path: path, includePhone: includePhone}
}

func (c *CSV) header() []string {
	if c.includePhone {
		return []string{"name", "phone", "website", "email", "category", "city", "state"}
	}
	return []string{"name", "website", "email", "category", "city", "state"}
}

func (c *CSV) row(r leads.Record) []string {
	if c.includePhone {
		return []string{r.Name, r.Phone, r.Website, r.Email, r.Category, r.City, r.Region}
	}
	return []string{r.Name, r.Website, r.Email, r.Category, r.City, r.Region}
}

// EnsureHeader writes the column header only if the destination is absent or
// empty. Calling it repeatedly never appends a second header.
func (c *CSV) EnsureHeader() error {
	info, err := os.Stat(c.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("stat output file: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	return c.write([][]string{c.header()})
}

// Append serializes the batch and issues a single write call. Fields
// containing the delimiter, a quote or a line break are quoted with doubled
// quotes as the escape (encoding/csv's RFC 4180 behavior). Empty batches are
// a no-op.
func (c *CSV) Append(records []leads.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, c.row(r))
	}
	return c.write(rows)
}

func (c *CSV) write(rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("encode csv rows: %w", err)
	}

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append output rows: %w", err)
	}
	return nil
}
