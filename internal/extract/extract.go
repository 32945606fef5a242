// Package extract reads the raw sales CSV into untyped cells.
//
// Extraction is an input collaborator of the merge core: it produces string
// cells for the transform step and reports its own failures as
// extraction-layer errors, never as core errors.
package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// RequiredColumns is the header set the source file must provide.
// A revenue column may be present but is ignored; revenue is always
// recomputed downstream.
var RequiredColumns = []string{
	"order_id", "order_date", "customer_id", "product", "quantity", "price",
}

// Table holds the raw extracted cells keyed by normalized column name.
type Table struct {
	// Columns is the header row after normalization.
	Columns []string

	// Rows holds one string slice per data row, aligned with Columns.
	Rows [][]string

	// FirstRow is the 1-based file row number of the first data row.
	FirstRow int
}

// Column returns the index of the named column, or -1 if absent.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Extract reads the CSV file at path and returns its raw cells.
//
// The reader tolerates a UTF-8 byte order mark (files exported as
// "utf-8-sig") and repairs the Excel corruption where an entire row is packed
// into a single quoted column by re-splitting on commas.
func Extract(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	// Strip a UTF-8 BOM if present; files saved by Excel often carry one.
	dec := unicode.UTF8BOM.NewDecoder()
	r := csv.NewReader(transform.NewReader(f, dec))
	r.FieldsPerRecord = -1 // row widths are validated after normalization
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read source file %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("source file %s is empty", path)
	}

	header := normalizeHeader(records[0])
	rows := records[1:]

	// Excel corruption: the whole row lands in one quoted cell. Detect it on
	// the header (commas inside a one or two column header) and re-split every row.
	if len(header) <= 2 && strings.Contains(header[0], ",") {
		slog.Warn("malformed csv structure detected, re-splitting columns",
			"path", path)
		header = normalizeHeader(strings.Split(header[0], ","))
		for i, row := range rows {
			if len(row) > 0 {
				rows[i] = strings.Split(row[0], ",")
			}
		}
	}

	if err := checkSchema(header); err != nil {
		return nil, err
	}

	slog.Info("extraction complete",
		"path", path, "rows", len(rows), "columns", len(header))

	return &Table{Columns: header, Rows: rows, FirstRow: 2}, nil
}

// normalizeHeader trims whitespace and lowercases column names.
func normalizeHeader(raw []string) []string {
	cols := make([]string, len(raw))
	for i, c := range raw {
		cols[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return cols
}

// checkSchema verifies every required column is present.
func checkSchema(header []string) error {
	present := make(map[string]bool, len(header))
	for _, c := range header {
		present[c] = true
	}

	var missing []string
	for _, c := range RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("source schema mismatch: missing columns %v, got %v",
			missing, header)
	}
	return nil
}

// Cell returns the trimmed value of the named column in the given row.
// Returns the empty string when the column is absent or the row is short.
func (t *Table) Cell(row int, name string) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	col := t.Column(name)
	cells := t.Rows[row]
	if col < 0 || col >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[col])
}

// ErrEmptySource reports an extracted table with no data rows.
var ErrEmptySource = errors.New("source contains no data rows")

// EnsureRows returns ErrEmptySource when the table has a header but no data.
func (t *Table) EnsureRows() error {
	if len(t.Rows) == 0 {
		return ErrEmptySource
	}
	return nil
}
