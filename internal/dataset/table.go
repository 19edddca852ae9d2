package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"uplift/internal/services"
)

// Required panel columns.
const (
	ColEntityID    = "entity_id"
	ColPeriodStart = "period_start"
)

// Table is a columnar view of an uploaded panel. Cells stay as raw strings
// until a consumer parses them; one upload is validated once and the parsed
// forms are derived downstream.
type Table struct {
	Columns []string   `json:"columns"`
	Records [][]string `json:"records"`
}

// ReadCSV parses an uploaded CSV into a Table. The first row is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "dataset", "read csv", "missing header row", err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}

	var records [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "dataset", "read csv", fmt.Sprintf("row %d", len(records)+2), err)
		}
		records = append(records, row)
	}
	return &Table{Columns: columns, Records: records}, nil
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int { return len(t.Records) }

// ColumnIndex returns the position of a named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table contains the named column.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) >= 0 }

// Cell returns the raw cell value, or "" when out of range.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Records) || col < 0 || col >= len(t.Records[row]) {
		return ""
	}
	return strings.TrimSpace(t.Records[row][col])
}

// periodLayouts are accepted period_start formats, tried in order.
var periodLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// ParsePeriod parses a period_start cell into a UTC timestamp.
func ParsePeriod(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty period value")
	}
	for _, layout := range periodLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable period value %q", trimmed)
}

// ParseNumeric parses a numeric cell. Empty cells report ok=false so callers
// can apply their own missing-value policy.
func ParseNumeric(value string) (float64, bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, false, nil
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false, err
	}
	return parsed, true, nil
}
