package renderer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapview/pkg/core"
)

// DateLayout is the display layout of DATE columns.
const DateLayout = "2006-01-02"

// NullText is shown for NULL values.
const NullText = "NULL"

// GridColumn is one column of the result grid.
type GridColumn struct {
	// Field is the row key; empty for the row-number column.
	Field string
	Title string
	// Type is the engine type, shown as the header tooltip.
	Type string
	// RowNumber marks the synthetic leading column.
	RowNumber bool
	// Frozen columns stay visible when scrolling horizontally.
	Frozen bool
}

// Grid holds the columns and accumulated rows of the current query.
type Grid struct {
	Columns []GridColumn
	Rows    []core.Row
}

func newGrid(describe []core.Column, rows []core.Row) Grid {
	cols := make([]GridColumn, 0, len(describe)+1)
	cols = append(cols, GridColumn{Title: "#", RowNumber: true, Frozen: true})
	for _, c := range describe {
		cols = append(cols, GridColumn{Field: c.Name, Title: c.Name, Type: c.Type})
	}
	return Grid{
		Columns: cols,
		Rows:    append([]core.Row(nil), rows...),
	}
}

// Len returns the number of rows.
func (g Grid) Len() int { return len(g.Rows) }

// Cell returns the display text of the cell at row, col.
func (g Grid) Cell(row, col int) string {
	c := g.Columns[col]
	if c.RowNumber {
		return strconv.Itoa(row + 1)
	}
	return c.Format(g.Rows[row][c.Field])
}

// Record returns the display text of every cell in row.
func (g Grid) Record(row int) []string {
	out := make([]string, len(g.Columns))
	for i := range g.Columns {
		out[i] = g.Cell(row, i)
	}
	return out
}

// Titles returns the column headers.
func (g Grid) Titles() []string {
	out := make([]string, len(g.Columns))
	for i, c := range g.Columns {
		out[i] = c.Title
	}
	return out
}

// Format renders v for this column. DATE values are shown as yyyy-MM-dd in
// UTC whether they arrive as time.Time or as ISO-8601 text.
func (c GridColumn) Format(v any) string {
	if c.Type == "DATE" {
		if s, ok := formatDate(v); ok {
			return s
		}
	}
	return formatValue(v)
}

func formatDate(v any) (string, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(DateLayout), true
	case string:
		for _, layout := range []string{time.RFC3339Nano, DateLayout} {
			if t, err := time.Parse(layout, x); err == nil {
				return t.UTC().Format(DateLayout), true
			}
		}
	}
	return "", false
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return NullText
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
