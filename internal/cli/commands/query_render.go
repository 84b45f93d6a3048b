package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/leapstack-labs/leapview/internal/renderer"
	"github.com/leapstack-labs/leapview/pkg/core"
)

// Output formats of the query command.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

// renderGrid writes rows [from, grid.Len()) of grid in format.
// The row-number column carries absolute positions, so a page rendered
// after .more continues the numbering.
func renderGrid(w io.Writer, grid renderer.Grid, from int, format string) error {
	if from < 0 || from > grid.Len() {
		from = grid.Len()
	}

	switch format {
	case FormatJSON:
		return renderJSON(w, grid, from)
	case FormatCSV:
		return renderCSV(w, grid, from)
	case FormatMarkdown, "markdown":
		return renderMarkdown(w, grid, from)
	default:
		return renderTable(w, grid, from)
	}
}

func renderTable(w io.Writer, grid renderer.Grid, from int) error {
	if grid.Len()-from == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(grid.Columns))
	for i, title := range grid.Titles() {
		header[i] = title
	}
	t.AppendHeader(header)

	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})

	for i := from; i < grid.Len(); i++ {
		record := grid.Record(i)
		row := make(table.Row, len(record))
		for j, cell := range record {
			row[j] = cell
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", grid.Len()-from)
	return nil
}

func renderJSON(w io.Writer, grid renderer.Grid, from int) error {
	rows := grid.Rows[from:]
	if rows == nil {
		rows = []core.Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func renderCSV(w io.Writer, grid renderer.Grid, from int) error {
	fields := dataColumns(grid)
	if from == 0 {
		titles := make([]string, len(fields))
		for i, c := range fields {
			titles[i] = escapeCSV(c.Title)
		}
		_, _ = fmt.Fprintln(w, strings.Join(titles, ","))
	}

	for i := from; i < grid.Len(); i++ {
		values := make([]string, len(fields))
		for j, c := range fields {
			values[j] = escapeCSV(c.Format(grid.Rows[i][c.Field]))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func renderMarkdown(w io.Writer, grid renderer.Grid, from int) error {
	if grid.Len()-from == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(grid.Titles(), " | "))
	seps := make([]string, len(grid.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for i := from; i < grid.Len(); i++ {
		record := grid.Record(i)
		for j, cell := range record {
			record[j] = strings.ReplaceAll(cell, "|", `\|`)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(record, " | "))
	}
	return nil
}

// renderSchema writes the column names and engine types of grid.
func renderSchema(w io.Writer, grid renderer.Grid, format string) error {
	fields := dataColumns(grid)
	if format == FormatJSON {
		cols := make([]core.Column, len(fields))
		for i, c := range fields {
			cols[i] = core.Column{Name: c.Field, Type: c.Type}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cols)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Type"})
	for _, c := range fields {
		t.AppendRow(table.Row{c.Field, c.Type})
	}
	t.Render()
	return nil
}

func dataColumns(grid renderer.Grid) []renderer.GridColumn {
	out := make([]renderer.GridColumn, 0, len(grid.Columns))
	for _, c := range grid.Columns {
		if !c.RowNumber {
			out = append(out, c)
		}
	}
	return out
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
