// Package components holds the templ components of the browser explorer.
//
//go:generate templ generate
package components

import (
	"encoding/json"
	"fmt"
)

// Element ids patched by the event stream.
const (
	ResultsID = "results"
	StatusID  = "status"
)

// Column is one grid header.
type Column struct {
	Title     string
	Type      string
	RowNumber bool
}

// Results is the result area: loading indicator, error panel and grid.
type Results struct {
	Loading      bool
	ShowError    bool
	ErrorMessage string
	ShowGrid     bool
	Columns      []Column
	Rows         [][]string
	More         bool
}

// Status is the line under the editor.
type Status struct {
	Phase     string
	Rows      int
	More      bool
	AutoQuery bool
	Notice    string
}

// Summary describes the phase and row count.
func (s Status) Summary() string {
	switch s.Phase {
	case "loading":
		return "Running query"
	case "loading-more":
		return fmt.Sprintf("%d rows, fetching more", s.Rows)
	case "error":
		return "Query failed"
	case "loaded":
		if s.More {
			return fmt.Sprintf("%d rows, scroll for more", s.Rows)
		}
		if s.Rows == 1 {
			return "1 row"
		}
		return fmt.Sprintf("%d rows", s.Rows)
	default:
		return "Ready"
	}
}

// Page is the whole explorer page of one browser session.
type Page struct {
	Path      string
	TableName string
	SQL       string
	Results   Results
	Status    Status
}

// Signals returns the page's initial datastar signals.
func (p Page) Signals() string {
	b, err := json.Marshal(map[string]any{"sql": p.SQL, "autoQuery": p.Status.AutoQuery})
	if err != nil {
		return "{}"
	}
	return string(b)
}

// cellKind marks the row-number column.
func cellKind(c Column) string {
	if c.RowNumber {
		return "rownum"
	}
	return "cell"
}
