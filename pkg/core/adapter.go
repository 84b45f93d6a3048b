package core

import (
	"context"
	"database/sql"
)

// Adapter defines the interface that the query engine must implement.
type Adapter interface {
	// Connect establishes a connection to the engine.
	Connect(ctx context.Context, cfg AdapterConfig) error
	// Close closes the engine connection.
	Close() error
	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error
	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)
	// Describe executes a schema-introspection statement and returns
	// the column name/type pairs it reports.
	Describe(ctx context.Context, statement string) ([]Column, error)
	// DialectName returns the SQL dialect spoken by the engine.
	DialectName() string
}

// AdapterConfig holds configuration for connecting to the engine.
type AdapterConfig struct {
	Type    string
	Path    string
	Options map[string]string
	Params  map[string]any
}

// Column describes one result column as reported by the engine.
// The JSON names are part of the renderer protocol.
type Column struct {
	Name string `json:"column_name"`
	Type string `json:"column_type"`
}

// Row is a single result row keyed by column name.
type Row = map[string]any

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}
