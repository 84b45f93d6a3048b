package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapview/pkg/adapter"
	_ "github.com/leapstack-labs/leapview/pkg/adapters/duckdb" // register duckdb
	"github.com/stretchr/testify/require"
)

// PeopleCSV is a three row delimited fixture.
const PeopleCSV = "id,name,joined\n1,Alice,2024-01-15\n2,Bob,2024-02-20\n3,Carol,2024-03-05\n"

// NewDuckDB returns a connected in-memory DuckDB adapter closed on cleanup.
func NewDuckDB(t testing.TB) adapter.Adapter {
	t.Helper()

	db, err := adapter.NewAdapter(adapter.Config{Type: "duckdb"}, NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, db.Connect(context.Background(), adapter.Config{Type: "duckdb", Path: ":memory:"}))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// WriteFile writes content to name inside a fresh temp dir and returns its path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
