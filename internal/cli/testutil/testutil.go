// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// PeopleCSV is the data file written by SetupTestProject.
const PeopleCSV = `id,name,joined
1,Alice,2024-01-15
2,Bob,2024-02-20
3,"Carol, Jr.",2024-03-05
`

// SetupTestProject creates a temporary directory holding people.csv and a
// leapview.yaml with a small chunk size, and returns the directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "people.csv"), []byte(PeopleCSV), 0o600); err != nil {
		t.Fatalf("failed to create people.csv: %v", err)
	}

	cfg := `chunk_size: 2
state_path: .leapview/state.db
default_query: SELECT * FROM ${tableName} ORDER BY id
`
	if err := os.WriteFile(filepath.Join(tmpDir, "leapview.yaml"), []byte(cfg), 0o600); err != nil {
		t.Fatalf("failed to create leapview.yaml: %v", err)
	}

	return tmpDir
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdownTable checks that every non-empty line is a pipe row
// with the same number of cells as the header.
func AssertValidMarkdownTable(t *testing.T, md string) {
	t.Helper()

	lines := strings.Split(strings.TrimSpace(md), "\n")
	if len(lines) < 2 {
		t.Errorf("markdown table needs a header and a separator, got %q", md)
		return
	}

	cells := func(line string) int {
		return strings.Count(strings.ReplaceAll(line, `\|`, ""), "|") - 1
	}
	want := cells(lines[0])
	for i, line := range lines {
		if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			t.Errorf("line %d is not a table row: %q", i+1, line)
			continue
		}
		if got := cells(line); got != want {
			t.Errorf("line %d has %d cells, want %d: %q", i+1, got, want, line)
		}
	}
}
