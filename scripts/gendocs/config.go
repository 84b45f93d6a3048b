package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/leapstack-labs/leapview/internal/cli/config"
)

// generateConfigDocs generates the leapview.yaml reference.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := generateConfigurationDoc(outDir); err != nil {
		return fmt.Errorf("failed to generate configuration.md: %w", err)
	}
	log.Printf("  Generated configuration.md")
	return nil
}

// ConfigField represents a configuration field definition.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Description string
}

// getConfigSchema returns the configuration keys with their defaults taken
// from config.Default.
func getConfigSchema() []ConfigField {
	def := config.Default()
	return []ConfigField{
		{Name: "chunk_size", Type: "int", Default: strconv.Itoa(def.ChunkSize), Description: "Rows fetched per page"},
		{Name: "auto_query", Type: "bool", Default: strconv.FormatBool(def.AutoQuery), Description: "Re-run the query when the editor loses focus and after the file changes"},
		{Name: "table_name", Type: "string", Default: def.TableName, Description: "Name of the view the file is registered as"},
		{Name: "use_file_name_as_table_name", Type: "bool", Default: strconv.FormatBool(def.UseFileNameAsTableName), Description: "Name the view after the file instead of table_name"},
		{Name: "default_query", Type: "string", Default: def.DefaultQuery, Description: "Initial query; ${tableName} is replaced with the view name"},
		{Name: "state_path", Type: "string", Default: def.StatePath, Description: "SQLite database holding saved query text, relative to the config file"},
		{Name: "verbose", Type: "bool", Default: strconv.FormatBool(def.Verbose), Description: "Debug logging"},
		{Name: "ui.port", Type: "int", Default: strconv.Itoa(config.DefaultUIPort), Description: "Port of the serve command"},
		{Name: "ui.session_secret", Type: "string", Description: "Cookie signing key; random per process when unset"},
		{Name: "duckdb.path", Type: "string", Description: "DuckDB database file; in-memory when unset"},
		{Name: "duckdb.extensions", Type: "[]string", Description: "Extensions installed and loaded at startup"},
		{Name: "duckdb.settings", Type: "map[string]string", Description: "Settings applied with SET at startup"},
	}
}

// generateConfigurationDoc generates the configuration reference page.
func generateConfigurationDoc(outDir string) error {
	w := NewMarkdownWriter()

	w.Frontmatter("Configuration", "leapview configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("leapview reads `leapview.yaml` from the working directory or the nearest parent directory. `--config` names a file explicitly.")

	headers := []string{"Field", "Type", "Default", "Description"}
	var rows [][]string
	for _, f := range getConfigSchema() {
		defVal := f.Default
		if defVal == "" {
			defVal = "-"
		} else {
			defVal = InlineCode(defVal)
		}
		rows = append(rows, []string{InlineCode(f.Name), f.Type, defVal, f.Description})
	}
	w.Table(headers, rows)

	w.Header(2, "Example")
	w.CodeBlock("yaml", `# leapview.yaml
chunk_size: 500
auto_query: true
use_file_name_as_table_name: true
default_query: SELECT * FROM ${tableName} LIMIT 100

ui:
  port: 8766

duckdb:
  extensions:
    - httpfs
  settings:
    threads: "4"`)

	w.Header(2, "Precedence")
	w.Paragraph("Flags override `LEAPVIEW_` environment variables, which override the file, which overrides the defaults above.")

	filename := filepath.Join(outDir, "configuration.md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}
