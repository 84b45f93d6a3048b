package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/leapstack-labs/leapview/pkg/core"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d\nHint: set chunk_size in leapview.yaml or pass --chunk-size", c.ChunkSize)
	}
	if !c.UseFileNameAsTableName && !tableNamePattern.MatchString(c.TableName) {
		return fmt.Errorf("table_name %q is not a plain identifier\nHint: use letters, digits and underscores, or enable use_file_name_as_table_name", c.TableName)
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return fmt.Errorf("ui.port %d is out of range", c.UI.Port)
	}
	return nil
}

// ValidateSource checks that path exists and has a supported extension.
func ValidateSource(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s\nHint: pass the path of a .csv or .parquet file", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file", path)
	}
	if core.DetectFormat(path) == core.FormatUnknown {
		_, err := core.NewSource(path)
		return err
	}
	return nil
}
