// Package config loads leapview configuration from defaults, an optional
// leapview.yaml, LEAPVIEW_ environment variables and command-line flags.
package config

import (
	"github.com/leapstack-labs/leapview/pkg/adapter"
	"github.com/leapstack-labs/leapview/pkg/core"
)

// Default configuration values.
const (
	DefaultStateFile = ".leapview/state.db"
	DefaultUIPort    = 8766
	DefaultEngine    = "duckdb"
)

// Config holds all leapview configuration options.
type Config struct {
	ChunkSize              int          `koanf:"chunk_size"`
	AutoQuery              bool         `koanf:"auto_query"`
	TableName              string       `koanf:"table_name"`
	UseFileNameAsTableName bool         `koanf:"use_file_name_as_table_name"`
	DefaultQuery           string       `koanf:"default_query"`
	StatePath              string       `koanf:"state_path"`
	Verbose                bool         `koanf:"verbose"`
	UI                     UIConfig     `koanf:"ui"`
	DuckDB                 DuckDBConfig `koanf:"duckdb"`
}

// UIConfig holds browser front settings.
type UIConfig struct {
	Port          int    `koanf:"port"`
	SessionSecret string `koanf:"session_secret"`
}

// DuckDBConfig holds engine settings passed through to the duckdb adapter.
type DuckDBConfig struct {
	Path       string            `koanf:"path"`
	Extensions []string          `koanf:"extensions"`
	Settings   map[string]string `koanf:"settings"`
}

// Session returns the per-document session settings.
func (c *Config) Session() core.SessionConfig {
	return core.SessionConfig{
		ChunkSize:              c.ChunkSize,
		AutoQuery:              c.AutoQuery,
		TableName:              c.TableName,
		UseFileNameAsTableName: c.UseFileNameAsTableName,
		DefaultQuery:           c.DefaultQuery,
	}
}

// Engine returns the adapter configuration for a document's engine.
// Each document gets its own engine, so Path should normally stay empty.
func (c *Config) Engine() adapter.Config {
	params := map[string]any{}
	if len(c.DuckDB.Extensions) > 0 {
		params["extensions"] = c.DuckDB.Extensions
	}
	if len(c.DuckDB.Settings) > 0 {
		params["settings"] = c.DuckDB.Settings
	}
	return adapter.Config{
		Type:   DefaultEngine,
		Path:   c.DuckDB.Path,
		Params: params,
	}
}

// GetUIConfig returns UI config with defaults applied.
func (c *Config) GetUIConfig() UIConfig {
	ui := c.UI
	if ui.Port == 0 {
		ui.Port = DefaultUIPort
	}
	return ui
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	session := core.DefaultSessionConfig()
	return &Config{
		ChunkSize:    session.ChunkSize,
		AutoQuery:    session.AutoQuery,
		TableName:    session.TableName,
		DefaultQuery: session.DefaultQuery,
		StatePath:    DefaultStateFile,
		UI:           UIConfig{Port: DefaultUIPort},
	}
}
