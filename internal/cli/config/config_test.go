package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leapview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.ChunkSize)
	assert.True(t, cfg.AutoQuery)
	assert.Equal(t, "data", cfg.TableName)
	assert.False(t, cfg.UseFileNameAsTableName)
	assert.Equal(t, "SELECT * FROM ${tableName}", cfg.DefaultQuery)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, DefaultUIPort, cfg.UI.Port)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()

	path := writeConfig(t, `chunk_size: 50
auto_query: false
use_file_name_as_table_name: true
default_query: "SELECT count(*) FROM ${tableName}"
ui:
  port: 9000
duckdb:
  extensions: [json]
  settings:
    threads: "2"
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, 50, cfg.ChunkSize)
	assert.False(t, cfg.AutoQuery)
	assert.True(t, cfg.UseFileNameAsTableName)
	assert.Equal(t, 9000, cfg.UI.Port)
	assert.Equal(t, []string{"json"}, cfg.DuckDB.Extensions)
	assert.Equal(t, map[string]string{"threads": "2"}, cfg.DuckDB.Settings)
	assert.Equal(t, filepath.Join(filepath.Dir(path), DefaultStateFile), cfg.StatePath)

	session := cfg.Session()
	assert.Equal(t, 50, session.ChunkSize)
	assert.False(t, session.AutoQuery)
	assert.Equal(t, "SELECT count(*) FROM ${tableName}", session.DefaultQuery)

	engine := cfg.Engine()
	assert.Equal(t, "duckdb", engine.Type)
	assert.Empty(t, engine.Path)
	assert.Equal(t, []string{"json"}, engine.Params["extensions"])
}

func TestLoadConfig_FindsFileUpward(t *testing.T) {
	ResetConfig()

	path := writeConfig(t, "chunk_size: 7\n")
	nested := filepath.Join(filepath.Dir(path), "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0750))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.ChunkSize)
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()

	path := writeConfig(t, "chunk_size: 50\nui:\n  port: 9000\n")
	t.Setenv("LEAPVIEW_CHUNK_SIZE", "75")
	t.Setenv("LEAPVIEW_UI__PORT", "9100")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 75, cfg.ChunkSize, "env var should override config file")
	assert.Equal(t, 9100, cfg.UI.Port)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()

	path := writeConfig(t, "chunk_size: 50\ntable_name: from_file\n")
	t.Setenv("LEAPVIEW_CHUNK_SIZE", "75")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("chunk-size", 0, "")
	flags.String("table", "", "")
	flags.String("state", "", "")
	flags.Int("port", 0, "")
	require.NoError(t, flags.Set("chunk-size", "25"))
	require.NoError(t, flags.Set("table", "from_flag"))
	require.NoError(t, flags.Set("state", "custom.db"))
	require.NoError(t, flags.Set("port", "9200"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.ChunkSize, "flag value should override config file and env var")
	assert.Equal(t, "from_flag", cfg.TableName)
	assert.Equal(t, "custom.db", cfg.StatePath, "flag state path is not re-anchored")
	assert.Equal(t, 9200, cfg.UI.Port)
}

func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())
	t.Setenv("LEAPVIEW_CHUNK_SIZE", "75")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("chunk-size", 500, "")

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.ChunkSize)
}

func TestLoadConfig_Invalid(t *testing.T) {
	ResetConfig()

	_, err := LoadConfig(writeConfig(t, "chunk_size: 0\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_size must be positive")

	_, err = LoadConfig(writeConfig(t, "chunk_size: [\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		errSubstr string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "zero chunk", modify: func(c *Config) { c.ChunkSize = 0 }, errSubstr: "chunk_size"},
		{name: "bad table name", modify: func(c *Config) { c.TableName = "my table" }, errSubstr: "table_name"},
		{
			name: "bad table name ignored with file name",
			modify: func(c *Config) {
				c.TableName = ""
				c.UseFileNameAsTableName = true
			},
		},
		{name: "empty state path", modify: func(c *Config) { c.StatePath = "" }, errSubstr: "state_path"},
		{name: "port out of range", modify: func(c *Config) { c.UI.Port = 70000 }, errSubstr: "ui.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestValidateSource(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "people.csv")
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(csv, []byte("a\n1\n"), 0600))
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0600))

	assert.NoError(t, ValidateSource(csv))

	err := ValidateSource(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file does not exist")

	err = ValidateSource(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")

	err = ValidateSource(txt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestGetLogger_Fallback(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := GetLogger(WithLogger(context.Background(), nil))
	assert.NotNil(t, logger)
}
