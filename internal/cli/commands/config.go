package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapview/internal/cli/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging defaults, leapview.yaml,
LEAPVIEW_ environment variables and flags, in leapview.yaml form.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if file := config.GetConfigFileUsed(); file != "" {
				_, _ = fmt.Fprintf(out, "# config file: %s\n", file)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(effectiveConfig(getConfig())); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

type yamlConfig struct {
	ChunkSize              int          `yaml:"chunk_size"`
	AutoQuery              bool         `yaml:"auto_query"`
	TableName              string       `yaml:"table_name"`
	UseFileNameAsTableName bool         `yaml:"use_file_name_as_table_name"`
	DefaultQuery           string       `yaml:"default_query"`
	StatePath              string       `yaml:"state_path"`
	Verbose                bool         `yaml:"verbose"`
	UI                     yamlUIConfig `yaml:"ui"`
	DuckDB                 yamlDuckDB   `yaml:"duckdb,omitempty"`
}

type yamlUIConfig struct {
	Port int `yaml:"port"`
	// The secret itself is never printed.
	SessionSecret string `yaml:"session_secret,omitempty"`
}

type yamlDuckDB struct {
	Path       string            `yaml:"path,omitempty"`
	Extensions []string          `yaml:"extensions,omitempty"`
	Settings   map[string]string `yaml:"settings,omitempty"`
}

func effectiveConfig(cfg *config.Config) yamlConfig {
	ui := cfg.GetUIConfig()
	secret := ""
	if ui.SessionSecret != "" {
		secret = "<set>"
	}
	return yamlConfig{
		ChunkSize:              cfg.ChunkSize,
		AutoQuery:              cfg.AutoQuery,
		TableName:              cfg.TableName,
		UseFileNameAsTableName: cfg.UseFileNameAsTableName,
		DefaultQuery:           cfg.DefaultQuery,
		StatePath:              cfg.StatePath,
		Verbose:                cfg.Verbose,
		UI:                     yamlUIConfig{Port: ui.Port, SessionSecret: secret},
		DuckDB: yamlDuckDB{
			Path:       cfg.DuckDB.Path,
			Extensions: cfg.DuckDB.Extensions,
			Settings:   cfg.DuckDB.Settings,
		},
	}
}
