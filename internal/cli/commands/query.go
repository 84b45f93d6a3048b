package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/leapview/internal/renderer"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
	All    bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query <file> [SQL]",
		Short: "Query a CSV or Parquet file",
		Long: `Query a CSV or Parquet file through an embedded DuckDB view.

The file is exposed as a view (named "data" unless configured otherwise).
Results are fetched one page of chunk_size rows at a time; --all keeps
fetching until the result is exhausted.

When invoked without SQL on a terminal, enters interactive REPL mode.`,
		Example: `  # First page of the default query
  leapview query people.csv

  # Execute SQL directly
  leapview query people.csv "SELECT name FROM data WHERE id > 1"

  # Every row, as JSON
  leapview query events.parquet "SELECT * FROM data" --all --format json

  # Interactive mode
  leapview query people.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", FormatTable, "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().BoolVar(&opts.All, "all", false, "Fetch every page instead of the first")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{FormatTable, FormatJSON, FormatCSV, FormatMarkdown}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	path := args[0]

	var sqlText string
	switch {
	case len(args) > 1:
		sqlText = strings.Join(args[1:], " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlText = string(content)
	case !isTerminal(os.Stdin):
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlText = string(content)
	default:
		return runQueryREPL(cmd, path, opts)
	}

	cmdCtx := NewCommandContext(cmd)
	sess, err := cmdCtx.openLocalSession(cmd.Context(), sessionOptions{
		Path:   path,
		Notify: func(msg string) { _, _ = fmt.Fprintln(cmd.ErrOrStderr(), msg) },
	})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if strings.TrimSpace(sqlText) == "" {
		sqlText = sess.doc.DefaultQuery()
	}
	return executeAndRender(cmd.OutOrStdout(), sess.machine, sqlText, opts)
}

// executeAndRender submits sqlText on m, optionally pages to the end, and
// renders the accumulated grid.
func executeAndRender(w io.Writer, m *renderer.Machine, sqlText string, opts *QueryOptions) error {
	m.SetText(sqlText)
	m.Submit(renderer.TriggerExplicit)
	if err := machineError(m); err != nil {
		return err
	}

	for opts.All && m.Cursor().More {
		if !m.Scrolled(true) {
			break
		}
		if err := machineError(m); err != nil {
			return err
		}
	}

	return renderGrid(w, m.Grid(), 0, opts.Format)
}

func machineError(m *renderer.Machine) error {
	if m.Phase() == renderer.PhaseError {
		return fmt.Errorf("query failed: %s", m.Display().ErrorMessage)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}
