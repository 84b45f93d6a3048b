package commands

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/leapstack-labs/leapview/internal/cli/config"
	"github.com/leapstack-labs/leapview/internal/clipboard"
	"github.com/leapstack-labs/leapview/internal/document"
	"github.com/leapstack-labs/leapview/internal/state"
	"github.com/leapstack-labs/leapview/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// OpenOptions holds options for the open command.
type OpenOptions struct {
	Watch bool
}

// NewOpenCommand creates the open command.
func NewOpenCommand() *cobra.Command {
	opts := &OpenOptions{}

	cmd := &cobra.Command{
		Use:   "open <file>",
		Short: "Explore a CSV or Parquet file in the terminal",
		Long: `Open a CSV or Parquet file in an interactive terminal explorer.

The editor holds a SQL query over the file's view; results are shown in a
grid that fetches the next page when scrolled to the bottom. The query text
is remembered per file in the state database.`,
		Example: `  leapview open people.csv
  leapview open events.parquet --table events
  leapview open big.csv --chunk-size 1000 --watch=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Reload the view when the file changes")

	return cmd
}

func runOpen(cmd *cobra.Command, path string, opts *OpenOptions) error {
	if err := config.ValidateSource(path); err != nil {
		return err
	}

	cmdCtx := NewCommandContext(cmd)
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bridge := tui.NewBridge(64)
	defer bridge.Close()

	doc, err := document.Open(ctx, document.Config{
		Path:      path,
		Session:   cmdCtx.Cfg.Session(),
		Engine:    cmdCtx.Cfg.Engine(),
		Poster:    bridge,
		Clipboard: clipboard.Detect(),
		Notify:    bridge.Notify,
		Logger:    cmdCtx.Logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = doc.Close() }()

	store, err := cmdCtx.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	model := tui.New(tui.Config{
		Title:        doc.Source().Path,
		TableName:    doc.TableName(),
		DefaultQuery: doc.DefaultQuery(),
		Session:      doc.Session(),
		Bridge:       bridge,
		Slot:         state.NewSlot(store, state.SessionKey(doc.Source().Path), state.QueryTextKey, cmdCtx.Logger),
		Logger:       cmdCtx.Logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(bridge.Serve(gctx, doc.Dispatcher()))
	})
	if opts.Watch {
		g.Go(func() error {
			return ignoreCanceled(doc.Watch(gctx))
		})
	}

	doc.Dispatcher().Start()

	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	_, runErr := program.Run()

	cancel()
	bridge.Close()
	waitErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal explorer failed: %w", runErr)
	}
	return waitErr
}

func ignoreCanceled(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
