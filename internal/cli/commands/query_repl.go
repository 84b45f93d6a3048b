package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapview/internal/backend"
	"github.com/leapstack-labs/leapview/internal/clipboard"
	"github.com/leapstack-labs/leapview/internal/renderer"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "leapview> "
	replContPrompt = "     ...> "
)

// repl is an interactive query session over one file.
type repl struct {
	out    io.Writer
	errOut io.Writer
	sess   *localSession
	format string
}

func runQueryREPL(cmd *cobra.Command, path string, opts *QueryOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)

	r := &repl{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), format: opts.Format}
	sess, err := cmdCtx.openLocalSession(ctx, sessionOptions{
		Path:      path,
		Clipboard: clipboard.Detect(),
		Notify:    func(msg string) { _, _ = fmt.Fprintln(r.out, msg) },
		Persist:   true,
	})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()
	r.sess = sess

	historyFile := filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "query_history")

	_, _ = fmt.Fprintf(r.out, "leapview REPL (%s as %s)\n", sess.doc.Source().Path, sess.doc.TableName())
	_, _ = fmt.Fprintln(r.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(r.out)

	m := sess.machine
	if m.Init(sess.doc.DefaultQuery()) {
		_, _ = fmt.Fprintf(r.out, "%s\n", m.Text())
		r.showResult()
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newColumnCompleter(sess.doc.TableName(), m.Grid()),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	var multiLineBuffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if multiLineBuffer.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := r.handleDotCommand(line); quit {
				break
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon
		multiLineBuffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			multiLineBuffer.WriteString("\n")
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		query := multiLineBuffer.String()
		multiLineBuffer.Reset()
		r.runSQL(query)
	}

	return nil
}

// runSQL submits query. Resubmitting the last query is a no-op.
func (r *repl) runSQL(query string) {
	m := r.sess.machine
	m.SetText(query)
	if !m.Submit(renderer.TriggerExplicit) {
		_, _ = fmt.Fprintln(r.errOut, "Query unchanged (use .more for the next page)")
		return
	}
	r.showResult()
}

// showResult renders the outcome of the latest query.
func (r *repl) showResult() {
	m := r.sess.machine
	if err := machineError(m); err != nil {
		_, _ = fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return
	}
	if err := renderGrid(r.out, m.Grid(), 0, r.format); err != nil {
		_, _ = fmt.Fprintf(r.errOut, "Error: %v\n", err)
	}
	r.moreHint()
}

func (r *repl) moreHint() {
	if r.sess.machine.Cursor().More {
		_, _ = fmt.Fprintln(r.out, "More rows available (.more)")
	}
	_, _ = fmt.Fprintln(r.out)
}

// handleDotCommand runs one dot-command and reports whether to quit.
func (r *repl) handleDotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	m := r.sess.machine

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(r.out)

	case ".more":
		before := m.Grid().Len()
		if !m.Scrolled(true) {
			_, _ = fmt.Fprintln(r.errOut, "No more rows")
			return false
		}
		if err := machineError(m); err != nil {
			_, _ = fmt.Fprintf(r.errOut, "Error: %v\n", err)
			return false
		}
		if err := renderGrid(r.out, m.Grid(), before, r.format); err != nil {
			_, _ = fmt.Fprintf(r.errOut, "Error: %v\n", err)
		}
		r.moreHint()

	case ".schema":
		if m.Phase() != renderer.PhaseLoaded {
			_, _ = fmt.Fprintln(r.errOut, "No result loaded")
			return false
		}
		if err := renderSchema(r.out, m.Grid(), r.format); err != nil {
			_, _ = fmt.Fprintf(r.errOut, "Error: %v\n", err)
		}

	case ".copy":
		m.Copy()

	case ".sql":
		_, _ = fmt.Fprintln(r.out, backend.FullQuery(r.sess.doc.CreateStatement(), m.Text()))

	case ".reload":
		m.ReloadView()
		_, _ = fmt.Fprintln(r.out, "View reloaded")
		// With auto query on, the reload reran the current text.
		if m.LastSubmitted() != "" {
			r.showResult()
		}

	case ".auto":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(r.out, "auto query: %s\n", onOff(m.AutoQuery()))
			return false
		}
		switch strings.ToLower(parts[1]) {
		case "on":
			m.SetAutoQuery(true)
		case "off":
			m.SetAutoQuery(false)
		default:
			_, _ = fmt.Fprintln(r.errOut, "Usage: .auto [on|off]")
		}

	case ".clear":
		_, _ = fmt.Fprint(r.out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(r.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .more           Fetch the next page of the current result
  .schema         Show the columns of the current result
  .copy           Copy the full query (view definition included) to the clipboard
  .sql            Print the full query
  .reload         Rebuild the view from the file on disk
  .auto [on|off]  Show or change automatic re-query after reload
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for the view and column names
`
	_, _ = fmt.Fprintln(w, help)
}

// newColumnCompleter creates a readline completer for the view name, the
// columns of the initial result and the dot-commands.
func newColumnCompleter(tableName string, grid renderer.Grid) *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{readline.PcItem(tableName)}
	for _, c := range dataColumns(grid) {
		items = append(items, readline.PcItem(c.Field))
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".more"),
		readline.PcItem(".schema"),
		readline.PcItem(".copy"),
		readline.PcItem(".sql"),
		readline.PcItem(".reload"),
		readline.PcItem(".auto", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)

	return readline.NewPrefixCompleter(items...)
}
