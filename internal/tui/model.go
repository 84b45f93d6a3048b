// Package tui is the terminal front of a document: a query editor over a
// paged result grid, driven by the renderer state machine.
package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/leapview/internal/renderer"
	"github.com/leapstack-labs/leapview/pkg/core"
	"github.com/leapstack-labs/leapview/pkg/protocol"
)

const (
	editorHeight   = 5
	maxColumnWidth = 40
	// chromeHeight is the space taken by everything but the grid.
	chromeHeight = editorHeight + 7
)

type focus int

const (
	focusEditor focus = iota
	focusGrid
)

// Config holds model configuration.
type Config struct {
	// Title names the opened file in the header.
	Title string
	// TableName is the backing view's name.
	TableName string
	// DefaultQuery is used when no query text was persisted.
	DefaultQuery string
	// Session provides the page size and initial auto-query flag.
	Session core.SessionConfig
	// Bridge carries requests and replies (required).
	Bridge *Bridge
	// Slot persists the query text (optional).
	Slot renderer.Slot
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Model is the bubbletea model of the terminal front.
type Model struct {
	cfg     Config
	machine *renderer.Machine
	bridge  *Bridge

	editor  textarea.Model
	grid    table.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	styles  styles

	focus  focus
	notice string
	width  int
	height int
}

// New creates the model. The machine posts through cfg.Bridge.
func New(cfg Config) *Model {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.Session.ApplyDefaults()

	applyColorProfile()
	st := defaultStyles()

	editor := textarea.New()
	editor.Placeholder = fmt.Sprintf("SELECT * FROM %s", cfg.TableName)
	editor.ShowLineNumbers = false
	editor.SetHeight(editorHeight)
	editor.Focus()

	grid := table.New(table.WithHeight(10))
	grid.SetStyles(st.Table)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := &Model{
		cfg:     cfg,
		bridge:  cfg.Bridge,
		editor:  editor,
		grid:    grid,
		spinner: sp,
		help:    help.New(),
		keys:    defaultKeyMap(),
		styles:  st,
	}
	m.machine = renderer.New(renderer.Config{
		ChunkSize: cfg.Session.ChunkSize,
		AutoQuery: cfg.Session.AutoQuery,
		Poster:    renderer.PosterFunc(cfg.Bridge.Request),
		Slot:      cfg.Slot,
		Logger:    logger,
	})
	return m
}

// Machine exposes the renderer state machine.
func (m *Model) Machine() *renderer.Machine { return m.machine }

// Init restores the query text and starts listening for replies.
func (m *Model) Init() tea.Cmd {
	m.machine.Init(m.cfg.DefaultQuery)
	m.editor.SetValue(m.machine.Text())
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.bridge.Wait())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case ReplyMsg:
		if m.machine.Receive(msg.Msg) {
			m.syncGrid(msg.Msg)
		}
		return m, m.bridge.Wait()

	case NoticeMsg:
		m.notice = string(msg)
		return m, m.bridge.Wait()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	switch m.focus {
	case focusEditor:
		if !m.machine.Display().InputEnabled {
			break
		}
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		cmds = append(cmds, cmd)
		if text := m.editor.Value(); text != m.machine.Text() {
			m.machine.SetText(text)
		}
	case focusGrid:
		var cmd tea.Cmd
		m.grid, cmd = m.grid.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.machine.SetText(m.editor.Value())
		m.machine.Flush()
		return tea.Quit, true

	case key.Matches(msg, m.keys.Run):
		m.notice = ""
		m.machine.SetText(m.editor.Value())
		m.machine.Submit(renderer.TriggerExplicit)
		return nil, true

	case key.Matches(msg, m.keys.Focus):
		m.toggleFocus()
		return nil, true

	case key.Matches(msg, m.keys.Copy):
		m.machine.SetText(m.editor.Value())
		m.machine.Copy()
		return nil, true

	case key.Matches(msg, m.keys.Reload):
		m.machine.ReloadView()
		return nil, true

	case key.Matches(msg, m.keys.Auto):
		m.machine.SetAutoQuery(!m.machine.AutoQuery())
		return nil, true

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil, true

	case m.focus == focusGrid && key.Matches(msg, m.keys.More):
		var cmd tea.Cmd
		m.grid, cmd = m.grid.Update(msg)
		m.machine.Scrolled(m.atBottom())
		return cmd, true
	}
	return nil, false
}

// toggleFocus moves between editor and grid. Leaving the editor is a blur.
func (m *Model) toggleFocus() {
	if m.focus == focusEditor {
		m.machine.SetText(m.editor.Value())
		m.editor.Blur()
		m.grid.Focus()
		m.focus = focusGrid
		m.machine.Blur()
		return
	}
	m.grid.Blur()
	m.editor.Focus()
	m.focus = focusEditor
}

func (m *Model) atBottom() bool {
	rows := len(m.grid.Rows())
	return rows > 0 && m.grid.Cursor() >= rows-1
}

// syncGrid copies the machine's grid into the table widget.
func (m *Model) syncGrid(msg protocol.BackMessage) {
	g := m.machine.Grid()
	switch msg.(type) {
	case protocol.QueryResult:
		cols := make([]table.Column, len(g.Columns))
		for i, c := range g.Columns {
			cols[i] = table.Column{Title: c.Title, Width: columnWidth(g, i)}
		}
		m.grid.SetRows(nil)
		m.grid.SetColumns(cols)
		m.grid.SetRows(tableRows(g, 0))
		m.grid.SetCursor(0)
	case protocol.MoreResult:
		m.grid.SetRows(append(m.grid.Rows(), tableRows(g, len(m.grid.Rows()))...))
	}
}

func tableRows(g renderer.Grid, from int) []table.Row {
	if from > g.Len() {
		from = g.Len()
	}
	rows := make([]table.Row, 0, g.Len()-from)
	for i := from; i < g.Len(); i++ {
		record := g.Record(i)
		for j, cell := range record {
			record[j] = strings.ReplaceAll(cell, "\n", " ")
		}
		rows = append(rows, table.Row(record))
	}
	return rows
}

func columnWidth(g renderer.Grid, col int) int {
	width := lipgloss.Width(g.Columns[col].Title)
	for i := 0; i < g.Len(); i++ {
		width = max(width, lipgloss.Width(g.Cell(i, col)))
	}
	return min(width, maxColumnWidth)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.editor.SetWidth(max(width-4, 10))
	m.grid.SetWidth(width)
	m.grid.SetHeight(max(height-chromeHeight, 3))
	m.help.Width = width
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	auto := "off"
	if m.machine.AutoQuery() {
		auto = "on"
	}
	b.WriteString(m.styles.Title.Render("leapview"))
	b.WriteString(" ")
	b.WriteString(m.styles.Subtle.Render(fmt.Sprintf("%s as %s · auto query %s", m.cfg.Title, m.cfg.TableName, auto)))
	b.WriteString("\n")

	box := m.styles.Editor
	if m.focus == focusEditor {
		box = m.styles.Focused
	}
	editor := m.editor.View()
	if !m.machine.Display().InputEnabled {
		editor = m.styles.Disabled.Render(editor)
	}
	b.WriteString(box.Render(editor))
	b.WriteString("\n")

	d := m.machine.Display()
	switch {
	case d.Loading && !d.GridVisible:
		b.WriteString(m.spinner.View() + " Running query…\n")
	case d.ErrorVisible:
		b.WriteString(m.styles.Error.Render(d.ErrorMessage) + "\n")
	case d.GridVisible:
		b.WriteString(m.grid.View() + "\n")
	}

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) statusLine() string {
	var parts []string
	d := m.machine.Display()
	if d.GridVisible {
		status := fmt.Sprintf("%d rows", m.machine.Grid().Len())
		if m.machine.Cursor().More {
			status += " · more available"
		}
		parts = append(parts, m.styles.Subtle.Render(status))
	}
	if d.Loading && d.GridVisible {
		parts = append(parts, m.spinner.View()+" loading more")
	}
	if m.notice != "" {
		parts = append(parts, m.styles.Notice.Render(m.notice))
	}
	return strings.Join(parts, "  ")
}
