package ui

import (
	"sync"

	"github.com/leapstack-labs/leapview/internal/renderer"
	"github.com/leapstack-labs/leapview/internal/ui/components"
	"github.com/leapstack-labs/leapview/internal/ui/notifier"
	"github.com/leapstack-labs/leapview/pkg/protocol"
)

// Session is the renderer of one browser: a machine driven by that browser's
// actions and fed only the replies to its own requests. Every event stream
// the browser opens draws the same machine.
type Session struct {
	id      string
	streams *notifier.Notifier

	mu      sync.Mutex
	machine *renderer.Machine
	notice  string
}

// ID returns the browser identity the session is keyed by.
func (s *Session) ID() string { return s.id }

// Do runs fn on the machine and redraws the session's streams. Requests fn
// posts are queued, never answered inside fn.
func (s *Session) Do(fn func(m *renderer.Machine)) {
	s.mu.Lock()
	s.notice = ""
	fn(s.machine)
	s.mu.Unlock()
	s.streams.Broadcast(notifier.ChangeResults | notifier.ChangeStatus)
}

// Receive applies a backend message.
func (s *Session) Receive(msg protocol.BackMessage) {
	s.mu.Lock()
	changed := s.machine.Receive(msg)
	s.mu.Unlock()
	if !changed {
		return
	}

	change := notifier.ChangeResults | notifier.ChangeStatus
	if _, ok := msg.(protocol.ConfigNotice); ok {
		change = notifier.ChangeStatus | notifier.ChangeSignals
	}
	s.streams.Broadcast(change)
}

// Notify shows a transient confirmation in the status line.
func (s *Session) Notify(text string) {
	s.mu.Lock()
	s.notice = text
	s.mu.Unlock()
	s.streams.Broadcast(notifier.ChangeStatus)
}

// Phase returns the machine's phase.
func (s *Session) Phase() renderer.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Phase()
}

// Text returns the machine's query text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Text()
}

// snapshot copies what the page draws.
func (s *Session) snapshot() (components.Results, components.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return resultsView(s.machine), statusView(s.machine, s.notice)
}

func resultsView(m *renderer.Machine) components.Results {
	d := m.Display()
	g := m.Grid()

	out := components.Results{
		Loading:      d.Loading,
		ShowError:    d.ErrorVisible,
		ErrorMessage: d.ErrorMessage,
		ShowGrid:     d.GridVisible,
		More:         m.Cursor().More,
	}
	if !d.GridVisible {
		return out
	}
	for _, c := range g.Columns {
		out.Columns = append(out.Columns, components.Column{Title: c.Title, Type: c.Type, RowNumber: c.RowNumber})
	}
	out.Rows = make([][]string, g.Len())
	for i := range out.Rows {
		out.Rows[i] = g.Record(i)
	}
	return out
}

func statusView(m *renderer.Machine, notice string) components.Status {
	return components.Status{
		Phase:     m.Phase().String(),
		Rows:      m.Grid().Len(),
		More:      m.Cursor().More,
		AutoQuery: m.AutoQuery(),
		Notice:    notice,
	}
}
