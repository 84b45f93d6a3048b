// Package renderer implements the result-view state machine shared by every
// front end.
//
// A Machine owns the query text, the pagination cursor and the result grid of
// one document. Front ends feed it user events (SetText, Submit, Blur,
// Scrolled, Flush) and backend messages (Receive) and draw whatever Grid and Display
// report. Requests are sent through a Poster.
//
// Phases:
//
//	Empty -> Loading -> Loaded -> LoadingMore -> Loaded
//	Loading | LoadingMore -> Error
//
// A Machine is not safe for concurrent use. Posting is always the last step
// of a transition, so a Poster may deliver the reply synchronously by calling
// Receive from inside Post.
package renderer

import (
	"log/slog"

	"github.com/leapstack-labs/leapview/pkg/core"
	"github.com/leapstack-labs/leapview/pkg/protocol"
)

// Phase is the machine's position in the fetch cycle.
type Phase int

// Machine phases.
const (
	PhaseEmpty Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseLoadingMore
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseLoadingMore:
		return "loading-more"
	case PhaseError:
		return "error"
	default:
		return "empty"
	}
}

// Trigger says why a submission was attempted.
type Trigger int

// Submission triggers.
const (
	// TriggerExplicit is a user action such as a run key or button.
	TriggerExplicit Trigger = iota
	// TriggerBlur is the editor losing focus after its text changed.
	TriggerBlur
	// TriggerRestore is the resubmission of restored or reloaded text.
	TriggerRestore
)

// Poster sends requests to the backend.
type Poster interface {
	Post(msg protocol.FrontMessage)
}

// PosterFunc adapts a function to the Poster interface.
type PosterFunc func(msg protocol.FrontMessage)

// Post calls f(msg).
func (f PosterFunc) Post(msg protocol.FrontMessage) { f(msg) }

// Slot persists the query text across renderer restarts.
type Slot interface {
	Load() (string, bool)
	Save(text string)
}

// Cursor is the renderer-owned pagination position.
type Cursor struct {
	// Offset of the last requested page.
	Offset int
	// More is set while the last page came back full.
	More bool
	// SQL is the text the last page was requested for.
	SQL string
}

// Display holds the visibility flags a front end draws.
type Display struct {
	Loading      bool
	InputEnabled bool
	GridVisible  bool
	ErrorVisible bool
	ErrorMessage string
}

// Config holds machine configuration.
type Config struct {
	// ChunkSize is the page size (defaults to core.DefaultChunkSize).
	ChunkSize int
	// AutoQuery is the initial auto-query flag; a config message may change it.
	AutoQuery bool
	// Poster receives every request (required).
	Poster Poster
	// Slot persists the query text (optional).
	Slot Slot
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Machine is the renderer state machine of one document view.
type Machine struct {
	chunkSize int
	autoQuery bool
	poster    Poster
	slot      Slot
	logger    *slog.Logger

	phase   Phase
	text    string
	edited  bool
	cursor  Cursor
	grid    Grid
	display Display

	lastSubmitted string
	submitted     bool
	persisted     string

	nextID  uint64
	pending uint64
}

// New creates a machine in the Empty phase.
func New(cfg Config) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = core.DefaultChunkSize
	}
	poster := cfg.Poster
	if poster == nil {
		poster = PosterFunc(func(protocol.FrontMessage) {})
	}

	return &Machine{
		chunkSize: chunk,
		autoQuery: cfg.AutoQuery,
		poster:    poster,
		slot:      cfg.Slot,
		logger:    logger,
		display:   Display{InputEnabled: true},
	}
}

// Init restores the persisted query text, falling back to defaultQuery, and
// submits it immediately when non-empty.
func (m *Machine) Init(defaultQuery string) bool {
	text := defaultQuery
	if m.slot != nil {
		if saved, ok := m.slot.Load(); ok && saved != "" {
			text = saved
		}
	}
	m.text = text
	m.persisted = text
	m.edited = false
	if text == "" {
		return false
	}
	return m.Submit(TriggerRestore)
}

// SetText records an edit of the query text. The text is persisted on the
// next Blur, Submit or Flush, not on every edit.
func (m *Machine) SetText(text string) {
	if text != m.text {
		m.edited = true
	}
	m.text = text
}

// Flush persists the query text if it changed since it was last saved.
func (m *Machine) Flush() {
	if m.slot == nil || m.text == m.persisted {
		return
	}
	m.slot.Save(m.text)
	m.persisted = m.text
}

// Blur reports that the editor lost focus. The text is persisted and, with
// auto-query on, changed text is submitted.
func (m *Machine) Blur() bool {
	m.Flush()
	if !m.edited {
		return false
	}
	m.edited = false
	if !m.autoQuery {
		return false
	}
	return m.Submit(TriggerBlur)
}

// Submit starts a fresh query for the current text. It returns false when
// the text equals the last submitted text.
func (m *Machine) Submit(trigger Trigger) bool {
	m.Flush()
	if m.submitted && m.text == m.lastSubmitted {
		m.logger.Debug("suppressed duplicate submission", "trigger", trigger)
		return false
	}
	m.lastSubmitted = m.text
	m.submitted = true
	m.edited = false

	m.phase = PhaseLoading
	m.cursor = Cursor{SQL: m.text}
	m.grid = Grid{}
	m.display = Display{Loading: true}

	m.pending = m.newID()
	m.poster.Post(protocol.QueryRequest{SQL: m.text, Limit: m.chunkSize, RequestID: m.pending})
	return true
}

// Scrolled reports the grid's scroll position. Reaching the bottom fetches
// the next page when one may exist and nothing is in flight.
func (m *Machine) Scrolled(atBottom bool) bool {
	if !atBottom || m.InFlight() || !m.cursor.More {
		return false
	}

	m.phase = PhaseLoadingMore
	m.cursor.Offset += m.chunkSize
	m.cursor.SQL = m.text
	m.display.Loading = true
	m.display.InputEnabled = false

	m.pending = m.newID()
	m.poster.Post(protocol.MoreRequest{
		SQL:       m.text,
		Limit:     m.chunkSize,
		Offset:    m.cursor.Offset,
		RequestID: m.pending,
	})
	return true
}

// Copy asks the backend to copy the full query for the current text.
func (m *Machine) Copy() {
	m.poster.Post(protocol.CopyRequest{SQL: m.text})
}

// ReloadView asks the backend to rebuild the backing view.
func (m *Machine) ReloadView() {
	m.poster.Post(protocol.ReloadRequest{})
}

// SetAutoQuery changes the auto-query flag and tells the backend.
func (m *Machine) SetAutoQuery(on bool) {
	m.autoQuery = on
	m.poster.Post(protocol.ConfigRequest{AutoQuery: on})
}

// Receive applies a backend message. It reports whether the message changed
// anything; stale replies are dropped.
func (m *Machine) Receive(msg protocol.BackMessage) bool {
	switch b := msg.(type) {
	case protocol.QueryResult:
		if m.stale(b.RequestID) {
			return false
		}
		m.receiveQuery(b)
	case protocol.MoreResult:
		if m.stale(b.RequestID) {
			return false
		}
		m.receiveMore(b)
	case protocol.ConfigNotice:
		m.autoQuery = b.AutoQuery != nil && *b.AutoQuery
	case protocol.ReloadNotice:
		m.receiveReload()
	default:
		return false
	}
	return true
}

func (m *Machine) receiveQuery(res protocol.QueryResult) {
	m.pending = 0
	m.display.Loading = false
	m.display.InputEnabled = true

	switch {
	case res.Results != nil && res.Describe != nil, res.Success && res.Message == "":
		m.phase = PhaseLoaded
		m.grid = newGrid(res.Describe, res.Results)
		m.cursor.Offset = 0
		m.cursor.More = len(res.Results) >= m.chunkSize
		m.display.GridVisible = true
		m.display.ErrorVisible = false
		m.display.ErrorMessage = ""
	default:
		m.fail(res.Message)
	}
}

func (m *Machine) receiveMore(res protocol.MoreResult) {
	m.pending = 0
	m.display.Loading = false
	m.display.InputEnabled = true

	if !res.Success {
		m.fail(res.Message)
		return
	}

	m.phase = PhaseLoaded
	if len(res.Results) < m.chunkSize {
		m.cursor.More = false
	}
	if len(res.Results) > 0 {
		m.grid.Rows = append(m.grid.Rows, res.Results...)
	}
}

// receiveReload forgets the last submission so the same text may run again
// against the rebuilt view, and reruns it when auto-query is on.
func (m *Machine) receiveReload() {
	m.submitted = false
	m.lastSubmitted = ""
	if m.autoQuery && !m.InFlight() && m.text != "" {
		m.Submit(TriggerRestore)
	}
}

func (m *Machine) fail(message string) {
	m.phase = PhaseError
	m.cursor.More = false
	m.display.GridVisible = false
	m.display.ErrorVisible = true
	m.display.ErrorMessage = message
}

// stale reports whether a reply belongs to a request other than the one in
// flight. Replies without an id are always applied.
func (m *Machine) stale(id uint64) bool {
	if id == 0 || id == m.pending {
		return false
	}
	m.logger.Debug("dropping stale reply", "id", id, "pending", m.pending)
	return true
}

func (m *Machine) newID() uint64 {
	m.nextID++
	return m.nextID
}

// InFlight reports whether a query or page fetch awaits its reply.
func (m *Machine) InFlight() bool {
	return m.phase == PhaseLoading || m.phase == PhaseLoadingMore
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Text returns the current query text.
func (m *Machine) Text() string { return m.text }

// LastSubmitted returns the text of the last submitted query.
func (m *Machine) LastSubmitted() string { return m.lastSubmitted }

// Cursor returns the pagination cursor.
func (m *Machine) Cursor() Cursor { return m.cursor }

// Grid returns the result grid.
func (m *Machine) Grid() Grid { return m.grid }

// Display returns the visibility flags.
func (m *Machine) Display() Display { return m.display }

// AutoQuery returns the auto-query flag.
func (m *Machine) AutoQuery() bool { return m.autoQuery }

// ChunkSize returns the page size.
func (m *Machine) ChunkSize() int { return m.chunkSize }

// PendingRequest returns the id of the request in flight, or 0.
func (m *Machine) PendingRequest() uint64 { return m.pending }
