// Package backend routes renderer messages to the view manager and pager of
// one document and posts the replies back.
//
// The dispatcher keeps no paging state: every "more" request carries its own
// offset. Engine failures never escape as Go errors; they are converted into
// failure envelopes carrying the engine's message.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/leapstack-labs/leapview/internal/paging"
	"github.com/leapstack-labs/leapview/internal/view"
	"github.com/leapstack-labs/leapview/pkg/core"
	"github.com/leapstack-labs/leapview/pkg/protocol"
)

// CopyConfirmation is the notice shown after a successful copy.
const CopyConfirmation = "Full query copied to clipboard"

// Poster delivers backend messages to the renderer.
type Poster interface {
	Post(msg protocol.BackMessage)
}

// PosterFunc adapts a function to the Poster interface.
type PosterFunc func(msg protocol.BackMessage)

// Post calls f(msg).
func (f PosterFunc) Post(msg protocol.BackMessage) { f(msg) }

// Clipboard accepts plain text.
type Clipboard interface {
	WriteText(text string) error
}

// Metrics observes dispatcher activity.
type Metrics interface {
	RequestHandled(kind protocol.Kind, elapsed time.Duration, ok bool)
	ViewReloaded(ok bool)
}

type noopMetrics struct{}

func (noopMetrics) RequestHandled(protocol.Kind, time.Duration, bool) {}
func (noopMetrics) ViewReloaded(bool)                                 {}

// State is the dispatcher's position in handling a request.
type State int

// Dispatcher states.
const (
	StateIdle State = iota
	StateDescribing
	StateWindowing
	StateFetching
)

func (s State) String() string {
	switch s {
	case StateDescribing:
		return "describing"
	case StateWindowing:
		return "windowing"
	case StateFetching:
		return "fetching"
	default:
		return "idle"
	}
}

// Config holds dispatcher configuration.
type Config struct {
	// View is the document's backing view (required).
	View *view.Manager
	// Pager runs windowed queries (required).
	Pager *paging.Pager
	// Poster receives every reply (required).
	Poster Poster
	// Clipboard receives copied queries (optional, copy fails without it).
	Clipboard Clipboard
	// Session is read once at construction.
	Session core.SessionConfig
	// Metrics observes requests (optional).
	Metrics Metrics
	// Notify shows transient confirmations to the user (optional).
	Notify func(message string)
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Dispatcher handles the messages of one document session.
type Dispatcher struct {
	view      *view.Manager
	pager     *paging.Pager
	poster    Poster
	clipboard Clipboard
	metrics   Metrics
	notify    func(string)
	logger    *slog.Logger
	chunkSize int

	// run serialises requests: one query at a time per document.
	run sync.Mutex

	mu        sync.Mutex
	state     State
	autoQuery bool
}

// New creates a dispatcher from cfg.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.View == nil {
		return nil, fmt.Errorf("backend view not configured")
	}
	if cfg.Pager == nil {
		return nil, fmt.Errorf("backend pager not configured")
	}
	if cfg.Poster == nil {
		return nil, fmt.Errorf("backend poster not configured")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	notify := cfg.Notify
	if notify == nil {
		notify = func(string) {}
	}

	session := cfg.Session
	session.ApplyDefaults()

	return &Dispatcher{
		view:      cfg.View,
		pager:     cfg.Pager,
		poster:    cfg.Poster,
		clipboard: cfg.Clipboard,
		metrics:   metrics,
		notify:    notify,
		logger:    logger,
		chunkSize: session.ChunkSize,
		autoQuery: session.AutoQuery,
	}, nil
}

// Start announces the session's auto-query flag to the renderer.
func (d *Dispatcher) Start() {
	d.poster.Post(protocol.NewConfigNotice(d.AutoQuery()))
}

// State returns the current dispatcher state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// AutoQuery returns the session's current auto-query flag.
func (d *Dispatcher) AutoQuery() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.autoQuery
}

// ChunkSize returns the configured page size.
func (d *Dispatcher) ChunkSize() int { return d.chunkSize }

// CreateStatement returns the statement backing the document's view.
func (d *Dispatcher) CreateStatement() string { return d.view.CreateStatement() }

// Handle routes one renderer message. Replies are posted, never returned.
func (d *Dispatcher) Handle(ctx context.Context, msg protocol.FrontMessage) {
	switch m := msg.(type) {
	case protocol.QueryRequest:
		d.runQuery(ctx, m)
	case protocol.MoreRequest:
		d.fetchMore(ctx, m)
	case protocol.CopyRequest:
		d.copy(m)
	case protocol.ConfigRequest:
		d.setAutoQuery(m.AutoQuery)
	case protocol.ReloadRequest:
		d.FileChanged(ctx)
	default:
		d.logger.Warn("ignoring unknown message", "type", fmt.Sprintf("%T", msg))
	}
}

// FileChanged rebuilds the view and tells the renderer. A failed rebuild is
// logged; the renderer is still told so its next query reports the error.
func (d *Dispatcher) FileChanged(ctx context.Context) {
	err := d.view.Reload(ctx)
	d.metrics.ViewReloaded(err == nil)
	if err != nil {
		d.logger.Warn("view reload failed", "error", err)
	} else {
		d.logger.Info("view reloaded", "generation", d.view.Generation())
	}
	d.poster.Post(protocol.ReloadNotice{})
}

func (d *Dispatcher) runQuery(ctx context.Context, req protocol.QueryRequest) {
	d.run.Lock()
	defer d.run.Unlock()
	defer d.setState(StateIdle)

	start := time.Now()
	limit := d.limit(req.Limit)

	var (
		columns []core.Column
		rows    []core.Row
		stage   string
	)
	err := d.view.WithView(func() error {
		var err error
		d.setState(StateDescribing)
		stage = "describe"
		if columns, err = d.pager.Describe(ctx, req.SQL); err != nil {
			return err
		}

		d.setState(StateWindowing)
		stage = "fetch"
		rows, err = d.pager.Fetch(ctx, req.SQL, limit, 0)
		return err
	})

	d.metrics.RequestHandled(protocol.KindQuery, time.Since(start), err == nil)
	if err != nil {
		d.logger.Debug("query failed", "stage", stage, "error", err)
		d.poster.Post(protocol.QueryFailure(EngineMessage(err), req.RequestID))
		return
	}

	d.logger.Debug("query completed", "rows", len(rows), "columns", len(columns), "duration", time.Since(start))
	d.poster.Post(protocol.QueryResult{
		Success:   true,
		Results:   rows,
		Describe:  columns,
		RequestID: req.RequestID,
	})
}

func (d *Dispatcher) fetchMore(ctx context.Context, req protocol.MoreRequest) {
	d.run.Lock()
	defer d.run.Unlock()
	defer d.setState(StateIdle)

	start := time.Now()
	var rows []core.Row
	err := d.view.WithView(func() error {
		var err error
		d.setState(StateFetching)
		rows, err = d.pager.Fetch(ctx, req.SQL, d.limit(req.Limit), req.Offset)
		return err
	})

	d.metrics.RequestHandled(protocol.KindMore, time.Since(start), err == nil)
	if err != nil {
		d.logger.Debug("fetch failed", "offset", req.Offset, "error", err)
		d.poster.Post(protocol.MoreFailure(EngineMessage(err), req.RequestID))
		return
	}

	d.poster.Post(protocol.MoreResult{
		Success:   true,
		Results:   rows,
		RequestID: req.RequestID,
	})
}

func (d *Dispatcher) copy(req protocol.CopyRequest) {
	if d.clipboard == nil {
		d.logger.Warn("copy requested but no clipboard is configured")
		return
	}

	text := FullQuery(d.view.CreateStatement(), req.SQL)
	if err := d.clipboard.WriteText(text); err != nil {
		d.logger.Error("failed to copy query", "error", err)
		d.notify("Failed to copy query: " + err.Error())
		return
	}
	d.notify(CopyConfirmation)
}

func (d *Dispatcher) setAutoQuery(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.autoQuery = on
}

func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = s
}

func (d *Dispatcher) limit(requested int) int {
	if requested > 0 {
		return requested
	}
	return d.chunkSize
}

// FullQuery joins the create statement and the trimmed user query into a
// script that runs standalone. The result ends with exactly one terminator
// and a newline. A blank query yields the create statement alone.
func FullQuery(createSQL, sql string) string {
	full := strings.TrimSpace(createSQL)
	if body := strings.TrimSpace(sql); body != "" {
		full += "\n\n" + body
	}
	if !strings.HasSuffix(full, ";") {
		full += ";"
	}
	return full + "\n"
}

// EngineMessage returns the innermost message of err, the text the engine
// itself reported.
func EngineMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
