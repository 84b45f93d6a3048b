package ui

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/leapview/internal/document"
	"github.com/leapstack-labs/leapview/internal/renderer"
	"github.com/leapstack-labs/leapview/internal/state"
	"github.com/leapstack-labs/leapview/internal/ui/components"
	"github.com/leapstack-labs/leapview/internal/ui/notifier"
	"github.com/starfederation/datastar-go/datastar"
)

const (
	sessionName  = "leapview"
	sessionIDKey = "id"
)

// StreamObserver is told when event streams open and close.
type StreamObserver interface {
	SessionOpened()
	SessionClosed()
}

// ActionSignals are the page signals sent with every action.
type ActionSignals struct {
	SQL       string `json:"sql"`
	AutoQuery bool   `json:"autoQuery"`
}

// StateInfo is the body of GET /api/state.
type StateInfo struct {
	SessionID string `json:"sessionId"`
	SQL       string `json:"sql"`
	Phase     string `json:"phase"`
}

// SourceInfo is the body of GET /api/source.
type SourceInfo struct {
	Path            string `json:"path"`
	Format          string `json:"format"`
	TableName       string `json:"tableName"`
	CreateStatement string `json:"createStatement"`
	ChunkSize       int    `json:"chunkSize"`
	AutoQuery       bool   `json:"autoQuery"`
	DefaultQuery    string `json:"defaultQuery"`
}

// Handlers provides the HTTP handlers of one document.
type Handlers struct {
	doc          *document.Document
	router       *Router
	sessionStore sessions.Store
	observer     StreamObserver
	logger       *slog.Logger
}

// Page renders the explorer for this browser's session, creating the
// session on the first visit.
func (h *Handlers) Page(w http.ResponseWriter, r *http.Request) {
	s, err := h.browserSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	results, status := s.snapshot()
	page := components.Page{
		Path:      h.doc.Source().Path,
		TableName: h.doc.TableName(),
		SQL:       s.Text(),
		Results:   results,
		Status:    status,
	}
	if err := components.ExplorerPage(page).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Events is the long-lived SSE endpoint of one page. It redraws the parts
// of the page its session changed, starting with everything.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	s, err := h.browserSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sse := datastar.NewSSE(w, r)

	listener := s.streams.Subscribe(notifier.ChangeAll)
	defer s.streams.Unsubscribe(listener)
	if h.observer != nil {
		h.observer.SessionOpened()
		defer h.observer.SessionClosed()
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-listener.Ready():
			if err := patchSession(sse, s, listener.Take()); err != nil {
				h.logger.Debug("event stream closed", "session", s.ID(), "error", err)
				return
			}
		}
	}
}

func patchSession(sse *datastar.ServerSentEventGenerator, s *Session, change notifier.Change) error {
	results, status := s.snapshot()
	if change.Has(notifier.ChangeStatus) {
		if err := sse.PatchElementTempl(components.StatusLine(status)); err != nil {
			return err
		}
	}
	if change.Has(notifier.ChangeResults) {
		if err := sse.PatchElementTempl(components.ResultsPanel(results)); err != nil {
			return err
		}
	}
	if change.Has(notifier.ChangeSignals) {
		if err := sse.MarshalAndPatchSignals(map[string]any{"autoQuery": status.AutoQuery}); err != nil {
			return err
		}
	}
	return nil
}

// action adapts a machine event to a datastar action endpoint. The page is
// redrawn through its event streams, so the action itself answers with no
// content.
func (h *Handlers) action(apply func(m *renderer.Machine, in ActionSignals)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in ActionSignals
		if err := datastar.ReadSignals(r, &in); err != nil {
			http.Error(w, "failed to read signals: "+err.Error(), http.StatusBadRequest)
			return
		}
		s, err := h.browserSession(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		s.Do(func(m *renderer.Machine) { apply(m, in) })
		w.WriteHeader(http.StatusNoContent)
	}
}

// Run submits the editor text.
func (h *Handlers) Run() http.HandlerFunc {
	return h.action(func(m *renderer.Machine, in ActionSignals) {
		m.SetText(in.SQL)
		m.Submit(renderer.TriggerExplicit)
	})
}

// Blur reports the editor losing focus.
func (h *Handlers) Blur() http.HandlerFunc {
	return h.action(func(m *renderer.Machine, in ActionSignals) {
		m.SetText(in.SQL)
		m.Blur()
	})
}

// More fetches the next page when the grid is scrolled to the bottom.
func (h *Handlers) More() http.HandlerFunc {
	return h.action(func(m *renderer.Machine, _ ActionSignals) {
		m.Scrolled(true)
	})
}

// Copy copies the full query for the editor text.
func (h *Handlers) Copy() http.HandlerFunc {
	return h.action(func(m *renderer.Machine, in ActionSignals) {
		m.SetText(in.SQL)
		m.Copy()
	})
}

// Reload rebuilds the backing view.
func (h *Handlers) Reload() http.HandlerFunc {
	return h.action(func(m *renderer.Machine, _ ActionSignals) {
		m.ReloadView()
	})
}

// AutoQuery applies the auto-query checkbox.
func (h *Handlers) AutoQuery() http.HandlerFunc {
	return h.action(func(m *renderer.Machine, in ActionSignals) {
		m.SetAutoQuery(in.AutoQuery)
	})
}

// State describes this browser's session.
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	s, err := h.browserSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, StateInfo{SessionID: s.ID(), SQL: s.Text(), Phase: s.Phase().String()})
}

// Source describes the opened file and session settings.
func (h *Handlers) Source(w http.ResponseWriter, _ *http.Request) {
	src := h.doc.Source()
	d := h.doc.Dispatcher()
	writeJSON(w, http.StatusOK, SourceInfo{
		Path:            src.Path,
		Format:          src.Format.String(),
		TableName:       h.doc.TableName(),
		CreateStatement: h.doc.CreateStatement(),
		ChunkSize:       d.ChunkSize(),
		AutoQuery:       d.AutoQuery(),
		DefaultQuery:    h.doc.DefaultQuery(),
	})
}

// browserSession returns the session of the requesting browser, assigning
// the browser an id on first use.
func (h *Handlers) browserSession(w http.ResponseWriter, r *http.Request) (*Session, error) {
	id, err := h.browserID(w, r)
	if err != nil {
		return nil, err
	}
	return h.router.Session(id), nil
}

func (h *Handlers) browserID(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := h.sessionStore.Get(r, sessionName)
	if err != nil && sess == nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	id, ok := sess.Values[sessionIDKey].(string)
	if !ok || id == "" {
		id = uuid.NewString()
		sess.Values[sessionIDKey] = id
		if err := sess.Save(r, w); err != nil {
			return "", fmt.Errorf("failed to save session: %w", err)
		}
	}
	return id, nil
}

// stateKey is the slot of one browser's query text.
func stateKey(browserID string) string {
	return state.QueryTextKey + "/" + browserID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
