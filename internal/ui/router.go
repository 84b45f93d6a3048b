package ui

import (
	"context"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapview/internal/renderer"
	"github.com/leapstack-labs/leapview/internal/ui/notifier"
	"github.com/leapstack-labs/leapview/pkg/protocol"
)

// Handler answers renderer requests; *backend.Dispatcher satisfies it.
type Handler interface {
	Handle(ctx context.Context, msg protocol.FrontMessage)
}

// SessionFactory builds and initialises the machine of a new browser
// session. Requests the machine posts, including the restored query, go
// through poster.
type SessionFactory func(id string, poster renderer.Poster) *renderer.Machine

type request struct {
	session *Session
	msg     protocol.FrontMessage
}

// Router owns the browser sessions of one document and sits between their
// machines and the document's dispatcher. Requests from all sessions are
// handled one at a time in arrival order. Query and page replies go back to
// the session that sent the request; reload and config notices go to every
// session.
//
// Router satisfies backend.Poster, and Notify is the dispatcher's notice
// sink.
type Router struct {
	factory SessionFactory
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	queue    []request
	current  *Session

	wake chan struct{}
}

// NewRouter creates a router that builds session machines with factory.
func NewRouter(factory SessionFactory, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		factory:  factory,
		logger:   logger,
		sessions: make(map[string]*Session),
		wake:     make(chan struct{}, 1),
	}
}

// Session returns the session of browser id, creating it on first use.
func (r *Router) Session(id string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{id: id, streams: notifier.New()}
		// Held until the machine exists.
		s.mu.Lock()
		r.sessions[id] = s
	}
	r.mu.Unlock()
	if ok {
		return s
	}

	s.machine = r.factory(id, renderer.PosterFunc(func(msg protocol.FrontMessage) {
		r.enqueue(s, msg)
	}))
	s.mu.Unlock()
	r.logger.Debug("browser session opened", "session", id)
	return s
}

// Lookup returns the session of browser id if it exists.
func (r *Router) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Sessions returns the number of browser sessions.
func (r *Router) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Router) enqueue(s *Session, msg protocol.FrontMessage) {
	r.mu.Lock()
	r.queue = append(r.queue, request{session: s, msg: msg})
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Router) next() (request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return request{}, false
	}
	req := r.queue[0]
	r.queue[0] = request{}
	r.queue = r.queue[1:]
	return req, true
}

// Serve hands queued requests to h until ctx is cancelled.
func (r *Router) Serve(ctx context.Context, h Handler) error {
	for {
		req, ok := r.next()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-r.wake:
			}
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		r.setCurrent(req.session)
		h.Handle(ctx, req.msg)
		r.setCurrent(nil)
	}
}

func (r *Router) setCurrent(s *Session) {
	r.mu.Lock()
	r.current = s
	r.mu.Unlock()
}

func (r *Router) requester() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Post implements backend.Poster.
func (r *Router) Post(msg protocol.BackMessage) {
	switch msg.(type) {
	case protocol.QueryResult, protocol.MoreResult:
		s := r.requester()
		if s == nil {
			r.logger.Warn("dropping reply without a requesting session", "type", msg.Kind())
			return
		}
		s.Receive(msg)
	default:
		r.mu.Lock()
		all := make([]*Session, 0, len(r.sessions))
		for _, s := range r.sessions {
			all = append(all, s)
		}
		r.mu.Unlock()
		for _, s := range all {
			s.Receive(msg)
		}
	}
}

// Notify shows a confirmation to the session whose request is being handled.
func (r *Router) Notify(text string) {
	if s := r.requester(); s != nil {
		s.Notify(text)
		return
	}
	r.logger.Info(text)
}
