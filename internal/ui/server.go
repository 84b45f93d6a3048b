// Package ui serves one document to browsers. Each browser gets its own
// renderer machine on the server; its page is drawn with templ components
// patched over a datastar event stream, and its actions are datastar posts.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/leapview/internal/document"
	"github.com/leapstack-labs/leapview/internal/renderer"
	"github.com/leapstack-labs/leapview/internal/state"
	"github.com/leapstack-labs/leapview/internal/ui/resources"
	"golang.org/x/sync/errgroup"
)

// Server is the HTTP front of one document.
type Server struct {
	doc          *document.Document
	router       *Router
	store        state.Store
	metrics      MetricsHandler
	sessionStore *sessions.CookieStore
	addr         string
	watch        bool
	logger       *slog.Logger
}

// MetricsHandler exposes the dispatcher counters and observes event streams.
type MetricsHandler interface {
	StreamObserver
	Handler() http.Handler
}

// Config holds configuration for the UI server.
type Config struct {
	// Document is the opened file; its poster and notice sink must be
	// Router.
	Document *document.Document
	// Router routes the document's replies to browser sessions (required).
	Router *Router
	// Store persists query text per browser (optional).
	Store state.Store
	// Metrics serves /metrics (optional).
	Metrics MetricsHandler
	// Host defaults to localhost.
	Host          string
	Port          int
	Watch         bool
	SessionSecret string
	Logger        *slog.Logger
}

// NewServer creates a new UI server instance. Browser sessions of a router
// without a factory get machines configured from the document.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	s := &Server{
		doc:          cfg.Document,
		router:       cfg.Router,
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		sessionStore: sessionStore,
		addr:         net.JoinHostPort(host, fmt.Sprint(cfg.Port)),
		watch:        cfg.Watch,
		logger:       logger,
	}
	if s.router.factory == nil {
		s.router.factory = s.newMachine
	}
	return s
}

// newMachine builds the machine of browser id and submits its restored or
// default query.
func (s *Server) newMachine(id string, poster renderer.Poster) *renderer.Machine {
	d := s.doc.Dispatcher()
	var slot renderer.Slot
	if s.store != nil {
		slot = state.NewSlot(s.store, state.SessionKey(s.doc.Source().Path), stateKey(id), s.logger)
	}
	m := renderer.New(renderer.Config{
		ChunkSize: d.ChunkSize(),
		AutoQuery: d.AutoQuery(),
		Poster:    poster,
		Slot:      slot,
		Logger:    s.logger.With("session", id),
	})
	m.Init(s.doc.DefaultQuery())
	return m
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Compress(5, "application/json", "text/html", "text/javascript"),
	)
	s.setupRoutes(r)
	return r
}

func (s *Server) setupRoutes(r chi.Router) {
	h := &Handlers{
		doc:          s.doc,
		router:       s.router,
		sessionStore: s.sessionStore,
		logger:       s.logger,
	}
	if s.metrics != nil {
		h.observer = s.metrics
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Get("/", h.Page)
	r.Handle("/static/*", resources.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", h.Events)
		r.Get("/state", h.State)
		r.Get("/source", h.Source)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Logger)
			r.Post("/run", h.Run())
			r.Post("/blur", h.Blur())
			r.Post("/more", h.More())
			r.Post("/copy", h.Copy())
			r.Post("/reload", h.Reload())
			r.Post("/auto", h.AutoQuery())
		})
	})
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting UI server", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		return s.router.Serve(egctx, s.doc.Dispatcher())
	})

	if s.watch {
		eg.Go(func() error {
			if err := s.doc.Watch(egctx); err != nil && egctx.Err() == nil {
				s.logger.Error("file watcher stopped", "error", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
