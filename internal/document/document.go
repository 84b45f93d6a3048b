// Package document assembles the backend of one opened file: engine
// connection, backing view, pager, dispatcher and file watcher.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapview/internal/backend"
	"github.com/leapstack-labs/leapview/internal/paging"
	"github.com/leapstack-labs/leapview/internal/view"
	"github.com/leapstack-labs/leapview/internal/watch"
	"github.com/leapstack-labs/leapview/pkg/adapter"
	"github.com/leapstack-labs/leapview/pkg/core"

	_ "github.com/leapstack-labs/leapview/pkg/adapters/duckdb" // register duckdb adapter
)

// DefaultEngine is the engine used when none is configured.
const DefaultEngine = "duckdb"

// Config holds document configuration.
type Config struct {
	// Path is the file to open (required).
	Path string
	// Session is the session configuration read at open time.
	Session core.SessionConfig
	// Engine configures the query engine. Type defaults to duckdb and an
	// empty Path means an in-memory database.
	Engine adapter.Config
	// Poster receives backend messages (required).
	Poster backend.Poster
	// Clipboard receives copied queries (optional).
	Clipboard backend.Clipboard
	// Metrics observes the dispatcher (optional).
	Metrics backend.Metrics
	// Notify shows transient confirmations (optional).
	Notify func(string)
	// WatchDebounce overrides the watcher debounce (optional).
	WatchDebounce time.Duration
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Document is the backend of one opened file.
type Document struct {
	source     core.Source
	session    core.SessionConfig
	db         adapter.Adapter
	view       *view.Manager
	dispatcher *backend.Dispatcher
	debounce   time.Duration
	logger     *slog.Logger
}

// Open connects a fresh engine and creates the backing view for cfg.Path.
// An unsupported file type fails with *core.UnsupportedFormatError before
// any engine is started.
func Open(ctx context.Context, cfg Config) (*Document, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	src, err := core.NewSource(cfg.Path)
	if err != nil {
		return nil, err
	}

	session := cfg.Session
	session.ApplyDefaults()

	engineCfg := cfg.Engine
	if engineCfg.Type == "" {
		engineCfg.Type = DefaultEngine
	}
	db, err := adapter.NewAdapter(engineCfg, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx, engineCfg); err != nil {
		return nil, fmt.Errorf("failed to connect %s engine: %w", engineCfg.Type, err)
	}

	v, err := view.New(ctx, view.Config{
		Engine:  db,
		Source:  src,
		Session: session,
		Logger:  logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	dispatcher, err := backend.New(backend.Config{
		View:      v,
		Pager:     paging.New(db, logger),
		Poster:    cfg.Poster,
		Clipboard: cfg.Clipboard,
		Session:   session,
		Metrics:   cfg.Metrics,
		Notify:    cfg.Notify,
		Logger:    logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("document opened", "path", src.Path, "format", src.Format, "table", v.TableName())
	return &Document{
		source:     src,
		session:    session,
		db:         db,
		view:       v,
		dispatcher: dispatcher,
		debounce:   cfg.WatchDebounce,
		logger:     logger,
	}, nil
}

// Dispatcher returns the document's message dispatcher.
func (d *Document) Dispatcher() *backend.Dispatcher { return d.dispatcher }

// Source returns the opened file.
func (d *Document) Source() core.Source { return d.source }

// Session returns the effective session configuration.
func (d *Document) Session() core.SessionConfig { return d.session }

// TableName returns the name of the backing view.
func (d *Document) TableName() string { return d.view.TableName() }

// CreateStatement returns the statement backing the view.
func (d *Document) CreateStatement() string { return d.view.CreateStatement() }

// DefaultQuery returns the configured default query for this document.
func (d *Document) DefaultQuery() string {
	return view.DefaultQuery(d.session.DefaultQuery, d.view.TableName())
}

// Watch rebuilds the view whenever the file changes, is created or is
// deleted, until ctx is cancelled.
func (d *Document) Watch(ctx context.Context) error {
	w, err := watch.New(watch.Config{
		Path:     d.source.Path,
		Debounce: d.debounce,
		Logger:   d.logger,
	})
	if err != nil {
		return err
	}
	return w.Run(ctx, func(ev watch.Event) {
		d.logger.Debug("source file event", "op", ev.Op)
		d.dispatcher.FileChanged(ctx)
	})
}

// Close releases the engine connection.
func (d *Document) Close() error {
	if err := d.db.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close engine"), err)
	}
	return nil
}
