package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapview/internal/backend"
	"github.com/leapstack-labs/leapview/internal/cli/config"
	"github.com/leapstack-labs/leapview/internal/document"
	"github.com/leapstack-labs/leapview/internal/renderer"
	"github.com/leapstack-labs/leapview/internal/state"
	"github.com/leapstack-labs/leapview/pkg/protocol"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    getConfig(),
		Logger: config.GetLogger(cmd.Context()),
	}
}

// getConfig returns the current configuration, or the defaults when the
// command runs outside the root command (tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// openStore opens the state database holding persisted query text.
func (c *CommandContext) openStore(ctx context.Context) (*state.SQLiteStore, error) {
	store, err := state.Open(ctx, c.Cfg.StatePath, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return store, nil
}

// localSession joins a renderer machine and a document backend in one
// process with synchronous delivery: every request is answered before the
// machine call that posted it returns.
type localSession struct {
	doc     *document.Document
	machine *renderer.Machine
	store   *state.SQLiteStore
	// onReply observes every backend message after the machine applied it.
	onReply func(protocol.BackMessage)
}

type sessionOptions struct {
	Path      string
	Clipboard backend.Clipboard
	Notify    func(string)
	// Persist restores and saves the query text in the state database.
	Persist bool
}

func (c *CommandContext) openLocalSession(ctx context.Context, opts sessionOptions) (*localSession, error) {
	if err := config.ValidateSource(opts.Path); err != nil {
		return nil, err
	}

	s := &localSession{}
	doc, err := document.Open(ctx, document.Config{
		Path:    opts.Path,
		Session: c.Cfg.Session(),
		Engine:  c.Cfg.Engine(),
		Poster: backend.PosterFunc(func(msg protocol.BackMessage) {
			s.machine.Receive(msg)
			if s.onReply != nil {
				s.onReply(msg)
			}
		}),
		Clipboard: opts.Clipboard,
		Notify:    opts.Notify,
		Logger:    c.Logger,
	})
	if err != nil {
		return nil, err
	}
	s.doc = doc

	var slot renderer.Slot
	if opts.Persist {
		store, err := c.openStore(ctx)
		if err != nil {
			_ = doc.Close()
			return nil, err
		}
		s.store = store
		slot = state.NewSlot(store, state.SessionKey(doc.Source().Path), state.QueryTextKey, c.Logger)
	}

	session := doc.Session()
	s.machine = renderer.New(renderer.Config{
		ChunkSize: session.ChunkSize,
		AutoQuery: session.AutoQuery,
		Poster: renderer.PosterFunc(func(msg protocol.FrontMessage) {
			doc.Dispatcher().Handle(ctx, msg)
		}),
		Slot:   slot,
		Logger: c.Logger,
	})
	doc.Dispatcher().Start()
	return s, nil
}

// Close persists the query text and releases the engine and the state
// database.
func (s *localSession) Close() error {
	s.machine.Flush()
	if s.store != nil {
		_ = s.store.Close()
	}
	return s.doc.Close()
}
