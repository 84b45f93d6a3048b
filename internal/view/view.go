// Package view maintains the backing view a document session queries.
//
// Each opened file gets exactly one view, created by a single
// CREATE OR REPLACE VIEW statement. The statement is built once and replayed
// verbatim whenever the file changes.
package view

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapview/pkg/core"
)

// Engine executes statements that return no rows.
type Engine interface {
	Exec(ctx context.Context, sql string) error
}

// Config holds view manager configuration.
type Config struct {
	// Engine runs the create statement (required).
	Engine Engine
	// Source is the file the view reads (required).
	Source core.Source
	// Session supplies the table naming policy.
	Session core.SessionConfig
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Manager owns the backing view of one document.
type Manager struct {
	engine    Engine
	source    core.Source
	tableName string
	createSQL string
	logger    *slog.Logger

	// Queries hold the read lock so a reload never interleaves with them.
	mu         sync.RWMutex
	generation uint64
}

// New builds the create statement for cfg.Source and executes it once.
// An unsupported source format is returned as *core.UnsupportedFormatError
// before anything is executed.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("view engine not configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tableName := ResolveTableName(cfg.Source, cfg.Session)
	createSQL, err := BuildCreateStatement(tableName, cfg.Source)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		engine:    cfg.Engine,
		source:    cfg.Source,
		tableName: tableName,
		createSQL: createSQL,
		logger:    logger.With("view", tableName),
	}
	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// ResolveTableName applies the session's naming policy to src.
func ResolveTableName(src core.Source, cfg core.SessionConfig) string {
	if cfg.UseFileNameAsTableName {
		return src.BaseName()
	}
	if cfg.TableName == "" {
		return core.DefaultTableName
	}
	return cfg.TableName
}

// BuildCreateStatement returns the single-line statement that (re)creates the
// view tableName over src, terminated by a semicolon.
func BuildCreateStatement(tableName string, src core.Source) (string, error) {
	format := src.Format
	if format == core.FormatUnknown {
		format = core.DetectFormat(src.Path)
	}
	reader := format.ReaderFunc()
	if reader == "" {
		return "", &core.UnsupportedFormatError{
			Path:      src.Path,
			Extension: filepath.Ext(src.Path),
			Supported: core.SupportedExtensions(),
		}
	}

	path := strings.ReplaceAll(src.Path, "'", "''")
	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s('%s');", tableName, reader, path), nil
}

// Reload re-executes the stored create statement. It waits for in-flight
// queries holding the view and blocks new ones until the view is rebuilt.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.engine.Exec(ctx, m.createSQL); err != nil {
		m.logger.Warn("failed to create view", "path", m.source.Path, "error", err)
		return fmt.Errorf("failed to create view %s: %w", m.tableName, err)
	}
	m.generation++
	m.logger.Debug("view created", "path", m.source.Path, "generation", m.generation)
	return nil
}

// WithView runs fn while the view is guaranteed not to be rebuilt.
func (m *Manager) WithView(fn func() error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn()
}

// CreateStatement returns the statement used to create the view.
// Single line, ending with a semicolon.
func (m *Manager) CreateStatement() string { return m.createSQL }

// TableName returns the name of the view.
func (m *Manager) TableName() string { return m.tableName }

// Source returns the file the view reads.
func (m *Manager) Source() core.Source { return m.source }

// Generation returns how many times the view was successfully (re)created.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

var placeholderPattern = regexp.MustCompile(`\$\{[^{]+\}`)

// DefaultQuery expands a default query template. ${tableName} becomes
// tableName; any other placeholder is replaced with the empty string.
func DefaultQuery(template, tableName string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-1])
		if name == "tableName" {
			return tableName
		}
		return ""
	})
}
