// Package paging windows raw user queries into LIMIT/OFFSET pages.
//
// The pager is stateless: callers track the cursor and pass the offset on
// every fetch.
package paging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/leapstack-labs/leapview/pkg/core"
)

// Engine is the subset of the query engine the pager needs.
type Engine interface {
	Query(ctx context.Context, sql string) (*core.Rows, error)
	Describe(ctx context.Context, statement string) ([]core.Column, error)
}

// Pager fetches pages and column descriptors for raw queries.
type Pager struct {
	engine Engine
	logger *slog.Logger
}

// New creates a pager over engine. A nil logger discards output.
func New(engine Engine, logger *slog.Logger) *Pager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pager{engine: engine, logger: logger}
}

// StripTerminator removes the first statement terminator from raw.
// Only the first ';' is removed, wherever it appears.
func StripTerminator(raw string) string {
	return strings.Replace(raw, ";", "", 1)
}

// Wrap windows raw into the page starting at offset:
//
//	SELECT * FROM (
//	<raw>
//	) LIMIT <limit> OFFSET <offset>
func Wrap(raw string, limit, offset int) (string, error) {
	if limit < 0 || offset < 0 {
		return "", fmt.Errorf("invalid page window limit=%d offset=%d", limit, offset)
	}

	stmt, _, err := sq.Select("*").
		From("(\n" + StripTerminator(raw) + "\n)").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build page query: %w", err)
	}
	return stmt, nil
}

// DescribeStatement returns the schema-introspection statement for raw.
func DescribeStatement(raw string) string {
	return "DESCRIBE (" + StripTerminator(raw) + ");"
}

// Describe returns the column descriptors of the un-windowed raw query.
func (p *Pager) Describe(ctx context.Context, raw string) ([]core.Column, error) {
	return p.engine.Describe(ctx, DescribeStatement(raw))
}

// Fetch returns up to limit rows of raw starting at offset.
// Values are passed through CleanTyped with the result's column types.
func (p *Pager) Fetch(ctx context.Context, raw string, limit, offset int) ([]core.Row, error) {
	stmt, err := Wrap(raw, limit, offset)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("fetching page", "limit", limit, "offset", offset)

	rows, err := p.engine.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	types := columnTypes(rows, len(names))

	results := make([]core.Row, 0, limit)
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(core.Row, len(names))
		for i, name := range names {
			row[name] = CleanTyped(values[i], types[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// columnTypes returns the engine type name of each result column, or empty
// names when the driver cannot report them.
func columnTypes(rows *core.Rows, n int) []string {
	out := make([]string, n)
	cts, err := rows.ColumnTypes()
	if err != nil {
		return out
	}
	for i, ct := range cts {
		if i < n {
			out[i] = ct.DatabaseTypeName()
		}
	}
	return out
}

// MoreAvailable reports whether another page may exist after a page of
// returned rows. It is a heuristic: a full page means "maybe".
func MoreAvailable(returned, chunkSize int) bool {
	return returned >= chunkSize
}
