package document

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/leapview/internal/backend"
	"github.com/leapstack-labs/leapview/internal/testutil"
	"github.com/leapstack-labs/leapview/pkg/adapter"
	"github.com/leapstack-labs/leapview/pkg/core"
	"github.com/leapstack-labs/leapview/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbox struct {
	mu   sync.Mutex
	msgs []protocol.BackMessage
	ch   chan protocol.BackMessage
}

func newInbox() *inbox { return &inbox{ch: make(chan protocol.BackMessage, 16)} }

func (i *inbox) Post(msg protocol.BackMessage) {
	i.mu.Lock()
	i.msgs = append(i.msgs, msg)
	i.mu.Unlock()
	i.ch <- msg
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	path := testutil.WriteFile(t, "sales.csv", testutil.PeopleCSV)
	posted := newInbox()

	doc, err := Open(ctx, Config{
		Path:    path,
		Session: core.SessionConfig{UseFileNameAsTableName: true, DefaultQuery: "SELECT * FROM ${tableName} LIMIT 5"},
		Poster:  posted,
		Logger:  testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	defer func() { _ = doc.Close() }()

	assert.Equal(t, "sales", doc.TableName())
	assert.Equal(t, "SELECT * FROM sales LIMIT 5", doc.DefaultQuery())
	assert.Equal(t, core.DefaultChunkSize, doc.Session().ChunkSize)
	assert.Contains(t, doc.CreateStatement(), "read_csv(")

	doc.Dispatcher().Handle(ctx, protocol.QueryRequest{SQL: doc.DefaultQuery()})
	result := (<-posted.ch).(protocol.QueryResult)
	require.True(t, result.Success, result.Message)
	assert.Len(t, result.Results, 3)
}

func TestOpen_UnsupportedFormat(t *testing.T) {
	path := testutil.WriteFile(t, "notes.txt", "hello")

	_, err := Open(context.Background(), Config{Path: path, Poster: newInbox()})

	var formatErr *core.UnsupportedFormatError
	require.ErrorAs(t, err, &formatErr)
}

func TestOpen_UnknownEngine(t *testing.T) {
	path := testutil.WriteFile(t, "f.csv", testutil.PeopleCSV)

	_, err := Open(context.Background(), Config{
		Path:   path,
		Engine: adapter.Config{Type: "oracle"},
		Poster: newInbox(),
	})

	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), Config{Path: "/does/not/exist.parquet", Poster: newInbox()})
	require.Error(t, err)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := testutil.WriteFile(t, "f.csv", testutil.PeopleCSV)
	posted := newInbox()
	doc, err := Open(ctx, Config{
		Path:          path,
		Session:       core.SessionConfig{TableName: "t"},
		Poster:        posted,
		WatchDebounce: 20 * time.Millisecond,
		Logger:        testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	defer func() { _ = doc.Close() }()

	watching := make(chan error, 1)
	go func() { watching <- doc.Watch(ctx) }()
	// Let the watcher register before writing.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(testutil.PeopleCSV+"4,Dan,2024-04-01\n"), 0o600))

	select {
	case msg := <-posted.ch:
		assert.Equal(t, protocol.ReloadNotice{}, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload notice after file change")
	}

	doc.Dispatcher().Handle(ctx, protocol.QueryRequest{SQL: "SELECT count(*) AS n FROM t"})
	result := nextResult(t, posted)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, int64(4), result.Results[0]["n"])

	cancel()
	assert.NoError(t, <-watching)
}

// nextResult skips reload notices from trailing file events.
func nextResult(t *testing.T, posted *inbox) protocol.QueryResult {
	t.Helper()
	for {
		select {
		case msg := <-posted.ch:
			if result, ok := msg.(protocol.QueryResult); ok {
				return result
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no query result")
		}
	}
}

var _ backend.Poster = (*inbox)(nil)
