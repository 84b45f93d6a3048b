package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/leapview/internal/clipboard"
	"github.com/leapstack-labs/leapview/internal/paging"
	"github.com/leapstack-labs/leapview/internal/testutil"
	"github.com/leapstack-labs/leapview/internal/view"
	"github.com/leapstack-labs/leapview/pkg/core"
	"github.com/leapstack-labs/leapview/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []protocol.BackMessage
}

func (r *recorder) Post(msg protocol.BackMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) last(t *testing.T) protocol.BackMessage {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.msgs)
	return r.msgs[len(r.msgs)-1]
}

type countingMetrics struct {
	mu      sync.Mutex
	handled map[protocol.Kind][]bool
	reloads []bool
}

func (m *countingMetrics) RequestHandled(kind protocol.Kind, _ time.Duration, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handled == nil {
		m.handled = map[protocol.Kind][]bool{}
	}
	m.handled[kind] = append(m.handled[kind], ok)
}

func (m *countingMetrics) ViewReloaded(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads = append(m.reloads, ok)
}

type fixture struct {
	d       *Dispatcher
	posted  *recorder
	clip    *clipboard.Memory
	metrics *countingMetrics
	notices []string
	path    string
}

func newFixture(t *testing.T, session core.SessionConfig) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	db := testutil.NewDuckDB(t)
	path := testutil.WriteFile(t, "people.csv", testutil.PeopleCSV)
	src, err := core.NewSource(path)
	require.NoError(t, err)

	v, err := view.New(ctx, view.Config{Engine: db, Source: src, Session: session, Logger: logger})
	require.NoError(t, err)

	f := &fixture{
		posted:  &recorder{},
		clip:    &clipboard.Memory{},
		metrics: &countingMetrics{},
		path:    path,
	}
	f.d, err = New(Config{
		View:      v,
		Pager:     paging.New(db, logger),
		Poster:    f.posted,
		Clipboard: f.clip,
		Session:   session,
		Metrics:   f.metrics,
		Notify:    func(msg string) { f.notices = append(f.notices, msg) },
		Logger:    logger,
	})
	require.NoError(t, err)
	return f
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestStart_PostsConfig(t *testing.T) {
	f := newFixture(t, core.SessionConfig{TableName: "t", AutoQuery: true})

	f.d.Start()

	notice, ok := f.posted.last(t).(protocol.ConfigNotice)
	require.True(t, ok)
	require.NotNil(t, notice.AutoQuery)
	assert.True(t, *notice.AutoQuery)
}

func TestHandle_QueryThenMore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, core.SessionConfig{TableName: "t", ChunkSize: 2})
	const query = "SELECT * FROM t ORDER BY id"

	f.d.Handle(ctx, protocol.QueryRequest{SQL: query, Limit: 2, RequestID: 1})

	first, ok := f.posted.last(t).(protocol.QueryResult)
	require.True(t, ok)
	require.True(t, first.Success, first.Message)
	assert.Equal(t, uint64(1), first.RequestID)
	assert.Len(t, first.Results, 2)
	assert.Equal(t, []core.Column{
		{Name: "id", Type: "BIGINT"},
		{Name: "name", Type: "VARCHAR"},
		{Name: "joined", Type: "DATE"},
	}, first.Describe)
	assert.True(t, paging.MoreAvailable(len(first.Results), 2))

	f.d.Handle(ctx, protocol.MoreRequest{SQL: query, Limit: 2, Offset: 2, RequestID: 2})

	more, ok := f.posted.last(t).(protocol.MoreResult)
	require.True(t, ok)
	require.True(t, more.Success, more.Message)
	require.Len(t, more.Results, 1)
	assert.Equal(t, "Carol", more.Results[0]["name"])
	assert.False(t, paging.MoreAvailable(len(more.Results), 2))

	assert.Equal(t, StateIdle, f.d.State())
	assert.Equal(t, []bool{true}, f.metrics.handled[protocol.KindQuery])
	assert.Equal(t, []bool{true}, f.metrics.handled[protocol.KindMore])
}

func TestHandle_QueryEncodesUUIDAndTime(t *testing.T) {
	f := newFixture(t, core.SessionConfig{TableName: "t"})

	f.d.Handle(context.Background(), protocol.QueryRequest{
		SQL:       "SELECT '0f8fad5b-d9cb-469f-a165-70867728950e'::UUID AS u, TIME '10:00' AS tm, name FROM t ORDER BY id",
		Limit:     1,
		RequestID: 7,
	})

	result := f.posted.last(t).(protocol.QueryResult)
	require.True(t, result.Success, result.Message)

	wire, err := protocol.EncodeBack(result)
	require.NoError(t, err)
	assert.Contains(t, string(wire), `"u":"0f8fad5b-d9cb-469f-a165-70867728950e"`)
	assert.Contains(t, string(wire), `"tm":"10:00:00"`)
	assert.NotContains(t, string(wire), "0001-01-01")
}

func TestHandle_QueryUsesChunkSizeWithoutLimit(t *testing.T) {
	f := newFixture(t, core.SessionConfig{TableName: "t", ChunkSize: 1})

	f.d.Handle(context.Background(), protocol.QueryRequest{SQL: "SELECT * FROM t"})

	result := f.posted.last(t).(protocol.QueryResult)
	require.True(t, result.Success, result.Message)
	assert.Len(t, result.Results, 1)
}

func TestHandle_QueryFailure(t *testing.T) {
	f := newFixture(t, core.SessionConfig{TableName: "t"})

	f.d.Handle(context.Background(), protocol.QueryRequest{SQL: "SELECT * FROM nonexistent", Limit: 10, RequestID: 5})

	result, ok := f.posted.last(t).(protocol.QueryResult)
	require.True(t, ok)
	assert.False(t, result.Success)
	assert.Nil(t, result.Results)
	assert.Nil(t, result.Describe)
	assert.Equal(t, uint64(5), result.RequestID)
	assert.Contains(t, result.Message, "nonexistent")
	assert.NotContains(t, result.Message, "failed to describe query")
	assert.Equal(t, []bool{false}, f.metrics.handled[protocol.KindQuery])
	assert.Equal(t, StateIdle, f.d.State())
}

func TestHandle_MoreFailure(t *testing.T) {
	f := newFixture(t, core.SessionConfig{TableName: "t"})

	f.d.Handle(context.Background(), protocol.MoreRequest{SQL: "SELECT missing_column FROM t", Limit: 10, Offset: 10})

	result, ok := f.posted.last(t).(protocol.MoreResult)
	require.True(t, ok)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "missing_column")
}

func TestHandle_FailureDoesNotEndSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, core.SessionConfig{TableName: "t"})

	f.d.Handle(ctx, protocol.QueryRequest{SQL: "SELEC oops", Limit: 10})
	require.False(t, f.posted.last(t).(protocol.QueryResult).Success)

	f.d.Handle(ctx, protocol.QueryRequest{SQL: "SELECT count(*) AS n FROM t", Limit: 10})
	result := f.posted.last(t).(protocol.QueryResult)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, int64(3), result.Results[0]["n"])
}

func TestHandle_Copy(t *testing.T) {
	f := newFixture(t, core.SessionConfig{TableName: "t"})
	before := len(f.posted.msgs)

	f.d.Handle(context.Background(), protocol.CopyRequest{SQL: "  SELECT 1\n"})

	text, err := f.clip.ReadText()
	require.NoError(t, err)
	assert.Equal(t, f.d.CreateStatement()+"\n\nSELECT 1;\n", text)
	assert.Equal(t, []string{CopyConfirmation}, f.notices)
	assert.Len(t, f.posted.msgs, before)
}

type failingClipboard struct{}

func (failingClipboard) WriteText(string) error { return errors.New("no display") }

func TestHandle_CopyFailureNotifies(t *testing.T) {
	f := newFixture(t, core.SessionConfig{TableName: "t"})
	f.d.clipboard = failingClipboard{}

	f.d.Handle(context.Background(), protocol.CopyRequest{SQL: "SELECT 1"})

	require.Len(t, f.notices, 1)
	assert.Contains(t, f.notices[0], "no display")
}

func TestHandle_Config(t *testing.T) {
	f := newFixture(t, core.SessionConfig{TableName: "t", AutoQuery: true})
	before := len(f.posted.msgs)

	f.d.Handle(context.Background(), protocol.ConfigRequest{AutoQuery: false})

	assert.False(t, f.d.AutoQuery())
	assert.Len(t, f.posted.msgs, before)
}

func TestFileChanged_ReflectsNewData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, core.SessionConfig{TableName: "t"})
	const query = "SELECT count(*) AS n FROM t"

	f.d.Handle(ctx, protocol.QueryRequest{SQL: query, Limit: 10})
	assert.Equal(t, int64(3), f.posted.last(t).(protocol.QueryResult).Results[0]["n"])

	require.NoError(t, os.WriteFile(f.path, []byte(testutil.PeopleCSV+"4,Dan,2024-04-01\n"), 0o600))
	f.d.FileChanged(ctx)
	assert.Equal(t, protocol.ReloadNotice{}, f.posted.last(t))

	f.d.Handle(ctx, protocol.QueryRequest{SQL: query, Limit: 10})
	assert.Equal(t, int64(4), f.posted.last(t).(protocol.QueryResult).Results[0]["n"])
	assert.Equal(t, []bool{true}, f.metrics.reloads)
}

func TestHandle_ReloadRequest(t *testing.T) {
	f := newFixture(t, core.SessionConfig{TableName: "t"})

	f.d.Handle(context.Background(), protocol.ReloadRequest{})

	assert.Equal(t, protocol.ReloadNotice{}, f.posted.last(t))
	assert.Equal(t, []bool{true}, f.metrics.reloads)
}

func TestFileChanged_DeletedFileStillNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, core.SessionConfig{TableName: "t"})

	require.NoError(t, os.Remove(f.path))
	f.d.FileChanged(ctx)

	assert.Equal(t, protocol.ReloadNotice{}, f.posted.last(t))
	assert.Equal(t, []bool{false}, f.metrics.reloads)
}

func TestConcurrentQueriesAndReloads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, core.SessionConfig{TableName: "t"})

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.d.Handle(ctx, protocol.QueryRequest{SQL: fmt.Sprintf("SELECT %d AS i, count(*) AS n FROM t", i), Limit: 10})
		}()
		go func() {
			defer wg.Done()
			f.d.FileChanged(ctx)
		}()
	}
	wg.Wait()

	f.posted.mu.Lock()
	defer f.posted.mu.Unlock()
	for _, msg := range f.posted.msgs {
		if result, ok := msg.(protocol.QueryResult); ok {
			assert.True(t, result.Success, result.Message)
		}
	}
}

func TestFullQuery(t *testing.T) {
	create := "CREATE OR REPLACE VIEW t AS SELECT * FROM read_csv('f.csv');"

	assert.Equal(t,
		"CREATE OR REPLACE VIEW t AS SELECT * FROM read_csv('f.csv');\n\nSELECT 1;\n",
		FullQuery(create, "SELECT 1"))
	assert.Equal(t,
		"CREATE OR REPLACE VIEW t AS SELECT * FROM read_csv('f.csv');\n\nSELECT 1;\n",
		FullQuery(create, "\n SELECT 1; \n"))
}

func TestFullQuery_BlankQuery(t *testing.T) {
	create := "CREATE OR REPLACE VIEW t AS SELECT * FROM read_csv('f.csv');"

	for _, sql := range []string{"", "   ", "\n\t \n"} {
		assert.Equal(t, create+"\n", FullQuery(create, sql), "query %q", sql)
	}
	assert.Equal(t, "CREATE VIEW t AS SELECT 1;\n", FullQuery("CREATE VIEW t AS SELECT 1", ""))
}

func TestEngineMessage(t *testing.T) {
	inner := errors.New("Catalog Error: Table with name nonexistent does not exist!")
	wrapped := fmt.Errorf("failed to describe query: %w", inner)

	assert.Equal(t, inner.Error(), EngineMessage(wrapped))
	assert.Equal(t, inner.Error(), EngineMessage(inner))
}
