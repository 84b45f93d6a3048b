package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapview/internal/backend"
	"github.com/leapstack-labs/leapview/internal/clipboard"
	"github.com/leapstack-labs/leapview/internal/document"
	"github.com/leapstack-labs/leapview/internal/metrics"
	"github.com/leapstack-labs/leapview/internal/renderer"
	"github.com/leapstack-labs/leapview/internal/state"
	"github.com/leapstack-labs/leapview/internal/testutil"
	"github.com/leapstack-labs/leapview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server *Server
	router *Router
	clip   *clipboard.Memory
	path   string
	http   *httptest.Server
}

func newFixture(t *testing.T, store state.Store, path string) *fixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	if path == "" {
		path = testutil.WriteFile(t, "people.csv", testutil.PeopleCSV)
	}

	router := NewRouter(nil, logger)
	clip := &clipboard.Memory{}
	m := metrics.New()
	doc, err := document.Open(context.Background(), document.Config{
		Path:      path,
		Session:   core.SessionConfig{ChunkSize: 2, AutoQuery: true},
		Poster:    router,
		Clipboard: clip,
		Metrics:   m,
		Notify:    router.Notify,
		Logger:    logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = doc.Close() })

	srv := NewServer(Config{
		Document:      doc,
		Router:        router,
		Store:         store,
		Metrics:       m,
		SessionSecret: "test-secret",
		Logger:        logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = router.Serve(ctx, doc.Dispatcher())
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{server: srv, router: router, clip: clip, path: path, http: ts}
}

// browser is one cookie jar: one browser session.
type browser struct {
	f      *fixture
	client *http.Client
}

func (f *fixture) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{f: f, client: &http.Client{Jar: jar}}
}

func (b *browser) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, b.f.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := b.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// open loads the page and returns the browser's session once its first
// query has been answered.
func (b *browser) open(t *testing.T) *Session {
	t.Helper()
	resp := b.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info StateInfo
	resp = b.do(t, http.MethodGet, "/api/state", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	s, ok := b.f.router.Lookup(info.SessionID)
	require.True(t, ok)
	waitPhase(t, s, renderer.PhaseLoaded)
	return s
}

func (b *browser) action(t *testing.T, name, signals string) {
	t.Helper()
	resp := b.do(t, http.MethodPost, "/api/"+name, signals)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func waitPhase(t *testing.T, s *Session, want renderer.Phase) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Phase() == want },
		10*time.Second, 10*time.Millisecond, "session %s never reached %s (at %s)", s.ID(), want, s.Phase())
}

func TestSource(t *testing.T) {
	f := newFixture(t, nil, "")

	resp := f.browser(t).do(t, http.MethodGet, "/api/source", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info SourceInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "data", info.TableName)
	assert.Equal(t, "delimited", info.Format)
	assert.Equal(t, 2, info.ChunkSize)
	assert.True(t, info.AutoQuery)
	assert.Equal(t, "SELECT * FROM data", info.DefaultQuery)
	assert.Contains(t, info.CreateStatement, "CREATE OR REPLACE VIEW data AS SELECT * FROM read_csv(")
}

func TestPage_RendersSession(t *testing.T) {
	f := newFixture(t, nil, "")
	b := f.browser(t)

	resp := b.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	body := string(page)
	assert.Contains(t, body, "<!doctype html>")
	assert.Contains(t, body, `<textarea id="sql"`)
	assert.Contains(t, body, ">SELECT * FROM data</textarea>")
	assert.Contains(t, body, "/api/events")
	assert.Contains(t, body, `<div id="results"`)
	assert.Contains(t, body, `<div id="status"`)
	assert.Equal(t, 1, f.router.Sessions())

	b.do(t, http.MethodGet, "/", "")
	assert.Equal(t, 1, f.router.Sessions(), "a returning browser keeps its session")
}

func TestEvents_PatchesResults(t *testing.T) {
	f := newFixture(t, nil, "")
	b := f.browser(t)
	b.open(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.http.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := b.client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewReader(resp.Body)
	grid := dataContaining(t, lines, `<div id="results"`)
	assert.Contains(t, grid, "Alice")
	assert.Contains(t, grid, "Bob")
	assert.Contains(t, grid, "2024-01-15")
	assert.NotContains(t, grid, "Carol")

	b.action(t, "run", `{"sql":"SELECT * FROM nonexistent","autoQuery":true}`)
	failure := dataContaining(t, lines, `<div id="error">`)
	assert.Contains(t, failure, "nonexistent")
	assert.NotContains(t, failure, "<table>")
}

// dataContaining returns the next SSE data line containing want.
func dataContaining(t *testing.T, r *bufio.Reader, want string) string {
	t.Helper()
	type result struct {
		line string
		err  error
	}
	deadline := time.After(10 * time.Second)
	for {
		ch := make(chan result, 1)
		go func() {
			line, err := r.ReadString('\n')
			ch <- result{line, err}
		}()
		select {
		case res := <-ch:
			require.NoError(t, res.err)
			if strings.HasPrefix(res.line, "data:") && strings.Contains(res.line, want) {
				return strings.TrimSpace(res.line)
			}
		case <-deadline:
			t.Fatalf("no event containing %q", want)
		}
	}
}

func TestActions_RunAndMore(t *testing.T) {
	f := newFixture(t, nil, "")
	b := f.browser(t)
	s := b.open(t)

	b.action(t, "run", `{"sql":"SELECT id, name FROM data ORDER BY id","autoQuery":true}`)
	require.Eventually(t, func() bool {
		results, _ := s.snapshot()
		return s.Phase() == renderer.PhaseLoaded && len(results.Columns) == 3
	}, 10*time.Second, 10*time.Millisecond)

	results, status := s.snapshot()
	assert.Len(t, results.Rows, 2)
	assert.True(t, status.More)
	assert.Equal(t, []string{"1", "1", "Alice"}, results.Rows[0])

	b.action(t, "more", `{}`)
	require.Eventually(t, func() bool {
		results, _ := s.snapshot()
		return len(results.Rows) == 3
	}, 10*time.Second, 10*time.Millisecond)

	results, status = s.snapshot()
	assert.Equal(t, []string{"3", "3", "Carol"}, results.Rows[2])
	assert.False(t, status.More)
	assert.Equal(t, "3 rows", status.Summary())
}

func TestActions_RejectsBadSignals(t *testing.T) {
	f := newFixture(t, nil, "")
	resp := f.browser(t).do(t, http.MethodPost, "/api/run", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessions_RepliesStayWithRequester(t *testing.T) {
	f := newFixture(t, nil, "")
	a := f.browser(t)
	b := f.browser(t)
	sa := a.open(t)
	sb := b.open(t)
	require.NotEqual(t, sa.ID(), sb.ID())
	assert.Equal(t, 2, f.router.Sessions())

	// Both machines number their requests from 1, so ids collide across
	// sessions.
	a.action(t, "run", `{"sql":"SELECT * FROM nonexistent","autoQuery":true}`)
	b.action(t, "run", `{"sql":"SELECT name FROM data WHERE id = 3","autoQuery":true}`)

	waitPhase(t, sa, renderer.PhaseError)
	require.Eventually(t, func() bool {
		results, _ := sb.snapshot()
		return sb.Phase() == renderer.PhaseLoaded && len(results.Rows) == 1
	}, 10*time.Second, 10*time.Millisecond)

	ra, _ := sa.snapshot()
	assert.Contains(t, ra.ErrorMessage, "nonexistent")
	assert.False(t, ra.ShowGrid)

	rb, _ := sb.snapshot()
	assert.False(t, rb.ShowError)
	assert.Equal(t, []string{"1", "Carol"}, rb.Rows[0])
}

func TestSessions_CopyNotifiesRequesterOnly(t *testing.T) {
	f := newFixture(t, nil, "")
	a := f.browser(t)
	b := f.browser(t)
	sa := a.open(t)
	sb := b.open(t)

	a.action(t, "copy", `{"sql":"SELECT 1"}`)
	require.Eventually(t, func() bool {
		_, status := sa.snapshot()
		return status.Notice == backend.CopyConfirmation
	}, 10*time.Second, 10*time.Millisecond)

	_, status := sb.snapshot()
	assert.Empty(t, status.Notice)
	require.NotEmpty(t, f.clip.History())
	assert.True(t, strings.HasSuffix(f.clip.History()[0], "SELECT 1;\n"))
}

func TestSessions_ReloadReachesEverySession(t *testing.T) {
	f := newFixture(t, nil, "")
	a := f.browser(t)
	b := f.browser(t)
	sessions := []*Session{a.open(t), b.open(t)}

	count := `{"sql":"SELECT count(*) AS n FROM data","autoQuery":true}`
	a.action(t, "run", count)
	b.action(t, "run", count)
	for _, s := range sessions {
		require.Eventually(t, func() bool {
			results, _ := s.snapshot()
			return len(results.Rows) == 1 && results.Rows[0][1] == "3"
		}, 10*time.Second, 10*time.Millisecond)
	}

	require.NoError(t, os.WriteFile(f.path, []byte(testutil.PeopleCSV+"4,Dan,2024-04-01\n"), 0600))
	a.action(t, "reload", `{}`)

	for _, s := range sessions {
		require.Eventually(t, func() bool {
			results, _ := s.snapshot()
			return len(results.Rows) == 1 && results.Rows[0][1] == "4"
		}, 10*time.Second, 10*time.Millisecond, "session %s did not rerun after reload", s.ID())
	}
}

func TestAutoQuery_TogglesSessionOnly(t *testing.T) {
	f := newFixture(t, nil, "")
	a := f.browser(t)
	b := f.browser(t)
	sa := a.open(t)
	sb := b.open(t)

	a.action(t, "auto", `{"autoQuery":false}`)
	_, statusA := sa.snapshot()
	_, statusB := sb.snapshot()
	assert.False(t, statusA.AutoQuery)
	assert.True(t, statusB.AutoQuery)

	a.action(t, "blur", `{"sql":"SELECT 1 AS one","autoQuery":false}`)
	assert.Equal(t, "SELECT 1 AS one", sa.Text())
	assert.Equal(t, renderer.PhaseLoaded, sa.Phase(), "blur without auto query does not submit")
}

func TestState_StorePersistsPerBrowser(t *testing.T) {
	store, err := state.Open(context.Background(), ":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	f := newFixture(t, store, "")
	b := f.browser(t)
	s := b.open(t)

	b.action(t, "run", `{"sql":"SELECT name FROM data","autoQuery":true}`)
	waitPhase(t, s, renderer.PhaseLoaded)

	saved, ok, err := store.Get(context.Background(), state.SessionKey(f.path), stateKey(s.ID()))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SELECT name FROM data", saved)

	restarted := newFixture(t, store, f.path)
	assert.Equal(t, "SELECT name FROM data", restarted.router.Session(s.ID()).Text())
	assert.Equal(t, "SELECT * FROM data", restarted.router.Session("another-browser").Text())
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, nil, "")
	b := f.browser(t)
	b.open(t)

	resp := b.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "leapview_renderer_sessions")

	resp = b.do(t, http.MethodGet, "/static/app.css", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
