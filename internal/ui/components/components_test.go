package components

import (
	"bytes"
	"context"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestResultsPanel(t *testing.T) {
	tests := []struct {
		name     string
		results  Results
		contains []string
		excludes []string
	}{
		{
			name:     "loading",
			results:  Results{Loading: true},
			contains: []string{`<div id="loading">`},
			excludes: []string{"<table>", `id="error"`},
		},
		{
			name:     "error is escaped",
			results:  Results{ShowError: true, ErrorMessage: `near "<b>": syntax error`},
			contains: []string{`<div id="error">near &#34;&lt;b&gt;&#34;: syntax error</div>`},
			excludes: []string{"<table>", "<b>"},
		},
		{
			name: "grid",
			results: Results{
				ShowGrid: true,
				Columns:  []Column{{Title: "#", RowNumber: true}, {Title: "name", Type: "VARCHAR"}},
				Rows:     [][]string{{"1", "<Alice>"}, {"2", "Bob & co"}},
			},
			contains: []string{
				`<th data-kind="rownum" title="">#</th>`,
				`<th data-kind="cell" title="VARCHAR">name</th>`,
				`<td data-kind="rownum">1</td>`,
				`<td data-kind="cell">&lt;Alice&gt;</td>`,
				`<td data-kind="cell">Bob &amp; co</td>`,
			},
			excludes: []string{`id="error"`, `id="loading"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := render(t, ResultsPanel(tt.results))
			assert.Contains(t, html, `<div id="`+ResultsID+`"`)
			assert.Contains(t, html, "@post(&#39;/api/more&#39;)")
			for _, s := range tt.contains {
				assert.Contains(t, html, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, html, s)
			}
		})
	}
}

func TestStatusLine(t *testing.T) {
	html := render(t, StatusLine(Status{Phase: "loaded", Rows: 2, More: true}))
	assert.Contains(t, html, `<div id="`+StatusID+`" data-phase="loaded">`)
	assert.Contains(t, html, "2 rows, scroll for more")
	assert.NotContains(t, html, "notice")

	html = render(t, StatusLine(Status{Phase: "loaded", Rows: 1, Notice: "Full query copied to clipboard"}))
	assert.Contains(t, html, `<span class="notice">Full query copied to clipboard</span>`)
}

func TestStatus_Summary(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Status{Phase: "empty"}, "Ready"},
		{Status{Phase: "loading"}, "Running query"},
		{Status{Phase: "loading-more", Rows: 500}, "500 rows, fetching more"},
		{Status{Phase: "error", Rows: 3}, "Query failed"},
		{Status{Phase: "loaded", Rows: 0}, "0 rows"},
		{Status{Phase: "loaded", Rows: 1}, "1 row"},
		{Status{Phase: "loaded", Rows: 3}, "3 rows"},
		{Status{Phase: "loaded", Rows: 2, More: true}, "2 rows, scroll for more"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.Summary(), "phase %s", tt.status.Phase)
	}
}

func TestExplorerPage(t *testing.T) {
	page := Page{
		Path:      "/data/people.csv",
		TableName: "data",
		SQL:       "SELECT * FROM data WHERE name <> 'x'",
		Status:    Status{Phase: "loading", AutoQuery: true},
		Results:   Results{Loading: true},
	}

	assert.JSONEq(t, `{"sql":"SELECT * FROM data WHERE name <> 'x'","autoQuery":true}`, page.Signals())

	html := render(t, ExplorerPage(page))
	assert.Contains(t, html, "<title>/data/people.csv - leapview</title>")
	assert.Contains(t, html, `&#34;autoQuery&#34;:true`)
	assert.Contains(t, html, `data-init="@get(&#39;/api/events&#39;)"`)
	assert.Contains(t, html, ">SELECT * FROM data WHERE name &lt;&gt; &#39;x&#39;</textarea>")
	assert.Contains(t, html, `<div id="status" data-phase="loading">`)
	assert.Contains(t, html, `<div id="loading">`)
}
