package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hupe1980/toolmesh/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDDGServer(t *testing.T, status int, payload string, gotQuery *url.Values) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotQuery != nil {
			*gotQuery = r.URL.Query()
		}
		w.Header().Set("Content-Type", "application/x-javascript")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newTestDDG(url string, max int) *DuckDuckGo {
	return NewDuckDuckGo(func(o *DuckDuckGoOptions) {
		o.BaseURL = url
		o.HTMLURL = ""
		o.Timeout = 2 * time.Second
		o.MaxResults = max
	})
}

func TestDuckDuckGo_Run(t *testing.T) {
	var q url.Values

	srv := newDDGServer(t, http.StatusOK, `{
		"Answer": "",
		"AbstractText": "Go is a statically typed, compiled language.",
		"Definition": "",
		"RelatedTopics": [
			{"Text": "Go (game) - An abstract strategy board game."},
			{"Name": "Software", "Topics": [
				{"Text": "Gopher - Mascot of Go."},
				{"Text": "Go (game) - An abstract strategy board game."}
			]},
			{"Text": "Golang - Alternative name."}
		]
	}`, &q)

	out, err := newTestDDG(srv.URL, 5).Run(context.Background(), "golang")
	require.NoError(t, err)
	assert.Equal(t, "Go is a statically typed, compiled language. Go (game) - An abstract strategy board game. Gopher - Mascot of Go. Golang - Alternative name.", out)

	assert.Equal(t, "golang", q.Get("q"))
	assert.Equal(t, "json", q.Get("format"))
	assert.Equal(t, "1", q.Get("no_html"))
}

func TestDuckDuckGo_MaxResults(t *testing.T) {
	srv := newDDGServer(t, http.StatusOK, `{
		"Answer": "42",
		"AbstractText": "abstract",
		"RelatedTopics": [{"Text": "one"}, {"Text": "two"}]
	}`, nil)

	out, err := newTestDDG(srv.URL, 2).Run(context.Background(), "meaning")
	require.NoError(t, err)
	assert.Equal(t, "42 abstract", out)
}

func TestDuckDuckGo_NoResults(t *testing.T) {
	srv := newDDGServer(t, http.StatusOK, `{"Answer":"","AbstractText":"","RelatedTopics":[]}`, nil)

	d := newTestDDG(srv.URL, 5)

	out, err := d.Run(context.Background(), "xyzzy")
	require.NoError(t, err)
	assert.Equal(t, NoResults, out)
	assert.Equal(t, NoResults, d.Report(context.Background(), "xyzzy"))
}

func TestDuckDuckGo_Failures(t *testing.T) {
	bad := newDDGServer(t, http.StatusInternalServerError, `oops`, nil)
	d := newTestDDG(bad.URL, 5)

	_, err := d.Run(context.Background(), "go")
	assert.Error(t, err)
	assert.Equal(t, "An error occurred while performing the web search for 'go'.", d.Report(context.Background(), "go"))

	garbage := newDDGServer(t, http.StatusOK, `<html>`, nil)
	_, err = newTestDDG(garbage.URL, 5).Run(context.Background(), "go")
	assert.Error(t, err)

	closed := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	assert.Equal(t,
		"An error occurred while performing the web search for 'go'.",
		newTestDDG(closedURL, 5).Report(context.Background(), "go"),
	)
}

const resultsPage = `<html><body>
<div class="result results_links result--ad">
  <a class="result__a" href="https://ads.example">Sponsored</a>
  <a class="result__snippet" href="https://ads.example">Buy a gopher plush today.</a>
</div>
<div class="result results_links web-result">
  <a class="result__a" href="https://go.dev">The Go Programming Language</a>
  <a class="result__snippet" href="https://go.dev">Go is an open source  programming language that makes it <b>simple</b> to build software.</a>
</div>
<div class="result results_links web-result">
  <a class="result__snippet" href="https://go.dev/doc">Documentation for the <b>Go</b> language.</a>
</div>
<div class="result results_links web-result">
  <a class="result__snippet" href="https://go.dev/tour">A Tour of Go.</a>
</div>
</body></html>`

// newSplitServer serves the HTML results page and the Instant Answer API
// from one test server.
func newSplitServer(t *testing.T, htmlStatus int, page, api string, form *url.Values, apiHits *int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/html/" {
			if form != nil {
				require.NoError(t, r.ParseForm())
				*form = r.PostForm
			}
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(htmlStatus)
			_, _ = io.WriteString(w, page)
			return
		}

		if apiHits != nil {
			*apiHits++
		}
		_, _ = io.WriteString(w, api)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newSplitDDG(url string, max int) *DuckDuckGo {
	return NewDuckDuckGo(func(o *DuckDuckGoOptions) {
		o.BaseURL = url
		o.HTMLURL = url
		o.Timeout = 2 * time.Second
		o.MaxResults = max
	})
}

func TestDuckDuckGo_WebResults(t *testing.T) {
	var (
		form    url.Values
		apiHits int
	)

	srv := newSplitServer(t, http.StatusOK, resultsPage, `{"AbstractText":"unused"}`, &form, &apiHits)

	out, err := newSplitDDG(srv.URL, 2).Run(context.Background(), "golang")
	require.NoError(t, err)
	assert.Equal(t, "Go is an open source programming language that makes it simple to build software. Documentation for the Go language.", out)
	assert.Equal(t, "golang", form.Get("q"))
	assert.Zero(t, apiHits)
}

func TestDuckDuckGo_WebResultsFallBackToInstantAnswer(t *testing.T) {
	tests := []struct {
		name   string
		status int
		page   string
	}{
		{name: "rate limited", status: http.StatusAccepted, page: "<html>challenge</html>"},
		{name: "no snippets", status: http.StatusOK, page: "<html><body>No results.</body></html>"},
		{name: "server error", status: http.StatusInternalServerError, page: "oops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var apiHits int

			srv := newSplitServer(t, tt.status, tt.page, `{"AbstractText":"Go is a programming language."}`, nil, &apiHits)

			out, err := newSplitDDG(srv.URL, 5).Run(context.Background(), "golang")
			require.NoError(t, err)
			assert.Equal(t, "Go is a programming language.", out)
			assert.Equal(t, 1, apiHits)
		})
	}
}

func TestDuckDuckGo_ReportLogsSuccessEvent(t *testing.T) {
	srv := newDDGServer(t, http.StatusOK, `{"AbstractText":"Go is a programming language."}`, nil)

	buf := &bytes.Buffer{}
	d := NewDuckDuckGo(func(o *DuckDuckGoOptions) {
		o.BaseURL = srv.URL
		o.HTMLURL = ""
		o.Logger = logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: buf})
	})

	require.Equal(t, "Go is a programming language.", d.Report(context.Background(), "golang"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "search.run.success", entry["msg"])
	assert.Equal(t, "golang", entry["query"])
	assert.Equal(t, "Go is a programming language.", entry["result"])
}
