package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hupe1980/toolmesh/logging"
	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the DuckDuckGo Instant Answer endpoint.
	DefaultBaseURL = "https://api.duckduckgo.com"

	// DefaultHTMLURL serves the plain HTML page of web results.
	DefaultHTMLURL = "https://html.duckduckgo.com"

	// NoResults is returned by Run when the answer carries no usable text.
	NoResults = "No good DuckDuckGo Search Result was found"
)

// Searcher turns a query into a single string of snippets.
type Searcher interface {
	Run(ctx context.Context, query string) (string, error)
	Report(ctx context.Context, query string) string
}

// DuckDuckGoOptions configure the DuckDuckGo searcher.
type DuckDuckGoOptions struct {
	// BaseURL is the Instant Answer API, queried when the web results page
	// yields no snippets.
	BaseURL string

	// HTMLURL is the web results page. Empty disables it.
	HTMLURL string

	Timeout    time.Duration
	MaxResults int
	Logger     logging.Logger
}

// DuckDuckGo is a Searcher over DuckDuckGo web results with the Instant
// Answer API as fallback.
type DuckDuckGo struct {
	api  *resty.Client
	html *resty.Client
	opts DuckDuckGoOptions
}

var _ Searcher = (*DuckDuckGo)(nil)

// NewDuckDuckGo creates a DuckDuckGo searcher.
func NewDuckDuckGo(optFns ...func(o *DuckDuckGoOptions)) *DuckDuckGo {
	opts := DuckDuckGoOptions{
		BaseURL:    DefaultBaseURL,
		HTMLURL:    DefaultHTMLURL,
		Timeout:    30 * time.Second,
		MaxResults: 5,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	d := &DuckDuckGo{
		api: resty.New().
			SetBaseURL(opts.BaseURL).
			SetTimeout(opts.Timeout).
			SetHeader("Accept", "application/json"),
		opts: opts,
	}

	if opts.HTMLURL != "" {
		d.html = resty.New().
			SetBaseURL(opts.HTMLURL).
			SetTimeout(opts.Timeout).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "text/html")
	}

	return d
}

// Run queries DuckDuckGo and joins up to MaxResults snippets with a space.
// Snippets come from the web results page; when it fails or has none, the
// Instant Answer API is asked instead.
func (d *DuckDuckGo) Run(ctx context.Context, query string) (string, error) {
	if d.html != nil {
		snippets, err := d.webResults(ctx, query)
		if err != nil {
			d.opts.Logger.Warn("search.results.error", "query", query, "error", err.Error())
		} else if len(snippets) > 0 {
			return strings.Join(snippets, " "), nil
		}
	}

	return d.instantAnswer(ctx, query)
}

func (d *DuckDuckGo) instantAnswer(ctx context.Context, query string) (string, error) {
	resp, err := d.api.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":             query,
			"format":        "json",
			"no_html":       "1",
			"skip_disambig": "0",
		}).
		Get("/")
	if err != nil {
		return "", fmt.Errorf("duckduckgo search %q: %w", query, err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("duckduckgo search %q: unexpected status %d", query, resp.StatusCode())
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("duckduckgo search %q: invalid json response", query)
	}

	snippets := collectSnippets(gjson.ParseBytes(body), d.opts.MaxResults)
	if len(snippets) == 0 {
		return NoResults, nil
	}

	return strings.Join(snippets, " "), nil
}

// Report is the string form of Run handed to agents. It never fails.
func (d *DuckDuckGo) Report(ctx context.Context, query string) string {
	result, err := d.Run(ctx, query)
	if err != nil {
		d.opts.Logger.Error("search.run.error", "query", query, "error", err.Error())
		return fmt.Sprintf("An error occurred while performing the web search for '%s'.", query)
	}

	d.opts.Logger.Info("search.run.success", "query", query, "result", result)

	return result
}

func collectSnippets(doc gjson.Result, limit int) []string {
	set := newSnippetSet(limit)
	add := set.add

	for _, field := range []string{"Answer", "AbstractText", "Definition"} {
		if !add(doc.Get(field).String()) {
			return set.items
		}
	}

	var walk func(topics gjson.Result) bool

	walk = func(topics gjson.Result) bool {
		cont := true

		topics.ForEach(func(_, topic gjson.Result) bool {
			if nested := topic.Get("Topics"); nested.IsArray() {
				cont = walk(nested)
			} else {
				cont = add(topic.Get("Text").String())
			}

			return cont
		})

		return cont
	}

	walk(doc.Get("RelatedTopics"))

	return set.items
}

// snippetSet collects distinct, non-empty snippets up to a limit.
type snippetSet struct {
	limit int
	items []string
	seen  map[string]struct{}
}

func newSnippetSet(limit int) *snippetSet {
	return &snippetSet{limit: limit, seen: map[string]struct{}{}}
}

// add records text and reports whether more snippets are wanted.
func (s *snippetSet) add(text string) bool {
	text = strings.Join(strings.Fields(text), " ")
	if text != "" {
		if _, dup := s.seen[text]; !dup {
			s.seen[text] = struct{}{}
			s.items = append(s.items, text)
		}
	}

	return len(s.items) < s.limit
}
