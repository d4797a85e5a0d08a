package search

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

const userAgent = "Mozilla/5.0 (compatible; toolmesh/1.0)"

// webResults posts the query to the HTML results page and returns the
// snippets of organic results in page order. Ads are skipped.
func (d *DuckDuckGo) webResults(ctx context.Context, query string) ([]string, error) {
	resp, err := d.html.R().
		SetContext(ctx).
		SetFormData(map[string]string{"q": query}).
		Post("/html/")
	if err != nil {
		return nil, fmt.Errorf("duckduckgo results %q: %w", query, err)
	}

	// A rate-limited client gets 202 with a challenge page.
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo results %q: unexpected status %d", query, resp.StatusCode())
	}

	doc, err := html.Parse(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo results %q: %w", query, err)
	}

	return resultSnippets(doc, d.opts.MaxResults), nil
}

func resultSnippets(doc *html.Node, limit int) []string {
	set := newSnippetSet(limit)

	var walk func(n *html.Node, ad bool) bool

	walk = func(n *html.Node, ad bool) bool {
		if n.Type == html.ElementNode {
			if hasClass(n, "result--ad") {
				ad = true
			}

			if hasClass(n, "result__snippet") {
				if ad {
					return true
				}
				return set.add(textContent(n))
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c, ad) {
				return false
			}
		}

		return true
	}

	walk(doc, false)

	return set.items
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}

	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder

	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)

	return b.String()
}
