// Package search answers free-text questions with short web snippets.
//
// DuckDuckGo is the default Searcher. It reads the snippets of the plain HTML
// results page and falls back to the Instant Answer API, which returns
// abstracts, definitions and related topics, when that page gives nothing.
// Neither endpoint needs a key.
package search
