// Package search provides the web search backends behind the google_search
// tool. Each backend implements Provider.
package search

import (
	"context"
	"fmt"
)

// Result is a single search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}

// Options are optional parameters for a search query.
type Options struct {
	// Count is the maximum number of results to return. Zero means provider default.
	Count int `json:"count,omitempty"`

	// Language is an ISO 639-1 language code (e.g., "en", "ko").
	Language string `json:"language,omitempty"`
}

// Provider is the interface that search backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "mock", "searxng").
	Name() string

	// Search executes a query and returns results.
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// DefaultCount is used when Options.Count is zero.
const DefaultCount = 3

// Mock returns canned results derived from the query. It needs no network
// access and is the default provider.
type Mock struct{}

// NewMock creates the mock provider.
func NewMock() *Mock { return &Mock{} }

// Name implements Provider.
func (*Mock) Name() string { return "mock" }

// Search implements Provider.
func (*Mock) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := []Result{
		{Title: query + " - latest information", URL: "https://example.com/result1", Snippet: fmt.Sprintf("Latest information about %s. (mock data)", query)},
		{Title: query + " in-depth guide", URL: "https://example.com/result2", Snippet: fmt.Sprintf("A detailed explanation of %s with examples. (mock data)", query)},
		{Title: query + " related news", URL: "https://example.com/result3", Snippet: fmt.Sprintf("Recent news and trends about %s. (mock data)", query)},
	}
	n := opts.Count
	if n <= 0 {
		n = DefaultCount
	}
	if n > len(all) {
		n = len(all)
	}
	return all[:n], nil
}
