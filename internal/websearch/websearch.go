package websearch

import (
	"context"
	"errors"
)

// Result is one normalized web-search hit.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// ErrProviderFailure marks a search that failed outright, as opposed to
// a search that legitimately found nothing. The context assembler
// renders the two cases differently.
var ErrProviderFailure = errors.New("web search provider failure")

// Client wraps the search-provider collaborator.
type Client interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}
