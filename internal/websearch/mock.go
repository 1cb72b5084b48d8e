package websearch

import (
	"context"
	"strings"
)

// MockClient serves canned results keyed by substring match on the
// query. Useful for local runs without outbound network access.
type MockClient struct {
	// Results maps a lowercase query fragment to the results served
	// when the fragment appears in the query.
	Results map[string][]Result

	// Fail forces every search to report a provider failure.
	Fail bool
}

func NewMockClient() *MockClient {
	return &MockClient{Results: map[string][]Result{}}
}

func (m *MockClient) Search(_ context.Context, query string, maxResults int) ([]Result, error) {
	if m.Fail {
		return nil, ErrProviderFailure
	}
	lowered := strings.ToLower(query)
	for fragment, results := range m.Results {
		if strings.Contains(lowered, fragment) {
			if len(results) > maxResults {
				results = results[:maxResults]
			}
			out := make([]Result, len(results))
			copy(out, results)
			return out, nil
		}
	}
	return []Result{}, nil
}
