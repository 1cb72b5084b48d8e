package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPRetriever forwards retrieval to a vector-search collaborator over
// JSON HTTP.
type HTTPRetriever struct {
	url    string
	client *http.Client
}

func NewHTTPRetriever(url string) *HTTPRetriever {
	return &HTTPRetriever{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type httpRetrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type httpRetrieveResponse struct {
	Passages []Passage `json:"passages"`
}

func (r *HTTPRetriever) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if k < 1 {
		k = 1
	}
	payload, err := json.Marshal(httpRetrieveRequest{Query: query, K: k})
	if err != nil {
		return nil, fmt.Errorf("marshal retrieve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create retrieve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send retrieve request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("retriever status %d: %s", res.StatusCode, string(body))
	}

	var decoded httpRetrieveResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode retrieve response: %w", err)
	}

	for i := range decoded.Passages {
		decoded.Passages[i].Rank = i
	}
	return decoded.Passages, nil
}

// Ready probes the collaborator with a throwaway query; any transport
// or protocol failure means the index cannot serve.
func (r *HTTPRetriever) Ready(ctx context.Context) error {
	if _, err := r.Retrieve(ctx, "readiness probe", 1); err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return nil
}

func (r *HTTPRetriever) Close() error { return nil }
