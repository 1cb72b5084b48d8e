package websearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const resultsPage = `<html><body>
<div class="results">
  <div class="result">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.paris.fr%2Fmaire">Mayor of Paris</a>
    <div class="result__snippet">Anne Hidalgo has been the mayor of Paris since 2014.</div>
  </div>
  <div class="result">
    <a class="result__a" href="https://en.wikipedia.org/wiki/Paris">Paris</a>
    <div class="result__snippet">Paris is the capital of France.</div>
  </div>
  <div class="result">
    <a class="result__a" href="https://example.com/three">Third</a>
    <div class="result__snippet">A third result.</div>
  </div>
</div>
</body></html>`

func newTestClient(apiURL, htmlURL string) *DuckDuckGoClient {
	c := NewDuckDuckGoClient("test-agent", 2*time.Second)
	c.apiURL = apiURL
	c.htmlURL = htmlURL
	return c
}

func TestSearchUsesInstantAnswer(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("format = %q, want json", got)
		}
		w.Write([]byte(`{"Heading":"Paris","Abstract":"Paris is the capital of France.","AbstractURL":"https://en.wikipedia.org/wiki/Paris"}`))
	}))
	defer api.Close()
	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("html fallback should not be reached")
	}))
	defer html.Close()

	c := newTestClient(api.URL, html.URL)
	results, err := c.Search(context.Background(), "Paris", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Title != "Paris" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[0].URL != "https://en.wikipedia.org/wiki/Paris" {
		t.Errorf("url = %q", results[0].URL)
	}
}

func TestSearchFallsBackToHTML(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"Abstract":"","Answer":"","RelatedTopics":[]}`))
	}))
	defer api.Close()
	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer html.Close()

	c := newTestClient(api.URL, html.URL)
	results, err := c.Search(context.Background(), "current mayor of Paris", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Mayor of Paris" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[0].URL != "https://www.paris.fr/maire" {
		t.Errorf("redirect not unwrapped: %q", results[0].URL)
	}
	if results[1].Snippet != "Paris is the capital of France." {
		t.Errorf("snippet = %q", results[1].Snippet)
	}
}

func TestSearchEmptyHTMLIsNotFailure(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer api.Close()
	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><div class="results"></div></body></html>`))
	}))
	defer html.Close()

	c := newTestClient(api.URL, html.URL)
	results, err := c.Search(context.Background(), "nothing matches this", 5)
	if err != nil {
		t.Fatalf("empty results should not be an error, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestSearchProviderFailure(t *testing.T) {
	fail := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	api := httptest.NewServer(fail)
	defer api.Close()
	html := httptest.NewServer(fail)
	defer html.Close()

	c := newTestClient(api.URL, html.URL)
	_, err := c.Search(context.Background(), "anything", 5)
	if !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("err = %v, want ErrProviderFailure", err)
	}
}

func TestGetRetriesOnRetryableStatus(t *testing.T) {
	var calls int
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"Answer":"42","Heading":"Answer"}`))
	}))
	defer api.Close()
	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("html fallback should not be reached")
	}))
	defer html.Close()

	c := newTestClient(api.URL, html.URL)
	results, err := c.Search(context.Background(), "meaning of life", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(results) != 1 || results[0].Snippet != "42" {
		t.Errorf("results = %#v", results)
	}
}

func TestResolveRedirect(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpage", "https://example.com/page"},
		{"https://example.com/direct", "https://example.com/direct"},
		{"//duckduckgo.com/about", "https://duckduckgo.com/about"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := resolveRedirect(tc.in); got != tc.want {
			t.Errorf("resolveRedirect(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	m.Results["paris"] = []Result{{Title: "Paris", Snippet: "capital"}}

	got, err := m.Search(context.Background(), "Who runs Paris?", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Paris" {
		t.Fatalf("results = %#v", got)
	}

	m.Fail = true
	if _, err := m.Search(context.Background(), "anything", 5); !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("err = %v, want ErrProviderFailure", err)
	}
}
