package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lbianche/minerva/internal/reliability"
)

const (
	instantAnswerURL = "https://api.duckduckgo.com/"
	htmlSearchURL    = "https://html.duckduckgo.com/html/"

	maxAttempts  = 3
	retryBase    = 200 * time.Millisecond
	retryCeiling = 2 * time.Second
)

// DuckDuckGoClient queries the DuckDuckGo Instant Answer API and falls
// back to the HTML results page when the API has nothing to say.
type DuckDuckGoClient struct {
	client    *http.Client
	userAgent string
	apiURL    string
	htmlURL   string
}

func NewDuckDuckGoClient(userAgent string, timeout time.Duration) *DuckDuckGoClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "minerva/1.0"
	}
	return &DuckDuckGoClient{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		apiURL:    instantAnswerURL,
		htmlURL:   htmlSearchURL,
	}
}

func (c *DuckDuckGoClient) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults < 1 {
		maxResults = 1
	}

	results, err := c.instantAnswer(ctx, query, maxResults)
	if err == nil && len(results) > 0 {
		return results, nil
	}
	// The Instant Answer API legitimately answers nothing for most
	// queries; only the HTML fallback decides between "failed" and
	// "no results".
	htmlResults, htmlErr := c.htmlResults(ctx, query, maxResults)
	if htmlErr != nil {
		if err != nil {
			return nil, fmt.Errorf("%w: instant answer: %v; html: %v", ErrProviderFailure, err, htmlErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, htmlErr)
	}
	return htmlResults, nil
}

type instantAnswerResponse struct {
	Abstract       string `json:"Abstract"`
	AbstractSource string `json:"AbstractSource"`
	AbstractURL    string `json:"AbstractURL"`
	Heading        string `json:"Heading"`
	Answer         string `json:"Answer"`
	RelatedTopics  []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

func (c *DuckDuckGoClient) instantAnswer(ctx context.Context, query string, maxResults int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	body, err := c.get(ctx, c.apiURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var decoded instantAnswerResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode instant answer: %w", err)
	}

	var results []Result
	if decoded.Abstract != "" {
		results = append(results, Result{
			Title:   firstNonEmpty(decoded.Heading, decoded.AbstractSource),
			Snippet: decoded.Abstract,
			URL:     decoded.AbstractURL,
		})
	}
	if decoded.Answer != "" {
		results = append(results, Result{
			Title:   firstNonEmpty(decoded.Heading, "Instant answer"),
			Snippet: decoded.Answer,
			URL:     decoded.AbstractURL,
		})
	}
	for _, rt := range decoded.RelatedTopics {
		if len(results) >= maxResults {
			break
		}
		if rt.Text == "" {
			continue
		}
		results = append(results, Result{
			Title:   topicTitle(rt.Text),
			Snippet: rt.Text,
			URL:     rt.FirstURL,
		})
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func (c *DuckDuckGoClient) htmlResults(ctx context.Context, query string, maxResults int) ([]Result, error) {
	body, err := c.get(ctx, c.htmlURL+"?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse html results: %w", err)
	}

	var results []Result
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Find("a.result__a").Text())
		snippet := strings.TrimSpace(sel.Find(".result__snippet").Text())
		href, _ := sel.Find("a.result__a").Attr("href")
		if title == "" && snippet == "" {
			return true
		}
		results = append(results, Result{
			Title:   title,
			Snippet: snippet,
			URL:     resolveRedirect(href),
		})
		return len(results) < maxResults
	})
	return results, nil
}

// get fetches the URL, retrying on retryable statuses with capped
// backoff. Never retries past the context deadline.
func (c *DuckDuckGoClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, retryBase, retryCeiling)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)

		res, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(res.Body, 4<<20))
		res.Body.Close()

		if res.StatusCode >= 200 && res.StatusCode < 300 {
			if readErr != nil {
				lastErr = readErr
				continue
			}
			return body, nil
		}
		lastErr = fmt.Errorf("duckduckgo status %d", res.StatusCode)
		if !reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
}

// topicTitle derives a short title from a related-topic text, which
// DuckDuckGo formats as "Title - description".
func topicTitle(text string) string {
	if i := strings.Index(text, " - "); i > 0 {
		return text[:i]
	}
	if len(text) > 60 {
		return text[:60]
	}
	return text
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
