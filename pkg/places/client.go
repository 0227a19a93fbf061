// Package places provides a client for the third-party scraping actor
// that searches business listings for a trade + location query.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.scrapingactor.com/v2"

// Client defines the search operations used by the discovery loop.
type Client interface {
	// Search runs one actor query and returns candidate business records.
	Search(ctx context.Context, query string, maxResults int) ([]Business, error)
}

// Business is one candidate record returned by the actor.
type Business struct {
	Name        string          `json:"title"`
	Email       string          `json:"email,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Website     string          `json:"website,omitempty"`
	PlaceID     string          `json:"placeId,omitempty"`
	SourceURL   string          `json:"url,omitempty"`
	ReviewCount *int            `json:"reviewsCount,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// StatusError is a non-2xx response from the actor API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("places: status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) { c.http.Timeout = d }
}

type httpClient struct {
	key     string
	baseURL string
	http    *http.Client
}

// NewClient creates a places client.
func NewClient(key string, opts ...Option) Client {
	c := &httpClient{
		key:     key,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	Query      string `json:"searchStringsArray"`
	MaxResults int    `json:"maxCrawledPlacesPerSearch"`
	Language   string `json:"language"`
}

func (c *httpClient) Search(ctx context.Context, query string, maxResults int) ([]Business, error) {
	body, err := json.Marshal(searchRequest{
		Query:      query,
		MaxResults: maxResults,
		Language:   "en-GB",
	})
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	url := c.baseURL + "/search?token=" + c.key
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: execute request")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	var results []Business
	if err := json.Unmarshal(respBody, &results); err != nil {
		return nil, eris.Wrap(err, "places: parse response")
	}

	for i := range results {
		raw, _ := json.Marshal(results[i])
		results[i].Raw = raw
	}
	return results, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
