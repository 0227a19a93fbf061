// Package domainsearch looks up published email addresses for a domain
// through a Hunter-compatible HTTP API. It is the fallback when crawling
// a site turns up nothing.
package domainsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.hunter.io/v2"

// Client defines the lookup operations used by email discovery.
type Client interface {
	// FindEmail returns the best published address for a domain, or
	// empty string when the provider has none on record.
	FindEmail(ctx context.Context, domain string) (string, error)
}

// StatusError is a non-2xx response from the lookup API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("domainsearch: status %d: %s", e.StatusCode, e.Body)
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

type httpClient struct {
	key     string
	baseURL string
	http    *http.Client
}

// NewClient creates a domain search client.
func NewClient(key string, opts ...Option) Client {
	c := &httpClient{
		key:     key,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Data struct {
		Domain string `json:"domain"`
		Emails []struct {
			Value      string `json:"value"`
			Type       string `json:"type"` // "personal" or "generic"
			Confidence int    `json:"confidence"`
		} `json:"emails"`
	} `json:"data"`
}

func (c *httpClient) FindEmail(ctx context.Context, domain string) (string, error) {
	q := url.Values{}
	q.Set("domain", domain)
	q.Set("api_key", c.key)
	q.Set("limit", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domain-search?"+q.Encode(), nil)
	if err != nil {
		return "", eris.Wrap(err, "domainsearch: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "domainsearch: execute request")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return "", eris.Wrap(err, "domainsearch: read response")
	}

	// The provider reports an unknown domain as 404. That is a miss,
	// not a failure.
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", eris.Wrap(err, "domainsearch: parse response")
	}

	// Prefer personal addresses over generic ones, highest confidence first.
	best := ""
	bestScore := -1
	for _, e := range parsed.Data.Emails {
		score := e.Confidence
		if e.Type == "personal" {
			score += 1000
		}
		if score > bestScore {
			best = e.Value
			bestScore = score
		}
	}
	return best, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
