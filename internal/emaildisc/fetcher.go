package emaildisc

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; OutreachBot/1.0)"
	maxBodyBytes = 512 * 1024
)

// Soft per-page error codes. These never abort a discovery; they are
// recorded and the crawl moves to the next candidate path.
const (
	ErrCodeNoWebsite    = "no_website"
	ErrCodeBlocked      = "blocked"
	ErrCodeTimeout      = "fetch_timeout"
	ErrCodeConnect      = "fetch_error"
	ErrCodeHTTPStatus   = "http_error"
	ErrCodeNotHTML      = "not_html"
	ErrCodeRedirectLoop = "too_many_redirects"
	ErrCodeRobots       = "robots_disallowed"
	ErrCodeNoEmailFound = "no_email_found"
)

// errTooManyRedirects caps redirect chains. http.Client wraps it in a
// *url.Error, so fetch matches it with errors.Is.
var errTooManyRedirects = errors.New("stopped after 5 redirects")

// fetchError is a classified soft failure for one page.
type fetchError struct {
	Code string
	Err  error
}

func (e *fetchError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

// fetcher performs throttled, robots-aware page fetches. Per-host
// limiters enforce a minimum delay between consecutive requests to the
// same domain; both maps live for the process lifetime only.
type fetcher struct {
	client      *http.Client
	minDelay    time.Duration
	checkRobots bool
	limiters    map[string]*rate.Limiter
	robots      map[string]*robotstxt.Group
}

func newFetcher(timeout, minDelay time.Duration, checkRobots bool) *fetcher {
	return &fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errTooManyRedirects
				}
				return nil
			},
		},
		minDelay:    minDelay,
		checkRobots: checkRobots,
		limiters:    make(map[string]*rate.Limiter),
		robots:      make(map[string]*robotstxt.Group),
	}
}

// wait blocks until the per-host politeness delay has elapsed.
func (f *fetcher) wait(ctx context.Context, host string) error {
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(f.minDelay), 1)
		f.limiters[host] = lim
	}
	return lim.Wait(ctx)
}

// allowed consults robots.txt for the host, caching the parsed group.
// Unreachable or unparseable robots rules fail open.
func (f *fetcher) allowed(ctx context.Context, pageURL *url.URL) bool {
	if !f.checkRobots {
		return true
	}

	group, ok := f.robots[pageURL.Host]
	if !ok {
		group = f.fetchRobots(ctx, pageURL)
		f.robots[pageURL.Host] = group
	}
	if group == nil {
		return true
	}
	return group.Test(pageURL.Path)
}

func (f *fetcher) fetchRobots(ctx context.Context, pageURL *url.URL) *robotstxt.Group {
	robotsURL := pageURL.Scheme + "://" + pageURL.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		zap.L().Debug("emaildisc: robots.txt unparseable, failing open",
			zap.String("host", pageURL.Host),
			zap.Error(err),
		)
		return nil
	}
	return data.FindGroup(userAgent)
}

// fetch retrieves one page as HTML text. Failures are returned as
// classified *fetchError values.
func (f *fetcher) fetch(ctx context.Context, rawURL string) (string, *fetchError) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &fetchError{Code: ErrCodeConnect, Err: err}
	}

	if !f.allowed(ctx, u) {
		return "", &fetchError{Code: ErrCodeRobots}
	}

	if err := f.wait(ctx, u.Host); err != nil {
		return "", &fetchError{Code: ErrCodeTimeout, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &fetchError{Code: ErrCodeConnect, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, errTooManyRedirects) {
			return "", &fetchError{Code: ErrCodeRedirectLoop, Err: err}
		}
		if isTimeout(err) {
			return "", &fetchError{Code: ErrCodeTimeout, Err: err}
		}
		return "", &fetchError{Code: ErrCodeConnect, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return "", &fetchError{Code: ErrCodeBlocked}
	case resp.StatusCode >= 300:
		return "", &fetchError{Code: ErrCodeHTTPStatus}
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "text/html") && !strings.Contains(ct, "application/xhtml") {
		return "", &fetchError{Code: ErrCodeNotHTML}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &fetchError{Code: ErrCodeConnect, Err: err}
	}

	return string(body), nil
}

func isTimeout(err error) bool {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout") ||
		strings.Contains(err.Error(), "context deadline exceeded")
}
