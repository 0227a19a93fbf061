// Package emaildisc discovers contact email addresses for business
// websites by crawling a small set of likely pages and running layered
// extraction techniques over each one. Results are cached per domain for
// the life of the run.
package emaildisc

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradereach/outreach-cli/internal/model"
	"github.com/tradereach/outreach-cli/internal/resilience"
)

// contactPaths is the fixed ordered list of likely contact pages crawled
// after the homepage.
var contactPaths = []string{
	"/contact", "/contact-us", "/get-in-touch", "/about", "/about-us",
	"/privacy-policy", "/privacy", "/terms",
}

// contactKeywords match anchor text worth following from the homepage.
var contactKeywords = []string{
	"contact", "get in touch", "about", "email us", "reach us", "enquir",
}

// socialHosts are profile pages the social fallback recognizes.
var socialHosts = []string{
	"facebook.com", "instagram.com", "linkedin.com", "twitter.com", "x.com",
}

// anchorRe captures href plus anchor text for contact-link discovery.
var anchorRe = regexp.MustCompile(`(?is)<a[^>]+href\s*=\s*["']([^"'#]+)["'][^>]*>(.*?)</a>`)

// Result is the outcome of one discovery lookup.
type Result struct {
	Email         string   `json:"email,omitempty"`
	Source        string   `json:"source,omitempty"` // website, social, domain_lookup
	DiscoveryURL  string   `json:"discovery_url,omitempty"`
	AllCandidates []string `json:"all_candidates,omitempty"`
	PagesCrawled  int      `json:"pages_crawled"`

	// ErrCode classifies why no email was found ("" when Email is set).
	ErrCode string `json:"err_code,omitempty"`
}

// Options control one lookup. The yield loop's deep-crawl pivot raises
// MaxPages and force-enables every technique.
type Options struct {
	MaxPages           int
	MaxDiscoveredLinks int
	StructuredData     bool
	Deobfuscation      bool
	SocialFallback     bool
}

// DomainSearcher is the optional professional email-lookup fallback,
// queried by domain when crawling finds nothing.
type DomainSearcher interface {
	FindEmail(ctx context.Context, domain string) (string, error)
}

// Service performs email discovery with a per-domain result cache.
type Service struct {
	fetcher *fetcher
	lookup  DomainSearcher
	retry   resilience.RetryConfig
	cache   map[string]*Result
}

// Config holds the service's fetch-level settings.
type Config struct {
	Timeout     time.Duration
	MinDelay    time.Duration
	CheckRobots bool
}

// New creates a Service. lookup may be nil to disable the fallback.
func New(cfg Config, lookup DomainSearcher) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = time.Second
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("domainsearch", "find_email")
	return &Service{
		fetcher: newFetcher(cfg.Timeout, cfg.MinDelay, cfg.CheckRobots),
		lookup:  lookup,
		retry:   retry,
		cache:   make(map[string]*Result),
	}
}

// Discover attempts to find a contact email for a lead's website. With no
// website, the source URL is tried as a social profile when the fallback
// is enabled. The per-domain cache short-circuits repeat lookups for
// leads sharing a domain.
func (s *Service) Discover(ctx context.Context, website, sourceURL string, opts Options) Result {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 5
	}
	if opts.MaxDiscoveredLinks <= 0 {
		opts.MaxDiscoveredLinks = 5
	}

	if website == "" {
		if opts.SocialFallback && isSocialURL(sourceURL) {
			return s.discoverSocial(ctx, sourceURL, opts)
		}
		return Result{ErrCode: ErrCodeNoWebsite}
	}

	base, err := normalizeWebsite(website)
	if err != nil {
		return Result{ErrCode: ErrCodeNoWebsite}
	}
	domain := strings.TrimPrefix(base.Hostname(), "www.")

	if cached, ok := s.cache[domain]; ok {
		return *cached
	}

	res := s.crawlSite(ctx, base, domain, opts)
	if res.Email == "" && s.lookup != nil {
		email, lookupErr := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (string, error) {
			return s.lookup.FindEmail(ctx, domain)
		})
		if lookupErr == nil && email != "" {
			res.Email = email
			res.Source = model.EmailSourceLookup
			res.ErrCode = ""
			res.AllCandidates = append(res.AllCandidates, email)
		} else if lookupErr != nil {
			zap.L().Debug("emaildisc: domain lookup failed",
				zap.String("domain", domain),
				zap.Error(lookupErr),
			)
		}
	}

	s.cache[domain] = &res
	return res
}

// crawlSite walks the homepage, the fixed contact paths, and discovered
// contact links, up to the page cap. Per-page failures are soft.
func (s *Service) crawlSite(ctx context.Context, base *url.URL, domain string, opts Options) Result {
	log := zap.L().With(zap.String("domain", domain))

	queue := []string{base.String()}
	for _, p := range contactPaths {
		queue = append(queue, base.ResolveReference(&url.URL{Path: p}).String())
	}

	visited := make(map[string]bool)
	var (
		rawCandidates []candidate
		firstErrCode  string
		pagesFetched  int
		pagesOK       int
		winnerURL     = make(map[string]string)
	)

	extractOpts := extractOptions{
		structuredData: opts.StructuredData,
		deobfuscation:  opts.Deobfuscation,
	}

	for i := 0; i < len(queue) && pagesFetched < opts.MaxPages; i++ {
		pageURL := queue[i]
		if visited[pageURL] {
			continue
		}
		visited[pageURL] = true
		pagesFetched++

		html, fetchErr := s.fetcher.fetch(ctx, pageURL)
		if fetchErr != nil {
			if firstErrCode == "" {
				firstErrCode = fetchErr.Code
			}
			log.Debug("emaildisc: page fetch failed",
				zap.String("url", pageURL),
				zap.String("code", fetchErr.Code),
			)
			continue
		}
		pagesOK++

		for _, c := range extractCandidates(html, extractOpts) {
			if email, ok := validateCandidate(c.email, domain, false); ok {
				rawCandidates = append(rawCandidates, candidate{email: email, technique: c.technique})
				if _, dup := winnerURL[email]; !dup {
					winnerURL[email] = pageURL
				}
			}
		}

		// After the homepage, queue same-site links whose anchor text looks
		// contact-related.
		if i == 0 {
			for _, link := range discoverContactLinks(html, base, visited, opts.MaxDiscoveredLinks) {
				queue = append(queue, link)
			}
		}
	}

	res := Result{PagesCrawled: pagesFetched}

	var emails []string
	for _, c := range rawCandidates {
		emails = append(emails, c.email)
	}
	ranked := prioritize(emails)
	res.AllCandidates = ranked

	if len(ranked) > 0 {
		res.Email = ranked[0]
		res.Source = model.EmailSourceWebsite
		res.DiscoveryURL = winnerURL[ranked[0]]
		return res
	}

	if pagesOK == 0 && firstErrCode != "" {
		res.ErrCode = firstErrCode
	} else {
		res.ErrCode = ErrCodeNoEmailFound
	}
	return res
}

// discoverSocial extracts from a single social profile page with no crawl
// loop. A 403/429 is classified "blocked", distinct from "not found".
func (s *Service) discoverSocial(ctx context.Context, profileURL string, opts Options) Result {
	html, fetchErr := s.fetcher.fetch(ctx, profileURL)
	if fetchErr != nil {
		return Result{PagesCrawled: 1, ErrCode: fetchErr.Code}
	}

	extractOpts := extractOptions{
		structuredData: opts.StructuredData,
		deobfuscation:  opts.Deobfuscation,
	}

	var emails []string
	for _, c := range extractCandidates(html, extractOpts) {
		if email, ok := validateCandidate(c.email, "", true); ok {
			emails = append(emails, email)
		}
	}

	ranked := prioritize(emails)
	if len(ranked) == 0 {
		return Result{PagesCrawled: 1, ErrCode: ErrCodeNoEmailFound}
	}
	return Result{
		Email:         ranked[0],
		Source:        model.EmailSourceSocial,
		DiscoveryURL:  profileURL,
		AllCandidates: ranked,
		PagesCrawled:  1,
	}
}

// discoverContactLinks finds same-site anchors with contact-flavored text,
// deduplicated against already-visited pages, capped at limit.
func discoverContactLinks(html string, base *url.URL, visited map[string]bool, limit int) []string {
	var links []string
	for _, m := range anchorRe.FindAllStringSubmatch(html, -1) {
		if len(links) >= limit {
			break
		}
		text := strings.ToLower(stripTags(m[2]))
		matched := false
		for _, kw := range contactKeywords {
			if strings.Contains(text, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		ref, err := url.Parse(strings.TrimSpace(m[1]))
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Host != base.Host {
			continue
		}
		abs.Fragment = ""
		link := abs.String()
		if !visited[link] {
			links = append(links, link)
		}
	}
	return links
}

// isSocialURL reports whether a source URL is a recognized social profile.
func isSocialURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, sh := range socialHosts {
		if host == sh || strings.HasSuffix(host, "."+sh) {
			return true
		}
	}
	return false
}

// normalizeWebsite parses a website value, defaulting the scheme.
func normalizeWebsite(website string) (*url.URL, error) {
	raw := strings.TrimSpace(website)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}
