package emaildisc

import (
	"encoding/json"
	"regexp"
	"strings"
)

// candidate is one raw address pulled from a page, tagged with the
// technique that found it.
type candidate struct {
	email     string
	technique string
}

// Extraction techniques, in the order they run on each page.
const (
	techMailto     = "mailto"
	techText       = "text"
	techHref       = "href"
	techStructured = "structured_data"
	techDeobfus    = "deobfuscation"
)

var (
	mailtoRe = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']*mailto:[^"']+)["']`)
	emailRe  = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9._%+\-]*@[a-z0-9][a-z0-9.\-]*\.[a-z]{2,10}\b`)
	hrefRe   = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)

	// jsonLDRe captures <script type="application/ld+json"> blocks.
	jsonLDRe = regexp.MustCompile(`(?is)<script[^>]+application/ld\+json[^>]*>(.*?)</script>`)

	// itemprop regexes capture microdata itemprop="email", both the
	// content-attribute form and the element-text form.
	itempropContentRe = regexp.MustCompile(`(?is)itemprop\s*=\s*["']email["'][^>]*?content\s*=\s*["']([^"']+)["']`)
	itempropTextRe    = regexp.MustCompile(`(?is)itemprop\s*=\s*["']email["'][^>]*>([^<]*)`)

	// deobfusRe matches "name [at] domain [dot] com" and sibling spellings.
	deobfusRe = regexp.MustCompile(`(?i)\b([a-z0-9._%+\-]+)\s*[\[(]\s*at\s*[\])]\s*([a-z0-9.\-]+(?:\s*[\[(]\s*dot\s*[\])]\s*[a-z0-9\-]+)+)`)
	dotRe     = regexp.MustCompile(`(?i)\s*[\[(]\s*dot\s*[\])]\s*`)
)

// extractOptions toggles the optional techniques.
type extractOptions struct {
	structuredData bool
	deobfuscation  bool
}

// extractCandidates runs all enabled extraction techniques over one page's
// HTML and returns raw candidates in discovery order.
func extractCandidates(html string, opts extractOptions) []candidate {
	var out []candidate

	// (a) mailto: links.
	for _, m := range mailtoRe.FindAllStringSubmatch(html, -1) {
		out = append(out, candidate{email: m[1], technique: techMailto})
	}

	// (b) plain-text scan over the tag-stripped page.
	text := stripTags(html)
	for _, m := range emailRe.FindAllString(text, -1) {
		out = append(out, candidate{email: m, technique: techText})
	}

	// (c) addresses hiding inside non-mailto href values.
	for _, m := range hrefRe.FindAllStringSubmatch(html, -1) {
		if strings.Contains(strings.ToLower(m[1]), "mailto:") {
			continue
		}
		for _, e := range emailRe.FindAllString(m[1], -1) {
			out = append(out, candidate{email: e, technique: techHref})
		}
	}

	// (d) structured data: JSON-LD and microdata.
	if opts.structuredData {
		out = append(out, extractStructured(html)...)
	}

	// (e) de-obfuscation of "[at]"/"[dot]" spellings.
	if opts.deobfuscation {
		for _, m := range deobfusRe.FindAllStringSubmatch(text, -1) {
			domain := dotRe.ReplaceAllString(m[2], ".")
			out = append(out, candidate{
				email:     m[1] + "@" + strings.ReplaceAll(domain, " ", ""),
				technique: techDeobfus,
			})
		}
	}

	return out
}

// extractStructured pulls emails from JSON-LD blocks and microdata
// itemprop="email" attributes.
func extractStructured(html string) []candidate {
	var out []candidate

	for _, m := range jsonLDRe.FindAllStringSubmatch(html, -1) {
		var doc any
		if err := json.Unmarshal([]byte(m[1]), &doc); err != nil {
			continue
		}
		for _, e := range collectJSONEmails(doc) {
			out = append(out, candidate{email: e, technique: techStructured})
		}
	}

	for _, re := range []*regexp.Regexp{itempropContentRe, itempropTextRe} {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			for _, e := range emailRe.FindAllString(m[1], -1) {
				out = append(out, candidate{email: e, technique: techStructured})
			}
		}
	}

	return out
}

// collectJSONEmails walks a decoded JSON-LD document for "email" keys.
func collectJSONEmails(doc any) []string {
	var emails []string
	switch v := doc.(type) {
	case map[string]any:
		for key, val := range v {
			if strings.EqualFold(key, "email") {
				if s, ok := val.(string); ok {
					emails = append(emails, emailRe.FindAllString(s, -1)...)
				}
				continue
			}
			emails = append(emails, collectJSONEmails(val)...)
		}
	case []any:
		for _, item := range v {
			emails = append(emails, collectJSONEmails(item)...)
		}
	}
	return emails
}

// stripTags removes HTML tags, producing rough plain text for scanning.
func stripTags(html string) string {
	var b strings.Builder
	b.Grow(len(html))
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
