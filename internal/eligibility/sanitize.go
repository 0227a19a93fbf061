package eligibility

import (
	"regexp"
	"strings"
)

// emailRe is the strict syntax gate: limited local-part charset, a single
// @, a dotted domain, and a 2-10 character TLD.
var emailRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._%+\-]*@[a-z0-9][a-z0-9.\-]*\.[a-z]{2,10}$`)

// testPatterns mark obviously fake addresses regardless of syntax.
var testPatterns = []string{
	"test@", "@test.", "example@", "sample@", "demo@", "fake@",
	"asdf@", "noemail@", "none@", "email@email",
}

// SanitizeEmail cleans a raw scraped value into an address and reports
// whether it is valid. Cleaning strips mailto: prefixes (including junk
// before the scheme, e.g. "Target=MailTo:..."), trims a query string,
// trims surrounding punctuation, and lowercases. Validation applies the
// strict syntax gate, rejects consecutive dots, known test patterns, and
// spam-trap domains.
func SanitizeEmail(raw string) (string, bool) {
	email := strings.TrimSpace(raw)

	// Anything up to and including a mailto: scheme is noise.
	if idx := strings.Index(strings.ToLower(email), "mailto:"); idx >= 0 {
		email = email[idx+len("mailto:"):]
	}

	// Drop query string ("?subject=...") and fragments.
	if idx := strings.IndexAny(email, "?#"); idx >= 0 {
		email = email[:idx]
	}

	email = strings.ToLower(strings.Trim(email, " <>\"'(),;:"))
	if email == "" {
		return "", false
	}

	if !emailRe.MatchString(email) {
		return email, false
	}
	if strings.Contains(email, "..") {
		return email, false
	}
	for _, p := range testPatterns {
		if strings.Contains(email, p) {
			return email, false
		}
	}

	domain := EmailDomain(email)
	if IsSpamTrapDomain(domain) || IsPlaceholderDomain(domain) {
		return email, false
	}

	return email, true
}
