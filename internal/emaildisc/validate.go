package emaildisc

import (
	"strings"

	"github.com/tradereach/outreach-cli/internal/eligibility"
)

// invalidPrefixes are local parts that identify machine mailboxes; a
// candidate starting with one is never a contact address.
var invalidPrefixes = []string{
	"no-reply", "noreply", "no_reply", "donotreply", "do-not-reply",
	"postmaster", "mailer-daemon", "bounce", "abuse", "unsubscribe",
	"notifications", "alert", "webmaster@sedo",
}

// assetExtensions catch retina-image names like "logo@2x.png" that the
// text scan mistakes for addresses.
var assetExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".css", ".js",
}

// validateCandidate sanitizes and vets one raw candidate. siteDomain is
// the crawled website's registrable host; candidates from other domains
// are rejected unless the page was a social profile (fromSocial).
func validateCandidate(raw, siteDomain string, fromSocial bool) (string, bool) {
	email, valid := eligibility.SanitizeEmail(raw)
	if !valid {
		return "", false
	}

	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	for _, p := range invalidPrefixes {
		if strings.HasPrefix(local, p) {
			return "", false
		}
	}

	for _, ext := range assetExtensions {
		if strings.HasSuffix(email, ext) {
			return "", false
		}
	}

	if !fromSocial && siteDomain != "" {
		if !eligibility.DomainsAligned(eligibility.EmailDomain(email), siteDomain) {
			return "", false
		}
	}

	return email, true
}

// prioritize orders unique validated addresses so that personal local
// parts rank before role-based ones (info@, sales@), preserving discovery
// order within each group. The first entry is the winner.
func prioritize(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	var personal, role []string
	for _, e := range emails {
		if seen[e] {
			continue
		}
		seen[e] = true
		if eligibility.IsRoleBased(e) {
			role = append(role, e)
		} else {
			personal = append(personal, e)
		}
	}
	return append(personal, role...)
}
