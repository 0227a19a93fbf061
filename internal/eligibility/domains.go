package eligibility

import "strings"

// freeEmailDomains are consumer mailbox providers. Leads on these domains
// are rejected under the standard policy unless sole-trader mode clears
// them or free email is explicitly allowed.
var freeEmailDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"yahoo.co.uk":    true,
	"hotmail.com":    true,
	"hotmail.co.uk":  true,
	"outlook.com":    true,
	"live.com":       true,
	"live.co.uk":     true,
	"aol.com":        true,
	"icloud.com":     true,
	"me.com":         true,
	"btinternet.com": true,
	"sky.com":        true,
	"talktalk.net":   true,
	"virginmedia.com": true,
	"protonmail.com": true,
	"proton.me":      true,
}

// placeholderDomains never receive mail: documentation/example domains and
// parked-site boilerplate addresses.
var placeholderDomains = map[string]bool{
	"example.com":    true,
	"example.org":    true,
	"example.net":    true,
	"test.com":       true,
	"email.com":      true,
	"domain.com":     true,
	"yourdomain.com": true,
	"yoursite.com":   true,
	"company.com":    true,
	"sentry.io":      true,
	"wixpress.com":   true,
	"sentry.wixpress.com": true,
}

// spamTrapDomains is a fixed blocklist of known trap domains.
var spamTrapDomains = map[string]bool{
	"spamtrap.com":      true,
	"spam-trap.net":     true,
	"honeypot.org":      true,
	"blackhole.mx":      true,
	"spamgourmet.com":   true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"10minutemail.com":  true,
	"tempmail.com":      true,
	"throwawaymail.com": true,
}

// rolePrefixes are role-based local parts (info@, sales@). They mark a
// lead's GenericAddress flag and rank below personal addresses during
// discovery; they do not affect eligibility by themselves.
var rolePrefixes = []string{
	"info", "contact", "sales", "enquiries", "enquiry", "inquiries",
	"hello", "admin", "office", "support", "accounts", "bookings",
	"mail", "team", "help", "service", "services",
}

// IsFreeEmailDomain reports whether domain is a consumer mailbox provider.
func IsFreeEmailDomain(domain string) bool {
	return freeEmailDomains[strings.ToLower(domain)]
}

// IsPlaceholderDomain reports whether domain is an example/parked domain.
func IsPlaceholderDomain(domain string) bool {
	return placeholderDomains[strings.ToLower(domain)]
}

// IsSpamTrapDomain reports whether domain is on the trap blocklist.
func IsSpamTrapDomain(domain string) bool {
	return spamTrapDomains[strings.ToLower(domain)]
}

// IsRoleBased reports whether an email's local part is a role address.
func IsRoleBased(email string) bool {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	local = strings.ToLower(local)
	for _, p := range rolePrefixes {
		if local == p || strings.HasPrefix(local, p+".") || strings.HasPrefix(local, p+"-") {
			return true
		}
	}
	return false
}

// EmailDomain returns the lowercased domain part of an address, or "".
func EmailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// DomainsAligned reports whether the email domain equals or is a subdomain
// of the website's domain (or vice versa, for sites hosted on a subdomain).
func DomainsAligned(emailDomain, siteDomain string) bool {
	emailDomain = strings.ToLower(strings.TrimPrefix(emailDomain, "www."))
	siteDomain = strings.ToLower(strings.TrimPrefix(siteDomain, "www."))
	if emailDomain == "" || siteDomain == "" {
		return false
	}
	return emailDomain == siteDomain ||
		strings.HasSuffix(emailDomain, "."+siteDomain) ||
		strings.HasSuffix(siteDomain, "."+emailDomain)
}
