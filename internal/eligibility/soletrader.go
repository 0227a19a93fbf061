package eligibility

import (
	"regexp"
	"strings"

	"github.com/tradereach/outreach-cli/internal/model"
)

// corporateMarkers in a business name indicate a registered company rather
// than an individual tradesperson. Any marker fails sole-trader validation
// outright.
var corporateMarkers = []string{
	"ltd", "limited", "llp", "plc", "group", "holdings", "inc",
	"corporation", "franchise", "nationwide",
}

// ukMobileRe matches UK mobile numbers (07xxx...), optionally with the
// +44 prefix, ignoring separators.
var ukMobileRe = regexp.MustCompile(`^(?:\+?44\s?7|07)\d[\d\s\-()]{7,12}$`)

// Personal-name patterns: a possessive form ("Dave's Plumbing"), a
// First-Last-Trade shape ("John Smith Roofing"), or initial plus surname
// ("J Smith Electrical").
var (
	possessiveRe    = regexp.MustCompile(`(?i)^\w+['’]s\s+\w+`)
	firstLastRe     = regexp.MustCompile(`(?i)^[A-Z][a-z]+\s+[A-Z][a-z]+\s+\w+`)
	initialSurnameRe = regexp.MustCompile(`(?i)^[A-Z]\.?\s+[A-Z][a-z]+(\s+\w+)?$`)
)

// HasCorporateMarker reports whether the business name contains a company
// suffix or similar marker as a whole word.
func HasCorporateMarker(name string) bool {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, word := range words {
		for _, m := range corporateMarkers {
			if word == m {
				return true
			}
		}
	}
	return false
}

// IsUKMobile reports whether the phone is in UK mobile format.
func IsUKMobile(phone string) bool {
	return ukMobileRe.MatchString(strings.TrimSpace(phone))
}

// HasPersonalNamePattern reports whether the business name looks like an
// individual's trading name.
func HasPersonalNamePattern(name string) bool {
	name = strings.TrimSpace(name)
	return possessiveRe.MatchString(name) ||
		initialSurnameRe.MatchString(name) ||
		firstLastRe.MatchString(name)
}

// ValidateSoleTrader decides whether a free-email lead may still be
// contacted under the relaxed sole-trader policy. A corporate marker
// rejects immediately; otherwise at least one positive signal is required:
// a UK mobile number, a review count at or below maxReviews, or a personal
// name pattern.
func ValidateSoleTrader(lead *model.Lead, maxReviews int) bool {
	if HasCorporateMarker(lead.Name) {
		return false
	}
	if IsUKMobile(lead.Phone) {
		return true
	}
	if lead.ReviewCount != nil && *lead.ReviewCount <= maxReviews {
		return true
	}
	return HasPersonalNamePattern(lead.Name)
}

// SoleTraderScore is the point-based ranking score. It is observability
// only and never gates a lead by itself.
func SoleTraderScore(lead *model.Lead) int {
	score := 0
	if IsFreeEmailDomain(EmailDomain(lead.Email)) {
		score += 2
	}
	if IsUKMobile(lead.Phone) {
		score += 2
	}
	if HasPersonalNamePattern(lead.Name) {
		score += 2
	}
	if lead.ReviewCount != nil {
		switch {
		case *lead.ReviewCount <= 10:
			score += 2
		case *lead.ReviewCount <= 25:
			score++
		case *lead.ReviewCount > 100:
			score -= 2
		}
	}
	if HasCorporateMarker(lead.Name) {
		score -= 3
	}
	return score
}
