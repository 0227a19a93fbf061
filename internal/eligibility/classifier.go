// Package eligibility decides whether a lead is safe and compliant to
// email under the current policy.
package eligibility

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/tradereach/outreach-cli/internal/model"
)

// Policy holds the classifier's policy switches and context.
type Policy struct {
	// AllowFreeEmail skips the free consumer-domain rejection entirely.
	AllowFreeEmail bool

	// SoleTraderMode lets a free-email lead through when it passes
	// sole-trader validation.
	SoleTraderMode bool

	// RequireDomainMatch upgrades the website/email domain mismatch from a
	// warning to a rejection.
	RequireDomainMatch bool

	// MaxReviewCount is the review-count ceiling counted as a sole-trader
	// signal.
	MaxReviewCount int

	// Blocklist holds addresses that bounced or complained and must never
	// be re-mailed. Keys are normalized (lowercased) addresses.
	Blocklist map[string]bool
}

// Ineligibility reasons.
const (
	ReasonNoEmail        = "no email"
	ReasonInvalidEmail   = "invalid email syntax"
	ReasonFreeEmail      = "free email provider"
	ReasonPlaceholder    = "placeholder domain"
	ReasonDomainMismatch = "email domain does not match website"
	ReasonBlocklisted    = "address on blocklist"
	ReasonAlreadySent    = "already contacted"
)

// Evaluate classifies a lead and returns a copy with its eligibility
// fields set. Pure function of the lead's fields and the policy; rules
// short-circuit on the first failure.
func Evaluate(lead model.Lead, p Policy) model.Lead {
	eligible := func(ok bool, reason string) model.Lead {
		lead.SendEligible = &ok
		lead.IneligibleReason = reason
		return lead
	}

	if lead.Email == "" {
		return eligible(false, ReasonNoEmail)
	}

	sanitized, valid := SanitizeEmail(lead.Email)
	if !valid {
		if IsPlaceholderDomain(EmailDomain(sanitized)) {
			return eligible(false, ReasonPlaceholder)
		}
		return eligible(false, ReasonInvalidEmail)
	}
	lead.Email = sanitized
	lead.GenericAddress = IsRoleBased(sanitized)

	if p.Blocklist[sanitized] {
		return eligible(false, ReasonBlocklisted)
	}

	if lead.SentAt != nil || lead.Status == model.StatusSent ||
		lead.Status == model.StatusFollowUp1 || lead.Status == model.StatusFollowUp2 {
		return eligible(false, ReasonAlreadySent)
	}

	domain := EmailDomain(sanitized)

	if IsFreeEmailDomain(domain) && !p.AllowFreeEmail {
		if !(p.SoleTraderMode && ValidateSoleTrader(&lead, p.MaxReviewCount)) {
			return eligible(false, ReasonFreeEmail)
		}
	}

	if lead.Website != "" {
		siteDomain := websiteDomain(lead.Website)
		if siteDomain != "" && !IsFreeEmailDomain(domain) && !DomainsAligned(domain, siteDomain) {
			if p.RequireDomainMatch {
				return eligible(false, ReasonDomainMismatch)
			}
			zap.L().Debug("eligibility: email domain differs from website",
				zap.String("lead_id", lead.ID),
				zap.String("email_domain", domain),
				zap.String("site_domain", siteDomain),
			)
		}
	}

	return eligible(true, "")
}

// websiteDomain extracts the host from a website URL, tolerating bare
// hostnames without a scheme.
func websiteDomain(website string) string {
	raw := website
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
