// Package model defines the core data types shared across the outreach pipeline.
package model

import "time"

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

const (
	StatusNew        LeadStatus = "NEW"
	StatusApproved   LeadStatus = "APPROVED"
	StatusQueued     LeadStatus = "QUEUED"
	StatusSent       LeadStatus = "SENT"
	StatusFollowUp1  LeadStatus = "FOLLOW_UP_1"
	StatusFollowUp2  LeadStatus = "FOLLOW_UP_2"
	StatusRejected   LeadStatus = "REJECTED"
	StatusSkipped    LeadStatus = "SKIPPED"
	StatusFailed     LeadStatus = "FAILED"
	StatusBounced    LeadStatus = "BOUNCED"
	StatusComplained LeadStatus = "COMPLAINED"
)

// Terminal reports whether the status is an end state with no further
// transitions.
func (s LeadStatus) Terminal() bool {
	switch s {
	case StatusFollowUp2, StatusRejected, StatusSkipped, StatusFailed, StatusBounced, StatusComplained:
		return true
	}
	return false
}

// Lead source identifiers (which acquisition channel produced the lead).
const (
	SourcePlaces = "places"
	SourceManual = "manual"
)

// Email source channels for discovered addresses.
const (
	EmailSourceScrape  = "scrape"
	EmailSourceWebsite = "website"
	EmailSourceSocial  = "social"
	EmailSourceLookup  = "domain_lookup"
)

// Lead is a prospective business contact moving through the pipeline.
// Leads are never deleted, only status-transitioned.
type Lead struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Email    string `json:"email,omitempty" db:"email"`
	Phone    string `json:"phone,omitempty" db:"phone"`
	Website  string `json:"website,omitempty" db:"website"`
	Trade    string `json:"trade" db:"trade"`
	City     string `json:"city" db:"city"`
	Source   string `json:"source" db:"source"`
	PlaceID  string `json:"place_id,omitempty" db:"place_id"`
	SourceURL string `json:"source_url,omitempty" db:"source_url"`

	// EmailSource records which discovery channel produced the email.
	EmailSource string `json:"email_source,omitempty" db:"email_source"`

	// Hook is the AI-generated opening line for outreach.
	Hook string `json:"hook,omitempty" db:"hook"`

	// ReviewCount is the rating count reported by the acquisition channel,
	// used as a sole-trader signal. Nil when the channel did not report one.
	ReviewCount *int `json:"review_count,omitempty" db:"review_count"`

	Status LeadStatus `json:"status" db:"status"`

	// SendEligible is nil until the eligibility classifier has run.
	SendEligible     *bool  `json:"send_eligible,omitempty" db:"send_eligible"`
	IneligibleReason string `json:"ineligible_reason,omitempty" db:"ineligible_reason"`

	// GenericAddress flags role-based addresses (info@, sales@). Informational.
	GenericAddress bool `json:"generic_address" db:"generic_address"`

	// SoftMatch marks a low-confidence name+city duplicate; the lead is kept
	// for human review with a back-reference to the lead it resembles.
	SoftMatch       bool   `json:"soft_match" db:"soft_match"`
	SoftMatchLeadID string `json:"soft_match_lead_id,omitempty" db:"soft_match_lead_id"`

	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	EnrichedAt   *time.Time `json:"enriched_at,omitempty" db:"enriched_at"`
	SentAt       *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	OpenedAt     *time.Time `json:"opened_at,omitempty" db:"opened_at"`
	ClickedAt    *time.Time `json:"clicked_at,omitempty" db:"clicked_at"`
	RepliedAt    *time.Time `json:"replied_at,omitempty" db:"replied_at"`
	BouncedAt    *time.Time `json:"bounced_at,omitempty" db:"bounced_at"`
	ComplainedAt *time.Time `json:"complained_at,omitempty" db:"complained_at"`
}

// Eligible reports whether the lead has been cleared for sending.
func (l *Lead) Eligible() bool {
	return l.SendEligible != nil && *l.SendEligible
}
