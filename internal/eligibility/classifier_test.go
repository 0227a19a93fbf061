package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradereach/outreach-cli/internal/model"
)

func intPtr(n int) *int { return &n }

func TestEvaluate_NoEmail(t *testing.T) {
	out := Evaluate(model.Lead{ID: "l1", Name: "A"}, Policy{})
	require.NotNil(t, out.SendEligible)
	assert.False(t, *out.SendEligible)
	assert.Equal(t, ReasonNoEmail, out.IneligibleReason)
}

func TestEvaluate_BusinessDomainApproved(t *testing.T) {
	out := Evaluate(model.Lead{
		ID:      "l1",
		Name:    "Smith Roofing",
		Email:   "john@smithroofing.co.uk",
		Website: "https://www.smithroofing.co.uk",
	}, Policy{})
	require.NotNil(t, out.SendEligible)
	assert.True(t, *out.SendEligible)
	assert.Empty(t, out.IneligibleReason)
	assert.False(t, out.GenericAddress)
}

func TestEvaluate_SanitizesObfuscatedEmail(t *testing.T) {
	out := Evaluate(model.Lead{
		ID:    "l1",
		Name:  "Smith Roofing",
		Email: "Target=MailTo:John.Doe@SmithRoofing.co.uk?subject=hi",
	}, Policy{})
	require.NotNil(t, out.SendEligible)
	assert.True(t, *out.SendEligible)
	assert.Equal(t, "john.doe@smithroofing.co.uk", out.Email)
}

func TestEvaluate_RoleAddressFlaggedButEligible(t *testing.T) {
	out := Evaluate(model.Lead{
		ID:    "l1",
		Name:  "Smith Roofing",
		Email: "info@smithroofing.co.uk",
	}, Policy{})
	require.NotNil(t, out.SendEligible)
	assert.True(t, *out.SendEligible)
	assert.True(t, out.GenericAddress)
}

func TestEvaluate_FreeEmailRejectedByDefault(t *testing.T) {
	out := Evaluate(model.Lead{
		ID:    "l1",
		Name:  "ABC Plumbing Ltd",
		Email: "abcplumbing@gmail.com",
	}, Policy{})
	assert.False(t, *out.SendEligible)
	assert.Equal(t, ReasonFreeEmail, out.IneligibleReason)
}

func TestEvaluate_SoleTraderEscapesFreeEmailGate(t *testing.T) {
	// "Dave's Plumbing" on gmail with a UK mobile reads as a sole trader
	// and passes in sole-trader mode.
	lead := model.Lead{
		ID:          "l1",
		Name:        "Dave's Plumbing",
		Email:       "dave.plumber@gmail.com",
		Phone:       "07712 345678",
		ReviewCount: intPtr(8),
	}
	out := Evaluate(lead, Policy{SoleTraderMode: true, MaxReviewCount: 25})
	require.NotNil(t, out.SendEligible)
	assert.True(t, *out.SendEligible)

	// The same address behind a corporate name stays rejected.
	corp := model.Lead{
		ID:    "l2",
		Name:  "ABC Plumbing Ltd",
		Email: "office@gmail.com",
		Phone: "0161 496 0000",
	}
	out2 := Evaluate(corp, Policy{SoleTraderMode: true, MaxReviewCount: 25})
	assert.False(t, *out2.SendEligible)
	assert.Equal(t, ReasonFreeEmail, out2.IneligibleReason)
}

func TestEvaluate_AllowFreeEmailPolicy(t *testing.T) {
	out := Evaluate(model.Lead{
		ID:    "l1",
		Name:  "ABC Plumbing Ltd",
		Email: "abcplumbing@gmail.com",
	}, Policy{AllowFreeEmail: true})
	assert.True(t, *out.SendEligible)
}

func TestEvaluate_Blocklist(t *testing.T) {
	out := Evaluate(model.Lead{
		ID:    "l1",
		Name:  "Smith Roofing",
		Email: "john@smithroofing.co.uk",
	}, Policy{Blocklist: map[string]bool{"john@smithroofing.co.uk": true}})
	assert.False(t, *out.SendEligible)
	assert.Equal(t, ReasonBlocklisted, out.IneligibleReason)
}

func TestEvaluate_AlreadyContacted(t *testing.T) {
	sent := time.Now()
	out := Evaluate(model.Lead{
		ID:     "l1",
		Name:   "Smith Roofing",
		Email:  "john@smithroofing.co.uk",
		Status: model.StatusSent,
		SentAt: &sent,
	}, Policy{})
	assert.False(t, *out.SendEligible)
	assert.Equal(t, ReasonAlreadySent, out.IneligibleReason)
}

func TestEvaluate_DomainMismatch(t *testing.T) {
	lead := model.Lead{
		ID:      "l1",
		Name:    "Smith Roofing",
		Email:   "john@otherbusiness.com",
		Website: "https://smithroofing.co.uk",
	}

	// Warning only by default.
	out := Evaluate(lead, Policy{})
	assert.True(t, *out.SendEligible)

	// Rejection when the policy requires alignment.
	out2 := Evaluate(lead, Policy{RequireDomainMatch: true})
	assert.False(t, *out2.SendEligible)
	assert.Equal(t, ReasonDomainMismatch, out2.IneligibleReason)
}

func TestEvaluate_SubdomainAligned(t *testing.T) {
	out := Evaluate(model.Lead{
		ID:      "l1",
		Name:    "Smith Roofing",
		Email:   "john@mail.smithroofing.co.uk",
		Website: "https://www.smithroofing.co.uk",
	}, Policy{RequireDomainMatch: true})
	assert.True(t, *out.SendEligible)
}

func TestEvaluate_PlaceholderDomain(t *testing.T) {
	out := Evaluate(model.Lead{
		ID:    "l1",
		Name:  "Smith Roofing",
		Email: "user@yourdomain.com",
	}, Policy{})
	assert.False(t, *out.SendEligible)
	assert.Equal(t, ReasonPlaceholder, out.IneligibleReason)

	// Uppercase and mailto: noise still resolves to the placeholder reason.
	out2 := Evaluate(model.Lead{
		ID:    "l2",
		Name:  "Smith Roofing",
		Email: "mailto:Info@Example.com",
	}, Policy{})
	assert.False(t, *out2.SendEligible)
	assert.Equal(t, ReasonPlaceholder, out2.IneligibleReason)
}

func TestEvaluate_SpamTrapStaysInvalid(t *testing.T) {
	out := Evaluate(model.Lead{
		ID:    "l1",
		Name:  "Smith Roofing",
		Email: "user@mailinator.com",
	}, Policy{})
	assert.False(t, *out.SendEligible)
	assert.Equal(t, ReasonInvalidEmail, out.IneligibleReason)
}

func TestEvaluate_DoesNotMutateInput(t *testing.T) {
	in := model.Lead{ID: "l1", Name: "A", Email: "MailTo:X@Y.com"}
	_ = Evaluate(in, Policy{})
	assert.Nil(t, in.SendEligible)
	assert.Equal(t, "MailTo:X@Y.com", in.Email)
}
