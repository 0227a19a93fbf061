// Package dedupe implements the multi-key lead deduplication engine.
//
// Keys are checked in strict priority order: place_id, source_url (primary,
// hard-block), email, phone (secondary, hard-block), then name+city (soft,
// advisory only). The first matching key type wins and short-circuits the
// rest.
package dedupe

import (
	"go.uber.org/zap"

	"github.com/tradereach/outreach-cli/internal/model"
)

// KeyType identifies one of the independent dedupe key indexes.
type KeyType string

const (
	KeyPlaceID   KeyType = "place_id"
	KeySourceURL KeyType = "source_url"
	KeyEmail     KeyType = "email"
	KeyPhone     KeyType = "phone"
	KeyNameCity  KeyType = "name_city"
)

// checkOrder is the strict priority order for duplicate checks.
var checkOrder = []KeyType{KeyPlaceID, KeySourceURL, KeyEmail, KeyPhone, KeyNameCity}

// Key is one (key_type, normalized_value) -> lead_id mapping.
type Key struct {
	Type   KeyType `json:"key_type" db:"key_type"`
	Value  string  `json:"key_value" db:"key_value"`
	LeadID string  `json:"lead_id" db:"lead_id"`
}

// CheckResult classifies a candidate against the key indexes.
type CheckResult struct {
	IsDuplicate   bool
	MatchType     KeyType
	MatchedLeadID string
	SoftMatch     bool
}

// ShouldBlock reports whether the candidate must be dropped. Soft matches
// never block.
func (r CheckResult) ShouldBlock() bool {
	return r.IsDuplicate && !r.SoftMatch
}

// Engine holds the in-memory key indexes plus a pending list of keys not
// yet flushed to the durable index. It is mutated only by the single
// pipeline thread, so it carries no locking.
type Engine struct {
	index   map[KeyType]map[string]string
	pending []Key
}

// NewEngine creates an empty Engine.
func NewEngine() *Engine {
	idx := make(map[KeyType]map[string]string, len(checkOrder))
	for _, kt := range checkOrder {
		idx[kt] = make(map[string]string)
	}
	return &Engine{index: idx}
}

// Seed loads previously persisted keys into the in-memory index. Within a
// key type the first writer wins; later duplicates in the seed data are
// ignored.
func (e *Engine) Seed(keys []Key) {
	for _, k := range keys {
		bucket, ok := e.index[k.Type]
		if !ok {
			continue
		}
		if _, exists := bucket[k.Value]; !exists {
			bucket[k.Value] = k.LeadID
		}
	}
}

// leadKeys derives the normalized keys present on a lead. Missing fields
// simply produce no key for that type.
func leadKeys(lead *model.Lead) []Key {
	var keys []Key
	add := func(t KeyType, v string) {
		if v != "" {
			keys = append(keys, Key{Type: t, Value: v, LeadID: lead.ID})
		}
	}
	add(KeyPlaceID, NormalizePlaceID(lead.PlaceID))
	add(KeySourceURL, NormalizeSourceURL(lead.SourceURL))
	add(KeyEmail, NormalizeEmail(lead.Email))
	add(KeyPhone, NormalizePhone(lead.Phone))
	if lead.Name != "" && lead.City != "" {
		add(KeyNameCity, NameCityKey(lead.Name, lead.City))
	}
	return keys
}

// Check classifies a candidate against the indexes without mutating them.
// The first matching key type in priority order is reported; name_city
// matches are flagged soft and never block.
func (e *Engine) Check(lead *model.Lead) CheckResult {
	byType := make(map[KeyType]string, 5)
	for _, k := range leadKeys(lead) {
		byType[k.Type] = k.Value
	}

	for _, kt := range checkOrder {
		val, ok := byType[kt]
		if !ok {
			continue
		}
		if matched, found := e.index[kt][val]; found {
			return CheckResult{
				IsDuplicate:   true,
				MatchType:     kt,
				MatchedLeadID: matched,
				SoftMatch:     kt == KeyNameCity,
			}
		}
	}
	return CheckResult{}
}

// Register writes a kept lead's keys into the in-memory index immediately
// (so within-session duplicates across iterations are caught) and queues
// them for durable persistence. Returns the set of keys written; keys that
// were already claimed by an earlier lead are skipped (first writer wins).
func (e *Engine) Register(lead *model.Lead) []Key {
	var written []Key
	for _, k := range leadKeys(lead) {
		bucket := e.index[k.Type]
		if _, exists := bucket[k.Value]; exists {
			continue
		}
		bucket[k.Value] = k.LeadID
		e.pending = append(e.pending, k)
		written = append(written, k)
	}
	return written
}

// Partition splits candidates into kept (unique or soft-matched) and
// hard-blocked, preserving input order within each partition. Kept leads
// are registered as a side effect; soft matches are annotated with a
// back-reference to the matched lead.
func (e *Engine) Partition(candidates []model.Lead) (kept, blocked []model.Lead) {
	for _, c := range candidates {
		res := e.Check(&c)
		if res.ShouldBlock() {
			zap.L().Debug("dedupe: hard duplicate dropped",
				zap.String("name", c.Name),
				zap.String("match_type", string(res.MatchType)),
				zap.String("matched_lead_id", res.MatchedLeadID),
			)
			blocked = append(blocked, c)
			continue
		}
		if res.IsDuplicate && res.SoftMatch {
			c.SoftMatch = true
			c.SoftMatchLeadID = res.MatchedLeadID
		}
		e.Register(&c)
		kept = append(kept, c)
	}
	return kept, blocked
}

// Pending returns the keys registered since the last Flushed call. The
// caller persists them in one batched write at end-of-run.
func (e *Engine) Pending() []Key {
	return e.pending
}

// Flushed clears the pending list after a successful durable write.
func (e *Engine) Flushed() {
	e.pending = nil
}
