package pipeline

import (
	"context"
	"time"

	"github.com/tradereach/outreach-cli/internal/dedupe"
	"github.com/tradereach/outreach-cli/internal/emaildisc"
	"github.com/tradereach/outreach-cli/internal/model"
	"github.com/tradereach/outreach-cli/pkg/hookwriter"
	"github.com/tradereach/outreach-cli/pkg/mailer"
	"github.com/tradereach/outreach-cli/pkg/places"
)

// mockStore is an in-memory Store covering what the pipeline touches.
type mockStore struct {
	leads        map[string]*model.Lead
	insertOrder  []string
	pendingTasks []model.QueueTask
	dedupeKeys   []dedupe.Key
	savedKeys    []dedupe.Key
	state        *model.RunnerState
	savedState   *model.RunnerState
	runLog       []model.PipelineResult
	blocklist    []string

	schemaErr    error
	staleMarked  int
	claimedTasks []string
	completed    []string
	failedTasks  []string

	claimLeadResult map[string]bool // default true
	claimedLeads    []string
	sentLeads       []string
	releasedLeads   []string

	updateLeadsErr error
	batchedUpdates int
	singleUpdates  int
}

func newMockStore() *mockStore {
	return &mockStore{
		leads: make(map[string]*model.Lead),
		state: &model.RunnerState{},
	}
}

func (m *mockStore) InsertLeads(_ context.Context, leads []model.Lead) (int, error) {
	for i := range leads {
		l := leads[i]
		m.leads[l.ID] = &l
		m.insertOrder = append(m.insertOrder, l.ID)
	}
	return len(leads), nil
}

func (m *mockStore) UpdateLead(_ context.Context, lead *model.Lead) error {
	m.singleUpdates++
	l := *lead
	m.leads[l.ID] = &l
	return nil
}

func (m *mockStore) UpdateLeads(_ context.Context, leads []model.Lead) error {
	m.batchedUpdates++
	if m.updateLeadsErr != nil {
		return m.updateLeadsErr
	}
	for i := range leads {
		l := leads[i]
		m.leads[l.ID] = &l
	}
	return nil
}

func (m *mockStore) GetLead(_ context.Context, id string) (*model.Lead, error) {
	return m.leads[id], nil
}

func (m *mockStore) ListLeadsByStatus(_ context.Context, status model.LeadStatus, _ int) ([]model.Lead, error) {
	var out []model.Lead
	for _, id := range m.insertOrder {
		if l, ok := m.leads[id]; ok && l.Status == status {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *mockStore) EligibleUnsent(_ context.Context, limit int) ([]model.Lead, error) {
	var out []model.Lead
	for _, id := range m.insertOrder {
		l, ok := m.leads[id]
		if !ok || l.Status != model.StatusApproved || l.Email == "" {
			continue
		}
		out = append(out, *l)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) ClaimLeadForSend(_ context.Context, id string) (bool, error) {
	if ok, set := m.claimLeadResult[id]; set && !ok {
		return false, nil
	}
	m.claimedLeads = append(m.claimedLeads, id)
	if l, ok := m.leads[id]; ok {
		l.Status = model.StatusQueued
	}
	return true, nil
}

func (m *mockStore) MarkLeadSent(_ context.Context, id string, sentAt time.Time) error {
	m.sentLeads = append(m.sentLeads, id)
	if l, ok := m.leads[id]; ok {
		l.Status = model.StatusSent
		l.SentAt = &sentAt
	}
	return nil
}

func (m *mockStore) ReleaseLead(_ context.Context, id string, _ string) error {
	m.releasedLeads = append(m.releasedLeads, id)
	if l, ok := m.leads[id]; ok {
		l.Status = model.StatusApproved
	}
	return nil
}

func (m *mockStore) DedupeKeys(_ context.Context) ([]dedupe.Key, error) {
	return m.dedupeKeys, nil
}

func (m *mockStore) SaveDedupeKeys(_ context.Context, keys []dedupe.Key) error {
	m.savedKeys = append(m.savedKeys, keys...)
	return nil
}

func (m *mockStore) InsertTasks(_ context.Context, tasks []model.QueueTask) (int, error) {
	m.pendingTasks = append(m.pendingTasks, tasks...)
	return len(tasks), nil
}

func (m *mockStore) PendingTasks(_ context.Context, _ model.Session) ([]model.QueueTask, error) {
	out := make([]model.QueueTask, len(m.pendingTasks))
	copy(out, m.pendingTasks)
	return out, nil
}

func (m *mockStore) ClaimTask(_ context.Context, id string) error {
	m.claimedTasks = append(m.claimedTasks, id)
	return nil
}

func (m *mockStore) CompleteTask(_ context.Context, id string, _, _ int) error {
	m.completed = append(m.completed, id)
	return nil
}

func (m *mockStore) FailTask(_ context.Context, id string, _ string) error {
	m.failedTasks = append(m.failedTasks, id)
	return nil
}

func (m *mockStore) TaskCounts(_ context.Context) (map[model.TaskStatus]int, error) {
	return map[model.TaskStatus]int{}, nil
}

func (m *mockStore) MarkStaleTasks(_ context.Context, _ time.Time) (int, error) {
	return m.staleMarked, nil
}

func (m *mockStore) RunnerState(_ context.Context) (*model.RunnerState, error) {
	return m.state, nil
}

func (m *mockStore) SaveRunnerState(_ context.Context, state *model.RunnerState) error {
	s := *state
	m.savedState = &s
	return nil
}

func (m *mockStore) AppendRunLog(_ context.Context, result *model.PipelineResult) error {
	m.runLog = append(m.runLog, *result)
	return nil
}

func (m *mockStore) ListRunLog(_ context.Context, _ int) ([]model.PipelineResult, error) {
	return m.runLog, nil
}

func (m *mockStore) Blocklist(_ context.Context) ([]string, error) {
	return m.blocklist, nil
}

func (m *mockStore) AddToBlocklist(_ context.Context, email, _ string) error {
	m.blocklist = append(m.blocklist, email)
	return nil
}

func (m *mockStore) Migrate(_ context.Context) error { return nil }

func (m *mockStore) ValidateSchema(_ context.Context) error { return m.schemaErr }

func (m *mockStore) Close() error { return nil }

// mockSearcher plays back one business list per search call.
type mockSearcher struct {
	results [][]places.Business
	calls   int
}

func (m *mockSearcher) Search(_ context.Context, _ string, _ int) ([]places.Business, error) {
	idx := m.calls
	m.calls++
	if idx < len(m.results) {
		return m.results[idx], nil
	}
	return nil, nil
}

// mockFinder resolves emails by website.
type mockFinder struct {
	emails map[string]string
}

func (m *mockFinder) Discover(_ context.Context, website, _ string, _ emaildisc.Options) emaildisc.Result {
	if email, ok := m.emails[website]; ok {
		return emaildisc.Result{Email: email, Source: model.EmailSourceWebsite}
	}
	if website == "" {
		return emaildisc.Result{ErrCode: emaildisc.ErrCodeNoWebsite}
	}
	return emaildisc.Result{ErrCode: emaildisc.ErrCodeNoEmailFound}
}

// mockHooks returns a fixed hook, or scripted errors.
type mockHooks struct {
	hook   string
	errs   []error
	inputs []hookwriter.HookInput
}

func (m *mockHooks) GenerateHook(_ context.Context, in hookwriter.HookInput) (string, error) {
	idx := len(m.inputs)
	m.inputs = append(m.inputs, in)
	if idx < len(m.errs) && m.errs[idx] != nil {
		return "", m.errs[idx]
	}
	return m.hook, nil
}

// mockMailer records sends, with scripted per-call errors.
type mockMailer struct {
	errs     []error
	messages []mailer.Message
}

func (m *mockMailer) Send(_ context.Context, msg mailer.Message) (string, error) {
	idx := len(m.messages)
	m.messages = append(m.messages, msg)
	if idx < len(m.errs) && m.errs[idx] != nil {
		return "", m.errs[idx]
	}
	return "msg-id", nil
}
