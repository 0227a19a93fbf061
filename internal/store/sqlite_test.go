package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradereach/outreach-cli/internal/dedupe"
	"github.com/tradereach/outreach-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testLead(id string) model.Lead {
	now := time.Now().UTC().Truncate(time.Second)
	reviews := 12
	return model.Lead{
		ID:          id,
		Name:        "Smith Roofing",
		Email:       "dave@smithroofing.co.uk",
		Phone:       "07712345678",
		Website:     "smithroofing.co.uk",
		Trade:       "roofer",
		City:        "Leeds",
		Source:      model.SourcePlaces,
		PlaceID:     "place-" + id,
		SourceURL:   "https://maps.example.com/" + id,
		EmailSource: model.EmailSourceWebsite,
		ReviewCount: &reviews,
		Status:      model.StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSQLite_ValidateSchema(t *testing.T) {
	t.Run("passes after migrate", func(t *testing.T) {
		s := newTestSQLiteStore(t)
		assert.NoError(t, s.ValidateSchema(context.Background()))
	})

	t.Run("names missing columns", func(t *testing.T) {
		s, err := NewSQLite(filepath.Join(t.TempDir(), "empty.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		err = s.ValidateSchema(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "leads.id")
		assert.Contains(t, err.Error(), "missing columns")
	})
}

func TestSQLite_InsertAndGetLead(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	lead := testLead("l1")

	n, err := s.InsertLeads(ctx, []model.Lead{lead})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetLead(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, lead.Name, got.Name)
	assert.Equal(t, lead.Email, got.Email)
	assert.Equal(t, lead.PlaceID, got.PlaceID)
	assert.Equal(t, model.StatusNew, got.Status)
	require.NotNil(t, got.ReviewCount)
	assert.Equal(t, 12, *got.ReviewCount)
	assert.Nil(t, got.SendEligible)
	assert.Nil(t, got.SentAt)
	assert.WithinDuration(t, lead.CreatedAt, got.CreatedAt, time.Second)

	_, err = s.GetLead(ctx, "nope")
	assert.Error(t, err)
}

func TestSQLite_InsertLeads_SkipsFailedRows(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	// Duplicate primary key: the second row is skipped, not fatal.
	n, err := s.InsertLeads(ctx, []model.Lead{testLead("l1"), testLead("l1"), testLead("l2")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLite_UpdateLead(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	lead := testLead("l1")
	_, err := s.InsertLeads(ctx, []model.Lead{lead})
	require.NoError(t, err)

	eligible := true
	lead.Status = model.StatusApproved
	lead.SendEligible = &eligible
	lead.Hook = "Saw your reviews in Leeds."
	require.NoError(t, s.UpdateLead(ctx, &lead))

	got, err := s.GetLead(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	require.NotNil(t, got.SendEligible)
	assert.True(t, *got.SendEligible)
	assert.Equal(t, "Saw your reviews in Leeds.", got.Hook)

	missing := testLead("ghost")
	assert.Error(t, s.UpdateLead(ctx, &missing))
}

func TestSQLite_UpdateLeads(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	l1, l2 := testLead("l1"), testLead("l2")
	_, err := s.InsertLeads(ctx, []model.Lead{l1, l2})
	require.NoError(t, err)

	l1.Status = model.StatusApproved
	l2.Status = model.StatusRejected
	l2.IneligibleReason = "free_email"
	require.NoError(t, s.UpdateLeads(ctx, []model.Lead{l1, l2}))

	got1, err := s.GetLead(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got1.Status)
	got2, err := s.GetLead(ctx, "l2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got2.Status)
	assert.Equal(t, "free_email", got2.IneligibleReason)
}

func TestSQLite_UpdateLeads_UnknownRowAbortsBatch(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	l1 := testLead("l1")
	_, err := s.InsertLeads(ctx, []model.Lead{l1})
	require.NoError(t, err)

	l1.Status = model.StatusApproved
	ghost := testLead("ghost")
	require.Error(t, s.UpdateLeads(ctx, []model.Lead{l1, ghost}))

	// The whole batch rolled back, including the valid row.
	got, err := s.GetLead(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, got.Status)
}

func TestSQLite_ListLeadsByStatus(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	l1, l2 := testLead("l1"), testLead("l2")
	l2.Status = model.StatusApproved
	_, err := s.InsertLeads(ctx, []model.Lead{l1, l2})
	require.NoError(t, err)

	fresh, err := s.ListLeadsByStatus(ctx, model.StatusNew, 0)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "l1", fresh[0].ID)

	approved, err := s.ListLeadsByStatus(ctx, model.StatusApproved, 0)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "l2", approved[0].ID)
}

func TestSQLite_SendLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	eligible := true
	lead := testLead("l1")
	lead.Status = model.StatusApproved
	lead.SendEligible = &eligible
	_, err := s.InsertLeads(ctx, []model.Lead{lead})
	require.NoError(t, err)

	pool, err := s.EligibleUnsent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pool, 1)

	claimed, err := s.ClaimLeadForSend(ctx, "l1")
	require.NoError(t, err)
	assert.True(t, claimed)

	// A second claim loses the race.
	claimed, err = s.ClaimLeadForSend(ctx, "l1")
	require.NoError(t, err)
	assert.False(t, claimed)

	// Releasing returns the lead to the approved pool.
	require.NoError(t, s.ReleaseLead(ctx, "l1", "mailer 500"))
	claimed, err = s.ClaimLeadForSend(ctx, "l1")
	require.NoError(t, err)
	assert.True(t, claimed)

	sentAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.MarkLeadSent(ctx, "l1", sentAt))

	got, err := s.GetLead(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.WithinDuration(t, sentAt, *got.SentAt, time.Second)

	// A sent lead is out of the eligible pool and cannot be released.
	pool, err = s.EligibleUnsent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pool)
	assert.Error(t, s.ReleaseLead(ctx, "l1", "nope"))
}

func TestSQLite_DedupeKeys_FirstWriterWins(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDedupeKeys(ctx, []dedupe.Key{
		{Type: dedupe.KeyEmail, Value: "dave@smithroofing.co.uk", LeadID: "l1"},
		{Type: dedupe.KeyPhone, Value: "07712345678", LeadID: "l1"},
	}))
	// Same key for a different lead is a no-op.
	require.NoError(t, s.SaveDedupeKeys(ctx, []dedupe.Key{
		{Type: dedupe.KeyEmail, Value: "dave@smithroofing.co.uk", LeadID: "l2"},
	}))

	keys, err := s.DedupeKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)

	byValue := make(map[string]dedupe.Key)
	for _, k := range keys {
		byValue[k.Value] = k
	}
	assert.Equal(t, "l1", byValue["dave@smithroofing.co.uk"].LeadID)
	assert.Equal(t, dedupe.KeyPhone, byValue["07712345678"].Type)
}

func testTask(id string, session model.Session, priority int) model.QueueTask {
	return model.QueueTask{
		ID:        id,
		Trade:     "plumber",
		City:      "Leeds",
		Session:   session,
		Priority:  priority,
		Tier:      1,
		Status:    model.TaskPending,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLite_TaskLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := s.InsertTasks(ctx, []model.QueueTask{
		testTask("t1", model.SessionAM, 95),
		testTask("t2", model.SessionAM, 90),
		testTask("t3", model.SessionPM, 91),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pending, err := s.PendingTasks(ctx, model.SessionAM)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "t2", pending[0].ID, "ordered by priority ascending")

	require.NoError(t, s.ClaimTask(ctx, "t2"))
	assert.Error(t, s.ClaimTask(ctx, "t2"), "claimed task cannot be claimed again")

	require.NoError(t, s.CompleteTask(ctx, "t2", 18, 12))
	require.NoError(t, s.ClaimTask(ctx, "t1"))
	require.NoError(t, s.FailTask(ctx, "t1", "search failed"))

	counts, err := s.TaskCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.TaskCompleted])
	assert.Equal(t, 1, counts[model.TaskFailed])
	assert.Equal(t, 1, counts[model.TaskPending])
}

func TestSQLite_MarkStaleTasks(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.InsertTasks(ctx, []model.QueueTask{testTask("t1", model.SessionAM, 90)})
	require.NoError(t, err)
	require.NoError(t, s.ClaimTask(ctx, "t1"))

	// Cutoff before the claim: nothing is stale yet.
	n, err := s.MarkStaleTasks(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	// Cutoff after the claim: the in-progress task is recovered.
	n, err = s.MarkStaleTasks(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counts, err := s.TaskCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.TaskStale])
}

func TestSQLite_RunnerState(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	// Missing row yields a zero state, not an error.
	st, err := s.RunnerState(ctx)
	require.NoError(t, err)
	assert.Equal(t, &model.RunnerState{}, st)

	lastRun := time.Now().UTC().Truncate(time.Second)
	saved := &model.RunnerState{
		FocusTrade:      "roofer",
		FocusTradeDate:  "2026-03-02",
		LastRunAt:       &lastRun,
		LastRunSession:  model.SessionAM,
		EmailsSentToday: 7,
		SentCounterDate: "2026-03-02",
		SendingPaused:   true,
		PausedReason:    "bounce spike",
	}
	require.NoError(t, s.SaveRunnerState(ctx, saved))

	got, err := s.RunnerState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "roofer", got.FocusTrade)
	assert.Equal(t, "2026-03-02", got.FocusTradeDate)
	assert.Equal(t, model.SessionAM, got.LastRunSession)
	assert.Equal(t, 7, got.EmailsSentToday)
	assert.True(t, got.SendingPaused)
	assert.Equal(t, "bounce spike", got.PausedReason)
	require.NotNil(t, got.LastRunAt)
	assert.WithinDuration(t, lastRun, *got.LastRunAt, time.Second)

	// The singleton upserts in place.
	saved.EmailsSentToday = 9
	saved.SendingPaused = false
	require.NoError(t, s.SaveRunnerState(ctx, saved))
	got, err = s.RunnerState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, got.EmailsSentToday)
	assert.False(t, got.SendingPaused)
}

func TestSQLite_RunLog(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	r1 := &model.PipelineResult{RunID: "run-1", FinalStage: model.StageComplete, EmailsSent: 3}
	r2 := &model.PipelineResult{RunID: "run-2", FinalStage: model.StageFailed, StoppedReason: model.StopNoTasks}
	require.NoError(t, s.AppendRunLog(ctx, r1))
	require.NoError(t, s.AppendRunLog(ctx, r2))

	results, err := s.ListRunLog(ctx, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := make(map[string]model.PipelineResult)
	for _, r := range results {
		byID[r.RunID] = r
	}
	assert.Equal(t, 3, byID["run-1"].EmailsSent)
	assert.Equal(t, model.StageFailed, byID["run-2"].FinalStage)
	assert.Equal(t, model.StopNoTasks, byID["run-2"].StoppedReason)
}

func TestSQLite_Blocklist(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddToBlocklist(ctx, "dave@smithroofing.co.uk", "unsubscribed"))
	require.NoError(t, s.AddToBlocklist(ctx, "dave@smithroofing.co.uk", "complained"))
	require.NoError(t, s.AddToBlocklist(ctx, "info@other.co.uk", ""))

	emails, err := s.Blocklist(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dave@smithroofing.co.uk", "info@other.co.uk"}, emails)
}
