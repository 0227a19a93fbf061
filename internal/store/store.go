// Package store persists leads, the task queue, the dedupe key index,
// runner state, the run log, and the blocklist. Two backends are
// provided: SQLite for single-machine use and Postgres for shared use.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tradereach/outreach-cli/internal/dedupe"
	"github.com/tradereach/outreach-cli/internal/model"
)

// Store defines the persistence interface for the outreach pipeline.
type Store interface {
	// Leads
	InsertLeads(ctx context.Context, leads []model.Lead) (int, error)
	UpdateLead(ctx context.Context, lead *model.Lead) error
	// UpdateLeads writes all updates in one batch; any failure aborts the
	// whole batch so callers can fall back to individual writes.
	UpdateLeads(ctx context.Context, leads []model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeadsByStatus(ctx context.Context, status model.LeadStatus, limit int) ([]model.Lead, error)
	EligibleUnsent(ctx context.Context, limit int) ([]model.Lead, error)
	ClaimLeadForSend(ctx context.Context, id string) (bool, error)
	MarkLeadSent(ctx context.Context, id string, sentAt time.Time) error
	ReleaseLead(ctx context.Context, id string, reason string) error

	// Dedupe key index
	DedupeKeys(ctx context.Context) ([]dedupe.Key, error)
	SaveDedupeKeys(ctx context.Context, keys []dedupe.Key) error

	// Task queue
	InsertTasks(ctx context.Context, tasks []model.QueueTask) (int, error)
	PendingTasks(ctx context.Context, session model.Session) ([]model.QueueTask, error)
	ClaimTask(ctx context.Context, id string) error
	CompleteTask(ctx context.Context, id string, leadsFound, leadsAfterDedupe int) error
	FailTask(ctx context.Context, id string, errMsg string) error
	TaskCounts(ctx context.Context) (map[model.TaskStatus]int, error)
	MarkStaleTasks(ctx context.Context, before time.Time) (int, error)

	// Runner state singleton
	RunnerState(ctx context.Context) (*model.RunnerState, error)
	SaveRunnerState(ctx context.Context, state *model.RunnerState) error

	// Run log
	AppendRunLog(ctx context.Context, result *model.PipelineResult) error
	ListRunLog(ctx context.Context, limit int) ([]model.PipelineResult, error)

	// Blocklist
	Blocklist(ctx context.Context) ([]string, error)
	AddToBlocklist(ctx context.Context, email, reason string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	ValidateSchema(ctx context.Context) error
	Close() error
}

// Open constructs a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// expectedColumns is the schema contract validated at startup. A missing
// column is a configuration error naming the exact gap, not a silent
// runtime failure.
var expectedColumns = map[string][]string{
	"leads": {
		"id", "name", "email", "phone", "website", "trade", "city",
		"source", "place_id", "source_url", "email_source", "hook",
		"review_count", "status", "send_eligible", "ineligible_reason",
		"generic_address", "soft_match", "soft_match_lead_id",
		"created_at", "updated_at", "enriched_at", "sent_at",
		"opened_at", "clicked_at", "replied_at", "bounced_at", "complained_at",
	},
	"task_queue": {
		"id", "trade", "city", "session", "priority", "tier", "status",
		"error", "leads_found", "leads_after_dedupe",
		"created_at", "claimed_at", "completed_at",
	},
	"dedupe_keys": {"key_type", "key_value", "lead_id", "created_at"},
	"runner_state": {
		"id", "focus_trade", "focus_trade_date", "last_run_at",
		"last_run_session", "emails_sent_today", "sent_counter_date",
		"sending_paused", "paused_reason", "last_alert_key", "last_alert_at",
	},
	"run_log":   {"id", "run_id", "final_stage", "stopped_reason", "emails_sent", "result", "created_at"},
	"blocklist": {"email", "reason", "created_at"},
}

// missingColumns diffs an actual column set against the contract and
// returns human-readable "table.column" entries.
func missingColumns(table string, actual map[string]bool) []string {
	var missing []string
	for _, col := range expectedColumns[table] {
		if !actual[col] {
			missing = append(missing, fmt.Sprintf("%s.%s", table, col))
		}
	}
	return missing
}
