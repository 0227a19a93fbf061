package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tradereach/outreach-cli/internal/dedupe"
	"github.com/tradereach/outreach-cli/internal/model"
	"github.com/tradereach/outreach-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	email              TEXT,
	phone              TEXT,
	website            TEXT,
	trade              TEXT NOT NULL,
	city               TEXT NOT NULL,
	source             TEXT NOT NULL,
	place_id           TEXT,
	source_url         TEXT,
	email_source       TEXT,
	hook               TEXT,
	review_count       INTEGER,
	status             TEXT NOT NULL DEFAULT 'NEW',
	send_eligible      INTEGER,
	ineligible_reason  TEXT,
	generic_address    INTEGER NOT NULL DEFAULT 0,
	soft_match         INTEGER NOT NULL DEFAULT 0,
	soft_match_lead_id TEXT,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL,
	enriched_at        DATETIME,
	sent_at            DATETIME,
	opened_at          DATETIME,
	clicked_at         DATETIME,
	replied_at         DATETIME,
	bounced_at         DATETIME,
	complained_at      DATETIME
);

CREATE TABLE IF NOT EXISTS task_queue (
	id                 TEXT PRIMARY KEY,
	trade              TEXT NOT NULL,
	city               TEXT NOT NULL,
	session            TEXT NOT NULL,
	priority           INTEGER NOT NULL,
	tier               INTEGER NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending',
	error              TEXT,
	leads_found        INTEGER NOT NULL DEFAULT 0,
	leads_after_dedupe INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL,
	claimed_at         DATETIME,
	completed_at       DATETIME
);

CREATE TABLE IF NOT EXISTS dedupe_keys (
	key_type   TEXT NOT NULL,
	key_value  TEXT NOT NULL,
	lead_id    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (key_type, key_value)
);

CREATE TABLE IF NOT EXISTS runner_state (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	focus_trade       TEXT,
	focus_trade_date  TEXT,
	last_run_at       DATETIME,
	last_run_session  TEXT,
	emails_sent_today INTEGER NOT NULL DEFAULT 0,
	sent_counter_date TEXT,
	sending_paused    INTEGER NOT NULL DEFAULT 0,
	paused_reason     TEXT,
	last_alert_key    TEXT,
	last_alert_at     DATETIME
);

CREATE TABLE IF NOT EXISTS run_log (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL,
	final_stage    TEXT NOT NULL,
	stopped_reason TEXT,
	emails_sent    INTEGER NOT NULL DEFAULT 0,
	result         TEXT NOT NULL,
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS blocklist (
	email      TEXT PRIMARY KEY,
	reason     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(email);
CREATE INDEX IF NOT EXISTS idx_task_queue_status ON task_queue(status, session, priority);
CREATE INDEX IF NOT EXISTS idx_run_log_created_at ON run_log(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// ValidateSchema checks every table against the expected column contract
// and fails with a configuration error naming the exact missing columns.
func (s *SQLiteStore) ValidateSchema(ctx context.Context) error {
	var allMissing []string
	for table := range expectedColumns {
		rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+table+")")
		if err != nil {
			return eris.Wrapf(err, "sqlite: inspect table %s", table)
		}
		actual := make(map[string]bool)
		for rows.Next() {
			var (
				cid        int
				name, typ  string
				notNull    int
				dfltValue  sql.NullString
				primaryKey int
			)
			if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &primaryKey); err != nil {
				rows.Close()
				return eris.Wrapf(err, "sqlite: scan table_info %s", table)
			}
			actual[name] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return eris.Wrapf(err, "sqlite: read table_info %s", table)
		}
		rows.Close()
		allMissing = append(allMissing, missingColumns(table, actual)...)
	}
	if len(allMissing) > 0 {
		return resilience.NewConfigError("%s",
			"database schema is missing columns: "+strings.Join(allMissing, ", ")+
				" (run `outreach migrate` or fix the database)")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const leadColumns = `id, name, email, phone, website, trade, city, source, place_id,
	source_url, email_source, hook, review_count, status, send_eligible,
	ineligible_reason, generic_address, soft_match, soft_match_lead_id,
	created_at, updated_at, enriched_at, sent_at, opened_at, clicked_at,
	replied_at, bounced_at, complained_at`

// InsertLeads writes leads in one transaction. A row that fails to insert
// is logged and skipped rather than aborting the batch. Returns the count
// actually written.
func (s *SQLiteStore) InsertLeads(ctx context.Context, leads []model.Lead) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert leads")
	}
	defer tx.Rollback()

	inserted := 0
	for i := range leads {
		l := &leads[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO leads (`+leadColumns+`) VALUES
			 (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.Name, l.Email, l.Phone, l.Website, l.Trade, l.City, l.Source,
			l.PlaceID, l.SourceURL, l.EmailSource, l.Hook, l.ReviewCount,
			string(l.Status), l.SendEligible, l.IneligibleReason, l.GenericAddress,
			l.SoftMatch, l.SoftMatchLeadID, l.CreatedAt.UTC(), l.UpdatedAt.UTC(),
			l.EnrichedAt, l.SentAt, l.OpenedAt, l.ClickedAt, l.RepliedAt,
			l.BouncedAt, l.ComplainedAt,
		)
		if err != nil {
			zap.L().Warn("sqlite: lead insert skipped",
				zap.String("lead_id", l.ID),
				zap.Error(err),
			)
			continue
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert leads")
	}
	return inserted, nil
}

const updateLeadSQL = `UPDATE leads SET name = ?, email = ?, phone = ?, website = ?, trade = ?,
	 city = ?, source = ?, place_id = ?, source_url = ?, email_source = ?,
	 hook = ?, review_count = ?, status = ?, send_eligible = ?,
	 ineligible_reason = ?, generic_address = ?, soft_match = ?,
	 soft_match_lead_id = ?, updated_at = ?, enriched_at = ?, sent_at = ?,
	 opened_at = ?, clicked_at = ?, replied_at = ?, bounced_at = ?,
	 complained_at = ? WHERE id = ?`

func updateLeadArgs(l *model.Lead) []any {
	return []any{
		l.Name, l.Email, l.Phone, l.Website, l.Trade, l.City, l.Source,
		l.PlaceID, l.SourceURL, l.EmailSource, l.Hook, l.ReviewCount,
		string(l.Status), l.SendEligible, l.IneligibleReason, l.GenericAddress,
		l.SoftMatch, l.SoftMatchLeadID, l.UpdatedAt, l.EnrichedAt, l.SentAt,
		l.OpenedAt, l.ClickedAt, l.RepliedAt, l.BouncedAt, l.ComplainedAt, l.ID,
	}
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, l *model.Lead) error {
	l.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, updateLeadSQL, updateLeadArgs(l)...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", l.ID)
	}
	return checkRowsAffected(res, "lead", l.ID)
}

// UpdateLeads writes every update in one transaction. Unlike InsertLeads a
// failed row aborts the whole batch, so the caller can retry lead by lead.
func (s *SQLiteStore) UpdateLeads(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin update leads")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range leads {
		l := &leads[i]
		l.UpdatedAt = now
		res, err := tx.ExecContext(ctx, updateLeadSQL, updateLeadArgs(l)...)
		if err != nil {
			return eris.Wrapf(err, "sqlite: update lead %s", l.ID)
		}
		if err := checkRowsAffected(res, "lead", l.ID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit update leads")
	}
	return nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: lead %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeadsByStatus(ctx context.Context, status model.LeadStatus, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE status = ? ORDER BY created_at LIMIT ?`,
		string(status), limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list leads by status %s", status)
	}
	return collectLeads(rows)
}

func (s *SQLiteStore) EligibleUnsent(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE send_eligible = 1 AND status = ? ORDER BY created_at LIMIT ?`,
		string(model.StatusApproved), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list eligible unsent")
	}
	return collectLeads(rows)
}

// ClaimLeadForSend atomically moves an approved lead to QUEUED. Returns
// false when another process claimed it first.
func (s *SQLiteStore) ClaimLeadForSend(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.StatusQueued), time.Now().UTC(), id, string(model.StatusApproved),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: claim lead %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: claim lead %s rows", id)
	}
	return n == 1, nil
}

func (s *SQLiteStore) MarkLeadSent(ctx context.Context, id string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, sent_at = ?, updated_at = ? WHERE id = ?`,
		string(model.StatusSent), sentAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark lead sent %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

// ReleaseLead returns a claimed lead to the approved pool after a send
// attempt that should be retried on a later run.
func (s *SQLiteStore) ReleaseLead(ctx context.Context, id string, reason string) error {
	zap.L().Debug("sqlite: releasing claimed lead",
		zap.String("lead_id", id),
		zap.String("reason", reason),
	)
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.StatusApproved), time.Now().UTC(), id, string(model.StatusQueued),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: release lead %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) DedupeKeys(ctx context.Context) ([]dedupe.Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key_type, key_value, lead_id FROM dedupe_keys`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load dedupe keys")
	}
	defer rows.Close()

	var keys []dedupe.Key
	for rows.Next() {
		var k dedupe.Key
		var kt string
		if err := rows.Scan(&kt, &k.Value, &k.LeadID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dedupe key")
		}
		k.Type = dedupe.KeyType(kt)
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "sqlite: read dedupe keys")
}

// SaveDedupeKeys persists the session's registered keys in one batch.
// First writer wins: an existing (type, value) row is left untouched.
func (s *SQLiteStore) SaveDedupeKeys(ctx context.Context, keys []dedupe.Key) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save dedupe keys")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dedupe_keys (key_type, key_value, lead_id, created_at)
			 VALUES (?, ?, ?, ?) ON CONFLICT (key_type, key_value) DO NOTHING`,
			string(k.Type), k.Value, k.LeadID, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert dedupe key %s/%s", k.Type, k.Value)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit dedupe keys")
}

func (s *SQLiteStore) InsertTasks(ctx context.Context, tasks []model.QueueTask) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert tasks")
	}
	defer tx.Rollback()

	inserted := 0
	for i := range tasks {
		t := &tasks[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO task_queue (id, trade, city, session, priority, tier,
			 status, error, leads_found, leads_after_dedupe, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Trade, t.City, string(t.Session), t.Priority, t.Tier,
			string(t.Status), t.Error, t.LeadsFound, t.LeadsAfterDedupe,
			t.CreatedAt.UTC(),
		)
		if err != nil {
			zap.L().Warn("sqlite: task insert skipped",
				zap.String("task_id", t.ID),
				zap.Error(err),
			)
			continue
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert tasks")
	}
	return inserted, nil
}

func (s *SQLiteStore) PendingTasks(ctx context.Context, session model.Session) ([]model.QueueTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trade, city, session, priority, tier, status, error,
		 leads_found, leads_after_dedupe, created_at, claimed_at, completed_at
		 FROM task_queue WHERE status = ? AND session = ? ORDER BY priority, id`,
		string(model.TaskPending), string(session))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: pending tasks %s", session)
	}
	defer rows.Close()

	var tasks []model.QueueTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, eris.Wrap(rows.Err(), "sqlite: read pending tasks")
}

func (s *SQLiteStore) ClaimTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_queue SET status = ?, claimed_at = ? WHERE id = ? AND status = ?`,
		string(model.TaskInProgress), time.Now().UTC(), id, string(model.TaskPending),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: claim task %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: claim task %s rows", id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: task %s already claimed", id)
	}
	return nil
}

func (s *SQLiteStore) CompleteTask(ctx context.Context, id string, leadsFound, leadsAfterDedupe int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_queue SET status = ?, leads_found = ?, leads_after_dedupe = ?,
		 completed_at = ? WHERE id = ?`,
		string(model.TaskCompleted), leadsFound, leadsAfterDedupe, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete task %s", id)
	}
	return checkRowsAffected(res, "task", id)
}

func (s *SQLiteStore) FailTask(ctx context.Context, id string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_queue SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(model.TaskFailed), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail task %s", id)
	}
	return checkRowsAffected(res, "task", id)
}

func (s *SQLiteStore) TaskCounts(ctx context.Context) (map[model.TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM task_queue GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: task counts")
	}
	defer rows.Close()

	counts := make(map[model.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan task count")
		}
		counts[model.TaskStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: read task counts")
}

// MarkStaleTasks moves in-progress tasks claimed before the cutoff to
// stale, recovering from a crashed run.
func (s *SQLiteStore) MarkStaleTasks(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_queue SET status = ? WHERE status = ? AND claimed_at < ?`,
		string(model.TaskStale), string(model.TaskInProgress), before.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: mark stale tasks")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: stale tasks rows")
	}
	return int(n), nil
}

// RunnerState loads the singleton row, returning a zero state when the
// row does not exist yet.
func (s *SQLiteStore) RunnerState(ctx context.Context) (*model.RunnerState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT focus_trade, focus_trade_date, last_run_at, last_run_session,
		 emails_sent_today, sent_counter_date, sending_paused, paused_reason,
		 last_alert_key, last_alert_at FROM runner_state WHERE id = 1`)

	var (
		st                              model.RunnerState
		focusTrade, focusDate           sql.NullString
		lastRunAt, lastAlertAt          sql.NullTime
		lastRunSession, counterDate     sql.NullString
		pausedReason, lastAlertKey      sql.NullString
	)
	err := row.Scan(&focusTrade, &focusDate, &lastRunAt, &lastRunSession,
		&st.EmailsSentToday, &counterDate, &st.SendingPaused, &pausedReason,
		&lastAlertKey, &lastAlertAt)
	if err == sql.ErrNoRows {
		return &model.RunnerState{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load runner state")
	}

	st.FocusTrade = focusTrade.String
	st.FocusTradeDate = focusDate.String
	st.LastRunSession = model.Session(lastRunSession.String)
	st.SentCounterDate = counterDate.String
	st.PausedReason = pausedReason.String
	st.LastAlertKey = lastAlertKey.String
	if lastRunAt.Valid {
		t := lastRunAt.Time
		st.LastRunAt = &t
	}
	if lastAlertAt.Valid {
		t := lastAlertAt.Time
		st.LastAlertAt = &t
	}
	return &st, nil
}

func (s *SQLiteStore) SaveRunnerState(ctx context.Context, st *model.RunnerState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runner_state (id, focus_trade, focus_trade_date, last_run_at,
		 last_run_session, emails_sent_today, sent_counter_date, sending_paused,
		 paused_reason, last_alert_key, last_alert_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		 focus_trade = excluded.focus_trade,
		 focus_trade_date = excluded.focus_trade_date,
		 last_run_at = excluded.last_run_at,
		 last_run_session = excluded.last_run_session,
		 emails_sent_today = excluded.emails_sent_today,
		 sent_counter_date = excluded.sent_counter_date,
		 sending_paused = excluded.sending_paused,
		 paused_reason = excluded.paused_reason,
		 last_alert_key = excluded.last_alert_key,
		 last_alert_at = excluded.last_alert_at`,
		st.FocusTrade, st.FocusTradeDate, st.LastRunAt,
		string(st.LastRunSession), st.EmailsSentToday, st.SentCounterDate,
		st.SendingPaused, st.PausedReason, st.LastAlertKey, st.LastAlertAt,
	)
	return eris.Wrap(err, "sqlite: save runner state")
}

func (s *SQLiteStore) AppendRunLog(ctx context.Context, result *model.PipelineResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run result")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_log (id, run_id, final_stage, stopped_reason, emails_sent,
		 result, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), result.RunID, string(result.FinalStage),
		string(result.StoppedReason), result.EmailsSent, string(resultJSON),
		time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: append run log")
}

func (s *SQLiteStore) ListRunLog(ctx context.Context, limit int) ([]model.PipelineResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT result FROM run_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list run log")
	}
	defer rows.Close()

	var results []model.PipelineResult
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run log")
		}
		var r model.PipelineResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: read run log")
}

func (s *SQLiteStore) Blocklist(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM blocklist`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load blocklist")
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan blocklist")
		}
		emails = append(emails, e)
	}
	return emails, eris.Wrap(rows.Err(), "sqlite: read blocklist")
}

func (s *SQLiteStore) AddToBlocklist(ctx context.Context, email, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blocklist (email, reason, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (email) DO UPDATE SET reason = excluded.reason`,
		email, reason, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: add %s to blocklist", email)
}

// scanner abstracts sql.Row and sql.Rows for the lead scan helper.
type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (*model.Lead, error) {
	var (
		l                                      model.Lead
		email, phone, website, placeID         sql.NullString
		sourceURL, emailSource, hook           sql.NullString
		ineligible, softMatchLeadID, status    sql.NullString
		reviewCount                            sql.NullInt64
		sendEligible                           sql.NullBool
		enrichedAt, sentAt, openedAt           sql.NullTime
		clickedAt, repliedAt                   sql.NullTime
		bouncedAt, complainedAt                sql.NullTime
	)
	err := row.Scan(&l.ID, &l.Name, &email, &phone, &website, &l.Trade, &l.City,
		&l.Source, &placeID, &sourceURL, &emailSource, &hook, &reviewCount,
		&status, &sendEligible, &ineligible, &l.GenericAddress, &l.SoftMatch,
		&softMatchLeadID, &l.CreatedAt, &l.UpdatedAt, &enrichedAt, &sentAt,
		&openedAt, &clickedAt, &repliedAt, &bouncedAt, &complainedAt)
	if err != nil {
		return nil, err
	}

	l.Email = email.String
	l.Phone = phone.String
	l.Website = website.String
	l.PlaceID = placeID.String
	l.SourceURL = sourceURL.String
	l.EmailSource = emailSource.String
	l.Hook = hook.String
	l.IneligibleReason = ineligible.String
	l.SoftMatchLeadID = softMatchLeadID.String
	l.Status = model.LeadStatus(status.String)
	if reviewCount.Valid {
		n := int(reviewCount.Int64)
		l.ReviewCount = &n
	}
	if sendEligible.Valid {
		b := sendEligible.Bool
		l.SendEligible = &b
	}
	for _, pair := range []struct {
		src sql.NullTime
		dst **time.Time
	}{
		{enrichedAt, &l.EnrichedAt}, {sentAt, &l.SentAt}, {openedAt, &l.OpenedAt},
		{clickedAt, &l.ClickedAt}, {repliedAt, &l.RepliedAt},
		{bouncedAt, &l.BouncedAt}, {complainedAt, &l.ComplainedAt},
	} {
		if pair.src.Valid {
			t := pair.src.Time
			*pair.dst = &t
		}
	}
	return &l, nil
}

func collectLeads(rows *sql.Rows) ([]model.Lead, error) {
	defer rows.Close()
	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: read leads")
}

func scanTask(rows *sql.Rows) (*model.QueueTask, error) {
	var (
		t                      model.QueueTask
		session, status        string
		errMsg                 sql.NullString
		claimedAt, completedAt sql.NullTime
	)
	err := rows.Scan(&t.ID, &t.Trade, &t.City, &session, &t.Priority, &t.Tier,
		&status, &errMsg, &t.LeadsFound, &t.LeadsAfterDedupe, &t.CreatedAt,
		&claimedAt, &completedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan task")
	}
	t.Session = model.Session(session)
	t.Status = model.TaskStatus(status)
	t.Error = errMsg.String
	if claimedAt.Valid {
		at := claimedAt.Time
		t.ClaimedAt = &at
	}
	if completedAt.Valid {
		at := completedAt.Time
		t.CompletedAt = &at
	}
	return &t, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "%s %s: rows affected", kind, id)
	}
	if n == 0 {
		return eris.Errorf("%s %s not found", kind, id)
	}
	return nil
}
