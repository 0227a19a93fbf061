package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tradereach/outreach-cli/internal/dedupe"
	"github.com/tradereach/outreach-cli/internal/model"
	"github.com/tradereach/outreach-cli/internal/resilience"
)

// pgPool is the subset of pgxpool.Pool the store uses. Tests substitute
// a pgxmock pool through it.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgPool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
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
	send_eligible      BOOLEAN,
	ineligible_reason  TEXT,
	generic_address    BOOLEAN NOT NULL DEFAULT FALSE,
	soft_match         BOOLEAN NOT NULL DEFAULT FALSE,
	soft_match_lead_id TEXT,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	enriched_at        TIMESTAMPTZ,
	sent_at            TIMESTAMPTZ,
	opened_at          TIMESTAMPTZ,
	clicked_at         TIMESTAMPTZ,
	replied_at         TIMESTAMPTZ,
	bounced_at         TIMESTAMPTZ,
	complained_at      TIMESTAMPTZ
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
	created_at         TIMESTAMPTZ NOT NULL,
	claimed_at         TIMESTAMPTZ,
	completed_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS dedupe_keys (
	key_type   TEXT NOT NULL,
	key_value  TEXT NOT NULL,
	lead_id    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (key_type, key_value)
);

CREATE TABLE IF NOT EXISTS runner_state (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	focus_trade       TEXT,
	focus_trade_date  TEXT,
	last_run_at       TIMESTAMPTZ,
	last_run_session  TEXT,
	emails_sent_today INTEGER NOT NULL DEFAULT 0,
	sent_counter_date TEXT,
	sending_paused    BOOLEAN NOT NULL DEFAULT FALSE,
	paused_reason     TEXT,
	last_alert_key    TEXT,
	last_alert_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_log (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL,
	final_stage    TEXT NOT NULL,
	stopped_reason TEXT,
	emails_sent    INTEGER NOT NULL DEFAULT 0,
	result         JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS blocklist (
	email      TEXT PRIMARY KEY,
	reason     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(email);
CREATE INDEX IF NOT EXISTS idx_task_queue_status ON task_queue(status, session, priority);
CREATE INDEX IF NOT EXISTS idx_run_log_created_at ON run_log(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) ValidateSchema(ctx context.Context) error {
	var allMissing []string
	for table := range expectedColumns {
		rows, err := s.pool.Query(ctx,
			`SELECT column_name FROM information_schema.columns
			 WHERE table_schema = current_schema() AND table_name = $1`, table)
		if err != nil {
			return eris.Wrapf(err, "postgres: inspect table %s", table)
		}
		actual := make(map[string]bool)
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return eris.Wrapf(err, "postgres: scan columns %s", table)
			}
			actual[name] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return eris.Wrapf(err, "postgres: read columns %s", table)
		}
		allMissing = append(allMissing, missingColumns(table, actual)...)
	}
	if len(allMissing) > 0 {
		return resilience.NewConfigError("%s",
			"database schema is missing columns: "+strings.Join(allMissing, ", ")+
				" (run `outreach migrate` or fix the database)")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertLeads(ctx context.Context, leads []model.Lead) (int, error) {
	inserted := 0
	for i := range leads {
		l := &leads[i]
		_, err := s.pool.Exec(ctx,
			`INSERT INTO leads (`+leadColumns+`) VALUES
			 ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			  $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
			l.ID, l.Name, nullStr(l.Email), nullStr(l.Phone), nullStr(l.Website),
			l.Trade, l.City, l.Source, nullStr(l.PlaceID), nullStr(l.SourceURL),
			nullStr(l.EmailSource), nullStr(l.Hook), l.ReviewCount,
			string(l.Status), l.SendEligible, nullStr(l.IneligibleReason),
			l.GenericAddress, l.SoftMatch, nullStr(l.SoftMatchLeadID),
			l.CreatedAt.UTC(), l.UpdatedAt.UTC(), l.EnrichedAt, l.SentAt,
			l.OpenedAt, l.ClickedAt, l.RepliedAt, l.BouncedAt, l.ComplainedAt,
		)
		if err != nil {
			zap.L().Warn("postgres: lead insert skipped",
				zap.String("lead_id", l.ID),
				zap.Error(err),
			)
			continue
		}
		inserted++
	}
	return inserted, nil
}

func (s *PostgresStore) UpdateLead(ctx context.Context, l *model.Lead) error {
	l.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET name = $1, email = $2, phone = $3, website = $4,
		 trade = $5, city = $6, source = $7, place_id = $8, source_url = $9,
		 email_source = $10, hook = $11, review_count = $12, status = $13,
		 send_eligible = $14, ineligible_reason = $15, generic_address = $16,
		 soft_match = $17, soft_match_lead_id = $18, updated_at = $19,
		 enriched_at = $20, sent_at = $21, opened_at = $22, clicked_at = $23,
		 replied_at = $24, bounced_at = $25, complained_at = $26 WHERE id = $27`,
		l.Name, nullStr(l.Email), nullStr(l.Phone), nullStr(l.Website), l.Trade,
		l.City, l.Source, nullStr(l.PlaceID), nullStr(l.SourceURL),
		nullStr(l.EmailSource), nullStr(l.Hook), l.ReviewCount, string(l.Status),
		l.SendEligible, nullStr(l.IneligibleReason), l.GenericAddress,
		l.SoftMatch, nullStr(l.SoftMatchLeadID), l.UpdatedAt, l.EnrichedAt,
		l.SentAt, l.OpenedAt, l.ClickedAt, l.RepliedAt, l.BouncedAt,
		l.ComplainedAt, l.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", l.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead %s not found", l.ID)
	}
	return nil
}

// UpdateLeads pipelines every update in one batch round trip. Any failed
// statement aborts the batch so the caller can retry lead by lead.
func (s *PostgresStore) UpdateLeads(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for i := range leads {
		l := &leads[i]
		l.UpdatedAt = now
		batch.Queue(
			`UPDATE leads SET name = $1, email = $2, phone = $3, website = $4,
			 trade = $5, city = $6, source = $7, place_id = $8, source_url = $9,
			 email_source = $10, hook = $11, review_count = $12, status = $13,
			 send_eligible = $14, ineligible_reason = $15, generic_address = $16,
			 soft_match = $17, soft_match_lead_id = $18, updated_at = $19,
			 enriched_at = $20, sent_at = $21, opened_at = $22, clicked_at = $23,
			 replied_at = $24, bounced_at = $25, complained_at = $26 WHERE id = $27`,
			l.Name, nullStr(l.Email), nullStr(l.Phone), nullStr(l.Website), l.Trade,
			l.City, l.Source, nullStr(l.PlaceID), nullStr(l.SourceURL),
			nullStr(l.EmailSource), nullStr(l.Hook), l.ReviewCount, string(l.Status),
			l.SendEligible, nullStr(l.IneligibleReason), l.GenericAddress,
			l.SoftMatch, nullStr(l.SoftMatchLeadID), l.UpdatedAt, l.EnrichedAt,
			l.SentAt, l.OpenedAt, l.ClickedAt, l.RepliedAt, l.BouncedAt,
			l.ComplainedAt, l.ID,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range leads {
		if _, err := br.Exec(); err != nil {
			return eris.Wrapf(err, "postgres: update lead %s", leads[i].ID)
		}
	}
	return nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	leads, err := collectPgLeads(rows)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, eris.Errorf("postgres: lead %s not found", id)
	}
	return &leads[0], nil
}

func (s *PostgresStore) ListLeadsByStatus(ctx context.Context, status model.LeadStatus, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE status = $1 ORDER BY created_at LIMIT $2`,
		string(status), limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list leads by status %s", status)
	}
	return collectPgLeads(rows)
}

func (s *PostgresStore) EligibleUnsent(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE send_eligible = TRUE AND status = $1 ORDER BY created_at LIMIT $2`,
		string(model.StatusApproved), limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list eligible unsent")
	}
	return collectPgLeads(rows)
}

func (s *PostgresStore) ClaimLeadForSend(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(model.StatusQueued), time.Now().UTC(), id, string(model.StatusApproved),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: claim lead %s", id)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) MarkLeadSent(ctx context.Context, id string, sentAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = $1, sent_at = $2, updated_at = $3 WHERE id = $4`,
		string(model.StatusSent), sentAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark lead sent %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead %s not found", id)
	}
	return nil
}

func (s *PostgresStore) ReleaseLead(ctx context.Context, id string, reason string) error {
	zap.L().Debug("postgres: releasing claimed lead",
		zap.String("lead_id", id),
		zap.String("reason", reason),
	)
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(model.StatusApproved), time.Now().UTC(), id, string(model.StatusQueued),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: release lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead %s not found", id)
	}
	return nil
}

func (s *PostgresStore) DedupeKeys(ctx context.Context) ([]dedupe.Key, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key_type, key_value, lead_id FROM dedupe_keys`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load dedupe keys")
	}
	defer rows.Close()

	var keys []dedupe.Key
	for rows.Next() {
		var k dedupe.Key
		var kt string
		if err := rows.Scan(&kt, &k.Value, &k.LeadID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dedupe key")
		}
		k.Type = dedupe.KeyType(kt)
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "postgres: read dedupe keys")
}

func (s *PostgresStore) SaveDedupeKeys(ctx context.Context, keys []dedupe.Key) error {
	if len(keys) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, k := range keys {
		batch.Queue(
			`INSERT INTO dedupe_keys (key_type, key_value, lead_id, created_at)
			 VALUES ($1, $2, $3, $4) ON CONFLICT (key_type, key_value) DO NOTHING`,
			string(k.Type), k.Value, k.LeadID, now)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range keys {
		if _, err := br.Exec(); err != nil {
			return eris.Wrap(err, "postgres: save dedupe keys")
		}
	}
	return nil
}

func (s *PostgresStore) InsertTasks(ctx context.Context, tasks []model.QueueTask) (int, error) {
	inserted := 0
	for i := range tasks {
		t := &tasks[i]
		_, err := s.pool.Exec(ctx,
			`INSERT INTO task_queue (id, trade, city, session, priority, tier,
			 status, error, leads_found, leads_after_dedupe, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			t.ID, t.Trade, t.City, string(t.Session), t.Priority, t.Tier,
			string(t.Status), nullStr(t.Error), t.LeadsFound, t.LeadsAfterDedupe,
			t.CreatedAt.UTC(),
		)
		if err != nil {
			zap.L().Warn("postgres: task insert skipped",
				zap.String("task_id", t.ID),
				zap.Error(err),
			)
			continue
		}
		inserted++
	}
	return inserted, nil
}

func (s *PostgresStore) PendingTasks(ctx context.Context, session model.Session) ([]model.QueueTask, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, trade, city, session, priority, tier, status, error,
		 leads_found, leads_after_dedupe, created_at, claimed_at, completed_at
		 FROM task_queue WHERE status = $1 AND session = $2 ORDER BY priority, id`,
		string(model.TaskPending), string(session))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: pending tasks %s", session)
	}
	defer rows.Close()

	var tasks []model.QueueTask
	for rows.Next() {
		var (
			t                      model.QueueTask
			sess, status           string
			errMsg                 *string
			claimedAt, completedAt *time.Time
		)
		if err := rows.Scan(&t.ID, &t.Trade, &t.City, &sess, &t.Priority,
			&t.Tier, &status, &errMsg, &t.LeadsFound, &t.LeadsAfterDedupe,
			&t.CreatedAt, &claimedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan task")
		}
		t.Session = model.Session(sess)
		t.Status = model.TaskStatus(status)
		if errMsg != nil {
			t.Error = *errMsg
		}
		t.ClaimedAt = claimedAt
		t.CompletedAt = completedAt
		tasks = append(tasks, t)
	}
	return tasks, eris.Wrap(rows.Err(), "postgres: read pending tasks")
}

func (s *PostgresStore) ClaimTask(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE task_queue SET status = $1, claimed_at = $2 WHERE id = $3 AND status = $4`,
		string(model.TaskInProgress), time.Now().UTC(), id, string(model.TaskPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: claim task %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: task %s already claimed", id)
	}
	return nil
}

func (s *PostgresStore) CompleteTask(ctx context.Context, id string, leadsFound, leadsAfterDedupe int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE task_queue SET status = $1, leads_found = $2,
		 leads_after_dedupe = $3, completed_at = $4 WHERE id = $5`,
		string(model.TaskCompleted), leadsFound, leadsAfterDedupe, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete task %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("task %s not found", id)
	}
	return nil
}

func (s *PostgresStore) FailTask(ctx context.Context, id string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE task_queue SET status = $1, error = $2, completed_at = $3 WHERE id = $4`,
		string(model.TaskFailed), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail task %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("task %s not found", id)
	}
	return nil
}

func (s *PostgresStore) TaskCounts(ctx context.Context) (map[model.TaskStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM task_queue GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: task counts")
	}
	defer rows.Close()

	counts := make(map[model.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan task count")
		}
		counts[model.TaskStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: read task counts")
}

func (s *PostgresStore) MarkStaleTasks(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE task_queue SET status = $1 WHERE status = $2 AND claimed_at < $3`,
		string(model.TaskStale), string(model.TaskInProgress), before.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: mark stale tasks")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) RunnerState(ctx context.Context) (*model.RunnerState, error) {
	var (
		st                          model.RunnerState
		focusTrade, focusDate       *string
		lastRunSession, counterDate *string
		pausedReason, lastAlertKey  *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT focus_trade, focus_trade_date, last_run_at, last_run_session,
		 emails_sent_today, sent_counter_date, sending_paused, paused_reason,
		 last_alert_key, last_alert_at FROM runner_state WHERE id = 1`).
		Scan(&focusTrade, &focusDate, &st.LastRunAt, &lastRunSession,
			&st.EmailsSentToday, &counterDate, &st.SendingPaused, &pausedReason,
			&lastAlertKey, &st.LastAlertAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.RunnerState{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load runner state")
	}

	if focusTrade != nil {
		st.FocusTrade = *focusTrade
	}
	if focusDate != nil {
		st.FocusTradeDate = *focusDate
	}
	if lastRunSession != nil {
		st.LastRunSession = model.Session(*lastRunSession)
	}
	if counterDate != nil {
		st.SentCounterDate = *counterDate
	}
	if pausedReason != nil {
		st.PausedReason = *pausedReason
	}
	if lastAlertKey != nil {
		st.LastAlertKey = *lastAlertKey
	}
	return &st, nil
}

func (s *PostgresStore) SaveRunnerState(ctx context.Context, st *model.RunnerState) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runner_state (id, focus_trade, focus_trade_date, last_run_at,
		 last_run_session, emails_sent_today, sent_counter_date, sending_paused,
		 paused_reason, last_alert_key, last_alert_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		 focus_trade = EXCLUDED.focus_trade,
		 focus_trade_date = EXCLUDED.focus_trade_date,
		 last_run_at = EXCLUDED.last_run_at,
		 last_run_session = EXCLUDED.last_run_session,
		 emails_sent_today = EXCLUDED.emails_sent_today,
		 sent_counter_date = EXCLUDED.sent_counter_date,
		 sending_paused = EXCLUDED.sending_paused,
		 paused_reason = EXCLUDED.paused_reason,
		 last_alert_key = EXCLUDED.last_alert_key,
		 last_alert_at = EXCLUDED.last_alert_at`,
		nullStr(st.FocusTrade), nullStr(st.FocusTradeDate), st.LastRunAt,
		nullStr(string(st.LastRunSession)), st.EmailsSentToday,
		nullStr(st.SentCounterDate), st.SendingPaused, nullStr(st.PausedReason),
		nullStr(st.LastAlertKey), st.LastAlertAt,
	)
	return eris.Wrap(err, "postgres: save runner state")
}

func (s *PostgresStore) AppendRunLog(ctx context.Context, result *model.PipelineResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run result")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_log (id, run_id, final_stage, stopped_reason,
		 emails_sent, result, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), result.RunID, string(result.FinalStage),
		string(result.StoppedReason), result.EmailsSent, resultJSON,
		time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: append run log")
}

func (s *PostgresStore) ListRunLog(ctx context.Context, limit int) ([]model.PipelineResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT result FROM run_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list run log")
	}
	defer rows.Close()

	var results []model.PipelineResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run log")
		}
		var r model.PipelineResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: read run log")
}

func (s *PostgresStore) Blocklist(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT email FROM blocklist`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load blocklist")
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, eris.Wrap(err, "postgres: scan blocklist")
		}
		emails = append(emails, e)
	}
	return emails, eris.Wrap(rows.Err(), "postgres: read blocklist")
}

func (s *PostgresStore) AddToBlocklist(ctx context.Context, email, reason string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO blocklist (email, reason, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET reason = EXCLUDED.reason`,
		email, reason, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: add %s to blocklist", email)
}

func collectPgLeads(rows pgx.Rows) ([]model.Lead, error) {
	defer rows.Close()
	var leads []model.Lead
	for rows.Next() {
		var (
			l                                   model.Lead
			email, phone, website, placeID      *string
			sourceURL, emailSource, hook        *string
			ineligible, softMatchLeadID, status *string
		)
		err := rows.Scan(&l.ID, &l.Name, &email, &phone, &website, &l.Trade,
			&l.City, &l.Source, &placeID, &sourceURL, &emailSource, &hook,
			&l.ReviewCount, &status, &l.SendEligible, &ineligible,
			&l.GenericAddress, &l.SoftMatch, &softMatchLeadID, &l.CreatedAt,
			&l.UpdatedAt, &l.EnrichedAt, &l.SentAt, &l.OpenedAt, &l.ClickedAt,
			&l.RepliedAt, &l.BouncedAt, &l.ComplainedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		setStr := func(dst *string, src *string) {
			if src != nil {
				*dst = *src
			}
		}
		setStr(&l.Email, email)
		setStr(&l.Phone, phone)
		setStr(&l.Website, website)
		setStr(&l.PlaceID, placeID)
		setStr(&l.SourceURL, sourceURL)
		setStr(&l.EmailSource, emailSource)
		setStr(&l.Hook, hook)
		setStr(&l.IneligibleReason, ineligible)
		setStr(&l.SoftMatchLeadID, softMatchLeadID)
		if status != nil {
			l.Status = model.LeadStatus(*status)
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: read leads")
}

// nullStr maps empty strings to NULL so optional text columns stay NULL
// rather than empty.
func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
