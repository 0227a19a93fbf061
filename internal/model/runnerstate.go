package model

import "time"

// RunnerState is the singleton process-wide state persisted between
// invocations. It is read once at the start of a run and written back
// wholesale at the end; there are no partial updates.
type RunnerState struct {
	// FocusTrade pins a calendar day's tasks to one trade for thematic
	// consistency. Stale state (FocusTradeDate != today) is ignored.
	FocusTrade     string `json:"focus_trade,omitempty" db:"focus_trade"`
	FocusTradeDate string `json:"focus_trade_date,omitempty" db:"focus_trade_date"` // YYYY-MM-DD

	LastRunAt      *time.Time `json:"last_run_at,omitempty" db:"last_run_at"`
	LastRunSession Session    `json:"last_run_session,omitempty" db:"last_run_session"`

	// EmailsSentToday resets when SentCounterDate rolls over.
	EmailsSentToday int    `json:"emails_sent_today" db:"emails_sent_today"`
	SentCounterDate string `json:"sent_counter_date,omitempty" db:"sent_counter_date"` // YYYY-MM-DD

	SendingPaused bool   `json:"sending_paused" db:"sending_paused"`
	PausedReason  string `json:"paused_reason,omitempty" db:"paused_reason"`

	// Alert de-duplication: the last alert key raised and when, so repeat
	// failures within a window do not re-alert.
	LastAlertKey string     `json:"last_alert_key,omitempty" db:"last_alert_key"`
	LastAlertAt  *time.Time `json:"last_alert_at,omitempty" db:"last_alert_at"`
}

// SentToday returns the daily send count, treating a stale counter date
// as zero.
func (s *RunnerState) SentToday(today string) int {
	if s.SentCounterDate != today {
		return 0
	}
	return s.EmailsSentToday
}

// RecordSends bumps the daily counter, rolling it over on a new date.
func (s *RunnerState) RecordSends(today string, n int) {
	if s.SentCounterDate != today {
		s.SentCounterDate = today
		s.EmailsSentToday = 0
	}
	s.EmailsSentToday += n
}
