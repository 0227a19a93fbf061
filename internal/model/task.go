package model

import "time"

// Session is a morning or evening scheduling window.
type Session string

const (
	SessionAM Session = "AM"
	SessionPM Session = "PM"
)

// TaskStatus is the lifecycle state of a queue task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskStale      TaskStatus = "stale"
)

// QueueTask is one unit of scheduled discovery work: one trade in one city
// for one session. Tasks are created in bulk at queue-build time and kept
// forever as a historical record.
type QueueTask struct {
	ID      string  `json:"id" db:"id"`
	Trade   string  `json:"trade" db:"trade"`
	City    string  `json:"city" db:"city"`
	Session Session `json:"session" db:"session"`

	// Priority is a pure function of tier, trade boost, city boost, and
	// session offset (lower runs sooner). It is recomputable from those
	// fields and never independently authored.
	Priority int `json:"priority" db:"priority"`
	Tier     int `json:"tier" db:"tier"`

	Status TaskStatus `json:"status" db:"status"`
	Error  string     `json:"error,omitempty" db:"error"`

	LeadsFound       int `json:"leads_found" db:"leads_found"`
	LeadsAfterDedupe int `json:"leads_after_dedupe" db:"leads_after_dedupe"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
