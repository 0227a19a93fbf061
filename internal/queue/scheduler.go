// Package queue generates and schedules discovery tasks: one task is one
// trade in one city for one AM or PM session.
package queue

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tradereach/outreach-cli/internal/model"
)

// TaskStore is the persistence surface the scheduler needs.
type TaskStore interface {
	// PendingTasks returns pending tasks for a session, ascending by priority.
	PendingTasks(ctx context.Context, session model.Session) ([]model.QueueTask, error)
	ClaimTask(ctx context.Context, id string) error
	CompleteTask(ctx context.Context, id string, leadsFound, leadsAfterDedupe int) error
	FailTask(ctx context.Context, id string, errMsg string) error
}

// Config holds scheduler policy.
type Config struct {
	// EnforceSameTrade pins the first claimed task's trade as the day's
	// focus trade until that trade's tasks are exhausted.
	EnforceSameTrade bool

	// ManualSessions switches from the automated noon split to configured
	// AM/PM hour windows.
	ManualSessions bool
	AMStartHour    int
	AMEndHour      int
	PMStartHour    int
	PMEndHour      int
}

// Scheduler hands out the next task to run, keeping each day thematically
// consistent via the focus-trade rule. The runner state is owned by the
// caller, which persists it at end of run.
type Scheduler struct {
	store TaskStore
	cfg   Config
	state *model.RunnerState
	now   func() time.Time
}

// NewScheduler creates a Scheduler operating on the given runner state.
func NewScheduler(store TaskStore, cfg Config, state *model.RunnerState) *Scheduler {
	return &Scheduler{store: store, cfg: cfg, state: state, now: time.Now}
}

// WithNow fixes the clock for testing.
func (s *Scheduler) WithNow(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// DetermineSession maps the current hour to a session. Automated mode
// splits at noon; manual mode uses the configured windows and defaults to
// PM (with a warning) outside both.
func (s *Scheduler) DetermineSession() model.Session {
	hour := s.now().Hour()

	if !s.cfg.ManualSessions {
		if hour < 12 {
			return model.SessionAM
		}
		return model.SessionPM
	}

	switch {
	case hour >= s.cfg.AMStartHour && hour < s.cfg.AMEndHour:
		return model.SessionAM
	case hour >= s.cfg.PMStartHour && hour < s.cfg.PMEndHour:
		return model.SessionPM
	default:
		zap.L().Warn("queue: hour outside configured session windows, defaulting to PM",
			zap.Int("hour", hour),
		)
		return model.SessionPM
	}
}

// NextTask claims and returns the highest-priority pending task for the
// session, honoring the focus-trade rule. Returns nil with no error when
// the queue is exhausted.
func (s *Scheduler) NextTask(ctx context.Context, session model.Session) (*model.QueueTask, error) {
	tasks, err := s.store.PendingTasks(ctx, session)
	if err != nil {
		return nil, eris.Wrap(err, "queue: list pending tasks")
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	today := s.now().Format("2006-01-02")
	pick := &tasks[0]

	if s.cfg.EnforceSameTrade {
		// Stale focus state (set on a previous day) is ignored and re-derived.
		if s.state.FocusTrade != "" && s.state.FocusTradeDate == today {
			for i := range tasks {
				if tasks[i].Trade == s.state.FocusTrade {
					pick = &tasks[i]
					break
				}
			}
			if pick.Trade != s.state.FocusTrade {
				zap.L().Info("queue: focus trade exhausted, lifting constraint",
					zap.String("focus_trade", s.state.FocusTrade),
				)
			}
		}
		s.state.FocusTrade = pick.Trade
		s.state.FocusTradeDate = today
	}

	if err := s.store.ClaimTask(ctx, pick.ID); err != nil {
		return nil, eris.Wrapf(err, "queue: claim task %s", pick.ID)
	}
	pick.Status = model.TaskInProgress
	now := s.now()
	pick.ClaimedAt = &now

	zap.L().Info("queue: task claimed",
		zap.String("task_id", pick.ID),
		zap.String("trade", pick.Trade),
		zap.String("city", pick.City),
		zap.String("session", string(pick.Session)),
		zap.Int("priority", pick.Priority),
	)
	return pick, nil
}

// Complete records a task's result counts and marks it completed.
func (s *Scheduler) Complete(ctx context.Context, task *model.QueueTask, leadsFound, leadsAfterDedupe int) error {
	if err := s.store.CompleteTask(ctx, task.ID, leadsFound, leadsAfterDedupe); err != nil {
		return eris.Wrapf(err, "queue: complete task %s", task.ID)
	}
	return nil
}

// Fail marks a task failed with the error message recorded. The scheduler
// never retries a failed task itself; retry is the caller's decision.
func (s *Scheduler) Fail(ctx context.Context, task *model.QueueTask, taskErr error) error {
	msg := ""
	if taskErr != nil {
		msg = taskErr.Error()
	}
	if err := s.store.FailTask(ctx, task.ID, msg); err != nil {
		return eris.Wrapf(err, "queue: fail task %s", task.ID)
	}
	return nil
}
