package queue

import (
	"context"

	"github.com/tradereach/outreach-cli/internal/model"
)

type completedCall struct {
	id               string
	leadsFound       int
	leadsAfterDedupe int
}

type failedCall struct {
	id     string
	errMsg string
}

// mockTaskStore records scheduler calls against a fixed pending list.
type mockTaskStore struct {
	pending    []model.QueueTask
	pendingErr error
	claimErr   error

	claimed   []string
	completed []completedCall
	failed    []failedCall
}

func (m *mockTaskStore) PendingTasks(_ context.Context, _ model.Session) ([]model.QueueTask, error) {
	if m.pendingErr != nil {
		return nil, m.pendingErr
	}
	out := make([]model.QueueTask, len(m.pending))
	copy(out, m.pending)
	return out, nil
}

func (m *mockTaskStore) ClaimTask(_ context.Context, id string) error {
	if m.claimErr != nil {
		return m.claimErr
	}
	m.claimed = append(m.claimed, id)
	return nil
}

func (m *mockTaskStore) CompleteTask(_ context.Context, id string, leadsFound, leadsAfterDedupe int) error {
	m.completed = append(m.completed, completedCall{id: id, leadsFound: leadsFound, leadsAfterDedupe: leadsAfterDedupe})
	return nil
}

func (m *mockTaskStore) FailTask(_ context.Context, id string, errMsg string) error {
	m.failed = append(m.failed, failedCall{id: id, errMsg: errMsg})
	return nil
}
