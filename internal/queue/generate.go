package queue

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tradereach/outreach-cli/internal/model"
)

// tierMultiplier spaces tiers far enough apart that boosts never promote
// a task across a tier boundary.
const tierMultiplier = 100

// sessionOffsets order AM ahead of PM at equal priority.
var sessionOffsets = map[model.Session]int{
	model.SessionAM: 0,
	model.SessionPM: 1,
}

// Priority computes a task's priority (lower runs sooner). It is a pure
// function of its inputs so a persisted task's priority can always be
// recomputed from its fields.
func Priority(tier, tradeBoost, cityBoost int, session model.Session) int {
	return tier*tierMultiplier - tradeBoost - cityBoost + sessionOffsets[session]
}

// BuildQueue enumerates every (trade, city) pair from the tables, one AM
// and one PM task each, sorted ascending by priority.
func BuildQueue(tables *Tables, now time.Time) []model.QueueTask {
	var tasks []model.QueueTask
	for _, trade := range tables.Trades {
		for _, city := range tables.Cities {
			for _, session := range []model.Session{model.SessionAM, model.SessionPM} {
				tasks = append(tasks, model.QueueTask{
					ID:        uuid.New().String(),
					Trade:     trade.Name,
					City:      city.Name,
					Session:   session,
					Tier:      trade.Tier,
					Priority:  Priority(trade.Tier, trade.Boost, city.Boost, session),
					Status:    model.TaskPending,
					CreatedAt: now,
				})
			}
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority < tasks[j].Priority
	})
	return tasks
}
