package pipeline

import (
	"time"

	"go.uber.org/zap"
)

// progressInterval is how often a long run emits a heartbeat line.
const progressInterval = 30 * time.Second

type progressTicker struct {
	done chan struct{}
}

// startProgress emits a periodic heartbeat so long crawls are visibly
// alive in the logs. Stopped when the run finishes.
func startProgress(runID string) *progressTicker {
	p := &progressTicker{done: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		started := time.Now()
		for {
			select {
			case <-p.done:
				return
			case <-ticker.C:
				zap.L().Info("pipeline: still running",
					zap.String("run_id", runID),
					zap.Duration("elapsed", time.Since(started).Round(time.Second)),
				)
			}
		}
	}()
	return p
}

func (p *progressTicker) stop() {
	close(p.done)
}
