package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tradereach/outreach-cli/internal/model"
	"github.com/tradereach/outreach-cli/internal/resilience"
)

// preflight validates the environment before any quota is spent: schema
// contract, required credentials, and stale task recovery run in
// parallel, then the runner state and the durable key index are loaded.
func (p *Pipeline) preflight(ctx context.Context, _ *model.PipelineResult) (map[string]any, error) {
	var staleRecovered int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.store.ValidateSchema(gctx)
	})
	g.Go(func() error {
		return p.checkCredentials()
	})
	g.Go(func() error {
		n, err := p.store.MarkStaleTasks(gctx, p.now().Add(-staleTaskAge))
		if err != nil {
			return err
		}
		staleRecovered = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	state, err := p.store.RunnerState(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load runner state")
	}
	p.state = state

	keys, err := p.store.DedupeKeys(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load dedupe keys")
	}
	p.engine.Seed(keys)

	if staleRecovered > 0 {
		zap.L().Warn("pipeline: recovered stale tasks", zap.Int("count", staleRecovered))
	}

	return map[string]any{
		"dedupe_keys_loaded": len(keys),
		"stale_recovered":    staleRecovered,
		"sending_paused":     state.SendingPaused,
	}, nil
}

// checkCredentials verifies every key the enabled features need is
// present, so a misconfigured run fails before touching any API.
func (p *Pipeline) checkCredentials() error {
	if p.cfg.Places.Key == "" {
		return resilience.NewConfigError("places.key is required (set OUTREACH_PLACES_KEY)")
	}
	if p.cfg.Anthropic.Key == "" {
		return resilience.NewConfigError("anthropic.key is required (set OUTREACH_ANTHROPIC_KEY)")
	}
	if p.cfg.Sending.Enabled {
		if p.cfg.Mailer.Key == "" {
			return resilience.NewConfigError("mailer.key is required when sending is enabled (set OUTREACH_MAILER_KEY)")
		}
		if p.cfg.Mailer.FromEmail == "" {
			return resilience.NewConfigError("mailer.from_email is required when sending is enabled")
		}
	}
	return nil
}
