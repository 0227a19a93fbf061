// Package pipeline orchestrates one outreach run end to end:
// PREFLIGHT -> DISCOVERY -> ELIGIBILITY -> SENDING -> COMPLETE.
// A stage failure moves the run to FAILED; every run, failed or not,
// produces a full structured result in the run log.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tradereach/outreach-cli/internal/config"
	"github.com/tradereach/outreach-cli/internal/dedupe"
	"github.com/tradereach/outreach-cli/internal/eligibility"
	"github.com/tradereach/outreach-cli/internal/model"
	"github.com/tradereach/outreach-cli/internal/queue"
	"github.com/tradereach/outreach-cli/internal/store"
	"github.com/tradereach/outreach-cli/internal/yield"
	"github.com/tradereach/outreach-cli/pkg/hookwriter"
	"github.com/tradereach/outreach-cli/pkg/mailer"
)

// staleTaskAge is how long a claimed task may sit in_progress before
// preflight reclassifies it as abandoned by a crashed run.
const staleTaskAge = 6 * time.Hour

// Pipeline runs the full outreach cycle for one invocation.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	engine *dedupe.Engine
	loop   *yield.Loop
	hooks  hookwriter.Writer
	mailer mailer.Client

	state *model.RunnerState
	now   func() time.Time
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	engine *dedupe.Engine,
	loop *yield.Loop,
	hooks hookwriter.Writer,
	mail mailer.Client,
) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		store:  st,
		engine: engine,
		loop:   loop,
		hooks:  hooks,
		mailer: mail,
		now:    time.Now,
	}
}

// WithNow fixes the clock for testing.
func (p *Pipeline) WithNow(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

type stageFn func(context.Context, *model.PipelineResult) (map[string]any, error)

type stageDef struct {
	stage model.Stage
	fn    stageFn
}

// Run executes one full pipeline pass. The returned result is always
// non-nil and has been appended to the run log; the error reports the
// failing stage, if any.
func (p *Pipeline) Run(ctx context.Context) (*model.PipelineResult, error) {
	return p.run(ctx, []stageDef{
		{model.StagePreflight, p.preflight},
		{model.StageDiscovery, p.discovery},
		{model.StageEligibility, p.eligibility},
		{model.StageSending, p.sending},
	})
}

// Classify runs preflight plus the eligibility stage only, for re-scoring
// the backlog after a policy change.
func (p *Pipeline) Classify(ctx context.Context) (*model.PipelineResult, error) {
	return p.run(ctx, []stageDef{
		{model.StagePreflight, p.preflight},
		{model.StageEligibility, p.eligibility},
	})
}

// Send runs preflight plus the sending stage only, draining the approved
// pool without new discovery.
func (p *Pipeline) Send(ctx context.Context) (*model.PipelineResult, error) {
	return p.run(ctx, []stageDef{
		{model.StagePreflight, p.preflight},
		{model.StageSending, p.sending},
	})
}

// Discover runs preflight plus the discovery stage only.
func (p *Pipeline) Discover(ctx context.Context) (*model.PipelineResult, error) {
	return p.run(ctx, []stageDef{
		{model.StagePreflight, p.preflight},
		{model.StageDiscovery, p.discovery},
	})
}

func (p *Pipeline) run(ctx context.Context, stages []stageDef) (*model.PipelineResult, error) {
	result := &model.PipelineResult{
		RunID:     uuid.New().String(),
		StartedAt: p.now(),
	}

	progress := startProgress(result.RunID)
	defer progress.stop()

	runErr := p.runStages(ctx, result, stages)
	result.Duration = p.now().Sub(result.StartedAt)

	if p.state != nil {
		now := p.now()
		p.state.LastRunAt = &now
		if err := p.store.SaveRunnerState(ctx, p.state); err != nil {
			zap.L().Error("pipeline: save runner state failed", zap.Error(err))
		}
	}
	if err := p.store.AppendRunLog(ctx, result); err != nil {
		zap.L().Error("pipeline: append run log failed", zap.Error(err))
	}

	zap.L().Info("pipeline: run finished",
		zap.String("run_id", result.RunID),
		zap.String("final_stage", string(result.FinalStage)),
		zap.String("stopped_reason", string(result.StoppedReason)),
		zap.Int("leads_found", result.LeadsFound),
		zap.Int("leads_with_email", result.LeadsWithEmail),
		zap.Int("leads_eligible", result.LeadsEligible),
		zap.Int("emails_sent", result.EmailsSent),
		zap.Duration("duration", result.Duration),
	)
	return result, runErr
}

func (p *Pipeline) runStages(ctx context.Context, result *model.PipelineResult, stages []stageDef) error {
	for _, s := range stages {
		start := p.now()
		meta, err := s.fn(ctx, result)
		sr := model.StageResult{
			Stage:    s.stage,
			OK:       err == nil,
			Duration: p.now().Sub(start),
			Metadata: meta,
		}
		if err != nil {
			sr.Error = err.Error()
		}
		result.Stages = append(result.Stages, sr)

		if err != nil {
			result.FinalStage = model.StageFailed
			return eris.Wrapf(err, "pipeline: stage %s", s.stage)
		}
	}
	result.FinalStage = model.StageComplete
	return nil
}

// discovery claims the next task for the current session and runs the
// yield loop on it. A run with no pending tasks completes quietly with
// stopped_reason no_tasks.
func (p *Pipeline) discovery(ctx context.Context, result *model.PipelineResult) (map[string]any, error) {
	scheduler := queue.NewScheduler(p.store, queue.Config{
		EnforceSameTrade: p.cfg.Queue.EnforceSameTrade,
		ManualSessions:   p.cfg.Queue.ManualSessions,
		AMStartHour:      p.cfg.Queue.AMStartHour,
		AMEndHour:        p.cfg.Queue.AMEndHour,
		PMStartHour:      p.cfg.Queue.PMStartHour,
		PMEndHour:        p.cfg.Queue.PMEndHour,
	}, p.state).WithNow(p.now)

	session := scheduler.DetermineSession()
	task, err := scheduler.NextTask(ctx, session)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: next task")
	}
	if task == nil {
		result.StoppedReason = model.StopNoTasks
		return map[string]any{"session": string(session)}, nil
	}
	p.state.LastRunSession = session

	leads, yieldResult, err := p.loop.Run(ctx, *task)
	if err != nil {
		if failErr := p.store.FailTask(ctx, task.ID, err.Error()); failErr != nil {
			zap.L().Error("pipeline: fail task failed", zap.Error(failErr))
		}
		return nil, eris.Wrapf(err, "pipeline: yield loop for task %s", task.ID)
	}

	enrichErr := p.enrich(ctx, leads)

	// The crawl already happened; persist its leads and dedupe keys even
	// when enrichment died, so a retried task cannot re-contact them.
	inserted, err := p.store.InsertLeads(ctx, leads)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: insert leads")
	}
	if err := p.store.SaveDedupeKeys(ctx, p.engine.Pending()); err != nil {
		return nil, eris.Wrap(err, "pipeline: flush dedupe keys")
	}
	p.engine.Flushed()

	if enrichErr != nil {
		if failErr := p.store.FailTask(ctx, task.ID, enrichErr.Error()); failErr != nil {
			zap.L().Error("pipeline: fail task failed", zap.Error(failErr))
		}
		return nil, enrichErr
	}

	found := 0
	for _, it := range yieldResult.Iterations {
		found += it.LeadsFound
	}
	if err := scheduler.Complete(ctx, task, found, yieldResult.TotalLeads); err != nil {
		zap.L().Error("pipeline: complete task failed", zap.Error(err))
	}

	result.TasksRun = 1
	result.LeadsFound = found
	result.LeadsKept = inserted
	result.LeadsWithEmail = yieldResult.LeadsWithEmail
	result.StoppedReason = yieldResult.StoppedReason

	return map[string]any{
		"task_id":        task.ID,
		"trade":          task.Trade,
		"city":           task.City,
		"session":        string(session),
		"stopped_reason": string(yieldResult.StoppedReason),
		"iterations_run": yieldResult.IterationsRun,
	}, nil
}

// enrich generates a hook line for every lead that has an email. Hook
// failures are soft except authentication: dead credentials fail every
// further call too, so the sentinel is returned and fails the stage.
func (p *Pipeline) enrich(ctx context.Context, leads []model.Lead) error {
	if p.hooks == nil {
		return nil
	}
	for i := range leads {
		lead := &leads[i]
		if lead.Email == "" {
			continue
		}
		hook, err := p.hooks.GenerateHook(ctx, hookwriter.HookInput{
			BusinessName: lead.Name,
			Trade:        lead.Trade,
			City:         lead.City,
			Website:      lead.Website,
		})
		if err != nil {
			if errors.Is(err, hookwriter.ErrAuth) {
				return eris.Wrap(err, "pipeline: enrich leads")
			}
			zap.L().Warn("pipeline: hook generation failed",
				zap.String("lead_id", lead.ID),
				zap.Error(err),
			)
			continue
		}
		lead.Hook = hook
		now := p.now()
		lead.EnrichedAt = &now
	}
	return nil
}

// eligibility classifies every NEW lead with an email and persists the
// verdict. Eligible leads move to APPROVED, no-email leads to SKIPPED,
// and everything else to REJECTED.
func (p *Pipeline) eligibility(ctx context.Context, result *model.PipelineResult) (map[string]any, error) {
	blocklist, err := p.store.Blocklist(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load blocklist")
	}
	blocked := make(map[string]bool, len(blocklist))
	for _, e := range blocklist {
		blocked[e] = true
	}

	policy := eligibility.Policy{
		AllowFreeEmail:     p.cfg.Eligibility.AllowFreeEmail,
		SoleTraderMode:     p.cfg.Eligibility.SoleTraderMode,
		RequireDomainMatch: p.cfg.Eligibility.RequireDomainMatch,
		MaxReviewCount:     p.cfg.Eligibility.MaxReviewCount,
		Blocklist:          blocked,
	}

	newLeads, err := p.store.ListLeadsByStatus(ctx, model.StatusNew, 0)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list new leads")
	}

	eligible, rejected, skipped := 0, 0, 0
	verdicts := make([]model.Lead, 0, len(newLeads))
	for i := range newLeads {
		verdict := eligibility.Evaluate(newLeads[i], policy)
		switch {
		case verdict.Eligible():
			verdict.Status = model.StatusApproved
			eligible++
		case verdict.IneligibleReason == eligibility.ReasonNoEmail:
			verdict.Status = model.StatusSkipped
			skipped++
		default:
			verdict.Status = model.StatusRejected
			rejected++
		}
		verdicts = append(verdicts, verdict)
	}

	if err := p.store.UpdateLeads(ctx, verdicts); err != nil {
		zap.L().Warn("pipeline: batched eligibility update failed, retrying lead by lead",
			zap.Int("leads", len(verdicts)),
			zap.Error(err),
		)
		// Individual retries are throttled so a struggling backend is not
		// hammered with the whole batch at once.
		limiter := rate.NewLimiter(rate.Limit(20), 1)
		for i := range verdicts {
			if err := limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "pipeline: eligibility update wait")
			}
			if err := p.store.UpdateLead(ctx, &verdicts[i]); err != nil {
				zap.L().Warn("pipeline: eligibility update failed",
					zap.String("lead_id", verdicts[i].ID),
					zap.Error(err),
				)
			}
		}
	}

	result.LeadsEligible = eligible
	return map[string]any{
		"classified": len(newLeads),
		"eligible":   eligible,
		"rejected":   rejected,
		"skipped":    skipped,
	}, nil
}
