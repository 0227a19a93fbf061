package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tradereach/outreach-cli/internal/model"
	"github.com/tradereach/outreach-cli/pkg/mailer"
)

// sending delivers outreach to approved leads, bounded by the smaller of
// the per-run limit, what remains of the daily limit, and the eligible
// pool. Individual send failures release the lead and continue; an auth
// rejection from the provider stops the stage early but does not fail it.
func (p *Pipeline) sending(ctx context.Context, result *model.PipelineResult) (map[string]any, error) {
	if !p.cfg.Sending.Enabled {
		return map[string]any{"skipped": "sending disabled"}, nil
	}
	if p.state.SendingPaused {
		zap.L().Warn("pipeline: sending paused", zap.String("reason", p.state.PausedReason))
		return map[string]any{"skipped": "sending paused", "reason": p.state.PausedReason}, nil
	}

	// A discovery pass that ended short of its yield target holds sends
	// for this run. An empty reason means discovery did not run at all
	// (send-only invocation), which drains the approved pool as usual.
	if result.StoppedReason != "" && result.StoppedReason != model.StopTargetMet {
		zap.L().Info("pipeline: yield target not met, holding sends",
			zap.String("stopped_reason", string(result.StoppedReason)))
		return map[string]any{
			"skipped":        "yield target not met",
			"stopped_reason": string(result.StoppedReason),
		}, nil
	}

	today := p.now().Format("2006-01-02")
	budget := p.cfg.Sending.PerRunLimit
	if remaining := p.cfg.Sending.DailyLimit - p.state.SentToday(today); remaining < budget {
		budget = remaining
	}
	if budget <= 0 {
		zap.L().Info("pipeline: daily send limit reached",
			zap.Int("daily_limit", p.cfg.Sending.DailyLimit),
			zap.Int("sent_today", p.state.SentToday(today)),
		)
		return map[string]any{"skipped": "daily limit reached"}, nil
	}

	leads, err := p.store.EligibleUnsent(ctx, budget)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list eligible leads")
	}

	sent, failed := 0, 0
	for i := range leads {
		lead := &leads[i]

		claimed, err := p.store.ClaimLeadForSend(ctx, lead.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: claim lead %s", lead.ID)
		}
		if !claimed {
			continue
		}

		msg := p.buildMessage(lead)
		if _, err := p.mailer.Send(ctx, msg); err != nil {
			failed++
			if relErr := p.store.ReleaseLead(ctx, lead.ID, err.Error()); relErr != nil {
				zap.L().Error("pipeline: release lead failed",
					zap.String("lead_id", lead.ID),
					zap.Error(relErr),
				)
			}
			var statusErr *mailer.StatusError
			if errors.As(err, &statusErr) && (statusErr.StatusCode == 401 || statusErr.StatusCode == 403) {
				zap.L().Error("pipeline: mailer rejected credentials, stopping sends", zap.Error(err))
				break
			}
			zap.L().Warn("pipeline: send failed",
				zap.String("lead_id", lead.ID),
				zap.Error(err),
			)
			continue
		}

		if err := p.store.MarkLeadSent(ctx, lead.ID, p.now()); err != nil {
			zap.L().Error("pipeline: mark sent failed",
				zap.String("lead_id", lead.ID),
				zap.Error(err),
			)
		}
		sent++
	}

	p.state.RecordSends(today, sent)
	result.EmailsSent = sent

	return map[string]any{
		"budget": budget,
		"sent":   sent,
		"failed": failed,
	}, nil
}

// buildMessage renders the outreach email. The hook leads, the template
// body follows, signed with the configured from name.
func (p *Pipeline) buildMessage(lead *model.Lead) mailer.Message {
	opening := lead.Hook
	if opening == "" {
		opening = fmt.Sprintf("I help %ss in %s get more enquiries from local customers.",
			lead.Trade, lead.City)
	}

	body := fmt.Sprintf(`Hi %s team,

%s

We build simple one-page websites for %ss that turn searches into phone calls. No upfront cost, nothing to cancel.

Worth a quick look? Reply and I'll send an example for a %s in %s.

%s`,
		lead.Name, opening, lead.Trade, lead.Trade, lead.City, p.cfg.Mailer.FromName)

	subject := p.cfg.Sending.Subject
	if subject == "" {
		subject = fmt.Sprintf("Quick question about %s", lead.Name)
	}
	subject = strings.ReplaceAll(subject, "{{business}}", lead.Name)

	return mailer.Message{
		From:    fmt.Sprintf("%s <%s>", p.cfg.Mailer.FromName, p.cfg.Mailer.FromEmail),
		To:      lead.Email,
		Subject: subject,
		Text:    body,
	}
}
