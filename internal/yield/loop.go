// Package yield implements the iteration controller for discovery tasks.
// Each pass scrapes the upstream actor, deduplicates, and runs email
// discovery, escalating strategy between passes until the yield target
// is met or a safety limit stops the loop.
package yield

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradereach/outreach-cli/internal/dedupe"
	"github.com/tradereach/outreach-cli/internal/emaildisc"
	"github.com/tradereach/outreach-cli/internal/model"
	"github.com/tradereach/outreach-cli/pkg/places"
)

// Searcher is the upstream business search used each iteration.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]places.Business, error)
}

// EmailFinder runs per-lead email discovery.
type EmailFinder interface {
	Discover(ctx context.Context, website, sourceURL string, opts emaildisc.Options) emaildisc.Result
}

// Config holds the loop's targets, limits, and crawl presets.
type Config struct {
	TargetEmailsMin    int
	TargetEmailRateMin float64
	MaxIterations      int
	MaxRuntime         time.Duration
	DeepCrawlEnabled   bool

	MaxResultsPerSearch int
	Crawl               emaildisc.Options
	DeepMaxPages        int

	// Synonyms resolves the query-variant phrasings for a trade, cycled
	// in order. Nil disables synonym variants.
	Synonyms func(trade string) []string
}

// Loop runs the scrape/dedupe/discover cycle for one queue task.
type Loop struct {
	search Searcher
	finder EmailFinder
	engine *dedupe.Engine
	cfg    Config
	now    func() time.Time
}

// New creates a Loop sharing the caller's dedupe engine, so keys
// registered here are visible to later tasks in the same run.
func New(search Searcher, finder EmailFinder, engine *dedupe.Engine, cfg Config) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 3
	}
	if cfg.MaxResultsPerSearch <= 0 {
		cfg.MaxResultsPerSearch = 20
	}
	if cfg.DeepMaxPages <= 0 {
		cfg.DeepMaxPages = 12
	}
	return &Loop{search: search, finder: finder, engine: engine, cfg: cfg, now: time.Now}
}

// Run executes the loop for one task. It returns every kept lead across
// all iterations plus the terminal result. An upstream search failure
// stops the loop with no_results instead of retrying; quota is not spent
// on a broken case.
func (l *Loop) Run(ctx context.Context, task model.QueueTask) ([]model.Lead, *model.YieldResult, error) {
	start := l.now()
	result := &model.YieldResult{StoppedReason: model.StopMaxIterations}

	var (
		leads      []model.Lead
		withEmail  int
		errCodes   = make(map[string]string) // lead ID -> discovery error code
		variantIdx int
	)

	for iter := 1; iter <= l.cfg.MaxIterations; iter++ {
		if l.cfg.MaxRuntime > 0 && l.now().Sub(start) >= l.cfg.MaxRuntime {
			result.StoppedReason = model.StopMaxRuntime
			break
		}
		if err := ctx.Err(); err != nil {
			result.StoppedReason = model.StopMaxRuntime
			break
		}

		iterStart := l.now()
		pivot := l.pivotFor(iter)
		query, variant := l.queryFor(task, pivot, &variantIdx)

		zap.L().Info("yield: iteration starting",
			zap.String("task_id", task.ID),
			zap.Int("iteration", iter),
			zap.String("pivot", string(pivot)),
			zap.String("query", query),
		)

		businesses, err := l.search.Search(ctx, query, l.cfg.MaxResultsPerSearch)
		if err != nil {
			zap.L().Warn("yield: upstream search failed, stopping loop",
				zap.String("task_id", task.ID),
				zap.Int("iteration", iter),
				zap.Error(err),
			)
			result.StoppedReason = model.StopNoResults
			result.IterationsRun = iter
			break
		}
		if len(businesses) == 0 {
			result.StoppedReason = model.StopNoResults
			result.IterationsRun = iter
			break
		}

		candidates := l.toLeads(businesses, task)
		kept, _ := l.engine.Partition(candidates)

		stats := model.IterationStats{
			Iteration:        iter,
			Pivot:            pivot,
			QueryVariant:     variant,
			LeadsFound:       len(candidates),
			LeadsAfterDedupe: len(kept),
			EmailsBySource:   make(map[string]int),
		}

		opts := l.crawlOptions(pivot)
		for i := range kept {
			lead := &kept[i]
			if lead.Website != "" {
				stats.WithWebsite++
			}
			if lead.Email != "" {
				stats.EmailsBySource[lead.EmailSource]++
				continue
			}

			res := l.finder.Discover(ctx, lead.Website, lead.SourceURL, opts)
			stats.PagesCrawled += res.PagesCrawled
			if lead.Website != "" {
				stats.DomainsScanned++
			}
			if res.Email != "" {
				lead.Email = res.Email
				lead.EmailSource = res.Source
				delete(errCodes, lead.ID)
				stats.EmailsBySource[res.Source]++
				// The discovered email becomes a dedupe key too.
				l.engine.Register(lead)
			} else {
				errCodes[lead.ID] = res.ErrCode
			}
		}

		leads = append(leads, kept...)
		withEmail = countWithEmail(leads)

		rate := 0.0
		if len(leads) > 0 {
			rate = float64(withEmail) / float64(len(leads))
		}
		stats.EmailRate = rate
		stats.Duration = l.now().Sub(iterStart)
		result.Iterations = append(result.Iterations, stats)
		result.IterationsRun = iter

		zap.L().Info("yield: iteration finished",
			zap.String("task_id", task.ID),
			zap.Int("iteration", iter),
			zap.Int("leads_found", stats.LeadsFound),
			zap.Int("leads_after_dedupe", stats.LeadsAfterDedupe),
			zap.Int("emails_total", withEmail),
			zap.Float64("email_rate", rate),
		)

		if withEmail >= l.cfg.TargetEmailsMin || (l.cfg.TargetEmailRateMin > 0 && rate >= l.cfg.TargetEmailRateMin) {
			result.StoppedReason = model.StopTargetMet
			break
		}
	}

	result.TotalLeads = len(leads)
	result.LeadsWithEmail = withEmail
	if result.TotalLeads > 0 {
		result.EmailRate = float64(withEmail) / float64(result.TotalLeads)
	}
	result.FailureReasons = bucketFailures(leads, errCodes)
	result.Duration = l.now().Sub(start)

	zap.L().Info("yield: loop finished",
		zap.String("task_id", task.ID),
		zap.String("stopped_reason", string(result.StoppedReason)),
		zap.Int("iterations_run", result.IterationsRun),
		zap.Int("total_leads", result.TotalLeads),
		zap.Int("leads_with_email", result.LeadsWithEmail),
	)
	return leads, result, nil
}

// pivotFor picks the strategy escalation for an iteration. Iteration 1
// always runs plain; iteration 2 deepens the crawl when enabled;
// everything after rewrites the query.
func (l *Loop) pivotFor(iter int) model.Pivot {
	switch {
	case iter <= 1:
		return model.PivotNone
	case iter == 2 && l.cfg.DeepCrawlEnabled:
		return model.PivotDeepCrawl
	default:
		return model.PivotQueryVariant
	}
}

// queryFor builds the search text for an iteration. Query variants cycle
// through trade synonyms, then fall back to a radius-widening "near"
// phrasing. With no variants left the base query repeats.
func (l *Loop) queryFor(task model.QueueTask, pivot model.Pivot, variantIdx *int) (query, variant string) {
	base := task.Trade + " in " + task.City
	if pivot != model.PivotQueryVariant {
		return base, ""
	}

	var synonyms []string
	if l.cfg.Synonyms != nil {
		synonyms = l.cfg.Synonyms(task.Trade)
	}
	variants := make([]string, 0, len(synonyms)+1)
	for _, syn := range synonyms {
		variants = append(variants, syn+" in "+task.City)
	}
	variants = append(variants, task.Trade+" near "+task.City)

	v := variants[*variantIdx%len(variants)]
	*variantIdx++
	return v, v
}

// crawlOptions applies the deep-crawl pivot: page cap raised to the
// configured maximum, every extraction technique forced on.
func (l *Loop) crawlOptions(pivot model.Pivot) emaildisc.Options {
	opts := l.cfg.Crawl
	if pivot == model.PivotDeepCrawl {
		opts.MaxPages = l.cfg.DeepMaxPages
		opts.StructuredData = true
		opts.Deobfuscation = true
		opts.SocialFallback = true
	}
	return opts
}

func (l *Loop) toLeads(businesses []places.Business, task model.QueueTask) []model.Lead {
	now := l.now()
	leads := make([]model.Lead, 0, len(businesses))
	for _, b := range businesses {
		lead := model.Lead{
			ID:          uuid.NewString(),
			Name:        b.Name,
			Email:       b.Email,
			Phone:       b.Phone,
			Website:     b.Website,
			Trade:       task.Trade,
			City:        task.City,
			Source:      model.SourcePlaces,
			PlaceID:     b.PlaceID,
			SourceURL:   b.SourceURL,
			ReviewCount: b.ReviewCount,
			Status:      model.StatusNew,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if lead.Email != "" {
			lead.EmailSource = model.EmailSourceScrape
		}
		leads = append(leads, lead)
	}
	return leads
}

func countWithEmail(leads []model.Lead) int {
	n := 0
	for i := range leads {
		if leads[i].Email != "" {
			n++
		}
	}
	return n
}
