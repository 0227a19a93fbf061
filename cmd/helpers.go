package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tradereach/outreach-cli/internal/dedupe"
	"github.com/tradereach/outreach-cli/internal/emaildisc"
	"github.com/tradereach/outreach-cli/internal/pipeline"
	"github.com/tradereach/outreach-cli/internal/queue"
	"github.com/tradereach/outreach-cli/internal/store"
	"github.com/tradereach/outreach-cli/internal/yield"
	"github.com/tradereach/outreach-cli/pkg/domainsearch"
	"github.com/tradereach/outreach-cli/pkg/hookwriter"
	"github.com/tradereach/outreach-cli/pkg/mailer"
	"github.com/tradereach/outreach-cli/pkg/places"
)

// initStore opens the configured backend and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// buildPipeline wires every client and service the pipeline needs.
func buildPipeline(st store.Store) (*pipeline.Pipeline, error) {
	tables, err := queue.LoadTables(cfg.Queue.TablesPath)
	if err != nil {
		return nil, eris.Wrap(err, "load trade tables")
	}

	var placesOpts []places.Option
	if cfg.Places.BaseURL != "" {
		placesOpts = append(placesOpts, places.WithBaseURL(cfg.Places.BaseURL))
	}
	if cfg.Places.TimeoutSecs > 0 {
		placesOpts = append(placesOpts, places.WithTimeout(time.Duration(cfg.Places.TimeoutSecs)*time.Second))
	}
	searcher := places.NewClient(cfg.Places.Key, placesOpts...)

	var lookup emaildisc.DomainSearcher
	if cfg.DomainSearch.Key != "" {
		var dsOpts []domainsearch.Option
		if cfg.DomainSearch.BaseURL != "" {
			dsOpts = append(dsOpts, domainsearch.WithBaseURL(cfg.DomainSearch.BaseURL))
		}
		lookup = domainsearch.NewClient(cfg.DomainSearch.Key, dsOpts...)
	}

	finder := emaildisc.New(emaildisc.Config{
		Timeout:     time.Duration(cfg.Crawl.TimeoutSecs) * time.Second,
		MinDelay:    time.Duration(cfg.Crawl.MinDelayMs) * time.Millisecond,
		CheckRobots: cfg.Crawl.CheckRobots,
	}, lookup)

	engine := dedupe.NewEngine()
	loop := yield.New(searcher, finder, engine, yield.Config{
		TargetEmailsMin:     cfg.Yield.TargetEmailsMin,
		TargetEmailRateMin:  cfg.Yield.TargetEmailRateMin,
		MaxIterations:       cfg.Yield.MaxIterations,
		MaxRuntime:          time.Duration(cfg.Yield.MaxRuntimeSecs) * time.Second,
		DeepCrawlEnabled:    cfg.Yield.DeepCrawlEnabled,
		MaxResultsPerSearch: cfg.Places.MaxResults,
		Crawl: emaildisc.Options{
			MaxPages:           cfg.Crawl.MaxPages,
			MaxDiscoveredLinks: cfg.Crawl.MaxDiscoveredLinks,
			StructuredData:     cfg.Crawl.StructuredData,
			Deobfuscation:      cfg.Crawl.Deobfuscation,
			SocialFallback:     cfg.Crawl.SocialFallback,
		},
		DeepMaxPages: cfg.Crawl.DeepMaxPages,
		Synonyms: func(trade string) []string {
			if t := tables.TradeByName(trade); t != nil {
				return t.Synonyms
			}
			return nil
		},
	})

	var hookOpts []hookwriter.Option
	if cfg.Anthropic.Model != "" {
		hookOpts = append(hookOpts, hookwriter.WithModel(cfg.Anthropic.Model))
	}
	if cfg.Anthropic.MaxTokens > 0 {
		hookOpts = append(hookOpts, hookwriter.WithMaxTokens(int64(cfg.Anthropic.MaxTokens)))
	}
	hooks := hookwriter.New(cfg.Anthropic.Key, hookOpts...)

	var mailOpts []mailer.Option
	if cfg.Mailer.BaseURL != "" {
		mailOpts = append(mailOpts, mailer.WithBaseURL(cfg.Mailer.BaseURL))
	}
	mail := mailer.NewClient(cfg.Mailer.Key, mailOpts...)

	return pipeline.New(cfg, st, engine, loop, hooks, mail), nil
}
