package yield

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradereach/outreach-cli/internal/dedupe"
	"github.com/tradereach/outreach-cli/internal/emaildisc"
	"github.com/tradereach/outreach-cli/internal/model"
	"github.com/tradereach/outreach-cli/pkg/places"
)

type searchCall struct {
	query      string
	maxResults int
}

// mockSearcher plays back one result set per call.
type mockSearcher struct {
	results [][]places.Business
	err     error
	calls   []searchCall
}

func (m *mockSearcher) Search(_ context.Context, query string, maxResults int) ([]places.Business, error) {
	m.calls = append(m.calls, searchCall{query: query, maxResults: maxResults})
	if m.err != nil {
		return nil, m.err
	}
	idx := len(m.calls) - 1
	if idx < len(m.results) {
		return m.results[idx], nil
	}
	return nil, nil
}

// mockFinder resolves emails by website.
type mockFinder struct {
	emails map[string]string // website -> discovered email
	codes  map[string]string // website -> err code when no email
	opts   []emaildisc.Options
}

func (m *mockFinder) Discover(_ context.Context, website, _ string, opts emaildisc.Options) emaildisc.Result {
	m.opts = append(m.opts, opts)
	if website == "" {
		return emaildisc.Result{ErrCode: emaildisc.ErrCodeNoWebsite}
	}
	if email, ok := m.emails[website]; ok {
		return emaildisc.Result{Email: email, Source: model.EmailSourceWebsite, PagesCrawled: 2}
	}
	code, ok := m.codes[website]
	if !ok {
		code = emaildisc.ErrCodeNoEmailFound
	}
	return emaildisc.Result{ErrCode: code, PagesCrawled: 2}
}

func biz(name, website, placeID string) places.Business {
	return places.Business{Name: name, Website: website, PlaceID: placeID}
}

func testTask() model.QueueTask {
	return model.QueueTask{ID: "task-1", Trade: "plumber", City: "Leeds"}
}

func TestRun_TargetMetOnSecondIteration(t *testing.T) {
	searcher := &mockSearcher{results: [][]places.Business{
		{
			biz("A Plumbing", "a.co.uk", "p1"),
			biz("B Plumbing", "b.co.uk", "p2"),
			biz("C Plumbing", "c.co.uk", "p3"),
			biz("D Plumbing", "d.co.uk", "p4"),
		},
		{
			biz("E Plumbing", "e.co.uk", "p5"),
			biz("F Plumbing", "f.co.uk", "p6"),
			biz("G Plumbing", "g.co.uk", "p7"),
		},
	}}
	finder := &mockFinder{emails: map[string]string{
		"a.co.uk": "a@a.co.uk",
		"b.co.uk": "b@b.co.uk",
		"c.co.uk": "c@c.co.uk",
		"e.co.uk": "e@e.co.uk",
		"f.co.uk": "f@f.co.uk",
	}}

	loop := New(searcher, finder, dedupe.NewEngine(), Config{
		TargetEmailsMin:     5,
		MaxIterations:       3,
		DeepCrawlEnabled:    true,
		MaxResultsPerSearch: 10,
		DeepMaxPages:        9,
	})

	leads, result, err := loop.Run(context.Background(), testTask())
	require.NoError(t, err)

	assert.Equal(t, model.StopTargetMet, result.StoppedReason)
	assert.Equal(t, 2, result.IterationsRun)
	assert.Len(t, searcher.calls, 2, "no third iteration once the target is met")
	assert.Equal(t, 7, result.TotalLeads)
	assert.Equal(t, 5, result.LeadsWithEmail)
	assert.Len(t, leads, 7)

	require.Len(t, result.Iterations, 2)
	assert.Equal(t, model.PivotNone, result.Iterations[0].Pivot)
	assert.Equal(t, model.PivotDeepCrawl, result.Iterations[1].Pivot)
	assert.Equal(t, 4, result.Iterations[0].LeadsFound)
	assert.Equal(t, 3, result.Iterations[1].LeadsFound)

	// The deep-crawl pivot raises the page cap and forces every technique.
	require.Len(t, finder.opts, 7)
	for _, o := range finder.opts[4:] {
		assert.Equal(t, 9, o.MaxPages)
		assert.True(t, o.StructuredData)
		assert.True(t, o.Deobfuscation)
		assert.True(t, o.SocialFallback)
	}
	for _, o := range finder.opts[:4] {
		assert.False(t, o.StructuredData)
	}
}

func TestRun_SearchErrorStopsImmediately(t *testing.T) {
	searcher := &mockSearcher{err: errors.New("actor quota exhausted")}
	loop := New(searcher, &mockFinder{}, dedupe.NewEngine(), Config{TargetEmailsMin: 5})

	leads, result, err := loop.Run(context.Background(), testTask())
	require.NoError(t, err)

	assert.Equal(t, model.StopNoResults, result.StoppedReason)
	assert.Equal(t, 1, result.IterationsRun)
	assert.Len(t, searcher.calls, 1, "a failed search is not retried")
	assert.Empty(t, leads)
	assert.Zero(t, result.TotalLeads)
	assert.Empty(t, result.Iterations)
}

func TestRun_EmptyResultsStops(t *testing.T) {
	searcher := &mockSearcher{results: [][]places.Business{
		{biz("A Plumbing", "a.co.uk", "p1")},
		{},
	}}
	finder := &mockFinder{codes: map[string]string{"a.co.uk": emaildisc.ErrCodeTimeout}}

	loop := New(searcher, finder, dedupe.NewEngine(), Config{TargetEmailsMin: 5, MaxIterations: 3})

	leads, result, err := loop.Run(context.Background(), testTask())
	require.NoError(t, err)

	assert.Equal(t, model.StopNoResults, result.StoppedReason)
	assert.Equal(t, 2, result.IterationsRun)
	assert.Len(t, leads, 1)
	assert.Equal(t, []model.FailureReason{
		{Code: emaildisc.ErrCodeTimeout, Count: 1},
	}, result.FailureReasons)
}

func TestRun_MaxIterationsAndQueryVariants(t *testing.T) {
	results := [][]places.Business{
		{biz("A Plumbing", "", "p1")},
		{biz("B Plumbing", "", "p2")},
		{biz("C Plumbing", "", "p3")},
	}
	searcher := &mockSearcher{results: results}

	loop := New(searcher, &mockFinder{}, dedupe.NewEngine(), Config{
		TargetEmailsMin: 50,
		MaxIterations:   3,
		Synonyms: func(trade string) []string {
			require.Equal(t, "plumber", trade)
			return []string{"emergency plumber"}
		},
	})

	leads, result, err := loop.Run(context.Background(), testTask())
	require.NoError(t, err)

	assert.Equal(t, model.StopMaxIterations, result.StoppedReason)
	assert.Equal(t, 3, result.IterationsRun)
	assert.Len(t, leads, 3)

	require.Len(t, searcher.calls, 3)
	assert.Equal(t, "plumber in Leeds", searcher.calls[0].query)
	assert.Equal(t, "emergency plumber in Leeds", searcher.calls[1].query)
	assert.Equal(t, "plumber near Leeds", searcher.calls[2].query)

	// Variant is recorded on query-variant iterations only.
	assert.Empty(t, result.Iterations[0].QueryVariant)
	assert.Equal(t, "emergency plumber in Leeds", result.Iterations[1].QueryVariant)
	assert.Equal(t, "plumber near Leeds", result.Iterations[2].QueryVariant)

	// Leads without a website bucket under no_website.
	assert.Equal(t, []model.FailureReason{
		{Code: emaildisc.ErrCodeNoWebsite, Count: 3},
	}, result.FailureReasons)
}

func TestRun_EmailRateTarget(t *testing.T) {
	searcher := &mockSearcher{results: [][]places.Business{{
		biz("A Plumbing", "a.co.uk", "p1"),
		biz("B Plumbing", "b.co.uk", "p2"),
		biz("C Plumbing", "c.co.uk", "p3"),
		biz("D Plumbing", "d.co.uk", "p4"),
	}}}
	finder := &mockFinder{emails: map[string]string{
		"a.co.uk": "a@a.co.uk",
		"b.co.uk": "b@b.co.uk",
	}}

	loop := New(searcher, finder, dedupe.NewEngine(), Config{
		TargetEmailsMin:    100,
		TargetEmailRateMin: 0.5,
		MaxIterations:      3,
	})

	_, result, err := loop.Run(context.Background(), testTask())
	require.NoError(t, err)

	assert.Equal(t, model.StopTargetMet, result.StoppedReason)
	assert.Equal(t, 1, result.IterationsRun)
	assert.InDelta(t, 0.5, result.EmailRate, 1e-9)
}

func TestRun_DedupesAcrossIterations(t *testing.T) {
	same := biz("A Plumbing", "a.co.uk", "p1")
	searcher := &mockSearcher{results: [][]places.Business{
		{same},
		{same, biz("B Plumbing", "b.co.uk", "p2")},
	}}

	loop := New(searcher, &mockFinder{}, dedupe.NewEngine(), Config{
		TargetEmailsMin: 50,
		MaxIterations:   2,
	})

	leads, result, err := loop.Run(context.Background(), testTask())
	require.NoError(t, err)

	assert.Len(t, leads, 2)
	require.Len(t, result.Iterations, 2)
	assert.Equal(t, 1, result.Iterations[0].LeadsAfterDedupe)
	assert.Equal(t, 2, result.Iterations[1].LeadsFound)
	assert.Equal(t, 1, result.Iterations[1].LeadsAfterDedupe)
}

func TestRun_RegistersDiscoveredEmailKey(t *testing.T) {
	searcher := &mockSearcher{results: [][]places.Business{{
		biz("A Plumbing", "a.co.uk", "p1"),
	}}}
	finder := &mockFinder{emails: map[string]string{"a.co.uk": "dave@a.co.uk"}}
	engine := dedupe.NewEngine()

	loop := New(searcher, finder, engine, Config{TargetEmailsMin: 1, MaxIterations: 1})

	leads, _, err := loop.Run(context.Background(), testTask())
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "dave@a.co.uk", leads[0].Email)
	assert.Equal(t, model.EmailSourceWebsite, leads[0].EmailSource)

	var found bool
	for _, key := range engine.Pending() {
		if key.Type == dedupe.KeyEmail && key.Value == "dave@a.co.uk" {
			found = true
		}
	}
	assert.True(t, found, "discovered email must enter the dedupe index")
}

func TestRun_MaxRuntime(t *testing.T) {
	searcher := &slowSearcher{step: 5 * time.Minute}
	loop := New(searcher, &mockFinder{}, dedupe.NewEngine(), Config{
		TargetEmailsMin: 50,
		MaxIterations:   3,
		MaxRuntime:      4 * time.Minute,
	})
	loop.now = searcher.Now

	leads, result, err := loop.Run(context.Background(), testTask())
	require.NoError(t, err)

	assert.Equal(t, model.StopMaxRuntime, result.StoppedReason)
	assert.Equal(t, 1, result.IterationsRun)
	assert.Len(t, leads, 1)
	assert.Len(t, searcher.calls, 1)
}

// slowSearcher advances a fake clock on every search so runtime limits can
// be exercised without sleeping.
type slowSearcher struct {
	step  time.Duration
	now   time.Time
	calls []searchCall
}

func (s *slowSearcher) Now() time.Time {
	if s.now.IsZero() {
		s.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	}
	return s.now
}

func (s *slowSearcher) Search(_ context.Context, query string, maxResults int) ([]places.Business, error) {
	s.calls = append(s.calls, searchCall{query: query, maxResults: maxResults})
	s.now = s.Now().Add(s.step)
	return []places.Business{biz("A Plumbing", "", "p1")}, nil
}
