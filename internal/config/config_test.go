package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "outreach.db", cfg.Store.DatabaseURL)

	assert.Equal(t, 5, cfg.Yield.TargetEmailsMin)
	assert.InDelta(t, 0.35, cfg.Yield.TargetEmailRateMin, 1e-9)
	assert.Equal(t, 3, cfg.Yield.MaxIterations)
	assert.True(t, cfg.Yield.DeepCrawlEnabled)

	assert.Equal(t, 5, cfg.Crawl.MaxPages)
	assert.Equal(t, 12, cfg.Crawl.DeepMaxPages)
	assert.True(t, cfg.Crawl.CheckRobots)
	assert.False(t, cfg.Crawl.SocialFallback)

	assert.False(t, cfg.Eligibility.AllowFreeEmail)
	assert.True(t, cfg.Eligibility.SoleTraderMode)
	assert.Equal(t, 25, cfg.Eligibility.MaxReviewCount)

	assert.True(t, cfg.Queue.EnforceSameTrade)
	assert.False(t, cfg.Queue.ManualSessions)
	assert.Equal(t, 8, cfg.Queue.AMStartHour)
	assert.Equal(t, 20, cfg.Queue.PMEndHour)

	// Sending is opt-in.
	assert.False(t, cfg.Sending.Enabled)
	assert.Equal(t, 20, cfg.Sending.PerRunLimit)
	assert.Equal(t, 50, cfg.Sending.DailyLimit)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OUTREACH_PLACES_KEY", "test-places-key")
	t.Setenv("OUTREACH_MAILER_FROM_EMAIL", "sam@tradereach.co.uk")
	t.Setenv("OUTREACH_SENDING_ENABLED", "true")
	t.Setenv("OUTREACH_YIELD_TARGET_EMAILS_MIN", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-places-key", cfg.Places.Key)
	assert.Equal(t, "sam@tradereach.co.uk", cfg.Mailer.FromEmail)
	assert.True(t, cfg.Sending.Enabled)
	assert.Equal(t, 8, cfg.Yield.TargetEmailsMin)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "shouting", Format: "json"}))
}
