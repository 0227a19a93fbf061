// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Places       PlacesConfig       `yaml:"places" mapstructure:"places"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Mailer       MailerConfig       `yaml:"mailer" mapstructure:"mailer"`
	DomainSearch DomainSearchConfig `yaml:"domain_search" mapstructure:"domain_search"`
	Crawl        CrawlConfig        `yaml:"crawl" mapstructure:"crawl"`
	Yield        YieldConfig        `yaml:"yield" mapstructure:"yield"`
	Eligibility  EligibilityConfig  `yaml:"eligibility" mapstructure:"eligibility"`
	Queue        QueueConfig        `yaml:"queue" mapstructure:"queue"`
	Sending      SendingConfig      `yaml:"sending" mapstructure:"sending"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PlacesConfig holds the lead-acquisition search actor settings.
type PlacesConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults  int    `yaml:"max_results" mapstructure:"max_results"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings for hook generation.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// MailerConfig holds the transactional email API settings.
type MailerConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	FromName  string `yaml:"from_name" mapstructure:"from_name"`
	FromEmail string `yaml:"from_email" mapstructure:"from_email"`
}

// DomainSearchConfig holds the professional email-lookup fallback settings.
// Disabled when Key is empty.
type DomainSearchConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CrawlConfig configures per-website email discovery crawling.
type CrawlConfig struct {
	MaxPages         int  `yaml:"max_pages" mapstructure:"max_pages"`
	DeepMaxPages     int  `yaml:"deep_max_pages" mapstructure:"deep_max_pages"`
	TimeoutSecs      int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinDelayMs       int  `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	CheckRobots      bool `yaml:"check_robots" mapstructure:"check_robots"`
	StructuredData   bool `yaml:"structured_data" mapstructure:"structured_data"`
	Deobfuscation    bool `yaml:"deobfuscation" mapstructure:"deobfuscation"`
	SocialFallback   bool `yaml:"social_fallback" mapstructure:"social_fallback"`
	MaxDiscoveredLinks int `yaml:"max_discovered_links" mapstructure:"max_discovered_links"`
}

// YieldConfig configures the yield-target discovery loop.
type YieldConfig struct {
	TargetEmailsMin    int     `yaml:"target_emails_min" mapstructure:"target_emails_min"`
	TargetEmailRateMin float64 `yaml:"target_email_rate_min" mapstructure:"target_email_rate_min"`
	MaxIterations      int     `yaml:"max_iterations" mapstructure:"max_iterations"`
	MaxRuntimeSecs     int     `yaml:"max_runtime_secs" mapstructure:"max_runtime_secs"`
	DeepCrawlEnabled   bool    `yaml:"deep_crawl_enabled" mapstructure:"deep_crawl_enabled"`
}

// EligibilityConfig configures the eligibility classifier policy.
type EligibilityConfig struct {
	AllowFreeEmail     bool `yaml:"allow_free_email" mapstructure:"allow_free_email"`
	SoleTraderMode     bool `yaml:"sole_trader_mode" mapstructure:"sole_trader_mode"`
	RequireDomainMatch bool `yaml:"require_domain_match" mapstructure:"require_domain_match"`
	MaxReviewCount     int  `yaml:"max_review_count" mapstructure:"max_review_count"`
}

// QueueConfig configures task generation and session scheduling.
type QueueConfig struct {
	TablesPath       string `yaml:"tables_path" mapstructure:"tables_path"`
	EnforceSameTrade bool   `yaml:"enforce_same_trade" mapstructure:"enforce_same_trade"`
	ManualSessions   bool   `yaml:"manual_sessions" mapstructure:"manual_sessions"`
	AMStartHour      int    `yaml:"am_start_hour" mapstructure:"am_start_hour"`
	AMEndHour        int    `yaml:"am_end_hour" mapstructure:"am_end_hour"`
	PMStartHour      int    `yaml:"pm_start_hour" mapstructure:"pm_start_hour"`
	PMEndHour        int    `yaml:"pm_end_hour" mapstructure:"pm_end_hour"`
}

// SendingConfig configures the sending stage.
type SendingConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	PerRunLimit int    `yaml:"per_run_limit" mapstructure:"per_run_limit"`
	DailyLimit  int    `yaml:"daily_limit" mapstructure:"daily_limit"`
	Subject     string `yaml:"subject" mapstructure:"subject"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "outreach.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	// Credential and path keys need explicit defaults so AutomaticEnv can
	// surface their OUTREACH_* variables during Unmarshal.
	v.SetDefault("places.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("mailer.key", "")
	v.SetDefault("mailer.from_name", "")
	v.SetDefault("mailer.from_email", "")
	v.SetDefault("domain_search.key", "")
	v.SetDefault("queue.tables_path", "")
	v.SetDefault("places.base_url", "https://api.scrapingactor.com/v2")
	v.SetDefault("places.max_results", 30)
	v.SetDefault("places.timeout_secs", 60)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 256)
	v.SetDefault("mailer.base_url", "https://api.resend.com")
	v.SetDefault("domain_search.base_url", "https://api.hunter.io/v2")
	v.SetDefault("crawl.max_pages", 5)
	v.SetDefault("crawl.deep_max_pages", 12)
	v.SetDefault("crawl.timeout_secs", 15)
	v.SetDefault("crawl.min_delay_ms", 1500)
	v.SetDefault("crawl.check_robots", true)
	v.SetDefault("crawl.structured_data", true)
	v.SetDefault("crawl.deobfuscation", true)
	v.SetDefault("crawl.social_fallback", false)
	v.SetDefault("crawl.max_discovered_links", 5)
	v.SetDefault("yield.target_emails_min", 5)
	v.SetDefault("yield.target_email_rate_min", 0.35)
	v.SetDefault("yield.max_iterations", 3)
	v.SetDefault("yield.max_runtime_secs", 600)
	v.SetDefault("yield.deep_crawl_enabled", true)
	v.SetDefault("eligibility.allow_free_email", false)
	v.SetDefault("eligibility.sole_trader_mode", true)
	v.SetDefault("eligibility.require_domain_match", false)
	v.SetDefault("eligibility.max_review_count", 25)
	v.SetDefault("queue.enforce_same_trade", true)
	v.SetDefault("queue.manual_sessions", false)
	v.SetDefault("queue.am_start_hour", 8)
	v.SetDefault("queue.am_end_hour", 11)
	v.SetDefault("queue.pm_start_hour", 17)
	v.SetDefault("queue.pm_end_hour", 20)
	v.SetDefault("sending.enabled", false)
	v.SetDefault("sending.per_run_limit", 20)
	v.SetDefault("sending.daily_limit", 50)
	v.SetDefault("sending.subject", "Quick question about {{business}}")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
