package config

import (
	"time"

	"crypto-signal-agent/pkg/config"
)

// Pipeline holds the ingestion and decisioning settings.
type Pipeline struct {
	CronSchedule   string        `mapstructure:"cron_schedule"`
	FetchLimit     int           `mapstructure:"fetch_limit"`
	EnabledSources []string      `mapstructure:"enabled_sources"`
	CooldownWindow time.Duration `mapstructure:"cooldown_window"`
	NewsFeeds      []string      `mapstructure:"news_feeds"`
	KnownSymbols   []string      `mapstructure:"known_symbols"`
	SocialSearch   string        `mapstructure:"social_search_template"`
	SocialMaxTerms int           `mapstructure:"social_max_terms"`
}

// Etherscan holds the configuration for the Etherscan API.
type Etherscan struct {
	BaseURL             string `mapstructure:"base_url"`
	APIKey              string `mapstructure:"api_key"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Hyperliquid holds the configuration for the Hyperliquid info API.
type Hyperliquid struct {
	InfoURL             string `mapstructure:"info_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Scoring holds the deterministic scoring constants. They are configuration,
// not hidden magic numbers, so scores stay replayable.
type Scoring struct {
	CredibilityOnChain     float64       `mapstructure:"credibility_on_chain"`
	CredibilityNews        float64       `mapstructure:"credibility_news"`
	CredibilitySocial      float64       `mapstructure:"credibility_social"`
	RecencyHalfLifeMinutes float64       `mapstructure:"recency_half_life_minutes"`
	NoiseWindow            time.Duration `mapstructure:"noise_window"`
	NoiseDensityThreshold  int           `mapstructure:"noise_density_threshold"`
	NoiseDuplicatePenalty  float64       `mapstructure:"noise_duplicate_penalty"`
}

// Personalization holds the bounded multiplicative feedback constants.
type Personalization struct {
	ClickGain    float64 `mapstructure:"click_gain"`
	DismissDecay float64 `mapstructure:"dismiss_decay"`
	IgnoreDecay  float64 `mapstructure:"ignore_decay"`
	MinWeight    float64 `mapstructure:"min_weight"`
	MaxWeight    float64 `mapstructure:"max_weight"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the pipeline service.
type Config struct {
	App             config.App      `mapstructure:"app"`
	Logger          config.Logger   `mapstructure:"logger"`
	Database        config.Database `mapstructure:"database"`
	Redis           config.Redis    `mapstructure:"redis"`
	API             config.API      `mapstructure:"api"`
	Pipeline        Pipeline        `mapstructure:"pipeline"`
	Etherscan       Etherscan       `mapstructure:"etherscan"`
	Hyperliquid     Hyperliquid     `mapstructure:"hyperliquid"`
	Scoring         Scoring         `mapstructure:"scoring"`
	Personalization Personalization `mapstructure:"personalization"`
	Telegram        Telegram        `mapstructure:"telegram"`
}

// Load loads the pipeline configuration from the given path and applies
// documented defaults for absent options.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.CronSchedule == "" {
		c.Pipeline.CronSchedule = "*/5 * * * *"
	}
	if c.Pipeline.FetchLimit <= 0 {
		c.Pipeline.FetchLimit = 25
	}
	if len(c.Pipeline.EnabledSources) == 0 {
		c.Pipeline.EnabledSources = []string{"on_chain", "news", "social"}
	}
	if c.Pipeline.CooldownWindow <= 0 {
		c.Pipeline.CooldownWindow = time.Hour
	}
	if len(c.Pipeline.NewsFeeds) == 0 {
		c.Pipeline.NewsFeeds = []string{
			"https://www.coindesk.com/arc/outboundfeeds/rss/",
			"https://cointelegraph.com/rss",
			"https://decrypt.co/feed",
		}
	}
	if len(c.Pipeline.KnownSymbols) == 0 {
		c.Pipeline.KnownSymbols = []string{
			"BTC", "ETH", "SOL", "ARB", "OP", "AVAX", "DOGE", "XRP", "ADA", "LINK",
			"MATIC", "DOT", "UNI", "ATOM", "LTC", "PEPE", "USDT", "USDC",
		}
	}
	if c.Pipeline.SocialSearch == "" {
		c.Pipeline.SocialSearch = "https://www.reddit.com/search.rss?q=%s&sort=new&t=day"
	}
	if c.Pipeline.SocialMaxTerms <= 0 {
		c.Pipeline.SocialMaxTerms = 5
	}

	if c.Etherscan.BaseURL == "" {
		c.Etherscan.BaseURL = "https://api.etherscan.io/api"
	}
	if c.Etherscan.MaxRequestPerMinute <= 0 {
		c.Etherscan.MaxRequestPerMinute = 30
	}
	if c.Hyperliquid.InfoURL == "" {
		c.Hyperliquid.InfoURL = "https://api.hyperliquid.xyz/info"
	}
	if c.Hyperliquid.MaxRequestPerMinute <= 0 {
		c.Hyperliquid.MaxRequestPerMinute = 60
	}

	if c.Scoring.CredibilityOnChain <= 0 {
		c.Scoring.CredibilityOnChain = 0.9
	}
	if c.Scoring.CredibilityNews <= 0 {
		c.Scoring.CredibilityNews = 0.75
	}
	if c.Scoring.CredibilitySocial <= 0 {
		c.Scoring.CredibilitySocial = 0.5
	}
	if c.Scoring.RecencyHalfLifeMinutes <= 0 {
		c.Scoring.RecencyHalfLifeMinutes = 30
	}
	if c.Scoring.NoiseWindow <= 0 {
		c.Scoring.NoiseWindow = 30 * time.Minute
	}
	if c.Scoring.NoiseDensityThreshold <= 0 {
		c.Scoring.NoiseDensityThreshold = 8
	}
	if c.Scoring.NoiseDuplicatePenalty <= 0 {
		c.Scoring.NoiseDuplicatePenalty = 0.2
	}

	if c.Personalization.ClickGain <= 0 {
		c.Personalization.ClickGain = 1.15
	}
	if c.Personalization.DismissDecay <= 0 {
		c.Personalization.DismissDecay = 0.85
	}
	if c.Personalization.IgnoreDecay <= 0 {
		c.Personalization.IgnoreDecay = 0.95
	}
	if c.Personalization.MinWeight <= 0 {
		c.Personalization.MinWeight = 0.25
	}
	if c.Personalization.MaxWeight <= 0 {
		c.Personalization.MaxWeight = 4.0
	}
}
