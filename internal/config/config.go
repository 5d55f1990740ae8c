package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr              string `yaml:"addr"`
	ReadTimeoutMs     int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs    int    `yaml:"write_timeout_ms"`
	ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms"`
}

type Cache struct {
	DefaultTTLMs      int `yaml:"default_ttl_ms"`
	MaxSize           int `yaml:"max_size"`
	CleanupIntervalMs int `yaml:"cleanup_interval_ms"`
}

// TTL holds the per-method-class cache lifetimes. Configurable rather than
// hardcoded so they can track each provider's actual rate-limit window.
type TTL struct {
	QuoteMs  int `yaml:"quote_ms"`
	SeriesMs int `yaml:"series_ms"`
}

type Provider struct {
	APIKeyEnv          string `yaml:"api_key_env"`
	BaseURL            string `yaml:"base_url"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	TimeoutMs          int    `yaml:"timeout_ms"`
}

type Providers struct {
	AlphaVantage Provider `yaml:"alphavantage"`
	Finnhub      Provider `yaml:"finnhub"`
	IndianStock  Provider `yaml:"indianstock"`
}

type Realtime struct {
	RefreshIntervalMs int `yaml:"refresh_interval_ms"`
	StaleAfterMs      int `yaml:"stale_after_ms"`
	MonitorIntervalMs int `yaml:"monitor_interval_ms"`
}

type Root struct {
	Server    Server    `yaml:"server"`
	Cache     Cache     `yaml:"cache"`
	TTL       TTL       `yaml:"ttl"`
	Providers Providers `yaml:"providers"`
	Realtime  Realtime  `yaml:"realtime"`
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeoutMs == 0 {
		c.Server.ReadTimeoutMs = 10000
	}
	if c.Server.WriteTimeoutMs == 0 {
		c.Server.WriteTimeoutMs = 30000
	}
	if c.Server.ShutdownTimeoutMs == 0 {
		c.Server.ShutdownTimeoutMs = 5000
	}

	if c.Cache.DefaultTTLMs == 0 {
		c.Cache.DefaultTTLMs = 30000
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = 500
	}
	if c.Cache.CleanupIntervalMs == 0 {
		c.Cache.CleanupIntervalMs = 60000
	}

	if c.TTL.QuoteMs == 0 {
		c.TTL.QuoteMs = 30000
	}
	if c.TTL.SeriesMs == 0 {
		c.TTL.SeriesMs = 60000
	}

	if c.Providers.AlphaVantage.APIKeyEnv == "" {
		c.Providers.AlphaVantage.APIKeyEnv = "ALPHAVANTAGE_API_KEY"
	}
	if c.Providers.AlphaVantage.RateLimitPerMinute == 0 {
		c.Providers.AlphaVantage.RateLimitPerMinute = 5
	}
	if c.Providers.Finnhub.APIKeyEnv == "" {
		c.Providers.Finnhub.APIKeyEnv = "FINHUB_API"
	}
	if c.Providers.Finnhub.RateLimitPerMinute == 0 {
		c.Providers.Finnhub.RateLimitPerMinute = 60
	}
	if c.Providers.IndianStock.APIKeyEnv == "" {
		c.Providers.IndianStock.APIKeyEnv = "INDIAN_STOCK_API"
	}

	if c.Realtime.RefreshIntervalMs == 0 {
		c.Realtime.RefreshIntervalMs = 30000
	}
	if c.Realtime.StaleAfterMs == 0 {
		c.Realtime.StaleAfterMs = 60000
	}
	if c.Realtime.MonitorIntervalMs == 0 {
		c.Realtime.MonitorIntervalMs = 10000
	}

	return c, nil
}

// APIKey resolves the provider's credential from its configured env var.
func (p Provider) APIKey() string {
	return os.Getenv(p.APIKeyEnv)
}

// Timeout returns the provider's per-call deadline as a duration.
func (p Provider) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}
