package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, 30000, c.Cache.DefaultTTLMs)
	assert.Equal(t, 500, c.Cache.MaxSize)
	assert.Equal(t, 60000, c.Cache.CleanupIntervalMs)
	assert.Equal(t, 30000, c.TTL.QuoteMs)
	assert.Equal(t, 60000, c.TTL.SeriesMs)
	assert.Equal(t, "ALPHAVANTAGE_API_KEY", c.Providers.AlphaVantage.APIKeyEnv)
	assert.Equal(t, "FINHUB_API", c.Providers.Finnhub.APIKeyEnv)
	assert.Equal(t, "INDIAN_STOCK_API", c.Providers.IndianStock.APIKeyEnv)
	assert.Equal(t, 5, c.Providers.AlphaVantage.RateLimitPerMinute)
	assert.Equal(t, 30000, c.Realtime.RefreshIntervalMs)
	assert.Equal(t, 60000, c.Realtime.StaleAfterMs)
}

func TestLoad_OverridesSurvive(t *testing.T) {
	c, err := Load(writeConfig(t, `
server:
  addr: ":9090"
cache:
  max_size: 100
ttl:
  quote_ms: 5000
providers:
  finnhub:
    api_key_env: MY_FINNHUB_KEY
    base_url: http://localhost:9999
    timeout_ms: 2500
realtime:
  refresh_interval_ms: 1000
`))
	require.NoError(t, err)

	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, 100, c.Cache.MaxSize)
	assert.Equal(t, 5000, c.TTL.QuoteMs)
	assert.Equal(t, "MY_FINNHUB_KEY", c.Providers.Finnhub.APIKeyEnv)
	assert.Equal(t, "http://localhost:9999", c.Providers.Finnhub.BaseURL)
	assert.Equal(t, 2500*time.Millisecond, c.Providers.Finnhub.Timeout())
	assert.Equal(t, 1000, c.Realtime.RefreshIntervalMs)
	// Untouched sections still default.
	assert.Equal(t, 60000, c.TTL.SeriesMs)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not: a map\n"))
	require.Error(t, err)
}

func TestProviderAPIKey_ResolvesEnv(t *testing.T) {
	t.Setenv("TEST_PROVIDER_KEY", "secret")
	p := Provider{APIKeyEnv: "TEST_PROVIDER_KEY"}
	assert.Equal(t, "secret", p.APIKey())
}
