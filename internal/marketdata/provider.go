package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/stockboard/internal/observ"
)

// ProviderName is the tagged discriminator for the supported provider set.
type ProviderName string

const (
	ProviderAlphaVantage ProviderName = "alphavantage"
	ProviderFinnhub      ProviderName = "finnhub"
	ProviderIndianStock  ProviderName = "indianstock"
)

// ParseProviderName validates a raw discriminator. An unrecognized name is a
// caller bug surfaced as UnsupportedProviderError, never a degradation.
func ParseProviderName(raw string) (ProviderName, error) {
	switch ProviderName(raw) {
	case ProviderAlphaVantage, ProviderFinnhub, ProviderIndianStock:
		return ProviderName(raw), nil
	default:
		return "", &UnsupportedProviderError{Provider: raw}
	}
}

// Provider is the common capability set every adapter implements. Methods
// never return an error for upstream problems; rate limits, malformed
// payloads and transport failures all degrade to generator output flagged on
// the envelope. The only errors that escape are context cancellation and
// ErrNotSupported for capabilities a provider omits.
type Provider interface {
	Name() ProviderName
	GetQuote(ctx context.Context, symbol string) (QuoteResult, error)
	GetSeries(ctx context.Context, symbol, interval string) (SeriesResult, error)
}

// Optional capabilities. Callers probe with type assertions (or go through
// CachedProvider, which normalizes the absent case to ErrNotSupported).
type (
	MostActiveProvider interface {
		GetMostActive(ctx context.Context) (QuotesResult, error)
	}
	NewsProvider interface {
		GetNews(ctx context.Context, topics string, limit int) (NewsResult, error)
	}
	EarningsProvider interface {
		GetEarnings(ctx context.Context, from, to time.Time) (EarningsResult, error)
	}
	ProfileProvider interface {
		GetCompanyProfile(ctx context.Context, symbol string) (ProfileResult, error)
	}
	IndicatorProvider interface {
		GetIndicator(ctx context.Context, function, symbol, interval, timePeriod, seriesType string) (IndicatorResult, error)
	}
	AnalystProvider interface {
		GetRecommendations(ctx context.Context, symbol string) (RecommendsResult, error)
		GetPriceTarget(ctx context.Context, symbol string) (PriceTargetResult, error)
	}
	FundamentalsProvider interface {
		GetFundamentals(ctx context.Context, function, symbol string) (FundamentalsResult, error)
	}
)

// httpResponse carries everything the rate-limit classifier and the parsers
// need from one upstream call.
type httpResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// providerClient is the outbound HTTP plumbing shared by the live adapters:
// a client with a per-call deadline and a token-bucket limiter sized to the
// provider's documented request budget.
type providerClient struct {
	name    ProviderName
	client  *http.Client
	limiter *rate.Limiter
}

func newProviderClient(name ProviderName, timeout time.Duration, requestsPerMinute int) *providerClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &providerClient{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), 1),
	}
}

// getJSON performs a rate-limited GET and returns the raw response. Only
// context cancellation and transport failures produce an error; non-2xx
// statuses are returned to the caller for classification.
func (pc *providerClient) getJSON(ctx context.Context, url string) (*httpResponse, error) {
	if err := pc.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := pc.client.Do(req)
	observ.RecordDuration("provider_request", time.Since(start), map[string]string{
		"provider": string(pc.name),
	})
	if err != nil {
		observ.IncCounter("provider_transport_error_total", map[string]string{
			"provider": string(pc.name),
		})
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &httpResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// degradation logs and counts one mock substitution so operators can see
// when the dashboard is running on synthetic data.
func degradation(provider ProviderName, method, reason, message string) {
	observ.IncCounter("provider_degraded_total", map[string]string{
		"provider": string(provider),
		"method":   method,
		"reason":   reason,
	})
	observ.Log("provider_degraded", map[string]any{
		"provider": string(provider),
		"method":   method,
		"reason":   reason,
		"message":  message,
	})
}
