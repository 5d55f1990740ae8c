package marketdata

import (
	"context"
	"time"

	"github.com/Rajchodisetti/stockboard/internal/cache"
)

// FactoryConfig carries per-provider credentials and tuning for New.
type FactoryConfig struct {
	AlphaVantage AlphaVantageConfig
	Finnhub      FinnhubConfig
	IndianStock  IndianStockConfig
}

// New constructs the adapter for the named provider. Unknown names and
// missing credentials fail construction; they are caller bugs, not
// degradations.
func New(name ProviderName, config FactoryConfig, gen *Generator) (Provider, error) {
	switch name {
	case ProviderAlphaVantage:
		return NewAlphaVantage(config.AlphaVantage, gen)
	case ProviderFinnhub:
		return NewFinnhub(config.Finnhub, gen)
	case ProviderIndianStock:
		return NewIndianStock(config.IndianStock, gen)
	default:
		return nil, &UnsupportedProviderError{Provider: string(name)}
	}
}

// TTLPolicy maps method classes to cache lifetimes. Quotes move fast and get
// a short window; series, indicators and the slower reference shapes share
// the longer one.
type TTLPolicy struct {
	Quote  time.Duration
	Series time.Duration
}

// DefaultTTLPolicy mirrors the dashboard's refresh cadence.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{Quote: 30 * time.Second, Series: 60 * time.Second}
}

// CachedProvider decorates an adapter with read-through caching. Every
// capability method checks the store first and delegates on miss; the full
// envelope is cached, so a mock result served during an outage keeps its
// IsMockData flag on cache hits too. Capabilities the wrapped adapter omits
// surface as ErrNotSupported.
type CachedProvider struct {
	provider Provider
	store    *cache.Store
	ttl      TTLPolicy
}

// NewCached wraps a provider with the store. A zero-valued policy field
// falls back to the default for that class.
func NewCached(provider Provider, store *cache.Store, ttl TTLPolicy) *CachedProvider {
	defaults := DefaultTTLPolicy()
	if ttl.Quote <= 0 {
		ttl.Quote = defaults.Quote
	}
	if ttl.Series <= 0 {
		ttl.Series = defaults.Series
	}
	return &CachedProvider{provider: provider, store: store, ttl: ttl}
}

func (cp *CachedProvider) Name() ProviderName { return cp.provider.Name() }

// Unwrap exposes the underlying adapter for capability probing.
func (cp *CachedProvider) Unwrap() Provider { return cp.provider }

// cached runs one read-through cycle: probe the store, on miss call fetch
// and store the envelope under the deterministic key.
func cached[T any](cp *CachedProvider, method string, params map[string]any, ttl time.Duration, fetch func() (Result[T], error)) (Result[T], error) {
	provider := string(cp.provider.Name())
	if cp.store != nil {
		if value, hit := cp.store.Get(provider, method, params); hit {
			if result, matches := value.(Result[T]); matches {
				return result, nil
			}
		}
	}

	result, err := fetch()
	if err != nil {
		return Result[T]{}, err
	}
	if cp.store != nil {
		cp.store.Set(provider, method, params, result, ttl)
	}
	return result, nil
}

func (cp *CachedProvider) GetQuote(ctx context.Context, symbol string) (QuoteResult, error) {
	return cached(cp, "getQuote", map[string]any{"symbol": symbol}, cp.ttl.Quote, func() (QuoteResult, error) {
		return cp.provider.GetQuote(ctx, symbol)
	})
}

func (cp *CachedProvider) GetSeries(ctx context.Context, symbol, interval string) (SeriesResult, error) {
	return cached(cp, "getSeries", map[string]any{"symbol": symbol, "interval": interval}, cp.ttl.Series, func() (SeriesResult, error) {
		return cp.provider.GetSeries(ctx, symbol, interval)
	})
}

func (cp *CachedProvider) GetMostActive(ctx context.Context) (QuotesResult, error) {
	impl, supported := cp.provider.(MostActiveProvider)
	if !supported {
		return QuotesResult{}, notSupported(string(cp.provider.Name()), "getMostActive")
	}
	return cached(cp, "getMostActive", nil, cp.ttl.Quote, func() (QuotesResult, error) {
		return impl.GetMostActive(ctx)
	})
}

func (cp *CachedProvider) GetNews(ctx context.Context, topics string, limit int) (NewsResult, error) {
	impl, supported := cp.provider.(NewsProvider)
	if !supported {
		return NewsResult{}, notSupported(string(cp.provider.Name()), "getNews")
	}
	return cached(cp, "getNews", map[string]any{"topics": topics, "limit": limit}, cp.ttl.Series, func() (NewsResult, error) {
		return impl.GetNews(ctx, topics, limit)
	})
}

func (cp *CachedProvider) GetEarnings(ctx context.Context, from, to time.Time) (EarningsResult, error) {
	impl, supported := cp.provider.(EarningsProvider)
	if !supported {
		return EarningsResult{}, notSupported(string(cp.provider.Name()), "getEarnings")
	}
	params := map[string]any{
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
	}
	return cached(cp, "getEarnings", params, cp.ttl.Series, func() (EarningsResult, error) {
		return impl.GetEarnings(ctx, from, to)
	})
}

func (cp *CachedProvider) GetCompanyProfile(ctx context.Context, symbol string) (ProfileResult, error) {
	impl, supported := cp.provider.(ProfileProvider)
	if !supported {
		return ProfileResult{}, notSupported(string(cp.provider.Name()), "getCompanyProfile")
	}
	return cached(cp, "getCompanyProfile", map[string]any{"symbol": symbol}, cp.ttl.Series, func() (ProfileResult, error) {
		return impl.GetCompanyProfile(ctx, symbol)
	})
}

func (cp *CachedProvider) GetIndicator(ctx context.Context, function, symbol, interval, timePeriod, seriesType string) (IndicatorResult, error) {
	impl, supported := cp.provider.(IndicatorProvider)
	if !supported {
		return IndicatorResult{}, notSupported(string(cp.provider.Name()), "getIndicator")
	}
	params := map[string]any{
		"function":   function,
		"symbol":     symbol,
		"interval":   interval,
		"timePeriod": timePeriod,
		"seriesType": seriesType,
	}
	return cached(cp, "getIndicator", params, cp.ttl.Series, func() (IndicatorResult, error) {
		return impl.GetIndicator(ctx, function, symbol, interval, timePeriod, seriesType)
	})
}

func (cp *CachedProvider) GetFundamentals(ctx context.Context, function, symbol string) (FundamentalsResult, error) {
	impl, supported := cp.provider.(FundamentalsProvider)
	if !supported {
		return FundamentalsResult{}, notSupported(string(cp.provider.Name()), "getFundamentals")
	}
	params := map[string]any{"function": function, "symbol": symbol}
	return cached(cp, "getFundamentals", params, cp.ttl.Series, func() (FundamentalsResult, error) {
		return impl.GetFundamentals(ctx, function, symbol)
	})
}

func (cp *CachedProvider) GetRecommendations(ctx context.Context, symbol string) (RecommendsResult, error) {
	impl, supported := cp.provider.(AnalystProvider)
	if !supported {
		return RecommendsResult{}, notSupported(string(cp.provider.Name()), "getRecommendations")
	}
	return cached(cp, "getRecommendations", map[string]any{"symbol": symbol}, cp.ttl.Series, func() (RecommendsResult, error) {
		return impl.GetRecommendations(ctx, symbol)
	})
}

func (cp *CachedProvider) GetPriceTarget(ctx context.Context, symbol string) (PriceTargetResult, error) {
	impl, supported := cp.provider.(AnalystProvider)
	if !supported {
		return PriceTargetResult{}, notSupported(string(cp.provider.Name()), "getPriceTarget")
	}
	return cached(cp, "getPriceTarget", map[string]any{"symbol": symbol}, cp.ttl.Series, func() (PriceTargetResult, error) {
		return impl.GetPriceTarget(ctx, symbol)
	})
}
