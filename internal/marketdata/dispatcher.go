package marketdata

import (
	"context"
	"fmt"
	"time"
)

// Dispatcher routes string-keyed (provider, method, params) calls to the
// typed adapter methods. The subscription service works in these string
// triples because subscription keys are built from them; everything else
// should call the typed methods directly.
type Dispatcher struct {
	providers map[ProviderName]*CachedProvider
}

func NewDispatcher(providers ...*CachedProvider) *Dispatcher {
	byName := make(map[ProviderName]*CachedProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Dispatcher{providers: byName}
}

// Provider returns the cached adapter registered under name.
func (d *Dispatcher) Provider(name ProviderName) (*CachedProvider, error) {
	p, registered := d.providers[name]
	if !registered {
		return nil, &UnsupportedProviderError{Provider: string(name)}
	}
	return p, nil
}

// Fetch executes one named operation and returns its envelope. Results pass
// through the provider's cache, so repeated fetches within a TTL window are
// served without network I/O.
func (d *Dispatcher) Fetch(ctx context.Context, provider, method string, params map[string]any) (any, error) {
	name, err := ParseProviderName(provider)
	if err != nil {
		return nil, err
	}
	p, err := d.Provider(name)
	if err != nil {
		return nil, err
	}

	switch method {
	case "getQuote":
		return p.GetQuote(ctx, paramString(params, "symbol"))
	case "getSeries":
		return p.GetSeries(ctx, paramString(params, "symbol"), paramString(params, "interval"))
	case "getMostActive":
		return p.GetMostActive(ctx)
	case "getNews":
		return p.GetNews(ctx, paramString(params, "topics"), paramInt(params, "limit"))
	case "getEarnings":
		from, to := earningsRange(params)
		return p.GetEarnings(ctx, from, to)
	case "getCompanyProfile":
		return p.GetCompanyProfile(ctx, paramString(params, "symbol"))
	case "getIndicator":
		return p.GetIndicator(ctx,
			paramString(params, "function"),
			paramString(params, "symbol"),
			paramString(params, "interval"),
			paramString(params, "timePeriod"),
			paramString(params, "seriesType"))
	case "getFundamentals":
		return p.GetFundamentals(ctx, paramString(params, "function"), paramString(params, "symbol"))
	case "getRecommendations":
		return p.GetRecommendations(ctx, paramString(params, "symbol"))
	case "getPriceTarget":
		return p.GetPriceTarget(ctx, paramString(params, "symbol"))
	default:
		return nil, fmt.Errorf("unknown method %q", method)
	}
}

func paramString(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	s, _ := params[key].(string)
	return s
}

func paramInt(params map[string]any, key string) int {
	if params == nil {
		return 0
	}
	switch v := params[key].(type) {
	case int:
		return v
	case float64: // JSON numbers decode as float64
		return int(v)
	default:
		return 0
	}
}

// earningsRange parses from/to date params, defaulting to the next 14 days.
func earningsRange(params map[string]any) (time.Time, time.Time) {
	now := time.Now()
	from, to := now, now.AddDate(0, 0, 14)
	if raw := paramString(params, "from"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			from = parsed
		}
	}
	if raw := paramString(params, "to"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			to = parsed
		}
	}
	return from, to
}
