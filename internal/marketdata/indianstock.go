package marketdata

import (
	"context"
	"time"
)

// IndianStockConfig holds construction parameters for the Indian market
// adapter.
type IndianStockConfig struct {
	APIKey string
}

// IndianStock is a placeholder adapter for the Indian market feed. The
// upstream integration is not wired yet, so every call returns generator
// output flagged as mock. Construction still demands an API key so the
// credential surface stays uniform across providers.
type IndianStock struct {
	gen *Generator
}

func NewIndianStock(config IndianStockConfig, gen *Generator) (*IndianStock, error) {
	if config.APIKey == "" {
		return nil, NewConfigError(string(ProviderIndianStock), "API key is required")
	}
	if gen == nil {
		gen = NewGenerator(0)
	}
	return &IndianStock{gen: gen}, nil
}

func (is *IndianStock) Name() ProviderName { return ProviderIndianStock }

func (is *IndianStock) GetQuote(ctx context.Context, symbol string) (QuoteResult, error) {
	if err := ctx.Err(); err != nil {
		return QuoteResult{}, err
	}
	return degraded(is.gen.Quote(symbol), ""), nil
}

func (is *IndianStock) GetSeries(ctx context.Context, symbol, interval string) (SeriesResult, error) {
	if err := ctx.Err(); err != nil {
		return SeriesResult{}, err
	}
	step := intervalStep(interval)
	return degraded(is.gen.Series(symbol, 50, step), ""), nil
}

func (is *IndianStock) GetMostActive(ctx context.Context) (QuotesResult, error) {
	if err := ctx.Err(); err != nil {
		return QuotesResult{}, err
	}
	return degraded(is.gen.MostActive(), ""), nil
}

func (is *IndianStock) GetNews(ctx context.Context, topics string, limit int) (NewsResult, error) {
	if err := ctx.Err(); err != nil {
		return NewsResult{}, err
	}
	return degraded(is.gen.News(limit), ""), nil
}

func (is *IndianStock) GetEarnings(ctx context.Context, from, to time.Time) (EarningsResult, error) {
	if err := ctx.Err(); err != nil {
		return EarningsResult{}, err
	}
	return degraded(is.gen.Earnings(from, to), ""), nil
}
