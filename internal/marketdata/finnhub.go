package marketdata

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubConfig holds construction parameters for the Finnhub adapter.
type FinnhubConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerMinute int
	Timeout           time.Duration
}

// Finnhub is the lighter adapter: quote and daily candles for the core
// capability set, plus news, earnings calendar, company profiles and
// analyst data.
type Finnhub struct {
	config FinnhubConfig
	client *providerClient
	gen    *Generator
	now    func() time.Time
}

// NewFinnhub builds the adapter; a missing API key fails construction.
func NewFinnhub(config FinnhubConfig, gen *Generator) (*Finnhub, error) {
	if config.APIKey == "" {
		return nil, NewConfigError(string(ProviderFinnhub), "API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = finnhubBaseURL
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if gen == nil {
		gen = NewGenerator(0)
	}
	return &Finnhub{
		config: config,
		client: newProviderClient(ProviderFinnhub, config.Timeout, config.RequestsPerMinute),
		gen:    gen,
		now:    time.Now,
	}, nil
}

func (fh *Finnhub) Name() ProviderName { return ProviderFinnhub }

func (fh *Finnhub) endpoint(path string, params url.Values) string {
	params.Set("token", fh.config.APIKey)
	return fh.config.BaseURL + path + "?" + params.Encode()
}

// GetQuote fetches /quote. Finnhub returns flat numeric fields: c (current),
// d (change), dp (change percent), h/l (day high/low). A zero current price
// means the symbol resolved to nothing and counts as degraded.
func (fh *Finnhub) GetQuote(ctx context.Context, symbol string) (QuoteResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	resp, err := fh.client.getJSON(ctx, fh.endpoint("/quote", url.Values{"symbol": {symbol}}))
	if err != nil {
		if ctx.Err() != nil {
			return QuoteResult{}, ctx.Err()
		}
		degradation(ProviderFinnhub, "getQuote", "transport", err.Error())
		return degraded(fh.gen.Quote(symbol), ""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderFinnhub, "getQuote", "rate_limit", info.Message)
		return degraded(fh.gen.Quote(symbol), info.Message), nil
	}

	var parsed struct {
		Current       float64 `json:"c"`
		Change        float64 `json:"d"`
		ChangePercent float64 `json:"dp"`
		High          float64 `json:"h"`
		Low           float64 `json:"l"`
		Error         string  `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		degradation(ProviderFinnhub, "getQuote", "bad_json", err.Error())
		return degraded(fh.gen.Quote(symbol), ""), nil
	}
	if parsed.Error != "" || parsed.Current == 0 {
		degradation(ProviderFinnhub, "getQuote", "missing_fields", parsed.Error)
		return degraded(fh.gen.Quote(symbol), ""), nil
	}

	return ok(Quote{
		Symbol:        symbol,
		Price:         parsed.Current,
		Change:        parsed.Change,
		ChangePercent: parsed.ChangePercent,
		High52Week:    parsed.High,
		Low52Week:     parsed.Low,
	}), nil
}

// GetSeries fetches daily candles from /stock/candle over the last 30 days.
// Finnhub returns column-oriented arrays with a status field; anything but
// s == "ok" is degraded.
func (fh *Finnhub) GetSeries(ctx context.Context, symbol, interval string) (SeriesResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	resolution := "D"

	to := fh.now().Unix()
	from := to - 30*24*60*60

	mock := func(message string) SeriesResult {
		return degraded(fh.gen.Series(symbol, 30, 24*time.Hour), message)
	}

	resp, err := fh.client.getJSON(ctx, fh.endpoint("/stock/candle", url.Values{
		"symbol":     {symbol},
		"resolution": {resolution},
		"from":       {strconv.FormatInt(from, 10)},
		"to":         {strconv.FormatInt(to, 10)},
	}))
	if err != nil {
		if ctx.Err() != nil {
			return SeriesResult{}, ctx.Err()
		}
		degradation(ProviderFinnhub, "getCandles", "transport", err.Error())
		return mock(""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderFinnhub, "getCandles", "rate_limit", info.Message)
		return mock(info.Message), nil
	}

	var parsed struct {
		Status  string    `json:"s"`
		Times   []int64   `json:"t"`
		Opens   []float64 `json:"o"`
		Highs   []float64 `json:"h"`
		Lows    []float64 `json:"l"`
		Closes  []float64 `json:"c"`
		Volumes []int64   `json:"v"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		degradation(ProviderFinnhub, "getCandles", "bad_json", err.Error())
		return mock(""), nil
	}
	if parsed.Status != "ok" || len(parsed.Times) == 0 {
		degradation(ProviderFinnhub, "getCandles", "missing_fields", "candle status "+parsed.Status)
		return mock(""), nil
	}

	points := make([]SeriesPoint, 0, len(parsed.Times))
	for i, ts := range parsed.Times {
		if i >= len(parsed.Opens) || i >= len(parsed.Highs) || i >= len(parsed.Lows) ||
			i >= len(parsed.Closes) || i >= len(parsed.Volumes) {
			break // ragged columns, keep the consistent prefix
		}
		points = append(points, SeriesPoint{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      parsed.Opens[i],
			High:      parsed.Highs[i],
			Low:       parsed.Lows[i],
			Close:     parsed.Closes[i],
			Volume:    parsed.Volumes[i],
		})
	}
	return ok(points), nil
}

// GetNews fetches general market news from /news.
func (fh *Finnhub) GetNews(ctx context.Context, topics string, limit int) (NewsResult, error) {
	if limit <= 0 {
		limit = 10
	}
	category := topics
	if category == "" {
		category = "general"
	}

	resp, err := fh.client.getJSON(ctx, fh.endpoint("/news", url.Values{"category": {category}}))
	if err != nil {
		if ctx.Err() != nil {
			return NewsResult{}, ctx.Err()
		}
		degradation(ProviderFinnhub, "getNews", "transport", err.Error())
		return degraded(fh.gen.News(limit), ""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderFinnhub, "getNews", "rate_limit", info.Message)
		return degraded(fh.gen.News(limit), info.Message), nil
	}

	// Finnhub's news endpoint returns a bare array.
	var parsed []struct {
		Headline string `json:"headline"`
		Summary  string `json:"summary"`
		URL      string `json:"url"`
		Source   string `json:"source"`
		Datetime int64  `json:"datetime"`
		Image    string `json:"image"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil || len(parsed) == 0 {
		degradation(ProviderFinnhub, "getNews", "missing_fields", "no news in response")
		return degraded(fh.gen.News(limit), ""), nil
	}

	if len(parsed) > limit {
		parsed = parsed[:limit]
	}
	items := make([]NewsItem, 0, len(parsed))
	for _, entry := range parsed {
		items = append(items, NewsItem{
			Title:     entry.Headline,
			Summary:   entry.Summary,
			URL:       entry.URL,
			Source:    entry.Source,
			Published: time.Unix(entry.Datetime, 0).UTC(),
			Image:     entry.Image,
		})
	}
	return ok(items), nil
}

// GetEarnings fetches /calendar/earnings for [from, to], ascending by date.
func (fh *Finnhub) GetEarnings(ctx context.Context, from, to time.Time) (EarningsResult, error) {
	mock := func(message string) EarningsResult {
		return degraded(fh.gen.Earnings(from, to), message)
	}

	resp, err := fh.client.getJSON(ctx, fh.endpoint("/calendar/earnings", url.Values{
		"from": {from.Format("2006-01-02")},
		"to":   {to.Format("2006-01-02")},
	}))
	if err != nil {
		if ctx.Err() != nil {
			return EarningsResult{}, ctx.Err()
		}
		degradation(ProviderFinnhub, "getEarnings", "transport", err.Error())
		return mock(""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderFinnhub, "getEarnings", "rate_limit", info.Message)
		return mock(info.Message), nil
	}

	var parsed struct {
		EarningsCalendar []struct {
			Date            string  `json:"date"`
			Symbol          string  `json:"symbol"`
			EPSActual       float64 `json:"epsActual"`
			EPSEstimate     float64 `json:"epsEstimate"`
			Hour            string  `json:"hour"`
			Quarter         int     `json:"quarter"`
			RevenueActual   int64   `json:"revenueActual"`
			RevenueEstimate int64   `json:"revenueEstimate"`
			Year            int     `json:"year"`
		} `json:"earningsCalendar"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		degradation(ProviderFinnhub, "getEarnings", "bad_json", err.Error())
		return mock(""), nil
	}
	if parsed.Error != "" {
		degradation(ProviderFinnhub, "getEarnings", "missing_fields", parsed.Error)
		return mock(parsed.Error), nil
	}

	entries := make([]EarningsEntry, 0, len(parsed.EarningsCalendar))
	for _, e := range parsed.EarningsCalendar {
		entries = append(entries, EarningsEntry(e))
	}
	return ok(EarningsCalendar{Entries: entries, TotalResults: len(entries)}), nil
}

// GetCompanyProfile fetches /stock/profile2. An empty ticker in the body
// means the symbol resolved to nothing.
func (fh *Finnhub) GetCompanyProfile(ctx context.Context, symbol string) (ProfileResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	resp, err := fh.client.getJSON(ctx, fh.endpoint("/stock/profile2", url.Values{"symbol": {symbol}}))
	if err != nil {
		if ctx.Err() != nil {
			return ProfileResult{}, ctx.Err()
		}
		degradation(ProviderFinnhub, "getCompanyProfile", "transport", err.Error())
		return degraded(fh.gen.Profile(symbol), ""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderFinnhub, "getCompanyProfile", "rate_limit", info.Message)
		return degraded(fh.gen.Profile(symbol), info.Message), nil
	}

	var parsed struct {
		Country           string  `json:"country"`
		Currency          string  `json:"currency"`
		Exchange          string  `json:"exchange"`
		IPO               string  `json:"ipo"`
		MarketCap         float64 `json:"marketCapitalization"`
		Name              string  `json:"name"`
		Phone             string  `json:"phone"`
		SharesOutstanding float64 `json:"shareOutstanding"`
		Ticker            string  `json:"ticker"`
		WebURL            string  `json:"weburl"`
		Logo              string  `json:"logo"`
		Industry          string  `json:"finnhubIndustry"`
		Error             string  `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		degradation(ProviderFinnhub, "getCompanyProfile", "bad_json", err.Error())
		return degraded(fh.gen.Profile(symbol), ""), nil
	}
	if parsed.Error != "" || parsed.Ticker == "" {
		degradation(ProviderFinnhub, "getCompanyProfile", "missing_fields", parsed.Error)
		return degraded(fh.gen.Profile(symbol), ""), nil
	}

	return ok(CompanyProfile{
		Country:           parsed.Country,
		Currency:          parsed.Currency,
		Exchange:          parsed.Exchange,
		IPO:               parsed.IPO,
		MarketCap:         parsed.MarketCap,
		Name:              parsed.Name,
		Phone:             parsed.Phone,
		SharesOutstanding: parsed.SharesOutstanding,
		Ticker:            parsed.Ticker,
		WebURL:            parsed.WebURL,
		Logo:              parsed.Logo,
		Industry:          parsed.Industry,
	}), nil
}

// GetRecommendations fetches /stock/recommendation, newest first.
func (fh *Finnhub) GetRecommendations(ctx context.Context, symbol string) (RecommendsResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	resp, err := fh.client.getJSON(ctx, fh.endpoint("/stock/recommendation", url.Values{"symbol": {symbol}}))
	if err != nil {
		if ctx.Err() != nil {
			return RecommendsResult{}, ctx.Err()
		}
		degradation(ProviderFinnhub, "getRecommendations", "transport", err.Error())
		return degraded(fh.gen.Recommendations(symbol), ""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderFinnhub, "getRecommendations", "rate_limit", info.Message)
		return degraded(fh.gen.Recommendations(symbol), info.Message), nil
	}

	var parsed []struct {
		Symbol     string `json:"symbol"`
		Period     string `json:"period"`
		StrongBuy  int    `json:"strongBuy"`
		Buy        int    `json:"buy"`
		Hold       int    `json:"hold"`
		Sell       int    `json:"sell"`
		StrongSell int    `json:"strongSell"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil || len(parsed) == 0 {
		degradation(ProviderFinnhub, "getRecommendations", "missing_fields", "no recommendations in response")
		return degraded(fh.gen.Recommendations(symbol), ""), nil
	}

	trends := make([]RecommendationTrend, 0, len(parsed))
	for _, entry := range parsed {
		trends = append(trends, RecommendationTrend(entry))
	}
	return ok(trends), nil
}

// GetPriceTarget fetches /stock/price-target.
func (fh *Finnhub) GetPriceTarget(ctx context.Context, symbol string) (PriceTargetResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	resp, err := fh.client.getJSON(ctx, fh.endpoint("/stock/price-target", url.Values{"symbol": {symbol}}))
	if err != nil {
		if ctx.Err() != nil {
			return PriceTargetResult{}, ctx.Err()
		}
		degradation(ProviderFinnhub, "getPriceTarget", "transport", err.Error())
		return degraded(fh.gen.PriceTarget(symbol), ""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderFinnhub, "getPriceTarget", "rate_limit", info.Message)
		return degraded(fh.gen.PriceTarget(symbol), info.Message), nil
	}

	var parsed struct {
		Symbol       string  `json:"symbol"`
		TargetHigh   float64 `json:"targetHigh"`
		TargetLow    float64 `json:"targetLow"`
		TargetMean   float64 `json:"targetMean"`
		TargetMedian float64 `json:"targetMedian"`
		Error        string  `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		degradation(ProviderFinnhub, "getPriceTarget", "bad_json", err.Error())
		return degraded(fh.gen.PriceTarget(symbol), ""), nil
	}
	if parsed.Error != "" || parsed.Symbol == "" {
		degradation(ProviderFinnhub, "getPriceTarget", "missing_fields", parsed.Error)
		return degraded(fh.gen.PriceTarget(symbol), ""), nil
	}

	return ok(PriceTarget{
		Symbol:       parsed.Symbol,
		TargetHigh:   parsed.TargetHigh,
		TargetLow:    parsed.TargetLow,
		TargetMean:   parsed.TargetMean,
		TargetMedian: parsed.TargetMedian,
	}), nil
}
