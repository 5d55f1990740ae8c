package marketdata

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageConfig holds construction parameters for the AlphaVantage
// adapter. BaseURL is overridable for tests.
type AlphaVantageConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerMinute int
	Timeout           time.Duration
}

// AlphaVantage is the full-featured adapter: quotes, intraday/daily series,
// news, most-active and technical indicators.
type AlphaVantage struct {
	config AlphaVantageConfig
	client *providerClient
	gen    *Generator
}

// NewAlphaVantage builds the adapter. A missing API key is a configuration
// error surfaced here, before any network call.
func NewAlphaVantage(config AlphaVantageConfig, gen *Generator) (*AlphaVantage, error) {
	if config.APIKey == "" {
		return nil, NewConfigError(string(ProviderAlphaVantage), "API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = alphaVantageBaseURL
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 5 // free tier
	}
	if gen == nil {
		gen = NewGenerator(0)
	}
	return &AlphaVantage{
		config: config,
		client: newProviderClient(ProviderAlphaVantage, config.Timeout, config.RequestsPerMinute),
		gen:    gen,
	}, nil
}

func (av *AlphaVantage) Name() ProviderName { return ProviderAlphaVantage }

func (av *AlphaVantage) queryURL(params url.Values) string {
	params.Set("apikey", av.config.APIKey)
	return av.config.BaseURL + "?" + params.Encode()
}

// GetQuote fetches GLOBAL_QUOTE and normalizes it. Rate limits, error
// markers, missing fields and transport failures all degrade to a mock
// quote flagged on the envelope.
func (av *AlphaVantage) GetQuote(ctx context.Context, symbol string) (QuoteResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	resp, err := av.client.getJSON(ctx, av.queryURL(url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
	}))
	if err != nil {
		if ctx.Err() != nil {
			return QuoteResult{}, ctx.Err()
		}
		degradation(ProviderAlphaVantage, "getQuote", "transport", err.Error())
		return degraded(av.gen.Quote(symbol), ""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderAlphaVantage, "getQuote", "rate_limit", info.Message)
		return degraded(av.gen.Quote(symbol), info.Message), nil
	}

	var parsed struct {
		GlobalQuote  map[string]string `json:"Global Quote"`
		ErrorMessage string            `json:"Error Message"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		degradation(ProviderAlphaVantage, "getQuote", "bad_json", err.Error())
		return degraded(av.gen.Quote(symbol), ""), nil
	}
	if parsed.ErrorMessage != "" || parsed.GlobalQuote["01. symbol"] == "" {
		degradation(ProviderAlphaVantage, "getQuote", "missing_fields", parsed.ErrorMessage)
		return degraded(av.gen.Quote(symbol), ""), nil
	}

	q := parsed.GlobalQuote
	return ok(Quote{
		Symbol:        q["01. symbol"],
		Price:         parseFloatLoose(q["05. price"]),
		Change:        parseFloatLoose(q["09. change"]),
		ChangePercent: parseFloatLoose(q["10. change percent"]),
		Volume:        parseIntLoose(q["06. volume"]),
	}), nil
}

// GetSeries fetches TIME_SERIES_DAILY for interval "daily", otherwise
// TIME_SERIES_INTRADAY at the given bar width. Points come back ascending
// by timestamp, capped at 100.
func (av *AlphaVantage) GetSeries(ctx context.Context, symbol, interval string) (SeriesResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if interval == "" {
		interval = "5min"
	}

	params := url.Values{"symbol": {symbol}, "outputsize": {"compact"}}
	var seriesKey, tsLayout string
	daily := interval == "daily"
	if daily {
		params.Set("function", "TIME_SERIES_DAILY")
		seriesKey = "Time Series (Daily)"
		tsLayout = "2006-01-02"
	} else {
		params.Set("function", "TIME_SERIES_INTRADAY")
		params.Set("interval", interval)
		seriesKey = "Time Series (" + interval + ")"
		tsLayout = "2006-01-02 15:04:05"
	}

	mock := func(message string) SeriesResult {
		return degraded(av.gen.Series(symbol, 50, intervalStep(interval)), message)
	}

	resp, err := av.client.getJSON(ctx, av.queryURL(params))
	if err != nil {
		if ctx.Err() != nil {
			return SeriesResult{}, ctx.Err()
		}
		degradation(ProviderAlphaVantage, "getSeries", "transport", err.Error())
		return mock(""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderAlphaVantage, "getSeries", "rate_limit", info.Message)
		return mock(info.Message), nil
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		degradation(ProviderAlphaVantage, "getSeries", "bad_json", err.Error())
		return mock(""), nil
	}

	var series map[string]map[string]string
	if raw, found := parsed[seriesKey]; found {
		if err := json.Unmarshal(raw, &series); err != nil {
			series = nil
		}
	}
	if len(series) == 0 {
		degradation(ProviderAlphaVantage, "getSeries", "missing_fields", "no time series in response")
		return mock(""), nil
	}

	points := make([]SeriesPoint, 0, len(series))
	for stamp, values := range series {
		ts, err := time.Parse(tsLayout, stamp)
		if err != nil {
			continue
		}
		points = append(points, SeriesPoint{
			Timestamp: ts,
			Open:      parseFloatLoose(values["1. open"]),
			High:      parseFloatLoose(values["2. high"]),
			Low:       parseFloatLoose(values["3. low"]),
			Close:     parseFloatLoose(values["4. close"]),
			Volume:    parseIntLoose(values["5. volume"]),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	if len(points) > 100 {
		points = points[len(points)-100:]
	}
	return ok(points), nil
}

// GetMostActive fetches TOP_GAINERS_LOSERS and normalizes the
// most-actively-traded block (quote subset: no 52-week or market cap).
func (av *AlphaVantage) GetMostActive(ctx context.Context) (QuotesResult, error) {
	resp, err := av.client.getJSON(ctx, av.queryURL(url.Values{
		"function": {"TOP_GAINERS_LOSERS"},
	}))
	if err != nil {
		if ctx.Err() != nil {
			return QuotesResult{}, ctx.Err()
		}
		degradation(ProviderAlphaVantage, "getMostActive", "transport", err.Error())
		return degraded(av.gen.MostActive(), ""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderAlphaVantage, "getMostActive", "rate_limit", info.Message)
		return degraded(av.gen.MostActive(), info.Message), nil
	}

	var parsed struct {
		MostActivelyTraded []struct {
			Ticker           string `json:"ticker"`
			Price            string `json:"price"`
			ChangeAmount     string `json:"change_amount"`
			ChangePercentage string `json:"change_percentage"`
			Volume           string `json:"volume"`
		} `json:"most_actively_traded"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil || len(parsed.MostActivelyTraded) == 0 {
		degradation(ProviderAlphaVantage, "getMostActive", "missing_fields", "no most_actively_traded in response")
		return degraded(av.gen.MostActive(), ""), nil
	}

	items := parsed.MostActivelyTraded
	if len(items) > 10 {
		items = items[:10]
	}
	quotes := make([]Quote, 0, len(items))
	for _, item := range items {
		quotes = append(quotes, Quote{
			Symbol:        item.Ticker,
			Price:         parseFloatLoose(item.Price),
			Change:        parseFloatLoose(item.ChangeAmount),
			ChangePercent: parseFloatLoose(item.ChangePercentage),
			Volume:        parseIntLoose(item.Volume),
		})
	}
	return ok(quotes), nil
}

// GetNews fetches NEWS_SENTIMENT for the given topics.
func (av *AlphaVantage) GetNews(ctx context.Context, topics string, limit int) (NewsResult, error) {
	if topics == "" {
		topics = "technology"
	}
	if limit <= 0 {
		limit = 10
	}

	resp, err := av.client.getJSON(ctx, av.queryURL(url.Values{
		"function": {"NEWS_SENTIMENT"},
		"topics":   {topics},
		"limit":    {strconv.Itoa(limit)},
	}))
	if err != nil {
		if ctx.Err() != nil {
			return NewsResult{}, ctx.Err()
		}
		degradation(ProviderAlphaVantage, "getNews", "transport", err.Error())
		return degraded(av.gen.News(limit), ""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderAlphaVantage, "getNews", "rate_limit", info.Message)
		return degraded(av.gen.News(limit), info.Message), nil
	}

	var parsed struct {
		Feed []struct {
			Title         string `json:"title"`
			Summary       string `json:"summary"`
			URL           string `json:"url"`
			Source        string `json:"source"`
			TimePublished string `json:"time_published"`
			Sentiment     string `json:"overall_sentiment_label"`
			Relevance     string `json:"relevance_score"`
		} `json:"feed"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil || len(parsed.Feed) == 0 {
		degradation(ProviderAlphaVantage, "getNews", "missing_fields", "no feed in response")
		return degraded(av.gen.News(limit), ""), nil
	}

	feed := parsed.Feed
	if len(feed) > limit {
		feed = feed[:limit]
	}
	items := make([]NewsItem, 0, len(feed))
	for _, entry := range feed {
		published, _ := time.Parse("20060102T150405", entry.TimePublished)
		items = append(items, NewsItem{
			Title:          entry.Title,
			Summary:        entry.Summary,
			URL:            entry.URL,
			Source:         entry.Source,
			Published:      published,
			Sentiment:      entry.Sentiment,
			RelevanceScore: entry.Relevance,
		})
	}
	return ok(items), nil
}

// GetIndicator fetches a technical indicator (SMA, EMA, RSI, ...) and
// normalizes the "Technical Analysis" block, ascending by date.
func (av *AlphaVantage) GetIndicator(ctx context.Context, function, symbol, interval, timePeriod, seriesType string) (IndicatorResult, error) {
	function = strings.ToUpper(strings.TrimSpace(function))
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if interval == "" {
		interval = "daily"
	}
	if timePeriod == "" {
		timePeriod = "20"
	}
	if seriesType == "" {
		seriesType = "close"
	}

	mock := func(message string) IndicatorResult {
		return degraded(av.gen.Indicator(function, symbol, interval), message)
	}

	resp, err := av.client.getJSON(ctx, av.queryURL(url.Values{
		"function":    {function},
		"symbol":      {symbol},
		"interval":    {interval},
		"time_period": {timePeriod},
		"series_type": {seriesType},
	}))
	if err != nil {
		if ctx.Err() != nil {
			return IndicatorResult{}, ctx.Err()
		}
		degradation(ProviderAlphaVantage, "getIndicator", "transport", err.Error())
		return mock(""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderAlphaVantage, "getIndicator", "rate_limit", info.Message)
		return mock(info.Message), nil
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		degradation(ProviderAlphaVantage, "getIndicator", "bad_json", err.Error())
		return mock(""), nil
	}

	var analysis map[string]map[string]string
	if raw, found := parsed["Technical Analysis: "+function]; found {
		if err := json.Unmarshal(raw, &analysis); err != nil {
			analysis = nil
		}
	}
	if len(analysis) == 0 {
		degradation(ProviderAlphaVantage, "getIndicator", "missing_fields", "no technical analysis in response")
		return mock(""), nil
	}

	points := make([]IndicatorPoint, 0, len(analysis))
	for date, values := range analysis {
		points = append(points, IndicatorPoint{
			Date:  date,
			Value: parseFloatLoose(values[function]),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })

	return ok(IndicatorSeries{
		Symbol:   symbol,
		Function: function,
		Interval: interval,
		Points:   points,
	}), nil
}

// Fundamental functions the OVERVIEW endpoint family supports.
var fundamentalFunctions = map[string]bool{
	"OVERVIEW":         true,
	"EARNINGS":         true,
	"INCOME_STATEMENT": true,
	"BALANCE_SHEET":    true,
	"CASH_FLOW":        true,
}

// GetFundamentals fetches company fundamentals: OVERVIEW is normalized
// field by field, the earnings and statement functions keep their fiscal
// records with upstream field names.
func (av *AlphaVantage) GetFundamentals(ctx context.Context, function, symbol string) (FundamentalsResult, error) {
	function = strings.ToUpper(strings.TrimSpace(function))
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if function == "" {
		function = "OVERVIEW"
	}
	if !fundamentalFunctions[function] {
		degradation(ProviderAlphaVantage, "getFundamentals", "missing_fields", "unknown function "+function)
		return degraded(av.gen.Fundamentals(function, symbol), ""), nil
	}

	mock := func(message string) FundamentalsResult {
		return degraded(av.gen.Fundamentals(function, symbol), message)
	}

	resp, err := av.client.getJSON(ctx, av.queryURL(url.Values{
		"function": {function},
		"symbol":   {symbol},
	}))
	if err != nil {
		if ctx.Err() != nil {
			return FundamentalsResult{}, ctx.Err()
		}
		degradation(ProviderAlphaVantage, "getFundamentals", "transport", err.Error())
		return mock(""), nil
	}

	if info := ClassifyResponse(resp.StatusCode, resp.Header, resp.Body); info.IsRateLimited {
		degradation(ProviderAlphaVantage, "getFundamentals", "rate_limit", info.Message)
		return mock(info.Message), nil
	}

	if function == "OVERVIEW" {
		var fields map[string]string
		if err := json.Unmarshal(resp.Body, &fields); err != nil || fields["Symbol"] == "" {
			degradation(ProviderAlphaVantage, "getFundamentals", "missing_fields", "no overview in response")
			return mock(""), nil
		}
		return ok(Fundamentals{
			Symbol:   fields["Symbol"],
			Function: function,
			Overview: overviewFromFields(fields),
		}), nil
	}

	var parsed struct {
		Symbol            string        `json:"symbol"`
		AnnualEarnings    []FiscalEntry `json:"annualEarnings"`
		QuarterlyEarnings []FiscalEntry `json:"quarterlyEarnings"`
		AnnualReports     []FiscalEntry `json:"annualReports"`
		QuarterlyReports  []FiscalEntry `json:"quarterlyReports"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil || parsed.Symbol == "" {
		degradation(ProviderAlphaVantage, "getFundamentals", "missing_fields", "no reports in response")
		return mock(""), nil
	}

	annual, quarterly := parsed.AnnualReports, parsed.QuarterlyReports
	if function == "EARNINGS" {
		annual, quarterly = parsed.AnnualEarnings, parsed.QuarterlyEarnings
	}
	return ok(Fundamentals{
		Symbol:    parsed.Symbol,
		Function:  function,
		Annual:    annual,
		Quarterly: quarterly,
	}), nil
}

func overviewFromFields(fields map[string]string) *CompanyOverview {
	f := func(key string) float64 { return parseFloatLoose(fields[key]) }
	return &CompanyOverview{
		Symbol:                     fields["Symbol"],
		Name:                       fields["Name"],
		Description:                fields["Description"],
		Sector:                     fields["Sector"],
		Industry:                   fields["Industry"],
		MarketCap:                  f("MarketCapitalization"),
		PERatio:                    f("PERatio"),
		PEGRatio:                   f("PEGRatio"),
		BookValue:                  f("BookValue"),
		DividendPerShare:           f("DividendPerShare"),
		DividendYield:              f("DividendYield"),
		EPS:                        f("EPS"),
		RevenuePerShareTTM:         f("RevenuePerShareTTM"),
		ProfitMargin:               f("ProfitMargin"),
		OperatingMarginTTM:         f("OperatingMarginTTM"),
		ReturnOnAssetsTTM:          f("ReturnOnAssetsTTM"),
		ReturnOnEquityTTM:          f("ReturnOnEquityTTM"),
		QuarterlyEarningsGrowthYOY: f("QuarterlyEarningsGrowthYOY"),
		QuarterlyRevenueGrowthYOY:  f("QuarterlyRevenueGrowthYOY"),
		AnalystTargetPrice:         f("AnalystTargetPrice"),
		TrailingPE:                 f("TrailingPE"),
		ForwardPE:                  f("ForwardPE"),
		PriceToSalesRatioTTM:       f("PriceToSalesRatioTTM"),
		PriceToBookRatio:           f("PriceToBookRatio"),
		EVToRevenue:                f("EVToRevenue"),
		EVToEBITDA:                 f("EVToEBITDA"),
		Beta:                       f("Beta"),
		Week52High:                 f("52WeekHigh"),
		Week52Low:                  f("52WeekLow"),
		Day50MovingAverage:         f("50DayMovingAverage"),
		Day200MovingAverage:        f("200DayMovingAverage"),
		SharesOutstanding:          f("SharesOutstanding"),
		DividendDate:               fields["DividendDate"],
		ExDividendDate:             fields["ExDividendDate"],
	}
}

// intervalStep maps an AlphaVantage interval string to a bar width for the
// mock series generator.
func intervalStep(interval string) time.Duration {
	if interval == "daily" {
		return 24 * time.Hour
	}
	if minutes, err := strconv.Atoi(strings.TrimSuffix(interval, "min")); err == nil && minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	return 5 * time.Minute
}
