package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAlphaVantageForTest(t *testing.T, handler http.HandlerFunc) *AlphaVantage {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	av, err := NewAlphaVantage(AlphaVantageConfig{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		RequestsPerMinute: 10_000, // don't throttle tests
	}, NewGenerator(1))
	require.NoError(t, err)
	return av
}

func TestNewAlphaVantage_RequiresAPIKey(t *testing.T) {
	_, err := NewAlphaVantage(AlphaVantageConfig{}, nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "alphavantage", cfgErr.Provider)
}

func TestAlphaVantageGetQuote_Live(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(`{"Global Quote": {
			"01. symbol": "AAPL",
			"05. price": "175.4300",
			"06. volume": "52,164,535",
			"09. change": "2.1700",
			"10. change percent": "1.2524%"
		}}`))
	})

	result, err := av.GetQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	assert.Empty(t, result.RateLimitMessage)
	assert.Equal(t, "AAPL", result.Data.Symbol)
	assert.InDelta(t, 175.43, result.Data.Price, 0.001)
	assert.InDelta(t, 1.2524, result.Data.ChangePercent, 0.001)
	assert.Equal(t, int64(52_164_535), result.Data.Volume)
}

func TestAlphaVantageGetQuote_RateLimitedNoteFallsBackToMock(t *testing.T) {
	// The throttled shape: HTTP 200 with a Note instead of data.
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute and 500 calls per day."}`))
	})

	result, err := av.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
	assert.NotEmpty(t, result.RateLimitMessage)
	assert.Contains(t, result.RateLimitMessage, "call frequency")
	// Mock quote is structurally valid and in a plausible band.
	assert.Equal(t, "AAPL", result.Data.Symbol)
	assert.Greater(t, result.Data.Price, 50.0)
	assert.Less(t, result.Data.Price, 250.0)
}

func TestAlphaVantageGetQuote_Status429(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	result, err := av.GetQuote(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
	assert.NotEmpty(t, result.RateLimitMessage)
}

func TestAlphaVantageGetQuote_MalformedBodyFallsBackToMock(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	})

	result, err := av.GetQuote(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
	assert.Empty(t, result.RateLimitMessage)
	assert.Equal(t, "TSLA", result.Data.Symbol)
}

func TestAlphaVantageGetQuote_TransportErrorFallsBackToMock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // force connection refused
	av, err := NewAlphaVantage(AlphaVantageConfig{
		APIKey: "test-key", BaseURL: srv.URL, RequestsPerMinute: 10_000,
	}, NewGenerator(1))
	require.NoError(t, err)

	result, err := av.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
}

func TestAlphaVantageGetQuote_ContextCancelled(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := av.GetQuote(ctx, "AAPL")
	require.ErrorIs(t, err, context.Canceled)
}

func TestAlphaVantageGetSeries_Daily(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		w.Write([]byte(`{"Time Series (Daily)": {
			"2026-08-26": {"1. open": "174.00", "2. high": "176.50", "3. low": "173.20", "4. close": "175.43", "5. volume": "51000000"},
			"2026-08-25": {"1. open": "172.10", "2. high": "174.80", "3. low": "171.90", "4. close": "174.00", "5. volume": "48000000"}
		}}`))
	})

	result, err := av.GetSeries(context.Background(), "AAPL", "daily")
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	require.Len(t, result.Data, 2)
	// Ascending order regardless of map iteration.
	assert.True(t, result.Data[0].Timestamp.Before(result.Data[1].Timestamp))
	assert.InDelta(t, 174.00, result.Data[1].Open, 0.001)
	assert.InDelta(t, 175.43, result.Data[1].Close, 0.001)
}

func TestAlphaVantageGetSeries_Intraday(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_INTRADAY", r.URL.Query().Get("function"))
		assert.Equal(t, "5min", r.URL.Query().Get("interval"))
		w.Write([]byte(`{"Time Series (5min)": {
			"2026-08-26 15:55:00": {"1. open": "175.00", "2. high": "175.20", "3. low": "174.90", "4. close": "175.10", "5. volume": "120000"}
		}}`))
	})

	result, err := av.GetSeries(context.Background(), "AAPL", "5min")
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	require.Len(t, result.Data, 1)
	assert.Equal(t, 2026, result.Data[0].Timestamp.Year())
}

func TestAlphaVantageGetSeries_MissingBlockFallsBackToMock(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Meta Data": {}}`))
	})

	result, err := av.GetSeries(context.Background(), "AAPL", "daily")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
	require.NotEmpty(t, result.Data)
	for i := 1; i < len(result.Data); i++ {
		assert.True(t, result.Data[i-1].Timestamp.Before(result.Data[i].Timestamp))
	}
}

func TestAlphaVantageGetMostActive(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TOP_GAINERS_LOSERS", r.URL.Query().Get("function"))
		w.Write([]byte(`{"most_actively_traded": [
			{"ticker": "TSLA", "price": "248.73", "change_amount": "-3.12", "change_percentage": "-1.24%", "volume": "98000000"},
			{"ticker": "AAPL", "price": "175.43", "change_amount": "2.17", "change_percentage": "1.25%", "volume": "52000000"}
		]}`))
	})

	result, err := av.GetMostActive(context.Background())
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	require.Len(t, result.Data, 2)
	assert.Equal(t, "TSLA", result.Data[0].Symbol)
	assert.InDelta(t, -1.24, result.Data[0].ChangePercent, 0.001)
}

func TestAlphaVantageGetNews(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NEWS_SENTIMENT", r.URL.Query().Get("function"))
		w.Write([]byte(`{"feed": [
			{"title": "Chips rally", "summary": "Semis up.", "url": "https://example.com/a",
			 "source": "Reuters", "time_published": "20260826T143000",
			 "overall_sentiment_label": "Bullish", "relevance_score": "0.81"}
		]}`))
	})

	result, err := av.GetNews(context.Background(), "technology", 5)
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "Chips rally", result.Data[0].Title)
	assert.Equal(t, time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC), result.Data[0].Published)
	assert.Equal(t, "Bullish", result.Data[0].Sentiment)
}

func TestAlphaVantageGetIndicator(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SMA", r.URL.Query().Get("function"))
		assert.Equal(t, "20", r.URL.Query().Get("time_period"))
		w.Write([]byte(`{"Technical Analysis: SMA": {
			"2026-08-26": {"SMA": "173.8820"},
			"2026-08-25": {"SMA": "173.1100"}
		}}`))
	})

	result, err := av.GetIndicator(context.Background(), "sma", "aapl", "daily", "", "")
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	assert.Equal(t, "AAPL", result.Data.Symbol)
	assert.Equal(t, "SMA", result.Data.Function)
	require.Len(t, result.Data.Points, 2)
	assert.Equal(t, "2026-08-25", result.Data.Points[0].Date)
	assert.InDelta(t, 173.882, result.Data.Points[1].Value, 0.001)
}

func TestAlphaVantageGetFundamentals_Overview(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OVERVIEW", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{
			"Symbol": "AAPL",
			"Name": "Apple Inc",
			"Sector": "TECHNOLOGY",
			"MarketCapitalization": "2800000000000",
			"PERatio": "28.5",
			"EPS": "6.15",
			"52WeekHigh": "199.62",
			"52WeekLow": "142.00",
			"50DayMovingAverage": "178.11",
			"200DayMovingAverage": "171.35",
			"DividendDate": "2026-11-14"
		}`))
	})

	result, err := av.GetFundamentals(context.Background(), "overview", "aapl")
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	assert.Equal(t, "AAPL", result.Data.Symbol)
	assert.Equal(t, "OVERVIEW", result.Data.Function)
	require.NotNil(t, result.Data.Overview)
	assert.Equal(t, "Apple Inc", result.Data.Overview.Name)
	assert.InDelta(t, 2.8e12, result.Data.Overview.MarketCap, 1)
	// Numeric-prefixed upstream keys normalize to the camelCase fields.
	assert.InDelta(t, 199.62, result.Data.Overview.Week52High, 0.001)
	assert.InDelta(t, 178.11, result.Data.Overview.Day50MovingAverage, 0.001)
	assert.InDelta(t, 171.35, result.Data.Overview.Day200MovingAverage, 0.001)
	assert.Equal(t, "2026-11-14", result.Data.Overview.DividendDate)
	assert.Empty(t, result.Data.Annual)
}

func TestAlphaVantageGetFundamentals_IncomeStatement(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "INCOME_STATEMENT", r.URL.Query().Get("function"))
		w.Write([]byte(`{
			"symbol": "AAPL",
			"annualReports": [
				{"fiscalDateEnding": "2025-09-30", "totalRevenue": "391035000000", "netIncome": "96995000000"}
			],
			"quarterlyReports": [
				{"fiscalDateEnding": "2026-06-30", "totalRevenue": "85777000000"}
			]
		}`))
	})

	result, err := av.GetFundamentals(context.Background(), "INCOME_STATEMENT", "AAPL")
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	assert.Nil(t, result.Data.Overview)
	require.Len(t, result.Data.Annual, 1)
	assert.Equal(t, "391035000000", result.Data.Annual[0]["totalRevenue"])
	require.Len(t, result.Data.Quarterly, 1)
	assert.Equal(t, "2026-06-30", result.Data.Quarterly[0]["fiscalDateEnding"])
}

func TestAlphaVantageGetFundamentals_Earnings(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"symbol": "AAPL",
			"annualEarnings": [{"fiscalDateEnding": "2025-09-30", "reportedEPS": "6.15"}],
			"quarterlyEarnings": [{"fiscalDateEnding": "2026-06-30", "reportedEPS": "1.53"}]
		}`))
	})

	result, err := av.GetFundamentals(context.Background(), "EARNINGS", "AAPL")
	require.NoError(t, err)
	require.Len(t, result.Data.Annual, 1)
	assert.Equal(t, "6.15", result.Data.Annual[0]["reportedEPS"])
	require.Len(t, result.Data.Quarterly, 1)
}

func TestAlphaVantageGetFundamentals_RateLimitedFallsBackToMock(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note": "API call frequency exceeded."}`))
	})

	result, err := av.GetFundamentals(context.Background(), "OVERVIEW", "MSFT")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
	assert.NotEmpty(t, result.RateLimitMessage)
	require.NotNil(t, result.Data.Overview)
	assert.Equal(t, "MSFT", result.Data.Overview.Symbol)
	assert.Greater(t, result.Data.Overview.MarketCap, 0.0)
}

func TestAlphaVantageGetFundamentals_UnknownFunctionServesMock(t *testing.T) {
	calls := 0
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	result, err := av.GetFundamentals(context.Background(), "ASTROLOGY", "AAPL")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
	assert.Zero(t, calls) // unknown functions never reach upstream
}

func TestAlphaVantageGetIndicator_RateLimited(t *testing.T) {
	av := newAlphaVantageForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Information": "This is a premium endpoint."}`))
	})

	result, err := av.GetIndicator(context.Background(), "EMA", "MSFT", "daily", "50", "close")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
	assert.NotEmpty(t, result.RateLimitMessage)
	assert.Len(t, result.Data.Points, 30)
}
