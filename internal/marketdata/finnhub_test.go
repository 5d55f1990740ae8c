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

func newFinnhubForTest(t *testing.T, handler http.HandlerFunc) *Finnhub {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	fh, err := NewFinnhub(FinnhubConfig{
		APIKey:            "test-token",
		BaseURL:           srv.URL,
		RequestsPerMinute: 10_000,
	}, NewGenerator(1))
	require.NoError(t, err)
	return fh
}

func TestNewFinnhub_RequiresAPIKey(t *testing.T) {
	_, err := NewFinnhub(FinnhubConfig{}, nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "finnhub", cfgErr.Provider)
}

func TestFinnhubGetQuote_Live(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		w.Write([]byte(`{"c": 175.43, "d": 2.17, "dp": 1.2524, "h": 176.5, "l": 173.2}`))
	})

	result, err := fh.GetQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	assert.Equal(t, "AAPL", result.Data.Symbol)
	assert.InDelta(t, 175.43, result.Data.Price, 0.001)
	assert.InDelta(t, 2.17, result.Data.Change, 0.001)
}

func TestFinnhubGetQuote_ZeroPriceFallsBackToMock(t *testing.T) {
	// Finnhub answers unknown symbols with all-zero fields.
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c": 0, "d": 0, "dp": 0, "h": 0, "l": 0}`))
	})

	result, err := fh.GetQuote(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
	assert.Equal(t, "NOPE", result.Data.Symbol)
	assert.Positive(t, result.Data.Price)
}

func TestFinnhubGetQuote_ErrorFieldRateLimited(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "API limit reached. Please try again later."}`))
	})

	result, err := fh.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
	assert.NotEmpty(t, result.RateLimitMessage)
}

func TestFinnhubGetSeries_Candles(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/candle", r.URL.Path)
		assert.Equal(t, "D", r.URL.Query().Get("resolution"))
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		assert.NotEmpty(t, r.URL.Query().Get("to"))
		w.Write([]byte(`{"s": "ok",
			"t": [1756080000, 1756166400],
			"o": [172.1, 174.0],
			"h": [174.8, 176.5],
			"l": [171.9, 173.2],
			"c": [174.0, 175.43],
			"v": [48000000, 51000000]}`))
	})

	result, err := fh.GetSeries(context.Background(), "AAPL", "daily")
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	require.Len(t, result.Data, 2)
	assert.True(t, result.Data[0].Timestamp.Before(result.Data[1].Timestamp))
	assert.InDelta(t, 175.43, result.Data[1].Close, 0.001)
	assert.Equal(t, int64(48_000_000), result.Data[0].Volume)
}

func TestFinnhubGetSeries_NoDataStatusFallsBackToMock(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s": "no_data"}`))
	})

	result, err := fh.GetSeries(context.Background(), "AAPL", "daily")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
	assert.Len(t, result.Data, 30)
}

func TestFinnhubGetSeries_RaggedColumnsKeepConsistentPrefix(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s": "ok",
			"t": [1756080000, 1756166400],
			"o": [172.1],
			"h": [174.8],
			"l": [171.9],
			"c": [174.0],
			"v": [48000000]}`))
	})

	result, err := fh.GetSeries(context.Background(), "AAPL", "daily")
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	assert.Len(t, result.Data, 1)
}

func TestFinnhubGetNews(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/news", r.URL.Path)
		assert.Equal(t, "general", r.URL.Query().Get("category"))
		w.Write([]byte(`[
			{"headline": "Markets open higher", "summary": "Broad gains.", "url": "https://example.com/n1",
			 "source": "Reuters", "datetime": 1756197000, "image": "https://example.com/i1.png"},
			{"headline": "Oil slips", "summary": "Crude down.", "url": "https://example.com/n2",
			 "source": "Bloomberg", "datetime": 1756193400, "image": ""}
		]`))
	})

	result, err := fh.GetNews(context.Background(), "", 10)
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	require.Len(t, result.Data, 2)
	assert.Equal(t, "Markets open higher", result.Data[0].Title)
	assert.Equal(t, time.Unix(1756197000, 0).UTC(), result.Data[0].Published)
}

func TestFinnhubGetNews_LimitApplied(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"headline": "a", "source": "x", "datetime": 1},
			{"headline": "b", "source": "x", "datetime": 2},
			{"headline": "c", "source": "x", "datetime": 3}
		]`))
	})

	result, err := fh.GetNews(context.Background(), "general", 2)
	require.NoError(t, err)
	assert.Len(t, result.Data, 2)
}

func TestFinnhubGetEarnings(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendar/earnings", r.URL.Path)
		assert.Equal(t, "2026-08-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2026-08-31", r.URL.Query().Get("to"))
		w.Write([]byte(`{"earningsCalendar": [
			{"date": "2026-08-06", "symbol": "AAPL", "epsActual": 1.52, "epsEstimate": 1.48,
			 "hour": "amc", "quarter": 3, "revenueActual": 90000000000, "revenueEstimate": 89000000000, "year": 2026}
		]}`))
	})

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	result, err := fh.GetEarnings(context.Background(), from, to)
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	assert.Equal(t, 1, result.Data.TotalResults)
	require.Len(t, result.Data.Entries, 1)
	assert.Equal(t, "AAPL", result.Data.Entries[0].Symbol)
	assert.Equal(t, "amc", result.Data.Entries[0].Hour)
}

func TestFinnhubGetCompanyProfile(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/profile2", r.URL.Path)
		w.Write([]byte(`{"country": "US", "currency": "USD", "exchange": "NASDAQ NMS - GLOBAL MARKET",
			"ipo": "1980-12-12", "marketCapitalization": 2800000, "name": "Apple Inc",
			"phone": "14089961010", "shareOutstanding": 15500, "ticker": "AAPL",
			"weburl": "https://www.apple.com/", "logo": "https://example.com/aapl.png",
			"finnhubIndustry": "Technology"}`))
	})

	result, err := fh.GetCompanyProfile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	assert.Equal(t, "Apple Inc", result.Data.Name)
	assert.Equal(t, "Technology", result.Data.Industry)
}

func TestFinnhubGetCompanyProfile_EmptyBodyFallsBackToMock(t *testing.T) {
	// Unknown symbols come back as an empty object.
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	result, err := fh.GetCompanyProfile(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
	assert.Equal(t, "NOPE", result.Data.Ticker)
}

func TestFinnhubGetRecommendations(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/recommendation", r.URL.Path)
		w.Write([]byte(`[
			{"symbol": "AAPL", "period": "2026-08-01", "strongBuy": 14, "buy": 20, "hold": 8, "sell": 1, "strongSell": 0},
			{"symbol": "AAPL", "period": "2026-07-01", "strongBuy": 13, "buy": 21, "hold": 9, "sell": 1, "strongSell": 0}
		]`))
	})

	result, err := fh.GetRecommendations(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	require.Len(t, result.Data, 2)
	assert.Equal(t, 14, result.Data[0].StrongBuy)
}

func TestFinnhubGetPriceTarget(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/price-target", r.URL.Path)
		w.Write([]byte(`{"symbol": "AAPL", "targetHigh": 240, "targetLow": 160, "targetMean": 205.5, "targetMedian": 210}`))
	})

	result, err := fh.GetPriceTarget(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, result.IsMockData)
	assert.InDelta(t, 205.5, result.Data.TargetMean, 0.001)
}

func TestFinnhubGetPriceTarget_MissingSymbolFallsBackToMock(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	result, err := fh.GetPriceTarget(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.True(t, result.IsMockData)
	assert.Equal(t, "NOPE", result.Data.Symbol)
}

func TestFinnhub_ContextCancelled(t *testing.T) {
	fh := newFinnhubForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fh.GetQuote(ctx, "AAPL")
	require.ErrorIs(t, err, context.Canceled)
}
