package observ

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_EmitsJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Log("cache_sweep", map[string]any{"removed": 3})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cache_sweep", line["event"])
	assert.Equal(t, float64(3), line["removed"])
	assert.NotEmpty(t, line["ts"])
}

func TestLog_NilFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Log("server_shutdown", nil)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "server_shutdown", line["event"])
}

func TestCounters_LabelOrderIrrelevant(t *testing.T) {
	IncCounter("test_requests_total", map[string]string{"a": "1", "b": "2"})
	IncCounter("test_requests_total", map[string]string{"b": "2", "a": "1"})
	IncCounterBy("test_requests_total", map[string]string{"a": "1", "b": "2"}, 3)

	assert.Equal(t, int64(5), CounterValue("test_requests_total", map[string]string{"b": "2", "a": "1"}))
	assert.Equal(t, int64(0), CounterValue("test_requests_total", map[string]string{"a": "9"}))
}

func TestHandler_SummaryRollsUpSeries(t *testing.T) {
	IncCounterBy("cache_hit_total", map[string]string{"provider": "finnhub", "method": "getQuote"}, 3)
	IncCounterBy("cache_miss_total", map[string]string{"provider": "finnhub", "method": "getQuote"}, 1)
	IncCounterBy("provider_degraded_total", map[string]string{"provider": "alphavantage", "method": "getQuote", "reason": "rate_limit"}, 2)
	IncCounterBy("provider_degraded_total", map[string]string{"provider": "alphavantage", "method": "getSeries", "reason": "parse_error"}, 1)
	SetGauge("realtime_subscriptions", 4, nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Summary Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.GreaterOrEqual(t, body.Summary.CacheLookups, int64(4))
	assert.Greater(t, body.Summary.CacheHitRate, 0.0)
	assert.LessOrEqual(t, body.Summary.CacheHitRate, 1.0)
	// Both degradation reasons fold into one per-provider bucket.
	assert.GreaterOrEqual(t, body.Summary.DegradedByProvider["alphavantage"], int64(3))
	assert.Equal(t, 4.0, body.Summary.LiveSubscriptions)
}

func TestLabelValue_ParsesCanonicalKey(t *testing.T) {
	key := canonLabels(map[string]string{"reason": "rate_limit", "provider": "finnhub", "method": "getQuote"})
	assert.Equal(t, "finnhub", labelValue(key, "provider"))
	assert.Equal(t, "rate_limit", labelValue(key, "reason"))
	assert.Empty(t, labelValue(key, "missing"))
}

func TestRecordDuration_StoresMilliseconds(t *testing.T) {
	RecordDuration("test_op", 250*time.Millisecond, nil)
	// Observed under the _ms suffix; a second call appends.
	RecordDuration("test_op", 750*time.Millisecond, nil)

	reg.mu.Lock()
	defer reg.mu.Unlock()
	values := reg.hist["test_op_ms"][""]
	require.Len(t, values, 2)
	assert.Equal(t, []float64{250, 750}, values)
}
