// Package server exposes the dashboard's data-fetching core over HTTP. Every
// data endpoint answers with the result envelope so clients can always tell
// live data from synthetic fallback.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rajchodisetti/stockboard/internal/cache"
	"github.com/Rajchodisetti/stockboard/internal/marketdata"
	"github.com/Rajchodisetti/stockboard/internal/observ"
	"github.com/Rajchodisetti/stockboard/internal/realtime"
)

type Server struct {
	dispatcher *marketdata.Dispatcher
	store      *cache.Store
	realtime   *realtime.Service
}

func New(dispatcher *marketdata.Dispatcher, store *cache.Store, rt *realtime.Service) *Server {
	return &Server{dispatcher: dispatcher, store: store, realtime: rt}
}

// Routes wires every endpoint onto a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stocks/quote", s.handleQuote)
	mux.HandleFunc("/api/stocks/chart", s.handleChart)
	mux.HandleFunc("/api/stocks/most-active", s.handleMostActive)
	mux.HandleFunc("/api/stocks/news", s.handleNews)
	mux.HandleFunc("/api/stocks/earnings", s.handleEarnings)
	mux.HandleFunc("/api/stocks/company-profile", s.handleCompanyProfile)
	mux.HandleFunc("/api/stocks/technical-indicators", s.handleIndicators)
	mux.HandleFunc("/api/stocks/analyst-data", s.handleAnalystData)
	mux.HandleFunc("/api/stocks/fundamental-data", s.handleFundamentals)
	mux.HandleFunc("/api/stocks/stream", s.handleStream)
	mux.HandleFunc("/api/stocks/refresh", s.handleRefresh)
	mux.HandleFunc("/api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/api/cache/invalidate", s.handleCacheInvalidate)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", observ.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps the error taxonomy onto status codes: caller bugs
// (unknown provider, unsupported capability, bad params) are 4xx,
// misconfiguration is 5xx. Upstream degradation never reaches here; it
// travels inside the envelope as flagged mock data.
func writeError(w http.ResponseWriter, err error) {
	var unsupported *marketdata.UnsupportedProviderError
	var cfgErr *marketdata.ConfigError
	switch {
	case errors.As(err, &unsupported), errors.Is(err, marketdata.ErrNotSupported):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.As(err, &cfgErr):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

func (s *Server) provider(raw string) (*marketdata.CachedProvider, error) {
	name, err := marketdata.ParseProviderName(raw)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Provider(name)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "POST required"})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string   `json:"provider"`
		Symbols  []string `json:"symbols"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Symbols) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "symbols required"})
		return
	}
	p, err := s.provider(req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}

	results := make([]marketdata.QuoteResult, 0, len(req.Symbols))
	for _, symbol := range req.Symbols {
		result, err := p.GetQuote(r.Context(), symbol)
		if err != nil {
			writeError(w, err)
			return
		}
		results = append(results, result)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Symbol == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "symbol required"})
		return
	}
	p, err := s.provider(req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := p.GetSeries(r.Context(), req.Symbol, req.Interval)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMostActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.provider(req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := p.GetMostActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		Topics   string `json:"topics"`
		Limit    int    `json:"limit"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.provider(req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := p.GetNews(r.Context(), req.Topics, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := s.provider(queryDefault(q.Get("provider"), string(marketdata.ProviderFinnhub)))
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	from, to := now, now.AddDate(0, 0, 14)
	if raw := q.Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "from must be YYYY-MM-DD"})
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "to must be YYYY-MM-DD"})
			return
		}
	}

	result, err := p.GetEarnings(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCompanyProfile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "symbol required"})
		return
	}
	p, err := s.provider(queryDefault(q.Get("provider"), string(marketdata.ProviderFinnhub)))
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := p.GetCompanyProfile(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "symbol required"})
		return
	}
	p, err := s.provider(queryDefault(q.Get("provider"), string(marketdata.ProviderAlphaVantage)))
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := p.GetIndicator(r.Context(),
		queryDefault(q.Get("function"), "SMA"),
		symbol,
		q.Get("interval"),
		q.Get("time_period"),
		q.Get("series_type"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnalystData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "symbol required"})
		return
	}
	p, err := s.provider(queryDefault(q.Get("provider"), string(marketdata.ProviderFinnhub)))
	if err != nil {
		writeError(w, err)
		return
	}

	switch strings.ToLower(queryDefault(q.Get("type"), "recommendation")) {
	case "recommendation":
		result, err := p.GetRecommendations(r.Context(), symbol)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "price-target":
		result, err := p.GetPriceTarget(r.Context(), symbol)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "type must be recommendation or price-target"})
	}
}

func (s *Server) handleFundamentals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	function := q.Get("function")
	symbol := q.Get("symbol")
	if function == "" || symbol == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "function and symbol required"})
		return
	}
	p, err := s.provider(queryDefault(q.Get("provider"), string(marketdata.ProviderAlphaVantage)))
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := p.GetFundamentals(r.Context(), function, symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// streamParams builds the subscription triple from stream/refresh query
// params. Only recognized param names participate so keys stay canonical.
func streamParams(q url.Values) map[string]any {
	params := map[string]any{}
	for _, key := range []string{"symbol", "interval", "topics", "function"} {
		if v := q.Get(key); v != "" {
			params[key] = v
		}
	}
	return params
}

// handleStream pushes subscription updates as server-sent events. The
// subscriber registered here is what keeps the key's poll loop alive; it is
// removed when the client disconnects, so the last viewer tears the loop
// down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.realtime == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "streaming not enabled"})
		return
	}
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}

	q := r.URL.Query()
	provider := q.Get("provider")
	if _, err := marketdata.ParseProviderName(provider); err != nil {
		writeError(w, err)
		return
	}
	method := queryDefault(q.Get("method"), "getQuote")
	params := streamParams(q)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates := make(chan realtime.Update, 16)
	key := cache.Key(provider, method, params)
	unsubscribe := s.realtime.Subscribe(key, realtime.SubscriptionConfig{
		Provider: provider,
		Method:   method,
		Params:   params,
	}, func(u realtime.Update) {
		select {
		case updates <- u:
		default: // slow client, drop rather than block the poll loop
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case u := <-updates:
			if u.Err != nil {
				payload, _ := json.Marshal(errorBody{Error: u.Err.Error()})
				fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
			} else {
				payload, merr := json.Marshal(u.Data)
				if merr != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
			}
			flusher.Flush()
		}
	}
}

// handleRefresh forces the next update for a subscription triple to come
// from a fresh fetch instead of the interval wait.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.realtime == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "streaming not enabled"})
		return
	}
	var req struct {
		Provider string         `json:"provider"`
		Method   string         `json:"method"`
		Params   map[string]any `json:"params"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := marketdata.ParseProviderName(req.Provider); err != nil {
		writeError(w, err)
		return
	}
	key := cache.Key(req.Provider, queryDefault(req.Method, "getQuote"), req.Params)
	s.realtime.ForceRefresh(key)
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats())
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		Method   string `json:"method"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	removed := s.store.Invalidate(req.Provider, req.Method)
	observ.Log("cache_invalidate", map[string]any{
		"provider": req.Provider, "method": req.Method, "removed": removed,
	})
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status": "ok",
		"cache":  s.store.Stats(),
	}
	if s.realtime != nil {
		status := s.realtime.Status()
		health["connection"] = status
		health["subscriptions"] = s.realtime.SubscriptionCount()
		if !status.IsConnected {
			health["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, health)
}

func queryDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
