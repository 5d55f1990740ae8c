package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Rajchodisetti/stockboard/internal/cache"
	"github.com/Rajchodisetti/stockboard/internal/config"
	"github.com/Rajchodisetti/stockboard/internal/marketdata"
	"github.com/Rajchodisetti/stockboard/internal/observ"
	"github.com/Rajchodisetti/stockboard/internal/realtime"
	"github.com/Rajchodisetti/stockboard/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to env file with API keys")
	flag.Parse()

	// API keys live in the env file; absence is fine, real env vars win.
	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		log.Printf("env file: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := cache.New(cache.Config{
		DefaultTTL:      time.Duration(cfg.Cache.DefaultTTLMs) * time.Millisecond,
		MaxSize:         cfg.Cache.MaxSize,
		CleanupInterval: time.Duration(cfg.Cache.CleanupIntervalMs) * time.Millisecond,
	})
	store.StartSweeper(ctx)

	gen := marketdata.NewGenerator(0)
	ttl := marketdata.TTLPolicy{
		Quote:  time.Duration(cfg.TTL.QuoteMs) * time.Millisecond,
		Series: time.Duration(cfg.TTL.SeriesMs) * time.Millisecond,
	}

	providers := buildProviders(cfg.Providers, gen, store, ttl)
	if len(providers) == 0 {
		log.Fatal("no providers configured; set at least one API key")
	}
	dispatcher := marketdata.NewDispatcher(providers...)

	rt := realtime.NewService(dispatcher, store, realtime.Config{
		DefaultRefreshInterval: time.Duration(cfg.Realtime.RefreshIntervalMs) * time.Millisecond,
		StaleAfter:             time.Duration(cfg.Realtime.StaleAfterMs) * time.Millisecond,
		MonitorInterval:        time.Duration(cfg.Realtime.MonitorIntervalMs) * time.Millisecond,
	})
	rt.StartMonitor(ctx)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(dispatcher, store, rt).Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond,
	}

	go func() {
		observ.Log("server_start", map[string]any{
			"addr":      cfg.Server.Addr,
			"providers": len(providers),
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	observ.Log("server_shutdown", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutMs)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// buildProviders constructs a cached adapter for every provider whose API
// key resolves. A provider without a key is skipped with a log line rather
// than failing startup; the dashboard runs with whatever is configured.
func buildProviders(cfg config.Providers, gen *marketdata.Generator, store *cache.Store, ttl marketdata.TTLPolicy) []*marketdata.CachedProvider {
	var providers []*marketdata.CachedProvider

	add := func(name marketdata.ProviderName, build func() (marketdata.Provider, error)) {
		p, err := build()
		if err != nil {
			observ.Log("provider_skipped", map[string]any{
				"provider": string(name), "reason": err.Error(),
			})
			return
		}
		providers = append(providers, marketdata.NewCached(p, store, ttl))
	}

	add(marketdata.ProviderAlphaVantage, func() (marketdata.Provider, error) {
		return marketdata.NewAlphaVantage(marketdata.AlphaVantageConfig{
			APIKey:            cfg.AlphaVantage.APIKey(),
			BaseURL:           cfg.AlphaVantage.BaseURL,
			RequestsPerMinute: cfg.AlphaVantage.RateLimitPerMinute,
			Timeout:           cfg.AlphaVantage.Timeout(),
		}, gen)
	})
	add(marketdata.ProviderFinnhub, func() (marketdata.Provider, error) {
		return marketdata.NewFinnhub(marketdata.FinnhubConfig{
			APIKey:            cfg.Finnhub.APIKey(),
			BaseURL:           cfg.Finnhub.BaseURL,
			RequestsPerMinute: cfg.Finnhub.RateLimitPerMinute,
			Timeout:           cfg.Finnhub.Timeout(),
		}, gen)
	})
	add(marketdata.ProviderIndianStock, func() (marketdata.Provider, error) {
		return marketdata.NewIndianStock(marketdata.IndianStockConfig{
			APIKey: cfg.IndianStock.APIKey(),
		}, gen)
	})

	return providers
}
