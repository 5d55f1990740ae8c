// Package realtime multiplexes many dashboard subscribers onto one polling
// loop per subscription key. The first subscriber for a key starts the loop,
// later ones attach to it, and the loop is torn down when the last one
// leaves, so a key never has more than one outbound fetch in flight.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rajchodisetti/stockboard/internal/cache"
	"github.com/Rajchodisetti/stockboard/internal/observ"
)

// Fetcher executes one named operation and returns its result envelope.
// Implementations are expected to cache what they fetch; the poll cycle
// probes the shared store before calling Fetch and skips it on a hit.
type Fetcher interface {
	Fetch(ctx context.Context, provider, method string, params map[string]any) (any, error)
}

// SubscriptionConfig describes what one key polls and how often.
type SubscriptionConfig struct {
	Provider        string
	Method          string
	Params          map[string]any
	RefreshInterval time.Duration
}

// Update is delivered to every subscriber of a key after each cycle.
type Update struct {
	Key  string
	Data any
	Err  error
}

// Callback receives updates. Callbacks run on the key's poll goroutine and
// must not block.
type Callback func(Update)

// ConnectionStatus is the service-wide health verdict, decoupled from any
// single request: a fetch failure flips it immediately, and the background
// monitor flips it when no update has landed within the stale window.
type ConnectionStatus struct {
	IsConnected bool      `json:"isConnected"`
	LastUpdate  time.Time `json:"lastUpdate"`
	Error       string    `json:"error,omitempty"`
}

// StatusCallback receives connection status transitions.
type StatusCallback func(ConnectionStatus)

// Config tunes the service. Zero values fall back to defaults in NewService.
type Config struct {
	DefaultRefreshInterval time.Duration `yaml:"default_refresh_interval"`
	StaleAfter             time.Duration `yaml:"stale_after"`
	MonitorInterval        time.Duration `yaml:"monitor_interval"`
}

type subscription struct {
	key       string
	config    SubscriptionConfig
	callbacks map[string]Callback
	cancel    context.CancelFunc
	refresh   chan struct{}
}

// Service is the process-wide subscription registry. Constructed once at
// startup and handed to consumers; tests build isolated instances.
type Service struct {
	mu         sync.Mutex
	fetcher    Fetcher
	store      *cache.Store
	config     Config
	subs       map[string]*subscription
	status     ConnectionStatus
	statusSubs map[string]StatusCallback

	now func() time.Time
}

func NewService(fetcher Fetcher, store *cache.Store, cfg Config) *Service {
	if cfg.DefaultRefreshInterval <= 0 {
		cfg.DefaultRefreshInterval = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 60 * time.Second
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 10 * time.Second
	}
	return &Service{
		fetcher:    fetcher,
		store:      store,
		config:     cfg,
		subs:       make(map[string]*subscription),
		status:     ConnectionStatus{IsConnected: true},
		statusSubs: make(map[string]StatusCallback),
		now:        time.Now,
	}
}

// Subscribe attaches a callback to key. The first subscriber triggers an
// immediate fetch-and-cache cycle and starts the recurring poll; later
// subscribers attach without a new fetch. The returned function removes the
// callback; removing the last one stops the poll loop and deletes the key.
func (s *Service) Subscribe(key string, config SubscriptionConfig, callback Callback) func() {
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = s.config.DefaultRefreshInterval
	}
	id := uuid.NewString()

	s.mu.Lock()
	sub, exists := s.subs[key]
	if !exists {
		ctx, cancel := context.WithCancel(context.Background())
		sub = &subscription{
			key:       key,
			config:    config,
			callbacks: make(map[string]Callback),
			cancel:    cancel,
			refresh:   make(chan struct{}, 1),
		}
		s.subs[key] = sub
		go s.run(ctx, sub)
	}
	sub.callbacks[id] = callback
	count := len(sub.callbacks)
	s.mu.Unlock()

	observ.Log("realtime_subscribe", map[string]any{"key": key, "subscribers": count})
	observ.SetGauge("realtime_subscriptions", float64(s.SubscriptionCount()), nil)

	return func() { s.unsubscribe(key, id) }
}

func (s *Service) unsubscribe(key, id string) {
	s.mu.Lock()
	sub, exists := s.subs[key]
	if !exists {
		s.mu.Unlock()
		return
	}
	delete(sub.callbacks, id)
	empty := len(sub.callbacks) == 0
	if empty {
		sub.cancel()
		delete(s.subs, key)
	}
	s.mu.Unlock()

	if empty {
		observ.Log("realtime_teardown", map[string]any{"key": key})
	}
	observ.SetGauge("realtime_subscriptions", float64(s.SubscriptionCount()), nil)
}

// ForceRefresh makes the key's next observed update reflect a fresh cycle
// instead of waiting out the interval. No-op for unknown keys.
func (s *Service) ForceRefresh(key string) {
	s.mu.Lock()
	sub, exists := s.subs[key]
	s.mu.Unlock()
	if !exists {
		return
	}
	select {
	case sub.refresh <- struct{}{}:
	default: // a refresh is already pending
	}
}

// SubscriptionCount reports the number of live keys.
func (s *Service) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Status returns the current connection verdict.
func (s *Service) Status() ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SubscribeStatus registers a callback for status transitions and returns
// its remover. The current status is delivered immediately.
func (s *Service) SubscribeStatus(callback StatusCallback) func() {
	id := uuid.NewString()
	s.mu.Lock()
	s.statusSubs[id] = callback
	current := s.status
	s.mu.Unlock()

	callback(current)
	return func() {
		s.mu.Lock()
		delete(s.statusSubs, id)
		s.mu.Unlock()
	}
}

// StartMonitor runs the staleness watchdog until ctx is cancelled: if no
// successful update lands within the stale window the connection is flagged
// disconnected even though no individual fetch has failed.
func (s *Service) StartMonitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.config.MonitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.checkStale()
			}
		}
	}()
}

func (s *Service) checkStale() {
	s.mu.Lock()
	stale := s.status.IsConnected &&
		!s.status.LastUpdate.IsZero() &&
		s.now().Sub(s.status.LastUpdate) > s.config.StaleAfter
	s.mu.Unlock()

	if stale {
		s.setStatus(false, "no updates received")
	}
}

// run is the per-key poll loop. Cycles execute sequentially on this
// goroutine, so at most one fetch per key is ever in flight; overlapping
// ticks cannot stack requests.
func (s *Service) run(ctx context.Context, sub *subscription) {
	s.cycle(ctx, sub)

	timer := time.NewTimer(sub.config.RefreshInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-sub.refresh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		s.cycle(ctx, sub)
		timer.Reset(sub.config.RefreshInterval)
	}
}

// cycle performs one fetch round: serve from the shared store when the key
// is still warm, otherwise go through the fetcher (which caches what it
// fetches), then notify subscribers and update connection status.
func (s *Service) cycle(ctx context.Context, sub *subscription) {
	cfg := sub.config

	if s.store != nil {
		if data, hit := s.store.Get(cfg.Provider, cfg.Method, cfg.Params); hit {
			s.notify(sub, Update{Key: sub.key, Data: data})
			return
		}
	}

	data, err := s.fetcher.Fetch(ctx, cfg.Provider, cfg.Method, cfg.Params)
	if err != nil {
		if ctx.Err() != nil {
			return // torn down mid-fetch, nobody left to notify
		}
		observ.IncCounter("realtime_fetch_error_total", map[string]string{
			"provider": cfg.Provider, "method": cfg.Method,
		})
		s.setStatus(false, err.Error())
		s.notify(sub, Update{Key: sub.key, Err: err})
		return
	}

	s.setStatus(true, "")
	s.notify(sub, Update{Key: sub.key, Data: data})
}

func (s *Service) notify(sub *subscription, update Update) {
	s.mu.Lock()
	callbacks := make([]Callback, 0, len(sub.callbacks))
	for _, cb := range sub.callbacks {
		callbacks = append(callbacks, cb)
	}
	s.mu.Unlock()

	// The callback set may have emptied while a fetch was in flight; the
	// loop below is then a benign no-op.
	for _, cb := range callbacks {
		cb(update)
	}
}

func (s *Service) setStatus(connected bool, message string) {
	s.mu.Lock()
	changed := s.status.IsConnected != connected || s.status.Error != message
	s.status.IsConnected = connected
	s.status.Error = message
	if connected {
		s.status.LastUpdate = s.now()
	}
	current := s.status
	var observers []StatusCallback
	if changed {
		for _, cb := range s.statusSubs {
			observers = append(observers, cb)
		}
	}
	s.mu.Unlock()

	if changed {
		observ.Log("realtime_status", map[string]any{
			"connected": connected, "error": message,
		})
	}
	for _, cb := range observers {
		cb(current)
	}
}
