// Package cache provides the process-wide response cache shared by every
// provider adapter and the real-time subscription service. Entries are keyed
// by (provider, method, params) and expire individually; expired entries are
// dropped lazily on access and by a periodic background sweep.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Rajchodisetti/stockboard/internal/observ"
)

// Entry is a single cached value with its expiry bookkeeping.
type Entry struct {
	Data      any       `json:"data"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Key       string    `json:"key"`
}

// Config controls cache behavior. Zero values fall back to defaults in New.
type Config struct {
	DefaultTTL      time.Duration `yaml:"default_ttl"`
	MaxSize         int           `yaml:"max_size"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Stats is a point-in-time snapshot for observability endpoints.
type Stats struct {
	TotalEntries   int     `json:"totalEntries"`
	ValidEntries   int     `json:"validEntries"`
	ExpiredEntries int     `json:"expiredEntries"`
	MaxSize        int     `json:"maxSize"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRate        float64 `json:"hitRate"`
}

// Store is a TTL cache safe for concurrent use. No operation returns an
// error; a miss is simply an absent value.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	config  Config
	hits    int64
	misses  int64

	now func() time.Time // swapped out in expiry tests
}

// New creates a Store. Defaults: 30s TTL, 500 entries, 60s sweep interval.
func New(cfg Config) *Store {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 30 * time.Second
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 500
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 60 * time.Second
	}
	return &Store{
		entries: make(map[string]Entry),
		config:  cfg,
		now:     time.Now,
	}
}

// Key derives the deterministic cache key for a call. Params are serialized
// as JSON; encoding/json writes map keys in sorted order, so equivalent calls
// with differently-ordered params collide to the same key.
func Key(provider, method string, params map[string]any) string {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		// Params are plain strings/numbers in practice; an unmarshalable
		// value still must not break caching, so fall back to an empty set.
		b = []byte("{}")
	}
	return provider + ":" + method + ":" + string(b)
}

// Set stores data under the derived key with expiry now+ttl. A ttl <= 0 uses
// the configured default. When the store is full the single oldest entry (by
// StoredAt) is evicted first.
func (s *Store) Set(provider, method string, params map[string]any, data any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.config.DefaultTTL
	}
	key := Key(provider, method, params)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.config.MaxSize {
		s.evictOldestLocked()
	}
	s.entries[key] = Entry{
		Data:      data,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
		Key:       key,
	}
}

// Get returns the cached value if present and unexpired. An expired entry is
// deleted and reported as a miss.
func (s *Store) Get(provider, method string, params map[string]any) (any, bool) {
	key := Key(provider, method, params)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		s.misses++
		observ.IncCounter("cache_miss_total", map[string]string{"provider": provider, "method": method})
		return nil, false
	}
	if s.now().After(entry.ExpiresAt) {
		delete(s.entries, key)
		s.misses++
		observ.IncCounter("cache_expired_total", map[string]string{"provider": provider, "method": method})
		return nil, false
	}
	s.hits++
	observ.IncCounter("cache_hit_total", map[string]string{"provider": provider, "method": method})
	return entry.Data, true
}

// Has reports whether a valid entry exists, with the same expiry semantics
// as Get but without counting toward hit/miss stats.
func (s *Store) Has(provider, method string, params map[string]any) bool {
	key := Key(provider, method, params)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return false
	}
	if s.now().After(entry.ExpiresAt) {
		delete(s.entries, key)
		return false
	}
	return true
}

// Invalidate removes all entries matching the given provider and/or method
// prefix. Empty strings act as wildcards; both empty clears everything.
// Returns the number of entries removed.
func (s *Store) Invalidate(provider, method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if provider == "" && method == "" {
		n := len(s.entries)
		s.entries = make(map[string]Entry)
		return n
	}

	removed := 0
	for key := range s.entries {
		parts := strings.SplitN(key, ":", 3)
		if len(parts) < 2 {
			continue
		}
		if provider != "" && parts[0] != provider {
			continue
		}
		if method != "" && parts[1] != method {
			continue
		}
		delete(s.entries, key)
		removed++
	}
	return removed
}

// Cleanup removes every currently-expired entry and returns how many were
// dropped. It backs the background sweep; reads already expire lazily.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	if removed > 0 {
		observ.IncCounterBy("cache_sweep_removed_total", nil, int64(removed))
	}
	return removed
}

// Stats returns entry counts and hit-rate for observability.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	st := Stats{
		TotalEntries: len(s.entries),
		MaxSize:      s.config.MaxSize,
		Hits:         s.hits,
		Misses:       s.misses,
	}
	for _, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			st.ExpiredEntries++
		} else {
			st.ValidEntries++
		}
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	observ.SetGauge("cache_size", float64(st.TotalEntries), nil)
	return st
}

// StartSweeper runs the periodic expiry sweep until ctx is cancelled.
func (s *Store) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.config.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.Cleanup(); removed > 0 {
					observ.Log("cache_sweep", map[string]any{"removed": removed})
				}
			}
		}
	}()
}

// evictOldestLocked drops the entry with the oldest StoredAt. O(n) scan is
// fine at the configured scale of hundreds of entries.
func (s *Store) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, entry := range s.entries {
		if first || entry.StoredAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.StoredAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
		observ.IncCounter("cache_evictions_total", nil)
	}
}
