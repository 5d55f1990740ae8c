package observ

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type registry struct {
	mu       sync.Mutex
	counters map[string]map[string]int64   // name -> labelsKey -> count
	gauges   map[string]map[string]float64 // name -> labelsKey -> value
	hist     map[string]map[string][]float64
}

var reg = &registry{
	counters: map[string]map[string]int64{},
	gauges:   map[string]map[string]float64{},
	hist:     map[string]map[string][]float64{},
}

// canonicalize label map so key order is stable
func canonLabels(lbl map[string]string) string {
	if len(lbl) == 0 {
		return ""
	}
	keys := make([]string, 0, len(lbl))
	for k := range lbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(lbl[k])
	}
	return b.String()
}

func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1)
}

func IncCounterBy(name string, labels map[string]string, value int64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.counters[name]
	if !ok {
		m = map[string]int64{}
		reg.counters[name] = m
	}
	m[canonLabels(labels)] += value
}

func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.gauges[name]
	if !ok {
		m = map[string]float64{}
		reg.gauges[name] = m
	}
	m[canonLabels(labels)] = value
}

func Observe(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.hist[name]
	if !ok {
		m = map[string][]float64{}
		reg.hist[name] = m
	}
	k := canonLabels(labels)
	m[k] = append(m[k], value)
}

// RecordDuration stores a duration observation in milliseconds.
func RecordDuration(name string, d time.Duration, labels map[string]string) {
	Observe(name+"_ms", float64(d.Milliseconds()), labels)
}

// CounterValue reads back a counter, mainly for tests.
func CounterValue(name string, labels map[string]string) int64 {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.counters[name][canonLabels(labels)]
}

// Summary folds the raw series into the dashboard's health verdicts: how
// well the cache is absorbing traffic and how often each provider had to
// serve synthetic data.
type Summary struct {
	CacheLookups       int64            `json:"cacheLookups"`
	CacheHitRate       float64          `json:"cacheHitRate"`
	DegradedByProvider map[string]int64 `json:"degradedByProvider"`
	LiveSubscriptions  float64          `json:"liveSubscriptions"`
}

// labelValue extracts one label from a canonical "k=v,k=v" key.
func labelValue(labelsKey, name string) string {
	for _, pair := range strings.Split(labelsKey, ",") {
		if k, v, found := strings.Cut(pair, "="); found && k == name {
			return v
		}
	}
	return ""
}

// summarize computes the rollup. Caller holds reg.mu.
func summarize() Summary {
	var hits, misses, expired int64
	for _, v := range reg.counters["cache_hit_total"] {
		hits += v
	}
	for _, v := range reg.counters["cache_miss_total"] {
		misses += v
	}
	for _, v := range reg.counters["cache_expired_total"] {
		expired += v
	}

	s := Summary{
		CacheLookups:       hits + misses + expired,
		DegradedByProvider: map[string]int64{},
		LiveSubscriptions:  reg.gauges["realtime_subscriptions"][""],
	}
	if s.CacheLookups > 0 {
		s.CacheHitRate = float64(hits) / float64(s.CacheLookups)
	}
	for labelsKey, v := range reg.counters["provider_degraded_total"] {
		if provider := labelValue(labelsKey, "provider"); provider != "" {
			s.DegradedByProvider[provider] += v
		}
	}
	return s
}

// Basic JSON dump for quick checks (not Prometheus format on purpose).
// The summary block is derived on each request, never stored.
func Handler() http.Handler {
	type dump struct {
		Summary  Summary                         `json:"summary"`
		Counters map[string]map[string]int64     `json:"counters"`
		Gauges   map[string]map[string]float64   `json:"gauges"`
		Hist     map[string]map[string][]float64 `json:"histograms"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dump{
			Summary:  summarize(),
			Counters: reg.counters,
			Gauges:   reg.gauges,
			Hist:     reg.hist,
		})
	})
}
