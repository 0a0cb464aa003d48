package metrics

import "sync/atomic"

// CacheMetric counts hits and misses of a memoizing cache.
type CacheMetric struct {
	name   string
	hits   int64
	misses int64
}

func newCacheMetric(name string) *CacheMetric {
	return &CacheMetric{name: name}
}

// Hit records a cache hit.
func (m *CacheMetric) Hit() {
	if !enabled {
		return
	}
	atomic.AddInt64(&m.hits, 1)
}

// Miss records a cache miss.
func (m *CacheMetric) Miss() {
	if !enabled {
		return
	}
	atomic.AddInt64(&m.misses, 1)
}

// Name returns the metric name.
func (m *CacheMetric) Name() string {
	return m.name
}

// Stats returns a snapshot of the counters.
func (m *CacheMetric) Stats() CacheStats {
	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{Name: m.name, Hits: hits, Misses: misses, HitRate: rate}
}

// Reset clears the counters.
func (m *CacheMetric) Reset() {
	atomic.StoreInt64(&m.hits, 0)
	atomic.StoreInt64(&m.misses, 0)
}

// CacheStats holds a snapshot of cache counters.
type CacheStats struct {
	Name    string  `json:"name"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// FlatCacheStats tracks the flattened row cache.
var FlatCacheStats = newCacheMetric("flat_cache")

// AllCacheMetrics returns all registered cache metrics.
func AllCacheMetrics() []*CacheMetric {
	return []*CacheMetric{FlatCacheStats}
}

// AllCacheStats returns stats for cache metrics that saw any traffic.
func AllCacheStats() []CacheStats {
	out := make([]CacheStats, 0, 1)
	for _, m := range AllCacheMetrics() {
		if st := m.Stats(); st.Hits+st.Misses > 0 {
			out = append(out, st)
		}
	}
	return out
}

// Snapshot bundles every metric for JSON output.
type Snapshot struct {
	Timings []TimingStats `json:"timings"`
	Caches  []CacheStats  `json:"caches"`
}

// TakeSnapshot collects the current timing and cache stats.
func TakeSnapshot() Snapshot {
	return Snapshot{Timings: AllTimingStats(), Caches: AllCacheStats()}
}
