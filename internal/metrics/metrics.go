// Package metrics is a small Prometheus-text-format metrics registry.
package metrics

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Registry holds all application metrics.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram

	startTime time.Time
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Counter),
		gauges:    make(map[string]*Gauge),
		histos:    make(map[string]*Histogram),
		startTime: time.Now(),
	}
}

// Counter returns or creates a counter metric.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: name, help: help}
	r.counters[name] = c
	return c
}

// Gauge returns or creates a gauge metric.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name, help: help}
	r.gauges[name] = g
	return g
}

// Histogram returns or creates a histogram metric.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histos[name]; ok {
		return h
	}
	h := &Histogram{name: name, help: help, buckets: buckets, counts: make([]atomic.Int64, len(buckets))}
	r.histos[name] = h
	return h
}

// Export renders all metrics in Prometheus text exposition format.
// Metric families are emitted in name order so scrapes are diffable.
func (r *Registry) Export() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	writeGauge(&b, "go_memstats_alloc_bytes", "Bytes allocated and still in use.", float64(memStats.Alloc))
	writeGauge(&b, "go_memstats_heap_inuse_bytes", "Heap bytes in use.", float64(memStats.HeapInuse))
	writeGauge(&b, "go_memstats_sys_bytes", "Bytes obtained from the OS.", float64(memStats.Sys))
	writeGauge(&b, "go_goroutines", "Number of goroutines.", float64(runtime.NumGoroutine()))
	writeGauge(&b, "process_uptime_seconds", "Time since process start.", time.Since(r.startTime).Seconds())

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", c.name, c.help, c.name, c.name, c.value.Load())
	}
	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n", g.name, g.help, g.name, g.name, g.Get())
	}
	for _, name := range sortedKeys(r.histos) {
		r.histos[name].export(&b)
	}

	return b.String()
}

func writeGauge(b *strings.Builder, name, help string, v float64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n", name, help, name, name, v)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(v int64)  { c.value.Add(v) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a metric that can go up and down.
type Gauge struct {
	name string
	help string
	bits atomic.Uint64
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v float64) { g.bits.Store(math.Float64bits(v)) }

// Get returns the current gauge value.
func (g *Gauge) Get() float64 { return math.Float64frombits(g.bits.Load()) }

// Add adds v to the gauge.
func (g *Gauge) Add(v float64) {
	for {
		old := g.bits.Load()
		if g.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+v)) {
			return
		}
	}
}

func (g *Gauge) Inc() { g.Add(1) }
func (g *Gauge) Dec() { g.Add(-1) }

// Histogram tracks value distributions across fixed buckets.
type Histogram struct {
	name    string
	help    string
	buckets []float64
	counts  []atomic.Int64
	sum     atomic.Int64 // stored in microseconds for precision
	count   atomic.Int64
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i].Add(1)
		}
	}
	h.sum.Add(int64(v * 1e6))
	h.count.Add(1)
}

func (h *Histogram) export(b *strings.Builder) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
	for i, bound := range h.buckets {
		fmt.Fprintf(b, "%s_bucket{le=%q} %d\n", h.name, fmt.Sprintf("%g", bound), h.counts[i].Load())
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count.Load())
	fmt.Fprintf(b, "%s_sum %f\n", h.name, float64(h.sum.Load())/1e6)
	fmt.Fprintf(b, "%s_count %d\n", h.name, h.count.Load())
}

// ---------------------------------------------------------------------------
// Default Registry & Application Metrics
// ---------------------------------------------------------------------------

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

var (
	// Scrape metrics
	ScrapeRequests = defaultRegistry.Counter("erbilapi_scrape_requests_total", "Total flight-board fetch attempts")
	ScrapeErrors   = defaultRegistry.Counter("erbilapi_scrape_errors_total", "Total failed flight-board fetches")
	ScrapeRows     = defaultRegistry.Counter("erbilapi_scrape_rows_total", "Total flight rows extracted")
	ScrapeLatency  = defaultRegistry.Histogram("erbilapi_scrape_latency_seconds", "Flight-board fetch latency", []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15})

	// Cache metrics
	CacheHits        = defaultRegistry.Counter("erbilapi_cache_hits_total", "Snapshot reads served from the fresh cache")
	CacheRefreshes   = defaultRegistry.Counter("erbilapi_cache_refreshes_total", "Refresh protocol runs")
	CacheStaleServes = defaultRegistry.Counter("erbilapi_cache_stale_serves_total", "Snapshot reads degraded to stale data")
	CacheRecords     = defaultRegistry.Gauge("erbilapi_cache_records", "Records in the current snapshot")

	// HTTP metrics
	HTTPRequests = defaultRegistry.Counter("erbilapi_http_requests_total", "Total HTTP requests")
	HTTPLatency  = defaultRegistry.Histogram("erbilapi_http_latency_seconds", "HTTP request latency", []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15})
)
