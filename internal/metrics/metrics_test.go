package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	r := NewRegistry()
	c := r.Counter("test_total", "A test counter")
	c.Inc()
	c.Add(4)
	assert.Equal(t, int64(5), c.Value())

	// Same name returns the same counter.
	assert.Same(t, c, r.Counter("test_total", "A test counter"))
}

func TestGauge(t *testing.T) {
	r := NewRegistry()
	g := r.Gauge("test_gauge", "A test gauge")
	g.Set(2.5)
	g.Inc()
	g.Dec()
	g.Add(0.5)
	assert.InDelta(t, 3.0, g.Get(), 0.0001)
}

func TestHistogramBuckets(t *testing.T) {
	r := NewRegistry()
	h := r.Histogram("test_latency", "A test histogram", []float64{0.1, 1, 10})

	h.Observe(0.05) // all buckets
	h.Observe(0.5)  // le=1, le=10
	h.Observe(5)    // le=10
	h.Observe(50)   // +Inf only

	out := r.Export()
	assert.Contains(t, out, `test_latency_bucket{le="0.1"} 1`)
	assert.Contains(t, out, `test_latency_bucket{le="1"} 2`)
	assert.Contains(t, out, `test_latency_bucket{le="10"} 3`)
	assert.Contains(t, out, `test_latency_bucket{le="+Inf"} 4`)
	assert.Contains(t, out, "test_latency_count 4")
}

func TestExportFormat(t *testing.T) {
	r := NewRegistry()
	r.Counter("app_requests_total", "Requests served").Add(7)
	r.Gauge("app_records", "Cached records").Set(42)

	out := r.Export()
	require.NotEmpty(t, out)

	assert.Contains(t, out, "# HELP app_requests_total Requests served")
	assert.Contains(t, out, "# TYPE app_requests_total counter")
	assert.Contains(t, out, "app_requests_total 7")
	assert.Contains(t, out, "# TYPE app_records gauge")
	assert.Contains(t, out, "app_records 42")

	// Runtime families always present.
	assert.Contains(t, out, "go_goroutines")
	assert.Contains(t, out, "process_uptime_seconds")
}

func TestExportIsSortedByName(t *testing.T) {
	r := NewRegistry()
	r.Counter("zzz_total", "last").Inc()
	r.Counter("aaa_total", "first").Inc()

	out := r.Export()
	assert.Less(t, strings.Index(out, "aaa_total"), strings.Index(out, "zzz_total"))
}
