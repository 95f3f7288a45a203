// Package metrics is a small Prometheus-compatible registry for the
// pipeline's counters, gauges, and histograms. Metrics are rendered in
// the text exposition format and served on an HTTP /metrics endpoint.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets cover the durations this pipeline produces: a single paced
// page fetch lands under a second, one vehicle's crawl takes seconds, and a
// full batch crawl or classification pass can run for minutes.
var DefaultBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// Counter is a monotonically increasing counter.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// Gauge can go up and down.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// Histogram tracks the distribution of observed values in fixed buckets.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []uint64 // per-bucket, made cumulative at render time
	sum    float64
	total  uint64
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.total++
	for i, b := range h.bounds {
		if v <= b {
			h.counts[i]++
			return
		}
	}
	// Beyond the last bound; counted only in +Inf.
}

// Since observes the duration elapsed since t, in seconds.
func (h *Histogram) Since(t time.Time) {
	h.Observe(time.Since(t).Seconds())
}

func (h *Histogram) snapshot() (bounds []float64, counts []uint64, sum float64, total uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts = make([]uint64, len(h.counts))
	copy(counts, h.counts)
	return h.bounds, counts, h.sum, h.total
}

// kind discriminates what a family's series hold.
type kind int

const (
	kindCounter kind = iota
	kindGauge
	kindHistogram
)

func (k kind) String() string {
	switch k {
	case kindCounter:
		return "counter"
	case kindGauge:
		return "gauge"
	default:
		return "histogram"
	}
}

// family groups every labeled series of one metric name, so the name gets a
// single HELP/TYPE header no matter how many label combinations exist.
type family struct {
	name   string
	kind   kind
	help   string
	series map[string]any // label string -> *Counter, *Gauge, or *Histogram
}

func (f *family) sortedLabels() []string {
	keys := make([]string, 0, len(f.series))
	for k := range f.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Registry holds metric families in registration order.
type Registry struct {
	mu       sync.Mutex
	families map[string]*family
	order    []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{families: make(map[string]*family)}
}

// get returns the series for name, creating family and series as needed.
// The build callback constructs a fresh series value.
func (r *Registry) get(name, help string, k kind, build func() any) any {
	base, labels := splitName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.families[base]
	if !ok {
		f = &family{name: base, kind: k, series: map[string]any{}}
		r.families[base] = f
		r.order = append(r.order, base)
	}
	if help != "" && f.help == "" {
		f.help = help
	}
	s, ok := f.series[labels]
	if !ok {
		s = build()
		f.series[labels] = s
	}
	return s
}

// Counter returns (or creates) the counter for name. Labels are baked into
// the name via WithLabels, so each label combination is its own series.
func (r *Registry) Counter(name, help string) *Counter {
	return r.get(name, help, kindCounter, func() any { return &Counter{} }).(*Counter)
}

// Gauge returns (or creates) the gauge for name.
func (r *Registry) Gauge(name, help string) *Gauge {
	return r.get(name, help, kindGauge, func() any { return &Gauge{} }).(*Gauge)
}

// Histogram returns (or creates) the histogram for name. A nil buckets slice
// selects DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	return r.get(name, help, kindHistogram, func() any {
		bounds := make([]float64, len(buckets))
		copy(bounds, buckets)
		sort.Float64s(bounds)
		return &Histogram{bounds: bounds, counts: make([]uint64, len(bounds))}
	}).(*Histogram)
}

// WithLabels appends label pairs to a metric name:
// WithLabels("foo", "k", "v") renders as foo{k="v"}.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", kvs[i], kvs[i+1])
	}
	b.WriteByte('}')
	return b.String()
}

// splitName separates `foo{k="v"}` into base name and inner label string.
func splitName(name string) (base, labels string) {
	i := strings.IndexByte(name, '{')
	if i == -1 {
		return name, ""
	}
	return name[:i], strings.TrimSuffix(name[i+1:], "}")
}

// joinLabels merges a series' label string with extra pairs (the histogram
// le bound) and wraps the result in braces, or returns "" when there is
// nothing to emit.
func joinLabels(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "{" + strings.Join(kept, ",") + "}"
}

// Render produces the Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	for _, base := range r.order {
		f := r.families[base]
		if f.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", f.name, f.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", f.name, f.kind)

		for _, labels := range f.sortedLabels() {
			switch s := f.series[labels].(type) {
			case *Counter:
				fmt.Fprintf(&b, "%s%s %d\n", f.name, joinLabels(labels), s.Value())
			case *Gauge:
				fmt.Fprintf(&b, "%s%s %d\n", f.name, joinLabels(labels), s.Value())
			case *Histogram:
				bounds, counts, sum, total := s.snapshot()
				var cum uint64
				for i, bound := range bounds {
					cum += counts[i]
					le := fmt.Sprintf(`le="%g"`, bound)
					fmt.Fprintf(&b, "%s_bucket%s %d\n", f.name, joinLabels(labels, le), cum)
				}
				fmt.Fprintf(&b, "%s_bucket%s %d\n", f.name, joinLabels(labels, `le="+Inf"`), total)
				fmt.Fprintf(&b, "%s_sum%s %g\n", f.name, joinLabels(labels), sum)
				fmt.Fprintf(&b, "%s_count%s %d\n", f.name, joinLabels(labels), total)
			}
		}
	}
	return b.String()
}

// Handler serves the registry in the text exposition format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}

// Serve blocks serving /metrics on the given port.
func (r *Registry) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

// ServeAsync starts the metrics server in a goroutine. Errors are logged.
func (r *Registry) ServeAsync(port int) {
	go func() {
		if err := r.Serve(port); err != nil {
			slog.Error("metrics server stopped", "port", port, "error", err)
		}
	}()
}
