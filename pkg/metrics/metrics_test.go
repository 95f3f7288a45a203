package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()

	c := r.Counter("jobs_total", "Total jobs.")
	c.Inc()
	c.Add(4)
	if got := c.Value(); got != 5 {
		t.Fatalf("counter value = %d, want 5", got)
	}
	if again := r.Counter("jobs_total", ""); again != c {
		t.Fatal("expected the same counter instance on re-registration")
	}

	g := r.Gauge("queue_depth", "Pending items.")
	g.Set(10)
	g.Dec()
	if got := g.Value(); got != 9 {
		t.Fatalf("gauge value = %d, want 9", got)
	}
}

func TestWithLabels(t *testing.T) {
	got := WithLabels("tasks_total", "subject", "tasks.health", "outcome", "ok")
	want := `tasks_total{subject="tasks.health",outcome="ok"}`
	if got != want {
		t.Fatalf("WithLabels = %q, want %q", got, want)
	}
	// Odd key/value count falls back to the bare name.
	if got := WithLabels("tasks_total", "subject"); got != "tasks_total" {
		t.Fatalf("WithLabels with odd pairs = %q", got)
	}
}

func TestLabeledCountersRenderUnderOneFamily(t *testing.T) {
	r := New()
	r.Counter(WithLabels("tasks_total", "outcome", "ok"), "Task outcomes.").Add(3)
	r.Counter(WithLabels("tasks_total", "outcome", "error"), "").Inc()

	out := r.Render()
	if n := strings.Count(out, "# TYPE tasks_total counter"); n != 1 {
		t.Fatalf("want one TYPE line for tasks_total, got %d in:\n%s", n, out)
	}
	for _, line := range []string{
		`tasks_total{outcome="ok"} 3`,
		`tasks_total{outcome="error"} 1`,
	} {
		if !strings.Contains(out, line) {
			t.Fatalf("render missing %q:\n%s", line, out)
		}
	}
}

func TestHistogramRender(t *testing.T) {
	r := New()
	h := r.Histogram("task_seconds", "Task durations.", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(2)
	h.Observe(100) // beyond the last bucket, counted only in +Inf

	out := r.Render()
	for _, line := range []string{
		`task_seconds_bucket{le="0.1"} 1`,
		`task_seconds_bucket{le="1"} 2`,
		`task_seconds_bucket{le="10"} 3`,
		`task_seconds_bucket{le="+Inf"} 4`,
		`task_seconds_count 4`,
	} {
		if !strings.Contains(out, line) {
			t.Fatalf("render missing %q:\n%s", line, out)
		}
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	r := New()
	r.Counter("up", "").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "up 1") {
		t.Fatalf("body missing counter:\n%s", rec.Body.String())
	}
}
