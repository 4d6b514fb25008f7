package metrics

import (
	"math"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewCollector_Defaults(t *testing.T) {
	c := NewCollector()

	stats := c.Stats()
	if stats.Generations != 0 {
		t.Errorf("Generations: got %d, want 0", stats.Generations)
	}
	if stats.CostUSD != 0 {
		t.Errorf("CostUSD: got %f, want 0", stats.CostUSD)
	}
	if stats.ActiveGenerations != 0 {
		t.Errorf("ActiveGenerations: got %d, want 0", stats.ActiveGenerations)
	}
	if stats.SuccessRate != 0 {
		t.Errorf("SuccessRate: got %f, want 0", stats.SuccessRate)
	}
}

func TestCollector_RecordGeneration(t *testing.T) {
	c := NewCollector()

	c.RecordGeneration("openai", "openai", 100, 200, 0.00055, false, 1500*time.Millisecond)
	c.RecordGeneration("gemini", "gemini", 10, 20, 0.000055, true, 300*time.Millisecond)

	stats := c.Stats()
	if stats.Generations != 2 {
		t.Errorf("Generations: got %d, want 2", stats.Generations)
	}
	if stats.TokensIn != 110 {
		t.Errorf("TokensIn: got %d, want 110", stats.TokensIn)
	}
	if stats.TokensOut != 220 {
		t.Errorf("TokensOut: got %d, want 220", stats.TokensOut)
	}
	if math.Abs(stats.CostUSD-0.000605) > 1e-12 {
		t.Errorf("CostUSD: got %g, want 0.000605", stats.CostUSD)
	}
	if stats.EstimatedRecords != 1 {
		t.Errorf("EstimatedRecords: got %d, want 1", stats.EstimatedRecords)
	}
	if stats.SuccessRate != 100 {
		t.Errorf("SuccessRate: got %f, want 100", stats.SuccessRate)
	}
}

func TestCollector_RecordFailure(t *testing.T) {
	c := NewCollector()

	c.RecordGeneration("openai", "openai", 1, 1, 0, false, time.Second)
	c.RecordFailure("openai", "openai", OutcomeFailure, time.Second)
	c.RecordFailure("legacy", "unsupported", OutcomeUnsupported, 0)

	stats := c.Stats()
	if stats.Failures != 2 {
		t.Errorf("Failures: got %d, want 2", stats.Failures)
	}
	if math.Abs(stats.SuccessRate-100.0/3) > 1e-9 {
		t.Errorf("SuccessRate: got %f, want 33.33", stats.SuccessRate)
	}

	snap := c.providerRequests.snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 provider request combos, got %d", len(snap))
	}

	// Unsupported failures have no elapsed time and record no latency.
	if got := len(c.latency.snapshot()); got != 1 {
		t.Errorf("expected 1 latency series, got %d", got)
	}
}

func TestCollector_Latency(t *testing.T) {
	c := NewCollector()

	c.RecordGeneration("openai", "openai", 0, 0, 0, false, 1500*time.Millisecond)
	c.RecordGeneration("openai", "openai", 0, 0, 0, false, 2500*time.Millisecond)

	snap := c.latency.snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 latency series, got %d", len(snap))
	}

	h := snap[0]
	if h.count != 2 {
		t.Errorf("count: got %d, want 2", h.count)
	}
	if h.sum != 4.0 {
		t.Errorf("sum: got %f, want 4.0", h.sum)
	}
}

func TestCollector_ActiveGenerations(t *testing.T) {
	c := NewCollector()

	c.IncrementActive()
	c.IncrementActive()

	stats := c.Stats()
	if stats.ActiveGenerations != 2 {
		t.Errorf("ActiveGenerations after 2 increments: got %d, want 2", stats.ActiveGenerations)
	}

	c.DecrementActive()

	stats = c.Stats()
	if stats.ActiveGenerations != 1 {
		t.Errorf("ActiveGenerations after decrement: got %d, want 1", stats.ActiveGenerations)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.RecordGeneration("p", "openai", 1, 1, 0, false, time.Second)
	c.RecordFailure("p", "openai", OutcomeFailure, time.Second)
	c.IncrementActive()
	c.DecrementActive()
}

func TestCollector_Uptime(t *testing.T) {
	c := NewCollector()
	stats := c.Stats()
	if stats.Uptime == "" {
		t.Error("Uptime is empty")
	}
}

func TestCollector_ConcurrentRecords(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordGeneration("openai", "openai", 10, 20, 0.001, false, time.Millisecond)
		}()
	}
	wg.Wait()

	stats := c.Stats()
	if stats.Generations != 100 {
		t.Errorf("Generations after 100 concurrent: got %d, want 100", stats.Generations)
	}
	if math.Abs(stats.CostUSD-0.1) > 1e-9 {
		t.Errorf("CostUSD after 100 concurrent: got %g, want 0.1", stats.CostUSD)
	}
}

func TestPrometheusHandler(t *testing.T) {
	c := NewCollector()
	c.RecordGeneration("openai", "openai", 10, 20, 0.001, false, 200*time.Millisecond)
	c.RecordFailure("gemini", "gemini", OutcomeFailure, time.Second)

	rec := httptest.NewRecorder()
	PrometheusHandler(c)(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"llmgateway_generations_total 1",
		"llmgateway_generation_failures_total 1",
		"llmgateway_tokens_in_total 10",
		`llmgateway_provider_requests_total{family="gemini",outcome="failure",provider="gemini"} 1`,
		`llmgateway_generation_duration_seconds_bucket{family="openai",provider="openai",le="0.25"} 1`,
		`llmgateway_generation_duration_seconds_count{family="openai",provider="openai"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{2*time.Hour + 30*time.Minute, "2h 30m"},
		{25*time.Hour + 15*time.Minute, "1d 1h 15m"},
	}

	for _, tt := range tests {
		got := formatDuration(tt.d)
		if got != tt.want {
			t.Errorf("formatDuration(%v): got %q, want %q", tt.d, got, tt.want)
		}
	}
}
