package metrics

import (
	"math"
	"strconv"
	"sync/atomic"
	"time"
)

// Outcome labels for per-provider generation counters.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeUnsupported = "unsupported"
)

// Collector tracks live gateway metrics using atomic counters for lock-free,
// concurrent-safe updates.
type Collector struct {
	generations      int64
	failures         int64
	tokensIn         int64
	tokensOut        int64
	estimatedRecords int64

	// Float64 counter stored as uint64 via math.Float64bits/Float64frombits.
	costUSD uint64

	activeGenerations int64

	providerRequests *counterVec
	latency          *histogramVec

	startTime time.Time
}

// Stats is a point-in-time snapshot of the collector's counters.
type Stats struct {
	Uptime            string  `json:"uptime"`
	Generations       int64   `json:"generations"`
	Failures          int64   `json:"failures"`
	SuccessRate       float64 `json:"success_rate"`
	TokensIn          int64   `json:"tokens_in"`
	TokensOut         int64   `json:"tokens_out"`
	CostUSD           float64 `json:"cost_usd"`
	EstimatedRecords  int64   `json:"estimated_records"`
	ActiveGenerations int64   `json:"active_generations"`
}

// NewCollector creates a new Collector with all counters at zero and the
// start time set to now.
func NewCollector() *Collector {
	return &Collector{
		startTime:        time.Now(),
		costUSD:          math.Float64bits(0),
		providerRequests: newCounterVec(),
		latency:          newHistogramVec(defaultLatencyBuckets),
	}
}

// RecordGeneration counts one successful generation. A nil Collector is a
// no-op so callers need not guard optional metrics.
func (c *Collector) RecordGeneration(providerName, family string, tokensIn, tokensOut int, cost float64, estimated bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.generations, 1)
	atomic.AddInt64(&c.tokensIn, int64(tokensIn))
	atomic.AddInt64(&c.tokensOut, int64(tokensOut))
	addFloat64(&c.costUSD, cost)
	if estimated {
		atomic.AddInt64(&c.estimatedRecords, 1)
	}
	c.providerRequests.inc(map[string]string{"provider": providerName, "family": family, "outcome": OutcomeSuccess})
	c.latency.observe(map[string]string{"provider": providerName, "family": family}, elapsed.Seconds())
}

// RecordFailure counts one failed generation with the given outcome label.
func (c *Collector) RecordFailure(providerName, family, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.failures, 1)
	c.providerRequests.inc(map[string]string{"provider": providerName, "family": family, "outcome": outcome})
	if elapsed > 0 {
		c.latency.observe(map[string]string{"provider": providerName, "family": family}, elapsed.Seconds())
	}
}

// IncrementActive increments the in-flight generation gauge.
func (c *Collector) IncrementActive() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.activeGenerations, 1)
}

// DecrementActive decrements the in-flight generation gauge.
func (c *Collector) DecrementActive() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.activeGenerations, -1)
}

// Stats returns a point-in-time snapshot of all metrics.
func (c *Collector) Stats() *Stats {
	gens := atomic.LoadInt64(&c.generations)
	fails := atomic.LoadInt64(&c.failures)

	var successRate float64
	if total := gens + fails; total > 0 {
		successRate = float64(gens) / float64(total) * 100
	}

	return &Stats{
		Uptime:            formatDuration(time.Since(c.startTime)),
		Generations:       gens,
		Failures:          fails,
		SuccessRate:       successRate,
		TokensIn:          atomic.LoadInt64(&c.tokensIn),
		TokensOut:         atomic.LoadInt64(&c.tokensOut),
		CostUSD:           loadFloat64(&c.costUSD),
		EstimatedRecords:  atomic.LoadInt64(&c.estimatedRecords),
		ActiveGenerations: atomic.LoadInt64(&c.activeGenerations),
	}
}

// addFloat64 atomically adds delta to the float64 stored in addr using a CAS loop.
func addFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		newVal := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(newVal)) {
			return
		}
	}
}

// loadFloat64 atomically loads a float64 stored in addr.
func loadFloat64(addr *uint64) float64 {
	return math.Float64frombits(atomic.LoadUint64(addr))
}

// formatDuration produces a compact duration string like "2d 5h 32m".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Second).String()
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, strconv.Itoa(days)+"d")
	}
	if hours > 0 {
		parts = append(parts, strconv.Itoa(hours)+"h")
	}
	if minutes > 0 {
		parts = append(parts, strconv.Itoa(minutes)+"m")
	}
	if len(parts) == 0 {
		return "0m"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}
