package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// scalar is one unlabelled series in the exposition.
type scalar struct {
	name, help, kind string
	value            string
}

// PrometheusHandler serves the collector in Prometheus text exposition
// format 0.0.4. The format is written directly; no client library is
// involved.
func PrometheusHandler(collector *Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		writeExposition(&b, collector)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(b.String()))
	}
}

func writeExposition(b *strings.Builder, c *Collector) {
	stats := c.Stats()
	ints := func(v int64) string { return strconv.FormatInt(v, 10) }
	floats := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

	scalars := []scalar{
		{"llmgateway_generations_total", "Total number of successful generations.", "counter", ints(stats.Generations)},
		{"llmgateway_generation_failures_total", "Total number of failed generations.", "counter", ints(stats.Failures)},
		{"llmgateway_tokens_in_total", "Total number of input tokens billed.", "counter", ints(stats.TokensIn)},
		{"llmgateway_tokens_out_total", "Total number of output tokens billed.", "counter", ints(stats.TokensOut)},
		{"llmgateway_cost_usd_total", "Total cost in USD.", "counter", floats(stats.CostUSD)},
		{"llmgateway_estimated_usage_total", "Usage records whose token counts were estimated.", "counter", ints(stats.EstimatedRecords)},
		{"llmgateway_active_generations", "Number of generations currently in flight.", "gauge", ints(stats.ActiveGenerations)},
		{"llmgateway_uptime_seconds", "Number of seconds since the service started.", "gauge", floats(time.Since(c.startTime).Seconds())},
	}
	for _, s := range scalars {
		writeHeader(b, s.name, s.help, s.kind)
		fmt.Fprintf(b, "%s %s\n", s.name, s.value)
	}

	if entries := c.providerRequests.snapshot(); len(entries) > 0 {
		const name = "llmgateway_provider_requests_total"
		writeHeader(b, name, "Generations per provider, family, and outcome.", "counter")
		for _, e := range entries {
			fmt.Fprintf(b, "%s%s %d\n", name, formatLabels(e.labels), e.value)
		}
	}

	if hs := c.latency.snapshot(); len(hs) > 0 {
		const name = "llmgateway_generation_duration_seconds"
		writeHeader(b, name, "Generation duration in seconds by provider and family.", "histogram")
		for _, h := range hs {
			var cumulative int64
			for i, bound := range h.buckets {
				cumulative += h.counts[i]
				fmt.Fprintf(b, "%s_bucket%s %d\n", name, formatLabels(h.labels, "le", floats(bound)), cumulative)
			}
			fmt.Fprintf(b, "%s_bucket%s %d\n", name, formatLabels(h.labels, "le", "+Inf"), h.count)
			fmt.Fprintf(b, "%s_sum%s %s\n", name, formatLabels(h.labels), floats(h.sum))
			fmt.Fprintf(b, "%s_count%s %d\n", name, formatLabels(h.labels), h.count)
		}
	}
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

// labelEscaper applies the exposition-format escaping for label values.
var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// formatLabels renders labels sorted by name, followed by any extra
// name/value pairs in the order given (used for the histogram "le").
func formatLabels(labels map[string]string, extra ...string) string {
	if len(labels) == 0 && len(extra) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	sep := ""
	for _, k := range keys {
		fmt.Fprintf(&b, `%s%s="%s"`, sep, k, labelEscaper.Replace(labels[k]))
		sep = ","
	}
	for i := 0; i+1 < len(extra); i += 2 {
		fmt.Fprintf(&b, `%s%s="%s"`, sep, extra[i], labelEscaper.Replace(extra[i+1]))
		sep = ","
	}
	b.WriteByte('}')
	return b.String()
}
