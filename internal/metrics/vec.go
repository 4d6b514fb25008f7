package metrics

import (
	"sort"
	"strings"
	"sync"
)

var defaultLatencyBuckets = []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// labelKey builds a stable map key from a label set.
func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(0)
	}
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

type counterEntry struct {
	labels map[string]string
	value  int64
}

// counterVec is a labelled counter family.
type counterVec struct {
	mu      sync.Mutex
	entries map[string]*counterEntry
}

func newCounterVec() *counterVec {
	return &counterVec{entries: make(map[string]*counterEntry)}
}

func (cv *counterVec) inc(labels map[string]string) {
	key := labelKey(labels)
	cv.mu.Lock()
	defer cv.mu.Unlock()
	e, ok := cv.entries[key]
	if !ok {
		e = &counterEntry{labels: copyLabels(labels)}
		cv.entries[key] = e
	}
	e.value++
}

// snapshot returns a copy of every series sorted by label key.
func (cv *counterVec) snapshot() []counterEntry {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	keys := make([]string, 0, len(cv.entries))
	for k := range cv.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]counterEntry, 0, len(keys))
	for _, k := range keys {
		e := cv.entries[k]
		out = append(out, counterEntry{labels: copyLabels(e.labels), value: e.value})
	}
	return out
}

type histogram struct {
	labels  map[string]string
	buckets []float64
	counts  []int64 // per bucket, non-cumulative
	sum     float64
	count   int64
}

// histogramVec is a labelled histogram family with shared bucket bounds.
type histogramVec struct {
	mu      sync.Mutex
	buckets []float64
	series  map[string]*histogram
}

func newHistogramVec(buckets []float64) *histogramVec {
	return &histogramVec{buckets: buckets, series: make(map[string]*histogram)}
}

func (hv *histogramVec) observe(labels map[string]string, v float64) {
	key := labelKey(labels)
	hv.mu.Lock()
	defer hv.mu.Unlock()
	h, ok := hv.series[key]
	if !ok {
		h = &histogram{
			labels:  copyLabels(labels),
			buckets: hv.buckets,
			counts:  make([]int64, len(hv.buckets)),
		}
		hv.series[key] = h
	}
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
			break
		}
	}
	h.sum += v
	h.count++
}

func (hv *histogramVec) snapshot() []histogram {
	hv.mu.Lock()
	defer hv.mu.Unlock()
	keys := make([]string, 0, len(hv.series))
	for k := range hv.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]histogram, 0, len(keys))
	for _, k := range keys {
		h := hv.series[k]
		counts := make([]int64, len(h.counts))
		copy(counts, h.counts)
		out = append(out, histogram{
			labels:  copyLabels(h.labels),
			buckets: h.buckets,
			counts:  counts,
			sum:     h.sum,
			count:   h.count,
		})
	}
	return out
}
