package metrics

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// History stores reported metrics keyed by URL. Entries are overwritten on
// re-report; there is no retention bound beyond process lifetime.
type History struct {
	mu      sync.RWMutex
	entries map[string]Metrics
}

// Summary aggregates gain statistics across all reported runs.
type Summary struct {
	Count            int     `json:"count"`
	MeanGainPercent  float64 `json:"meanGainPercent"`
	MedianGain       float64 `json:"medianGainPercent"`
	P95Gain          float64 `json:"p95GainPercent"`
	TotalBytesSaved  int     `json:"totalBytesSaved"`
	MeanLoadTimeGain float64 `json:"meanLoadTimeReductionMs"`
}

// NewHistory creates an empty metrics history.
func NewHistory() *History {
	return &History{entries: make(map[string]Metrics)}
}

// Store records metrics for a URL, replacing any prior report.
func (h *History) Store(url string, m Metrics) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[url] = m
}

// Get returns the metrics reported for a URL.
func (h *History) Get(url string) (Metrics, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.entries[url]
	return m, ok
}

// Len returns the number of reported URLs.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Summarize computes aggregate statistics over every reported run.
func (h *History) Summarize() Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.entries) == 0 {
		return Summary{}
	}

	gains := make([]float64, 0, len(h.entries))
	reductions := make([]float64, 0, len(h.entries))
	bytesSaved := 0
	for _, m := range h.entries {
		gains = append(gains, m.PerformanceGainPercent)
		reductions = append(reductions, m.LoadTimeReduction)
		bytesSaved += m.SizeReduction
	}
	sort.Float64s(gains)

	return Summary{
		Count:            len(gains),
		MeanGainPercent:  stat.Mean(gains, nil),
		MedianGain:       stat.Quantile(0.5, stat.Empirical, gains, nil),
		P95Gain:          stat.Quantile(0.95, stat.Empirical, gains, nil),
		TotalBytesSaved:  bytesSaved,
		MeanLoadTimeGain: stat.Mean(reductions, nil),
	}
}
