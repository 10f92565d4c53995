// Package metrics derives before/after performance measurements for an
// optimization run.
package metrics

import "time"

// Census counts the strippable resources present in a document.
type Census struct {
	Images int `json:"images"`
	CSS    int `json:"css"`
	Videos int `json:"videos"`
	Fonts  int `json:"fonts"`
}

// Baseline is the "before" measurement, captured once per document before
// any optimization mutation destroys the original numbers.
type Baseline struct {
	LoadTimeMs     float64   `json:"loadTimeMs"`
	HTMLByteSize   int       `json:"htmlByteSize"`
	ResourceCounts Census    `json:"resourceCounts"`
	CapturedAt     time.Time `json:"capturedAt"`
}

// Measurement is the "after" state of an optimized artifact.
type Measurement struct {
	LoadTimeMs float64
	ByteSize   int
}

// Removals carries per-class removal counts into the derived metrics.
// The client runtime counts live nodes at mutation time and the server
// runtime counts nodes in a static parse tree; the two mechanisms are
// independent and are not required to agree.
type Removals struct {
	Images int
	CSS    int
	Videos int
	Fonts  int
}

// Metrics is derived from a (baseline, measurement) pair, never hand-edited.
// Reduction fields are signed and may be negative when optimization grows
// the page (injected reset styles, for instance); only the display gain is
// clamped.
type Metrics struct {
	BeforeLoadTime         float64 `json:"beforeLoadTime"`
	AfterLoadTime          float64 `json:"afterLoadTime"`
	LoadTimeReduction      float64 `json:"loadTimeReduction"`
	BeforeSize             int     `json:"beforeSize"`
	AfterSize              int     `json:"afterSize"`
	SizeReduction          int     `json:"sizeReduction"`
	ImagesRemoved          int     `json:"imagesRemoved"`
	CSSRemoved             int     `json:"cssRemoved"`
	VideosRemoved          int     `json:"videosRemoved"`
	FontsRemoved           int     `json:"fontsRemoved"`
	PerformanceGainPercent float64 `json:"performanceGainPercent"`
}

// Derive computes metrics from a baseline and an after-measurement.
func Derive(baseline Baseline, after Measurement, removed Removals) Metrics {
	m := Metrics{
		BeforeLoadTime:    baseline.LoadTimeMs,
		AfterLoadTime:     after.LoadTimeMs,
		LoadTimeReduction: baseline.LoadTimeMs - after.LoadTimeMs,
		BeforeSize:        baseline.HTMLByteSize,
		AfterSize:         after.ByteSize,
		SizeReduction:     baseline.HTMLByteSize - after.ByteSize,
		ImagesRemoved:     removed.Images,
		CSSRemoved:        removed.CSS,
		VideosRemoved:     removed.Videos,
		FontsRemoved:      removed.Fonts,
	}

	// Clamped to zero for display only; LoadTimeReduction keeps its sign
	// for diagnostic use.
	if baseline.LoadTimeMs > 0 {
		gain := (m.LoadTimeReduction / baseline.LoadTimeMs) * 100
		if gain > 0 {
			m.PerformanceGainPercent = gain
		}
	}

	return m
}

// BaselineOrFallback returns the recorded baseline when one exists. When the
// document was never observed with optimization off, the measurement at the
// moment optimization starts stands in as the baseline. That "before" number
// may itself be partially optimized; callers must tolerate the gap.
func BaselineOrFallback(recorded *Baseline, now Measurement, census Census) Baseline {
	if recorded != nil {
		return *recorded
	}
	return Baseline{
		LoadTimeMs:     now.LoadTimeMs,
		HTMLByteSize:   now.ByteSize,
		ResourceCounts: census,
		CapturedAt:     time.Now(),
	}
}

// EstimateLoadTime is the server runtime's load-time proxy: one millisecond
// saved per KiB stripped, floored at zero. A rough approximation, not a
// measurement; a timed re-fetch of the optimized content would be the
// higher-fidelity replacement.
func EstimateLoadTime(baselineMs float64, sizeReduction int) float64 {
	estimated := baselineMs - float64(sizeReduction)/1024
	if estimated < 0 {
		return 0
	}
	return estimated
}
