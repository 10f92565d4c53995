package metrics

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSignCorrectness(t *testing.T) {
	baseline := Baseline{LoadTimeMs: 3500, HTMLByteSize: 200_000}
	after := Measurement{LoadTimeMs: 450, ByteSize: 40_000}

	m := Derive(baseline, after, Removals{Images: 12, CSS: 4})

	assert.Equal(t, float64(3050), m.LoadTimeReduction)
	assert.Equal(t, 160_000, m.SizeReduction)
	assert.InDelta(t, 87.1, m.PerformanceGainPercent, 0.05)
	assert.Equal(t, 12, m.ImagesRemoved)
	assert.Equal(t, 4, m.CSSRemoved)
}

func TestDeriveRegressionKeepsSignClampsGain(t *testing.T) {
	baseline := Baseline{LoadTimeMs: 450, HTMLByteSize: 10_000}
	after := Measurement{LoadTimeMs: 500, ByteSize: 11_000}

	m := Derive(baseline, after, Removals{})

	// Raw reductions stay signed for diagnostics.
	assert.Equal(t, float64(-50), m.LoadTimeReduction)
	assert.Equal(t, -1000, m.SizeReduction)
	// Only the display metric is clamped.
	assert.Zero(t, m.PerformanceGainPercent)
}

func TestDeriveZeroBaselineLoadTime(t *testing.T) {
	m := Derive(Baseline{LoadTimeMs: 0}, Measurement{LoadTimeMs: 100}, Removals{})
	assert.Zero(t, m.PerformanceGainPercent)
}

func TestBaselineOrFallback(t *testing.T) {
	recorded := Baseline{LoadTimeMs: 1200, HTMLByteSize: 5000}
	got := BaselineOrFallback(&recorded, Measurement{LoadTimeMs: 99}, Census{})
	assert.Equal(t, recorded, got)

	// No recorded baseline: the at-start measurement stands in.
	fallback := BaselineOrFallback(nil, Measurement{LoadTimeMs: 800, ByteSize: 3000}, Census{Images: 2})
	assert.Equal(t, float64(800), fallback.LoadTimeMs)
	assert.Equal(t, 3000, fallback.HTMLByteSize)
	assert.Equal(t, 2, fallback.ResourceCounts.Images)
	assert.False(t, fallback.CapturedAt.IsZero())
}

func TestEstimateLoadTime(t *testing.T) {
	assert.Equal(t, float64(900), EstimateLoadTime(1000, 102400)) // 100 KiB -> 100ms
	assert.Zero(t, EstimateLoadTime(10, 102400), "estimate floors at zero")
}

func TestCountResources(t *testing.T) {
	page := `<html><head>
		<link rel="stylesheet" href="/a.css">
		<link rel="preload" as="font" href="/f.woff2">
		<style>p{}</style>
	</head><body>
		<img src="/a.jpg"><img src="/b.png"><img alt="no src">
		<video src="/v.mp4"></video>
		<iframe src="https://www.youtube.com/embed/x"></iframe>
		<iframe src="https://example.com/widget"></iframe>
	</body></html>`

	root, err := htmlquery.Parse(strings.NewReader(page))
	require.NoError(t, err)

	census := CountResources(root)
	assert.Equal(t, 2, census.Images)
	assert.Equal(t, 2, census.CSS)
	assert.Equal(t, 2, census.Videos, "video element plus youtube iframe only")
	assert.Equal(t, 1, census.Fonts)
}

func TestHistorySummarize(t *testing.T) {
	h := NewHistory()
	assert.Zero(t, h.Summarize().Count)

	h.Store("https://a.example", Metrics{PerformanceGainPercent: 80, LoadTimeReduction: 1000, SizeReduction: 50_000})
	h.Store("https://b.example", Metrics{PerformanceGainPercent: 40, LoadTimeReduction: 500, SizeReduction: 30_000})
	h.Store("https://b.example", Metrics{PerformanceGainPercent: 60, LoadTimeReduction: 700, SizeReduction: 40_000}) // overwrite

	s := h.Summarize()
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 70, s.MeanGainPercent, 0.001)
	assert.Equal(t, 90_000, s.TotalBytesSaved)
	assert.InDelta(t, 850, s.MeanLoadTimeGain, 0.001)

	got, ok := h.Get("https://b.example")
	assert.True(t, ok)
	assert.Equal(t, float64(60), got.PerformanceGainPercent)
}
