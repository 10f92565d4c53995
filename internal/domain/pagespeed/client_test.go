package pagespeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/pagelift/backend/internal/shared/errs"
)

const sampleResponse = `{
	"lighthouseResult": {
		"categories": {"performance": {"score": 0.87}},
		"audits": {
			"first-contentful-paint": {"numericValue": 1200.5},
			"largest-contentful-paint": {"numericValue": 2400},
			"total-blocking-time": {"numericValue": 150}
		}
	}
}`

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://example.com", r.URL.Query().Get("url"))
		assert.Equal(t, "desktop", r.URL.Query().Get("strategy"))
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	report, err := c.Analyze(context.Background(), "https://example.com", "desktop")
	require.NoError(t, err)

	assert.InDelta(t, 87, report.PerformanceScore, 0.001)
	assert.InDelta(t, 1200.5, report.FCPMs, 0.001)
	assert.InDelta(t, 2400, report.LCPMs, 0.001)
	assert.InDelta(t, 150, report.TBTMs, 0.001)
	assert.Equal(t, "desktop", report.Strategy)
}

func TestAnalyzeDefaultsToMobile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mobile", r.URL.Query().Get("strategy"))
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	report, err := c.Analyze(context.Background(), "https://example.com", "tablet")
	require.NoError(t, err)
	assert.Equal(t, "mobile", report.Strategy)
}

func TestAnalyzeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	_, err := c.Analyze(context.Background(), "https://example.com", "mobile")
	require.Error(t, err)
	assert.Equal(t, errs.Unreachable, errs.KindOf(err))
}
