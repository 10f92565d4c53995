package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/pagelift/backend/internal/domain/cache"
	"github.com/pagelift/pagelift/backend/internal/domain/engine"
	"github.com/pagelift/pagelift/backend/internal/domain/fetch"
	"github.com/pagelift/pagelift/backend/internal/domain/metrics"
	"github.com/pagelift/pagelift/backend/internal/domain/pagespeed"
	"github.com/pagelift/pagelift/backend/internal/infrastructure/monitoring"
)

// One collector per test binary; prometheus registration is global.
var testMetrics = monitoring.NewMetrics()

const upstreamPage = `<html><head><title>t</title><link rel="stylesheet" href="/a.css"></head>
<body><img src="/pic.jpg"><p>body text</p></body></html>`

func newRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(upstreamPage))
	}))
	t.Cleanup(upstream.Close)

	fetcher := fetch.NewClient(fetch.Config{Timeout: 5 * time.Second})
	history := metrics.NewHistory()
	eng := engine.New(fetcher, cache.New(0), history, nil, nil)
	ps := pagespeed.NewClient(pagespeed.Config{Endpoint: upstream.URL})

	h := NewHandlers(eng, history, ps, testMetrics)

	router := gin.New()
	router.GET("/health", h.Health)
	router.POST("/api/optimize", h.Optimize)
	router.GET("/optimize", h.OptimizePage)
	router.POST("/api/metrics", h.StoreMetrics)
	router.GET("/api/metrics", h.GetMetrics)
	router.GET("/api/metrics/summary", h.MetricsSummary)
	router.GET("/api/pagespeed", h.PageSpeed)
	router.GET("/api/stats", h.Stats)
	return router, upstream.URL
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t)
	w := doJSON(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestOptimizeEndpoint(t *testing.T) {
	router, upstream := newRouter(t)

	w := doJSON(router, http.MethodPost, "/api/optimize", `{"url":"`+upstream+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result engine.Result
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Cached)
	assert.Equal(t, 1, result.Metrics.ImagesRemoved)
	assert.NotContains(t, result.HTML, "<style")
	assert.NotContains(t, result.HTML, `rel="stylesheet"`)
}

func TestOptimizeEndpointBadRequests(t *testing.T) {
	router, _ := newRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"missing url", `{}`},
		{"malformed url", `{"url":"::not-a-url"}`},
		{"non-http scheme", `{"url":"ftp://example.com"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/api/optimize", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestOptimizePageHTML(t *testing.T) {
	router, upstream := newRouter(t)

	w := doJSON(router, http.MethodGet, "/optimize?url="+upstream, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "body text")
}

func TestOptimizePageErrorIsHTML(t *testing.T) {
	router, _ := newRouter(t)

	w := doJSON(router, http.MethodGet, "/optimize?url=", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Optimization failed")
}

func TestMetricsStoreFetchRoundTrip(t *testing.T) {
	router, _ := newRouter(t)

	body := `{"url":"https://example.com","metrics":{"imagesRemoved":4,"performanceGainPercent":42}}`
	w := doJSON(router, http.MethodPost, "/api/metrics", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = doJSON(router, http.MethodGet, "/api/metrics?url=https://example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"imagesRemoved":4`)

	w = doJSON(router, http.MethodGet, "/api/metrics?url=https://unknown.example", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsStoreRejectsPartialBody(t *testing.T) {
	router, _ := newRouter(t)

	for _, body := range []string{`{}`, `{"url":"https://example.com"}`, `{"metrics":{}}`} {
		w := doJSON(router, http.MethodPost, "/api/metrics", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestMetricsSummary(t *testing.T) {
	router, _ := newRouter(t)

	doJSON(router, http.MethodPost, "/api/metrics", `{"url":"https://a.example","metrics":{"performanceGainPercent":50}}`)
	w := doJSON(router, http.MethodGet, "/api/metrics/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestPageSpeedRequiresValidURL(t *testing.T) {
	router, _ := newRouter(t)

	w := doJSON(router, http.MethodGet, "/api/pagespeed", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	router, _ := newRouter(t)

	w := doJSON(router, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cacheHits")
}
