package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/pagelift/backend/internal/domain/cache"
	"github.com/pagelift/pagelift/backend/internal/domain/fetch"
	"github.com/pagelift/pagelift/backend/internal/domain/metrics"
	"github.com/pagelift/pagelift/backend/internal/domain/optimize"
	"github.com/pagelift/pagelift/backend/internal/shared/errs"
)

const testPage = `<!DOCTYPE html>
<html><head>
	<title>Test page</title>
	<link rel="stylesheet" href="/main.css">
	<style>body { background: url('bg.png'); }</style>
</head><body>
	<h1 style="color:red">Heavy page</h1>
	<img src="/one.jpg" alt="one">
	<img src="/two.png">
	<img alt="no source">
	<video src="/clip.mp4"></video>
	<p>Readable content that survives optimization.</p>
</body></html>`

func newTestEngine(t *testing.T, handler http.Handler) (*Engine, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	fetcher := fetch.NewClient(fetch.Config{Timeout: 5 * time.Second})
	e := New(fetcher, cache.New(0), metrics.NewHistory(), nil, nil)
	return e, srv.URL
}

func servePage(page string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	})
}

func TestOptimizeEndToEnd(t *testing.T) {
	e, url := newTestEngine(t, servePage(testPage))

	result, err := e.Optimize(context.Background(), url, optimize.DefaultOptions())
	require.NoError(t, err)

	assert.False(t, result.Cached)
	assert.Equal(t, 2, result.Metrics.ImagesRemoved, "only images with a resolved source count")
	assert.Equal(t, 1, result.Metrics.VideosRemoved)
	assert.Positive(t, result.Metrics.CSSRemoved)

	out, err := goquery.NewDocumentFromReader(strings.NewReader(result.HTML))
	require.NoError(t, err)
	assert.Zero(t, out.Find("style").Length(), "optimized output carries no style elements")
	assert.Zero(t, out.Find(`link[rel="stylesheet"]`).Length())
	assert.Contains(t, result.HTML, "Readable content that survives optimization.")
}

func TestOptimizeServesCacheOnRepeat(t *testing.T) {
	hits := 0
	e, url := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(testPage))
	}))

	first, err := e.Optimize(context.Background(), url, optimize.DefaultOptions())
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := e.Optimize(context.Background(), url, optimize.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, 1, hits, "cached result served without re-fetching")
}

func TestOptimizeCSSModeCachesSeparately(t *testing.T) {
	e, url := newTestEngine(t, servePage(testPage))

	withCSS := optimize.DefaultOptions()
	withCSS.RemoveCSS = false

	first, err := e.Optimize(context.Background(), url, optimize.DefaultOptions())
	require.NoError(t, err)
	second, err := e.Optimize(context.Background(), url, withCSS)
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.False(t, second.Cached, "different css mode misses the cache")
}

func TestOptimizeRejectsInvalidURL(t *testing.T) {
	e, _ := newTestEngine(t, servePage(testPage))

	for _, raw := range []string{"", "not a url", "ftp://example.com"} {
		_, err := e.Optimize(context.Background(), raw, optimize.DefaultOptions())
		require.Error(t, err, raw)
		assert.Equal(t, errs.InvalidInput, errs.KindOf(err), raw)
	}
}

func TestOptimizeFailedFetchNeverWritesCache(t *testing.T) {
	e, url := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := e.Optimize(context.Background(), url, optimize.DefaultOptions())
	require.Error(t, err)
	assert.Zero(t, e.cache.Len(), "failed requests must not populate the cache")
}

func TestOptimizeErrorPageWithBodyIsOptimized(t *testing.T) {
	e, url := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`<html><body><img src="/gone.jpg"><p>not found, but pretty</p></body></html>`))
	}))

	result, err := e.Optimize(context.Background(), url, optimize.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metrics.ImagesRemoved)
	assert.Contains(t, result.HTML, "not found, but pretty")
}
