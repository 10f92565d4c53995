// Package engine orchestrates one server-side optimization run: validate,
// cache lookup, fetch, parse, census, optimize, snapshot, metrics, cache
// write.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pagelift/pagelift/backend/internal/domain/cache"
	"github.com/pagelift/pagelift/backend/internal/domain/fetch"
	"github.com/pagelift/pagelift/backend/internal/domain/metrics"
	"github.com/pagelift/pagelift/backend/internal/domain/optimize"
	"github.com/pagelift/pagelift/backend/internal/domain/snapshot"
	"github.com/pagelift/pagelift/backend/internal/logging"
	"github.com/pagelift/pagelift/backend/internal/shared/id"
	"github.com/pagelift/pagelift/backend/internal/shared/utils"
)

// Recorder receives run outcomes for monitoring. Implementations must be
// safe for concurrent use.
type Recorder interface {
	CacheHit()
	CacheMiss()
	ObserveFetch(d time.Duration)
	OptimizationDone(bytesSaved int)
}

type nopRecorder struct{}

func (nopRecorder) CacheHit()                  {}
func (nopRecorder) CacheMiss()                 {}
func (nopRecorder) ObserveFetch(time.Duration) {}
func (nopRecorder) OptimizationDone(int)       {}

// Result is one completed optimization run.
type Result struct {
	URL     string          `json:"url"`
	HTML    string          `json:"optimizedHTML"`
	Metrics metrics.Metrics `json:"metrics"`
	Cached  bool            `json:"cached"`
}

// Engine wires the pipeline stages together. Stages hold no per-run state,
// so one Engine serves concurrent requests; the cache store is the only
// shared mutable piece.
type Engine struct {
	fetcher  *fetch.Client
	builder  *snapshot.Builder
	cache    *cache.Store
	history  *metrics.History
	recorder Recorder
	logger   *logging.Logger
}

// New creates an engine. recorder may be nil.
func New(fetcher *fetch.Client, store *cache.Store, history *metrics.History, recorder Recorder, logger *logging.Logger) *Engine {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		fetcher:  fetcher,
		builder:  snapshot.NewBuilder(),
		cache:    store,
		history:  history,
		recorder: recorder,
		logger:   logger,
	}
}

// Optimize runs the pipeline for one request. Cached results are served
// without re-fetching; failed fetches and parses never write cache entries.
//
// Two concurrent requests for the same uncached key may both fetch; the
// later cache write wins. Accepted race, not worth a per-key lock here.
func (e *Engine) Optimize(ctx context.Context, rawURL string, opts optimize.Options) (*Result, error) {
	parsed, err := utils.ValidateTargetURL(rawURL)
	if err != nil {
		return nil, err
	}
	normalized := utils.NormalizeURL(parsed)

	key := cache.Key{URL: normalized, CSSRemoval: opts.RemoveCSS}
	if entry, ok := e.cache.Get(key); ok {
		e.recorder.CacheHit()
		return &Result{
			URL:     normalized,
			HTML:    entry.Artifact.HTML,
			Metrics: entry.Metrics,
			Cached:  true,
		}, nil
	}
	e.recorder.CacheMiss()

	runID := id.NewRunID()
	log := e.logger.With(zap.String("run_id", runID.String()), zap.String("url", normalized))

	fetched, err := e.fetcher.FetchPage(ctx, normalized)
	if err != nil {
		log.Warn("page fetch failed", zap.Error(err))
		return nil, err
	}
	e.recorder.ObserveFetch(fetched.Elapsed)

	doc, err := fetch.ParseDocument(fetched)
	if err != nil {
		log.Warn("parse failed", zap.Error(err))
		return nil, err
	}

	baseline := metrics.Baseline{
		LoadTimeMs:     float64(fetched.Elapsed.Milliseconds()),
		HTMLByteSize:   len(fetched.Body),
		ResourceCounts: metrics.CountResources(doc.Get(0)),
		CapturedAt:     time.Now(),
	}

	// The optimizer carries a CSS stash, so each run gets its own.
	var optimizer optimize.Optimizer = optimize.NewDocumentOptimizer()
	counts, err := optimizer.Apply(doc, opts)
	if err != nil {
		log.Warn("optimization failed", zap.Error(err))
		return nil, err
	}

	artifact := e.builder.Build(doc)

	// Load-time estimate for the server runtime: one millisecond per KiB
	// stripped off the baseline. A proxy, not a measurement.
	afterLoad := metrics.EstimateLoadTime(baseline.LoadTimeMs, baseline.HTMLByteSize-artifact.ByteSize)
	m := metrics.Derive(baseline, metrics.Measurement{
		LoadTimeMs: afterLoad,
		ByteSize:   artifact.ByteSize,
	}, metrics.Removals{
		Images: counts.Images,
		CSS:    counts.CSS,
		Videos: counts.Videos,
		Fonts:  counts.Fonts,
	})

	if err := e.cache.Put(key, artifact, m); err != nil {
		// A failed cache write degrades to uncached service, nothing more.
		log.Warn("cache write failed", zap.Error(err))
	}
	if e.history != nil {
		e.history.Store(normalized, m)
	}
	e.recorder.OptimizationDone(m.SizeReduction)

	log.Info("optimization complete",
		zap.Int("images_removed", m.ImagesRemoved),
		zap.Int("css_removed", m.CSSRemoved),
		zap.Int("size_reduction", m.SizeReduction),
		zap.Float64("gain_percent", m.PerformanceGainPercent),
	)

	return &Result{
		URL:     normalized,
		HTML:    artifact.HTML,
		Metrics: m,
		Cached:  false,
	}, nil
}
