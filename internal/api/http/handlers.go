// Package http exposes the optimization pipeline over the JSON API.
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pagelift/pagelift/backend/internal/domain/engine"
	"github.com/pagelift/pagelift/backend/internal/domain/metrics"
	"github.com/pagelift/pagelift/backend/internal/domain/optimize"
	"github.com/pagelift/pagelift/backend/internal/domain/pagespeed"
	"github.com/pagelift/pagelift/backend/internal/infrastructure/monitoring"
	"github.com/pagelift/pagelift/backend/internal/shared/errs"
	"github.com/pagelift/pagelift/backend/internal/shared/utils"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	engine    *engine.Engine
	history   *metrics.History
	pagespeed *pagespeed.Client
	metrics   *monitoring.Metrics
}

// NewHandlers creates a new handler set
func NewHandlers(eng *engine.Engine, history *metrics.History, ps *pagespeed.Client, mon *monitoring.Metrics) *Handlers {
	return &Handlers{
		engine:    eng,
		history:   history,
		pagespeed: ps,
		metrics:   mon,
	}
}

// optimizeRequest is the POST /api/optimize body. Absent option flags
// default to true, so a bare {"url": ...} request strips everything.
type optimizeRequest struct {
	URL          string `json:"url"`
	RemoveCSS    *bool  `json:"removeCSS"`
	RemoveImages *bool  `json:"removeImages"`
	RemoveVideos *bool  `json:"removeVideos"`
	RemoveFonts  *bool  `json:"removeFonts"`
}

func (r *optimizeRequest) options() optimize.Options {
	return optimize.Options{
		RemoveCSS:    orTrue(r.RemoveCSS),
		RemoveImages: orTrue(r.RemoveImages),
		RemoveVideos: orTrue(r.RemoveVideos),
		RemoveFonts:  orTrue(r.RemoveFonts),
	}
}

func orTrue(b *bool) bool {
	return b == nil || *b
}

// Health handles health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Optimize runs the pipeline for a JSON request
func (h *Handlers) Optimize(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be JSON with a url field.",
		})
		return
	}

	result, err := h.engine.Optimize(c.Request.Context(), req.URL, req.options())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// OptimizePage serves the fully-optimized page as raw HTML, all options on
func (h *Handlers) OptimizePage(c *gin.Context) {
	rawURL := c.Query("url")

	result, err := h.engine.Optimize(c.Request.Context(), rawURL, optimize.DefaultOptions())
	if err != nil {
		status := statusFor(err)
		c.Data(status, "text/html; charset=utf-8", []byte(errorPage(err)))
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(result.HTML))
}

// storeMetricsRequest is the POST /api/metrics body.
type storeMetricsRequest struct {
	URL     string           `json:"url"`
	Metrics *metrics.Metrics `json:"metrics"`
}

// StoreMetrics records client-reported metrics for a URL
func (h *Handlers) StoreMetrics(c *gin.Context) {
	var req storeMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" || req.Metrics == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Both url and metrics fields are required.",
		})
		return
	}

	h.history.Store(req.URL, *req.Metrics)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     req.URL,
	})
}

// GetMetrics returns stored metrics for a URL
func (h *Handlers) GetMetrics(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "url query parameter is required.",
		})
		return
	}

	m, ok := h.history.Get(url)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No metrics recorded for that URL.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":     url,
		"metrics": m,
	})
}

// MetricsSummary returns aggregate gain statistics across recorded runs
func (h *Handlers) MetricsSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.history.Summarize())
}

// PageSpeed proxies a lab measurement from the PageSpeed API
func (h *Handlers) PageSpeed(c *gin.Context) {
	rawURL := c.Query("url")
	if _, err := utils.ValidateTargetURL(rawURL); err != nil {
		respondError(c, err)
		return
	}

	report, err := h.pagespeed.Analyze(c.Request.Context(), rawURL, c.Query("strategy"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Stats returns the JSON view of service counters
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetSnapshot())
}

// respondError maps the error taxonomy onto HTTP statuses: invalid input is
// the caller's fault, everything else surfaces as an upstream failure.
func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error":   errorCode(err),
		"message": userMessage(err),
	})
}

func statusFor(err error) int {
	if errs.KindOf(err) == errs.InvalidInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	switch errs.KindOf(err) {
	case errs.InvalidInput:
		return "invalid_request"
	case errs.Timeout:
		return "fetch_timeout"
	case errs.Unreachable:
		return "fetch_failed"
	case errs.ParsingFailed:
		return "parse_failed"
	default:
		return "internal_error"
	}
}

func userMessage(err error) string {
	var appErr *errs.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "Something went wrong processing the request."
}
