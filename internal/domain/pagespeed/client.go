// Package pagespeed proxies lab measurements from the Google PageSpeed
// Insights API for targets the optimizer has processed.
package pagespeed

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/pagelift/pagelift/backend/internal/shared/errs"
)

// DefaultEndpoint is the public PageSpeed Insights v5 runPagespeed URL.
const DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

// Report is the subset of the PageSpeed response the API surfaces.
type Report struct {
	URL              string  `json:"url"`
	Strategy         string  `json:"strategy"`
	PerformanceScore float64 `json:"performanceScore"`
	FCPMs            float64 `json:"firstContentfulPaintMs"`
	LCPMs            float64 `json:"largestContentfulPaintMs"`
	TBTMs            float64 `json:"totalBlockingTimeMs"`
	FetchedAt        string  `json:"fetchedAt"`
}

type apiResponse struct {
	LighthouseResult struct {
		Categories struct {
			Performance struct {
				Score float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
		Audits map[string]struct {
			NumericValue float64 `json:"numericValue"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

// Client calls the PageSpeed API.
type Client struct {
	resty    *resty.Client
	endpoint string
	apiKey   string
}

// Config tunes the PageSpeed client. An empty APIKey still works within
// Google's anonymous quota.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// NewClient creates a PageSpeed client.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &Client{
		resty:    resty.New().SetTimeout(cfg.Timeout),
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
	}
}

// Analyze runs a lab measurement for targetURL. Strategy is "mobile" or
// "desktop"; anything else defaults to mobile.
func (c *Client) Analyze(ctx context.Context, targetURL, strategy string) (*Report, error) {
	if strategy != "desktop" {
		strategy = "mobile"
	}

	req := c.resty.R().
		SetContext(ctx).
		SetQueryParam("url", targetURL).
		SetQueryParam("strategy", strategy)
	if c.apiKey != "" {
		req.SetQueryParam("key", c.apiKey)
	}

	resp, err := req.Get(c.endpoint)
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.Unreachable,
			Message: "PageSpeed analysis is unavailable right now.",
			Cause:   err,
		}
	}
	if resp.StatusCode() >= 400 {
		return nil, &errs.AppError{
			Kind:           errs.Unreachable,
			UpstreamStatus: resp.StatusCode(),
			Message:        fmt.Sprintf("PageSpeed API returned status %d.", resp.StatusCode()),
		}
	}

	var parsed apiResponse
	if err := sonic.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, &errs.AppError{
			Kind:    errs.ParsingFailed,
			Message: "PageSpeed API returned an unreadable response.",
			Cause:   err,
		}
	}

	audits := parsed.LighthouseResult.Audits
	return &Report{
		URL:              targetURL,
		Strategy:         strategy,
		PerformanceScore: parsed.LighthouseResult.Categories.Performance.Score * 100,
		FCPMs:            audits["first-contentful-paint"].NumericValue,
		LCPMs:            audits["largest-contentful-paint"].NumericValue,
		TBTMs:            audits["total-blocking-time"].NumericValue,
		FetchedAt:        time.Now().UTC().Format(time.RFC3339),
	}, nil
}
