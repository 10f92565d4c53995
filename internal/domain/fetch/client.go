// Package fetch retrieves target pages and builds parse trees from them.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/pagelift/pagelift/backend/internal/infrastructure/resilience"
)

// DefaultTimeout is the hard limit on a single page fetch. Past it the
// in-flight request is abandoned and an error surfaced; no partial result.
const DefaultTimeout = 30 * time.Second

// Client wraps resty with rate limiting and a circuit breaker for outbound
// page fetches.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	timeout time.Duration
}

// Config tunes the outbound client.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	RateRPS   float64 // 0 = unlimited
}

// NewClient creates a production-ready fetch client. The transport retries
// transient failures; the breaker trips on sustained upstream trouble.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "PageLift-Optimizer/1.0"
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil // Disable logging

	restyClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("User-Agent", cfg.UserAgent).
		SetTransport(retryClient.HTTPClient.Transport).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateRPS), int(cfg.RateRPS)+1)
	}

	breaker := resilience.New("page-fetch", resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			// Lenient: external sites vary wildly in reliability.
			return counts.ConsecutiveFailures >= 10
		},
	})

	return &Client{
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
		timeout: cfg.Timeout,
	}
}

// request creates a rate-limited request honoring the breaker state.
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if c.breaker.State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	return c.resty.R().SetContext(ctx), nil
}
