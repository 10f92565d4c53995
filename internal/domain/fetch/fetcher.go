package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pagelift/pagelift/backend/internal/shared/errs"
	"github.com/pagelift/pagelift/backend/internal/shared/utils"
)

// Result is a fetched page body with its timing and sniffed content type.
type Result struct {
	Body        []byte
	StatusCode  int
	Elapsed     time.Duration
	ContentType string
}

// FetchPage retrieves the target URL under the client's hard timeout.
//
// An error status that still carried a body counts as a successful fetch of
// that body, so error pages can be optimized too. Only unreachable targets,
// timeouts, and bodyless error responses surface as errors.
func (c *Client) FetchPage(ctx context.Context, targetURL string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.request(ctx)
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.Unreachable,
			Message: "The optimizer is refusing requests right now. Try again shortly.",
			Cause:   err,
		}
	}

	start := time.Now()
	fetched, err := c.breaker.Execute(func() (interface{}, error) {
		r, reqErr := req.Get(targetURL)
		if reqErr != nil {
			return nil, reqErr
		}

		body := r.Body()
		if len(body) > utils.MaxBodySize {
			body = body[:utils.MaxBodySize]
		}
		return &Result{
			Body:       body,
			StatusCode: r.StatusCode(),
		}, nil
	})
	if err != nil {
		kind := errs.Unreachable
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			kind = errs.Timeout
		}
		return nil, &errs.AppError{
			Kind:    kind,
			Message: "The provided URL could not be reached. Check the address.",
			Cause:   err,
		}
	}

	resp := fetched.(*Result)
	if resp.StatusCode >= 400 && len(resp.Body) == 0 {
		return nil, &errs.AppError{
			Kind:           errs.Unreachable,
			UpstreamStatus: resp.StatusCode,
			Message:        "The provided URL returned an error status with no content.",
		}
	}

	resp.Elapsed = time.Since(start)
	resp.ContentType = mimetype.Detect(resp.Body).String()
	return resp, nil
}
