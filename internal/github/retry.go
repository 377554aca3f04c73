package github

import (
	"context"
	"log/slog"
	"time"

	"github.com/machinebox/graphql"
	"golang.org/x/time/rate"
)

// RetryPolicy bounds how hard a single call is retried.
type RetryPolicy struct {
	// MaxAttempts counts the first attempt, so 1 disables retries.
	MaxAttempts int
	// Backoff is the pause between attempts when the server gives no hint.
	Backoff time.Duration
	// MaxWait caps a server-provided wait hint. Zero means no cap.
	MaxWait time.Duration
}

// DefaultRetryPolicy is used when Options leaves the policy empty.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 2 * time.Second}

func (p RetryPolicy) delay(hint time.Duration) time.Duration {
	if hint <= 0 {
		return p.Backoff
	}
	if p.MaxWait > 0 && hint > p.MaxWait {
		return p.MaxWait
	}
	return hint
}

type runner interface {
	Run(ctx context.Context, req *graphql.Request, resp interface{}) error
}

// run executes one GraphQL request under the rate limiter and retry policy.
// It returns the final status together with the last error seen. Once ctx
// is done the status is StatusCanceled, whatever the request reported.
func (c *Client) run(ctx context.Context, req *graphql.Request, resp interface{}, logger *slog.Logger) (Status, error) {
	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return StatusCanceled, err
		}

		err := c.gql.Run(ctx, req, resp)
		if err != nil && ctx.Err() != nil {
			return StatusCanceled, ctx.Err()
		}
		status, hint := classify(err)
		if !status.retryable() {
			return status, err
		}
		if attempt >= c.retry.MaxAttempts {
			logger.Warn("Giving up after retries", "attempts", attempt, "status", status.String(), "error", err)
			return status, err
		}

		wait := c.retry.delay(hint)
		logger.Warn("Retrying request", "attempt", attempt, "status", status.String(), "wait", wait, "error", err)
		if err := sleep(ctx, wait); err != nil {
			return StatusCanceled, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
