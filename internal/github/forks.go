package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// ForkLister pages through the REST forks endpoint of a parent repository.
type ForkLister struct {
	gh      *github.Client
	limiter *rate.Limiter
	retry   RetryPolicy
	logger  *slog.Logger
}

// NewForkLister creates a REST client authenticated with opts.Token.
func NewForkLister(opts Options, logger *slog.Logger) (*ForkLister, error) {
	opts = opts.withDefaults()

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: opts.Token},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = opts.Timeout

	gh := github.NewClient(tc)
	if opts.RestURL != "" {
		base, err := url.Parse(strings.TrimSuffix(opts.RestURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse GitHub API URL: %w", err)
		}
		gh.BaseURL = base
	}

	return &ForkLister{
		gh:      gh,
		limiter: newLimiter(opts.RequestsPerSecond),
		retry:   opts.Retry,
		logger:  logger,
	}, nil
}

// ListForks fetches every fork of owner/name, oldest first, calling fn once
// per page. It handles API pagination transparently.
func (l *ForkLister) ListForks(ctx context.Context, owner, name string, fn func([]*github.Repository) error) (int, error) {
	logger := l.logger.With("owner", owner, "repo", name)
	opts := &github.RepositoryListForksOptions{
		Sort: "oldest",
		ListOptions: github.ListOptions{
			PerPage: 100, // Max per page
		},
	}

	total := 0
	for {
		logger.Debug("Fetching forks page", "page", opts.Page)

		forks, resp, err := l.listPage(ctx, owner, name, opts, logger)
		if err != nil {
			return total, err
		}
		if err := fn(forks); err != nil {
			return total, err
		}
		total += len(forks)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return total, nil
}

func (l *ForkLister) listPage(ctx context.Context, owner, name string, opts *github.RepositoryListForksOptions, logger *slog.Logger) ([]*github.Repository, *github.Response, error) {
	for attempt := 1; ; attempt++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
		forks, resp, err := l.gh.Repositories.ListForks(ctx, owner, name, opts)
		if err == nil {
			return forks, resp, nil
		}

		status, hint := classifyREST(err, time.Now())
		if !status.retryable() || ctx.Err() != nil || attempt >= l.retry.MaxAttempts {
			return nil, nil, fmt.Errorf("list forks of %s/%s (%s): %w", owner, name, status, err)
		}
		wait := l.retry.delay(hint)
		logger.Warn("Retrying forks page", "attempt", attempt, "status", status.String(), "wait", wait, "error", err)
		if err := sleep(ctx, wait); err != nil {
			return nil, nil, err
		}
	}
}

// classifyREST maps go-github errors onto the same statuses as the GraphQL
// client uses.
func classifyREST(err error, now time.Time) (Status, time.Duration) {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return StatusRateLimited, rateErr.Rate.Reset.Time.Sub(now)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return StatusRateLimited, abuseErr.GetRetryAfter()
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch code := respErr.Response.StatusCode; {
		case code == http.StatusNotFound:
			return StatusNotFound, 0
		case code >= 500:
			return StatusTransient, 0
		default:
			return StatusFailed, 0
		}
	}
	if errors.Is(err, context.Canceled) {
		return StatusCanceled, 0
	}
	// Only the per-request timeout gets here; an expired caller context is
	// checked by the retry loop.
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTransient, 0
	}
	return StatusTransient, 0
}
