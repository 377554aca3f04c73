// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/machinebox/graphql"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"fork-harvester/internal/model"
)

// DefaultGraphQLURL is the public GitHub GraphQL endpoint.
const DefaultGraphQLURL = "https://api.github.com/graphql"

// Options configures both the GraphQL client and the REST fork lister.
type Options struct {
	Token      string
	GraphQLURL string
	// RestURL overrides the REST API base, e.g. for GitHub Enterprise.
	RestURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             RetryPolicy
}

func (o Options) withDefaults() Options {
	if o.GraphQLURL == "" {
		o.GraphQLURL = DefaultGraphQLURL
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Retry.MaxAttempts < 1 {
		o.Retry = DefaultRetryPolicy
	}
	return o
}

// Client wraps the GitHub GraphQL API. One Client and its HTTP connection
// pool is shared by every worker of a run.
type Client struct {
	gql     runner
	limiter *rate.Limiter
	retry   RetryPolicy
	logger  *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The token is attached to every request as a bearer credential.
func NewClient(opts Options, logger *slog.Logger) *Client {
	opts = opts.withDefaults()

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: opts.Token},
	)
	httpClient := &http.Client{
		Timeout: opts.Timeout,
		Transport: &errorTransport{
			base: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
			now:  time.Now,
		},
	}

	gql := graphql.NewClient(opts.GraphQLURL, graphql.WithHTTPClient(httpClient))
	gql.Log = func(s string) { logger.Debug(s) }

	return &Client{
		gql:     gql,
		limiter: newLimiter(opts.RequestsPerSecond),
		retry:   opts.Retry,
		logger:  logger,
	}
}

func newRequest(query, owner, name string) *graphql.Request {
	req := graphql.NewRequest(query)
	req.Var("owner", owner)
	req.Var("name", name)
	return req
}

// CommitHistory returns the committedDate of every default-branch commit made
// at or after since, following cursor pagination to the end. The list is in
// the order GitHub returns it and is never nil on success.
func (c *Client) CommitHistory(ctx context.Context, owner, name string, since time.Time) Result[[]string] {
	logger := c.logger.With("owner", owner, "repo", name)
	dates := make([]string, 0)
	var cursor *string

	for page := 1; ; page++ {
		logger.Debug("Fetching commit history page", "page", page)

		req := newRequest(queryCommitHistory, owner, name)
		req.Var("since", gitTimestamp(since))
		req.Var("cursor", cursor)

		var resp historyResponse
		status, err := c.run(ctx, req, &resp, logger)
		if status != StatusOK {
			return failure[[]string](status, fmt.Errorf("commit history of %s/%s: %w", owner, name, err))
		}

		h := resp.history()
		if h == nil {
			return failure[[]string](StatusNotFound, fmt.Errorf("%s/%s has no default branch history", owner, name))
		}
		for _, edge := range h.Edges {
			dates = append(dates, edge.Node.CommittedDate)
		}

		if !h.PageInfo.HasNextPage {
			return Result[[]string]{Value: dates}
		}
		next := h.PageInfo.EndCursor
		if next == "" || (cursor != nil && *cursor == next) {
			return failure[[]string](StatusFailed, fmt.Errorf("commit history of %s/%s: pagination cursor did not advance", owner, name))
		}
		cursor = &next
	}
}

// CommitCount returns the number of default-branch commits between since and
// until, both inclusive.
func (c *Client) CommitCount(ctx context.Context, owner, name string, since, until time.Time) Result[int] {
	logger := c.logger.With("owner", owner, "repo", name)

	req := newRequest(queryCommitCount, owner, name)
	req.Var("since", gitTimestamp(since))
	req.Var("until", gitTimestamp(until))

	var resp historyResponse
	status, err := c.run(ctx, req, &resp, logger)
	if status != StatusOK {
		return failure[int](status, fmt.Errorf("commit count of %s/%s: %w", owner, name, err))
	}
	h := resp.history()
	if h == nil {
		return failure[int](StatusNotFound, fmt.Errorf("%s/%s has no default branch history", owner, name))
	}
	return Result[int]{Value: h.TotalCount}
}

// Issues returns whether issues are enabled and the open and closed totals.
func (c *Client) Issues(ctx context.Context, owner, name string) Result[model.IssuesSummary] {
	logger := c.logger.With("owner", owner, "repo", name)

	var resp issuesResponse
	status, err := c.run(ctx, newRequest(queryIssues, owner, name), &resp, logger)
	if status != StatusOK {
		return failure[model.IssuesSummary](status, fmt.Errorf("issues of %s/%s: %w", owner, name, err))
	}
	if resp.Repository == nil {
		return failure[model.IssuesSummary](StatusNotFound, errors.New("repository not found"))
	}
	return Result[model.IssuesSummary]{Value: model.IssuesSummary{
		IssuesEnabled:     resp.Repository.HasIssuesEnabled,
		OpenIssuesCount:   resp.Repository.Issues.TotalCount,
		ClosedIssuesCount: resp.Repository.Closed.TotalCount,
	}}
}

// Stars returns the repository's stargazer count.
func (c *Client) Stars(ctx context.Context, owner, name string) Result[int] {
	logger := c.logger.With("owner", owner, "repo", name)

	var resp starsResponse
	status, err := c.run(ctx, newRequest(queryStars, owner, name), &resp, logger)
	if status != StatusOK {
		return failure[int](status, fmt.Errorf("stars of %s/%s: %w", owner, name, err))
	}
	if resp.Repository == nil {
		return failure[int](StatusNotFound, errors.New("repository not found"))
	}
	return Result[int]{Value: resp.Repository.StargazerCount}
}
