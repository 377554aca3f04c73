package github

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Status tags the outcome of every remote call.
type Status int

const (
	StatusOK Status = iota
	// StatusNotFound: the repository or its default branch history does not
	// exist (deleted, renamed, empty or inaccessible).
	StatusNotFound
	// StatusRateLimited: the API refused the call because of rate limits and
	// retries did not outlast them.
	StatusRateLimited
	// StatusTransient: 5xx or network failure that survived every retry.
	StatusTransient
	// StatusFailed: any other error reported by the API.
	StatusFailed
	// StatusCanceled: the caller's context ended before an answer arrived.
	// It says nothing about the repository.
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusRateLimited:
		return "rate_limited"
	case StatusTransient:
		return "transient"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is the single result shape of every remote wrapper. Err is set
// whenever Status is not StatusOK.
type Result[T any] struct {
	Value  T
	Status Status
	Err    error
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Status == StatusOK
}

func failure[T any](status Status, err error) Result[T] {
	return Result[T]{Status: status, Err: err}
}

// retryable reports whether another attempt may succeed.
func (s Status) retryable() bool {
	return s == StatusTransient || s == StatusRateLimited
}

// classify maps an error returned through the GraphQL client onto a Status.
// The returned duration is the server's hint of how long to wait, if any.
func classify(err error) (Status, time.Duration) {
	if err == nil {
		return StatusOK, 0
	}

	var gqlErr *GraphQLError
	if errors.As(err, &gqlErr) {
		switch {
		case gqlErr.HasType("NOT_FOUND"):
			return StatusNotFound, 0
		case gqlErr.HasType("RATE_LIMITED"):
			return StatusRateLimited, 0
		default:
			return StatusFailed, 0
		}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.Code; {
		case code == http.StatusTooManyRequests:
			return StatusRateLimited, statusErr.RetryAfter
		case code == http.StatusForbidden && statusErr.RateLimited:
			return StatusRateLimited, statusErr.RetryAfter
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
	if strings.HasPrefix(err.Error(), "decoding response") {
		return StatusFailed, 0
	}

	// Anything else is the connection failing underneath us.
	return StatusTransient, 0
}

// retryAfter reads the wait hint from Retry-After or X-RateLimit-Reset.
func retryAfter(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(now); d > 0 {
				return d
			}
		}
	}
	return 0
}
