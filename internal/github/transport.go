package github

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError is returned for any non-2xx HTTP response from the GraphQL
// endpoint.
type StatusError struct {
	Code        int
	RateLimited bool
	RetryAfter  time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graphql endpoint returned HTTP %d", e.Code)
}

// GraphQLError carries the errors array of a 200 response that reported
// failures. Types holds the machine-readable "type" of each entry.
type GraphQLError struct {
	Types    []string
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// HasType reports whether any entry in the errors array has the given type.
func (e *GraphQLError) HasType(t string) bool {
	for _, typ := range e.Types {
		if typ == t {
			return true
		}
	}
	return false
}

// errorTransport surfaces HTTP status codes and GraphQL error types, both of
// which the GraphQL client library discards, as typed errors.
type errorTransport struct {
	base http.RoundTripper
	now  func() time.Time
}

func (t *errorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, &StatusError{
			Code:        resp.StatusCode,
			RateLimited: resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != "",
			RetryAfter:  retryAfter(resp.Header, t.now()),
		}
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var envelope struct {
		Errors []struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Errors) > 0 {
		gqlErr := &GraphQLError{}
		for _, e := range envelope.Errors {
			gqlErr.Types = append(gqlErr.Types, e.Type)
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		return nil, gqlErr
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}
