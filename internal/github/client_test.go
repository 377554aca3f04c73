// internal/github/client_test.go
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// setupTestClient creates a httptest server and a client pointing to it.
func setupTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Options{
		Token:      "test-token",
		GraphQLURL: server.URL,
		Timeout:    5 * time.Second,
		Retry:      RetryPolicy{MaxAttempts: 3, Backoff: 5 * time.Millisecond, MaxWait: 50 * time.Millisecond},
	}, testLogger())
}

func decodeRequest(t *testing.T, r *http.Request) graphqlRequest {
	t.Helper()
	var req graphqlRequest
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func historyPage(t *testing.T, dates []string, hasNext bool, cursor string) []byte {
	edges := make([]map[string]any, 0, len(dates))
	for _, d := range dates {
		edges = append(edges, map[string]any{"node": map[string]any{"committedDate": d}})
	}
	body, err := json.Marshal(map[string]any{
		"data": map[string]any{
			"repository": map[string]any{
				"defaultBranchRef": map[string]any{
					"target": map[string]any{
						"history": map[string]any{
							"pageInfo": map[string]any{"hasNextPage": hasNext, "endCursor": cursor},
							"edges":    edges,
						},
					},
				},
			},
		},
	})
	assert.NoError(t, err)
	return body
}

func datesFrom(start time.Time, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
	}
	return out
}

func TestClient_CommitHistory(t *testing.T) {
	since := time.Date(2022, 6, 10, 8, 30, 0, 0, time.UTC)

	t.Run("follows cursors across pages", func(t *testing.T) {
		all := datesFrom(since, 237)
		pages := map[string][]string{
			"":   all[:100],
			"c1": all[100:200],
			"c2": all[200:],
		}
		next := map[string]string{"": "c1", "c1": "c2", "c2": "c2"}

		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			req := decodeRequest(t, r)
			assert.Equal(t, "acme", req.Variables["owner"])
			assert.Equal(t, "app", req.Variables["name"])
			assert.Equal(t, "2022-06-10T08:30:00Z", req.Variables["since"])

			cursor, _ := req.Variables["cursor"].(string)
			w.Write(historyPage(t, pages[cursor], cursor != "c2", next[cursor]))
		})
		client := setupTestClient(t, handler)

		res := client.CommitHistory(context.Background(), "acme", "app", since)

		require.True(t, res.OK(), "unexpected error: %v", res.Err)
		assert.Equal(t, all, res.Value)
		assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount))
	})

	t.Run("empty history is an empty list", func(t *testing.T) {
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(historyPage(t, nil, false, ""))
		}))

		res := client.CommitHistory(context.Background(), "acme", "app", since)

		require.True(t, res.OK())
		assert.NotNil(t, res.Value)
		assert.Empty(t, res.Value)
	})

	t.Run("missing default branch is not found", func(t *testing.T) {
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":{"repository":{"defaultBranchRef":null}}}`)
		}))

		res := client.CommitHistory(context.Background(), "acme", "app", since)

		assert.Equal(t, StatusNotFound, res.Status)
		assert.Nil(t, res.Value)
	})

	t.Run("stuck cursor fails instead of looping", func(t *testing.T) {
		var requestCount int32
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.Write(historyPage(t, datesFrom(since, 1), true, "same"))
		}))

		res := client.CommitHistory(context.Background(), "acme", "app", since)

		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})
}

func TestClient_Retry(t *testing.T) {
	since := time.Date(2022, 6, 10, 0, 0, 0, 0, time.UTC)

	t.Run("retries on 503 server error and succeeds", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count == 1 {
				w.WriteHeader(http.StatusServiceUnavailable) // Fail first time
				return
			}
			w.Write(historyPage(t, datesFrom(since, 2), false, "")) // Succeed second time
		})
		client := setupTestClient(t, handler)

		res := client.CommitHistory(context.Background(), "acme", "app", since)

		require.True(t, res.OK(), "unexpected error: %v", res.Err)
		assert.Len(t, res.Value, 2)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount), "should have made two requests")
	})

	t.Run("handles rate limit error", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count == 1 {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprintln(w, `{"message": "API rate limit exceeded"}`)
				return
			}
			fmt.Fprint(w, `{"data":{"repository":{"stargazerCount":42}}}`)
		})
		client := setupTestClient(t, handler)

		startTime := time.Now()
		res := client.Stars(context.Background(), "acme", "app")
		elapsed := time.Since(startTime)

		require.True(t, res.OK(), "unexpected error: %v", res.Err)
		assert.Equal(t, 42, res.Value)
		assert.True(t, elapsed >= 50*time.Millisecond, "client should wait before retrying")
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("fails after max retries on persistent server error", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusInternalServerError)
		})
		client := setupTestClient(t, handler)

		res := client.CommitHistory(context.Background(), "acme", "app", since)

		assert.Equal(t, StatusTransient, res.Status)
		assert.Nil(t, res.Value)
		var statusErr *StatusError
		require.ErrorAs(t, res.Err, &statusErr)
		assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
		assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount))
	})

	t.Run("does not retry a cancelled context", func(t *testing.T) {
		var requestCount int32
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := client.Stars(ctx, "acme", "app")

		assert.Equal(t, StatusCanceled, res.Status)
		assert.ErrorIs(t, res.Err, context.Canceled)
		assert.Equal(t, int32(0), atomic.LoadInt32(&requestCount))
	})

	t.Run("cancellation during a request is not reported as a repository failure", func(t *testing.T) {
		var requestCount int32
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			cancel()
			w.WriteHeader(http.StatusBadGateway)
		}))

		res := client.CommitHistory(ctx, "acme", "app", since)

		assert.Equal(t, StatusCanceled, res.Status)
		assert.ErrorIs(t, res.Err, context.Canceled)
		assert.Nil(t, res.Value)
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
	})
}

func TestClient_GraphQLErrors(t *testing.T) {
	t.Run("NOT_FOUND is a distinct status and is not retried", func(t *testing.T) {
		var requestCount int32
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			fmt.Fprint(w, `{"data":{"repository":null},"errors":[{"type":"NOT_FOUND","path":["repository"],"message":"Could not resolve to a Repository with the name 'acme/gone'."}]}`)
		}))

		res := client.Issues(context.Background(), "acme", "gone")

		assert.Equal(t, StatusNotFound, res.Status)
		assert.ErrorContains(t, res.Err, "Could not resolve")
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
	})

	t.Run("RATE_LIMITED is retried", func(t *testing.T) {
		var requestCount int32
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requestCount, 1) == 1 {
				fmt.Fprint(w, `{"errors":[{"type":"RATE_LIMITED","message":"API rate limit exceeded"}]}`)
				return
			}
			fmt.Fprint(w, `{"data":{"repository":{"stargazerCount":7}}}`)
		}))

		res := client.Stars(context.Background(), "acme", "app")

		require.True(t, res.OK())
		assert.Equal(t, 7, res.Value)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("other error types fail without retry", func(t *testing.T) {
		var requestCount int32
		client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			fmt.Fprint(w, `{"errors":[{"type":"FORBIDDEN","message":"Resource not accessible by integration"}]}`)
		}))

		res := client.Stars(context.Background(), "acme", "app")

		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
	})
}

func TestClient_CommitCount(t *testing.T) {
	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, "2023-01-01T00:00:00Z", req.Variables["since"])
		assert.Equal(t, "2023-03-31T23:59:59Z", req.Variables["until"])
		fmt.Fprint(w, `{"data":{"repository":{"defaultBranchRef":{"target":{"history":{"totalCount":16}}}}}}`)
	}))

	since := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2023, 3, 31, 23, 59, 59, 0, time.UTC)
	res := client.CommitCount(context.Background(), "acme", "app", since, until)

	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, 16, res.Value)
}

func TestClient_Issues(t *testing.T) {
	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"repository":{"hasIssuesEnabled":true,"issues":{"totalCount":3},"closed":{"totalCount":9}}}}`)
	}))

	res := client.Issues(context.Background(), "acme", "app")

	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.True(t, res.Value.IssuesEnabled)
	assert.Equal(t, 3, res.Value.OpenIssuesCount)
	assert.Equal(t, 9, res.Value.ClosedIssuesCount)
}

func TestRetryAfter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	h := http.Header{}
	h.Set("Retry-After", "30")
	assert.Equal(t, 30*time.Second, retryAfter(h, now))

	h = http.Header{}
	h.Set("X-RateLimit-Reset", fmt.Sprint(now.Add(90*time.Second).Unix()))
	assert.Equal(t, 90*time.Second, retryAfter(h, now))

	h = http.Header{}
	h.Set("X-RateLimit-Reset", fmt.Sprint(now.Add(-time.Minute).Unix()))
	assert.Zero(t, retryAfter(h, now))
}
