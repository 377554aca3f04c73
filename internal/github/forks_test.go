package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupForkLister(t *testing.T, handler http.Handler) *ForkLister {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	lister, err := NewForkLister(Options{
		Token:   "test-token",
		RestURL: server.URL,
		Retry:   RetryPolicy{MaxAttempts: 2, Backoff: 5 * time.Millisecond},
	}, testLogger())
	require.NoError(t, err)
	return lister
}

func TestForkLister_ListForks(t *testing.T) {
	t.Run("walks every page", func(t *testing.T) {
		var serverURL string
		mux := http.NewServeMux()
		mux.HandleFunc("/repos/acme/app/forks", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "oldest", r.URL.Query().Get("sort"))
			assert.Equal(t, "100", r.URL.Query().Get("per_page"))

			if r.URL.Query().Get("page") == "2" {
				fmt.Fprint(w, `[{"full_name":"carol/app","name":"app","owner":{"login":"carol"}}]`)
				return
			}
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/app/forks?page=2>; rel="next"`, serverURL))
			fmt.Fprint(w, `[{"full_name":"alice/app","name":"app","owner":{"login":"alice"}},{"full_name":"bob/app","name":"app","owner":{"login":"bob"}}]`)
		})
		server := httptest.NewServer(mux)
		defer server.Close()
		serverURL = server.URL

		lister, err := NewForkLister(Options{RestURL: server.URL}, testLogger())
		require.NoError(t, err)

		var names []string
		total, err := lister.ListForks(context.Background(), "acme", "app", func(page []*github.Repository) error {
			for _, repo := range page {
				names = append(names, repo.GetFullName())
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, []string{"alice/app", "bob/app", "carol/app"}, names)
	})

	t.Run("retries a server error", func(t *testing.T) {
		var requestCount int32
		lister := setupForkLister(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requestCount, 1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			fmt.Fprint(w, `[]`)
		}))

		total, err := lister.ListForks(context.Background(), "acme", "app", func([]*github.Repository) error { return nil })

		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("missing parent is not retried", func(t *testing.T) {
		var requestCount int32
		lister := setupForkLister(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
		}))

		_, err := lister.ListForks(context.Background(), "acme", "gone", func([]*github.Repository) error { return nil })

		require.Error(t, err)
		var ghErr *github.ErrorResponse
		assert.ErrorAs(t, err, &ghErr)
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
	})
}
