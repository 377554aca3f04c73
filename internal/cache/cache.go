// Package cache keeps resolved commit histories on local disk so an
// interrupted run can resume without refetching them.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"fork-harvester/internal/github"
)

var historyBucket = []byte("commit_history")

// HistoryFetcher is the remote lookup the cache sits in front of.
type HistoryFetcher interface {
	CommitHistory(ctx context.Context, owner, name string, since time.Time) github.Result[[]string]
}

// HistoryCache decorates a HistoryFetcher. Only successful lookups are
// stored; failures always go back to the remote.
type HistoryCache struct {
	db     *bolt.DB
	next   HistoryFetcher
	logger *slog.Logger
}

// Open opens or creates the cache file at path.
func Open(path string, next HistoryFetcher, logger *slog.Logger) (*HistoryCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(historyBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache %s: %w", path, err)
	}
	return &HistoryCache{db: db, next: next, logger: logger}, nil
}

// Close releases the cache file.
func (c *HistoryCache) Close() error {
	return c.db.Close()
}

func historyKey(owner, name string, since time.Time) []byte {
	return []byte(owner + "/" + name + "@" + since.UTC().Format(time.RFC3339))
}

// CommitHistory serves from the cache when possible and fills it otherwise.
func (c *HistoryCache) CommitHistory(ctx context.Context, owner, name string, since time.Time) github.Result[[]string] {
	key := historyKey(owner, name, since)

	if dates, ok := c.lookup(key); ok {
		c.logger.Debug("Commit history cache hit", "owner", owner, "repo", name)
		return github.Result[[]string]{Value: dates}
	}

	res := c.next.CommitHistory(ctx, owner, name, since)
	if !res.OK() {
		return res
	}

	data, err := json.Marshal(res.Value)
	if err == nil {
		err = c.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(historyBucket).Put(key, data)
		})
	}
	if err != nil {
		c.logger.Warn("Failed to store commit history in cache", "owner", owner, "repo", name, "error", err)
	}
	return res
}

func (c *HistoryCache) lookup(key []byte) ([]string, bool) {
	var dates []string
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(historyBucket).Get(key)
		if v == nil {
			return nil
		}
		found = true
		dates = make([]string, 0)
		return json.Unmarshal(v, &dates)
	})
	if err != nil {
		c.logger.Warn("Ignoring unreadable cache entry", "key", string(key), "error", err)
		return nil, false
	}
	return dates, found
}

// Len returns the number of cached histories.
func (c *HistoryCache) Len() (int, error) {
	n := 0
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(historyBucket).Stats().KeyN
		return nil
	})
	return n, err
}
