//go:build integration

package database_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"fork-harvester/internal/database"
	"fork-harvester/internal/model"
	"fork-harvester/migrations"
)

func setupTestDatabase(ctx context.Context, t *testing.T) *pgxpool.Pool {
	// Start a postgres container
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(context.Background()))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, migrations.Up(connStr))
	require.NoError(t, migrations.Up(connStr), "re-running migrations is a no-op")

	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(dbpool.Close)

	return dbpool
}

func enriched(child string, stars int) model.EnrichedForkRecord {
	return model.EnrichedForkRecord{
		SeriesRecord: model.SeriesRecord{
			ParentName:  "widget",
			ParentOwner: "octo",
			ChildOwner:  child,
			ChildName:   "widget",
			ForkTime:    "2022-06-10T00:00:00Z",
			CommitTimes: model.MonthlyTimeseries{"2022-06": 7, "2022-07": 7},
		},
		Issues:        model.IssuesOutcome{Failed: true},
		CommitsPost2m: 4,
		Stars:         &stars,
	}
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool := setupTestDatabase(ctx, t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := database.NewStore(dbpool, logger)
	q := database.New(dbpool)

	// --- ACT ---
	require.NoError(t, store.SaveRecords(ctx, []model.EnrichedForkRecord{enriched("alice", 1), enriched("bob", 2)}))
	// Saving the same fork again updates it in place.
	require.NoError(t, store.SaveRecords(ctx, []model.EnrichedForkRecord{enriched("alice", 10)}))

	// --- ASSERT ---
	count, err := q.CountForkRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	row, err := q.GetForkRecord(ctx, database.GetForkRecordParams{ChildOwner: "alice", ChildName: "widget"})
	require.NoError(t, err)
	rec, err := database.ToModel(row)
	require.NoError(t, err)
	assert.Equal(t, enriched("alice", 10), rec)

	rows, err := q.ListForkRecordsByParent(ctx, database.ListForkRecordsByParentParams{ParentOwner: "octo", ParentName: "widget", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = q.GetForkRecord(ctx, database.GetForkRecordParams{ChildOwner: "nobody", ChildName: "widget"})
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}
