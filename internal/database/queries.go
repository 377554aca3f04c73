// internal/database/queries.go
package database

import (
	"context"
	"time"
)

const forkRecordColumns = `id, parent_owner, parent_name, child_owner, child_name, fork_time,
  commit_times, issues, commits_post_2m, stars, created_at, updated_at`

func scanForkRecord(row interface{ Scan(...any) error }) (ForkRecord, error) {
	var i ForkRecord
	err := row.Scan(
		&i.ID,
		&i.ParentOwner,
		&i.ParentName,
		&i.ChildOwner,
		&i.ChildName,
		&i.ForkTime,
		&i.CommitTimes,
		&i.Issues,
		&i.CommitsPost2m,
		&i.Stars,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const countForkRecords = `-- name: CountForkRecords :one
SELECT COUNT(*) FROM fork_records
`

func (q *Queries) CountForkRecords(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countForkRecords)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getForkRecord = `-- name: GetForkRecord :one
SELECT ` + forkRecordColumns + `
FROM fork_records
WHERE child_owner = $1 AND child_name = $2
ORDER BY fork_time DESC
LIMIT 1
`

type GetForkRecordParams struct {
	ChildOwner string `json:"child_owner"`
	ChildName  string `json:"child_name"`
}

func (q *Queries) GetForkRecord(ctx context.Context, arg GetForkRecordParams) (ForkRecord, error) {
	row := q.db.QueryRow(ctx, getForkRecord, arg.ChildOwner, arg.ChildName)
	return scanForkRecord(row)
}

const listForkRecordsByParent = `-- name: ListForkRecordsByParent :many
SELECT ` + forkRecordColumns + `
FROM fork_records
WHERE parent_owner = $1 AND parent_name = $2
ORDER BY fork_time ASC, id ASC
LIMIT $3
`

type ListForkRecordsByParentParams struct {
	ParentOwner string `json:"parent_owner"`
	ParentName  string `json:"parent_name"`
	Limit       int32  `json:"limit"`
}

func (q *Queries) ListForkRecordsByParent(ctx context.Context, arg ListForkRecordsByParentParams) ([]ForkRecord, error) {
	rows, err := q.db.Query(ctx, listForkRecordsByParent, arg.ParentOwner, arg.ParentName, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ForkRecord{}
	for rows.Next() {
		i, err := scanForkRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertForkRecord = `-- name: UpsertForkRecord :one
INSERT INTO fork_records (
  parent_owner, parent_name, child_owner, child_name, fork_time,
  commit_times, issues, commits_post_2m, stars
) VALUES (
  $1, $2, $3, $4, $5, $6, $7, $8, $9
)
ON CONFLICT (child_owner, child_name, fork_time) DO UPDATE SET
  parent_owner = EXCLUDED.parent_owner,
  parent_name = EXCLUDED.parent_name,
  commit_times = EXCLUDED.commit_times,
  issues = EXCLUDED.issues,
  commits_post_2m = EXCLUDED.commits_post_2m,
  stars = EXCLUDED.stars,
  updated_at = NOW()
RETURNING ` + forkRecordColumns + `
`

type UpsertForkRecordParams struct {
	ParentOwner   string    `json:"parent_owner"`
	ParentName    string    `json:"parent_name"`
	ChildOwner    string    `json:"child_owner"`
	ChildName     string    `json:"child_name"`
	ForkTime      time.Time `json:"fork_time"`
	CommitTimes   []byte    `json:"commit_times"`
	Issues        []byte    `json:"issues"`
	CommitsPost2m int32     `json:"commits_post_2m"`
	Stars         *int32    `json:"stars"`
}

func (q *Queries) UpsertForkRecord(ctx context.Context, arg UpsertForkRecordParams) (ForkRecord, error) {
	row := q.db.QueryRow(ctx, upsertForkRecord,
		arg.ParentOwner,
		arg.ParentName,
		arg.ChildOwner,
		arg.ChildName,
		arg.ForkTime,
		arg.CommitTimes,
		arg.Issues,
		arg.CommitsPost2m,
		arg.Stars,
	)
	return scanForkRecord(row)
}
