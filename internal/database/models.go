// internal/database/models.go
package database

import "time"

type ForkRecord struct {
	ID            int64     `json:"id"`
	ParentOwner   string    `json:"parent_owner"`
	ParentName    string    `json:"parent_name"`
	ChildOwner    string    `json:"child_owner"`
	ChildName     string    `json:"child_name"`
	ForkTime      time.Time `json:"fork_time"`
	CommitTimes   []byte    `json:"commit_times"`
	Issues        []byte    `json:"issues"`
	CommitsPost2m int32     `json:"commits_post_2m"`
	Stars         *int32    `json:"stars"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
