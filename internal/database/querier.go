// internal/database/querier.go
package database

import (
	"context"
)

type Querier interface {
	CountForkRecords(ctx context.Context) (int64, error)
	GetForkRecord(ctx context.Context, arg GetForkRecordParams) (ForkRecord, error)
	ListForkRecordsByParent(ctx context.Context, arg ListForkRecordsByParentParams) ([]ForkRecord, error)
	UpsertForkRecord(ctx context.Context, arg UpsertForkRecordParams) (ForkRecord, error)
}

var _ Querier = (*Queries)(nil)
