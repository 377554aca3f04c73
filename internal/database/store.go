package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"fork-harvester/internal/model"
)

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store saves enriched records, one transaction per batch.
type Store struct {
	db      Pool
	queries *Queries
	logger  *slog.Logger
}

// NewStore creates a Store on db.
func NewStore(db Pool, logger *slog.Logger) *Store {
	return &Store{db: db, queries: New(db), logger: logger}
}

// SaveRecords upserts every record of a batch in a single transaction.
func (s *Store) SaveRecords(ctx context.Context, records []model.EnrichedForkRecord) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	qtx := s.queries.WithTx(tx)
	for _, rec := range records {
		params, err := ToUpsertParams(rec)
		if err != nil {
			return err
		}
		if _, err := qtx.UpsertForkRecord(ctx, params); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", rec.ChildOwner, rec.ChildName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.logger.Debug("Saved batch to database", "count", len(records))
	return nil
}

// ToUpsertParams converts an enriched record to its row parameters.
func ToUpsertParams(rec model.EnrichedForkRecord) (UpsertForkRecordParams, error) {
	forkTime, err := time.Parse(time.RFC3339, rec.ForkTime)
	if err != nil {
		return UpsertForkRecordParams{}, fmt.Errorf("fork time of %s/%s: %w", rec.ChildOwner, rec.ChildName, err)
	}

	var commitTimes []byte
	if rec.CommitTimes != nil {
		if commitTimes, err = json.Marshal(rec.CommitTimes); err != nil {
			return UpsertForkRecordParams{}, err
		}
	}
	issues, err := json.Marshal(rec.Issues)
	if err != nil {
		return UpsertForkRecordParams{}, err
	}

	var stars *int32
	if rec.Stars != nil {
		n := int32(*rec.Stars)
		stars = &n
	}

	return UpsertForkRecordParams{
		ParentOwner:   rec.ParentOwner,
		ParentName:    rec.ParentName,
		ChildOwner:    rec.ChildOwner,
		ChildName:     rec.ChildName,
		ForkTime:      forkTime,
		CommitTimes:   commitTimes,
		Issues:        issues,
		CommitsPost2m: int32(rec.CommitsPost2m),
		Stars:         stars,
	}, nil
}

// ToModel converts a stored row back to the record shape written to files.
func ToModel(row ForkRecord) (model.EnrichedForkRecord, error) {
	rec := model.EnrichedForkRecord{
		SeriesRecord: model.SeriesRecord{
			ParentName:  row.ParentName,
			ParentOwner: row.ParentOwner,
			ChildOwner:  row.ChildOwner,
			ChildName:   row.ChildName,
			ForkTime:    row.ForkTime.UTC().Format(time.RFC3339),
		},
		CommitsPost2m: int(row.CommitsPost2m),
	}
	if row.CommitTimes != nil {
		if err := json.Unmarshal(row.CommitTimes, &rec.CommitTimes); err != nil {
			return model.EnrichedForkRecord{}, fmt.Errorf("decode commit_times of record %d: %w", row.ID, err)
		}
	}
	if err := json.Unmarshal(row.Issues, &rec.Issues); err != nil {
		return model.EnrichedForkRecord{}, fmt.Errorf("decode issues of record %d: %w", row.ID, err)
	}
	if row.Stars != nil {
		n := int(*row.Stars)
		rec.Stars = &n
	}
	return rec, nil
}
