// Package harvester turns fork events into qualification decisions and
// enriched activity records.
package harvester

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fork-harvester/internal/activity"
	"fork-harvester/internal/github"
	"fork-harvester/internal/model"
)

// HistoryFetcher returns the commit dates of a repository since a time.
type HistoryFetcher interface {
	CommitHistory(ctx context.Context, owner, name string, since time.Time) github.Result[[]string]
}

// CommitCounter counts commits in an inclusive time range.
type CommitCounter interface {
	CommitCount(ctx context.Context, owner, name string, since, until time.Time) github.Result[int]
}

// MetadataFetcher returns the auxiliary repository facts.
type MetadataFetcher interface {
	Issues(ctx context.Context, owner, name string) github.Result[model.IssuesSummary]
	Stars(ctx context.Context, owner, name string) github.Result[int]
}

// Qualifier decides whether a fork was active enough in its first three
// months.
type Qualifier struct {
	counter    CommitCounter
	minCommits int
	logger     *slog.Logger
}

// NewQualifier creates a Qualifier with the given inclusive threshold.
func NewQualifier(counter CommitCounter, minCommits int, logger *slog.Logger) *Qualifier {
	return &Qualifier{counter: counter, minCommits: minCommits, logger: logger}
}

// FirstQuarterCount counts the child's commits inside its qualification
// window. A count that cannot be fetched is treated as zero; callers check
// ctx themselves to tell a cancelled count apart.
func (q *Qualifier) FirstQuarterCount(ctx context.Context, ev model.ForkEvent) int {
	w := activity.QualificationWindow(ev.CreatedAt)
	res := q.counter.CommitCount(ctx, ev.ChildOwner, ev.ChildName, w.Start, w.End.Add(-time.Second))
	if res.Status == github.StatusCanceled {
		return 0
	}
	if !res.OK() {
		q.logger.Warn("Could not count commits, treating as zero",
			"owner", ev.ChildOwner, "repo", ev.ChildName, "status", res.Status.String(), "error", res.Err)
		return 0
	}
	return res.Value
}

// Qualifies reports whether the fork has at least the threshold number of
// commits in its window, along with the count itself.
func (q *Qualifier) Qualifies(ctx context.Context, ev model.ForkEvent) (bool, int) {
	n := q.FirstQuarterCount(ctx, ev)
	return n >= q.minCommits, n
}

// Enricher builds series and enriched records for fork events.
type Enricher struct {
	history  HistoryFetcher
	metadata MetadataFetcher
	logger   *slog.Logger
}

// NewEnricher creates an Enricher. metadata may be nil when only series are
// built.
func NewEnricher(history HistoryFetcher, metadata MetadataFetcher, logger *slog.Logger) *Enricher {
	return &Enricher{history: history, metadata: metadata, logger: logger}
}

// commitDates fetches the child's history since the fork time. A missing
// repository yields nil dates. An exhausted transient failure or a cancelled
// context is an error, so the record never claims the repository is gone.
func (e *Enricher) commitDates(ctx context.Context, ev model.ForkEvent) ([]string, error) {
	res := e.history.CommitHistory(ctx, ev.ChildOwner, ev.ChildName, ev.ForkTime)
	switch res.Status {
	case github.StatusOK:
		if res.Value == nil {
			return []string{}, nil
		}
		return res.Value, nil
	case github.StatusNotFound, github.StatusFailed:
		e.logger.Info("Commit history unavailable",
			"owner", ev.ChildOwner, "repo", ev.ChildName, "status", res.Status.String(), "error", res.Err)
		return nil, nil
	case github.StatusCanceled:
		return nil, fmt.Errorf("commit history of %s/%s: %w", ev.ChildOwner, ev.ChildName, res.Err)
	default:
		return nil, fmt.Errorf("commit history of %s/%s: %s: %w", ev.ChildOwner, ev.ChildName, res.Status, res.Err)
	}
}

func (e *Enricher) seriesRecord(ev model.ForkEvent, dates []string) model.SeriesRecord {
	series, skipped := activity.Bucket(dates)
	if len(skipped) > 0 {
		e.logger.Warn("Dropping commit dates without a month",
			"owner", ev.ChildOwner, "repo", ev.ChildName, "count", len(skipped), "dates", skipped)
	}
	return model.SeriesRecord{
		ParentName:  ev.ParentName,
		ParentOwner: ev.ParentOwner,
		ChildOwner:  ev.ChildOwner,
		ChildName:   ev.ChildName,
		ForkTime:    ev.ForkTimeString(),
		CommitTimes: series,
	}
}

// Series builds the history-only record for ev.
func (e *Enricher) Series(ctx context.Context, ev model.ForkEvent) (model.SeriesRecord, error) {
	dates, err := e.commitDates(ctx, ev)
	if err != nil {
		return model.SeriesRecord{}, err
	}
	return e.seriesRecord(ev, dates), nil
}

// Enrich builds the full record for ev. Auxiliary lookup failures are encoded
// in the record itself; only a cancelled ctx discards it.
func (e *Enricher) Enrich(ctx context.Context, ev model.ForkEvent) (model.EnrichedForkRecord, error) {
	dates, err := e.commitDates(ctx, ev)
	if err != nil {
		return model.EnrichedForkRecord{}, err
	}

	rec := model.EnrichedForkRecord{
		SeriesRecord:  e.seriesRecord(ev, dates),
		Issues:        e.issues(ctx, ev),
		CommitsPost2m: activity.CommitsPostGrace(dates),
		Stars:         e.stars(ctx, ev),
	}
	if err := ctx.Err(); err != nil {
		return model.EnrichedForkRecord{}, err
	}
	return rec, nil
}

func (e *Enricher) issues(ctx context.Context, ev model.ForkEvent) model.IssuesOutcome {
	res := e.metadata.Issues(ctx, ev.ChildOwner, ev.ChildName)
	switch res.Status {
	case github.StatusOK:
		summary := res.Value
		return model.IssuesOutcome{Summary: &summary}
	case github.StatusNotFound:
		return model.IssuesOutcome{Deleted: true}
	default:
		e.logger.Warn("Could not fetch issues",
			"owner", ev.ChildOwner, "repo", ev.ChildName, "status", res.Status.String(), "error", res.Err)
		return model.IssuesOutcome{Failed: true}
	}
}

func (e *Enricher) stars(ctx context.Context, ev model.ForkEvent) *int {
	res := e.metadata.Stars(ctx, ev.ChildOwner, ev.ChildName)
	if !res.OK() {
		e.logger.Warn("Could not fetch stars",
			"owner", ev.ChildOwner, "repo", ev.ChildName, "status", res.Status.String(), "error", res.Err)
		return nil
	}
	n := res.Value
	return &n
}
