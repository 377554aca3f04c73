package harvester

import (
	"context"

	"fork-harvester/internal/model"
)

// BatchWriter appends records to a JSON array output.
type BatchWriter interface {
	WriteBatch(items []any) error
}

// LineWriter appends raw lines to a line-delimited output.
type LineWriter interface {
	WriteLines(lines [][]byte) error
}

// RecordSink persists enriched records alongside the file output.
type RecordSink interface {
	SaveRecords(ctx context.Context, records []model.EnrichedForkRecord) error
}

// QualifyProcessor adapts the Qualifier to the runner.
func (q *Qualifier) QualifyProcessor() Processor {
	return func(ctx context.Context, ev model.ForkEvent) (any, error) {
		ok, n := q.Qualifies(ctx, ev)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.logger.Debug("Qualification decided", "owner", ev.ChildOwner, "repo", ev.ChildName, "commits", n, "qualified", ok)
		return ok, nil
	}
}

// SeriesProcessor adapts Enricher.Series to the runner.
func (e *Enricher) SeriesProcessor() Processor {
	return func(ctx context.Context, ev model.ForkEvent) (any, error) {
		return e.Series(ctx, ev)
	}
}

// EnrichProcessor adapts Enricher.Enrich to the runner.
func (e *Enricher) EnrichProcessor() Processor {
	return func(ctx context.Context, ev model.ForkEvent) (any, error) {
		return e.Enrich(ctx, ev)
	}
}

// Values returns the batch's values in order, with a RecordFailure in place
// of every failed outcome.
func Values(batch []Outcome) []any {
	items := make([]any, len(batch))
	for i, o := range batch {
		if o.Err != nil {
			items[i] = model.NewRecordFailure(o.Event, o.Err)
			continue
		}
		items[i] = o.Value
	}
	return items
}

// ArrayEmitter writes every outcome to w. When sink is not nil, successful
// enriched records are also saved to it.
func ArrayEmitter(w BatchWriter, sink RecordSink) Emitter {
	return func(ctx context.Context, batch []Outcome) error {
		if err := w.WriteBatch(Values(batch)); err != nil {
			return err
		}
		if sink == nil {
			return nil
		}

		records := make([]model.EnrichedForkRecord, 0, len(batch))
		for _, o := range batch {
			if rec, ok := o.Value.(model.EnrichedForkRecord); ok && o.Err == nil {
				records = append(records, rec)
			}
		}
		if len(records) == 0 {
			return nil
		}
		return sink.SaveRecords(ctx, records)
	}
}

// QualifiedLineEmitter re-emits the source line of every event that
// qualified, unchanged.
func QualifiedLineEmitter(w LineWriter) Emitter {
	return func(_ context.Context, batch []Outcome) error {
		lines := make([][]byte, 0, len(batch))
		for _, o := range batch {
			if ok, _ := o.Value.(bool); ok && o.Err == nil {
				lines = append(lines, o.Event.Raw)
			}
		}
		return w.WriteLines(lines)
	}
}
