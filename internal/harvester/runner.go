package harvester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "fork-harvester/internal/errors"
	"fork-harvester/internal/model"
)

// Source yields fork events until io.EOF. A *errors.ErrMalformedEvent is
// skipped; any other error ends the run.
type Source interface {
	Next() (model.ForkEvent, error)
}

// Processor handles one event. A returned error, or a panic, fails only that
// event.
type Processor func(ctx context.Context, ev model.ForkEvent) (any, error)

// Outcome is the result of processing one event.
type Outcome struct {
	Event model.ForkEvent
	Value any
	Err   error
}

// Emitter receives each processed batch in input order. It runs on the
// runner's goroutine only, so it may write to a single sink without locking.
type Emitter func(ctx context.Context, batch []Outcome) error

// BatchOptions controls batching and fan-out.
type BatchOptions struct {
	Size  int
	Pause time.Duration
	// Concurrency of 1 processes a batch sequentially.
	Concurrency int
}

// Stats summarises a run.
type Stats struct {
	Batches   int
	Processed int
	Failed    int
	Malformed int
}

// Runner drives a Source through a Processor in fixed-size batches.
type Runner struct {
	opts   BatchOptions
	logger *slog.Logger
}

// NewRunner creates a Runner, applying defaults to zero options.
func NewRunner(opts BatchOptions, logger *slog.Logger) *Runner {
	if opts.Size < 1 {
		opts.Size = 100
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{opts: opts, logger: logger}
}

// Run reads, processes and emits every batch. When ctx is cancelled it stops
// and returns ctx.Err(): everything already emitted stays emitted, and the
// batch in flight is dropped rather than emitted half-answered.
func (r *Runner) Run(ctx context.Context, src Source, process Processor, emit Emitter) (Stats, error) {
	r.logger.Info("Starting run", "batch_size", r.opts.Size, "concurrency", r.opts.Concurrency)
	var stats Stats

	for {
		batch, done, err := r.readBatch(src, &stats)
		if err != nil {
			return stats, err
		}

		if len(batch) > 0 {
			if stats.Batches > 0 {
				if err := pause(ctx, r.opts.Pause); err != nil {
					return stats, err
				}
			}
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			outcomes := r.processBatch(ctx, batch, process)
			if err := ctx.Err(); err != nil {
				r.logger.Warn("Run cancelled, dropping in-flight batch",
					"batch", stats.Batches+1, "records", len(outcomes), "from_line", batch[0].Line)
				return stats, err
			}
			if err := emit(ctx, outcomes); err != nil {
				return stats, fmt.Errorf("emit batch %d: %w", stats.Batches+1, err)
			}

			stats.Batches++
			stats.Processed += len(outcomes)
			for _, o := range outcomes {
				if o.Err != nil {
					stats.Failed++
				}
			}
			r.logger.Info("Batch finished", "batch", stats.Batches, "records", len(outcomes), "processed", stats.Processed)
		}

		if done {
			r.logger.Info("Run finished", "batches", stats.Batches, "processed", stats.Processed,
				"failed", stats.Failed, "malformed", stats.Malformed)
			return stats, nil
		}
	}
}

func (r *Runner) readBatch(src Source, stats *Stats) ([]model.ForkEvent, bool, error) {
	batch := make([]model.ForkEvent, 0, r.opts.Size)
	for len(batch) < r.opts.Size {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return batch, true, nil
		}
		var malformed *apperrors.ErrMalformedEvent
		if errors.As(err, &malformed) {
			stats.Malformed++
			r.logger.Warn("Skipping malformed event", "line", malformed.Line, "error", err)
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("read events: %w", err)
		}
		batch = append(batch, ev)
	}
	return batch, false, nil
}

// processBatch fans a batch out to at most Concurrency workers. Results are
// written to distinct slots, so input order is preserved.
func (r *Runner) processBatch(ctx context.Context, batch []model.ForkEvent, process Processor) []Outcome {
	outcomes := make([]Outcome, len(batch))

	if r.opts.Concurrency == 1 {
		for i, ev := range batch {
			outcomes[i] = r.processOne(ctx, ev, process)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, ev := range batch {
		g.Go(func() error {
			outcomes[i] = r.processOne(ctx, ev, process)
			return nil
		})
	}
	_ = g.Wait() // Workers never return errors; failures live in the outcomes.
	return outcomes
}

func (r *Runner) processOne(ctx context.Context, ev model.ForkEvent, process Processor) (out Outcome) {
	out.Event = ev
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Recovered from panic while processing event",
				"line", ev.Line, "owner", ev.ChildOwner, "repo", ev.ChildName, "panic", p, "stack", string(debug.Stack()))
			out.Value = nil
			out.Err = fmt.Errorf("panic: %v", p)
		}
	}()

	out.Value, out.Err = process(ctx, ev)
	if out.Err != nil {
		r.logger.Error("Failed to process event",
			"line", ev.Line, "owner", ev.ChildOwner, "repo", ev.ChildName, "error", out.Err)
	}
	return out
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
