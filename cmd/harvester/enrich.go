package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"fork-harvester/internal/cache"
	"fork-harvester/internal/database"
	"fork-harvester/internal/events"
	"fork-harvester/internal/github"
	"fork-harvester/internal/harvester"
	"fork-harvester/internal/output"
	"fork-harvester/migrations"
)

type recordsOptions struct {
	inPath  string
	outPath string
	start   int
	end     int
}

func addRecordsFlags(cmd *cobra.Command, o *recordsOptions, defaultIn, defaultOut string) {
	f := cmd.Flags()
	f.StringVarP(&o.inPath, "in", "i", defaultIn, "fork event lines to read")
	f.StringVarP(&o.outPath, "out", "o", defaultOut, "JSON array to write")
	f.IntVar(&o.start, "start", 0, "index of the first event to process")
	f.IntVar(&o.end, "end", -1, "index after the last event to process; negative means to the end")
	f.String("cache", "", "bbolt file caching resolved commit histories")
	addGitHubFlags(cmd)
	addBatchFlags(cmd)
}

func newEnrichCmd(a *app) *cobra.Command {
	var opts recordsOptions

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Build full activity records: commit series, issues, stars and sustained activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client := github.NewClient(a.githubOptions(), a.logger)

			var sink harvester.RecordSink
			if a.cfg.DBURL != "" {
				pool, err := openDatabase(ctx, a, a.cfg.DBURL)
				if err != nil {
					return err
				}
				defer pool.Close()
				sink = database.NewStore(pool, a.logger)
			}

			return a.runRecords(ctx, opts, client, sink, func(history harvester.HistoryFetcher) harvester.Processor {
				return harvester.NewEnricher(history, client, a.logger).EnrichProcessor()
			})
		},
	}

	addRecordsFlags(cmd, &opts, "filtered_forks.json", "enriched.json")
	cmd.Flags().String("db-url", "", "also upsert each batch into this Postgres database")
	return cmd
}

func newSeriesCmd(a *app) *cobra.Command {
	var opts recordsOptions

	cmd := &cobra.Command{
		Use:   "series",
		Short: "Build monthly commit series only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := github.NewClient(a.githubOptions(), a.logger)
			return a.runRecords(cmd.Context(), opts, client, nil, func(history harvester.HistoryFetcher) harvester.Processor {
				return harvester.NewEnricher(history, nil, a.logger).SeriesProcessor()
			})
		},
	}

	addRecordsFlags(cmd, &opts, "filtered_forks.json", "commit_series.json")
	return cmd
}

// runRecords streams events through a record processor into a JSON array,
// putting the history cache in front of the client when one is configured.
func (a *app) runRecords(ctx context.Context, opts recordsOptions, client *github.Client, sink harvester.RecordSink,
	newProcessor func(harvester.HistoryFetcher) harvester.Processor) (err error) {
	if err := a.cfg.RequireToken(); err != nil {
		return err
	}

	var history harvester.HistoryFetcher = client
	if a.cfg.CachePath != "" {
		c, cerr := cache.Open(a.cfg.CachePath, client, a.logger)
		if cerr != nil {
			return cerr
		}
		defer closeWith(&err, c)
		history = c
	}

	in, err := openInput(opts.inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := output.Create(opts.outPath)
	if err != nil {
		return err
	}
	defer closeWith(&err, out)

	reader := events.NewReader(in).WithRange(opts.start, opts.end)
	runner := harvester.NewRunner(a.batchOptions(), a.logger)

	stats, err := runner.Run(ctx, reader, newProcessor(history), harvester.ArrayEmitter(out, sink))
	a.logger.Info("Records written",
		"records", out.Count(), "batches", out.Batches(), "failed", stats.Failed,
		"malformed", stats.Malformed, "output", opts.outPath)
	if err != nil {
		return fmt.Errorf("stopped after %d batches: %w", stats.Batches, err)
	}
	return nil
}

func openDatabase(ctx context.Context, a *app, dbURL string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.logger.Info("Database connection established")

	if err := migrations.Up(dbURL); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	a.logger.Info("Database migrations applied successfully")
	return dbpool, nil
}
