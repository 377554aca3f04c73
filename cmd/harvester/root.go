package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fork-harvester/internal/config"
	"fork-harvester/internal/github"
	"fork-harvester/internal/harvester"
)

type app struct {
	logger     *slog.Logger
	logLevel   *slog.LevelVar
	configFile string
	cfg        *config.Config
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "harvester",
		Short:         "Harvest fork activity from the GitHub API into JSON datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(a.configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			setLogLevel(cfg.LogLevel, a.logLevel)
			a.cfg = cfg
			a.logger.Debug("Configuration loaded successfully", "command", cmd.Name())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "env-format configuration file (default ./.env when present)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		newCollectCmd(a),
		newFilterCmd(a),
		newEnrichCmd(a),
		newSeriesCmd(a),
		newHealthyCmd(a),
		newCombineCmd(a),
		newServeCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// addGitHubFlags registers the flags shared by every command that talks to
// GitHub. Their defaults mirror the configuration defaults.
func addGitHubFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("graphql-url", github.DefaultGraphQLURL, "GitHub GraphQL endpoint")
	f.Duration("timeout", 30*time.Second, "per-request timeout")
	f.Float64("rps", 5, "maximum requests per second across all workers")
	f.Int("max-retries", 3, "attempts per request, including the first")
	f.Duration("retry-backoff", 2*time.Second, "pause between attempts")
}

func addBatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("batch-size", 100, "events per batch")
	f.Duration("batch-pause", time.Second, "pause between batches")
	f.Int("concurrency", 1, "workers per batch; 1 processes events one at a time")
}

func (a *app) githubOptions() github.Options {
	return github.Options{
		Token:             a.cfg.GithubToken,
		GraphQLURL:        a.cfg.GraphQLURL,
		RestURL:           a.cfg.RestURL,
		Timeout:           a.cfg.RequestTimeout,
		RequestsPerSecond: a.cfg.RateLimitRPS,
		Retry: github.RetryPolicy{
			MaxAttempts: a.cfg.MaxRetries,
			Backoff:     a.cfg.RetryBackoff,
		},
	}
}

func (a *app) batchOptions() harvester.BatchOptions {
	return harvester.BatchOptions{
		Size:        a.cfg.BatchSize,
		Pause:       a.cfg.BatchPause,
		Concurrency: a.cfg.Concurrency,
	}
}

// closeWith closes c and keeps the first error.
func closeWith(err *error, c interface{ Close() error }) {
	if cerr := c.Close(); *err == nil {
		*err = cerr
	}
}

func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}
